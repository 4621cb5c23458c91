package sexp

// Entry is one node of a document's span arena.
type Entry struct {
	ID   int
	Form Form
	Span Span
}

// Table is a document's span table. It keeps two views of the same entries:
//
//   - a value-keyed view (Lookup, Len), where structurally equal subforms
//     share one slot and the last one read wins;
//   - a per-node view (SpanOf, Entries), where every compound node keeps its
//     own span.
//
// Callers that need every occurrence of a repeated subform use the per-node
// view.
type Table struct {
	entries []Entry
	byValue map[string]int
	byNode  map[Form]int
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{
		byValue: make(map[string]int),
		byNode:  make(map[Form]int),
	}
}

// Put appends f with span sp to the arena and returns its ID.
func (t *Table) Put(f Form, sp Span) int {
	id := len(t.entries)
	t.entries = append(t.entries, Entry{ID: id, Form: f, Span: sp})
	t.byValue[Key(f)] = id
	if !IsAtom(f) {
		t.byNode[f] = id
	}
	return id
}

// Lookup returns the span associated with f's value. When the same value was
// read more than once, the span of the last occurrence is returned.
func (t *Table) Lookup(f Form) (Span, bool) {
	id, ok := t.byValue[Key(f)]
	if !ok {
		return Span{}, false
	}
	return t.entries[id].Span, true
}

// SpanOf returns the span of the exact compound node f. Atoms carry no
// identity, so for them SpanOf falls back to Lookup.
func (t *Table) SpanOf(f Form) (Span, bool) {
	if IsAtom(f) {
		return t.Lookup(f)
	}
	id, ok := t.byNode[f]
	if !ok {
		return Span{}, false
	}
	return t.entries[id].Span, true
}

// Len returns the number of distinct values in the table.
func (t *Table) Len() int { return len(t.byValue) }

// Entries returns every recorded node in the order it was read (children
// before their parent).
func (t *Table) Entries() []Entry { return t.entries }

// Entry returns the arena node with the given ID.
func (t *Table) Entry(id int) (Entry, bool) {
	if id < 0 || id >= len(t.entries) {
		return Entry{}, false
	}
	return t.entries[id], true
}
