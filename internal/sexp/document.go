package sexp

import (
	"errors"
	"sort"
)

// Document is one source text together with its top-level forms and span
// table.
type Document struct {
	Text  []byte
	Forms []Form
	Spans *Table

	// FormSpans holds the span of each top-level form, index for index with
	// Forms. Unlike Spans.SpanOf it is exact for top-level atoms too.
	FormSpans []Span

	// Err is the error that stopped reading before the end of input: a
	// *SyntaxError or a stray closing delimiter. It is nil when the whole
	// text was read. Forms read before it are kept.
	Err error

	lineStarts []int
}

// Position is a 0-based line and byte column.
type Position struct {
	Line int
	Col  int
}

// ReadDocument reads top-level forms from text until the input is
// exhausted. Reading stops quietly at the first malformed form; everything
// read before it is returned. ReadDocument never fails.
func ReadDocument(text []byte) *Document {
	doc := &Document{
		Text:       text,
		Spans:      NewTable(),
		lineStarts: lineStarts(text),
	}
	off := 0
	for {
		f, end, entries, err := ReadOne(text, off)
		if err != nil {
			if !errors.Is(err, ErrEndOfInput) {
				doc.Err = err
			}
			return doc
		}
		for _, e := range entries {
			doc.Spans.Put(e.Form, e.Span)
		}
		doc.Forms = append(doc.Forms, f)
		doc.FormSpans = append(doc.FormSpans, entries[len(entries)-1].Span)
		off = end
	}
}

// Degraded reports whether reading stopped before the end of input.
func (d *Document) Degraded() bool { return d.Err != nil }

// Slice returns the source text covered by sp.
func (d *Document) Slice(sp Span) string {
	return string(d.Text[sp.Start:sp.End])
}

// Position converts a byte offset to a line and column.
func (d *Document) Position(offset int) Position {
	line := sort.Search(len(d.lineStarts), func(i int) bool {
		return d.lineStarts[i] > offset
	}) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Col: offset - d.lineStarts[line]}
}

// LineCount returns the number of lines in the text.
func (d *Document) LineCount() int { return len(d.lineStarts) }

func lineStarts(text []byte) []int {
	starts := []int{0}
	for i, c := range text {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}
