package sexp

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// maxDepth bounds compound nesting so hostile input cannot exhaust the stack.
const maxDepth = 10000

var (
	// ErrBoundary signals a closing delimiter where a form was expected. It
	// ends a list's children; at the top level it ends the document.
	ErrBoundary = errors.New("sexp: closing delimiter")

	// ErrEndOfInput signals that only whitespace and comments remain.
	ErrEndOfInput = errors.New("sexp: end of input")

	// ErrMalformed is matched by every *SyntaxError.
	ErrMalformed = errors.New("sexp: malformed input")
)

// SyntaxError describes malformed input at a byte offset.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("sexp: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrMalformed }

func syntaxErrorf(off int, format string, args ...any) *SyntaxError {
	return &SyntaxError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

// boundaryError carries the position and kind of a closing delimiter.
type boundaryError struct {
	offset int
	delim  byte
}

func (e *boundaryError) Error() string {
	return fmt.Sprintf("sexp: closing delimiter %q at offset %d", e.delim, e.offset)
}

func (e *boundaryError) Is(target error) bool { return target == ErrBoundary }

// dotError marks a lone "." token; only list reading may consume it.
type dotError struct {
	start, end int
}

func (e *dotError) Error() string {
	return fmt.Sprintf("sexp: unexpected dot at offset %d", e.start)
}

// Span is a half-open byte range [Start, End) in a source text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by s.
func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether inner lies within s.
func (s Span) Contains(inner Span) bool {
	return s.Start <= inner.Start && inner.End <= s.End
}

// reader holds the state of a single ReadOne call. Nothing outlives the call.
type reader struct {
	text    []byte
	entries []Entry
	depth   int
}

// ReadOne reads the form that starts at or after start (skipping whitespace
// and comments). It returns the form, the offset just past it, and one Entry
// per subform read, children before parents. Entry IDs are left zero.
//
// A closing delimiter yields an error matching ErrBoundary and exhausted
// input yields ErrEndOfInput; neither is a failure. Malformed input yields a
// *SyntaxError, and none of the partially read spans are returned.
func ReadOne(text []byte, start int) (Form, int, []Entry, error) {
	if start < 0 || start > len(text) {
		return nil, start, nil, syntaxErrorf(start, "start offset out of range")
	}
	r := &reader{text: text}
	f, sp, err := r.read(start)
	if err != nil {
		var dot *dotError
		if errors.As(err, &dot) {
			return nil, start, nil, syntaxErrorf(dot.start, "unexpected dot")
		}
		return nil, start, nil, err
	}
	return f, sp.End, r.entries, nil
}

func (r *reader) record(f Form, sp Span) {
	r.entries = append(r.entries, Entry{Form: f, Span: sp})
}

func (r *reader) read(off int) (Form, Span, error) {
	off, err := r.skipAtmosphere(off)
	if err != nil {
		return nil, Span{}, err
	}
	text := r.text
	if off >= len(text) {
		return nil, Span{}, ErrEndOfInput
	}

	switch c := text[off]; c {
	case ')', ']', '}':
		return nil, Span{}, &boundaryError{offset: off, delim: c}
	case '(', '[', '{':
		return r.readSequence(off, off)
	case '"':
		end, s, err := r.scanString(off)
		if err != nil {
			return nil, Span{}, err
		}
		return r.atom(String(s), off, end)
	case '\'':
		return r.readPrefixed(off, 1, "quote")
	case '`':
		return r.readPrefixed(off, 1, "`")
	case ',':
		if off+1 < len(text) && text[off+1] == '@' {
			return r.readPrefixed(off, 2, ",@")
		}
		return r.readPrefixed(off, 1, ",")
	case '?':
		if r.looksLikeChar(off) {
			end, ch, err := r.scanQuestionChar(off)
			if err != nil {
				return nil, Span{}, err
			}
			return r.atom(ch, off, end)
		}
	case '#':
		return r.readHash(off)
	}
	return r.readAtom(off)
}

// looksLikeChar decides whether a leading '?' starts a character literal or
// a symbol such as ?x (common in Scheme pattern variables).
func (r *reader) looksLikeChar(off int) bool {
	text := r.text
	i := off + 1
	if i >= len(text) || text[i] == '\\' {
		return true
	}
	_, size := utf8.DecodeRune(text[i:])
	return i+size >= len(text) || isDelimiter(text[i+size])
}

func (r *reader) atom(f Form, start, end int) (Form, Span, error) {
	sp := Span{Start: start, End: end}
	r.record(f, sp)
	return f, sp, nil
}

func (r *reader) readAtom(off int) (Form, Span, error) {
	end, name, escaped, err := r.scanAtom(off)
	if err != nil {
		return nil, Span{}, err
	}
	if !escaped {
		if name == "." {
			return nil, Span{}, &dotError{start: off, end: end}
		}
		if name == "nil" {
			return r.atom(Nil{}, off, end)
		}
		if n, ok := parseNumber(name); ok {
			return r.atom(n, off, end)
		}
	}
	return r.atom(Symbol(name), off, end)
}

// readHash reads the # dispatch syntax whose hash is at off.
func (r *reader) readHash(off int) (Form, Span, error) {
	text := r.text
	if off+1 >= len(text) {
		return nil, Span{}, syntaxErrorf(off, "invalid syntax #")
	}
	switch text[off+1] {
	case '\'':
		return r.readPrefixed(off, 2, "function")
	case '\\':
		end, ch, err := r.scanHashChar(off)
		if err != nil {
			return nil, Span{}, err
		}
		return r.atom(ch, off, end)
	case '#':
		if off+2 >= len(text) || isDelimiter(text[off+2]) {
			return r.atom(Symbol(""), off, off+2)
		}
	case ':':
		// Uninterned symbol. The name keeps its prefix so #:foo never
		// equals foo.
		end, name, _, err := r.scanAtom(off + 2)
		if err != nil {
			return nil, Span{}, err
		}
		return r.atom(Symbol("#:"+name), off, end)
	case '"':
		end, s, err := r.scanRegex(off)
		if err != nil {
			return nil, Span{}, err
		}
		return r.atom(String(s), off, end)
	case '_', ';':
		return r.readDiscarded(off)
	case '+', '-':
		return r.readFeature(off)
	case '.':
		return r.readPrefixed(off, 2, "#.")
	}
	if open, ok := r.hashOpener(off); ok {
		return r.readSequence(off, open)
	}

	end, name, escaped, err := r.scanAtom(off)
	if err != nil {
		return nil, Span{}, err
	}
	if !escaped && len(name) > 1 {
		switch name {
		case "#t", "#true":
			return r.atom(Bool(true), off, end)
		case "#f", "#false":
			return r.atom(Bool(false), off, end)
		}
		if n, ok := parseHashNumber(name); ok {
			return r.atom(n, off, end)
		}
		// Tagged literals (#inst, #uuid) and Scheme #!optional read as
		// symbols; the tagged value is the next form.
		if c := name[1]; isLetter(c) || c == '!' {
			return r.atom(Symbol(name), off, end)
		}
	}
	return nil, Span{}, syntaxErrorf(off, "invalid syntax %q", string(text[off:end]))
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// hashOpener reports whether the hash at off starts a prefixed compound such
// as #(, #s(, #{, #[, #?( or #hash(, and returns the opener's offset.
func (r *reader) hashOpener(off int) (int, bool) {
	text := r.text
	i := off + 1
	for i < len(text) {
		c := text[i]
		if !isLetter(c) && !(c >= '0' && c <= '9') && c != '?' && c != '@' {
			break
		}
		i++
	}
	if i < len(text) && (text[i] == '(' || text[i] == '[' || text[i] == '{') {
		return i, true
	}
	return 0, false
}

// readOperand reads the form that must follow the prefix name at off.
func (r *reader) readOperand(off, from int, name string) (Form, Span, error) {
	f, sp, err := r.read(from)
	if err != nil {
		var dot *dotError
		if errors.Is(err, ErrEndOfInput) || errors.Is(err, ErrBoundary) || errors.As(err, &dot) {
			return nil, Span{}, syntaxErrorf(off, "missing form after %s", name)
		}
		return nil, Span{}, err
	}
	return f, sp, nil
}

// readPrefixed reads a reader-macro prefix ('x, `x, ,x, ,@x, #'x) as a
// two-element list headed by name.
func (r *reader) readPrefixed(off, width int, name string) (Form, Span, error) {
	if err := r.enter(off); err != nil {
		return nil, Span{}, err
	}
	defer r.leave()

	inner, isp, err := r.readOperand(off, off+width, name)
	if err != nil {
		return nil, Span{}, err
	}
	l := &List{Items: []Form{Symbol(name), inner}}
	sp := Span{Start: off, End: isp.End}
	r.record(l, sp)
	return l, sp, nil
}

// readFeature reads a feature expression, #+sbcl form or #-sbcl form, as the
// list (#+ sbcl form). The guarded form stays searchable.
func (r *reader) readFeature(off int) (Form, Span, error) {
	if err := r.enter(off); err != nil {
		return nil, Span{}, err
	}
	defer r.leave()

	name := string(r.text[off : off+2])
	feature, fsp, err := r.readOperand(off, off+2, name)
	if err != nil {
		return nil, Span{}, err
	}
	guarded, gsp, err := r.readOperand(off, fsp.End, name)
	if err != nil {
		return nil, Span{}, err
	}
	l := &List{Items: []Form{Symbol(name), feature, guarded}}
	sp := Span{Start: off, End: gsp.End}
	r.record(l, sp)
	return l, sp, nil
}

// readDiscarded skips the form after #_ or #; and reads whatever follows it,
// which may be a closing delimiter or the end of input.
func (r *reader) readDiscarded(off int) (Form, Span, error) {
	if err := r.enter(off); err != nil {
		return nil, Span{}, err
	}
	defer r.leave()

	mark := len(r.entries)
	_, sp, err := r.readOperand(off, off+2, string(r.text[off:off+2]))
	if err != nil {
		return nil, Span{}, err
	}
	r.entries = r.entries[:mark]
	return r.read(sp.End)
}

func (r *reader) enter(off int) error {
	r.depth++
	if r.depth > maxDepth {
		return syntaxErrorf(off, "nesting deeper than %d", maxDepth)
	}
	return nil
}

func (r *reader) leave() { r.depth-- }

// readSequence reads a list or vector that starts at off and whose opening
// delimiter is at openAt; any text between them is a hash prefix. Each child
// is read at the previous child's end offset until the matching closing
// delimiter is reached.
func (r *reader) readSequence(off, openAt int) (Form, Span, error) {
	if err := r.enter(off); err != nil {
		return nil, Span{}, err
	}
	defer r.leave()

	open := r.text[openAt]
	prefix := string(r.text[off:openAt])
	want := closerFor(open)
	var items []Form
	var tail Form
	pos := openAt + 1
	end := -1

	for end < 0 {
		f, sp, err := r.read(pos)
		if err == nil {
			items = append(items, f)
			pos = sp.End
			continue
		}

		var b *boundaryError
		var dot *dotError
		switch {
		case errors.As(err, &b):
			if b.delim != want {
				return nil, Span{}, syntaxErrorf(b.offset, "mismatched %q, expected %q", b.delim, want)
			}
			end = b.offset + 1
		case errors.As(err, &dot):
			if open != '(' || prefix != "" || len(items) == 0 {
				return nil, Span{}, syntaxErrorf(dot.start, "unexpected dot")
			}
			tail, end, err = r.readTail(off, dot.end)
			if err != nil {
				return nil, Span{}, err
			}
		case errors.Is(err, ErrEndOfInput):
			return nil, Span{}, syntaxErrorf(off, "unterminated %q", open)
		default:
			return nil, Span{}, err
		}
	}

	sp := Span{Start: off, End: end}
	f := build(prefix, open, items, tail)
	r.record(f, sp)
	return f, sp, nil
}

// readTail reads the form after a dot and the closing paren that must follow
// it. It returns the tail and the offset just past the closing paren.
func (r *reader) readTail(listStart, off int) (Form, int, error) {
	tail, tsp, err := r.read(off)
	if err != nil {
		var dot *dotError
		switch {
		case errors.Is(err, ErrEndOfInput):
			return nil, 0, syntaxErrorf(listStart, "unterminated %q", '(')
		case errors.Is(err, ErrBoundary), errors.As(err, &dot):
			return nil, 0, syntaxErrorf(off, "missing form after dot")
		}
		return nil, 0, err
	}
	closeAt, err := r.skipAtmosphere(tsp.End)
	if err != nil {
		return nil, 0, err
	}
	if closeAt >= len(r.text) {
		return nil, 0, syntaxErrorf(listStart, "unterminated %q", '(')
	}
	if r.text[closeAt] != ')' {
		return nil, 0, syntaxErrorf(closeAt, "more than one form after dot")
	}
	return tail, closeAt + 1, nil
}

// build assembles a compound form, normalizing dotted tails the way a Lisp
// reader does: (a . nil) is (a) and (a . (b c)) is (a b c).
func build(prefix string, open byte, items []Form, tail Form) Form {
	if open != '(' || prefix != "" {
		return &Vector{Prefix: prefix, Open: open, Items: items}
	}
	switch t := tail.(type) {
	case nil, Nil:
		if len(items) == 0 {
			return Nil{}
		}
		return &List{Items: items}
	case *List:
		return &List{Items: append(items, t.Items...)}
	case *Pair:
		return &Pair{Items: append(items, t.Items...), Tail: t.Tail}
	}
	return &Pair{Items: items, Tail: tail}
}
