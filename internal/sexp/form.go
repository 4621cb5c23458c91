// Package sexp reads parenthesized symbolic-expression source into Forms and
// records the byte span of every subform it reads.
package sexp

import (
	"math"
	"strconv"
	"strings"
)

// Form is a parsed syntactic value. Atoms are value types; compound forms
// (*List, *Pair, *Vector) are pointers, so each compound node read from a
// document has its own identity.
type Form interface {
	String() string
	isForm()
}

// Atoms.

type Symbol string

type Int int64

type Float float64

type String string

type Char rune

type Bool bool

// Nil is the empty-list sentinel. Both `nil` and `()` read as Nil.
type Nil struct{}

// List is a proper sequence: a non-empty list terminated by the empty-list
// sentinel.
type List struct {
	Items []Form
}

// Pair is an improper sequence such as (a b . c). Items is never empty and
// Tail is never Nil or a *List; the reader normalizes those cases to *List.
type Pair struct {
	Items []Form
	Tail  Form
}

// Vector is a bracketed literal such as [a b] or {a b}, or a hash-prefixed
// one such as #(a b), #s(a b) or #{a b}. Open records which delimiter
// introduced it and Prefix the text before that delimiter ("" for a plain
// bracket).
type Vector struct {
	Prefix string
	Open   byte
	Items  []Form
}

func (Symbol) isForm()  {}
func (Int) isForm()     {}
func (Float) isForm()   {}
func (String) isForm()  {}
func (Char) isForm()    {}
func (Bool) isForm()    {}
func (Nil) isForm()     {}
func (*List) isForm()   {}
func (*Pair) isForm()   {}
func (*Vector) isForm() {}

// Head returns the first element of l.
func (l *List) Head() Form { return l.Items[0] }

// Head returns the first element of p.
func (p *Pair) Head() Form { return p.Items[0] }

// IsAtom reports whether f is not a compound form.
func IsAtom(f Form) bool {
	switch f.(type) {
	case *List, *Pair, *Vector:
		return false
	}
	return f != nil
}

// Children returns the subforms of a compound form in source order. For a
// *Pair the tail is the last child. Atoms have no children.
func Children(f Form) []Form {
	switch v := f.(type) {
	case *List:
		return v.Items
	case *Pair:
		out := make([]Form, 0, len(v.Items)+1)
		out = append(out, v.Items...)
		return append(out, v.Tail)
	case *Vector:
		return v.Items
	}
	return nil
}

// --- Printing ---

func (s Symbol) String() string {
	var b strings.Builder
	writeSymbol(&b, string(s))
	return b.String()
}

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }

func (f Float) String() string {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return "1.0e+INF"
	case math.IsInf(v, -1):
		return "-1.0e+INF"
	case math.IsNaN(v):
		return "0.0e+NaN"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func (s String) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range string(s) {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func (c Char) String() string {
	var b strings.Builder
	b.WriteByte('?')
	ru := rune(c)
	for _, m := range charModifiers {
		if ru&m.bit != 0 {
			b.WriteByte('\\')
			b.WriteByte(m.key)
			b.WriteByte('-')
			ru &^= m.bit
		}
	}
	switch ru {
	case '\n':
		b.WriteString(`\n`)
	case '\t':
		b.WriteString(`\t`)
	case ' ':
		b.WriteString(`\s`)
	case '(', ')', '[', ']', '{', '}', '\\', ';', '"', '\'', '`', ',', '#', '?':
		b.WriteByte('\\')
		b.WriteRune(ru)
	default:
		b.WriteRune(ru)
	}
	return b.String()
}

func (b Bool) String() string {
	if b {
		return "#t"
	}
	return "#f"
}

func (Nil) String() string { return "nil" }

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	writeItems(&b, l.Items)
	b.WriteByte(')')
	return b.String()
}

func (p *Pair) String() string {
	var b strings.Builder
	b.WriteByte('(')
	writeItems(&b, p.Items)
	b.WriteString(" . ")
	b.WriteString(p.Tail.String())
	b.WriteByte(')')
	return b.String()
}

func (v *Vector) String() string {
	open := v.Open
	if open == 0 {
		open = '['
	}
	var b strings.Builder
	b.WriteString(v.Prefix)
	b.WriteByte(open)
	writeItems(&b, v.Items)
	b.WriteByte(closerFor(open))
	return b.String()
}

func writeItems(b *strings.Builder, items []Form) {
	for i, it := range items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(it.String())
	}
}

// writeSymbol escapes characters that would otherwise end the symbol or
// make it read back as another kind of atom.
func writeSymbol(b *strings.Builder, name string) {
	if name == "" {
		b.WriteString(`##`)
		return
	}
	if _, ok := parseNumber(name); ok || name == "nil" || name == "." {
		b.WriteByte('\\')
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isDelimiter(c) || c == '\\' || (i == 0 && (c == '?' || c == '#')) {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
}

// --- Equality ---

// Equal reports whether a and b are structurally equal values.
func Equal(a, b Form) bool {
	switch x := a.(type) {
	case *List:
		y, ok := b.(*List)
		return ok && equalItems(x.Items, y.Items)
	case *Pair:
		y, ok := b.(*Pair)
		return ok && equalItems(x.Items, y.Items) && Equal(x.Tail, y.Tail)
	case *Vector:
		y, ok := b.(*Vector)
		return ok && x.Prefix == y.Prefix && x.Open == y.Open && equalItems(x.Items, y.Items)
	case Float:
		y, ok := b.(Float)
		return ok && x.String() == y.String()
	}
	return a == b
}

func equalItems(a, b []Form) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Key returns a canonical string for f such that Key(a) == Key(b) exactly
// when Equal(a, b).
func Key(f Form) string {
	return f.String()
}
