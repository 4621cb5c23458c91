package sexp

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// readOne is a test helper that reads a single form from src at offset 0.
func readOne(t *testing.T, src string) (Form, int, []Entry) {
	t.Helper()
	f, end, entries, err := ReadOne([]byte(src), 0)
	require.NoError(t, err)
	return f, end, entries
}

func sym(s string) Symbol { return Symbol(s) }

func list(items ...Form) *List { return &List{Items: items} }

// =============================================================================
// Atoms
// =============================================================================

func TestReadOne_Atoms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want Form
	}{
		{"foo", sym("foo")},
		{"foo-bar?", sym("foo-bar?")},
		{"+", sym("+")},
		{"-", sym("-")},
		{"...", sym("...")},
		{"42", Int(42)},
		{"-7", Int(-7)},
		{"+3", Int(3)},
		{"1.", Int(1)},
		{"2.5", Float(2.5)},
		{"1e3", Float(1000)},
		{"-0.5", Float(-0.5)},
		{"99999999999999999999", Float(1e20)},
		{"1+", sym("1+")},
		{"nil", Nil{}},
		{"()", Nil{}},
		{`"hi"`, String("hi")},
		{`"a\nb"`, String("a\nb")},
		{`"q\"q"`, String(`q"q`)},
		{`"\x41é"`, String("Aé")},
		{"?a", Char('a')},
		{`?\n`, Char('\n')},
		{`#\a`, Char('a')},
		{`#\space`, Char(' ')},
		{`#\x41`, Char('A')},
		{"#t", Bool(true)},
		{"#false", Bool(false)},
		{"##", sym("")},
		{`foo\ bar`, sym("foo bar")},
		{`\12`, sym("12")},
		{"?x-var", sym("?x-var")},
		{`?\C-x`, Char(24)},
		{`?\M-x`, Char('x' | metaBit)},
		{`?\^M`, Char('\r')},
		{`?\C-\M-a`, Char(1 | metaBit)},
		{`?\C-%`, Char('%' | controlBit)},
		{`?\C-?`, Char(0x7f)},
		{`?\S-\H-a`, Char('a' | shiftBit | hyperBit)},
		{`?\s-a`, Char('a' | superBit)},
		{`?\A-\s`, Char(' ' | altBit)},
		{`?\s`, Char(' ')},
		{`?\d`, Char(0x7f)},
		{`"\C-c\M-x"`, String("\x03\u00f8")},
		{`"\s-"`, String(" -")},
		{"#:my-pkg", sym("#:my-pkg")},
		{"#x1F", Int(31)},
		{"#X-ff", Int(-255)},
		{"#o17", Int(15)},
		{"#b101", Int(5)},
		{"#36rZZ", Int(1295)},
		{"#e1.5", Float(1.5)},
		{`#"a+\d"`, String(`a+\d`)},
		{"#inst", sym("#inst")},
		{"#!optional", sym("#!optional")},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			f, end, entries := readOne(t, tt.src)
			assert.True(t, Equal(tt.want, f), "got %s, want %s", f, tt.want)
			assert.Equal(t, len(tt.src), end)
			require.Len(t, entries, 1)
			assert.Equal(t, Span{Start: 0, End: len(tt.src)}, entries[0].Span)
		})
	}
}

func TestReadOne_SkipsAtmosphere(t *testing.T) {
	t.Parallel()
	src := "  ; comment\n #| block #| nested |# |#\n\tfoo bar"
	f, end, entries := readOne(t, src)
	assert.Equal(t, sym("foo"), f)
	start := len(src) - len("foo bar")
	assert.Equal(t, start+3, end)
	require.Len(t, entries, 1)
	assert.Equal(t, Span{Start: start, End: start + 3}, entries[0].Span)
}

func TestReadOne_StartsAtOffset(t *testing.T) {
	t.Parallel()
	text := []byte("(a) (b c)")
	f, end, _, err := ReadOne(text, 3)
	require.NoError(t, err)
	assert.True(t, Equal(list(sym("b"), sym("c")), f))
	assert.Equal(t, 9, end)
}

// =============================================================================
// Compounds
// =============================================================================

func TestReadOne_NestedList(t *testing.T) {
	t.Parallel()
	f, end, entries := readOne(t, "(foo (bar 1) \"s\")")
	want := list(sym("foo"), list(sym("bar"), Int(1)), String("s"))
	assert.True(t, Equal(want, f), "got %s", f)
	assert.Equal(t, 17, end)

	// Children are recorded before their parent.
	spans := make([]Span, len(entries))
	for i, e := range entries {
		spans[i] = e.Span
	}
	assert.Equal(t, []Span{
		{1, 4},   // foo
		{6, 9},   // bar
		{10, 11}, // 1
		{5, 12},  // (bar 1)
		{13, 16}, // "s"
		{0, 17},  // whole form
	}, spans)
}

func TestReadOne_QuoteForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want Form
	}{
		{"'x", list(sym("quote"), sym("x"))},
		{"`(a ,b ,@c)", list(sym("`"), list(sym("a"), list(sym(","), sym("b")), list(sym(",@"), sym("c"))))},
		{"#'car", list(sym("function"), sym("car"))},
		{"'()", list(sym("quote"), Nil{})},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			f, end, entries := readOne(t, tt.src)
			assert.True(t, Equal(tt.want, f), "got %s", f)
			assert.Equal(t, len(tt.src), end)
			last := entries[len(entries)-1]
			assert.Equal(t, Span{0, len(tt.src)}, last.Span)
		})
	}
}

func TestReadOne_DottedPairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want Form
	}{
		{"(a . b)", &Pair{Items: []Form{sym("a")}, Tail: sym("b")}},
		{"(a b . 3)", &Pair{Items: []Form{sym("a"), sym("b")}, Tail: Int(3)}},
		{"(a . nil)", list(sym("a"))},
		{"(a . ())", list(sym("a"))},
		{"(a . (b c))", list(sym("a"), sym("b"), sym("c"))},
		{"(a . (b . c))", &Pair{Items: []Form{sym("a"), sym("b")}, Tail: sym("c")}},
		{"(a .b)", list(sym("a"), sym(".b"))},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			f, _, _ := readOne(t, tt.src)
			assert.True(t, Equal(tt.want, f), "got %s, want %s", f, tt.want)
		})
	}
}

func TestReadOne_Vectors(t *testing.T) {
	t.Parallel()
	f, _, _ := readOne(t, "[1 {a b}]")
	want := &Vector{Open: '[', Items: []Form{Int(1), &Vector{Open: '{', Items: []Form{sym("a"), sym("b")}}}}
	assert.True(t, Equal(want, f), "got %s", f)
	assert.Equal(t, "[1 {a b}]", f.String())
}

func TestReadOne_HashSyntax(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want Form
	}{
		{"#s(hash-table data (a 1))", &Vector{Prefix: "#s", Open: '(', Items: []Form{
			sym("hash-table"), sym("data"), list(sym("a"), Int(1)),
		}}},
		{"#{1 2}", &Vector{Prefix: "#", Open: '{', Items: []Form{Int(1), Int(2)}}},
		{"#[a b]", &Vector{Prefix: "#", Open: '[', Items: []Form{sym("a"), sym("b")}}},
		{"#(foo %)", &Vector{Prefix: "#", Open: '(', Items: []Form{sym("foo"), sym("%")}}},
		{"#?(:clj 1)", &Vector{Prefix: "#?", Open: '(', Items: []Form{sym(":clj"), Int(1)}}},
		{"#+sbcl (foo)", list(sym("#+"), sym("sbcl"), list(sym("foo")))},
		{"#-(or a b) x", list(sym("#-"), list(sym("or"), sym("a"), sym("b")), sym("x"))},
		{"#.(foo)", list(sym("#."), list(sym("foo")))},
		{"(a #_(x) b)", list(sym("a"), sym("b"))},
		{"(a #;(x) b)", list(sym("a"), sym("b"))},
		{"(a #_b)", list(sym("a"))},
		{"#_x #_y z", sym("z")},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			t.Parallel()
			f, end, entries := readOne(t, tt.src)
			assert.True(t, Equal(tt.want, f), "got %s, want %s", f, tt.want)
			assert.Equal(t, len(tt.src), end)
			last := entries[len(entries)-1]
			assert.Equal(t, end, last.Span.End)
		})
	}
}

func TestReadOne_DiscardedFormLeavesNoSpans(t *testing.T) {
	t.Parallel()
	_, _, entries := readOne(t, "(a #_(x y) b)")
	var got []string
	for _, e := range entries {
		got = append(got, e.Form.String())
	}
	assert.Equal(t, []string{"a", "b", "(a b)"}, got)
}

// =============================================================================
// Signals and errors
// =============================================================================

func TestReadOne_BoundaryAndEnd(t *testing.T) {
	t.Parallel()

	_, end, entries, err := ReadOne([]byte("  ) x"), 0)
	assert.ErrorIs(t, err, ErrBoundary)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 0, end)
	assert.Nil(t, entries)

	_, _, _, err = ReadOne([]byte("  ; only a comment"), 0)
	assert.ErrorIs(t, err, ErrEndOfInput)

	_, _, _, err = ReadOne([]byte("abc"), 3)
	assert.ErrorIs(t, err, ErrEndOfInput)
}

func TestReadOne_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		offset int
	}{
		{"unterminated list", "(foo (bar)", 0},
		{"unterminated string", `(a "bc`, 3},
		{"mismatched closer", "(a ]", 3},
		{"lone dot", ". a", 0},
		{"dot first", "( . a)", 2},
		{"dot in vector", "[a . b]", 3},
		{"two forms after dot", "(a . b c)", 7},
		{"nothing after dot", "(a . )", 4},
		{"quote before closer", "(a ')", 3},
		{"quote at end", "'", 0},
		{"bad hash", "#<buffer>", 0},
		{"unterminated regex", `#"abc`, 0},
		{"nothing to discard", "#_", 0},
		{"feature without form", "#+sbcl", 0},
		{"dot in hash list", "#(a . b)", 4},
		{"incomplete modifier", `?\C-`, 2},
		{"hyper in string", `"\H-a"`, 1},
		{"unterminated block comment", "#| never closed", 0},
		{"unknown char name", `#\bogus`, 0},
		{"trailing escape", `foo\`, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f, end, entries, err := ReadOne([]byte(tt.src), 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.offset, se.Offset)
			assert.Nil(t, f)
			assert.Equal(t, 0, end)
			assert.Nil(t, entries)
		})
	}
}

func TestReadOne_StartOutOfRange(t *testing.T) {
	t.Parallel()
	_, _, _, err := ReadOne([]byte("abc"), 4)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestReadOne_DepthLimit(t *testing.T) {
	t.Parallel()
	src := make([]byte, 0, 2*(maxDepth+1))
	for i := 0; i <= maxDepth; i++ {
		src = append(src, '(')
	}
	for i := 0; i <= maxDepth; i++ {
		src = append(src, ')')
	}
	_, _, _, err := ReadOne(src, 0)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Contains(t, err.Error(), "nesting deeper")
}

// =============================================================================
// Printing
// =============================================================================

func TestForm_StringReadsBack(t *testing.T) {
	t.Parallel()

	srcs := []string{
		`(defun foo (x) "doc \"q\"" (bar x 1 2.5 ?a))`,
		`(a b . c)`,
		`[1 {k v}]`,
		`(quote (x))`,
		`(#t #f nil)`,
		`(\12 \. foo\ bar)`,
		`(1.0 -3 1e+30)`,
		`#s(a [b] {c} #{d})`,
		`(?\C-x ?\M-a ?\s-\C-% ?\M-\()`,
		`(#+sbcl (f) #:g)`,
	}
	for _, src := range srcs {
		t.Run(src, func(t *testing.T) {
			t.Parallel()
			f, _, _ := readOne(t, src)
			again, _, _ := readOne(t, f.String())
			assert.True(t, Equal(f, again), "%s printed as %s", src, f.String())
		})
	}
}
