package callsite

import (
	"errors"
	"fmt"

	"github.com/jward/callsite/internal/sexp"
)

// ErrInvalidTarget is returned by ParseTarget when the text is not exactly
// one atom.
var ErrInvalidTarget = errors.New("callsite: target must be a single atom")

// FindCalls returns every call-site of target inside form: each list or
// dotted pair whose first element equals target. Matches come in source
// order, an outer call before the calls nested in its arguments.
//
// Only proper lists are searched recursively. A dotted pair can itself
// match, but its elements are not inspected. Vectors and atoms never match.
func FindCalls(form sexp.Form, target sexp.Form) []sexp.Form {
	var out []sexp.Form
	walkCalls(form, 0, func(call sexp.Form, _ int) {
		if sexp.Equal(headOf(call), target) {
			out = append(out, call)
		}
	})
	return out
}

// FindCallsInDocument concatenates FindCalls over a document's top-level
// forms.
func FindCallsInDocument(forms []sexp.Form, target sexp.Form) []sexp.Form {
	var out []sexp.Form
	for _, f := range forms {
		out = append(out, FindCalls(f, target)...)
	}
	return out
}

// walkCalls visits every list and dotted pair reachable from f in pre-order.
// depth is the number of enclosing lists. Dotted pairs are visited but not
// descended into.
func walkCalls(f sexp.Form, depth int, visit func(call sexp.Form, depth int)) {
	switch v := f.(type) {
	case *sexp.List:
		visit(v, depth)
		for _, item := range v.Items {
			walkCalls(item, depth+1, visit)
		}
	case *sexp.Pair:
		visit(v, depth)
	}
}

// headOf returns the first element of a list or pair.
func headOf(f sexp.Form) sexp.Form {
	switch v := f.(type) {
	case *sexp.List:
		return v.Head()
	case *sexp.Pair:
		return v.Head()
	}
	return nil
}

// calleeName returns the head symbol of a call, if the head is a symbol.
func calleeName(call sexp.Form) (string, bool) {
	sym, ok := headOf(call).(sexp.Symbol)
	return string(sym), ok
}

// ParseTarget reads s as the symbol (or other atom) to search for. Symbols
// read exactly as they would inside a source file, so `foo\ bar` names the
// symbol "foo bar".
func ParseTarget(s string) (sexp.Form, error) {
	text := []byte(s)
	f, end, _, err := sexp.ReadOne(text, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidTarget, s, err)
	}
	if !sexp.IsAtom(f) {
		return nil, fmt.Errorf("%w: %q is a compound form", ErrInvalidTarget, s)
	}
	if _, _, _, err := sexp.ReadOne(text, end); !errors.Is(err, sexp.ErrEndOfInput) {
		return nil, fmt.Errorf("%w: %q has trailing text", ErrInvalidTarget, s)
	}
	return f, nil
}
