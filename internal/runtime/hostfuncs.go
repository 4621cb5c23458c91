package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"

	"github.com/jward/callsite"
	"github.com/jward/callsite/internal/sexp"
)

// makeReadFormsFn creates the "read_forms" host function.
//
// read_forms(source) → {forms: [{form, kind, text, start, end, line, col}], degraded, error}
//
// degraded is true when reading stopped on malformed text; forms then holds
// what was read before it.
func makeReadFormsFn() *object.Builtin {
	return object.NewBuiltin("read_forms", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("read_forms", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("read_forms: source: %v", err)
		}

		doc := sexp.ReadDocument([]byte(src))
		forms := make([]object.Object, 0, len(doc.Forms))
		for i, f := range doc.Forms {
			sp := doc.FormSpans[i]
			pos := doc.Position(sp.Start)
			forms = append(forms, object.NewMap(map[string]object.Object{
				"form":  object.NewString(f.String()),
				"kind":  object.NewString(kindOf(f)),
				"text":  object.NewString(doc.Slice(sp)),
				"start": object.NewInt(int64(sp.Start)),
				"end":   object.NewInt(int64(sp.End)),
				"line":  object.NewInt(int64(pos.Line)),
				"col":   object.NewInt(int64(pos.Col)),
			}))
		}
		readErr := ""
		if doc.Err != nil {
			readErr = doc.Err.Error()
		}
		return object.NewMap(map[string]object.Object{
			"forms":    object.NewList(forms),
			"degraded": object.NewBool(doc.Degraded()),
			"error":    object.NewString(readErr),
		})
	})
}

// makeFindCallsFn creates the "find_calls" host function.
//
// find_calls(source, symbol) → [{form, text, start, end, start_line, start_col, end_line, end_col}]
//
// symbol is read the way a target is on the command line, so "foo\ bar"
// names the symbol "foo bar".
func makeFindCallsFn() *object.Builtin {
	return object.NewBuiltin("find_calls", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("find_calls", 2, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("find_calls: source: %v", err)
		}
		sym, err := toString(args[1])
		if err != nil {
			return object.Errorf("find_calls: symbol: %v", err)
		}
		target, err := callsite.ParseTarget(sym)
		if err != nil {
			return object.Errorf("find_calls: %v", err)
		}

		results := callsite.Search([]callsite.Document{{ID: "<inline>", Text: []byte(src)}}, target)
		matches := []object.Object{}
		for _, r := range results {
			for _, m := range r.Matches {
				matches = append(matches, object.NewMap(map[string]object.Object{
					"form":       object.NewString(m.Form.String()),
					"text":       object.NewString(m.Text),
					"start":      object.NewInt(int64(m.Span.Start)),
					"end":        object.NewInt(int64(m.Span.End)),
					"start_line": object.NewInt(int64(m.Start.Line)),
					"start_col":  object.NewInt(int64(m.Start.Col)),
					"end_line":   object.NewInt(int64(m.End.Line)),
					"end_col":    object.NewInt(int64(m.End.Col)),
				}))
			}
		}
		return object.NewList(matches)
	})
}

// makeFormSpansFn creates the "form_spans" host function.
//
// form_spans(source) → [{id, form, kind, start, end}]
//
// One entry per node read, in the order the reader finished them: children
// before their parent.
func makeFormSpansFn() *object.Builtin {
	return object.NewBuiltin("form_spans", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("form_spans", 1, len(args))
		}
		src, err := toString(args[0])
		if err != nil {
			return object.Errorf("form_spans: source: %v", err)
		}

		doc := sexp.ReadDocument([]byte(src))
		entries := doc.Spans.Entries()
		out := make([]object.Object, 0, len(entries))
		for _, e := range entries {
			out = append(out, object.NewMap(map[string]object.Object{
				"id":    object.NewInt(int64(e.ID)),
				"form":  object.NewString(e.Form.String()),
				"kind":  object.NewString(kindOf(e.Form)),
				"start": object.NewInt(int64(e.Span.Start)),
				"end":   object.NewInt(int64(e.Span.End)),
			}))
		}
		return object.NewList(out)
	})
}

// makeEmitFn creates the "emit" host function, the scripts' report output.
//
// emit(values...) writes the values separated by spaces plus a newline.
func makeEmitFn(w io.Writer) *object.Builtin {
	return object.NewBuiltin("emit", func(ctx context.Context, args ...object.Object) object.Object {
		parts := make([]string, len(args))
		for i, a := range args {
			if s, ok := a.(*object.String); ok {
				parts[i] = s.Value()
			} else {
				parts[i] = a.Inspect()
			}
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return object.Errorf("emit: %v", err)
		}
		return object.Nil
	})
}

func kindOf(f sexp.Form) string {
	switch f.(type) {
	case sexp.Symbol:
		return "symbol"
	case sexp.Int:
		return "int"
	case sexp.Float:
		return "float"
	case sexp.String:
		return "string"
	case sexp.Char:
		return "char"
	case sexp.Bool:
		return "bool"
	case sexp.Nil:
		return "nil"
	case *sexp.List:
		return "list"
	case *sexp.Pair:
		return "pair"
	case *sexp.Vector:
		return "vector"
	}
	return "unknown"
}

// logObject provides log.Debug/Info/Warn/Error methods for Risor scripts.
type logObject struct {
	log zerolog.Logger
}

func (l *logObject) Debug(msg string) { l.log.Debug().Msg(msg) }

func (l *logObject) Info(msg string) { l.log.Info().Msg(msg) }

func (l *logObject) Warn(msg string) { l.log.Warn().Msg(msg) }

func (l *logObject) Error(msg string) { l.log.Error().Msg(msg) }

// StringList converts command-line style arguments to a Risor list, for use
// as the "args" global.
func StringList(vals []string) *object.List {
	items := make([]object.Object, len(vals))
	for i, v := range vals {
		items[i] = object.NewString(v)
	}
	return object.NewList(items)
}
