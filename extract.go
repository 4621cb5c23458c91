package callsite

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/jward/callsite/internal/sexp"
	"github.com/jward/callsite/internal/store"
)

// Extractor records what one read file contains. ds is either the Store
// itself (serial indexing) or a per-file BatchedStore (parallel indexing).
type Extractor interface {
	Extract(ctx context.Context, file *store.File, doc *sexp.Document, ds store.DataStore) error
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, file *store.File, doc *sexp.Document, ds store.DataStore) error

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, file *store.File, doc *sexp.Document, ds store.DataStore) error {
	return f(ctx, file, doc, ds)
}

// CallExtractor records every symbol-headed list or dotted pair as a call
// site (the same forms FindCalls would match for that symbol) and every
// definer form of the file's dialect as a definition. Each call site links to
// its innermost enclosing definition and call site.
type CallExtractor struct{}

// snippetLen bounds the stored text of a call site.
const snippetLen = 160

type frame struct {
	depth int
	id    int64
}

// Extract walks doc's top-level forms in source order.
func (CallExtractor) Extract(ctx context.Context, file *store.File, doc *sexp.Document, ds store.DataStore) error {
	dialect, _ := sexp.DialectByName(file.Dialect)
	for _, top := range doc.Forms {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			defs, calls []frame
			firstErr    error
		)
		walkCalls(top, 0, func(f sexp.Form, depth int) {
			if firstErr != nil {
				return
			}
			// Pre-order: frames at this depth or deeper are finished siblings.
			defs = popFrames(defs, depth)
			calls = popFrames(calls, depth)

			sp, ok := doc.Spans.SpanOf(f)
			if !ok {
				return
			}
			start, end := doc.Position(sp.Start), doc.Position(sp.End)
			enclosingDef := topID(defs)

			if l, isList := f.(*sexp.List); isList {
				if kind, name, ok := dialect.Definition(l); ok {
					id, err := ds.InsertDefinition(&store.Definition{
						FileID:      file.ID,
						Name:        name,
						Kind:        kind,
						StartOffset: sp.Start,
						EndOffset:   sp.End,
						StartLine:   start.Line,
						StartCol:    start.Col,
						EndLine:     end.Line,
						EndCol:      end.Col,
					})
					if err != nil {
						firstErr = err
						return
					}
					defs = append(defs, frame{depth: depth, id: id})
				}
			}

			callee, ok := calleeName(f)
			if !ok {
				return
			}
			_, improper := f.(*sexp.Pair)
			id, err := ds.InsertCallSite(&store.CallSite{
				FileID:       file.ID,
				DefinitionID: enclosingDef,
				ParentID:     topID(calls),
				Callee:       callee,
				StartOffset:  sp.Start,
				EndOffset:    sp.End,
				StartLine:    start.Line,
				StartCol:     start.Col,
				EndLine:      end.Line,
				EndCol:       end.Col,
				Depth:        depth,
				Improper:     improper,
				Text:         snippet(doc.Slice(sp)),
			})
			if err != nil {
				firstErr = err
				return
			}
			calls = append(calls, frame{depth: depth, id: id})
		})
		if firstErr != nil {
			return firstErr
		}
	}
	return nil
}

func popFrames(stack []frame, depth int) []frame {
	for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
		stack = stack[:len(stack)-1]
	}
	return stack
}

func topID(stack []frame) *int64 {
	if len(stack) == 0 {
		return nil
	}
	id := stack[len(stack)-1].id
	return &id
}

// snippet returns the first line of text, cut to snippetLen bytes on a rune
// boundary.
func snippet(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = strings.TrimRight(text[:i], " \t\r") + " …"
	}
	if len(text) <= snippetLen {
		return text
	}
	cut := snippetLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "…"
}
