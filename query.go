package callsite

import (
	"context"
	"fmt"

	"github.com/jward/callsite/internal/store"
)

// QueryBuilder provides the query API over an index built by Engine.
type QueryBuilder struct {
	store *store.Store
}

// NewQueryBuilder creates a QueryBuilder over an existing Store.
func NewQueryBuilder(s *store.Store) *QueryBuilder {
	return &QueryBuilder{store: s}
}

// Location represents a source code position range. Lines and columns are
// 0-based.
type Location struct {
	File      string
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Callers returns every indexed call-site of symbol, ordered by file path and
// then source offset. Each entry names its enclosing definition, if any.
func (q *QueryBuilder) Callers(symbol string) ([]*Caller, error) {
	out, err := q.store.CallersOf(symbol)
	if err != nil {
		return nil, fmt.Errorf("callers: %w", err)
	}
	return out, nil
}

// CallersInFile is Callers restricted to one indexed file. An unknown file
// yields no results.
func (q *QueryBuilder) CallersInFile(symbol, path string) ([]*Caller, error) {
	f, err := q.store.FileByPath(path)
	if err != nil {
		return nil, fmt.Errorf("callers in file: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	out, err := q.store.CallersOfInFile(symbol, f.ID)
	if err != nil {
		return nil, fmt.Errorf("callers in file: %w", err)
	}
	return out, nil
}

// Callees returns the call-sites inside every definition named name.
func (q *QueryBuilder) Callees(name string) ([]*Caller, error) {
	defs, err := q.store.DefinitionsByName(name)
	if err != nil {
		return nil, fmt.Errorf("callees: %w", err)
	}
	var out []*Caller
	for _, d := range defs {
		sites, err := q.store.CalleesOf(d.ID)
		if err != nil {
			return nil, fmt.Errorf("callees: %w", err)
		}
		out = append(out, sites...)
	}
	return out, nil
}

// Definitions returns the locations where name is defined.
func (q *QueryBuilder) Definitions(name string) ([]Location, error) {
	defs, err := q.store.DefinitionsByName(name)
	if err != nil {
		return nil, fmt.Errorf("definitions: %w", err)
	}
	locs := make([]Location, 0, len(defs))
	paths := make(map[int64]string)
	for _, d := range defs {
		path, ok := paths[d.FileID]
		if !ok {
			f, err := q.store.FileByID(d.FileID)
			if err != nil {
				return nil, fmt.Errorf("definitions: lookup file: %w", err)
			}
			if f != nil {
				path = f.Path
			}
			paths[d.FileID] = path
		}
		locs = append(locs, Location{
			File:      path,
			StartLine: d.StartLine,
			StartCol:  d.StartCol,
			EndLine:   d.EndLine,
			EndCol:    d.EndCol,
		})
	}
	return locs, nil
}

// DefinitionAt returns the narrowest definition whose span contains the
// given position, or nil.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) (*Definition, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("definition at: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}

	d, err := q.store.DefinitionAt(f.ID, line, col)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	return d, nil
}

// Symbols returns every callee or defined name starting with prefix, sorted.
// It makes the index a SymbolProvider.
func (q *QueryBuilder) Symbols(_ context.Context, prefix string) ([]string, error) {
	counts, err := q.store.SymbolCounts(prefix)
	if err != nil {
		return nil, fmt.Errorf("symbols: %w", err)
	}
	names := make([]string, len(counts))
	for i, c := range counts {
		names[i] = c.Name
	}
	return names, nil
}

// SymbolCounts is Symbols with per-name call and definition counts.
func (q *QueryBuilder) SymbolCounts(prefix string) ([]*SymbolCount, error) {
	out, err := q.store.SymbolCounts(prefix)
	if err != nil {
		return nil, fmt.Errorf("symbol counts: %w", err)
	}
	return out, nil
}

// Files returns every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	out, err := q.store.Files()
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return out, nil
}

// Summary returns per-dialect counts.
func (q *QueryBuilder) Summary() ([]*DialectSummary, error) {
	out, err := q.store.Summary()
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return out, nil
}
