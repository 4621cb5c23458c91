package callsite

import (
	"context"
	"sort"
	"strings"
)

// SymbolProvider lists candidate target symbols, for example to drive
// completion in an interactive front end.
type SymbolProvider interface {
	Symbols(ctx context.Context, prefix string) ([]string, error)
}

// StaticSymbols is a fixed SymbolProvider.
type StaticSymbols []string

// Symbols returns the names starting with prefix, sorted and de-duplicated.
func (s StaticSymbols) Symbols(_ context.Context, prefix string) ([]string, error) {
	seen := make(map[string]bool, len(s))
	var out []string
	for _, name := range s {
		if strings.HasPrefix(name, prefix) && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Compile-time checks.
var (
	_ SymbolProvider = StaticSymbols(nil)
	_ SymbolProvider = (*QueryBuilder)(nil)
	_ Source         = StaticSource(nil)
	_ Source         = DirSource{}
)
