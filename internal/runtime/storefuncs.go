package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/callsite/internal/store"
)

// Index query host functions. Each returns plain Risor lists and maps so
// scripts never handle Go struct pointers.

// callers(symbol) → [{path, caller, callee, start_line, start_col, end_line, end_col, depth, improper, text}]
func makeCallersFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("callers", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("callers", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("callers: %v", err)
		}
		rows, err := s.CallersOf(name)
		if err != nil {
			return object.Errorf("callers: %v", err)
		}
		return callersToList(rows)
	})
}

// callees(definition_name) → same shape as callers
func makeCalleesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("callees", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("callees", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("callees: %v", err)
		}
		defs, err := s.DefinitionsByName(name)
		if err != nil {
			return object.Errorf("callees: %v", err)
		}
		var rows []*store.CallerInfo
		for _, d := range defs {
			sites, err := s.CalleesOf(d.ID)
			if err != nil {
				return object.Errorf("callees: %v", err)
			}
			rows = append(rows, sites...)
		}
		return callersToList(rows)
	})
}

// definitions(name) → [{id, file_id, name, kind, start_line, start_col, end_line, end_col}]
func makeDefinitionsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("definitions", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("definitions", 1, len(args))
		}
		name, err := toString(args[0])
		if err != nil {
			return object.Errorf("definitions: %v", err)
		}
		defs, err := s.DefinitionsByName(name)
		if err != nil {
			return object.Errorf("definitions: %v", err)
		}
		out := make([]object.Object, 0, len(defs))
		for _, d := range defs {
			out = append(out, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(d.ID),
				"file_id":    object.NewInt(d.FileID),
				"name":       object.NewString(d.Name),
				"kind":       object.NewString(d.Kind),
				"start_line": object.NewInt(int64(d.StartLine)),
				"start_col":  object.NewInt(int64(d.StartCol)),
				"end_line":   object.NewInt(int64(d.EndLine)),
				"end_col":    object.NewInt(int64(d.EndCol)),
			}))
		}
		return object.NewList(out)
	})
}

// symbols(prefix?) → [{name, calls, definitions}]
func makeSymbolsFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("symbols", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) > 1 {
			return object.Errorf("symbols: expected at most 1 argument, got %d", len(args))
		}
		prefix := ""
		if len(args) == 1 {
			p, err := toString(args[0])
			if err != nil {
				return object.Errorf("symbols: %v", err)
			}
			prefix = p
		}
		counts, err := s.SymbolCounts(prefix)
		if err != nil {
			return object.Errorf("symbols: %v", err)
		}
		out := make([]object.Object, 0, len(counts))
		for _, c := range counts {
			out = append(out, object.NewMap(map[string]object.Object{
				"name":        object.NewString(c.Name),
				"calls":       object.NewInt(int64(c.Calls)),
				"definitions": object.NewInt(int64(c.Definitions)),
			}))
		}
		return object.NewList(out)
	})
}

// files() → [{id, path, dialect, size, forms, malformed, read_error}]
func makeFilesFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("files", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("files", 0, len(args))
		}
		files, err := s.Files()
		if err != nil {
			return object.Errorf("files: %v", err)
		}
		out := make([]object.Object, 0, len(files))
		for _, f := range files {
			out = append(out, object.NewMap(map[string]object.Object{
				"id":         object.NewInt(f.ID),
				"path":       object.NewString(f.Path),
				"dialect":    object.NewString(f.Dialect),
				"size":       object.NewInt(f.Size),
				"forms":      object.NewInt(int64(f.FormCount)),
				"malformed":  object.NewBool(f.Malformed),
				"read_error": object.NewString(f.ReadError),
			}))
		}
		return object.NewList(out)
	})
}

// summary() → [{dialect, files, malformed, forms, call_sites, definitions}]
func makeSummaryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("summary", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 0 {
			return object.NewArgsError("summary", 0, len(args))
		}
		rows, err := s.Summary()
		if err != nil {
			return object.Errorf("summary: %v", err)
		}
		out := make([]object.Object, 0, len(rows))
		for _, d := range rows {
			out = append(out, object.NewMap(map[string]object.Object{
				"dialect":     object.NewString(d.Dialect),
				"files":       object.NewInt(int64(d.Files)),
				"malformed":   object.NewInt(int64(d.Malformed)),
				"forms":       object.NewInt(int64(d.Forms)),
				"call_sites":  object.NewInt(int64(d.CallSites)),
				"definitions": object.NewInt(int64(d.Definitions)),
			}))
		}
		return object.NewList(out)
	})
}

// makeDBQueryFn creates the "db_query" host function.
//
// db_query(sql, args...) → [{column: value}]
//
// Only SELECT statements are accepted.
func makeDBQueryFn(s *store.Store) *object.Builtin {
	return object.NewBuiltin("db_query", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.Errorf("db_query: expected at least 1 argument (sql), got %d", len(args))
		}
		sqlStr, err := toString(args[0])
		if err != nil {
			return object.Errorf("db_query: %v", err)
		}

		// Only allow SELECT statements.
		trimmed := strings.TrimSpace(strings.ToUpper(sqlStr))
		if !strings.HasPrefix(trimmed, "SELECT") {
			return object.Errorf("db_query: only SELECT queries are allowed")
		}

		// Convert remaining args to query parameters.
		var queryArgs []any
		for _, arg := range args[1:] {
			switch v := arg.(type) {
			case *object.Int:
				queryArgs = append(queryArgs, v.Value())
			case *object.Float:
				queryArgs = append(queryArgs, v.Value())
			case *object.String:
				queryArgs = append(queryArgs, v.Value())
			case *object.Bool:
				queryArgs = append(queryArgs, v.Value())
			case *object.NilType:
				queryArgs = append(queryArgs, nil)
			default:
				queryArgs = append(queryArgs, fmt.Sprintf("%v", arg))
			}
		}

		rows, queryErr := s.DB().QueryContext(ctx, sqlStr, queryArgs...)
		if queryErr != nil {
			return object.Errorf("db_query: %v", queryErr)
		}
		defer rows.Close()

		cols, colErr := rows.Columns()
		if colErr != nil {
			return object.Errorf("db_query: columns: %v", colErr)
		}

		var results []object.Object
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return object.Errorf("db_query: scan: %v", err)
			}
			row := make(map[string]object.Object, len(cols))
			for i, col := range cols {
				row[col] = sqlValueToObject(values[i])
			}
			results = append(results, object.NewMap(row))
		}
		if err := rows.Err(); err != nil {
			return object.Errorf("db_query: rows: %v", err)
		}
		if results == nil {
			results = []object.Object{}
		}
		return object.NewList(results)
	})
}

// sqlValueToObject converts a database value to a Risor object.
func sqlValueToObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	switch val := v.(type) {
	case int64:
		return object.NewInt(val)
	case float64:
		return object.NewFloat(val)
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case []byte:
		return object.NewString(string(val))
	default:
		return object.NewString(fmt.Sprintf("%v", val))
	}
}

// callersToList converts call sites to a Risor list of maps.
func callersToList(rows []*store.CallerInfo) object.Object {
	out := make([]object.Object, 0, len(rows))
	for _, c := range rows {
		out = append(out, object.NewMap(map[string]object.Object{
			"path":       object.NewString(c.Path),
			"caller":     object.NewString(c.Caller),
			"callee":     object.NewString(c.Callee),
			"start_line": object.NewInt(int64(c.StartLine)),
			"start_col":  object.NewInt(int64(c.StartCol)),
			"end_line":   object.NewInt(int64(c.EndLine)),
			"end_col":    object.NewInt(int64(c.EndCol)),
			"depth":      object.NewInt(int64(c.Depth)),
			"improper":   object.NewBool(c.Improper),
			"text":       object.NewString(c.Text),
		}))
	}
	return object.NewList(out)
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}
