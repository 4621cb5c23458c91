package store

import (
	"fmt"
	"strings"
)

// SymbolCounts returns every name that appears as a callee or a definition,
// with counts, ordered by name. A non-empty prefix restricts the names.
func (s *Store) SymbolCounts(prefix string) ([]*SymbolCount, error) {
	pattern := escapeLike(prefix) + "%"
	rows, err := s.db.Query(`
		SELECT name, SUM(calls), SUM(defs) FROM (
			SELECT callee AS name, 1 AS calls, 0 AS defs FROM call_sites WHERE callee LIKE ? ESCAPE '\'
			UNION ALL
			SELECT name, 0, 1 FROM definitions WHERE name LIKE ? ESCAPE '\'
		) GROUP BY name ORDER BY name`, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("symbol counts: %w", err)
	}
	defer rows.Close()
	var out []*SymbolCount
	for rows.Next() {
		sc := &SymbolCount{}
		if err := rows.Scan(&sc.Name, &sc.Calls, &sc.Definitions); err != nil {
			return nil, fmt.Errorf("scan symbol count: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// Summary returns per-dialect counts ordered by dialect name.
func (s *Store) Summary() ([]*DialectSummary, error) {
	rows, err := s.db.Query(`
		SELECT f.dialect,
		       COUNT(*),
		       SUM(CASE WHEN f.malformed THEN 1 ELSE 0 END),
		       SUM(f.form_count),
		       SUM(COALESCE(c.n, 0)),
		       SUM(COALESCE(d.n, 0))
		FROM files f
		LEFT JOIN (SELECT file_id, COUNT(*) AS n FROM call_sites GROUP BY file_id) c ON c.file_id = f.id
		LEFT JOIN (SELECT file_id, COUNT(*) AS n FROM definitions GROUP BY file_id) d ON d.file_id = f.id
		GROUP BY f.dialect
		ORDER BY f.dialect`)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()
	var out []*DialectSummary
	for rows.Next() {
		ds := &DialectSummary{}
		if err := rows.Scan(&ds.Dialect, &ds.Files, &ds.Malformed, &ds.Forms,
			&ds.CallSites, &ds.Definitions); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// escapeLike escapes LIKE wildcards so prefix matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
