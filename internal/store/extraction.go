package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// --- File operations ---

const fileCols = `id, path, dialect, hash, size, form_count, malformed, COALESCE(read_error, ''), last_indexed`

func (s *Store) InsertFile(f *File) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO files (path, dialect, hash, size, form_count, malformed, read_error, last_indexed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Path, f.Dialect, f.Hash, f.Size, f.FormCount, f.Malformed, f.ReadError, f.LastIndexed,
	)
	if err != nil {
		return 0, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	f.ID = id
	return id, nil
}

// UpdateFileStats records what reading the file produced.
func (s *Store) UpdateFileStats(f *File) error {
	_, err := s.db.Exec(
		"UPDATE files SET form_count = ?, malformed = ?, read_error = ? WHERE id = ?",
		f.FormCount, f.Malformed, f.ReadError, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update file stats: %w", err)
	}
	return nil
}

func scanFile(scanner interface{ Scan(...any) error }) (*File, error) {
	f := &File{}
	err := scanner.Scan(&f.ID, &f.Path, &f.Dialect, &f.Hash, &f.Size, &f.FormCount,
		&f.Malformed, &f.ReadError, &f.LastIndexed)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) FileByPath(path string) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE path = ?", path))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by path: %w", err)
	}
	return f, nil
}

func (s *Store) FileByID(id int64) (*File, error) {
	f, err := scanFile(s.db.QueryRow("SELECT "+fileCols+" FROM files WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("file by id: %w", err)
	}
	return f, nil
}

func (s *Store) queryFiles(query string, args ...any) ([]*File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Files returns every indexed file ordered by path.
func (s *Store) Files() ([]*File, error) {
	files, err := s.queryFiles("SELECT " + fileCols + " FROM files ORDER BY path")
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return files, nil
}

func (s *Store) FilesByDialect(dialect string) ([]*File, error) {
	files, err := s.queryFiles("SELECT "+fileCols+" FROM files WHERE dialect = ? ORDER BY path", dialect)
	if err != nil {
		return nil, fmt.Errorf("files by dialect: %w", err)
	}
	return files, nil
}

// --- Definition operations ---

func (s *Store) InsertDefinition(d *Definition) (int64, error) {
	res, err := s.db.Exec(insertDefinitionSQL,
		d.FileID, d.Name, d.Kind, d.StartOffset, d.EndOffset,
		d.StartLine, d.StartCol, d.EndLine, d.EndCol,
	)
	if err != nil {
		return 0, fmt.Errorf("insert definition: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

const insertDefinitionSQL = `INSERT INTO definitions (file_id, name, kind, start_offset, end_offset,
	start_line, start_col, end_line, end_col)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// DefinitionCols is the column list for definition queries.
const DefinitionCols = `id, file_id, name, kind, start_offset, end_offset,
	start_line, start_col, end_line, end_col`

func scanDefinition(scanner interface{ Scan(...any) error }) (*Definition, error) {
	d := &Definition{}
	err := scanner.Scan(&d.ID, &d.FileID, &d.Name, &d.Kind, &d.StartOffset, &d.EndOffset,
		&d.StartLine, &d.StartCol, &d.EndLine, &d.EndCol)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Store) queryDefinitions(query string, args ...any) ([]*Definition, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var defs []*Definition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, d)
	}
	return defs, rows.Err()
}

func (s *Store) DefinitionsByName(name string) ([]*Definition, error) {
	return s.queryDefinitions(
		"SELECT "+DefinitionCols+" FROM definitions WHERE name = ? ORDER BY file_id, start_offset", name)
}

func (s *Store) DefinitionsByFile(fileID int64) ([]*Definition, error) {
	return s.queryDefinitions(
		"SELECT "+DefinitionCols+" FROM definitions WHERE file_id = ? ORDER BY start_offset", fileID)
}

// DefinitionAt returns the narrowest definition in fileID whose span
// contains the 0-based position, or nil.
func (s *Store) DefinitionAt(fileID int64, line, col int) (*Definition, error) {
	row := s.db.QueryRow(
		`SELECT `+DefinitionCols+` FROM definitions
		 WHERE file_id = ?
		   AND (start_line < ? OR (start_line = ? AND start_col <= ?))
		   AND (end_line > ? OR (end_line = ? AND end_col > ?))
		 ORDER BY (end_offset - start_offset) ASC
		 LIMIT 1`,
		fileID,
		line, line, col,
		line, line, col,
	)
	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// --- Call site operations ---

func (s *Store) InsertCallSite(c *CallSite) (int64, error) {
	res, err := s.db.Exec(insertCallSiteSQL,
		c.FileID, c.DefinitionID, c.ParentID, c.Callee, c.StartOffset, c.EndOffset,
		c.StartLine, c.StartCol, c.EndLine, c.EndCol, c.Depth, c.Improper, c.Text,
	)
	if err != nil {
		return 0, fmt.Errorf("insert call site: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return id, nil
}

const insertCallSiteSQL = `INSERT INTO call_sites (file_id, definition_id, parent_id, callee,
	start_offset, end_offset, start_line, start_col, end_line, end_col, depth, improper, text)
 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// CallSiteCols is the column list for call site queries.
const CallSiteCols = `id, file_id, definition_id, parent_id, callee, start_offset, end_offset,
	start_line, start_col, end_line, end_col, depth, improper, text`

func scanCallSite(scanner interface{ Scan(...any) error }, extra ...any) (*CallSite, error) {
	c := &CallSite{}
	dest := []any{&c.ID, &c.FileID, &c.DefinitionID, &c.ParentID, &c.Callee,
		&c.StartOffset, &c.EndOffset, &c.StartLine, &c.StartCol, &c.EndLine, &c.EndCol,
		&c.Depth, &c.Improper, &c.Text}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) CallSitesByFile(fileID int64) ([]*CallSite, error) {
	rows, err := s.db.Query(
		"SELECT "+CallSiteCols+" FROM call_sites WHERE file_id = ? ORDER BY start_offset, id", fileID)
	if err != nil {
		return nil, fmt.Errorf("call sites by file: %w", err)
	}
	defer rows.Close()
	var sites []*CallSite
	for rows.Next() {
		c, err := scanCallSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan call site: %w", err)
		}
		sites = append(sites, c)
	}
	return sites, rows.Err()
}

// callerInfoSQL selects call sites joined with their file path and enclosing
// definition name. Callers append a WHERE clause.
const callerInfoSQL = `SELECT c.id, c.file_id, c.definition_id, c.parent_id, c.callee,
	c.start_offset, c.end_offset, c.start_line, c.start_col, c.end_line, c.end_col,
	c.depth, c.improper, c.text, f.path, COALESCE(d.name, '')
 FROM call_sites c
 JOIN files f ON f.id = c.file_id
 LEFT JOIN definitions d ON d.id = c.definition_id`

func (s *Store) queryCallers(query string, args ...any) ([]*CallerInfo, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*CallerInfo
	for rows.Next() {
		var path, caller string
		c, err := scanCallSite(rows, &path, &caller)
		if err != nil {
			return nil, fmt.Errorf("scan caller: %w", err)
		}
		out = append(out, &CallerInfo{CallSite: *c, Path: path, Caller: caller})
	}
	return out, rows.Err()
}

// CallersOf returns every call site whose callee is name, ordered by file
// path then source offset.
func (s *Store) CallersOf(name string) ([]*CallerInfo, error) {
	out, err := s.queryCallers(callerInfoSQL+
		" WHERE c.callee = ? ORDER BY f.path, c.start_offset, c.id", name)
	if err != nil {
		return nil, fmt.Errorf("callers of %q: %w", name, err)
	}
	return out, nil
}

// CallersOfInFile is CallersOf restricted to one file.
func (s *Store) CallersOfInFile(name string, fileID int64) ([]*CallerInfo, error) {
	out, err := s.queryCallers(callerInfoSQL+
		" WHERE c.callee = ? AND c.file_id = ? ORDER BY c.start_offset, c.id", name, fileID)
	if err != nil {
		return nil, fmt.Errorf("callers of %q in file %d: %w", name, fileID, err)
	}
	return out, nil
}

// CalleesOf returns the call sites lexically inside the definition defID.
func (s *Store) CalleesOf(defID int64) ([]*CallerInfo, error) {
	out, err := s.queryCallers(callerInfoSQL+
		" WHERE c.definition_id = ? ORDER BY c.start_offset, c.id", defID)
	if err != nil {
		return nil, fmt.Errorf("callees of definition %d: %w", defID, err)
	}
	return out, nil
}
