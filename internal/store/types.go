package store

import "time"

// File is one indexed source file.
type File struct {
	ID          int64
	Path        string
	Dialect     string
	Hash        string
	Size        int64
	FormCount   int
	Malformed   bool
	ReadError   string
	LastIndexed time.Time
}

// Definition is a named top-level or nested definition form, such as
// (defun name ...). Lines and columns are 0-based.
type Definition struct {
	ID          int64
	FileID      int64
	Name        string
	Kind        string
	StartOffset int
	EndOffset   int
	StartLine   int
	StartCol    int
	EndLine     int
	EndCol      int
}

// CallSite is a list whose head is a symbol. DefinitionID points at the
// innermost enclosing definition, ParentID at the innermost enclosing call
// site; either is nil at the top level.
type CallSite struct {
	ID           int64
	FileID       int64
	DefinitionID *int64
	ParentID     *int64
	Callee       string
	StartOffset  int
	EndOffset    int
	StartLine    int
	StartCol     int
	EndLine      int
	EndCol       int
	Depth        int
	Improper     bool
	Text         string
}

// Query result types

// CallerInfo is a call site joined with its file path and enclosing
// definition name.
type CallerInfo struct {
	CallSite
	Path   string
	Caller string // "" when the call is not inside a definition
}

// SymbolCount is a symbol name with the number of call sites and
// definitions recorded for it.
type SymbolCount struct {
	Name        string
	Calls       int
	Definitions int
}

// DialectSummary counts indexed data for one dialect.
type DialectSummary struct {
	Dialect     string
	Files       int
	Malformed   int
	Forms       int
	CallSites   int
	Definitions int
}
