package main

// CLIResult is the top-level JSON envelope for every command's output.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLIMatch is one call site found by a direct search.
type CLIMatch struct {
	File        string `json:"file"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	StartLine   int    `json:"start_line"`
	StartCol    int    `json:"start_col"`
	EndLine     int    `json:"end_line"`
	EndCol      int    `json:"end_col"`
	Text        string `json:"text"`
	Degraded    bool   `json:"degraded,omitempty"`
}

// CLICallSite is a JSON-friendly indexed call site.
type CLICallSite struct {
	File      string `json:"file"`
	Caller    string `json:"caller,omitempty"`
	Callee    string `json:"callee"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	Depth     int    `json:"depth"`
	Improper  bool   `json:"improper,omitempty"`
	Text      string `json:"text"`
}

// CLILocation is a JSON-friendly source range.
type CLILocation struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CLIDefinition is a JSON-friendly definition.
type CLIDefinition struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Location CLILocation `json:"location"`
}

// CLISymbol is a name with its call and definition counts.
type CLISymbol struct {
	Name        string `json:"name"`
	Calls       int    `json:"calls"`
	Definitions int    `json:"definitions"`
}

// CLIFile is a JSON-friendly file representation.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Dialect   string `json:"dialect"`
	Forms     int    `json:"forms"`
	Malformed bool   `json:"malformed,omitempty"`
	ReadError string `json:"read_error,omitempty"`
}

// CLIDialectSummary is a JSON-friendly per-dialect summary.
type CLIDialectSummary struct {
	Dialect     string `json:"dialect"`
	Files       int    `json:"files"`
	Malformed   int    `json:"malformed"`
	Forms       int    `json:"forms"`
	CallSites   int    `json:"call_sites"`
	Definitions int    `json:"definitions"`
}
