// Package callsite finds the call-sites of a symbol in Lisp-family source
// code: every list whose first element is that symbol.
//
// # Pipeline
//
// Each document goes through three steps:
//
//  1. Read: [sexp.ReadDocument] parses the text into top-level forms and
//     records the half-open byte span of every subform. Malformed input
//     stops the read; forms read before it are kept.
//
//  2. Find: [FindCallsInDocument] walks the forms in source order and
//     returns every list or dotted pair headed by the target. Only proper
//     lists are searched recursively.
//
//  3. Collect: [Search] and [SearchParallel] run the two steps above per
//     document and keep documents with at least one match, in input order.
//
// # Usage
//
// Search in memory:
//
//	target, err := callsite.ParseTarget("message")
//	results := callsite.Search([]callsite.Document{{ID: "init.el", Text: src}}, target)
//
// Or build a persistent index and query it:
//
//	e, err := callsite.New(".callsite/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	err = e.IndexDirectory(ctx, "path/to/project")
//	callers, err := e.Query().Callers("message")
//
// # Incremental Indexing
//
// [Engine.IndexFiles] detects unchanged files via content hashing and skips
// them. Changed files have their rows replaced; files that disappeared from
// a directory are pruned by [Engine.IndexDirectory]. Use [WithDialects] to
// restrict which dialects the Engine processes.
//
// # Collaborators
//
// A [Source] supplies documents ([DirSource] for a directory tree,
// [StaticSource] for in-memory text) and a [SymbolProvider] lists candidate
// targets ([QueryBuilder] over an index, [StaticSymbols] for a fixed list).
// Presentation is left to callers: the callsite command and Risor report
// scripts in internal/runtime.
package callsite
