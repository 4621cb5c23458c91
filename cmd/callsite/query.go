package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/callsite"
	"github.com/jward/callsite/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the call-site index",
	Long:  "Run queries against an indexed directory. All line and column numbers are 0-based.",
}

func init() {
	callersCmd.Flags().String("file", "", "only call sites in this file")

	queryCmd.AddCommand(callersCmd)
	queryCmd.AddCommand(calleesCmd)
	queryCmd.AddCommand(definitionsCmd)
	queryCmd.AddCommand(definitionAtCmd)
	queryCmd.AddCommand(symbolsCmd)
	queryCmd.AddCommand(filesCmd)
	queryCmd.AddCommand(summaryCmd)
}

// --- Helpers ---

// openStore opens the Store from the configured database path.
func openStore() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: %s (run 'callsite index' first)", dbPath)
	}
	return store.NewStore(dbPath)
}

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

func callSitesToCLI(rows []*callsite.Caller) []CLICallSite {
	out := make([]CLICallSite, len(rows))
	for i, c := range rows {
		out[i] = CLICallSite{
			File:      c.Path,
			Caller:    c.Caller,
			Callee:    c.Callee,
			StartLine: c.StartLine,
			StartCol:  c.StartCol,
			EndLine:   c.EndLine,
			EndCol:    c.EndCol,
			Depth:     c.Depth,
			Improper:  c.Improper,
			Text:      c.Text,
		}
	}
	return out
}

func locationToCLI(loc callsite.Location) CLILocation {
	return CLILocation{
		File:      loc.File,
		StartLine: loc.StartLine,
		StartCol:  loc.StartCol,
		EndLine:   loc.EndLine,
		EndCol:    loc.EndCol,
	}
}

// runQuery opens the store, runs fn and writes its results with a count.
func runQuery(command string, fn func(qb *callsite.QueryBuilder) (any, int, error)) error {
	s, err := openStore()
	if err != nil {
		return outputError(command, err)
	}
	defer s.Close()

	results, n, err := fn(callsite.NewQueryBuilder(s))
	if err != nil {
		return outputError(command, err)
	}
	return outputResult(CLIResult{
		Command:    command,
		Results:    results,
		TotalCount: &n,
	})
}

// --- Name-Based Commands ---

var callersCmd = &cobra.Command{
	Use:   "callers <symbol>",
	Short: "List every indexed call site of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		return runQuery("callers", func(qb *callsite.QueryBuilder) (any, int, error) {
			var (
				rows []*callsite.Caller
				err  error
			)
			if file != "" {
				path, perr := resolveFilePath(file)
				if perr != nil {
					return nil, 0, perr
				}
				rows, err = qb.CallersInFile(args[0], path)
			} else {
				rows, err = qb.Callers(args[0])
			}
			if err != nil {
				return nil, 0, err
			}
			return callSitesToCLI(rows), len(rows), nil
		})
	},
}

var calleesCmd = &cobra.Command{
	Use:   "callees <name>",
	Short: "List the call sites inside every definition of a name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("callees", func(qb *callsite.QueryBuilder) (any, int, error) {
			rows, err := qb.Callees(args[0])
			if err != nil {
				return nil, 0, err
			}
			return callSitesToCLI(rows), len(rows), nil
		})
	},
}

var definitionsCmd = &cobra.Command{
	Use:   "definitions <name>",
	Short: "List where a name is defined",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("definitions", func(qb *callsite.QueryBuilder) (any, int, error) {
			locs, err := qb.Definitions(args[0])
			if err != nil {
				return nil, 0, err
			}
			out := make([]CLILocation, len(locs))
			for i, loc := range locs {
				out[i] = locationToCLI(loc)
			}
			return out, len(out), nil
		})
	},
}

// --- Position-Based Commands ---

var definitionAtCmd = &cobra.Command{
	Use:   "definition-at <file> <line> <col>",
	Short: "Find the innermost definition enclosing a position",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := resolveFilePath(args[0])
		if err != nil {
			return outputError("definition-at", err)
		}
		line, err := parseIntArg(args[1], "line")
		if err != nil {
			return outputError("definition-at", err)
		}
		col, err := parseIntArg(args[2], "col")
		if err != nil {
			return outputError("definition-at", err)
		}

		return runQuery("definition-at", func(qb *callsite.QueryBuilder) (any, int, error) {
			def, err := qb.DefinitionAt(file, line, col)
			if err != nil {
				return nil, 0, err
			}
			if def == nil {
				return nil, 0, nil
			}
			return CLIDefinition{
				Name: def.Name,
				Kind: def.Kind,
				Location: CLILocation{
					File:      file,
					StartLine: def.StartLine,
					StartCol:  def.StartCol,
					EndLine:   def.EndLine,
					EndCol:    def.EndCol,
				},
			}, 1, nil
		})
	},
}

// --- Discovery Commands ---

var symbolsCmd = &cobra.Command{
	Use:   "symbols [prefix]",
	Short: "List called or defined names with counts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		return runQuery("symbols", func(qb *callsite.QueryBuilder) (any, int, error) {
			counts, err := qb.SymbolCounts(prefix)
			if err != nil {
				return nil, 0, err
			}
			out := make([]CLISymbol, len(counts))
			for i, c := range counts {
				out[i] = CLISymbol{Name: c.Name, Calls: c.Calls, Definitions: c.Definitions}
			}
			return out, len(out), nil
		})
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List indexed files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("files", func(qb *callsite.QueryBuilder) (any, int, error) {
			files, err := qb.Files()
			if err != nil {
				return nil, 0, err
			}
			out := make([]CLIFile, len(files))
			for i, f := range files {
				out[i] = CLIFile{
					ID:        f.ID,
					Path:      f.Path,
					Dialect:   f.Dialect,
					Forms:     f.FormCount,
					Malformed: f.Malformed,
					ReadError: f.ReadError,
				}
			}
			return out, len(out), nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Per-dialect counts of files, forms, call sites and definitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("summary", func(qb *callsite.QueryBuilder) (any, int, error) {
			rows, err := qb.Summary()
			if err != nil {
				return nil, 0, err
			}
			out := make([]CLIDialectSummary, len(rows))
			for i, r := range rows {
				out[i] = CLIDialectSummary{
					Dialect:     r.Dialect,
					Files:       r.Files,
					Malformed:   r.Malformed,
					Forms:       r.Forms,
					CallSites:   r.CallSites,
					Definitions: r.Definitions,
				}
			}
			return out, len(out), nil
		})
	},
}
