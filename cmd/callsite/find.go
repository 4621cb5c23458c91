package main

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/callsite"
)

// scratchDB backs the engine used by find, which never touches the index.
const scratchDB = ":memory:"

var findCmd = &cobra.Command{
	Use:   "find <symbol> [path...]",
	Short: "Find call sites of a symbol by reading source directly",
	Long: "Reads every supported file under each path (default: current directory) and prints each " +
		"list whose head is symbol, outermost first. No index is used. Lines and columns are 0-based. " +
		"A malformed file contributes the call sites read before the malformed text.",
	Args: cobra.MinimumNArgs(1),
	RunE: runFind,
}

func runFind(cmd *cobra.Command, args []string) error {
	defer writeMetrics()

	target, err := callsite.ParseTarget(args[0])
	if err != nil {
		return outputError("find", err)
	}
	roots := args[1:]
	if len(roots) == 0 {
		roots = []string{"."}
	}

	engine, err := callsite.New(scratchDB, engineOptions()...)
	if err != nil {
		return outputError("find", err)
	}
	defer engine.Close()

	ctx := context.Background()
	matches := []CLIMatch{}
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return outputError("find", err)
		}
		src := callsite.DirSource{Root: abs, Dialects: cfg.Dialects, SkipDirs: cfg.SkipDirs}
		results, err := engine.Find(ctx, src, target)
		if err != nil {
			return outputError("find", err)
		}
		matches = append(matches, resultsToCLI(results)...)
	}

	total := len(matches)
	return outputResult(CLIResult{
		Command:    "find",
		Results:    matches,
		TotalCount: &total,
	})
}

func resultsToCLI(results []callsite.Result) []CLIMatch {
	var out []CLIMatch
	for _, r := range results {
		for _, m := range r.Matches {
			out = append(out, CLIMatch{
				File:        r.ID,
				StartOffset: m.Span.Start,
				EndOffset:   m.Span.End,
				StartLine:   m.Start.Line,
				StartCol:    m.Start.Col,
				EndLine:     m.End.Line,
				EndCol:      m.End.Col,
				Text:        m.Text,
				Degraded:    r.Degraded,
			})
		}
	}
	return out
}
