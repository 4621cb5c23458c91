package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/jward/callsite/internal/logger"
)

// palette renders the parts of a text result. The zero value renders
// everything unstyled.
type palette struct {
	color    bool
	location lipgloss.Style
	head     lipgloss.Style
	caller   lipgloss.Style
	warning  lipgloss.Style
}

// paletteFor returns a colored palette when w is a terminal.
func paletteFor(w io.Writer) palette {
	if !logger.IsTerminal(w) {
		return palette{}
	}
	return palette{
		color:    true,
		location: lipgloss.NewStyle().Faint(true),
		head:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		caller:   lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
	}
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// highlightCall emphasizes the head of a call's text: the symbol right
// after the opening paren.
func (p palette) highlightCall(text string) string {
	if !p.color || !strings.HasPrefix(text, "(") {
		return text
	}
	end := strings.IndexAny(text[1:], " \t\n()[]{}\"")
	if end < 0 {
		end = len(text) - 1
	}
	return "(" + p.render(p.head, text[1:1+end]) + text[1+end:]
}

// firstLine cuts text at its first newline.
func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimRight(text[:i], " \t\r") + " …"
	}
	return text
}

// formatMatchesText prints one "file:line:col: text" line per match.
func formatMatchesText(w io.Writer, p palette, matches []CLIMatch) {
	seen := map[string]bool{}
	var degraded []string
	for _, m := range matches {
		loc := fmt.Sprintf("%s:%d:%d:", m.File, m.StartLine, m.StartCol)
		fmt.Fprintf(w, "%s %s\n", p.render(p.location, loc), p.highlightCall(firstLine(m.Text)))
		if m.Degraded && !seen[m.File] {
			seen[m.File] = true
			degraded = append(degraded, m.File)
		}
	}
	for _, file := range degraded {
		fmt.Fprintln(w, p.render(p.warning, "warning: "+file+" is malformed; only the forms before the error were searched"))
	}
}

// formatCallSitesText formats CLICallSite results as aligned columns.
func formatCallSitesText(w io.Writer, p palette, sites []CLICallSite) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINE\tCOL\tCALLER\tCALL")
	for _, s := range sites {
		caller := s.Caller
		if caller == "" {
			caller = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			s.File, s.StartLine, s.StartCol, p.render(p.caller, caller), p.highlightCall(s.Text))
	}
	tw.Flush()
}

// formatLocationsText formats CLILocation results as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []CLILocation) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

func formatDefinitionText(w io.Writer, def CLIDefinition) {
	fmt.Fprintf(w, "%s %s %s:%d:%d\n", def.Kind, def.Name,
		def.Location.File, def.Location.StartLine, def.Location.StartCol)
}

// formatSymbolsText formats CLISymbol results as aligned columns.
func formatSymbolsText(w io.Writer, syms []CLISymbol) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCALLS\tDEFINITIONS")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Name, s.Calls, s.Definitions)
	}
	tw.Flush()
}

// formatFilesText formats CLIFile results as aligned columns.
func formatFilesText(w io.Writer, p palette, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tDIALECT\tFORMS\tSTATUS")
	for _, f := range files {
		status := "ok"
		if f.Malformed {
			status = p.render(p.warning, "malformed: "+f.ReadError)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", f.ID, f.Path, f.Dialect, f.Forms, status)
	}
	tw.Flush()
}

// formatSummaryText formats per-dialect counts as readable text.
func formatSummaryText(w io.Writer, rows []CLIDialectSummary) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	if len(rows) == 0 {
		fmt.Fprintln(w, "No files indexed.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIALECT\tFILES\tMALFORMED\tFORMS\tCALL SITES\tDEFINITIONS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			r.Dialect, r.Files, r.Malformed, r.Forms, r.CallSites, r.Definitions)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	p := paletteFor(w)

	switch v := result.Results.(type) {
	case []CLIMatch:
		formatMatchesText(w, p, v)
	case []CLICallSite:
		formatCallSitesText(w, p, v)
	case []CLILocation:
		formatLocationsText(w, v)
	case CLIDefinition:
		formatDefinitionText(w, v)
	case []CLISymbol:
		formatSymbolsText(w, v)
	case []CLIFile:
		formatFilesText(w, p, v)
	case []CLIDialectSummary:
		formatSummaryText(w, v)
	case nil:
		// No output for nil results (e.g., definition-at with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}

// outputResult writes a CLIResult to stdout in the selected format.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, cfg.Format, result)
}

func writeResult(w io.Writer, format string, result CLIResult) error {
	if format == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if cfg.Format != "json" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	result := CLIResult{
		Command: command,
		Error:   err.Error(),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
	return err
}
