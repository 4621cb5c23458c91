package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/callsite"
	"github.com/jward/callsite/internal/config"
	"github.com/jward/callsite/internal/sexp"
)

func TestFindRepoRoot_DirectGitDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))

	assert.Equal(t, root, findRepoRoot(root))
}

func TestFindRepoRoot_NestedSubdirectory(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0o755))
	deep := filepath.Join(root, "sub", "deep")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	assert.Equal(t, root, findRepoRoot(deep))
}

func TestFindRepoRoot_NoGitAncestor(t *testing.T) {
	t.Parallel()
	// TempDir has no .git directory anywhere in its ancestry
	// (unless /tmp itself is a repo, which would be unusual).
	dir := t.TempDir()

	assert.Equal(t, dir, findRepoRoot(dir))
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"emacs-lisp", "scheme"}, splitList(" emacs-lisp, ,scheme,"))
	assert.Nil(t, splitList(""))
}

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

// newFlagCommand returns a command carrying the root's persistent flags,
// parsed from args.
func newFlagCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

// Not parallel: flags bind package-level variables.
func TestApplyFlags(t *testing.T) {
	c := config.Default()
	c.DB = "from-file.db"
	cmd := newFlagCommand(t, "--format=json", "--dialects=scheme,clojure", "--parallel=false", "--workers=2")

	require.NoError(t, applyFlags(cmd, &c))
	assert.Equal(t, "json", c.Format)
	assert.Equal(t, []string{"scheme", "clojure"}, c.Dialects)
	assert.False(t, c.Parallel)
	assert.Equal(t, 2, c.Workers)
	// Flags left unset keep the file's value.
	assert.Equal(t, "from-file.db", c.DB)

	bad := config.Default()
	require.Error(t, applyFlags(newFlagCommand(t, "--dialects=cobol"), &bad))
	require.Error(t, applyFlags(newFlagCommand(t, "--format=xml"), &bad))
}

// =============================================================================
// Output
// =============================================================================

func TestResultsToCLI(t *testing.T) {
	t.Parallel()
	results := callsite.Search([]callsite.Document{
		{ID: "a.el", Text: []byte("(foo (bar 1))\n(bar 2) (baz")},
	}, sexp.Symbol("bar"))

	got := resultsToCLI(results)
	require.Len(t, got, 2)
	assert.Equal(t, CLIMatch{
		File: "a.el", StartOffset: 5, EndOffset: 12,
		StartLine: 0, StartCol: 5, EndLine: 0, EndCol: 12,
		Text: "(bar 1)", Degraded: true,
	}, got[0])
	assert.Equal(t, 1, got[1].StartLine)
}

func TestWriteResult_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	n := 1
	require.NoError(t, writeResult(&buf, "json", CLIResult{
		Command:    "callers",
		Results:    []CLICallSite{{File: "a.el", Callee: "bar", Text: "(bar)"}},
		TotalCount: &n,
	}))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "callers", decoded["command"])
	assert.EqualValues(t, 1, decoded["total_count"])
	rows := decoded["results"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "bar", rows[0].(map[string]any)["callee"])
	assert.NotContains(t, buf.String(), "error")
}

func TestWriteResult_Text(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		result any
		want   []string
	}{
		{
			name: "matches",
			result: []CLIMatch{
				{File: "a.el", StartLine: 2, StartCol: 4, Text: "(bar 1\n  2)", Degraded: true},
			},
			want: []string{"a.el:2:4: (bar 1 …", "warning: a.el is malformed"},
		},
		{
			name:   "call sites",
			result: []CLICallSite{{File: "b.scm", StartLine: 1, StartCol: 2, Callee: "f", Text: "(f x)"}},
			want:   []string{"FILE", "CALLER", "b.scm", "-", "(f x)"},
		},
		{
			name:   "locations",
			result: []CLILocation{{File: "c.clj", StartLine: 3, StartCol: 0}},
			want:   []string{"c.clj:3:0\n"},
		},
		{
			name:   "definition",
			result: CLIDefinition{Name: "greet", Kind: "defun", Location: CLILocation{File: "g.el"}},
			want:   []string{"defun greet g.el:0:0"},
		},
		{
			name:   "symbols",
			result: []CLISymbol{{Name: "message", Calls: 4, Definitions: 0}},
			want:   []string{"NAME", "message", "4"},
		},
		{
			name:   "files",
			result: []CLIFile{{ID: 1, Path: "x.lisp", Dialect: "common-lisp", Malformed: true, ReadError: "unexpected end of input"}},
			want:   []string{"x.lisp", "common-lisp", "malformed: unexpected end of input"},
		},
		{
			name:   "summary",
			result: []CLIDialectSummary{{Dialect: "scheme", Files: 2, CallSites: 7}},
			want:   []string{"Index Summary", "scheme", "7"},
		},
		{
			name:   "empty summary",
			result: []CLIDialectSummary{},
			want:   []string{"No files indexed."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			require.NoError(t, writeResult(&buf, "text", CLIResult{Command: tt.name, Results: tt.result}))
			for _, w := range tt.want {
				assert.Contains(t, buf.String(), w)
			}
		})
	}
}

func TestWriteResult_TextNilAndUnsupported(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "text", CLIResult{Command: "definition-at"}))
	assert.Empty(t, buf.String())

	require.Error(t, writeResult(&buf, "text", CLIResult{Command: "x", Results: 42}))
}

func TestPalette(t *testing.T) {
	t.Parallel()
	// A buffer is never a terminal.
	plain := paletteFor(&bytes.Buffer{})
	assert.Equal(t, "(foo bar)", plain.highlightCall("(foo bar)"))

	p := palette{color: true, head: lipgloss.NewStyle().Bold(true)}
	got := p.highlightCall("(foo bar)")
	assert.Contains(t, got, "foo")
	assert.Contains(t, got, " bar)")
	assert.Equal(t, "bare", p.highlightCall("bare"))
}

func TestFirstLine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "(a)", firstLine("(a)"))
	assert.Equal(t, "(defun f () …", firstLine("(defun f ()  \n  (g))"))
}
