package callsite

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> content) under a fresh temp
// directory and returns its absolute path.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out[i] = filepath.ToSlash(rel)
	}
	return out
}

func TestStaticSource(t *testing.T) {
	t.Parallel()
	src := StaticSource(docs("a", "(x)", "b", "(y)"))
	got, err := src.Documents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{got[0].ID, got[1].ID})
}

func TestDirSource_WalkSkipsHiddenAndExcludedDirs(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"init.el":               "(message \"hi\")",
		"lisp/util.el":          "(defun u ())",
		"src/core.clj":          "(ns core)",
		"README.md":             "# readme",
		".git-hidden/skip.el":   "(skip)",
		"node_modules/dep/x.el": "(skip)",
		"vendor/lib.scm":        "(skip)",
		"notes/scratch.txt":     "(not lisp)",
		"scheme/boot.SCM":       "(define x 1)",
	})

	paths, err := DirSource{Root: root}.Paths()
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"init.el", "lisp/util.el", "src/core.clj", "scheme/boot.SCM"},
		relPaths(t, root, paths))
}

func TestDirSource_CustomSkipDirs(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"a.el":           "(a)",
		"vendor/b.el":    "(b)",
		"generated/c.el": "(c)",
	})

	paths, err := DirSource{Root: root, SkipDirs: []string{"generated"}}.Paths()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.el", "vendor/b.el"}, relPaths(t, root, paths))
}

func TestDirSource_DialectFilter(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{
		"a.el":   "(a)",
		"b.lisp": "(b)",
		"c.rkt":  "(c)",
	})

	paths, err := DirSource{Root: root, Dialects: []string{"emacs-lisp", "racket"}}.Paths()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.el", "c.rkt"}, relPaths(t, root, paths))
}

func TestDirSource_Documents(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"a.el": "(foo 1)"})

	got, err := DirSource{Root: root}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(root, "a.el"), got[0].ID)
	assert.Equal(t, "(foo 1)", string(got[0].Text))
}

func TestDirSource_DocumentsCanceled(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"a.el": "(foo 1)"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DirSource{Root: root}.Documents(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// gitInit makes root a git repository with every file staged. The test is
// skipped when git is not installed.
func gitInit(t *testing.T, root string) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	for _, args := range [][]string{{"init", "-q"}, {"add", "."}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
}

func TestDirSource_GitTrackedButDeleted(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"a.el": "(foo 1)", "b.el": "(foo 2)"})
	gitInit(t, root)
	require.NoError(t, os.Remove(filepath.Join(root, "a.el")))

	paths, err := DirSource{Root: root}.Paths()
	require.NoError(t, err)
	assert.Equal(t, []string{"b.el"}, relPaths(t, root, paths))

	got, err := DirSource{Root: root}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(root, "b.el"), got[0].ID)
}

func TestDirSource_SkipsUnreadableFile(t *testing.T) {
	t.Parallel()
	root := writeTree(t, map[string]string{"b.el": "(foo 2)"})
	// A dangling symlink is discovered but cannot be read.
	require.NoError(t, os.Symlink(filepath.Join(root, "gone.txt"), filepath.Join(root, "a.el")))

	var logs bytes.Buffer
	log := zerolog.New(&logs)
	got, err := DirSource{Root: root, Logger: &log}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(root, "b.el"), got[0].ID)
	assert.Contains(t, logs.String(), "skipping unreadable file")
	assert.Contains(t, logs.String(), "a.el")

	// Without a logger the file is skipped silently.
	got, err = DirSource{Root: root}.Documents(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDirSource_MissingRoot(t *testing.T) {
	t.Parallel()
	_, err := DirSource{Root: filepath.Join(t.TempDir(), "missing")}.Paths()
	require.Error(t, err)
}

// =============================================================================
// Symbols
// =============================================================================

func TestStaticSymbols(t *testing.T) {
	t.Parallel()
	p := StaticSymbols{"message", "mapcar", "insert", "message", "make-hash-table"}

	got, err := p.Symbols(context.Background(), "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"make-hash-table", "mapcar", "message"}, got)

	got, err = p.Symbols(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	got, err = p.Symbols(context.Background(), "zzz")
	require.NoError(t, err)
	assert.Empty(t, got)
}
