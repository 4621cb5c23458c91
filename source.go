package callsite

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jward/callsite/internal/sexp"
)

// Source supplies the documents to search.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// StaticSource is an in-memory Source.
type StaticSource []Document

// Documents returns the documents as given.
func (s StaticSource) Documents(context.Context) ([]Document, error) {
	return []Document(s), nil
}

// defaultSkipDirs are never descended into by the filesystem walk.
var defaultSkipDirs = []string{"node_modules", "vendor"}

// DirSource discovers source files under Root. Inside a git repository it
// uses git ls-files, which respects .gitignore; otherwise it walks the
// filesystem, skipping hidden directories and SkipDirs. Document IDs are the
// absolute file paths.
type DirSource struct {
	Root string

	// Dialects restricts discovery. Empty means every known dialect.
	Dialects []string

	// SkipDirs replaces the default skip list for the filesystem walk.
	SkipDirs []string

	// Logger receives a warning for each file skipped because it could not
	// be read. Nil discards them. Engine.Find fills it in when unset.
	Logger *zerolog.Logger
}

// Documents lists and reads every matching file. A file that cannot be read,
// such as one git still tracks but that was deleted from the work tree, is
// skipped with a warning.
func (s DirSource) Documents(ctx context.Context) ([]Document, error) {
	paths, err := s.Paths()
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := os.ReadFile(p)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn().Str("path", p).Err(err).Msg("skipping unreadable file")
			}
			continue
		}
		docs = append(docs, Document{ID: p, Text: text})
	}
	return docs, nil
}

// Paths returns the matching file paths without reading them.
func (s DirSource) Paths() ([]string, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("callsite: resolve %s: %w", s.Root, err)
	}
	accept := dialectFilter(s.Dialects)
	paths, err := gitListFiles(root, accept)
	if err != nil {
		// Not a git repo or git not available: fall back to walk.
		skip := s.SkipDirs
		if skip == nil {
			skip = defaultSkipDirs
		}
		paths, err = walkListFiles(root, accept, skip)
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// dialectFilter returns a predicate accepting files of the given dialects,
// or of any known dialect when none are given.
func dialectFilter(dialects []string) func(path string) bool {
	allowed := make(map[string]bool, len(dialects))
	for _, d := range dialects {
		allowed[d] = true
	}
	return func(path string) bool {
		d, ok := sexp.DialectForFile(path)
		return ok && (len(allowed) == 0 || allowed[d])
	}
}

// gitListFiles uses git ls-files to discover tracked and untracked (but not
// ignored) files under root.
func gitListFiles(root string, accept func(string) bool) ([]string, error) {
	// --cached: tracked files, --others: untracked files,
	// --exclude-standard: respect .gitignore, .git/info/exclude, global excludes.
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var paths []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		absPath := filepath.Join(root, line)
		if !accept(absPath) {
			continue
		}
		// --cached still lists tracked files deleted from the work tree.
		if _, err := os.Lstat(absPath); err != nil {
			continue
		}
		paths = append(paths, absPath)
	}
	return paths, nil
}

// walkListFiles discovers files by walking the filesystem, used as a fallback
// when git is not available.
func walkListFiles(root string, accept func(string) bool, skipDirs []string) ([]string, error) {
	skip := make(map[string]bool, len(skipDirs))
	for _, d := range skipDirs {
		skip[d] = true
	}
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != root && (strings.HasPrefix(name, ".") || skip[name]) {
				return filepath.SkipDir
			}
			return nil
		}
		if accept(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return paths, nil
}
