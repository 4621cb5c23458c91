package callsite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jward/callsite/internal/logger"
	"github.com/jward/callsite/internal/metrics"
	"github.com/jward/callsite/internal/sexp"
	"github.com/jward/callsite/internal/store"
)

// indexVersion identifies the reader and extraction rules that built an
// index. Bump it whenever either changes what gets recorded.
const indexVersion = "1"

// Engine maintains a persistent call-site index: file discovery, change
// detection, reading, extraction and query access.
type Engine struct {
	store     *store.Store
	dialects  []string // nil means all dialects
	skipDirs  []string // nil means the DirSource default
	extractor Extractor
	log       zerolog.Logger
	metrics   *metrics.Metrics

	// useParallel enables the parallel extraction pipeline.
	useParallel bool
	workers     int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialects restricts which dialects the Engine will process.
func WithDialects(dialects ...string) Option {
	return func(e *Engine) {
		e.dialects = dialects
	}
}

// WithParallel controls parallel extraction. When true (default), IndexFiles
// uses a worker pool for reading and extraction, with a single writer
// committing batches to SQLite. Set to false for serial mode.
func WithParallel(parallel bool) Option {
	return func(e *Engine) {
		e.useParallel = parallel
	}
}

// WithWorkers bounds the parallel worker pool. n <= 0 means one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// WithSkipDirs sets the directory names IndexDirectory never descends into
// when it has to walk the filesystem.
func WithSkipDirs(dirs ...string) Option {
	return func(e *Engine) {
		e.skipDirs = dirs
	}
}

// WithLogger sets the Engine's logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = logger.Component(l, "engine")
	}
}

// WithMetrics records reading, indexing and search metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithExtractor replaces the default CallExtractor.
func WithExtractor(x Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// New creates an Engine backed by a SQLite database at dbPath.
func New(dbPath string, opts ...Option) (*Engine, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("callsite: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("callsite: migrate: %w", err)
	}

	e := &Engine{
		store:       s,
		extractor:   CallExtractor{},
		log:         logger.Nop(),
		useParallel: true, // default to parallel extraction
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the Engine's database resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store returns the underlying Store for direct access.
func (e *Engine) Store() *Store {
	return e.store
}

// Query returns a new QueryBuilder wrapping the Store.
func (e *Engine) Query() *QueryBuilder {
	return NewQueryBuilder(e.store)
}

// NeedsReindex reports whether the index was built by a different version
// of the reader or extraction rules (or never built at all). When true, the
// caller should Reset and index again.
func (e *Engine) NeedsReindex() bool {
	stored, err := e.store.GetMetadata("index_version")
	if err != nil {
		return true
	}
	return stored != indexVersion
}

// Reset removes every indexed file.
func (e *Engine) Reset() error {
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("callsite: reset: %w", err)
	}
	ids := make([]int64, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	if err := e.store.DeleteFiles(ids); err != nil {
		return fmt.Errorf("callsite: reset: %w", err)
	}
	e.log.Info().Int("files", len(ids)).Msg("index reset")
	return nil
}

// IndexFiles indexes the given file paths. When WithParallel is enabled,
// uses a worker pool for concurrent extraction with batched SQLite writes.
// Otherwise falls back to the serial path.
//
// For each file:
//  1. Detect dialect from extension
//  2. Skip unsupported or filtered-out dialects
//  3. Skip unchanged files (same content hash)
//  4. Delete stale data, insert the file record
//  5. Read the document and run the Extractor
//
// Errors on individual files are collected and skipped; processing
// continues and the first error is returned wrapped in a summary.
func (e *Engine) IndexFiles(ctx context.Context, paths []string) error {
	start := time.Now()
	defer e.metrics.ObserveIndex(start)

	var err error
	if e.useParallel {
		err = e.indexFilesParallel(ctx, paths)
	} else {
		err = e.indexFilesSerial(ctx, paths)
	}
	if err != nil {
		return err
	}
	if err := e.store.SetMetadata("index_version", indexVersion); err != nil {
		return fmt.Errorf("callsite: %w", err)
	}
	e.log.Debug().Int("paths", len(paths)).Dur("elapsed", time.Since(start)).Msg("index complete")
	return nil
}

func (e *Engine) indexFilesSerial(ctx context.Context, paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, skip, err := e.prepareFile(path)
		if err != nil {
			e.fileFailed(path, err)
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		doc := e.readItem(&item)
		if err := e.store.UpdateFileStats(item.file); err != nil {
			errs = append(errs, e.discard(item, fmt.Errorf("index %s: %w", path, err)))
			continue
		}
		if err := e.extractor.Extract(ctx, item.file, doc, e.store); err != nil {
			errs = append(errs, e.discard(item, fmt.Errorf("index %s: extract: %w", path, err)))
			continue
		}
		e.fileIndexed(item)
	}
	if len(errs) > 0 {
		return fmt.Errorf("indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

// workItem holds everything an extraction worker needs.
type workItem struct {
	file    *store.File
	content []byte
	batch   *store.BatchedStore
}

// prepareFile does the serial per-file work: dialect filter, hash check,
// cleanup of stale rows and a fresh file record. skip=true means the file is
// unchanged or unsupported.
func (e *Engine) prepareFile(path string) (workItem, bool, error) {
	dialect, ok := sexp.DialectForFile(path)
	if !ok || !e.acceptDialect(dialect) {
		e.metrics.ObserveFile("skipped")
		return workItem{}, true, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("read file: %w", err)
	}
	hash := store.ContentHash(content)

	existing, err := e.store.FileByPath(path)
	if err != nil {
		return workItem{}, false, fmt.Errorf("lookup file: %w", err)
	}
	if existing != nil && existing.Hash == hash {
		e.metrics.ObserveFile("unchanged")
		e.log.Debug().Str("path", path).Msg("unchanged")
		return workItem{}, true, nil
	}
	if existing != nil {
		if err := e.store.DeleteFileData(existing.ID); err != nil {
			return workItem{}, false, fmt.Errorf("delete old data: %w", err)
		}
	}

	f := &store.File{
		Path:        path,
		Dialect:     dialect,
		Hash:        hash,
		Size:        int64(len(content)),
		LastIndexed: time.Now(),
	}
	if _, err := e.store.InsertFile(f); err != nil {
		return workItem{}, false, fmt.Errorf("insert file: %w", err)
	}
	return workItem{file: f, content: content}, false, nil
}

// readItem reads the file's document and records the outcome on the file
// record (not yet persisted).
func (e *Engine) readItem(item *workItem) *sexp.Document {
	doc := sexp.ReadDocument(item.content)
	item.file.FormCount = len(doc.Forms)
	item.file.Malformed = doc.Degraded()
	if doc.Err != nil {
		item.file.ReadError = doc.Err.Error()
	}
	return doc
}

// discard removes a half-indexed file so the next run retries it.
func (e *Engine) discard(item workItem, err error) error {
	if derr := e.store.DeleteFileData(item.file.ID); derr != nil {
		e.log.Error().Err(derr).Str("path", item.file.Path).Msg("discard failed")
	}
	e.fileFailed(item.file.Path, err)
	return err
}

func (e *Engine) fileIndexed(item workItem) {
	f := item.file
	e.metrics.ObserveFile("indexed")
	e.metrics.ObserveDocument(f.Dialect, f.FormCount, f.Malformed)
	if f.Malformed {
		e.log.Warn().Str("path", f.Path).Str("error", f.ReadError).Int("forms", f.FormCount).
			Msg("malformed input, indexed forms read before it")
		return
	}
	e.log.Debug().Str("path", f.Path).Int("forms", f.FormCount).Msg("indexed")
}

func (e *Engine) fileFailed(path string, err error) {
	e.metrics.ObserveFile("error")
	e.log.Error().Err(err).Str("path", path).Msg("index failed")
}

func (e *Engine) acceptDialect(d string) bool {
	if len(e.dialects) == 0 {
		return true
	}
	for _, want := range e.dialects {
		if want == d {
			return true
		}
	}
	return false
}

// IndexDirectory discovers every supported file under root (see DirSource)
// and indexes it. Files previously indexed under root that no longer exist
// are removed from the index.
func (e *Engine) IndexDirectory(ctx context.Context, root string) error {
	src := DirSource{Root: root, Dialects: e.dialects, SkipDirs: e.skipDirs}
	paths, err := src.Paths()
	if err != nil {
		return err
	}
	e.log.Debug().Str("root", root).Int("files", len(paths)).Msg("discovered")
	if err := e.IndexFiles(ctx, paths); err != nil {
		return err
	}
	return e.pruneMissing(root, paths)
}

// pruneMissing deletes indexed files under root that were not discovered.
func (e *Engine) pruneMissing(root string, discovered []string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("callsite: resolve %s: %w", root, err)
	}
	keep := make(map[string]bool, len(discovered))
	for _, p := range discovered {
		keep[p] = true
	}
	files, err := e.store.Files()
	if err != nil {
		return fmt.Errorf("callsite: prune: %w", err)
	}
	var stale []int64
	for _, f := range files {
		under := f.Path == absRoot || strings.HasPrefix(f.Path, absRoot+string(filepath.Separator))
		if under && !keep[f.Path] && e.acceptDialect(f.Dialect) {
			stale = append(stale, f.ID)
		}
	}
	if len(stale) == 0 {
		return nil
	}
	if err := e.store.DeleteFiles(stale); err != nil {
		return fmt.Errorf("callsite: prune: %w", err)
	}
	e.log.Info().Int("files", len(stale)).Msg("pruned deleted files")
	return nil
}

// Find searches the documents of src directly, without the index, and
// records the Engine's metrics and logs for each document.
func (e *Engine) Find(ctx context.Context, src Source, target sexp.Form) ([]Result, error) {
	start := time.Now()
	defer e.metrics.ObserveSearch(start)

	if ds, ok := src.(DirSource); ok && ds.Logger == nil {
		ds.Logger = &e.log
		src = ds
	}
	docs, err := src.Documents(ctx)
	if err != nil {
		return nil, err
	}
	results, err := searchParallel(ctx, docs, target, e.workers, func(d Document, read *sexp.Document, r Result) {
		dialect, _ := sexp.DialectForFile(d.ID)
		e.metrics.ObserveDocument(dialect, len(read.Forms), read.Degraded())
		e.metrics.ObserveMatches(len(r.Matches))
		if read.Degraded() {
			e.log.Warn().Str("document", d.ID).Err(read.Err).Msg("malformed input, searched forms read before it")
		}
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("target", target.String()).Int("documents", len(docs)).
		Int("matched", len(results)).Msg("search complete")
	return results, nil
}
