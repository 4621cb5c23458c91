package callsite

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/jward/callsite/internal/store"
)

// indexFilesParallel indexes files using a three-phase parallel pipeline:
//
//	Phase A (serial):   Hash check, delete old data, prepare file records.
//	Phase B (parallel): Read and extract via worker pool, each file into its
//	                    own BatchedStore.
//	Phase C (serial):   Commit batches to SQLite.
func (e *Engine) indexFilesParallel(ctx context.Context, paths []string) error {
	var errs []error

	// ---- Phase A: Serial file preparation ----
	var items []workItem
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, skip, err := e.prepareFile(path)
		if err != nil {
			e.fileFailed(path, err)
			errs = append(errs, fmt.Errorf("prepare %s: %w", path, err))
			continue
		}
		if skip {
			continue
		}
		item.batch = store.NewBatchedStore(e.store)
		items = append(items, item)
	}

	if len(items) > 0 {
		errs = append(errs, e.extractAndCommit(ctx, items)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("parallel indexing had %d error(s): %w", len(errs), errs[0])
	}
	return nil
}

func (e *Engine) extractAndCommit(ctx context.Context, items []workItem) []error {
	// ---- Phase B: Parallel extraction ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = max(1, min(numWorkers, len(items)))

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		item workItem
		err  error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Workers share nothing but the Store's read path; each item
			// writes only to its own BatchedStore.
			for item := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{item: item, err: err}
					continue
				}
				doc := e.readItem(&item)
				err := e.extractor.Extract(ctx, item.file, doc, item.batch)
				resultCh <- result{item: item, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: Serial commit ----
	var errs []error
	for res := range resultCh {
		path := res.item.file.Path
		if res.err != nil {
			errs = append(errs, e.discard(res.item, fmt.Errorf("extract %s: %w", path, res.err)))
			continue
		}
		if err := e.store.UpdateFileStats(res.item.file); err != nil {
			errs = append(errs, e.discard(res.item, fmt.Errorf("commit %s: %w", path, err)))
			continue
		}
		if err := e.store.CommitBatch(res.item.batch); err != nil {
			errs = append(errs, e.discard(res.item, fmt.Errorf("commit %s: %w", path, err)))
			continue
		}
		e.fileIndexed(res.item)
	}
	return errs
}
