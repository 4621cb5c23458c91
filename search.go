package callsite

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/jward/callsite/internal/sexp"
)

// Document is one source text to search, identified by an opaque ID such as
// a file path.
type Document struct {
	ID   string
	Text []byte
}

// Match is one call-site with its location. Start and End are the
// positions of Span's bounds.
type Match struct {
	Form  sexp.Form
	Span  sexp.Span
	Start sexp.Position
	End   sexp.Position
	Text  string
}

// Result holds the matches found in one document.
type Result struct {
	ID      string
	Matches []Match

	// Degraded is set when reading stopped early on malformed input; the
	// matches then cover only the forms read before the failure.
	Degraded bool
}

// Search reads each document and collects the call-sites of target.
// Documents without matches are omitted; the rest keep their input order.
// A malformed document never fails the search: it contributes whatever was
// read before the malformed text.
func Search(docs []Document, target sexp.Form) []Result {
	var out []Result
	for _, d := range docs {
		r, _ := searchDocument(d, target)
		if len(r.Matches) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// SearchParallel produces the same results as Search, reading up to workers
// documents at a time. workers <= 0 means GOMAXPROCS. The only error it
// returns is ctx's.
func SearchParallel(ctx context.Context, docs []Document, target sexp.Form, workers int) ([]Result, error) {
	return searchParallel(ctx, docs, target, workers, nil)
}

// observeFunc is called once per searched document, possibly concurrently.
type observeFunc func(d Document, read *sexp.Document, r Result)

func searchParallel(ctx context.Context, docs []Document, target sexp.Form, workers int, observe observeFunc) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	// Each document writes only its own slot, so input order survives.
	slots := make([]Result, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, read := searchDocument(d, target)
			if observe != nil {
				observe(d, read, r)
			}
			slots[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Result
	for _, r := range slots {
		if len(r.Matches) > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// searchDocument runs the read → find pipeline on one document.
func searchDocument(d Document, target sexp.Form) (Result, *sexp.Document) {
	read := sexp.ReadDocument(d.Text)
	r := Result{ID: d.ID, Degraded: read.Degraded()}
	for _, f := range FindCallsInDocument(read.Forms, target) {
		r.Matches = append(r.Matches, newMatch(read, f))
	}
	return r, read
}

func newMatch(doc *sexp.Document, f sexp.Form) Match {
	m := Match{Form: f}
	if sp, ok := doc.Spans.SpanOf(f); ok {
		m.Span = sp
		m.Start = doc.Position(sp.Start)
		m.End = doc.Position(sp.End)
		m.Text = doc.Slice(sp)
	}
	return m
}
