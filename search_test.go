package callsite

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/callsite/internal/sexp"
)

func docs(pairs ...string) []Document {
	out := make([]Document, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Document{ID: pairs[i], Text: []byte(pairs[i+1])})
	}
	return out
}

func resultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	return ids
}

// =============================================================================
// Search
// =============================================================================

func TestSearch_OmitsDocumentsWithoutMatches(t *testing.T) {
	t.Parallel()
	in := docs(
		"a.el", "(message \"a\")",
		"b.el", "(insert \"b\")",
		"c.el", "(progn (message \"c\") (message \"d\"))",
	)
	results := Search(in, sexp.Symbol("message"))
	require.Equal(t, []string{"a.el", "c.el"}, resultIDs(results))
	assert.Len(t, results[0].Matches, 1)
	assert.Len(t, results[1].Matches, 2)
}

func TestSearch_NoDocuments(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Search(nil, sexp.Symbol("x")))
}

func TestSearch_MatchLocation(t *testing.T) {
	t.Parallel()
	in := docs("init.el", "(defun hello ()\n  (message \"hi\"))\n")
	results := Search(in, sexp.Symbol("message"))
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 1)

	m := results[0].Matches[0]
	assert.Equal(t, sexp.Span{Start: 18, End: 32}, m.Span)
	assert.Equal(t, `(message "hi")`, m.Text)
	assert.Equal(t, sexp.Position{Line: 1, Col: 2}, m.Start)
	assert.Equal(t, sexp.Position{Line: 1, Col: 16}, m.End)
	assert.Equal(t, `(message "hi")`, m.Form.String())
	assert.False(t, results[0].Degraded)
}

func TestSearch_DuplicateCallsKeepTheirOwnSpans(t *testing.T) {
	t.Parallel()
	in := docs("a.el", "(g 1) (g 1)")
	results := Search(in, sexp.Symbol("g"))
	require.Len(t, results, 1)
	require.Len(t, results[0].Matches, 2)
	assert.Equal(t, sexp.Span{Start: 0, End: 5}, results[0].Matches[0].Span)
	assert.Equal(t, sexp.Span{Start: 6, End: 11}, results[0].Matches[1].Span)
}

func TestSearch_MalformedTailKeepsEarlierMatches(t *testing.T) {
	t.Parallel()
	in := docs(
		"broken.el", "(foo 1) (foo",
		"fine.el", "(foo 2)",
	)
	results := Search(in, sexp.Symbol("foo"))
	require.Equal(t, []string{"broken.el", "fine.el"}, resultIDs(results))
	assert.True(t, results[0].Degraded)
	require.Len(t, results[0].Matches, 1)
	assert.Equal(t, "(foo 1)", results[0].Matches[0].Text)
	assert.False(t, results[1].Degraded)
}

func TestSearch_UnreadableDocumentIsSkipped(t *testing.T) {
	t.Parallel()
	in := docs("bad.el", "\"unterminated", "ok.el", "(foo)")
	results := Search(in, sexp.Symbol("foo"))
	assert.Equal(t, []string{"ok.el"}, resultIDs(results))
}

// =============================================================================
// SearchParallel
// =============================================================================

func manyDocs(n int) []Document {
	out := make([]Document, n)
	for i := range out {
		text := fmt.Sprintf("(defun f%d () (other %d))", i, i)
		if i%3 == 0 {
			text = fmt.Sprintf("(defun f%d () (target %d) (target (target)))", i, i)
		}
		out[i] = Document{ID: fmt.Sprintf("doc%03d.el", i), Text: []byte(text)}
	}
	return out
}

func TestSearchParallel_MatchesSerial(t *testing.T) {
	t.Parallel()
	in := manyDocs(50)
	target := sexp.Symbol("target")

	want := Search(in, target)
	for _, workers := range []int{0, 1, 4, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			got, err := SearchParallel(context.Background(), in, target, workers)
			require.NoError(t, err)
			require.Equal(t, resultIDs(want), resultIDs(got))
			for i := range want {
				require.Len(t, got[i].Matches, len(want[i].Matches))
				for j := range want[i].Matches {
					assert.Equal(t, want[i].Matches[j].Span, got[i].Matches[j].Span)
					assert.Equal(t, want[i].Matches[j].Text, got[i].Matches[j].Text)
				}
			}
		})
	}
}

func TestSearchParallel_CanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SearchParallel(ctx, manyDocs(10), sexp.Symbol("target"), 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSearchParallel_ObserveSeesEveryDocument(t *testing.T) {
	t.Parallel()
	in := manyDocs(12)
	seen := make(chan string, len(in))
	_, err := searchParallel(context.Background(), in, sexp.Symbol("target"), 3,
		func(d Document, read *sexp.Document, r Result) {
			assert.Equal(t, d.ID, r.ID)
			assert.Len(t, read.Forms, 1)
			seen <- d.ID
		})
	require.NoError(t, err)
	close(seen)

	var ids []string
	for id := range seen {
		ids = append(ids, id)
	}
	assert.Len(t, ids, len(in))
}
