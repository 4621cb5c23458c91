package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/callsite/internal/store"
)

const elispSource = `(defun greet (name)
  (message "Hello, %s" (upcase name)))

(greet "world")
(message "done")
`

// newTestStore creates a migrated store holding one file with a definition
// and two call sites.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })

	f := &store.File{Path: "/src/greet.el", Dialect: "emacs-lisp", Hash: "h", FormCount: 3, LastIndexed: time.Now()}
	_, err = s.InsertFile(f)
	require.NoError(t, err)
	defID, err := s.InsertDefinition(&store.Definition{
		FileID: f.ID, Name: "greet", Kind: "defun", StartOffset: 0, EndOffset: 58, EndLine: 1, EndCol: 38,
	})
	require.NoError(t, err)
	_, err = s.InsertCallSite(&store.CallSite{
		FileID: f.ID, DefinitionID: &defID, Callee: "message",
		StartOffset: 22, EndOffset: 57, StartLine: 1, StartCol: 2, EndLine: 1, EndCol: 37, Depth: 1,
		Text: `(message "Hello, %s" (upcase name))`,
	})
	require.NoError(t, err)
	_, err = s.InsertCallSite(&store.CallSite{
		FileID: f.ID, Callee: "message",
		StartOffset: 76, EndOffset: 92, StartLine: 4, StartCol: 0, EndLine: 4, EndCol: 16,
		Text: `(message "done")`,
	})
	require.NoError(t, err)
	return s
}

// =============================================================================
// Host functions without a store
// =============================================================================

func TestRunSource_ReadForms(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
result := read_forms(src)
assert(!result["degraded"], "unexpected degraded read")
forms := result["forms"]
assert(len(forms) == 3, 'expected 3 forms, got {len(forms)}')
assert(forms[0]["kind"] == "list")
assert(forms[1]["text"] == "(greet \"world\")", forms[1]["text"])
assert(forms[1]["line"] == 3)
assert(forms[1]["col"] == 0)
`
	err := rt.RunSource(context.Background(), script, map[string]any{"src": elispSource})
	require.NoError(t, err)
}

func TestRunSource_ReadFormsDegraded(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
result := read_forms("(foo 1) (bar")
assert(result["degraded"])
assert(len(result["forms"]) == 1)
assert(result["error"] != "")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_ReadFormsTopLevelAtomSpan(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
forms := read_forms("foo (bar foo)")["forms"]
assert(len(forms) == 2)
assert(forms[0]["text"] == "foo", forms[0]["text"])
assert(forms[0]["start"] == 0)
assert(forms[0]["end"] == 3)
assert(forms[1]["start"] == 4)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_FindCalls(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
matches := find_calls("(foo (bar 1) (baz (bar 2)))", "bar")
assert(len(matches) == 2, 'expected 2 matches, got {len(matches)}')
assert(matches[0]["text"] == "(bar 1)")
assert(matches[0]["start"] == 5)
assert(matches[0]["end"] == 12)
assert(matches[1]["form"] == "(bar 2)")

none := find_calls("(bar-related (x bar))", "bar")
assert(len(none) == 0)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_FindCallsInvalidTarget(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `find_calls("(a)", "(not an atom)")`, nil)
	require.Error(t, err)
}

func TestRunSource_FormSpans(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")

	script := `
spans := form_spans("(a (b))")
assert(len(spans) == 4, 'expected 4 entries, got {len(spans)}')
last := spans[3]
assert(last["form"] == "(a (b))")
assert(last["start"] == 0)
assert(last["end"] == 7)
assert(spans[0]["kind"] == "symbol")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_Emit(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	rt := NewRuntime(nil, "", WithOutput(&out))

	require.NoError(t, rt.RunSource(context.Background(), `emit("a", 1, true)
emit("second")`, nil))
	assert.Equal(t, "a 1 true\nsecond\n", out.String())
}

func TestRunSource_Log(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	rt := NewRuntime(nil, "", WithRuntimeLogger(zerolog.New(&logs)))

	require.NoError(t, rt.RunSource(context.Background(), `log.Warn("careful")`, nil))
	assert.Contains(t, logs.String(), `"message":"careful"`)
	assert.Contains(t, logs.String(), `"component":"script"`)
	assert.Contains(t, logs.String(), `"level":"warn"`)
}

func TestRunSource_StoreFunctionsNeedStore(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `callers("x")`, nil)
	require.Error(t, err)
}

// =============================================================================
// Store host functions
// =============================================================================

func TestRunSource_Callers(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newTestStore(t), "")

	script := `
rows := callers("message")
assert(len(rows) == 2, 'expected 2, got {len(rows)}')
assert(rows[0]["caller"] == "greet")
assert(rows[0]["path"] == "/src/greet.el")
assert(rows[0]["start_line"] == 1)
assert(rows[1]["caller"] == "")
assert(len(callers("nothing")) == 0)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_CalleesAndDefinitions(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newTestStore(t), "")

	script := `
defs := definitions("greet")
assert(len(defs) == 1)
assert(defs[0]["kind"] == "defun")

inner := callees("greet")
assert(len(inner) == 1)
assert(inner[0]["callee"] == "message")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_SymbolsFilesSummary(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newTestStore(t), "")

	script := `
syms := symbols("m")
assert(len(syms) == 1)
assert(syms[0]["name"] == "message")
assert(syms[0]["calls"] == 2)
assert(len(symbols()) == 2)

fs := files()
assert(len(fs) == 1)
assert(fs[0]["dialect"] == "emacs-lisp")
assert(!fs[0]["malformed"])

sum := summary()
assert(len(sum) == 1)
assert(sum[0]["call_sites"] == 2)
assert(sum[0]["definitions"] == 1)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_DBQuery(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newTestStore(t), "")

	script := `
rows := db_query("SELECT callee, COUNT(*) AS n FROM call_sites WHERE callee = ? GROUP BY callee", "message")
assert(len(rows) == 1)
assert(rows[0]["n"] == 2)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_DBQueryRejectsWrites(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(newTestStore(t), "")
	err := rt.RunSource(context.Background(), `db_query("DELETE FROM call_sites")`, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT")
}

// =============================================================================
// Script loading
// =============================================================================

func TestRunScript_LoadsFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.risor"), []byte(`result := 1 + 1`), 0o644))

	rt := NewRuntime(nil, dir)
	require.NoError(t, rt.RunScript(context.Background(), "test.risor", nil))
}

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, t.TempDir())
	require.Error(t, rt.RunScript(context.Background(), "nonexistent.risor", nil))
}

func TestLoadScript_FromFSFS(t *testing.T) {
	t.Parallel()

	content := `x := 42`
	mapFS := fstest.MapFS{
		"report/callers.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript(ReportScriptPath("callers"))
	require.NoError(t, err)
	assert.Equal(t, content, got)

	// Absolute-style path should be resolved within the FS.
	got, err = rt.LoadScript("/report/callers.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFSFS_NotFound(t *testing.T) {
	t.Parallel()
	rt := NewRuntime(nil, "", WithRuntimeFS(fstest.MapFS{}))

	_, err := rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

func TestImport_FSImporter(t *testing.T) {
	t.Parallel()
	// Risor's FSImporter resolves "fmt_helpers" by trying name + ".risor".
	mapFS := fstest.MapFS{
		"fmt_helpers.risor": &fstest.MapFile{Data: []byte(`
func location(row) {
	return row["path"] + ":" + string(row["start_line"] + 1)
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import fmt_helpers

loc := fmt_helpers.location({"path": "a.el", "start_line": 4})
assert(loc == "a.el:5", 'got ' + loc)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporterSeesHostGlobals(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "count.risor"), []byte(`
func calls(src, symbol) {
	return len(find_calls(src, symbol))
}
`), 0o644))

	rt := NewRuntime(nil, dir)
	script := `
import count

n := count.calls("(f (f 1))", "f")
assert(n == 2, 'expected 2, got {n}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}
