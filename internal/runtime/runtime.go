package runtime

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/rs/zerolog"

	"github.com/jward/callsite/internal/logger"
	"github.com/jward/callsite/internal/store"
)

// Runtime embeds a Risor VM and exposes the reader, the call finder and
// index queries to report scripts.
type Runtime struct {
	store      *store.Store
	scriptsDir string
	fsys       fs.FS
	log        zerolog.Logger
	out        io.Writer
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts, and resolves their imports, from fsys
// rather than the scripts directory. The bundled reports use scripts.FS.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithRuntimeLogger sets the logger behind the scripts' log object.
func WithRuntimeLogger(l zerolog.Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = logger.Component(l, "script")
	}
}

// WithOutput sets where emit writes. The default is os.Stdout.
func WithOutput(w io.Writer) RuntimeOption {
	return func(r *Runtime) {
		r.out = w
	}
}

// NewRuntime creates a Runtime wired to the given Store and scripts
// directory. The Store may be nil, in which case only the store-independent
// host functions are available.
func NewRuntime(s *store.Store, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		store:      s,
		scriptsDir: scriptsDir,
		log:        logger.Nop(),
		out:        os.Stdout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunScript runs the script at scriptPath. extraGlobals, usually "args",
// are added to the host functions and override them on name clashes.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, scriptPath, extraGlobals)
}

// RunSource is RunScript for inline source.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	r.log.Debug().Str("script", label).Msg("run")
	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter resolves `import name` to name.risor in the script FS or
// directory, exposing the host functions to imported modules too. Without
// either there is nothing to import from.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript returns the source of a script. Relative paths are taken from
// the script FS when one is set, else from the scripts directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// fs.FS paths are unrooted: "/report/callers.risor" is "report/callers.risor".
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// ReportScriptPath returns the path of a bundled report script.
func ReportScriptPath(name string) string {
	return filepath.Join("report", name+".risor")
}

// buildGlobals returns the host functions, the log object and extra.
func (r *Runtime) buildGlobals(extra map[string]any) map[string]any {
	globals := map[string]any{
		"read_forms": makeReadFormsFn(),
		"find_calls": makeFindCallsFn(),
		"form_spans": makeFormSpansFn(),
		"emit":       makeEmitFn(r.out),
		"log":        mustProxy(&logObject{log: r.log}),
	}

	// Index queries need an index; `callsite script` may run before the first `index`.
	if r.store != nil {
		globals["callers"] = makeCallersFn(r.store)
		globals["callees"] = makeCalleesFn(r.store)
		globals["definitions"] = makeDefinitionsFn(r.store)
		globals["symbols"] = makeSymbolsFn(r.store)
		globals["files"] = makeFilesFn(r.store)
		globals["summary"] = makeSummaryFn(r.store)
		globals["db_query"] = makeDBQueryFn(r.store)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
