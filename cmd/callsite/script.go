package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/callsite/internal/runtime"
	"github.com/jward/callsite/internal/store"
	"github.com/jward/callsite/scripts"
)

var scriptCmd = &cobra.Command{
	Use:   "script <file.risor|report> [args...]",
	Short: "Run a Risor script against the index",
	Long: "Runs a Risor script with the reader, the call finder and (when an index exists) the index " +
		"queries available as globals. A name without the .risor extension runs a bundled report: " +
		"callers <symbol>, summary [limit]. Remaining arguments are passed to the script as args.",
	Args: cobra.MinimumNArgs(1),
	RunE: runScript,
}

func runScript(cmd *cobra.Command, args []string) error {
	s, err := openStoreIfExists()
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	name := args[0]
	opts := []runtime.RuntimeOption{
		runtime.WithRuntimeLogger(log),
		runtime.WithOutput(cmd.OutOrStdout()),
	}
	var rt *runtime.Runtime
	var path string
	if strings.HasSuffix(name, ".risor") {
		abs, err := resolveFilePath(name)
		if err != nil {
			return err
		}
		rt = runtime.NewRuntime(s, filepath.Dir(abs), opts...)
		path = abs
	} else {
		rt = runtime.NewRuntime(s, "", append(opts, runtime.WithRuntimeFS(scripts.FS))...)
		path = runtime.ReportScriptPath(name)
	}

	return rt.RunScript(context.Background(), path, map[string]any{
		"args": runtime.StringList(args[1:]),
	})
}

// openStoreIfExists opens the configured database, or returns nil when none
// has been built yet.
func openStoreIfExists() (*store.Store, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting cwd: %w", err)
	}
	dbPath := resolveDBPath(findRepoRoot(cwd))
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Debug().Str("db", dbPath).Msg("no index; store functions unavailable")
		return nil, nil
	}
	return store.NewStore(dbPath)
}
