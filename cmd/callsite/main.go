package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jward/callsite"
	"github.com/jward/callsite/internal/config"
	"github.com/jward/callsite/internal/logger"
	"github.com/jward/callsite/internal/metrics"
)

var (
	flagConfig      string
	flagDB          string
	flagFormat      string
	flagDialects    string
	flagParallel    bool
	flagWorkers     int
	flagLogLevel    string
	flagMetricsFile string
)

// Settings resolved by the root command before any subcommand runs.
var (
	cfg  config.Config
	log  zerolog.Logger
	mets *metrics.Metrics
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "callsite",
	Short: "Find call sites in Lisp-family source",
	Long: "callsite reads Lisp-family source (Emacs Lisp, Common Lisp, Scheme, Racket, Clojure, " +
		"Fennel) with an offset-tracking reader and reports every list whose head is a given symbol, " +
		"either directly (find) or through a SQLite index (index, query).",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	// No Run: prints help by default.
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default: "+config.FileName+" at the repo root)")
	pf.StringVar(&flagDB, "db", "", "database path (default: .callsite/index.db relative to repo root)")
	pf.StringVar(&flagFormat, "format", "text", "output format: json|text")
	pf.StringVar(&flagDialects, "dialects", "", "comma-separated dialect filter (e.g. emacs-lisp,scheme)")
	pf.BoolVar(&flagParallel, "parallel", true, "read and extract files with a worker pool")
	pf.IntVar(&flagWorkers, "workers", 0, "worker pool size (default: one per CPU)")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")
	pf.StringVar(&flagMetricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(scriptCmd)
}

// setup loads the config file, applies flag overrides and builds the shared
// logger and metrics.
func setup(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	path := flagConfig
	if path == "" {
		path = filepath.Join(findRepoRoot(cwd), config.FileName)
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, &c); err != nil {
		return err
	}

	cfg = c
	log = logger.New(logger.Config{Level: cfg.LogLevel, Output: os.Stderr})
	mets = metrics.New()
	return nil
}

// applyFlags overrides c with every flag set explicitly on the command line.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.DB = flagDB
	}
	if flags.Changed("format") {
		c.Format = flagFormat
	}
	if flags.Changed("dialects") {
		c.Dialects = splitList(flagDialects)
	}
	if flags.Changed("parallel") {
		c.Parallel = flagParallel
	}
	if flags.Changed("workers") {
		c.Workers = flagWorkers
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("metrics-file") {
		c.MetricsFile = flagMetricsFile
	}
	if err := validateFormat(c.Format); err != nil {
		return err
	}
	return c.Validate()
}

// splitList splits a comma-separated flag value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// engineOptions translates the resolved config into Engine options.
func engineOptions() []callsite.Option {
	opts := []callsite.Option{
		callsite.WithParallel(cfg.Parallel),
		callsite.WithWorkers(cfg.Workers),
		callsite.WithSkipDirs(cfg.SkipDirs...),
		callsite.WithLogger(log),
		callsite.WithMetrics(mets),
	}
	if len(cfg.Dialects) > 0 {
		opts = append(opts, callsite.WithDialects(cfg.Dialects...))
	}
	return opts
}

// writeMetrics writes the metrics textfile when one is configured. Failure
// is logged, never fatal.
func writeMetrics() {
	if cfg.MetricsFile == "" {
		return
	}
	if err := mets.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn().Err(err).Msg("metrics not written")
	}
}

// resolveTargetDir returns the absolute path of the directory to index.
func resolveTargetDir(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root without finding .git.
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the configured database path, relative paths taken
// from repoRoot.
func resolveDBPath(repoRoot string) string {
	return cfg.DBPath(repoRoot)
}
