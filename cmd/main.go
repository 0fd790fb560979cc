package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/gophersatwork/aspcheck"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// flagValues holds the command line settings that override config files.
type flagValues struct {
	format         string
	color          bool
	noColor        bool
	verbose        bool
	quietSuccess   bool
	strict         bool
	ignoreWarnings []string
	exclude        []string
	replaceExclude bool
	threads        int
	noCache        bool
	cacheDir       string
	cacheBackend   string
	stdin          bool
	watch          bool
}

// app carries the process environment so commands can run against an
// in-memory filesystem and buffers in tests.
type app struct {
	fs      afero.Fs
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	cfgFile string
	flags   flagValues
	force   bool
}

func main() {
	a := &app{
		fs:     afero.NewOsFs(), // real fs binding
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	err := fang.Execute(context.Background(), a.rootCmd(),
		fang.WithVersion(aspcheck.Version),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			// Findings are already in the report; only the exit code remains.
			if errors.Is(err, aspcheck.ErrDiagnosticsFound) {
				return
			}
			fang.DefaultErrorHandler(w, styles, err)
		}),
	)
	if err != nil {
		if !errors.Is(err, aspcheck.ErrDiagnosticsFound) {
			logCommandError(err)
		}
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aspcheck [paths...]",
		Short: "A syntax checker for ASP Classic",
		Long: `aspcheck parses ASP Classic pages, global.asa files and VBScript sources
and reports syntax errors.

Directories are searched recursively for .asp, .asa and .vbs files. A "-"
argument reads newline separated paths from standard input.`,
		Example: `  aspcheck site/
  aspcheck --strict --format=sarif site/ > report.sarif
  git diff --name-only | aspcheck -
  aspcheck --watch site/`,
		Version:       aspcheck.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.logger == nil {
				a.logger = setupLogger(a.flags.verbose, a.stderr)
			}
			return nil
		},
		RunE: a.run,
	}

	f := cmd.Flags()
	f.StringVar(&a.flags.format, "format", "auto", "output format: auto, ascii, ci, json, sarif, checkstyle, junit")
	f.BoolVar(&a.flags.color, "color", false, "force colored output")
	f.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&a.flags.verbose, "verbose", false, "show notices, cache hits and debug logging")
	f.BoolVar(&a.flags.quietSuccess, "quiet-success", false, "hide files that parsed successfully")
	f.BoolVar(&a.flags.strict, "strict", false, "treat warnings as errors")
	f.StringSliceVar(&a.flags.ignoreWarnings, "ignore-warnings", nil, "warning codes to silence, e.g. no-asp-tags")
	f.StringSliceVar(&a.flags.exclude, "exclude", nil, "glob patterns to exclude")
	f.BoolVar(&a.flags.replaceExclude, "replace-exclude", false, "replace the default exclusions instead of extending them")
	f.IntVar(&a.flags.threads, "threads", 0, "number of workers, 0 uses every CPU")
	f.BoolVar(&a.flags.noCache, "no-cache", false, "disable the result cache")
	f.StringVar(&a.flags.cacheDir, "cache-dir", "", "cache location")
	f.StringVar(&a.flags.cacheBackend, "cache-backend", aspcheck.BackendFile, "cache storage: file or sqlite")
	f.BoolVar(&a.flags.stdin, "stdin", false, "parse standard input as a single page")
	f.BoolVar(&a.flags.watch, "watch", false, "re-check files when they change")
	cmd.MarkFlagsMutuallyExclusive("color", "no-color")
	cmd.MarkFlagsMutuallyExclusive("stdin", "watch")
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: nearest asp-parser.toml)")

	cmd.AddCommand(a.initConfigCmd())
	return cmd
}

func (a *app) initConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a commented configuration template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := aspcheck.ConfigFileNames[1]
			if len(args) == 1 {
				path = args[0]
			}
			if err := aspcheck.WriteConfigTemplate(a.fs, path, a.force); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Created configuration file: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.force, "force", false, "overwrite an existing file")
	return cmd
}

func (a *app) run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	paths, err := a.inputPaths(args)
	if err != nil {
		return err
	}
	if a.flags.stdin && len(paths) > 0 {
		return aspcheck.NewConfigError("--stdin cannot be combined with path arguments", nil)
	}
	if !a.flags.stdin && len(paths) == 0 {
		return aspcheck.ErrNoInput
	}

	start := "."
	if len(paths) > 0 {
		start = paths[0]
	}
	if a.flags.watch {
		return a.watch(ctx, cmd, start, paths)
	}

	cfg, err := a.loadConfig(cmd, start)
	if err != nil {
		a.logger.Error("Failed to load configuration", "error", err)
		return err
	}

	session, err := aspcheck.OpenSession(cfg, a.fs, a.logger, aspcheck.WithProgressReporter(&ConsoleProgressReporter{
		verbose: cfg.Verbose,
		logger:  a.logger,
	}))
	if err != nil {
		return err
	}
	defer session.Close()

	var summary aspcheck.RunSummary
	if a.flags.stdin {
		summary, err = a.checkStdin(ctx, session)
	} else {
		var files []string
		files, err = aspcheck.CollectFiles(ctx, a.fs, paths, cfg.ParseOptions(), a.logger)
		if err != nil {
			return err
		}
		summary, err = session.Scheduler.Run(ctx, files)
	}
	if err != nil {
		return err
	}

	if err := a.report(cmd, cfg, summary); err != nil {
		return err
	}
	a.logger.Info("Check complete",
		"succeeded", summary.Succeeded(),
		"failed", summary.Failed(),
		"skipped", summary.Skipped(),
		"cached", summary.CachedCount())
	return summary.Err()
}

// inputPaths expands a "-" argument into the path list read from stdin.
func (a *app) inputPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if arg != "-" {
			paths = append(paths, arg)
			continue
		}
		listed, err := aspcheck.ReadPathList(a.stdin)
		if err != nil {
			return nil, err
		}
		paths = append(paths, listed...)
	}
	return paths, nil
}

func (a *app) checkStdin(ctx context.Context, session *aspcheck.Session) (aspcheck.RunSummary, error) {
	unit, err := aspcheck.NewStdinSource(a.stdin)
	if err != nil {
		return aspcheck.NewRunSummary([]aspcheck.UnitResult{{
			Origin: aspcheck.StdinOrigin,
			Result: aspcheck.LoadFailure(err),
		}}), nil
	}
	return session.Scheduler.RunUnits(ctx, []aspcheck.SourceUnit{unit})
}

func (a *app) report(cmd *cobra.Command, cfg aspcheck.Config, summary aspcheck.RunSummary) error {
	format := aspcheck.ResolveFormat(aspcheck.OutputFormat(cfg.Format), a.stdout)
	formatter, err := aspcheck.NewFormatter(format, aspcheck.FormatterOptions{
		Color:        aspcheck.ShouldEnableColor(colorMode(cmd, cfg), a.stdout),
		QuietSuccess: cfg.QuietSuccess,
		Verbose:      cfg.Verbose,
	})
	if err != nil {
		return err
	}
	output, err := formatter.Format(summary)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = a.stdout.Write(output)
	return err
}

func (a *app) watch(ctx context.Context, cmd *cobra.Command, start string, roots []string) error {
	watchMode, err := aspcheck.NewWatchMode(aspcheck.WatchConfig{
		Roots:      roots,
		LoadConfig: func() (aspcheck.Config, error) { return a.loadConfig(cmd, start) },
		ConfigPath: a.cfgFile,
		Logger:     a.logger,
		FS:         a.fs,
		Out:        a.stdout,
	})
	if err != nil {
		return err
	}
	defer watchMode.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watchMode.Start(ctx)
}

// loadConfig merges config files and then applies the flags the user set.
func (a *app) loadConfig(cmd *cobra.Command, start string) (aspcheck.Config, error) {
	cfg, err := aspcheck.LoadConfig(a.fs, start, a.cfgFile, a.logger)
	if err != nil {
		return aspcheck.Config{}, err
	}
	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return aspcheck.Config{}, err
	}
	return cfg, nil
}

func (a *app) applyFlags(cmd *cobra.Command, cfg *aspcheck.Config) {
	changed := cmd.Flags().Changed
	if changed("format") {
		cfg.Format = a.flags.format
	}
	if changed("color") {
		cfg.Color = true
	}
	if changed("no-color") {
		cfg.Color = false
	}
	if changed("verbose") {
		cfg.Verbose = a.flags.verbose
	}
	if changed("quiet-success") {
		cfg.QuietSuccess = a.flags.quietSuccess
	}
	if changed("strict") {
		cfg.Strict = a.flags.strict
	}
	if changed("ignore-warnings") {
		ignored := append(slices.Clone(cfg.IgnoreWarnings), a.flags.ignoreWarnings...)
		slices.Sort(ignored)
		cfg.IgnoreWarnings = slices.Compact(ignored)
	}
	if changed("exclude") {
		cfg.Exclude = append(slices.Clone(cfg.Exclude), a.flags.exclude...)
	}
	if changed("replace-exclude") {
		cfg.ReplaceExclude = a.flags.replaceExclude
	}
	if changed("threads") {
		cfg.Threads = a.flags.threads
	}
	if changed("no-cache") {
		cfg.NoCache = a.flags.noCache
	}
	if changed("cache-dir") {
		cfg.CacheDir = a.flags.cacheDir
	}
	if changed("cache-backend") {
		cfg.CacheBackend = a.flags.cacheBackend
	}
}

// colorMode forces color only for an explicit --color; a config file can
// only turn it off.
func colorMode(cmd *cobra.Command, cfg aspcheck.Config) aspcheck.ColorMode {
	switch {
	case !cfg.Color:
		return aspcheck.ColorNever
	case cmd.Flags().Changed("color"):
		return aspcheck.ColorAlways
	default:
		return aspcheck.ColorAuto
	}
}
