package aspcheck

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// DefaultDebounce is how long watch mode waits for edits to settle.
const DefaultDebounce = 100 * time.Millisecond

// WatchMode provides continuous file monitoring and re-checking
type WatchMode struct {
	roots      []string
	load       func() (Config, error)
	configPath string
	logger     *slog.Logger
	fs         afero.Fs
	out        io.Writer
	extra      []Option

	watcher      *fsnotify.Watcher
	debounceTime time.Duration

	// runMu serializes runs and guards session and formatter
	runMu     sync.Mutex
	session   *Session
	formatter Formatter
	useColor  atomic.Bool

	// Debouncing state
	mu             sync.Mutex
	pendingChanges map[string]time.Time
	debounceTimer  *time.Timer

	stats WatchStats
}

// WatchStats holds statistics about watch mode operation
type WatchStats struct {
	mu            sync.Mutex
	totalRuns     int
	filesChecked  int
	failuresFound int
	lastRunTime   time.Time
}

// WatchConfig holds configuration for watch mode
type WatchConfig struct {
	Roots []string
	// LoadConfig produces the effective configuration. It is called again
	// whenever a config file changes.
	LoadConfig func() (Config, error)
	// ConfigPath is an explicitly chosen config file to watch besides the
	// discovered ones.
	ConfigPath   string
	Logger       *slog.Logger
	FS           afero.Fs
	Out          io.Writer
	DebounceTime time.Duration
	// SchedulerOptions are appended to every scheduler watch mode builds.
	SchedulerOptions []Option
}

// NewWatchMode loads the configuration once and prepares the watcher.
func NewWatchMode(cfg WatchConfig) (*WatchMode, error) {
	if cfg.LoadConfig == nil {
		return nil, NewConfigError("watch mode requires a config loader", nil)
	}
	if len(cfg.Roots) == 0 {
		return nil, ErrNoInput
	}
	cfg.Logger = ensureLogger(cfg.Logger)
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.DebounceTime == 0 {
		cfg.DebounceTime = DefaultDebounce
	}

	w := &WatchMode{
		roots:          cfg.Roots,
		load:           cfg.LoadConfig,
		configPath:     cfg.ConfigPath,
		logger:         cfg.Logger,
		fs:             cfg.FS,
		out:            cfg.Out,
		extra:          cfg.SchedulerOptions,
		debounceTime:   cfg.DebounceTime,
		pendingChanges: make(map[string]time.Time),
	}
	if err := w.reload(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = w.session.Close()
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w.watcher = watcher
	return w, nil
}

// reload rebuilds the session and formatter from a fresh config. On
// failure the previous session stays active.
func (w *WatchMode) reload() error {
	cfg, err := w.load()
	if err != nil {
		return err
	}
	session, err := OpenSession(cfg, w.fs, w.logger, w.extra...)
	if err != nil {
		return err
	}

	format := OutputFormat(cfg.Format)
	if format == FormatAuto {
		format = FormatASCII
	}
	useColor := cfg.Color && ShouldEnableColor(ColorAuto, w.out)
	formatter, err := NewFormatter(format, FormatterOptions{
		Color:        useColor,
		QuietSuccess: cfg.QuietSuccess,
		Verbose:      cfg.Verbose,
	})
	if err != nil {
		_ = session.Close()
		return err
	}

	w.runMu.Lock()
	previous := w.session
	w.session, w.formatter = session, formatter
	w.useColor.Store(useColor)
	w.runMu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			w.logger.Warn("Failed to close previous cache", slog.String("error", err.Error()))
		}
	}
	return nil
}

// Start runs a full check, then re-checks changed files until ctx is done.
func (w *WatchMode) Start(ctx context.Context) error {
	w.printHeader()
	w.logger.Info("Starting watch mode", slog.Any("roots", w.roots))

	if err := w.runAll(ctx); err != nil {
		return fmt.Errorf("initial run failed: %w", err)
	}

	for _, root := range w.roots {
		w.addDirsToWatcher(root)
	}
	w.watchConfigFiles()

	w.printWatchingMessage()
	return w.processEvents(ctx)
}

// Stop gracefully stops the watcher and releases the cache
func (w *WatchMode) Stop() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	var errs []error
	if w.watcher != nil {
		errs = append(errs, w.watcher.Close())
	}
	w.runMu.Lock()
	if w.session != nil {
		errs = append(errs, w.session.Close())
	}
	w.runMu.Unlock()
	return errors.Join(errs...)
}

// runAll checks every file under the roots.
func (w *WatchMode) runAll(ctx context.Context) error {
	w.runMu.Lock()
	defer w.runMu.Unlock()

	files, err := CollectFiles(ctx, w.fs, w.roots, w.session.Config.ParseOptions(), w.logger)
	if err != nil {
		return err
	}
	return w.runLocked(ctx, files)
}

// runLocked checks files and prints the summary. The caller holds runMu.
func (w *WatchMode) runLocked(ctx context.Context, files []string) error {
	summary, err := w.session.Scheduler.Run(ctx, files)
	if err != nil {
		return err
	}
	output, err := w.formatter.Format(summary)
	if err != nil {
		return err
	}
	_, _ = w.out.Write(output)
	fmt.Fprintln(w.out)
	w.updateStats(summary)
	return nil
}

// addDirsToWatcher adds every non-excluded directory below root
func (w *WatchMode) addDirsToWatcher(root string) {
	matcher, err := NewMatcher(w.session.Config.ParseOptions().Exclusions())
	if err != nil {
		w.logger.Warn("Invalid exclusions, watching everything", slog.String("error", err.Error()))
		matcher, _ = NewMatcher(nil)
	}

	_ = afero.Walk(w.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.logger.Warn("Error walking path", slog.String("path", path), slog.String("error", err.Error()))
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && matcher.MatchDir(RelPath(root, path)) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// watchConfigFiles watches the directories of every config file in play.
func (w *WatchMode) watchConfigFiles() {
	paths := slices.Clone(w.session.Config.Sources)
	if w.configPath != "" {
		paths = append(paths, w.configPath)
	}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
			w.logger.Warn("Failed to watch config file", slog.String("path", p), slog.String("error", err.Error()))
		}
	}
}

// processEvents handles file system events with debouncing
func (w *WatchMode) processEvents(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping watch mode")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(ctx, event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))
		}
	}
}

// handleEvent processes a single file system event
func (w *WatchMode) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !w.shouldProcessEvent(event) {
		return
	}

	if w.isConfigFile(event.Name) {
		w.handleConfigChange(ctx)
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := w.fs.Stat(event.Name); err == nil && info.IsDir() {
			w.addDirsToWatcher(event.Name)
			return
		}
	}

	if !IsSourceFile(event.Name) {
		return
	}
	w.queueChange(ctx, event.Name)
}

// queueChange records path and restarts the debounce timer
func (w *WatchMode) queueChange(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pendingChanges[path] = time.Now()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceTime, func() {
		w.processPendingChanges(ctx)
	})
}

// shouldProcessEvent filters events we care about
func (w *WatchMode) shouldProcessEvent(event fsnotify.Event) bool {
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// isConfigFile reports whether path is a discoverable config file or the
// explicitly chosen one.
func (w *WatchMode) isConfigFile(path string) bool {
	if slices.Contains(ConfigFileNames, filepath.Base(path)) {
		return true
	}
	if w.configPath == "" {
		return false
	}

	absConfigPath, _ := filepath.Abs(w.configPath)
	absEventPath, _ := filepath.Abs(path)
	return absConfigPath == absEventPath
}

// handleConfigChange reloads config and re-checks everything
func (w *WatchMode) handleConfigChange(ctx context.Context) {
	w.printTimestamp()
	fmt.Fprintln(w.out, w.paint(color.FgYellow, color.Bold).Sprint("Config file changed"))
	fmt.Fprintln(w.out, w.paint(color.FgCyan).Sprint("Reloading configuration and re-checking all files..."))

	if err := w.reload(); err != nil {
		w.printError(fmt.Sprintf("Failed to reload config: %v", err))
		return
	}
	w.watchConfigFiles()

	if err := w.runAll(ctx); err != nil {
		w.printError(fmt.Sprintf("Check failed: %v", err))
	}
}

// processPendingChanges re-checks all pending file changes
func (w *WatchMode) processPendingChanges(ctx context.Context) {
	w.mu.Lock()
	changes := make([]string, 0, len(w.pendingChanges))
	for path := range w.pendingChanges {
		changes = append(changes, path)
	}
	w.pendingChanges = make(map[string]time.Time)
	w.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	w.runMu.Lock()
	defer w.runMu.Unlock()
	files := w.existingFiles(changes)
	if len(files) == 0 {
		return
	}

	w.printTimestamp()
	fileText := "file"
	if len(files) > 1 {
		fileText = "files"
	}
	fmt.Fprintln(w.out, w.paint(color.FgMagenta).Sprintf("Re-checking %d changed %s...", len(files), fileText))

	if err := w.runLocked(ctx, files); err != nil && !errors.Is(err, context.Canceled) {
		w.printError(fmt.Sprintf("Check failed: %v", err))
	}
}

// existingFiles sorts paths and drops deleted or excluded ones. The
// caller holds runMu.
func (w *WatchMode) existingFiles(paths []string) []string {
	matcher, err := NewMatcher(w.session.Config.ParseOptions().Exclusions())
	if err != nil {
		matcher, _ = NewMatcher(nil)
	}

	files := make([]string, 0, len(paths))
	for _, path := range paths {
		info, err := w.fs.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				w.logger.Debug("File was deleted, skipping", slog.String("path", path))
				continue
			}
			w.logger.Warn("Failed to stat file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		if info.IsDir() || matcher.Match(w.relToRoot(path)) {
			continue
		}
		files = append(files, path)
	}
	slices.Sort(files)
	return files
}

// relToRoot returns path relative to the first root containing it
func (w *WatchMode) relToRoot(path string) string {
	for _, root := range w.roots {
		if IsSubPath(root, path) {
			return RelPath(root, path)
		}
	}
	return filepath.Base(path)
}

func (w *WatchMode) paint(attrs ...color.Attribute) *color.Color {
	return paint(w.useColor.Load(), attrs...)
}

// printHeader prints the initial header
func (w *WatchMode) printHeader() {
	fmt.Fprintln(w.out, w.paint(color.Bold).Sprint("aspcheck watch mode"))
	fmt.Fprintln(w.out)
}

// printWatchingMessage prints the watching message
func (w *WatchMode) printWatchingMessage() {
	fmt.Fprintln(w.out, w.paint(color.FgGreen, color.Bold).Sprintf("Watching %d path(s) for changes...", len(w.roots)))
	fmt.Fprintln(w.out, w.paint(color.FgHiBlack).Sprint("Press Ctrl+C to stop"))
	fmt.Fprintln(w.out)
}

// printTimestamp prints the current timestamp
func (w *WatchMode) printTimestamp() {
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(w.out, "[%s] ", w.paint(color.FgHiBlack).Sprint(timestamp))
}

// printError prints an error message
func (w *WatchMode) printError(msg string) {
	fmt.Fprintln(w.out, w.paint(color.FgRed, color.Bold).Sprint("Error: ")+msg)
	fmt.Fprintln(w.out)
}

// updateStats updates watch mode statistics
func (w *WatchMode) updateStats(summary RunSummary) {
	w.stats.mu.Lock()
	defer w.stats.mu.Unlock()

	w.stats.totalRuns++
	w.stats.filesChecked += summary.Total()
	w.stats.failuresFound += summary.Failed()
	w.stats.lastRunTime = time.Now()
}

// GetStats returns current watch mode statistics
func (w *WatchMode) GetStats() (runs, files, failures int) {
	w.stats.mu.Lock()
	defer w.stats.mu.Unlock()
	return w.stats.totalRuns, w.stats.filesChecked, w.stats.failuresFound
}
