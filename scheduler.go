package aspcheck

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// RunStats tracks performance metrics of the current or last run. A
// Scheduler keeps one RunStats and resets it in place, so it can be read
// from other goroutines while a run is in progress.
type RunStats struct {
	filesProcessed atomic.Uint64
	totalFiles     atomic.Uint64
	cacheHits      atomic.Uint64
	startNanos     atomic.Int64
	endNanos       atomic.Int64
}

// reset starts a new run over total units.
func (s *RunStats) reset(total int) {
	s.endNanos.Store(0)
	s.filesProcessed.Store(0)
	s.cacheHits.Store(0)
	s.totalFiles.Store(uint64(total))
	s.startNanos.Store(time.Now().UnixNano())
}

// ProgressReporter receives progress updates. Methods are called from
// worker goroutines and must be safe for concurrent use.
type ProgressReporter interface {
	StartFile(path string)
	CompleteFile(path string, status Status, cached bool)
	UpdateProgress(current, total int)
	Complete(stats *RunStats)
}

// NoOpProgressReporter is a no-op implementation
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) StartFile(path string)                                {}
func (n *NoOpProgressReporter) CompleteFile(path string, status Status, cached bool) {}
func (n *NoOpProgressReporter) UpdateProgress(current, total int)                     {}
func (n *NoOpProgressReporter) Complete(stats *RunStats)                              {}

// Scheduler fans units out over a bounded pool of workers, consults the
// Store before parsing and reassembles results in input order.
type Scheduler struct {
	checker  *Checker
	logger   *slog.Logger
	fs       afero.Fs
	store    Store
	workers  int
	progress ProgressReporter
	stats    *RunStats

	sweepOnce sync.Once
}

// Option is a functional option for Scheduler
type Option func(*Scheduler) error

// WithWorkerCount overrides the worker count taken from ParseOptions
func WithWorkerCount(count int) Option {
	return func(s *Scheduler) error {
		if count < 1 {
			return fmt.Errorf("worker count must be at least 1, got %d", count)
		}
		s.workers = count
		return nil
	}
}

// WithStore sets the cache store. Without one, or when ParseOptions
// disables the cache, every unit is parsed.
func WithStore(store Store) Option {
	return func(s *Scheduler) error {
		s.store = store
		return nil
	}
}

// WithFs sets the filesystem paths are read from
func WithFs(fs afero.Fs) Option {
	return func(s *Scheduler) error {
		if fs == nil {
			return fmt.Errorf("filesystem must not be nil")
		}
		s.fs = fs
		return nil
	}
}

// WithProgressReporter sets a progress reporter
func WithProgressReporter(reporter ProgressReporter) Option {
	return func(s *Scheduler) error {
		s.progress = reporter
		return nil
	}
}

func NewScheduler(checker *Checker, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	s := &Scheduler{
		checker:  checker,
		logger:   ensureLogger(logger),
		fs:       afero.NewOsFs(),
		workers:  checker.Options().Threads(),
		progress: &NoOpProgressReporter{},
		stats:    &RunStats{},
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Stats returns the metrics of the last run.
func (s *Scheduler) Stats() *RunStats {
	return s.stats
}

// Run reads and checks every path. Each worker loads its own units, so a
// file's bytes never cross goroutines. An unreadable file becomes a
// failed result; only cancellation of ctx aborts the run.
func (s *Scheduler) Run(ctx context.Context, paths []string) (RunSummary, error) {
	return s.run(ctx, len(paths), func(i int) (string, SourceUnit, error) {
		unit, err := LoadSource(s.fs, paths[i])
		return paths[i], unit, err
	})
}

// RunUnits checks units that were loaded elsewhere, such as stdin.
func (s *Scheduler) RunUnits(ctx context.Context, units []SourceUnit) (RunSummary, error) {
	return s.run(ctx, len(units), func(i int) (string, SourceUnit, error) {
		return units[i].Origin, units[i], nil
	})
}

type loadFunc func(i int) (string, SourceUnit, error)

func (s *Scheduler) run(ctx context.Context, n int, load loadFunc) (RunSummary, error) {
	s.stats.reset(n)
	s.progress.UpdateProgress(0, n)
	s.sweep()

	// Each index is written by exactly one worker, so the slots need no lock.
	results := make([]UnitResult, n)
	workers := min(s.workers, n)

	if workers <= 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return RunSummary{}, err
			}
			results[i] = s.process(i, load)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i := range n {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = s.process(i, load)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return RunSummary{}, err
		}
	}

	s.stats.endNanos.Store(time.Now().UnixNano())
	s.progress.Complete(s.stats)
	s.logger.Debug("Run complete",
		slog.Int("files", n),
		slog.Int("workers", max(workers, 1)),
		slog.Uint64("cache_hits", s.stats.cacheHits.Load()),
		slog.Duration("duration", s.stats.Duration()))
	return NewRunSummary(results), nil
}

func (s *Scheduler) process(i int, load loadFunc) UnitResult {
	origin, unit, err := load(i)
	s.progress.StartFile(origin)

	var out UnitResult
	if err != nil {
		s.logger.Debug("Failed to load source", slog.String("file", origin), slog.String("error", err.Error()))
		out = UnitResult{Origin: origin, Result: LoadFailure(err)}
	} else {
		out = s.check(unit)
	}

	processed := s.stats.filesProcessed.Add(1)
	s.progress.CompleteFile(origin, out.Result.Status, out.Cached)
	s.progress.UpdateProgress(int(processed), int(s.stats.totalFiles.Load()))
	return out
}

// check serves unit from the Store when possible and otherwise parses it
// and records the result.
func (s *Scheduler) check(unit SourceUnit) UnitResult {
	out := UnitResult{Origin: unit.Origin}
	if !s.cacheEnabled() {
		out.Result = s.checker.Parse(unit)
		return out
	}

	key, err := NewCacheKey(unit, s.checker.Options())
	if err != nil {
		s.logger.Warn("Cannot compute cache key", slog.String("file", unit.Origin), slog.String("error", err.Error()))
		out.Result = s.checker.Parse(unit)
		return out
	}

	if result, ok := s.store.Lookup(key); ok {
		s.stats.cacheHits.Add(1)
		s.logger.Debug("Cache hit", slog.String("file", unit.Origin))
		out.Result, out.Cached = result, true
		return out
	}

	out.Result = s.checker.Parse(unit)
	if err := s.store.Store(key, out.Result); err != nil {
		s.logger.Warn("Failed to cache result", slog.String("file", unit.Origin), slog.String("error", err.Error()))
	}
	return out
}

func (s *Scheduler) cacheEnabled() bool {
	return s.store != nil && s.checker.Options().CacheEnabled()
}

// sweep expires old entries once per Scheduler, before the first run.
func (s *Scheduler) sweep() {
	if !s.cacheEnabled() {
		return
	}
	s.sweepOnce.Do(func() {
		if _, err := s.store.Sweep(Retention); err != nil {
			s.logger.Warn("Cache sweep failed", slog.String("error", err.Error()))
		}
	})
}

// Duration returns the time taken by the last run, or the time elapsed so
// far while one is in progress
func (s *RunStats) Duration() time.Duration {
	start := s.startNanos.Load()
	if start == 0 {
		return 0
	}
	end := s.endNanos.Load()
	if end == 0 {
		return time.Since(time.Unix(0, start))
	}
	return time.Duration(end - start)
}

// FilesPerSecond returns the processing rate
func (s *RunStats) FilesPerSecond() float64 {
	duration := s.Duration().Seconds()
	if duration == 0 {
		return 0
	}
	return float64(s.filesProcessed.Load()) / duration
}

// FilesProcessed returns the number of units checked so far
func (s *RunStats) FilesProcessed() int {
	return int(s.filesProcessed.Load())
}

// CacheHits returns the number of results served by the Store
func (s *RunStats) CacheHits() int {
	return int(s.cacheHits.Load())
}
