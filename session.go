package aspcheck

import (
	"log/slog"

	"github.com/spf13/afero"
)

// Session wires the components one configuration needs: options, the
// checker, the result cache and a scheduler over them.
type Session struct {
	Config    Config
	Scheduler *Scheduler
	cache     *Cache
}

// OpenSession builds a Session from cfg. The cache is skipped when
// cfg.NoCache is set; a cache that cannot be opened degrades to memory.
func OpenSession(cfg Config, fs afero.Fs, logger *slog.Logger, extra ...Option) (*Session, error) {
	logger = ensureLogger(logger)
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := cfg.ParseOptions()
	s := &Session{Config: cfg}
	schedOpts := []Option{WithFs(fs)}
	if opts.CacheEnabled() {
		dir := cfg.CacheDir
		if dir == "" {
			dir = DefaultCacheDir()
		}
		s.cache = OpenCache(fs, dir, cfg.CacheBackend, logger)
		schedOpts = append(schedOpts, WithStore(s.cache))
	}

	scheduler, err := NewScheduler(NewChecker(opts, logger), logger, append(schedOpts, extra...)...)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Scheduler = scheduler
	return s, nil
}

// Cache returns the session's cache, or nil when caching is disabled.
func (s *Session) Cache() *Cache {
	return s.cache
}

// Close releases the cache backend.
func (s *Session) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}
