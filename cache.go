package aspcheck

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// Retention is how long a persisted entry survives the sweep at run start.
const Retention = 24 * time.Hour

// CacheDirEnv overrides the default cache directory.
const CacheDirEnv = "ASP_PARSER_CACHE_DIR"

// Persisted storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// CacheKey identifies a result by the unit's bytes and the options that
// shaped it. Equal keys imply equal results.
type CacheKey struct {
	Content [32]byte
	Options [32]byte
}

// NewCacheKey hashes the raw bytes of unit and the fingerprint of opts
// for the unit's kind.
func NewCacheKey(unit SourceUnit, opts ParseOptions) (CacheKey, error) {
	fp, err := opts.Fingerprint(unit.Kind)
	if err != nil {
		return CacheKey{}, err
	}
	return CacheKey{Content: sha256.Sum256(unit.Raw), Options: fp}, nil
}

// String returns the hex name under which backends persist the entry.
func (k CacheKey) String() string {
	h := sha256.New()
	h.Write(k.Content[:])
	h.Write(k.Options[:])
	return hex.EncodeToString(h.Sum(nil))
}

// DefaultCacheDir returns $ASP_PARSER_CACHE_DIR, or asp-classic-parser
// under the user cache directory.
func DefaultCacheDir() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "asp-classic-parser")
}

// Cache is the Store used by the Scheduler: a run-scoped memory layer in
// front of an optional persisted Backend. A Cache without a backend is an
// empty cache that only remembers the current run.
type Cache struct {
	logger *slog.Logger
	now    func() time.Time

	// storageMu serializes every backend call; it is never held while
	// parsing.
	storageMu sync.Mutex
	backend   Backend

	mu     sync.RWMutex
	memory map[CacheKey]ParseResult
}

// NewCache wraps backend, which may be nil.
func NewCache(backend Backend, logger *slog.Logger) *Cache {
	return &Cache{
		logger:  ensureLogger(logger),
		now:     time.Now,
		backend: backend,
		memory:  make(map[CacheKey]ParseResult),
	}
}

// OpenCache opens the named backend under dir. When the storage cannot be
// opened the failure is logged and a memory-only cache is returned, so a
// broken cache never aborts a run.
func OpenCache(fs afero.Fs, dir, backend string, logger *slog.Logger) *Cache {
	logger = ensureLogger(logger)
	if dir == "" {
		dir = DefaultCacheDir()
	}

	var (
		b   Backend
		err error
	)
	switch backend {
	case BackendSQLite:
		b, err = NewSQLiteBackend(filepath.Join(dir, "cache.db"))
	case BackendFile, "":
		b, err = NewFileBackend(fs, dir)
	default:
		err = fmt.Errorf("unknown cache backend %q", backend)
	}
	if err != nil {
		logger.Warn("Cache storage unavailable, continuing with an empty cache",
			slog.String("dir", dir),
			slog.String("backend", backend),
			slog.String("error", err.Error()))
		return NewCache(nil, logger)
	}

	logger.Debug("Cache opened", slog.String("dir", dir), slog.String("backend", backend))
	return NewCache(b, logger)
}

// Persistent reports whether entries outlive the run.
func (c *Cache) Persistent() bool {
	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	return c.backend != nil
}

func (c *Cache) Lookup(key CacheKey) (ParseResult, bool) {
	c.mu.RLock()
	result, ok := c.memory[key]
	c.mu.RUnlock()
	if ok {
		return result, true
	}

	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	if c.backend == nil {
		return ParseResult{}, false
	}

	entry, err := c.backend.Get(key.String())
	switch {
	case err == nil:
	case errors.Is(err, ErrEntryNotFound):
		return ParseResult{}, false
	case errors.Is(err, ErrCorruptEntry):
		c.logger.Warn("Ignoring corrupt cache entry",
			slog.String("key", key.String()),
			slog.String("error", err.Error()))
		return ParseResult{}, false
	default:
		c.degrade(err)
		return ParseResult{}, false
	}

	c.mu.Lock()
	c.memory[key] = entry.Result
	c.mu.Unlock()
	return entry.Result, true
}

func (c *Cache) Store(key CacheKey, result ParseResult) error {
	c.mu.Lock()
	c.memory[key] = result
	c.mu.Unlock()

	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	if c.backend == nil {
		return nil
	}
	if err := c.backend.Put(key.String(), CacheEntry{Result: result, StoredAt: c.now()}); err != nil {
		return NewCacheError("failed to store cache entry", err).WithDetails(key.String())
	}
	return nil
}

func (c *Cache) Sweep(maxAge time.Duration) (int, error) {
	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	if c.backend == nil {
		return 0, nil
	}
	removed, err := c.backend.Sweep(c.now().Add(-maxAge))
	if err != nil {
		return removed, NewCacheError("failed to sweep cache", err)
	}
	if removed > 0 {
		c.logger.Info("Swept expired cache entries", slog.Int("removed", removed))
	}
	return removed, nil
}

func (c *Cache) Close() error {
	c.storageMu.Lock()
	defer c.storageMu.Unlock()
	if c.backend == nil {
		return nil
	}
	err := c.backend.Close()
	c.backend = nil
	return err
}

// degrade drops the backend after an unreadable-storage error. The caller
// holds storageMu.
func (c *Cache) degrade(err error) {
	c.logger.Warn("Cache storage unreadable, continuing with an empty cache",
		slog.String("error", err.Error()))
	if cerr := c.backend.Close(); cerr != nil {
		c.logger.Debug("Closing degraded cache backend failed", slog.String("error", cerr.Error()))
	}
	c.backend = nil
}
