package aspcheck

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer lets the debounce goroutine and the test share output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func staticConfig(modify func(*Config)) func() (Config, error) {
	return func() (Config, error) {
		cfg := DefaultConfig()
		cfg.Format = "ascii"
		cfg.NoCache = true
		if modify != nil {
			modify(&cfg)
		}
		return cfg, nil
	}
}

func newTestWatchMode(t *testing.T, fs afero.Fs, out *syncBuffer, load func() (Config, error)) *WatchMode {
	t.Helper()
	watchMode, err := NewWatchMode(WatchConfig{
		Roots:        []string{"/site"},
		LoadConfig:   load,
		Logger:       quietLogger(),
		FS:           fs,
		Out:          out,
		DebounceTime: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watchMode.Stop() })
	return watchMode
}

func TestNewWatchMode(t *testing.T) {
	tests := []struct {
		name        string
		config      WatchConfig
		expectError bool
		errIs       error
	}{
		{
			name:   "successful creation with default debounce",
			config: WatchConfig{Roots: []string{"/site"}, LoadConfig: staticConfig(nil)},
		},
		{
			name:   "custom debounce time",
			config: WatchConfig{Roots: []string{"/site"}, LoadConfig: staticConfig(nil), DebounceTime: 200 * time.Millisecond},
		},
		{
			name:        "no roots",
			config:      WatchConfig{LoadConfig: staticConfig(nil)},
			expectError: true,
			errIs:       ErrNoInput,
		},
		{
			name:        "config loader fails",
			config:      WatchConfig{Roots: []string{"/site"}, LoadConfig: func() (Config, error) { return Config{}, ErrNoInput }},
			expectError: true,
			errIs:       ErrNoInput,
		},
		{
			name:        "invalid config",
			config:      WatchConfig{Roots: []string{"/site"}, LoadConfig: staticConfig(func(c *Config) { c.Threads = -1 })},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.FS = afero.NewMemMapFs()
			tt.config.Logger = quietLogger()

			watchMode, err := NewWatchMode(tt.config)
			if tt.expectError {
				require.Error(t, err)
				assert.Nil(t, watchMode)
				if tt.errIs != nil {
					assert.ErrorIs(t, err, tt.errIs)
				}
				return
			}

			require.NoError(t, err)
			defer watchMode.Stop()
			if tt.config.DebounceTime != 0 {
				assert.Equal(t, tt.config.DebounceTime, watchMode.debounceTime)
			} else {
				assert.Equal(t, DefaultDebounce, watchMode.debounceTime)
			}
		})
	}

	t.Run("missing loader", func(t *testing.T) {
		_, err := NewWatchMode(WatchConfig{Roots: []string{"/site"}})
		assert.Error(t, err)
	})
}

func TestWatchMode_ShouldProcessEvent(t *testing.T) {
	watchMode := newTestWatchMode(t, afero.NewMemMapFs(), &syncBuffer{}, staticConfig(nil))

	tests := []struct {
		name     string
		op       fsnotify.Op
		expected bool
	}{
		{"write event", fsnotify.Write, true},
		{"create event", fsnotify.Create, true},
		{"rename event", fsnotify.Rename, true},
		{"remove event", fsnotify.Remove, false},
		{"chmod event", fsnotify.Chmod, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := fsnotify.Event{Name: "/site/default.asp", Op: tt.op}
			assert.Equal(t, tt.expected, watchMode.shouldProcessEvent(event))
		})
	}
}

func TestWatchMode_IsConfigFile(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		eventPath  string
		expected   bool
	}{
		{"discovered name", "", "/site/asp-parser.toml", true},
		{"hidden discovered name", "", "/site/sub/.asp-parser.toml", true},
		{"explicit config", "/etc/aspcheck.toml", "/etc/aspcheck.toml", true},
		{"source file", "/etc/aspcheck.toml", "/site/default.asp", false},
		{"other toml", "", "/site/other.toml", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			watchMode := newTestWatchMode(t, afero.NewMemMapFs(), &syncBuffer{}, staticConfig(nil))
			watchMode.configPath = tt.configPath
			assert.Equal(t, tt.expected, watchMode.isConfigFile(tt.eventPath))
		})
	}
}

func TestWatchMode_ExistingFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/site/b.asp":              validASP,
		"/site/a.asp":              validASP,
		"/site/js/app.min.asp":     validASP,
		"/site/node_modules/x.asp": validASP,
	})
	watchMode := newTestWatchMode(t, fs, &syncBuffer{}, staticConfig(nil))

	watchMode.runMu.Lock()
	files := watchMode.existingFiles([]string{"/site/b.asp", "/site/deleted.asp", "/site/a.asp", "/site/js/app.min.asp", "/site"})
	watchMode.runMu.Unlock()
	assert.Equal(t, []string{"/site/a.asp", "/site/b.asp"}, files)
}

func TestWatchMode_RechecksChangedFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/site/default.asp": validASP,
		"/site/cart.asp":    validASP,
	})
	out := &syncBuffer{}
	watchMode := newTestWatchMode(t, fs, out, staticConfig(nil))
	ctx := context.Background()

	require.NoError(t, watchMode.runAll(ctx))
	assert.Contains(t, out.String(), "Parsing complete: 2 succeeded, 0 failed, 0 skipped")

	require.NoError(t, afero.WriteFile(fs, "/site/cart.asp", []byte(missingEnd), 0o644))
	watchMode.handleEvent(ctx, fsnotify.Event{Name: "/site/cart.asp", Op: fsnotify.Write})
	watchMode.handleEvent(ctx, fsnotify.Event{Name: "/site/cart.asp", Op: fsnotify.Write})
	watchMode.handleEvent(ctx, fsnotify.Event{Name: "/site/notes.txt", Op: fsnotify.Write})

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Parsing complete: 0 succeeded, 1 failed, 0 skipped")
	}, time.Second, 5*time.Millisecond)
	assert.Contains(t, out.String(), "Re-checking 1 changed file...")
	assert.Contains(t, out.String(), "✖ /site/cart.asp")

	require.Eventually(t, func() bool {
		runs, _, _ := watchMode.GetStats()
		return runs == 2
	}, time.Second, 5*time.Millisecond)
	_, files, failures := watchMode.GetStats()
	assert.Equal(t, 3, files)
	assert.Equal(t, 1, failures)
}

func TestWatchMode_ConfigChangeReloads(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/site/default.asp": validASP,
		"/site/notes.asp":   "plain html",
	})

	var loads atomic.Int32
	load := func() (Config, error) {
		n := loads.Add(1)
		cfg := DefaultConfig()
		cfg.Format = "ascii"
		cfg.NoCache = true
		cfg.Strict = n > 1
		return cfg, nil
	}
	out := &syncBuffer{}
	watchMode := newTestWatchMode(t, fs, out, load)
	ctx := context.Background()

	require.NoError(t, watchMode.runAll(ctx))
	assert.Contains(t, out.String(), "Parsing complete: 1 succeeded, 0 failed, 1 skipped")

	watchMode.handleEvent(ctx, fsnotify.Event{Name: "/site/asp-parser.toml", Op: fsnotify.Write})
	assert.Equal(t, int32(2), loads.Load())
	assert.Contains(t, out.String(), "Config file changed")
	assert.Contains(t, out.String(), "Parsing complete: 1 succeeded, 1 failed, 0 skipped")
	assert.True(t, watchMode.session.Config.Strict)
}

func TestWatchMode_ConfigReloadFailureKeepsSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/site/default.asp": validASP})

	var loads atomic.Int32
	load := func() (Config, error) {
		if loads.Add(1) > 1 {
			return Config{}, NewConfigError("failed parsing config file", nil)
		}
		return staticConfig(nil)()
	}
	out := &syncBuffer{}
	watchMode := newTestWatchMode(t, fs, out, load)
	before := watchMode.session

	watchMode.handleConfigChange(context.Background())
	assert.Contains(t, out.String(), "Failed to reload config")
	assert.Same(t, before, watchMode.session)
}

func TestWatchMode_GracefulShutdown(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/site/default.asp": validASP})
	out := &syncBuffer{}
	watchMode := newTestWatchMode(t, fs, out, staticConfig(nil))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- watchMode.Start(ctx)
	}()

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch mode did not shut down gracefully")
	}
	assert.Contains(t, out.String(), "Watching 1 path(s) for changes...")
	assert.Contains(t, out.String(), "✓ /site/default.asp parsed successfully")
}
