package aspcheck

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSession(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/site/default.asp": validASP})

	t.Run("cache enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.CacheDir = "/cache"
		session, err := OpenSession(cfg, fs, quietLogger())
		require.NoError(t, err)
		defer session.Close()

		require.NotNil(t, session.Cache())
		assert.True(t, session.Cache().Persistent())

		first, err := session.Scheduler.Run(context.Background(), []string{"/site/default.asp"})
		require.NoError(t, err)
		assert.Equal(t, 0, first.CachedCount())

		second, err := session.Scheduler.Run(context.Background(), []string{"/site/default.asp"})
		require.NoError(t, err)
		assert.Equal(t, 1, second.CachedCount())
	})

	t.Run("cache disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.NoCache = true
		session, err := OpenSession(cfg, fs, quietLogger())
		require.NoError(t, err)
		assert.Nil(t, session.Cache())
		assert.NoError(t, session.Close())
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Format = "yaml"
		_, err := OpenSession(cfg, fs, quietLogger())
		require.Error(t, err)
	})
}
