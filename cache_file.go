package aspcheck

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const entryExt = ".mus"

// FileBackend keeps one MUS-encoded file per entry under dir/entries.
type FileBackend struct {
	fs  afero.Fs
	dir string
}

// NewFileBackend creates the entry directory if needed and checks that it
// can be listed.
func NewFileBackend(fs afero.Fs, dir string) (*FileBackend, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	b := &FileBackend{fs: fs, dir: filepath.Join(dir, "entries")}
	if err := fs.MkdirAll(b.dir, 0o755); err != nil {
		return nil, NewFSError("failed to create cache directory", err).WithFile(b.dir)
	}
	if _, err := afero.ReadDir(fs, b.dir); err != nil {
		return nil, NewFSError("cache directory is not readable", err).WithFile(b.dir)
	}
	return b, nil
}

func (b *FileBackend) pathFor(key string) string {
	return filepath.Join(b.dir, key+entryExt)
}

func (b *FileBackend) Get(key string) (CacheEntry, error) {
	data, err := afero.ReadFile(b.fs, b.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CacheEntry{}, ErrEntryNotFound
		}
		return CacheEntry{}, err
	}
	return unmarshalEntry(data)
}

// Put writes the entry to a temporary file and renames it into place, so
// readers never observe a partial entry.
func (b *FileBackend) Put(key string, entry CacheEntry) error {
	f, err := afero.TempFile(b.fs, b.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	_, err = f.Write(marshalEntry(entry))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = b.fs.Rename(tmp, b.pathFor(key))
	}
	if err != nil {
		_ = b.fs.Remove(tmp)
		return fmt.Errorf("failed to write entry %s: %w", key, err)
	}
	return nil
}

// Sweep removes expired and undecodable entries, plus temporary files left
// behind by an interrupted Put.
func (b *FileBackend) Sweep(cutoff time.Time) (int, error) {
	infos, err := afero.ReadDir(b.fs, b.dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		name := info.Name()
		path := filepath.Join(b.dir, name)

		expired := false
		switch {
		case strings.HasPrefix(name, "tmp-"):
			expired = info.ModTime().Before(cutoff)
		case strings.HasSuffix(name, entryExt):
			expired = b.expired(path, cutoff)
		}
		if !expired {
			continue
		}
		if err := b.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (b *FileBackend) expired(path string, cutoff time.Time) bool {
	data, err := afero.ReadFile(b.fs, path)
	if err != nil {
		return false
	}
	storedAt, _, err := unmarshalEntryHeader(data)
	return err != nil || storedAt.Before(cutoff)
}

func (b *FileBackend) Close() error { return nil }
