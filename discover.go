package aspcheck

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
)

// SourceExtensions are the file types a directory walk collects.
var SourceExtensions = []string{".asp", ".asa", ".vbs"}

// IsSourceFile reports whether path has one of SourceExtensions.
func IsSourceFile(path string) bool {
	return slices.Contains(SourceExtensions, strings.ToLower(filepath.Ext(path)))
}

// CollectFiles expands roots into a sorted, deduplicated list of files.
// Directories are walked for source files, skipping excluded entries
// relative to that root. File roots are always kept, whatever their
// extension, and a root that cannot be stat'ed is kept as well so that it
// is reported as an unreadable unit.
func CollectFiles(ctx context.Context, fs afero.Fs, roots []string, opts ParseOptions, logger *slog.Logger) ([]string, error) {
	logger = ensureLogger(logger)
	matcher, err := NewMatcher(opts.Exclusions())
	if err != nil {
		return nil, err
	}

	var files []string
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := fs.Stat(root)
		if err != nil || !info.IsDir() {
			files = append(files, root)
			continue
		}

		err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err != nil {
				logger.Warn("Failed walk", slog.String("file", path), slog.String("error", err.Error()))
				return nil
			}
			rel := RelPath(root, path)
			if info.IsDir() {
				if path != root && matcher.MatchDir(rel) {
					logger.Debug("Skipping excluded directory", slog.String("dir", path))
					return filepath.SkipDir
				}
				return nil
			}
			if IsSourceFile(path) && !matcher.Match(rel) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, NewFSError("failed to walk directory", err).WithFile(root)
		}
	}

	slices.Sort(files)
	return slices.Compact(files), nil
}

// ReadPathList reads newline separated paths, ignoring blank lines.
func ReadPathList(r io.Reader) ([]string, error) {
	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewFSError("failed to read path list", err)
	}
	return paths, nil
}
