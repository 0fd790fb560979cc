package main

import (
	"fmt"
	"log/slog"

	"github.com/gophersatwork/aspcheck"
)

// ConsoleProgressReporter logs scheduler progress when verbose.
type ConsoleProgressReporter struct {
	verbose bool
	logger  *slog.Logger
}

func (r *ConsoleProgressReporter) StartFile(path string) {
	if r.verbose {
		r.logger.Debug("Processing file", "file", path)
	}
}

func (r *ConsoleProgressReporter) CompleteFile(path string, status aspcheck.Status, cached bool) {
	if r.verbose && status != aspcheck.StatusSuccess {
		r.logger.Debug("File processed", "file", path, "status", status.String(), "cached", cached)
	}
}

func (r *ConsoleProgressReporter) UpdateProgress(current, total int) {
	if r.verbose && total > 0 && current%100 == 0 {
		r.logger.Info("Progress", "current", current, "total", total, "percent", fmt.Sprintf("%.1f%%", float64(current)/float64(total)*100))
	}
}

func (r *ConsoleProgressReporter) Complete(stats *aspcheck.RunStats) {
	if r.verbose {
		r.logger.Info("Analysis complete",
			"files", stats.FilesProcessed(),
			"cache_hits", stats.CacheHits(),
			"duration", stats.Duration(),
			"files/sec", fmt.Sprintf("%.2f", stats.FilesPerSecond()),
		)
	}
}
