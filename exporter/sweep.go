package exporter

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vnkhanh/tracer-study/logger"
	"go.uber.org/zap"
)

const DefaultMaxAge = 24 * time.Hour

var sweptExt = map[string]bool{".xlsx": true, ".pdf": true, ".part": true}

// Sweep removes export files in dir last modified before now-maxAge and
// returns how many were deleted. A missing dir is not an error.
func Sweep(dir string, maxAge time.Duration, now time.Time) (int, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-maxAge)
	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !sweptExt[filepath.Ext(entry.Name())] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// RunSweeper calls Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, dir string, maxAge, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := Sweep(dir, maxAge, now)
			if err != nil {
				log.Warn("export sweep failed", zap.String("dir", dir), zap.Error(err))
			}
			if n > 0 {
				log.Info("old exports removed", zap.Int("count", n))
			}
		}
	}
}
