package site

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrNoCacheDir = errors.New("cache directory is not configured")

// ClearCache removes the cache directory and everything under it. It reports
// whether there was anything to remove.
func (s *Service) ClearCache() (bool, error) {
	if s.cacheDir == "" {
		return false, ErrNoCacheDir
	}
	dir := filepath.Clean(s.cacheDir)
	if dir == "." || dir == string(filepath.Separator) {
		return false, fmt.Errorf("refusing to clear cache directory %q", s.cacheDir)
	}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("failed to stat cache directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return false, fmt.Errorf("failed to clear cache: %w", err)
	}
	s.log.Infof("cache directory %s cleared", dir)
	return true, nil
}
