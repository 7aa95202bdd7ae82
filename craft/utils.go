package craft

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// ConvertToAbsolute returns an absolute path for a path relative to dir.  Absolute paths
// and URLs with a scheme are returned unchanged.
func ConvertToAbsolute(path, dir string) (string, error) {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "://") {
		return path, nil
	}
	abs, err := filepath.Abs(filepath.Join(dir, path))
	if err != nil {
		return "", fmt.Errorf("unable to make %q absolute relative to %q: %v", path, dir, err)
	}
	return abs, nil
}

// FileExists returns true if a file or directory exists at path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
