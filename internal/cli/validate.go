package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ResolveDirectory expands a leading "~", checks that the result is an
// existing directory and returns it as an absolute path.
func ResolveDirectory(dirPath string) (string, error) {
	if rest, ok := strings.CutPrefix(dirPath, "~"); ok && (rest == "" || rest[0] == '/' || rest[0] == filepath.Separator) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", dirPath, err)
		}
		dirPath = filepath.Join(home, rest)
	}

	abs, err := filepath.Abs(dirPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dirPath, err)
	}

	info, err := os.Stat(abs)
	switch {
	case os.IsNotExist(err):
		return "", fmt.Errorf("directory not found: %s", dirPath)
	case err != nil:
		return "", fmt.Errorf("failed to access directory %s: %w", dirPath, err)
	case !info.IsDir():
		return "", fmt.Errorf("path is not a directory: %s", dirPath)
	}
	return abs, nil
}
