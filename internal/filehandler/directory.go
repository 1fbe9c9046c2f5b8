package filehandler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// ScanOptions bounds a directory scan.
type ScanOptions struct {
	// MaxDepth is the number of directory levels read; 1 reads only the
	// top level. 0 means no limit.
	MaxDepth int

	// Limit caps the number of photos returned. 0 means no limit.
	Limit int
}

// ScanDirectory finds every supported photo under dirPath.
func ScanDirectory(dirPath string) ([]*ImageFile, error) {
	return ScanDirectoryWithOptions(dirPath, ScanOptions{})
}

// ScanDirectoryWithOptions finds supported photos under dirPath, sorted by
// path so that repeated runs rate the same files in the same order. Hidden
// entries are skipped. Symlinked files are kept; symlinked directories are
// not entered.
func ScanDirectoryWithOptions(dirPath string, opts ScanOptions) ([]*ImageFile, error) {
	root, err := filepath.Abs(dirPath)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", dirPath, err)
	}
	info, err := os.Stat(root)
	switch {
	case os.IsNotExist(err):
		return nil, fmt.Errorf("directory not found: %s", dirPath)
	case err != nil:
		return nil, fmt.Errorf("failed to stat directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("path is not a directory: %s", dirPath)
	}

	var paths []string
	collectImages(root, 1, opts.MaxDepth, &paths)
	sort.Strings(paths)

	truncated := opts.Limit > 0 && len(paths) > opts.Limit
	if truncated {
		paths = paths[:opts.Limit]
	}

	images := make([]*ImageFile, 0, len(paths))
	for _, p := range paths {
		img, err := LoadImageFile(p)
		if err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(p)).Msg("Skipping unreadable photo")
			continue
		}
		images = append(images, img)
	}

	log.Info().
		Str("directory", root).
		Int("max_depth", opts.MaxDepth).
		Int("photos", len(images)).
		Bool("limit_reached", truncated).
		Msg("Directory scan complete")
	return images, nil
}

// collectImages appends the photo paths of dir, descending while depth
// allows. Unreadable entries are logged and skipped.
func collectImages(dir string, depth, maxDepth int, out *[]string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("path", dir).Msg("Cannot read directory, skipping")
		return
	}

	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p := filepath.Join(dir, e.Name())

		switch {
		case e.IsDir():
			if maxDepth == 0 || depth < maxDepth {
				collectImages(p, depth+1, maxDepth, out)
			}
		case e.Type()&os.ModeSymlink != 0:
			target, err := os.Stat(p)
			if err != nil {
				log.Warn().Err(err).Str("path", p).Msg("Broken symlink, skipping")
				continue
			}
			if !target.IsDir() && IsImage(filepath.Ext(p)) {
				*out = append(*out, p)
			}
		case IsImage(filepath.Ext(e.Name())):
			*out = append(*out, p)
		}
	}
}
