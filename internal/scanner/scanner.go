// Package scanner walks a local modpack directory and returns the files to
// upload in a deterministic order.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// File is a regular file found by a scan.
type File struct {
	// Path is the file's path on the scanned filesystem.
	Path string

	// RelPath is the path relative to the scan root, slash-separated.
	RelPath string

	Size    int64
	ModTime time.Time
}

// Scanner walks directories on a billy filesystem.
type Scanner struct {
	filesystem     billy.Filesystem
	patternMatcher *PatternMatcher
}

// New creates a scanner on the given filesystem. A nil filesystem means the
// host filesystem.
func New(filesystem billy.Filesystem) *Scanner {
	if filesystem == nil {
		filesystem = HostFS()
	}
	return &Scanner{
		filesystem:     filesystem,
		patternMatcher: NewPatternMatcher(),
	}
}

// Scan walks root and returns every regular file accepted by the include and
// exclude patterns, sorted by RelPath. Patterns are matched against RelPath.
func (s *Scanner) Scan(
	ctx context.Context,
	root string,
	includePatterns []string,
	excludePatterns []string,
) ([]File, error) {
	if errs := s.patternMatcher.ValidatePatterns(slices.Concat(includePatterns, excludePatterns)); len(errs) > 0 {
		return nil, errs[0]
	}

	info, err := s.filesystem.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat source directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", root)
	}

	var files []File
	err = util.Walk(s.filesystem, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		relPath = filepath.ToSlash(relPath)

		if !s.patternMatcher.ShouldIncludeFile(relPath, includePatterns, excludePatterns) {
			return nil
		}

		files = append(files, File{
			Path:    path,
			RelPath: relPath,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
