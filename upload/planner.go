package upload

import (
	"context"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/mmyddd/modpack-uploader/internal/scanner"
)

// JoinKey joins a key prefix and a slash-separated name. The prefix is used
// as given apart from ensuring exactly one separator before name.
func JoinKey(prefix, name string) string {
	name = strings.TrimLeft(name, "/")
	if prefix == "" {
		return name
	}
	return strings.TrimRight(prefix, "/") + "/" + name
}

// PlanPaths creates one job per path, in order, keyed by prefix and the
// file's base name. Distinct files sharing a base name are keyed by the
// shortest trailing run of path segments that tells them apart, so only
// repeated paths share a key. Paths are not deduplicated and are not required
// to exist: a missing file fails when its job runs. Plain uploads store bytes
// verbatim.
func PlanPaths(fsys billy.Filesystem, paths []string, prefix string) []Job {
	names := uploadNames(paths)

	jobs := make([]Job, 0, len(paths))
	for i, p := range paths {
		var size int64
		if fsys != nil {
			if info, err := fsys.Stat(p); err == nil {
				size = info.Size()
			}
		}

		jobs = append(jobs, Job{
			LocalPath: p,
			Key:       JoinKey(prefix, names[i]),
			Size:      size,
			RelPath:   names[i],
		})
	}
	return jobs
}

// uploadNames returns the key name of every path. Equal paths get equal names.
func uploadNames(paths []string) []string {
	segments := make([][]string, len(paths))
	byBase := make(map[string][]int)
	for i, p := range paths {
		segments[i] = pathSegments(p)
		base := segments[i][len(segments[i])-1]
		byBase[base] = append(byBase[base], i)
	}

	names := make([]string, len(paths))
	for _, group := range byBase {
		n := suffixLen(segments, group)
		for _, i := range group {
			names[i] = suffix(segments[i], n)
		}
	}
	return names
}

// pathSegments splits the absolute form of p, so that "a/x" and "./a/x"
// compare equal and ".." never reaches a key.
func pathSegments(p string) []string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	p = strings.Trim(path.Clean(filepath.ToSlash(p)), "/")
	return strings.Split(p, "/")
}

// suffixLen returns the smallest number of trailing segments that is unique
// among the distinct paths of group.
func suffixLen(segments [][]string, group []int) int {
	longest := 1
	for _, i := range group {
		longest = max(longest, len(segments[i]))
	}
	for n := 1; n < longest; n++ {
		if uniqueSuffixes(segments, group, n) {
			return n
		}
	}
	return longest
}

func uniqueSuffixes(segments [][]string, group []int, n int) bool {
	seen := make(map[string]string, len(group))
	for _, i := range group {
		full := strings.Join(segments[i], "/")
		s := suffix(segments[i], n)
		if other, ok := seen[s]; ok && other != full {
			return false
		}
		seen[s] = full
	}
	return true
}

func suffix(segments []string, n int) string {
	return strings.Join(segments[max(0, len(segments)-n):], "/")
}

// PlanDir scans root and creates one job per file keyed by prefix and the
// file's path relative to root.
func PlanDir(
	ctx context.Context,
	s *scanner.Scanner,
	root, prefix string,
	include, exclude []string,
) ([]Job, error) {
	files, err := s.Scan(ctx, root, include, exclude)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job, 0, len(files))
	for _, f := range files {
		jobs = append(jobs, Job{
			LocalPath: f.Path,
			Key:       JoinKey(prefix, f.RelPath),
			Size:      f.Size,
			RelPath:   f.RelPath,
		})
	}
	return jobs, nil
}
