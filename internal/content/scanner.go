// Package content resolves the source text tokens are extracted from:
// files matched by glob patterns plus inline snippets.
package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"
)

// Source is one unit of text handed to the extractors.
type Source struct {
	// ID is the file path, or "inline:N" for inline snippets.
	ID   string
	Code string
}

// ScanStats tracks file discovery.
type ScanStats struct {
	FilesDiscovered int // Files matched by the glob patterns
	FilesScanned    int // Files read after filtering
	FilesSkipped    int // Files dropped by exclude globs, .gitignore or generated-file checks
}

// Scanner expands content globs relative to Root.
type Scanner struct {
	Root    string
	Exclude []string

	gitignore *ignore.GitIgnore
}

// NewScanner returns a scanner rooted at root. A .gitignore in root is
// honored when present; a missing one is not an error.
func NewScanner(root string, exclude []string) *Scanner {
	if root == "" {
		root = "."
	}
	s := &Scanner{Root: root, Exclude: exclude}
	if gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore")); err == nil {
		s.gitignore = gi
	}
	return s
}

// isGenerated reports minified or map files, which never hold source tokens.
func isGenerated(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(base, ".min.") || strings.HasSuffix(base, ".map")
}

// shouldSkip applies the exclude globs, then .gitignore.
func (s *Scanner) shouldSkip(path string) bool {
	if isGenerated(path) {
		return true
	}
	rel := s.rel(path)
	for _, pattern := range s.Exclude {
		if ok, _ := doublestar.Match(filepath.ToSlash(pattern), filepath.ToSlash(rel)); ok {
			return true
		}
	}
	// Paths outside the root are not covered by its .gitignore.
	if s.gitignore != nil && !strings.HasPrefix(rel, "..") && s.gitignore.MatchesPath(rel) {
		return true
	}
	return false
}

func (s *Scanner) rel(path string) string {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return path
	}
	return rel
}

// Files expands patterns into a de-duplicated, filtered file list.
func (s *Scanner) Files(patterns []string) ([]string, ScanStats, error) {
	var files []string
	seen := make(map[string]bool)
	stats := ScanStats{}

	for _, pattern := range patterns {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(s.Root, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, stats, fmt.Errorf("glob %q: %w", pattern, err)
		}

		for _, match := range matches {
			if seen[match] {
				continue
			}
			seen[match] = true
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			stats.FilesDiscovered++
			if s.shouldSkip(match) {
				stats.FilesSkipped++
				continue
			}
			files = append(files, match)
			stats.FilesScanned++
		}
	}
	slices.Sort(files)
	return files, stats, nil
}

// Load reads every file matched by filesystem plus the inline snippets.
func (s *Scanner) Load(ctx context.Context, filesystem, inline []string) ([]Source, ScanStats, error) {
	files, stats, err := s.Files(filesystem)
	if err != nil {
		return nil, stats, err
	}

	sources := make([]Source, 0, len(files)+len(inline))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, stats, fmt.Errorf("read %s: %w", file, err)
		}
		sources = append(sources, Source{ID: file, Code: string(data)})
	}
	for i, code := range inline {
		sources = append(sources, Source{ID: fmt.Sprintf("inline:%d", i), Code: code})
	}
	return sources, stats, nil
}

// Dirs returns the distinct directories holding files, for watchers.
func Dirs(files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		d := filepath.Dir(f)
		if !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	slices.Sort(dirs)
	return dirs
}

// RelativePath returns path relative to the working directory when possible.
func RelativePath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(cwd, path)
	if err != nil {
		return path
	}
	return rel
}
