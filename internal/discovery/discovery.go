// Package discovery expands command-line paths into the source files to extract.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// compiledPattern holds both the pattern string and compiled glob
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// FileDiscovery matches files against include and ignore glob patterns.
type FileDiscovery struct {
	includePatterns []compiledPattern
	ignorePatterns  []compiledPattern
	extensions      map[string]bool
}

// New compiles the include and ignore patterns.
func New(includePatterns, ignorePatterns []string) (*FileDiscovery, error) {
	fd := &FileDiscovery{extensions: make(map[string]bool)}

	for _, pattern := range includePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		fd.includePatterns = append(fd.includePatterns, compiledPattern{pattern: pattern, glob: g})
		if ext := extractExtension(pattern); ext != "" {
			fd.extensions[ext] = true
		}
	}

	for _, pattern := range ignorePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		fd.ignorePatterns = append(fd.ignorePatterns, compiledPattern{pattern: pattern, glob: g})
	}

	return fd, nil
}

// Expand turns paths into a list of files. Directories are walked and every
// included, non-ignored file below them is returned in lexical order.
// Explicit files are kept when their extension matches an include pattern.
// Input order is preserved and duplicates are dropped.
func (fd *FileDiscovery) Expand(paths []string) ([]string, error) {
	files := []string{}
	seen := make(map[string]bool)

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			// Let the caller report unreadable files per file.
			if fd.HasIncludedExtension(path) {
				add(path)
			}
			continue
		}

		if !info.IsDir() {
			if fd.HasIncludedExtension(path) {
				add(path)
			}
			continue
		}

		found, err := fd.Walk(path)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}

	return files, nil
}

// Walk returns the included files below rootDir.
func (fd *FileDiscovery) Walk(rootDir string) ([]string, error) {
	files := []string{}

	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if fd.ShouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if fd.Matches(relPath) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", rootDir, err)
	}

	return files, nil
}

// Matches reports whether relPath (slash separated, relative to a walked
// root) is included and not ignored.
func (fd *FileDiscovery) Matches(relPath string) bool {
	if fd.ShouldIgnore(relPath) {
		return false
	}
	return matchesAnyPattern(relPath, fd.includePatterns)
}

// ShouldIgnore checks if a path matches any ignore pattern.
func (fd *FileDiscovery) ShouldIgnore(relPath string) bool {
	// Never descend into our own settings directory
	if strings.HasPrefix(relPath, ".pydefs/") || relPath == ".pydefs" {
		return true
	}

	if matchesAnyPattern(relPath, fd.ignorePatterns) {
		return true
	}

	// "node_modules" should match pattern "node_modules/**"
	return matchesAnyPattern(relPath+"/**", fd.ignorePatterns)
}

// HasIncludedExtension reports whether path ends in an extension named by an
// include pattern such as "**/*.py".
func (fd *FileDiscovery) HasIncludedExtension(path string) bool {
	return fd.extensions[filepath.Ext(path)]
}

// matchesAnyPattern checks if a path matches any of the given patterns.
func matchesAnyPattern(path string, patterns []compiledPattern) bool {
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
	}

	// "**/*.py" should match both "a.py" and "pkg/a.py"; gobwas requires at
	// least one separator for the former, so retry without the prefix.
	if !strings.Contains(path, "/") {
		for _, cp := range patterns {
			if strings.HasPrefix(cp.pattern, "**/") {
				simplified := strings.TrimPrefix(cp.pattern, "**/")
				if simplifiedGlob, err := glob.Compile(simplified, '/'); err == nil {
					if simplifiedGlob.Match(path) {
						return true
					}
				}
			}
		}
	}

	return false
}

// extractExtension extracts the file extension from a glob pattern.
// Examples: "**/*.py" -> ".py", "*.pyi" -> ".pyi", "src/**" -> ""
func extractExtension(pattern string) string {
	for i := len(pattern) - 1; i >= 1; i-- {
		if pattern[i] == '.' && pattern[i-1] == '*' {
			return pattern[i:]
		}
	}
	return ""
}
