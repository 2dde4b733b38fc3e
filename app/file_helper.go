package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ludo-technologies/cblscan/internal/constants"
)

// FileHelper provides file operation utilities
type FileHelper struct {
	extensions       []string
	respectGitignore bool
	followSymlinks   bool
}

// NewFileHelper creates a FileHelper for the default COBOL source extensions
func NewFileHelper() *FileHelper {
	return &FileHelper{
		extensions:       append([]string(nil), constants.DefaultSourceExtensions...),
		respectGitignore: true,
	}
}

// WithExtensions replaces the accepted source extensions
func (h *FileHelper) WithExtensions(extensions []string) *FileHelper {
	if len(extensions) > 0 {
		h.extensions = append([]string(nil), extensions...)
	}
	return h
}

// WithGitignore controls whether .gitignore files are honoured
func (h *FileHelper) WithGitignore(respect bool) *FileHelper {
	h.respectGitignore = respect
	return h
}

// WithFollowSymlinks controls whether symbolic links are followed
func (h *FileHelper) WithFollowSymlinks(follow bool) *FileHelper {
	h.followSymlinks = follow
	return h
}

// CollectCOBOLFiles collects COBOL programs from paths. Explicit file
// arguments are kept even when a pattern or .gitignore would skip them.
func (h *FileHelper) CollectCOBOLFiles(paths []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string
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
			return nil, err
		}

		if !info.IsDir() {
			if h.isCOBOLFile(path) && !h.isExcluded(path, excludePatterns) {
				add(path)
			}
			continue
		}

		w := &walker{
			helper:   h,
			root:     path,
			include:  includePatterns,
			exclude:  excludePatterns,
			visited:  make(map[string]bool),
			add:      add,
			maxDepth: -1,
		}
		if !recursive {
			w.maxDepth = 0
		}
		if h.respectGitignore {
			w.ignore = loadGitignore(path)
		}
		if err := w.walk(path, 0); err != nil {
			return nil, err
		}
	}

	return files, nil
}

// walker collects files below one root directory
type walker struct {
	helper   *FileHelper
	root     string
	include  []string
	exclude  []string
	ignore   *ignore.GitIgnore
	visited  map[string]bool
	add      func(string)
	maxDepth int
}

func (w *walker) walk(dir string, depth int) error {
	if real, err := filepath.EvalSymlinks(dir); err == nil {
		if w.visited[real] {
			return nil
		}
		w.visited[real] = true
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		isDir := entry.IsDir()

		if entry.Type()&fs.ModeSymlink != 0 {
			if !w.helper.followSymlinks {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				// dangling link
				continue
			}
			isDir = info.IsDir()
		}

		if w.ignored(path, isDir) {
			continue
		}

		if isDir {
			if w.helper.isExcludedDir(path, w.exclude) {
				continue
			}
			if w.maxDepth >= 0 && depth >= w.maxDepth {
				continue
			}
			if err := w.walk(path, depth+1); err != nil {
				return err
			}
			continue
		}

		if !w.helper.isCOBOLFile(path) || w.helper.isExcluded(path, w.exclude) {
			continue
		}
		if !w.helper.isIncluded(path, w.include) {
			continue
		}
		w.add(path)
	}
	return nil
}

func (w *walker) ignored(path string, isDir bool) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	if isDir {
		return w.ignore.MatchesPath(rel) || w.ignore.MatchesPath(rel+"/")
	}
	return w.ignore.MatchesPath(rel)
}

// loadGitignore compiles root/.gitignore, or returns nil when there is none
func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

// IsValidCOBOLFile checks if a file has a COBOL source extension
func (h *FileHelper) IsValidCOBOLFile(path string) bool {
	return h.isCOBOLFile(path)
}

// FileExists checks if a file exists
func (h *FileHelper) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// ReadFile reads file content
func (h *FileHelper) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// isCOBOLFile checks the extension case-insensitively
func (h *FileHelper) isCOBOLFile(path string) bool {
	ext := filepath.Ext(path)
	for _, known := range h.extensions {
		if strings.EqualFold(ext, known) {
			return true
		}
	}
	return false
}

// isExcluded checks if a path matches any exclude pattern
func (h *FileHelper) isExcluded(path string, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		if matchPattern(pattern, path) {
			return true
		}
		// Also check path segments, so "copybooks" excludes everything below it
		if !strings.ContainsAny(pattern, "*?[") && containsSegment(path, pattern) {
			return true
		}
	}
	return false
}

// isExcludedDir checks a directory against the exclude patterns
func (h *FileHelper) isExcludedDir(path string, excludePatterns []string) bool {
	name := filepath.Base(path)
	for _, pattern := range excludePatterns {
		if pattern == name || matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// isIncluded reports whether path matches an include pattern; no patterns include everything
func (h *FileHelper) isIncluded(path string, includePatterns []string) bool {
	if len(includePatterns) == 0 {
		return true
	}
	for _, pattern := range includePatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}

// matchPattern matches a doublestar glob against the base name, or against
// every trailing run of path segments for patterns with directories, so
// relative patterns also match below absolute roots
func matchPattern(pattern, path string) bool {
	pattern = filepath.ToSlash(pattern)
	parts := strings.Split(filepath.ToSlash(path), "/")

	if !strings.Contains(pattern, "/") {
		return doublestar.MatchUnvalidated(pattern, parts[len(parts)-1])
	}
	for i := range parts {
		if doublestar.MatchUnvalidated(pattern, strings.Join(parts[i:], "/")) {
			return true
		}
	}
	return false
}

func containsSegment(path, segment string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == segment {
			return true
		}
	}
	return false
}

// ResolveFilePaths resolves file paths, returning existing files directly
// or collecting files from directories
func ResolveFilePaths(
	fileHelper *FileHelper,
	paths []string,
	recursive bool,
	includePatterns []string,
	excludePatterns []string,
) ([]string, error) {
	// Check if all paths are already files
	allFiles := true
	for _, path := range paths {
		exists, err := fileHelper.FileExists(path)
		if err != nil || !exists {
			allFiles = false
			break
		}
	}

	// If all paths are already files, no need to collect again
	if allFiles {
		return paths, nil
	}

	return fileHelper.CollectCOBOLFiles(paths, recursive, includePatterns, excludePatterns)
}
