package copybook

import (
	"os"
	"path/filepath"
	"strings"
)

// Source locates and reads copybook units
type Source interface {
	// Locate resolves a COPY name against the ordered extension candidates.
	// It returns the resolved key and whether a unit was found.
	Locate(name string, extensions []string) (string, bool)

	// ReadFile returns the content of a resolved unit
	ReadFile(resolved string) ([]byte, error)
}

// DirSource looks up copybooks on the filesystem, directory by directory
type DirSource struct {
	dirs []string
}

// NewDirSource creates a filesystem source searching dirs in order
func NewDirSource(dirs ...string) *DirSource {
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	return &DirSource{dirs: dirs}
}

// Locate implements Source
func (s *DirSource) Locate(name string, extensions []string) (string, bool) {
	for _, dir := range s.dirs {
		for _, candidate := range nameVariants(name) {
			for _, ext := range extensions {
				path := filepath.Join(dir, candidate+ext)
				if info, err := os.Stat(path); err == nil && !info.IsDir() {
					return path, true
				}
			}
		}
	}
	return "", false
}

// ReadFile implements Source
func (s *DirSource) ReadFile(resolved string) ([]byte, error) {
	return os.ReadFile(resolved)
}

// MapSource serves copybooks from memory, keyed by file name (NAME.EXT)
type MapSource map[string]string

// Locate implements Source
func (m MapSource) Locate(name string, extensions []string) (string, bool) {
	for _, candidate := range nameVariants(name) {
		for _, ext := range extensions {
			if _, ok := m[candidate+ext]; ok {
				return candidate + ext, true
			}
		}
	}
	return "", false
}

// ReadFile implements Source
func (m MapSource) ReadFile(resolved string) ([]byte, error) {
	content, ok := m[resolved]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(content), nil
}

// nameVariants returns the COPY name as written, then lower-cased
func nameVariants(name string) []string {
	lower := strings.ToLower(name)
	if lower == name {
		return []string{name}
	}
	return []string{name, lower}
}
