package cmakeext

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Extension is one named extension module built from one CMake source tree.
//
// The name must match the single library target the CMake project produces;
// it may be dotted ("pkg.core") to place the module inside a package.
// An Extension is immutable after NewExtension.
type Extension struct {
	name      string
	sourceDir string
}

// NewExtension returns an Extension with sourceDir made absolute. An empty
// sourceDir means the current directory.
func NewExtension(name, sourceDir string) (*Extension, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("extension name is required")
	}
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source dir %q: %w", sourceDir, err)
	}
	return &Extension{name: name, sourceDir: abs}, nil
}

// Name returns the extension's module name.
func (e *Extension) Name() string { return e.name }

// SourceDir returns the absolute CMake source directory.
func (e *Extension) SourceDir() string { return e.sourceDir }

// ModuleName returns the last component of a dotted name.
func (e *Extension) ModuleName() string {
	parts := strings.Split(e.name, ".")
	return parts[len(parts)-1]
}

// OutputDir returns the directory the module is installed into below root:
// the package path of a dotted name, or root itself. The result is absolute
// and ends with a path separator so cmake treats it as a directory.
func (e *Extension) OutputDir(root string) (string, error) {
	parts := strings.Split(e.name, ".")
	dir := filepath.Join(append([]string{root}, parts[:len(parts)-1]...)...)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir %q: %w", dir, err)
	}
	return EnsureTrailingSeparator(abs), nil
}

// EnsureTrailingSeparator cleans path and appends a separator if missing.
func EnsureTrailingSeparator(path string) string {
	path = filepath.Clean(path)
	if !strings.HasSuffix(path, string(filepath.Separator)) {
		path += string(filepath.Separator)
	}
	return path
}
