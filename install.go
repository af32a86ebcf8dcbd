package cmakeext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

var nativeLibraryExtensions = map[string]struct{}{
	".so":    {},
	".pyd":   {},
	".dll":   {},
	".dylib": {},
}

// finalizeArtifacts locates the built module in the output directory and,
// for in-place builds, copies it next to the package sources. Paths are
// returned absolute.
func finalizeArtifacts(ext *Extension, env BuildEnvironment, plan *BuildConfiguration, logger *zap.Logger) ([]string, error) {
	built, err := findBuiltExtensions(plan.OutputDir, ext.ModuleName())
	if err != nil {
		return nil, err
	}
	if len(built) == 0 {
		logger.Warn("no extension module found in output directory",
			zap.String("extension", ext.Name()),
			zap.String("output_dir", plan.OutputDir))
		return nil, nil
	}

	if !env.Inplace {
		return built, nil
	}

	destDir, err := ext.OutputDir(env.ProjectDir)
	if err != nil {
		return nil, err
	}
	if filepath.Clean(destDir) == filepath.Clean(plan.OutputDir) {
		return built, nil
	}

	var installed []string
	for _, src := range built {
		dest := filepath.Join(destDir, filepath.Base(src))
		if err := copyFile(src, dest); err != nil {
			return nil, fmt.Errorf("copy %s in place: %w", filepath.Base(src), err)
		}
		logger.Info("copied extension in place", zap.String("path", dest))
		installed = append(installed, dest)
	}
	return installed, nil
}

// findBuiltExtensions returns the native libraries in dir whose name starts
// with module followed by a dot, e.g. sample.cpython-312-x86_64-linux-gnu.so.
func findBuiltExtensions(dir, module string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read output dir %s: %w", dir, err)
	}

	var found []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !isNativeLibrary(name) {
			continue
		}
		if !strings.HasPrefix(name, module+".") {
			continue
		}
		found = append(found, filepath.Join(dir, name))
	}
	sort.Strings(found)
	return found, nil
}

func isNativeLibrary(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := nativeLibraryExtensions[ext]
	return ok
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(destPath)
	if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
		return mkErr
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
