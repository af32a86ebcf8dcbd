package cmakeext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
)

// DefaultMetadataFile is where package metadata is read from.
const DefaultMetadataFile = "pyproject.toml"

// PackageMetadata is the subset of pyproject.toml the build needs.
type PackageMetadata struct {
	Name    string
	Version string
}

// ReadPackageMetadata parses the [project] table of a pyproject.toml.
// A missing file is returned as an error satisfying os.IsNotExist.
func ReadPackageMetadata(path string) (*PackageMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pyproject struct {
		Project struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &pyproject); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return &PackageMetadata{
		Name:    pyproject.Project.Name,
		Version: pyproject.Project.Version,
	}, nil
}

// pythonVersionScript prints major.minor.micro of the running interpreter.
const pythonVersionScript = "import sys; print('%d.%d.%d' % sys.version_info[:3])"

// ProbePythonVersion asks the interpreter for its version and returns it as
// "major.minor".
func ProbePythonVersion(ctx context.Context, runner CommandRunner, python string) (string, error) {
	out, err := runnerOrExec(runner).Output(ctx, Command{Name: python, Args: []string{"-c", pythonVersionScript}})
	if err != nil {
		return "", fmt.Errorf("probe %s version: %w", python, err)
	}
	return NormalizePythonVersion(out)
}

// NormalizePythonVersion reduces a version string such as "3.12.1" or
// "3.12" to "major.minor".
func NormalizePythonVersion(raw string) (string, error) {
	v, err := semver.NewVersion(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: python version %q", ErrInvalidEnvironmentValue, strings.TrimSpace(raw))
	}
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor()), nil
}

// DefaultBuildTemp returns the scratch directory name derived from the
// platform and interpreter version, e.g. build/temp.linux-x86_64-3.12.
func DefaultBuildTemp(base, platformID, pythonVersion string) string {
	return filepath.Join(base, fmt.Sprintf("temp.%s-%s", platformID, pythonVersion))
}

// DefaultBuildLib returns the library directory name, e.g.
// build/lib.linux-x86_64-3.12.
func DefaultBuildLib(base, platformID, pythonVersion string) string {
	return filepath.Join(base, fmt.Sprintf("lib.%s-%s", platformID, pythonVersion))
}
