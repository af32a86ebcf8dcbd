package cmakeext

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the project configuration file looked up by default.
const DefaultConfigFile = "cmakeext.yaml"

// ProjectConfig is the optional per-project configuration.
//
//	extension:
//	  name: sample
//	  source_dir: .
//	build:
//	  base: build
//	test:
//	  target: sample_test
//	  python_args: ["-m", "pytest", "tests"]
type ProjectConfig struct {
	Version   string          `yaml:"version"`
	Metadata  string          `yaml:"metadata"`
	Extension ExtensionConfig `yaml:"extension"`
	Build     BuildDirsConfig `yaml:"build"`
	Test      TestConfig      `yaml:"test"`
}

// ExtensionConfig names the extension and its CMake source tree.
type ExtensionConfig struct {
	Name      string `yaml:"name"`
	SourceDir string `yaml:"source_dir"`
}

// BuildDirsConfig places the scratch and library directories. Empty Temp
// and Lib are derived from Base, the platform and the interpreter version.
type BuildDirsConfig struct {
	Base string `yaml:"base"`
	Temp string `yaml:"temp"`
	Lib  string `yaml:"lib"`
}

// TestConfig describes both test phases.
type TestConfig struct {
	Target     string   `yaml:"target"`
	Binary     string   `yaml:"binary"`
	PythonArgs []string `yaml:"python_args"`
	Dir        string   `yaml:"dir"`
}

// LoadProjectConfig reads configuration from a YAML file.
// If path is empty, it tries DefaultConfigFile.
// Returns defaults if the file doesn't exist.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultProjectConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultProjectConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// DefaultProjectConfig returns the configuration used without a file.
func DefaultProjectConfig() *ProjectConfig {
	return &ProjectConfig{
		Metadata:  DefaultMetadataFile,
		Extension: ExtensionConfig{SourceDir: "."},
		Build:     BuildDirsConfig{Base: "build"},
		Test:      TestConfig{PythonArgs: []string{"-m", "pytest"}, Dir: "."},
	}
}

// TestTarget returns the native test target, <module>_test by default.
func (c *ProjectConfig) TestTarget(ext *Extension) string {
	if c.Test.Target != "" {
		return c.Test.Target
	}
	return ext.ModuleName() + "_test"
}
