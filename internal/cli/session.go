package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"

	cmakeext "github.com/contriboss/cmake-extension-go"
)

// session is the resolved state of one CLI invocation.
type session struct {
	ext     *cmakeext.Extension
	env     cmakeext.BuildEnvironment
	runner  cmakeext.CommandRunner
	builder cmakeext.Builder
}

// newSession resolves the extension and build environment. Precedence is
// flag, then config file, then package metadata, then defaults.
func newSession(ctx context.Context, cfg *cmakeext.ProjectConfig, f buildFlags, runner cmakeext.CommandRunner, logger *zap.Logger) (*session, error) {
	meta := readMetadata(cfg.Metadata, logger)

	name := cfg.Extension.Name
	if name == "" {
		name = strings.ReplaceAll(meta.Name, "-", "_")
	}
	if name == "" {
		return nil, fmt.Errorf("no extension name: set extension.name in %s or project.name in %s",
			cmakeext.DefaultConfigFile, cfg.Metadata)
	}

	ext, err := cmakeext.NewExtension(name, cfg.Extension.SourceDir)
	if err != nil {
		return nil, err
	}

	hostOS := runtime.GOOS
	python := firstNonEmpty(f.python, cmakeext.DefaultPython(hostOS))
	platformID := firstNonEmpty(f.platName, cmakeext.PlatformIDFor(hostOS, runtime.GOARCH))

	buildTemp := firstNonEmpty(f.buildTemp, cfg.Build.Temp)
	buildLib := firstNonEmpty(f.buildLib, cfg.Build.Lib)
	if buildTemp == "" || buildLib == "" {
		pyVersion, err := cmakeext.ProbePythonVersion(ctx, runner, python)
		if err != nil {
			return nil, err
		}
		base := firstNonEmpty(f.buildBase, cfg.Build.Base, "build")
		if buildTemp == "" {
			buildTemp = cmakeext.DefaultBuildTemp(base, platformID, pyVersion)
		}
		if buildLib == "" {
			buildLib = cmakeext.DefaultBuildLib(base, platformID, pyVersion)
		}
	}

	env, err := cmakeext.LoadEnvironment(cmakeext.EnvironmentOptions{
		Debug:            f.debug,
		PlatformID:       platformID,
		Compiler:         f.compiler,
		Jobs:             f.jobs,
		PythonExecutable: python,
		VersionInfo:      firstNonEmpty(f.versionInfo, cfg.Version, meta.Version),
		BuildTemp:        buildTemp,
		BuildLib:         buildLib,
		Inplace:          f.inplace,
		HostOS:           hostOS,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("resolved build environment",
		zap.String("extension", ext.Name()),
		zap.String("source_dir", ext.SourceDir()),
		zap.String("platform", env.PlatformID),
		zap.Bool("msvc", env.CompilerIsMSVC),
		zap.String("build_temp", env.BuildTemp),
		zap.String("build_lib", env.BuildLib))

	builder := cmakeext.NewCmakeBuilder(runner, logger)
	return &session{ext: ext, env: env, runner: runner, builder: builder}, nil
}

// build checks the builder's tools, then runs the build and returns its
// result.
func (s *session) build(ctx context.Context) (*cmakeext.BuildResult, error) {
	if checker, ok := s.builder.(cmakeext.ToolChecker); ok {
		if err := checker.CheckTools(); err != nil {
			return nil, fmt.Errorf("build tools missing: %w", err)
		}
	}
	return s.builder.Build(ctx, s.ext, s.env)
}

// pythonPathEnv puts the build's library directory first on PYTHONPATH so
// the interpreted suite imports the freshly built module.
func (s *session) pythonPathEnv() map[string]string {
	if s.env.Inplace {
		return nil
	}
	lib, err := filepath.Abs(s.env.BuildLib)
	if err != nil {
		return nil
	}
	if existing := os.Getenv("PYTHONPATH"); existing != "" {
		lib += string(os.PathListSeparator) + existing
	}
	return map[string]string{"PYTHONPATH": lib}
}

func readMetadata(path string, logger *zap.Logger) *cmakeext.PackageMetadata {
	if path == "" {
		path = cmakeext.DefaultMetadataFile
	}
	meta, err := cmakeext.ReadPackageMetadata(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("ignoring package metadata", zap.String("path", path), zap.Error(err))
		}
		return &cmakeext.PackageMetadata{}
	}
	return meta
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
