package cmakeext

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Build tool constants
const (
	cmakeProgram   = "cmake"
	ninjaProgram   = "ninja"
	configDebug    = "Debug"
	configRelease  = "Release"
	ninjaGenerator = "-GNinja"
	projectFile    = "CMakeLists.txt"
)

// CmakeBuilder drives `cmake <src>` and `cmake --build .` for one extension.
type CmakeBuilder struct {
	Runner CommandRunner
	Logger *zap.Logger

	// LookPath finds optional tools such as ninja; exec.LookPath when nil.
	LookPath func(file string) (string, error)
}

// NewCmakeBuilder returns a CmakeBuilder. A nil runner means an ExecRunner
// logging to logger.
func NewCmakeBuilder(runner CommandRunner, logger *zap.Logger) *CmakeBuilder {
	logger = loggerOrNop(logger)
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	return &CmakeBuilder{Runner: runner, Logger: logger}
}

// Name returns the builder name
func (b *CmakeBuilder) Name() string {
	return "CMake"
}

// CanBuild checks if sourceDir holds a CMakeLists.txt
func (b *CmakeBuilder) CanBuild(sourceDir string) bool {
	info, err := os.Stat(filepath.Join(sourceDir, projectFile))
	return err == nil && info.Mode().IsRegular()
}

var (
	cmakeRequirement = ToolRequirement{Name: cmakeProgram, Purpose: "CMake build system"}
	ninjaRequirement = ToolRequirement{Name: ninjaProgram, Alternatives: []string{"ninja-build"}, Optional: true, Purpose: "Ninja generator"}
)

// RequiredTools lists cmake and the optional Ninja generator.
func (b *CmakeBuilder) RequiredTools() []ToolRequirement {
	return []ToolRequirement{cmakeRequirement, ninjaRequirement}
}

// CheckTools verifies cmake is on PATH.
func (b *CmakeBuilder) CheckTools() error {
	return checkRequiredTools(b.lookPath(), b.RequiredTools())
}

// Plan computes the cmake invocation for ext under env.
func (b *CmakeBuilder) Plan(ext *Extension, env BuildEnvironment) (*BuildConfiguration, error) {
	if env.BuildTemp == "" {
		return nil, fmt.Errorf("%w: build temp directory is empty", ErrInvalidEnvironmentValue)
	}
	if env.BuildLib == "" {
		return nil, fmt.Errorf("%w: build lib directory is empty", ErrInvalidEnvironmentValue)
	}

	outputDir, err := ext.OutputDir(env.BuildLib)
	if err != nil {
		return nil, err
	}
	scratchDir, err := filepath.Abs(env.BuildTemp)
	if err != nil {
		return nil, fmt.Errorf("resolve build temp %q: %w", env.BuildTemp, err)
	}

	cfg := configRelease
	if env.IsDebug {
		cfg = configDebug
	}

	plan := &BuildConfiguration{
		SourceDir:  ext.SourceDir(),
		ScratchDir: scratchDir,
		OutputDir:  outputDir,
		ConfigName: cfg,
	}

	plan.addDefine("CMAKE_LIBRARY_OUTPUT_DIRECTORY", outputDir)
	plan.addDefine("PYTHON_EXECUTABLE", env.PythonExecutable)
	plan.addDefine(versionDefine(ext), env.VersionInfo)
	// Ignored by multi-config generators.
	plan.addDefine("CMAKE_BUILD_TYPE", cfg)

	generator := env.GeneratorOverride
	if !env.CompilerIsMSVC {
		if generator == "" && b.ninjaAvailable() {
			plan.GeneratorArgs = append(plan.GeneratorArgs, ninjaGenerator)
		}
	} else {
		singleConfig := MatchesPattern(generator, `NMake`, `Ninja`)
		// Old-style generator names such as "Visual Studio 15 2017 Win64".
		containsArch := MatchesPattern(generator, `ARM`, `Win64`)

		if !singleConfig && !containsArch {
			arch, err := CMakeArchitecture(env.PlatformID)
			if err != nil {
				return nil, err
			}
			plan.GeneratorArgs = append(plan.GeneratorArgs, "-A", arch)
		}

		if !singleConfig {
			plan.addDefine("CMAKE_LIBRARY_OUTPUT_DIRECTORY_"+strings.ToUpper(cfg), outputDir)
			plan.BuildArgs = append(plan.BuildArgs, "--config", cfg)
		}
	}

	if env.HostOS == platformDarwin {
		if !env.UseOpenMP {
			plan.addDefine("USE_OMP", "No")
		}
		if archs := ParseArchFlags(env.ArchFlags); len(archs) > 0 {
			plan.addDefine("CMAKE_OSX_ARCHITECTURES", strings.Join(archs, ";"))
		}
	}

	if env.ParallelLevel == nil && env.Jobs > 0 {
		plan.BuildArgs = append(plan.BuildArgs, "--parallel", strconv.Itoa(env.Jobs))
	}

	return plan, nil
}

// Build compiles the extension using the cmake configure → build workflow
func (b *CmakeBuilder) Build(ctx context.Context, ext *Extension, env BuildEnvironment) (*BuildResult, error) {
	logger := loggerOrNop(b.Logger)

	plan, err := b.Plan(ext, env)
	if err != nil {
		return &BuildResult{State: StateFailed, Error: err}, err
	}
	if !b.CanBuild(ext.SourceDir()) {
		err := fmt.Errorf("%w: %s", ErrNoCMakeProject, ext.SourceDir())
		return &BuildResult{State: StateFailed, Configuration: plan, Error: err}, err
	}

	logger.Info("building extension",
		zap.String("extension", ext.Name()),
		zap.String("config", plan.ConfigName),
		zap.String("scratch_dir", plan.ScratchDir),
		zap.String("output_dir", plan.OutputDir))

	return runBuildSteps(ctx, ext.Name(), plan, buildSteps{
		Configure: b.runCmake,
		Build:     b.runBuild,
		Find: func(plan *BuildConfiguration) ([]string, error) {
			return finalizeArtifacts(ext, env, plan, logger)
		},
	}, logger)
}

// Clean runs the clean target in the scratch directory if it exists.
func (b *CmakeBuilder) Clean(ctx context.Context, ext *Extension, env BuildEnvironment) error {
	plan, err := b.Plan(ext, env)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(plan.ScratchDir, "CMakeCache.txt")); err != nil {
		loggerOrNop(b.Logger).Debug("nothing to clean", zap.String("scratch_dir", plan.ScratchDir))
		return nil
	}
	return b.Runner.Run(ctx, Command{
		Name: cmakeProgram,
		Args: append(plan.BuildCommandArgs(), "--target", "clean"),
		Dir:  plan.ScratchDir,
	})
}

// runCmake executes cmake to configure the build
func (b *CmakeBuilder) runCmake(ctx context.Context, plan *BuildConfiguration, _ *BuildResult) error {
	return b.Runner.Run(ctx, Command{
		Name: cmakeProgram,
		Args: plan.ConfigureArgs(),
		Dir:  plan.ScratchDir,
	})
}

// runBuild executes the build command
func (b *CmakeBuilder) runBuild(ctx context.Context, plan *BuildConfiguration, _ *BuildResult) error {
	return b.Runner.Run(ctx, Command{
		Name: cmakeProgram,
		Args: plan.BuildCommandArgs(),
		Dir:  plan.ScratchDir,
	})
}

// ninjaAvailable reports whether a Ninja binary is on PATH.
func (b *CmakeBuilder) ninjaAvailable() bool {
	_, ok := findTool(b.lookPath(), ninjaRequirement)
	return ok
}

func (b *CmakeBuilder) lookPath() lookPathFunc {
	if b.LookPath != nil {
		return b.LookPath
	}
	return exec.LookPath
}

// versionDefine names the cache entry carrying the package version,
// e.g. SAMPLE_VERSION_INFO for "sample".
func versionDefine(ext *Extension) string {
	key := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(ext.Name()))
	return key + "_VERSION_INFO"
}
