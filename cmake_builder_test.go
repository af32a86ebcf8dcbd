package cmakeext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(runner CommandRunner, lookPath func(string) (string, error)) *CmakeBuilder {
	b := NewCmakeBuilder(runner, nil)
	b.LookPath = lookPath
	return b
}

// sampleProject returns an Extension backed by a real CMakeLists.txt.
func sampleProject(t *testing.T, name string) *Extension {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(sample)\n"), 0o600))
	ext, err := NewExtension(name, dir)
	require.NoError(t, err)
	return ext
}

func TestPlanWindowsReleaseScenario(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)

	env := BuildEnvironment{
		IsDebug:          false,
		PlatformID:       "win-amd64",
		CompilerIsMSVC:   true,
		HostOS:           "windows",
		PythonExecutable: "python",
		VersionInfo:      "0.4.0",
		BuildTemp:        filepath.Join(t.TempDir(), "temp"),
		BuildLib:         filepath.Join(t.TempDir(), "lib"),
	}

	plan, err := newTestBuilder(&recordingRunner{}, allTools).Plan(ext, env)
	require.NoError(t, err)

	assert.Equal(t, "Release", plan.ConfigName)
	args := plan.ConfigureArgs()
	assert.Equal(t, ext.SourceDir(), args[0])
	assert.Contains(t, args, "-DCMAKE_BUILD_TYPE=Release")

	idx := slices.Index(args, "-A")
	require.GreaterOrEqual(t, idx, 0, "configure args lack -A: %v", args)
	require.Less(t, idx+1, len(args))
	assert.Equal(t, "x64", args[idx+1])

	assert.NotContains(t, args, "-GNinja", "ninja is never selected for MSVC")
	assert.Equal(t, []string{"--config", "Release"}, plan.BuildArgs)
}

func TestPlanBaselineDefines(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)
	env := linuxEnv(t)

	plan, err := newTestBuilder(&recordingRunner{}, noTools).Plan(ext, env)
	require.NoError(t, err)

	want := []Define{
		{Key: "CMAKE_LIBRARY_OUTPUT_DIRECTORY", Value: plan.OutputDir},
		{Key: "PYTHON_EXECUTABLE", Value: "/usr/bin/python3"},
		{Key: "SAMPLE_VERSION_INFO", Value: "1.2.3"},
		{Key: "CMAKE_BUILD_TYPE", Value: "Release"},
	}
	if diff := cmp.Diff(want, plan.Defines); diff != "" {
		t.Errorf("defines mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, plan.GeneratorArgs)
	assert.Empty(t, plan.BuildArgs)
	assert.True(t, strings.HasSuffix(plan.OutputDir, string(filepath.Separator)))
	assert.True(t, filepath.IsAbs(plan.ScratchDir))
}

func TestPlanDottedNamePlacesOutputInPackage(t *testing.T) {
	ext, err := NewExtension("pkg.sub.core", "/proj")
	require.NoError(t, err)
	env := linuxEnv(t)

	plan, err := newTestBuilder(&recordingRunner{}, noTools).Plan(ext, env)
	require.NoError(t, err)

	lib, err := filepath.Abs(env.BuildLib)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(lib, "pkg", "sub")+string(filepath.Separator), plan.OutputDir)

	key, ok := plan.Define("PKG_SUB_CORE_VERSION_INFO")
	assert.True(t, ok)
	assert.Equal(t, "1.2.3", key)
}

func TestPlanDebugConfig(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)
	env := linuxEnv(t)
	env.IsDebug = true

	plan, err := newTestBuilder(&recordingRunner{}, noTools).Plan(ext, env)
	require.NoError(t, err)

	assert.Equal(t, "Debug", plan.ConfigName)
	v, _ := plan.Define("CMAKE_BUILD_TYPE")
	assert.Equal(t, "Debug", v)
}

func TestPlanNinjaSelection(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)

	tests := []struct {
		name      string
		generator string
		lookPath  func(string) (string, error)
		want      []string
	}{
		{name: "ninja on path", lookPath: allTools, want: []string{"-GNinja"}},
		{name: "ninja-build alternative", lookPath: func(name string) (string, error) {
			if name == "ninja-build" {
				return "/usr/bin/ninja-build", nil
			}
			return noTools(name)
		}, want: []string{"-GNinja"}},
		{name: "no ninja", lookPath: noTools, want: nil},
		{name: "override wins", generator: "Unix Makefiles", lookPath: allTools, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := linuxEnv(t)
			env.GeneratorOverride = tt.generator

			plan, err := newTestBuilder(&recordingRunner{}, tt.lookPath).Plan(ext, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.GeneratorArgs)
		})
	}
}

func TestPlanMSVCGenerators(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)

	tests := []struct {
		name          string
		generator     string
		platform      string
		debug         bool
		wantGenerator []string
		wantBuildArgs []string
		wantPerConfig string
	}{
		{
			name:          "default multi-config",
			platform:      "win32",
			wantGenerator: []string{"-A", "Win32"},
			wantBuildArgs: []string{"--config", "Release"},
			wantPerConfig: "CMAKE_LIBRARY_OUTPUT_DIRECTORY_RELEASE",
		},
		{
			name:          "multi-config debug",
			platform:      "win-arm64",
			debug:         true,
			wantGenerator: []string{"-A", "ARM64"},
			wantBuildArgs: []string{"--config", "Debug"},
			wantPerConfig: "CMAKE_LIBRARY_OUTPUT_DIRECTORY_DEBUG",
		},
		{
			name:          "ninja is single-config",
			generator:     "Ninja",
			platform:      "not-a-platform",
			wantGenerator: nil,
			wantBuildArgs: nil,
		},
		{
			name:          "nmake is single-config",
			generator:     "NMake Makefiles",
			platform:      "win-amd64",
			wantGenerator: nil,
			wantBuildArgs: nil,
		},
		{
			name:          "arch embedded in generator name",
			generator:     "Visual Studio 15 2017 Win64",
			platform:      "win-amd64",
			wantGenerator: nil,
			wantBuildArgs: []string{"--config", "Release"},
			wantPerConfig: "CMAKE_LIBRARY_OUTPUT_DIRECTORY_RELEASE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := linuxEnv(t)
			env.HostOS = "windows"
			env.CompilerIsMSVC = true
			env.GeneratorOverride = tt.generator
			env.PlatformID = tt.platform
			env.IsDebug = tt.debug

			plan, err := newTestBuilder(&recordingRunner{}, allTools).Plan(ext, env)
			require.NoError(t, err)

			assert.Equal(t, tt.wantGenerator, plan.GeneratorArgs)
			assert.Equal(t, tt.wantBuildArgs, plan.BuildArgs)

			for _, d := range plan.Defines {
				if strings.HasPrefix(d.Key, "CMAKE_LIBRARY_OUTPUT_DIRECTORY_") {
					assert.Equal(t, tt.wantPerConfig, d.Key)
					assert.Equal(t, plan.OutputDir, d.Value)
					return
				}
			}
			assert.Empty(t, tt.wantPerConfig, "per-config output define missing")
		})
	}
}

func TestPlanMSVCUnknownPlatform(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)
	env.CompilerIsMSVC = true
	env.PlatformID = "win-mips"

	runner := &recordingRunner{}
	result, err := newTestBuilder(runner, allTools).Build(context.Background(), ext, env)

	require.ErrorIs(t, err, ErrUnsupportedPlatform)
	assert.Equal(t, StateFailed, result.State)
	assert.Empty(t, runner.commands, "no subprocess may run for an unsupported platform")
}

func TestPlanAppleBranch(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)

	tests := []struct {
		name      string
		hostOS    string
		useOMP    bool
		archFlags string
		wantOMP   bool
		wantArchs string
	}{
		{name: "openmp disabled", hostOS: "darwin", wantOMP: true},
		{name: "openmp enabled", hostOS: "darwin", useOMP: true},
		{name: "single arch", hostOS: "darwin", useOMP: true, archFlags: "-arch arm64", wantArchs: "arm64"},
		{name: "universal", hostOS: "darwin", useOMP: true, archFlags: "-arch arm64 -arch x86_64", wantArchs: "arm64;x86_64"},
		{name: "linux ignores both", hostOS: "linux", archFlags: "-arch arm64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := linuxEnv(t)
			env.HostOS = tt.hostOS
			env.UseOpenMP = tt.useOMP
			env.ArchFlags = tt.archFlags

			plan, err := newTestBuilder(&recordingRunner{}, noTools).Plan(ext, env)
			require.NoError(t, err)

			omp, ok := plan.Define("USE_OMP")
			assert.Equal(t, tt.wantOMP, ok)
			if ok {
				assert.Equal(t, "No", omp)
			}

			archs, ok := plan.Define("CMAKE_OSX_ARCHITECTURES")
			assert.Equal(t, tt.wantArchs != "", ok)
			assert.Equal(t, tt.wantArchs, archs)
		})
	}
}

func TestPlanParallelJobs(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)
	level := 8

	tests := []struct {
		name  string
		jobs  int
		level *int
		want  []string
	}{
		{name: "explicit jobs", jobs: 4, want: []string{"--parallel", "4"}},
		{name: "env override present", jobs: 4, level: &level, want: nil},
		{name: "no jobs requested", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := linuxEnv(t)
			env.Jobs = tt.jobs
			env.ParallelLevel = tt.level

			plan, err := newTestBuilder(&recordingRunner{}, noTools).Plan(ext, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.BuildArgs)
			assert.NotContains(t, plan.ConfigureArgs(), "--parallel")
		})
	}
}

func TestPlanRequiresDirectories(t *testing.T) {
	ext, err := NewExtension("sample", "/proj")
	require.NoError(t, err)
	b := newTestBuilder(&recordingRunner{}, noTools)

	env := linuxEnv(t)
	env.BuildTemp = ""
	_, err = b.Plan(ext, env)
	assert.ErrorIs(t, err, ErrInvalidEnvironmentValue)

	env = linuxEnv(t)
	env.BuildLib = ""
	_, err = b.Plan(ext, env)
	assert.ErrorIs(t, err, ErrInvalidEnvironmentValue)
}

func TestBuildRunsConfigureThenBuild(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)
	env.Jobs = 2
	runner := &recordingRunner{}

	result, err := newTestBuilder(runner, noTools).Build(context.Background(), ext, env)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, StateDone, result.State)
	assert.DirExists(t, result.ScratchDir)

	want := []Command{
		{Name: "cmake", Args: result.Configuration.ConfigureArgs(), Dir: result.ScratchDir},
		{Name: "cmake", Args: []string{"--build", ".", "--parallel", "2"}, Dir: result.ScratchDir},
	}
	if diff := cmp.Diff(want, runner.commands); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildReusesExistingScratchDir(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)
	require.NoError(t, os.MkdirAll(env.BuildTemp, 0o755))
	marker := filepath.Join(env.BuildTemp, "CMakeCache.txt")
	require.NoError(t, os.WriteFile(marker, []byte("cache"), 0o600))

	result, err := newTestBuilder(&recordingRunner{}, noTools).Build(context.Background(), ext, env)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.FileExists(t, marker)
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name         string
		failOn       func(Command) bool
		wantPhase    BuildState
		wantCommands int
	}{
		{name: "configure fails", failOn: func(c Command) bool { return !isBuildCall(c) }, wantPhase: StateConfiguring, wantCommands: 1},
		{name: "build fails", failOn: isBuildCall, wantPhase: StateBuilding, wantCommands: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := sampleProject(t, "sample")
			env := linuxEnv(t)
			runner := &recordingRunner{onRun: func(c Command) error {
				if tt.failOn(c) {
					return exitError(c, 2)
				}
				return nil
			}}

			result, err := newTestBuilder(runner, noTools).Build(context.Background(), ext, env)
			require.Error(t, err)

			var failure *BuildFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.wantPhase, failure.Phase)
			assert.Equal(t, "sample", failure.Extension)
			assert.Equal(t, 2, ExitStatus(err))

			assert.False(t, result.Success)
			assert.Equal(t, StateFailed, result.State)
			assert.Len(t, runner.commands, tt.wantCommands)
			assert.DirExists(t, result.ScratchDir, "scratch dir is kept for diagnosis")
		})
	}
}

func TestBuildWithoutProjectFile(t *testing.T) {
	ext, err := NewExtension("sample", t.TempDir())
	require.NoError(t, err)
	runner := &recordingRunner{}

	result, err := newTestBuilder(runner, noTools).Build(context.Background(), ext, linuxEnv(t))
	require.ErrorIs(t, err, ErrNoCMakeProject)
	assert.Equal(t, StateFailed, result.State)
	assert.Empty(t, runner.commands)
}

func TestBuildLocatesArtifact(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)

	var outputDir string
	runner := &recordingRunner{onRun: func(c Command) error {
		if isBuildCall(c) {
			require.NoError(t, os.MkdirAll(outputDir, 0o755))
			return os.WriteFile(filepath.Join(outputDir, "sample.cpython-312-x86_64-linux-gnu.so"), []byte("elf"), 0o755)
		}
		return nil
	}}
	b := newTestBuilder(runner, noTools)
	plan, err := b.Plan(ext, env)
	require.NoError(t, err)
	outputDir = plan.OutputDir

	result, err := b.Build(context.Background(), ext, env)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(outputDir, "sample.cpython-312-x86_64-linux-gnu.so")}, result.Artifacts)
}

func TestBuildFailsWhenInplaceCopyFails(t *testing.T) {
	ext := sampleProject(t, "pkg.sample")
	env := linuxEnv(t)
	env.Inplace = true
	// A regular file where the package directory should be created.
	require.NoError(t, os.WriteFile(filepath.Join(env.ProjectDir, "pkg"), []byte("not a dir"), 0o600))

	var outputDir string
	runner := &recordingRunner{onRun: func(c Command) error {
		if isBuildCall(c) {
			require.NoError(t, os.MkdirAll(outputDir, 0o755))
			return os.WriteFile(filepath.Join(outputDir, "sample.so"), []byte("elf"), 0o755)
		}
		return nil
	}}
	b := newTestBuilder(runner, noTools)
	plan, err := b.Plan(ext, env)
	require.NoError(t, err)
	outputDir = plan.OutputDir

	result, err := b.Build(context.Background(), ext, env)
	require.Error(t, err)
	var failure *BuildFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StateFailed, result.State)
	assert.False(t, result.Success)
	assert.Empty(t, result.Artifacts)
	assert.Equal(t, 1, ExitStatus(err))
}

func TestBuildWithoutModuleStillSucceeds(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)
	env.Inplace = true

	result, err := newTestBuilder(&recordingRunner{}, noTools).Build(context.Background(), ext, env)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Empty(t, result.Artifacts)
}

func TestCleanSkipsUnconfiguredScratchDir(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)
	runner := &recordingRunner{}
	b := newTestBuilder(runner, noTools)

	require.NoError(t, b.Clean(context.Background(), ext, env))
	assert.Empty(t, runner.commands)

	require.NoError(t, os.MkdirAll(env.BuildTemp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.BuildTemp, "CMakeCache.txt"), nil, 0o600))

	require.NoError(t, b.Clean(context.Background(), ext, env))
	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"--build", ".", "--target", "clean"}, runner.commands[0].Args)
}

func TestCleanPropagatesFailure(t *testing.T) {
	ext := sampleProject(t, "sample")
	env := linuxEnv(t)
	require.NoError(t, os.MkdirAll(env.BuildTemp, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(env.BuildTemp, "CMakeCache.txt"), nil, 0o600))

	runner := &recordingRunner{onRun: func(c Command) error { return exitError(c, 1) }}
	err := newTestBuilder(runner, noTools).Clean(context.Background(), ext, env)

	var cmdErr *CommandError
	assert.True(t, errors.As(err, &cmdErr))
}
