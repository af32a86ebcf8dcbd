package cmakeext

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Compiler families accepted by EnvironmentOptions.Compiler.
const (
	CompilerMSVC    = "msvc"
	CompilerUnix    = "unix"
	CompilerMinGW32 = "mingw32"
	CompilerCygwin  = "cygwin"
)

// BuildEnvironment is everything a build reads from the outside world,
// captured once by LoadEnvironment and passed by value afterwards.
type BuildEnvironment struct {
	GeneratorOverride string // CMAKE_GENERATOR, empty when unset
	ArchFlags         string // ARCHFLAGS
	UseOpenMP         bool   // USE_OMP
	ParallelLevel     *int   // CMAKE_BUILD_PARALLEL_LEVEL, nil when unset
	Jobs              int    // Job count requested by the caller, 0 for none

	IsDebug        bool
	PlatformID     string // e.g. "win-amd64", "linux-x86_64"
	CompilerIsMSVC bool
	HostOS         string // GOOS-style name of the build host

	PythonExecutable string // Interpreter driving the build
	VersionInfo      string // Package version injected into the build
	BuildTemp        string // Scratch directory
	BuildLib         string // Root the extension is installed below
	ProjectDir       string // Project root, used for in-place copies
	Inplace          bool   // Copy built modules into ProjectDir
}

// EnvironmentOptions are the flag-sourced inputs to LoadEnvironment.
// Empty fields take host defaults.
type EnvironmentOptions struct {
	Debug            bool
	PlatformID       string
	Compiler         string
	Jobs             int
	PythonExecutable string
	VersionInfo      string
	BuildTemp        string
	BuildLib         string
	ProjectDir       string
	Inplace          bool
	HostOS           string
}

// useOMPVar toggles OpenMP in macOS builds.
const useOMPVar = "USE_OMP"

// rawEnv holds the environment variables as strings; validation happens
// after parsing so every bad value maps to ErrInvalidEnvironmentValue.
type rawEnv struct {
	Generator     string `env:"CMAKE_GENERATOR"`
	ArchFlags     string `env:"ARCHFLAGS"`
	UseOMP        string `env:"USE_OMP"`
	ParallelLevel string `env:"CMAKE_BUILD_PARALLEL_LEVEL"`
}

// LoadEnvironment reads the process environment once and combines it with
// opts into a BuildEnvironment.
func LoadEnvironment(opts EnvironmentOptions) (BuildEnvironment, error) {
	var raw rawEnv
	if err := env.Parse(&raw); err != nil {
		return BuildEnvironment{}, fmt.Errorf("parse env: %w", err)
	}

	// Set but empty is rejected; only an unset USE_OMP means False.
	if _, set := os.LookupEnv(useOMPVar); !set {
		raw.UseOMP = "False"
	}
	useOMP, err := ParseOpenMP(raw.UseOMP)
	if err != nil {
		return BuildEnvironment{}, err
	}

	var parallelLevel *int
	if v := strings.TrimSpace(raw.ParallelLevel); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return BuildEnvironment{}, fmt.Errorf("%w: CMAKE_BUILD_PARALLEL_LEVEL=%q (want a non-negative integer)", ErrInvalidEnvironmentValue, raw.ParallelLevel)
		}
		parallelLevel = &n
	}

	if opts.Jobs < 0 {
		return BuildEnvironment{}, fmt.Errorf("%w: parallel jobs %d", ErrInvalidEnvironmentValue, opts.Jobs)
	}

	hostOS := opts.HostOS
	if hostOS == "" {
		hostOS = runtime.GOOS
	}

	compiler := opts.Compiler
	if compiler == "" {
		compiler = DefaultCompiler(hostOS)
	}
	switch compiler {
	case CompilerMSVC, CompilerUnix, CompilerMinGW32, CompilerCygwin:
	default:
		return BuildEnvironment{}, fmt.Errorf("%w: compiler %q", ErrInvalidEnvironmentValue, compiler)
	}

	platformID := opts.PlatformID
	if platformID == "" {
		platformID = PlatformIDFor(hostOS, runtime.GOARCH)
	}

	python := opts.PythonExecutable
	if python == "" {
		python = DefaultPython(hostOS)
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		projectDir = "."
	}
	if projectDir, err = filepath.Abs(projectDir); err != nil {
		return BuildEnvironment{}, fmt.Errorf("resolve project dir: %w", err)
	}

	return BuildEnvironment{
		GeneratorOverride: raw.Generator,
		ArchFlags:         raw.ArchFlags,
		UseOpenMP:         useOMP,
		ParallelLevel:     parallelLevel,
		Jobs:              opts.Jobs,
		IsDebug:           opts.Debug,
		PlatformID:        platformID,
		CompilerIsMSVC:    compiler == CompilerMSVC,
		HostOS:            hostOS,
		PythonExecutable:  python,
		VersionInfo:       opts.VersionInfo,
		BuildTemp:         opts.BuildTemp,
		BuildLib:          opts.BuildLib,
		ProjectDir:        projectDir,
		Inplace:           opts.Inplace,
	}, nil
}

// ParseOpenMP parses the USE_OMP toggle. Only the literals "True" and "False"
// are accepted.
func ParseOpenMP(value string) (bool, error) {
	switch value {
	case "True":
		return true, nil
	case "False":
		return false, nil
	default:
		return false, fmt.Errorf("%w: USE_OMP=%q (want True or False)", ErrInvalidEnvironmentValue, value)
	}
}

var archFlagPattern = regexp.MustCompile(`-arch (\S+)`)

// ParseArchFlags extracts the values of `-arch <value>` tokens, left to right.
func ParseArchFlags(flags string) []string {
	var archs []string
	for _, m := range archFlagPattern.FindAllStringSubmatch(flags, -1) {
		archs = append(archs, m[1])
	}
	return archs
}

// DefaultCompiler returns the compiler family used on hostOS when none is
// requested.
func DefaultCompiler(hostOS string) string {
	if hostOS == platformWindows {
		return CompilerMSVC
	}
	return CompilerUnix
}

// DefaultPython returns the interpreter name used on hostOS when none is
// requested.
func DefaultPython(hostOS string) string {
	if hostOS == platformWindows {
		return "python"
	}
	return "python3"
}
