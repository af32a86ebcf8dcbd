package cmakeext

import (
	"context"
	"fmt"
)

// BuildState is the position of a build in its configure/build sequence.
type BuildState int

// Build states. StateDone and StateFailed are terminal.
const (
	StateNotStarted BuildState = iota
	StateConfiguring
	StateBuilding
	StateDone
	StateFailed
)

func (s BuildState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateConfiguring:
		return "Configuring"
	case StateBuilding:
		return "Building"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("BuildState(%d)", int(s))
	}
}

// Define is a single -D<Key>=<Value> cache entry passed to cmake.
type Define struct {
	Key   string
	Value string
}

func (d Define) String() string {
	return fmt.Sprintf("-D%s=%s", d.Key, d.Value)
}

// BuildConfiguration is the cmake invocation plan for one extension.
//
// It is derived fresh for every build from an Extension and a
// BuildEnvironment:
//   - SourceDir: the CMake project directory
//   - ScratchDir: the working directory for both cmake calls
//   - OutputDir: where the library lands, always with a trailing separator
//   - ConfigName: "Debug" or "Release"
//   - Defines: cache entries, in emission order
//   - GeneratorArgs: -G / -A arguments for the configure call
//   - BuildArgs: extra arguments for `cmake --build .`
type BuildConfiguration struct {
	SourceDir     string
	ScratchDir    string
	OutputDir     string
	ConfigName    string
	Defines       []Define
	GeneratorArgs []string
	BuildArgs     []string
}

func (c *BuildConfiguration) addDefine(key, value string) {
	c.Defines = append(c.Defines, Define{Key: key, Value: value})
}

// Define returns the value of the cache entry named key.
func (c *BuildConfiguration) Define(key string) (string, bool) {
	for _, d := range c.Defines {
		if d.Key == key {
			return d.Value, true
		}
	}
	return "", false
}

// ConfigureArgs returns the arguments of the configure call.
func (c *BuildConfiguration) ConfigureArgs() []string {
	args := []string{c.SourceDir}
	for _, d := range c.Defines {
		args = append(args, d.String())
	}
	return append(args, c.GeneratorArgs...)
}

// BuildCommandArgs returns the arguments of the build call.
func (c *BuildConfiguration) BuildCommandArgs() []string {
	return append([]string{"--build", "."}, c.BuildArgs...)
}

// BuildResult contains the outcome of a build.
//
// ScratchDir is the single source of truth for where intermediate files and
// the native test binary live; the test sequence reads it from here.
type BuildResult struct {
	Success       bool                // True if both cmake calls succeeded
	State         BuildState          // Final state of the build
	Configuration *BuildConfiguration // Plan the build ran with, nil if planning failed
	ScratchDir    string              // Absolute scratch directory
	Artifacts     []string            // Built extension files found in the output directory
	Error         error               // Error if build failed, nil otherwise
}

// buildSteps is the configure/build/find sequence run by runBuildSteps.
type buildSteps struct {
	// Configure runs the configure call inside plan.ScratchDir.
	Configure func(ctx context.Context, plan *BuildConfiguration, result *BuildResult) error

	// Build compiles the configured project.
	Build func(ctx context.Context, plan *BuildConfiguration, result *BuildResult) error

	// Find locates the produced extension files.
	Find func(plan *BuildConfiguration) ([]string, error)
}

// PhaseResult is the outcome of one test phase.
type PhaseResult struct {
	Name    string
	Passed  bool
	Skipped bool
	Err     error
}

// TestRunResult aggregates the interpreted and native test phases.
type TestRunResult struct {
	InterpretedTestsPassed bool
	NativeTestsPassed      bool
	Phases                 []PhaseResult
}

// Passed reports whether every phase that ran succeeded.
func (r *TestRunResult) Passed() bool {
	return r.InterpretedTestsPassed && r.NativeTestsPassed
}

// Failed returns the names of the phases that failed, in run order.
func (r *TestRunResult) Failed() []string {
	var names []string
	for _, p := range r.Phases {
		if !p.Passed {
			names = append(names, p.Name)
		}
	}
	return names
}
