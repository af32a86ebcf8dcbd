package cmakeext

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/magefile/mage/sh"
)

// Error kinds raised before any subprocess is launched.
var (
	// ErrUnsupportedPlatform is returned when a platform identifier has no
	// cmake architecture mapping.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrInvalidEnvironmentValue is returned when an environment variable or
	// flag holds a value outside its recognized set.
	ErrInvalidEnvironmentValue = errors.New("invalid environment value")

	// ErrNoCMakeProject is returned when the extension source directory has
	// no CMakeLists.txt.
	ErrNoCMakeProject = errors.New("no CMakeLists.txt in source directory")
)

// MatchesPattern checks if a string matches any of the given regex patterns.
//
// Invalid patterns are skipped.
//
// # Example
//
//	// Single-config generators
//	if MatchesPattern(generator, `NMake`, `Ninja`) {
//	    // configuration is fixed at configure time
//	}
func MatchesPattern(s string, patterns ...string) bool {
	for _, pattern := range patterns {
		if matched, _ := regexp.MatchString(pattern, s); matched {
			return true
		}
	}
	return false
}

// maxOutputLines bounds how much subprocess output a CommandError keeps.
const maxOutputLines = 40

// CommandError describes a subprocess that failed to start or exited nonzero.
//
// The error message follows the same layout for every command:
//
//	cmake --build . failed: exit status 2
//
//	Build output:
//	[ 50%] Building CXX object ...
//	error: ...
type CommandError struct {
	Command  string   // Command line that was run
	Dir      string   // Working directory
	Ran      bool     // False if the process never started
	ExitCode int      // Exit status reported by the process
	Output   []string // Last lines of combined output
	Err      error    // Underlying exec error
}

func newCommandError(cmd Command, output string, err error) *CommandError {
	return &CommandError{
		Command:  cmd.String(),
		Dir:      cmd.Dir,
		Ran:      sh.CmdRan(err),
		ExitCode: sh.ExitStatus(err),
		Output:   tailLines(output, maxOutputLines),
		Err:      err,
	}
}

func (e *CommandError) Error() string {
	prefix := fmt.Sprintf("%s failed: %v", e.Command, e.Err)
	if !e.Ran {
		prefix = fmt.Sprintf("%s could not be started: %v", e.Command, e.Err)
	}
	if len(e.Output) == 0 {
		return prefix
	}
	return fmt.Sprintf("%s\n\nBuild output:\n%s", prefix, strings.Join(e.Output, "\n"))
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitStatus returns the subprocess exit code.
func (e *CommandError) ExitStatus() int { return e.ExitCode }

// BuildFailure reports that the configure or the build call of an extension
// failed.
type BuildFailure struct {
	Extension string
	Phase     BuildState // StateConfiguring or StateBuilding
	Err       error
}

func (e *BuildFailure) Error() string {
	verb := "build"
	if e.Phase == StateConfiguring {
		verb = "configure"
	}
	return fmt.Sprintf("%s %s: %v", verb, e.Extension, e.Err)
}

func (e *BuildFailure) Unwrap() error { return e.Err }

// ExitStatus returns the exit code of the failed cmake call, or 1.
func (e *BuildFailure) ExitStatus() int {
	var cmdErr *CommandError
	if errors.As(e.Err, &cmdErr) && cmdErr.ExitCode != 0 {
		return cmdErr.ExitCode
	}
	return 1
}

// TestFailure is returned when one or more test phases failed.
type TestFailure struct {
	Failed []string // Names of failed phases, in run order
}

func (e *TestFailure) Error() string {
	return fmt.Sprintf("tests failed: %s", strings.Join(e.Failed, ", "))
}

// ExitStatus always returns 1; the phases are reported by name.
func (e *TestFailure) ExitStatus() int { return 1 }

// ExitStatus maps an error to a process exit code: 0 for nil, the code
// carried by the error chain when there is one, and 1 otherwise.
func ExitStatus(err error) int {
	if err == nil {
		return 0
	}
	var coded interface{ ExitStatus() int }
	if errors.As(err, &coded) {
		if code := coded.ExitStatus(); code != 0 {
			return code
		}
		return 1
	}
	return sh.ExitStatus(err)
}

func tailLines(output string, n int) []string {
	output = strings.TrimRight(output, "\n")
	if output == "" {
		return nil
	}
	lines := strings.Split(output, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
