package cmakeext

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
)

// Test phase names, as reported in TestRunResult and TestFailure.
const (
	PhaseInterpreted = "interpreted"
	PhaseNative      = "native"
)

// TestRunner runs one test suite and returns an error if it failed.
type TestRunner interface {
	Name() string
	Run(ctx context.Context) error
}

// TestOrchestrator runs the interpreted suite and then the native suite.
//
// The phases run strictly in order and the native phase runs even when the
// interpreted one failed. A nil runner skips its phase; a skipped phase
// counts as passed.
type TestOrchestrator struct {
	Interpreted TestRunner
	Native      TestRunner
	Logger      *zap.Logger
}

// RunAll runs both phases and returns their results. The error is a
// *TestFailure naming the failed phases when any failed.
func (o *TestOrchestrator) RunAll(ctx context.Context) (*TestRunResult, error) {
	logger := loggerOrNop(o.Logger)
	result := &TestRunResult{}

	interpreted := runPhase(ctx, PhaseInterpreted, o.Interpreted, logger)
	result.InterpretedTestsPassed = interpreted.Passed
	result.Phases = append(result.Phases, interpreted)

	if o.Native != nil {
		logger.Info("interpreted tests complete, running native tests")
	}

	native := runPhase(ctx, PhaseNative, o.Native, logger)
	result.NativeTestsPassed = native.Passed
	result.Phases = append(result.Phases, native)

	if failed := result.Failed(); len(failed) > 0 {
		return result, &TestFailure{Failed: failed}
	}
	return result, nil
}

func runPhase(ctx context.Context, name string, runner TestRunner, logger *zap.Logger) PhaseResult {
	if runner == nil {
		logger.Debug("test phase skipped", zap.String("phase", name))
		return PhaseResult{Name: name, Passed: true, Skipped: true}
	}

	logger.Info("running tests", zap.String("phase", name), zap.String("runner", runner.Name()))
	if err := runner.Run(ctx); err != nil {
		logger.Error("tests failed", zap.String("phase", name), zap.Error(err))
		return PhaseResult{Name: name, Err: err}
	}
	logger.Info("tests passed", zap.String("phase", name))
	return PhaseResult{Name: name, Passed: true}
}

// InterpretedTestRunner runs the Python test suite through the interpreter,
// `python -m pytest` unless Args says otherwise.
type InterpretedTestRunner struct {
	Runner CommandRunner
	Python string
	Args   []string
	Dir    string
	Env    map[string]string
}

// Name returns the runner name
func (r *InterpretedTestRunner) Name() string { return "python" }

// Run executes the suite in Dir.
func (r *InterpretedTestRunner) Run(ctx context.Context) error {
	args := r.Args
	if len(args) == 0 {
		args = []string{"-m", "pytest"}
	}
	python := r.Python
	if python == "" {
		python = DefaultPython(runtime.GOOS)
	}
	return runnerOrExec(r.Runner).Run(ctx, Command{Name: python, Args: args, Dir: r.Dir, Env: r.Env})
}

// NativeTestRunner builds the native test target inside the scratch
// directory of a finished build and runs the resulting binary from
// tests/<Binary>.
type NativeTestRunner struct {
	Runner     CommandRunner
	ScratchDir string // BuildResult.ScratchDir
	Target     string // cmake target producing the test binary
	Binary     string // binary name, defaults to Target
	BuildArgs  []string
}

// Name returns the runner name
func (r *NativeTestRunner) Name() string { return "native" }

// Run builds the test target and runs it. The binary is not run if the
// target fails to build.
func (r *NativeTestRunner) Run(ctx context.Context) error {
	if r.ScratchDir == "" {
		return errors.New("native tests need the scratch directory of a completed build")
	}
	if r.Target == "" {
		return errors.New("native test target is empty")
	}
	runner := runnerOrExec(r.Runner)

	args := append([]string{"--build", ".", "--target", r.Target}, r.BuildArgs...)
	if err := runner.Run(ctx, Command{Name: cmakeProgram, Args: args, Dir: r.ScratchDir}); err != nil {
		return err
	}

	return runner.Run(ctx, Command{Name: r.BinaryPath(), Dir: r.ScratchDir})
}

// BinaryPath returns the absolute path of the test binary.
func (r *NativeTestRunner) BinaryPath() string {
	binary := r.Binary
	if binary == "" {
		binary = r.Target
	}
	if runtime.GOOS == platformWindows && filepath.Ext(binary) == "" {
		binary += ".exe"
	}
	return filepath.Join(r.ScratchDir, "tests", binary)
}

func runnerOrExec(r CommandRunner) CommandRunner {
	if r == nil {
		return NewExecRunner(nil)
	}
	return r
}
