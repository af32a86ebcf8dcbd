package cmakeext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Command is one subprocess invocation.
type Command struct {
	Name string            // Program name or path
	Args []string          // Arguments
	Dir  string            // Working directory, empty for the current one
	Env  map[string]string // Added on top of the inherited environment
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// CommandRunner executes subprocesses on behalf of the build and test code.
//
// Run blocks until the process exits and returns a *CommandError when it
// could not be started or exited nonzero. Output runs the command and returns
// its standard output.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) error
	Output(ctx context.Context, cmd Command) (string, error)
}

// ExecRunner is the os/exec backed CommandRunner.
//
// Output of Run is streamed to Stdout and Stderr (os.Stdout and os.Stderr
// when nil) and the tail of it is kept for error reporting.
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *zap.Logger
}

// NewExecRunner returns an ExecRunner writing to the process's own streams.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	return &ExecRunner{Logger: logger}
}

// Run executes cmd and waits for it to finish.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	var captured bytes.Buffer

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = commandEnv(cmd.Env)
	c.Stdout = io.MultiWriter(&captured, r.stdout())
	c.Stderr = io.MultiWriter(&captured, r.stderr())

	logger := loggerOrNop(r.Logger)
	logger.Info("running command",
		zap.String("cmd", cmd.Name),
		zap.Strings("args", cmd.Args),
		zap.String("dir", cmd.Dir))

	if err := c.Run(); err != nil {
		cmdErr := newCommandError(cmd, captured.String(), err)
		logger.Error("command failed",
			zap.String("cmd", cmdErr.Command),
			zap.Int("exit_code", cmdErr.ExitCode),
			zap.Bool("ran", cmdErr.Ran))
		return cmdErr
	}
	return nil
}

// Output executes cmd and returns what it wrote to stdout.
func (r *ExecRunner) Output(ctx context.Context, cmd Command) (string, error) {
	var stderr bytes.Buffer

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = commandEnv(cmd.Env)
	c.Stderr = &stderr

	loggerOrNop(r.Logger).Debug("capturing command output",
		zap.String("cmd", cmd.Name),
		zap.Strings("args", cmd.Args))

	out, err := c.Output()
	if err != nil {
		return "", newCommandError(cmd, stderr.String(), err)
	}
	return string(out), nil
}

func (r *ExecRunner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *ExecRunner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// commandEnv returns nil (inherit) when there is nothing to add.
func commandEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := os.Environ()
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}
	return env
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
