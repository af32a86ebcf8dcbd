package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cmakeext "github.com/contriboss/cmake-extension-go"
)

var buildExtCmd = &cobra.Command{
	Use:   "build_ext",
	Short: "Configure and build the extension with CMake",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), projectCfg, flags, cmakeext.NewExecRunner(logger), logger)
		if err != nil {
			return err
		}
		result, err := s.build(cmd.Context())
		if err != nil {
			return err
		}
		for _, artifact := range result.Artifacts {
			fmt.Fprintf(cmd.OutOrStdout(), "built %s\n", artifact)
		}
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Build, then run the Python tests followed by the C++ tests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTests(cmd, true)
	},
}

var pytestCmd = &cobra.Command{
	Use:   "pytest",
	Short: "Build, then run only the Python tests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTests(cmd, false)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Run the clean target in the scratch directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context(), projectCfg, flags, cmakeext.NewExecRunner(logger), logger)
		if err != nil {
			return err
		}
		return s.builder.Clean(cmd.Context(), s.ext, s.env)
	},
}

func init() {
	rootCmd.AddCommand(buildExtCmd, testCmd, pytestCmd, cleanCmd)
}

func runTests(cmd *cobra.Command, native bool) error {
	ctx := cmd.Context()
	s, err := newSession(ctx, projectCfg, flags, cmakeext.NewExecRunner(logger), logger)
	if err != nil {
		return err
	}

	result, err := s.build(ctx)
	if err != nil {
		return err
	}

	orch := newOrchestrator(s, projectCfg, result, native)
	run, err := orch.RunAll(ctx)
	printSummary(cmd.OutOrStdout(), run)
	return err
}

// newOrchestrator wires the test phases to the scratch directory reported
// by result.
func newOrchestrator(s *session, cfg *cmakeext.ProjectConfig, result *cmakeext.BuildResult, native bool) *cmakeext.TestOrchestrator {
	orch := &cmakeext.TestOrchestrator{
		Logger: logger,
		Interpreted: &cmakeext.InterpretedTestRunner{
			Runner: s.runner,
			Python: s.env.PythonExecutable,
			Args:   cfg.Test.PythonArgs,
			Dir:    cfg.Test.Dir,
			Env:    s.pythonPathEnv(),
		},
	}
	if native {
		var buildArgs []string
		if result.Configuration != nil {
			buildArgs = result.Configuration.BuildArgs
		}
		orch.Native = &cmakeext.NativeTestRunner{
			Runner:     s.runner,
			ScratchDir: result.ScratchDir,
			Target:     cfg.TestTarget(s.ext),
			Binary:     cfg.Test.Binary,
			BuildArgs:  buildArgs,
		}
	}
	return orch
}

func printSummary(w io.Writer, run *cmakeext.TestRunResult) {
	if run == nil {
		return
	}
	fmt.Fprintln(w)
	for _, phase := range run.Phases {
		status := "PASS"
		switch {
		case phase.Skipped:
			status = "SKIP"
		case !phase.Passed:
			status = "FAIL"
		}
		fmt.Fprintf(w, "%-12s %s\n", phase.Name, status)
	}
}
