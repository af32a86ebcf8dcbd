// Package cli implements the cmakeext command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	cmakeext "github.com/contriboss/cmake-extension-go"
)

var (
	cfgFile    string
	verbose    bool
	flags      buildFlags
	logger     *zap.Logger
	projectCfg *cmakeext.ProjectConfig
)

// buildFlags are the options shared by every subcommand that builds.
type buildFlags struct {
	debug       bool
	platName    string
	compiler    string
	jobs        int
	python      string
	buildBase   string
	buildTemp   string
	buildLib    string
	versionInfo string
	inplace     bool
}

var rootCmd = &cobra.Command{
	Use:   "cmakeext",
	Short: "Build a CMake-based Python extension and run its tests",
	Long: `cmakeext configures and builds a Python native extension with CMake,
then runs the Python test suite followed by the compiled C++ test binary.

Environment:
  CMAKE_GENERATOR             generator override
  ARCHFLAGS                   -arch <value> tokens for macOS cross builds
  USE_OMP                     True or False (default False)
  CMAKE_BUILD_PARALLEL_LEVEL  when set, --parallel is not passed to cmake`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		projectCfg, err = cmakeext.LoadProjectConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: "+cmakeext.DefaultConfigFile+")")
	pf.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&flags.debug, "debug", "g", false, "build with debugging information")
	pf.StringVarP(&flags.platName, "plat-name", "p", "", "platform to build for (e.g. win-amd64)")
	pf.StringVar(&flags.compiler, "compiler", "", "compiler family: msvc, unix, mingw32, cygwin")
	pf.IntVarP(&flags.jobs, "parallel", "j", 0, "number of parallel build jobs")
	pf.StringVar(&flags.python, "python", "", "python interpreter driving the build")
	pf.StringVarP(&flags.buildBase, "build-base", "b", "", "base directory for build output")
	pf.StringVarP(&flags.buildTemp, "build-temp", "t", "", "scratch directory for cmake")
	pf.StringVar(&flags.buildLib, "build-lib", "", "directory the extension is installed below")
	pf.StringVar(&flags.versionInfo, "version-info", "", "package version passed to the build")
	pf.BoolVarP(&flags.inplace, "inplace", "i", false, "copy the built extension into the source tree")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
