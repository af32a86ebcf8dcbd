// Package cmakeext builds a Python native extension out-of-process with CMake
// and runs its two-phase test sequence.
//
// The package replaces the usual setup.py glue (a CMakeExtension plus a
// build_ext override) with a small Go driver that can be called from a CLI,
// a magefile or another Go program.
//
// # Basic Usage
//
// Describe the extension, capture the build environment once, then build:
//
//	ext, err := cmakeext.NewExtension("sample", ".")
//
//	env, err := cmakeext.LoadEnvironment(cmakeext.EnvironmentOptions{
//	    PythonExecutable: "/usr/bin/python3",
//	    BuildTemp:        "build/temp.linux-x86_64-3.12",
//	    BuildLib:         "build/lib.linux-x86_64-3.12",
//	    VersionInfo:      "1.4.0",
//	})
//
//	builder := cmakeext.NewCmakeBuilder(nil, logger)
//	result, err := builder.Build(ctx, ext, env)
//
// Tests run against the scratch directory the build reports:
//
//	orch := &cmakeext.TestOrchestrator{
//	    Interpreted: &cmakeext.InterpretedTestRunner{Python: env.PythonExecutable},
//	    Native: &cmakeext.NativeTestRunner{
//	        ScratchDir: result.ScratchDir,
//	        Target:     "sample_test",
//	        Binary:     "sample_test",
//	    },
//	}
//	run, err := orch.RunAll(ctx)
//
// # Build Sequence
//
//	NotStarted -> Configuring -> Building -> Done
//	                   |             |
//	                   +--> Failed <-+
//
// Configuring creates the scratch directory and runs `cmake <sourceDir>`;
// Building runs `cmake --build .`. Both run inside the scratch directory and a
// nonzero exit from either is fatal. The scratch directory is left in place
// after a failure.
//
// # Environment
//
// All environment variables are read once by LoadEnvironment:
//   - CMAKE_GENERATOR - generator override
//   - ARCHFLAGS - `-arch <value>` tokens for macOS cross builds
//   - USE_OMP - "True" or "False" (default "False")
//   - CMAKE_BUILD_PARALLEL_LEVEL - when set, no job count is passed to cmake
//
// # Platform Support
//
// Linux and macOS use Ninja when it is on PATH. On Windows with MSVC the
// Visual Studio generators get an explicit -A architecture and a --config
// selector at build time.
package cmakeext
