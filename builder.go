package cmakeext

import "context"

// Builder compiles an Extension with some external build system.
//
// # Builder Lifecycle
//
//  1. CanBuild() - the source directory holds a usable project; Build checks it too
//  2. Plan() - pure computation of the invocation, no side effects
//  3. Build() - runs the external tool and reports artifacts
//  4. Clean() - optional cleanup of the scratch directory's build outputs
//
// Builders hold no per-build state; everything a build needs comes from the
// Extension and BuildEnvironment arguments.
type Builder interface {
	// Name returns the human-readable name of this builder, used in logs.
	Name() string

	// CanBuild reports whether sourceDir contains a project this builder
	// understands.
	CanBuild(sourceDir string) bool

	// Plan computes the build configuration without running anything.
	Plan(ext *Extension, env BuildEnvironment) (*BuildConfiguration, error)

	// Build configures and compiles the extension.
	//
	// Returns:
	//   - BuildResult with Success=true, State=Done and Artifacts on success
	//   - BuildResult with State=Failed and Error on failure
	Build(ctx context.Context, ext *Extension, env BuildEnvironment) (*BuildResult, error)

	// Clean removes build outputs from the scratch directory.
	// Returns nil when there is nothing to clean.
	Clean(ctx context.Context, ext *Extension, env BuildEnvironment) error
}
