package cmakeext

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// runBuildSteps executes the configure/build/find sequence for one plan.
//
// # Process Flow
//
//  1. Create the scratch directory (idempotent)
//  2. Configuring: call steps.Configure
//  3. Building: call steps.Build
//  4. Call steps.Find to locate the produced files
//  5. Done
//
// A failure in Configuring or Building moves the result to StateFailed,
// wraps the error in a *BuildFailure and skips the remaining steps. The
// scratch directory is left as is for diagnosis. An error from Find, such as
// a failed in-place copy, fails the build the same way; Find reports a
// missing module itself and returns no error for it.
func runBuildSteps(ctx context.Context, extName string, plan *BuildConfiguration, steps buildSteps, logger *zap.Logger) (*BuildResult, error) {
	result := &BuildResult{
		State:         StateNotStarted,
		Configuration: plan,
		ScratchDir:    plan.ScratchDir,
	}

	fail := func(phase BuildState, err error) (*BuildResult, error) {
		failure := &BuildFailure{Extension: extName, Phase: phase, Err: err}
		logger.Error("build failed",
			zap.String("extension", extName),
			zap.Stringer("phase", phase),
			zap.Error(err))
		result.State = StateFailed
		result.Error = failure
		return result, failure
	}

	transition := func(next BuildState) {
		logger.Debug("build state",
			zap.String("extension", extName),
			zap.Stringer("from", result.State),
			zap.Stringer("to", next))
		result.State = next
	}

	transition(StateConfiguring)
	if err := os.MkdirAll(plan.ScratchDir, 0o755); err != nil {
		return fail(StateConfiguring, fmt.Errorf("create scratch dir: %w", err))
	}
	if err := steps.Configure(ctx, plan, result); err != nil {
		return fail(StateConfiguring, err)
	}

	transition(StateBuilding)
	if err := steps.Build(ctx, plan, result); err != nil {
		return fail(StateBuilding, err)
	}

	artifacts, err := steps.Find(plan)
	if err != nil {
		return fail(StateBuilding, err)
	}

	transition(StateDone)
	result.Artifacts = artifacts
	result.Success = true
	return result, nil
}
