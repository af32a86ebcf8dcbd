//go:build mage

package main

import (
	"context"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified
var Default = Build

// cli runs the cmakeext command from this checkout.
func cli(args ...string) error {
	if mg.Verbose() {
		args = append(args, "--verbose")
	}
	return sh.RunV(mg.GoCmd(), append([]string{"run", "./cmd/cmakeext"}, args...)...)
}

// Build configures and builds the extension.
func Build() error {
	return cli("build_ext")
}

// Test builds the extension and runs the Python and C++ suites.
func Test() error {
	return cli("test")
}

// PyTest builds the extension and runs only the Python suite.
func PyTest() error {
	return cli("pytest")
}

// Clean runs the CMake clean target.
func Clean() error {
	return cli("clean")
}

// Vet runs go vet on the driver.
func Vet() error {
	return sh.RunV(mg.GoCmd(), "vet", "./...")
}

// Unit runs the driver's own Go tests.
func Unit() error {
	return sh.RunV(mg.GoCmd(), "test", "./...")
}

// Check vets and tests the driver, then builds the extension.
func Check(ctx context.Context) error {
	mg.SerialCtxDeps(ctx, Vet, Unit, Build)
	return nil
}
