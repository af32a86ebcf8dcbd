package cmakeext

import (
	"fmt"
	"os/exec"
	"strings"
)

// ToolChecker is implemented by builders that depend on external tools.
//
// # Consumer Usage
//
// Check tools before building:
//
//	if checker, ok := builder.(ToolChecker); ok {
//	    if err := checker.CheckTools(); err != nil {
//	        return fmt.Errorf("build tools missing: %w", err)
//	    }
//	}
type ToolChecker interface {
	// RequiredTools returns the list of tools this builder needs.
	RequiredTools() []ToolRequirement

	// CheckTools verifies that all required tools are available.
	//
	// Optional tools don't cause errors if missing.
	CheckTools() error
}

// ToolRequirement describes a build tool dependency.
//
// Tool with alternatives:
//
//	ToolRequirement{
//	    Name: "ninja",
//	    Alternatives: []string{"ninja-build"},
//	    Optional: true,
//	    Purpose: "Ninja generator",
//	}
type ToolRequirement struct {
	// Name is the primary tool binary name (e.g., "cmake").
	Name string

	// Alternatives are other binary names that satisfy this requirement.
	Alternatives []string

	// Optional tools are looked up but never fail the check.
	Optional bool

	// Purpose is a human-readable description of why this tool is needed.
	Purpose string
}

func (r ToolRequirement) String() string {
	if r.Purpose == "" {
		return r.Name
	}
	return fmt.Sprintf("%s (%s)", r.Name, r.Purpose)
}

// lookPathFunc resolves a program name the way exec.LookPath does.
type lookPathFunc func(file string) (string, error)

// findTool returns the path of the first of req.Name and req.Alternatives
// that lookPath resolves.
func findTool(lookPath lookPathFunc, req ToolRequirement) (string, bool) {
	for _, name := range append([]string{req.Name}, req.Alternatives...) {
		if path, err := lookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// CheckRequiredTools verifies all required tools are on PATH.
//
// All missing required tools are reported in a single error:
//
//	missing required tools: cmake (CMake build system), cc (C compiler)
func CheckRequiredTools(requirements []ToolRequirement) error {
	return checkRequiredTools(exec.LookPath, requirements)
}

func checkRequiredTools(lookPath lookPathFunc, requirements []ToolRequirement) error {
	var missing []string
	for _, req := range requirements {
		if req.Optional {
			continue
		}
		if _, ok := findTool(lookPath, req); !ok {
			missing = append(missing, req.String())
		}
	}

	switch len(missing) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s not found in PATH", missing[0])
	default:
		return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
	}
}
