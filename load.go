package refine

import (
	"fmt"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadProgram loads the packages matching patterns, builds them in SSA form
// with debug information & returns the whole-program view.
func LoadProgram(dir string, patterns ...string) (*Program, error) {
	initial, err := packages.Load(&packages.Config{
		Mode: packages.LoadAllSyntax,
		Dir:  dir,
	}, patterns...)
	if err != nil {
		return nil, err
	} else if len(initial) == 0 {
		return nil, fmt.Errorf("no packages matching %v", patterns)
	} else if packages.PrintErrors(initial) > 0 {
		return nil, fmt.Errorf("packages contain errors")
	}

	// Build program in SSA form.
	prog, pkgs := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	for i, pkg := range pkgs {
		if pkg == nil {
			return nil, errors.Errorf("cannot build SSA for package %s", initial[i])
		}
		pkg.SetDebugMode(true)
	}
	prog.Build()

	return NewProgram(prog), nil
}
