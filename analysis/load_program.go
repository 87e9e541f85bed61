// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package analysis loads the programs to analyze, selects their entry points and computes the call graphs used by
// the pointer analysis in its pre-built mode.
package analysis

import (
	"fmt"
	"go/token"
	"os"
	"strings"

	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// PkgLoadMode is the loading mode of the programs: the pointer analysis needs the types and syntax of all the
// dependencies to build their SSA bodies.
const PkgLoadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedTypesSizes |
	packages.NeedModule

// LoadedProgram is a program in SSA form, with all its functions built.
type LoadedProgram struct {
	// Program is the SSA version of the program.
	Program *ssa.Program
	// Packages are the SSA packages of the packages matched by the arguments of LoadProgram
	Packages []*ssa.Package
}

// A LoadError lists the errors reported by the packages of a program that could not be loaded
type LoadError struct {
	Errors []packages.Error
}

func (e *LoadError) Error() string {
	const shown = 3
	msgs := make([]string, 0, shown)
	for i, err := range e.Errors {
		if i == shown {
			msgs = append(msgs, fmt.Sprintf("and %d more", len(e.Errors)-shown))
			break
		}
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors in packages: %s", len(e.Errors), strings.Join(msgs, "; "))
}

// LoadProgram loads the packages matched by args, see packages.Load, and builds the SSA form of the whole program
// with buildmode. If platform is not empty, the packages are loaded for GOOS=platform. If config is nil, packages
// are loaded with PkgLoadMode from the current directory.
func LoadProgram(config *packages.Config,
	platform string,
	buildmode ssa.BuilderMode,
	args []string) (LoadedProgram, error) {

	if config == nil {
		config = &packages.Config{Mode: PkgLoadMode, Fset: token.NewFileSet()}
	}
	if platform != "" {
		env := config.Env
		if env == nil {
			env = os.Environ()
		}
		config.Env = append(env, "GOOS="+platform)
	}

	initial, err := packages.Load(config, args...)
	if err != nil {
		return LoadedProgram{}, fmt.Errorf("failed to load packages: %w", err)
	}
	if len(initial) == 0 {
		return LoadedProgram{}, fmt.Errorf("no package matches %s", strings.Join(args, " "))
	}
	loadErr := &LoadError{}
	packages.Visit(initial, nil, func(p *packages.Package) {
		loadErr.Errors = append(loadErr.Errors, p.Errors...)
	})
	if len(loadErr.Errors) > 0 {
		return LoadedProgram{}, loadErr
	}

	program, ssaPackages := ssautil.AllPackages(initial, buildmode)
	for i, p := range ssaPackages {
		if p == nil {
			return LoadedProgram{}, fmt.Errorf("cannot build SSA for package %s", initial[i])
		}
	}
	program.Build()
	return LoadedProgram{Program: program, Packages: ssaPackages}, nil
}

// PackagesOf returns the packages of funcs, sorted by path. Functions without packages (wrappers, instances of
// generic functions) are ignored.
func PackagesOf(funcs map[*ssa.Function]bool) []*ssa.Package {
	seen := map[*ssa.Package]bool{}
	var pkgs []*ssa.Package
	for f := range funcs {
		if p := f.Package(); p != nil && !seen[p] {
			seen[p] = true
			pkgs = append(pkgs, p)
		}
	}
	slices.SortFunc(pkgs, func(a, b *ssa.Package) bool { return a.Pkg.Path() < b.Pkg.Path() })
	return pkgs
}
