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

// Package analysistest builds small programs in SSA form for the tests of the analyses, and finds the values the
// tests query in them.
package analysistest

import (
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"testing"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/rogpeppe/go-internal/txtar"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Mode is the SSA builder mode of the test programs
const Mode = ssa.InstantiateGenerics | ssa.SanityCheckFunctions

// BuildSource type-checks the main package in src and builds its SSA form. Imported packages are type-checked from
// source but their functions have no body, so the analyses see them as external functions.
func BuildSource(t *testing.T, src string) (*ssa.Program, *ssa.Package) {
	t.Helper()
	return BuildSourceWithMode(t, src, Mode)
}

// BuildSourceWithMode is BuildSource with the builder mode mode. Without ssa.InstantiateGenerics, the bodies of
// generic functions are built once, with type parameters in their types.
func BuildSourceWithMode(t *testing.T, src string, mode ssa.BuilderMode) (*ssa.Program, *ssa.Package) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "main.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("could not parse test program: %s", err)
	}
	tc := &types.Config{Importer: importer.ForCompiler(fset, "source", nil)}
	pkg := types.NewPackage("example.com/main", f.Name.Name)
	ssaPkg, _, err := ssautil.BuildPackage(tc, fset, pkg, []*ast.File{f}, mode)
	if err != nil {
		t.Fatalf("could not build test program: %s", err)
	}
	return ssaPkg.Prog, ssaPkg
}

// BuildArchive writes the files of the txtar archive in a temporary directory, and loads the program with all the
// packages of that directory. A go.mod is added if the archive does not contain one. If the archive contains a
// config.yaml, it is loaded and returned, otherwise the default config is returned.
func BuildArchive(t *testing.T, archive string) (analysis.LoadedProgram, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	ar := txtar.Parse([]byte(archive))
	hasMod := false
	for _, file := range ar.Files {
		name := filepath.Join(dir, filepath.FromSlash(file.Name))
		if err := os.MkdirAll(filepath.Dir(name), 0750); err != nil {
			t.Fatalf("could not create directory for %s: %s", file.Name, err)
		}
		if err := os.WriteFile(name, file.Data, 0600); err != nil {
			t.Fatalf("could not write %s: %s", file.Name, err)
		}
		hasMod = hasMod || file.Name == "go.mod"
	}
	if !hasMod {
		if err := os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/test\n\ngo 1.20\n"),
			0600); err != nil {
			t.Fatalf("could not write go.mod: %s", err)
		}
	}

	cfg := config.NewDefault()
	if b, err := os.ReadFile(filepath.Join(dir, "config.yaml")); err == nil {
		cfg, err = config.LoadFromBytes(filepath.Join(dir, "config.yaml"), b)
		if err != nil {
			t.Fatalf("could not load config of the archive: %s", err)
		}
	}

	pc := &packages.Config{
		Mode: analysis.PkgLoadMode,
		Dir:  dir,
		Fset: token.NewFileSet(),
		Env:  append(os.Environ(), "GOFLAGS=-mod=mod", "GOWORK=off"),
	}
	prog, err := analysis.LoadProgram(pc, "", Mode, []string{"./..."})
	if err != nil {
		t.Fatalf("could not load archive program: %s", err)
	}
	return prog, cfg
}

// Func returns the function or method of pkg with the given name. Methods are named "T.m" or "(*T).m".
func Func(t *testing.T, pkg *ssa.Package, name string) *ssa.Function {
	t.Helper()
	if fn := pkg.Func(name); fn != nil {
		return fn
	}
	for fn := range ssautil.AllFunctions(pkg.Prog) {
		if fn.Pkg == pkg && fn.RelString(pkg.Pkg) == name {
			return fn
		}
	}
	t.Fatalf("no function %s in %s", name, pkg.Pkg.Path())
	return nil
}

// Global returns the global variable of pkg with the given name
func Global(t *testing.T, pkg *ssa.Package, name string) *ssa.Global {
	t.Helper()
	g := pkg.Var(name)
	if g == nil {
		t.Fatalf("no global %s in %s", name, pkg.Pkg.Path())
	}
	return g
}

// ArgsOf returns the arguments of every static call to the function named callee in fn, in the order of the
// instructions. The name of the callee is its name in its package, e.g. "sink".
func ArgsOf(fn *ssa.Function, callee string) [][]ssa.Value {
	var args [][]ssa.Value
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			call, ok := instr.(ssa.CallInstruction)
			if !ok {
				continue
			}
			if f := call.Common().StaticCallee(); f != nil && f.Name() == callee {
				args = append(args, call.Common().Args)
			}
		}
	}
	return args
}

// ArgOf returns the i-th argument of the n-th call to callee in fn
func ArgOf(t *testing.T, fn *ssa.Function, callee string, n, i int) ssa.Value {
	t.Helper()
	calls := ArgsOf(fn, callee)
	if n >= len(calls) || i >= len(calls[n]) {
		t.Fatalf("no argument %d of call %d to %s in %s", i, n, callee, fn)
	}
	return calls[n][i]
}

// Returned returns the i-th result of the first return instruction of fn
func Returned(t *testing.T, fn *ssa.Function, i int) ssa.Value {
	t.Helper()
	for _, b := range fn.Blocks {
		if ret, ok := b.Instrs[len(b.Instrs)-1].(*ssa.Return); ok && i < len(ret.Results) {
			return ret.Results[i]
		}
	}
	t.Fatalf("%s does not return a result %d", fn, i)
	return nil
}

// Allocs returns the allocations of fn, in the order of the instructions. Only the allocations whose
// type is heap allocated are returned if heap is true.
func Allocs(fn *ssa.Function, heap bool) []*ssa.Alloc {
	var allocs []*ssa.Alloc
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if a, ok := instr.(*ssa.Alloc); ok && (!heap || a.Heap) {
				allocs = append(allocs, a)
			}
		}
	}
	return allocs
}

// Instrs returns the instructions of fn of type T, in order
func Instrs[T ssa.Instruction](fn *ssa.Function) []T {
	var res []T
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if x, ok := instr.(T); ok {
				res = append(res, x)
			}
		}
	}
	return res
}
