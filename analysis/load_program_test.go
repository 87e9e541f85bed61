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

package analysis_test

import (
	"strings"
	"testing"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/analysistest"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

const program = `
-- main.go --
package main

import "example.com/test/lib"

type runner interface{ Run() }

func main() {
	var r runner = lib.Worker{}
	r.Run()
	lib.Entry()
}
-- lib/lib.go --
package lib

type Worker struct{}

func (Worker) Run() {}

func Entry() {}

func Handler() {}

func Other() {}
-- config.yaml --
pointer:
  entry-functions:
    - package: "lib$"
      method: "^Handler$"
`

func names(fns []*ssa.Function) []string {
	var r []string
	for _, fn := range fns {
		r = append(r, fn.String())
	}
	return r
}

func TestLoadProgram(t *testing.T) {
	prog, _ := analysistest.BuildArchive(t, program)
	if len(prog.Packages) != 2 {
		t.Fatalf("expected the main and lib packages, got %v", prog.Packages)
	}
	pkgs := analysis.PackagesOf(ssautil.AllFunctions(prog.Program))
	var paths []string
	for _, p := range pkgs {
		paths = append(paths, p.Pkg.Path())
	}
	joined := strings.Join(paths, " ")
	if !strings.Contains(joined, "example.com/test example.com/test/lib") {
		t.Errorf("the packages should be sorted by path, got %s", joined)
	}
}

func TestEntryPoints(t *testing.T) {
	prog, cfg := analysistest.BuildArchive(t, program)
	mains := names(analysis.MainRoots(prog.Program))
	if strings.Join(mains, " ") != "example.com/test.init example.com/test.main" {
		t.Errorf("unexpected main roots %v", mains)
	}
	entries := names(analysis.EntryPoints(prog.Program, cfg))
	expected := "example.com/test.init example.com/test.main example.com/test/lib.Handler"
	if strings.Join(entries, " ") != expected {
		t.Errorf("expected entry points %s, got %v", expected, entries)
	}
	if got := analysis.EntryPoints(prog.Program, nil); len(got) != 2 {
		t.Errorf("without config, only the main roots are entry points, got %v", names(got))
	}
}

func TestModeOf(t *testing.T) {
	cases := map[string]analysis.CallgraphAnalysisMode{
		config.CallGraphCha: analysis.ClassHierarchyAnalysis,
		config.CallGraphVta: analysis.VariableTypeAnalysis,
		"rta":               analysis.RapidTypeAnalysis,
		"static":            analysis.StaticAnalysis,
	}
	for name, mode := range cases {
		if m, err := analysis.ModeOf(name); err != nil || m != mode {
			t.Errorf("%s should select mode %d, got %d (%v)", name, mode, m, err)
		}
	}
	if _, err := analysis.ModeOf("andersen"); err == nil {
		t.Errorf("unknown modes should be rejected")
	}
}

func TestComputeCallgraph(t *testing.T) {
	prog, _ := analysistest.BuildArchive(t, program)
	roots := analysis.MainRoots(prog.Program)
	for _, mode := range []analysis.CallgraphAnalysisMode{analysis.ClassHierarchyAnalysis,
		analysis.VariableTypeAnalysis, analysis.RapidTypeAnalysis} {
		cg, err := mode.ComputeCallgraph(prog.Program, roots)
		if err != nil {
			t.Fatalf("mode %d: %s", mode, err)
		}
		found := false
		for fn, node := range cg.Nodes {
			if fn == nil || fn.Name() != "main" {
				continue
			}
			for _, e := range node.Out {
				found = found || e.Callee.Func.String() == "(example.com/test/lib.Worker).Run"
			}
		}
		if !found {
			t.Errorf("mode %d: main should call Worker.Run through the interface", mode)
		}
	}
}
