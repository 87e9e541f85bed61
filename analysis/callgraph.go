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

package analysis

import (
	"fmt"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/callgraph/rta"
	"golang.org/x/tools/go/callgraph/static"
	"golang.org/x/tools/go/callgraph/vta"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// CallgraphAnalysisMode selects the algorithm computing a call graph before the pointer analysis
type CallgraphAnalysisMode uint64

const (
	StaticAnalysis         CallgraphAnalysisMode = iota // StaticAnalysis is under-approximating (fast)
	ClassHierarchyAnalysis                              // ClassHierarchyAnalysis is a coarse over-approximation (fast)
	RapidTypeAnalysis                                   // RapidTypeAnalysis only considers the types instantiated from the roots
	VariableTypeAnalysis                                // VariableTypeAnalysis refines the class hierarchy analysis
)

// ModeOf returns the call graph mode selected by the name used in the configuration
func ModeOf(name string) (CallgraphAnalysisMode, error) {
	switch name {
	case config.CallGraphCha:
		return ClassHierarchyAnalysis, nil
	case config.CallGraphVta:
		return VariableTypeAnalysis, nil
	case "rta":
		return RapidTypeAnalysis, nil
	case "static":
		return StaticAnalysis, nil
	default:
		return StaticAnalysis, fmt.Errorf("unsupported callgraph analysis mode %q", name)
	}
}

// ComputeCallgraph computes the call graph of prog using the provided mode. The roots are used by the analyses
// that start from entry points. If roots is empty, the main and init functions of the main packages are used.
func (mode CallgraphAnalysisMode) ComputeCallgraph(prog *ssa.Program, roots []*ssa.Function) (*callgraph.Graph,
	error) {
	if len(roots) == 0 {
		roots = MainRoots(prog)
	}
	switch mode {
	case StaticAnalysis:
		// Build the callgraph using only static analysis.
		return static.CallGraph(prog), nil
	case ClassHierarchyAnalysis:
		// Build the callgraph using the Class Hierarchy Analysis
		// See the documentation, and
		// "Optimization of Object-Oriented Programs Using Static Class Hierarchy Analysis",
		// J. Dean, D. Grove, and C. Chambers, ECOOP'95.
		return cha.CallGraph(prog), nil
	case VariableTypeAnalysis:
		rootSet := make(map[*ssa.Function]bool, len(roots))
		for _, r := range roots {
			rootSet[r] = true
		}
		// VTA refines the class hierarchy call graph
		return vta.CallGraph(rootSet, cha.CallGraph(prog)), nil
	case RapidTypeAnalysis:
		// Build the callgraph using rapid type analysis
		// See the documentation, and
		// "Fast Analysis of C++ Virtual Function Calls", D.Bacon & P. Sweeney, OOPSLA'96
		if len(roots) == 0 {
			return nil, fmt.Errorf("rapid type analysis needs at least one root")
		}
		return rta.Analyze(roots, true).CallGraph, nil
	default:
		return nil, fmt.Errorf("unsupported callgraph analysis mode %d", mode)
	}
}

// MainRoots returns the init and main functions of the main packages of prog
func MainRoots(prog *ssa.Program) []*ssa.Function {
	var roots []*ssa.Function
	mains := ssautil.MainPackages(prog.AllPackages())
	slices.SortFunc(mains, func(a, b *ssa.Package) bool { return a.Pkg.Path() < b.Pkg.Path() })
	for _, m := range mains {
		// Start at all init and main functions in main packages
		for _, name := range []string{"init", "main"} {
			if fn := m.Func(name); fn != nil {
				roots = append(roots, fn)
			}
		}
	}
	return roots
}

// EntryPoints returns the roots of the pointer analysis of prog: the init and main functions of the main packages,
// followed by the functions matching the entry functions of the config, sorted by name.
func EntryPoints(prog *ssa.Program, cfg *config.Config) []*ssa.Function {
	roots := MainRoots(prog)
	if cfg == nil || len(cfg.Pointer.EntryFunctions) == 0 {
		return roots
	}
	var extra []*ssa.Function
	for fn := range ssautil.AllFunctions(prog) {
		if len(fn.Blocks) > 0 && !slices.Contains(roots, fn) && cfg.IsEntryFunction(config.IdentifierOf(fn)) {
			extra = append(extra, fn)
		}
	}
	slices.SortFunc(extra, func(a, b *ssa.Function) bool { return a.String() < b.String() })
	return append(roots, extra...)
}
