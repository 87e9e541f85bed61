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

package pointer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/ptset"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/summaries"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// ErrNoEntryPoints is returned when the program has no function to start the analysis from
var ErrNoEntryPoints = errors.New("no entry point for the pointer analysis")

// An Option modifies an analysis run
type Option func(*options)

type options struct {
	logger   *config.LogGroup
	roots    []*ssa.Function
	specs    []config.FunctionSpec
	prebuilt *callgraph.Graph
	onRound  func(round int)
}

// WithLogger sets the logger of the analysis. By default, a logger is created from the config.
func WithLogger(logger *config.LogGroup) Option {
	return func(o *options) { o.logger = logger }
}

// WithRoots sets the entry points of the analysis, instead of the main and init functions of the main packages and
// the entry functions of the config
func WithRoots(roots ...*ssa.Function) Option {
	return func(o *options) { o.roots = append(o.roots, roots...) }
}

// WithSpecs adds specifications of external functions. They override the default specifications and the
// specification files of the config.
func WithSpecs(specs ...config.FunctionSpec) Option {
	return func(o *options) { o.specs = append(o.specs, specs...) }
}

// WithCallGraph makes the analysis resolve indirect calls with cg instead of resolving them on the fly
func WithCallGraph(cg *callgraph.Graph) Option {
	return func(o *options) { o.prebuilt = cg }
}

// withRoundHook sets a function called after each round of the solve loop
func withRoundHook(f func(round int)) Option {
	return func(o *options) { o.onRound = f }
}

// An Analysis is one run of the pointer analysis on a program. An Analysis can only be run once.
type Analysis struct {
	prog *ssa.Program
	cfg  *config.Config
	opts options
	ran  bool
}

// NewAnalysis returns the analysis of prog with the options of cfg. If cfg is nil, the default config is used.
func NewAnalysis(prog *ssa.Program, cfg *config.Config, opts ...Option) *Analysis {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	a := &Analysis{prog: prog, cfg: cfg}
	for _, opt := range opts {
		opt(&a.opts)
	}
	if a.opts.logger == nil {
		a.opts.logger = config.NewLogGroup(cfg)
	}
	return a
}

// Analyze runs the pointer analysis of prog. See Analysis.Run.
func Analyze(ctx context.Context, prog *ssa.Program, cfg *config.Config, opts ...Option) (*Result, error) {
	return NewAnalysis(prog, cfg, opts...).Run(ctx)
}

// Run runs the analysis: the constraints of the functions reachable from the entry points are collected, solved
// with the solver of the config, and the result is finalized.
//
// If the solver stops before the fixpoint, because of the max-solver-rounds bound, the solver-timeout or the
// cancellation of ctx, Run returns the partial result along with the error. Its statistics are marked incomplete.
// The configuration errors are returned with a nil result.
//
// Run panics if called twice.
func (a *Analysis) Run(ctx context.Context) (*Result, error) {
	if a.ran {
		panic("pointer: an analysis can only run once")
	}
	a.ran = true
	if ctx == nil {
		ctx = context.Background()
	}
	logger := a.opts.logger
	popts := a.cfg.Pointer

	policy, err := callctx.New(popts, a.originPredicate())
	if err != nil {
		return nil, err
	}
	newSet, err := ptset.FactoryOf(popts.PointsToSet)
	if err != nil {
		return nil, err
	}
	algo, err := newAlgorithm(popts.Solver)
	if err != nil {
		return nil, err
	}
	fileSpecs, err := a.cfg.LoadFunctionSpecs()
	if err != nil {
		return nil, err
	}
	roots := a.opts.roots
	if len(roots) == 0 {
		roots = analysis.EntryPoints(a.prog, a.cfg)
	}
	if len(roots) == 0 {
		return nil, ErrNoEntryPoints
	}
	prebuilt := a.opts.prebuilt
	if prebuilt == nil && popts.CallGraph != "" && popts.CallGraph != config.CallGraphOnTheFly {
		mode, err := analysis.ModeOf(popts.CallGraph)
		if err != nil {
			return nil, err
		}
		logger.Infof("computing the %s call graph", popts.CallGraph)
		if prebuilt, err = mode.ComputeCallgraph(a.prog, roots); err != nil {
			return nil, err
		}
	}

	stats := &Stats{}
	warn := newLimitedWarner(logger)
	f := NewNodeFactory(warn)
	g := newConstraintGraph(f, newSet, stats)
	ext := newExternals(warn, stats)
	ext.add(summaries.DefaultSpecs())
	ext.add(fileSpecs)
	ext.add(a.opts.specs)
	gen := newGenerator(a.prog, logger, popts, policy, f, g, ext, stats, warn, prebuilt)

	// Collect
	start := time.Now()
	for _, root := range roots {
		gen.addRoot(root)
	}
	gen.processQueue()
	stats.CollectTime = time.Since(start)
	logger.Debugf("collected %d constraints on %d nodes from %d functions",
		stats.NumConstraints(), f.NumNodes(), stats.FunctionsAnalyzed)
	if popts.DumpConstraintGraph {
		a.report("constraints-collected.dot", func(w io.Writer) error {
			return writeConstraintGraphDOT(w, f, g)
		})
	}

	// Optimize
	s := newSolver(f, g, gen, algo, popts, stats)
	s.onRound = a.opts.onRound
	if s.collapse {
		s.collapseCycles()
	}

	// Solve
	solveCtx := ctx
	if popts.SolverTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, popts.SolverTimeout)
		defer cancel()
	}
	start = time.Now()
	solveErr := s.solve(solveCtx)
	stats.SolveTime = time.Since(start)

	// Finalize
	res := a.finalize(f, g, gen, policy, stats)
	if solveErr != nil {
		logger.Warnf("pointer analysis stopped before the fixpoint: %s", solveErr)
		return res, solveErr
	}
	logger.Debugf("solved in %d rounds (%.3f s)", stats.Rounds, stats.SolveTime.Seconds())
	return res, nil
}

func (a *Analysis) finalize(f *NodeFactory, g *constraintGraph, gen *generator, policy callctx.Policy,
	stats *Stats) *Result {
	gen.cg.Freeze()
	g.dropWorkingState()
	stats.Nodes = f.NumNodes()
	for i := 0; i < f.NumNodes(); i++ {
		if f.IsObjectNode(NodeIndex(i)) {
			stats.ObjectNodes++
		}
	}
	stats.Contexts = policy.Len()
	stats.InvalidLookups += f.InvalidLookups
	res := &Result{
		f:       f,
		g:       g,
		policy:  policy,
		cg:      gen.cg,
		stats:   stats,
		layouts: gen.layouts,
	}
	if a.cfg.Pointer.DumpConstraintGraph {
		a.report("constraints-solved.dot", res.WriteConstraintGraphDOT)
	}
	if a.cfg.Pointer.DumpCallGraph {
		a.report("callgraph.dot", gen.cg.WriteDOT)
	}
	if a.cfg.Pointer.DumpPointsTo {
		a.report("points-to.txt", res.DumpPointsTo)
	}
	return res
}

// originPredicate returns the predicate of the call sites creating a new origin: go statements and calls to the
// origin functions of the config
func (a *Analysis) originPredicate() func(ssa.CallInstruction) bool {
	if len(a.cfg.Pointer.OriginFunctions) == 0 {
		return callctx.IsGoSite
	}
	cfg := a.cfg
	return func(site ssa.CallInstruction) bool {
		if callctx.IsGoSite(site) {
			return true
		}
		callee := site.Common().StaticCallee()
		return callee != nil && cfg.IsOriginFunction(config.IdentifierOf(callee))
	}
}

// report writes a report file in the reports directory of the config. Errors are logged.
func (a *Analysis) report(name string, write func(io.Writer) error) {
	dir := a.cfg.ReportsDir
	if dir == "" {
		dir = "."
	}
	filename := filepath.Join(dir, name)
	file, err := os.Create(filename)
	if err != nil {
		a.opts.logger.Errorf("could not create report %s: %s", filename, err)
		return
	}
	defer file.Close()
	if err := write(file); err != nil {
		a.opts.logger.Errorf("could not write report %s: %s", filename, err)
		return
	}
	a.opts.logger.Infof("report written to %s", filename)
}

// String describes the configuration of the analysis
func (a *Analysis) String() string {
	p := a.cfg.Pointer
	return fmt.Sprintf("pointer analysis (%s, %s solver, %s sets, %s call graph)", p.ContextSensitivity, p.Solver,
		p.PointsToSet, p.CallGraph)
}
