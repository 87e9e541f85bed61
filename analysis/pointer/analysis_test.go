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
	"bytes"
	"context"
	"errors"
	"go/types"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/analysistest"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"
)

func quietConfig() *config.Config {
	cfg := config.NewDefault()
	cfg.SilenceWarn = true
	return cfg
}

func analyzeSource(t *testing.T, src string, cfg *config.Config, opts ...Option) (*Result, *ssa.Package) {
	t.Helper()
	prog, pkg := analysistest.BuildSource(t, src)
	if cfg == nil {
		cfg = quietConfig()
	}
	res, err := Analyze(context.Background(), prog, cfg, opts...)
	if err != nil {
		t.Fatalf("analysis failed: %s", err)
	}
	return res, pkg
}

// allocOfType returns the first allocation of fn whose type prints as typ
func allocOfType(t *testing.T, fn *ssa.Function, typ string) *ssa.Alloc {
	t.Helper()
	for _, a := range analysistest.Allocs(fn, false) {
		if a.Type().String() == typ {
			return a
		}
	}
	t.Fatalf("no allocation of type %s in %s", typ, fn)
	return nil
}

func dynamicCalls(fn *ssa.Function) []*ssa.Call {
	var calls []*ssa.Call
	for _, c := range analysistest.Instrs[*ssa.Call](fn) {
		if c.Common().StaticCallee() == nil {
			calls = append(calls, c)
		}
	}
	return calls
}

func sameValues(got []ssa.Value, want ...ssa.Value) bool {
	if len(got) != len(want) {
		return false
	}
	for _, w := range want {
		if !slices.Contains(got, w) {
			return false
		}
	}
	return true
}

const copyProgram = `package main

type box struct{ p *int }

func sink(p, q *int) {}

func main() {
	a := new(int)
	var b box
	b.p = a
	q := b.p
	sink(a, q)
}
`

func TestCopiedPointersAlias(t *testing.T) {
	res, pkg := analyzeSource(t, copyProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	p := analysistest.ArgOf(t, main, "sink", 0, 0)
	q := analysistest.ArgOf(t, main, "sink", 0, 1)
	ctx := res.Policy().Initial()
	if !res.Alias(ctx, p, ctx, q) {
		t.Errorf("p and q should alias")
	}
	if res.MayAlias(p, q) != MustAlias {
		t.Errorf("p and q point to the same single object, expected must-alias, got %s", res.MayAlias(p, q))
	}
	if !sameValues(res.PointsToValues(q), p) {
		t.Errorf("q should point to the allocation of a, got %v", res.PointsToValues(q))
	}
	if !res.HasIdenticalPointsTo(ctx, p, ctx, q) || !res.ContainsPointsTo(ctx, p, ctx, q) {
		t.Errorf("p and q should have the same points-to set")
	}
}

const twoAllocsProgram = `package main

func sink(p, q *int) {}

func main() {
	p := new(int)
	q := new(int)
	sink(p, q)
}
`

func TestDistinctAllocationsDoNotAlias(t *testing.T) {
	res, pkg := analyzeSource(t, twoAllocsProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	p := analysistest.ArgOf(t, main, "sink", 0, 0)
	q := analysistest.ArgOf(t, main, "sink", 0, 1)
	ctx := res.Policy().Initial()
	if res.Alias(ctx, p, ctx, q) || res.MayAlias(p, q) != NoAlias {
		t.Errorf("p and q should not alias")
	}
	pp, pq := res.PointsTo(ctx, p), res.PointsTo(ctx, q)
	if len(pp) != 1 || len(pq) != 1 || pp[0].Index == pq[0].Index {
		t.Errorf("p and q should point to one distinct object each, got %v and %v", pp, pq)
	}
	if pp[0].Value != p || res.PointedType(pp[0]).String() != "int" {
		t.Errorf("unexpected object %s of type %s", pp[0], res.PointedType(pp[0]))
	}
	sites := res.AllocationSites()
	if !slices.Contains(sites, p) || !slices.Contains(sites, q) {
		t.Errorf("both allocations should be allocation sites")
	}
}

const indirectProgram = `package main

var cond bool

func f(p *int) *int { return p }

func g(p *int) *int { return new(int) }

func sink(p *int) {}

func main() {
	var h func(*int) *int
	if cond {
		h = f
	} else {
		h = g
	}
	x := new(int)
	r := h(x)
	sink(r)
}
`

func checkIndirectCallees(t *testing.T, res *Result, pkg *ssa.Package) {
	main := analysistest.Func(t, pkg, "main")
	calls := dynamicCalls(main)
	if len(calls) != 1 {
		t.Fatalf("expected one dynamic call in main, got %d", len(calls))
	}
	f, g := analysistest.Func(t, pkg, "f"), analysistest.Func(t, pkg, "g")
	callees := res.CallGraph().CalleesOf(calls[0])
	if !slices.Equal(callees, []*ssa.Function{f, g}) {
		t.Errorf("the call should reach f and g, got %v", callees)
	}
	x := allocOfType(t, main, "*int")
	r := analysistest.ArgOf(t, main, "sink", 0, 0)
	if !sameValues(res.PointsToValues(r), x, allocOfType(t, g, "*int")) {
		t.Errorf("r should point to x and to the allocation of g, got %v", res.PointsToValues(r))
	}
	for _, e := range res.CallGraph().Edges() {
		if e.Site == ssa.CallInstruction(calls[0]) && !e.Indirect {
			t.Errorf("edge %s -> %s should be indirect", e.Caller, e.Callee)
		}
	}
}

func TestIndirectCallReachesAllTargets(t *testing.T) {
	res, pkg := analyzeSource(t, indirectProgram, nil)
	checkIndirectCallees(t, res, pkg)
	if res.Stats().IndirectSites != 1 || res.Stats().IndirectTargets != 2 {
		t.Errorf("expected one indirect site with two targets, got %d and %d", res.Stats().IndirectSites,
			res.Stats().IndirectTargets)
	}
	if !res.CallGraph().Frozen() {
		t.Errorf("the call graph of a result should be frozen")
	}
}

func TestPrebuiltCallGraph(t *testing.T) {
	cfg := quietConfig()
	cfg.Pointer.CallGraph = config.CallGraphCha
	res, pkg := analyzeSource(t, indirectProgram, cfg)
	checkIndirectCallees(t, res, pkg)
}

func TestIndirectTargetsAreCapped(t *testing.T) {
	cfg := quietConfig()
	cfg.Pointer.MaxIndirectTargets = 1
	res, pkg := analyzeSource(t, indirectProgram, cfg)
	main := analysistest.Func(t, pkg, "main")
	if n := len(res.CallGraph().CalleesOf(dynamicCalls(main)[0])); n != 1 {
		t.Errorf("only one callee should be linked, got %d", n)
	}
	if res.Stats().IndirectCapped != 1 {
		t.Errorf("the capped site should be counted once, got %d", res.Stats().IndirectCapped)
	}
}

const weakUpdateProgram = `package main

var cond bool

func sink(p, q *int) {}

func main() {
	a, b := new(*int), new(*int)
	var p **int
	if cond {
		p = a
	} else {
		p = b
	}
	v := new(int)
	*p = v
	sink(*a, *b)
}
`

func TestStoreUpdatesAllTargets(t *testing.T) {
	for _, solverName := range []string{config.SolverWorklist, config.SolverWave, config.SolverNaive} {
		cfg := quietConfig()
		cfg.Pointer.Solver = solverName
		res, pkg := analyzeSource(t, weakUpdateProgram, cfg)
		main := analysistest.Func(t, pkg, "main")
		v := allocOfType(t, main, "*int")
		for i := 0; i < 2; i++ {
			loaded := analysistest.ArgOf(t, main, "sink", 0, i)
			if !sameValues(res.PointsToValues(loaded), v) {
				t.Errorf("%s: the stored value should reach both targets, got %v for argument %d", solverName,
					res.PointsToValues(loaded), i)
			}
		}
	}
}

const contextProgram = `package main

func id(p *int) *int { return p }

func sink(p, q *int) {}

func main() {
	x, y := new(int), new(int)
	r1 := id(x)
	r2 := id(y)
	sink(r1, r2)
}
`

func TestCallSiteSensitivity(t *testing.T) {
	cases := map[string]struct {
		contexts int
		alias    AliasResult
	}{
		config.ContextInsensitive: {contexts: 1, alias: MayAlias},
		config.Context1CallSite:   {contexts: 2, alias: NoAlias},
		config.Context2CallSite:   {contexts: 2, alias: NoAlias},
	}
	for selector, expected := range cases {
		cfg := quietConfig()
		cfg.Pointer.ContextSensitivity = selector
		res, pkg := analyzeSource(t, contextProgram, cfg)
		main := analysistest.Func(t, pkg, "main")
		param := analysistest.Func(t, pkg, "id").Params[0]
		if n := len(res.Contexts(param)); n != expected.contexts {
			t.Errorf("%s: expected %d contexts for the parameter of id, got %d", selector, expected.contexts, n)
		}
		r1 := analysistest.ArgOf(t, main, "sink", 0, 0)
		r2 := analysistest.ArgOf(t, main, "sink", 0, 1)
		if got := res.MayAlias(r1, r2); got != expected.alias {
			t.Errorf("%s: expected %s between the results, got %s", selector, expected.alias, got)
		}
	}
}

const originProgram = `package main

func worker(p *int) { sink(p) }

func sink(p *int) {}

func main() {
	go worker(new(int))
	go worker(new(int))
}
`

func TestOriginSensitivity(t *testing.T) {
	cfg := quietConfig()
	cfg.Pointer.ContextSensitivity = config.ContextOrigin
	res, pkg := analyzeSource(t, originProgram, cfg)
	p := analysistest.Func(t, pkg, "worker").Params[0]
	ctxs := res.Contexts(p)
	if len(ctxs) != 2 {
		t.Fatalf("each go statement should create an origin, got contexts %v", ctxs)
	}
	o1, o2 := res.PointsTo(ctxs[0], p), res.PointsTo(ctxs[1], p)
	if len(o1) != 1 || len(o2) != 1 || o1[0].Index == o2[0].Index {
		t.Errorf("each origin should see its own allocation, got %v and %v", o1, o2)
	}
	if res.Alias(ctxs[0], p, ctxs[1], p) {
		t.Errorf("the parameter should not alias across origins")
	}
}

const fieldsProgram = `package main

type pair struct{ a, b *int }

func sink(p, q *int) {}

func main() {
	x, y := new(int), new(int)
	p := &pair{a: x, b: y}
	sink(p.a, p.b)
}
`

func TestFieldSensitivity(t *testing.T) {
	res, pkg := analyzeSource(t, fieldsProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	a := analysistest.ArgOf(t, main, "sink", 0, 0)
	b := analysistest.ArgOf(t, main, "sink", 0, 1)
	if res.MayAlias(a, b) != NoAlias {
		t.Errorf("distinct fields should not alias")
	}
	pair := allocOfType(t, main, "*example.com/main.pair")
	objs := res.PointsToAll(pair)
	if len(objs) != 1 || objs[0].Path != ".a" {
		t.Fatalf("the pair pointer should point to the first field of the pair, got %v", objs)
	}
	if len(res.PointsToValues(a)) != 1 || len(res.PointsToValues(b)) != 1 {
		t.Errorf("each field should point to one allocation")
	}
}

const containersProgram = `package main

func sink(p *int) {}

func main() {
	x, y, z := new(int), new(int), new(int)

	m := map[string]*int{}
	m["a"] = x
	sink(m["a"])
	for _, v := range m {
		sink(v)
	}

	ch := make(chan *int, 1)
	ch <- y
	sink(<-ch)

	s := []*int{z}
	s = append(s, x)
	sink(s[1])
}
`

func TestContainers(t *testing.T) {
	res, pkg := analyzeSource(t, containersProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	allocs := analysistest.Allocs(main, true)
	var ints []ssa.Value
	for _, a := range allocs {
		if a.Type().String() == "*int" {
			ints = append(ints, a)
		}
	}
	if len(ints) != 3 {
		t.Fatalf("expected 3 int allocations, got %d", len(ints))
	}
	x, y, z := ints[0], ints[1], ints[2]
	expected := [][]ssa.Value{{x}, {x}, {y}, {z, x}}
	calls := analysistest.ArgsOf(main, "sink")
	if len(calls) != len(expected) {
		t.Fatalf("expected %d calls to sink, got %d", len(expected), len(calls))
	}
	for i, want := range expected {
		if got := res.PointsToValues(calls[i][0]); !sameValues(got, want...) {
			t.Errorf("call %d: expected %v, got %v", i, want, got)
		}
	}
}

const interfaceProgram = `package main

type I interface{ get() *int }

type A struct{ p *int }

func (a *A) get() *int { return a.p }

type B struct{}

func (B) get() *int { return new(int) }

func sink(p *int) {}

func main() {
	x := new(int)
	var i I = &A{p: x}
	sink(i.get())
}
`

func TestInterfaceDispatch(t *testing.T) {
	res, pkg := analyzeSource(t, interfaceProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	var invoke *ssa.Call
	for _, c := range analysistest.Instrs[*ssa.Call](main) {
		if c.Common().IsInvoke() {
			invoke = c
		}
	}
	if invoke == nil {
		t.Fatalf("no interface call in main")
	}
	callees := res.CallGraph().CalleesOf(invoke)
	if len(callees) != 1 || callees[0].String() != "(*example.com/main.A).get" {
		t.Errorf("the call should only reach (*A).get, got %v", callees)
	}
	x := allocOfType(t, main, "*int")
	if !sameValues(res.PointsToValues(analysistest.ArgOf(t, main, "sink", 0, 0)), x) {
		t.Errorf("the result of the interface call should point to x")
	}
}

func TestInterfaceDispatchWithPrebuiltCallGraph(t *testing.T) {
	cfg := quietConfig()
	cfg.Pointer.CallGraph = config.CallGraphCha
	res, pkg := analyzeSource(t, interfaceProgram, cfg)
	main := analysistest.Func(t, pkg, "main")
	x := allocOfType(t, main, "*int")
	if !slices.Contains(res.PointsToValues(analysistest.ArgOf(t, main, "sink", 0, 0)), ssa.Value(x)) {
		t.Errorf("the receiver should be bound from the pre-built call graph")
	}
}

const closureProgram = `package main

func sink(p *int) {}

func apply(f func() *int) *int { return f() }

func main() {
	x := new(int)
	get := func() *int { return x }
	sink(get())
	sink(apply(get))
}
`

func TestClosures(t *testing.T) {
	res, pkg := analyzeSource(t, closureProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	x := allocOfType(t, main, "*int")
	for i := 0; i < 2; i++ {
		if !sameValues(res.PointsToValues(analysistest.ArgOf(t, main, "sink", i, 0)), x) {
			t.Errorf("call %d: the closure should return x", i)
		}
	}
	closure := analysistest.Func(t, pkg, "main$1")
	if len(res.CallGraph().CalleesOf(dynamicCalls(analysistest.Func(t, pkg, "apply"))[0])) != 1 ||
		res.CallGraph().CalleesOf(dynamicCalls(analysistest.Func(t, pkg, "apply"))[0])[0] != closure {
		t.Errorf("the call in apply should reach the closure")
	}
}

const panicProgram = `package main

func sink(p *int) {}

func main() {
	defer func() {
		r := recover()
		sink(r.(*int))
	}()
	panic(new(int))
}
`

func TestRecoverReturnsPanicValues(t *testing.T) {
	res, pkg := analyzeSource(t, panicProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	deferred := analysistest.Func(t, pkg, "main$1")
	x := allocOfType(t, main, "*int")
	if !sameValues(res.PointsToValues(analysistest.ArgOf(t, deferred, "sink", 0, 0)), x) {
		t.Errorf("recover should return the value given to panic")
	}
}

const externalProgram = `package main

import "sync"

var m sync.Map

func keep(p *int) *int

func id(p *int) *int { return p }

func sink(p, q, r *int) {}

func main() {
	x := new(int)
	m.Store("k", x)
	v, _ := m.Load("k")
	sink(v.(*int), keep(x), id(x))
}
`

func TestDefaultSpecs(t *testing.T) {
	res, pkg := analyzeSource(t, externalProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	x := allocOfType(t, main, "*int")
	if !sameValues(res.PointsToValues(analysistest.ArgOf(t, main, "sink", 0, 0)), x) {
		t.Errorf("the value loaded from the sync.Map should point to x")
	}
	if res.Stats().ExternalCalls == 0 {
		t.Errorf("the calls to sync.Map should be handled by specifications")
	}
}

func TestUnknownExternalHasNoEffect(t *testing.T) {
	res, pkg := analyzeSource(t, externalProgram, nil)
	main := analysistest.Func(t, pkg, "main")
	kept := analysistest.ArgOf(t, main, "sink", 0, 1)
	if len(res.PointsToAll(kept)) != 0 {
		t.Errorf("the result of a function without body nor spec should point to nothing")
	}
	if res.Stats().UnresolvedExternals == 0 {
		t.Errorf("keep should be reported as unresolved")
	}
	keep := analysistest.Func(t, pkg, "keep")
	node := res.CallGraph().Lookup(res.Policy().Initial(), keep)
	if node == nil || !node.External {
		t.Errorf("keep should be an external node of the call graph")
	}
}

func TestSpecOptions(t *testing.T) {
	prog, pkg := analysistest.BuildSource(t, externalProgram)
	res, err := Analyze(context.Background(), prog, quietConfig(),
		WithSpecs(
			config.FunctionSpec{Match: config.CompileRegexes(config.CodeIdentifier{Method: "^keep$"}), Returns: "arg0"},
			config.FunctionSpec{Function: "example.com/main.id", Alloc: "ret"},
		))
	if err != nil {
		t.Fatal(err)
	}
	main := analysistest.Func(t, pkg, "main")
	x := allocOfType(t, main, "*int")
	if !sameValues(res.PointsToValues(analysistest.ArgOf(t, main, "sink", 0, 1)), x) {
		t.Errorf("the matching spec should make keep return its argument")
	}
	fresh := res.PointsToAll(analysistest.ArgOf(t, main, "sink", 0, 2))
	if len(fresh) != 1 || fresh[0].Value == ssa.Value(x) {
		t.Errorf("the spec of id should override its body and return a fresh object, got %v", fresh)
	}
	id := analysistest.Func(t, pkg, "id")
	if res.CallGraph().Lookup(res.Policy().Initial(), id) == nil {
		t.Errorf("id should still be in the call graph")
	}
	if len(res.Contexts(id.Params[0])) != 0 {
		t.Errorf("the body of a specified function should not be analyzed")
	}
}

func TestSpecFilesOfTheConfig(t *testing.T) {
	dir := t.TempDir()
	specs := "functions:\n  - function: example.com/main.keep\n    returns: arg0\n"
	if err := os.WriteFile(filepath.Join(dir, "specs.yaml"), []byte(specs), 0600); err != nil {
		t.Fatal(err)
	}
	cfgFile := filepath.Join(dir, "config.yaml")
	cfg, err := config.LoadFromBytes(cfgFile, []byte("silence-warn: true\npointer:\n  function-specs: [specs.yaml]\n"))
	if err != nil {
		t.Fatal(err)
	}
	res, pkg := analyzeSource(t, externalProgram, cfg)
	main := analysistest.Func(t, pkg, "main")
	if !sameValues(res.PointsToValues(analysistest.ArgOf(t, main, "sink", 0, 1)), allocOfType(t, main, "*int")) {
		t.Errorf("the spec file should make keep return its argument")
	}
}

const rootProgram = `package lib

func sink(p *int) {}

func Entry(p *int, rest ...*int) {
	sink(p)
	sink(rest[0])
}
`

func TestRootParametersPointToUnknown(t *testing.T) {
	prog, pkg := analysistest.BuildSource(t, rootProgram)
	entry := analysistest.Func(t, pkg, "Entry")
	res, err := Analyze(context.Background(), prog, quietConfig(), WithRoots(entry))
	if err != nil {
		t.Fatal(err)
	}
	p := entry.Params[0]
	if !res.MayPointToUnknown(p) || res.MayAlias(p, p) != MayAlias {
		t.Errorf("the parameters of a root should point to unknown memory")
	}
	if len(res.PointsToAll(p)) != 0 {
		t.Errorf("unknown memory is not reported as an object")
	}
	rest := analysistest.ArgOf(t, entry, "sink", 1, 0)
	if !res.MayPointToUnknown(rest) {
		t.Errorf("the variadic arguments of a root should contain unknown pointers")
	}
	if res.Nodes().VarargNodeFor(entry, res.Policy().Initial()) == InvalidIndex {
		t.Errorf("the variadic parameter of a root should have a vararg object")
	}
}

func TestEntryFunctionsOfTheConfig(t *testing.T) {
	cfg, err := config.LoadFromBytes("config.yaml",
		[]byte("silence-warn: true\npointer:\n  entry-functions:\n    - method: \"^Entry$\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	res, pkg := analyzeSource(t, rootProgram, cfg)
	entry := analysistest.Func(t, pkg, "Entry")
	if res.CallGraph().Lookup(res.Policy().Initial(), entry) == nil {
		t.Errorf("Entry should be a root of the analysis")
	}
}

func TestNoEntryPoints(t *testing.T) {
	prog, _ := analysistest.BuildSource(t, rootProgram)
	if _, err := Analyze(context.Background(), prog, quietConfig()); !errors.Is(err, ErrNoEntryPoints) {
		t.Errorf("a library without entry functions has no entry point, got %v", err)
	}
}

func TestIterationLimitReturnsPartialResult(t *testing.T) {
	cfg := quietConfig()
	cfg.Pointer.MaxSolverRounds = 1
	prog, _ := analysistest.BuildSource(t, indirectProgram)
	res, err := Analyze(context.Background(), prog, cfg)
	if !errors.Is(err, ErrIterationLimit) {
		t.Fatalf("expected the iteration limit to be reached, got %v", err)
	}
	if res == nil || !res.Stats().Incomplete {
		t.Errorf("a partial result marked incomplete should be returned")
	}
}

func TestDeadline(t *testing.T) {
	prog, _ := analysistest.BuildSource(t, indirectProgram)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	res, err := Analyze(ctx, prog, quietConfig())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected the deadline to be exceeded, got %v", err)
	}
	if res == nil || !res.Stats().Incomplete {
		t.Errorf("an interrupted analysis should return an incomplete result")
	}
}

func TestAnalysisRunsOnce(t *testing.T) {
	prog, _ := analysistest.BuildSource(t, twoAllocsProgram)
	a := NewAnalysis(prog, quietConfig())
	if _, err := a.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("running an analysis twice should panic")
		}
	}()
	_, _ = a.Run(context.Background())
}

func TestInvalidConfiguration(t *testing.T) {
	prog, _ := analysistest.BuildSource(t, twoAllocsProgram)
	cfg := quietConfig()
	cfg.Pointer.Solver = "bogus"
	if res, err := Analyze(context.Background(), prog, cfg); err == nil || res != nil {
		t.Errorf("an unknown solver should be rejected without result")
	}
}

func TestIndirectCallsTakeSeveralRounds(t *testing.T) {
	prog, pkg := analysistest.BuildSource(t, indirectProgram)
	main := analysistest.Func(t, pkg, "main")
	r := analysistest.ArgOf(t, main, "sink", 0, 0)
	var rounds []int
	a := NewAnalysis(prog, quietConfig(), withRoundHook(func(round int) { rounds = append(rounds, round) }))
	res, err := a.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rounds) < 2 || rounds[0] != 1 || len(rounds) != res.Stats().Rounds {
		t.Errorf("resolving the indirect call should take several rounds, got %v", rounds)
	}
	if len(res.PointsToAll(r)) != 2 {
		t.Errorf("r should point to two objects at the fixpoint")
	}
}

const recursionProgram = `package main

func rec(n int, p *int) *int {
	if n == 0 {
		return p
	}
	return rec(n-1, p)
}

func sink(p *int) {}

func main() {
	sink(rec(3, new(int)))
}
`

func TestCallGraphQueries(t *testing.T) {
	res, pkg := analyzeSource(t, recursionProgram, nil)
	cg := res.CallGraph()
	rec := analysistest.Func(t, pkg, "rec")
	if recursive := cg.RecursiveFunctions(); len(recursive) != 1 || recursive[0] != rec {
		t.Errorf("rec should be the only recursive function, got %v", recursive)
	}
	if cycles := cg.ElementaryCycles(); len(cycles) != 1 || len(cycles[0]) != 2 || cycles[0][0] != rec {
		t.Errorf("the only elementary cycle should be the self call of rec, got %v", cycles)
	}
	ssaGraph := cg.ToSSA()
	main := analysistest.Func(t, pkg, "main")
	node := ssaGraph.Nodes[main]
	if node == nil {
		t.Fatalf("main should be in the projected call graph")
	}
	found := false
	for _, e := range node.Out {
		found = found || e.Callee.Func == rec
	}
	if !found {
		t.Errorf("main should call rec in the projected call graph")
	}
	var dot bytes.Buffer
	if err := cg.WriteDOT(&dot); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(dot.String(), "digraph") || !strings.Contains(dot.String(), "main.rec") {
		t.Errorf("unexpected dot output:\n%s", dot.String())
	}
	defer func() {
		if recover() == nil {
			t.Errorf("adding nodes to a frozen call graph should panic")
		}
	}()
	cg.AddEdge(cg.Root, nil, cg.Root, false)
}

func TestDumps(t *testing.T) {
	res, _ := analyzeSource(t, copyProgram, nil)
	var pts, constraints, graph, stats bytes.Buffer
	if err := res.DumpPointsTo(&pts); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(pts.String(), " : {") {
		t.Errorf("unexpected points-to dump:\n%s", pts.String())
	}
	if err := res.DumpConstraints(&constraints); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(constraints.String(), "= &n") {
		t.Errorf("the constraints should contain address-of constraints:\n%s", constraints.String())
	}
	if err := res.WriteConstraintGraphDOT(&graph); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(graph.String(), "digraph constraints") {
		t.Errorf("unexpected constraint graph:\n%s", graph.String())
	}
	res.Stats().Write(&stats)
	if !strings.Contains(stats.String(), "solver rounds") {
		t.Errorf("unexpected statistics:\n%s", stats.String())
	}
}

func TestReports(t *testing.T) {
	dir := t.TempDir()
	cfg := quietConfig()
	cfg.ReportsDir = dir
	cfg.Pointer.DumpCallGraph = true
	cfg.Pointer.DumpPointsTo = true
	cfg.Pointer.DumpConstraintGraph = true
	analyzeSource(t, copyProgram, cfg)
	for _, name := range []string{"callgraph.dot", "points-to.txt", "constraints-collected.dot",
		"constraints-solved.dot"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("report %s should have been written: %s", name, err)
		}
	}
}

func TestSignatureCompatibility(t *testing.T) {
	_, pkg := analysistest.BuildSource(t, `package main

func a(p *int) *int { return p }

func b(p *string) *string { return p }

func c(n int) *int { return nil }

func main() {}
`)
	sa := analysistest.Func(t, pkg, "a").Signature
	sb := analysistest.Func(t, pkg, "b").Signature
	sc := analysistest.Func(t, pkg, "c").Signature
	loose := &generator{}
	strict := &generator{strict: true}
	if !loose.compatible(sb, sa) || loose.compatible(sc, sa) {
		t.Errorf("loose compatibility should only compare the shape of the signatures")
	}
	if strict.compatible(sb, sa) || !strict.compatible(sa, sa) {
		t.Errorf("strict compatibility should require identical signatures")
	}
}

func TestMaterializedObjects(t *testing.T) {
	warn := newLimitedWarner(nil)
	stats := &Stats{}
	f := NewNodeFactory(warn)
	g := newConstraintGraph(f, nil, stats)
	policy := callctx.Insensitive()
	gen := newGenerator(nil, nil, config.NewDefault().Pointer, policy, f, g, newExternals(warn, stats), stats, warn,
		nil)
	opaque := f.createSyntheticBlock(roleStatic, nil, nil, policy.Global(), []slot{{}})
	m2, ok := gen.indexObject(opaque, 2)
	if !ok || m2 == opaque || f.Path(m2) != "+2" {
		t.Fatalf("an offset out of an opaque object should materialize a new object, got %d %q", m2, f.Path(m2))
	}
	m5, _ := gen.indexObject(m2, 3)
	if again, _ := gen.indexObject(opaque, 5); again != m5 {
		t.Errorf("offsets should be cumulative from the opaque root")
	}
	if far, _ := gen.indexObject(opaque, maxMaterializedOffset+1); far != opaque {
		t.Errorf("large offsets should collapse to the opaque object")
	}
	if stats.MaterializedObjects != 2 {
		t.Errorf("expected 2 materialized objects, got %d", stats.MaterializedObjects)
	}
	block := f.CreateObjectBlock(nil, nil, []slot{{path: ".a"}, {path: ".b"}})
	if o, _ := gen.indexObject(block, 1); o != block+1 {
		t.Errorf("offsets inside a block should select the slot")
	}
	if o, _ := gen.indexObject(block, 5); o != block {
		t.Errorf("offsets out of a known block should collapse to the object")
	}
	if _, ok := gen.indexObject(NullObj, 1); ok {
		t.Errorf("offsets out of the null object have no target")
	}
	if o, _ := gen.indexObject(UniversalObj, 1); o != UniversalObj {
		t.Errorf("offsets out of unknown memory are unknown memory")
	}
}

func TestRelease(t *testing.T) {
	res, _ := analyzeSource(t, twoAllocsProgram, nil)
	if res.Policy().Len() == 0 {
		t.Fatalf("the policy should have contexts before release")
	}
	res.Release()
	if res.Policy().Len() != 0 {
		t.Errorf("release should clear the contexts")
	}
}

const allocatorProgram = `package main

func mk() *int

func sink(p, q *int) {}

func main() {
	p := mk()
	q := mk()
	sink(p, q)
}
`

func TestSpecAllocatorsAllocatePerCallSite(t *testing.T) {
	prog, pkg := analysistest.BuildSource(t, allocatorProgram)
	res, err := Analyze(context.Background(), prog, quietConfig(),
		WithSpecs(config.FunctionSpec{Function: "example.com/main.mk", Alloc: "ret"}))
	if err != nil {
		t.Fatal(err)
	}
	main := analysistest.Func(t, pkg, "main")
	p := analysistest.ArgOf(t, main, "sink", 0, 0)
	q := analysistest.ArgOf(t, main, "sink", 0, 1)
	if !sameValues(res.PointsToValues(p), p) || !sameValues(res.PointsToValues(q), q) {
		t.Errorf("each call to mk should allocate at the call, got %v and %v",
			res.PointsToValues(p), res.PointsToValues(q))
	}
	if res.MayAlias(p, q) != NoAlias {
		t.Errorf("two calls to an allocator should not alias")
	}
	sites := res.AllocationSites()
	if !slices.Contains(sites, p) || !slices.Contains(sites, q) {
		t.Errorf("both calls to mk should be allocation sites, got %v", sites)
	}
	if slices.Contains(sites, ssa.Value(analysistest.Func(t, pkg, "mk"))) {
		t.Errorf("the allocator function itself is not an allocation site")
	}
}

const genericMapProgram = `package main

func put[M ~map[string]V, V any](m M, v V) {
	m["k"] = v
}

func get[M ~map[string]V, V any](m M) V {
	return m["k"]
}

func sink(p *int) {}

func main() {
	m := map[string]*int{}
	x := new(int)
	put(m, x)
	sink(get(m))
}
`

func TestGenericBodiesWithoutInstantiation(t *testing.T) {
	prog, pkg := analysistest.BuildSourceWithMode(t, genericMapProgram, ssa.BuilderMode(0))
	res, err := Analyze(context.Background(), prog, quietConfig())
	if err != nil {
		t.Fatalf("analysis of generic bodies failed: %s", err)
	}
	main := analysistest.Func(t, pkg, "main")
	x := allocOfType(t, main, "*int")
	if !slices.Contains(res.PointsToValues(analysistest.ArgOf(t, main, "sink", 0, 0)), ssa.Value(x)) {
		t.Errorf("the value stored by put should be returned by get")
	}
}

func TestCoreType(t *testing.T) {
	_, pkg := analysistest.BuildSourceWithMode(t, genericMapProgram, ssa.BuilderMode(0))
	put := analysistest.Func(t, pkg, "put")
	m := put.Params[0].Type()
	if _, ok := m.(*types.TypeParam); !ok {
		t.Fatalf("the parameter of the generic body should have a type parameter type, got %s", m)
	}
	if mt, ok := mapOf(m); !ok || mt.Key().String() != "string" {
		t.Errorf("M should have the core type map[string]V, got %v", coreType(m))
	}
	if coreType(put.Params[1].Type()) != nil {
		t.Errorf("V has no core type")
	}
}
