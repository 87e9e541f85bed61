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
	"go/types"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"golang.org/x/tools/container/intsets"
	"golang.org/x/tools/go/ssa"
)

// indirectSite is a dynamic call site in a context. The points-to set of ptr, the function value or the interface
// receiver, determines the callees.
type indirectSite struct {
	ctx    *callctx.Context
	caller *ssa.Function
	site   ssa.CallInstruction
	ptr    NodeIndex
	invoke bool

	// handled contains the objects of pts(ptr) already resolved
	handled intsets.Sparse
	// linked maps the callees to their context
	linked     map[*ssa.Function]*callctx.Context
	capped     bool
	unresolved bool
}

// genCall generates the constraints of a call instruction
func (g *generator) genCall(ctx *callctx.Context, caller *ssa.Function, instr ssa.CallInstruction) {
	common := instr.Common()
	if common.IsInvoke() {
		g.genIndirect(ctx, caller, instr, g.valueNode(ctx, common.Value), true)
		return
	}
	if b, ok := common.Value.(*ssa.Builtin); ok {
		g.genBuiltin(ctx, instr, b)
		return
	}
	if callee := common.StaticCallee(); callee != nil {
		g.linkCall(ctx, caller, instr, callee, false)
		return
	}
	g.genIndirect(ctx, caller, instr, g.valueNode(ctx, common.Value), false)
}

// callResult returns the node of the value of the call, or InvalidIndex for go and defer statements and calls
// without pointer results
func (g *generator) callResult(ctx *callctx.Context, instr ssa.CallInstruction) NodeIndex {
	if call, ok := instr.(*ssa.Call); ok {
		return g.valueNode(ctx, call)
	}
	return InvalidIndex
}

func (g *generator) genBuiltin(ctx *callctx.Context, instr ssa.CallInstruction, b *ssa.Builtin) {
	args := instr.Common().Args
	res := g.callResult(ctx, instr)
	temp := func() NodeIndex { return g.f.createTemp(ctx, nil) }
	switch b.Name() {
	case "append":
		if res == InvalidIndex || len(args) < 2 {
			return
		}
		// the result is either the first argument or a fresh array holding the elements of both arguments
		slots := g.layouts.pointeeOf(args[0].Type())
		g.allocate(ctx, res, instr.(*ssa.Call), slots)
		g.copy(res, g.valueNode(ctx, args[0]))
		g.lowerBulkCopy(bulkCopy{dst: res, src: g.valueNode(ctx, args[1]), offsets: pointerSlots(slots)}, temp)
	case "copy":
		if len(args) < 2 {
			return
		}
		offsets := pointerSlots(g.layouts.pointeeOf(args[0].Type()))
		g.lowerBulkCopy(bulkCopy{dst: g.valueNode(ctx, args[0]), src: g.valueNode(ctx, args[1]), offsets: offsets},
			temp)
	case "recover":
		g.copy(res, g.panicNode)
	case "ssa:wrapnilchk":
		if len(args) > 0 {
			g.copy(res, g.valueNode(ctx, args[0]))
		}
	}
}

// genIndirect registers the dynamic call site. Its callees are linked when the points-to set of the function value
// or receiver grows, or from the pre-built call graph.
func (g *generator) genIndirect(ctx *callctx.Context, caller *ssa.Function, instr ssa.CallInstruction,
	ptr NodeIndex, invoke bool) {
	g.stats.IndirectSites++
	s := &indirectSite{
		ctx:    ctx,
		caller: caller,
		site:   instr,
		ptr:    ptr,
		invoke: invoke,
		linked: map[*ssa.Function]*callctx.Context{},
	}
	if ptr == InvalidIndex {
		g.unresolvedSite(s, "no node for the callee %s", instr.Common().Value)
		return
	}
	if g.prebuilt != nil {
		g.linkPrebuilt(s)
		return
	}
	g.indirect = append(g.indirect, s)
	g.g.flagFunPtr(ptr)
}

// linkCall links the call at site in caller analyzed in ctx to callee, and returns the context of the callee. The
// arguments flow into the parameters and the results into the value of the call.
func (g *generator) linkCall(ctx *callctx.Context, caller *ssa.Function, site ssa.CallInstruction,
	callee *ssa.Function, indirect bool) *callctx.Context {
	calleeCtx := g.policy.Evolve(ctx, site)
	callerNode := g.cg.Node(ctx, caller)
	calleeNode := g.cg.Node(calleeCtx, callee)
	g.cg.AddEdge(callerNode, site, calleeNode, indirect)

	if spec, ok := g.ext.lookup(callee); ok {
		g.stats.ExternalCalls++
		calleeNode.External = true
		g.applySpec(ctx, site, callee, spec)
		return calleeCtx
	}
	if len(callee.Blocks) == 0 {
		g.stats.ExternalCalls++
		calleeNode.External = true
		g.ext.reportUnknown(callee)
		return calleeCtx
	}
	g.enqueue(calleeCtx, callee)

	common := site.Common()
	params := callee.Params
	if common.IsInvoke() && len(params) > 0 {
		params = params[1:]
	}
	for i, arg := range common.Args {
		if i < len(params) {
			g.copy(g.valueNode(calleeCtx, params[i]), g.valueNode(ctx, arg))
		}
	}
	if res := g.callResult(ctx, site); res != InvalidIndex {
		g.copy(res, g.returnNode(calleeCtx, callee))
	}
	return calleeCtx
}

// linkIndirect links the callee of an indirect site, unless the site already has the maximum number of callees.
// Returns the context of the callee and false if it could not be linked.
func (g *generator) linkIndirect(s *indirectSite, callee *ssa.Function) (*callctx.Context, bool) {
	if c, ok := s.linked[callee]; ok {
		return c, true
	}
	if len(s.linked) >= g.maxTargets {
		if !s.capped {
			s.capped = true
			g.stats.IndirectCapped++
			g.warn.warnf(warnIndirectCap, "call %s in %s has more than %d callees, dropping %s",
				s.site, s.caller, g.maxTargets, callee)
		}
		return nil, false
	}
	c := g.linkCall(s.ctx, s.caller, s.site, callee, true)
	s.linked[callee] = c
	g.stats.IndirectTargets++
	return c, true
}

func (g *generator) unresolvedSite(s *indirectSite, format string, args ...any) {
	if s.unresolved {
		return
	}
	s.unresolved = true
	g.stats.UnresolvedIndirect++
	g.warn.warnf(warnUnresolvedInvoke, "unresolved call %s in %s: "+format,
		append([]any{s.site, s.caller}, args...)...)
}

// resolveIndirect links the indirect calls whose function value or receiver is in changed to the new objects of
// their points-to sets, and generates the newly reachable functions. Returns true if constraints were added.
func (g *generator) resolveIndirect(changed *intsets.Sparse) bool {
	for _, s := range g.indirect {
		rep := g.f.MergeTarget(s.ptr)
		if !changed.Has(int(rep)) {
			continue
		}
		pts := g.g.ptsOf(rep)
		if pts == nil {
			continue
		}
		pts.ForEach(func(o NodeIndex) {
			if s.handled.Insert(int(o)) {
				g.resolveTarget(s, o)
			}
		})
	}
	g.processQueue()
	return len(g.g.pending) > 0
}

// resolveTarget links the callee denoted by the object o at the site s
func (g *generator) resolveTarget(s *indirectSite, o NodeIndex) {
	if o == NullObj {
		return
	}
	if o == UniversalObj {
		g.unresolvedSite(s, "the callee may be any function")
		return
	}
	if !s.invoke {
		if g.f.role(o) != roleFunction {
			g.unresolvedSite(s, "%s is not a function", g.f.Describe(o))
			return
		}
		callee := g.f.function(o)
		if !g.compatible(callee.Signature, s.site.Common().Signature()) {
			g.warn.warnf(warnIncompatibleCall, "%s cannot be called at %s in %s", callee, s.site, s.caller)
			return
		}
		g.linkIndirect(s, callee)
		return
	}
	dyn := g.f.dynamicType(o)
	if dyn == nil {
		g.unresolvedSite(s, "%s is not an interface box", g.f.Describe(o))
		return
	}
	callee := g.lookupMethod(dyn, s.site.Common().Method)
	if callee == nil {
		g.unresolvedSite(s, "no method %s for %s", s.site.Common().Method.Name(), dyn)
		return
	}
	calleeCtx, ok := g.linkIndirect(s, callee)
	if !ok || len(callee.Params) == 0 {
		return
	}
	recv := g.valueNode(calleeCtx, callee.Params[0])
	box, _ := g.f.block(o)
	for _, off := range pointerSlots(g.layouts.of(dyn)) {
		g.copy(recv, box+off)
	}
}

// lookupMethod returns the implementation of the interface method m for the dynamic type dyn, or nil
func (g *generator) lookupMethod(dyn types.Type, m *types.Func) *ssa.Function {
	if m == nil || types.IsInterface(dyn) {
		return nil
	}
	sel := g.prog.MethodSets.MethodSet(dyn).Lookup(m.Pkg(), m.Name())
	if sel == nil {
		return nil
	}
	return g.prog.MethodValue(sel)
}

// compatible returns true if a function of signature callee may be called by a call of signature call. In strict
// mode the signatures must be identical, otherwise they must agree on arity, variadicity and on which parameters
// and results may hold pointers.
func (g *generator) compatible(callee, call *types.Signature) bool {
	if g.strict {
		return types.Identical(dropRecv(callee), dropRecv(call))
	}
	if callee.Variadic() != call.Variadic() {
		return false
	}
	return sameShape(params(callee), params(call)) && sameShape(tupleTypes(callee.Results()), tupleTypes(call.Results()))
}

// params returns the types of the parameters of sig, starting with the receiver if any
func params(sig *types.Signature) []types.Type {
	var r []types.Type
	if sig.Recv() != nil {
		r = append(r, sig.Recv().Type())
	}
	return append(r, tupleTypes(sig.Params())...)
}

func tupleTypes(t *types.Tuple) []types.Type {
	r := make([]types.Type, t.Len())
	for i := range r {
		r[i] = t.At(i).Type()
	}
	return r
}

func sameShape(a, b []types.Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if hasPointers(a[i]) != hasPointers(b[i]) {
			return false
		}
	}
	return true
}

// dropRecv returns sig as a function signature with the receiver as first parameter
func dropRecv(sig *types.Signature) *types.Signature {
	if sig.Recv() == nil {
		return sig
	}
	vars := []*types.Var{sig.Recv()}
	for i := 0; i < sig.Params().Len(); i++ {
		vars = append(vars, sig.Params().At(i))
	}
	return types.NewSignatureType(nil, nil, nil, types.NewTuple(vars...), sig.Results(), sig.Variadic())
}

// linkPrebuilt links the callees of s found in the pre-built call graph. The receiver of an interface call is loaded
// from every box the receiver points to.
func (g *generator) linkPrebuilt(s *indirectSite) {
	node := g.prebuilt.Nodes[s.caller]
	if node == nil {
		g.warn.warnf(warnMissingPrebuiltCg, "function %s is not in the pre-built call graph", s.caller)
		g.unresolvedSite(s, "the caller is not in the call graph")
		return
	}
	found := false
	for _, e := range node.Out {
		if e.Site != s.site || e.Callee == nil || e.Callee.Func == nil {
			continue
		}
		found = true
		callee := e.Callee.Func
		calleeCtx, ok := g.linkIndirect(s, callee)
		if !ok || !s.invoke || len(callee.Params) == 0 {
			continue
		}
		recv := callee.Params[0]
		g.loadSlots(g.valueNode(calleeCtx, recv), s.ptr, pointerSlots(g.layouts.of(recv.Type())))
	}
	if !found {
		g.unresolvedSite(s, "no callee in the pre-built call graph")
	}
}
