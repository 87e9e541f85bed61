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
	"go/token"
	"go/types"
	"strconv"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
)

// maxMaterializedOffset bounds the offsets of the objects materialized out of an opaque object. Larger offsets
// collapse to the opaque object.
const maxMaterializedOffset = 64

// cgKey is a function in a context
type cgKey struct {
	ctx *callctx.Context
	fn  *ssa.Function
}

type offsetKey struct {
	ptr NodeIndex
	off uint32
}

type materialKey struct {
	root NodeIndex
	off  uint32
}

// generator is the language model of Go: it generates the constraints of the functions reachable from the roots,
// and resolves the indirect calls when the solver asks for it.
type generator struct {
	prog    *ssa.Program
	logger  *config.LogGroup
	policy  callctx.Policy
	f       *NodeFactory
	g       *constraintGraph
	cg      *CallGraph
	layouts *layouts
	pre     *preprocessor
	ext     *externals
	stats   *Stats
	warn    *limitedWarner

	// prebuilt is the call graph used to resolve indirect calls, when it is not resolved on the fly
	prebuilt *callgraph.Graph
	// maxTargets bounds the number of callees of an indirect call site in a context
	maxTargets int
	// strict requires the signature of the callees of indirect calls to be identical to the call's signature
	strict bool

	queue     []cgKey
	generated map[cgKey]bool
	indirect  []*indirectSite

	funcObjects  map[*ssa.Function]NodeIndex
	statics      map[*ssa.Function]NodeIndex
	offsetTemps  map[offsetKey]NodeIndex
	materialized map[materialKey]NodeIndex
	// materialOrigin maps a materialized object to its opaque root and offset
	materialOrigin map[NodeIndex]materialKey
	// panicNode holds the values of all the panics, for recover
	panicNode NodeIndex
}

func newGenerator(prog *ssa.Program, logger *config.LogGroup, opts config.PointerOptions, policy callctx.Policy,
	f *NodeFactory, g *constraintGraph, ext *externals, stats *Stats, warn *limitedWarner,
	prebuilt *callgraph.Graph) *generator {
	maxTargets := opts.MaxIndirectTargets
	if maxTargets <= 0 {
		maxTargets = config.DefaultMaxIndirectTargets
	}
	gen := &generator{
		prog:           prog,
		logger:         logger,
		policy:         policy,
		f:              f,
		g:              g,
		cg:             NewCallGraph(),
		layouts:        &layouts{},
		pre:            newPreprocessor(),
		ext:            ext,
		stats:          stats,
		warn:           warn,
		prebuilt:       prebuilt,
		maxTargets:     maxTargets,
		strict:         opts.StrictCallCompatibility,
		generated:      map[cgKey]bool{},
		funcObjects:    map[*ssa.Function]NodeIndex{},
		statics:        map[*ssa.Function]NodeIndex{},
		offsetTemps:    map[offsetKey]NodeIndex{},
		materialized:   map[materialKey]NodeIndex{},
		materialOrigin: map[NodeIndex]materialKey{},
	}
	gen.panicNode = f.createSyntheticValue(rolePanic, policy.Global(), types.NewInterfaceType(nil, nil))
	gen.addInitialConstraints()
	return gen
}

// addInitialConstraints adds the constraints of the reserved nodes
func (g *generator) addInitialConstraints() {
	g.addrOf(NullPtr, NullObj)
	g.addrOf(UniversalPtr, UniversalObj)
	g.addrOf(UniversalObj, UniversalObj)
}

// ******** Emission helpers ********

func (g *generator) addrOf(dst, obj NodeIndex) {
	if dst != InvalidIndex && obj != InvalidIndex {
		g.g.addConstraint(AddrOf, dst, obj, 0)
	}
}

func (g *generator) copy(dst, src NodeIndex) {
	if dst != InvalidIndex && src != InvalidIndex {
		g.g.addConstraint(Copy, dst, src, 0)
	}
}

// offsetPtr returns the node of &ptr[off]
func (g *generator) offsetPtr(ptr NodeIndex, off uint32) NodeIndex {
	if off == 0 {
		return ptr
	}
	k := offsetKey{ptr, off}
	if t, ok := g.offsetTemps[k]; ok {
		return t
	}
	t := g.f.createTemp(g.f.Context(ptr), nil)
	g.g.addConstraint(Offset, t, ptr, off)
	g.offsetTemps[k] = t
	return t
}

// loadAt emits dst = *(&ptr[off])
func (g *generator) loadAt(dst, ptr NodeIndex, off uint32) {
	if dst == InvalidIndex || ptr == InvalidIndex {
		return
	}
	g.g.addConstraint(Load, dst, g.offsetPtr(ptr, off), 0)
}

// storeAt emits *(&ptr[off]) = src
func (g *generator) storeAt(ptr NodeIndex, off uint32, src NodeIndex) {
	if src == InvalidIndex || ptr == InvalidIndex {
		return
	}
	g.g.addConstraint(Store, g.offsetPtr(ptr, off), src, 0)
}

func (g *generator) loadSlots(dst, ptr NodeIndex, offsets []uint32) {
	for _, off := range offsets {
		g.loadAt(dst, ptr, off)
	}
}

func (g *generator) storeSlots(ptr NodeIndex, offsets []uint32, src NodeIndex) {
	for _, off := range offsets {
		g.storeAt(ptr, off, src)
	}
}

func shiftOffsets(offsets []uint32, by uint32) []uint32 {
	r := make([]uint32, len(offsets))
	for i, off := range offsets {
		r[i] = off + by
	}
	return r
}

// ******** Nodes of values ********

// valueNode returns the node of v in ctx, creating it if necessary. Returns InvalidIndex if v cannot contain
// pointers. Globals, functions and free variables are in the global context.
func (g *generator) valueNode(ctx *callctx.Context, v ssa.Value) NodeIndex {
	if v == nil {
		return InvalidIndex
	}
	switch x := v.(type) {
	case *ssa.Range:
		return g.registeredValue(ctx, v)
	case *ssa.Builtin:
		return InvalidIndex
	case *ssa.Const:
		if !hasPointers(x.Type()) {
			return InvalidIndex
		}
		if x.IsNil() {
			return NullPtr
		}
		return UniversalPtr
	case *ssa.Global:
		return g.globalNode(x)
	case *ssa.Function:
		return g.functionValueNode(x)
	case *ssa.FreeVar:
		ctx = g.policy.Global()
	}
	if !hasPointers(v.Type()) {
		return InvalidIndex
	}
	return g.registeredValue(ctx, v)
}

func (g *generator) registeredValue(ctx *callctx.Context, v ssa.Value) NodeIndex {
	if n, ok := g.f.lookupValue(v, ctx); ok {
		return n
	}
	return g.f.CreateValueNode(v, ctx)
}

// globalNode returns the pointer to the global object of gl
func (g *generator) globalNode(gl *ssa.Global) NodeIndex {
	global := g.policy.Global()
	if n, ok := g.f.lookupValue(gl, global); ok {
		return n
	}
	n := g.f.CreateValueNode(gl, global)
	obj := g.f.createBlock(gl, global, g.layouts.of(derefType(gl.Type())), roleGlobal)
	g.addrOf(n, obj)
	return n
}

// functionValueNode returns the pointer to the function object of fn
func (g *generator) functionValueNode(fn *ssa.Function) NodeIndex {
	global := g.policy.Global()
	if n, ok := g.f.lookupValue(fn, global); ok {
		return n
	}
	n := g.f.CreateValueNode(fn, global)
	g.addrOf(n, g.functionObject(fn))
	return n
}

func (g *generator) functionObject(fn *ssa.Function) NodeIndex {
	if o, ok := g.funcObjects[fn]; ok {
		return o
	}
	o := g.f.createFunctionObject(fn, g.policy.Global())
	g.funcObjects[fn] = o
	return o
}

// returnNode returns the node of the results of fn in ctx
func (g *generator) returnNode(ctx *callctx.Context, fn *ssa.Function) NodeIndex {
	if n, ok := g.f.lookupReturn(fn, ctx); ok {
		return n
	}
	return g.f.CreateReturnNode(fn, ctx)
}

// staticObject returns the object owned by the external function fn
func (g *generator) staticObject(fn *ssa.Function) NodeIndex {
	if o, ok := g.statics[fn]; ok {
		return o
	}
	var t types.Type
	if res := fn.Signature.Results(); res.Len() > 0 {
		t = derefType(res.At(0).Type())
	}
	o := g.f.createSyntheticBlock(roleStatic, nil, fn, g.policy.Global(), []slot{{typ: t}})
	g.statics[fn] = o
	return o
}

// allocate creates the block of slots allocated by v in ctx and makes dst point to it
func (g *generator) allocate(ctx *callctx.Context, dst NodeIndex, v ssa.Value, slots []slot) NodeIndex {
	obj := g.f.CreateObjectBlock(v, ctx, slots)
	g.addrOf(dst, obj)
	return obj
}

// ******** Language model interface of the solver ********

// indexObject returns the object at offset off of obj. Offsets outside of the block of obj collapse to obj, except
// for opaque objects, where the object is materialized.
func (g *generator) indexObject(obj NodeIndex, off uint32) (NodeIndex, bool) {
	switch obj {
	case UniversalObj:
		return UniversalObj, true
	case NullObj:
		return InvalidIndex, false
	}
	if !g.f.IsObjectNode(obj) {
		return InvalidIndex, false
	}
	_, end := g.f.block(obj)
	if uint64(obj)+uint64(off) < uint64(end) {
		return obj + off, true
	}
	if !g.f.isOpaque(obj) {
		return obj, true
	}
	return g.materialize(obj, off), true
}

// materialize returns the object at offset off of the opaque object obj, creating it on first use
func (g *generator) materialize(obj NodeIndex, off uint32) NodeIndex {
	k := materialKey{root: obj, off: off}
	if origin, ok := g.materialOrigin[obj]; ok {
		k = materialKey{root: origin.root, off: origin.off + off}
	}
	if k.off > maxMaterializedOffset {
		return obj
	}
	if m, ok := g.materialized[k]; ok {
		return m
	}
	info := g.f.nodes[k.root]
	m := g.f.createSyntheticBlock(roleMaterialized, info.value, info.fn, info.ctx, []slot{{}})
	g.f.nodes[m].path = info.path + "+" + strconv.FormatUint(uint64(k.off), 10)
	g.materialized[k] = m
	g.materialOrigin[m] = k
	g.stats.MaterializedObjects++
	return m
}

func (g *generator) onTheFly() bool {
	return g.prebuilt == nil
}

// ******** Function bodies ********

// addRoot makes fn an entry point of the analysis. The pointers in the parameters of a root point to unknown
// memory, and its variadic parameter points to its vararg object, which contains unknown pointers.
func (g *generator) addRoot(fn *ssa.Function) {
	ctx := g.policy.Initial()
	g.cg.AddEdge(g.cg.Root, nil, g.cg.Node(ctx, fn), false)
	if len(fn.Blocks) == 0 {
		g.ext.reportUnknown(fn)
		return
	}
	g.enqueue(ctx, fn)
	for i, p := range fn.Params {
		pn := g.valueNode(ctx, p)
		if pn == InvalidIndex {
			continue
		}
		if fn.Signature.Variadic() && i == len(fn.Params)-1 {
			va := g.f.CreateVarargNode(fn, ctx)
			g.addrOf(pn, va)
			g.addrOf(va, UniversalObj)
		} else {
			g.addrOf(pn, UniversalObj)
		}
	}
	for _, fv := range fn.FreeVars {
		g.addrOf(g.valueNode(ctx, fv), UniversalObj)
	}
}

func (g *generator) enqueue(ctx *callctx.Context, fn *ssa.Function) {
	k := cgKey{ctx, fn}
	if !g.generated[k] {
		g.generated[k] = true
		g.queue = append(g.queue, k)
	}
}

// processQueue generates the constraints of the functions reached since the last call
func (g *generator) processQueue() {
	for len(g.queue) > 0 {
		k := g.queue[0]
		g.queue = g.queue[1:]
		g.genFunction(k.ctx, k.fn)
	}
}

func (g *generator) genFunction(ctx *callctx.Context, fn *ssa.Function) {
	g.stats.FunctionsAnalyzed++
	if g.logger != nil && g.logger.LogsTrace() {
		g.logger.Tracef("generating %s in %s", fn, g.policy.Format(ctx, false))
	}
	g.cg.Node(ctx, fn)
	if hasPointers(fn.Signature.Results()) {
		g.returnNode(ctx, fn)
	}
	for _, instr := range g.pre.body(fn) {
		g.genInstr(ctx, fn, instr)
	}
}

// genInstr generates the constraints of one instruction of fn analyzed in ctx
func (g *generator) genInstr(ctx *callctx.Context, fn *ssa.Function, instr ssa.Instruction) {
	switch x := instr.(type) {
	case ssa.CallInstruction:
		g.genCall(ctx, fn, x)

	case *ssa.Alloc:
		g.allocate(ctx, g.valueNode(ctx, x), x, g.layouts.of(derefType(x.Type())))

	case *ssa.MakeSlice:
		g.allocate(ctx, g.valueNode(ctx, x), x, g.layouts.pointeeOf(x.Type()))

	case *ssa.MakeChan:
		g.allocate(ctx, g.valueNode(ctx, x), x, g.layouts.pointeeOf(x.Type()))

	case *ssa.MakeMap:
		g.allocate(ctx, g.valueNode(ctx, x), x, g.layouts.pointeeOf(x.Type()))

	case *ssa.MakeInterface:
		g.genMakeInterface(ctx, x)

	case *ssa.MakeClosure:
		closure := x.Fn.(*ssa.Function)
		g.addrOf(g.valueNode(ctx, x), g.functionObject(closure))
		for i, b := range x.Bindings {
			if i < len(closure.FreeVars) {
				g.copy(g.valueNode(ctx, closure.FreeVars[i]), g.valueNode(ctx, b))
			}
		}

	case *ssa.UnOp:
		switch x.Op {
		case token.MUL:
			res := g.valueNode(ctx, x)
			g.loadSlots(res, g.valueNode(ctx, x.X), pointerSlots(g.layouts.of(x.Type())))
		case token.ARROW:
			res := g.valueNode(ctx, x)
			g.loadSlots(res, g.valueNode(ctx, x.X), pointerSlots(g.layouts.pointeeOf(x.X.Type())))
		}

	case *ssa.Store:
		g.storeSlots(g.valueNode(ctx, x.Addr), pointerSlots(g.layouts.of(x.Val.Type())), g.valueNode(ctx, x.Val))

	case *ssa.Send:
		g.storeSlots(g.valueNode(ctx, x.Chan), pointerSlots(g.layouts.pointeeOf(x.Chan.Type())),
			g.valueNode(ctx, x.X))

	case *ssa.MapUpdate:
		m, ok := mapOf(x.Map.Type())
		if !ok {
			g.warn.warnf(warnUnsupportedInstr, "no map type for %s in %s", instr, fn)
			return
		}
		_, valOff := g.layouts.entriesOf(m)
		mapNode := g.valueNode(ctx, x.Map)
		g.storeSlots(mapNode, pointerSlots(g.layouts.of(m.Key())), g.valueNode(ctx, x.Key))
		g.storeSlots(mapNode, shiftOffsets(pointerSlots(g.layouts.of(m.Elem())), valOff), g.valueNode(ctx, x.Value))

	case *ssa.Lookup:
		if m, ok := mapOf(x.X.Type()); ok {
			_, valOff := g.layouts.entriesOf(m)
			g.loadSlots(g.valueNode(ctx, x), g.valueNode(ctx, x.X),
				shiftOffsets(pointerSlots(g.layouts.of(m.Elem())), valOff))
		}

	case *ssa.Range:
		if _, ok := mapOf(x.X.Type()); ok {
			g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))
		}

	case *ssa.Next:
		if x.IsString {
			return
		}
		if r, ok := x.Iter.(*ssa.Range); ok {
			if m, ok := mapOf(r.X.Type()); ok {
				entries, _ := g.layouts.entriesOf(m)
				g.loadSlots(g.valueNode(ctx, x), g.valueNode(ctx, x.Iter), pointerSlots(entries))
			}
		}

	case *ssa.Select:
		res := g.valueNode(ctx, x)
		for _, st := range x.States {
			offsets := pointerSlots(g.layouts.pointeeOf(st.Chan.Type()))
			switch st.Dir {
			case types.RecvOnly:
				g.loadSlots(res, g.valueNode(ctx, st.Chan), offsets)
			case types.SendOnly:
				g.storeSlots(g.valueNode(ctx, st.Chan), offsets, g.valueNode(ctx, st.Send))
			}
		}

	case *ssa.FieldAddr:
		res := g.valueNode(ctx, x)
		st, ok := coreType(derefType(x.X.Type())).(*types.Struct)
		if !ok {
			g.copy(res, g.valueNode(ctx, x.X))
			return
		}
		if off := g.layouts.fieldOffset(st, x.Field); off == 0 {
			g.copy(res, g.valueNode(ctx, x.X))
		} else if src := g.valueNode(ctx, x.X); res != InvalidIndex && src != InvalidIndex {
			g.g.addConstraint(Offset, res, src, off)
		}

	case *ssa.IndexAddr:
		// the elements of slices and arrays are a single slot at the start of their block
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.Field:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.Index:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.Slice:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.SliceToArrayPointer:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.Phi:
		res := g.valueNode(ctx, x)
		for _, e := range x.Edges {
			g.copy(res, g.valueNode(ctx, e))
		}

	case *ssa.ChangeType:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.ChangeInterface:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.X))

	case *ssa.Convert:
		g.genConvert(ctx, x)

	case *ssa.TypeAssert:
		res := g.valueNode(ctx, x)
		if types.IsInterface(x.AssertedType) {
			g.copy(res, g.valueNode(ctx, x.X))
		} else {
			g.loadSlots(res, g.valueNode(ctx, x.X), pointerSlots(g.layouts.of(x.AssertedType)))
		}

	case *ssa.Extract:
		g.copy(g.valueNode(ctx, x), g.valueNode(ctx, x.Tuple))

	case *ssa.Return:
		if len(x.Results) == 0 {
			return
		}
		ret := g.returnNode(ctx, fn)
		for _, r := range x.Results {
			g.copy(ret, g.valueNode(ctx, r))
		}

	case *ssa.Panic:
		g.copy(g.panicNode, g.valueNode(ctx, x.X))

	default:
		if v, ok := instr.(ssa.Value); ok && hasPointers(v.Type()) {
			g.warn.warnf(warnUnsupportedInstr, "no constraint for %T instruction %s in %s", instr, instr, fn)
		}
	}
}

// genMakeInterface creates the box of the interface value, recording the dynamic type, and stores the value in it
func (g *generator) genMakeInterface(ctx *callctx.Context, x *ssa.MakeInterface) {
	dyn := x.X.Type()
	slots := g.layouts.of(dyn)
	box := g.f.createBox(x, ctx, slots, dyn)
	g.addrOf(g.valueNode(ctx, x), box)
	val := g.valueNode(ctx, x.X)
	if val == InvalidIndex {
		return
	}
	for _, off := range pointerSlots(slots) {
		g.copy(box+NodeIndex(off), val)
	}
}

// genConvert handles the conversions: between pointers they are copies, from integers to pointers they produce
// unknown pointers, and from strings to slices they allocate
func (g *generator) genConvert(ctx *callctx.Context, x *ssa.Convert) {
	res := g.valueNode(ctx, x)
	if res == InvalidIndex {
		return
	}
	from := x.X.Type()
	switch {
	case isPointerLike(from):
		g.copy(res, g.valueNode(ctx, x.X))
	case isString(from):
		g.allocate(ctx, res, x, g.layouts.pointeeOf(x.Type()))
	default:
		g.copy(res, UniversalPtr)
	}
}

func isString(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsString != 0
}
