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
	"fmt"
	"go/types"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"golang.org/x/tools/go/ssa"
)

// NodeIndex identifies a node of the analysis
type NodeIndex = uint32

// The reserved nodes, created first by every NodeFactory
const (
	// UniversalPtr is the value pointing to unknown memory
	UniversalPtr NodeIndex = iota
	// UniversalObj is the unknown memory. It points to itself.
	UniversalObj
	// NullPtr is the nil pointer
	NullPtr
	// NullObj is the object pointed by the nil pointer
	NullObj
	numReservedNodes
)

// InvalidIndex is returned by lookups for unknown nodes
const InvalidIndex = ^NodeIndex(0)

// NodeKind is the kind of node: a value or an object
type NodeKind uint8

const (
	// ValueNode is a node for an SSA value or a synthetic pointer
	ValueNode NodeKind = iota
	// ObjectNode is a node for an abstract memory location
	ObjectNode
)

func (k NodeKind) String() string {
	if k == ObjectNode {
		return "object"
	}
	return "value"
}

// nodeRole distinguishes the synthetic nodes from the nodes of SSA values and allocation sites
type nodeRole uint8

const (
	rolePlain nodeRole = iota
	roleReserved
	roleReturn
	roleVararg
	roleTemp
	roleFunction
	roleBox
	roleStatic
	roleMaterialized
	roleGlobal
	rolePanic
)

// nodeInfo is the metadata of a node
type nodeInfo struct {
	kind        NodeKind
	role        nodeRole
	mergeTarget NodeIndex
	value       ssa.Value
	ctx         *callctx.Context
	// fn is the function of return and vararg nodes and of function objects
	fn *ssa.Function
	// typ is the type of the value, or the type stored in the object
	typ types.Type
	// path is the field path of the object inside its block, e.g. ".f[*].g"
	path string
	// dynType is the dynamic type of an interface box
	dynType types.Type
	// blockStart and blockEnd are the bounds of the block of an object. blockEnd is exclusive.
	blockStart NodeIndex
	blockEnd   NodeIndex
}

// registry maps a key in a context to a node, and remembers every node of a key in creation order
type registry[K comparable] struct {
	byCtx map[*callctx.Context]map[K]NodeIndex
	byKey map[K][]NodeIndex
}

func newRegistry[K comparable]() registry[K] {
	return registry[K]{
		byCtx: map[*callctx.Context]map[K]NodeIndex{},
		byKey: map[K][]NodeIndex{},
	}
}

// register maps k in ctx to n. Returns true if k was already registered in ctx, in which case the new node wins.
func (r registry[K]) register(k K, ctx *callctx.Context, n NodeIndex) bool {
	m, ok := r.byCtx[ctx]
	if !ok {
		m = map[K]NodeIndex{}
		r.byCtx[ctx] = m
	}
	_, dup := m[k]
	m[k] = n
	r.byKey[k] = append(r.byKey[k], n)
	return dup
}

func (r registry[K]) lookup(k K, ctx *callctx.Context) (NodeIndex, bool) {
	if m, ok := r.byCtx[ctx]; ok {
		n, ok := m[k]
		return n, ok
	}
	return InvalidIndex, false
}

// fallback returns the node of k with the lowest index, in any context
func (r registry[K]) fallback(k K) (NodeIndex, bool) {
	if all := r.byKey[k]; len(all) > 0 {
		return all[0], true
	}
	return InvalidIndex, false
}

func (r registry[K]) all(k K) []NodeIndex {
	return append([]NodeIndex(nil), r.byKey[k]...)
}

// A NodeFactory creates the nodes of an analysis and maps (context, value) pairs to them. It also maintains the
// union-find structure of merged nodes: each node has a merge target, which is itself until the node is merged into
// another node.
type NodeFactory struct {
	nodes   []nodeInfo
	values  registry[ssa.Value]
	objects registry[ssa.Value]
	returns registry[*ssa.Function]
	varargs registry[*ssa.Function]
	warn    *limitedWarner

	// InvalidLookups counts the lookups that returned InvalidIndex or degraded to UniversalPtr
	InvalidLookups int
}

// NewNodeFactory returns a factory containing only the reserved nodes
func NewNodeFactory(warn *limitedWarner) *NodeFactory {
	if warn == nil {
		warn = newLimitedWarner(nil)
	}
	f := &NodeFactory{
		values:  newRegistry[ssa.Value](),
		objects: newRegistry[ssa.Value](),
		returns: newRegistry[*ssa.Function](),
		varargs: newRegistry[*ssa.Function](),
		warn:    warn,
	}
	for _, k := range []NodeKind{ValueNode, ObjectNode, ValueNode, ObjectNode} {
		n := f.newNode(nodeInfo{kind: k, role: roleReserved})
		if k == ObjectNode {
			f.nodes[n].blockStart, f.nodes[n].blockEnd = n, n+1
		}
	}
	return f
}

func (f *NodeFactory) newNode(info nodeInfo) NodeIndex {
	n := NodeIndex(len(f.nodes))
	info.mergeTarget = n
	f.nodes = append(f.nodes, info)
	return n
}

// NumNodes returns the number of nodes created
func (f *NodeFactory) NumNodes() int {
	return len(f.nodes)
}

func (f *NodeFactory) valid(n NodeIndex) bool {
	return int(n) < len(f.nodes)
}

// CreateValueNode creates a value node for v in ctx. If v is nil, the node is not registered. If v was already
// registered in ctx, a warning is printed and the new node replaces the old one in lookups.
func (f *NodeFactory) CreateValueNode(v ssa.Value, ctx *callctx.Context) NodeIndex {
	n := f.newNode(nodeInfo{kind: ValueNode, value: v, ctx: ctx, typ: typeOf(v)})
	if v != nil && f.values.register(v, ctx, n) {
		f.warn.warnf(warnDuplicateNode, "value %s registered twice in context %s", v.Name(), ctx)
	}
	return n
}

// CreateObjectNode creates a single object node for the allocation site v in ctx.
func (f *NodeFactory) CreateObjectNode(v ssa.Value, ctx *callctx.Context) NodeIndex {
	return f.CreateObjectBlock(v, ctx, []slot{{typ: derefType(typeOf(v))}})
}

// CreateObjectBlock creates the consecutive object nodes of an allocation site v in ctx, one per slot, and returns
// the index of the first one. Only the first node is registered for v. There is always at least one node.
func (f *NodeFactory) CreateObjectBlock(v ssa.Value, ctx *callctx.Context, slots []slot) NodeIndex {
	return f.createBlock(v, ctx, slots, rolePlain)
}

func (f *NodeFactory) createBlock(v ssa.Value, ctx *callctx.Context, slots []slot, role nodeRole) NodeIndex {
	if len(slots) == 0 {
		slots = []slot{{}}
	}
	start := NodeIndex(len(f.nodes))
	end := start + NodeIndex(len(slots))
	for _, s := range slots {
		f.newNode(nodeInfo{
			kind:       ObjectNode,
			role:       role,
			value:      v,
			ctx:        ctx,
			typ:        s.typ,
			path:       s.path,
			blockStart: start,
			blockEnd:   end,
		})
	}
	if v != nil && f.objects.register(v, ctx, start) {
		f.warn.warnf(warnDuplicateNode, "object of %s registered twice in context %s", v.Name(), ctx)
	}
	return start
}

// createFunctionObject creates the object of the function fn, registered for fn in ctx
func (f *NodeFactory) createFunctionObject(fn *ssa.Function, ctx *callctx.Context) NodeIndex {
	n := f.createBlock(fn, ctx, []slot{{typ: fn.Signature}}, roleFunction)
	f.nodes[n].fn = fn
	return n
}

// createBox creates the interface box of the MakeInterface v in ctx, containing a value of type dyn
func (f *NodeFactory) createBox(v ssa.Value, ctx *callctx.Context, slots []slot, dyn types.Type) NodeIndex {
	n := f.createBlock(v, ctx, slots, roleBox)
	f.nodes[n].dynType = dyn
	return n
}

// createSyntheticBlock creates an unregistered block of objects, with the value and function used for printing
func (f *NodeFactory) createSyntheticBlock(role nodeRole, v ssa.Value, fn *ssa.Function, ctx *callctx.Context,
	slots []slot) NodeIndex {
	n := f.createBlock(nil, ctx, slots, role)
	_, end := f.block(n)
	for i := n; i < end; i++ {
		f.nodes[i].value = v
		f.nodes[i].fn = fn
	}
	return n
}

// createSyntheticValue creates an unregistered value node
func (f *NodeFactory) createSyntheticValue(role nodeRole, ctx *callctx.Context, t types.Type) NodeIndex {
	return f.newNode(nodeInfo{kind: ValueNode, role: role, ctx: ctx, typ: t})
}

// isOpaque returns true if the layout of the object n is unknown. Offsets out of opaque objects create new objects.
func (f *NodeFactory) isOpaque(n NodeIndex) bool {
	info := f.nodes[n]
	switch info.role {
	case roleStatic, roleVararg, roleMaterialized:
		return true
	case roleReserved, roleFunction, roleBox:
		return false
	}
	if info.blockEnd-info.blockStart != 1 {
		return false
	}
	if info.typ == nil {
		return true
	}
	b, ok := info.typ.Underlying().(*types.Basic)
	return ok && b.Kind() == types.UnsafePointer
}

// CreateReturnNode creates the node of the results of fn in ctx
func (f *NodeFactory) CreateReturnNode(fn *ssa.Function, ctx *callctx.Context) NodeIndex {
	var t types.Type
	if fn != nil {
		t = fn.Signature.Results()
	}
	n := f.newNode(nodeInfo{kind: ValueNode, role: roleReturn, fn: fn, ctx: ctx, typ: t})
	if fn != nil && f.returns.register(fn, ctx, n) {
		f.warn.warnf(warnDuplicateNode, "return node of %s registered twice in context %s", fn, ctx)
	}
	return n
}

// CreateVarargNode creates the object of the variadic arguments of fn in ctx
func (f *NodeFactory) CreateVarargNode(fn *ssa.Function, ctx *callctx.Context) NodeIndex {
	n := f.newNode(nodeInfo{kind: ObjectNode, role: roleVararg, fn: fn, ctx: ctx})
	f.nodes[n].blockStart, f.nodes[n].blockEnd = n, n+1
	if fn != nil && f.varargs.register(fn, ctx, n) {
		f.warn.warnf(warnDuplicateNode, "vararg node of %s registered twice in context %s", fn, ctx)
	}
	return n
}

// createTemp creates an unregistered value node
func (f *NodeFactory) createTemp(ctx *callctx.Context, t types.Type) NodeIndex {
	return f.newNode(nodeInfo{kind: ValueNode, role: roleTemp, ctx: ctx, typ: t})
}

// ValueNodeFor returns the value node of v in ctx.
//
// The nil constant is NullPtr, and conversions of non-pointer values to pointers are UniversalPtr. Unregistered
// pointer conversions resolve to the node of their operand. If v has no node in ctx but has one in another context,
// the node with the lowest index is returned. Returns InvalidIndex if v has no node.
func (f *NodeFactory) ValueNodeFor(v ssa.Value, ctx *callctx.Context) NodeIndex {
	if n, ok := f.values.lookup(v, ctx); ok {
		return n
	}
	switch x := v.(type) {
	case *ssa.Const:
		if x.IsNil() {
			return NullPtr
		}
		if hasPointers(x.Type()) {
			return UniversalPtr
		}
	case *ssa.Convert:
		if !isPointerLike(x.X.Type()) && isPointerLike(x.Type()) {
			return UniversalPtr
		}
		if isPointerLike(x.X.Type()) {
			return f.ValueNodeFor(x.X, ctx)
		}
	case *ssa.ChangeType:
		return f.ValueNodeFor(x.X, ctx)
	case *ssa.FieldAddr:
		if _, isGlobal := x.X.(*ssa.Global); isGlobal {
			return f.ValueNodeFor(x.X, ctx)
		}
	case *ssa.IndexAddr:
		if _, isGlobal := x.X.(*ssa.Global); isGlobal {
			return f.ValueNodeFor(x.X, ctx)
		}
	}
	if n, ok := f.values.fallback(v); ok {
		return n
	}
	f.InvalidLookups++
	return InvalidIndex
}

// ObjectNodeFor returns the first object node of the allocation site v in ctx, with the same fallback as
// ValueNodeFor. The nil constant is NullObj.
func (f *NodeFactory) ObjectNodeFor(v ssa.Value, ctx *callctx.Context) NodeIndex {
	if n, ok := f.objects.lookup(v, ctx); ok {
		return n
	}
	if c, ok := v.(*ssa.Const); ok && c.IsNil() {
		return NullObj
	}
	if n, ok := f.objects.fallback(v); ok {
		return n
	}
	f.InvalidLookups++
	return InvalidIndex
}

// ReturnNodeFor returns the return node of fn in ctx, with the same fallback as ValueNodeFor
func (f *NodeFactory) ReturnNodeFor(fn *ssa.Function, ctx *callctx.Context) NodeIndex {
	if n, ok := f.returns.lookup(fn, ctx); ok {
		return n
	}
	if n, ok := f.returns.fallback(fn); ok {
		return n
	}
	f.InvalidLookups++
	return InvalidIndex
}

// VarargNodeFor returns the vararg object of fn in ctx, with the same fallback as ValueNodeFor
func (f *NodeFactory) VarargNodeFor(fn *ssa.Function, ctx *callctx.Context) NodeIndex {
	if n, ok := f.varargs.lookup(fn, ctx); ok {
		return n
	}
	if n, ok := f.varargs.fallback(fn); ok {
		return n
	}
	f.InvalidLookups++
	return InvalidIndex
}

// lookupValue returns the value node of v in ctx, without any fallback
func (f *NodeFactory) lookupValue(v ssa.Value, ctx *callctx.Context) (NodeIndex, bool) {
	return f.values.lookup(v, ctx)
}

func (f *NodeFactory) lookupObject(v ssa.Value, ctx *callctx.Context) (NodeIndex, bool) {
	return f.objects.lookup(v, ctx)
}

func (f *NodeFactory) lookupReturn(fn *ssa.Function, ctx *callctx.Context) (NodeIndex, bool) {
	return f.returns.lookup(fn, ctx)
}

// ValueNodesFor returns all the value nodes of v, in every context, in creation order
func (f *NodeFactory) ValueNodesFor(v ssa.Value) []NodeIndex {
	return f.values.all(v)
}

// ObjectNodesFor returns the first nodes of all the blocks of the allocation site v, in creation order
func (f *NodeFactory) ObjectNodesFor(v ssa.Value) []NodeIndex {
	return f.objects.all(v)
}

// MergeNode merges n1 into n0: n0 becomes the merge target of n1. Reserved nodes are never merged into another
// node.
func (f *NodeFactory) MergeNode(n0, n1 NodeIndex) {
	if !f.valid(n0) || !f.valid(n1) {
		f.InvalidLookups++
		f.warn.warnf(warnInvalidIndex, "cannot merge invalid nodes %d and %d", n0, n1)
		return
	}
	if n0 == n1 {
		return
	}
	if n1 < numReservedNodes {
		f.warn.warnf(warnMergeReserved, "refusing to merge reserved node %d into %d", n1, n0)
		return
	}
	f.nodes[n1].mergeTarget = n0
}

// MergeTarget returns the representative of n, compressing the path from n to its representative.
// Invalid indices degrade to UniversalPtr.
func (f *NodeFactory) MergeTarget(n NodeIndex) NodeIndex {
	root, ok := f.findRoot(n)
	if !ok {
		return UniversalPtr
	}
	for n != root {
		next := f.nodes[n].mergeTarget
		f.nodes[n].mergeTarget = root
		n = next
	}
	return root
}

// PeekMergeTarget returns the representative of n without modifying the merge targets
func (f *NodeFactory) PeekMergeTarget(n NodeIndex) NodeIndex {
	root, ok := f.findRoot(n)
	if !ok {
		return UniversalPtr
	}
	return root
}

func (f *NodeFactory) findRoot(n NodeIndex) (NodeIndex, bool) {
	if !f.valid(n) {
		f.InvalidLookups++
		f.warn.warnf(warnInvalidIndex, "invalid node index %d", n)
		return UniversalPtr, false
	}
	root := n
	for steps := 0; f.nodes[root].mergeTarget != root; steps++ {
		root = f.nodes[root].mergeTarget
		if !f.valid(root) || steps > len(f.nodes) {
			f.InvalidLookups++
			f.warn.warnf(warnInvalidIndex, "invalid merge target %d for node %d", root, n)
			return UniversalPtr, false
		}
	}
	return root, true
}

// IsObjectNode returns true if n is an object node
func (f *NodeFactory) IsObjectNode(n NodeIndex) bool {
	return f.valid(n) && f.nodes[n].kind == ObjectNode
}

// Kind returns the kind of n
func (f *NodeFactory) Kind(n NodeIndex) NodeKind {
	return f.nodes[n].kind
}

// Value returns the SSA value of n, which is nil for synthetic nodes
func (f *NodeFactory) Value(n NodeIndex) ssa.Value {
	if !f.valid(n) {
		return nil
	}
	return f.nodes[n].value
}

// Context returns the context of n, nil for reserved nodes
func (f *NodeFactory) Context(n NodeIndex) *callctx.Context {
	if !f.valid(n) {
		return nil
	}
	return f.nodes[n].ctx
}

// Type returns the type of the value of n, or the type stored in the object n
func (f *NodeFactory) Type(n NodeIndex) types.Type {
	if !f.valid(n) {
		return nil
	}
	return f.nodes[n].typ
}

// Path returns the field path of the object n in its block
func (f *NodeFactory) Path(n NodeIndex) string {
	if !f.valid(n) {
		return ""
	}
	return f.nodes[n].path
}

// OffsetObjectNode returns the object at offset off in the block starting at base
func (f *NodeFactory) OffsetObjectNode(base NodeIndex, off uint32) NodeIndex {
	return base + off
}

// block returns the bounds of the block of the object n
func (f *NodeFactory) block(n NodeIndex) (NodeIndex, NodeIndex) {
	info := f.nodes[n]
	return info.blockStart, info.blockEnd
}

func (f *NodeFactory) role(n NodeIndex) nodeRole {
	return f.nodes[n].role
}

// function returns the function of a function object, a return node or a vararg node
func (f *NodeFactory) function(n NodeIndex) *ssa.Function {
	return f.nodes[n].fn
}

// dynamicType returns the dynamic type of an interface box, or nil if n is not a box
func (f *NodeFactory) dynamicType(n NodeIndex) types.Type {
	if f.nodes[n].role != roleBox {
		return nil
	}
	return f.nodes[n].dynType
}

// AllocSites returns the allocation sites of all the object nodes, without duplicates, in the order of their first
// node
func (f *NodeFactory) AllocSites() []ssa.Value {
	seen := map[ssa.Value]bool{}
	var sites []ssa.Value
	for _, info := range f.nodes {
		if info.kind != ObjectNode || info.value == nil || seen[info.value] {
			continue
		}
		seen[info.value] = true
		sites = append(sites, info.value)
	}
	return sites
}

// Describe returns a short description of n for dumps
func (f *NodeFactory) Describe(n NodeIndex) string {
	if !f.valid(n) {
		return fmt.Sprintf("invalid(%d)", n)
	}
	info := f.nodes[n]
	switch n {
	case UniversalPtr:
		return "universal-ptr"
	case UniversalObj:
		return "universal-obj"
	case NullPtr:
		return "null-ptr"
	case NullObj:
		return "null-obj"
	}
	var name string
	switch info.role {
	case roleReturn:
		name = "return of " + info.fn.String()
	case roleVararg:
		name = "varargs of " + info.fn.String()
	case roleFunction:
		name = "func " + info.fn.String()
	case roleTemp:
		name = "tmp"
	case rolePanic:
		name = "panic"
	case roleStatic:
		name = "static of " + info.fn.String()
	default:
		if info.value != nil {
			name = valueName(info.value)
		} else {
			name = "?"
		}
	}
	if info.role == roleBox {
		name = fmt.Sprintf("box(%s) %s", info.dynType, name)
	}
	if info.role == roleMaterialized {
		name = "materialized " + name
	}
	return fmt.Sprintf("%s%s%s", name, info.path, info.ctx)
}

// valueName prints a value with its function, e.g. "main.f:t0"
func valueName(v ssa.Value) string {
	switch x := v.(type) {
	case *ssa.Global, *ssa.Function:
		return x.String()
	}
	if fn := v.Parent(); fn != nil {
		return fn.String() + ":" + v.Name()
	}
	return v.Name()
}

func typeOf(v ssa.Value) types.Type {
	if v == nil {
		return nil
	}
	return v.Type()
}
