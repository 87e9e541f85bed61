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
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/ptset"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/ssa"
)

// AliasResult is the answer to an alias query aggregated over all contexts
type AliasResult int

const (
	// NoAlias means the values never point to the same object
	NoAlias AliasResult = iota
	// MayAlias means the values may point to the same object, or that nothing is known about them
	MayAlias
	// MustAlias means both values point to the same single object
	MustAlias
)

func (r AliasResult) String() string {
	switch r {
	case NoAlias:
		return "no-alias"
	case MayAlias:
		return "may-alias"
	case MustAlias:
		return "must-alias"
	default:
		return fmt.Sprintf("AliasResult(%d)", int(r))
	}
}

// Result is the result of a pointer analysis run. It is not safe for concurrent use, since lookups compress the
// paths of the merged nodes.
type Result struct {
	f       *NodeFactory
	g       *constraintGraph
	policy  callctx.Policy
	cg      *CallGraph
	stats   *Stats
	layouts *layouts
}

// An Object is an abstract memory location: a field of the objects allocated at an allocation site in a context
type Object struct {
	Index NodeIndex
	// Value is the allocation site, nil for synthetic objects
	Value   ssa.Value
	Context *callctx.Context
	// Path is the field path of the object in its allocation, e.g. ".f[*]"
	Path string
	// Type is the type of the location, if known
	Type types.Type
	// Func is the function of function objects, vararg objects and objects owned by external functions
	Func *ssa.Function

	desc string
}

func (o Object) String() string {
	return o.desc
}

// CallGraph returns the context-sensitive call graph
func (r *Result) CallGraph() *CallGraph {
	return r.cg
}

// Stats returns the statistics of the run
func (r *Result) Stats() *Stats {
	return r.stats
}

// Nodes returns the node factory of the run
func (r *Result) Nodes() *NodeFactory {
	return r.f
}

// Policy returns the context policy of the run
func (r *Result) Policy() callctx.Policy {
	return r.policy
}

// Contexts returns the contexts in which v has a value node, in creation order of the nodes
func (r *Result) Contexts(v ssa.Value) []*callctx.Context {
	var ctxs []*callctx.Context
	for _, n := range r.f.ValueNodesFor(v) {
		if c := r.f.Context(n); !slices.Contains(ctxs, c) {
			ctxs = append(ctxs, c)
		}
	}
	return ctxs
}

// ptsOfNode returns the points-to set of the representative of n, or nil
func (r *Result) ptsOfNode(n NodeIndex) ptset.Set {
	if n == InvalidIndex {
		return nil
	}
	return r.g.ptsOf(r.f.MergeTarget(n))
}

// objects returns the objects of pts without the reserved objects
func (r *Result) objects(pts ptset.Set) []NodeIndex {
	if pts == nil {
		return nil
	}
	var objs []NodeIndex
	pts.ForEach(func(o NodeIndex) {
		if o >= numReservedNodes {
			objs = append(objs, o)
		}
	})
	return objs
}

func (r *Result) object(n NodeIndex) Object {
	info := r.f.nodes[n]
	return Object{
		Index:   n,
		Value:   info.value,
		Context: info.ctx,
		Path:    info.path,
		Type:    info.typ,
		Func:    info.fn,
		desc:    r.f.Describe(n),
	}
}

// Alias returns true if v1 in c1 and v2 in c2 may point to the same object, not counting unknown memory and nil.
// Alias panics if one of the values has no node: context bookkeeping errors of the caller are not recoverable.
func (r *Result) Alias(c1 *callctx.Context, v1 ssa.Value, c2 *callctx.Context, v2 ssa.Value) bool {
	n1, n2 := r.f.ValueNodeFor(v1, c1), r.f.ValueNodeFor(v2, c2)
	if n1 == InvalidIndex || n2 == InvalidIndex {
		panic(fmt.Sprintf("pointer: alias query on values without node: %s in %s, %s in %s", v1, c1, v2, c2))
	}
	return r.intersects(n1, n2)
}

// AliasIfExists is Alias, but returns false when one of the values has no node
func (r *Result) AliasIfExists(c1 *callctx.Context, v1 ssa.Value, c2 *callctx.Context, v2 ssa.Value) bool {
	n1, n2 := r.f.ValueNodeFor(v1, c1), r.f.ValueNodeFor(v2, c2)
	if n1 == InvalidIndex || n2 == InvalidIndex {
		return false
	}
	return r.intersects(n1, n2)
}

func (r *Result) intersects(n1, n2 NodeIndex) bool {
	p1, p2 := r.ptsOfNode(n1), r.ptsOfNode(n2)
	if p1 == nil || p2 == nil {
		return false
	}
	found := false
	p1.ForEach(func(o NodeIndex) {
		if !found && o >= numReservedNodes && p2.Has(o) {
			found = true
		}
	})
	return found
}

// allContexts returns the union of the points-to sets of v in all its contexts, and false if v has no node
func (r *Result) allContexts(v ssa.Value) (ptset.Set, bool) {
	nodes := r.f.ValueNodesFor(v)
	if len(nodes) == 0 {
		n := r.f.ValueNodeFor(v, r.policy.Initial())
		if n == InvalidIndex {
			return nil, false
		}
		nodes = []NodeIndex{n}
	}
	all := r.g.newSet()
	for _, n := range nodes {
		if pts := r.ptsOfNode(n); pts != nil {
			all.UnionWith(pts)
		}
	}
	return all, true
}

// MayAlias answers the alias query on v1 and v2 over all their contexts. Values that have no node, or that may
// point to unknown memory, may alias anything. Values that only point to nil alias nothing.
func (r *Result) MayAlias(v1, v2 ssa.Value) AliasResult {
	p1, ok1 := r.allContexts(v1)
	p2, ok2 := r.allContexts(v2)
	if !ok1 || !ok2 {
		return MayAlias
	}
	if p1.Has(UniversalObj) || p2.Has(UniversalObj) {
		return MayAlias
	}
	o1, o2 := r.objects(p1), r.objects(p2)
	if len(o1) == 0 || len(o2) == 0 {
		return NoAlias
	}
	if len(o1) == 1 && len(o2) == 1 && o1[0] == o2[0] {
		return MustAlias
	}
	for _, o := range o1 {
		if p2.Has(o) {
			return MayAlias
		}
	}
	return NoAlias
}

// PointsTo returns the objects v in ctx points to, in increasing index order. Unknown memory and nil are not
// included. Returns nil if v has no node.
func (r *Result) PointsTo(ctx *callctx.Context, v ssa.Value) []Object {
	return r.toObjects(r.objects(r.ptsOfNode(r.f.ValueNodeFor(v, ctx))))
}

// PointsToAll returns the objects v points to in any context
func (r *Result) PointsToAll(v ssa.Value) []Object {
	pts, _ := r.allContexts(v)
	return r.toObjects(r.objects(pts))
}

// PointsToValues returns the allocation sites of the objects v may point to in any context, without duplicates
func (r *Result) PointsToValues(v ssa.Value) []ssa.Value {
	var sites []ssa.Value
	for _, o := range r.PointsToAll(v) {
		if o.Value != nil && !slices.Contains(sites, o.Value) {
			sites = append(sites, o.Value)
		}
	}
	return sites
}

// MayPointToUnknown returns true if v may point to unknown memory in some context
func (r *Result) MayPointToUnknown(v ssa.Value) bool {
	pts, ok := r.allContexts(v)
	return !ok || pts.Has(UniversalObj)
}

func (r *Result) toObjects(objs []NodeIndex) []Object {
	if len(objs) == 0 {
		return nil
	}
	res := make([]Object, len(objs))
	for i, o := range objs {
		res[i] = r.object(o)
	}
	return res
}

// HasIdenticalPointsTo returns true if v1 in c1 and v2 in c2 have the same points-to set
func (r *Result) HasIdenticalPointsTo(c1 *callctx.Context, v1 ssa.Value, c2 *callctx.Context, v2 ssa.Value) bool {
	p1 := r.ptsOfNode(r.f.ValueNodeFor(v1, c1))
	p2 := r.ptsOfNode(r.f.ValueNodeFor(v2, c2))
	if p1 == nil || p2 == nil {
		return (p1 == nil || p1.IsEmpty()) && (p2 == nil || p2.IsEmpty())
	}
	return p1.Equals(p2)
}

// ContainsPointsTo returns true if the points-to set of v1 in c1 contains the one of v2 in c2
func (r *Result) ContainsPointsTo(c1 *callctx.Context, v1 ssa.Value, c2 *callctx.Context, v2 ssa.Value) bool {
	p1 := r.ptsOfNode(r.f.ValueNodeFor(v1, c1))
	p2 := r.ptsOfNode(r.f.ValueNodeFor(v2, c2))
	if p2 == nil || p2.IsEmpty() {
		return true
	}
	return p1 != nil && p2.SubsetOf(p1)
}

// PointedType returns the type of the location of the object, or nil if it is unknown
func (r *Result) PointedType(o Object) types.Type {
	if o.Type != nil {
		return o.Type
	}
	if dyn := r.f.dynamicType(o.Index); dyn != nil {
		return dyn
	}
	return nil
}

// AllocationSites returns the allocation sites of all the objects of the run, in the order of their first object
func (r *Result) AllocationSites() []ssa.Value {
	return r.f.AllocSites()
}

// Release drops the points-to sets and the context pool. The result cannot be queried afterwards.
func (r *Result) Release() {
	r.g.nodes = nil
	r.policy.Release()
}
