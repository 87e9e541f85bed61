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
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/ptset"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/container/intsets"
)

// gnode holds the edges and the points-to set of a node. Only representatives have edges and points-to sets: when a
// node is merged, its state is moved to its representative.
type gnode struct {
	// addrOf are the objects o of the constraints n = &o
	addrOf []NodeIndex
	// copyTo are the destinations t of the copies t = n
	copyTo []NodeIndex
	// copyFrom are the sources s of the copies n = s
	copyFrom []NodeIndex
	// loadTo are the destinations t of the loads t = *n
	loadTo []NodeIndex
	// storeFrom are the sources s of the stores *n = s
	storeFrom []NodeIndex
	// offsets are the indices of the offset sites t = &n[k]
	offsets []int
	pts     ptset.Set
	// prev is the part of pts that has already been propagated along the edges of the node, for difference
	// propagation
	prev ptset.Set
	// funPtr is set when the node is the function value or the receiver of an indirect call
	funPtr bool
}

// offsetSite is an offset constraint dst = &src[off]. The handled set contains the objects of pts(src) already
// offset at this site.
type offsetSite struct {
	src     NodeIndex
	dst     NodeIndex
	off     uint32
	handled intsets.Sparse
}

// pendingEdge is a constraint added since the last time the solver applied the new constraints
type pendingEdge struct {
	c    Constraint
	site int
}

// constraintGraph is the constraint graph of an analysis. Edges are stored on their representatives at insertion
// time; stale endpoints are resolved through the merge targets of the node factory when the edges are used.
type constraintGraph struct {
	f       *NodeFactory
	newSet  ptset.Factory
	nodes   []*gnode
	edges   map[Constraint]bool
	pending []pendingEdge
	offsets []*offsetSite
	stats   *Stats

	// copyEdges is the number of copy edges added
	copyEdges int
	// funPtrChanged contains the function pointer nodes whose points-to set changed since the last resolution of
	// indirect calls
	funPtrChanged intsets.Sparse
}

func newConstraintGraph(f *NodeFactory, newSet ptset.Factory, stats *Stats) *constraintGraph {
	if newSet == nil {
		newSet = ptset.NewSparse
	}
	if stats == nil {
		stats = &Stats{}
	}
	return &constraintGraph{
		f:      f,
		newSet: newSet,
		edges:  map[Constraint]bool{},
		stats:  stats,
	}
}

// node returns the state of n, allocating it if necessary
func (g *constraintGraph) node(n NodeIndex) *gnode {
	for int(n) >= len(g.nodes) {
		g.nodes = append(g.nodes, nil)
	}
	gn := g.nodes[n]
	if gn == nil {
		gn = &gnode{}
		g.nodes[n] = gn
	}
	return gn
}

// peek returns the state of n, or nil if it has none
func (g *constraintGraph) peek(n NodeIndex) *gnode {
	if int(n) >= len(g.nodes) {
		return nil
	}
	return g.nodes[n]
}

// pts returns the points-to set of the representative of n, allocating it if necessary
func (g *constraintGraph) pts(n NodeIndex) ptset.Set {
	gn := g.node(g.f.MergeTarget(n))
	if gn.pts == nil {
		gn.pts = g.newSet()
	}
	return gn.pts
}

// ptsOf returns the points-to set of the representative of n, or nil if it is empty
func (g *constraintGraph) ptsOf(n NodeIndex) ptset.Set {
	if n == InvalidIndex {
		return nil
	}
	gn := g.peek(g.f.MergeTarget(n))
	if gn == nil || gn.pts == nil || gn.pts.IsEmpty() {
		return nil
	}
	return gn.pts
}

// addConstraint adds the constraint of kind between src and dst to the graph and returns true if it is new.
// Endpoints are replaced by their representatives, except the object of an AddrOf. A copy from a node to itself is
// never new.
func (g *constraintGraph) addConstraint(kind ConstraintKind, dst, src NodeIndex, off uint32) bool {
	if dst == InvalidIndex || src == InvalidIndex {
		g.f.InvalidLookups++
		g.f.warn.warnf(warnInvalidIndex, "dropping %s constraint with an invalid endpoint", kind)
		return false
	}
	dst = g.f.MergeTarget(dst)
	if kind != AddrOf {
		src = g.f.MergeTarget(src)
	}
	if kind == Copy && src == dst {
		return false
	}
	c := Constraint{Kind: kind, Dst: dst, Src: src, Offset: off}
	if g.edges[c] {
		return false
	}
	g.edges[c] = true
	site := -1
	switch kind {
	case AddrOf:
		gn := g.node(dst)
		gn.addrOf = append(gn.addrOf, src)
	case Copy:
		g.node(src).copyTo = append(g.node(src).copyTo, dst)
		g.node(dst).copyFrom = append(g.node(dst).copyFrom, src)
		g.copyEdges++
	case Load:
		g.node(src).loadTo = append(g.node(src).loadTo, dst)
	case Store:
		g.node(dst).storeFrom = append(g.node(dst).storeFrom, src)
	case Offset:
		site = len(g.offsets)
		g.offsets = append(g.offsets, &offsetSite{src: src, dst: dst, off: off})
		g.node(src).offsets = append(g.node(src).offsets, site)
	}
	g.pending = append(g.pending, pendingEdge{c: c, site: site})
	g.stats.Constraints[kind]++
	return true
}

// takePending returns the constraints added since the last call and empties the queue
func (g *constraintGraph) takePending() []pendingEdge {
	p := g.pending
	g.pending = nil
	return p
}

// flagFunPtr marks n as the function value or receiver of an indirect call
func (g *constraintGraph) flagFunPtr(n NodeIndex) {
	rep := g.f.MergeTarget(n)
	g.node(rep).funPtr = true
	g.funPtrChanged.Insert(int(rep))
}

// changed must be called when the points-to set of the representative n grows
func (g *constraintGraph) changed(n NodeIndex) {
	if gn := g.peek(n); gn != nil && gn.funPtr {
		g.funPtrChanged.Insert(int(n))
	}
}

// collapse merges the members into rep. The points-to sets and the edges of the members are moved to rep. Reserved
// members other than rep are left untouched. The difference propagation state of rep is reset, so that its next
// propagation sends its whole points-to set along its new edges.
func (g *constraintGraph) collapse(members []NodeIndex, rep NodeIndex) {
	rep = g.f.MergeTarget(rep)
	rn := g.node(rep)
	for _, m := range members {
		m = g.f.MergeTarget(m)
		if m == rep || m < numReservedNodes {
			continue
		}
		mn := g.node(m)
		if mn.pts != nil {
			if rn.pts == nil {
				rn.pts = g.newSet()
			}
			rn.pts.UnionWith(mn.pts)
		}
		rn.addrOf = append(rn.addrOf, mn.addrOf...)
		rn.copyTo = append(rn.copyTo, mn.copyTo...)
		rn.copyFrom = append(rn.copyFrom, mn.copyFrom...)
		rn.loadTo = append(rn.loadTo, mn.loadTo...)
		rn.storeFrom = append(rn.storeFrom, mn.storeFrom...)
		rn.offsets = append(rn.offsets, mn.offsets...)
		for _, i := range mn.offsets {
			g.offsets[i].src = rep
		}
		if mn.funPtr {
			rn.funPtr = true
		}
		g.f.MergeNode(rep, m)
		g.nodes[m] = &gnode{}
		g.stats.NodesMerged++
	}
	rn.prev = nil
	g.normalize(rep)
	if rn.funPtr {
		g.funPtrChanged.Insert(int(rep))
	}
}

// normalize resolves the endpoints of the edges of rep, removes duplicates and self copies, and indexes the
// resolved edges.
func (g *constraintGraph) normalize(rep NodeIndex) {
	rn := g.node(rep)
	rn.addrOf = dedup(rn.addrOf, func(n NodeIndex) NodeIndex { return n })
	rn.copyTo = g.resolveAll(rn.copyTo, rep)
	rn.copyFrom = g.resolveAll(rn.copyFrom, rep)
	rn.loadTo = dedup(rn.loadTo, g.f.MergeTarget)
	rn.storeFrom = dedup(rn.storeFrom, g.f.MergeTarget)
	for _, t := range rn.copyTo {
		g.edges[Constraint{Kind: Copy, Dst: t, Src: rep}] = true
	}
	for _, s := range rn.copyFrom {
		g.edges[Constraint{Kind: Copy, Dst: rep, Src: s}] = true
	}
	for _, t := range rn.loadTo {
		g.edges[Constraint{Kind: Load, Dst: t, Src: rep}] = true
	}
	for _, s := range rn.storeFrom {
		g.edges[Constraint{Kind: Store, Dst: rep, Src: s}] = true
	}
	for _, o := range rn.addrOf {
		g.edges[Constraint{Kind: AddrOf, Dst: rep, Src: o}] = true
	}
}

func (g *constraintGraph) resolveAll(ns []NodeIndex, self NodeIndex) []NodeIndex {
	r := dedup(ns, g.f.MergeTarget)
	k := 0
	for _, n := range r {
		if n != self {
			r[k] = n
			k++
		}
	}
	return r[:k]
}

func dedup(ns []NodeIndex, resolve func(NodeIndex) NodeIndex) []NodeIndex {
	seen := make(map[NodeIndex]bool, len(ns))
	r := ns[:0]
	for _, n := range ns {
		n = resolve(n)
		if !seen[n] {
			seen[n] = true
			r = append(r, n)
		}
	}
	return r
}

// copySuccessors calls do on the representatives of the copy successors of n
func (g *constraintGraph) copySuccessors(n NodeIndex, do func(NodeIndex)) {
	gn := g.peek(n)
	if gn == nil {
		return
	}
	for _, t := range gn.copyTo {
		if t = g.f.MergeTarget(t); t != n {
			do(t)
		}
	}
}

// isRep returns true if n is its own representative
func (g *constraintGraph) isRep(n NodeIndex) bool {
	return g.f.PeekMergeTarget(n) == n
}

// constraints returns the constraints of the graph between representatives, sorted by kind and endpoints
func (g *constraintGraph) constraints() []Constraint {
	seen := map[Constraint]bool{}
	var cs []Constraint
	add := func(c Constraint) {
		if c.Kind == Copy && c.Src == c.Dst {
			return
		}
		if !seen[c] {
			seen[c] = true
			cs = append(cs, c)
		}
	}
	for i, gn := range g.nodes {
		n := NodeIndex(i)
		if gn == nil || !g.isRep(n) {
			continue
		}
		for _, o := range gn.addrOf {
			add(Constraint{Kind: AddrOf, Dst: n, Src: o})
		}
		for _, t := range gn.copyTo {
			add(Constraint{Kind: Copy, Dst: g.f.PeekMergeTarget(t), Src: n})
		}
		for _, t := range gn.loadTo {
			add(Constraint{Kind: Load, Dst: g.f.PeekMergeTarget(t), Src: n})
		}
		for _, s := range gn.storeFrom {
			add(Constraint{Kind: Store, Dst: n, Src: g.f.PeekMergeTarget(s)})
		}
		for _, k := range gn.offsets {
			site := g.offsets[k]
			add(Constraint{Kind: Offset, Dst: g.f.PeekMergeTarget(site.dst), Src: n, Offset: site.off})
		}
	}
	slices.SortFunc(cs, func(a, b Constraint) bool {
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Dst != b.Dst {
			return a.Dst < b.Dst
		}
		if a.Src != b.Src {
			return a.Src < b.Src
		}
		return a.Offset < b.Offset
	})
	return cs
}

// dropWorkingState releases the state only needed while solving
func (g *constraintGraph) dropWorkingState() {
	for _, gn := range g.nodes {
		if gn != nil {
			gn.prev = nil
		}
	}
	for _, site := range g.offsets {
		site.handled.Clear()
	}
	g.pending = nil
	g.funPtrChanged.Clear()
}
