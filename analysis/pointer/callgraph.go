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
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/graphutil"
	"golang.org/x/exp/slices"
	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/ssa"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// A CallGraph is the context-sensitive call graph computed by the pointer analysis. Its nodes are functions in a
// context, and its edges are labelled by call sites. The root node has no function and calls the entry points of
// the analysis.
type CallGraph struct {
	Root   *CGNode
	nodes  map[cgKey]*CGNode
	order  []*CGNode
	edges  map[cgEdgeKey]*CGEdge
	frozen bool
}

// A CGNode is a function analyzed in a context
type CGNode struct {
	ID      int
	Func    *ssa.Function
	Context *callctx.Context
	In      []*CGEdge
	Out     []*CGEdge
	// External is true if the function is not analyzed, but handled by a specification or ignored
	External bool
}

func (n *CGNode) String() string {
	if n.Func == nil {
		return "<root>"
	}
	return fmt.Sprintf("%s%s", n.Func, n.Context)
}

// A CGEdge is a call from Caller to Callee at Site. Edges from the root have no site.
type CGEdge struct {
	Caller   *CGNode
	Site     ssa.CallInstruction
	Callee   *CGNode
	Indirect bool
}

type cgEdgeKey struct {
	caller, callee *CGNode
	site           ssa.CallInstruction
}

// NewCallGraph returns a call graph containing only the root
func NewCallGraph() *CallGraph {
	cg := &CallGraph{nodes: map[cgKey]*CGNode{}, edges: map[cgEdgeKey]*CGEdge{}}
	cg.Root = &CGNode{ID: 0}
	cg.order = append(cg.order, cg.Root)
	return cg
}

// Node returns the node of fn in ctx, creating it if necessary
func (cg *CallGraph) Node(ctx *callctx.Context, fn *ssa.Function) *CGNode {
	k := cgKey{ctx, fn}
	if n, ok := cg.nodes[k]; ok {
		return n
	}
	if cg.frozen {
		panic("pointer: call graph is frozen")
	}
	n := &CGNode{ID: len(cg.order), Func: fn, Context: ctx}
	cg.nodes[k] = n
	cg.order = append(cg.order, n)
	return n
}

// Lookup returns the node of fn in ctx, or nil
func (cg *CallGraph) Lookup(ctx *callctx.Context, fn *ssa.Function) *CGNode {
	return cg.nodes[cgKey{ctx, fn}]
}

// AddEdge adds the edge caller -site-> callee and returns true if it is new
func (cg *CallGraph) AddEdge(caller *CGNode, site ssa.CallInstruction, callee *CGNode, indirect bool) bool {
	k := cgEdgeKey{caller, callee, site}
	if _, ok := cg.edges[k]; ok {
		return false
	}
	if cg.frozen {
		panic("pointer: call graph is frozen")
	}
	e := &CGEdge{Caller: caller, Site: site, Callee: callee, Indirect: indirect}
	cg.edges[k] = e
	caller.Out = append(caller.Out, e)
	callee.In = append(callee.In, e)
	return true
}

// Nodes returns the nodes of the call graph in creation order, the root first
func (cg *CallGraph) Nodes() []*CGNode {
	return append([]*CGNode(nil), cg.order...)
}

// Edges returns all the edges, grouped by caller in creation order
func (cg *CallGraph) Edges() []*CGEdge {
	var edges []*CGEdge
	for _, n := range cg.order {
		edges = append(edges, n.Out...)
	}
	return edges
}

// CalleesOf returns the functions called at site, in any context, sorted by name
func (cg *CallGraph) CalleesOf(site ssa.CallInstruction) []*ssa.Function {
	var callees []*ssa.Function
	for _, n := range cg.order {
		for _, e := range n.Out {
			if e.Site == site && !slices.Contains(callees, e.Callee.Func) {
				callees = append(callees, e.Callee.Func)
			}
		}
	}
	slices.SortFunc(callees, func(a, b *ssa.Function) bool { return a.String() < b.String() })
	return callees
}

// Freeze makes the call graph read-only. Adding a node or an edge to a frozen call graph panics.
func (cg *CallGraph) Freeze() {
	cg.frozen = true
}

// Frozen returns true if the call graph is read-only
func (cg *CallGraph) Frozen() bool {
	return cg.frozen
}

// ToSSA projects the call graph on functions, merging the contexts. The result is a callgraph.Graph whose root is
// a node without function.
func (cg *CallGraph) ToSSA() *callgraph.Graph {
	g := callgraph.New(nil)
	type siteEdge struct {
		caller, callee *ssa.Function
		site           ssa.CallInstruction
	}
	seen := map[siteEdge]bool{}
	node := func(n *CGNode) *callgraph.Node {
		if n == cg.Root {
			return g.Root
		}
		return g.CreateNode(n.Func)
	}
	for _, n := range cg.order {
		for _, e := range n.Out {
			k := siteEdge{e.Caller.Func, e.Callee.Func, e.Site}
			if seen[k] {
				continue
			}
			seen[k] = true
			callgraph.AddEdge(node(e.Caller), e.Site, node(e.Callee))
		}
	}
	return g
}

// RecursiveFunctions returns the functions that may call themselves, directly or through other functions, sorted by
// name. Contexts are merged.
func (cg *CallGraph) RecursiveFunctions() []*ssa.Function {
	g := simple.NewDirectedGraph()
	ids := map[*ssa.Function]int64{}
	var funcs []*ssa.Function
	var recursive []*ssa.Function
	id := func(fn *ssa.Function) int64 {
		if i, ok := ids[fn]; ok {
			return i
		}
		i := int64(len(funcs))
		ids[fn] = i
		funcs = append(funcs, fn)
		g.AddNode(simple.Node(i))
		return i
	}
	for _, e := range cg.Edges() {
		if e.Caller == cg.Root {
			continue
		}
		from, to := id(e.Caller.Func), id(e.Callee.Func)
		if from == to {
			if !slices.Contains(recursive, e.Caller.Func) {
				recursive = append(recursive, e.Caller.Func)
			}
			continue
		}
		g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
	}
	for _, scc := range topo.TarjanSCC(g) {
		if len(scc) < 2 {
			continue
		}
		for _, n := range scc {
			if fn := funcs[n.ID()]; !slices.Contains(recursive, fn) {
				recursive = append(recursive, fn)
			}
		}
	}
	slices.SortFunc(recursive, func(a, b *ssa.Function) bool { return a.String() < b.String() })
	return recursive
}

// ElementaryCycles returns the elementary cycles of the call graph projected on functions. A cycle starts and ends
// with the same function, the one created first in the call graph.
func (cg *CallGraph) ElementaryCycles() [][]*ssa.Function {
	d := graphutil.NewDigraph()
	ids := map[*ssa.Function]int64{}
	var funcs []*ssa.Function
	id := func(fn *ssa.Function) int64 {
		if i, ok := ids[fn]; ok {
			return i
		}
		i := int64(len(funcs))
		ids[fn] = i
		funcs = append(funcs, fn)
		d.AddNode(i, fn.String())
		return i
	}
	for _, e := range cg.Edges() {
		if e.Caller != cg.Root {
			d.AddEdge(id(e.Caller.Func), id(e.Callee.Func))
		}
	}
	var cycles [][]*ssa.Function
	for _, c := range graphutil.FindAllElementaryCycles(d) {
		cycle := make([]*ssa.Function, len(c))
		for i, n := range c {
			cycle[i] = funcs[n]
		}
		cycles = append(cycles, cycle)
	}
	return cycles
}

// SCCs returns the strongly connected components of the context-sensitive call graph, callees first
func (cg *CallGraph) SCCs() [][]*CGNode {
	return graphutil.StronglyConnectedComponents(cg.order, func(n *CGNode) []*CGNode {
		succs := make([]*CGNode, 0, len(n.Out))
		for _, e := range n.Out {
			succs = append(succs, e.Callee)
		}
		return succs
	})
}

// WriteDOT writes the call graph in graphviz format. Calls from go statements are blue and indirect calls dashed.
func (cg *CallGraph) WriteDOT(w io.Writer) error {
	b := bufio.NewWriter(w)
	fmt.Fprintf(b, "digraph callgraph {\n")
	for _, n := range cg.order {
		if n == cg.Root {
			continue
		}
		shape := "box"
		if n.External {
			shape = "ellipse"
		}
		fmt.Fprintf(b, "  n%d [label=%q, shape=%s];\n", n.ID, n.String(), shape)
	}
	for _, e := range cg.Edges() {
		if e.Caller == cg.Root {
			continue
		}
		fmt.Fprintf(b, "  n%d -> n%d%s;\n", e.Caller.ID, e.Callee.ID, edgeStyle(e))
	}
	fmt.Fprintf(b, "}\n")
	if err := b.Flush(); err != nil {
		return fmt.Errorf("error while writing call graph: %w", err)
	}
	return nil
}

func edgeStyle(e *CGEdge) string {
	var attrs []string
	if _, isGo := e.Site.(*ssa.Go); isGo {
		attrs = append(attrs, "color=blue")
	}
	if e.Indirect {
		attrs = append(attrs, "style=dashed")
	}
	if len(attrs) == 0 {
		return ""
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}
