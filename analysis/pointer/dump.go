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

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// DumpPointsTo writes the points-to set of every representative node with a non-empty set, one per line, in the
// format "n : {o1, o2}" followed by the description of the node
func (r *Result) DumpPointsTo(w io.Writer) error {
	b := bufio.NewWriter(w)
	for i := 0; i < r.f.NumNodes(); i++ {
		n := NodeIndex(i)
		if !r.g.isRep(n) {
			continue
		}
		pts := r.g.ptsOf(n)
		if pts == nil {
			continue
		}
		fmt.Fprintf(b, "%d : %s\t# %s\n", n, pts, r.f.Describe(n))
	}
	return b.Flush()
}

// DumpConstraints writes the constraints between representatives, sorted by kind and endpoints
func (r *Result) DumpConstraints(w io.Writer) error {
	return dumpConstraints(w, r.g)
}

func dumpConstraints(w io.Writer, g *constraintGraph) error {
	b := bufio.NewWriter(w)
	for _, c := range g.constraints() {
		fmt.Fprintln(b, c)
	}
	return b.Flush()
}

// WriteConstraintGraphDOT writes the constraint graph in dot format. Nodes are representatives, labelled by their
// description and the size of their points-to set. Address-of edges go from the object to the pointer.
func (r *Result) WriteConstraintGraphDOT(w io.Writer) error {
	return writeConstraintGraphDOT(w, r.f, r.g)
}

func writeConstraintGraphDOT(w io.Writer, f *NodeFactory, g *constraintGraph) error {
	dg := simple.NewDirectedGraph()
	node := func(n NodeIndex) graph.Node {
		if x := dg.Node(int64(n)); x != nil {
			return x
		}
		label := f.Describe(n)
		if pts := g.ptsOf(n); pts != nil {
			label = fmt.Sprintf("%s |pts|=%d", label, pts.Len())
		}
		x := dotNode{id: int64(n), label: label, object: f.IsObjectNode(n)}
		dg.AddNode(x)
		return x
	}
	for _, c := range g.constraints() {
		from, to := c.Src, c.Dst
		if from == to {
			continue
		}
		var label string
		switch c.Kind {
		case AddrOf:
			label = "&"
		case Load:
			label = "*"
		case Store:
			label = "store"
		case Offset:
			label = fmt.Sprintf("+%d", c.Offset)
		}
		u, v := node(from), node(to)
		if e, ok := dg.Edge(u.ID(), v.ID()).(dotEdge); ok {
			e.labels = append(e.labels, label)
			dg.SetEdge(e)
			continue
		}
		dg.SetEdge(dotEdge{from: u, to: v, labels: []string{label}})
	}
	b, err := dot.Marshal(dg, "constraints", "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal constraint graph: %w", err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("error while writing constraint graph: %w", err)
	}
	return nil
}

type dotNode struct {
	id     int64
	label  string
	object bool
}

func (n dotNode) ID() int64 { return n.id }

func (n dotNode) DOTID() string { return fmt.Sprintf("n%d", n.id) }

func (n dotNode) Attributes() []encoding.Attribute {
	shape := "ellipse"
	if n.object {
		shape = "box"
	}
	return []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%q", n.label)}, {Key: "shape", Value: shape}}
}

type dotEdge struct {
	from, to graph.Node
	labels   []string
}

func (e dotEdge) From() graph.Node { return e.from }

func (e dotEdge) To() graph.Node { return e.to }

func (e dotEdge) ReversedEdge() graph.Edge { return dotEdge{from: e.to, to: e.from, labels: e.labels} }

func (e dotEdge) Attributes() []encoding.Attribute {
	var labels []string
	for _, l := range e.labels {
		if l != "" {
			labels = append(labels, l)
		}
	}
	if len(labels) == 0 {
		return nil
	}
	label := strings.Join(labels, ",")
	return []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%q", label)}}
}
