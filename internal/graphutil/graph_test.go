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

package graphutil

import (
	"testing"

	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/topo"
)

func TestDigraphGonumInterface(t *testing.T) {
	d := callGraphOf()
	if d.Node(42) != nil {
		t.Errorf("absent node should be nil")
	}
	if n := d.Node(3); n == nil || n.ID() != 3 {
		t.Errorf("node 3 should be present")
	}
	from := d.From(1)
	var succ []int64
	for from.Next() {
		succ = append(succ, from.Node().ID())
	}
	if !slices.Equal(succ, []int64{2, 3, 4}) {
		t.Errorf("expected successors [2 3 4] of 1, got %v", succ)
	}
	to := d.To(1)
	if to.Len() != 3 {
		t.Errorf("expected 3 predecessors of 1, got %d", to.Len())
	}
	if !d.HasEdgeFromTo(2, 1) || d.HasEdgeFromTo(1, 5) || !d.HasEdgeBetween(5, 1) {
		t.Errorf("wrong edge relations")
	}
	if e := d.Edge(4, 5); e == nil || e.From().ID() != 4 || e.ReversedEdge().From().ID() != 5 {
		t.Errorf("wrong edge 4 -> 5")
	}

	sccs := topo.TarjanSCC(d)
	nontrivial := 0
	for _, scc := range sccs {
		if len(scc) > 1 {
			nontrivial++
		}
	}
	if nontrivial != 2 {
		t.Errorf("expected 2 recursive components, got %d", nontrivial)
	}
}

func TestFuncGraph(t *testing.T) {
	adj := [][]int{{1}, {2}, {0}, {4}, {}}
	g := FuncGraph{N: len(adj), Succ: func(v int, do func(w int) bool) bool {
		for _, w := range adj[v] {
			if do(w) {
				return true
			}
		}
		return false
	}}
	components := graph.StrongComponents(g)
	found := false
	for _, c := range components {
		if len(c) == 3 {
			slices.Sort(c)
			found = slices.Equal(c, []int{0, 1, 2})
		}
	}
	if !found {
		t.Errorf("expected the component {0, 1, 2}, got %v", components)
	}
	if _, ok := graph.TopSort(g); ok {
		t.Errorf("a cyclic graph has no topological order")
	}
	adj[2] = nil
	order, ok := graph.TopSort(g)
	if !ok || len(order) != 5 {
		t.Errorf("expected a topological order, got %v", order)
	}
}
