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
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/funcutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// FindAllElementaryCycles finds all elementary cycles in the graph d. Each cycle starts and ends with its
// smallest node. Self loops are cycles of length one.
// This uses Donald B. Johnson's algorithm presented in
// "Finding All The Elementary Circuits of a Directed Graph", 1975
func FindAllElementaryCycles(d *Digraph) [][]int64 {
	s := &state{}
	for start := 0; start < len(d.Keys); {
		fg := Subgraph(d, d.Keys[start:])
		least := int64(-1)
		for _, component := range graph.StrongComponents(fg) {
			if len(component) < 2 && !(len(component) == 1 && fg.Edges[int64(component[0])][int64(component[0])]) {
				continue
			}
			for _, c := range component {
				if least < 0 || int64(c) < least {
					least = int64(c)
				}
			}
		}
		if least < 0 {
			break
		}
		idx, _ := slices.BinarySearch(d.Keys, least)
		component := Subgraph(fg, reachableInComponent(fg, least))
		s.blocked = map[int64]bool{}
		s.blist = map[int64]map[int64]bool{}
		s.stack = nil
		s.circuit(least, least, component)
		start = idx + 1
	}
	return s.cycles
}

// reachableInComponent returns the nodes of the strongly connected component of v in g
func reachableInComponent(g *Digraph, v int64) []int64 {
	for _, component := range graph.StrongComponents(g) {
		if slices.Contains(component, int(v)) {
			ids := make([]int64, len(component))
			for i, c := range component {
				ids[i] = int64(c)
			}
			return ids
		}
	}
	return []int64{v}
}

type state struct {
	blocked map[int64]bool
	blist   map[int64]map[int64]bool
	stack   []int64
	cycles  [][]int64
}

func (s *state) unblock(u int64) {
	s.blocked[u] = false
	for w := range s.blist[u] {
		delete(s.blist[u], w)
		if s.blocked[w] {
			s.unblock(w)
		}
	}
}

func (s *state) circuit(v int64, start int64, g *Digraph) bool {
	f := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	for _, w := range funcutil.SortedKeys(g.Edges[v]) {
		if w == start {
			cycle := make([]int64, len(s.stack), len(s.stack)+1)
			copy(cycle, s.stack)
			s.cycles = append(s.cycles, append(cycle, w))
			f = true
		} else if !s.blocked[w] {
			if s.circuit(w, start, g) {
				f = true
			}
		}
	}

	if f {
		s.unblock(v)
	} else {
		for w := range g.Edges[v] {
			if s.blist[w] == nil {
				s.blist[w] = map[int64]bool{}
			}
			s.blist[w][v] = true
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return f
}
