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
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/Yanhaoxi/lotus-zju-sub001/internal/funcutil"
	"github.com/yourbasic/graph"
	"golang.org/x/exp/slices"
)

// callGraphOf builds the graph of
//
//	main -> f1, g; f1 -> f2, f4, f3; f2 -> f1; f3 -> f2; f4 -> f5; f5 -> f1
//	g -> g1, g2, g3; g1 -> f1; g2 -> g; g3 -> g2
func callGraphOf() *Digraph {
	d := NewDigraph()
	names := []string{"main", "f1", "f2", "f3", "f4", "f5", "g", "g1", "g2", "g3"}
	for i, name := range names {
		d.AddNode(int64(i), name)
	}
	for _, e := range [][2]int64{{0, 1}, {0, 6}, {1, 2}, {1, 4}, {1, 3}, {2, 1}, {3, 2}, {4, 5}, {5, 1},
		{6, 7}, {6, 8}, {6, 9}, {7, 1}, {8, 6}, {9, 8}} {
		d.AddEdge(e[0], e[1])
	}
	return d
}

func cycleStrings(cycles [][]int64) []string {
	results := make([]string, len(cycles))
	for i, cycle := range cycles {
		results[i] = strings.Join(
			funcutil.Map(cycle, func(x int64) string { return strconv.Itoa(int(x)) }),
			"")
	}
	sort.Strings(results)
	return results
}

func TestFindAllElementaryCycles(t *testing.T) {
	d := callGraphOf()
	stats := graph.Check(d)
	t.Logf("Stats:\n\tsize: %d\n\tmulti: %d\n\tloops: %d\n\tisolated: %d",
		stats.Size, stats.Multi, stats.Loops, stats.Isolated)

	results := cycleStrings(FindAllElementaryCycles(d))
	expected := []string{"1321", "121", "1451", "686", "6986"}
	sort.Strings(expected)
	if !slices.Equal(results, expected) {
		t.Fatalf("expected cycles %v, got %v", expected, results)
	}
}

func TestFindAllElementaryCyclesSelfLoop(t *testing.T) {
	d := callGraphOf()
	d.AddNode(10, "rec")
	d.AddEdge(10, 10)
	results := cycleStrings(FindAllElementaryCycles(d))
	if len(results) != 6 || !slices.Contains(results, "1010") {
		t.Fatalf("expected the self loop of 10 among the cycles, got %v", results)
	}
}

func TestFindAllElementaryCyclesAcyclic(t *testing.T) {
	d := NewDigraph()
	d.AddEdge(0, 1)
	d.AddEdge(1, 2)
	d.AddEdge(0, 2)
	if cycles := FindAllElementaryCycles(d); len(cycles) != 0 {
		t.Fatalf("expected no cycle, got %v", cycles)
	}
}
