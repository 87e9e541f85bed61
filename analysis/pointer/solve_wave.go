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
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/ptset"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/graphutil"
	"github.com/yourbasic/graph"
)

// wave is the wave propagation solver. Each wave collapses the copy cycles, propagates the differences of the
// points-to sets along the copy edges in topological order, and then applies the complex constraints to the
// differences. Waves are repeated until a wave finds no difference.
type wave struct{}

func (w *wave) name() string { return config.SolverWave }

type delta struct {
	n    NodeIndex
	diff ptset.Set
}

func (w *wave) run(s *solver) error {
	for {
		s.drainPending()
		if s.collapse {
			s.collapseCycles()
			s.drainPending()
		}
		var deltas []delta
		for _, v := range w.order(s) {
			if err := s.tick(); err != nil {
				return err
			}
			n := NodeIndex(v)
			if !s.g.isRep(n) {
				continue
			}
			diff := s.takeDelta(n)
			if diff == nil {
				continue
			}
			s.g.copySuccessors(n, func(t NodeIndex) { s.processCopyDiff(diff, t) })
			deltas = append(deltas, delta{n, diff})
		}
		if len(deltas) == 0 && len(s.g.pending) == 0 {
			return nil
		}
		for _, d := range deltas {
			s.propagateComplex(s.rep(d.n), d.diff)
		}
	}
}

// order returns the nodes in topological order of the copy edges. When the graph has cycles (if cycle collapse is
// disabled), the order is the order of the indices, and the propagation relies on the next waves to reach the
// fixpoint.
func (w *wave) order(s *solver) []int {
	n := len(s.g.nodes)
	copyGraph := graphutil.FuncGraph{
		N: n,
		Succ: func(v int, do func(w int) bool) bool {
			aborted := false
			s.g.copySuccessors(NodeIndex(v), func(t NodeIndex) {
				if !aborted && int(t) < n {
					aborted = do(int(t))
				}
			})
			return aborted
		},
	}
	if order, ok := graph.TopSort(copyGraph); ok {
		return order
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}
