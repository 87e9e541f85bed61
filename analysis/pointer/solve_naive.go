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

import "github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"

// naive is the round-robin solver: every edge of every node is applied to whole points-to sets until nothing
// changes. It never collapses cycles. It is slow and simple, and the other solvers are tested against it.
type naive struct{}

func (*naive) name() string { return config.SolverNaive }

func (*naive) run(s *solver) error {
	changed := false
	s.onChange = func(NodeIndex) { changed = true }
	defer func() { s.onChange = nil }()
	for {
		changed = false
		s.drainPending()
		for i := 0; i < len(s.g.nodes); i++ {
			if err := s.tick(); err != nil {
				return err
			}
			n := NodeIndex(i)
			gn := s.g.nodes[i]
			if gn == nil || gn.pts == nil || !s.g.isRep(n) {
				continue
			}
			for _, t := range gn.copyTo {
				s.processCopy(n, t)
			}
			for _, t := range gn.loadTo {
				if s.processLoad(gn.pts, t) {
					changed = true
				}
			}
			for _, src := range gn.storeFrom {
				if s.processStore(gn.pts, src) {
					changed = true
				}
			}
			for _, site := range gn.offsets {
				if s.processOffset(site, gn.pts) {
					changed = true
				}
			}
		}
		s.drainPending()
		if !changed && len(s.g.pending) == 0 {
			return nil
		}
	}
}
