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
	"golang.org/x/tools/container/intsets"
)

// cycleDetectionInterval is the number of copy edges added between two detections of copy cycles by the worklist
// solver
const cycleDetectionInterval = 500

// worklist is the difference propagation solver: nodes whose points-to set changed are processed in increasing
// order of index, and only the elements not yet propagated are sent along their edges. Copy cycles are detected
// lazily, each time enough copy edges have been added.
type worklist struct {
	queue intsets.Sparse
	// lastDetection is the number of copy edges of the graph at the last detection of cycles
	lastDetection int
}

func (w *worklist) name() string { return config.SolverWorklist }

func (w *worklist) run(s *solver) error {
	s.onChange = func(n NodeIndex) { w.queue.Insert(int(n)) }
	defer func() { s.onChange = nil }()

	// nodes changed before the first run, during the collection, have not been queued
	for i, gn := range s.g.nodes {
		if gn != nil && gn.pts != nil && s.g.isRep(NodeIndex(i)) {
			w.queue.Insert(i)
		}
	}
	s.drainPending()
	w.detectCycles(s, true)
	var x int
	for w.queue.TakeMin(&x) {
		if err := s.tick(); err != nil {
			return err
		}
		n := s.rep(NodeIndex(x))
		if diff := s.takeDelta(n); diff != nil {
			gn := s.g.peek(n)
			for _, t := range gn.copyTo {
				if t = s.rep(t); t != n {
					s.processCopyDiff(diff, t)
				}
			}
			s.propagateComplex(n, diff)
		}
		s.drainPending()
		w.detectCycles(s, false)
	}
	return nil
}

// detectCycles collapses the copy cycles if forced or if enough copy edges have been added since the last detection
func (w *worklist) detectCycles(s *solver, force bool) {
	if !s.collapse {
		return
	}
	if !force && s.g.copyEdges-w.lastDetection < cycleDetectionInterval {
		return
	}
	if s.g.copyEdges == w.lastDetection {
		return
	}
	w.lastDetection = s.g.copyEdges
	s.collapseCycles()
	s.drainPending()
}
