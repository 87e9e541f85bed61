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
	"context"
	"errors"
	"fmt"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/ptset"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/graphutil"
	"github.com/yourbasic/graph"
	"golang.org/x/tools/container/intsets"
)

// ErrIterationLimit is returned when the solve loop stops after max-solver-rounds rounds without reaching the
// fixpoint
var ErrIterationLimit = errors.New("solver iteration limit reached")

// interruptCheckInterval is the number of steps of a solver between two checks of the context
const interruptCheckInterval = 1024

// languageModel is the interface between the solver and the language front end
type languageModel interface {
	// indexObject returns the object at offset off from obj, or false if there is none
	indexObject(obj NodeIndex, off uint32) (NodeIndex, bool)
	// resolveIndirect links the callees of the indirect calls whose function value or receiver is one of the
	// changed nodes, and returns true if new constraints have been added
	resolveIndirect(changed *intsets.Sparse) bool
	// onTheFly returns true if the indirect calls are resolved during solving
	onTheFly() bool
}

// algorithm is a strategy to propagate the constraints of the graph to a local fixpoint
type algorithm interface {
	name() string
	// run applies the pending constraints and propagates points-to sets until no set changes. Returns an error only
	// when interrupted.
	run(s *solver) error
}

// newAlgorithm returns the algorithm selected by name
func newAlgorithm(name string) (algorithm, error) {
	switch name {
	case config.SolverWorklist, "":
		return &worklist{}, nil
	case config.SolverWave:
		return &wave{}, nil
	case config.SolverNaive:
		return &naive{}, nil
	default:
		return nil, fmt.Errorf("unknown solver %q", name)
	}
}

// solver computes the least fixpoint of a constraint graph
type solver struct {
	f     *NodeFactory
	g     *constraintGraph
	model languageModel
	algo  algorithm
	stats *Stats
	ctx   context.Context

	// collapse enables the detection and merging of copy cycles
	collapse bool
	// maxRounds bounds the number of rounds of the solve loop, <= 0 means no bound
	maxRounds int
	// onRound is called after each round, for tests
	onRound func(round int)
	// onChange is set by the algorithm and called when the points-to set of a representative grows
	onChange func(n NodeIndex)

	steps    int
	analyzed bool
}

func newSolver(f *NodeFactory, g *constraintGraph, model languageModel, algo algorithm, opts config.PointerOptions,
	stats *Stats) *solver {
	return &solver{
		f:         f,
		g:         g,
		model:     model,
		algo:      algo,
		stats:     stats,
		ctx:       context.Background(),
		collapse:  !opts.DisableCycleCollapse,
		maxRounds: opts.MaxSolverRounds,
	}
}

func (s *solver) rep(n NodeIndex) NodeIndex {
	return s.f.MergeTarget(n)
}

// markChanged records that the points-to set of the representative n grew
func (s *solver) markChanged(n NodeIndex) {
	s.g.changed(n)
	if s.onChange != nil {
		s.onChange(n)
	}
}

// tick counts one step and checks regularly whether the solver has been interrupted
func (s *solver) tick() error {
	s.steps++
	if s.steps%interruptCheckInterval == 0 {
		return s.interrupted()
	}
	return nil
}

func (s *solver) interrupted() error {
	if err := s.ctx.Err(); err != nil {
		s.stats.Incomplete = true
		return fmt.Errorf("pointer analysis interrupted: %w", err)
	}
	return nil
}

// solve runs the solve loop: the algorithm propagates the constraints, then the indirect calls are resolved, until
// no new constraint is added.
// solve must be called only once per solver.
func (s *solver) solve(ctx context.Context) error {
	if s.analyzed {
		panic("pointer: a solver can only solve once")
	}
	s.analyzed = true
	if ctx != nil {
		s.ctx = ctx
	}
	for round := 1; ; round++ {
		if s.maxRounds > 0 && round > s.maxRounds {
			s.stats.Incomplete = true
			return ErrIterationLimit
		}
		if err := s.interrupted(); err != nil {
			return err
		}
		if err := s.algo.run(s); err != nil {
			return err
		}
		s.stats.Rounds++
		if s.onRound != nil {
			s.onRound(round)
		}
		again := false
		if s.model.onTheFly() && !s.g.funPtrChanged.IsEmpty() {
			var changed intsets.Sparse
			changed.Copy(&s.g.funPtrChanged)
			s.g.funPtrChanged.Clear()
			again = s.model.resolveIndirect(&changed)
		}
		if !again && len(s.g.pending) == 0 {
			return nil
		}
	}
}

// drainPending applies the constraints added since the last call to the current points-to sets. New edges are
// applied to the whole points-to set of their source, since the destination has never received any element
// through them.
func (s *solver) drainPending() {
	for len(s.g.pending) > 0 {
		for _, p := range s.g.takePending() {
			c := p.c
			switch c.Kind {
			case AddrOf:
				dst := s.rep(c.Dst)
				if s.g.pts(dst).Insert(c.Src) {
					s.markChanged(dst)
				}
			case Copy:
				s.processCopy(c.Src, c.Dst)
			case Load:
				if objs := s.g.ptsOf(c.Src); objs != nil {
					s.processLoad(objs, c.Dst)
				}
			case Store:
				if objs := s.g.ptsOf(c.Dst); objs != nil {
					s.processStore(objs, c.Src)
				}
			case Offset:
				if objs := s.g.ptsOf(c.Src); objs != nil {
					s.processOffset(p.site, objs)
				}
			}
		}
	}
}

// processCopy applies pts(dst) ⊇ pts(src) and returns true if pts(dst) changed
func (s *solver) processCopy(src, dst NodeIndex) bool {
	s.stats.ProcessedCopy++
	src, dst = s.rep(src), s.rep(dst)
	if src == dst {
		return false
	}
	srcPts := s.g.ptsOf(src)
	if srcPts == nil {
		return false
	}
	if s.g.pts(dst).UnionWith(srcPts) {
		s.stats.EffectiveCopy++
		s.markChanged(dst)
		return true
	}
	return false
}

// processCopyDiff applies pts(dst) ⊇ diff and returns true if pts(dst) changed
func (s *solver) processCopyDiff(diff ptset.Set, dst NodeIndex) bool {
	s.stats.ProcessedCopy++
	dst = s.rep(dst)
	if s.g.pts(dst).UnionWith(diff) {
		s.stats.EffectiveCopy++
		s.markChanged(dst)
		return true
	}
	return false
}

// processLoad adds the copy edges o -> dst for every object o of objs, where objs is (part of) the points-to set of
// the pointer of a load dst = *ptr. Returns true if an edge was added.
func (s *solver) processLoad(objs ptset.Set, dst NodeIndex) bool {
	added := false
	objs.ForEach(func(o NodeIndex) {
		if o == NullObj {
			return
		}
		s.stats.ProcessedLoad++
		if s.g.addConstraint(Copy, dst, o, 0) {
			added = true
		}
	})
	return added
}

// processStore adds the copy edges src -> o for every object o of objs, where objs is (part of) the points-to set
// of the pointer of a store *ptr = src. Returns true if an edge was added.
func (s *solver) processStore(objs ptset.Set, src NodeIndex) bool {
	added := false
	objs.ForEach(func(o NodeIndex) {
		if o == NullObj {
			return
		}
		s.stats.ProcessedStore++
		if s.g.addConstraint(Copy, o, src, 0) {
			added = true
		}
	})
	return added
}

// processOffset adds dst ∋ o + off for the objects o of objs not yet handled at the offset site. Offsets out of
// the universal object are the universal object, offsets out of the null object are skipped. Returns true if a
// constraint was added.
func (s *solver) processOffset(site int, objs ptset.Set) bool {
	os := s.g.offsets[site]
	added := false
	objs.ForEach(func(o NodeIndex) {
		if o == NullObj || !os.handled.Insert(int(o)) {
			return
		}
		s.stats.ProcessedOffset++
		target, ok := s.model.indexObject(o, os.off)
		if !ok {
			return
		}
		if s.g.addConstraint(AddrOf, os.dst, target, 0) {
			added = true
		}
	})
	return added
}

// processCopySCC merges the members of a copy cycle into one representative, which receives the union of their
// points-to sets and all their edges. The representative is the reserved member if there is one, otherwise the
// member with the lowest index. Returns the representative.
func (s *solver) processCopySCC(members []NodeIndex) NodeIndex {
	rep := InvalidIndex
	for _, m := range members {
		m = s.rep(m)
		if m < numReservedNodes {
			rep = m
			break
		}
		if rep == InvalidIndex || m < rep {
			rep = m
		}
	}
	for _, m := range members {
		if s.rep(m) != rep {
			s.processCopy(m, rep)
		}
	}
	s.g.collapse(members, rep)
	s.stats.SCCsCollapsed++
	s.markChanged(rep)
	return rep
}

// collapseCycles detects the cycles of copy edges between representatives and merges each of them
func (s *solver) collapseCycles() {
	n := len(s.g.nodes)
	copyGraph := graphutil.FuncGraph{
		N: n,
		Succ: func(v int, do func(w int) bool) bool {
			if !s.g.isRep(NodeIndex(v)) {
				return false
			}
			aborted := false
			s.g.copySuccessors(NodeIndex(v), func(t NodeIndex) {
				if !aborted && int(t) < n {
					aborted = do(int(t))
				}
			})
			return aborted
		},
	}
	for _, component := range graph.StrongComponents(copyGraph) {
		if len(component) < 2 {
			continue
		}
		members := make([]NodeIndex, len(component))
		for i, c := range component {
			members[i] = NodeIndex(c)
		}
		s.processCopySCC(members)
	}
}

// takeDelta returns the part of the points-to set of the representative n that has not been propagated yet, and
// records it as propagated. Returns nil if there is none.
func (s *solver) takeDelta(n NodeIndex) ptset.Set {
	gn := s.g.peek(n)
	if gn == nil || gn.pts == nil || gn.pts.IsEmpty() {
		return nil
	}
	diff := s.g.newSet()
	diff.Copy(gn.pts)
	if gn.prev == nil {
		gn.prev = s.g.newSet()
	} else {
		diff.DifferenceWith(gn.prev)
	}
	if diff.IsEmpty() {
		return nil
	}
	gn.prev.UnionWith(diff)
	return diff
}

// propagateComplex applies the loads, stores and offsets attached to the representative n to the objects of diff
func (s *solver) propagateComplex(n NodeIndex, diff ptset.Set) {
	gn := s.g.peek(n)
	if gn == nil {
		return
	}
	for _, t := range gn.loadTo {
		s.processLoad(diff, t)
	}
	for _, src := range gn.storeFrom {
		s.processStore(diff, src)
	}
	for _, site := range gn.offsets {
		s.processOffset(site, diff)
	}
}
