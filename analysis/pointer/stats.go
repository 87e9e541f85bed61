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
	"fmt"
	"io"
	"time"
)

// Stats are the statistics of an analysis run
type Stats struct {
	// Nodes is the number of nodes, ObjectNodes the number of object nodes among them
	Nodes       int
	ObjectNodes int
	// Contexts is the number of contexts created by the policy
	Contexts int
	// FunctionsAnalyzed is the number of (context, function) pairs whose constraints were generated
	FunctionsAnalyzed int
	// Constraints is the number of constraints added, by kind
	Constraints [numConstraintKinds]int

	// ProcessedCopy counts the applications of copy edges, EffectiveCopy those that changed a points-to set
	ProcessedCopy   int
	EffectiveCopy   int
	ProcessedLoad   int
	ProcessedStore  int
	ProcessedOffset int

	// SCCsCollapsed is the number of copy cycles collapsed, NodesMerged the number of nodes merged into others
	SCCsCollapsed int
	NodesMerged   int
	// Rounds is the number of rounds of the solve loop
	Rounds int

	// IndirectSites is the number of indirect call sites in their contexts, IndirectTargets the number of callees
	// linked at those sites, IndirectCapped the number of callees dropped because of max-indirect-targets
	IndirectSites   int
	IndirectTargets int
	IndirectCapped  int
	// UnresolvedIndirect counts the indirect call sites calling into unknown memory
	UnresolvedIndirect int
	// ExternalCalls counts the calls handled by an external function specification
	ExternalCalls int
	// UnresolvedExternals counts the functions without body and without specification
	UnresolvedExternals int

	// MaterializedObjects counts the objects created on demand by offsets out of opaque objects
	MaterializedObjects int
	// InvalidLookups counts the node lookups that failed
	InvalidLookups int

	// Incomplete is true when the solver stopped before reaching the fixpoint
	Incomplete bool

	CollectTime time.Duration
	SolveTime   time.Duration
}

// NumConstraints returns the total number of constraints
func (s *Stats) NumConstraints() int {
	total := 0
	for _, n := range s.Constraints {
		total += n
	}
	return total
}

// Write prints the statistics to w
func (s *Stats) Write(w io.Writer) {
	fmt.Fprintf(w, "nodes: %d (%d objects)\n", s.Nodes, s.ObjectNodes)
	fmt.Fprintf(w, "contexts: %d\n", s.Contexts)
	fmt.Fprintf(w, "functions analyzed: %d\n", s.FunctionsAnalyzed)
	fmt.Fprintf(w, "constraints: %d", s.NumConstraints())
	for k := ConstraintKind(0); k < numConstraintKinds; k++ {
		fmt.Fprintf(w, " %s=%d", k, s.Constraints[k])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "copy edges processed: %d (effective %d)\n", s.ProcessedCopy, s.EffectiveCopy)
	fmt.Fprintf(w, "loads: %d, stores: %d, offsets: %d\n", s.ProcessedLoad, s.ProcessedStore, s.ProcessedOffset)
	fmt.Fprintf(w, "sccs collapsed: %d, nodes merged: %d\n", s.SCCsCollapsed, s.NodesMerged)
	fmt.Fprintf(w, "solver rounds: %d\n", s.Rounds)
	fmt.Fprintf(w, "indirect sites: %d, targets: %d, capped: %d, unresolved: %d\n",
		s.IndirectSites, s.IndirectTargets, s.IndirectCapped, s.UnresolvedIndirect)
	fmt.Fprintf(w, "external calls: %d, unresolved externals: %d\n", s.ExternalCalls, s.UnresolvedExternals)
	if s.MaterializedObjects > 0 || s.InvalidLookups > 0 {
		fmt.Fprintf(w, "materialized objects: %d, invalid lookups: %d\n", s.MaterializedObjects, s.InvalidLookups)
	}
	if s.Incomplete {
		fmt.Fprintln(w, "result is incomplete")
	}
	fmt.Fprintf(w, "collect: %.3f s, solve: %.3f s\n", s.CollectTime.Seconds(), s.SolveTime.Seconds())
}
