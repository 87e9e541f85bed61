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

package config

const (
	// DefaultMaxIndirectTargets is the default maximum number of callees linked at one indirect call site in one
	// context.
	DefaultMaxIndirectTargets = 256
	// MaxContextDepth is the largest call-string depth supported by the context policies
	MaxContextDepth = 4

	// ContextInsensitive selects the context-insensitive analysis
	ContextInsensitive = "insensitive"
	// Context1CallSite selects the call-string analysis with one call site
	Context1CallSite = "1-callsite"
	// Context2CallSite selects the call-string analysis with two call sites
	Context2CallSite = "2-callsite"
	// ContextOrigin selects the origin-sensitive analysis: contexts change only at go statements and calls to
	// origin functions
	ContextOrigin = "origin"

	// SolverWorklist is the difference propagation solver with lazy cycle detection
	SolverWorklist = "worklist"
	// SolverWave is the wave propagation solver
	SolverWave = "wave"
	// SolverNaive is the solver applying every constraint in each round. Only useful for testing.
	SolverNaive = "naive"

	// PointsToSetSparse uses sparse bit vectors for the points-to sets
	PointsToSetSparse = "sparse"
	// PointsToSetHash uses hash sets for the points-to sets
	PointsToSetHash = "hash"

	// CallGraphOnTheFly resolves indirect calls while solving
	CallGraphOnTheFly = "on-the-fly"
	// CallGraphCha resolves indirect calls with the class hierarchy analysis before solving
	CallGraphCha = "cha"
	// CallGraphVta resolves indirect calls with the variable type analysis before solving
	CallGraphVta = "vta"
)
