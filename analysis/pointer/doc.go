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

// Package pointer implements an inclusion-based (Andersen-style) pointer analysis of Go programs in SSA form.
//
// The analysis runs in three phases. During collection, the language model walks the functions reachable from the
// entry points and emits constraints between nodes. A node is either a value (an SSA register or a synthetic
// pointer) or an object (an abstract memory location). Each node has a points-to set, which is a set of object
// nodes. The constraints are
//
//	dst = &obj      AddrOf: pts(dst) ⊇ {obj}
//	dst = src       Copy:   pts(dst) ⊇ pts(src)
//	dst = *src      Load:   pts(dst) ⊇ pts(o) for every o in pts(src)
//	*dst = src      Store:  pts(o) ⊇ pts(src) for every o in pts(dst)
//	dst = &src[k]   Offset: pts(dst) ⊇ {o+k} for every o in pts(src)
//
// During solving, a solver computes the least fixpoint of the constraints, collapsing copy cycles and resolving
// indirect calls as the points-to sets of function values grow. Resolving a call may make new functions reachable,
// in which case the language model emits their constraints and the solver runs again.
//
// During finalization, the call graph is frozen and the working state of the solver is dropped. The Result
// answers alias and points-to queries.
//
// Every allocation site is a block of consecutive object nodes, one per field of the allocated type: structs are
// flattened, arrays and slices have a single element slot, maps have a key slot and a value slot and channels have
// a payload slot. This makes field accesses Offset constraints.
//
// Four nodes are reserved: UniversalPtr points to UniversalObj, which models unknown memory and points to itself,
// and NullPtr points to NullObj, which models the nil pointer. Reserved nodes are never merged into other nodes.
package pointer
