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

// Package ptset implements the points-to sets of the pointer analysis. The solver only uses the Set interface, so
// the representation can be swapped without changing the solver.
package ptset

import (
	"fmt"
	"strconv"
	"strings"
)

// Elem is an element of a points-to set, the index of an object node.
type Elem = uint32

// Set is a set of object node indices. Sets only grow during an analysis, except when explicitly cleared.
type Set interface {
	// Insert adds x to the set and returns true if the set changed
	Insert(x Elem) bool
	// Has returns true if x is in the set
	Has(x Elem) bool
	// UnionWith adds all the elements of other to the set and returns true if the set changed
	UnionWith(other Set) bool
	// DifferenceWith removes the elements of other from the set
	DifferenceWith(other Set)
	// IntersectsWith returns true if the sets share an element
	IntersectsWith(other Set) bool
	// SubsetOf returns true if all the elements of the set are in other
	SubsetOf(other Set) bool
	// Equals returns true if the sets have the same elements
	Equals(other Set) bool
	// Copy sets the content of the set to the content of other
	Copy(other Set)
	// Len returns the number of elements of the set
	Len() int
	// IsEmpty returns true if the set has no element
	IsEmpty() bool
	// Clear removes all elements of the set
	Clear()
	// TakeMin removes the minimum element of the set and stores it in p. Returns false if the set was empty.
	TakeMin(p *Elem) bool
	// ForEach calls f on every element of the set, in increasing order
	ForEach(f func(Elem))
	// AppendTo appends the elements of the set, in increasing order, to slice
	AppendTo(slice []Elem) []Elem
	// String prints the set as {e1, e2, ...}
	String() string
}

// Factory creates empty sets of one representation
type Factory func() Set

// FactoryOf returns the factory for the representation name, which is "sparse" or "hash". Returns an error if the
// name is not known.
func FactoryOf(name string) (Factory, error) {
	switch name {
	case "sparse", "":
		return NewSparse, nil
	case "hash":
		return NewHash, nil
	default:
		return nil, fmt.Errorf("unknown points-to set representation %q", name)
	}
}

// format prints the elements in the format of String
func format(s Set) string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.ForEach(func(e Elem) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.FormatUint(uint64(e), 10))
	})
	b.WriteByte('}')
	return b.String()
}

// The generic implementations below are used when the two sets have different representations.

func unionGeneric(s Set, other Set) bool {
	changed := false
	other.ForEach(func(e Elem) {
		if s.Insert(e) {
			changed = true
		}
	})
	return changed
}

func intersectsGeneric(s Set, other Set) bool {
	small, large := s, other
	if small.Len() > large.Len() {
		small, large = large, small
	}
	found := false
	small.ForEach(func(e Elem) {
		if !found && large.Has(e) {
			found = true
		}
	})
	return found
}

func subsetGeneric(s Set, other Set) bool {
	if s.Len() > other.Len() {
		return false
	}
	ok := true
	s.ForEach(func(e Elem) {
		if ok && !other.Has(e) {
			ok = false
		}
	})
	return ok
}
