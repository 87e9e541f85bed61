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

package ptset

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Hash is a set represented by a hash map. It is faster than Sparse when the elements are spread over a large range
// of indices.
type Hash struct {
	m map[Elem]struct{}
}

// NewHash returns an empty hash set
func NewHash() Set {
	return &Hash{m: map[Elem]struct{}{}}
}

// Insert adds x to the set and returns true if the set changed
func (h *Hash) Insert(x Elem) bool {
	if _, ok := h.m[x]; ok {
		return false
	}
	h.m[x] = struct{}{}
	return true
}

// Has returns true if x is in the set
func (h *Hash) Has(x Elem) bool {
	_, ok := h.m[x]
	return ok
}

// UnionWith adds all the elements of other to the set and returns true if the set changed
func (h *Hash) UnionWith(other Set) bool {
	if o, ok := other.(*Hash); ok {
		changed := false
		for e := range o.m {
			if _, in := h.m[e]; !in {
				h.m[e] = struct{}{}
				changed = true
			}
		}
		return changed
	}
	return unionGeneric(h, other)
}

// DifferenceWith removes the elements of other from the set
func (h *Hash) DifferenceWith(other Set) {
	if o, ok := other.(*Hash); ok {
		for e := range o.m {
			delete(h.m, e)
		}
		return
	}
	other.ForEach(func(e Elem) { delete(h.m, e) })
}

// IntersectsWith returns true if the sets share an element
func (h *Hash) IntersectsWith(other Set) bool {
	if o, ok := other.(*Hash); ok {
		small, large := h.m, o.m
		if len(small) > len(large) {
			small, large = large, small
		}
		for e := range small {
			if _, in := large[e]; in {
				return true
			}
		}
		return false
	}
	return intersectsGeneric(h, other)
}

// SubsetOf returns true if all the elements of the set are in other
func (h *Hash) SubsetOf(other Set) bool {
	if len(h.m) > other.Len() {
		return false
	}
	for e := range h.m {
		if !other.Has(e) {
			return false
		}
	}
	return true
}

// Equals returns true if the sets have the same elements
func (h *Hash) Equals(other Set) bool {
	return len(h.m) == other.Len() && h.SubsetOf(other)
}

// Copy sets the content of the set to the content of other
func (h *Hash) Copy(other Set) {
	h.m = make(map[Elem]struct{}, other.Len())
	other.ForEach(func(e Elem) { h.m[e] = struct{}{} })
}

// Len returns the number of elements of the set
func (h *Hash) Len() int { return len(h.m) }

// IsEmpty returns true if the set has no element
func (h *Hash) IsEmpty() bool { return len(h.m) == 0 }

// Clear removes all elements of the set
func (h *Hash) Clear() { h.m = map[Elem]struct{}{} }

// TakeMin removes the minimum element of the set and stores it in x
func (h *Hash) TakeMin(x *Elem) bool {
	if len(h.m) == 0 {
		return false
	}
	first := true
	var min Elem
	for e := range h.m {
		if first || e < min {
			min = e
			first = false
		}
	}
	delete(h.m, min)
	*x = min
	return true
}

// ForEach calls f on every element of the set, in increasing order. f may modify the set.
func (h *Hash) ForEach(f func(Elem)) {
	for _, e := range h.sorted() {
		f(e)
	}
}

// AppendTo appends the elements of the set, in increasing order, to slice
func (h *Hash) AppendTo(slice []Elem) []Elem {
	return append(slice, h.sorted()...)
}

func (h *Hash) sorted() []Elem {
	keys := maps.Keys(h.m)
	slices.Sort(keys)
	return keys
}

func (h *Hash) String() string { return format(h) }
