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

import "golang.org/x/tools/container/intsets"

// Sparse is a set represented by a sparse bit vector
type Sparse struct {
	s intsets.Sparse
}

// NewSparse returns an empty sparse set
func NewSparse() Set {
	return &Sparse{}
}

// Insert adds x to the set and returns true if the set changed
func (p *Sparse) Insert(x Elem) bool { return p.s.Insert(int(x)) }

// Has returns true if x is in the set
func (p *Sparse) Has(x Elem) bool { return p.s.Has(int(x)) }

// UnionWith adds all the elements of other to the set and returns true if the set changed
func (p *Sparse) UnionWith(other Set) bool {
	if o, ok := other.(*Sparse); ok {
		return p.s.UnionWith(&o.s)
	}
	return unionGeneric(p, other)
}

// DifferenceWith removes the elements of other from the set
func (p *Sparse) DifferenceWith(other Set) {
	if o, ok := other.(*Sparse); ok {
		p.s.DifferenceWith(&o.s)
		return
	}
	other.ForEach(func(e Elem) { p.s.Remove(int(e)) })
}

// IntersectsWith returns true if the sets share an element
func (p *Sparse) IntersectsWith(other Set) bool {
	if o, ok := other.(*Sparse); ok {
		return p.s.Intersects(&o.s)
	}
	return intersectsGeneric(p, other)
}

// SubsetOf returns true if all the elements of the set are in other
func (p *Sparse) SubsetOf(other Set) bool {
	if o, ok := other.(*Sparse); ok {
		return p.s.SubsetOf(&o.s)
	}
	return subsetGeneric(p, other)
}

// Equals returns true if the sets have the same elements
func (p *Sparse) Equals(other Set) bool {
	if o, ok := other.(*Sparse); ok {
		return p.s.Equals(&o.s)
	}
	return p.Len() == other.Len() && subsetGeneric(p, other)
}

// Copy sets the content of the set to the content of other
func (p *Sparse) Copy(other Set) {
	if o, ok := other.(*Sparse); ok {
		p.s.Copy(&o.s)
		return
	}
	p.s.Clear()
	other.ForEach(func(e Elem) { p.s.Insert(int(e)) })
}

// Len returns the number of elements of the set
func (p *Sparse) Len() int { return p.s.Len() }

// IsEmpty returns true if the set has no element
func (p *Sparse) IsEmpty() bool { return p.s.IsEmpty() }

// Clear removes all elements of the set
func (p *Sparse) Clear() { p.s.Clear() }

// TakeMin removes the minimum element of the set and stores it in x
func (p *Sparse) TakeMin(x *Elem) bool {
	var i int
	if !p.s.TakeMin(&i) {
		return false
	}
	*x = Elem(i)
	return true
}

// ForEach calls f on every element of the set, in increasing order. f may modify the set.
func (p *Sparse) ForEach(f func(Elem)) {
	for _, i := range p.s.AppendTo(nil) {
		f(Elem(i))
	}
}

// AppendTo appends the elements of the set, in increasing order, to slice
func (p *Sparse) AppendTo(slice []Elem) []Elem {
	for _, i := range p.s.AppendTo(nil) {
		slice = append(slice, Elem(i))
	}
	return slice
}

func (p *Sparse) String() string { return format(p) }
