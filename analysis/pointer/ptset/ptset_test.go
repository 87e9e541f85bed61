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
	"testing"

	"golang.org/x/exp/slices"
)

var factories = map[string]Factory{
	"sparse": NewSparse,
	"hash":   NewHash,
}

func of(f Factory, elems ...Elem) Set {
	s := f()
	for _, e := range elems {
		s.Insert(e)
	}
	return s
}

func TestInsertHas(t *testing.T) {
	for name, f := range factories {
		s := f()
		if !s.IsEmpty() {
			t.Errorf("%s: new set should be empty", name)
		}
		if !s.Insert(3) || s.Insert(3) {
			t.Errorf("%s: Insert should report a change only the first time", name)
		}
		s.Insert(1000)
		if !s.Has(3) || !s.Has(1000) || s.Has(4) {
			t.Errorf("%s: unexpected membership in %s", name, s)
		}
		if s.Len() != 2 {
			t.Errorf("%s: expected 2 elements, got %d", name, s.Len())
		}
		if s.String() != "{3, 1000}" {
			t.Errorf("%s: unexpected string %s", name, s)
		}
	}
}

func TestUnionReportsChange(t *testing.T) {
	for name, f := range factories {
		for otherName, g := range factories {
			a := of(f, 1, 2)
			b := of(g, 2, 3)
			if !a.UnionWith(b) {
				t.Errorf("%s∪%s: union adding 3 should report a change", name, otherName)
			}
			if a.UnionWith(b) {
				t.Errorf("%s∪%s: second union should not report a change", name, otherName)
			}
			if !slices.Equal(a.AppendTo(nil), []Elem{1, 2, 3}) {
				t.Errorf("%s∪%s: unexpected union %s", name, otherName, a)
			}
			if !b.SubsetOf(a) || a.SubsetOf(b) {
				t.Errorf("%s∪%s: subset relation is wrong between %s and %s", name, otherName, a, b)
			}
		}
	}
}

func TestIntersectsEqualsDifference(t *testing.T) {
	for name, f := range factories {
		for otherName, g := range factories {
			a := of(f, 1, 5, 9)
			b := of(g, 2, 5)
			c := of(g, 7)
			if !a.IntersectsWith(b) || a.IntersectsWith(c) {
				t.Errorf("%s/%s: wrong intersection results", name, otherName)
			}
			d := f()
			d.Copy(a)
			if !d.Equals(a) || !a.Equals(d) {
				t.Errorf("%s/%s: copy should be equal to the original", name, otherName)
			}
			d.DifferenceWith(b)
			if !slices.Equal(d.AppendTo(nil), []Elem{1, 9}) {
				t.Errorf("%s/%s: unexpected difference %s", name, otherName, d)
			}
			if d.Equals(a) {
				t.Errorf("%s/%s: difference should have changed the set", name, otherName)
			}
		}
	}
}

func TestTakeMinAndClear(t *testing.T) {
	for name, f := range factories {
		s := of(f, 8, 2, 5)
		var x Elem
		var taken []Elem
		for s.TakeMin(&x) {
			taken = append(taken, x)
		}
		if !slices.Equal(taken, []Elem{2, 5, 8}) {
			t.Errorf("%s: TakeMin should return elements in increasing order, got %v", name, taken)
		}
		s = of(f, 1, 2)
		s.Clear()
		if !s.IsEmpty() || s.Len() != 0 {
			t.Errorf("%s: cleared set should be empty", name)
		}
	}
}

func TestForEachAllowsMutation(t *testing.T) {
	for name, f := range factories {
		s := of(f, 1, 2, 3)
		var seen []Elem
		s.ForEach(func(e Elem) {
			seen = append(seen, e)
			s.Insert(e + 10)
		})
		if !slices.Equal(seen, []Elem{1, 2, 3}) {
			t.Errorf("%s: ForEach should iterate the elements present at the start, got %v", name, seen)
		}
		if s.Len() != 6 {
			t.Errorf("%s: expected 6 elements after mutation, got %d", name, s.Len())
		}
	}
}

func TestFactoryOf(t *testing.T) {
	if _, err := FactoryOf("sparse"); err != nil {
		t.Errorf("sparse should be known: %s", err)
	}
	if _, err := FactoryOf("hash"); err != nil {
		t.Errorf("hash should be known: %s", err)
	}
	if _, err := FactoryOf("bdd"); err == nil {
		t.Errorf("bdd is not a known representation")
	}
}
