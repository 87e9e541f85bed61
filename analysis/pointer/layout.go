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
	"go/types"

	"golang.org/x/tools/go/types/typeutil"
)

// A slot is one object node of the block of an allocation
type slot struct {
	typ  types.Type
	path string
}

// layouts computes and caches the blocks of the types of the analyzed program.
//
// A struct is flattened field by field, an array has a single element slot, and every other type has a single slot.
// The elements of a slice or channel are an array block, and the entries of a map are a block with the key slots
// followed by the value slots.
type layouts struct {
	values   typeutil.Map
	elements typeutil.Map
	entries  typeutil.Map
}

// of returns the slots of a value of type t
func (l *layouts) of(t types.Type) []slot {
	if s, ok := l.values.At(t).([]slot); ok {
		return s
	}
	s := flatten(nil, t, "")
	l.values.Set(t, s)
	return s
}

// elementsOf returns the slots of the block of the elements of a slice, array or channel of elem
func (l *layouts) elementsOf(elem types.Type) []slot {
	if s, ok := l.elements.At(elem).([]slot); ok {
		return s
	}
	s := flatten(nil, elem, "[*]")
	l.elements.Set(elem, s)
	return s
}

// entriesOf returns the slots of the block of the entries of the map type m, and the offset of the value slots
func (l *layouts) entriesOf(m *types.Map) ([]slot, uint32) {
	key := len(l.of(m.Key()))
	if s, ok := l.entries.At(m).([]slot); ok {
		return s, uint32(key)
	}
	s := flatten(nil, m.Key(), "[key]")
	s = flatten(s, m.Elem(), "[val]")
	l.entries.Set(m, s)
	return s, uint32(key)
}

// pointeeOf returns the block of the memory pointed by a value of type t: the pointed value of a pointer, the
// elements of a slice or channel, the entries of a map, or a single slot for anything else
func (l *layouts) pointeeOf(t types.Type) []slot {
	switch u := coreType(t).(type) {
	case *types.Pointer:
		return l.of(u.Elem())
	case *types.Slice:
		return l.elementsOf(u.Elem())
	case *types.Chan:
		return l.elementsOf(u.Elem())
	case *types.Map:
		s, _ := l.entriesOf(u)
		return s
	default:
		return []slot{{typ: t}}
	}
}

// fieldOffset returns the offset of the i-th field of st in a block of st
func (l *layouts) fieldOffset(st *types.Struct, i int) uint32 {
	off := 0
	for j := 0; j < i; j++ {
		off += len(l.of(st.Field(j).Type()))
	}
	return uint32(off)
}

func flatten(acc []slot, t types.Type, path string) []slot {
	switch u := t.Underlying().(type) {
	case *types.Struct:
		if u.NumFields() == 0 {
			return append(acc, slot{typ: t, path: path})
		}
		for i := 0; i < u.NumFields(); i++ {
			f := u.Field(i)
			acc = flatten(acc, f.Type(), path+"."+f.Name())
		}
		return acc
	case *types.Array:
		if u.Len() == 0 {
			return append(acc, slot{typ: t, path: path})
		}
		return flatten(acc, u.Elem(), path+"[*]")
	default:
		return append(acc, slot{typ: t, path: path})
	}
}

// pointerSlots returns the indices of the slots that may contain pointers
func pointerSlots(slots []slot) []uint32 {
	var r []uint32
	for i, s := range slots {
		if s.typ == nil || hasPointers(s.typ) {
			r = append(r, uint32(i))
		}
	}
	return r
}

// isPointerLike returns true if a value of type t is a pointer: pointers, unsafe pointers, slices, maps, channels,
// functions and interfaces
func isPointerLike(t types.Type) bool {
	switch u := t.Underlying().(type) {
	case *types.Pointer, *types.Slice, *types.Map, *types.Chan, *types.Signature, *types.Interface:
		return true
	case *types.Basic:
		return u.Kind() == types.UnsafePointer
	}
	return false
}

// hasPointers returns true if a value of type t contains pointers
func hasPointers(t types.Type) bool {
	if t == nil {
		return false
	}
	if isPointerLike(t) {
		return true
	}
	switch u := t.Underlying().(type) {
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if hasPointers(u.Field(i).Type()) {
				return true
			}
		}
	case *types.Array:
		return u.Len() > 0 && hasPointers(u.Elem())
	case *types.Tuple:
		for i := 0; i < u.Len(); i++ {
			if hasPointers(u.At(i).Type()) {
				return true
			}
		}
	}
	return false
}

// derefType returns the element type of a pointer type, or t itself
func derefType(t types.Type) types.Type {
	if t == nil {
		return nil
	}
	if p, ok := coreType(t).(*types.Pointer); ok {
		return p.Elem()
	}
	return t
}

// coreType returns the underlying type of t. For a type parameter, it is the underlying type shared by all the
// terms of its constraint, or nil if the terms do not share one (or there are none).
func coreType(t types.Type) types.Type {
	tp, ok := t.(*types.TypeParam)
	if !ok {
		return t.Underlying()
	}
	iface, ok := tp.Constraint().Underlying().(*types.Interface)
	if !ok {
		return nil
	}
	var core types.Type
	for i := 0; i < iface.NumEmbeddeds(); i++ {
		var terms []types.Type
		switch e := iface.EmbeddedType(i).(type) {
		case *types.Union:
			for j := 0; j < e.Len(); j++ {
				terms = append(terms, e.Term(j).Type())
			}
		default:
			if _, isIface := e.Underlying().(*types.Interface); isIface {
				continue
			}
			terms = append(terms, e)
		}
		for _, term := range terms {
			u := term.Underlying()
			if core == nil {
				core = u
			} else if !types.Identical(core, u) {
				return nil
			}
		}
	}
	return core
}

// mapOf returns the map type of a value of type t, where t may be a type parameter constrained to maps
func mapOf(t types.Type) (*types.Map, bool) {
	m, ok := coreType(t).(*types.Map)
	return m, ok
}
