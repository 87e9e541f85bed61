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

import "fmt"

// ConstraintKind is the kind of a constraint
type ConstraintKind uint8

const (
	// AddrOf is dst = &src: pts(dst) ⊇ {src}. src is an object.
	AddrOf ConstraintKind = iota
	// Copy is dst = src: pts(dst) ⊇ pts(src)
	Copy
	// Load is dst = *src: pts(dst) ⊇ pts(o) for every o in pts(src)
	Load
	// Store is *dst = src: pts(o) ⊇ pts(src) for every o in pts(dst)
	Store
	// Offset is dst = &src[Offset]: pts(dst) ⊇ {o + Offset} for every o in pts(src)
	Offset
	numConstraintKinds
)

func (k ConstraintKind) String() string {
	switch k {
	case AddrOf:
		return "addr"
	case Copy:
		return "copy"
	case Load:
		return "load"
	case Store:
		return "store"
	case Offset:
		return "offset"
	default:
		return "unknown"
	}
}

// A Constraint between two nodes. The Offset is only meaningful for Offset constraints.
type Constraint struct {
	Kind   ConstraintKind
	Dst    NodeIndex
	Src    NodeIndex
	Offset uint32
}

func (c Constraint) String() string {
	switch c.Kind {
	case AddrOf:
		return fmt.Sprintf("n%d = &n%d", c.Dst, c.Src)
	case Copy:
		return fmt.Sprintf("n%d = n%d", c.Dst, c.Src)
	case Load:
		return fmt.Sprintf("n%d = *n%d", c.Dst, c.Src)
	case Store:
		return fmt.Sprintf("*n%d = n%d", c.Dst, c.Src)
	case Offset:
		return fmt.Sprintf("n%d = &n%d[+%d]", c.Dst, c.Src, c.Offset)
	default:
		return fmt.Sprintf("unknown constraint %d between n%d and n%d", c.Kind, c.Dst, c.Src)
	}
}

// ptr returns the node the constraint is attached to: the pointer of complex constraints, the source of copies,
// the destination of AddrOf.
func (c Constraint) ptr() NodeIndex {
	switch c.Kind {
	case AddrOf:
		return c.Dst
	case Store:
		return c.Dst
	default:
		return c.Src
	}
}
