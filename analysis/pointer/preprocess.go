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
	"go/token"

	"golang.org/x/tools/go/ssa"
)

// preprocessor normalizes the bodies of the functions before constraint generation. A body is normalized once and
// reused in every context of the function.
//
// The normalized body only contains the instructions of the blocks reachable from the entry block or from the
// recover block, and drops the instructions that cannot have any effect on pointers (control flow, arithmetic,
// debug information).
type preprocessor struct {
	bodies map[*ssa.Function][]ssa.Instruction
}

func newPreprocessor() *preprocessor {
	return &preprocessor{bodies: map[*ssa.Function][]ssa.Instruction{}}
}

// body returns the normalized instructions of fn
func (p *preprocessor) body(fn *ssa.Function) []ssa.Instruction {
	if b, ok := p.bodies[fn]; ok {
		return b
	}
	var instrs []ssa.Instruction
	for _, block := range reachableBlocks(fn) {
		for _, instr := range block.Instrs {
			if mayAffectPointers(instr) {
				instrs = append(instrs, instr)
			}
		}
	}
	p.bodies[fn] = instrs
	return instrs
}

// reachableBlocks returns the blocks of fn reachable from the entry block or from the recover block, in index order
func reachableBlocks(fn *ssa.Function) []*ssa.BasicBlock {
	if len(fn.Blocks) == 0 {
		return nil
	}
	reached := make([]bool, len(fn.Blocks))
	stack := []*ssa.BasicBlock{fn.Blocks[0]}
	if fn.Recover != nil {
		stack = append(stack, fn.Recover)
	}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if b.Index < 0 || b.Index >= len(reached) || reached[b.Index] {
			continue
		}
		reached[b.Index] = true
		stack = append(stack, b.Succs...)
	}
	var blocks []*ssa.BasicBlock
	for i, b := range fn.Blocks {
		if reached[i] {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// mayAffectPointers returns false for the instructions that never generate constraints
func mayAffectPointers(instr ssa.Instruction) bool {
	switch x := instr.(type) {
	case *ssa.DebugRef, *ssa.If, *ssa.Jump, *ssa.RunDefers, *ssa.BinOp:
		return false
	case *ssa.UnOp:
		return x.Op == token.MUL || x.Op == token.ARROW
	case *ssa.Return:
		for _, r := range x.Results {
			if hasPointers(r.Type()) {
				return true
			}
		}
		return false
	case *ssa.Store:
		return hasPointers(x.Val.Type())
	case *ssa.MapUpdate:
		return hasPointers(x.Key.Type()) || hasPointers(x.Value.Type())
	}
	return true
}

// bulkCopy is a copy of the slots of a region into another region, such as the copy and append builtins. It is
// lowered into one load and one store per slot that may contain pointers.
type bulkCopy struct {
	dst, src NodeIndex
	offsets  []uint32
}

// lowerBulkCopy emits, for each offset of c, a load of the slot of src into a fresh temporary and a store of the
// temporary into the slot of dst
func (g *generator) lowerBulkCopy(c bulkCopy, tmp func() NodeIndex) {
	for _, off := range c.offsets {
		t := tmp()
		g.loadAt(t, c.src, off)
		g.storeAt(c.dst, off, t)
	}
}
