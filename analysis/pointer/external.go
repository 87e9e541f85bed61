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
	"strings"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer/callctx"
	"golang.org/x/tools/go/ssa"
)

// externals is the table of the specifications of the functions that are not analyzed. Later specifications
// override earlier ones.
type externals struct {
	exact    map[string]config.FunctionSpec
	stripped map[string]config.FunctionSpec
	matches  []config.FunctionSpec
	cache    map[*ssa.Function]*config.FunctionSpec
	reported map[*ssa.Function]bool
	warn     *limitedWarner
	stats    *Stats
}

func newExternals(warn *limitedWarner, stats *Stats) *externals {
	return &externals{
		exact:    map[string]config.FunctionSpec{},
		stripped: map[string]config.FunctionSpec{},
		cache:    map[*ssa.Function]*config.FunctionSpec{},
		reported: map[*ssa.Function]bool{},
		warn:     warn,
		stats:    stats,
	}
}

// add adds specs to the table
func (e *externals) add(specs []config.FunctionSpec) {
	for _, spec := range specs {
		if spec.Function == "" {
			e.matches = append(e.matches, spec)
			continue
		}
		e.exact[spec.Function] = spec
		e.stripped[stripName(spec.Function)] = spec
	}
	e.cache = map[*ssa.Function]*config.FunctionSpec{}
}

// lookup returns the specification of fn: the one with the exact name of fn, then the one with the same name once
// type arguments and receiver markers are stripped, then the last one whose identifier matches fn
func (e *externals) lookup(fn *ssa.Function) (config.FunctionSpec, bool) {
	if fn == nil {
		return config.FunctionSpec{}, false
	}
	if s, ok := e.cache[fn]; ok {
		if s == nil {
			return config.FunctionSpec{}, false
		}
		return *s, true
	}
	var found *config.FunctionSpec
	name := fn.String()
	if s, ok := e.exact[name]; ok {
		found = &s
	} else if s, ok := e.stripped[stripName(name)]; ok {
		found = &s
	} else if len(e.matches) > 0 {
		cid := config.IdentifierOf(fn)
		for i := len(e.matches) - 1; i >= 0; i-- {
			if cid.Matches(e.matches[i].Match) {
				s := e.matches[i]
				found = &s
				break
			}
		}
	}
	e.cache[fn] = found
	if found == nil {
		return config.FunctionSpec{}, false
	}
	return *found, true
}

// reportUnknown records a call to a function without body nor specification
func (e *externals) reportUnknown(fn *ssa.Function) {
	if e.reported[fn] {
		return
	}
	e.reported[fn] = true
	e.stats.UnresolvedExternals++
	e.warn.warnf(warnUnknownExternal, "no body nor specification for %s, its calls have no pointer effect", fn)
}

// stripName removes the type arguments, the receiver parentheses and the pointer markers of a function name:
// "(*pkg.T[int]).M" becomes "pkg.T.M"
func stripName(name string) string {
	var b strings.Builder
	depth := 0
	for _, r := range name {
		switch {
		case r == '[':
			depth++
		case r == ']':
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case r == '(' || r == ')' || r == '*':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// applySpec generates the constraints of a call at site, in ctx, to the external function fn specified by spec
func (g *generator) applySpec(ctx *callctx.Context, site ssa.CallInstruction, fn *ssa.Function,
	spec config.FunctionSpec) {
	if spec.Ignore || spec.Exit {
		return
	}
	call := &specCall{g: g, ctx: ctx, site: site, fn: fn}
	if spec.Alloc != "" {
		if op, err := config.ParseOperand(spec.Alloc); err != nil {
			g.warn.warnf(warnSpecOperand, "alloc of %s: %s", spec.Name(), err)
		} else {
			call.alloc(op)
		}
	}
	for _, c := range spec.Copies {
		dst, err1 := config.ParseOperand(c.Dst)
		src, err2 := config.ParseOperand(c.Src)
		if err1 != nil || err2 != nil {
			g.warn.warnf(warnSpecOperand, "copy %s <- %s of %s cannot be parsed", c.Dst, c.Src, spec.Name())
			continue
		}
		call.copy(dst, src)
		if c.ReturnsDst {
			call.copy(config.Operand{Kind: config.OperandRet}, config.Operand{Kind: dst.Kind, Index: dst.Index})
		}
	}
	if spec.Returns != "" {
		if op, err := config.ParseOperand(spec.Returns); err != nil {
			g.warn.warnf(warnSpecOperand, "returns of %s: %s", spec.Name(), err)
		} else {
			call.copy(config.Operand{Kind: config.OperandRet}, op)
		}
	}
}

// specCall is a call to an external function, whose operands are resolved to nodes
type specCall struct {
	g    *generator
	ctx  *callctx.Context
	site ssa.CallInstruction
	fn   *ssa.Function
}

// value returns the node and the type of the operand, ignoring its region marker
func (c *specCall) value(op config.Operand) (NodeIndex, types.Type) {
	switch op.Kind {
	case config.OperandRet:
		if call, ok := c.site.(*ssa.Call); ok {
			return c.g.valueNode(c.ctx, call), call.Type()
		}
	case config.OperandArg:
		args := c.site.Common().Args
		if c.site.Common().IsInvoke() {
			// argument 0 is the receiver
			if op.Index == 0 {
				v := c.site.Common().Value
				return c.g.valueNode(c.ctx, v), v.Type()
			}
			op.Index--
		}
		if op.Index < len(args) {
			return c.g.valueNode(c.ctx, args[op.Index]), args[op.Index].Type()
		}
		c.g.warn.warnf(warnSpecOperand, "call %s has no argument %d", c.site, op.Index)
	case config.OperandStatic:
		tmp := c.g.f.createTemp(c.ctx, nil)
		c.g.addrOf(tmp, c.g.staticObject(c.fn))
		return tmp, nil
	case config.OperandNull:
		return NullPtr, nil
	}
	return InvalidIndex, nil
}

// siteValue is the allocation site of the objects allocated by the call: the call itself, or the callee for go and
// defer statements, which are not values
func (c *specCall) siteValue() ssa.Value {
	if call, ok := c.site.(*ssa.Call); ok {
		return call
	}
	return c.site.Common().Value
}

// alloc makes the operand point to a fresh object
func (c *specCall) alloc(op config.Operand) {
	n, t := c.value(op)
	if n == InvalidIndex {
		return
	}
	var slots []slot
	if t != nil {
		if op.Region {
			t = derefType(t)
		}
		slots = c.g.layouts.pointeeOf(t)
	}
	obj := c.g.f.createSyntheticBlock(rolePlain, c.siteValue(), c.fn, c.ctx, slots)
	if !op.Region {
		c.g.addrOf(n, obj)
		return
	}
	tmp := c.g.f.createTemp(c.ctx, nil)
	c.g.addrOf(tmp, obj)
	c.g.storeAt(n, 0, tmp)
}

// copy applies dst = src, where region operands denote the memory pointed by the value
func (c *specCall) copy(dst, src config.Operand) {
	d, dt := c.value(dst)
	s, st := c.value(src)
	if d == InvalidIndex || s == InvalidIndex {
		return
	}
	switch {
	case dst.Region && src.Region:
		c.g.lowerBulkCopy(bulkCopy{dst: d, src: s, offsets: c.regionSlots(st, dt)},
			func() NodeIndex { return c.g.f.createTemp(c.ctx, nil) })
	case dst.Region:
		c.g.storeSlots(d, c.regionSlots(dt, nil), s)
	case src.Region:
		c.g.loadSlots(d, s, c.regionSlots(st, nil))
	default:
		c.g.copy(d, s)
	}
}

// regionSlots returns the pointer slots of the memory pointed by a value of type t, or of type alt if t is unknown.
// Unknown regions have one slot.
func (c *specCall) regionSlots(t, alt types.Type) []uint32 {
	if t == nil {
		t = alt
	}
	if t == nil || types.IsInterface(t) {
		return []uint32{0}
	}
	offsets := pointerSlots(c.g.layouts.pointeeOf(t))
	if len(offsets) == 0 {
		return []uint32{0}
	}
	return offsets
}
