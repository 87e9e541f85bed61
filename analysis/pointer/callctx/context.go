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

// Package callctx implements the calling contexts of the pointer analysis and the policies that create them.
//
// A Context is interned by the Policy that created it: two contexts of the same policy are logically equal if and
// only if they are the same pointer, so contexts can be compared with == and used as map keys. The pool of interned
// contexts belongs to the policy, and a policy is created for each analysis run.
package callctx

import (
	"fmt"
	"strings"

	"golang.org/x/tools/go/ssa"
)

// MaxDepth is the maximum number of call sites in a context
const MaxDepth = 4

// A Context is a bounded sequence of call sites, the oldest first. The global context is the context of the
// program elements that are never distinguished by context (globals, functions as values).
type Context struct {
	id     int
	global bool
	n      int
	sites  [MaxDepth]ssa.CallInstruction
	siteID [MaxDepth]int
}

// ID returns the index of the context in the order of creation of its pool
func (c *Context) ID() int {
	return c.id
}

// IsGlobal returns true if c is the global context
func (c *Context) IsGlobal() bool {
	return c.global
}

// Depth returns the number of call sites in c
func (c *Context) Depth() int {
	return c.n
}

// Sites returns the call sites of c, the oldest first
func (c *Context) Sites() []ssa.CallInstruction {
	return append([]ssa.CallInstruction(nil), c.sites[:c.n]...)
}

// Last returns the most recent call site of c, or nil if c is empty
func (c *Context) Last() ssa.CallInstruction {
	if c.n == 0 {
		return nil
	}
	return c.sites[c.n-1]
}

// String prints the context with the identifiers of its call sites
func (c *Context) String() string {
	return format(c, false)
}

func format(c *Context, detailed bool) string {
	if c == nil {
		return "<nil>"
	}
	if c.global {
		return "[global]"
	}
	elems := make([]string, c.n)
	for i := 0; i < c.n; i++ {
		if detailed {
			elems[i] = siteString(c.sites[i])
		} else {
			elems[i] = fmt.Sprintf("cs%d", c.siteID[i])
		}
	}
	return "[" + strings.Join(elems, " ") + "]"
}

func siteString(site ssa.CallInstruction) string {
	if site == nil {
		return "?"
	}
	s := site.String()
	if fn := site.Parent(); fn != nil && fn.Prog != nil {
		if pos := fn.Prog.Fset.Position(site.Pos()); pos.IsValid() {
			return fmt.Sprintf("%s@%s", s, pos)
		}
		return fmt.Sprintf("%s@%s", s, fn.String())
	}
	return s
}

// key is the structure of a context, used to intern contexts
type key struct {
	global bool
	n      int
	sites  [MaxDepth]ssa.CallInstruction
}

// pool interns contexts. The zero value is not usable, use newPool.
type pool struct {
	byKey   map[key]*Context
	all     []*Context
	siteIDs map[ssa.CallInstruction]int
}

func newPool() *pool {
	return &pool{
		byKey:   map[key]*Context{},
		siteIDs: map[ssa.CallInstruction]int{},
	}
}

// intern returns the unique context with the structure k
func (p *pool) intern(k key) *Context {
	if c, ok := p.byKey[k]; ok {
		return c
	}
	c := &Context{id: len(p.all), global: k.global, n: k.n, sites: k.sites}
	for i := 0; i < k.n; i++ {
		c.siteID[i] = p.siteID(k.sites[i])
	}
	p.byKey[k] = c
	p.all = append(p.all, c)
	return c
}

func (p *pool) siteID(site ssa.CallInstruction) int {
	if id, ok := p.siteIDs[site]; ok {
		return id
	}
	id := len(p.siteIDs)
	p.siteIDs[site] = id
	return id
}

// push returns the context obtained by appending site to prev, keeping at most k sites.
func (p *pool) push(prev *Context, site ssa.CallInstruction, k int) *Context {
	var nk key
	if prev != nil && !prev.global {
		nk.n = prev.n
		nk.sites = prev.sites
	}
	if k <= 0 {
		return p.intern(key{})
	}
	if nk.n >= k {
		// slide the window: drop the oldest sites
		drop := nk.n - k + 1
		copy(nk.sites[:], nk.sites[drop:nk.n])
		for i := nk.n - drop; i < MaxDepth; i++ {
			nk.sites[i] = nil
		}
		nk.n -= drop
	}
	nk.sites[nk.n] = site
	nk.n++
	return p.intern(nk)
}

func (p *pool) len() int {
	return len(p.all)
}
