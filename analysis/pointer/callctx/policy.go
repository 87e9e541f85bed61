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

package callctx

import (
	"fmt"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"golang.org/x/tools/go/ssa"
)

// A Policy creates the contexts of an analysis run.
//
// Contexts returned by a policy before a call to Release must not be mixed with contexts returned after.
type Policy interface {
	// Name returns the name of the policy, as used in the configuration
	Name() string
	// Initial returns the context of the entry points of the analysis
	Initial() *Context
	// Global returns the context of the program elements that are not distinguished by context
	Global() *Context
	// Evolve returns the context of a callee called at site by a caller in context prev
	Evolve(prev *Context, site ssa.CallInstruction) *Context
	// Format prints ctx. If detailed, the instructions of the call sites are printed, otherwise their identifiers.
	Format(ctx *Context, detailed bool) string
	// Release clears the pool of interned contexts
	Release()
	// Len returns the number of contexts interned
	Len() int
}

// base implements the pool management shared by all policies
type base struct {
	pool *pool
}

func (b *base) Initial() *Context {
	return b.pool.intern(key{})
}

func (b *base) Global() *Context {
	return b.pool.intern(key{global: true})
}

func (b *base) Format(ctx *Context, detailed bool) string {
	return format(ctx, detailed)
}

func (b *base) Release() {
	b.pool = newPool()
}

func (b *base) Len() int {
	return b.pool.len()
}

// insensitive is the context-insensitive policy: every call is analyzed in the initial context
type insensitive struct {
	base
}

// Insensitive returns the context-insensitive policy
func Insensitive() Policy {
	return &insensitive{base{newPool()}}
}

func (p *insensitive) Name() string { return config.ContextInsensitive }

// Evolve returns the initial context
func (p *insensitive) Evolve(_ *Context, _ ssa.CallInstruction) *Context {
	return p.Initial()
}

// callString is the k-call-site policy: a context is the sequence of the last k call sites
type callString struct {
	base
	k int
}

// CallString returns the policy whose contexts are the last k call sites. k must be between 1 and MaxDepth.
func CallString(k int) (Policy, error) {
	if k < 1 || k > MaxDepth {
		return nil, fmt.Errorf("call-string depth %d is not in [1, %d]", k, MaxDepth)
	}
	return &callString{base{newPool()}, k}, nil
}

func (p *callString) Name() string { return fmt.Sprintf("%d-callsite", p.k) }

// Evolve appends site to prev, dropping the oldest site when prev has k sites
func (p *callString) Evolve(prev *Context, site ssa.CallInstruction) *Context {
	return p.pool.push(prev, site, p.k)
}

// origin is the origin-sensitive policy: contexts only change at the call sites that create an origin, which are
// the go statements by default. A context is the sequence of the last k origin sites.
type origin struct {
	base
	k        int
	isOrigin func(ssa.CallInstruction) bool
}

// Origin returns the origin-sensitive policy keeping the last k origin sites. If isOrigin is nil, only go
// statements create origins.
func Origin(k int, isOrigin func(ssa.CallInstruction) bool) (Policy, error) {
	if k < 1 || k > MaxDepth {
		return nil, fmt.Errorf("origin depth %d is not in [1, %d]", k, MaxDepth)
	}
	if isOrigin == nil {
		isOrigin = IsGoSite
	}
	return &origin{base{newPool()}, k, isOrigin}, nil
}

func (p *origin) Name() string { return config.ContextOrigin }

// Evolve returns prev, unless site is an origin site
func (p *origin) Evolve(prev *Context, site ssa.CallInstruction) *Context {
	if !p.isOrigin(site) {
		if prev == nil || prev.global {
			return p.Initial()
		}
		return prev
	}
	return p.pool.push(prev, site, p.k)
}

// IsGoSite returns true if site is a go statement
func IsGoSite(site ssa.CallInstruction) bool {
	_, ok := site.(*ssa.Go)
	return ok
}

// New returns the policy selected by the options. isOrigin is used only by the origin-sensitive policy.
func New(opts config.PointerOptions, isOrigin func(ssa.CallInstruction) bool) (Policy, error) {
	switch opts.ContextSensitivity {
	case config.ContextInsensitive, "":
		return Insensitive(), nil
	case config.Context1CallSite:
		return CallString(1)
	case config.Context2CallSite:
		return CallString(2)
	case config.ContextOrigin:
		return Origin(opts.OriginDepth, isOrigin)
	default:
		return nil, fmt.Errorf("unknown context sensitivity %q", opts.ContextSensitivity)
	}
}
