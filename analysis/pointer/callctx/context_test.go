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
	"testing"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"golang.org/x/tools/go/ssa"
)

func evolveAll(p Policy, sites ...ssa.CallInstruction) *Context {
	c := p.Initial()
	for _, s := range sites {
		c = p.Evolve(c, s)
	}
	return c
}

func TestInsensitiveIsSingleton(t *testing.T) {
	p := Insensitive()
	a, b := &ssa.Call{}, &ssa.Call{}
	if evolveAll(p, a) != evolveAll(p, b, a) || evolveAll(p, a) != p.Initial() {
		t.Errorf("insensitive policy should always return the initial context")
	}
	if p.Global() == p.Initial() {
		t.Errorf("global and initial contexts should be distinct")
	}
	if !p.Global().IsGlobal() || p.Initial().IsGlobal() {
		t.Errorf("only the global context should be global")
	}
}

func TestCallStringBoundedByK(t *testing.T) {
	a, b, c := &ssa.Call{}, &ssa.Call{}, &ssa.Call{}
	k1, err := CallString(1)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := CallString(2)
	if err != nil {
		t.Fatal(err)
	}
	// [a b] and [c b] differ only beyond the last call site
	if evolveAll(k1, a, b) != evolveAll(k1, c, b) {
		t.Errorf("call strings differing beyond k=1 should be the same 1-callsite context")
	}
	if evolveAll(k2, a, b) == evolveAll(k2, c, b) {
		t.Errorf("call strings differing at depth 2 should be different 2-callsite contexts")
	}
	if evolveAll(k2, a, b) != evolveAll(k2, c, a, b) {
		t.Errorf("2-callsite contexts should only keep the last two call sites")
	}
	ctx := evolveAll(k2, c, a, b)
	if ctx.Depth() != 2 || ctx.Sites()[0] != a || ctx.Last() != b {
		t.Errorf("expected context [a b], got %v", ctx.Sites())
	}
}

func TestCallStringInterning(t *testing.T) {
	p, _ := CallString(2)
	a, b := &ssa.Call{}, &ssa.Call{}
	x := evolveAll(p, a, b)
	y := p.Evolve(p.Evolve(p.Initial(), a), b)
	if x != y {
		t.Errorf("identical call-site sequences should give identical contexts")
	}
	// initial, [a], [a b]
	if p.Len() != 3 {
		t.Errorf("expected 3 interned contexts, got %d", p.Len())
	}
	if p.Evolve(p.Global(), a) != p.Evolve(p.Initial(), a) {
		t.Errorf("evolving from the global context should start from an empty call string")
	}
	if x.String() != "[cs0 cs1]" {
		t.Errorf("unexpected rendering %s", x)
	}
	p.Release()
	if p.Len() != 0 {
		t.Errorf("release should clear the pool")
	}
}

func TestCallStringDepthValidation(t *testing.T) {
	if _, err := CallString(0); err == nil {
		t.Errorf("depth 0 should be rejected")
	}
	if _, err := CallString(MaxDepth + 1); err == nil {
		t.Errorf("depth larger than MaxDepth should be rejected")
	}
}

func TestOriginEvolvesOnlyAtOrigins(t *testing.T) {
	p, err := Origin(1, nil)
	if err != nil {
		t.Fatal(err)
	}
	call, spawn := &ssa.Call{}, &ssa.Go{}
	initial := p.Initial()
	if p.Evolve(initial, call) != initial {
		t.Errorf("a plain call should not change the origin context")
	}
	spawned := p.Evolve(initial, spawn)
	if spawned == initial || spawned.Last() != spawn {
		t.Errorf("a go statement should create a new origin context")
	}
	if p.Evolve(spawned, call) != spawned {
		t.Errorf("calls inside an origin should stay in the origin context")
	}
	custom := &ssa.Call{}
	q, _ := Origin(2, func(site ssa.CallInstruction) bool { return site == custom })
	if q.Evolve(q.Initial(), spawn) != q.Initial() || q.Evolve(q.Initial(), custom) == q.Initial() {
		t.Errorf("the origin predicate should decide which sites create origins")
	}
}

func TestNewFromOptions(t *testing.T) {
	opts := config.NewDefault().Pointer
	cases := map[string]string{
		config.ContextInsensitive: config.ContextInsensitive,
		config.Context1CallSite:   "1-callsite",
		config.Context2CallSite:   "2-callsite",
		config.ContextOrigin:      config.ContextOrigin,
	}
	for selector, name := range cases {
		opts.ContextSensitivity = selector
		p, err := New(opts, nil)
		if err != nil {
			t.Fatalf("could not build policy %s: %s", selector, err)
		}
		if p.Name() != name {
			t.Errorf("policy for %s should be named %s, got %s", selector, name, p.Name())
		}
	}
	opts.ContextSensitivity = "3-callsite"
	if _, err := New(opts, nil); err == nil {
		t.Errorf("unknown selector should be rejected")
	}
}
