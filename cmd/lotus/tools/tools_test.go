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

package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/analysistest"
)

const src = `package main

func use(p *int, n int) {}

func main() {
	x := new(int)
	use(x, 0)
}
`

func TestPointerValues(t *testing.T) {
	prog, pkg := analysistest.BuildSource(t, src)
	cfg := config.NewDefault()
	cfg.SilenceWarn = true
	res, err := pointer.Analyze(context.Background(), prog, cfg)
	if err != nil {
		t.Fatal(err)
	}
	use := analysistest.Func(t, pkg, "use")
	values := PointerValues(res, use)
	if len(values) != 1 || values[0] != use.Params[0] {
		t.Errorf("only the pointer parameter of use has a node, got %v", values)
	}
	if FindValue(use, "p") != use.Params[0] || FindValue(use, "q") != nil {
		t.Errorf("parameters should be found by name")
	}
	main := analysistest.Func(t, pkg, "main")
	alloc := analysistest.Allocs(main, true)[0]
	if FindValue(main, alloc.Name()) != alloc {
		t.Errorf("instructions should be found by name")
	}
	if s := ValueString(alloc); !strings.HasPrefix(s, alloc.Name()+" = new int") {
		t.Errorf("unexpected rendering %q", s)
	}
	if s := ValueString(use.Params[0]); s != "p *int" {
		t.Errorf("unexpected rendering %q", s)
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil || cfg.Pointer.Solver != config.SolverWorklist {
		t.Errorf("an empty path should give the default config")
	}
	if _, err := LoadConfig("does-not-exist.yaml"); err == nil {
		t.Errorf("a missing config file should be an error")
	}
}

func TestCommonFlags(t *testing.T) {
	flags, err := NewCommonFlags("pts", []string{"-verbose", "-func", "main$", "./..."}, "usage")
	if err != nil {
		t.Fatal(err)
	}
	if !flags.Verbose || flags.Func != "main$" || flags.FlagSet.NArg() != 1 || flags.FlagSet.Arg(0) != "./..." {
		t.Errorf("unexpected flags %+v", flags)
	}
}
