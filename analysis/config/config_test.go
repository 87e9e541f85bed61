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

package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

//go:embed testdata
var testfsys embed.FS

func checkMatch(t *testing.T, cid CodeIdentifier, ref CodeIdentifier) {
	t.Helper()
	if !cid.Matches(CompileRegexes(ref)) {
		t.Errorf("%v should be matched by %v", cid, ref)
	}
}

func checkNoMatch(t *testing.T, cid CodeIdentifier, ref CodeIdentifier) {
	t.Helper()
	if cid.Matches(CompileRegexes(ref)) {
		t.Errorf("%v should not be matched by %v", cid, ref)
	}
}

func TestCodeIdentifier_selfMatches(t *testing.T) {
	cid := CodeIdentifier{Package: "a", Method: "b"}
	checkMatch(t, cid, cid)
}

func TestCodeIdentifier_emptyMatchesAny(t *testing.T) {
	checkMatch(t, CodeIdentifier{Package: "a", Receiver: "b", Method: "c"}, CodeIdentifier{})
	checkMatch(t, CodeIdentifier{Package: "de", Receiver: "234jbn", Method: "ef"}, CodeIdentifier{})
}

func TestCodeIdentifier_oneDiff(t *testing.T) {
	cid1 := CodeIdentifier{Package: "a", Receiver: "b"}
	cid2 := CodeIdentifier{Package: "a"}
	checkMatch(t, cid1, cid2)
	checkNoMatch(t, CodeIdentifier{Package: "b", Receiver: "b"}, cid2)
}

func TestCodeIdentifier_regexes(t *testing.T) {
	ref := CodeIdentifier{Package: "(main)|(command-line-arguments)$"}
	checkMatch(t, CodeIdentifier{Package: "main", Method: "b"}, ref)
	checkMatch(t, CodeIdentifier{Package: "command-line-arguments", Method: "b"}, ref)
	checkNoMatch(t, CodeIdentifier{Package: "fmt", Method: "b"}, ref)
}

func TestCodeIdentifier_invalidRegexIsString(t *testing.T) {
	ref := CompileRegexes(CodeIdentifier{Method: "f("})
	if ref.computedRegexs != nil {
		t.Fatalf("regexes should not be compiled for %v", ref)
	}
	checkMatch(t, CodeIdentifier{Package: "p", Method: "f("}, ref)
	checkNoMatch(t, CodeIdentifier{Package: "p", Method: "f"}, ref)
}

func loadFromTestDir(filename string) (string, *Config, error) {
	filename = filepath.Join("testdata", filename)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %v: %v", filename, err)
	}
	config, err := LoadFromBytes(filename, b)
	if err != nil {
		return filename, nil, fmt.Errorf("failed to load file %v: %w", filename, err)
	}
	return filename, config, err
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if err := c.Validate(); err != nil {
		t.Fatalf("default config should be valid: %s", err)
	}
	if c.Pointer.ContextSensitivity != ContextInsensitive {
		t.Errorf("default analysis should be context-insensitive")
	}
	if c.Pointer.CallGraph != CallGraphOnTheFly {
		t.Errorf("default call graph should be built on the fly")
	}
	if c.Pointer.MaxIndirectTargets != DefaultMaxIndirectTargets {
		t.Errorf("default max-indirect-targets should be %d", DefaultMaxIndirectTargets)
	}
	if c.Verbose() {
		t.Errorf("default config should not be verbose")
	}
}

func TestLoadBadFormatFileReturnsError(t *testing.T) {
	_, config, err := loadFromTestDir("bad_format.yaml")
	if config != nil || err == nil {
		t.Errorf("Expected error and nil value when trying to load a badly formatted file.")
	}
}

func TestLoadUnknownSelectorsReturnErrors(t *testing.T) {
	for _, name := range []string{"bad_selector.yaml", "bad_solver.yaml"} {
		_, config, err := loadFromTestDir(name)
		if config != nil || err == nil {
			t.Errorf("Expected error and nil value when loading %s", name)
		}
	}
}

func TestLoadMinimalConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("minimal.yaml")
	if err != nil {
		t.Fatalf("Could not load %s: %s", fileName, err)
	}
	if config.Pointer.ContextSensitivity != ContextOrigin || config.Pointer.OriginDepth != 2 {
		t.Errorf("minimal config should select origin sensitivity of depth 2, got %+v", config.Pointer)
	}
	// unspecified fields keep their defaults
	if config.Pointer.Solver != SolverWorklist || config.Pointer.PointsToSet != PointsToSetSparse {
		t.Errorf("minimal config should keep the default solver and points-to sets, got %+v", config.Pointer)
	}
	if config.LogLevel != int(InfoLevel) {
		t.Errorf("log level should default to info")
	}
}

//gocyclo:ignore
func TestLoadFullConfig(t *testing.T) {
	fileName, config, err := loadFromTestDir("full-config.yaml")
	if config == nil || err != nil {
		t.Fatalf("Could not load %s: %s", fileName, err)
	}
	p := config.Pointer
	if config.LogLevel != int(TraceLevel) {
		t.Error("full config should have set trace")
	}
	if !config.SilenceWarn {
		t.Error("full config should have set silence-warn")
	}
	if p.ContextSensitivity != Context2CallSite {
		t.Error("full config should select 2-callsite")
	}
	if p.Solver != SolverWave {
		t.Error("full config should select the wave solver")
	}
	if p.PointsToSet != PointsToSetHash {
		t.Error("full config should select hash sets")
	}
	if p.CallGraph != CallGraphCha {
		t.Error("full config should select cha")
	}
	if !p.DisableCycleCollapse || !p.StrictCallCompatibility {
		t.Error("full config should set disable-cycle-collapse and strict-call-compatibility")
	}
	if p.MaxIndirectTargets != 12 || p.MaxSolverRounds != 100 {
		t.Error("full config should set max-indirect-targets to 12 and max-solver-rounds to 100")
	}
	if p.SolverTimeout != 30*time.Second {
		t.Errorf("full config should set a timeout of 30s, got %s", p.SolverTimeout)
	}
	if len(p.FunctionSpecs) != 2 {
		t.Error("full config should specify two function spec files")
	}
	if config.RelPath(p.FunctionSpecs[0]) != filepath.Join("testdata", "specs.yaml") {
		t.Errorf("spec files should be relative to the config file, got %s", config.RelPath(p.FunctionSpecs[0]))
	}
	if !config.IsEntryFunction(CodeIdentifier{Package: "example.com/service", Method: "HandleRequest"}) {
		t.Error("full config should have HandleRequest as entry function")
	}
	if config.IsEntryFunction(CodeIdentifier{Package: "example.com/service", Method: "serve"}) {
		t.Error("serve should not be an entry function")
	}
	if !config.IsOriginFunction(CodeIdentifier{Package: "golang.org/x/sync/errgroup", Receiver: "Group",
		Method: "Go"}) {
		t.Error("full config should have errgroup.Group.Go as origin function")
	}
}

func TestLoadSpecFiles(t *testing.T) {
	yamlSpecs, err := readSpecs("specs.yaml")
	if err != nil {
		t.Fatalf("could not load yaml specs: %s", err)
	}
	if len(yamlSpecs) != 5 {
		t.Fatalf("expected 5 yaml specs, got %d", len(yamlSpecs))
	}
	if yamlSpecs[0].Returns != "*arg0" {
		t.Errorf("LoadPointer should return *arg0, got %q", yamlSpecs[0].Returns)
	}
	if len(yamlSpecs[2].Copies) != 1 || !yamlSpecs[2].Copies[0].ReturnsDst {
		t.Errorf("Dup should have one copy effect returning its destination, got %+v", yamlSpecs[2].Copies)
	}
	exit := yamlSpecs[4]
	if !exit.Exit || exit.Match.computedRegexs == nil {
		t.Errorf("os.Exit specification should be a compiled exit match, got %+v", exit)
	}
	if !(CodeIdentifier{Package: "os", Method: "Exit"}).Matches(exit.Match) {
		t.Errorf("os.Exit should match %v", exit.Match)
	}

	tomlSpecs, err := readSpecs("specs.toml")
	if err != nil {
		t.Fatalf("could not load toml specs: %s", err)
	}
	if len(tomlSpecs) != 3 {
		t.Fatalf("expected 3 toml specs, got %d", len(tomlSpecs))
	}
	if tomlSpecs[0].Alloc != "*arg1" || tomlSpecs[1].Returns != "arg0" || !tomlSpecs[2].Ignore {
		t.Errorf("unexpected toml specs %+v", tomlSpecs)
	}
}

func TestLoadSpecFileBadOperand(t *testing.T) {
	_, err := readSpecs("bad_operand.yaml")
	if !errors.Is(err, ErrUnknownSpecOperand) {
		t.Errorf("expected an unknown operand error, got %v", err)
	}
}

func readSpecs(name string) ([]FunctionSpec, error) {
	filename := filepath.Join("testdata", name)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseSpecs(filename, b)
}

func TestParseOperand(t *testing.T) {
	tests := []struct {
		in      string
		want    Operand
		wantErr bool
	}{
		{"", Operand{Kind: OperandNone}, false},
		{"ret", Operand{Kind: OperandRet}, false},
		{"*ret", Operand{Kind: OperandRet, Region: true}, false},
		{"arg3", Operand{Kind: OperandArg, Index: 3}, false},
		{" *arg0 ", Operand{Kind: OperandArg, Index: 0, Region: true}, false},
		{"static", Operand{Kind: OperandStatic}, false},
		{"null", Operand{Kind: OperandNull}, false},
		{"*null", Operand{}, true},
		{"arg-1", Operand{}, true},
		{"foo", Operand{}, true},
	}
	for _, test := range tests {
		got, err := ParseOperand(test.in)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseOperand(%q) error = %v, want error %v", test.in, err, test.wantErr)
			continue
		}
		if !test.wantErr && got != test.want {
			t.Errorf("ParseOperand(%q) = %+v, want %+v", test.in, got, test.want)
		}
		if !test.wantErr && strings.TrimSpace(test.in) != got.String() {
			t.Errorf("%+v should print as %q, got %q", got, strings.TrimSpace(test.in), got.String())
		}
	}
}

func TestLogGroupLevels(t *testing.T) {
	c := NewDefault()
	c.LogLevel = int(WarnLevel)
	l := NewLogGroup(c)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.SetAllFlags(0)
	l.Infof("not printed")
	l.Warnf("printed %d", 1)
	l.Errorf("printed %d", 2)
	out := buf.String()
	if strings.Contains(out, "not printed") {
		t.Errorf("info message should not be printed at warn level: %q", out)
	}
	if !strings.Contains(out, "[WARN] printed 1\n") || !strings.Contains(out, "[ERROR] printed 2\n") {
		t.Errorf("warning and error should be printed with their prefix: %q", out)
	}
}

func TestLogGroupSilenceWarn(t *testing.T) {
	c := NewDefault()
	c.SilenceWarn = true
	l := NewLogGroup(c)
	var buf bytes.Buffer
	l.SetAllOutput(&buf)
	l.Warnf("warning")
	if buf.Len() != 0 {
		t.Errorf("warnings should be silenced, got %q", buf.String())
	}
}
