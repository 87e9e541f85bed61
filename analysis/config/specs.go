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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSpecOperand is returned when an operand of a function specification cannot be parsed
var ErrUnknownSpecOperand = errors.New("unknown operand")

// SpecFile is the content of a file of external function specifications.
//
// A yaml file looks like:
//
//	functions:
//	  - function: sync/atomic.LoadPointer
//	    returns: "*arg0"
//	  - function: sync/atomic.StorePointer
//	    copies:
//	      - dst: "*arg0"
//	        src: arg1
//	  - match:
//	      package: "^os$"
//	      method: "^Exit$"
//	    exit: true
//
// The equivalent toml file uses [[functions]] tables.
type SpecFile struct {
	Functions []FunctionSpec `yaml:"functions" toml:"functions"`
}

// FunctionSpec specifies the pointer effects of a function that is not analyzed. The function is identified either
// by its full name in Function (the name printed by the ssa package, e.g. "(*bytes.Buffer).Bytes") or by the code
// identifier in Match.
type FunctionSpec struct {
	// Function is the full name of the function
	Function string `yaml:"function" toml:"function"`

	// Match identifies the functions by regexes, when Function is empty
	Match CodeIdentifier `yaml:"match" toml:"match"`

	// Ignore marks functions without pointer effects
	Ignore bool `yaml:"ignore" toml:"ignore"`

	// Exit marks functions that do not return
	Exit bool `yaml:"exit" toml:"exit"`

	// Alloc is "ret" for functions returning a fresh object, or "*argN" for functions storing a fresh object in the
	// location pointed by their N-th argument
	Alloc string `yaml:"alloc" toml:"alloc"`

	// Copies lists the copy effects of the function
	Copies []CopySpec `yaml:"copies" toml:"copies"`

	// Returns is "argN" if the result aliases the N-th argument, "*argN" if the result is loaded from it, "static"
	// if the result is an object owned by the function and "null" if the result is always nil
	Returns string `yaml:"returns" toml:"returns"`
}

// CopySpec is one copy effect. Operands are "ret", "argN" or "*argN", where "*" denotes the memory pointed by the
// operand.
type CopySpec struct {
	Dst string `yaml:"dst" toml:"dst"`
	Src string `yaml:"src" toml:"src"`
	// ReturnsDst is true if the function returns its destination operand
	ReturnsDst bool `yaml:"returns-dst" toml:"returns-dst"`
}

// OperandKind is the kind of an operand of a function specification
type OperandKind int

const (
	// OperandNone is the absent operand
	OperandNone OperandKind = iota
	// OperandRet is the result of the function
	OperandRet
	// OperandArg is an argument of the function
	OperandArg
	// OperandStatic is an object owned by the function
	OperandStatic
	// OperandNull is the nil pointer
	OperandNull
)

// Operand is a parsed operand of a function specification
type Operand struct {
	Kind OperandKind
	// Index is the index of the argument, for OperandArg
	Index int
	// Region is true if the operand denotes the memory pointed by the value
	Region bool
}

func (o Operand) String() string {
	prefix := ""
	if o.Region {
		prefix = "*"
	}
	switch o.Kind {
	case OperandRet:
		return prefix + "ret"
	case OperandArg:
		return prefix + "arg" + strconv.Itoa(o.Index)
	case OperandStatic:
		return "static"
	case OperandNull:
		return "null"
	default:
		return ""
	}
}

// ParseOperand parses an operand of a function specification. The empty string is OperandNone.
func ParseOperand(s string) (Operand, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{Kind: OperandNone}, nil
	}
	op := Operand{}
	if strings.HasPrefix(s, "*") {
		op.Region = true
		s = s[1:]
	}
	switch {
	case s == "ret":
		op.Kind = OperandRet
	case s == "static" && !op.Region:
		op.Kind = OperandStatic
	case s == "null" && !op.Region:
		op.Kind = OperandNull
	case strings.HasPrefix(s, "arg"):
		n, err := strconv.Atoi(s[len("arg"):])
		if err != nil || n < 0 {
			return op, fmt.Errorf("%w %q", ErrUnknownSpecOperand, s)
		}
		op.Kind = OperandArg
		op.Index = n
	default:
		return op, fmt.Errorf("%w %q", ErrUnknownSpecOperand, s)
	}
	return op, nil
}

// Validate checks that the operands of the specification can be parsed and are used where they make sense.
func (fs FunctionSpec) Validate() error {
	if fs.Function == "" && fs.Match.IsEmpty() {
		return fmt.Errorf("function specification without function name or match")
	}
	if fs.Alloc != "" {
		op, err := ParseOperand(fs.Alloc)
		if err != nil {
			return fmt.Errorf("alloc of %s: %w", fs.Name(), err)
		}
		if !(op.Kind == OperandRet && !op.Region) && !(op.Kind == OperandArg && op.Region) {
			return fmt.Errorf("alloc of %s must be ret or *argN, not %s", fs.Name(), fs.Alloc)
		}
	}
	for _, c := range fs.Copies {
		dst, err := ParseOperand(c.Dst)
		if err != nil {
			return fmt.Errorf("copy dst of %s: %w", fs.Name(), err)
		}
		src, err := ParseOperand(c.Src)
		if err != nil {
			return fmt.Errorf("copy src of %s: %w", fs.Name(), err)
		}
		if dst.Kind != OperandRet && dst.Kind != OperandArg {
			return fmt.Errorf("copy dst of %s must be ret or an argument", fs.Name())
		}
		if src.Kind == OperandNone || src.Kind == OperandNull {
			return fmt.Errorf("copy src of %s must be set", fs.Name())
		}
	}
	if fs.Returns != "" {
		op, err := ParseOperand(fs.Returns)
		if err != nil {
			return fmt.Errorf("returns of %s: %w", fs.Name(), err)
		}
		if op.Kind == OperandRet {
			return fmt.Errorf("returns of %s cannot be ret", fs.Name())
		}
	}
	return nil
}

// Name returns a printable name of the specification
func (fs FunctionSpec) Name() string {
	if fs.Function != "" {
		return fs.Function
	}
	return fmt.Sprintf("{%s %s %s}", fs.Match.Package, fs.Match.Receiver, fs.Match.Method)
}

// LoadSpecFile loads the function specifications in filename. The format is selected by the extension: ".toml"
// files are parsed as toml, all other files as yaml.
func LoadSpecFile(filename string) ([]FunctionSpec, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read spec file: %w", err)
	}
	return ParseSpecs(filename, b)
}

// ParseSpecs parses the content of a spec file. The name is used to select the format.
func ParseSpecs(name string, b []byte) ([]FunctionSpec, error) {
	var file SpecFile
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		if err := toml.Unmarshal(b, &file); err != nil {
			return nil, fmt.Errorf("could not parse toml spec file %s: %w", name, err)
		}
	default:
		if err := yaml.Unmarshal(b, &file); err != nil {
			return nil, fmt.Errorf("could not parse yaml spec file %s: %w", name, err)
		}
	}
	for i, fs := range file.Functions {
		if err := fs.Validate(); err != nil {
			return nil, fmt.Errorf("in %s: %w", name, err)
		}
		if fs.Function == "" {
			file.Functions[i].Match = CompileRegexes(fs.Match)
		}
	}
	return file.Functions, nil
}

// LoadFunctionSpecs loads all the spec files listed in the config, with paths relative to the config file.
func (c Config) LoadFunctionSpecs() ([]FunctionSpec, error) {
	var all []FunctionSpec
	for _, f := range c.Pointer.FunctionSpecs {
		specs, err := LoadSpecFile(c.RelPath(f))
		if err != nil {
			return nil, err
		}
		all = append(all, specs...)
	}
	return all, nil
}
