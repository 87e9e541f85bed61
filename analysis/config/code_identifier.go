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
	"go/types"
	"regexp"

	"golang.org/x/tools/go/ssa"
)

// A CodeIdentifier identifies a function, by its package path, the name of its receiver type (without the pointer
// marker) and its name. Empty fields match anything.
type CodeIdentifier struct {
	Package  string `yaml:"package" toml:"package"`
	Receiver string `yaml:"receiver" toml:"receiver"`
	Method   string `yaml:"method" toml:"method"`
	// This will not be part of the yaml config
	computedRegexs *codeIdentifierRegex
}

type codeIdentifierRegex struct {
	packageRegex  *regexp.Regexp
	receiverRegex *regexp.Regexp
	methodRegex   *regexp.Regexp
}

// CompileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none.
func CompileRegexes(cid CodeIdentifier) CodeIdentifier {
	packageRegex, err := regexp.Compile(cid.Package)
	if err != nil {
		return cid
	}
	receiverRegex, err := regexp.Compile(cid.Receiver)
	if err != nil {
		return cid
	}
	methodRegex, err := regexp.Compile(cid.Method)
	if err != nil {
		return cid
	}
	cid.computedRegexs = &codeIdentifierRegex{
		packageRegex,
		receiverRegex,
		methodRegex,
	}
	return cid
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (cid *CodeIdentifier) equalOnNonEmptyFields(cidRef CodeIdentifier) bool {
	if cidRef.computedRegexs != nil {
		return ((cidRef.computedRegexs.packageRegex.MatchString(cid.Package)) || (cidRef.Package == "")) &&
			((cidRef.computedRegexs.methodRegex.MatchString(cid.Method)) || (cidRef.Method == "")) &&
			((cidRef.computedRegexs.receiverRegex.MatchString(cid.Receiver)) || (cidRef.Receiver == ""))
	}
	return ((cid.Package == cidRef.Package) || (cidRef.Package == "")) &&
		((cid.Method == cidRef.Method) || (cidRef.Method == "")) &&
		((cid.Receiver == cidRef.Receiver) || (cidRef.Receiver == ""))
}

// Matches returns true if cid (a concrete identifier, with all fields set) is matched by the reference identifier.
func (cid CodeIdentifier) Matches(ref CodeIdentifier) bool {
	return cid.equalOnNonEmptyFields(ref)
}

// IsEmpty returns true if all the fields of the identifier are empty. An empty identifier matches anything.
func (cid CodeIdentifier) IsEmpty() bool {
	return cid.Package == "" && cid.Receiver == "" && cid.Method == ""
}

// ExistsCid is true if there is some x in a such that f(x) is true.
// O(len(a))
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}

// IdentifierOf returns the concrete code identifier of the function fn. The receiver is the name of the receiver
// type, without pointer and type arguments. Functions without package have an empty package path.
func IdentifierOf(fn *ssa.Function) CodeIdentifier {
	if fn == nil {
		return CodeIdentifier{}
	}
	cid := CodeIdentifier{Method: fn.Name()}
	if pkg := fn.Package(); pkg != nil {
		cid.Package = pkg.Pkg.Path()
	} else if obj := fn.Object(); obj != nil && obj.Pkg() != nil {
		cid.Package = obj.Pkg().Path()
	}
	if recv := fn.Signature.Recv(); recv != nil {
		t := recv.Type()
		if p, ok := t.(*types.Pointer); ok {
			t = p.Elem()
		}
		if named, ok := t.(*types.Named); ok {
			cid.Receiver = named.Obj().Name()
		}
	}
	return cid
}
