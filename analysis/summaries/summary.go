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

// Package summaries defines the default specifications of the pointer effects of standard library functions that
// the pointer analysis does not analyze. These specifications are loaded before the specification files of the
// configuration, which may override them.
package summaries

import (
	"sort"
	"strings"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"golang.org/x/tools/go/ssa"
)

// DefaultSpecs returns the specifications of the standard library functions, sorted by function name
func DefaultSpecs() []config.FunctionSpec {
	var specs []config.FunctionSpec
	for _, pkgSpecs := range stdPackages {
		for name, spec := range pkgSpecs {
			spec.Function = name
			specs = append(specs, spec)
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Function < specs[j].Function })
	return specs
}

// SpecOf returns the default specification of the function named name (as printed by the ssa package), and false
// if there is none.
func SpecOf(name string) (config.FunctionSpec, bool) {
	for _, pkgSpecs := range stdPackages {
		if spec, ok := pkgSpecs[name]; ok {
			spec.Function = name
			return spec, true
		}
	}
	return config.FunctionSpec{}, false
}

// IsStdPackage returns true if the input package is in the standard library or the runtime. The standard library
// is defined internally as the list of packages in summaries.stdPackages
//
// Return false if the input is nil.
func IsStdPackage(pkg *ssa.Package) bool {
	if pkg == nil {
		return false
	}
	return IsStdPackageName(pkg.Pkg.Path())
}

// IsStdPackageName returns true if name is the path of a standard library package. Sub-packages of a standard
// package are standard.
func IsStdPackageName(name string) bool {
	if strings.HasPrefix(name, "runtime") || strings.HasPrefix(name, "internal/") || strings.HasPrefix(name, "vendor/") {
		return true
	}
	for name != "" {
		if _, ok := stdPackages[name]; ok {
			return true
		}
		i := strings.LastIndex(name, "/")
		if i < 0 {
			return false
		}
		name = name[:i]
	}
	return false
}

// IsStdFunction returns true if the input function is a function from the standard library or the runtime.
//
// Returns false if the input is nil.
func IsStdFunction(function *ssa.Function) bool {
	if function == nil {
		return false
	}
	return IsStdPackageName(config.IdentifierOf(function).Package)
}

// IsUserDefinedFunction returns true when function is a user-defined function. A function is considered
// to be user-defined if it is not in the standard library (in summaries.stdPackages) or in the runtime.
// For example, the functions in the non-standard library packages are considered user-defined.
func IsUserDefinedFunction(function *ssa.Function) bool {
	if function == nil {
		return false
	}
	pkgKey := config.IdentifierOf(function).Package

	if pkgKey == "" {
		return false
	}
	// Check that it is not in a standard lib package
	return !IsStdPackageName(pkgKey)
}
