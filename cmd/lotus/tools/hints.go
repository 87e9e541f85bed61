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

import "regexp"

var regexCouldNotLoad = regexp.MustCompile("could not load program")

var namedFilesMustBeGoFiles = regexp.MustCompile("-: named files must be .go files: -(\\w)")

var noPackage = regexp.MustCompile("no package to analyze")

var noEntryPoint = regexp.MustCompile("no entry point for the pointer analysis")

var limitReached = regexp.MustCompile("solver iteration limit reached|context deadline exceeded")

// HintForErrorMessage returns a hint for the user for the known error messages, or the empty string
func HintForErrorMessage(errMsg string) string {
	if regexCouldNotLoad.MatchString(errMsg) {
		if namedFilesMustBeGoFiles.MatchString(errMsg) {
			return "all command line flags should be before the path to the Go files to analyze"
		}
		if noPackage.MatchString(errMsg) {
			return "give the packages to analyze after the options, e.g. ./..."
		}
		return "make sure you have provided the right arguments for an analyzer to load a Go program"
	}
	if noEntryPoint.MatchString(errMsg) {
		return "the path should lead to a main package, or the config should list entry-functions"
	}
	if limitReached.MatchString(errMsg) {
		return "increase max-solver-rounds or solver-timeout in the config, or use a less precise context-sensitivity"
	}
	return ""
}
