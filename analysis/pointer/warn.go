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
	"fmt"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
)

// warningLimit is the number of warnings of one class that are printed before the class is silenced
const warningLimit = 10

// Classes of rate-limited warnings
const (
	warnInvalidIndex      = "invalid-index"
	warnDuplicateNode     = "duplicate-node"
	warnMergeReserved     = "merge-reserved"
	warnUnknownExternal   = "unknown-external"
	warnIndirectCap       = "indirect-cap"
	warnUnresolvedInvoke  = "unresolved-invoke"
	warnIncompatibleCall  = "incompatible-call"
	warnUnsupportedInstr  = "unsupported-instruction"
	warnSpecOperand       = "spec-operand"
	warnMissingPrebuiltCg = "missing-prebuilt-callgraph"
)

// limitedWarner prints the first warningLimit warnings of each class and counts the others.
type limitedWarner struct {
	logger *config.LogGroup
	counts map[string]int
}

func newLimitedWarner(logger *config.LogGroup) *limitedWarner {
	return &limitedWarner{logger: logger, counts: map[string]int{}}
}

// warnf prints the warning if its class has been printed fewer than warningLimit times
func (w *limitedWarner) warnf(class string, format string, args ...any) {
	w.counts[class]++
	n := w.counts[class]
	if w.logger == nil {
		return
	}
	if n <= warningLimit {
		w.logger.Warnf("%s", fmt.Sprintf(format, args...))
	} else if n == warningLimit+1 {
		w.logger.Warnf("further %s warnings suppressed", class)
	}
}

// count returns the number of warnings of the class, including the suppressed ones
func (w *limitedWarner) count(class string) int {
	return w.counts[class]
}
