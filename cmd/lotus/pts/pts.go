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

// Package pts implements the sub-command printing the points-to sets of the values of the selected functions.
package pts

import (
	"context"
	"fmt"
	"go/token"
	"io"
	"os"
	"strings"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/tools"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/formatutil"
	"golang.org/x/tools/go/ssa"
)

const usage = `Print the points-to sets of the pointer values of functions.
Usage:
  lotus pts [options] <package path(s)>
Examples:
Print the points-to sets of the values of main.main, one line per context
  % lotus pts -func 'main\.main$' -contexts ./cmd/server
Print every allocation site the analysis inferred
  % lotus pts -alloc-sites ./cmd/server
`

// Flags represents the parsed pts sub-command flags.
type Flags struct {
	tools.CommonFlags
	contexts   bool
	unknown    bool
	allocSites bool
}

// NewFlags returns the parsed pts sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("pts")
	contexts := flags.FlagSet.Bool("contexts", false, "print the points-to sets in each context separately")
	unknown := flags.FlagSet.Bool("unknown", true, "mark the values that may point to unknown memory")
	allocSites := flags.FlagSet.Bool("alloc-sites", false, "print all the allocation sites of the program")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, contexts: *contexts, unknown: *unknown, allocSites: *allocSites}, nil
}

// Run runs the pts sub-command with flags.
func Run(ctx context.Context, flags Flags) error {
	session, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	res, err := session.Analyze(ctx)
	if err != nil {
		return err
	}
	funcs, err := session.Functions()
	if err != nil {
		return err
	}
	for _, fn := range funcs {
		printFunction(os.Stdout, res, fn, flags)
	}
	if flags.allocSites {
		printAllocSites(os.Stdout, session.Program.Program.Fset, res)
	}
	return nil
}

// printAllocSites prints the allocation sites of res, with their function and position when they have one
func printAllocSites(w io.Writer, fset *token.FileSet, res *pointer.Result) {
	sites := res.AllocationSites()
	fmt.Fprintf(w, "%s\n", formatutil.Bold(fmt.Sprintf("%d allocation sites", len(sites))))
	for _, v := range sites {
		where := ""
		if fn := v.Parent(); fn != nil {
			where = " in " + fn.String()
		}
		if pos := fset.Position(v.Pos()); pos.IsValid() {
			where += " at " + pos.String()
		}
		fmt.Fprintf(w, "  %s%s\n", tools.ValueString(v), where)
	}
}

func printFunction(w io.Writer, res *pointer.Result, fn *ssa.Function, flags Flags) {
	values := tools.PointerValues(res, fn)
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\n", formatutil.Bold(fn.String()))
	for _, v := range values {
		if !flags.contexts {
			fmt.Fprintf(w, "  %s\n    -> %s%s\n", tools.ValueString(v), objects(res.PointsToAll(v)),
				unknownMark(flags.unknown && res.MayPointToUnknown(v)))
			continue
		}
		fmt.Fprintf(w, "  %s\n", tools.ValueString(v))
		for _, c := range res.Contexts(v) {
			fmt.Fprintf(w, "    %s -> %s\n", formatutil.Faint(res.Policy().Format(c, false)),
				objects(res.PointsTo(c, v)))
		}
	}
}

func objects(objs []pointer.Object) string {
	elems := make([]string, len(objs))
	for i, o := range objs {
		elems[i] = o.String()
	}
	return "{" + strings.Join(elems, ", ") + "}"
}

func unknownMark(b bool) string {
	if b {
		return " " + formatutil.Yellow("+ unknown")
	}
	return ""
}
