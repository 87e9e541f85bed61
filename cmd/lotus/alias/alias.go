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

// Package alias implements the sub-command answering alias queries between the values of a function.
package alias

import (
	"context"
	"fmt"
	"os"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/tools"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/formatutil"
	"golang.org/x/tools/go/ssa"
)

const usage = `Answer alias queries between the values of functions.
Usage:
  lotus alias [options] <package path(s)>
Without -a and -b, all the pairs of pointer values of each function that may alias are printed.
Examples:
Query whether t0 and t3 of main.main alias
  % lotus alias -func 'main\.main$' -a t0 -b t3 .
`

// Flags represents the parsed alias sub-command flags.
type Flags struct {
	tools.CommonFlags
	a   string
	b   string
	all bool
}

// NewFlags returns the parsed alias sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("alias")
	a := flags.FlagSet.String("a", "", "name of the first value of the query")
	b := flags.FlagSet.String("b", "", "name of the second value of the query")
	all := flags.FlagSet.Bool("all", false, "also print the pairs that do not alias")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	if (*a == "") != (*b == "") {
		return Flags{}, fmt.Errorf("-a and -b must be given together")
	}
	return Flags{CommonFlags: common, a: *a, b: *b, all: *all}, nil
}

// Run runs the alias sub-command with flags.
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
		if flags.a != "" {
			if err := query(res, fn, flags.a, flags.b); err != nil {
				return err
			}
			continue
		}
		allPairs(res, fn, flags.all)
	}
	return nil
}

func query(res *pointer.Result, fn *ssa.Function, a, b string) error {
	va, vb := tools.FindValue(fn, a), tools.FindValue(fn, b)
	if va == nil || vb == nil {
		return fmt.Errorf("%s does not have values named %s and %s", fn, a, b)
	}
	fmt.Printf("%s: %s, %s: %s\n", formatutil.Bold(fn.String()), a, b, colored(res.MayAlias(va, vb)))
	return nil
}

func allPairs(res *pointer.Result, fn *ssa.Function, all bool) {
	values := tools.PointerValues(res, fn)
	header := false
	for i, v1 := range values {
		for _, v2 := range values[i+1:] {
			r := res.MayAlias(v1, v2)
			if r == pointer.NoAlias && !all {
				continue
			}
			if !header {
				fmt.Fprintf(os.Stdout, "%s\n", formatutil.Bold(fn.String()))
				header = true
			}
			fmt.Fprintf(os.Stdout, "  %s, %s: %s\n", v1.Name(), v2.Name(), colored(r))
		}
	}
}

func colored(r pointer.AliasResult) string {
	switch r {
	case pointer.MustAlias:
		return formatutil.Red(r)
	case pointer.MayAlias:
		return formatutil.Yellow(r)
	default:
		return formatutil.Green(r)
	}
}
