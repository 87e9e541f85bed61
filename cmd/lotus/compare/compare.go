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

// Package compare implements the sub-command comparing the precision and cost of several configurations of the
// pointer analysis on the same program.
package compare

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/tools"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/formatutil"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/ssa"
)

const usage = `Compare context sensitivities and solvers of the pointer analysis on a program.
Usage:
  lotus compare [options] <package path(s)>
The configurations are the product of the -policies and -solvers lists, and run concurrently.
Examples:
  % lotus compare -policies insensitive,1-callsite -solvers worklist,wave .
`

// Flags represents the parsed compare sub-command flags.
type Flags struct {
	tools.CommonFlags
	policies []string
	solvers  []string
}

// NewFlags returns the parsed compare sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("compare")
	policies := flags.FlagSet.String("policies", strings.Join([]string{config.ContextInsensitive,
		config.Context1CallSite, config.Context2CallSite, config.ContextOrigin}, ","),
		"comma-separated list of context sensitivities")
	solvers := flags.FlagSet.String("solvers", config.SolverWorklist, "comma-separated list of solvers")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, policies: split(*policies), solvers: split(*solvers)}, nil
}

func split(s string) []string {
	var r []string
	for _, x := range strings.Split(s, ",") {
		if x = strings.TrimSpace(x); x != "" {
			r = append(r, x)
		}
	}
	return r
}

// row is the outcome of one configuration
type row struct {
	policy, solver string
	stats          *pointer.Stats
	edges          int
	avgPts         float64
	elapsed        time.Duration
}

// Run runs the compare sub-command with flags.
func Run(ctx context.Context, flags Flags) error {
	session, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	funcs, err := session.Functions()
	if err != nil {
		return err
	}
	var rows []*row
	for _, p := range flags.policies {
		for _, s := range flags.solvers {
			rows = append(rows, &row{policy: p, solver: s})
		}
	}
	if len(rows) == 0 {
		return fmt.Errorf("no configuration to compare")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rows {
		r := r
		cfg := *session.Config
		cfg.Pointer.ContextSensitivity = r.policy
		cfg.Pointer.Solver = r.solver
		if err := cfg.Validate(); err != nil {
			return err
		}
		g.Go(func() error {
			start := time.Now()
			res, err := session.AnalyzeWith(gctx, &cfg)
			r.elapsed = time.Since(start)
			if err != nil {
				return fmt.Errorf("%s/%s: %w", r.policy, r.solver, err)
			}
			r.stats = res.Stats()
			r.edges = len(res.CallGraph().Edges())
			r.avgPts = averagePointsTo(res, funcs)
			res.Release()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	printRows(os.Stdout, rows)
	return nil
}

// averagePointsTo is the average number of objects pointed to by the pointer values of funcs
func averagePointsTo(res *pointer.Result, funcs []*ssa.Function) float64 {
	total, n := 0, 0
	for _, fn := range funcs {
		for _, v := range tools.PointerValues(res, fn) {
			total += len(res.PointsToAll(v))
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(total) / float64(n)
}

func printRows(w io.Writer, rows []*row) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "policy\tsolver\tnodes\tcontexts\tconstraints\trounds\tcg edges\tavg |pts|\ttime")
	for _, r := range rows {
		incomplete := ""
		if r.stats.Incomplete {
			incomplete = " " + formatutil.Yellow("(partial)")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%.2f\t%.3fs%s\n", r.policy, r.solver, r.stats.Nodes,
			r.stats.Contexts, r.stats.NumConstraints(), r.stats.Rounds, r.edges, r.avgPts, r.elapsed.Seconds(),
			incomplete)
	}
	tw.Flush()
}
