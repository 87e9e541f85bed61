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

// Package callgraph implements the sub-command printing the call graph built by the pointer analysis.
package callgraph

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/tools"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/formatutil"
	"golang.org/x/tools/go/callgraph"
)

const usage = `Print the call graph built by the pointer analysis.
Usage:
  lotus callgraph [options] <package path(s)>
Examples:
Print the calls, one line per context, and write the graph in dot format
  % lotus callgraph -contexts -dot callgraph.dot .
Print the recursive functions
  % lotus callgraph -cycles .
`

// Flags represents the parsed callgraph sub-command flags.
type Flags struct {
	tools.CommonFlags
	dotOut   string
	contexts bool
	cycles   bool
}

// NewFlags returns the parsed callgraph sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("callgraph")
	dotOut := flags.FlagSet.String("dot", "", "output file for the call graph in dot format")
	contexts := flags.FlagSet.Bool("contexts", false, "print the context-sensitive call graph")
	cycles := flags.FlagSet.Bool("cycles", false, "print the recursive functions and the cycles of the call graph")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, dotOut: *dotOut, contexts: *contexts, cycles: *cycles}, nil
}

// Run runs the callgraph sub-command with flags.
func Run(ctx context.Context, flags Flags) error {
	session, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	res, err := session.Analyze(ctx)
	if err != nil {
		return err
	}
	cg := res.CallGraph()
	if flags.dotOut != "" {
		if err := writeDOT(cg, flags.dotOut); err != nil {
			return err
		}
		session.Logger.Infof("call graph written to %s", flags.dotOut)
	}
	if flags.cycles {
		printCycles(os.Stdout, cg, flags.contexts)
		return nil
	}
	if flags.contexts {
		printContextEdges(os.Stdout, res)
	} else {
		printEdges(os.Stdout, cg.ToSSA())
	}
	return nil
}

func writeDOT(cg *pointer.CallGraph, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", filename, err)
	}
	defer f.Close()
	return cg.WriteDOT(f)
}

// printEdges prints the edges of the call graph projected on functions, sorted
func printEdges(w io.Writer, g *callgraph.Graph) {
	var lines []string
	err := callgraph.GraphVisitEdges(g, func(e *callgraph.Edge) error {
		if e.Caller.Func == nil {
			lines = append(lines, fmt.Sprintf("%s -> %s", formatutil.Faint("<root>"), e.Callee.Func))
			return nil
		}
		lines = append(lines, fmt.Sprintf("%s -> %s", e.Caller.Func, e.Callee.Func))
		return nil
	})
	if err != nil {
		return
	}
	sort.Strings(lines)
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

func printContextEdges(w io.Writer, res *pointer.Result) {
	for _, e := range res.CallGraph().Edges() {
		kind := ""
		if e.Indirect {
			kind = formatutil.Faint(" (indirect)")
		}
		fmt.Fprintf(w, "%s -> %s%s\n", e.Caller, e.Callee, kind)
	}
}

func printCycles(w io.Writer, cg *pointer.CallGraph, contexts bool) {
	recursive := cg.RecursiveFunctions()
	fmt.Fprintf(w, "%s\n", formatutil.Bold(fmt.Sprintf("%d recursive functions", len(recursive))))
	for _, fn := range recursive {
		fmt.Fprintf(w, "  %s\n", fn)
	}
	cycles := cg.ElementaryCycles()
	fmt.Fprintf(w, "%s\n", formatutil.Bold(fmt.Sprintf("%d elementary cycles", len(cycles))))
	for _, cycle := range cycles {
		names := make([]string, len(cycle))
		for i, fn := range cycle {
			names[i] = fn.String()
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, " -> "))
	}
	if !contexts {
		return
	}
	for _, scc := range cg.SCCs() {
		if len(scc) < 2 {
			continue
		}
		fmt.Fprintf(w, "%s\n", formatutil.Bold("context-sensitive cycle:"))
		for _, n := range scc {
			fmt.Fprintf(w, "  %s\n", n)
		}
	}
}
