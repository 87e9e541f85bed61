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

// Package dump implements the sub-command writing the internal state of the pointer analysis to files.
package dump

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/tools"
)

const usage = `Write the points-to sets, the constraints and the graphs of the pointer analysis to a directory.
Usage:
  lotus dump [options] <package path(s)>
Examples:
  % lotus dump -out reports ./...
`

// Flags represents the parsed dump sub-command flags.
type Flags struct {
	tools.CommonFlags
	out   string
	stats bool
}

// NewFlags returns the parsed dump sub-command flags from args.
func NewFlags(args []string) (Flags, error) {
	flags := tools.NewUnparsedCommonFlags("dump")
	out := flags.FlagSet.String("out", "", "output directory (default: the reports directory of the config, or .)")
	stats := flags.FlagSet.Bool("stats", true, "print the statistics of the analysis")
	tools.SetUsage(flags.FlagSet, usage)
	common, err := flags.Parse(args)
	if err != nil {
		return Flags{}, err
	}
	return Flags{CommonFlags: common, out: *out, stats: *stats}, nil
}

// Run runs the dump sub-command with flags.
func Run(ctx context.Context, flags Flags) error {
	session, err := tools.Load(flags.CommonFlags)
	if err != nil {
		return err
	}
	res, err := session.Analyze(ctx)
	if err != nil {
		return err
	}
	dir := flags.out
	if dir == "" {
		dir = session.Config.ReportsDir
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}
	for _, r := range reports(res) {
		filename := filepath.Join(dir, r.name)
		if err := writeFile(filename, r.write); err != nil {
			return err
		}
		session.Logger.Infof("%s written to %s", r.what, filename)
	}
	if flags.stats {
		res.Stats().Write(os.Stdout)
	}
	return nil
}

type report struct {
	name  string
	what  string
	write func(io.Writer) error
}

func reports(res *pointer.Result) []report {
	return []report{
		{"points-to.txt", "points-to sets", res.DumpPointsTo},
		{"constraints.txt", "constraints", res.DumpConstraints},
		{"constraints.dot", "constraint graph", res.WriteConstraintGraphDOT},
		{"callgraph.dot", "call graph", res.CallGraph().WriteDOT},
	}
}

func writeFile(filename string, write func(io.Writer) error) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", filename, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("could not write %s: %w", filename, err)
	}
	return f.Close()
}
