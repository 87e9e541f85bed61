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

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/alias"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/callgraph"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/compare"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/dump"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/pts"
	"github.com/Yanhaoxi/lotus-zju-sub001/cmd/lotus/tools"
)

// version is the version of the tool, set at link time
var version = "dev"

const usage = `Lotus: Andersen-style pointer analysis for Go programs
Usage:
  lotus [tool] [options] <package path(s)>
Tools:
  - pts: prints the points-to sets of the pointer values of functions
  - alias: answers alias queries between the values of functions
  - callgraph: prints the call graph built by the pointer analysis, or its cycles
  - dump: writes the points-to sets, constraints and graphs of the analysis to a directory
  - compare: compares the cost and precision of several configurations of the analysis
Examples:
  Print the points-to sets of main.main: lotus pts -func 'main\.main$' .
  Write the call graph: lotus callgraph -config=config.yaml -dot cg.dot ./cmd/server`

//gocyclo:ignore
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}

	// hardcode help flag
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	// hardcode version flag
	if snd := os.Args[1]; snd == "-version" || snd == "--version" {
		fmt.Println(version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	args := os.Args[2:]
	var err error
	switch cmd := os.Args[1]; cmd {
	case "pts":
		var flags pts.Flags
		if flags, err = pts.NewFlags(args); err == nil {
			err = pts.Run(ctx, flags)
		}
	case "alias":
		var flags alias.Flags
		if flags, err = alias.NewFlags(args); err == nil {
			err = alias.Run(ctx, flags)
		}
	case "callgraph":
		var flags callgraph.Flags
		if flags, err = callgraph.NewFlags(args); err == nil {
			err = callgraph.Run(ctx, flags)
		}
	case "dump":
		var flags dump.Flags
		if flags, err = dump.NewFlags(args); err == nil {
			err = dump.Run(ctx, flags)
		}
	case "compare":
		var flags compare.Flags
		if flags, err = compare.NewFlags(args); err == nil {
			err = compare.Run(ctx, flags)
		}
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
	if err != nil {
		stop()
		errExit(err)
	}
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	hint := tools.HintForErrorMessage(err.Error())
	if hint != "" {
		fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	}
	os.Exit(2)
}
