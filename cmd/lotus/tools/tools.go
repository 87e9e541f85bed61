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

// Package tools contains the flags, loading and printing functions shared by the lotus sub-commands.
package tools

import (
	"context"
	"flag"
	"fmt"
	"go/build"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/Yanhaoxi/lotus-zju-sub001/analysis"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/config"
	"github.com/Yanhaoxi/lotus-zju-sub001/analysis/pointer"
	"github.com/Yanhaoxi/lotus-zju-sub001/internal/formatutil"
	"golang.org/x/tools/go/buildutil"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// UnparsedCommonFlags are the flags shared by all the sub-commands, before parsing
type UnparsedCommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath *string
	Verbose    *bool
	Func       *string
	NoColor    *bool
}

// NewUnparsedCommonFlags returns the flag set of the sub-command name with the common flags defined
func NewUnparsedCommonFlags(name string) UnparsedCommonFlags {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path for analysis")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	fn := cmd.String("func", "", "regular expression selecting the functions to report on (default: the functions "+
		"of the packages given as argument)")
	noColor := cmd.Bool("no-color", false, "do not color the output")
	cmd.Var((*buildutil.TagsFlag)(&build.Default.BuildTags), "build-tags", buildutil.TagsFlagDoc)
	return UnparsedCommonFlags{
		FlagSet:    cmd,
		ConfigPath: configPath,
		Verbose:    verbose,
		Func:       fn,
		NoColor:    noColor,
	}
}

// CommonFlags are the parsed flags shared by all the sub-commands
type CommonFlags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	Verbose    bool
	Func       string
}

// Parse parses args and returns the common flags
func (u UnparsedCommonFlags) Parse(args []string) (CommonFlags, error) {
	if err := u.FlagSet.Parse(args); err != nil {
		return CommonFlags{}, fmt.Errorf("failed to parse command %s with args %v: %v", u.FlagSet.Name(), args, err)
	}
	if *u.NoColor {
		formatutil.SetColors(false)
	}
	return CommonFlags{
		FlagSet:    u.FlagSet,
		ConfigPath: *u.ConfigPath,
		Verbose:    *u.Verbose,
		Func:       *u.Func,
	}, nil
}

// NewCommonFlags returns the common flags of the sub-command name parsed from args
func NewCommonFlags(name string, args []string, cmdUsage string) (CommonFlags, error) {
	flags := NewUnparsedCommonFlags(name)
	SetUsage(flags.FlagSet, cmdUsage)
	return flags.Parse(args)
}

// SetUsage sets the usage message of cmd
func SetUsage(cmd *flag.FlagSet, cmdUsage string) {
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", cmdUsage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
}

// LoadConfig loads the config file at configPath, or returns the default config if configPath is empty
func LoadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		return config.NewDefault(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config %q: %w", configPath, err)
	}
	return cfg, nil
}

// A Session is a loaded program with the configuration of its analysis
type Session struct {
	Config  *config.Config
	Logger  *config.LogGroup
	Program analysis.LoadedProgram
	Flags   CommonFlags
}

// Load loads the config and the program designated by the positional arguments of flags
func Load(flags CommonFlags) (*Session, error) {
	cfg, err := LoadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}
	if flags.Verbose {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)
	if flags.FlagSet.NArg() == 0 {
		return nil, fmt.Errorf("could not load program: no package to analyze")
	}
	logger.Infof("%s", formatutil.Faint("Reading sources"))
	start := time.Now()
	prog, err := analysis.LoadProgram(nil, "", ssa.InstantiateGenerics, flags.FlagSet.Args())
	if err != nil {
		return nil, fmt.Errorf("could not load program: %v", err)
	}
	logger.Infof("loaded %d packages in %.2f s", len(prog.Packages), time.Since(start).Seconds())
	return &Session{Config: cfg, Logger: logger, Program: prog, Flags: flags}, nil
}

// Analyze runs the pointer analysis of the program of the session with its config
func (s *Session) Analyze(ctx context.Context, opts ...pointer.Option) (*pointer.Result, error) {
	return s.AnalyzeWith(ctx, s.Config, opts...)
}

// AnalyzeWith runs the pointer analysis of the program of the session with cfg
func (s *Session) AnalyzeWith(ctx context.Context, cfg *config.Config, opts ...pointer.Option) (*pointer.Result,
	error) {
	a := pointer.NewAnalysis(s.Program.Program, cfg, append([]pointer.Option{pointer.WithLogger(s.Logger)},
		opts...)...)
	s.Logger.Infof("running the %s", a)
	res, err := a.Run(ctx)
	if err != nil && res == nil {
		return nil, fmt.Errorf("pointer analysis failed: %w", err)
	}
	if err != nil {
		s.Logger.Warnf("the result is partial: %s", err)
	}
	s.Logger.Infof("analysis done: %d nodes, %d constraints, %d solver rounds", res.Stats().Nodes,
		res.Stats().NumConstraints(), res.Stats().Rounds)
	return res, nil
}

// Functions returns the functions with a body selected by the -func flag sorted by name. Without -func, the
// functions of the packages given as argument are selected.
func (s *Session) Functions() ([]*ssa.Function, error) {
	var filter *regexp.Regexp
	if s.Flags.Func != "" {
		r, err := regexp.Compile(s.Flags.Func)
		if err != nil {
			return nil, fmt.Errorf("invalid -func expression: %w", err)
		}
		filter = r
	}
	initial := map[*ssa.Package]bool{}
	for _, p := range s.Program.Packages {
		initial[p] = true
	}
	var funcs []*ssa.Function
	for fn := range ssautil.AllFunctions(s.Program.Program) {
		if len(fn.Blocks) == 0 {
			continue
		}
		if filter != nil && filter.MatchString(fn.String()) || filter == nil && initial[fn.Package()] {
			funcs = append(funcs, fn)
		}
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].String() < funcs[j].String() })
	return funcs, nil
}

// PointerValues returns the values of fn that have a node in res: parameters, free variables and instructions,
// in order
func PointerValues(res *pointer.Result, fn *ssa.Function) []ssa.Value {
	var values []ssa.Value
	add := func(v ssa.Value) {
		if len(res.Nodes().ValueNodesFor(v)) > 0 {
			values = append(values, v)
		}
	}
	for _, p := range fn.Params {
		add(p)
	}
	for _, fv := range fn.FreeVars {
		add(fv)
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if v, ok := instr.(ssa.Value); ok {
				add(v)
			}
		}
	}
	return values
}

// FindValue returns the value of fn named name, or nil
func FindValue(fn *ssa.Function, name string) ssa.Value {
	for _, p := range fn.Params {
		if p.Name() == name {
			return p
		}
	}
	for _, fv := range fn.FreeVars {
		if fv.Name() == name {
			return fv
		}
	}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if v, ok := instr.(ssa.Value); ok && v.Name() == name {
				return v
			}
		}
	}
	return nil
}

// ValueString prints v with its name and its definition when it is an instruction
func ValueString(v ssa.Value) string {
	if _, ok := v.(ssa.Instruction); ok {
		return fmt.Sprintf("%s = %s", v.Name(), v.String())
	}
	return fmt.Sprintf("%s %s", v.Name(), v.Type())
}
