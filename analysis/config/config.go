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

package config

import (
	"fmt"
	"os"
	"path"
	"time"

	"github.com/Yanhaoxi/lotus-zju-sub001/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	if configFile == "" {
		return NewDefault(), nil
	}
	return Load(configFile)
}

// Config contains the options of the tool and of the pointer analysis.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	// Pointer holds the options of the pointer analysis
	Pointer PointerOptions `yaml:"pointer"`

	sourceFile string
}

// Options are the options that are independent of a particular analysis
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct
	// has been loaded does not specify a ReportsDir but sets any Dump* option to true, then ReportsDir will be
	// created next to the config file.
	ReportsDir string `yaml:"reports-dir"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// PointerOptions selects the variant of the pointer analysis and its safety valves.
type PointerOptions struct {
	// ContextSensitivity is one of "insensitive", "1-callsite", "2-callsite" or "origin"
	ContextSensitivity string `yaml:"context-sensitivity"`

	// OriginDepth is the number of origins kept in an origin-sensitive context
	OriginDepth int `yaml:"origin-depth"`

	// OriginFunctions identify the functions whose calls create a new origin, in addition to go statements
	OriginFunctions []CodeIdentifier `yaml:"origin-functions"`

	// Solver is one of "worklist", "wave" or "naive"
	Solver string `yaml:"solver"`

	// PointsToSet is the backend of the points-to sets, one of "sparse" or "hash"
	PointsToSet string `yaml:"points-to-set"`

	// CallGraph is "on-the-fly" to resolve indirect calls during solving, or "cha" / "vta" to use a call graph
	// computed before the analysis
	CallGraph string `yaml:"callgraph"`

	// DisableCycleCollapse turns off the merging of copy cycles. Results do not change, only performance does.
	DisableCycleCollapse bool `yaml:"disable-cycle-collapse"`

	// MaxIndirectTargets bounds the number of callees linked at an indirect call site in one context.
	// If MaxIndirectTargets <= 0, then DefaultMaxIndirectTargets is used.
	MaxIndirectTargets int `yaml:"max-indirect-targets"`

	// MaxSolverRounds bounds the number of rounds of the solve loop. If <= 0, it is ignored.
	MaxSolverRounds int `yaml:"max-solver-rounds"`

	// SolverTimeout bounds the duration of the solving phase. If 0, it is ignored.
	SolverTimeout time.Duration `yaml:"solver-timeout"`

	// StrictCallCompatibility requires indirect callees to have a signature identical to the call's signature.
	// Otherwise, only the arity and the pointer-ness of parameters and results are compared.
	StrictCallCompatibility bool `yaml:"strict-call-compatibility"`

	// DumpConstraintGraph writes the constraint graph in dot format to the reports directory, before and after
	// solving
	DumpConstraintGraph bool `yaml:"dump-constraint-graph"`

	// DumpCallGraph writes the call graph in dot format to the reports directory
	DumpCallGraph bool `yaml:"dump-callgraph"`

	// DumpPointsTo writes the points-to sets to the reports directory
	DumpPointsTo bool `yaml:"dump-points-to"`

	// FunctionSpecs lists the files containing specifications of external functions. Paths are relative to the
	// config file.
	FunctionSpecs []string `yaml:"function-specs"`

	// EntryFunctions identify the functions analyzed as roots, in addition to the main and init functions of the
	// main packages
	EntryFunctions []CodeIdentifier `yaml:"entry-functions"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile: "",
		Options: Options{
			ReportsDir:  "",
			LogLevel:    int(InfoLevel),
			SilenceWarn: false,
		},
		Pointer: PointerOptions{
			ContextSensitivity: ContextInsensitive,
			OriginDepth:        1,
			Solver:             SolverWorklist,
			PointsToSet:        PointsToSetSparse,
			CallGraph:          CallGraphOnTheFly,
			MaxIndirectTargets: DefaultMaxIndirectTargets,
			MaxSolverRounds:    0,
			FunctionSpecs:      []string{},
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadFromBytes(filename, b)
}

// LoadFromBytes parses a configuration from its content. The filename is used to resolve relative paths.
func LoadFromBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.Pointer.MaxIndirectTargets <= 0 {
		cfg.Pointer.MaxIndirectTargets = DefaultMaxIndirectTargets
	}

	if cfg.Pointer.OriginDepth <= 0 {
		cfg.Pointer.OriginDepth = 1
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Pointer.DumpConstraintGraph || cfg.Pointer.DumpCallGraph || cfg.Pointer.DumpPointsTo {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	cfg.Pointer.OriginFunctions = funcutil.Map(cfg.Pointer.OriginFunctions, CompileRegexes)
	cfg.Pointer.EntryFunctions = funcutil.Map(cfg.Pointer.EntryFunctions, CompileRegexes)

	return cfg, nil
}

// Validate returns an error if one of the selectors of the configuration has an unknown value.
func (c *Config) Validate() error {
	p := c.Pointer
	if _, ok := ContextDepth(p.ContextSensitivity); !ok {
		return fmt.Errorf("unknown context sensitivity %q", p.ContextSensitivity)
	}
	if p.ContextSensitivity == ContextOrigin && p.OriginDepth > MaxContextDepth {
		return fmt.Errorf("origin depth %d exceeds the maximum %d", p.OriginDepth, MaxContextDepth)
	}
	switch p.Solver {
	case SolverWorklist, SolverWave, SolverNaive:
	default:
		return fmt.Errorf("unknown solver %q", p.Solver)
	}
	switch p.PointsToSet {
	case PointsToSetSparse, PointsToSetHash:
	default:
		return fmt.Errorf("unknown points-to set representation %q", p.PointsToSet)
	}
	switch p.CallGraph {
	case CallGraphOnTheFly, CallGraphCha, CallGraphVta:
	default:
		return fmt.Errorf("unknown call graph mode %q", p.CallGraph)
	}
	if c.LogLevel < int(ErrLevel) || c.LogLevel > int(TraceLevel) {
		return fmt.Errorf("log level %d out of range [%d, %d]", c.LogLevel, ErrLevel, TraceLevel)
	}
	return nil
}

// ContextDepth returns the call-string depth of a context sensitivity selector, and false if the selector is not
// known. The depth of the origin selector is the origin depth, which is not known here, and is reported as 1.
func ContextDepth(selector string) (int, bool) {
	switch selector {
	case ContextInsensitive:
		return 0, true
	case Context1CallSite:
		return 1, true
	case Context2CallSite:
		return 2, true
	case ContextOrigin:
		return 1, true
	default:
		return 0, false
	}
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
	}
	return nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	if path.IsAbs(filename) {
		return filename
	}
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Verbose returns true if the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// IsOriginFunction returns true if the code identifier matches one of the origin functions of the config
func (c Config) IsOriginFunction(cid CodeIdentifier) bool {
	return ExistsCid(c.Pointer.OriginFunctions, cid.equalOnNonEmptyFields)
}

// IsEntryFunction returns true if the code identifier matches one of the entry functions of the config
func (c Config) IsEntryFunction(cid CodeIdentifier) bool {
	return ExistsCid(c.Pointer.EntryFunctions, cid.equalOnNonEmptyFields)
}
