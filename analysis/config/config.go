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

	"github.com/awslabs/ar-php-tools/internal/funcutil"
	"gopkg.in/yaml.v3"
)

// Config contains the taint problems (sources, sinks and sanitizers) and the options of the analyses.
// To add elements to a config file, add fields to this struct.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:"options"`

	sourceFile string

	// TaintProblems lists the taint tracking specifications
	TaintProblems []TaintSpec `yaml:"taint-problems"`
}

// TaintSpec contains the identifiers of a specific taint tracking problem
type TaintSpec struct {
	// Name is a name for the problem, used in reports
	Name string `yaml:"name,omitempty"`

	// Sources is the list of untrusted inputs
	Sources []SourceSpec `yaml:"sources"`

	// Sinks is the list of sensitive functions
	Sinks []FunctionIdentifier `yaml:"sinks"`

	// Sanitizers is the list of functions whose results are proven sanitized
	Sanitizers []FunctionIdentifier `yaml:"sanitizers"`
}

// Options are the settings of the analyses
type Options struct {
	// UseModSummaries enables the computation of modification summaries: when a callee returns, only the global
	// variables it may have modified are copied from the callee's state. Disabling it is always sound.
	UseModSummaries bool `yaml:"use-mod-summaries"`

	// MaxIterations bounds the number of worklist steps of each fixpoint computation. If MaxIterations <= 0, it is
	// ignored.
	MaxIterations int `yaml:"max-iterations"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:    "",
		TaintProblems: nil,
		Options: Options{
			UseModSummaries: true,
			MaxIterations:   DefaultMaxIterations,
			LogLevel:        int(InfoLevel),
			SilenceWarn:     false,
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

// LoadFromBytes parses the configuration in b. The filename is only used to resolve relative paths.
func LoadFromBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file %q: %w", filename, err)
	}
	cfg.sourceFile = filename

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	for i, tSpec := range cfg.TaintProblems {
		for j, src := range tSpec.Sources {
			if (src.Superglobal == "") == (src.Function == "") {
				return nil, fmt.Errorf("source %d of taint problem %d must have exactly one of superglobal or function",
					j, i)
			}
		}
		cfg.TaintProblems[i].Sinks = funcutil.Map(tSpec.Sinks, compileRegexes)
		cfg.TaintProblems[i].Sanitizers = funcutil.Map(tSpec.Sanitizers, compileRegexes)
	}

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Below are functions used to query the configuration on specific facts

// Labels returns the names of all the source labels in the config, in order of appearance and without duplicates.
func (c Config) Labels() []string {
	var labels []string
	for _, ts := range c.TaintProblems {
		for _, src := range ts.Sources {
			if l := src.LabelName(); !funcutil.Contains(labels, l) {
				labels = append(labels, l)
			}
		}
	}
	return labels
}

// SuperglobalLabel returns the name of the label of the superglobal name, and false if the superglobal is not a
// source of any taint problem.
func (c Config) SuperglobalLabel(name string) (string, bool) {
	for _, ts := range c.TaintProblems {
		for _, src := range ts.Sources {
			if src.Superglobal != "" && src.Superglobal == name {
				return src.LabelName(), true
			}
		}
	}
	return "", false
}

// SourceFunctionLabel returns the name of the label of the values returned by the function name, and false if the
// function is not a source of any taint problem.
func (c Config) SourceFunctionLabel(name string) (string, bool) {
	for _, ts := range c.TaintProblems {
		for _, src := range ts.Sources {
			if src.Function != "" && src.Function == name {
				return src.LabelName(), true
			}
		}
	}
	return "", false
}

// IsSomeSink returns true if the function name matches any sink in the config
func (c Config) IsSomeSink(name string) bool {
	_, ok := c.Sink(name)
	return ok
}

// Sink returns the first sink identifier matching the function name
func (c Config) Sink(name string) (FunctionIdentifier, bool) {
	for _, ts := range c.TaintProblems {
		for _, fid := range ts.Sinks {
			if fid.MatchName(name) {
				return fid, true
			}
		}
	}
	return FunctionIdentifier{}, false
}

// IsSomeSanitizer returns true if the function name matches any sanitizer in the config
func (c Config) IsSomeSanitizer(name string) bool {
	for _, ts := range c.TaintProblems {
		if ts.IsSanitizer(name) {
			return true
		}
	}
	return false
}

// IsSanitizer returns true if the function name matches a sanitizer specification of the problem
func (ts TaintSpec) IsSanitizer(name string) bool {
	return ExistsFid(ts.Sanitizers, func(fid FunctionIdentifier) bool { return fid.MatchName(name) })
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxIterations returns true if the input exceeds the maximum iterations parameter of the configuration.
// (if the configuration setting is <= 0, then this returns false)
func (c Config) ExceedsMaxIterations(n int) bool {
	if c.MaxIterations <= 0 {
		return false
	}
	return n > c.MaxIterations
}
