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

package taint

import (
	"fmt"
	"time"

	"github.com/awslabs/ar-php-tools/analysis/alias"
	"github.com/awslabs/ar-php-tools/analysis/config"
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/dependency"
	"github.com/awslabs/ar-php-tools/analysis/incdom"
	"github.com/awslabs/ar-php-tools/analysis/mod"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/analysis/sanitizer"
	"github.com/awslabs/ar-php-tools/analysis/typing"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
)

// AnalysisResult contains the flows detected by the analysis and the results of the intermediate analyses
type AnalysisResult struct {
	// TaintFlows contains all the flows from the sources to the sinks detected during the analysis
	TaintFlows *Flows

	// State is the state at the end of the analysis, if you need to chain another analysis
	State *dataflow.AnalyzerState

	Aliases  *alias.Result
	Types    *typing.Result
	Includes *incdom.Result

	// Mod is nil when the modification summaries are disabled
	Mod *mod.Summaries

	// Dependencies maps the name of every taint problem to the result of its dependency analysis
	Dependencies map[string]*dependency.Result

	// Errors contains the errors produced by the analysis
	Errors []error
}

// Options are the options of the taint analysis that are not part of the configuration
type Options struct {
	// Logger overrides the logger built from the configuration
	Logger *config.LogGroup

	// Sanitizers overrides the sanitizers of the configuration for every taint problem
	Sanitizers sanitizer.Oracle
}

// Analyze runs the taint analysis on the program prog with the configuration cfg.
//
// The analysis aborts at the first error of a phase: the result then contains the results of the phases that
// completed, and the error is also recorded in the state.
func Analyze(cfg *config.Config, prog *program.Program, opts Options) (AnalysisResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = config.NewLogGroup(cfg)
	}
	state := dataflow.NewAnalyzerState(prog, logger, cfg)
	res := AnalysisResult{
		TaintFlows:   NewFlows(),
		State:        state,
		Dependencies: map[string]*dependency.Result{},
	}
	start := time.Now()
	fail := func(phase string, err error) (AnalysisResult, error) {
		state.AddError(phase, err)
		res.Errors = append(res.Errors, err)
		state.Logger.Errorf("%s analysis failed: %v", phase, err)
		return res, fmt.Errorf("%s analysis failed: %w", phase, err)
	}

	var err error
	res.Aliases, err = alias.Analyze(state)
	if err != nil {
		return fail("alias", err)
	}
	if cfg.UseModSummaries {
		res.Mod = mod.Compute(state, res.Aliases)
	}
	res.Types, err = typing.Analyze(state, res.Aliases)
	if err != nil {
		return fail("typing", err)
	}
	res.Includes, err = incdom.Analyze(state)
	if err != nil {
		return fail("incdom", err)
	}

	labels := dependency.LabelTableFromConfig(cfg)
	for _, ts := range cfg.TaintProblems {
		depOpts := dependency.Options{
			Aliases:    res.Aliases,
			Labels:     labels,
			Types:      res.Types,
			Sanitizers: opts.Sanitizers,
		}
		if res.Mod != nil {
			depOpts.Mod = res.Mod
		}
		if depOpts.Sanitizers == nil {
			depOpts.Sanitizers = sanitizer.NewPatternOracleFromSpec(ts)
		}
		state.Logger.Infof("Checking taint problem %q...", ts.Name)
		deps, err := dependency.Analyze(state, depOpts)
		if err != nil {
			return fail("dependency", err)
		}
		res.Dependencies[ts.Name] = deps
		res.TaintFlows.Merge(findFlows(prog, ts, deps, res.Includes))
	}

	state.Logger.Infof("Taint analysis done (%.2f s): %d flow(s)", time.Since(start).Seconds(), res.TaintFlows.Len())
	return res, nil
}

// findFlows returns the flows of the taint problem ts: the arguments of the calls to its sinks that may depend on
// the labels of its sources
func findFlows(prog *program.Program, ts config.TaintSpec, deps *dependency.Result, includes *incdom.Result) *Flows {
	flows := NewFlows()
	problemLabels := map[dependency.Label]bool{}
	for _, src := range ts.Sources {
		if l, ok := deps.Labels().Label(src.LabelName()); ok {
			problemLabels[l] = true
		}
	}
	for _, fn := range prog.Functions() {
		for _, n := range fn.Nodes() {
			call, ok := prog.Node(n).(*program.CallBuiltin)
			if !ok || !deps.Solution().Reached(n) {
				continue
			}
			for _, sink := range ts.Sinks {
				if !sink.MatchName(call.Name) {
					continue
				}
				for i, arg := range call.Args {
					if !sink.MatchArgument(i) {
						continue
					}
					taints := funcutil.Filter(deps.PlaceDeps(arg, n).Taints(),
						func(l dependency.Label) bool { return problemLabels[l] })
					if len(taints) == 0 {
						continue
					}
					flows.Add(Flow{
						Problem:  ts.Name,
						Sink:     n,
						SinkName: call.Name,
						Function: fn.Name,
						Arg:      i,
						Labels:   funcutil.Map(taints, deps.Labels().Name),
						Includes: includes.GuaranteedFiles(n),
					})
				}
				break
			}
		}
	}
	return flows
}
