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

// Package incdom tracks the file inclusions that have executed before each point of a function.
//
// The analysis is intraprocedural: every function is analyzed from its entry with no inclusion seen, and the
// inclusions performed by callees are ignored. Seen returns the inclusions that may have executed before a point,
// and Guaranteed the inclusions that must have executed, i.e. the include nodes that dominate the point.
package incdom

import (
	"sort"
	"time"

	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
	"github.com/awslabs/ar-php-tools/internal/graphutil"
)

// Result is the result of the include dominance analysis
type Result struct {
	prog     *program.Program
	solution *dataflow.Solution[*Element]
	cfg      *graphutil.Graph
	doms     map[program.FuncID]*graphutil.DominatorTree
}

// Analyze runs the include dominance analysis on every function of the program of the state
func Analyze(state *dataflow.AnalyzerState) (*Result, error) {
	prog := state.Program
	start := time.Now()
	state.Logger.Infof("Starting include dominance analysis...")
	sol, err := dataflow.Solve(state, dataflow.Problem[*Element]{
		Name:    "incdom",
		Lattice: Lattice{},
		Initial: Empty(),
		TransferFor: func(n program.Node) dataflow.Transfer[*Element] {
			inc, ok := n.(*program.Include)
			if !ok {
				return nil
			}
			return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
				return in.with(inc.ID()), nil
			})
		},
		Intraprocedural: true,
	})
	if err != nil {
		return nil, err
	}
	state.Logger.Infof("Include dominance analysis done (%.2f s, %d distinct sets)",
		time.Since(start).Seconds(), sol.Stats.Canonical)
	return &Result{
		prog:     prog,
		solution: sol,
		cfg:      prog.CFG(),
		doms:     map[program.FuncID]*graphutil.DominatorTree{},
	}, nil
}

// Solution returns the solution of the fixpoint computation
func (r *Result) Solution() *dataflow.Solution[*Element] {
	return r.solution
}

// Seen returns the include nodes that may have executed before node n, in increasing order
func (r *Result) Seen(n program.NodeID) []program.NodeID {
	return r.solution.Folded(n).Nodes()
}

// Guaranteed returns the include nodes that have executed before node n on every path from the entry of its
// function, in increasing order. The result is nil if n is unreachable.
func (r *Result) Guaranteed(n program.NodeID) []program.NodeID {
	if !r.solution.Reached(n) {
		return nil
	}
	dt := r.dominators(r.prog.Node(n).Func())
	var res []program.NodeID
	for _, d := range dt.DominatorsOf(int(n)) {
		if program.NodeID(d) == n {
			continue
		}
		if _, ok := r.prog.Node(program.NodeID(d)).(*program.Include); ok {
			res = append(res, program.NodeID(d))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// GuaranteedFiles returns the names of the files that have been included before node n on every path
func (r *Result) GuaranteedFiles(n program.NodeID) []string {
	files := map[string]bool{}
	for _, inc := range r.Guaranteed(n) {
		files[r.prog.Node(inc).(*program.Include).File] = true
	}
	return funcutil.SetToOrderedSlice(files)
}

func (r *Result) dominators(fn program.FuncID) *graphutil.DominatorTree {
	if dt, ok := r.doms[fn]; ok {
		return dt
	}
	dt := graphutil.Dominators(r.cfg, int(r.prog.Func(fn).Entry))
	r.doms[fn] = dt
	return dt
}
