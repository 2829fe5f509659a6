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

// Package mod computes modification summaries: for every function, the set of global-like variables that a call to
// the function may write, directly or through its callees.
//
// A summary over-approximates the writes: a variable absent from the summary of a function is never modified by a
// call to that function. The dependency analysis uses the summaries to avoid copying the values of the globals that
// a callee never touches.
package mod

import (
	"time"

	"github.com/awslabs/ar-php-tools/analysis/alias"
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
	"github.com/awslabs/ar-php-tools/internal/graphutil"
)

// Summaries holds the modification summary of every function of a program
type Summaries struct {
	prog      *program.Program
	writes    []map[program.VarID]bool
	recursive map[program.FuncID]bool
	rounds    int
}

// Modified returns the set of global-like variables that a call to fn may write. The boolean is false if there is no
// summary for fn. The result must not be modified.
func (s *Summaries) Modified(fn program.FuncID) (map[program.VarID]bool, bool) {
	if s == nil || int(fn) >= len(s.writes) || s.writes[fn] == nil {
		return nil, false
	}
	return s.writes[fn], true
}

// Writes returns true if a call to fn may write the global-like variable v. Without a summary for fn, the answer is
// conservatively true.
func (s *Summaries) Writes(fn program.FuncID, v program.VarID) bool {
	m, ok := s.Modified(fn)
	return !ok || m[v]
}

// Vars returns the variables of the summary of fn in increasing order
func (s *Summaries) Vars(fn program.FuncID) []program.VarID {
	m, _ := s.Modified(fn)
	return funcutil.SetToOrderedSlice(m)
}

// Recursive returns true if fn belongs to a cycle of the call graph
func (s *Summaries) Recursive(fn program.FuncID) bool {
	return s != nil && s.recursive[fn]
}

// Rounds returns the number of rounds needed to compute the summaries: one per non-recursive function, and the
// number of iterations to the fixpoint for every recursive component.
func (s *Summaries) Rounds() int {
	if s == nil {
		return 0
	}
	return s.rounds
}

// recursiveFuncs returns the functions that belong to a cycle of the call graph cg
func recursiveFuncs(cg *graphutil.Graph) map[program.FuncID]bool {
	res := map[program.FuncID]bool{}
	if graphutil.Acyclic(cg) {
		return res
	}
	for _, c := range graphutil.RecursiveComponents(cg) {
		for _, f := range c {
			res[program.FuncID(f)] = true
		}
	}
	return res
}

// Compute computes the modification summaries of all the functions of the program. The alias information is used to
// find the globals written through references.
//
// Functions are summarized bottom-up over the strongly connected components of the call graph, callees first. The
// summaries of the functions of a recursive component are iterated until they are stable.
func Compute(state *dataflow.AnalyzerState, aliases *alias.Result) *Summaries {
	prog := state.Program
	start := time.Now()
	state.Logger.Infof("Computing modification summaries...")
	s := &Summaries{prog: prog, writes: make([]map[program.VarID]bool, prog.NumFuncs())}

	direct := make([]map[program.VarID]bool, prog.NumFuncs())
	for _, fn := range prog.Functions() {
		direct[fn.ID] = directWrites(prog, aliases, fn)
	}

	var funcs []program.FuncID
	for _, fn := range prog.Functions() {
		funcs = append(funcs, fn.ID)
	}
	sccs := graphutil.StronglyConnectedComponents(funcs, prog.Callees)
	s.recursive = recursiveFuncs(prog.CallGraph())
	state.Logger.Debugf("call graph: %d functions, %d components, %d recursive functions\n",
		len(funcs), len(sccs), len(s.recursive))

	rounds := 0
	for _, scc := range sccs {
		for _, f := range scc {
			s.writes[f] = map[program.VarID]bool{}
		}
		// the callees outside of the component are already summarized, so one round is enough for a function
		// that does not call itself. The summaries of a recursive component only grow, and are bounded by the
		// global-likes.
		for changed := true; changed; {
			changed = false
			rounds++
			for _, f := range scc {
				changed = funcutil.Union(s.writes[f], direct[f]) || changed
				for _, callee := range prog.Callees(f) {
					changed = funcutil.Union(s.writes[f], s.writes[callee]) || changed
				}
			}
			changed = changed && s.recursive[scc[0]]
		}
	}
	s.rounds = rounds
	state.Logger.Infof("Modification summaries done: %d components, %d rounds (%.2f s)",
		len(sccs), rounds, time.Since(start).Seconds())
	return s
}

// directWrites returns the global-like variables written by the nodes of fn, without the writes of the callees.
// Writing to a variable writes to its must-aliases and may write to its may-aliases. Unset and reference
// assignments only write to their own variable: they break references instead of writing through them.
func directWrites(prog *program.Program, aliases *alias.Result, fn *program.Function) map[program.VarID]bool {
	res := map[program.VarID]bool{}
	add := func(v program.VarID) {
		if prog.ValidVar(v) && prog.Var(v).IsGlobalLike() && prog.Var(v).Kind != program.Constant {
			res[v] = true
		}
	}
	through := func(v program.VarID, n program.NodeID) {
		add(v)
		for _, w := range aliases.MustAliases(v, n) {
			add(w)
		}
		for _, w := range aliases.MayAliases(v, n) {
			add(w)
		}
	}
	for _, n := range fn.Nodes() {
		switch node := prog.Node(n).(type) {
		case *program.Assign:
			through(node.Left, n)
		case *program.AssignBinary:
			through(node.Left, n)
		case *program.AssignUnary:
			through(node.Left, n)
		case *program.AssignArray:
			through(node.Left, n)
		case *program.ArrayLoad:
			through(node.Left, n)
		case *program.ArrayStore:
			through(node.Array, n)
		case *program.CallBuiltin:
			through(node.Result, n)
		case *program.CallRet:
			through(node.Result, n)
		case *program.CallPrep:
			// the callee may write to the actuals passed by reference
			for _, p := range node.CbrParams() {
				through(p.Actual.Var, n)
			}
		case *program.AssignRef:
			add(node.Left)
		case *program.Unset:
			add(node.Var)
		case *program.Entry, *program.Exit, *program.Empty, *program.GlobalDecl, *program.Include:
		}
	}
	return res
}
