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

package alias

import (
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
)

// Result is the result of the alias analysis. The queries are indexed by program points, and answered with the
// information holding before the node, folded over all the contexts in which the node is reached.
//
// In the queries, a variable is global if it is global-like (a global, a superglobal or a constant) and local
// otherwise; the local variables of a query are owned by the function of the node.
type Result struct {
	prog     *program.Program
	solution *dataflow.Solution[*Element]
	folded   map[program.NodeID]*Element
}

func newResult(prog *program.Program, sol *dataflow.Solution[*Element]) *Result {
	return &Result{prog: prog, solution: sol, folded: map[program.NodeID]*Element{}}
}

// Solution returns the context-sensitive solution of the alias analysis
func (r *Result) Solution() *dataflow.Solution[*Element] {
	return r.solution
}

// At returns the alias information before node n, folded over contexts. It is bottom if n is unreachable.
func (r *Result) At(n program.NodeID) *Element {
	if e, ok := r.folded[n]; ok {
		return e
	}
	e := r.solution.Folded(n)
	r.folded[n] = e
	return e
}

func (r *Result) isGlobal(v program.VarID) bool {
	return r.prog.Var(v).IsGlobalLike()
}

// MustAliasGlobal returns a global variable that must-aliases v before node n, and false if there is none. If there
// are several, the one with the smallest handle is returned.
func (r *Result) MustAliasGlobal(v program.VarID, n program.NodeID) (program.VarID, bool) {
	for _, w := range r.At(n).MustAliases(v) {
		if r.isGlobal(w) {
			return w, true
		}
	}
	return program.NoVar, false
}

// MustAliasesLocal returns the local variables that must-alias v before node n. The result always contains v.
func (r *Result) MustAliasesLocal(v program.VarID, n program.NodeID) []program.VarID {
	res := []program.VarID{v}
	for _, w := range r.At(n).MustAliases(v) {
		if !r.isGlobal(w) {
			res = append(res, w)
		}
	}
	return res
}

// MayAliasesGlobal returns the global variables that may alias v before node n
func (r *Result) MayAliasesGlobal(v program.VarID, n program.NodeID) []program.VarID {
	var res []program.VarID
	for _, w := range r.At(n).MayAliases(v) {
		if r.isGlobal(w) {
			res = append(res, w)
		}
	}
	return res
}

// MayAliasesLocal returns the local variables that may alias v before node n. Must-aliases of v are not included.
func (r *Result) MayAliasesLocal(v program.VarID, n program.NodeID) []program.VarID {
	var res []program.VarID
	for _, w := range r.At(n).MayAliases(v) {
		if !r.isGlobal(w) {
			res = append(res, w)
		}
	}
	return res
}

// MustAliases returns all the must-aliases of v before node n, excluding v
func (r *Result) MustAliases(v program.VarID, n program.NodeID) []program.VarID {
	return r.At(n).MustAliases(v)
}

// MayAliases returns all the may-aliases of v before node n
func (r *Result) MayAliases(v program.VarID, n program.NodeID) []program.VarID {
	return r.At(n).MayAliases(v)
}

// ArgsAliased returns, for a call preparation node, the by-reference actuals that may alias another by-reference
// actual of the call, mapped to the actuals they alias. Must-aliases are reported too: an actual passed twice by
// reference aliases itself.
func (r *Result) ArgsAliased(prep *program.CallPrep) map[program.VarID][]program.VarID {
	e := r.At(prep.ID())
	res := map[program.VarID][]program.VarID{}
	cbr := prep.CbrParams()
	for i, p := range cbr {
		for j, q := range cbr {
			x, y := p.Actual.Var, q.Actual.Var
			if i == j {
				continue
			}
			if e.IsMustAlias(x, y) || e.IsMayAlias(x, y) {
				res[x] = appendUnique(res[x], y)
			}
		}
	}
	return res
}

func appendUnique(a []program.VarID, v program.VarID) []program.VarID {
	for _, x := range a {
		if x == v {
			return a
		}
	}
	return append(a, v)
}
