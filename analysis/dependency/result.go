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

package dependency

import (
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
)

// Result is the result of the dependency analysis. Queries are answered for the point before a node, folded over
// the contexts of the node.
type Result struct {
	prog     *program.Program
	labels   *LabelTable
	solution *dataflow.Solution[*Element]
	folded   map[program.NodeID]*Element
}

// Solution returns the context-sensitive solution
func (r *Result) Solution() *dataflow.Solution[*Element] {
	return r.solution
}

// Labels returns the label catalog of the analysis
func (r *Result) Labels() *LabelTable {
	return r.labels
}

// At returns the element before node n
func (r *Result) At(n program.NodeID) *Element {
	if e, ok := r.folded[n]; ok {
		return e
	}
	e := r.solution.Folded(n)
	r.folded[n] = e
	return e
}

// After returns the element after node n
func (r *Result) After(n program.NodeID) *Element {
	return r.solution.FoldedAfter(n)
}

// Dep returns the dependency of v before node n
func (r *Result) Dep(v program.VarID, n program.NodeID) DepSet {
	return r.At(n).Dep(v)
}

// DepAfter returns the dependency of v after node n
func (r *Result) DepAfter(v program.VarID, n program.NodeID) DepSet {
	return r.After(n).Dep(v)
}

// PlaceDeps returns the labels the value of place p may depend on before node n, including the labels of the
// elements of arrays. Literals are untainted.
func (r *Result) PlaceDeps(p program.Place, n program.NodeID) DepSet {
	if !p.IsVar() {
		return Of(Untainted)
	}
	return r.At(n).Get(p.Var).All()
}
