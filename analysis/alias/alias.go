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

// Package alias implements the flow-sensitive and context-sensitive alias analysis of references. At every program
// point, the analysis computes which variables must denote the same storage (must-aliases) and which variables may
// denote the same storage (may-aliases).
//
// Must-aliases are exact: two variables reported as must-aliases always denote the same storage at that point. May
// aliases over-approximate the other possible aliasing relations.
package alias

import (
	"fmt"
	"time"

	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
)

type analysis struct {
	prog *program.Program
}

// Analyze runs the alias analysis on the program of the state
func Analyze(state *dataflow.AnalyzerState) (*Result, error) {
	a := &analysis{prog: state.Program}
	start := time.Now()
	state.Logger.Infof("Starting alias analysis...")
	sol, err := dataflow.Solve(state, dataflow.Problem[*Element]{
		Name:        "alias",
		Lattice:     Lattice{},
		Initial:     Empty(),
		TransferFor: a.transferFor,
		ReturnTransferFor: func(*program.CallRet) dataflow.ReturnTransfer[*Element] {
			return dataflow.ReturnTransferFunc[*Element](returnTransfer)
		},
	})
	if err != nil {
		return nil, err
	}
	state.Logger.Infof("Alias analysis done (%.2f s)", time.Since(start).Seconds())
	return newResult(state.Program, sol), nil
}

func (a *analysis) transferFor(n program.Node) dataflow.Transfer[*Element] {
	switch n := n.(type) {
	case *program.AssignRef:
		return a.assignRef(n.Left, n.Right)
	case *program.GlobalDecl:
		return a.assignRef(n.Local, n.Global)
	case *program.Unset:
		return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
			out := in.clone()
			out.kill(n.Var)
			return out, nil
		})
	case *program.CallPrep:
		return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
			return a.calleeEntry(n, in)
		})
	case *program.Entry, *program.Exit, *program.Empty, *program.Assign, *program.AssignBinary,
		*program.AssignUnary, *program.AssignArray, *program.ArrayStore, *program.ArrayLoad, *program.CallRet,
		*program.CallBuiltin, *program.Include:
		return nil
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}

// assignRef returns the transfer function of left =& right: left leaves its groups and joins the must-aliases of
// right, and inherits the may-aliases of right.
func (a *analysis) assignRef(left, right program.VarID) dataflow.Transfer[*Element] {
	return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
		if left == right {
			return in, nil
		}
		if !a.prog.ValidVar(left) || !a.prog.ValidVar(right) {
			return nil, dataflow.NewModelError(a.prog, left, program.NoNode, "reference between unknown variables")
		}
		out := in.clone()
		out.kill(left)
		if !a.prog.Var(left).Aliasable() || !a.prog.Var(right).Aliasable() {
			return out, nil
		}
		out.addMust(left, right)
		for _, z := range in.MayAliases(right) {
			if z != left {
				out.addMay(left, z)
			}
		}
		return out, nil
	})
}

// returnTransfer returns the value before the call: the callee cannot rebind the references of the caller.
func returnTransfer(_ *Element, atCallPrep *Element) (*Element, error) {
	return atCallPrep, nil
}

// calleeEntry computes the alias information at the entry of the callee, in the callee's scope. Every global is a
// must-alias of its g-shadow, and every formal passed by reference is a must-alias of its f-shadow. The aliasing
// relations between the globals and the actuals passed by reference in the caller are translated to the
// corresponding globals and formals.
func (a *analysis) calleeEntry(prep *program.CallPrep, in *Element) (*Element, error) {
	callee := a.prog.Func(prep.Callee)
	st := callee.SymbolTable()

	// every class is a pair (variable, shadow) in the callee, and is represented in the caller by a variable
	type class struct {
		inCaller program.VarID
		members  [2]program.VarID
	}
	var classes []class
	for _, g := range a.prog.GlobalLikes() {
		if gs, ok := st.GShadow(g); ok {
			classes = append(classes, class{inCaller: g, members: [2]program.VarID{g, gs}})
		}
	}
	for _, p := range prep.CbrParams() {
		fs, ok := st.FShadow(p.Formal)
		if !ok {
			return nil, dataflow.NewModelError(a.prog, p.Formal, prep.ID(), "formal parameter has no f-shadow")
		}
		classes = append(classes, class{inCaller: p.Actual.Var, members: [2]program.VarID{p.Formal, fs}})
	}

	uf := newUnionFind()
	type mayEdge struct{ x, y int }
	var mayEdges []mayEdge
	for i, c := range classes {
		uf.union(c.members[0], c.members[1])
		for j := 0; j < i; j++ {
			d := classes[j]
			if in.IsMustAlias(c.inCaller, d.inCaller) {
				uf.union(c.members[0], d.members[0])
			} else if in.IsMayAlias(c.inCaller, d.inCaller) {
				mayEdges = append(mayEdges, mayEdge{i, j})
			}
		}
	}
	out := Empty()
	out.setGroups(uf.blocks())
	for _, edge := range mayEdges {
		for _, x := range out.group(classes[edge.x].members[0]) {
			for _, y := range out.group(classes[edge.y].members[0]) {
				out.addMay(x, y)
			}
		}
	}
	return out, nil
}
