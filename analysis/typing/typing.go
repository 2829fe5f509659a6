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

// Package typing implements a type analysis that distinguishes the variables holding scalars from the variables
// holding arrays. The dependency analysis uses the types as hints for array element labels.
package typing

import (
	"fmt"
	"time"

	"github.com/awslabs/ar-php-tools/analysis/alias"
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
)

// Result is the result of the type analysis, folded over contexts
type Result struct {
	solution *dataflow.Solution[*Element]
	folded   map[program.NodeID]*Element
}

// Solution returns the context-sensitive solution of the analysis
func (r *Result) Solution() *dataflow.Solution[*Element] {
	return r.solution
}

// TypeAt returns the type of v before node n
func (r *Result) TypeAt(v program.VarID, n program.NodeID) Type {
	e, ok := r.folded[n]
	if !ok {
		e = r.solution.Folded(n)
		r.folded[n] = e
	}
	return e.Get(v)
}

// TypeAfter returns the type of v after node n
func (r *Result) TypeAfter(v program.VarID, n program.NodeID) Type {
	return r.solution.FoldedAfter(n).Get(v)
}

type analysis struct {
	prog    *program.Program
	aliases *alias.Result
}

// Analyze runs the type analysis. Assignments through references use the alias information.
func Analyze(state *dataflow.AnalyzerState, aliases *alias.Result) (*Result, error) {
	a := &analysis{prog: state.Program, aliases: aliases}
	start := time.Now()
	state.Logger.Infof("Starting type analysis...")
	sol, err := dataflow.Solve(state, dataflow.Problem[*Element]{
		Name:        "typing",
		Lattice:     Lattice{},
		Initial:     a.initial(),
		TransferFor: a.transferFor,
		ReturnTransferFor: func(ret *program.CallRet) dataflow.ReturnTransfer[*Element] {
			return dataflow.ReturnTransferFunc[*Element](func(calleeOut, orig *Element) (*Element, error) {
				return a.callReturn(ret, calleeOut, orig)
			})
		},
	})
	if err != nil {
		return nil, err
	}
	state.Logger.Infof("Type analysis done (%.2f s)", time.Since(start).Seconds())
	return &Result{solution: sol, folded: map[program.NodeID]*Element{}}, nil
}

// initial maps the superglobals to arrays and the constants to scalars
func (a *analysis) initial() *Element {
	e := EmptyIn(a.prog)
	for _, g := range a.prog.GlobalLikes() {
		switch a.prog.Var(g).Kind {
		case program.Superglobal:
			e.set(g, Array)
		case program.Constant:
			e.set(g, Scalar)
		}
	}
	return e
}

func (a *analysis) placeType(e *Element, p program.Place) Type {
	if p.IsVar() {
		return e.Get(p.Var)
	}
	return Scalar
}

func (a *analysis) transferFor(n program.Node) dataflow.Transfer[*Element] {
	id := n.ID()
	switch n := n.(type) {
	case *program.Assign:
		return a.assign(id, n.Left, func(in *Element) Type { return a.placeType(in, n.Right) })
	case *program.AssignBinary:
		return a.assign(id, n.Left, func(in *Element) Type {
			if n.Op != program.Plus {
				return Scalar
			}
			x, y := a.placeType(in, n.X), a.placeType(in, n.Y)
			switch {
			case x == Array || y == Array:
				return Array
			case x == Top || y == Top:
				return Top
			}
			return Scalar
		})
	case *program.AssignUnary:
		return a.assign(id, n.Left, func(*Element) Type {
			if n.Op == program.CastArray {
				return Array
			}
			return Scalar
		})
	case *program.AssignRef:
		return ref(n.Left, n.Right)
	case *program.GlobalDecl:
		return ref(n.Local, n.Global)
	case *program.AssignArray:
		return a.assign(id, n.Left, func(*Element) Type { return Array })
	case *program.ArrayStore:
		return a.assign(id, n.Array, func(in *Element) Type {
			if t := in.Get(n.Array); t != Bottom {
				return t
			}
			return Array
		})
	case *program.ArrayLoad:
		return a.assign(id, n.Left, func(*Element) Type { return Top })
	case *program.CallBuiltin:
		return a.assign(id, n.Result, func(*Element) Type { return Top })
	case *program.Unset:
		return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
			out := in.clone()
			out.set(n.Var, Bottom)
			return out, nil
		})
	case *program.CallPrep:
		return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
			return a.calleeEntry(n, in)
		})
	case *program.Entry, *program.Exit, *program.Empty, *program.CallRet, *program.Include:
		return nil
	default:
		panic(fmt.Sprintf("unexpected node %T", n))
	}
}

// assign returns the transfer function writing the type computed by f to v: the must-aliases of v are updated
// strongly and its may-aliases weakly.
func (a *analysis) assign(n program.NodeID, v program.VarID, f func(*Element) Type) dataflow.Transfer[*Element] {
	if v == program.NoVar {
		return nil
	}
	return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
		t := f(in)
		out := in.clone()
		out.set(v, t)
		for _, w := range a.aliases.MustAliases(v, n) {
			out.set(w, t)
		}
		for _, w := range a.aliases.MayAliases(v, n) {
			out.set(w, out.Get(w).Lub(t))
		}
		return out, nil
	})
}

// ref returns the transfer function of left =& right. The old aliases of left are not written: the reference
// detaches left from them.
func ref(left, right program.VarID) dataflow.Transfer[*Element] {
	return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
		out := in.clone()
		out.set(left, in.Get(right))
		return out, nil
	})
}

// calleeEntry binds the globals, the formals and the shadows of the callee
func (a *analysis) calleeEntry(prep *program.CallPrep, in *Element) (*Element, error) {
	st := a.prog.Func(prep.Callee).SymbolTable()
	out := EmptyIn(a.prog)
	for _, g := range a.prog.GlobalLikes() {
		out.set(g, in.Get(g))
		if gs, ok := st.GShadow(g); ok {
			out.set(gs, in.Get(g))
		}
	}
	for _, p := range prep.Params {
		t := a.placeType(in, p.Actual)
		out.set(p.Formal, t)
		if p.ByRef {
			fs, ok := st.FShadow(p.Formal)
			if !ok {
				return nil, dataflow.NewModelError(a.prog, p.Formal, prep.ID(), "formal parameter has no f-shadow")
			}
			out.set(fs, t)
		}
	}
	return out, nil
}

// callReturn copies the types of the globals from the callee, and joins the types of the caller's variables that
// are aliased to globals or passed by reference with the types of the corresponding shadows.
func (a *analysis) callReturn(ret *program.CallRet, calleeOut, orig *Element) (*Element, error) {
	prep := a.prog.Node(ret.Prep()).(*program.CallPrep)
	callee := a.prog.Func(prep.Callee)
	st := callee.SymbolTable()
	out := orig.clone()
	for _, g := range a.prog.GlobalLikes() {
		out.set(g, calleeOut.Get(g))
	}
	if !a.prog.Func(prep.Func()).IsMain {
		for _, l := range a.prog.Locals(prep.Func()) {
			g, ok := a.aliases.MustAliasGlobal(l, prep.ID())
			if !ok {
				continue
			}
			gs, ok := st.GShadow(g)
			if !ok {
				return nil, dataflow.NewModelError(a.prog, g, prep.ID(), "must-aliased global has no g-shadow")
			}
			out.set(l, orig.Get(l).Lub(calleeOut.Get(gs)))
		}
		for _, p := range prep.CbrParams() {
			fs, ok := st.FShadow(p.Formal)
			if !ok {
				return nil, dataflow.NewModelError(a.prog, p.Formal, prep.ID(), "formal parameter has no f-shadow")
			}
			t := calleeOut.Get(fs)
			for _, l := range a.aliases.MustAliasesLocal(p.Actual.Var, prep.ID()) {
				out.set(l, out.Get(l).Lub(t))
			}
			for _, l := range a.aliases.MayAliasesLocal(p.Actual.Var, prep.ID()) {
				out.set(l, out.Get(l).Lub(t))
			}
		}
	}
	if ret.Result != program.NoVar {
		out.set(ret.Result, calleeOut.Get(callee.RetVar))
	}
	return out, nil
}
