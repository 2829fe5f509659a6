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

// Package dependency implements the dependency analysis, the core of the taint analysis. At every program point, the
// analysis maps every variable to the set of labels of the untrusted sources its value may depend on.
//
// The analysis is interprocedural and context-sensitive. Inside a callee, the globals and the formal parameters
// passed by reference are represented by their shadows; the transfer function of call-return nodes (see
// [CallReturn]) maps the values of the shadows at the exit of the callee back to the variables of the caller, using
// the alias information at the call site.
package dependency

import (
	"fmt"
	"time"

	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/analysis/sanitizer"
	"github.com/awslabs/ar-php-tools/analysis/typing"
)

// Aliases is the alias information used by the dependency analysis. The queries are answered for the point before
// node n. [*alias.Result] implements the interface.
type Aliases interface {
	MustAliasGlobal(v program.VarID, n program.NodeID) (program.VarID, bool)
	MustAliasesLocal(v program.VarID, n program.NodeID) []program.VarID
	MayAliasesGlobal(v program.VarID, n program.NodeID) []program.VarID
	MayAliasesLocal(v program.VarID, n program.NodeID) []program.VarID
	MustAliases(v program.VarID, n program.NodeID) []program.VarID
	MayAliases(v program.VarID, n program.NodeID) []program.VarID
}

// TypeHints gives the type of a variable before node n. [*typing.Result] implements the interface.
type TypeHints interface {
	TypeAt(v program.VarID, n program.NodeID) typing.Type
}

// ModSummaries gives the set of global-like variables a function may write. [*mod.Summaries] implements the
// interface.
type ModSummaries interface {
	Modified(fn program.FuncID) (map[program.VarID]bool, bool)
}

// Options are the inputs of the dependency analysis besides the program
type Options struct {
	// Aliases is required
	Aliases Aliases

	// Labels is the label catalog. If nil, the labels of the sources of the config are used.
	Labels *LabelTable

	// Types are optional: without type hints, every variable may be an array.
	Types TypeHints

	// Mod is optional: without summaries, a callee may write every global.
	Mod ModSummaries

	// Sanitizers is optional: without an oracle, no call is a sanitizer.
	Sanitizers sanitizer.Oracle
}

type analysis struct {
	state   *dataflow.AnalyzerState
	prog    *program.Program
	opts    Options
	labels  *LabelTable
	untaint DepSet
}

// Analyze runs the dependency analysis on the program of the state
func Analyze(state *dataflow.AnalyzerState, opts Options) (*Result, error) {
	if opts.Aliases == nil {
		return nil, fmt.Errorf("dependency analysis requires alias information")
	}
	if opts.Sanitizers == nil {
		opts.Sanitizers = sanitizer.Never{}
	}
	if opts.Labels == nil {
		opts.Labels = LabelTableFromConfig(state.Config)
	}
	a := &analysis{
		state:   state,
		prog:    state.Program,
		opts:    opts,
		labels:  opts.Labels,
		untaint: Of(Untainted),
	}
	start := time.Now()
	state.Logger.Infof("Starting dependency analysis (%d labels, mod summaries: %v)...",
		a.labels.Len(), opts.Mod != nil)
	sol, err := dataflow.Solve(state, dataflow.Problem[*Element]{
		Name:        "dependency",
		Lattice:     Lattice{},
		Initial:     a.initial(),
		TransferFor: a.transferFor,
		ReturnTransferFor: func(ret *program.CallRet) dataflow.ReturnTransfer[*Element] {
			return a.callReturn(ret)
		},
	})
	if err != nil {
		return nil, err
	}
	state.Logger.Infof("Dependency analysis done (%.2f s)", time.Since(start).Seconds())
	return &Result{prog: a.prog, labels: a.labels, solution: sol, folded: map[program.NodeID]*Element{}}, nil
}

// initial is the value at the entry of the program: the superglobals that are sources carry their label, and the
// constants are untainted.
func (a *analysis) initial() *Element {
	e := NewElementIn(a.prog)
	for _, g := range a.prog.GlobalLikes() {
		v := a.prog.Var(g)
		switch v.Kind {
		case program.Superglobal:
			if name, ok := a.state.Config.SuperglobalLabel(v.Name); ok {
				if l, ok := a.labels.Label(name); ok {
					e.Set(g, ArrayValue(Of(l), Of(l)))
				}
			}
		case program.Constant:
			e.Set(g, ScalarValue(a.untaint))
		}
	}
	return e
}

func (a *analysis) valueOf(e *Element, p program.Place) Value {
	if p.IsVar() {
		return e.Get(p.Var)
	}
	return ScalarValue(a.untaint)
}

func (a *analysis) typeAt(v program.VarID, n program.NodeID) typing.Type {
	if a.opts.Types == nil {
		return typing.Top
	}
	return a.opts.Types.TypeAt(v, n)
}

func (a *analysis) transferFor(n program.Node) dataflow.Transfer[*Element] {
	id := n.ID()
	switch n := n.(type) {
	case *program.Assign:
		return a.assign(id, n.Left, func(in *Element) Value { return a.valueOf(in, n.Right) })
	case *program.AssignBinary:
		return a.assign(id, n.Left, func(in *Element) Value { return a.binary(id, n, in) })
	case *program.AssignUnary:
		return a.assign(id, n.Left, func(in *Element) Value {
			x := a.valueOf(in, n.X)
			switch {
			case n.Op.IsNumericOrBool():
				return ScalarValue(a.untaint)
			case n.Op == program.CastArray:
				if x.IsArray() {
					return x
				}
				return ArrayValue(x.Dep, x.Dep)
			}
			return ScalarValue(x.All())
		})
	case *program.AssignRef:
		return a.assignRef(n.Left, n.Right)
	case *program.GlobalDecl:
		return a.assignRef(n.Local, n.Global)
	case *program.AssignArray:
		return a.assign(id, n.Left, func(*Element) Value { return ArrayValue(a.untaint, DepSet{}) })
	case *program.ArrayStore:
		return a.assign(id, n.Array, func(in *Element) Value {
			elem := a.valueOf(in, n.Value).All()
			if a.typeAt(n.Array, id) == typing.Bottom {
				// the store creates the array
				return ArrayValue(a.untaint, elem)
			}
			old := in.Get(n.Array)
			return ArrayValue(old.Dep, old.ArrayLabel().Lub(elem))
		})
	case *program.ArrayLoad:
		return a.assign(id, n.Left, func(in *Element) Value {
			arr := in.Get(n.Array)
			if a.typeAt(n.Array, id) == typing.Scalar {
				// indexing a string
				return ScalarValue(arr.Dep)
			}
			return ScalarValue(arr.ArrayLabel())
		})
	case *program.Unset:
		return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
			out := in.Clone()
			out.Set(n.Var, ScalarValue(a.untaint))
			return out, nil
		})
	case *program.CallBuiltin:
		return a.assign(id, n.Result, func(in *Element) Value { return a.builtin(n, in) })
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

// assign returns the transfer function of an assignment to v of the value computed by f. The must-aliases of v are
// updated strongly, and the may-aliases of v weakly.
func (a *analysis) assign(n program.NodeID, v program.VarID, f func(*Element) Value) dataflow.Transfer[*Element] {
	if v == program.NoVar {
		return nil
	}
	return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
		if !a.prog.ValidVar(v) {
			return nil, dataflow.NewModelError(a.prog, v, n, "assignment to unknown variable")
		}
		val := f(in)
		out := in.Clone()
		out.Set(v, val)
		for _, w := range a.opts.Aliases.MustAliases(v, n) {
			out.Set(w, val)
		}
		for _, w := range a.opts.Aliases.MayAliases(v, n) {
			out.SetWeak(w, val)
		}
		return out, nil
	})
}

// assignRef returns the transfer function of left =& right: left takes the value of right
func (a *analysis) assignRef(left, right program.VarID) dataflow.Transfer[*Element] {
	return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
		out := in.Clone()
		out.Set(left, in.Get(right))
		return out, nil
	})
}

func (a *analysis) binary(n program.NodeID, node *program.AssignBinary, in *Element) Value {
	x, y := a.valueOf(in, node.X), a.valueOf(in, node.Y)
	dep := x.Dep.Lub(y.Dep)
	if node.Op == program.Plus && (a.placeMayBeArray(node.X, n) || a.placeMayBeArray(node.Y, n)) {
		// array union
		return ArrayValue(dep, x.ArrayLabel().Lub(y.ArrayLabel()))
	}
	return ScalarValue(dep)
}

func (a *analysis) placeMayBeArray(p program.Place, n program.NodeID) bool {
	return p.IsVar() && a.typeAt(p.Var, n).MayBeArray()
}

// builtin returns the value returned by a library call: sources return their label, sanitizers return untainted
// values, and the other functions return a value depending on all their arguments.
func (a *analysis) builtin(call *program.CallBuiltin, in *Element) Value {
	if name, ok := a.state.Config.SourceFunctionLabel(call.Name); ok {
		if l, ok := a.labels.Label(name); ok {
			return ScalarValue(Of(l))
		}
	}
	if a.opts.Sanitizers.IsSanitized(call) {
		return ScalarValue(a.untaint)
	}
	dep := a.untaint
	for _, arg := range call.Args {
		dep = dep.Lub(a.valueOf(in, arg).All())
	}
	return ScalarValue(dep)
}

// calleeEntry returns the value at the entry of the callee, in the callee's scope: the globals keep their values,
// the g-shadows take the values of their globals, and the formals and f-shadows take the values of the actuals.
func (a *analysis) calleeEntry(prep *program.CallPrep, in *Element) (*Element, error) {
	callee := a.prog.Func(prep.Callee)
	st := callee.SymbolTable()
	out := NewElementIn(a.prog)
	for _, g := range a.prog.GlobalLikes() {
		val := in.Get(g)
		out.Set(g, val)
		if gs, ok := st.GShadow(g); ok {
			out.Set(gs, val)
		}
	}
	for _, p := range prep.Params {
		val := a.valueOf(in, p.Actual)
		out.Set(p.Formal, val)
		if p.ByRef {
			fs, ok := st.FShadow(p.Formal)
			if !ok {
				return nil, dataflow.NewModelError(a.prog, p.Formal, prep.ID(), "formal parameter has no f-shadow")
			}
			out.Set(fs, val)
		}
	}
	if a.state.Logger.LogsTrace() {
		a.state.Logger.Tracef("entry of %s: %s\n", callee.Name, out.StringIn(a.prog))
	}
	return out, nil
}

func (a *analysis) callReturn(ret *program.CallRet) dataflow.ReturnTransfer[*Element] {
	prep := a.prog.Node(ret.Prep()).(*program.CallPrep)
	cr := &CallReturn{
		Prog:    a.prog,
		Prep:    prep,
		Ret:     ret,
		Aliases: a.opts.Aliases,
	}
	if a.opts.Mod != nil {
		if mod, ok := a.opts.Mod.Modified(prep.Callee); ok {
			cr.Mod = mod
		}
	}
	return cr
}
