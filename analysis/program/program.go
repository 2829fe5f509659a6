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

// Package program contains the program model consumed by the analyses: variables, functions with their symbol
// tables, and the control-flow graph of every function. The model is an arena: variables, functions and nodes are
// identified by integer handles, so that the cross-references between callers and callees (which form cycles in
// recursive programs) do not need pointers.
//
// A program is built once, with a [Builder] or from a fixture with [LoadYAML], and is read-only afterwards.
package program

import (
	"fmt"

	"github.com/awslabs/ar-php-tools/internal/graphutil"
)

// Program is a whole program: the main function and the user-defined functions.
type Program struct {
	vars  []*Variable
	funcs []*Function
	nodes []Node
	succs [][]NodeID
	preds [][]NodeID

	funcByName map[string]FuncID

	// globalByName maps the names of the global-like variables to the variables
	globalByName map[string]VarID

	// Main is the main function of the program
	Main FuncID
}

// NumVars returns the number of variables in the program. Variable handles are 0..NumVars()-1
func (p *Program) NumVars() int {
	return len(p.vars)
}

// NumNodes returns the number of nodes in the program. Node handles are 0..NumNodes()-1
func (p *Program) NumNodes() int {
	return len(p.nodes)
}

// NumFuncs returns the number of functions in the program. Function handles are 0..NumFuncs()-1
func (p *Program) NumFuncs() int {
	return len(p.funcs)
}

// ValidVar returns true if v is a variable of the program
func (p *Program) ValidVar(v VarID) bool {
	return v >= 0 && int(v) < len(p.vars)
}

// Var returns the variable v. It panics if v is not a variable of the program; use ValidVar to check handles that
// do not come from the program itself.
func (p *Program) Var(v VarID) *Variable {
	return p.vars[v]
}

// Func returns the function f
func (p *Program) Func(f FuncID) *Function {
	return p.funcs[f]
}

// Node returns the node n
func (p *Program) Node(n NodeID) Node {
	return p.nodes[n]
}

// MainFunc returns the main function
func (p *Program) MainFunc() *Function {
	return p.funcs[p.Main]
}

// Functions returns all the functions, the main function first
func (p *Program) Functions() []*Function {
	return p.funcs
}

// FuncByName returns the function named name
func (p *Program) FuncByName(name string) (*Function, bool) {
	f, ok := p.funcByName[name]
	if !ok {
		return nil, false
	}
	return p.funcs[f], true
}

// GlobalByName returns the global, superglobal or constant named name
func (p *Program) GlobalByName(name string) (VarID, bool) {
	v, ok := p.globalByName[name]
	return v, ok
}

// Succs returns the successors of n in the control-flow graph. The call preparation nodes have their paired
// call-return node as unique successor. The result must not be modified.
func (p *Program) Succs(n NodeID) []NodeID {
	return p.succs[n]
}

// Preds returns the predecessors of n in the control-flow graph. The result must not be modified.
func (p *Program) Preds(n NodeID) []NodeID {
	return p.preds[n]
}

// GlobalLikes returns all the global-like variables: globals, superglobals and constants.
func (p *Program) GlobalLikes() []VarID {
	var res []VarID
	for _, v := range p.vars {
		if v.IsGlobalLike() {
			res = append(res, v.ID)
		}
	}
	return res
}

// Superglobals returns the superglobal variables
func (p *Program) Superglobals() []VarID {
	var res []VarID
	for _, v := range p.vars {
		if v.Kind == Superglobal {
			res = append(res, v.ID)
		}
	}
	return res
}

// Locals returns the non-temporary variables owned by the function: its locals, formals and shadows. For the main
// function, those are the globals.
func (p *Program) Locals(f FuncID) []VarID {
	var res []VarID
	for _, v := range p.funcs[f].vars {
		if !p.vars[v].IsTemporary() {
			res = append(res, v)
		}
	}
	return res
}

// Temporaries returns the temporary variables owned by the function
func (p *Program) Temporaries(f FuncID) []VarID {
	var res []VarID
	for _, v := range p.funcs[f].vars {
		if p.vars[v].IsTemporary() {
			res = append(res, v)
		}
	}
	return res
}

// VisibleIn returns true if the variable v can appear in the analysis state of function f: v is owned by f, or v is a
// global-like variable.
func (p *Program) VisibleIn(v VarID, f FuncID) bool {
	if !p.ValidVar(v) {
		return false
	}
	vr := p.vars[v]
	return vr.Owner == f || vr.IsGlobalLike()
}

// VarString returns a readable name of the variable, qualified by its function if it is not global-like
func (p *Program) VarString(v VarID) string {
	if !p.ValidVar(v) {
		return fmt.Sprintf("<invalid v%d>", v)
	}
	vr := p.vars[v]
	if vr.IsGlobalLike() {
		return vr.String()
	}
	return p.funcs[vr.Owner].Name + "::" + vr.String()
}

// NodeString returns a readable description of the node with its function
func (p *Program) NodeString(n NodeID) string {
	if n < 0 || int(n) >= len(p.nodes) {
		return fmt.Sprintf("<invalid n%d>", n)
	}
	node := p.nodes[n]
	return fmt.Sprintf("%s#%d(%s)", p.funcs[node.Func()].Name, n, node)
}

// CFG returns a view of the control-flow graph of the whole program, where the nodes of the graph are the node handles.
// There are no edges between functions.
func (p *Program) CFG() *graphutil.Graph {
	return graphutil.NewGraph(len(p.nodes), func(x int) []int {
		succs := p.succs[x]
		res := make([]int, len(succs))
		for i, s := range succs {
			res[i] = int(s)
		}
		return res
	})
}

// Callees returns the functions called by f, without duplicates, in order of first call.
func (p *Program) Callees(f FuncID) []FuncID {
	var res []FuncID
	seen := map[FuncID]bool{}
	for _, n := range p.funcs[f].nodes {
		if prep, ok := p.nodes[n].(*CallPrep); ok && !seen[prep.Callee] {
			seen[prep.Callee] = true
			res = append(res, prep.Callee)
		}
	}
	return res
}

// CallGraph returns a view of the call graph where the nodes of the graph are the function handles.
func (p *Program) CallGraph() *graphutil.Graph {
	return graphutil.NewGraph(len(p.funcs), func(x int) []int {
		callees := p.Callees(FuncID(x))
		res := make([]int, len(callees))
		for i, c := range callees {
			res[i] = int(c)
		}
		return res
	})
}

// CallSites returns the call preparation nodes calling f
func (p *Program) CallSites(f FuncID) []*CallPrep {
	var res []*CallPrep
	for _, n := range p.nodes {
		if prep, ok := n.(*CallPrep); ok && prep.Callee == f {
			res = append(res, prep)
		}
	}
	return res
}
