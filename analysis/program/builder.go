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

package program

import (
	"errors"
	"fmt"
	"sort"
)

// MainName is the name of the main function of every program
const MainName = "_main"

// ParamDecl declares a formal parameter of a function
type ParamDecl struct {
	Name  string
	ByRef bool
}

// Builder constructs a program. The main function is created with the builder; the other functions are created with
// Function. Calls to user-defined functions are resolved when the program is built, so functions can be called before
// they are declared.
type Builder struct {
	p     *Program
	funcs []*FunctionBuilder
	errs  []error
	built bool
}

// NewBuilder returns a builder for a program with an empty main function
func NewBuilder() *Builder {
	b := &Builder{p: &Program{
		funcByName:   map[string]FuncID{},
		globalByName: map[string]VarID{},
	}}
	m := b.newFunction(MainName, true)
	b.p.Main = m.fn.ID
	return b
}

// Main returns the builder of the main function
func (b *Builder) Main() *FunctionBuilder {
	return b.funcs[b.p.Main]
}

// Global returns the ordinary global variable name, creating it if necessary
func (b *Builder) Global(name string) VarID {
	return b.globalLike(name, Ordinary)
}

// Superglobal returns the superglobal variable name, creating it if necessary
func (b *Builder) Superglobal(name string) VarID {
	return b.globalLike(name, Superglobal)
}

// Constant returns the constant name, creating it if necessary
func (b *Builder) Constant(name string) VarID {
	return b.globalLike(name, Constant)
}

func (b *Builder) globalLike(name string, kind VarKind) VarID {
	if v, ok := b.p.globalByName[name]; ok {
		if b.p.vars[v].Kind != kind {
			b.errorf("%s is declared with two different kinds", name)
		}
		return v
	}
	m := b.Main()
	v := b.newVar(name, m.fn, Global, kind, NoVar)
	m.fn.symbols.byName[name] = v
	b.p.globalByName[name] = v
	return v
}

// IsConstant returns true if name has been declared as a constant
func (b *Builder) IsConstant(name string) bool {
	v, ok := b.p.globalByName[name]
	return ok && b.p.vars[v].Kind == Constant
}

// HasFunction returns true if a user-defined function name has been declared
func (b *Builder) HasFunction(name string) bool {
	_, ok := b.p.funcByName[name]
	return ok
}

// Function declares a new user-defined function and returns its builder
func (b *Builder) Function(name string, params ...ParamDecl) *FunctionBuilder {
	if _, ok := b.p.funcByName[name]; ok {
		b.errorf("function %s is declared twice", name)
	}
	fb := b.newFunction(name, false)
	for _, param := range params {
		v := b.newVar(param.Name, fb.fn, FormalScope, Ordinary, NoVar)
		fb.fn.symbols.byName[param.Name] = v
		fb.fn.Formals = append(fb.fn.Formals, Formal{Var: v, ByRef: param.ByRef})
	}
	fb.fn.RetVar = b.newVar("ret", fb.fn, Local, Return, NoVar)
	return fb
}

func (b *Builder) newFunction(name string, isMain bool) *FunctionBuilder {
	fn := &Function{
		ID:      FuncID(len(b.p.funcs)),
		Name:    name,
		IsMain:  isMain,
		RetVar:  NoVar,
		Exit:    NoNode,
		symbols: newSymbolTable(),
	}
	b.p.funcs = append(b.p.funcs, fn)
	b.p.funcByName[name] = fn.ID
	fb := &FunctionBuilder{b: b, fn: fn}
	b.funcs = append(b.funcs, fb)
	entry := &Entry{base: fb.base()}
	b.addNode(entry)
	fn.Entry = entry.id
	fb.tails = []NodeID{entry.id}
	return fb
}

func (b *Builder) newVar(name string, fn *Function, scope Scope, kind VarKind, shadowOf VarID) VarID {
	v := &Variable{
		ID:       VarID(len(b.p.vars)),
		Name:     name,
		Owner:    fn.ID,
		Scope:    scope,
		Kind:     kind,
		ShadowOf: shadowOf,
	}
	b.p.vars = append(b.p.vars, v)
	fn.vars = append(fn.vars, v.ID)
	return v.ID
}

func (b *Builder) addNode(n Node) {
	if int(n.ID()) != len(b.p.nodes) {
		panic(fmt.Sprintf("node %d allocated out of order", n.ID()))
	}
	b.p.nodes = append(b.p.nodes, n)
	b.p.succs = append(b.p.succs, nil)
	fn := b.p.funcs[n.Func()]
	fn.nodes = append(fn.nodes, n.ID())
}

func (b *Builder) addEdge(from, to NodeID) {
	for _, s := range b.p.succs[from] {
		if s == to {
			return
		}
	}
	b.p.succs[from] = append(b.p.succs[from], to)
}

func (b *Builder) errorf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// Build finishes the construction of the program: exit nodes are added, calls are resolved, shadows are created and
// the program is validated. The builder must not be used after Build.
func (b *Builder) Build() (*Program, error) {
	if b.built {
		return nil, fmt.Errorf("program already built")
	}
	b.built = true
	for _, fb := range b.funcs {
		fb.finish()
	}
	for _, fb := range b.funcs {
		for _, call := range fb.calls {
			b.resolveCall(fb, call)
		}
	}
	b.createShadows()
	b.computePreds()
	b.validate()
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	return b.p, nil
}

func (b *Builder) resolveCall(caller *FunctionBuilder, call pendingCall) {
	fid, ok := b.p.funcByName[call.name]
	if !ok || fid == b.p.Main {
		b.errorf("%s: call to undeclared function %s", caller.fn.Name, call.name)
		return
	}
	callee := b.p.funcs[fid]
	call.prep.Callee = fid
	for i, formal := range callee.Formals {
		actual := Lit("")
		if i < len(call.actuals) {
			actual = call.actuals[i]
		}
		if formal.ByRef && !actual.IsVar() {
			b.errorf("%s: literal passed by reference to parameter %d of %s", caller.fn.Name, i, call.name)
			continue
		}
		if formal.ByRef && !b.p.vars[actual.Var].Aliasable() {
			b.errorf("%s: %s cannot be passed by reference to %s", caller.fn.Name,
				b.p.vars[actual.Var], call.name)
			continue
		}
		call.prep.Params = append(call.prep.Params, Param{Actual: actual, Formal: formal.Var, ByRef: formal.ByRef})
	}
}

// createShadows creates a g-shadow for every ordinary global and superglobal, and an f-shadow for every formal, in
// every function but the main function. Constants cannot be written and have no shadows.
func (b *Builder) createShadows() {
	var globals []VarID
	for _, v := range b.p.vars {
		if v.IsGlobalLike() && v.Kind != Constant {
			globals = append(globals, v.ID)
		}
	}
	for _, fn := range b.p.funcs {
		if fn.IsMain {
			continue
		}
		for _, g := range globals {
			s := b.newVar(b.p.vars[g].Name, fn, Local, GShadow, g)
			fn.symbols.gShadows[g] = s
		}
		for _, formal := range fn.Formals {
			s := b.newVar(b.p.vars[formal.Var].Name, fn, Local, FShadow, formal.Var)
			fn.symbols.fShadows[formal.Var] = s
		}
	}
}

func (b *Builder) computePreds() {
	b.p.preds = make([][]NodeID, len(b.p.nodes))
	for from, succs := range b.p.succs {
		for _, to := range succs {
			b.p.preds[to] = append(b.p.preds[to], NodeID(from))
		}
	}
	for _, preds := range b.p.preds {
		sort.Slice(preds, func(i, j int) bool { return preds[i] < preds[j] })
	}
}

// validate checks that every variable used by a node is visible in the node's function
func (b *Builder) validate() {
	for _, n := range b.p.nodes {
		for _, v := range NodeVars(n) {
			if !b.p.VisibleIn(v, n.Func()) {
				b.errorf("%s uses %s, which is not visible in the function", b.p.NodeString(n.ID()), b.p.VarString(v))
			}
		}
	}
}

// NodeVars returns the variables read or written by the node
func NodeVars(n Node) []VarID {
	var res []VarID
	add := func(vs ...VarID) {
		for _, v := range vs {
			if v != NoVar {
				res = append(res, v)
			}
		}
	}
	addPlace := func(ps ...Place) {
		for _, p := range ps {
			if p.IsVar() {
				add(p.Var)
			}
		}
	}
	switch n := n.(type) {
	case *Entry, *Exit, *Empty, *Include:
	case *Assign:
		add(n.Left)
		addPlace(n.Right)
	case *AssignBinary:
		add(n.Left)
		addPlace(n.X, n.Y)
	case *AssignUnary:
		add(n.Left)
		addPlace(n.X)
	case *AssignRef:
		add(n.Left, n.Right)
	case *AssignArray:
		add(n.Left)
	case *ArrayStore:
		add(n.Array)
		addPlace(n.Index, n.Value)
	case *ArrayLoad:
		add(n.Left, n.Array)
		addPlace(n.Index)
	case *Unset:
		add(n.Var)
	case *GlobalDecl:
		add(n.Local, n.Global)
	case *CallPrep:
		for _, p := range n.Params {
			addPlace(p.Actual)
		}
	case *CallRet:
		add(n.Result)
	case *CallBuiltin:
		add(n.Result)
		addPlace(n.Args...)
	}
	return res
}

type pendingCall struct {
	name    string
	prep    *CallPrep
	actuals []Place
}

// FunctionBuilder appends nodes to the control-flow graph of a function. Each statement is linked to the open tails
// of the graph, and becomes the only open tail.
type FunctionBuilder struct {
	b        *Builder
	fn       *Function
	tails    []NodeID
	returns  []NodeID
	calls    []pendingCall
	numTemps int
}

// ID returns the handle of the function being built
func (fb *FunctionBuilder) ID() FuncID {
	return fb.fn.ID
}

// Name returns the name of the function being built
func (fb *FunctionBuilder) Name() string {
	return fb.fn.Name
}

func (fb *FunctionBuilder) base() base {
	return base{id: NodeID(len(fb.b.p.nodes)), fn: fb.fn.ID}
}

// Local returns the variable name of the function, creating a local variable if necessary. In the main function,
// local variables are globals. Superglobals and constants are resolved to the global-like variable.
func (fb *FunctionBuilder) Local(name string) VarID {
	if v, ok := fb.b.p.globalByName[name]; ok && fb.b.p.vars[v].Kind != Ordinary {
		return v
	}
	if fb.fn.IsMain {
		return fb.b.Global(name)
	}
	if v, ok := fb.fn.symbols.byName[name]; ok {
		return v
	}
	v := fb.b.newVar(name, fb.fn, Local, Ordinary, NoVar)
	fb.fn.symbols.byName[name] = v
	return v
}

// Temp returns a fresh temporary variable
func (fb *FunctionBuilder) Temp() VarID {
	fb.numTemps++
	return fb.b.newVar(fmt.Sprintf("t%d", fb.numTemps), fb.fn, Temporary, Ordinary, NoVar)
}

// Formal returns the i-th formal parameter of the function
func (fb *FunctionBuilder) Formal(i int) VarID {
	return fb.fn.Formals[i].Var
}

// RetVar returns the variable holding the return value of the function
func (fb *FunctionBuilder) RetVar() VarID {
	return fb.fn.RetVar
}

func (fb *FunctionBuilder) emit(n Node) NodeID {
	fb.b.addNode(n)
	for _, t := range fb.tails {
		fb.b.addEdge(t, n.ID())
	}
	fb.tails = []NodeID{n.ID()}
	return n.ID()
}

// Assign emits left = right
func (fb *FunctionBuilder) Assign(left VarID, right Place) NodeID {
	return fb.emit(&Assign{base: fb.base(), Left: left, Right: right})
}

// Binary emits left = x op y
func (fb *FunctionBuilder) Binary(left VarID, op BinOp, x, y Place) NodeID {
	return fb.emit(&AssignBinary{base: fb.base(), Left: left, Op: op, X: x, Y: y})
}

// Unary emits left = op x
func (fb *FunctionBuilder) Unary(left VarID, op UnOp, x Place) NodeID {
	return fb.emit(&AssignUnary{base: fb.base(), Left: left, Op: op, X: x})
}

// Ref emits left =& right
func (fb *FunctionBuilder) Ref(left, right VarID) NodeID {
	return fb.emit(&AssignRef{base: fb.base(), Left: left, Right: right})
}

// Array emits left = array()
func (fb *FunctionBuilder) Array(left VarID) NodeID {
	return fb.emit(&AssignArray{base: fb.base(), Left: left})
}

// Store emits array[index] = value
func (fb *FunctionBuilder) Store(array VarID, index, value Place) NodeID {
	return fb.emit(&ArrayStore{base: fb.base(), Array: array, Index: index, Value: value})
}

// Load emits left = array[index]
func (fb *FunctionBuilder) Load(left, array VarID, index Place) NodeID {
	return fb.emit(&ArrayLoad{base: fb.base(), Left: left, Array: array, Index: index})
}

// Unset emits unset(v)
func (fb *FunctionBuilder) Unset(v VarID) NodeID {
	return fb.emit(&Unset{base: fb.base(), Var: v})
}

// Global emits "global $name": the local variable name becomes a reference to the global variable name. In the main
// function, the statement has no effect and an empty node is emitted.
func (fb *FunctionBuilder) Global(name string) NodeID {
	g := fb.b.Global(name)
	if fb.fn.IsMain {
		return fb.emit(&Empty{base: fb.base()})
	}
	return fb.emit(&GlobalDecl{base: fb.base(), Local: fb.Local(name), Global: g})
}

// Include emits the inclusion of file
func (fb *FunctionBuilder) Include(file string) NodeID {
	return fb.emit(&Include{base: fb.base(), File: file})
}

// Empty emits a node without effects
func (fb *FunctionBuilder) Empty() NodeID {
	return fb.emit(&Empty{base: fb.base()})
}

// Call emits a call to the user-defined function callee, and returns the call preparation and call return nodes.
// The result is assigned to result, unless result is NoVar. The callee is resolved when the program is built: missing
// actuals are passed as empty literals, and extra actuals are ignored.
func (fb *FunctionBuilder) Call(callee string, result VarID, actuals ...Place) (NodeID, NodeID) {
	prep := &CallPrep{base: fb.base(), Callee: NoFunc}
	fb.emit(prep)
	ret := &CallRet{base: fb.base(), Result: result, prep: prep.id}
	fb.emit(ret)
	prep.ret = ret.id
	fb.calls = append(fb.calls, pendingCall{name: callee, prep: prep, actuals: actuals})
	return prep.id, ret.id
}

// Builtin emits a call to the library function name. The result is assigned to result, unless result is NoVar.
func (fb *FunctionBuilder) Builtin(name string, result VarID, args ...Place) NodeID {
	return fb.emit(&CallBuiltin{base: fb.base(), Name: name, Args: args, Result: result})
}

// Return emits the assignment of x to the return variable, and links the current tail to the exit of the function.
// Statements emitted after Return are unreachable until the next join.
func (fb *FunctionBuilder) Return(x Place) {
	if !fb.fn.IsMain {
		fb.Assign(fb.fn.RetVar, x)
	}
	fb.returns = append(fb.returns, fb.tails...)
	fb.tails = nil
}

// Branch emits a two-way branch. The else function may be nil.
func (fb *FunctionBuilder) Branch(then func(*FunctionBuilder), els func(*FunctionBuilder)) {
	cond := fb.Empty()
	then(fb)
	thenTails := fb.tails
	fb.tails = []NodeID{cond}
	if els != nil {
		els(fb)
	}
	fb.tails = append(fb.tails, thenTails...)
	fb.Empty()
}

// Loop emits a loop whose body may execute zero or more times
func (fb *FunctionBuilder) Loop(body func(*FunctionBuilder)) {
	header := fb.Empty()
	body(fb)
	for _, t := range fb.tails {
		fb.b.addEdge(t, header)
	}
	fb.tails = []NodeID{header}
	fb.Empty()
}

func (fb *FunctionBuilder) finish() {
	exit := &Exit{base: fb.base()}
	fb.tails = append(fb.tails, fb.returns...)
	fb.emit(exit)
	fb.fn.Exit = exit.id
}
