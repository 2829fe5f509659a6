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
	"embed"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-php-tools/internal/graphutil"
	"golang.org/x/exp/slices"
)

//go:embed testdata
var testfsys embed.FS

func loadTestProgram(t *testing.T, name string) (*Program, error) {
	t.Helper()
	filename := filepath.Join("testdata", name)
	b, err := testfsys.ReadFile(filename)
	if err != nil {
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return LoadYAMLBytes(filename, b)
}

func mustLoad(t *testing.T, name string) *Program {
	t.Helper()
	p, err := loadTestProgram(t, name)
	if err != nil {
		t.Fatalf("failed to load %s: %v", name, err)
	}
	return p
}

func TestLoadProgram(t *testing.T) {
	p := mustLoad(t, "calls_and_loops.yaml")
	if p.MainFunc().Name != MainName || !p.MainFunc().IsMain {
		t.Fatalf("first function should be main, got %s", p.MainFunc().Name)
	}
	if p.NumFuncs() != 3 {
		t.Fatalf("expected 3 functions, got %d", p.NumFuncs())
	}
	f, ok := p.FuncByName("f")
	if !ok {
		t.Fatalf("function f not found")
	}
	if len(f.Formals) != 2 || !f.Formals[0].ByRef || f.Formals[1].ByRef {
		t.Errorf("unexpected formals of f: %v", f.Formals)
	}
	for _, formal := range f.Formals {
		if v := p.Var(formal.Var); v.Scope != FormalScope || v.Scope.String() != "formal" || v.Owner != f.ID {
			t.Errorf("formal %s should have the formal scope, got %s", v, v.Scope)
		}
	}
	if p.Var(f.RetVar).Kind != Return {
		t.Errorf("return variable should have kind Return")
	}
	// _GET, _POST, g, h and the main variables a, r, x; constants have no shadows
	if ng, nf := f.SymbolTable().NumShadows(); ng != 7 || nf != 2 {
		t.Errorf("expected 7 g-shadows and 2 f-shadows in f, got %d and %d", ng, nf)
	}
	g, ok := p.GlobalByName("g")
	if !ok {
		t.Fatalf("global g not found")
	}
	gs, ok := f.SymbolTable().GShadow(g)
	if !ok || p.Var(gs).ShadowOf != g || p.Var(gs).Owner != f.ID || p.Var(gs).String() != "g_gs" {
		t.Errorf("unexpected g-shadow of g in f")
	}
	debug, _ := p.GlobalByName("DEBUG")
	if _, ok := f.SymbolTable().GShadow(debug); ok {
		t.Errorf("constants should not have g-shadows")
	}
	if _, ok := p.MainFunc().SymbolTable().GShadow(g); ok {
		t.Errorf("main should not have g-shadows")
	}
}

func TestCallSites(t *testing.T) {
	p := mustLoad(t, "calls_and_loops.yaml")
	f, _ := p.FuncByName("f")
	sites := p.CallSites(f.ID)
	if len(sites) != 1 {
		t.Fatalf("expected one call site of f, got %d", len(sites))
	}
	prep := sites[0]
	a, _ := p.GlobalByName("a")
	debug, _ := p.GlobalByName("DEBUG")
	cbr := prep.CbrParams()
	if len(cbr) != 1 || cbr[0].Actual.Var != a || cbr[0].Formal != f.Formals[0].Var {
		t.Errorf("unexpected by-reference parameters %v", cbr)
	}
	if len(prep.Params) != 2 || prep.Params[1].Actual.Var != debug {
		t.Errorf("unexpected parameters %v", prep.Params)
	}
	succs := p.Succs(prep.ID())
	if len(succs) != 1 || succs[0] != prep.Ret() {
		t.Errorf("call preparation should flow to its call return")
	}
	ret, ok := p.Node(prep.Ret()).(*CallRet)
	if !ok || ret.Prep() != prep.ID() {
		t.Fatalf("call return not paired with the call preparation")
	}
	r, _ := p.GlobalByName("r")
	if ret.Result != r {
		t.Errorf("call result should be assigned to r")
	}
}

func TestCallGraph(t *testing.T) {
	p := mustLoad(t, "calls_and_loops.yaml")
	cg := p.CallGraph()
	f, _ := p.FuncByName("f")
	setg, _ := p.FuncByName("setg")
	callees := cg.Succs(int(p.Main))
	if len(callees) != 2 || callees[0] != int(f.ID) || callees[1] != int(setg.ID) {
		t.Errorf("unexpected callees of main %v", callees)
	}
	if len(cg.Succs(int(f.ID))) != 0 {
		t.Errorf("f has no callees")
	}
}

func TestEveryFunctionReachesExit(t *testing.T) {
	p := mustLoad(t, "calls_and_loops.yaml")
	cfg := p.CFG()
	for _, fn := range p.Functions() {
		reached := graphutil.ReversePostorder(cfg, []int{int(fn.Entry)})
		if !slices.Contains(reached, int(fn.Exit)) {
			t.Errorf("exit of %s not reachable from its entry", fn.Name)
		}
		for _, n := range reached {
			if p.Node(NodeID(n)).Func() != fn.ID {
				t.Errorf("control flows from %s into %s", fn.Name, p.NodeString(NodeID(n)))
			}
		}
	}
	if graphutil.Acyclic(cfg) {
		t.Errorf("the while loop of main should create a cycle")
	}
}

func TestPredsAreInverseOfSuccs(t *testing.T) {
	p := mustLoad(t, "calls_and_loops.yaml")
	for n := 0; n < p.NumNodes(); n++ {
		for _, s := range p.Succs(NodeID(n)) {
			found := false
			for _, pred := range p.Preds(s) {
				found = found || pred == NodeID(n)
			}
			if !found {
				t.Errorf("%d -> %d has no inverse edge", n, s)
			}
		}
	}
}

func TestLocalsAndTemporaries(t *testing.T) {
	b := NewBuilder()
	b.Superglobal("_GET")
	m := b.Main()
	x := m.Local("x")
	tmp := m.Temp()
	fb := b.Function("f", ParamDecl{Name: "p", ByRef: true})
	y := fb.Local("y")
	get := fb.Local("_GET")
	fb.Assign(y, V(get))
	m.Assign(tmp, V(x))
	m.Call("f", NoVar, V(x))
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if !p.Var(x).IsGlobalLike() {
		t.Errorf("variables of main are globals")
	}
	if p.Var(get).Kind != Superglobal {
		t.Errorf("superglobals should be resolved in every function")
	}
	if !p.Var(tmp).IsTemporary() || p.Var(tmp).Aliasable() {
		t.Errorf("temporaries cannot be aliased")
	}
	for _, v := range p.Locals(p.Main) {
		if v == tmp {
			t.Errorf("temporaries are not locals")
		}
	}
	if temps := p.Temporaries(p.Main); len(temps) != 1 || temps[0] != tmp {
		t.Errorf("unexpected temporaries %v", temps)
	}
	// y, the formal, the return variable, the g-shadows of _GET and x, and the f-shadow of p
	if locals := p.Locals(fb.ID()); len(locals) != 6 {
		t.Errorf("expected 6 locals in f, got %d", len(locals))
	}
	if !p.VisibleIn(x, fb.ID()) || p.VisibleIn(y, p.Main) {
		t.Errorf("unexpected visibility")
	}
	if p.VarString(y) != "f::$y" {
		t.Errorf("unexpected name %s", p.VarString(y))
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		build   func(b *Builder)
		wantErr string
	}{
		{
			name:    "undeclared function",
			build:   func(b *Builder) { b.Main().Call("nope", NoVar) },
			wantErr: "undeclared function nope",
		},
		{
			name: "variable of another function",
			build: func(b *Builder) {
				fb := b.Function("f")
				y := fb.Local("y")
				b.Main().Assign(b.Main().Local("x"), V(y))
			},
			wantErr: "not visible",
		},
		{
			name: "constant by reference",
			build: func(b *Builder) {
				b.Function("f", ParamDecl{Name: "p", ByRef: true})
				b.Main().Call("f", NoVar, V(b.Constant("C")))
			},
			wantErr: "cannot be passed by reference",
		},
		{
			name: "duplicate function",
			build: func(b *Builder) {
				b.Function("f")
				b.Function("f")
			},
			wantErr: "declared twice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			_, err := b.Build()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMissingActualsAreEmptyLiterals(t *testing.T) {
	b := NewBuilder()
	b.Function("f", ParamDecl{Name: "p"}, ParamDecl{Name: "q"})
	prep, _ := b.Main().Call("f", NoVar, Lit("1"), Lit("2"), Lit("3"))
	prep2, _ := b.Main().Call("f", NoVar)
	p, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	if params := p.Node(prep).(*CallPrep).Params; len(params) != 2 {
		t.Errorf("extra actuals should be ignored, got %v", params)
	}
	params := p.Node(prep2).(*CallPrep).Params
	if len(params) != 2 || params[0].Actual.IsVar() || params[1].Actual.Literal != "" {
		t.Errorf("missing actuals should be empty literals, got %v", params)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		file    string
		wantErr string
	}{
		{"bad_byref.yaml", "literal passed by reference"},
		{"bad_statement.yaml", "unknown unary operator"},
		{"bad_structured.yaml", "exactly one of if or while"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			_, err := loadTestProgram(t, tt.file)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseStatements(t *testing.T) {
	tests := []struct {
		stmt  string
		check func(n Node) bool
	}{
		{"$x = 1", func(n Node) bool { a, ok := n.(*Assign); return ok && a.Right.Literal == "1" }},
		{"$x = $y . 'a'", func(n Node) bool { a, ok := n.(*AssignBinary); return ok && a.Op == Concat }},
		{"$x = $y == $z", func(n Node) bool { a, ok := n.(*AssignBinary); return ok && a.Op == Equal }},
		{"$x = (int) $y", func(n Node) bool { a, ok := n.(*AssignUnary); return ok && a.Op == CastInt }},
		{"$x = !$y", func(n Node) bool { a, ok := n.(*AssignUnary); return ok && a.Op == Not }},
		{"$x =& $y", func(n Node) bool { _, ok := n.(*AssignRef); return ok }},
		{"$x = array()", func(n Node) bool { _, ok := n.(*AssignArray); return ok }},
		{"$x[1] = $y", func(n Node) bool { _, ok := n.(*ArrayStore); return ok }},
		{"$x = $y['k']", func(n Node) bool { a, ok := n.(*ArrayLoad); return ok && a.Index.Literal == "k" }},
		{"$x = strlen($y)", func(n Node) bool { c, ok := n.(*CallBuiltin); return ok && c.Name == "strlen" }},
		{"echo($y, 'a')", func(n Node) bool { c, ok := n.(*CallBuiltin); return ok && len(c.Args) == 2 && c.Result == NoVar }},
		{"unset($x)", func(n Node) bool { _, ok := n.(*Unset); return ok }},
		{"include 'a.php'", func(n Node) bool { i, ok := n.(*Include); return ok && i.File == "a.php" }},
	}
	for _, tt := range tests {
		t.Run(tt.stmt, func(t *testing.T) {
			b := NewBuilder()
			m := b.Main()
			if err := emitStmt(m, tt.stmt); err != nil {
				t.Fatalf("failed to parse: %v", err)
			}
			p, err := b.Build()
			if err != nil {
				t.Fatal(err)
			}
			// entry, statement, exit
			if n := p.Node(1); !tt.check(n) {
				t.Errorf("unexpected node %s", n)
			}
		})
	}
}

func TestLoadYAMLFromFile(t *testing.T) {
	p, err := LoadYAML(filepath.Join("testdata", "calls_and_loops.yaml"))
	if err != nil {
		t.Fatalf("failed to load program: %v", err)
	}
	if _, ok := p.FuncByName("setg"); !ok {
		t.Errorf("function setg not found")
	}
	if _, err := LoadYAML(filepath.Join("testdata", "does_not_exist.yaml")); err == nil {
		t.Errorf("expected an error for a missing file")
	}
}
