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
	"embed"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/awslabs/ar-php-tools/analysis/alias"
	"github.com/awslabs/ar-php-tools/analysis/config"
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/mod"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/analysis/sanitizer"
	"github.com/awslabs/ar-php-tools/analysis/typing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var testfsys embed.FS

const (
	lGet  Label = 1
	lPost Label = 2
	lDB   Label = 3
)

type testRun struct {
	prog    *program.Program
	aliases *alias.Result
	res     *Result
}

func loadConfig(t *testing.T) *config.Config {
	b, err := testfsys.ReadFile("testdata/config.yaml")
	require.NoError(t, err)
	c, err := config.LoadFromBytes("config.yaml", b)
	require.NoError(t, err)
	return c
}

func loadProgram(t *testing.T, name string) *program.Program {
	filename := filepath.Join("testdata", name)
	b, err := testfsys.ReadFile(filename)
	require.NoError(t, err)
	p, err := program.LoadYAMLBytes(filename, b)
	require.NoError(t, err)
	return p
}

// analyze runs the analyses the dependency analysis depends on, and the dependency analysis
func analyze(t *testing.T, name string, withMod bool) testRun {
	c := loadConfig(t)
	p := loadProgram(t, name)
	l := config.NewLogGroup(c)
	l.SetAllOutput(io.Discard)
	state := dataflow.NewAnalyzerState(p, l, c)
	aliases, err := alias.Analyze(state)
	require.NoError(t, err)
	types, err := typing.Analyze(state, aliases)
	require.NoError(t, err)
	opts := Options{
		Aliases:    aliases,
		Types:      types,
		Sanitizers: sanitizer.NewPatternOracle(c),
	}
	if withMod {
		opts.Mod = mod.Compute(state, aliases)
	}
	res, err := Analyze(state, opts)
	require.NoError(t, err)
	return testRun{prog: p, aliases: aliases, res: res}
}

// echoes returns the calls to echo in function fname, in order
func (r testRun) echoes(t *testing.T, fname string) []*program.CallBuiltin {
	fn, ok := r.prog.FuncByName(fname)
	require.True(t, ok, fname)
	var res []*program.CallBuiltin
	for _, n := range fn.Nodes() {
		if call, ok := r.prog.Node(n).(*program.CallBuiltin); ok && call.Name == "echo" {
			res = append(res, call)
		}
	}
	return res
}

func (r testRun) local(t *testing.T, fname, name string) program.VarID {
	fn, ok := r.prog.FuncByName(fname)
	require.True(t, ok, fname)
	v, ok := fn.SymbolTable().Lookup(name)
	require.True(t, ok, "%s in %s", name, fname)
	return v
}

func (r testRun) global(t *testing.T, name string) program.VarID {
	v, ok := r.prog.GlobalByName(name)
	require.True(t, ok, name)
	return v
}

func (r testRun) callTo(t *testing.T, caller, callee string) *program.CallPrep {
	fn, ok := r.prog.FuncByName(callee)
	require.True(t, ok, callee)
	for _, prep := range r.prog.CallSites(fn.ID) {
		if r.prog.Func(prep.Func()).Name == caller {
			return prep
		}
	}
	t.Fatalf("no call to %s in %s", callee, caller)
	return nil
}

func assertDep(t *testing.T, want DepSet, got DepSet, what ...string) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "%s: expected %s, got %s", strings.Join(what, " "), want, got)
}

// both runs the test with and without modification summaries
func both(t *testing.T, test func(t *testing.T, withMod bool)) {
	t.Run("summaries", func(t *testing.T) { test(t, true) })
	t.Run("conservative", func(t *testing.T) { test(t, false) })
}

func TestByReferenceWriteReachesCaller(t *testing.T) {
	both(t, func(t *testing.T, withMod bool) {
		r := analyze(t, "byref.yaml", withMod)
		a := r.local(t, "caller", "a")
		prep := r.callTo(t, "caller", "f")

		assertDep(t, Of(Untainted), r.res.Dep(a, prep.ID()), "a before the call")
		assertDep(t, Of(lGet), r.res.Dep(a, r.echoes(t, "caller")[0].ID()), "a after the call")

		// only the must-with-formal phase can update a
		_, ok := r.aliases.MustAliasGlobal(a, prep.ID())
		assert.False(t, ok)
		assert.Empty(t, r.aliases.MayAliasesGlobal(a, prep.ID()))
		assert.Empty(t, r.aliases.MayAliasesLocal(a, prep.ID()))
		assert.Equal(t, []program.VarID{a}, r.aliases.MustAliasesLocal(a, prep.ID()))
	})
}

func TestGlobalWriteReachesCaller(t *testing.T) {
	both(t, func(t *testing.T, withMod bool) {
		r := analyze(t, "global_write.yaml", withMod)
		g := r.global(t, "g")
		prep := r.callTo(t, program.MainName, "setg")
		assertDep(t, Of(Untainted), r.res.Dep(g, prep.ID()))
		assertDep(t, Of(lGet), r.res.Dep(g, r.echoes(t, program.MainName)[0].ID()))

		lg := r.local(t, "reader", "g")
		assertDep(t, Of(lGet), r.res.Dep(lg, r.echoes(t, "reader")[0].ID()))
	})
}

func TestAmbiguousAliasingJoinsGlobals(t *testing.T) {
	both(t, func(t *testing.T, withMod bool) {
		r := analyze(t, "ambiguous_alias.yaml", withMod)
		g1, g2 := r.global(t, "g1"), r.global(t, "g2")

		z := r.local(t, "caller", "z")
		prep := r.callTo(t, "caller", "noop")
		assert.Equal(t, []program.VarID{g1, g2}, r.aliases.MayAliasesGlobal(z, prep.ID()))
		assertDep(t, Of(Untainted, lGet), r.res.Dep(z, r.echoes(t, "caller")[0].ID()))

		// the callee taints g2: z gets the union of its value and of the values of both globals
		z2 := r.local(t, "caller2", "z")
		echoes := r.echoes(t, "caller2")
		assertDep(t, Of(Untainted, lGet, lPost), r.res.Dep(z2, echoes[0].ID()))
		assertDep(t, Of(lPost), r.res.Dep(r.local(t, "caller2", "g2"), echoes[1].ID()),
			"the local must-aliasing g2 gets the exact value of g2")
	})
}

func TestEntryFunctionCaller(t *testing.T) {
	both(t, func(t *testing.T, withMod bool) {
		r := analyze(t, "entry.yaml", withMod)
		g := r.global(t, "g")
		assertDep(t, Of(lGet), r.res.Dep(g, r.echoes(t, program.MainName)[0].ID()))
	})
}

func TestMustAliasExactness(t *testing.T) {
	both(t, func(t *testing.T, withMod bool) {
		r := analyze(t, "must.yaml", withMod)
		g := r.global(t, "g")
		lg := r.local(t, "caller", "g")
		prep := r.callTo(t, "caller", "clean")
		assertDep(t, Of(lGet), r.res.Dep(lg, prep.ID()))

		clean, _ := r.prog.FuncByName("clean")
		gs, ok := clean.SymbolTable().GShadow(g)
		require.True(t, ok)
		shadow := r.res.DepAfter(gs, clean.Exit)
		assertDep(t, Of(Untainted), shadow)
		assertDep(t, shadow, r.res.Dep(lg, r.echoes(t, "caller")[0].ID()),
			"no taint is kept from before the call")
		assertDep(t, Of(Untainted), r.res.Dep(g, r.echoes(t, program.MainName)[0].ID()))
	})
}

func TestMustPhasesTakePrecedence(t *testing.T) {
	both(t, func(t *testing.T, withMod bool) {
		r := analyze(t, "precedence.yaml", withMod)
		lg, y, w := r.local(t, "caller", "g"), r.local(t, "caller", "y"), r.local(t, "caller", "w")
		prep := r.callTo(t, "caller", "f")
		assert.Contains(t, r.aliases.MayAliasesLocal(w, prep.ID()), lg, "g may be modified through w")

		echoes := r.echoes(t, "caller")
		require.Len(t, echoes, 3)
		assertDep(t, Of(Untainted), r.res.Dep(lg, echoes[0].ID()))
		assertDep(t, Of(Untainted, lGet), r.res.Dep(y, echoes[1].ID()))
		assertDep(t, Of(Untainted, lGet), r.res.Dep(w, echoes[2].ID()))
	})
}

func TestTransfers(t *testing.T) {
	r := analyze(t, "transfers.yaml", true)
	at := r.echoes(t, program.MainName)[0].ID()
	tests := []struct {
		name  string
		dep   DepSet
		array DepSet
	}{
		{"a", Of(lGet), Of(lGet)},
		{"b", Of(Untainted, lGet), Of(Untainted, lGet)},
		{"c", Of(Untainted), Of(Untainted)},
		{"d", Of(Untainted), Of(Untainted)},
		{"e", Of(lDB), Of(lDB)},
		{"f", Of(Untainted, lGet), Of(Untainted, lGet)},
		{"arr", Of(Untainted), Of(lGet)},
		{"l", Of(lGet), Of(lGet)},
		{"s2", Of(Untainted), Of(Untainted)},
		{"r", Of(lPost), Of(lPost)},
		{"u", Of(Untainted), Of(Untainted)},
		{"m", Of(Untainted, lPost), Of(lGet, lPost)},
	}
	e := r.res.At(at)
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			v := r.global(t, test.name)
			assertDep(t, test.dep, e.Dep(v), "dependency")
			assertDep(t, test.array, e.ArrayLabel(v), "array label")
		})
	}
}

// fakeAliases reports the must-aliases to globals given in the map, and no other aliases
type fakeAliases struct {
	mustGlobal map[program.VarID]program.VarID
}

func (f fakeAliases) MustAliasGlobal(v program.VarID, _ program.NodeID) (program.VarID, bool) {
	g, ok := f.mustGlobal[v]
	return g, ok
}

func (f fakeAliases) MustAliasesLocal(v program.VarID, _ program.NodeID) []program.VarID {
	return []program.VarID{v}
}

func (fakeAliases) MayAliasesGlobal(program.VarID, program.NodeID) []program.VarID { return nil }
func (fakeAliases) MayAliasesLocal(program.VarID, program.NodeID) []program.VarID  { return nil }
func (fakeAliases) MustAliases(program.VarID, program.NodeID) []program.VarID      { return nil }
func (fakeAliases) MayAliases(program.VarID, program.NodeID) []program.VarID       { return nil }

// callProgram builds a program where caller has a local x and calls f, and main calls caller
func callProgram(t *testing.T) (p *program.Program, c, x program.VarID, prep, ret program.NodeID) {
	b := program.NewBuilder()
	c = b.Constant("C")
	b.Global("h")
	b.Function("f")
	caller := b.Function("caller")
	x = caller.Local("x")
	caller.Assign(x, program.Lit("1"))
	prep, ret = caller.Call("f", program.NoVar)
	b.Main().Call("caller", program.NoVar)
	p, err := b.Build()
	require.NoError(t, err)
	return p, c, x, prep, ret
}

func TestMissingShadowIsModelError(t *testing.T) {
	p, c, x, prep, ret := callProgram(t)
	cr := &CallReturn{
		Prog:    p,
		Prep:    p.Node(prep).(*program.CallPrep),
		Ret:     p.Node(ret).(*program.CallRet),
		Aliases: fakeAliases{mustGlobal: map[program.VarID]program.VarID{x: c}},
	}
	_, err := cr.TransferReturn(NewElement(), NewElement())
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataflow.ErrModelInconsistency))
	var me *dataflow.ModelError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, c, me.Var)
	assert.Equal(t, prep, me.Node)

	// the whole analysis aborts with the same error
	state := dataflow.NewAnalyzerState(p, nil, nil)
	state.Logger.SetAllOutput(io.Discard)
	_, err = Analyze(state, Options{Aliases: cr.Aliases})
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataflow.ErrModelInconsistency))
	assert.Contains(t, err.Error(), "dependency")
}

func TestModificationSummaryRestrictsCopy(t *testing.T) {
	p, _, _, prep, ret := callProgram(t)
	h, _ := p.GlobalByName("h")
	calleeIn := NewElement()
	calleeIn.Set(h, ScalarValue(Of(lPost)))
	orig := NewElement()
	orig.Set(h, ScalarValue(Of(lGet)))

	cr := &CallReturn{
		Prog:    p,
		Prep:    p.Node(prep).(*program.CallPrep),
		Ret:     p.Node(ret).(*program.CallRet),
		Aliases: fakeAliases{},
	}
	out, err := cr.TransferReturn(calleeIn, orig)
	require.NoError(t, err)
	assertDep(t, Of(lPost), out.Dep(h), "without summary the callee's value is copied")

	cr.Mod = map[program.VarID]bool{}
	out, err = cr.TransferReturn(calleeIn, orig)
	require.NoError(t, err)
	assertDep(t, Of(lGet), out.Dep(h), "globals outside the summary keep their value")

	cr.Mod = map[program.VarID]bool{h: true}
	out, err = cr.TransferReturn(calleeIn, orig)
	require.NoError(t, err)
	assertDep(t, Of(lPost), out.Dep(h))
}

func TestAnalyzeRequiresAliases(t *testing.T) {
	p := loadProgram(t, "entry.yaml")
	_, err := Analyze(dataflow.NewAnalyzerState(p, nil, nil), Options{})
	assert.Error(t, err)
}

func TestReadOfUnknownVariable(t *testing.T) {
	p, _, x, _, _ := callProgram(t)
	e := NewElementIn(p)
	e.Set(x, ScalarValue(Of(lGet)))
	assertDep(t, Of(lGet), e.Clone().Dep(x), "x")

	for _, v := range []program.VarID{program.NoVar, program.VarID(p.NumVars())} {
		func() {
			defer func() {
				me, ok := recover().(*dataflow.ModelError)
				require.True(t, ok, "reading %d should panic with a model error", v)
				assert.Equal(t, v, me.Var)
			}()
			Lattice{}.Lub(NewElement(), e).Dep(v)
		}()
	}

	state := dataflow.NewAnalyzerState(p, nil, nil)
	state.Logger.SetAllOutput(io.Discard)
	sol, err := dataflow.Solve(state, dataflow.Problem[*Element]{
		Name:    "reader",
		Lattice: Lattice{},
		Initial: NewElementIn(p),
		TransferFor: func(n program.Node) dataflow.Transfer[*Element] {
			if _, ok := n.(*program.Assign); !ok {
				return nil
			}
			return dataflow.TransferFunc[*Element](func(in *Element) (*Element, error) {
				in.Get(program.VarID(p.NumVars() + 3))
				return in, nil
			})
		},
		Intraprocedural: true,
	})
	assert.Nil(t, sol)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataflow.ErrModelInconsistency))
	assert.True(t, strings.HasPrefix(err.Error(), "reader: "), err.Error())
}

func TestLoopReachesFixpointWithinBound(t *testing.T) {
	r := analyze(t, "loop.yaml", true)
	echo := r.echoes(t, program.MainName)[0].ID()
	x, y, z := r.global(t, "x"), r.global(t, "y"), r.global(t, "z")
	assertDep(t, Of(Untainted, lGet, lDB), r.res.Dep(x, echo), "x")
	assertDep(t, Of(Untainted, lGet, lDB), r.res.Dep(y, echo), "y")
	assertDep(t, Of(Untainted, lDB), r.res.Dep(z, echo), "z")

	// control-flow edges, plus the edges into and out of the callees
	edges := 0
	for n := 0; n < r.prog.NumNodes(); n++ {
		edges += len(r.prog.Succs(program.NodeID(n)))
		if _, ok := r.prog.Node(program.NodeID(n)).(*program.CallPrep); ok {
			edges += 2
		}
	}
	steps := r.res.Solution().Stats.Steps
	assert.Greater(t, steps, r.prog.NumNodes(), "the loop should be iterated more than once")
	assert.LessOrEqual(t, steps, edges*r.res.Labels().Len())
}
