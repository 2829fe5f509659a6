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

package dataflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/graphutil"
	"golang.org/x/tools/container/intsets"
)

// Context identifies the calling context of a function. In interprocedural mode, a context is the value at the entry
// of the function; the context of the main function is MainContext.
type Context int32

// MainContext is the context of the main function
const MainContext Context = 0

type point struct {
	ctx  Context
	node program.NodeID
}

type ctxKey struct {
	fn  program.FuncID
	key string
}

// Stats are the statistics of a fixpoint computation
type Stats struct {
	// Steps is the number of nodes visited
	Steps int
	// Contexts is the number of contexts created
	Contexts int
	// Canonical is the number of distinct lattice elements published
	Canonical int
	// Recycled is the number of published elements that were replaced by an existing canonical element
	Recycled int
	// Duration is the duration of the computation
	Duration time.Duration
}

type engine[E any] struct {
	state    *AnalyzerState
	prog     *program.Program
	problem  Problem[E]
	lattice  Lattice[E]
	recycler *Recycler[E]
	sol      *Solution[E]

	// rpo maps nodes to their index in the reverse postorder of the control-flow graph, and order is the inverse
	rpo   []int
	order []program.NodeID

	// worklist contains the points to visit, encoded by (context, reverse postorder index)
	worklist intsets.Sparse

	ctxByKey    map[ctxKey]Context
	returnSites map[Context][]point
	transfers   map[program.NodeID]Transfer[E]
	steps       int

	// current is the node being visited
	current program.NodeID
}

// Solve computes the least fixpoint of the problem on the program of the state. The computation is deterministic.
// It returns an error if a transfer function returns an error, if a transfer function panics with a *ModelError, or
// if the number of steps exceeds the maximum number of iterations of the config.
func Solve[E any](state *AnalyzerState, problem Problem[E]) (sol *Solution[E], err error) {
	e := newEngine(state, problem)
	defer func() {
		if r := recover(); r != nil {
			me, ok := r.(*ModelError)
			if !ok {
				panic(r)
			}
			sol = nil
			err = fmt.Errorf("%s: %w", problem.Name, me.At(e.prog, e.current))
		}
	}()
	start := time.Now()
	state.Logger.Debugf("%s: solving on %d nodes (intraprocedural=%v)\n",
		problem.Name, e.prog.NumNodes(), problem.Intraprocedural)
	if err := e.run(); err != nil {
		return nil, fmt.Errorf("%s: %w", problem.Name, err)
	}
	e.sol.Stats = Stats{
		Steps:     e.steps,
		Contexts:  len(e.sol.ctxFunc),
		Canonical: e.recycler.Size(),
		Recycled:  e.recycler.Hits(),
		Duration:  time.Since(start),
	}
	state.Logger.Debugf("%s: fixpoint reached after %d steps, %d contexts, %d elements (%d recycled) (%.2f s)\n",
		problem.Name, e.steps, e.sol.Stats.Contexts, e.sol.Stats.Canonical, e.sol.Stats.Recycled,
		e.sol.Stats.Duration.Seconds())
	return e.sol, nil
}

func newEngine[E any](state *AnalyzerState, problem Problem[E]) *engine[E] {
	prog := state.Program
	e := &engine[E]{
		state:       state,
		prog:        prog,
		problem:     problem,
		lattice:     problem.Lattice,
		recycler:    NewRecycler(problem.Lattice),
		ctxByKey:    map[ctxKey]Context{},
		returnSites: map[Context][]point{},
		transfers:   map[program.NodeID]Transfer[E]{},
		current:     program.NoNode,
		sol: &Solution[E]{
			prog:     prog,
			lattice:  problem.Lattice,
			in:       map[point]E{},
			out:      map[point]E{},
			callCtx:  map[point]Context{},
			contexts: make([][]Context, prog.NumFuncs()),
		},
	}
	e.computeOrder()
	return e
}

// computeOrder numbers the nodes in reverse postorder from the function entries. Unreachable nodes are numbered last.
func (e *engine[E]) computeOrder() {
	var roots []int
	for _, fn := range e.prog.Functions() {
		roots = append(roots, int(fn.Entry))
	}
	n := e.prog.NumNodes()
	e.rpo = make([]int, n)
	for i := range e.rpo {
		e.rpo[i] = -1
	}
	for _, x := range graphutil.ReversePostorder(e.prog.CFG(), roots) {
		e.rpo[x] = len(e.order)
		e.order = append(e.order, program.NodeID(x))
	}
	for x := 0; x < n; x++ {
		if e.rpo[x] < 0 {
			e.rpo[x] = len(e.order)
			e.order = append(e.order, program.NodeID(x))
		}
	}
}

func (e *engine[E]) enqueue(ctx Context, n program.NodeID) {
	e.worklist.Insert(int(ctx)*len(e.order) + e.rpo[n])
}

func (e *engine[E]) newContext(fn program.FuncID, entry E) Context {
	ctx := Context(len(e.sol.ctxFunc))
	e.sol.ctxFunc = append(e.sol.ctxFunc, fn)
	e.sol.ctxEntry = append(e.sol.ctxEntry, entry)
	e.sol.contexts[fn] = append(e.sol.contexts[fn], ctx)
	e.enqueue(ctx, e.prog.Func(fn).Entry)
	return ctx
}

func (e *engine[E]) transfer(n program.Node) Transfer[E] {
	if t, ok := e.transfers[n.ID()]; ok {
		return t
	}
	var t Transfer[E]
	if e.problem.TransferFor != nil {
		t = e.problem.TransferFor(n)
	}
	if t == nil {
		t = Identity[E]()
	}
	e.transfers[n.ID()] = t
	return t
}

func (e *engine[E]) run() error {
	initial, key := e.recycler.Recycle(e.problem.Initial)
	if e.problem.Intraprocedural {
		for _, fn := range e.prog.Functions() {
			e.ctxByKey[ctxKey{fn.ID, key}] = e.newContext(fn.ID, initial)
		}
	} else {
		e.ctxByKey[ctxKey{e.prog.Main, key}] = e.newContext(e.prog.Main, initial)
	}
	for !e.worklist.IsEmpty() {
		var x int
		e.worklist.TakeMin(&x)
		e.steps++
		if e.state.Config.ExceedsMaxIterations(e.steps) {
			return fmt.Errorf("%w (%d steps)", ErrIterationLimit, e.state.Config.MaxIterations)
		}
		ctx := Context(x / len(e.order))
		n := e.order[x%len(e.order)]
		if err := e.visit(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine[E]) visit(ctx Context, n program.NodeID) error {
	e.current = n
	node := e.prog.Node(n)
	if ret, ok := node.(*program.CallRet); ok && !e.problem.Intraprocedural {
		return e.visitCallReturn(ctx, ret)
	}
	var in E
	if n == e.prog.Func(node.Func()).Entry {
		in = e.sol.ctxEntry[ctx]
	} else {
		var reached bool
		in, reached = e.joinPreds(ctx, n)
		if !reached {
			return nil
		}
	}
	e.sol.in[point{ctx, n}] = in
	if e.state.Logger.LogsTrace() {
		e.state.Logger.Tracef("%s [%d] %s\n", e.problem.Name, ctx, e.prog.NodeString(n))
	}
	out, err := e.transfer(node).Transfer(in)
	if err != nil {
		return e.wrap(err)
	}
	if prep, ok := node.(*program.CallPrep); ok && !e.problem.Intraprocedural {
		e.visitCallPrep(ctx, prep, out)
		return nil
	}
	e.publish(ctx, n, out)
	return nil
}

// joinPreds returns the lub of the values after the predecessors of n, and false if no predecessor has been reached.
func (e *engine[E]) joinPreds(ctx Context, n program.NodeID) (E, bool) {
	var in E
	reached := false
	for _, pred := range e.prog.Preds(n) {
		v, ok := e.sol.out[point{ctx, pred}]
		if !ok {
			continue
		}
		if !reached {
			in, reached = v, true
		} else {
			in = e.lattice.Lub(in, v)
		}
	}
	return in, reached
}

// visitCallPrep binds the call site to the context of the callee whose entry value is entry, creating it if
// necessary.
func (e *engine[E]) visitCallPrep(ctx Context, prep *program.CallPrep, entry E) {
	entry, key := e.recycler.Recycle(entry)
	k := ctxKey{prep.Callee, key}
	calleeCtx, ok := e.ctxByKey[k]
	if !ok {
		calleeCtx = e.newContext(prep.Callee, entry)
		e.ctxByKey[k] = calleeCtx
	}
	p := point{ctx, prep.ID()}
	e.sol.out[p] = entry
	e.sol.callCtx[p] = calleeCtx
	retPoint := point{ctx, prep.Ret()}
	if !containsPoint(e.returnSites[calleeCtx], retPoint) {
		e.returnSites[calleeCtx] = append(e.returnSites[calleeCtx], retPoint)
	}
	if _, ok := e.sol.out[point{calleeCtx, e.prog.Func(prep.Callee).Exit}]; ok {
		e.enqueue(ctx, prep.Ret())
	}
}

// visitCallReturn applies the return transfer function to the value at the exit of the callee in the context bound
// to the call site and the value before the call.
func (e *engine[E]) visitCallReturn(ctx Context, ret *program.CallRet) error {
	prepPoint := point{ctx, ret.Prep()}
	calleeCtx, ok := e.sol.callCtx[prepPoint]
	if !ok {
		return nil
	}
	callee := e.sol.ctxFunc[calleeCtx]
	calleeOut, ok := e.sol.out[point{calleeCtx, e.prog.Func(callee).Exit}]
	if !ok {
		return nil
	}
	if e.problem.ReturnTransferFor == nil {
		return fmt.Errorf("no return transfer function for %s", e.prog.NodeString(ret.ID()))
	}
	orig := e.sol.in[prepPoint]
	e.sol.in[point{ctx, ret.ID()}] = orig
	if e.state.Logger.LogsTrace() {
		e.state.Logger.Tracef("%s [%d] %s from context %d\n", e.problem.Name, ctx, e.prog.NodeString(ret.ID()),
			calleeCtx)
	}
	out, err := e.problem.ReturnTransferFor(ret).TransferReturn(calleeOut, orig)
	if err != nil {
		return e.wrap(err)
	}
	e.publish(ctx, ret.ID(), out)
	return nil
}

// publish joins out with the value after n in the context, and propagates the change if there is one
func (e *engine[E]) publish(ctx Context, n program.NodeID, out E) {
	p := point{ctx, n}
	if old, ok := e.sol.out[p]; ok {
		out = e.lattice.Lub(old, out)
		if e.lattice.Equal(old, out) {
			return
		}
	}
	out, _ = e.recycler.Recycle(out)
	e.sol.out[p] = out
	for _, s := range e.prog.Succs(n) {
		e.enqueue(ctx, s)
	}
	if !e.problem.Intraprocedural && n == e.prog.Func(e.sol.ctxFunc[ctx]).Exit {
		for _, rs := range e.returnSites[ctx] {
			e.enqueue(rs.ctx, rs.node)
		}
	}
}

func (e *engine[E]) wrap(err error) error {
	var me *ModelError
	if errors.As(err, &me) {
		me.At(e.prog, e.current)
		return err
	}
	return fmt.Errorf("at %s: %w", e.prog.NodeString(e.current), err)
}

func containsPoint(points []point, p point) bool {
	for _, x := range points {
		if x == p {
			return true
		}
	}
	return false
}
