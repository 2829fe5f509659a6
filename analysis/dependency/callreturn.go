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

// CallReturn is the transfer function of a call-return node. It maps the value at the exit of the callee, expressed
// in the callee's scope, to the scope of the caller.
//
// The variables of the caller are updated in order of precedence:
//   - the locals that must-alias a global take the value of the global's g-shadow,
//   - the locals that must-alias an actual passed by reference take the value of the formal's f-shadow,
//   - the locals that may-alias globals are joined with the values of the g-shadows,
//   - the locals that may-alias an actual passed by reference are joined with the value of the f-shadow.
//
// A local updated by one of the must phases is never modified by the later phases. The other locals keep the value
// they had before the call, and the result of the call is assigned the value of the callee's return variable.
type CallReturn struct {
	Prog    *program.Program
	Prep    *program.CallPrep
	Ret     *program.CallRet
	Aliases Aliases

	// Mod is the modification summary of the callee. If nil, all the global-likes are copied from the callee.
	Mod map[program.VarID]bool
}

// TransferReturn computes the value after the call from the value at the exit of the callee (calleeIn) and the
// value before the call in the caller (orig)
func (c *CallReturn) TransferReturn(calleeIn, orig *Element) (*Element, error) {
	prog := c.Prog
	caller := prog.Func(c.Prep.Func())
	callee := prog.Func(c.Prep.Callee)
	st := callee.SymbolTable()
	at := c.Prep.ID()

	out := NewElementIn(prog)
	if c.Mod != nil {
		out.CopyGlobalLikeRestricted(prog, calleeIn, orig, c.Mod)
	} else {
		out.CopyGlobalLike(prog, calleeIn)
	}

	if caller.IsMain {
		// the variables of the main function are globals
		out.CopyMainTemporaries(prog, orig)
		c.handleReturnValue(out, calleeIn, callee)
		return out, nil
	}

	out.CopyLocals(prog, orig, caller.ID)
	locals := prog.Locals(caller.ID)
	visited := map[program.VarID]bool{}

	// must-aliases of globals
	for _, l := range locals {
		g, ok := c.Aliases.MustAliasGlobal(l, at)
		if !ok {
			continue
		}
		gs, ok := st.GShadow(g)
		if !ok {
			return nil, dataflow.NewModelError(prog, g, at, "must-aliased global has no g-shadow in "+callee.Name)
		}
		out.Set(l, calleeIn.Get(gs))
		visited[l] = true
	}

	// must-aliases of the actuals passed by reference
	cbr := c.Prep.CbrParams()
	for _, p := range cbr {
		fs, ok := st.FShadow(p.Formal)
		if !ok {
			return nil, dataflow.NewModelError(prog, p.Formal, at, "formal parameter has no f-shadow")
		}
		for _, l := range c.Aliases.MustAliasesLocal(p.Actual.Var, at) {
			if visited[l] || prog.Var(l).IsGlobalLike() {
				continue
			}
			out.Set(l, calleeIn.Get(fs))
			visited[l] = true
		}
	}

	// may-aliases of globals
	for _, l := range locals {
		if visited[l] {
			continue
		}
		globals := c.Aliases.MayAliasesGlobal(l, at)
		if len(globals) == 0 {
			continue
		}
		val := orig.Get(l)
		for _, g := range globals {
			gs, ok := st.GShadow(g)
			if !ok {
				return nil, dataflow.NewModelError(prog, g, at, "may-aliased global has no g-shadow in "+callee.Name)
			}
			val = val.Lub(calleeIn.Get(gs))
		}
		out.Set(l, val)
	}

	// may-aliases of the actuals passed by reference
	for _, p := range cbr {
		fs, _ := st.FShadow(p.Formal)
		for _, l := range c.Aliases.MayAliasesLocal(p.Actual.Var, at) {
			if visited[l] {
				continue
			}
			out.SetWeak(l, calleeIn.Get(fs))
		}
	}

	c.handleReturnValue(out, calleeIn, callee)
	return out, nil
}

// handleReturnValue assigns the return value of the callee to the result of the call and to its aliases
func (c *CallReturn) handleReturnValue(out, calleeIn *Element, callee *program.Function) {
	result := c.Ret.Result
	if result == program.NoVar {
		return
	}
	out.HandleReturnValue(result, calleeIn, callee)
	val := out.Get(result)
	for _, w := range c.Aliases.MustAliases(result, c.Prep.ID()) {
		out.Set(w, val)
	}
	for _, w := range c.Aliases.MayAliases(result, c.Prep.ID()) {
		out.SetWeak(w, val)
	}
}
