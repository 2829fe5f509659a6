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

import "github.com/awslabs/ar-php-tools/analysis/program"

// Solution is the result of a fixpoint computation: the values before and after every node, in every context in
// which the node has been reached. A solution is read-only.
type Solution[E any] struct {
	prog    *program.Program
	lattice Lattice[E]

	in  map[point]E
	out map[point]E

	// callCtx maps call preparation points to the context of the callee
	callCtx map[point]Context

	// ctxFunc and ctxEntry map contexts to their function and their entry value
	ctxFunc  []program.FuncID
	ctxEntry []E

	// contexts lists the contexts of every function, in creation order
	contexts [][]Context

	Stats Stats
}

// At returns the value holding before node n in context ctx, and false if the node has not been reached in that
// context. For a call-return node, this is the value before the paired call preparation node.
func (s *Solution[E]) At(n program.NodeID, ctx Context) (E, bool) {
	v, ok := s.in[point{ctx, n}]
	return v, ok
}

// After returns the value holding after node n in context ctx, and false if the node has not been reached in that
// context. For a call preparation node, this is the value at the entry of the callee.
func (s *Solution[E]) After(n program.NodeID, ctx Context) (E, bool) {
	v, ok := s.out[point{ctx, n}]
	return v, ok
}

// Folded returns the lub over all contexts of the values before node n. It is bottom if the node is unreachable.
func (s *Solution[E]) Folded(n program.NodeID) E {
	return s.fold(s.in, n)
}

// FoldedAfter returns the lub over all contexts of the values after node n
func (s *Solution[E]) FoldedAfter(n program.NodeID) E {
	return s.fold(s.out, n)
}

func (s *Solution[E]) fold(m map[point]E, n program.NodeID) E {
	res := s.lattice.Bottom()
	for _, ctx := range s.contexts[s.prog.Node(n).Func()] {
		if v, ok := m[point{ctx, n}]; ok {
			res = s.lattice.Lub(res, v)
		}
	}
	return res
}

// Reached returns true if the node has been reached in some context
func (s *Solution[E]) Reached(n program.NodeID) bool {
	for _, ctx := range s.contexts[s.prog.Node(n).Func()] {
		if _, ok := s.in[point{ctx, n}]; ok {
			return true
		}
	}
	return false
}

// Contexts returns the contexts of function fn, in creation order. The result must not be modified.
func (s *Solution[E]) Contexts(fn program.FuncID) []Context {
	return s.contexts[fn]
}

// ContextEntry returns the value at the entry of the function of the context
func (s *Solution[E]) ContextEntry(ctx Context) E {
	return s.ctxEntry[ctx]
}

// ContextFunc returns the function of the context
func (s *Solution[E]) ContextFunc(ctx Context) program.FuncID {
	return s.ctxFunc[ctx]
}

// CallContext returns the context of the callee bound to the call preparation node prep in the caller context ctx.
// Only interprocedural solutions bind call sites to contexts.
func (s *Solution[E]) CallContext(prep program.NodeID, ctx Context) (Context, bool) {
	c, ok := s.callCtx[point{ctx, prep}]
	return c, ok
}
