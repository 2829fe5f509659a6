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
	"fmt"
	"strings"

	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
)

// Value is the abstract value of a variable: the dependency of the value itself, and for arrays the array label,
// the dependency of the elements of the array. For a variable that does not hold an array, the array label is the
// dependency.
type Value struct {
	Dep     DepSet
	arr     DepSet
	isArray bool
}

// ScalarValue returns the value of a non-array variable with dependency d
func ScalarValue(d DepSet) Value {
	return Value{Dep: d}
}

// ArrayValue returns the value of an array variable with dependency d and array label elems
func ArrayValue(d, elems DepSet) Value {
	return Value{Dep: d, arr: elems, isArray: true}
}

// IsArray returns true if the value has an array label distinct from its dependency
func (v Value) IsArray() bool {
	return v.isArray
}

// ArrayLabel returns the dependency of the elements of the value
func (v Value) ArrayLabel() DepSet {
	if v.isArray {
		return v.arr
	}
	return v.Dep
}

// IsBottom returns true if v carries no information
func (v Value) IsBottom() bool {
	return !v.isArray && v.Dep.IsBottom()
}

// All returns the union of the dependency and the array label
func (v Value) All() DepSet {
	return v.Dep.Lub(v.ArrayLabel())
}

// Lub returns the least upper bound of v and o
func (v Value) Lub(o Value) Value {
	res := Value{Dep: v.Dep.Lub(o.Dep)}
	if v.isArray || o.isArray {
		res.isArray = true
		res.arr = v.ArrayLabel().Lub(o.ArrayLabel())
	}
	return res
}

// Equal returns true if v and o are equal
func (v Value) Equal(o Value) bool {
	return v.isArray == o.isArray && v.Dep.Equal(o.Dep) && (!v.isArray || v.arr.Equal(o.arr))
}

func (v Value) key() string {
	if v.isArray {
		return v.Dep.Key() + "/" + v.arr.Key()
	}
	return v.Dep.Key()
}

func (v Value) String() string {
	if v.isArray {
		return fmt.Sprintf("%s[%s]", v.Dep, v.arr)
	}
	return v.Dep.String()
}

// Element maps every variable to its value. Variables that are not mapped have the bottom value.
//
// Published elements are immutable: the methods that modify an element must only be called on a fresh copy
// returned by Clone or NewElement.
type Element struct {
	vals map[program.VarID]Value

	// prog, when set, is the program whose variables can be read from the element
	prog *program.Program
}

// NewElement returns the element where every variable is bottom
func NewElement() *Element {
	return &Element{vals: map[program.VarID]Value{}}
}

// NewElementIn returns the element where every variable of prog is bottom. Reading a variable that is not part of
// prog panics with a *dataflow.ModelError.
func NewElementIn(prog *program.Program) *Element {
	return &Element{vals: map[program.VarID]Value{}, prog: prog}
}

// Clone returns a copy of e that can be modified
func (e *Element) Clone() *Element {
	c := &Element{vals: make(map[program.VarID]Value, len(e.vals)), prog: e.prog}
	for v, val := range e.vals {
		c.vals[v] = val
	}
	return c
}

// Get returns the value of v
func (e *Element) Get(v program.VarID) Value {
	e.check(v)
	return e.vals[v]
}

// Dep returns the dependency of v
func (e *Element) Dep(v program.VarID) DepSet {
	return e.Get(v).Dep
}

// ArrayLabel returns the array label of v
func (e *Element) ArrayLabel(v program.VarID) DepSet {
	return e.Get(v).ArrayLabel()
}

func (e *Element) check(v program.VarID) {
	if v < 0 || (e.prog != nil && !e.prog.ValidVar(v)) {
		dataflow.ModelPanic(e.prog, v, "read of a variable that is not part of the program")
	}
}

// Vars returns the variables with a non-bottom value, in increasing order
func (e *Element) Vars() []program.VarID {
	return funcutil.SortedKeys(e.vals)
}

// Set sets the value of v (strong update)
// @mutates e
func (e *Element) Set(v program.VarID, val Value) {
	if v == program.NoVar {
		return
	}
	if val.IsBottom() {
		delete(e.vals, v)
	} else {
		e.vals[v] = val
	}
}

// SetWeak joins the value of v with val (weak update)
// @mutates e
func (e *Element) SetWeak(v program.VarID, val Value) {
	e.Set(v, e.Get(v).Lub(val))
}

// CopyGlobalLike copies the values of all the global-like variables from calleeIn
// @mutates e
func (e *Element) CopyGlobalLike(prog *program.Program, calleeIn *Element) {
	for _, g := range prog.GlobalLikes() {
		e.Set(g, calleeIn.Get(g))
	}
}

// CopyGlobalLikeRestricted copies the values of the global-like variables in mod from calleeIn, and the values of
// the other global-like variables from orig
// @mutates e
func (e *Element) CopyGlobalLikeRestricted(prog *program.Program, calleeIn, orig *Element, mod map[program.VarID]bool) {
	for _, g := range prog.GlobalLikes() {
		if mod[g] {
			e.Set(g, calleeIn.Get(g))
		} else {
			e.Set(g, orig.Get(g))
		}
	}
}

// CopyLocals copies the values of the local variables and the temporaries of fn from orig
// @mutates e
func (e *Element) CopyLocals(prog *program.Program, orig *Element, fn program.FuncID) {
	for _, v := range prog.Locals(fn) {
		e.Set(v, orig.Get(v))
	}
	for _, v := range prog.Temporaries(fn) {
		e.Set(v, orig.Get(v))
	}
}

// CopyMainTemporaries copies the values of the temporaries of the main function from orig. The other variables of
// the main function are globals.
// @mutates e
func (e *Element) CopyMainTemporaries(prog *program.Program, orig *Element) {
	for _, v := range prog.Temporaries(prog.Main) {
		e.Set(v, orig.Get(v))
	}
}

// HandleReturnValue sets the value of result to the value of the return variable of the callee in calleeIn
// @mutates e
func (e *Element) HandleReturnValue(result program.VarID, calleeIn *Element, callee *program.Function) {
	if result == program.NoVar || callee.RetVar == program.NoVar {
		return
	}
	e.Set(result, calleeIn.Get(callee.RetVar))
}

// Key returns a string identifying the element
func (e *Element) Key() string {
	var sb strings.Builder
	for _, v := range e.Vars() {
		fmt.Fprintf(&sb, "%d:%s;", v, e.vals[v].key())
	}
	return sb.String()
}

// StringIn returns a readable representation of e using the variable names of the program
func (e *Element) StringIn(prog *program.Program) string {
	var parts []string
	for _, v := range e.Vars() {
		parts = append(parts, fmt.Sprintf("%s:%s", prog.VarString(v), e.vals[v]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (e *Element) String() string {
	return "[" + e.Key() + "]"
}

// Lattice is the lattice of dependency elements, ordered pointwise
type Lattice struct{}

// Bottom returns NewElement()
func (Lattice) Bottom() *Element {
	return NewElement()
}

// Lub returns the pointwise least upper bound of a and b
func (Lattice) Lub(a, b *Element) *Element {
	if len(b.vals) == 0 {
		return a
	}
	if len(a.vals) == 0 {
		return b
	}
	res := a.Clone()
	if res.prog == nil {
		res.prog = b.prog
	}
	for v, val := range b.vals {
		res.vals[v] = res.vals[v].Lub(val)
	}
	return res
}

// Leq returns true if a is pointwise below b
func (l Lattice) Leq(a, b *Element) bool {
	for v, val := range a.vals {
		if !b.vals[v].Lub(val).Equal(b.vals[v]) {
			return false
		}
	}
	return true
}

// Equal returns true if a and b map every variable to equal values
func (Lattice) Equal(a, b *Element) bool {
	if len(a.vals) != len(b.vals) {
		return false
	}
	for v, val := range a.vals {
		w, ok := b.vals[v]
		if !ok || !val.Equal(w) {
			return false
		}
	}
	return true
}

// Key returns e.Key()
func (Lattice) Key(e *Element) string {
	return e.Key()
}
