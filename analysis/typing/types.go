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

package typing

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
)

// Type is the abstract type of a variable: Bottom < Scalar, Array < Top
type Type uint8

const (
	// Bottom is the type of undefined variables
	Bottom Type = iota
	// Scalar is the type of strings, numbers, booleans and null
	Scalar
	// Array is the type of arrays
	Array
	// Top is the type of variables that may be scalars or arrays
	Top
)

func (t Type) String() string {
	switch t {
	case Bottom:
		return "⊥"
	case Scalar:
		return "scalar"
	case Array:
		return "array"
	case Top:
		return "⊤"
	}
	return fmt.Sprintf("type(%d)", t)
}

// Lub returns the least upper bound of t and o
func (t Type) Lub(o Type) Type {
	switch {
	case t == o || o == Bottom:
		return t
	case t == Bottom:
		return o
	}
	return Top
}

// Leq returns true if t is below o
func (t Type) Leq(o Type) bool {
	return t.Lub(o) == o
}

// MayBeArray returns true if a variable of type t may hold an array
func (t Type) MayBeArray() bool {
	return t == Array || t == Top
}

// Element maps variables to types. Variables that are not mapped have type Bottom.
type Element struct {
	types map[program.VarID]Type

	// prog, when set, is the program whose variables can be read from the element
	prog *program.Program
}

// Empty returns the element where every variable has type Bottom
func Empty() *Element {
	return &Element{types: map[program.VarID]Type{}}
}

// EmptyIn returns the element where every variable of prog has type Bottom. Reading a variable that is not part of
// prog panics with a *dataflow.ModelError.
func EmptyIn(prog *program.Program) *Element {
	return &Element{types: map[program.VarID]Type{}, prog: prog}
}

// Get returns the type of v
func (e *Element) Get(v program.VarID) Type {
	if v < 0 || (e.prog != nil && !e.prog.ValidVar(v)) {
		dataflow.ModelPanic(e.prog, v, "read of a variable that is not part of the program")
	}
	return e.types[v]
}

func (e *Element) clone() *Element {
	c := &Element{types: make(map[program.VarID]Type, len(e.types)), prog: e.prog}
	for v, t := range e.types {
		c.types[v] = t
	}
	return c
}

// @mutates e
func (e *Element) set(v program.VarID, t Type) {
	if v == program.NoVar {
		return
	}
	if t == Bottom {
		delete(e.types, v)
	} else {
		e.types[v] = t
	}
}

// Key returns a string identifying the element
func (e *Element) Key() string {
	var sb strings.Builder
	for _, v := range funcutil.SortedKeys(e.types) {
		fmt.Fprintf(&sb, "%d:%d,", v, e.types[v])
	}
	return sb.String()
}

func (e *Element) String() string {
	var parts []string
	for _, v := range funcutil.SortedKeys(e.types) {
		parts = append(parts, fmt.Sprintf("%d:%s", v, e.types[v]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Lattice is the lattice of type elements, ordered pointwise
type Lattice struct{}

// Bottom returns Empty()
func (Lattice) Bottom() *Element {
	return Empty()
}

// Lub returns the pointwise least upper bound of a and b
func (Lattice) Lub(a, b *Element) *Element {
	res := a.clone()
	if res.prog == nil {
		res.prog = b.prog
	}
	for v, t := range b.types {
		res.types[v] = res.types[v].Lub(t)
	}
	return res
}

// Leq returns true if a is pointwise below b
func (Lattice) Leq(a, b *Element) bool {
	for v, t := range a.types {
		if !t.Leq(b.types[v]) {
			return false
		}
	}
	return true
}

// Equal returns true if a and b map the same variables to the same types
func (Lattice) Equal(a, b *Element) bool {
	if len(a.types) != len(b.types) {
		return false
	}
	for v, t := range a.types {
		if b.types[v] != t {
			return false
		}
	}
	return true
}

// Key returns e.Key()
func (Lattice) Key(e *Element) string {
	return e.Key()
}
