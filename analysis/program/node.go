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
	"fmt"
	"strconv"
)

// NodeID is the handle of a control-flow graph node in the program's arena
type NodeID int32

// NoNode is the handle used when there is no node
const NoNode NodeID = -1

// Node is a node of the control-flow graph. The set of node types is closed: the only implementations are the
// types of this file, and analyses dispatch on them with exhaustive type switches.
type Node interface {
	// ID returns the handle of the node
	ID() NodeID
	// Func returns the function containing the node
	Func() FuncID
	String() string

	node()
}

type base struct {
	id NodeID
	fn FuncID
}

func (b *base) ID() NodeID   { return b.id }
func (b *base) Func() FuncID { return b.fn }
func (b *base) node()        {}

// PlaceKind distinguishes the kinds of operands
type PlaceKind uint8

const (
	// PlaceVar is a variable operand (including constants)
	PlaceVar PlaceKind = iota
	// PlaceLiteral is a literal operand
	PlaceLiteral
)

// Place is an operand: a variable or a literal
type Place struct {
	Kind    PlaceKind
	Var     VarID
	Literal string
}

// V returns the place of a variable
func V(v VarID) Place {
	return Place{Kind: PlaceVar, Var: v}
}

// Lit returns the place of a literal
func Lit(s string) Place {
	return Place{Kind: PlaceLiteral, Var: NoVar, Literal: s}
}

// IsVar returns true if the place is a variable
func (p Place) IsVar() bool {
	return p.Kind == PlaceVar
}

func (p Place) String() string {
	if p.Kind == PlaceLiteral {
		return strconv.Quote(p.Literal)
	}
	return fmt.Sprintf("v%d", p.Var)
}

// BinOp is a binary operator
type BinOp uint8

const (
	Concat BinOp = iota
	Plus
	Minus
	Mult
	Div
	Mod
	Equal
	Less
	And
	Or
)

var binOpNames = [...]string{".", "+", "-", "*", "/", "%", "==", "<", "&&", "||"}

func (o BinOp) String() string {
	if int(o) < len(binOpNames) {
		return binOpNames[o]
	}
	return fmt.Sprintf("BinOp(%d)", o)
}

// UnOp is a unary operator, including casts
type UnOp uint8

const (
	Neg UnOp = iota
	Not
	BitNot
	CastInt
	CastFloat
	CastBool
	CastString
	CastArray
)

var unOpNames = [...]string{"-", "!", "~", "(int)", "(float)", "(bool)", "(string)", "(array)"}

func (o UnOp) String() string {
	if int(o) < len(unOpNames) {
		return unOpNames[o]
	}
	return fmt.Sprintf("UnOp(%d)", o)
}

// IsNumericOrBool returns true for the operators whose result is a number or a boolean, whatever the operand.
func (o UnOp) IsNumericOrBool() bool {
	switch o {
	case Not, CastInt, CastFloat, CastBool:
		return true
	}
	return false
}

// Entry is the entry node of a function
type Entry struct{ base }

// Exit is the exit node of a function. Every path of a function ends at its exit node.
type Exit struct{ base }

// Empty is a node without effects; it is used for branches and joins
type Empty struct{ base }

// Assign is Left = Right
type Assign struct {
	base
	Left  VarID
	Right Place
}

// AssignBinary is Left = X Op Y
type AssignBinary struct {
	base
	Left VarID
	Op   BinOp
	X, Y Place
}

// AssignUnary is Left = Op X
type AssignUnary struct {
	base
	Left VarID
	Op   UnOp
	X    Place
}

// AssignRef is Left =& Right: Left becomes a reference to Right's storage
type AssignRef struct {
	base
	Left, Right VarID
}

// AssignArray is Left = array()
type AssignArray struct {
	base
	Left VarID
}

// ArrayStore is Array[Index] = Value
type ArrayStore struct {
	base
	Array VarID
	Index Place
	Value Place
}

// ArrayLoad is Left = Array[Index]
type ArrayLoad struct {
	base
	Left  VarID
	Array VarID
	Index Place
}

// Unset is unset(Var)
type Unset struct {
	base
	Var VarID
}

// GlobalDecl is "global $x" inside a function: the Local variable becomes a reference to the Global variable
type GlobalDecl struct {
	base
	Local, Global VarID
}

// Param is an actual/formal parameter pair of a call
type Param struct {
	Actual Place
	Formal VarID
	ByRef  bool
}

// CallPrep is the node preparing a call to a user-defined function. It is paired with a CallRet node.
type CallPrep struct {
	base
	Callee FuncID
	Params []Param
	ret    NodeID
}

// Ret returns the call-return node paired with the call preparation
func (c *CallPrep) Ret() NodeID {
	return c.ret
}

// CbrParams returns the ordered call-by-reference actual/formal pairs of the call. The actual of each pair is a
// variable.
func (c *CallPrep) CbrParams() []Param {
	var res []Param
	for _, p := range c.Params {
		if p.ByRef {
			res = append(res, p)
		}
	}
	return res
}

// CallRet is the node returning from a call to a user-defined function. The result of the call is assigned to
// Result, which is NoVar if the result is discarded.
type CallRet struct {
	base
	Result VarID
	prep   NodeID
}

// Prep returns the call preparation node paired with the call return
func (c *CallRet) Prep() NodeID {
	return c.prep
}

// CallBuiltin is a call to a library function whose body is not part of the program: sources, sinks and
// sanitizers are builtin calls.
type CallBuiltin struct {
	base
	Name   string
	Args   []Place
	Result VarID
}

// Include is the inclusion of another file
type Include struct {
	base
	File string
}

func (n *Entry) String() string { return "entry" }
func (n *Exit) String() string  { return "exit" }
func (n *Empty) String() string { return "empty" }
func (n *Assign) String() string {
	return fmt.Sprintf("v%d = %s", n.Left, n.Right)
}
func (n *AssignBinary) String() string {
	return fmt.Sprintf("v%d = %s %s %s", n.Left, n.X, n.Op, n.Y)
}
func (n *AssignUnary) String() string {
	return fmt.Sprintf("v%d = %s%s", n.Left, n.Op, n.X)
}
func (n *AssignRef) String() string {
	return fmt.Sprintf("v%d =& v%d", n.Left, n.Right)
}
func (n *AssignArray) String() string {
	return fmt.Sprintf("v%d = array()", n.Left)
}
func (n *ArrayStore) String() string {
	return fmt.Sprintf("v%d[%s] = %s", n.Array, n.Index, n.Value)
}
func (n *ArrayLoad) String() string {
	return fmt.Sprintf("v%d = v%d[%s]", n.Left, n.Array, n.Index)
}
func (n *Unset) String() string {
	return fmt.Sprintf("unset(v%d)", n.Var)
}
func (n *GlobalDecl) String() string {
	return fmt.Sprintf("global v%d (v%d)", n.Local, n.Global)
}
func (n *CallPrep) String() string {
	return fmt.Sprintf("callprep f%d %v", n.Callee, n.Params)
}
func (n *CallRet) String() string {
	return fmt.Sprintf("callret v%d", n.Result)
}
func (n *CallBuiltin) String() string {
	return fmt.Sprintf("v%d = %s%v", n.Result, n.Name, n.Args)
}
func (n *Include) String() string {
	return fmt.Sprintf("include %q", n.File)
}
