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

// FuncID is the handle of a function in the program's arena
type FuncID int32

// NoFunc is the handle used when there is no function
const NoFunc FuncID = -1

// Formal is a formal parameter of a function
type Formal struct {
	Var   VarID
	ByRef bool
}

// Function is a function of the program. The main function is the top-level code of the program: its variables are
// the global variables.
type Function struct {
	ID      FuncID
	Name    string
	IsMain  bool
	Formals []Formal

	// RetVar holds the return value. It is NoVar for the main function.
	RetVar VarID

	Entry NodeID
	Exit  NodeID

	// vars are the variables owned by the function, in allocation order
	vars []VarID

	// nodes are the nodes of the function, in allocation order
	nodes []NodeID

	symbols *SymbolTable
}

// SymbolTable returns the symbol table of the function
func (f *Function) SymbolTable() *SymbolTable {
	return f.symbols
}

// Nodes returns the nodes of the function in allocation order. The result must not be modified.
func (f *Function) Nodes() []NodeID {
	return f.nodes
}

// Vars returns all the variables owned by the function. The result must not be modified.
func (f *Function) Vars() []VarID {
	return f.vars
}

// SymbolTable maps the names of the function's variables to variables, and the caller-visible globals and formals to
// their shadows. Shadows are created once when the program is built.
type SymbolTable struct {
	byName   map[string]VarID
	gShadows map[VarID]VarID
	fShadows map[VarID]VarID
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName:   map[string]VarID{},
		gShadows: map[VarID]VarID{},
		fShadows: map[VarID]VarID{},
	}
}

// Lookup returns the variable named name in the function
func (st *SymbolTable) Lookup(name string) (VarID, bool) {
	v, ok := st.byName[name]
	return v, ok
}

// GShadow returns the g-shadow of the global variable g, and false if the function has no shadow for g
func (st *SymbolTable) GShadow(g VarID) (VarID, bool) {
	v, ok := st.gShadows[g]
	return v, ok
}

// FShadow returns the f-shadow of the formal variable f, and false if the function has no shadow for f
func (st *SymbolTable) FShadow(f VarID) (VarID, bool) {
	v, ok := st.fShadows[f]
	return v, ok
}

// NumShadows returns the number of g-shadows and f-shadows of the function
func (st *SymbolTable) NumShadows() (int, int) {
	return len(st.gShadows), len(st.fShadows)
}
