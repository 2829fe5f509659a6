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

import "fmt"

// VarID is the handle of a variable in the program's arena
type VarID int32

// NoVar is the handle used when there is no variable, e.g. a call whose result is discarded
const NoVar VarID = -1

// Scope is the scope of a variable
type Scope uint8

const (
	// Global variables are the variables of the main function, the superglobals and the constants
	Global Scope = iota
	// Local variables are owned by a function, including the shadows and the return variable
	Local
	// FormalScope is the scope of the parameters of a function
	FormalScope
	// Temporary variables are introduced by the front end to hold intermediate results
	Temporary
)

func (s Scope) String() string {
	switch s {
	case Global:
		return "global"
	case Local:
		return "local"
	case FormalScope:
		return "formal"
	case Temporary:
		return "temporary"
	}
	return fmt.Sprintf("Scope(%d)", s)
}

// VarKind refines the scope of a variable
type VarKind uint8

const (
	// Ordinary is the kind of variables declared by the program
	Ordinary VarKind = iota
	// Superglobal is the kind of the input arrays, e.g. _GET
	Superglobal
	// Constant is the kind of constants
	Constant
	// GShadow is the kind of the g-shadows: a global as seen inside a function
	GShadow
	// FShadow is the kind of the f-shadows: a formal parameter as seen inside a function
	FShadow
	// Return is the kind of the variable holding the return value of a function
	Return
)

// Variable is a variable of the program. Variables are allocated when the program is built and never destroyed.
type Variable struct {
	ID    VarID
	Name  string
	Owner FuncID
	Scope Scope
	Kind  VarKind

	// ShadowOf is the global or formal variable represented by a shadow, NoVar otherwise
	ShadowOf VarID
}

// IsGlobalLike returns true for globals, superglobals and constants. Those are propagated across calls
// differently from local variables.
func (v *Variable) IsGlobalLike() bool {
	return v.Scope == Global
}

// IsTemporary returns true if the variable is a temporary
func (v *Variable) IsTemporary() bool {
	return v.Scope == Temporary
}

// Aliasable returns true if the variable can be the target of a reference. Constants and temporaries cannot.
func (v *Variable) Aliasable() bool {
	return v.Kind != Constant && v.Scope != Temporary
}

func (v *Variable) String() string {
	switch v.Kind {
	case Constant:
		return v.Name
	case GShadow:
		return v.Name + "_gs"
	case FShadow:
		return v.Name + "_fs"
	}
	return "$" + v.Name
}
