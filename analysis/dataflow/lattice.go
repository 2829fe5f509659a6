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

// Lattice is the contract of the abstract domains solved by the engine. Elements of type E must be treated as
// immutable: Lub returns a new element (or one of its arguments) and never modifies its arguments.
type Lattice[E any] interface {
	// Bottom returns the least element
	Bottom() E

	// Lub returns the least upper bound of a and b
	Lub(a, b E) E

	// Leq returns true if a is below or equal to b
	Leq(a, b E) bool

	// Equal returns true if a and b are structurally equal
	Equal(a, b E) bool

	// Key returns a string that identifies the element up to structural equality. Two elements are equal iff their
	// keys are equal. Keys are used to recycle elements.
	Key(e E) string
}

// Transfer is the transfer function of a node. The input element must not be modified: implementations copy it and
// return the copy.
type Transfer[E any] interface {
	Transfer(in E) (E, error)
}

// ReturnTransfer is the transfer function of a call-return node in an interprocedural analysis. calleeOut is the value
// at the exit of the callee, in the callee's scope; atCallPrep is the value holding before the paired call preparation
// node, in the caller's scope.
type ReturnTransfer[E any] interface {
	TransferReturn(calleeOut E, atCallPrep E) (E, error)
}

// TransferFunc adapts a function to the Transfer interface
type TransferFunc[E any] func(in E) (E, error)

// Transfer implements Transfer
func (f TransferFunc[E]) Transfer(in E) (E, error) {
	return f(in)
}

// ReturnTransferFunc adapts a function to the ReturnTransfer interface
type ReturnTransferFunc[E any] func(calleeOut E, atCallPrep E) (E, error)

// TransferReturn implements ReturnTransfer
func (f ReturnTransferFunc[E]) TransferReturn(calleeOut E, atCallPrep E) (E, error) {
	return f(calleeOut, atCallPrep)
}

// Identity returns the identity transfer function
func Identity[E any]() Transfer[E] {
	return TransferFunc[E](func(in E) (E, error) { return in, nil })
}

// Problem is a monotone dataflow problem over the program
type Problem[E any] struct {
	// Name is used in logs and errors
	Name string

	// Lattice is the abstract domain
	Lattice Lattice[E]

	// Initial is the value at the entry of the main function. In intraprocedural mode, it is the value at the entry of
	// every function.
	Initial E

	// TransferFor returns the transfer function of the node. In interprocedural mode, the transfer function of a call
	// preparation node returns the value at the entry of the callee, in the callee's scope, and the transfer function
	// of call-return nodes is not used. A nil transfer function is the identity.
	TransferFor func(n program.Node) Transfer[E]

	// ReturnTransferFor returns the transfer function of call-return nodes in interprocedural mode
	ReturnTransferFor func(ret *program.CallRet) ReturnTransfer[E]

	// Intraprocedural makes the engine analyze every function on its own, from its entry, with the value Initial.
	// Call preparation nodes flow directly to their paired call-return node.
	Intraprocedural bool
}
