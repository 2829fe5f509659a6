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

	"github.com/awslabs/ar-php-tools/analysis/program"
	"golang.org/x/xerrors"
)

// ErrModelInconsistency is the error wrapped by every ModelError
var ErrModelInconsistency = errors.New("model inconsistency")

// ErrIterationLimit is returned when a fixpoint computation exceeds the maximum number of iterations of the config
var ErrIterationLimit = errors.New("iteration limit exceeded")

// ModelError signals that the program model and the analysis results disagree, for example when a variable must-alias
// a global that has no shadow in the callee, or when a lattice element is queried for a variable that is not in the
// model. The analysis cannot continue soundly and the run is aborted.
type ModelError struct {
	// Var is the offending variable, or program.NoVar
	Var program.VarID

	// Node is the node being analyzed when the error was detected, or program.NoNode
	Node program.NodeID

	// Reason describes the inconsistency
	Reason string

	varName  string
	nodeName string
	frame    xerrors.Frame
}

// NewModelError returns a model error for the variable v at node n. The program is only used to name the variable
// and the node, and may be nil.
func NewModelError(prog *program.Program, v program.VarID, n program.NodeID, reason string) *ModelError {
	e := &ModelError{Var: v, Node: program.NoNode, Reason: reason, frame: xerrors.Caller(1)}
	e.name(prog, v)
	e.At(prog, n)
	return e
}

func (e *ModelError) name(prog *program.Program, v program.VarID) {
	if v == program.NoVar {
		return
	}
	if prog != nil {
		e.varName = prog.VarString(v)
	} else {
		e.varName = fmt.Sprintf("v%d", v)
	}
}

// At sets the node of the error if it is not set yet, and returns the error
func (e *ModelError) At(prog *program.Program, n program.NodeID) *ModelError {
	if e.Node != program.NoNode || n == program.NoNode {
		return e
	}
	e.Node = n
	if prog != nil {
		e.nodeName = prog.NodeString(n)
	} else {
		e.nodeName = fmt.Sprintf("n%d", n)
	}
	return e
}

func (e *ModelError) Error() string {
	msg := "model inconsistency"
	if e.nodeName != "" {
		msg += " at " + e.nodeName
	}
	if e.varName != "" {
		msg += ": " + e.varName
	}
	return msg + ": " + e.Reason
}

// Format implements fmt.Formatter; "%+v" prints the location where the error was detected.
func (e *ModelError) Format(s fmt.State, v rune) {
	xerrors.FormatError(e, s, v)
}

// FormatError implements xerrors.Formatter
func (e *ModelError) FormatError(p xerrors.Printer) error {
	p.Print(e.Error())
	e.frame.Format(p)
	return nil
}

// Unwrap returns ErrModelInconsistency
func (e *ModelError) Unwrap() error {
	return ErrModelInconsistency
}

// IsInternalError marks model errors as internal errors of the tool: they are never caused by the analyzed program.
func (e *ModelError) IsInternalError() {}

// InternalError is implemented by the errors that signal a bug in the tool rather than a problem in its inputs
type InternalError interface {
	error
	IsInternalError()
}

// ModelPanic panics with a model error. The dependency and type elements use it when they are read with a variable
// that is not part of the program; Solve recovers the panic and returns the error.
func ModelPanic(prog *program.Program, v program.VarID, reason string) {
	panic(NewModelError(prog, v, program.NoNode, reason))
}
