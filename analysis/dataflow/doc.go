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

/*
The dataflow package implements the monotone fixpoint engine shared by all the analyses of the tool: the alias
analysis, the type analysis, the dependency (taint) analysis and the include dominance analysis are instances of a
[Problem] solved by [Solve].

The first object to build is an [AnalyzerState] containing the program, the configuration and the logger:

	state := dataflow.NewAnalyzerState(prog, logger, cfg)

A problem is a [Lattice], an initial value and the transfer function of every node of the control-flow graph:

	sol, err := dataflow.Solve(state, dataflow.Problem[E]{
		Name:              "my-analysis",
		Lattice:           lattice,
		Initial:           initial,
		TransferFor:       transferFor,
		ReturnTransferFor: returnTransferFor,
	})

In interprocedural mode, the analysis is context-sensitive: the value at the entry of a callee identifies the context
in which the callee is analyzed, and the value at the exit of the callee flows back to every call site bound to that
context through the return transfer function of the call-return node. In intraprocedural mode, every function is
analyzed once from its entry and calls are skipped.

The engine recycles the lattice elements it publishes: structurally equal elements are replaced by one canonical
instance. Transfer functions must therefore never modify their input, and build a copy instead.

Inconsistencies between the program model and the analysis are reported as [*ModelError]. The run is aborted at the
first model error.
*/
package dataflow
