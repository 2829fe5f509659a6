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
Package taint implements the taint analysis of a program model. The main entry point of the analysis is the [Analyze]
function, which runs the alias analysis, the modification summaries, the type analysis, the dependency analysis and the
include dominance analysis, and returns an [AnalysisResult] containing all the taint flows discovered as well as the
results of every phase.

A flow is reported when an argument of a call to a sink of a taint problem may depend on a label produced by one of
the sources of the same problem. The dependency analysis is run once per taint problem, with the sanitizers of that
problem.

When the configuration disables the modification summaries, the dependency analysis conservatively copies every
global from the callee when a call returns.
*/
package taint
