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

package taint

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-php-tools/analysis/format"
	"github.com/awslabs/ar-php-tools/analysis/program"
)

// A Flow is a tainted value reaching an argument of a sink
type Flow struct {
	// Problem is the name of the taint problem
	Problem string

	// Sink is the call to the sink
	Sink program.NodeID

	// SinkName is the name of the called sink
	SinkName string

	// Function is the name of the function containing the call
	Function string

	// Arg is the position of the tainted argument
	Arg int

	// Labels are the names of the source labels the argument may depend on
	Labels []string

	// Includes are the files that have been included before the call on every path from the entry of Function
	Includes []string
}

func (f Flow) String() string {
	s := fmt.Sprintf("[%s] %s: argument %d of %s depends on %s",
		f.Problem, f.Function, f.Arg, format.Red(f.SinkName), format.Yellow(strings.Join(f.Labels, ", ")))
	if len(f.Includes) > 0 {
		s += format.Faint(fmt.Sprintf(" (after %s)", strings.Join(f.Includes, ", ")))
	}
	return s
}

// Flows is the set of flows detected by the analysis, in a deterministic order
type Flows struct {
	flows []Flow
}

// NewFlows returns an empty set of flows
func NewFlows() *Flows {
	return &Flows{}
}

// Add adds a flow
func (f *Flows) Add(flow Flow) {
	f.flows = append(f.flows, flow)
	sort.SliceStable(f.flows, func(i, j int) bool { return lessFlow(f.flows[i], f.flows[j]) })
}

// Merge adds all the flows of other
func (f *Flows) Merge(other *Flows) {
	for _, flow := range other.flows {
		f.Add(flow)
	}
}

func lessFlow(a, b Flow) bool {
	if a.Problem != b.Problem {
		return a.Problem < b.Problem
	}
	if a.Sink != b.Sink {
		return a.Sink < b.Sink
	}
	return a.Arg < b.Arg
}

// All returns the flows ordered by problem, sink node and argument. The result must not be modified.
func (f *Flows) All() []Flow {
	return f.flows
}

// Len returns the number of flows
func (f *Flows) Len() int {
	return len(f.flows)
}

// Problem returns the flows of the taint problem name
func (f *Flows) Problem(name string) []Flow {
	var res []Flow
	for _, flow := range f.flows {
		if flow.Problem == name {
			res = append(res, flow)
		}
	}
	return res
}

func (f *Flows) String() string {
	if len(f.flows) == 0 {
		return format.Green("no tainted flow")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d tainted flow(s):\n", len(f.flows))
	for _, flow := range f.flows {
		sb.WriteString("  " + flow.String() + "\n")
	}
	return sb.String()
}
