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

package incdom

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/bits-and-blooms/bitset"
)

// Element is the set of include nodes seen so far. Elements are immutable.
type Element struct {
	seen *bitset.BitSet
}

// Empty returns the element where no inclusion has been seen
func Empty() *Element {
	return &Element{}
}

// NewElement returns the set of the given nodes
func NewElement(nodes ...program.NodeID) *Element {
	e := Empty()
	for _, n := range nodes {
		e = e.with(n)
	}
	return e
}

func (e *Element) with(n program.NodeID) *Element {
	if e.Has(n) {
		return e
	}
	var b *bitset.BitSet
	if e.seen == nil {
		b = bitset.New(uint(n) + 1)
	} else {
		b = e.seen.Clone()
	}
	return &Element{seen: b.Set(uint(n))}
}

// Has returns true if n is in the set
func (e *Element) Has(n program.NodeID) bool {
	return e.seen != nil && e.seen.Test(uint(n))
}

// Len returns the number of nodes in the set
func (e *Element) Len() int {
	if e.seen == nil {
		return 0
	}
	return int(e.seen.Count())
}

// Nodes returns the nodes of the set in increasing order
func (e *Element) Nodes() []program.NodeID {
	if e.seen == nil {
		return nil
	}
	var res []program.NodeID
	for i, ok := e.seen.NextSet(0); ok; i, ok = e.seen.NextSet(i + 1) {
		res = append(res, program.NodeID(i))
	}
	return res
}

// Key returns a string identifying the set
func (e *Element) Key() string {
	var sb strings.Builder
	for _, n := range e.Nodes() {
		fmt.Fprintf(&sb, "%d,", n)
	}
	return sb.String()
}

func (e *Element) String() string {
	return "{" + strings.TrimSuffix(e.Key(), ",") + "}"
}

// Lattice is the powerset lattice of include nodes
type Lattice struct{}

// Bottom returns the empty set
func (Lattice) Bottom() *Element {
	return Empty()
}

// Lub returns the union of a and b
func (l Lattice) Lub(a, b *Element) *Element {
	switch {
	case l.Leq(b, a):
		return a
	case l.Leq(a, b):
		return b
	}
	return &Element{seen: a.seen.Union(b.seen)}
}

// Leq returns true if a is a subset of b
func (Lattice) Leq(a, b *Element) bool {
	if a.Len() == 0 {
		return true
	}
	return b.seen != nil && b.seen.IsSuperSet(a.seen)
}

// Equal returns true if a and b contain the same nodes
func (l Lattice) Equal(a, b *Element) bool {
	return a.Len() == b.Len() && l.Leq(a, b)
}

// Key returns e.Key()
func (Lattice) Key(e *Element) string {
	return e.Key()
}
