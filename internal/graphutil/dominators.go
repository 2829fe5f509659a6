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

package graphutil

import (
	"gonum.org/v1/gonum/graph/flow"
)

// DominatorTree is the dominator tree of a Graph from a given root, computed by Gonum's Lengauer-Tarjan
// implementation.
type DominatorTree struct {
	tree flow.DominatorTree
	root int
}

// Dominators computes the dominator tree of g rooted at root.
func Dominators(g *Graph, root int) *DominatorTree {
	return &DominatorTree{
		tree: flow.Dominators(Node(root), g),
		root: root,
	}
}

// ImmediateDominator returns the immediate dominator of x, and false if x is the root or is not reachable from
// the root.
func (d *DominatorTree) ImmediateDominator(x int) (int, bool) {
	n := d.tree.DominatorOf(int64(x))
	if n == nil {
		return -1, false
	}
	return int(n.ID()), true
}

// Dominates returns true if every path from the root to b goes through a. Every node reachable from the root
// dominates itself.
func (d *DominatorTree) Dominates(a, b int) bool {
	cur := b
	for {
		if cur == a {
			return true
		}
		next, ok := d.ImmediateDominator(cur)
		if !ok {
			return false
		}
		cur = next
	}
}

// DominatorsOf returns the list of dominators of x, from x up to the root. The result is empty if x is not reachable
// from the root.
func (d *DominatorTree) DominatorsOf(x int) []int {
	if x != d.root {
		if _, ok := d.ImmediateDominator(x); !ok {
			return nil
		}
	}
	doms := []int{x}
	cur := x
	for {
		next, ok := d.ImmediateDominator(cur)
		if !ok {
			return doms
		}
		doms = append(doms, next)
		cur = next
	}
}
