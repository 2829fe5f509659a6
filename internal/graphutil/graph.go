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
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
)

// Graph is a directed graph over the dense node ids 0..Order()-1. It is used to view control-flow graphs and call
// graphs of the program model through existing graph libraries: it implements yourbasic's graph.Iterator and
// Gonum's graph.Directed.
type Graph struct {
	// succs[x] lists the successors of x in increasing order, without duplicates
	succs [][]int

	// preds[y] lists the predecessors of y in increasing order, without duplicates
	preds [][]int
}

// NewGraph returns a graph with n nodes whose edges are given by the successors function. Successors out of
// bounds are ignored.
func NewGraph(n int, successors func(int) []int) *Graph {
	g := &Graph{
		succs: make([][]int, n),
		preds: make([][]int, n),
	}
	for x := 0; x < n; x++ {
		for _, y := range successors(x) {
			if y < 0 || y >= n || slices.Contains(g.succs[x], y) {
				continue
			}
			g.succs[x] = append(g.succs[x], y)
			g.preds[y] = append(g.preds[y], x)
		}
	}
	for x := 0; x < n; x++ {
		slices.Sort(g.succs[x])
		slices.Sort(g.preds[x])
	}
	return g
}

// Succs returns the successors of x. The result must not be modified.
func (g *Graph) Succs(x int) []int {
	if x < 0 || x >= len(g.succs) {
		return nil
	}
	return g.succs[x]
}

// Preds returns the predecessors of x. The result must not be modified.
func (g *Graph) Preds(x int) []int {
	if x < 0 || x >= len(g.preds) {
		return nil
	}
	return g.preds[x]
}

// *************** yourbasic Iterator interface implementation **********************

// Order implements the order of the graph.Iterator interface
func (g *Graph) Order() int {
	return len(g.succs)
}

// Visit implements the graph.Iterator interface
func (g *Graph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range g.Succs(v) {
		if do(w, 1) {
			return true
		}
	}
	return false
}

// *************** Gonum Directed interface implementation **********************

// Node implements the Graph interface. It returns nil when id is not a node of the graph.
func (g *Graph) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(g.succs)) {
		return nil
	}
	return Node(id)
}

// Nodes returns the set of nodes in the graph
func (g *Graph) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.succs))
	for i := range g.succs {
		nodes[i] = Node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the set of nodes reachable from the id in one step
func (g *Graph) From(id int64) graph.Nodes {
	return nodesOf(g.Succs(int(id)))
}

// To returns the set of nodes that can reach id in one step
func (g *Graph) To(id int64) graph.Nodes {
	return nodesOf(g.Preds(int(id)))
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (g *Graph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns true if there is a directed edge from uid to vid
func (g *Graph) HasEdgeFromTo(uid, vid int64) bool {
	_, found := slices.BinarySearch(g.Succs(int(uid)), int(vid))
	return found
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *Graph) Edge(uid, vid int64) graph.Edge {
	if !g.HasEdgeFromTo(uid, vid) {
		return nil
	}
	return Edge{F: Node(uid), T: Node(vid)}
}

func nodesOf(ids []int) graph.Nodes {
	nodes := make([]graph.Node, len(ids))
	for i, id := range ids {
		nodes[i] = Node(id)
	}
	return iterator.NewOrderedNodes(nodes)
}

// Node is a node of a Graph; it implements the graph.Node interface
type Node int64

// ID returns the id of the node
func (n Node) ID() int64 {
	return int64(n)
}

// Edge implements the graph.Edge interface
type Edge struct {
	F, T Node
}

// From returns the origin of the edge
func (e Edge) From() graph.Node {
	return e.F
}

// To returns the destination of the edge
func (e Edge) To() graph.Node {
	return e.T
}

// ReversedEdge returns a new value representing the reversed edge
func (e Edge) ReversedEdge() graph.Edge {
	return Edge{F: e.T, T: e.F}
}
