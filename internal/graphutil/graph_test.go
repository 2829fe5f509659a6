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
	"testing"

	"golang.org/x/exp/slices"
)

// diamond: 0 -> {1, 2} -> 3 -> 4, with a back edge 4 -> 3
func diamond() *Graph {
	m := intGraph{0: {1, 2}, 1: {3}, 2: {3}, 3: {4}, 4: {3}}
	return NewGraph(5, succFunc(m))
}

func TestNewGraphDeduplicatesEdges(t *testing.T) {
	g := NewGraph(3, succFunc(intGraph{0: {1, 1, 2, 7}, 1: {0}}))
	if !slices.Equal(g.Succs(0), []int{1, 2}) {
		t.Errorf("expected successors [1 2], got %v", g.Succs(0))
	}
	if !slices.Equal(g.Preds(0), []int{1}) {
		t.Errorf("expected predecessors [1], got %v", g.Preds(0))
	}
	if g.Succs(10) != nil {
		t.Errorf("expected no successors for out of bounds node")
	}
	if n := len(g.Succs(0)) + len(g.Succs(1)) + len(g.Succs(2)); n != 3 {
		t.Errorf("expected 3 edges, got %d", n)
	}
}

func TestGonumInterface(t *testing.T) {
	g := diamond()
	if g.Node(7) != nil {
		t.Errorf("Node(7) should be nil")
	}
	if g.Nodes().Len() != 5 {
		t.Errorf("expected 5 nodes, got %d", g.Nodes().Len())
	}
	if !g.HasEdgeFromTo(0, 1) || g.HasEdgeFromTo(1, 0) {
		t.Errorf("edge 0 -> 1 is directed")
	}
	if !g.HasEdgeBetween(1, 0) {
		t.Errorf("HasEdgeBetween is undirected")
	}
	if e := g.Edge(3, 4); e == nil || e.From().ID() != 3 || e.To().ID() != 4 {
		t.Errorf("unexpected edge %v", e)
	}
	if g.Edge(4, 0) != nil {
		t.Errorf("there is no edge 4 -> 0")
	}
	if n := g.To(3).Len(); n != 3 {
		t.Errorf("expected 3 predecessors of 3, got %d", n)
	}
}

func TestReversePostorder(t *testing.T) {
	g := diamond()
	rpo := ReversePostorder(g, []int{0})
	if len(rpo) != 5 || rpo[0] != 0 {
		t.Fatalf("unexpected order %v", rpo)
	}
	pos := map[int]int{}
	for i, x := range rpo {
		pos[x] = i
	}
	for _, edge := range [][2]int{{0, 1}, {0, 2}, {1, 3}, {2, 3}, {3, 4}} {
		if pos[edge[0]] > pos[edge[1]] {
			t.Errorf("%d should come before %d in %v", edge[0], edge[1], rpo)
		}
	}
	if len(ReversePostorder(g, []int{4})) != 2 {
		t.Errorf("only 3 and 4 are reachable from 4")
	}
}

func TestRecursiveComponentsAndAcyclic(t *testing.T) {
	g := diamond()
	if rec := RecursiveComponents(g); len(rec) != 1 || !slices.Equal(rec[0], []int{3, 4}) {
		t.Errorf("unexpected recursive components %v", rec)
	}
	if Acyclic(g) {
		t.Errorf("the diamond has a back edge")
	}
	chain := NewGraph(3, succFunc(intGraph{0: {1}, 1: {2}}))
	if !Acyclic(chain) {
		t.Errorf("a chain is acyclic")
	}
	if rec := RecursiveComponents(chain); len(rec) != 0 {
		t.Errorf("a chain has no recursive component, got %v", rec)
	}
	self := NewGraph(2, succFunc(intGraph{0: {1}, 1: {1}}))
	if rec := RecursiveComponents(self); len(rec) != 1 || !slices.Equal(rec[0], []int{1}) {
		t.Errorf("a self-loop is a recursive component, got %v", rec)
	}
}

func TestDominators(t *testing.T) {
	g := diamond()
	d := Dominators(g, 0)
	tests := []struct {
		a, b int
		want bool
	}{
		{0, 4, true},
		{3, 4, true},
		{1, 3, false},
		{2, 3, false},
		{4, 3, false},
		{3, 3, true},
	}
	for _, tt := range tests {
		if got := d.Dominates(tt.a, tt.b); got != tt.want {
			t.Errorf("Dominates(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
	if idom, ok := d.ImmediateDominator(3); !ok || idom != 0 {
		t.Errorf("idom(3) = %d, want 0", idom)
	}
	if _, ok := d.ImmediateDominator(0); ok {
		t.Errorf("the root has no immediate dominator")
	}
	if doms := d.DominatorsOf(4); !slices.Equal(doms, []int{4, 3, 0}) {
		t.Errorf("unexpected dominators of 4: %v", doms)
	}
}
