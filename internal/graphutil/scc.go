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
	"sort"

	"github.com/awslabs/ar-php-tools/internal/funcutil"
	"github.com/yourbasic/graph"
)

// StronglyConnectedComponents is an implementation of Tarjan's strongly connected component (SCC) algorithm
// for generic nodes T.
// Successors returns a slice containing the targets of directed edges out from the given node.
// The order of SCCs is toposorted so that successors appear first, i.e. callees before callers when the graph is a
// call graph. Bottom-up summary computations iterate over the result in that order.
func StronglyConnectedComponents[T comparable](nodes []T, successors func(T) []T) [][]T {
	var (
		stack     []T
		onStack   = map[T]bool{}
		index     = map[T]int{}
		lowlink   = map[T]int{}
		nextIndex = 0
		sccs      [][]T
	)

	var visit func(v T)
	visit = func(v T) {
		index[v] = nextIndex
		lowlink[v] = nextIndex
		nextIndex++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range successors(v) {
			if _, seen := index[w]; !seen {
				visit(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}
		if lowlink[v] != index[v] {
			return
		}
		var scc []T
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		sccs = append(sccs, scc)
	}

	for _, v := range nodes {
		if _, seen := index[v]; !seen {
			visit(v)
		}
	}
	return sccs
}

// IsRecursive returns true if the component is a cycle of g: it has more than one node, or its single node has a
// self-loop.
func IsRecursive(g *Graph, scc []int) bool {
	if len(scc) > 1 {
		return true
	}
	return len(scc) == 1 && g.HasEdgeFromTo(int64(scc[0]), int64(scc[0]))
}

// ReversePostorder returns the nodes reachable from the roots in reverse postorder of a depth-first traversal.
// Roots are visited in the order given. In an acyclic graph, every node appears before its successors.
func ReversePostorder(g *Graph, roots []int) []int {
	visited := make([]bool, g.Order())
	var post []int
	var visit func(int)
	visit = func(v int) {
		visited[v] = true
		for _, w := range g.Succs(v) {
			if !visited[w] {
				visit(w)
			}
		}
		post = append(post, v)
	}
	for _, r := range roots {
		if r >= 0 && r < g.Order() && !visited[r] {
			visit(r)
		}
	}
	funcutil.Reverse(post)
	return post
}

// RecursiveComponents returns the strongly connected components of g that contain a cycle, as computed by
// yourbasic's graph.StrongComponents. The nodes of each component are sorted.
func RecursiveComponents(g *Graph) [][]int {
	var res [][]int
	for _, c := range graph.StrongComponents(g) {
		if IsRecursive(g, c) {
			sort.Ints(c)
			res = append(res, c)
		}
	}
	return res
}

// Acyclic returns true if the graph has no cycles.
func Acyclic(g *Graph) bool {
	return graph.Acyclic(g)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
