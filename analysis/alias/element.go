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

package alias

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-php-tools/analysis/program"
)

// pair is an unordered pair of variables, stored with a < b
type pair struct {
	a, b program.VarID
}

func mkPair(x, y program.VarID) pair {
	if x < y {
		return pair{x, y}
	}
	return pair{y, x}
}

// Element is an element of the alias lattice: a partition of the variables into must-alias groups, and a set of
// may-alias pairs. Only groups with at least two variables are stored. A pair of variables is never both must-aliased
// and may-aliased.
//
// Elements are immutable; the transfer functions work on copies.
type Element struct {
	bottom bool

	// groups are sorted, and sorted by their first variable
	groups [][]program.VarID

	// groupOf maps the variables in groups to the index of their group
	groupOf map[program.VarID]int

	may map[pair]bool
}

// Bottom returns the least element of the lattice, the value of unreachable points
func Bottom() *Element {
	return &Element{bottom: true, groupOf: map[program.VarID]int{}, may: map[pair]bool{}}
}

// Empty returns the element where no variables alias each other
func Empty() *Element {
	return &Element{groupOf: map[program.VarID]int{}, may: map[pair]bool{}}
}

// NewElement returns an element with the given must-alias groups and may-alias pairs. Overlapping groups are merged,
// and may-alias pairs of must-aliased variables are ignored.
func NewElement(groups [][]program.VarID, mayPairs [][2]program.VarID) *Element {
	uf := newUnionFind()
	for _, g := range groups {
		for _, v := range g[1:] {
			uf.union(g[0], v)
		}
	}
	e := Empty()
	e.setGroups(uf.blocks())
	for _, p := range mayPairs {
		e.addMay(p[0], p[1])
	}
	return e
}

// IsBottom returns true if the element is bottom
func (e *Element) IsBottom() bool {
	return e.bottom
}

func (e *Element) clone() *Element {
	c := &Element{
		bottom:  e.bottom,
		groups:  make([][]program.VarID, len(e.groups)),
		groupOf: make(map[program.VarID]int, len(e.groupOf)),
		may:     make(map[pair]bool, len(e.may)),
	}
	for i, g := range e.groups {
		c.groups[i] = append([]program.VarID(nil), g...)
	}
	for v, i := range e.groupOf {
		c.groupOf[v] = i
	}
	for p := range e.may {
		c.may[p] = true
	}
	return c
}

// setGroups replaces the groups, dropping the singletons and normalizing the order
func (e *Element) setGroups(groups [][]program.VarID) {
	e.groups = e.groups[:0]
	for _, g := range groups {
		if len(g) >= 2 {
			sorted := append([]program.VarID(nil), g...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			e.groups = append(e.groups, sorted)
		}
	}
	sort.Slice(e.groups, func(i, j int) bool { return e.groups[i][0] < e.groups[j][0] })
	e.groupOf = map[program.VarID]int{}
	for i, g := range e.groups {
		for _, v := range g {
			e.groupOf[v] = i
		}
	}
}

// group returns the must-alias group of v, including v. The result must not be modified.
func (e *Element) group(v program.VarID) []program.VarID {
	if i, ok := e.groupOf[v]; ok {
		return e.groups[i]
	}
	return []program.VarID{v}
}

// IsMustAlias returns true if x and y are must-aliases. A variable is a must-alias of itself.
func (e *Element) IsMustAlias(x, y program.VarID) bool {
	if x == y {
		return true
	}
	i, okx := e.groupOf[x]
	j, oky := e.groupOf[y]
	return okx && oky && i == j
}

// IsMayAlias returns true if x and y are may-aliases
func (e *Element) IsMayAlias(x, y program.VarID) bool {
	return e.may[mkPair(x, y)]
}

// MustAliases returns the must-aliases of v, excluding v, in increasing order
func (e *Element) MustAliases(v program.VarID) []program.VarID {
	var res []program.VarID
	for _, w := range e.group(v) {
		if w != v {
			res = append(res, w)
		}
	}
	return res
}

// MayAliases returns the may-aliases of v in increasing order
func (e *Element) MayAliases(v program.VarID) []program.VarID {
	var res []program.VarID
	for p := range e.may {
		if p.a == v {
			res = append(res, p.b)
		} else if p.b == v {
			res = append(res, p.a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Groups returns a copy of the must-alias groups
func (e *Element) Groups() [][]program.VarID {
	res := make([][]program.VarID, len(e.groups))
	for i, g := range e.groups {
		res[i] = append([]program.VarID(nil), g...)
	}
	return res
}

// MayPairs returns the may-alias pairs in increasing order
func (e *Element) MayPairs() [][2]program.VarID {
	res := make([][2]program.VarID, 0, len(e.may))
	for p := range e.may {
		res = append(res, [2]program.VarID{p.a, p.b})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i][0] < res[j][0] || (res[i][0] == res[j][0] && res[i][1] < res[j][1])
	})
	return res
}

// kill removes v from its must-alias group and from all may-alias pairs
// @mutates e
func (e *Element) kill(v program.VarID) {
	if i, ok := e.groupOf[v]; ok {
		groups := e.Groups()
		var rest []program.VarID
		for _, w := range groups[i] {
			if w != v {
				rest = append(rest, w)
			}
		}
		groups[i] = rest
		e.setGroups(groups)
	}
	for p := range e.may {
		if p.a == v || p.b == v {
			delete(e.may, p)
		}
	}
}

// addMust adds v to the must-alias group of target. v must not be in a group.
// @mutates e
func (e *Element) addMust(v, target program.VarID) {
	groups := e.Groups()
	if i, ok := e.groupOf[target]; ok {
		groups[i] = append(groups[i], v)
	} else {
		groups = append(groups, []program.VarID{target, v})
	}
	e.setGroups(groups)
}

// addMay adds the may-alias pair (x, y) unless x and y are must-aliases
// @mutates e
func (e *Element) addMay(x, y program.VarID) {
	if !e.IsMustAlias(x, y) {
		e.may[mkPair(x, y)] = true
	}
}

// Key returns a string identifying the element up to structural equality
func (e *Element) Key() string {
	if e.bottom {
		return "⊥"
	}
	var sb strings.Builder
	for _, g := range e.groups {
		fmt.Fprint(&sb, g)
	}
	sb.WriteString("|")
	for _, p := range e.MayPairs() {
		fmt.Fprintf(&sb, "%d-%d,", p[0], p[1])
	}
	return sb.String()
}

func (e *Element) String() string {
	return e.Key()
}

// Lattice implements the dataflow.Lattice interface for alias elements
type Lattice struct{}

// Bottom returns Bottom()
func (Lattice) Bottom() *Element {
	return Bottom()
}

// Lub returns the least upper bound of a and b. Two variables are must-aliases in the result iff they are
// must-aliases in a and in b. The pairs that are must-aliases in only one of a and b, or may-aliases in a or b, are
// may-aliases in the result.
func (Lattice) Lub(a, b *Element) *Element {
	if a.bottom {
		return b
	}
	if b.bottom {
		return a
	}
	// the must-alias partition of the result is the intersection of the partitions
	var groups [][]program.VarID
	for _, g := range a.groups {
		byGroupInB := map[int][]program.VarID{}
		var keys []int
		for _, v := range g {
			if j, ok := b.groupOf[v]; ok {
				if _, seen := byGroupInB[j]; !seen {
					keys = append(keys, j)
				}
				byGroupInB[j] = append(byGroupInB[j], v)
			}
		}
		for _, j := range keys {
			groups = append(groups, byGroupInB[j])
		}
	}
	res := Empty()
	res.setGroups(groups)
	for _, x := range []*Element{a, b} {
		for p := range x.may {
			res.addMay(p.a, p.b)
		}
		for _, g := range x.groups {
			for i, v := range g {
				for _, w := range g[i+1:] {
					res.addMay(v, w)
				}
			}
		}
	}
	return res
}

// Leq returns true if a is below b
func (l Lattice) Leq(a, b *Element) bool {
	return l.Equal(l.Lub(a, b), b)
}

// Equal returns true if a and b are structurally equal
func (Lattice) Equal(a, b *Element) bool {
	return a.Key() == b.Key()
}

// Key returns e.Key()
func (Lattice) Key(e *Element) string {
	return e.Key()
}

// unionFind is a union-find structure over variables, used to build partitions
type unionFind struct {
	parent map[program.VarID]program.VarID
	order  []program.VarID
}

func newUnionFind() *unionFind {
	return &unionFind{parent: map[program.VarID]program.VarID{}}
}

func (u *unionFind) find(v program.VarID) program.VarID {
	p, ok := u.parent[v]
	if !ok {
		u.parent[v] = v
		u.order = append(u.order, v)
		return v
	}
	if p == v {
		return v
	}
	root := u.find(p)
	u.parent[v] = root
	return root
}

func (u *unionFind) union(x, y program.VarID) {
	rx, ry := u.find(x), u.find(y)
	if rx != ry {
		u.parent[ry] = rx
	}
}

// blocks returns the blocks of the partition, in order of first insertion
func (u *unionFind) blocks() [][]program.VarID {
	idx := map[program.VarID]int{}
	var res [][]program.VarID
	for _, v := range u.order {
		r := u.find(v)
		i, ok := idx[r]
		if !ok {
			i = len(res)
			idx[r] = i
			res = append(res, nil)
		}
		res[i] = append(res[i], v)
	}
	return res
}
