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

package dependency

import (
	"testing"

	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/bits-and-blooms/bitset"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func genDepSet() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 9)).Map(func(ls []int) DepSet {
		labels := make([]Label, len(ls))
		for i, l := range ls {
			labels[i] = Label(l)
		}
		return Of(labels...)
	})
}

func genValue() gopter.Gen {
	return gopter.CombineGens(genDepSet(), genDepSet(), gen.Bool()).Map(func(values []interface{}) Value {
		if values[2].(bool) {
			return ArrayValue(values[0].(DepSet), values[1].(DepSet))
		}
		return ScalarValue(values[0].(DepSet))
	})
}

func genElement() gopter.Gen {
	return gen.SliceOfN(4, genValue()).Map(func(vals []Value) *Element {
		e := NewElement()
		for i, v := range vals {
			e.Set(program.VarID(i), v)
		}
		return e
	})
}

func TestDepSetLaws(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("lub is commutative", prop.ForAll(
		func(a, b DepSet) bool { return a.Lub(b).Equal(b.Lub(a)) },
		genDepSet(), genDepSet(),
	))
	properties.Property("lub is associative", prop.ForAll(
		func(a, b, c DepSet) bool { return a.Lub(b.Lub(c)).Equal(a.Lub(b).Lub(c)) },
		genDepSet(), genDepSet(), genDepSet(),
	))
	properties.Property("lub is idempotent", prop.ForAll(
		func(a DepSet) bool { return a.Lub(a).Equal(a) },
		genDepSet(),
	))
	properties.Property("lub is the least upper bound", prop.ForAll(
		func(a, b, c DepSet) bool {
			j := a.Lub(b)
			if !a.Leq(j) || !b.Leq(j) {
				return false
			}
			return !(a.Leq(c) && b.Leq(c)) || j.Leq(c)
		},
		genDepSet(), genDepSet(), genDepSet(),
	))
	properties.Property("lub does not modify its operands", prop.ForAll(
		func(a, b DepSet) bool {
			before := a.Key()
			a.Lub(b)
			return a.Key() == before
		},
		genDepSet(), genDepSet(),
	))
	properties.Property("key identifies the set", prop.ForAll(
		func(a, b DepSet) bool { return a.Equal(b) == (a.Key() == b.Key()) },
		genDepSet(), genDepSet(),
	))

	properties.TestingRun(t)
}

func TestValueAndElementLaws(t *testing.T) {
	l := Lattice{}
	properties := gopter.NewProperties(nil)

	properties.Property("value lub is commutative", prop.ForAll(
		func(a, b Value) bool { return a.Lub(b).Equal(b.Lub(a)) },
		genValue(), genValue(),
	))
	properties.Property("all of the lub is the lub of all", prop.ForAll(
		func(a, b Value) bool { return a.Lub(b).All().Equal(a.All().Lub(b.All())) },
		genValue(), genValue(),
	))
	properties.Property("element lub is an upper bound", prop.ForAll(
		func(a, b *Element) bool {
			j := l.Lub(a, b)
			return l.Leq(a, j) && l.Leq(b, j) && l.Equal(j, l.Lub(b, a))
		},
		genElement(), genElement(),
	))
	properties.Property("bottom is the least element", prop.ForAll(
		func(a *Element) bool { return l.Leq(l.Bottom(), a) && l.Equal(l.Lub(l.Bottom(), a), a) },
		genElement(),
	))

	properties.TestingRun(t)
}

func TestDepSetEqualIgnoresLength(t *testing.T) {
	long := bitset.New(128)
	long.Set(1).Set(3)
	d := DepSet{bits: long}
	assert.True(t, d.Equal(Of(3, 1)))
	assert.Equal(t, Of(1, 3).Key(), d.Key())
	assert.True(t, DepSet{}.Equal(DepSet{bits: bitset.New(64)}), "empty sets of any length are bottom")
	assert.False(t, d.Equal(Of(1)))
}

func TestDepSetQueries(t *testing.T) {
	tests := []struct {
		name    string
		d       DepSet
		tainted bool
		labels  []Label
		taints  []Label
	}{
		{"bottom", DepSet{}, false, nil, nil},
		{"untainted", Of(Untainted), false, []Label{0}, nil},
		{"tainted", Of(2), true, []Label{2}, []Label{2}},
		{"mixed", Of(3, Untainted, 1), true, []Label{0, 1, 3}, []Label{1, 3}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.tainted, test.d.IsTainted())
			assert.Equal(t, test.labels, test.d.Labels())
			assert.Equal(t, test.taints, test.d.Taints())
		})
	}
}

func TestLabelTable(t *testing.T) {
	lt := NewLabelTable("_GET", "db", "_GET")
	assert.Equal(t, 3, lt.Len())
	l, ok := lt.Label("db")
	assert.True(t, ok)
	assert.Equal(t, Label(2), l)
	_, ok = lt.Label("nothing")
	assert.False(t, ok)
	assert.Equal(t, []string{"untainted", "_GET", "db"}, lt.Names(Of(0, 1, 2)))
}

func TestArrayValue(t *testing.T) {
	s := ScalarValue(Of(1))
	a := ArrayValue(Of(Untainted), Of(2))
	assert.False(t, s.IsArray())
	assert.True(t, s.ArrayLabel().Equal(Of(1)), "the array label of a scalar is its dependency")
	j := s.Lub(a)
	assert.True(t, j.IsArray())
	assert.True(t, j.Dep.Equal(Of(0, 1)))
	assert.True(t, j.ArrayLabel().Equal(Of(1, 2)))
	assert.True(t, a.All().Equal(Of(0, 2)))
	assert.False(t, ArrayValue(DepSet{}, DepSet{}).IsBottom(), "an empty array is not bottom")
}
