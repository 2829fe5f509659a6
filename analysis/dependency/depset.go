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
	"fmt"
	"strings"

	"github.com/awslabs/ar-php-tools/analysis/config"
	"github.com/bits-and-blooms/bitset"
)

// Label identifies a source of untrusted data. The label Untainted marks values that do not depend on any source.
type Label uint

// Untainted is the label of values built from literals, or proven sanitized
const Untainted Label = 0

// LabelTable is the catalog of labels of an analysis. The universe of labels is fixed when the table is created.
type LabelTable struct {
	names  []string
	byName map[string]Label
}

// NewLabelTable returns a table with the Untainted label and one label per distinct name, in order
func NewLabelTable(names ...string) *LabelTable {
	t := &LabelTable{
		names:  []string{config.UntaintedLabel},
		byName: map[string]Label{config.UntaintedLabel: Untainted},
	}
	for _, name := range names {
		if _, ok := t.byName[name]; !ok {
			t.byName[name] = Label(len(t.names))
			t.names = append(t.names, name)
		}
	}
	return t
}

// LabelTableFromConfig returns the table of the labels of all the sources of the config
func LabelTableFromConfig(c *config.Config) *LabelTable {
	return NewLabelTable(c.Labels()...)
}

// Label returns the label named name
func (t *LabelTable) Label(name string) (Label, bool) {
	l, ok := t.byName[name]
	return l, ok
}

// Name returns the name of the label
func (t *LabelTable) Name(l Label) string {
	if int(l) < len(t.names) {
		return t.names[l]
	}
	return fmt.Sprintf("label%d", l)
}

// Len returns the number of labels, Untainted included
func (t *LabelTable) Len() int {
	return len(t.names)
}

// Names returns the names of the labels of d
func (t *LabelTable) Names(d DepSet) []string {
	var res []string
	for _, l := range d.Labels() {
		res = append(res, t.Name(l))
	}
	return res
}

// DepSet is a set of labels. DepSets are immutable, and the zero value is the empty set (bottom).
type DepSet struct {
	bits *bitset.BitSet
}

// Of returns the set of the given labels
func Of(labels ...Label) DepSet {
	if len(labels) == 0 {
		return DepSet{}
	}
	b := bitset.New(uint(labels[0]) + 1)
	for _, l := range labels {
		b.Set(uint(l))
	}
	return DepSet{bits: b}
}

// IsBottom returns true if d is empty
func (d DepSet) IsBottom() bool {
	return d.bits == nil || d.bits.None()
}

// Has returns true if d contains l
func (d DepSet) Has(l Label) bool {
	return d.bits != nil && d.bits.Test(uint(l))
}

// IsTainted returns true if d contains a label other than Untainted
func (d DepSet) IsTainted() bool {
	if d.bits == nil {
		return false
	}
	_, found := d.bits.NextSet(uint(Untainted) + 1)
	return found
}

// Lub returns the union of d and o
func (d DepSet) Lub(o DepSet) DepSet {
	switch {
	case o.IsBottom():
		return d
	case d.IsBottom():
		return o
	case d.bits.IsSuperSet(o.bits):
		return d
	}
	return DepSet{bits: d.bits.Union(o.bits)}
}

// Leq returns true if d is a subset of o
func (d DepSet) Leq(o DepSet) bool {
	if d.IsBottom() {
		return true
	}
	return !o.IsBottom() && o.bits.IsSuperSet(d.bits)
}

// Equal returns true if d and o contain the same labels. Bit sets of different lengths may be equal.
func (d DepSet) Equal(o DepSet) bool {
	return d.Leq(o) && o.Leq(d)
}

// Labels returns the labels of d in increasing order
func (d DepSet) Labels() []Label {
	if d.bits == nil {
		return nil
	}
	var res []Label
	for i, ok := d.bits.NextSet(0); ok; i, ok = d.bits.NextSet(i + 1) {
		res = append(res, Label(i))
	}
	return res
}

// Taints returns the labels of d other than Untainted
func (d DepSet) Taints() []Label {
	var res []Label
	for _, l := range d.Labels() {
		if l != Untainted {
			res = append(res, l)
		}
	}
	return res
}

// Key returns a string identifying the set
func (d DepSet) Key() string {
	var sb strings.Builder
	for i, l := range d.Labels() {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", l)
	}
	return sb.String()
}

func (d DepSet) String() string {
	return "{" + d.Key() + "}"
}
