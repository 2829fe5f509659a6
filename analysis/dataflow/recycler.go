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

package dataflow

// Recycler maps structurally equal lattice elements to one canonical instance. A recycler is owned by one engine run.
// Elements given to Recycle are published: they must not be modified afterwards.
type Recycler[E any] struct {
	lattice   Lattice[E]
	canonical map[string]E
	hits      int
}

// NewRecycler returns an empty recycler for elements of the lattice
func NewRecycler[E any](lattice Lattice[E]) *Recycler[E] {
	return &Recycler[E]{lattice: lattice, canonical: map[string]E{}}
}

// Recycle returns the canonical element structurally equal to e, and its key. If there is none, e becomes the
// canonical element.
func (r *Recycler[E]) Recycle(e E) (E, string) {
	key := r.lattice.Key(e)
	if c, ok := r.canonical[key]; ok {
		r.hits++
		return c, key
	}
	r.canonical[key] = e
	return e, key
}

// Size returns the number of canonical elements
func (r *Recycler[E]) Size() int {
	return len(r.canonical)
}

// Hits returns the number of calls to Recycle that returned an existing element
func (r *Recycler[E]) Hits() int {
	return r.hits
}
