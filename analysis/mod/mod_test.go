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

package mod

import (
	"embed"
	"io"
	"path/filepath"
	"testing"

	"github.com/awslabs/ar-php-tools/analysis/alias"
	"github.com/awslabs/ar-php-tools/analysis/config"
	"github.com/awslabs/ar-php-tools/analysis/dataflow"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//go:embed testdata
var testfsys embed.FS

func loadSummaries(t *testing.T) (*program.Program, *alias.Result, *Summaries) {
	filename := filepath.Join("testdata", "mod.yaml")
	b, err := testfsys.ReadFile(filename)
	require.NoError(t, err)
	p, err := program.LoadYAMLBytes(filename, b)
	require.NoError(t, err)
	c := config.NewDefault()
	c.LogLevel = int(config.DebugLevel)
	l := config.NewLogGroup(c)
	l.SetAllOutput(io.Discard)
	state := dataflow.NewAnalyzerState(p, l, c)
	aliases, err := alias.Analyze(state)
	require.NoError(t, err)
	return p, aliases, Compute(state, aliases)
}

func TestSummaries(t *testing.T) {
	p, aliases, s := loadSummaries(t)
	globals := func(names ...string) []program.VarID {
		var res []program.VarID
		for _, name := range names {
			v, ok := p.GlobalByName(name)
			require.True(t, ok, name)
			res = append(res, v)
		}
		return res
	}
	tests := []struct {
		fn   string
		want []program.VarID
	}{
		{"setg", globals("g")},
		{"viaref", globals("k")},
		{"outer", globals("g")},
		{"rec1", globals("h")},
		{"rec2", globals("h")},
		{"pure", nil},
		{"maybe", globals("g", "k")},
		{program.MainName, globals("g", "h", "k", "r")},
	}
	for _, test := range tests {
		t.Run(test.fn, func(t *testing.T) {
			fn, ok := p.FuncByName(test.fn)
			require.True(t, ok)
			require.True(t, aliases.Solution().Reached(fn.Exit), "exit of %s is not reached", test.fn)
			_, ok = s.Modified(fn.ID)
			assert.True(t, ok, "every function has a summary")
			assert.Equal(t, test.want, s.Vars(fn.ID))
		})
	}
}

func TestWrites(t *testing.T) {
	p, _, s := loadSummaries(t)
	pure, _ := p.FuncByName("pure")
	setg, _ := p.FuncByName("setg")
	g, _ := p.GlobalByName("g")
	unused, _ := p.GlobalByName("unused")
	c, _ := p.GlobalByName("C")

	assert.False(t, s.Writes(pure.ID, g))
	assert.True(t, s.Writes(setg.ID, g))
	assert.False(t, s.Writes(p.Main, unused))
	assert.False(t, s.Writes(p.Main, c), "constants are never written")

	var none *Summaries
	_, ok := none.Modified(setg.ID)
	assert.False(t, ok)
	assert.True(t, none.Writes(pure.ID, g), "without summaries every global may be written")
	assert.Empty(t, none.Vars(pure.ID))
}

func TestRecursiveComponents(t *testing.T) {
	p, _, s := loadSummaries(t)
	for _, fn := range p.Functions() {
		want := fn.Name == "rec1" || fn.Name == "rec2"
		assert.Equal(t, want, s.Recursive(fn.ID), fn.Name)
	}
	// one round per non-recursive function, and two or three rounds for {rec1, rec2} depending on the order in
	// which the component is visited
	nonRecursive := p.NumFuncs() - 2
	assert.GreaterOrEqual(t, s.Rounds(), nonRecursive+2)
	assert.LessOrEqual(t, s.Rounds(), nonRecursive+3)

	var none *Summaries
	assert.False(t, none.Recursive(p.Main))
}
