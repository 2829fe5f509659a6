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

// Package sanitizer decides which library calls sanitize their result. The dependency analysis treats the result of
// a sanitizing call as untainted.
package sanitizer

import (
	"github.com/awslabs/ar-php-tools/analysis/config"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
)

// Oracle answers whether the value returned by a library call is proven sanitized
type Oracle interface {
	IsSanitized(call *program.CallBuiltin) bool
}

// Never is the oracle that proves nothing sanitized
type Never struct{}

// IsSanitized returns false
func (Never) IsSanitized(*program.CallBuiltin) bool {
	return false
}

// PatternOracle matches the names of the called functions against the sanitizers of a configuration
type PatternOracle struct {
	sanitizers []config.FunctionIdentifier
}

// NewPatternOracle returns an oracle recognizing the sanitizers of all the taint problems of the config
func NewPatternOracle(c *config.Config) *PatternOracle {
	o := &PatternOracle{}
	for _, ts := range c.TaintProblems {
		o.sanitizers = append(o.sanitizers, ts.Sanitizers...)
	}
	return o
}

// NewPatternOracleFromSpec returns an oracle recognizing the sanitizers of one taint problem
func NewPatternOracleFromSpec(ts config.TaintSpec) *PatternOracle {
	return &PatternOracle{sanitizers: ts.Sanitizers}
}

// IsSanitized returns true if the called function matches one of the sanitizers
func (o *PatternOracle) IsSanitized(call *program.CallBuiltin) bool {
	return funcutil.Exists(o.sanitizers, func(fid config.FunctionIdentifier) bool {
		return fid.Function != "" && fid.MatchName(call.Name)
	})
}

// Func adapts a function to the Oracle interface
type Func func(call *program.CallBuiltin) bool

// IsSanitized returns f(call)
func (f Func) IsSanitized(call *program.CallBuiltin) bool {
	return f(call)
}
