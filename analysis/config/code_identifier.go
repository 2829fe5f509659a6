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

package config

import (
	"regexp"

	"github.com/awslabs/ar-php-tools/internal/funcutil"
)

// FunctionIdentifier identifies a library function of the analyzed program (a sink or a sanitizer), and optionally
// which of its arguments matter.
// The Function string is seen as a regex if it can be compiled to a regex, otherwise it is matched literally.
type FunctionIdentifier struct {
	// Function is the name of the function, or a regex matching names of functions
	Function string `yaml:"function"`

	// Arguments lists the positions of the arguments that are sensitive. An empty list means all arguments.
	Arguments []int `yaml:"arguments,omitempty"`

	// This will not be part of the yaml config
	computedRegex *regexp.Regexp
}

// compileRegexes compiles the function name into an anchored regex. If the name is not a valid regex, the identifier
// is returned unchanged and matching falls back to string equality.
// @ensures fid.computedRegex != nil || the name does not compile
func compileRegexes(fid FunctionIdentifier) FunctionIdentifier {
	if fid.Function == "" {
		return fid
	}
	r, err := regexp.Compile("^(" + fid.Function + ")$")
	if err != nil {
		return fid
	}
	fid.computedRegex = r
	return fid
}

// MatchName returns true if the function name matches the identifier. An empty identifier matches any name.
func (fid FunctionIdentifier) MatchName(name string) bool {
	if fid.Function == "" {
		return true
	}
	if fid.computedRegex != nil {
		return fid.computedRegex.MatchString(name)
	}
	return fid.Function == name
}

// MatchArgument returns true if the argument at position i is sensitive for the identifier.
func (fid FunctionIdentifier) MatchArgument(i int) bool {
	return len(fid.Arguments) == 0 || funcutil.Contains(fid.Arguments, i)
}

// SourceSpec identifies an untrusted input of the analyzed program. Exactly one of Superglobal or Function should be
// set. The Label names the taint label attached to values that originate from the source.
type SourceSpec struct {
	// Label is the name of the taint label. If empty, the name of the superglobal or the function is used.
	Label string `yaml:"label,omitempty"`

	// Superglobal is the name of an input superglobal array, e.g. _GET
	Superglobal string `yaml:"superglobal,omitempty"`

	// Function is the name of a library function returning untrusted data
	Function string `yaml:"function,omitempty"`
}

// LabelName returns the name of the label produced by the source.
func (s SourceSpec) LabelName() string {
	if s.Label != "" {
		return s.Label
	}
	if s.Superglobal != "" {
		return s.Superglobal
	}
	return s.Function
}

// ExistsFid is true if there is some x in a such that f(x) is true.
func ExistsFid(a []FunctionIdentifier, f func(identifier FunctionIdentifier) bool) bool {
	return funcutil.Exists(a, f)
}
