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

import (
	"errors"

	"github.com/awslabs/ar-php-tools/analysis/config"
	"github.com/awslabs/ar-php-tools/analysis/program"
	"github.com/awslabs/ar-php-tools/internal/funcutil"
)

// AnalyzerState holds the information shared by the analyses of a program: the program, the configuration and the
// logger. The different phases of the taint analysis store their errors in the state.
type AnalyzerState struct {
	// The logger used during the analysis (can be used to control output)
	Logger *config.LogGroup

	// The configuration of the analysis
	Config *config.Config

	// The program to be analyzed
	Program *program.Program

	// Stored errors, by phase
	errors map[string][]error
}

// NewAnalyzerState returns a state for the analysis of the program. If the logger is nil, a logger is created from
// the config; if the config is nil, the default config is used.
func NewAnalyzerState(p *program.Program, l *config.LogGroup, c *config.Config) *AnalyzerState {
	if c == nil {
		c = config.NewDefault()
	}
	if l == nil {
		l = config.NewLogGroup(c)
	}
	return &AnalyzerState{
		Logger:  l,
		Config:  c,
		Program: p,
		errors:  map[string][]error{},
	}
}

// AddError adds an error with key and error e to the state.
func (s *AnalyzerState) AddError(key string, e error) {
	if e != nil {
		s.errors[key] = append(s.errors[key], e)
	}
}

// CheckError checks whether there is an error in the state, and if there is, returns the errors of the first key in
// alphabetical order and deletes them.
func (s *AnalyzerState) CheckError() []error {
	for _, key := range funcutil.SortedKeys(s.errors) {
		errs := s.errors[key]
		delete(s.errors, key)
		return errs
	}
	return nil
}

// HasErrors returns true if the state has an error. Unlike [*AnalyzerState.CheckError], this is non-destructive.
func (s *AnalyzerState) HasErrors() bool {
	for _, errs := range s.errors {
		if len(errs) > 0 {
			return true
		}
	}
	return false
}

// Errors returns all the errors of the state joined in one error, or nil
func (s *AnalyzerState) Errors() error {
	var all []error
	for _, key := range funcutil.SortedKeys(s.errors) {
		all = append(all, s.errors[key]...)
	}
	return errors.Join(all...)
}
