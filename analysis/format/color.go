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

// Package format contains the terminal formatting helpers shared by the loggers and the reports of the analyses.
package format

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

var (
	Faint  = Color("\033[2m%s\033[0m")
	Red    = Color("\033[1;31m%s\033[0m")
	Green  = Color("\033[1;32m%s\033[0m")
	Yellow = Color("\033[1;33m%s\033[0m")
	Purple = Color("\033[1;34m%s\033[0m")
)

// colorEnabled is checked at every call so that tests redirecting stdout get plain strings
var colorEnabled = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Color returns a function that formats its arguments like fmt.Sprint and wraps the result in the colorString
// escape sequence when the standard output is a terminal.
func Color(colorString string) func(...interface{}) string {
	return func(args ...interface{}) string {
		if colorEnabled() {
			return fmt.Sprintf(colorString, fmt.Sprint(args...))
		}
		return fmt.Sprint(args...)
	}
}
