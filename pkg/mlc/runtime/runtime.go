// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package runtime ships the host-side support library emitted alongside
// every transpiled program.  The library is authored once, embedded into
// the transpiler binary, and either written next to multi-file output or
// prepended to single-file and in-memory output.
package runtime

import (
	_ "embed"
	"regexp"
)

// FILENAME is the name under which the support library is written in
// multi-file emit mode.
const FILENAME = "mlc_runtime.py"

// MODULE is the host module name emitted programs import the helpers from.
const MODULE = "mlc_runtime"

//go:embed mlc_runtime.py
var librarySource string

// Source returns the full text of the runtime support library.
func Source() string {
	return librarySource
}

// exportsRegex extracts the names listed in the library's BUILTIN_EXPORTS
// literal.
var exportsRegex = regexp.MustCompile(`(?s)BUILTIN_EXPORTS = \[(.*?)\]`)

var nameRegex = regexp.MustCompile(`"([a-z_]+)"`)

// BuiltinNames returns the builtin member names the runtime library
// declares.  The compile-time registry must agree with this set, which is
// enforced by a cross-check test.
func BuiltinNames() []string {
	block := exportsRegex.FindStringSubmatch(librarySource)
	if block == nil {
		return nil
	}
	//
	var names []string
	for _, m := range nameRegex.FindAllStringSubmatch(block[1], -1) {
		names = append(names, m[1])
	}
	//
	return names
}
