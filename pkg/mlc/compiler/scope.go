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
package compiler

import (
	"fmt"
	"sort"
)

// Resolution classifies how a bare identifier resolved.  Every identifier in
// executable position must fall into exactly one of these categories (or be
// a literal language token); anything else is an unknown-identifier error.
// This is the whitelist invariant.
type Resolution uint8

const (
	// ResVariable is a user variable.
	ResVariable Resolution = iota
	// ResFunction is a user-defined function.
	ResFunction
	// ResParameter is a parameter of an enclosing function or lambda.
	ResParameter
	// ResImport is an imported module name.
	ResImport
	// ResBuiltin is a member of the builtin module.
	ResBuiltin
)

// SymbolTable tracks the names defined within one compilation unit.  The
// code generator mutates it as it descends scopes: parameters are pushed on
// function and lambda entry, and popped on exit.
type SymbolTable struct {
	variables map[string]bool
	functions map[string]bool
	frames    []map[string]bool
	imports   map[string]bool
	builtins  map[string]bool
}

// NewSymbolTable constructs a symbol table seeded with the precomputed
// builtins set, and with the always-available builtin module imported.
func NewSymbolTable(builtins []string) *SymbolTable {
	builtinSet := make(map[string]bool, len(builtins))
	for _, n := range builtins {
		builtinSet[n] = true
	}
	//
	return &SymbolTable{
		variables: make(map[string]bool),
		functions: make(map[string]bool),
		imports:   map[string]bool{"builtin": true},
		builtins:  builtinSet,
	}
}

// DefineVariable records a user variable.
func (t *SymbolTable) DefineVariable(name string) {
	t.variables[name] = true
}

// DefineFunction records a user-defined function.
func (t *SymbolTable) DefineFunction(name string) {
	t.functions[name] = true
}

// DefineImport records an imported module name.
func (t *SymbolTable) DefineImport(name string) {
	t.imports[name] = true
}

// PushFrame enters a new parameter scope holding the given names.
func (t *SymbolTable) PushFrame(params []string) {
	frame := make(map[string]bool, len(params))
	for _, p := range params {
		frame[p] = true
	}
	//
	t.frames = append(t.frames, frame)
}

// PopFrame exits the innermost parameter scope.
func (t *SymbolTable) PopFrame() {
	if len(t.frames) == 0 {
		panic("popping empty parameter stack")
	}
	//
	t.frames = t.frames[:len(t.frames)-1]
}

// IsParameter checks whether a name is bound in the current parameter
// stack.
func (t *SymbolTable) IsParameter(name string) bool {
	for i := len(t.frames) - 1; i >= 0; i-- {
		if t.frames[i][name] {
			return true
		}
	}
	//
	return false
}

// Resolve places a bare identifier into one of the five symbol categories,
// checked in a fixed order.  Literal language tokens (null, undefined) are
// handled by the generator before this is consulted.
func (t *SymbolTable) Resolve(name string) (Resolution, bool) {
	switch {
	case t.variables[name]:
		return ResVariable, true
	case t.functions[name]:
		return ResFunction, true
	case t.IsParameter(name):
		return ResParameter, true
	case t.imports[name]:
		return ResImport, true
	case t.builtins[name]:
		return ResBuiltin, true
	}
	//
	return 0, false
}

// KnownNames summarises the table's contents bucketed by category, for use
// in unknown-identifier diagnostics.
func (t *SymbolTable) KnownNames() map[string][]string {
	flatten := func(set map[string]bool) []string {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}

		sort.Strings(names)

		return names
	}
	//
	params := make(map[string]bool)
	for _, frame := range t.frames {
		for n := range frame {
			params[n] = true
		}
	}
	//
	return map[string][]string{
		"variables":  flatten(t.variables),
		"functions":  flatten(t.functions),
		"parameters": flatten(params),
		"imports":    flatten(t.imports),
		"builtins":   flatten(t.builtins),
	}
}

// Suggestions returns the known names within a small edit distance of a
// given (unresolved) name, each labelled with its category.
func (t *SymbolTable) Suggestions(name string) []string {
	var result []string
	//
	for category, names := range t.KnownNames() {
		for _, n := range names {
			if levenshtein(name, n) <= 2 {
				result = append(result, fmt.Sprintf("%s (%s)", n, category))
			}
		}
	}
	//
	sort.Strings(result)
	//
	return result
}

// levenshtein computes the edit distance between two strings.
func levenshtein(a string, b string) int {
	ra, rb := []rune(a), []rune(b)
	//
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	//
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}
	//
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		//
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			//
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		//
		prev, curr = curr, prev
	}
	//
	return prev[len(rb)]
}
