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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScope_ResolutionOrder(t *testing.T) {
	table := NewSymbolTable([]string{"len", "print"})
	//
	table.DefineVariable("x")
	table.DefineFunction("f")
	table.DefineImport("math")
	table.PushFrame([]string{"p"})
	//
	check := func(name string, expected Resolution) {
		res, ok := table.Resolve(name)
		assert.True(t, ok, name)
		assert.Equal(t, expected, res, name)
	}
	//
	check("x", ResVariable)
	check("f", ResFunction)
	check("p", ResParameter)
	check("math", ResImport)
	check("len", ResBuiltin)
	// The builtin module itself is implicitly imported.
	check("builtin", ResImport)
	//
	_, ok := table.Resolve("unknown")
	assert.False(t, ok)
}

func TestScope_VariableShadowsBuiltin(t *testing.T) {
	table := NewSymbolTable([]string{"len"})
	table.DefineVariable("len")
	//
	res, ok := table.Resolve("len")
	assert.True(t, ok)
	assert.Equal(t, ResVariable, res)
}

func TestScope_FramesPushPop(t *testing.T) {
	table := NewSymbolTable(nil)
	//
	table.PushFrame([]string{"a"})
	table.PushFrame([]string{"b"})
	//
	assert.True(t, table.IsParameter("a"))
	assert.True(t, table.IsParameter("b"))
	//
	table.PopFrame()
	assert.True(t, table.IsParameter("a"))
	assert.False(t, table.IsParameter("b"))
	//
	table.PopFrame()
	assert.False(t, table.IsParameter("a"))
}

func TestScope_Suggestions(t *testing.T) {
	table := NewSymbolTable([]string{"typeof", "len"})
	//
	suggestions := table.Suggestions("type")
	assert.Contains(t, suggestions, "typeof (builtins)")
}

func TestScope_KnownNamesBucketed(t *testing.T) {
	table := NewSymbolTable([]string{"len"})
	table.DefineVariable("x")
	table.DefineFunction("f")
	//
	known := table.KnownNames()
	assert.Equal(t, []string{"x"}, known["variables"])
	assert.Equal(t, []string{"f"}, known["functions"])
	assert.Equal(t, []string{"len"}, known["builtins"])
	assert.Equal(t, []string{"builtin"}, known["imports"])
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 2, levenshtein("type", "typeof"))
	assert.Equal(t, 3, levenshtein("", "abc"))
}
