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
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Builtins(t *testing.T) {
	r := DefaultRegistry()
	//
	assert.True(t, r.IsAllowedBuiltin("len"))
	assert.True(t, r.IsAllowedBuiltin("print"))
	assert.True(t, r.IsAllowedBuiltin("getattr"))
	assert.True(t, r.IsAllowedBuiltin("has_capability"))
	// Host facilities are not builtins.
	assert.False(t, r.IsAllowedBuiltin("type"))
	assert.False(t, r.IsAllowedBuiltin("eval"))
	assert.False(t, r.IsAllowedBuiltin("open"))
}

func TestRegistry_Modules(t *testing.T) {
	r := DefaultRegistry()
	//
	assert.True(t, r.IsRegisteredModule("builtin"))
	assert.True(t, r.IsRegisteredModule("math"))
	assert.True(t, r.IsRegisteredModule("file"))
	assert.False(t, r.IsRegisteredModule("os"))
}

func TestRegistry_LookupModule(t *testing.T) {
	r := DefaultRegistry()
	//
	m, err := r.LookupModule("math")
	require.NoError(t, err)
	//
	fn, ok := m.Function("sqrt")
	require.True(t, ok)
	assert.Equal(t, uint(1), fn.MinArity)
	//
	_, err = r.LookupModule("nowhere")
	assert.Error(t, err)
}

func TestRegistry_RequiredCapabilities(t *testing.T) {
	r := DefaultRegistry()
	//
	assert.Equal(t, []string{"FileRead"}, r.RequiredCapabilities("file", "read"))
	assert.Equal(t, []string{"FileWrite"}, r.RequiredCapabilities("file", "write"))
	assert.Empty(t, r.RequiredCapabilities("math", "sqrt"))
	assert.Empty(t, r.RequiredCapabilities("file", "nothing"))
}

func TestRegistry_FreezeRefusesRegistration(t *testing.T) {
	r := DefaultRegistry()
	r.Freeze()
	//
	err := r.Register(&ModuleMetadata{Name: "late"})
	assert.Error(t, err)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := DefaultRegistry()
	//
	err := r.Register(&ModuleMetadata{Name: "math"})
	assert.Error(t, err)
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	r := DefaultRegistry()
	r.Freeze()
	//
	clone := r.Clone()
	require.NoError(t, clone.Register(&ModuleMetadata{Name: "os", Host: true}))
	//
	assert.True(t, clone.IsRegisteredModule("os"))
	assert.False(t, r.IsRegisteredModule("os"))
}

func TestRegistry_BuiltinNamesSorted(t *testing.T) {
	names := DefaultRegistry().BuiltinNames()
	require.NotEmpty(t, names)
	//
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

// ============================================================================
// Discovery
// ============================================================================

func TestDiscover_ModuleMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geometry.ml", `
		// @module geometry
		// @version 2.1
		function area(w, h) { return w * h; }
		function perimeter(w, h) { return 2 * (w + h); }
	`)
	// A file without a marker is not a module.
	writeFile(t, dir, "scratch.ml", "x = 1;")
	//
	r := DefaultRegistry()
	require.NoError(t, r.Discover(dir))
	//
	require.True(t, r.IsRegisteredModule("geometry"))
	// Materialization is deferred until first lookup.
	m, err := r.LookupModule("geometry")
	require.NoError(t, err)
	assert.Equal(t, "2.1", m.Version)
	//
	fn, ok := m.Function("area")
	require.True(t, ok)
	assert.Equal(t, uint(2), fn.MinArity)
	//
	_, ok = m.Function("perimeter")
	assert.True(t, ok)
}

func TestDiscover_MarkerMustBeInHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sneaky.ml", `
		x = 1;
		// @module sneaky
	`)
	//
	r := DefaultRegistry()
	require.NoError(t, r.Discover(dir))
	assert.False(t, r.IsRegisteredModule("sneaky"))
}

func TestDiscover_MultipleDirs(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeFile(t, dirA, "a.ml", "// @module mod_a\nfunction f() { return 1; }")
	writeFile(t, dirB, "b.ml", "// @module mod_b\nfunction g() { return 2; }")
	//
	r := DefaultRegistry()
	require.NoError(t, r.Discover(dirA, dirB))
	//
	assert.True(t, r.IsRegisteredModule("mod_a"))
	assert.True(t, r.IsRegisteredModule("mod_b"))
}

func writeFile(t *testing.T, dir string, name string, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0644))
}
