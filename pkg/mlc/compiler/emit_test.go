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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-mlc/pkg/mlc/diag"
	"github.com/consensys/go-mlc/pkg/mlc/parser"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
	"github.com/consensys/go-mlc/pkg/util/source"
)

func emitWith(t *testing.T, cfg Config, filename string, text string) *Result {
	t.Helper()
	//
	srcfile := source.NewFile(filename, []byte(text))
	stmts, srcmap, errs := parser.ParseFile(srcfile)
	require.Empty(t, errs)
	//
	if cfg.Registry == nil {
		cfg.Registry = registry.DefaultRegistry()
	}
	//
	result, err := Emit(context.Background(), cfg, srcfile, stmts, srcmap)
	require.NoError(t, err)
	//
	return result
}

const sortingModule = `
function swap(arr, i, j) {
	tmp = arr[i];
	arr[i] = arr[j];
	arr[j] = tmp;
}

function quicksort(arr) {
	n = len(arr);
	i = 0;
	while (i < n) {
		j = i + 1;
		while (j < n) {
			if (arr[j] < arr[i]) { swap(arr, i, j); }
			j = j + 1;
		}
		i = i + 1;
	}
	return arr;
}
`

// ============================================================================
// Single-file mode
// ============================================================================

func TestEmit_SingleFileLifting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sorting.ml"), []byte(sortingModule), 0644))
	//
	cfg := Config{Mode: SingleFile, ImportPaths: []string{dir}}
	result := emitWith(t, cfg, "main.ml", `
		import sorting;
		r = sorting.quicksort([3, 1, 2]);
	`)
	//
	require.False(t, diag.HasErrors(result.Diagnostics))
	// Module functions are lifted to file scope, not nested.
	assert.Contains(t, result.Output, "def _ml_sorting_swap(arr, i, j):")
	assert.Contains(t, result.Output, "def _ml_sorting_quicksort(arr):")
	// Inter-module calls use the lifted names directly.
	assert.Contains(t, result.Output, "_ml_sorting_swap(arr, i, j)")
	// A namespace object exposes both names.
	assert.Contains(t, result.Output, `_ml_ns_sorting = MLModuleNamespace("sorting", {"swap": _ml_sorting_swap, "quicksort": _ml_sorting_quicksort})`)
	assert.Contains(t, result.Output, "sorting = _ml_ns_sorting")
	// The call site routes through the namespace.
	assert.Contains(t, result.Output, `safe_method_call(sorting, "quicksort", [3, 1, 2])`)
}

func TestEmit_SingleFileDiamondImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.ml"),
		[]byte("function one() { return 1; }"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "left.ml"),
		[]byte("import base;\nfunction l() { return base.one(); }"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "right.ml"),
		[]byte("import base;\nfunction r() { return base.one(); }"), 0644))
	//
	cfg := Config{Mode: SingleFile, ImportPaths: []string{dir}}
	result := emitWith(t, cfg, "main.ml", "import left; import right; x = 1;")
	//
	require.False(t, diag.HasErrors(result.Diagnostics))
	// base is inlined exactly once.
	assert.Equal(t, 1, strings.Count(result.Output, "def _ml_base_one():"))
	// The second reference rebinds the existing namespace.
	assert.Contains(t, result.Output, "base = _ml_ns_base")
}

func TestEmit_CircularImportRejected(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.ml"), []byte("import b;"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.ml"), []byte("import a;"), 0644))
	//
	srcfile := source.NewFile("main.ml", []byte("import a;"))
	stmts, srcmap, errs := parser.ParseFile(srcfile)
	require.Empty(t, errs)
	//
	cfg := Config{Mode: SingleFile, ImportPaths: []string{dir}, Registry: registry.DefaultRegistry()}
	//
	result, err := Emit(context.Background(), cfg, srcfile, stmts, srcmap)
	require.NoError(t, err)
	// The cycle surfaces as a fatal import diagnostic.
	require.True(t, diag.HasErrors(result.Diagnostics))
	//
	first, _ := diag.FirstError(result.Diagnostics)
	assert.Contains(t, first.Message, "circular import")
}

// ============================================================================
// Multi-file mode
// ============================================================================

func TestEmit_MultiFileLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "util"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util", "strings.ml"),
		[]byte("function shout(s) { return s; }"), 0644))
	//
	cfg := Config{Mode: MultiFile, ImportPaths: []string{dir}}
	result := emitWith(t, cfg, "main.ml", "import util.strings; x = 1;")
	//
	require.False(t, diag.HasErrors(result.Diagnostics))
	// The caller gets a regular host import.
	assert.Contains(t, result.Output, "import util.strings as strings")
	// One output file per module, plus package-init files along the path.
	assert.Contains(t, result.Files, filepath.Join("util", "strings.py"))
	assert.Contains(t, result.Files, filepath.Join("util", "__init__.py"))
	assert.Contains(t, result.Files, "main.py")
	// The runtime support library ships alongside.
	assert.Contains(t, result.Files, "mlc_runtime.py")
	// Emitted modules are marked trusted for the attribute helpers.
	assert.Contains(t, result.Files[filepath.Join("util", "strings.py")], "_is_user_module = True")
}

func TestEmit_MultiFileWritesOutput(t *testing.T) {
	srcDir, outDir := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "helper.ml"),
		[]byte("function id(x) { return x; }"), 0644))
	//
	cfg := Config{Mode: MultiFile, ImportPaths: []string{srcDir}, OutputDir: outDir}
	result := emitWith(t, cfg, filepath.Join(srcDir, "main.ml"), "import helper; x = 1;")
	require.False(t, diag.HasErrors(result.Diagnostics))
	//
	assert.FileExists(t, filepath.Join(outDir, "helper.py"))
	assert.FileExists(t, filepath.Join(outDir, "main.py"))
	assert.FileExists(t, filepath.Join(outDir, "mlc_runtime.py"))
	assert.FileExists(t, filepath.Join(outDir, CacheFilename))
}

func TestEmit_CacheReuse(t *testing.T) {
	srcDir, outDir := t.TempDir(), t.TempDir()
	srcPath := filepath.Join(srcDir, "helper.ml")
	require.NoError(t, os.WriteFile(srcPath, []byte("function id(x) { return x; }"), 0644))
	//
	cfg := Config{Mode: MultiFile, ImportPaths: []string{srcDir}, OutputDir: outDir}
	//
	emitWith(t, cfg, filepath.Join(srcDir, "main.ml"), "import helper; x = 1;")
	//
	outPath := filepath.Join(outDir, "helper.py")
	firstStat, err := os.Stat(outPath)
	require.NoError(t, err)
	// Second run with an untouched source reuses the cached output.
	time.Sleep(10 * time.Millisecond)
	emitWith(t, cfg, filepath.Join(srcDir, "main.ml"), "import helper; x = 1;")
	//
	secondStat, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, firstStat.ModTime(), secondStat.ModTime())
	// Touching the source forces re-emission.
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(srcPath, future, future))
	//
	emitWith(t, cfg, filepath.Join(srcDir, "main.ml"), "import helper; x = 1;")
	//
	thirdStat, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.NotEqual(t, firstStat.ModTime(), thirdStat.ModTime())
}

// ============================================================================
// Silent mode and scaffolding
// ============================================================================

func TestEmit_SilentInlinesRuntime(t *testing.T) {
	cfg := Config{Mode: Silent}
	result := emitWith(t, cfg, "main.ml", "x = len([1, 2]);")
	// The runtime library is inlined, so the output is self-contained.
	assert.Contains(t, result.Output, "class _BuiltinModule")
	assert.Contains(t, result.Output, "builtin.len([1, 2])")
}

func TestEmit_NoRuntimeWhenUnused(t *testing.T) {
	cfg := Config{Mode: Silent}
	result := emitWith(t, cfg, "main.ml", "x = 1; y = x + 2;")
	// Pure arithmetic needs no scaffolding.
	assert.NotContains(t, result.Output, "mlc_runtime")
	assert.NotContains(t, result.Output, "_BuiltinModule")
}

func TestEmit_SourceMap(t *testing.T) {
	cfg := Config{Mode: Silent, SourceMaps: true}
	result := emitWith(t, cfg, "main.ml", "x = 1;\ny = 2;")
	//
	require.NotEmpty(t, result.SourceMap)
	// Entries point back into the original file.
	assert.Equal(t, "main.ml", result.SourceMap[0].Pos.Filename)
	assert.Equal(t, 1, result.SourceMap[0].Pos.Line)
}

// ============================================================================
// Module resolution
// ============================================================================

func TestResolveImport(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.ml"), []byte("x = 1;"), 0644))
	//
	reg := registry.DefaultRegistry()
	// Stdlib wins.
	ref, err := ResolveImport(reg, []string{"math"}, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, StdlibModule, ref.Kind)
	// User module found on the import path.
	ref, err = ResolveImport(reg, []string{"user"}, []string{dir})
	require.NoError(t, err)
	assert.Equal(t, UserModule, ref.Kind)
	assert.Equal(t, filepath.Join(dir, "user.ml"), ref.SourcePath)
	// Everything else is rejected.
	_, err = ResolveImport(reg, []string{"nowhere"}, []string{dir})
	assert.Error(t, err)
}
