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
package mlc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-mlc/pkg/mlc/diag"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
)

func silent() Options {
	options := DefaultOptions()
	options.EmitMode = "silent"
	//
	return options
}

func transpile(t *testing.T, text string, options Options) *Result {
	t.Helper()
	//
	result, err := Transpile(context.Background(), "test.ml", text, options)
	require.NoError(t, err)
	//
	return result
}

func requirePython(t *testing.T) {
	t.Helper()
	//
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("host interpreter not available")
	}
}

func run(t *testing.T, text string) string {
	t.Helper()
	requirePython(t)
	//
	stdout, result, err := Run(context.Background(), "test.ml", text, DefaultOptions())
	require.NoError(t, err)
	require.True(t, result.Ok(), "diagnostics: %v", result.Diagnostics)
	//
	return stdout
}

// ============================================================================
// Compilation
// ============================================================================

func TestTranspile_BuiltinRouting(t *testing.T) {
	result := transpile(t, "x = len([1, 2, 3]); print(x);", silent())
	require.True(t, result.Ok())
	//
	assert.Contains(t, result.OutputSource, "builtin.len([1, 2, 3])")
	assert.Contains(t, result.OutputSource, "builtin.print(x)")
}

func TestTranspile_SyntaxError(t *testing.T) {
	result := transpile(t, "x = ;", silent())
	require.False(t, result.Ok())
	//
	first, ok := diag.FirstError(result.Diagnostics)
	require.True(t, ok)
	assert.Equal(t, diag.CategorySyntax, first.Category)
	assert.Equal(t, 1, first.Location.Line)
}

func TestTranspile_UnknownIdentifier(t *testing.T) {
	result := transpile(t, "y = type(42);", silent())
	require.False(t, result.Ok())
	//
	first, _ := diag.FirstError(result.Diagnostics)
	assert.Equal(t, diag.CategoryIdentifier, first.Category)
	assert.Contains(t, first.Message, "unknown identifier 'type'")
}

func TestTranspile_SecurityViolation(t *testing.T) {
	result := transpile(t, `eval("1");`, silent())
	require.False(t, result.Ok())
	//
	first, _ := diag.FirstError(result.Diagnostics)
	assert.Equal(t, diag.CategorySecurity, first.Category)
	// Analysis aborts compilation before emission.
	assert.Empty(t, result.OutputSource)
}

func TestTranspile_StrictPromotesWarnings(t *testing.T) {
	text := `n = "__" + "class__";`
	// The literal dunder concatenation is a warning by default...
	result := transpile(t, text, silent())
	assert.True(t, result.Ok())
	// ...and an error under strict.
	options := silent()
	options.Strict = true
	//
	result = transpile(t, text, options)
	assert.False(t, result.Ok())
}

func TestTranspile_Idempotent(t *testing.T) {
	text := `x = len([1, 2]); function f(a) { return a * 2; } print(f(x));`
	//
	first := transpile(t, text, silent())
	second := transpile(t, text, silent())
	//
	require.True(t, first.Ok())
	assert.Empty(t, cmp.Diff(first.OutputSource, second.OutputSource))
}

func TestTranspile_MultiFileInMemory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.ml"),
		[]byte("function id(x) { return x; }"), 0644))
	//
	options := DefaultOptions()
	options.ImportPaths = []string{dir}
	//
	result := transpile(t, "import helper; x = 1;", options)
	require.True(t, result.Ok())
	//
	assert.Contains(t, result.Files, "helper.py")
	assert.Contains(t, result.Files, "mlc_runtime.py")
}

func TestTranspile_MixedModeHostModule(t *testing.T) {
	options := silent()
	options.StdlibMode = StdlibMixed
	options.AllowHostModules = []string{"json"}
	//
	result := transpile(t, "import json; x = 1;", options)
	require.True(t, result.Ok())
	assert.Contains(t, result.OutputSource, "json = ml_host_module(_ml_host_json)")
	// The strict default refuses the same import.
	result = transpile(t, "import json; x = 1;", silent())
	assert.False(t, result.Ok())
}

func TestRegisterAfterFirstTranspileFails(t *testing.T) {
	// Force the builder phase closed.
	transpile(t, "x = 1;", silent())
	//
	err := RegisterStdlibModule(&registry.ModuleMetadata{Name: "late"})
	assert.Error(t, err)
	//
	err = RegisterSafeAttributes("Late", registry.AttributeEntry{Name: "x"})
	assert.Error(t, err)
}

func TestAnalyzeStandalone(t *testing.T) {
	diags, err := Analyze(context.Background(), "test.ml", `exec(payload);`, DefaultOptions())
	require.NoError(t, err)
	assert.True(t, diag.HasErrors(diags))
}

func TestParseStandalone(t *testing.T) {
	stmts, diags := Parse("test.ml", "x = 1; y = 2;")
	assert.Empty(t, diags)
	assert.Len(t, stmts, 2)
}

// ============================================================================
// End-to-end execution
// ============================================================================

func TestRun_BuiltinRouting(t *testing.T) {
	out := run(t, "x = len([1, 2, 3]); print(x);")
	assert.Equal(t, "3\n", out)
}

func TestRun_SliceReversal(t *testing.T) {
	out := run(t, "arr = [1, 2, 3, 4, 5]; print(arr[::-1]);")
	assert.Equal(t, "[5, 4, 3, 2, 1]\n", out)
}

func TestRun_SliceBoundaries(t *testing.T) {
	out := run(t, `
		arr = [1, 2, 3, 4, 5];
		print(arr[1:100]);
		print(arr[3:1]);
		print(arr[-1:]);
	`)
	assert.Equal(t, "[2, 3, 4, 5]\n[]\n[5]\n", out)
}

// The analyzer cannot prove a runtime concatenation dangerous; the runtime
// helpers refuse the constructed name instead, falling back to the default.
func TestRun_UnderscoreRefusalAtRuntime(t *testing.T) {
	out := run(t, `
		obj = {value: 42};
		n = "__" + "class__";
		r = getattr(obj, n, "denied");
		print(r);
	`)
	assert.Equal(t, "denied\n", out)
}

func TestRun_GetattrAllowsPlainKeys(t *testing.T) {
	out := run(t, `
		obj = {value: 42};
		print(getattr(obj, "value"));
	`)
	assert.Equal(t, "42\n", out)
}

func TestRun_CapabilityScaffolding(t *testing.T) {
	out := run(t, `
		capability FileReader {
			resource "*.txt";
			allow read;
		}
		function main() { return has_capability("FileReader"); }
		print(main());
		print(get_capabilities());
	`)
	assert.Equal(t, "True\n['FileReader']\n", out)
}

func TestRun_SingleFileModuleCalls(t *testing.T) {
	requirePython(t)
	//
	dir := t.TempDir()
	module := `
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
		}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sorting.ml"), []byte(module), 0644))
	//
	options := DefaultOptions()
	options.ImportPaths = []string{dir}
	//
	stdout, result, err := Run(context.Background(), "main.ml",
		"import sorting; print(sorting.quicksort([3, 1, 2]));", options)
	require.NoError(t, err)
	require.True(t, result.Ok(), "diagnostics: %v", result.Diagnostics)
	//
	assert.Equal(t, "[1, 2, 3]\n", stdout)
}

func TestRun_ThrowExceptFinally(t *testing.T) {
	out := run(t, `
		try {
			throw {code: 5};
		} except (e) {
			print(e.code);
		} finally {
			print("done");
		}
	`)
	assert.Equal(t, "5\ndone\n", out)
}

func TestRun_NonlocalClosure(t *testing.T) {
	out := run(t, `
		function counter() {
			n = 0;
			function bump() {
				nonlocal n;
				n = n + 1;
				return n;
			}
			return bump;
		}
		c = counter();
		print(c());
		print(c());
	`)
	assert.Equal(t, "1\n2\n", out)
}

func TestRun_MethodCallOnHostString(t *testing.T) {
	out := run(t, `
		s = "hello";
		print(s.upper());
	`)
	assert.Equal(t, "HELLO\n", out)
}

func TestRun_StdlibMathModule(t *testing.T) {
	out := run(t, `
		import math;
		print(math.floor(3.7));
	`)
	assert.Equal(t, "3\n", out)
}

func TestRun_FileModuleRequiresCapability(t *testing.T) {
	out := run(t, `
		import file;
		try {
			file.read("missing.txt");
			print("read");
		} except {
			print("refused");
		}
	`)
	assert.Equal(t, "refused\n", out)
}

func TestRun_LambdaAndHigherOrder(t *testing.T) {
	out := run(t, `
		function apply(f, x) { return f(x); }
		double = fn (v) => v * 2;
		print(apply(double, 21));
	`)
	assert.Equal(t, "42\n", out)
}

func TestRun_Destructuring(t *testing.T) {
	out := run(t, `
		[a, b] = [1, 2];
		{name} = {name: "ml"};
		print(a + b);
		print(name);
	`)
	assert.Equal(t, "3\nml\n", out)
}
