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
package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-mlc/pkg/mlc/registry"
)

func TestSource_NonEmpty(t *testing.T) {
	text := Source()
	require.NotEmpty(t, text)
	// The helpers the generator emits calls to must all be present.
	for _, helper := range []string{
		"def safe_call", "def safe_attr_access", "def safe_attr_assign",
		"def safe_method_call", "def is_user_module_namespace",
		"def create_capability", "class use_capabilities",
		"class MLModuleNamespace", "class MLUserException",
		"def ml_stdlib_module", "def ml_host_module",
	} {
		assert.Contains(t, text, helper)
	}
}

// Every builtin the compile-time registry declares must be implemented by
// the runtime library, and vice versa.  A mismatch here means a program
// could compile against a name that fails at runtime (or that the runtime
// exposes a member the whitelist never vetted).
func TestBuiltins_RegistryAndRuntimeAgree(t *testing.T) {
	fromRuntime := BuiltinNames()
	require.NotEmpty(t, fromRuntime)
	//
	fromRegistry := registry.DefaultRegistry().BuiltinNames()
	//
	runtimeSet := make(map[string]bool, len(fromRuntime))
	for _, n := range fromRuntime {
		runtimeSet[n] = true
	}
	//
	for _, n := range fromRegistry {
		assert.True(t, runtimeSet[n], "registry builtin %q missing from runtime", n)
	}
	//
	registrySet := make(map[string]bool, len(fromRegistry))
	for _, n := range fromRegistry {
		registrySet[n] = true
	}
	//
	for _, n := range fromRuntime {
		assert.True(t, registrySet[n], "runtime builtin %q missing from registry", n)
	}
}

// The runtime's blacklist must cover everything the compile-time blacklist
// rejects, keeping the two enforcement layers aligned.
func TestDangerousNames_Aligned(t *testing.T) {
	text := Source()
	//
	start := strings.Index(text, "DANGEROUS_NAMES = {")
	require.GreaterOrEqual(t, start, 0)
	//
	end := strings.Index(text[start:], "}")
	block := text[start : start+end]
	//
	for name := range registry.DANGEROUS_NAMES {
		assert.Contains(t, block, `"`+name+`"`, "blacklisted name %q missing from runtime", name)
	}
}
