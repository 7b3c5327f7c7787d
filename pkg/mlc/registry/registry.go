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

// Package registry catalogs the host-language routines reachable from ML.
// It holds two structures: the stdlib registry, an explicit descriptor table
// of modules and their callables (with per-function capability metadata),
// and the safe-attribute registry, a per-type whitelist of attribute names.
// Both are populated during a builder phase and frozen before any
// compilation begins; thereafter they are read-only.
package registry

import (
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// FunctionMetadata describes a single callable exposed to ML.
type FunctionMetadata struct {
	// Public (ML-visible) name.
	Name string
	// Capability types this function requires at runtime.
	Capabilities []string
	// Minimum number of arguments accepted.
	MinArity uint
	// Maximum number of arguments accepted.
	MaxArity uint
	// Description for diagnostics and documentation.
	Description string
}

// ModuleMetadata describes a registered module.  Modules discovered on disk
// are materialized lazily: until the first import which references them,
// only the name and source path are known.
type ModuleMetadata struct {
	// Module name, as referenced by import statements.
	Name string
	// Version string, if declared.
	Version string
	// Exposed callables, keyed by public name.
	Functions map[string]FunctionMetadata
	// Path of the backing .ml file, for discovered modules.
	SourcePath string
	// Host marks an explicitly-allowed host module (mixed stdlib mode).
	Host bool
	// Materializer is invoked on first use for discovered modules.
	materializer func(*ModuleMetadata) error
	materialized bool
}

// Function returns the metadata of a named function, if present.
func (p *ModuleMetadata) Function(name string) (FunctionMetadata, bool) {
	fn, ok := p.Functions[name]
	return fn, ok
}

// Registry is the stdlib decorator registry: the catalog of modules (and
// their callables) reachable from ML.  Exactly one module, "builtin", is
// treated as implicitly imported into every compilation unit.
type Registry struct {
	mu      sync.RWMutex
	frozen  bool
	modules map[string]*ModuleMetadata
}

// NewRegistry constructs an empty registry.  Most callers want
// DefaultRegistry, which comes preloaded with the builtin module.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]*ModuleMetadata)}
}

// DefaultRegistry constructs a registry preloaded with the builtin module
// and the native stdlib modules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	//
	for _, m := range nativeModules() {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
	//
	return r
}

// Register adds a module to this registry.  Registration must occur during
// initialization; registering against a frozen registry is an error, as is
// registering the same module name twice.
func (r *Registry) Register(metadata *ModuleMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	//
	if r.frozen {
		return fmt.Errorf("registry is frozen; cannot register module %q", metadata.Name)
	} else if _, ok := r.modules[metadata.Name]; ok {
		return fmt.Errorf("module %q is already registered", metadata.Name)
	}
	//
	if metadata.Functions == nil {
		metadata.Functions = make(map[string]FunctionMetadata)
	}
	//
	r.modules[metadata.Name] = metadata
	log.Debugf("registered stdlib module %q (%d functions)", metadata.Name, len(metadata.Functions))
	//
	return nil
}

// Freeze marks the end of the builder phase.  After freezing, the registry
// is read-only from the compiler's perspective (lazy materialization of
// discovered modules remains permitted, as it only fills in entries already
// present).
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// IsAllowedBuiltin checks whether a given bare name is a member of the
// builtin module, and hence callable without an explicit import.
func (r *Registry) IsAllowedBuiltin(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	//
	if builtin, ok := r.modules[BuiltinModule]; ok {
		_, ok := builtin.Functions[name]
		return ok
	}
	//
	return false
}

// IsRegisteredModule checks whether a given module name is registered.
func (r *Registry) IsRegisteredModule(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	//
	_, ok := r.modules[name]

	return ok
}

// LookupModule returns the metadata of a registered module, materializing it
// first if it was discovered lazily.  This fails if the module is unknown,
// or if materialization fails.
func (r *Registry) LookupModule(name string) (*ModuleMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	//
	m, ok := r.modules[name]
	if !ok {
		return nil, fmt.Errorf("unknown module %q", name)
	}
	// Materialize on first actual use.
	if !m.materialized && m.materializer != nil {
		if err := m.materializer(m); err != nil {
			return nil, fmt.Errorf("materializing module %q: %w", name, err)
		}
		//
		m.materialized = true

		log.Debugf("materialized module %q (%d functions)", name, len(m.Functions))
	}
	//
	return m, nil
}

// RequiredCapabilities determines the capability types required to invoke a
// given function of a given module.  Unknown functions require nothing.
func (r *Registry) RequiredCapabilities(module string, function string) []string {
	m, err := r.LookupModule(module)
	if err != nil {
		return nil
	}
	//
	if fn, ok := m.Function(function); ok {
		return fn.Capabilities
	}
	//
	return nil
}

// BuiltinNames returns the sorted set of builtin member names.  This is the
// precomputed builtins set which seeds every symbol table.
func (r *Registry) BuiltinNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	//
	builtin, ok := r.modules[BuiltinModule]
	if !ok {
		return nil
	}
	//
	names := make([]string, 0, len(builtin.Functions))
	for n := range builtin.Functions {
		names = append(names, n)
	}

	sort.Strings(names)
	//
	return names
}

// Clone copies this registry into a fresh, unfrozen one.  This supports
// per-compilation easements (e.g. mixed stdlib mode) without mutating the
// shared frozen registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	//
	clone := NewRegistry()
	for name, m := range r.modules {
		copied := *m
		clone.modules[name] = &copied
	}
	//
	return clone
}

// ModuleNames returns the sorted names of all registered modules.
func (r *Registry) ModuleNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	//
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}

	sort.Strings(names)
	//
	return names
}
