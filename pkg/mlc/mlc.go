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

// Package mlc is the public embedding surface of the go-mlc engine: the ML
// front end, the static security analyzer, and the whitelist-enforcing code
// generator, stitched into a single transpilation entry point.
package mlc

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/consensys/go-mlc/pkg/mlc/analyzer"
	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/mlc/compiler"
	"github.com/consensys/go-mlc/pkg/mlc/diag"
	"github.com/consensys/go-mlc/pkg/mlc/parser"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// Diagnostic re-exports the diagnostic model for embedding callers.
type Diagnostic = diag.Diagnostic

// Result is the outcome of a transpilation.
type Result struct {
	// OutputSource is the emitted host source of the entry unit.
	OutputSource string
	// Files maps relative paths to emitted contents in multi-file mode.
	Files map[string]string
	// SourceMap associates output lines with source positions, when
	// requested.
	SourceMap []compiler.MapEntry
	// Diagnostics accumulated across all passes.
	Diagnostics []Diagnostic
}

// Ok checks whether the transpilation produced usable output.
func (r *Result) Ok() bool {
	return !diag.HasErrors(r.Diagnostics)
}

var (
	initOnce  sync.Once
	stdlib    *registry.Registry
	safeAttrs *registry.SafeAttributes
	frozen    bool
	initMu    sync.Mutex
)

func registries() (*registry.Registry, *registry.SafeAttributes) {
	initOnce.Do(func() {
		stdlib = registry.DefaultRegistry()
		safeAttrs = registry.DefaultSafeAttributes()
	})
	//
	return stdlib, safeAttrs
}

// RegisterStdlibModule adds a module to the engine's stdlib registry.  This
// must be called during initialization, before the first transpilation.
func RegisterStdlibModule(metadata *registry.ModuleMetadata) error {
	reg, _ := registries()
	return reg.Register(metadata)
}

// RegisterSafeAttributes whitelists attribute names on a host type.  This
// must be called during initialization, before the first transpilation.
func RegisterSafeAttributes(typeName string, entries ...registry.AttributeEntry) error {
	_, attrs := registries()
	return attrs.Register(typeName, entries...)
}

// DiscoverStdlibModules scans directories for declared modules (lazy
// discovery by module marker).  Initialization-only, like registration.
func DiscoverStdlibModules(dirs ...string) error {
	reg, _ := registries()
	return reg.Discover(dirs...)
}

// freezeRegistries ends the builder phase on first use.
func freezeRegistries() {
	initMu.Lock()
	defer initMu.Unlock()
	//
	if !frozen {
		reg, attrs := registries()
		reg.Freeze()
		attrs.Freeze()
		//
		frozen = true
	}
}

// Parse parses ML source into its AST, exposed for tooling.
func Parse(filename string, text string) ([]ast.Stmt, []Diagnostic) {
	stmts, _, errs := parser.ParseFile(source.NewFile(filename, []byte(text)))
	//
	var diags []Diagnostic
	for _, e := range errs {
		diags = append(diags, diag.FromSyntaxError(diag.CategorySyntax, "SYN001", e))
	}
	//
	return stmts, diags
}

// Analyze runs the static security analyzer as a standalone pass.
func Analyze(ctx context.Context, filename string, text string, options Options) ([]Diagnostic, error) {
	reg, _ := registries()
	freezeRegistries()
	//
	srcfile := source.NewFile(filename, []byte(text))
	//
	stmts, srcmap, errs := parser.ParseFile(srcfile)
	if len(errs) > 0 {
		return []Diagnostic{diag.FromSyntaxError(diag.CategorySyntax, "SYN001", errs[0])}, nil
	}
	//
	cfg := analyzer.Config{
		Registry:        effectiveRegistry(reg, options),
		ImportPaths:     options.ImportPaths,
		SourceDir:       filepath.Dir(filename),
		AllowCurrentDir: options.AllowCurrentDir,
	}
	//
	return analyzer.Analyze(ctx, cfg, stmts, srcmap)
}

// Transpile is the top-level entry point: source text in, host source (and
// diagnostics) out.  The pipeline is parse, analyze, then generate; any
// error-severity diagnostic aborts before emission.
func Transpile(ctx context.Context, filename string, text string, options Options) (*Result, error) {
	reg, _ := registries()
	freezeRegistries()
	//
	reg = effectiveRegistry(reg, options)
	srcfile := source.NewFile(filename, []byte(text))
	// Parse.
	stmts, srcmap, errs := parser.ParseFile(srcfile)
	if len(errs) > 0 {
		result := &Result{}
		for _, e := range errs {
			result.Diagnostics = append(result.Diagnostics, diag.FromSyntaxError(diag.CategorySyntax, "SYN001", e))
		}
		//
		return result, nil
	}
	// Analyze.
	acfg := analyzer.Config{
		Registry:        reg,
		ImportPaths:     options.ImportPaths,
		SourceDir:       filepath.Dir(filename),
		AllowCurrentDir: options.AllowCurrentDir,
	}
	//
	diags, err := analyzer.Analyze(ctx, acfg, stmts, srcmap)
	if err != nil {
		return nil, err
	}
	//
	if options.Strict {
		diags = diag.Promote(diags)
	}
	//
	if diag.HasErrors(diags) {
		return &Result{Diagnostics: diags}, nil
	}
	// Generate.
	mode, err := compiler.ParseEmitMode(options.EmitMode)
	if err != nil {
		return nil, err
	}
	//
	ccfg := compiler.Config{
		Registry:        reg,
		ImportPaths:     options.ImportPaths,
		AllowCurrentDir: options.AllowCurrentDir,
		Mode:            mode,
		OutputDir:       options.OutputDir,
		SourceMaps:      options.SourceMaps,
	}
	//
	emitted, err := compiler.Emit(ctx, ccfg, srcfile, stmts, srcmap)
	if err != nil {
		return nil, err
	}
	//
	return &Result{
		OutputSource: emitted.Output,
		Files:        emitted.Files,
		SourceMap:    emitted.SourceMap,
		Diagnostics:  append(diags, emitted.Diagnostics...),
	}, nil
}

// TranspileFile reads and transpiles a source file from disk.
func TranspileFile(ctx context.Context, path string, options Options) (*Result, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	//
	return Transpile(ctx, path, string(bytes), options)
}

// Run transpiles in silent mode and executes the emitted program on the
// host interpreter, returning its standard output.
func Run(ctx context.Context, filename string, text string, options Options) (string, *Result, error) {
	options.EmitMode = "silent"
	//
	result, err := Transpile(ctx, filename, text, options)
	if err != nil || !result.Ok() {
		return "", result, err
	}
	//
	stdout, stderr, err := compiler.Execute(ctx, result.OutputSource)
	if err != nil && stderr != "" {
		return stdout, result, &ExecutionError{Stderr: stderr, Err: err}
	}
	//
	return stdout, result, err
}

// ExecutionError reports a failure of the emitted program.
type ExecutionError struct {
	Stderr string
	Err    error
}

func (e *ExecutionError) Error() string {
	return e.Stderr
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// effectiveRegistry applies the stdlib-mode easement: mixed mode clones the
// base registry and exposes the explicitly-allowed host modules.  The
// strict default leaves the registry untouched.
func effectiveRegistry(base *registry.Registry, options Options) *registry.Registry {
	if options.StdlibMode != StdlibMixed || len(options.AllowHostModules) == 0 {
		return base
	}
	//
	clone := base.Clone()
	//
	for _, name := range options.AllowHostModules {
		_ = clone.Register(&registry.ModuleMetadata{Name: name, Host: true})
	}
	//
	clone.Freeze()
	//
	return clone
}
