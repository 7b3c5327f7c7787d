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

// Package compiler lowers the ML AST into host source.  It houses the
// symbol table and whitelist resolver, the code generator, the module
// resolver and cache, and the drivers for the three emit modes.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/consensys/go-mlc/pkg/mlc/analyzer"
	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/mlc/diag"
	"github.com/consensys/go-mlc/pkg/mlc/parser"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
	"github.com/consensys/go-mlc/pkg/mlc/runtime"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// EmitMode selects how imported user modules are materialized.
type EmitMode uint8

const (
	// MultiFile resolves each imported module to its own output file,
	// cached by source mtime.
	MultiFile EmitMode = iota
	// SingleFile inlines every imported module into one portable output.
	SingleFile
	// Silent emits in memory only, without touching the filesystem.
	Silent
)

func (m EmitMode) String() string {
	switch m {
	case MultiFile:
		return "multi-file"
	case SingleFile:
		return "single-file"
	default:
		return "silent"
	}
}

// ParseEmitMode converts a mode name into an EmitMode.
func ParseEmitMode(name string) (EmitMode, error) {
	switch name {
	case "multi-file":
		return MultiFile, nil
	case "single-file":
		return SingleFile, nil
	case "silent":
		return Silent, nil
	}
	//
	return 0, fmt.Errorf("unknown emit mode %q", name)
}

// DefaultSentinel prefixes lifted module functions in single-file mode.
const DefaultSentinel = "_ml"

// Config packages everything the emit drivers need.
type Config struct {
	// Registry resolves builtins and stdlib modules.
	Registry *registry.Registry
	// ImportPaths are the directories searched for user modules.
	ImportPaths []string
	// AllowCurrentDir includes the source file's own directory as an
	// implicit import path.
	AllowCurrentDir bool
	// Mode selects the emit mode.
	Mode EmitMode
	// OutputDir receives emitted files in multi-file mode.  When empty,
	// outputs are returned in memory only.
	OutputDir string
	// SourceMaps enables positional mapping alongside the output.
	SourceMaps bool
	// Sentinel prefixes lifted names in single-file mode.
	Sentinel string
}

// Result is the outcome of a successful emission.
type Result struct {
	// Output is the emitted entry-unit source.
	Output string
	// Files maps relative paths to emitted contents (multi-file mode);
	// it includes the runtime support library and package-init files.
	Files map[string]string
	// SourceMap associates output lines with source positions, when
	// requested.
	SourceMap []MapEntry
	// Diagnostics accumulated during generation (including those of
	// compiled dependencies).
	Diagnostics []diag.Diagnostic
}

// Emit lowers one analyzed compilation unit, driving dependency
// compilation as dictated by the emit mode.  A fatal generation failure
// (e.g. an unknown identifier) is returned as a Result carrying the fatal
// diagnostic; a Go error signals an environmental failure (I/O,
// cancellation).
func Emit(ctx context.Context, cfg Config, srcfile *source.File, stmts []ast.Stmt,
	srcmap *source.Map[ast.Node]) (*Result, error) {
	if cfg.Sentinel == "" {
		cfg.Sentinel = DefaultSentinel
	}
	//
	s := &session{
		ctx:     ctx,
		cfg:     cfg,
		cache:   NewCache(),
		files:   make(map[string]string),
		inlined: make(map[string]string),
		visited: make(map[string]bool),
	}
	//
	if cfg.Mode == MultiFile && cfg.OutputDir != "" {
		if err := s.cache.Load(cfg.OutputDir); err != nil {
			return nil, err
		}
	}
	//
	result, err := s.emitEntry(srcfile, stmts, srcmap)
	if err != nil {
		var genErr *generationError
		if errors.As(err, &genErr) {
			// Fatal generation diagnostics surface through the result.
			return &Result{Diagnostics: append(s.diags, genErr.Diagnostic())}, nil
		}
		//
		return nil, err
	}
	//
	if cfg.Mode == MultiFile && cfg.OutputDir != "" && !diag.HasErrors(result.Diagnostics) {
		if err := s.flush(); err != nil {
			return nil, err
		}
	}
	//
	return result, nil
}

// Execute runs an emitted program on the host interpreter, feeding the
// program over stdin so nothing touches the filesystem.
func Execute(ctx context.Context, program string) (string, string, error) {
	interpreter, err := exec.LookPath("python3")
	if err != nil {
		return "", "", fmt.Errorf("host interpreter not found: %w", err)
	}
	//
	var stdout, stderr bytes.Buffer
	//
	cmd := exec.CommandContext(ctx, interpreter, "-")
	cmd.Stdin = strings.NewReader(program)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	//
	err = cmd.Run()
	//
	return stdout.String(), stderr.String(), err
}

// session carries shared state across the (possibly recursive) emission of
// one compilation request.
type session struct {
	ctx   context.Context
	cfg   Config
	cache *Cache
	diags []diag.Diagnostic
	// files collects emitted outputs by relative path.
	files map[string]string
	// inlined maps module source paths to namespace variables
	// (single-file mode).
	inlined map[string]string
	// visited detects import cycles.
	visited map[string]bool
	// runtimeNeeded is set when dependency emission requires the runtime
	// library regardless of the entry unit.
	runtimeNeeded bool
}

func (s *session) importDirs(srcfile *source.File) []string {
	dirs := s.cfg.ImportPaths
	//
	if s.cfg.AllowCurrentDir {
		dirs = append(dirs, filepath.Dir(srcfile.Filename()))
	}
	//
	return dirs
}

// emitEntry compiles the entry unit and assembles the final result.
func (s *session) emitEntry(srcfile *source.File, stmts []ast.Stmt,
	srcmap *source.Map[ast.Node]) (*Result, error) {
	var binder ImportBinder
	//
	switch s.cfg.Mode {
	case MultiFile:
		binder = &multiFileBinder{s, srcfile}
	default:
		binder = &singleFileBinder{s, srcfile}
	}
	//
	table := NewSymbolTable(s.cfg.Registry.BuiltinNames())
	gen := NewGenerator(table, srcmap, s.cfg.Registry, binder)
	//
	body, err := gen.Generate(s.ctx, stmts)
	if err != nil {
		return nil, err
	}
	//
	s.diags = append(s.diags, gen.Diagnostics()...)
	//
	if diag.HasErrors(s.diags) {
		return &Result{Diagnostics: s.diags}, nil
	}
	//
	output, offset := s.assemble(srcfile, body, gen.UsedRuntime() || s.runtimeNeeded)
	//
	result := &Result{Output: output, Files: s.files, Diagnostics: s.diags}
	//
	if s.cfg.SourceMaps {
		for _, m := range gen.Mappings() {
			result.SourceMap = append(result.SourceMap, MapEntry{Line: m.Line + offset, Pos: m.Pos})
		}
	}
	//
	if s.cfg.Mode == MultiFile {
		result.Files[entryFilename(srcfile)] = output
		result.Files[runtime.FILENAME] = runtime.Source()
	}
	//
	return result, nil
}

// assemble attaches the module-level scaffolding to an emitted body.  In
// multi-file mode the runtime is referenced by import; the portable modes
// inline its full text.
func (s *session) assemble(srcfile *source.File, body string, needsRuntime bool) (string, int) {
	var builder strings.Builder
	//
	header := fmt.Sprintf("# Generated by go-mlc from %s. DO NOT EDIT.\n", srcfile.Filename())
	builder.WriteString(header)
	//
	lines := 1
	//
	if needsRuntime {
		if s.cfg.Mode == MultiFile {
			builder.WriteString("from " + runtime.MODULE + " import *\n")
			lines++
		} else {
			text := runtime.Source()
			builder.WriteString(text)
			lines += strings.Count(text, "\n")
		}
	}
	//
	builder.WriteString(body)
	//
	return builder.String(), lines
}

// flush writes collected outputs beneath the configured output directory,
// mirroring the source structure, and persists the cache sibling.
func (s *session) flush() error {
	for rel, content := range s.files {
		path := filepath.Join(s.cfg.OutputDir, rel)
		//
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		//
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	//
	return s.cache.Save(s.cfg.OutputDir)
}

func entryFilename(srcfile *source.File) string {
	base := filepath.Base(srcfile.Filename())
	//
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	//
	if base == "" || base == "." {
		base = "main"
	}
	//
	return base + ".py"
}

// compileDependency parses and analyzes a user module, failing on any
// error-severity issue.
func (s *session) compileDependency(ref ModuleRef) ([]ast.Stmt, *source.Map[ast.Node], *source.File, error) {
	bytes, err := os.ReadFile(ref.SourcePath)
	if err != nil {
		return nil, nil, nil, err
	}
	//
	srcfile := source.NewFile(ref.SourcePath, bytes)
	//
	stmts, srcmap, errs := parser.ParseFile(srcfile)
	if len(errs) > 0 {
		return nil, nil, nil, fmt.Errorf("module '%s': %s", strings.Join(ref.Path, "."), errs[0].Error())
	}
	//
	cfg := analyzer.Config{
		Registry:        s.cfg.Registry,
		ImportPaths:     s.cfg.ImportPaths,
		SourceDir:       filepath.Dir(ref.SourcePath),
		AllowCurrentDir: s.cfg.AllowCurrentDir,
	}
	//
	diags, err := analyzer.Analyze(s.ctx, cfg, stmts, srcmap)
	if err != nil {
		return nil, nil, nil, err
	}
	//
	s.diags = append(s.diags, diags...)
	//
	if first, ok := diag.FirstError(diags); ok {
		return nil, nil, nil, fmt.Errorf("module '%s': %s", strings.Join(ref.Path, "."), first.Message)
	}
	//
	return stmts, srcmap, srcfile, nil
}

// ============================================================================
// Multi-file binder
// ============================================================================

// multiFileBinder resolves each imported module to its own output file and
// emits a regular host import in the caller.
type multiFileBinder struct {
	s       *session
	srcfile *source.File
}

func (b *multiFileBinder) BindImport(imp *ast.Import) (string, error) {
	ref, err := ResolveImport(b.s.cfg.Registry, imp.Path, b.s.importDirs(b.srcfile))
	if err != nil {
		return "", err
	}
	//
	if err := b.s.emitUserModule(ref); err != nil {
		return "", err
	}
	//
	dotted := strings.Join(ref.Path, ".")
	if len(ref.Path) == 1 {
		return fmt.Sprintf("import %s", dotted), nil
	}
	//
	return fmt.Sprintf("import %s as %s", dotted, ref.Name), nil
}

// emitUserModule compiles one user module to its own output file, writing
// package-init files along the directory path.  The cache guarantees at
// most one compile per source path per session.
func (s *session) emitUserModule(ref ModuleRef) error {
	key, err := filepath.Abs(ref.SourcePath)
	if err != nil {
		key = ref.SourcePath
	}
	//
	if s.cache.CompiledThisSession(key) {
		return nil
	}
	//
	if s.visited[key] {
		return fmt.Errorf("circular import of '%s'", strings.Join(ref.Path, "."))
	}
	//
	s.visited[key] = true
	defer delete(s.visited, key)
	//
	outRel := filepath.Join(ref.Path...) + ".py"
	s.registerInitFiles(ref.Path)
	// Reuse a fresh on-disk output where possible.
	if s.cfg.OutputDir != "" {
		outAbs := filepath.Join(s.cfg.OutputDir, outRel)
		if !s.cache.NeedsEmit(ref.SourcePath, outAbs) {
			log.Debugf("reusing cached output for %s", ref.SourcePath)
			s.cache.MarkCompiled(key, outRel)

			return nil
		}
	}
	//
	stmts, srcmap, srcfile, err := s.compileDependency(ref)
	if err != nil {
		return err
	}
	//
	table := NewSymbolTable(s.cfg.Registry.BuiltinNames())
	gen := NewGenerator(table, srcmap, s.cfg.Registry, &multiFileBinder{s, srcfile})
	//
	body, err := gen.Generate(s.ctx, stmts)
	if err != nil {
		return err
	}
	//
	s.diags = append(s.diags, gen.Diagnostics()...)
	//
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("# Generated by go-mlc from %s. DO NOT EDIT.\n", ref.SourcePath))
	builder.WriteString("from " + runtime.MODULE + " import *\n\n")
	// Mark the module namespace trusted for the attribute helpers.
	builder.WriteString("_is_user_module = True\n\n")
	builder.WriteString(body)
	//
	s.files[outRel] = builder.String()
	s.cache.MarkCompiled(key, outRel)
	//
	return nil
}

// registerInitFiles records the empty-but-present package-init files along
// a module path, so standard host-module resolution works.
func (s *session) registerInitFiles(path []string) {
	for i := 1; i < len(path); i++ {
		initRel := filepath.Join(append(path[:i:i], "__init__.py")...)
		//
		if _, ok := s.files[initRel]; !ok {
			s.files[initRel] = ""
		}
	}
}

// ============================================================================
// Single-file binder
// ============================================================================

// singleFileBinder inlines every imported module into the output by
// lifting its functions to file scope under a unique prefix and exposing
// them through a namespace object.  Lifting avoids nesting functions
// inside a class, where sibling methods cannot call each other bare.
type singleFileBinder struct {
	s       *session
	srcfile *source.File
}

func (b *singleFileBinder) BindImport(imp *ast.Import) (string, error) {
	ref, err := ResolveImport(b.s.cfg.Registry, imp.Path, b.s.importDirs(b.srcfile))
	if err != nil {
		return "", err
	}
	//
	return b.s.inlineUserModule(ref)
}

// inlineUserModule produces the lifted text of a user module plus its
// namespace binding.  A module imported more than once is inlined once;
// later imports just rebind the existing namespace.
func (s *session) inlineUserModule(ref ModuleRef) (string, error) {
	key, err := filepath.Abs(ref.SourcePath)
	if err != nil {
		key = ref.SourcePath
	}
	//
	if nsVar, ok := s.inlined[key]; ok {
		return fmt.Sprintf("%s = %s", ref.Name, nsVar), nil
	}
	//
	if s.visited[key] {
		return "", fmt.Errorf("circular import of '%s'", strings.Join(ref.Path, "."))
	}
	//
	s.visited[key] = true
	defer delete(s.visited, key)
	//
	stmts, srcmap, srcfile, err := s.compileDependency(ref)
	if err != nil {
		return "", err
	}
	// Lift every module function to file scope under a unique prefix,
	// rewriting inter-module calls to use the lifted names.
	prefix := s.cfg.Sentinel + "_" + strings.Join(ref.Path, "_") + "_"
	renames := make(map[string]string)
	exposed := []string{}
	//
	for _, stmt := range stmts {
		if fn, ok := stmt.(*ast.FunctionDef); ok {
			renames[fn.Name] = prefix + fn.Name
			exposed = append(exposed, fn.Name)
		}
	}
	//
	table := NewSymbolTable(s.cfg.Registry.BuiltinNames())
	gen := NewGenerator(table, srcmap, s.cfg.Registry, &singleFileBinder{s, srcfile})
	gen.SetFunctionPrefix(renames)
	//
	body, err := gen.Generate(s.ctx, stmts)
	if err != nil {
		return "", err
	}
	//
	s.diags = append(s.diags, gen.Diagnostics()...)
	s.runtimeNeeded = true
	// Construct the namespace object carrying the exposed names.
	nsVar := s.cfg.Sentinel + "_ns_" + strings.Join(ref.Path, "_")
	members := make([]string, len(exposed))
	//
	for i, name := range exposed {
		members[i] = fmt.Sprintf("%s: %s", pyString(name), renames[name])
	}
	//
	var builder strings.Builder
	builder.WriteString(body)
	builder.WriteString(fmt.Sprintf("%s = MLModuleNamespace(%s, {%s})\n",
		nsVar, pyString(strings.Join(ref.Path, ".")), strings.Join(members, ", ")))
	builder.WriteString(fmt.Sprintf("%s = %s", ref.Name, nsVar))
	//
	s.inlined[key] = nsVar
	//
	return builder.String(), nil
}
