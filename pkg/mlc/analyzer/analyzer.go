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

// Package analyzer implements the static security analyzer: a sequence of
// cooperating AST passes which reject dangerous patterns before any code is
// emitted.  The analyzer is advisory — it reports issues rather than
// aborting — but the code generator treats any error-severity issue as
// fatal.
package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/mlc/capability"
	"github.com/consensys/go-mlc/pkg/mlc/diag"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// Config supplies the analyzer with its read-only collaborators.
type Config struct {
	// Registry resolves stdlib module names during the import-safety pass.
	Registry *registry.Registry
	// ImportPaths are the directories searched for user modules.
	ImportPaths []string
	// SourceDir is the directory of the unit under analysis, used as an
	// implicit import path when AllowCurrentDir is set.
	SourceDir string
	// AllowCurrentDir includes SourceDir in the import search.
	AllowCurrentDir bool
}

// pass is a single analyzer pass over a compilation unit.
type pass func(*analysis)

// passes runs in a fixed order, since later passes may consult annotations
// from earlier ones.
var passes = []pass{
	(*analysis).patternPass,
	(*analysis).dangerousCallPass,
	(*analysis).capabilityDeclPass,
	(*analysis).importSafetyPass,
}

// Analyze runs every pass over a compilation unit, accumulating diagnostics.
// All passes run even after errors are found, so that a single invocation
// collects as many issues as possible.  Cancellation is checked at pass
// boundaries.
func Analyze(ctx context.Context, cfg Config, stmts []ast.Stmt,
	srcmap *source.Map[ast.Node]) ([]diag.Diagnostic, error) {
	a := &analysis{cfg: cfg, stmts: stmts, srcmap: srcmap}
	//
	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return a.diags, err
		}
		//
		p(a)
	}
	//
	return a.diags, nil
}

// analysis carries shared state across passes for one compilation unit.
type analysis struct {
	cfg    Config
	stmts  []ast.Stmt
	srcmap *source.Map[ast.Node]
	diags  []diag.Diagnostic
}

func (a *analysis) report(node ast.Node, severity diag.Severity, category diag.Category,
	code string, msg string, hints ...string) {
	d := diag.Diagnostic{
		Severity: severity,
		Category: category,
		Code:     code,
		Message:  msg,
		Hints:    hints,
	}
	//
	if node != nil && a.srcmap.Has(node) {
		span := a.srcmap.Get(node)
		d.Location = a.srcmap.Source().PositionOf(span.Start())
	}
	//
	a.diags = append(a.diags, d)
}

// ============================================================================
// Pass 1: pattern detection
// ============================================================================

// patternPass matches AST subtrees against rules for known unsafe idioms:
// underscored names in identifier or member position, and string
// concatenations which provably build an underscored name from literals.
// Runtime concatenations are out of reach here; the runtime helpers'
// underscore refusal is the complementary defense.
func (a *analysis) patternPass() {
	ast.WalkAll(a.stmts, func(node ast.Node) bool {
		switch n := node.(type) {
		case *ast.Ident:
			if strings.HasPrefix(n.Name, "_") {
				a.report(n, diag.Error, diag.CategorySecurity, "SEC001",
					fmt.Sprintf("reference to underscored name '%s'", n.Name),
					"names beginning with underscore are never reachable from ML")
			}
		case *ast.Member:
			if strings.HasPrefix(n.Field, "_") {
				a.report(n, diag.Error, diag.CategorySecurity, "SEC001",
					fmt.Sprintf("access to underscored attribute '%s'", n.Field))
			} else if registry.DANGEROUS_NAMES[n.Field] {
				a.report(n, diag.Error, diag.CategorySecurity, "SEC002",
					fmt.Sprintf("access to dangerous attribute '%s'", n.Field))
			}
		case *ast.MethodCall:
			if strings.HasPrefix(n.Method, "_") {
				a.report(n, diag.Error, diag.CategorySecurity, "SEC001",
					fmt.Sprintf("call of underscored method '%s'", n.Method))
			}
		case *ast.Binary:
			if lit, ok := literalConcat(n); ok && strings.HasPrefix(lit, "_") {
				a.report(n, diag.Warning, diag.CategorySecurity, "SEC003",
					fmt.Sprintf("string concatenation builds underscored name %q", lit),
					"the runtime helpers will refuse this name regardless")
			}
		}
		//
		return true
	})
}

// literalConcat evaluates a (possibly nested) concatenation of string
// literals, if that is what the expression is.
func literalConcat(e ast.Expr) (string, bool) {
	switch n := e.(type) {
	case *ast.StringLit:
		return n.Value, true
	case *ast.Binary:
		if n.Op != "+" {
			return "", false
		}
		//
		lhs, lok := literalConcat(n.Lhs)
		rhs, rok := literalConcat(n.Rhs)
		//
		return lhs + rhs, lok && rok
	}
	//
	return "", false
}

// ============================================================================
// Pass 2: dangerous calls
// ============================================================================

// dangerousCallPass rejects any call whose callee identifier is on the
// absolute blacklist, such as host evaluators and compilers.  Note that
// getattr/hasattr/setattr are deliberately absent from the blacklist: they
// are provided as ML builtins whose implementations enforce the underscore
// rule at runtime.
func (a *analysis) dangerousCallPass() {
	ast.WalkAll(a.stmts, func(node ast.Node) bool {
		if call, ok := node.(*ast.Call); ok {
			if ident, ok := call.Callee.(*ast.Ident); ok && registry.DANGEROUS_NAMES[ident.Name] {
				a.report(call, diag.Error, diag.CategorySecurity, "SEC004",
					fmt.Sprintf("call to dangerous function '%s'", ident.Name),
					"this host facility is never reachable from ML")
			}
		}
		//
		return true
	})
}

// ============================================================================
// Pass 3: capability declarations
// ============================================================================

// capabilityDeclPass validates capability blocks: non-empty resource
// patterns, a non-empty operation set, and well-formed globs.
func (a *analysis) capabilityDeclPass() {
	ast.WalkAll(a.stmts, func(node ast.Node) bool {
		decl, ok := node.(*ast.CapabilityDecl)
		if !ok {
			return true
		}
		//
		if len(decl.Resources) == 0 {
			a.report(decl, diag.Error, diag.CategoryCapability, "CAP001",
				fmt.Sprintf("capability '%s' declares no resource patterns", decl.Name))
		}
		//
		if len(decl.Operations) == 0 {
			a.report(decl, diag.Error, diag.CategoryCapability, "CAP002",
				fmt.Sprintf("capability '%s' declares no operations", decl.Name))
		}
		//
		for _, r := range decl.Resources {
			if err := capability.CheckPattern(r); err != nil {
				a.report(decl, diag.Error, diag.CategoryCapability, "CAP003", err.Error())
			}
		}
		//
		return true
	})
}

// ============================================================================
// Pass 4: import safety
// ============================================================================

// importSafetyPass rejects imports which resolve neither to a registered
// stdlib module nor to a user .ml file reachable via the configured import
// paths.
func (a *analysis) importSafetyPass() {
	ast.WalkAll(a.stmts, func(node ast.Node) bool {
		imp, ok := node.(*ast.Import)
		if !ok {
			return true
		}
		//
		if a.cfg.Registry != nil && a.cfg.Registry.IsRegisteredModule(imp.Path[0]) {
			return true
		}
		//
		if _, ok := FindUserModule(imp.Path, a.importDirs()); !ok {
			a.report(imp, diag.Error, diag.CategoryImport, "IMP001",
				fmt.Sprintf("cannot resolve import '%s'", strings.Join(imp.Path, ".")),
				"expected a registered stdlib module or a .ml file on the import path")
		}
		//
		return true
	})
}

func (a *analysis) importDirs() []string {
	dirs := a.cfg.ImportPaths
	//
	if a.cfg.AllowCurrentDir && a.cfg.SourceDir != "" {
		dirs = append(dirs, a.cfg.SourceDir)
	}
	//
	return dirs
}

// FindUserModule searches the given directories for a file at the relative
// location implied by a dotted import path (e.g. "a.b.c" maps to
// "a/b/c.ml"), returning the first hit.
func FindUserModule(path []string, dirs []string) (string, bool) {
	rel := filepath.Join(path...) + ".ml"
	//
	for _, dir := range dirs {
		candidate := filepath.Join(dir, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}
	}
	//
	return "", false
}
