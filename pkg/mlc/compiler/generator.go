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
	"fmt"
	"strconv"
	"strings"

	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/mlc/diag"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// ImportBinder supplies the emission of user-module imports, which depends
// on the emit mode: multi-file mode emits a host import, whilst single-file
// mode binds a name constructed by function lifting.
type ImportBinder interface {
	// BindImport returns the line(s) binding an imported user module, or
	// the empty string when no code is required.
	BindImport(imp *ast.Import) (string, error)
}

// MapEntry associates one line of emitted output (counting from 1) with the
// position of the originating construct.
type MapEntry struct {
	Line int
	Pos  source.Position
}

// Generator walks the AST producing host source.  It consults the symbol
// table for the whitelist invariant: every identifier in executable
// position must resolve to a known category, otherwise generation fails
// fast with a structured unknown-identifier error.
type Generator struct {
	table  *SymbolTable
	srcmap *source.Map[ast.Node]
	reg    *registry.Registry
	binder ImportBinder
	// funcPrefix renames user functions during single-file lifting, such
	// that inter-module calls target the lifted names.
	funcPrefix map[string]string

	out    []string
	indent int
	diags  []diag.Diagnostic

	mappings    []MapEntry
	usedBuiltin bool
	usedRuntime bool
	lambdaCount int
	tempCount   int
}

// NewGenerator constructs a generator for one compilation unit.
func NewGenerator(table *SymbolTable, srcmap *source.Map[ast.Node], reg *registry.Registry,
	binder ImportBinder) *Generator {
	return &Generator{table: table, srcmap: srcmap, reg: reg, binder: binder}
}

// SetFunctionPrefix installs a renaming applied to user function
// definitions and direct calls (single-file lifting).
func (g *Generator) SetFunctionPrefix(prefix map[string]string) {
	g.funcPrefix = prefix
}

// UsedBuiltin reports whether any builtin member was referenced.
func (g *Generator) UsedBuiltin() bool {
	return g.usedBuiltin
}

// UsedRuntime reports whether any runtime helper was referenced.
func (g *Generator) UsedRuntime() bool {
	return g.usedRuntime || g.usedBuiltin
}

// Diagnostics returns the non-fatal diagnostics accumulated so far.
func (g *Generator) Diagnostics() []diag.Diagnostic {
	return g.diags
}

// Mappings returns the output source map entries accumulated so far.
func (g *Generator) Mappings() []MapEntry {
	return g.mappings
}

// generationError carries a fatal diagnostic out of the statement loop.
type generationError struct {
	diagnostic diag.Diagnostic
}

func (e *generationError) Error() string {
	return e.diagnostic.Message
}

// Diagnostic returns the fatal diagnostic.
func (e *generationError) Diagnostic() diag.Diagnostic {
	return e.diagnostic
}

// Generate emits the body of a compilation unit.  It returns the emitted
// text, or a fatal error on the first unknown identifier or whitelist
// violation.  Cancellation is checked in the top-level statement loop.
func (g *Generator) Generate(ctx context.Context, stmts []ast.Stmt) (string, error) {
	if err := g.genTopLevel(ctx, stmts); err != nil {
		return "", err
	}
	//
	return strings.Join(g.out, "\n") + "\n", nil
}

// genTopLevel is genStmts plus cooperative cancellation between statements.
func (g *Generator) genTopLevel(ctx context.Context, stmts []ast.Stmt) error {
	for i, s := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A capability declaration scopes the remainder of the unit.
		if cap, ok := s.(*ast.CapabilityDecl); ok {
			return g.genCapabilityRegion(ctx, cap, stmts[i+1:])
		}
		//
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	//
	return nil
}

// genCapabilityRegion emits a token factory plus a context-manager block
// holding the remaining statements of the current region.
func (g *Generator) genCapabilityRegion(ctx context.Context, decl *ast.CapabilityDecl, rest []ast.Stmt) error {
	g.usedRuntime = true
	g.mapNode(decl)
	//
	factory := fmt.Sprintf("_ml_cap_%s", decl.Name)
	g.writeLine(fmt.Sprintf("def %s():", factory))
	g.indent++
	g.writeLine(fmt.Sprintf("return create_capability(%s, %s, %s)",
		pyString(decl.Name), pyStringList(decl.Resources), pyStringList(decl.Operations)))
	g.indent--
	//
	g.writeLine(fmt.Sprintf("with use_capabilities(%s()):", factory))
	g.indent++
	//
	defer func() { g.indent-- }()
	//
	if len(rest) == 0 {
		g.writeLine("pass")
		return nil
	}
	//
	return g.genTopLevel(ctx, rest)
}

// ============================================================================
// Statements
// ============================================================================

// genStmts emits a statement list at the current indentation, substituting
// a no-op for an empty body so the output stays valid.
func (g *Generator) genStmts(stmts []ast.Stmt) error {
	if len(stmts) == 0 {
		g.writeLine("pass")
		return nil
	}
	//
	for i, s := range stmts {
		if cap, ok := s.(*ast.CapabilityDecl); ok {
			return g.genCapabilityRegion(context.Background(), cap, stmts[i+1:])
		}
		//
		if err := g.genStmt(s); err != nil {
			return err
		}
	}
	//
	return nil
}

//nolint:gocyclo
func (g *Generator) genStmt(stmt ast.Stmt) error {
	g.mapNode(stmt)
	//
	switch s := stmt.(type) {
	case *ast.Assign:
		return g.genAssign(s)
	case *ast.ExprStmt:
		text, err := g.genExpr(s.Expr)
		if err != nil {
			return err
		}

		g.writeLine(text)
	case *ast.If:
		return g.genIf(s)
	case *ast.While:
		cond, err := g.genExpr(s.Cond)
		if err != nil {
			return err
		}

		g.writeLine(fmt.Sprintf("while %s:", cond))

		return g.genIndented(s.Body)
	case *ast.ForIn:
		iter, err := g.genExpr(s.Iter)
		if err != nil {
			return err
		}

		g.table.DefineVariable(s.Name)
		g.writeLine(fmt.Sprintf("for %s in %s:", s.Name, iter))

		return g.genIndented(s.Body)
	case *ast.Break:
		g.writeLine("break")
	case *ast.Continue:
		g.writeLine("continue")
	case *ast.Return:
		if s.Value == nil {
			g.writeLine("return")
			return nil
		}
		//
		value, err := g.genExpr(s.Value)
		if err != nil {
			return err
		}

		g.writeLine("return " + value)
	case *ast.Throw:
		payload, err := g.genExpr(s.Payload)
		if err != nil {
			return err
		}

		g.usedRuntime = true
		g.writeLine(fmt.Sprintf("raise MLUserException(%s)", payload))
	case *ast.Try:
		return g.genTry(s)
	case *ast.Block:
		// ML blocks do not introduce a scope; emit the contents inline.
		for _, inner := range s.Stmts {
			if err := g.genStmt(inner); err != nil {
				return err
			}
		}
	case *ast.Nonlocal:
		g.writeLine("nonlocal " + strings.Join(s.Names, ", "))
	case *ast.Import:
		return g.genImport(s)
	case *ast.FunctionDef:
		return g.genFunctionDef(s)
	case *ast.CapabilityDecl:
		// Reached only when a declaration is the final statement of a
		// nested block; scope an empty region.
		return g.genCapabilityRegion(context.Background(), s, nil)
	default:
		return g.fatal(stmt, diag.CategoryTransform, "GEN001", "internal: unrecognized statement form")
	}
	//
	return nil
}

func (g *Generator) genIndented(stmts []ast.Stmt) error {
	g.indent++
	defer func() { g.indent-- }()
	//
	return g.genStmts(stmts)
}

func (g *Generator) genIf(s *ast.If) error {
	cond, err := g.genExpr(s.Cond)
	if err != nil {
		return err
	}
	//
	g.writeLine(fmt.Sprintf("if %s:", cond))
	//
	if err := g.genIndented(s.Then); err != nil {
		return err
	}
	//
	for _, arm := range s.Elifs {
		cond, err := g.genExpr(arm.Cond)
		if err != nil {
			return err
		}
		//
		g.writeLine(fmt.Sprintf("elif %s:", cond))
		//
		if err := g.genIndented(arm.Body); err != nil {
			return err
		}
	}
	//
	if s.Else != nil {
		g.writeLine("else:")
		//
		if err := g.genIndented(s.Else); err != nil {
			return err
		}
	}
	//
	return nil
}

// genTry lowers try/except/finally.  A finally clause present in the source
// always emits, with a no-op body when empty; a finally block is also emitted
// when the source had neither except nor finally (keeping the output well
// formed).  A try with handlers but no finally clause emits no finally block.
func (g *Generator) genTry(s *ast.Try) error {
	g.writeLine("try:")
	//
	if err := g.genIndented(s.Body); err != nil {
		return err
	}
	//
	for _, h := range s.Handlers {
		if h.Binding != "" {
			g.usedRuntime = true
			exc := g.nextTemp()
			g.writeLine(fmt.Sprintf("except Exception as %s:", exc))
			g.indent++
			g.table.DefineVariable(h.Binding)
			g.writeLine(fmt.Sprintf("%s = %s.payload if isinstance(%s, MLUserException) else %s",
				h.Binding, exc, exc, exc))
			//
			if len(h.Body) > 0 {
				if err := g.genStmts(h.Body); err != nil {
					g.indent--
					return err
				}
			}

			g.indent--
		} else {
			g.writeLine("except Exception:")
			//
			if err := g.genIndented(h.Body); err != nil {
				return err
			}
		}
	}
	//
	if s.HasFinally || len(s.Handlers) == 0 {
		g.writeLine("finally:")
		//
		if err := g.genIndented(s.Finally); err != nil {
			return err
		}
	}
	//
	return nil
}

func (g *Generator) genImport(s *ast.Import) error {
	name := s.Path[len(s.Path)-1]
	// Stdlib module?
	if len(s.Path) == 1 && g.reg != nil && g.reg.IsRegisteredModule(s.Path[0]) {
		meta, err := g.reg.LookupModule(s.Path[0])
		if err != nil {
			return g.fatal(s, diag.CategoryImport, "IMP002", err.Error())
		}
		//
		g.usedRuntime = true
		g.table.DefineImport(name)
		// Explicitly-allowed host modules (mixed stdlib mode) are wrapped
		// in a proxy so the attribute helpers treat them as modules.
		if meta.Host {
			g.writeLine(fmt.Sprintf("import %s as _ml_host_%s", name, name))
			g.writeLine(fmt.Sprintf("%s = ml_host_module(_ml_host_%s)", name, name))
		} else {
			g.writeLine(fmt.Sprintf("%s = ml_stdlib_module(%s)", name, pyString(name)))
		}
		//
		return nil
	}
	// User module; binding depends on the emit mode.
	if g.binder == nil {
		return g.fatal(s, diag.CategoryImport, "IMP001",
			fmt.Sprintf("cannot resolve import '%s'", strings.Join(s.Path, ".")))
	}
	//
	code, err := g.binder.BindImport(s)
	if err != nil {
		return g.fatal(s, diag.CategoryImport, "IMP001", err.Error())
	}
	//
	g.table.DefineImport(name)
	//
	if code != "" {
		for _, line := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
			g.writeLine(line)
		}
	}
	//
	return nil
}

func (g *Generator) genFunctionDef(s *ast.FunctionDef) error {
	g.table.DefineFunction(s.Name)
	//
	name := s.Name
	if prefixed, ok := g.funcPrefix[s.Name]; ok {
		name = prefixed
	}
	//
	g.writeLine(fmt.Sprintf("def %s(%s):", name, strings.Join(s.Params, ", ")))
	//
	g.table.PushFrame(s.Params)
	defer g.table.PopFrame()
	//
	return g.genIndented(s.Body)
}

// ============================================================================
// Assignment
// ============================================================================

func (g *Generator) genAssign(s *ast.Assign) error {
	value, err := g.genExpr(s.Value)
	if err != nil {
		return err
	}
	//
	switch target := s.Target.(type) {
	case *ast.Ident:
		g.table.DefineVariable(target.Name)
		g.writeLine(fmt.Sprintf("%s = %s", target.Name, value))
	case *ast.Member:
		object, err := g.genExpr(target.Object)
		if err != nil {
			return err
		}
		//
		if strings.HasPrefix(target.Field, "_") {
			return g.fatal(s, diag.CategoryAttribute, "ATT001",
				fmt.Sprintf("assignment to underscored attribute '%s'", target.Field))
		}
		//
		g.usedRuntime = true
		g.writeLine(fmt.Sprintf("safe_attr_assign(%s, %s, %s)", object, pyString(target.Field), value))
	case *ast.Index:
		object, err := g.genExpr(target.Object)
		if err != nil {
			return err
		}
		//
		index, err := g.genExpr(target.Index)
		if err != nil {
			return err
		}
		//
		g.writeLine(fmt.Sprintf("%s[%s] = %s", object, index, value))
	case ast.Pattern:
		return g.genAssignPattern(target, value)
	default:
		return g.fatal(s, diag.CategoryTransform, "GEN002", "internal: unrecognized assignment target")
	}
	//
	return nil
}

// genAssignPattern lowers a destructuring assignment.  Array patterns whose
// bindings are all names (or nested all-name arrays) use the host's native
// unpacking; anything else expands element-wise through a temporary.
func (g *Generator) genAssignPattern(pattern ast.Pattern, value string) error {
	if tuple, ok := g.nativeUnpack(pattern); ok {
		g.writeLine(fmt.Sprintf("%s = %s", tuple, value))
		return nil
	}
	//
	tmp := g.nextTemp()
	g.writeLine(fmt.Sprintf("%s = %s", tmp, value))
	//
	return g.expandPattern(pattern, tmp)
}

// nativeUnpack renders a pattern as a host unpacking target, when every
// binding is a plain name or a nested array of such.
func (g *Generator) nativeUnpack(pattern ast.Pattern) (string, bool) {
	switch p := pattern.(type) {
	case *ast.NamePattern:
		g.table.DefineVariable(p.Name)
		return p.Name, true
	case *ast.ArrayPattern:
		parts := make([]string, len(p.Elements))
		//
		for i, el := range p.Elements {
			part, ok := g.nativeUnpack(el)
			if !ok {
				return "", false
			}
			//
			parts[i] = part
		}
		//
		return "(" + strings.Join(parts, ", ") + ")", len(parts) > 0
	}
	//
	return "", false
}

// expandPattern binds every name of a pattern element-wise from a value
// expression.
func (g *Generator) expandPattern(pattern ast.Pattern, value string) error {
	switch p := pattern.(type) {
	case *ast.NamePattern:
		g.table.DefineVariable(p.Name)
		g.writeLine(fmt.Sprintf("%s = %s", p.Name, value))
	case *ast.ArrayPattern:
		for i, el := range p.Elements {
			if err := g.expandPattern(el, fmt.Sprintf("%s[%d]", value, i)); err != nil {
				return err
			}
		}
	case *ast.ObjectPattern:
		g.usedRuntime = true
		//
		for _, entry := range p.Entries {
			access := fmt.Sprintf("safe_attr_access(%s, %s)", value, pyString(entry.Key))
			//
			if _, ok := entry.Binding.(*ast.NamePattern); ok {
				if err := g.expandPattern(entry.Binding, access); err != nil {
					return err
				}
			} else {
				tmp := g.nextTemp()
				g.writeLine(fmt.Sprintf("%s = %s", tmp, access))
				//
				if err := g.expandPattern(entry.Binding, tmp); err != nil {
					return err
				}
			}
		}
	}
	//
	return nil
}

// ============================================================================
// Expressions
// ============================================================================

//nolint:gocyclo
func (g *Generator) genExpr(expr ast.Expr) (string, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return pyInt(e.Value), nil
	case *ast.FloatLit:
		return pyFloat(e.Value), nil
	case *ast.StringLit:
		return pyString(e.Value), nil
	case *ast.BoolLit:
		if e.Value {
			return "True", nil
		}
		//
		return "False", nil
	case *ast.NullLit:
		return "None", nil
	case *ast.ArrayLit:
		parts, err := g.genExprs(e.Elements)
		if err != nil {
			return "", err
		}
		//
		return "[" + strings.Join(parts, ", ") + "]", nil
	case *ast.ObjectLit:
		parts := make([]string, len(e.Fields))
		//
		for i, f := range e.Fields {
			value, err := g.genExpr(f.Value)
			if err != nil {
				return "", err
			}
			//
			parts[i] = fmt.Sprintf("%s: %s", pyString(f.Key), value)
		}
		//
		return "{" + strings.Join(parts, ", ") + "}", nil
	case *ast.Ident:
		return g.genIdent(e)
	case *ast.Binary:
		return g.genBinary(e)
	case *ast.Unary:
		operand, err := g.genExpr(e.Operand)
		if err != nil {
			return "", err
		}
		//
		if e.Op == "!" {
			return fmt.Sprintf("(not %s)", operand), nil
		}
		//
		return fmt.Sprintf("(-%s)", operand), nil
	case *ast.Ternary:
		cond, err := g.genExpr(e.Cond)
		if err != nil {
			return "", err
		}

		then, err := g.genExpr(e.Then)
		if err != nil {
			return "", err
		}

		els, err := g.genExpr(e.Else)
		if err != nil {
			return "", err
		}
		//
		return fmt.Sprintf("(%s if %s else %s)", then, cond, els), nil
	case *ast.Member:
		return g.genMember(e)
	case *ast.Index:
		object, err := g.genExpr(e.Object)
		if err != nil {
			return "", err
		}

		index, err := g.genExpr(e.Index)
		if err != nil {
			return "", err
		}
		//
		return fmt.Sprintf("%s[%s]", object, index), nil
	case *ast.Slice:
		return g.genSlice(e)
	case *ast.Call:
		return g.genCall(e)
	case *ast.MethodCall:
		return g.genMethodCall(e)
	case *ast.Lambda:
		return g.genLambda(e)
	}
	//
	return "", g.fatal(expr, diag.CategoryTransform, "GEN003", "internal: unrecognized expression form")
}

func (g *Generator) genExprs(exprs []ast.Expr) ([]string, error) {
	parts := make([]string, len(exprs))
	//
	for i, e := range exprs {
		part, err := g.genExpr(e)
		if err != nil {
			return nil, err
		}
		//
		parts[i] = part
	}
	//
	return parts, nil
}

// genIdent resolves a bare identifier against the whitelist categories.  A
// name which fits no category is a fatal unknown-identifier error carrying
// nearby known names to aid the developer.
func (g *Generator) genIdent(e *ast.Ident) (string, error) {
	if res, ok := g.table.Resolve(e.Name); ok {
		switch res {
		case ResBuiltin:
			// All builtin access goes through the controlled module object.
			g.usedBuiltin = true
			return "builtin." + e.Name, nil
		case ResFunction:
			if prefixed, ok := g.funcPrefix[e.Name]; ok {
				return prefixed, nil
			}
			//
			return e.Name, nil
		default:
			return e.Name, nil
		}
	}
	// Literal language tokens.
	if e.Name == "null" || e.Name == "undefined" {
		return "None", nil
	}
	//
	return "", g.unknownIdentifier(e)
}

func (g *Generator) genBinary(e *ast.Binary) (string, error) {
	lhs, err := g.genExpr(e.Lhs)
	if err != nil {
		return "", err
	}
	//
	rhs, err := g.genExpr(e.Rhs)
	if err != nil {
		return "", err
	}
	//
	op := e.Op
	switch op {
	case "&&":
		op = "and"
	case "||":
		op = "or"
	}
	//
	return fmt.Sprintf("(%s %s %s)", lhs, op, rhs), nil
}

func (g *Generator) genMember(e *ast.Member) (string, error) {
	if strings.HasPrefix(e.Field, "_") {
		return "", g.fatal(e, diag.CategoryAttribute, "ATT001",
			fmt.Sprintf("access to underscored attribute '%s'", e.Field))
	}
	//
	object, err := g.genExpr(e.Object)
	if err != nil {
		return "", err
	}
	//
	g.usedRuntime = true
	//
	return fmt.Sprintf("safe_attr_access(%s, %s)", object, pyString(e.Field)), nil
}

// genSlice lowers to the host's native slice form, leaving missing
// components empty.  Negative indices and steps pass through unchanged.
func (g *Generator) genSlice(e *ast.Slice) (string, error) {
	object, err := g.genExpr(e.Object)
	if err != nil {
		return "", err
	}
	//
	component := func(c ast.Expr) (string, error) {
		if c == nil {
			return "", nil
		}
		//
		return g.genExpr(c)
	}
	//
	start, err := component(e.Start)
	if err != nil {
		return "", err
	}

	end, err := component(e.End)
	if err != nil {
		return "", err
	}
	//
	if e.Step == nil {
		return fmt.Sprintf("%s[%s:%s]", object, start, end), nil
	}
	//
	step, err := g.genExpr(e.Step)
	if err != nil {
		return "", err
	}
	//
	return fmt.Sprintf("%s[%s:%s:%s]", object, start, end, step), nil
}

func (g *Generator) genCall(e *ast.Call) (string, error) {
	args, err := g.genExprs(e.Args)
	if err != nil {
		return "", err
	}
	//
	arglist := strings.Join(args, ", ")
	// Calls with an identifier target resolve against the whitelist.
	if ident, ok := e.Callee.(*ast.Ident); ok {
		res, ok := g.table.Resolve(ident.Name)
		if !ok {
			return "", g.unknownIdentifier(ident)
		}
		//
		switch res {
		case ResBuiltin:
			g.usedBuiltin = true
			g.checkBuiltinArity(e, ident.Name, uint(len(e.Args)))
			//
			return fmt.Sprintf("builtin.%s(%s)", ident.Name, arglist), nil
		case ResFunction:
			name := ident.Name
			if prefixed, ok := g.funcPrefix[name]; ok {
				name = prefixed
			}
			//
			return fmt.Sprintf("%s(%s)", name, arglist), nil
		case ResImport:
			return "", g.fatal(e, diag.CategoryIdentifier, "ID002",
				fmt.Sprintf("module '%s' is not callable", ident.Name))
		default:
			// User variables and parameters are called directly.
			return fmt.Sprintf("%s(%s)", ident.Name, arglist), nil
		}
	}
	// Anything else is a computed callee, routed through safe_call.
	callee, err := g.genExpr(e.Callee)
	if err != nil {
		return "", err
	}
	//
	g.usedRuntime = true
	//
	if arglist == "" {
		return fmt.Sprintf("safe_call(%s)", callee), nil
	}
	//
	return fmt.Sprintf("safe_call(%s, %s)", callee, arglist), nil
}

func (g *Generator) genMethodCall(e *ast.MethodCall) (string, error) {
	if strings.HasPrefix(e.Method, "_") {
		return "", g.fatal(e, diag.CategoryAttribute, "ATT001",
			fmt.Sprintf("call of underscored method '%s'", e.Method))
	}
	//
	object, err := g.genExpr(e.Object)
	if err != nil {
		return "", err
	}
	//
	args, err := g.genExprs(e.Args)
	if err != nil {
		return "", err
	}
	//
	g.usedRuntime = true
	//
	parts := append([]string{object, pyString(e.Method)}, args...)
	//
	return fmt.Sprintf("safe_method_call(%s)", strings.Join(parts, ", ")), nil
}

// genLambda lowers an expression-bodied lambda to the host's lambda form; a
// block-bodied lambda is hoisted to a named function definition just before
// the enclosing statement.
func (g *Generator) genLambda(e *ast.Lambda) (string, error) {
	g.table.PushFrame(e.Params)
	defer g.table.PopFrame()
	//
	if e.Expr != nil {
		body, err := g.genExpr(e.Expr)
		if err != nil {
			return "", err
		}
		//
		return fmt.Sprintf("(lambda %s: %s)", strings.Join(e.Params, ", "), body), nil
	}
	//
	name := fmt.Sprintf("_ml_lambda%d", g.lambdaCount)
	g.lambdaCount++
	//
	g.writeLine(fmt.Sprintf("def %s(%s):", name, strings.Join(e.Params, ", ")))
	//
	if err := g.genIndented(e.Block); err != nil {
		return "", err
	}
	//
	return name, nil
}

// checkBuiltinArity reports a diagnostic when a builtin call's argument
// count falls outside the registered bounds.
func (g *Generator) checkBuiltinArity(node ast.Node, name string, count uint) {
	module, err := g.reg.LookupModule(registry.BuiltinModule)
	if err != nil {
		return
	}
	//
	fn, ok := module.Function(name)
	if !ok {
		return
	}
	//
	if count < fn.MinArity || count > fn.MaxArity {
		g.diags = append(g.diags, diag.Diagnostic{
			Severity: diag.Error,
			Category: diag.CategoryIdentifier,
			Code:     "ID003",
			Message:  fmt.Sprintf("wrong number of arguments for builtin '%s'", name),
			Location: g.positionOf(node),
		})
	}
}

// ============================================================================
// Diagnostics and low-level emission
// ============================================================================

// unknownIdentifier constructs the fatal whitelist-invariant failure, with
// nearby known names bucketed by category.
func (g *Generator) unknownIdentifier(e *ast.Ident) error {
	hints := g.table.Suggestions(e.Name)
	//
	if len(hints) > 0 {
		hints = append([]string{fmt.Sprintf("did you mean %s?", hints[0])}, hints[1:]...)
	}
	//
	for category, names := range g.table.KnownNames() {
		if len(names) > 0 {
			hints = append(hints, fmt.Sprintf("known %s: %s", category, summarize(names, 8)))
		}
	}
	//
	return &generationError{diag.Diagnostic{
		Severity: diag.Error,
		Category: diag.CategoryIdentifier,
		Code:     "ID001",
		Message:  fmt.Sprintf("unknown identifier '%s'", e.Name),
		Location: g.positionOf(e),
		Hints:    hints,
	}}
}

func (g *Generator) fatal(node ast.Node, category diag.Category, code string, msg string) error {
	return &generationError{diag.Diagnostic{
		Severity: diag.Error,
		Category: category,
		Code:     code,
		Message:  msg,
		Location: g.positionOf(node),
	}}
}

func (g *Generator) positionOf(node ast.Node) source.Position {
	if g.srcmap != nil && g.srcmap.Has(node) {
		span := g.srcmap.Get(node)
		return g.srcmap.Source().PositionOf(span.Start())
	}
	//
	return source.Position{}
}

// mapNode records a source-map entry associating the next output line with
// a node's position.
func (g *Generator) mapNode(node ast.Node) {
	if g.srcmap != nil && g.srcmap.Has(node) {
		g.mappings = append(g.mappings, MapEntry{Line: len(g.out) + 1, Pos: g.positionOf(node)})
	}
}

func (g *Generator) writeLine(line string) {
	g.out = append(g.out, strings.Repeat("    ", g.indent)+line)
}

func (g *Generator) nextTemp() string {
	name := fmt.Sprintf("_ml_tmp%d", g.tempCount)
	g.tempCount++
	//
	return name
}

func summarize(names []string, limit int) string {
	if len(names) > limit {
		return strings.Join(names[:limit], ", ") + ", ..."
	}
	//
	return strings.Join(names, ", ")
}

// pyString renders a string as a host literal.
func pyString(s string) string {
	return strconv.Quote(s)
}

// pyStringList renders a string slice as a host list literal.
func pyStringList(items []string) string {
	parts := make([]string, len(items))
	for i, s := range items {
		parts[i] = pyString(s)
	}
	//
	return "[" + strings.Join(parts, ", ") + "]"
}

// pyInt renders an integer literal, parenthesizing negatives so the sign
// binds correctly in any context.
func pyInt(v int64) string {
	if v < 0 {
		return "(" + strconv.FormatInt(v, 10) + ")"
	}
	//
	return strconv.FormatInt(v, 10)
}

func pyFloat(v float64) string {
	text := strconv.FormatFloat(v, 'g', -1, 64)
	//
	if !strings.ContainsAny(text, ".eE") {
		text += ".0"
	}
	//
	if v < 0 {
		return "(" + text + ")"
	}
	//
	return text
}
