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
package parser

import (
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// transformer lowers the participle parse tree into the typed AST, dropping
// syntactic noise and attaching source spans along the way.
type transformer struct {
	srcfile *source.File
	srcmap  *source.Map[ast.Node]
	errors  []source.SyntaxError
}

func (t *transformer) span(pos lexer.Position, end lexer.Position) source.Span {
	if end.Offset < pos.Offset {
		return source.NewSpan(pos.Offset, pos.Offset)
	}
	//
	return source.NewSpan(pos.Offset, end.Offset)
}

func (t *transformer) meta(pos lexer.Position, end lexer.Position) ast.Meta {
	return ast.NewMeta(t.span(pos, end))
}

// record registers a freshly constructed node with the source map.
func (t *transformer) record(node ast.Node) ast.Node {
	if !t.srcmap.Has(node) {
		t.srcmap.Put(node, node.Span())
	}
	//
	return node
}

func (t *transformer) syntaxError(pos lexer.Position, end lexer.Position, msg string) {
	err := t.srcfile.SyntaxError(t.span(pos, end), msg)
	t.errors = append(t.errors, *err)
}

// ============================================================================
// Statements
// ============================================================================

func (t *transformer) transformStmts(stmts []*PStmt) []ast.Stmt {
	result := make([]ast.Stmt, 0, len(stmts))
	//
	for _, s := range stmts {
		if r := t.transformStmt(s); r != nil {
			result = append(result, r)
		}
	}
	//
	return result
}

//nolint:gocyclo
func (t *transformer) transformStmt(s *PStmt) ast.Stmt {
	switch {
	case s.Func != nil:
		return t.transformFuncDef(s.Func)
	case s.Cap != nil:
		return t.transformCapDecl(s.Cap)
	case s.If != nil:
		return t.transformIf(s.If)
	case s.While != nil:
		n := &ast.While{Meta: t.meta(s.While.Pos, s.While.EndPos),
			Cond: t.transformExpr(s.While.Cond), Body: t.transformStmts(s.While.Body.Stmts)}
		t.record(n)

		return n
	case s.For != nil:
		n := &ast.ForIn{Meta: t.meta(s.For.Pos, s.For.EndPos), Name: s.For.Name,
			Iter: t.transformExpr(s.For.Iter), Body: t.transformStmts(s.For.Body.Stmts)}
		t.record(n)

		return n
	case s.Try != nil:
		return t.transformTry(s.Try)
	case s.Import != nil:
		n := &ast.Import{Meta: t.meta(s.Import.Pos, s.Import.EndPos), Path: s.Import.Path}
		t.record(n)

		return n
	case s.Nonlocal != nil:
		n := &ast.Nonlocal{Meta: t.meta(s.Nonlocal.Pos, s.Nonlocal.EndPos), Names: s.Nonlocal.Names}
		t.record(n)

		return n
	case s.Break != nil:
		n := &ast.Break{Meta: t.meta(s.Break.Pos, s.Break.EndPos)}
		t.record(n)

		return n
	case s.Continue != nil:
		n := &ast.Continue{Meta: t.meta(s.Continue.Pos, s.Continue.EndPos)}
		t.record(n)

		return n
	case s.Return != nil:
		n := &ast.Return{Meta: t.meta(s.Return.Pos, s.Return.EndPos)}
		if s.Return.Value != nil {
			n.Value = t.transformExpr(s.Return.Value)
		}

		t.record(n)

		return n
	case s.Throw != nil:
		// The payload expression is preserved verbatim; structured exception
		// construction happens at emit time.
		n := &ast.Throw{Meta: t.meta(s.Throw.Pos, s.Throw.EndPos), Payload: t.transformExpr(s.Throw.Value)}
		t.record(n)

		return n
	case s.Assign != nil:
		return t.transformAssign(s.Assign)
	case s.Expr != nil:
		n := &ast.ExprStmt{Meta: t.meta(s.Expr.Pos, s.Expr.EndPos), Expr: t.transformExpr(s.Expr.Expr)}
		t.record(n)

		return n
	case s.Block != nil:
		n := &ast.Block{Meta: t.meta(s.Block.Pos, s.Block.EndPos), Stmts: t.transformStmts(s.Block.Stmts)}
		t.record(n)

		return n
	}
	// Unreachable provided the grammar and this transformer agree on shape.
	t.syntaxError(s.Pos, s.EndPos, "internal: unrecognized statement form")

	return nil
}

func (t *transformer) transformFuncDef(f *PFuncDef) ast.Stmt {
	n := &ast.FunctionDef{Meta: t.meta(f.Pos, f.EndPos), Name: f.Name,
		Params: f.Params, Body: t.transformStmts(f.Body.Stmts)}
	t.record(n)

	return n
}

func (t *transformer) transformCapDecl(c *PCapDecl) ast.Stmt {
	n := &ast.CapabilityDecl{Meta: t.meta(c.Pos, c.EndPos), Name: c.Name}
	//
	for _, e := range c.Entries {
		if e.Resource != nil {
			n.Resources = append(n.Resources, *e.Resource)
		} else if e.Allow != nil {
			n.Operations = append(n.Operations, *e.Allow)
		}
	}
	//
	t.record(n)

	return n
}

// transformIf flattens chained else-if forms into the elif list, such that
// "else { if ... }" with a lone nested conditional becomes an elif arm.
func (t *transformer) transformIf(i *PIf) ast.Stmt {
	n := &ast.If{Meta: t.meta(i.Pos, i.EndPos), Cond: t.transformExpr(i.Cond),
		Then: t.transformStmts(i.Then.Stmts)}
	//
	for _, e := range i.Elifs {
		n.Elifs = append(n.Elifs, ast.ElifClause{Cond: t.transformExpr(e.Cond), Body: t.transformStmts(e.Body.Stmts)})
	}
	//
	if i.Else != nil {
		n.Else = t.transformStmts(i.Else.Stmts)
		// Flatten a lone nested conditional.
		if len(n.Else) == 1 {
			if nested, ok := n.Else[0].(*ast.If); ok {
				n.Elifs = append(n.Elifs, ast.ElifClause{Cond: nested.Cond, Body: nested.Then})
				n.Elifs = append(n.Elifs, nested.Elifs...)
				n.Else = nested.Else
			}
		}
	}
	//
	t.record(n)

	return n
}

// transformTry collects finally statements onto the try node even in the
// absence of any except clause.
func (t *transformer) transformTry(tr *PTry) ast.Stmt {
	n := &ast.Try{Meta: t.meta(tr.Pos, tr.EndPos), Body: t.transformStmts(tr.Body.Stmts)}
	//
	for _, h := range tr.Handlers {
		clause := ast.ExceptClause{Body: t.transformStmts(h.Body.Stmts)}
		if h.Binding != nil {
			clause.Binding = *h.Binding
		}

		n.Handlers = append(n.Handlers, clause)
	}
	//
	if tr.Finally != nil {
		n.HasFinally = true
		n.Finally = t.transformStmts(tr.Finally.Stmts)
	}
	//
	t.record(n)

	return n
}

func (t *transformer) transformAssign(a *PAssign) ast.Stmt {
	n := &ast.Assign{Meta: t.meta(a.Pos, a.EndPos),
		Target: t.transformTarget(a.Target), Value: t.transformExpr(a.Value)}
	t.record(n)

	return n
}

// transformTarget lowers an assignment target, checking that a postfix chain
// actually ends in something assignable.
func (t *transformer) transformTarget(target *PTarget) ast.Node {
	switch {
	case target.Array != nil:
		return t.transformArrayPattern(target.Array)
	case target.Object != nil:
		return t.transformObjectPattern(target.Object)
	case target.Post != nil:
		expr := t.transformPostfix(target.Post)
		//
		switch expr.(type) {
		case *ast.Ident, *ast.Member, *ast.Index:
			return expr
		default:
			t.syntaxError(target.Pos, target.EndPos, "invalid assignment target")
			return expr
		}
	}
	//
	t.syntaxError(target.Pos, target.EndPos, "internal: unrecognized assignment target")

	return nil
}

// transformArrayPattern retains element order and nesting.
func (t *transformer) transformArrayPattern(p *PArrayPattern) ast.Pattern {
	n := &ast.ArrayPattern{Meta: t.meta(p.Pos, p.EndPos)}
	//
	for _, e := range p.Elements {
		n.Elements = append(n.Elements, t.transformTargetPattern(e))
	}
	//
	t.record(n)

	return n
}

func (t *transformer) transformObjectPattern(p *PObjectPattern) ast.Pattern {
	n := &ast.ObjectPattern{Meta: t.meta(p.Pos, p.EndPos)}
	//
	for _, e := range p.Entries {
		entry := ast.ObjectPatternEntry{Key: e.Key}
		//
		if e.Binding != nil {
			entry.Binding = t.transformTargetPattern(e.Binding)
		} else {
			// {a} is shorthand for {a: a}
			binding := &ast.NamePattern{Meta: t.meta(e.Pos, e.EndPos), Name: e.Key}
			t.record(binding)
			entry.Binding = binding
		}
		//
		n.Entries = append(n.Entries, entry)
	}
	//
	t.record(n)

	return n
}

func (t *transformer) transformTargetPattern(p *PTargetPattern) ast.Pattern {
	switch {
	case p.Array != nil:
		return t.transformArrayPattern(p.Array)
	case p.Object != nil:
		return t.transformObjectPattern(p.Object)
	case p.Name != nil:
		n := &ast.NamePattern{Meta: t.meta(p.Pos, p.EndPos), Name: *p.Name}
		t.record(n)

		return n
	}
	//
	t.syntaxError(p.Pos, p.EndPos, "internal: unrecognized binding pattern")

	return nil
}

// ============================================================================
// Expressions
// ============================================================================

func (t *transformer) transformExpr(e *PExpr) ast.Expr {
	cond := t.transformOr(e.Cond)
	// Ternary?
	if e.Then != nil {
		n := &ast.Ternary{Meta: t.meta(e.Pos, e.EndPos), Cond: cond,
			Then: t.transformExpr(e.Then), Else: t.transformExpr(e.Else)}
		t.record(n)

		return n
	}
	//
	return cond
}

// foldBinary reduces a left-associative operator chain into nested Binary
// nodes.
func (t *transformer) foldBinary(pos lexer.Position, end lexer.Position, first ast.Expr, ops []string,
	operands []ast.Expr) ast.Expr {
	acc := first
	//
	for i, op := range ops {
		n := &ast.Binary{Meta: t.meta(pos, end), Op: op, Lhs: acc, Rhs: operands[i]}
		t.record(n)
		acc = n
	}
	//
	return acc
}

func (t *transformer) transformOr(e *POr) ast.Expr {
	ops := make([]string, len(e.Rest))
	operands := make([]ast.Expr, len(e.Rest))
	//
	for i, r := range e.Rest {
		ops[i] = r.Op
		operands[i] = t.transformAnd(r.Rhs)
	}
	//
	return t.foldBinary(e.Pos, e.EndPos, t.transformAnd(e.First), ops, operands)
}

func (t *transformer) transformAnd(e *PAnd) ast.Expr {
	ops := make([]string, len(e.Rest))
	operands := make([]ast.Expr, len(e.Rest))
	//
	for i, r := range e.Rest {
		ops[i] = r.Op
		operands[i] = t.transformEquality(r.Rhs)
	}
	//
	return t.foldBinary(e.Pos, e.EndPos, t.transformEquality(e.First), ops, operands)
}

func (t *transformer) transformEquality(e *PEquality) ast.Expr {
	ops := make([]string, len(e.Rest))
	operands := make([]ast.Expr, len(e.Rest))
	//
	for i, r := range e.Rest {
		ops[i] = r.Op
		operands[i] = t.transformComparison(r.Rhs)
	}
	//
	return t.foldBinary(e.Pos, e.EndPos, t.transformComparison(e.First), ops, operands)
}

func (t *transformer) transformComparison(e *PComparison) ast.Expr {
	ops := make([]string, len(e.Rest))
	operands := make([]ast.Expr, len(e.Rest))
	//
	for i, r := range e.Rest {
		ops[i] = r.Op
		operands[i] = t.transformAdditive(r.Rhs)
	}
	//
	return t.foldBinary(e.Pos, e.EndPos, t.transformAdditive(e.First), ops, operands)
}

func (t *transformer) transformAdditive(e *PAdditive) ast.Expr {
	ops := make([]string, len(e.Rest))
	operands := make([]ast.Expr, len(e.Rest))
	//
	for i, r := range e.Rest {
		ops[i] = r.Op
		operands[i] = t.transformMultiplicative(r.Rhs)
	}
	//
	return t.foldBinary(e.Pos, e.EndPos, t.transformMultiplicative(e.First), ops, operands)
}

func (t *transformer) transformMultiplicative(e *PMultiplicative) ast.Expr {
	ops := make([]string, len(e.Rest))
	operands := make([]ast.Expr, len(e.Rest))
	//
	for i, r := range e.Rest {
		ops[i] = r.Op
		operands[i] = t.transformUnary(r.Rhs)
	}
	//
	return t.foldBinary(e.Pos, e.EndPos, t.transformUnary(e.First), ops, operands)
}

// transformUnary keys off the *named* alternative which matched, so that the
// operator tag is taken from the rule name rather than a consumed literal.
// A negation applied directly to a numeric literal is folded into a single
// signed literal node.
func (t *transformer) transformUnary(e *PUnary) ast.Expr {
	switch {
	case e.Neg != nil:
		operand := t.transformUnary(e.Neg)
		// Fold the sign into a directly-negated numeric literal.
		switch lit := operand.(type) {
		case *ast.IntLit:
			n := &ast.IntLit{Meta: t.meta(e.Pos, e.EndPos), Value: -lit.Value}
			t.record(n)

			return n
		case *ast.FloatLit:
			n := &ast.FloatLit{Meta: t.meta(e.Pos, e.EndPos), Value: -lit.Value}
			t.record(n)

			return n
		}
		//
		n := &ast.Unary{Meta: t.meta(e.Pos, e.EndPos), Op: "-", Operand: operand}
		t.record(n)

		return n
	case e.Not != nil:
		n := &ast.Unary{Meta: t.meta(e.Pos, e.EndPos), Op: "!", Operand: t.transformUnary(e.Not)}
		t.record(n)

		return n
	default:
		return t.transformPostfix(e.Postfix)
	}
}

// transformPostfix folds postfix operations left-to-right, fusing a member
// access immediately followed by a call into a method call.
func (t *transformer) transformPostfix(e *PPostfix) ast.Expr {
	acc := t.transformPrimary(e.Primary)
	//
	for i := 0; i < len(e.Ops); i++ {
		op := e.Ops[i]
		//
		switch {
		case op.Member != nil:
			// Member access followed by a call is a method call.
			if i+1 < len(e.Ops) && e.Ops[i+1].Call != nil {
				call := e.Ops[i+1].Call
				n := &ast.MethodCall{Meta: t.meta(e.Pos, call.EndPos), Object: acc,
					Method: op.Member.Name, Args: t.transformArgs(call)}
				t.record(n)

				acc = n
				i++
			} else {
				n := &ast.Member{Meta: t.meta(e.Pos, op.EndPos), Object: acc, Field: op.Member.Name}
				t.record(n)
				acc = n
			}
		case op.Call != nil:
			n := &ast.Call{Meta: t.meta(e.Pos, op.EndPos), Callee: acc, Args: t.transformArgs(op.Call)}
			t.record(n)
			acc = n
		case op.Index != nil:
			acc = t.transformIndexOp(acc, op.Index)
		}
	}
	//
	return acc
}

func (t *transformer) transformArgs(call *PCallArgs) []ast.Expr {
	args := make([]ast.Expr, len(call.Args))
	//
	for i, a := range call.Args {
		args[i] = t.transformExpr(a)
	}
	//
	return args
}

func (t *transformer) transformIndexOp(object ast.Expr, op *PIndexOp) ast.Expr {
	// Plain index?
	if op.Slice == nil {
		if op.Start == nil {
			t.syntaxError(op.Pos, op.EndPos, "empty subscript")
			return object
		}
		//
		n := &ast.Index{Meta: t.meta(op.Pos, op.EndPos), Object: object, Index: t.transformExpr(op.Start)}
		t.record(n)

		return n
	}
	// Slice, with every component optional.
	n := &ast.Slice{Meta: t.meta(op.Pos, op.EndPos), Object: object}
	//
	if op.Start != nil {
		n.Start = t.transformExpr(op.Start)
	}

	if op.Slice.End != nil {
		n.End = t.transformExpr(op.Slice.End)
	}

	if op.Slice.Step != nil && op.Slice.Step.Step != nil {
		n.Step = t.transformExpr(op.Slice.Step.Step)
	}
	//
	t.record(n)

	return n
}

//nolint:gocyclo
func (t *transformer) transformPrimary(e *PPrimary) ast.Expr {
	meta := t.meta(e.Pos, e.EndPos)
	//
	switch {
	case e.Lambda != nil:
		return t.transformLambda(e.Lambda)
	case e.Float != nil:
		n := &ast.FloatLit{Meta: meta, Value: *e.Float}
		t.record(n)

		return n
	case e.Int != nil:
		n := &ast.IntLit{Meta: meta, Value: *e.Int}
		t.record(n)

		return n
	case e.Str != nil:
		n := &ast.StringLit{Meta: meta, Value: *e.Str}
		t.record(n)

		return n
	case e.Const != nil:
		return t.transformConst(meta, *e.Const)
	case e.Array != nil:
		n := &ast.ArrayLit{Meta: meta}
		for _, el := range e.Array.Elements {
			n.Elements = append(n.Elements, t.transformExpr(el))
		}

		t.record(n)

		return n
	case e.Object != nil:
		n := &ast.ObjectLit{Meta: meta}
		for _, f := range e.Object.Fields {
			n.Fields = append(n.Fields, ast.ObjectField{Key: f.Key, Value: t.transformExpr(f.Value)})
		}

		t.record(n)

		return n
	case e.Ident != nil:
		n := &ast.Ident{Meta: meta, Name: *e.Ident}
		t.record(n)

		return n
	case e.Paren != nil:
		return t.transformExpr(e.Paren)
	}
	//
	t.syntaxError(e.Pos, e.EndPos, "internal: unrecognized primary expression")

	return nil
}

func (t *transformer) transformConst(meta ast.Meta, token string) ast.Expr {
	var n ast.Expr
	//
	switch token {
	case "true":
		n = &ast.BoolLit{Meta: meta, Value: true}
	case "false":
		n = &ast.BoolLit{Meta: meta, Value: false}
	case "undefined":
		n = &ast.NullLit{Meta: meta, Undefined: true}
	default:
		n = &ast.NullLit{Meta: meta}
	}
	//
	t.record(n)

	return n
}

func (t *transformer) transformLambda(l *PLambda) ast.Expr {
	n := &ast.Lambda{Meta: t.meta(l.Pos, l.EndPos), Params: l.Params}
	//
	if l.Block != nil {
		n.Block = t.transformStmts(l.Block.Stmts)
	} else {
		n.Expr = t.transformExpr(l.Expr)
	}
	//
	t.record(n)

	return n
}
