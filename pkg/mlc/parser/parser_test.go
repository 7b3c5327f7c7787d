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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consensys/go-mlc/pkg/mlc/ast"
)

// ============================================================================
// Positive Tests
// ============================================================================

func TestParse_Assignment(t *testing.T) {
	stmts := parseOk(t, "x = 1;")
	require.Len(t, stmts, 1)
	//
	assign := stmts[0].(*ast.Assign)
	assert.Equal(t, "x", assign.Target.(*ast.Ident).Name)
	assert.Equal(t, int64(1), assign.Value.(*ast.IntLit).Value)
}

func TestParse_SignedIntLiteral(t *testing.T) {
	stmts := parseOk(t, "x = -1;")
	// The sign is folded into a single literal node.
	lit := stmts[0].(*ast.Assign).Value.(*ast.IntLit)
	assert.Equal(t, int64(-1), lit.Value)
}

func TestParse_SignedFloatLiteral(t *testing.T) {
	stmts := parseOk(t, "x = -2.5e3;")
	lit := stmts[0].(*ast.Assign).Value.(*ast.FloatLit)
	assert.Equal(t, -2500.0, lit.Value)
}

func TestParse_NegationOfExpression(t *testing.T) {
	stmts := parseOk(t, "x = -(y + 1);")
	unary := stmts[0].(*ast.Assign).Value.(*ast.Unary)
	// The operator tag comes from the named rule alternative.
	assert.Equal(t, "-", unary.Op)
	assert.IsType(t, &ast.Binary{}, unary.Operand)
}

func TestParse_SubtractionIsBinary(t *testing.T) {
	stmts := parseOk(t, "x = a - 1;")
	binary := stmts[0].(*ast.Assign).Value.(*ast.Binary)
	assert.Equal(t, "-", binary.Op)
}

func TestParse_LogicalNot(t *testing.T) {
	stmts := parseOk(t, "x = !condition;")
	unary := stmts[0].(*ast.Assign).Value.(*ast.Unary)
	assert.Equal(t, "!", unary.Op)
}

func TestParse_DoubleNot(t *testing.T) {
	stmts := parseOk(t, "x = !!y;")
	outer := stmts[0].(*ast.Assign).Value.(*ast.Unary)
	inner := outer.Operand.(*ast.Unary)
	assert.Equal(t, "!", outer.Op)
	assert.Equal(t, "!", inner.Op)
}

func TestParse_Precedence(t *testing.T) {
	stmts := parseOk(t, "x = 1 + 2 * 3;")
	add := stmts[0].(*ast.Assign).Value.(*ast.Binary)
	assert.Equal(t, "+", add.Op)
	assert.Equal(t, "*", add.Rhs.(*ast.Binary).Op)
}

func TestParse_Ternary(t *testing.T) {
	stmts := parseOk(t, "x = a ? 1 : 2;")
	assert.IsType(t, &ast.Ternary{}, stmts[0].(*ast.Assign).Value)
}

func TestParse_Slice(t *testing.T) {
	stmts := parseOk(t, "y = arr[1:3];")
	slice := stmts[0].(*ast.Assign).Value.(*ast.Slice)
	assert.NotNil(t, slice.Start)
	assert.NotNil(t, slice.End)
	assert.Nil(t, slice.Step)
}

func TestParse_SliceReversal(t *testing.T) {
	stmts := parseOk(t, "y = arr[::-1];")
	slice := stmts[0].(*ast.Assign).Value.(*ast.Slice)
	assert.Nil(t, slice.Start)
	assert.Nil(t, slice.End)
	// The negative step is a single signed literal.
	assert.Equal(t, int64(-1), slice.Step.(*ast.IntLit).Value)
}

func TestParse_SliceOpenEnded(t *testing.T) {
	stmts := parseOk(t, "y = arr[-1:];")
	slice := stmts[0].(*ast.Assign).Value.(*ast.Slice)
	assert.Equal(t, int64(-1), slice.Start.(*ast.IntLit).Value)
	assert.Nil(t, slice.End)
}

func TestParse_Index(t *testing.T) {
	stmts := parseOk(t, "y = arr[0];")
	assert.IsType(t, &ast.Index{}, stmts[0].(*ast.Assign).Value)
}

func TestParse_MethodCall(t *testing.T) {
	stmts := parseOk(t, "y = obj.trim(x);")
	call := stmts[0].(*ast.Assign).Value.(*ast.MethodCall)
	assert.Equal(t, "trim", call.Method)
	require.Len(t, call.Args, 1)
}

func TestParse_MemberAccess(t *testing.T) {
	stmts := parseOk(t, "y = obj.field;")
	member := stmts[0].(*ast.Assign).Value.(*ast.Member)
	assert.Equal(t, "field", member.Field)
}

func TestParse_LambdaExpression(t *testing.T) {
	stmts := parseOk(t, "f = fn (x, y) => x + y;")
	lambda := stmts[0].(*ast.Assign).Value.(*ast.Lambda)
	assert.Equal(t, []string{"x", "y"}, lambda.Params)
	assert.NotNil(t, lambda.Expr)
	assert.Nil(t, lambda.Block)
}

func TestParse_LambdaBlock(t *testing.T) {
	stmts := parseOk(t, "f = fn (x) => { return x; };")
	lambda := stmts[0].(*ast.Assign).Value.(*ast.Lambda)
	assert.Nil(t, lambda.Expr)
	require.Len(t, lambda.Block, 1)
}

func TestParse_FunctionDef(t *testing.T) {
	stmts := parseOk(t, "function add(a, b) { return a + b; }")
	fn := stmts[0].(*ast.FunctionDef)
	assert.Equal(t, "add", fn.Name)
	assert.Equal(t, []string{"a", "b"}, fn.Params)
}

func TestParse_IfElifElse(t *testing.T) {
	stmts := parseOk(t, `
		if (a) { x = 1; }
		elif (b) { x = 2; }
		elif (c) { x = 3; }
		else { x = 4; }`)
	cond := stmts[0].(*ast.If)
	assert.Len(t, cond.Elifs, 2)
	assert.Len(t, cond.Else, 1)
}

func TestParse_ChainedElseIfFlattened(t *testing.T) {
	stmts := parseOk(t, `
		if (a) { x = 1; }
		else { if (b) { x = 2; } else { x = 3; } }`)
	cond := stmts[0].(*ast.If)
	// The nested conditional hangs off the elif list.
	require.Len(t, cond.Elifs, 1)
	assert.Len(t, cond.Else, 1)
}

func TestParse_ForIn(t *testing.T) {
	stmts := parseOk(t, "for (item in items) { x = item; }")
	loop := stmts[0].(*ast.ForIn)
	assert.Equal(t, "item", loop.Name)
}

func TestParse_TryExceptBinding(t *testing.T) {
	stmts := parseOk(t, "try { x = 1; } except (e) { y = e; }")
	try := stmts[0].(*ast.Try)
	require.Len(t, try.Handlers, 1)
	assert.Equal(t, "e", try.Handlers[0].Binding)
	assert.False(t, try.HasFinally)
}

func TestParse_TryUnboundExcept(t *testing.T) {
	stmts := parseOk(t, "try { x = 1; } except { y = 2; }")
	try := stmts[0].(*ast.Try)
	require.Len(t, try.Handlers, 1)
	assert.Equal(t, "", try.Handlers[0].Binding)
}

func TestParse_FinallyWithoutExcept(t *testing.T) {
	stmts := parseOk(t, "try { x = 1; } finally { y = 2; }")
	try := stmts[0].(*ast.Try)
	// Finally statements attach to the try node despite the absent except.
	assert.Empty(t, try.Handlers)
	assert.True(t, try.HasFinally)
	assert.Len(t, try.Finally, 1)
}

func TestParse_EmptyFinally(t *testing.T) {
	stmts := parseOk(t, "try { x = 1; } finally { }")
	try := stmts[0].(*ast.Try)
	assert.True(t, try.HasFinally)
	assert.Empty(t, try.Finally)
}

func TestParse_Throw(t *testing.T) {
	stmts := parseOk(t, `throw {code: 1, message: "bad"};`)
	thrown := stmts[0].(*ast.Throw)
	assert.IsType(t, &ast.ObjectLit{}, thrown.Payload)
}

func TestParse_Import(t *testing.T) {
	stmts := parseOk(t, "import a.b.c;")
	imp := stmts[0].(*ast.Import)
	assert.Equal(t, []string{"a", "b", "c"}, imp.Path)
}

func TestParse_Nonlocal(t *testing.T) {
	stmts := parseOk(t, "nonlocal counter, total;")
	decl := stmts[0].(*ast.Nonlocal)
	assert.Equal(t, []string{"counter", "total"}, decl.Names)
}

func TestParse_ArrayDestructuring(t *testing.T) {
	stmts := parseOk(t, "[a, [b, c]] = rows;")
	pattern := stmts[0].(*ast.Assign).Target.(*ast.ArrayPattern)
	require.Len(t, pattern.Elements, 2)
	assert.IsType(t, &ast.NamePattern{}, pattern.Elements[0])
	assert.IsType(t, &ast.ArrayPattern{}, pattern.Elements[1])
}

func TestParse_ObjectDestructuring(t *testing.T) {
	stmts := parseOk(t, "{name, age: years} = person;")
	pattern := stmts[0].(*ast.Assign).Target.(*ast.ObjectPattern)
	require.Len(t, pattern.Entries, 2)
	assert.Equal(t, "name", pattern.Entries[0].Key)
	assert.Equal(t, "years", pattern.Entries[1].Binding.(*ast.NamePattern).Name)
}

func TestParse_MemberAssignment(t *testing.T) {
	stmts := parseOk(t, "obj.field = 1;")
	assert.IsType(t, &ast.Member{}, stmts[0].(*ast.Assign).Target)
}

func TestParse_IndexAssignment(t *testing.T) {
	stmts := parseOk(t, "arr[0] = 1;")
	assert.IsType(t, &ast.Index{}, stmts[0].(*ast.Assign).Target)
}

func TestParse_CapabilityDecl(t *testing.T) {
	stmts := parseOk(t, `
		capability FileReader {
			resource "*.txt";
			resource "data/*.csv";
			allow read;
			allow list;
		}`)
	decl := stmts[0].(*ast.CapabilityDecl)
	assert.Equal(t, "FileReader", decl.Name)
	assert.Equal(t, []string{"*.txt", "data/*.csv"}, decl.Resources)
	assert.Equal(t, []string{"read", "list"}, decl.Operations)
}

func TestParse_Comments(t *testing.T) {
	stmts := parseOk(t, `
		// leading comment
		x = 1; // trailing comment
	`)
	assert.Len(t, stmts, 1)
}

func TestParse_BooleanAndNullLiterals(t *testing.T) {
	stmts := parseOk(t, "a = true; b = false; c = null; d = undefined;")
	require.Len(t, stmts, 4)
	assert.True(t, stmts[0].(*ast.Assign).Value.(*ast.BoolLit).Value)
	assert.False(t, stmts[1].(*ast.Assign).Value.(*ast.BoolLit).Value)
	assert.False(t, stmts[2].(*ast.Assign).Value.(*ast.NullLit).Undefined)
	assert.True(t, stmts[3].(*ast.Assign).Value.(*ast.NullLit).Undefined)
}

func TestParse_SourcePositions(t *testing.T) {
	srcmapped(t, "x = 1;\ny = 2;")
}

// ============================================================================
// Negative Tests
// ============================================================================

func TestParse_MissingSemicolon(t *testing.T) {
	parseFails(t, "x = 1")
}

func TestParse_UnbalancedBrace(t *testing.T) {
	parseFails(t, "function f() { return 1;")
}

func TestParse_BadCapabilityEntry(t *testing.T) {
	parseFails(t, "capability C { allow; }")
}

func TestParse_ExceptBindingRequiresParens(t *testing.T) {
	parseFails(t, "try { x = 1; } except e { }")
}

// ============================================================================
// Helpers
// ============================================================================

func parseOk(t *testing.T, text string) []ast.Stmt {
	t.Helper()
	//
	stmts, _, errs := ParseString("test.ml", text)
	for _, e := range errs {
		t.Errorf("unexpected error: %s", e.Error())
	}
	//
	return stmts
}

func parseFails(t *testing.T, text string) {
	t.Helper()
	//
	if _, _, errs := ParseString("test.ml", text); len(errs) == 0 {
		t.Errorf("expected syntax error for %q", text)
	}
}

func srcmapped(t *testing.T, text string) {
	t.Helper()
	//
	stmts, srcmap, errs := ParseString("test.ml", text)
	require.Empty(t, errs)
	//
	for i, s := range stmts {
		require.True(t, srcmap.Has(s), "statement %d missing from source map", i)
	}
	// Second statement starts on line 2.
	span := srcmap.Get(stmts[1])
	pos := srcmap.Source().PositionOf(span.Start())
	assert.Equal(t, 2, pos.Line)
}
