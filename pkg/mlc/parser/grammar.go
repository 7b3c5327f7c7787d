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
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// mlLexer tokenizes ML source.  Statements are semicolon-terminated and the
// only comment form is the single-line "//" comment.  Note that numeric
// tokens are unsigned here; the sign of a negative literal is folded back
// into the literal during tree-to-AST transformation, so that "-1" yields a
// single signed literal node.
var mlLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "Float", Pattern: `\d+\.\d+([eE][+-]?\d+)?|\d+[eE][+-]?\d+`},
	{Name: "Int", Pattern: `\d+`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Arrow", Pattern: `=>`},
	{Name: "OpCmp", Pattern: `==|!=|<=|>=`},
	{Name: "OpLogic", Pattern: `&&|\|\|`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[-+*/%!<>=?:;,.(){}\[\]]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// mlParser is the constructed participle parser for whole programs.  Deep
// lookahead is required to disambiguate assignment targets (including
// destructuring patterns) from expression statements.
var mlParser = participle.MustBuild[PProgram](
	participle.Lexer(mlLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
	participle.UseLookahead(1024),
)

// PProgram is the root of the parse tree: a sequence of statements.
type PProgram struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Stmts []*PStmt `@@*`
}

// PStmt dispatches on the statement forms of ML.  Order matters: keyword-led
// forms come first, then assignments, then bare expression statements.
type PStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Func     *PFuncDef   `  @@`
	Cap      *PCapDecl   `| @@`
	If       *PIf        `| @@`
	While    *PWhile     `| @@`
	For      *PFor       `| @@`
	Try      *PTry       `| @@`
	Import   *PImport    `| @@`
	Nonlocal *PNonlocal  `| @@`
	Break    *PBreak     `| @@`
	Continue *PContinue  `| @@`
	Return   *PReturn    `| @@`
	Throw    *PThrow     `| @@`
	Assign   *PAssign    `| @@`
	Expr     *PExprStmt  `| @@`
	Block    *PBlock     `| @@`
}

// PFuncDef: function <name>(<params>) { ... }
type PFuncDef struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name   string   `"function" @Ident`
	Params []string `"(" ( @Ident ( "," @Ident )* )? ")"`
	Body   *PBlock  `@@`
}

// PCapDecl: capability <Name> { resource "<glob>"; allow <op>; ... }
type PCapDecl struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name    string       `"capability" @Ident`
	Entries []*PCapEntry `"{" @@* "}"`
}

// PCapEntry is a single resource or allow entry of a capability block.
type PCapEntry struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Resource *string `  "resource" @String ";"`
	Allow    *string `| "allow" @Ident ";"`
}

// PIf: if (cond) { ... } elif (cond) { ... } else { ... }
type PIf struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Cond  *PExpr   `"if" "(" @@ ")"`
	Then  *PBlock  `@@`
	Elifs []*PElif `@@*`
	Else  *PBlock  `( "else" @@ )?`
}

// PElif is one elif arm.
type PElif struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Cond *PExpr  `"elif" "(" @@ ")"`
	Body *PBlock `@@`
}

// PWhile: while (cond) { ... }
type PWhile struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Cond *PExpr  `"while" "(" @@ ")"`
	Body *PBlock `@@`
}

// PFor: for (<name> in <expr>) { ... }
type PFor struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name string  `"for" "(" @Ident "in"`
	Iter *PExpr  `@@ ")"`
	Body *PBlock `@@`
}

// PTry: try { ... } except (e) { ... } finally { ... }.  The exception
// binding requires parentheses; an unbound except is allowed.  A finally
// clause may appear with or without any except clause.
type PTry struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Body     *PBlock    `"try" @@`
	Handlers []*PExcept `@@*`
	Finally  *PBlock    `( "finally" @@ )?`
}

// PExcept is a single exception handler.
type PExcept struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Binding *string `"except" ( "(" @Ident ")" )?`
	Body    *PBlock `@@`
}

// PImport: import a.b.c;
type PImport struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Path []string `"import" @Ident ( "." @Ident )* ";"`
}

// PNonlocal: nonlocal a, b;
type PNonlocal struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Names []string `"nonlocal" @Ident ( "," @Ident )* ";"`
}

// PBreak: break;
type PBreak struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Kw bool `@"break" ";"`
}

// PContinue: continue;
type PContinue struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Kw bool `@"continue" ";"`
}

// PReturn: return <expr>?;
type PReturn struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Kw    bool   `@"return"`
	Value *PExpr `@@? ";"`
}

// PThrow: throw <expr>;
type PThrow struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Value *PExpr `"throw" @@ ";"`
}

// PAssign: <target> = <expr>;
type PAssign struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Target *PTarget `@@ "="`
	Value  *PExpr   `@@ ";"`
}

// PTarget is an assignment target: a destructuring pattern, or a postfix
// chain ending in an identifier, member access or index access.  The
// transformer validates the latter restriction.
type PTarget struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Array  *PArrayPattern  `  @@`
	Object *PObjectPattern `| @@`
	Post   *PPostfix       `| @@`
}

// PArrayPattern: [a, [b, c], ...]
type PArrayPattern struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Elements []*PTargetPattern `"[" ( @@ ( "," @@ )* )? "]"`
}

// PObjectPattern: {a, b: c, ...}
type PObjectPattern struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Entries []*PObjectPatternEntry `"{" ( @@ ( "," @@ )* )? "}"`
}

// PObjectPatternEntry: a, or a: <pattern>.
type PObjectPatternEntry struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Key     string          `@Ident`
	Binding *PTargetPattern `( ":" @@ )?`
}

// PTargetPattern is a (possibly nested) binding position within a pattern.
type PTargetPattern struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Array  *PArrayPattern  `  @@`
	Object *PObjectPattern `| @@`
	Name   *string         `| @Ident`
}

// PExprStmt: <expr>;
type PExprStmt struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Expr *PExpr `@@ ";"`
}

// PBlock: { stmts... }
type PBlock struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Stmts []*PStmt `"{" @@* "}"`
}

// ============================================================================
// Expressions (precedence encoded in the grammar layers)
// ============================================================================

// PExpr is the expression entry point: a ternary conditional over the
// logical-or layer.
type PExpr struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Cond *POr   `@@`
	Then *PExpr `( "?" @@`
	Else *PExpr `":" @@ )?`
}

// POr: a || b || ...
type POr struct {
	Pos    lexer.Position
	EndPos lexer.Position

	First *PAnd     `@@`
	Rest  []*POrOp  `@@*`
}

// POrOp is a single "||" application.
type POrOp struct {
	Op  string `@"||"`
	Rhs *PAnd  `@@`
}

// PAnd: a && b && ...
type PAnd struct {
	Pos    lexer.Position
	EndPos lexer.Position

	First *PEquality  `@@`
	Rest  []*PAndOp   `@@*`
}

// PAndOp is a single "&&" application.
type PAndOp struct {
	Op  string     `@"&&"`
	Rhs *PEquality `@@`
}

// PEquality: a == b, a != b
type PEquality struct {
	Pos    lexer.Position
	EndPos lexer.Position

	First *PComparison    `@@`
	Rest  []*PEqualityOp  `@@*`
}

// PEqualityOp is a single equality operator application.
type PEqualityOp struct {
	Op  string       `@( "==" | "!=" )`
	Rhs *PComparison `@@`
}

// PComparison: a < b, a <= b, a > b, a >= b
type PComparison struct {
	Pos    lexer.Position
	EndPos lexer.Position

	First *PAdditive        `@@`
	Rest  []*PComparisonOp  `@@*`
}

// PComparisonOp is a single comparison operator application.
type PComparisonOp struct {
	Op  string     `@( "<=" | ">=" | "<" | ">" )`
	Rhs *PAdditive `@@`
}

// PAdditive: a + b, a - b
type PAdditive struct {
	Pos    lexer.Position
	EndPos lexer.Position

	First *PMultiplicative  `@@`
	Rest  []*PAdditiveOp    `@@*`
}

// PAdditiveOp is a single additive operator application.
type PAdditiveOp struct {
	Op  string           `@( "+" | "-" )`
	Rhs *PMultiplicative `@@`
}

// PMultiplicative: a * b, a / b, a % b
type PMultiplicative struct {
	Pos    lexer.Position
	EndPos lexer.Position

	First *PUnary               `@@`
	Rest  []*PMultiplicativeOp  `@@*`
}

// PMultiplicativeOp is a single multiplicative operator application.
type PMultiplicativeOp struct {
	Op  string  `@( "*" | "/" | "%" )`
	Rhs *PUnary `@@`
}

// PUnary uses *named* alternatives for negation and logical-not, rather than
// capturing the operator literal.  The transformer keys off the populated
// field, so the operator can never be lost to an inline-rule rewrite.
type PUnary struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Neg     *PUnary   `  "-" @@`
	Not     *PUnary   `| "!" @@`
	Postfix *PPostfix `| @@`
}

// PPostfix: a primary followed by any number of call, member-access or
// index/slice operations.
type PPostfix struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Primary *PPrimary     `@@`
	Ops     []*PPostfixOp `@@*`
}

// PPostfixOp is a single postfix operation.
type PPostfixOp struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Call   *PCallArgs `  @@`
	Member *PMemberOp `| @@`
	Index  *PIndexOp  `| @@`
}

// PCallArgs: (arg, ...)
type PCallArgs struct {
	Pos    lexer.Position
	EndPos lexer.Position

	LParen bool     `@"("`
	Args   []*PExpr `( @@ ( "," @@ )* )? ")"`
}

// PMemberOp: .name
type PMemberOp struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Name string `"." @Ident`
}

// PIndexOp: [index], [start:end] or [start:end:step], with every component
// optional in the slice forms.
type PIndexOp struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Start *PExpr      `"[" @@?`
	Slice *PSliceTail `@@? "]"`
}

// PSliceTail marks the first ":" of a slice, followed by the optional end
// component and optional step tail.
type PSliceTail struct {
	Pos    lexer.Position
	EndPos lexer.Position

	IsSlice bool       `@":"`
	End     *PExpr     `@@?`
	Step    *PStepTail `@@?`
}

// PStepTail marks the second ":" of a slice, followed by the optional step.
type PStepTail struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Colon bool   `@":"`
	Step  *PExpr `@@?`
}

// PPrimary is an atomic expression.  Keyword literals precede the identifier
// alternative so that "true" et al are never parsed as names.
type PPrimary struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Lambda *PLambda `  @@`
	Float  *float64 `| @Float`
	Int    *int64   `| @Int`
	Str    *string  `| @String`
	Const  *string  `| @( "true" | "false" | "null" | "undefined" )`
	Array  *PArray  `| @@`
	Object *PObject `| @@`
	Ident  *string  `| @Ident`
	Paren  *PExpr   `| "(" @@ ")"`
}

// PLambda: fn (params) => expr, or fn (params) => { stmts }.  The dedicated
// "fn" prefix keyword avoids ambiguity with grouping parentheses.
type PLambda struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Kw     bool     `@"fn"`
	Params []string `"(" ( @Ident ( "," @Ident )* )? ")" Arrow`
	Block  *PBlock  `( @@`
	Expr   *PExpr   `| @@ )`
}

// PArray: [e1, e2, ...]
type PArray struct {
	Pos    lexer.Position
	EndPos lexer.Position

	LBracket bool     `@"["`
	Elements []*PExpr `( @@ ( "," @@ )* )? "]"`
}

// PObject: {k: v, ...}
type PObject struct {
	Pos    lexer.Position
	EndPos lexer.Position

	LBrace bool            `@"{"`
	Fields []*PObjectField `( @@ ( "," @@ )* )? "}"`
}

// PObjectField: <key>: <value>, where the key is an identifier or string.
type PObjectField struct {
	Pos    lexer.Position
	EndPos lexer.Position

	Key   string `( @Ident | @String ) ":"`
	Value *PExpr `@@`
}
