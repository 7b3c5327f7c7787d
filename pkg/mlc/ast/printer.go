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
package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a statement sequence back into ML surface syntax.  The
// result is not byte-identical to the original source (formatting and
// comments are gone), but parsing it again yields a semantically
// equivalent tree.
func Print(stmts []Stmt) string {
	var p printer
	p.stmts(stmts)
	//
	return p.builder.String()
}

// PrintExpr renders a single expression.
func PrintExpr(e Expr) string {
	return exprString(e)
}

type printer struct {
	builder strings.Builder
	indent  int
}

func (p *printer) line(text string) {
	p.builder.WriteString(strings.Repeat("    ", p.indent))
	p.builder.WriteString(text)
	p.builder.WriteString("\n")
}

func (p *printer) stmts(stmts []Stmt) {
	for _, s := range stmts {
		p.stmt(s)
	}
}

//nolint:gocyclo
func (p *printer) stmt(stmt Stmt) {
	switch s := stmt.(type) {
	case *Assign:
		p.line(fmt.Sprintf("%s = %s;", targetString(s.Target), exprString(s.Value)))
	case *ExprStmt:
		p.line(exprString(s.Expr) + ";")
	case *If:
		p.line(fmt.Sprintf("if (%s) {", exprString(s.Cond)))
		p.block(s.Then)

		for _, arm := range s.Elifs {
			p.line(fmt.Sprintf("} elif (%s) {", exprString(arm.Cond)))
			p.block(arm.Body)
		}

		if s.Else != nil {
			p.line("} else {")
			p.block(s.Else)
		}

		p.line("}")
	case *While:
		p.line(fmt.Sprintf("while (%s) {", exprString(s.Cond)))
		p.block(s.Body)
		p.line("}")
	case *ForIn:
		p.line(fmt.Sprintf("for (%s in %s) {", s.Name, exprString(s.Iter)))
		p.block(s.Body)
		p.line("}")
	case *Break:
		p.line("break;")
	case *Continue:
		p.line("continue;")
	case *Return:
		if s.Value == nil {
			p.line("return;")
		} else {
			p.line(fmt.Sprintf("return %s;", exprString(s.Value)))
		}
	case *Throw:
		p.line(fmt.Sprintf("throw %s;", exprString(s.Payload)))
	case *Try:
		p.line("try {")
		p.block(s.Body)

		for _, h := range s.Handlers {
			if h.Binding != "" {
				p.line(fmt.Sprintf("} except (%s) {", h.Binding))
			} else {
				p.line("} except {")
			}

			p.block(h.Body)
		}

		if s.HasFinally {
			p.line("} finally {")
			p.block(s.Finally)
		}

		p.line("}")
	case *Block:
		p.line("{")
		p.block(s.Stmts)
		p.line("}")
	case *Nonlocal:
		p.line(fmt.Sprintf("nonlocal %s;", strings.Join(s.Names, ", ")))
	case *Import:
		p.line(fmt.Sprintf("import %s;", strings.Join(s.Path, ".")))
	case *FunctionDef:
		p.line(fmt.Sprintf("function %s(%s) {", s.Name, strings.Join(s.Params, ", ")))
		p.block(s.Body)
		p.line("}")
	case *CapabilityDecl:
		p.line(fmt.Sprintf("capability %s {", s.Name))
		p.indent++

		for _, r := range s.Resources {
			p.line(fmt.Sprintf("resource %s;", strconv.Quote(r)))
		}

		for _, op := range s.Operations {
			p.line(fmt.Sprintf("allow %s;", op))
		}

		p.indent--
		p.line("}")
	}
}

func (p *printer) block(stmts []Stmt) {
	p.indent++
	p.stmts(stmts)
	p.indent--
}

func targetString(target Node) string {
	switch t := target.(type) {
	case Expr:
		return exprString(t)
	case Pattern:
		return patternString(t)
	}
	//
	return ""
}

func patternString(pattern Pattern) string {
	switch pat := pattern.(type) {
	case *NamePattern:
		return pat.Name
	case *ArrayPattern:
		parts := make([]string, len(pat.Elements))
		for i, el := range pat.Elements {
			parts[i] = patternString(el)
		}
		//
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectPattern:
		parts := make([]string, len(pat.Entries))
		//
		for i, entry := range pat.Entries {
			if name, ok := entry.Binding.(*NamePattern); ok && name.Name == entry.Key {
				parts[i] = entry.Key
			} else {
				parts[i] = fmt.Sprintf("%s: %s", entry.Key, patternString(entry.Binding))
			}
		}
		//
		return "{" + strings.Join(parts, ", ") + "}"
	}
	//
	return ""
}

//nolint:gocyclo
func exprString(expr Expr) string {
	switch e := expr.(type) {
	case *IntLit:
		return strconv.FormatInt(e.Value, 10)
	case *FloatLit:
		text := strconv.FormatFloat(e.Value, 'g', -1, 64)
		if !strings.ContainsAny(text, ".eE") {
			text += ".0"
		}
		//
		return text
	case *StringLit:
		return strconv.Quote(e.Value)
	case *BoolLit:
		if e.Value {
			return "true"
		}
		//
		return "false"
	case *NullLit:
		if e.Undefined {
			return "undefined"
		}
		//
		return "null"
	case *ArrayLit:
		parts := make([]string, len(e.Elements))
		for i, el := range e.Elements {
			parts[i] = exprString(el)
		}
		//
		return "[" + strings.Join(parts, ", ") + "]"
	case *ObjectLit:
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = fmt.Sprintf("%s: %s", keyString(f.Key), exprString(f.Value))
		}
		//
		return "{" + strings.Join(parts, ", ") + "}"
	case *Ident:
		return e.Name
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", exprString(e.Lhs), e.Op, exprString(e.Rhs))
	case *Unary:
		return fmt.Sprintf("%s(%s)", e.Op, exprString(e.Operand))
	case *Ternary:
		return fmt.Sprintf("(%s ? %s : %s)", exprString(e.Cond), exprString(e.Then), exprString(e.Else))
	case *Member:
		return fmt.Sprintf("%s.%s", exprString(e.Object), e.Field)
	case *Index:
		return fmt.Sprintf("%s[%s]", exprString(e.Object), exprString(e.Index))
	case *Slice:
		component := func(c Expr) string {
			if c == nil {
				return ""
			}
			//
			return exprString(c)
		}
		//
		if e.Step == nil {
			return fmt.Sprintf("%s[%s:%s]", exprString(e.Object), component(e.Start), component(e.End))
		}
		//
		return fmt.Sprintf("%s[%s:%s:%s]", exprString(e.Object), component(e.Start), component(e.End),
			component(e.Step))
	case *Call:
		return fmt.Sprintf("%s(%s)", exprString(e.Callee), argsString(e.Args))
	case *MethodCall:
		return fmt.Sprintf("%s.%s(%s)", exprString(e.Object), e.Method, argsString(e.Args))
	case *Lambda:
		params := strings.Join(e.Params, ", ")
		//
		if e.Expr != nil {
			return fmt.Sprintf("fn (%s) => %s", params, exprString(e.Expr))
		}
		//
		var body printer
		body.indent = 1
		body.stmts(e.Block)
		//
		return fmt.Sprintf("fn (%s) => {\n%s}", params, body.builder.String())
	}
	//
	return ""
}

// keyString quotes object keys which are not plain identifiers.
func keyString(key string) string {
	for i, r := range key {
		alpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		//
		if !alpha && (i == 0 || r < '0' || r > '9') {
			return strconv.Quote(key)
		}
	}
	//
	if key == "" {
		return strconv.Quote(key)
	}
	//
	return key
}

func argsString(args []Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = exprString(a)
	}
	//
	return strings.Join(parts, ", ")
}
