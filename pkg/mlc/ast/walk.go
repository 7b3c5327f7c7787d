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

// Visitor is applied to every node encountered during a walk.  Returning
// false prevents descent into the node's children.
type Visitor func(Node) bool

// Walk traverses the subtree rooted at a given node in pre-order, visiting
// children in definition order.  Nil children (e.g. absent slice components)
// are skipped.
func Walk(node Node, visit Visitor) {
	if node == nil || !visit(node) {
		return
	}
	//
	switch n := node.(type) {
	case *ArrayLit:
		walkExprs(n.Elements, visit)
	case *ObjectLit:
		for _, f := range n.Fields {
			Walk(f.Value, visit)
		}
	case *Binary:
		Walk(n.Lhs, visit)
		Walk(n.Rhs, visit)
	case *Unary:
		Walk(n.Operand, visit)
	case *Ternary:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case *Member:
		Walk(n.Object, visit)
	case *Index:
		Walk(n.Object, visit)
		Walk(n.Index, visit)
	case *Slice:
		Walk(n.Object, visit)
		walkExpr(n.Start, visit)
		walkExpr(n.End, visit)
		walkExpr(n.Step, visit)
	case *Call:
		Walk(n.Callee, visit)
		walkExprs(n.Args, visit)
	case *MethodCall:
		Walk(n.Object, visit)
		walkExprs(n.Args, visit)
	case *Lambda:
		walkExpr(n.Expr, visit)
		walkStmts(n.Block, visit)
	case *ArrayPattern:
		for _, e := range n.Elements {
			Walk(e, visit)
		}
	case *ObjectPattern:
		for _, e := range n.Entries {
			Walk(e.Binding, visit)
		}
	case *Assign:
		Walk(n.Target, visit)
		Walk(n.Value, visit)
	case *ExprStmt:
		Walk(n.Expr, visit)
	case *If:
		Walk(n.Cond, visit)
		walkStmts(n.Then, visit)

		for _, e := range n.Elifs {
			Walk(e.Cond, visit)
			walkStmts(e.Body, visit)
		}

		walkStmts(n.Else, visit)
	case *While:
		Walk(n.Cond, visit)
		walkStmts(n.Body, visit)
	case *ForIn:
		Walk(n.Iter, visit)
		walkStmts(n.Body, visit)
	case *Return:
		walkExpr(n.Value, visit)
	case *Throw:
		Walk(n.Payload, visit)
	case *Try:
		walkStmts(n.Body, visit)

		for _, h := range n.Handlers {
			walkStmts(h.Body, visit)
		}

		walkStmts(n.Finally, visit)
	case *Block:
		walkStmts(n.Stmts, visit)
	case *FunctionDef:
		walkStmts(n.Body, visit)
	}
}

// WalkAll traverses a sequence of statements in definition order.
func WalkAll(stmts []Stmt, visit Visitor) {
	walkStmts(stmts, visit)
}

func walkExpr(e Expr, visit Visitor) {
	if e != nil {
		Walk(e, visit)
	}
}

func walkExprs(es []Expr, visit Visitor) {
	for _, e := range es {
		Walk(e, visit)
	}
}

func walkStmts(stmts []Stmt, visit Visitor) {
	for _, s := range stmts {
		Walk(s, visit)
	}
}
