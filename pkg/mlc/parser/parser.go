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

// Package parser provides the ML front end: a declarative (participle-based)
// grammar producing a parse tree, and a transformer lowering that tree into
// the typed AST of pkg/mlc/ast.
package parser

import (
	"github.com/alecthomas/participle/v2"

	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// ParseFile parses a given source file into a sequence of statements,
// producing a source map associating every AST node with the span of text
// from which it arose.
func ParseFile(srcfile *source.File) ([]ast.Stmt, *source.Map[ast.Node], []source.SyntaxError) {
	srcmap := source.NewMap[ast.Node](srcfile)
	//
	tree, err := mlParser.ParseString(srcfile.Filename(), string(srcfile.Contents()))
	if err != nil {
		return nil, srcmap, []source.SyntaxError{*parseError(srcfile, err)}
	}
	// Lower the parse tree into the AST.
	t := &transformer{srcfile: srcfile, srcmap: srcmap}
	stmts := t.transformStmts(tree.Stmts)
	//
	if len(t.errors) > 0 {
		return stmts, srcmap, t.errors
	}
	//
	return stmts, srcmap, nil
}

// ParseString parses a given string, as if it were the contents of a file
// with the given name.
func ParseString(filename string, text string) ([]ast.Stmt, *source.Map[ast.Node], []source.SyntaxError) {
	return ParseFile(source.NewFile(filename, []byte(text)))
}

// parseError converts a participle error into a structured syntax error
// anchored at the failing token.
func parseError(srcfile *source.File, err error) *source.SyntaxError {
	if perr, ok := err.(participle.Error); ok {
		offset := perr.Position().Offset
		//
		end := offset
		if end < len(srcfile.Contents()) {
			end++
		}
		//
		return srcfile.SyntaxError(source.NewSpan(offset, end), perr.Message())
	}
	//
	return srcfile.SyntaxError(source.NewSpan(0, 0), err.Error())
}
