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
package source

import (
	"testing"
)

func TestPositionOf(t *testing.T) {
	file := NewFile("f.ml", []byte("ab\ncd\nef"))
	//
	checks := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{4, 2, 2},
		{6, 3, 1},
	}
	//
	for _, c := range checks {
		pos := file.PositionOf(c.offset)
		if pos.Line != c.line || pos.Column != c.column {
			t.Errorf("offset %d: expected %d:%d, got %d:%d", c.offset, c.line, c.column, pos.Line, pos.Column)
		}
	}
}

func TestFindFirstEnclosingLine(t *testing.T) {
	file := NewFile("f.ml", []byte("one\ntwo\nthree"))
	//
	line := file.FindFirstEnclosingLine(NewSpan(5, 6))
	if line.Number() != 2 {
		t.Errorf("expected line 2, got %d", line.Number())
	}

	if line.String() != "two" {
		t.Errorf("expected \"two\", got %q", line.String())
	}
}

func TestSyntaxError(t *testing.T) {
	file := NewFile("f.ml", []byte("x = 1;\ny = ;"))
	//
	err := file.SyntaxError(NewSpan(11, 12), "unexpected token")
	if err.Position().Line != 2 {
		t.Errorf("expected line 2, got %d", err.Position().Line)
	}

	if err.Error() != "f.ml:2:5: unexpected token" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestSourceMap(t *testing.T) {
	file := NewFile("f.ml", []byte("x = 1;"))
	srcmap := NewMap[string](file)
	//
	srcmap.Put("node", NewSpan(0, 6))
	//
	if !srcmap.Has("node") {
		t.Error("expected mapping for node")
	}

	if span := srcmap.Get("node"); span.Length() != 6 {
		t.Errorf("expected span length 6, got %d", span.Length())
	}
	//
	maps := NewMaps[string]()
	maps.Join(srcmap)
	//
	if pos, ok := maps.PositionOf("node"); !ok || pos.Line != 1 {
		t.Errorf("unexpected position: %v", pos)
	}
}
