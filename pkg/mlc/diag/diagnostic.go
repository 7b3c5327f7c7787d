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

// Package diag defines the diagnostic model shared by the analyzer, the code
// generator and the public API, together with the single reporting sink used
// by all user-facing surfaces.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/consensys/go-mlc/pkg/util/source"
)

// Severity classifies how serious a diagnostic is.  Any error-severity
// diagnostic aborts compilation before code is emitted.
type Severity uint8

const (
	// Info is purely advisory.
	Info Severity = iota
	// Warning indicates a suspicious construct which does not prevent
	// compilation (unless strict mode promotes it).
	Warning
	// Error prevents code from being emitted.
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	default:
		return "error"
	}
}

// Category identifies which failure kind a diagnostic belongs to.  Exit
// codes are distinct per category so scripts can branch on them.
type Category string

const (
	// CategorySyntax covers parser failures.
	CategorySyntax Category = "syntax"
	// CategoryTransform covers parse trees the transformer does not
	// recognize (grammar drift; an engine bug).
	CategoryTransform Category = "transform"
	// CategorySecurity covers static-security violations.
	CategorySecurity Category = "security"
	// CategoryIdentifier covers unknown-identifier failures.
	CategoryIdentifier Category = "identifier"
	// CategoryAttribute covers whitelist attribute violations.
	CategoryAttribute Category = "attribute"
	// CategoryImport covers module resolution failures.
	CategoryImport Category = "import"
	// CategoryCapability covers malformed capability declarations.
	CategoryCapability Category = "capability"
)

// ExitCode returns the process exit code associated with a category.
func ExitCode(c Category) int {
	switch c {
	case CategorySyntax:
		return 2
	case CategoryTransform:
		return 3
	case CategorySecurity:
		return 4
	case CategoryIdentifier:
		return 5
	case CategoryAttribute:
		return 6
	case CategoryImport:
		return 7
	case CategoryCapability:
		return 8
	default:
		return 1
	}
}

// Diagnostic is a single reportable finding, always carrying a location.
type Diagnostic struct {
	Severity    Severity
	Category    Category
	Code        string
	Message     string
	Location    source.Position
	Hints       []string
	Remediation string
}

func (d Diagnostic) String() string {
	var builder strings.Builder
	//
	builder.WriteString(fmt.Sprintf("%s: %s: %s", d.Location.String(), d.Severity.String(), d.Message))
	//
	for _, h := range d.Hints {
		builder.WriteString(fmt.Sprintf("\n\thint: %s", h))
	}
	//
	if d.Remediation != "" {
		builder.WriteString(fmt.Sprintf("\n\tremediation: %s", d.Remediation))
	}
	//
	return builder.String()
}

// FromSyntaxError converts a structured syntax error into a diagnostic of a
// given category.
func FromSyntaxError(category Category, code string, err source.SyntaxError) Diagnostic {
	return Diagnostic{
		Severity: Error,
		Category: category,
		Code:     code,
		Message:  err.Message(),
		Location: err.Position(),
	}
}

// HasErrors checks whether any diagnostic in a set carries error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == Error {
			return true
		}
	}
	//
	return false
}

// FirstError returns the first error-severity diagnostic in a set.
func FirstError(diags []Diagnostic) (Diagnostic, bool) {
	for _, d := range diags {
		if d.Severity == Error {
			return d, true
		}
	}
	//
	return Diagnostic{}, false
}

// Promote raises every warning to an error (strict mode).
func Promote(diags []Diagnostic) []Diagnostic {
	promoted := make([]Diagnostic, len(diags))
	//
	for i, d := range diags {
		if d.Severity == Warning {
			d.Severity = Error
		}

		promoted[i] = d
	}
	//
	return promoted
}

// Sink is the single reporting funnel through which all diagnostics pass,
// regardless of which surface (CLI, embedding tool, test) drives the engine.
type Sink interface {
	Report(Diagnostic)
}

// ConsoleSink writes human-readable diagnostics to a writer.
type ConsoleSink struct {
	out io.Writer
}

// NewConsoleSink constructs a sink writing to the given writer.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	return &ConsoleSink{out}
}

// Report writes a single diagnostic.
func (s *ConsoleSink) Report(d Diagnostic) {
	fmt.Fprintln(s.out, d.String())
}

// ReportAll writes a set of diagnostics in order.
func (s *ConsoleSink) ReportAll(diags []Diagnostic) {
	for _, d := range diags {
		s.Report(d)
	}
}
