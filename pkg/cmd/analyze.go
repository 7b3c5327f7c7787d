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
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/consensys/go-mlc/pkg/mlc"
)

// analyzeCmd runs the static security analyzer without emitting code.
var analyzeCmd = &cobra.Command{
	Use:   "analyze [flags] source.ml",
	Short: "Run the static security analyzer over an ML source file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		options, err := optionsFromFlags(cmd)
		if err != nil {
			log.Fatal(err)
		}
		//
		bytes, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		//
		diags, err := mlc.Analyze(cmd.Context(), args[0], string(bytes), options)
		if err != nil {
			log.Fatal(err)
		}
		//
		reportAndExit(diags)
		fmt.Println("no issues found")
	},
}

// parseCmd parses a source file, reporting syntax errors only.
var parseCmd = &cobra.Command{
	Use:   "parse [flags] source.ml",
	Short: "Parse an ML source file, reporting syntax errors.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bytes, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal(err)
		}
		//
		stmts, diags := mlc.Parse(args[0], string(bytes))
		reportAndExit(diags)
		//
		fmt.Printf("parsed %d top-level statements\n", len(stmts))
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(parseCmd)
	addTranspileFlags(analyzeCmd)
}
