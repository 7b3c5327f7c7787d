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

// transpileCmd lowers one ML source file to host source.
var transpileCmd = &cobra.Command{
	Use:   "transpile [flags] source.ml",
	Short: "Transpile an ML source file into host source.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		options, err := optionsFromFlags(cmd)
		if err != nil {
			log.Fatal(err)
		}
		//
		result, err := mlc.TranspileFile(cmd.Context(), args[0], options)
		if err != nil {
			log.Fatal(err)
		}
		//
		reportAndExit(result.Diagnostics)
		// Without an output directory, the emitted source goes to stdout.
		if options.OutputDir == "" {
			fmt.Print(result.OutputSource)
		}
	},
}

// runCmd transpiles in silent mode and executes the result on the host
// interpreter.
var runCmd = &cobra.Command{
	Use:   "run [flags] source.ml",
	Short: "Transpile and execute an ML source file in memory.",
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
		stdout, result, err := mlc.Run(cmd.Context(), args[0], string(bytes), options)
		if result != nil {
			reportAndExit(result.Diagnostics)
		}
		//
		fmt.Print(stdout)
		//
		if err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(transpileCmd)
	rootCmd.AddCommand(runCmd)
	addTranspileFlags(transpileCmd)
	addTranspileFlags(runCmd)
}
