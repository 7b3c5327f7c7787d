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
	"runtime/debug"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/consensys/go-mlc/pkg/mlc"
	"github.com/consensys/go-mlc/pkg/mlc/diag"
)

// Version is filled when building with make, but *not* when installing via
// "go install".
var Version string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "go-mlc",
	Short: "A security-enforcing transpiler for the ML language.",
	Long: "A transpiler lowering the ML scripting language into host source, guaranteeing " +
		"the emitted program cannot reach host facilities outside an explicit whitelist.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "version") {
			fmt.Print("go-mlc ")
			if Version != "" {
				// Built via "make"
				fmt.Printf("%s", Version)
			} else if info, ok := debug.ReadBuildInfo(); ok {
				// Built via "go install"
				fmt.Printf("%s", info.Main.Version)
			} else {
				// Unknown, perhaps "go run"
				fmt.Printf("(unknown version)")
			}
			fmt.Println()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "V", false, "print version and exit")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

// GetFlag reads a boolean flag, panicking on a misconfigured command (which
// is a bug, not a user error).
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		panic(err)
	}
	//
	return r
}

// GetString reads a string flag.
func GetString(cmd *cobra.Command, flag string) string {
	r, err := cmd.Flags().GetString(flag)
	if err != nil {
		panic(err)
	}
	//
	return r
}

// GetStringArray reads a string-array flag.
func GetStringArray(cmd *cobra.Command, flag string) []string {
	r, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		panic(err)
	}
	//
	return r
}

// optionsFromFlags assembles transpilation options from the shared flag
// set, layering an optional YAML config underneath.
func optionsFromFlags(cmd *cobra.Command) (mlc.Options, error) {
	options := mlc.DefaultOptions()
	//
	if config := GetString(cmd, "config"); config != "" {
		loaded, err := mlc.LoadOptions(config)
		if err != nil {
			return options, err
		}
		//
		options = loaded
	}
	//
	if paths := GetStringArray(cmd, "import-path"); len(paths) > 0 {
		options.ImportPaths = paths
	}
	//
	if mode := GetString(cmd, "emit-mode"); mode != "" {
		options.EmitMode = mode
	}
	//
	if out := GetString(cmd, "output"); out != "" {
		options.OutputDir = out
	}
	//
	options.Strict = options.Strict || GetFlag(cmd, "strict")
	options.SourceMaps = options.SourceMaps || GetFlag(cmd, "source-maps")
	//
	return options, nil
}

// addTranspileFlags installs the flag set shared by transpile and analyze.
func addTranspileFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("import-path", "I", nil, "directory searched for user modules")
	cmd.Flags().String("config", "", "YAML options file")
	cmd.Flags().String("emit-mode", "", "emit mode: multi-file, single-file or silent")
	cmd.Flags().StringP("output", "o", "", "output directory (multi-file mode)")
	cmd.Flags().Bool("strict", false, "treat warnings as errors")
	cmd.Flags().Bool("source-maps", false, "emit positional mappings")
}

// reportAndExit funnels diagnostics through the console sink, exiting with
// the code of the first error's category.
func reportAndExit(diags []mlc.Diagnostic) {
	sink := diag.NewConsoleSink(os.Stderr)
	sink.ReportAll(diags)
	//
	if first, ok := diag.FirstError(diags); ok {
		os.Exit(diag.ExitCode(first.Category))
	}
}
