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
package mlc

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Stdlib modes.  The strict native default is mandatory for correctness;
// mixed mode is an opt-in easement exposing an explicit subset of host
// modules.
const (
	// StdlibNative exposes only the native ML stdlib.
	StdlibNative = "native"
	// StdlibMixed additionally exposes the modules listed in
	// AllowHostModules.
	StdlibMixed = "mixed"
)

// Options control a transpilation.
type Options struct {
	// ImportPaths are the directories searched for user ML modules.
	ImportPaths []string `yaml:"import_paths"`
	// AllowCurrentDir makes the source file's own directory an implicit
	// import path.
	AllowCurrentDir bool `yaml:"allow_current_dir"`
	// EmitMode is one of "multi-file", "single-file" or "silent".
	EmitMode string `yaml:"emit_mode"`
	// StdlibMode is "native" (default) or "mixed".
	StdlibMode string `yaml:"stdlib_mode"`
	// AllowHostModules lists additional host modules exposed in mixed
	// mode.
	AllowHostModules []string `yaml:"allow_host_modules"`
	// Strict treats warnings as errors.
	Strict bool `yaml:"strict"`
	// SourceMaps emits positional mapping alongside the output.
	SourceMaps bool `yaml:"source_maps"`
	// OutputDir receives emitted files in multi-file mode.
	OutputDir string `yaml:"output_dir"`
}

// DefaultOptions returns the strict defaults.
func DefaultOptions() Options {
	return Options{
		EmitMode:        "multi-file",
		StdlibMode:      StdlibNative,
		AllowCurrentDir: true,
	}
}

// LoadOptions reads options from a YAML file, applied over the defaults.
func LoadOptions(path string) (Options, error) {
	options := DefaultOptions()
	//
	bytes, err := os.ReadFile(path)
	if err != nil {
		return options, err
	}
	//
	if err := yaml.Unmarshal(bytes, &options); err != nil {
		return options, err
	}
	//
	return options, nil
}
