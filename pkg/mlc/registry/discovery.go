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
package registry

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/consensys/go-mlc/pkg/mlc/ast"
	"github.com/consensys/go-mlc/pkg/mlc/parser"
	"github.com/consensys/go-mlc/pkg/util/source"
)

// moduleMarker is the declaration marker looked for in file headers during
// discovery.  A file declares itself as a stdlib module by carrying a
// comment of the form "// @module <name>" within its leading comment block.
const moduleMarker = "// @module"

// versionMarker optionally declares the module version, in the same comment
// block as the module marker.
const versionMarker = "// @version"

// Discover scans the given directories for .ml files carrying a module
// declaration marker, registering each hit as a lazily-materialized module.
// Only file headers are read at this stage; a discovered module's function
// set is materialized on the first import which references it.  Directories
// are scanned concurrently.
func (r *Registry) Discover(dirs ...string) error {
	var (
		group errgroup.Group
		mu    sync.Mutex
		found []*ModuleMetadata
	)
	//
	for _, dir := range dirs {
		dir := dir
		group.Go(func() error {
			modules, err := scanDir(dir)
			if err != nil {
				return err
			}
			//
			mu.Lock()
			found = append(found, modules...)
			mu.Unlock()
			//
			return nil
		})
	}
	//
	if err := group.Wait(); err != nil {
		return err
	}
	// Registration itself stays sequential, preserving the init-only
	// write discipline of the registry.
	for _, m := range found {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	//
	return nil
}

// scanDir walks a single directory tree looking for declared modules.
func scanDir(dir string) ([]*ModuleMetadata, error) {
	var modules []*ModuleMetadata
	//
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() || filepath.Ext(path) != ".ml" {
			return err
		}
		//
		if m := scanHeader(path); m != nil {
			log.Debugf("discovered module %q at %s", m.Name, path)
			modules = append(modules, m)
		}
		//
		return nil
	})
	//
	return modules, err
}

// scanHeader reads the leading comment block of a file, looking for the
// module declaration marker.  The file is not parsed, let alone loaded.
func scanHeader(path string) *ModuleMetadata {
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	//
	defer file.Close()
	//
	var name, version string
	//
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Stop at the end of the leading comment block.
		if line != "" && !strings.HasPrefix(line, "//") {
			break
		}
		//
		if rest, ok := strings.CutPrefix(line, moduleMarker); ok {
			name = strings.TrimSpace(rest)
		} else if rest, ok := strings.CutPrefix(line, versionMarker); ok {
			version = strings.TrimSpace(rest)
		}
	}
	//
	if name == "" {
		return nil
	}
	//
	return &ModuleMetadata{
		Name:         name,
		Version:      version,
		Functions:    make(map[string]FunctionMetadata),
		SourcePath:   path,
		materializer: materializeFromSource,
	}
}

// materializeFromSource parses a discovered module's backing file and
// populates its function set from the top-level function definitions.
func materializeFromSource(m *ModuleMetadata) error {
	bytes, err := os.ReadFile(m.SourcePath)
	if err != nil {
		return err
	}
	//
	stmts, _, errs := parser.ParseFile(source.NewFile(m.SourcePath, bytes))
	if len(errs) > 0 {
		return &errs[0]
	}
	//
	for _, s := range stmts {
		if fn, ok := s.(*ast.FunctionDef); ok {
			arity := uint(len(fn.Params))
			m.Functions[fn.Name] = FunctionMetadata{Name: fn.Name, MinArity: arity, MaxArity: arity}
		}
	}
	//
	return nil
}
