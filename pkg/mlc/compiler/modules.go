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
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/consensys/go-mlc/pkg/mlc/analyzer"
	"github.com/consensys/go-mlc/pkg/mlc/registry"
)

// ModuleKind distinguishes stdlib modules from user modules.
type ModuleKind uint8

const (
	// StdlibModule is a module registered in the stdlib registry.
	StdlibModule ModuleKind = iota
	// UserModule is a .ml file found on the import path.
	UserModule
)

// ModuleRef is the result of resolving an import path.
type ModuleRef struct {
	Kind ModuleKind
	// Dotted path segments of the import.
	Path []string
	// Name bound in the importing unit (the final segment).
	Name string
	// SourcePath locates the backing file, for user modules.
	SourcePath string
}

// ResolveImport resolves a dotted import path against, first, the stdlib
// registry and, second, the configured import directories.  Anything else
// is a structured import error.
func ResolveImport(reg *registry.Registry, path []string, dirs []string) (ModuleRef, error) {
	name := path[len(path)-1]
	//
	if len(path) == 1 && reg != nil && reg.IsRegisteredModule(path[0]) {
		return ModuleRef{Kind: StdlibModule, Path: path, Name: name}, nil
	}
	//
	if src, ok := analyzer.FindUserModule(path, dirs); ok {
		return ModuleRef{Kind: UserModule, Path: path, Name: name, SourcePath: src}, nil
	}
	//
	return ModuleRef{}, fmt.Errorf("cannot resolve import '%s': neither a registered module nor a "+
		"user module on the import path", strings.Join(path, "."))
}

// CacheFilename is the sibling file storing the source-mtime to
// emitted-path association in multi-file mode.
const CacheFilename = ".mlc-cache.yaml"

// cacheRecord is one persisted cache entry.
type cacheRecord struct {
	Output      string `yaml:"output"`
	SourceMTime int64  `yaml:"source_mtime"`
}

// Cache coordinates user-module compilation outputs.  It guarantees at most
// one compile per source path per transpilation session (even with diamond
// imports), and reuses on-disk outputs which are newer than their source.
type Cache struct {
	mu      sync.Mutex
	records map[string]cacheRecord
	// session tracks the modules already compiled by this session.
	session map[string]bool
}

// NewCache constructs an empty cache.
func NewCache() *Cache {
	return &Cache{
		records: make(map[string]cacheRecord),
		session: make(map[string]bool),
	}
}

// Load reads the persisted cache sibling from an output directory, if
// present.
func (c *Cache) Load(outputDir string) error {
	bytes, err := os.ReadFile(filepath.Join(outputDir, CacheFilename))
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	//
	c.mu.Lock()
	defer c.mu.Unlock()
	//
	return yaml.Unmarshal(bytes, &c.records)
}

// Save writes the persisted cache sibling into an output directory.
func (c *Cache) Save(outputDir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	//
	bytes, err := yaml.Marshal(c.records)
	if err != nil {
		return err
	}
	//
	return os.WriteFile(filepath.Join(outputDir, CacheFilename), bytes, 0644)
}

// CompiledThisSession checks whether a source path was already handled by
// this session.
func (c *Cache) CompiledThisSession(sourcePath string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	//
	return c.session[sourcePath]
}

// NeedsEmit determines whether a source must be (re-)emitted: a source
// whose modification time is newer than its emitted file forces
// re-emission, otherwise the cached output is reused.
func (c *Cache) NeedsEmit(sourcePath string, outputPath string) bool {
	srcInfo, err := os.Stat(sourcePath)
	if err != nil {
		return true
	}
	//
	outInfo, err := os.Stat(outputPath)
	if err != nil {
		return true
	}
	//
	if srcInfo.ModTime().After(outInfo.ModTime()) {
		log.Debugf("stale cache entry for %s; re-emitting", sourcePath)
		return true
	}
	//
	return false
}

// MarkCompiled records that a source was handled by this session, together
// with its persisted association.
func (c *Cache) MarkCompiled(sourcePath string, outputPath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	//
	c.session[sourcePath] = true
	//
	mtime := int64(0)
	if info, err := os.Stat(sourcePath); err == nil {
		mtime = info.ModTime().Unix()
	}
	//
	c.records[sourcePath] = cacheRecord{Output: outputPath, SourceMTime: mtime}
}
