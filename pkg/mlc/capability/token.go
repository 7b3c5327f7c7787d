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

// Package capability implements the capability model: unforgeable permission
// tokens with constraints and an integrity checksum, held in thread-scoped
// contexts with hierarchical delegation.  The same model (and the same
// canonical serialization) is implemented by the emitted runtime helpers;
// this package is the engine-side reference, used for validating declared
// capabilities at compile time.
package capability

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Constraints bound how a token may be used.  Only constraints actually
// present on a declared capability are enforced.
type Constraints struct {
	// Expiry is the instant after which the token is dead, if set.
	Expiry *time.Time
	// UsageCap bounds how many accesses the token authorizes, if set.
	UsageCap *uint64
	// MaxFileSize bounds file operations, in bytes, if set.
	MaxFileSize *int64
	// NetworkHosts enumerates the hosts a network token covers.
	NetworkHosts []string
}

// Token is an immutable permission certificate.  Its only mutable field is
// the usage counter, which is updated under the owning context's lock.
// Integrity is the SHA-256 of the canonical serialization of the preceding
// fields; any mutation invalidates the token.
type Token struct {
	// ID uniquely identifies this token.
	ID uuid.UUID
	// Type names the capability, e.g. "FileRead".
	Type string
	// Resources are the glob patterns this token covers.
	Resources []string
	// Operations are the permitted operation names.
	Operations map[string]bool
	// Constraints bound the token's use.
	Constraints Constraints
	// Checksum is the integrity hash over the canonical serialization.
	Checksum string
	// uses counts recorded accesses.  Guarded by the owning context.
	uses uint64
}

// New constructs a token for a given capability type, validating the
// resource patterns as it goes.
func New(capType string, resources []string, operations []string, constraints Constraints) (*Token, error) {
	if capType == "" {
		return nil, fmt.Errorf("capability type cannot be empty")
	} else if len(resources) == 0 {
		return nil, fmt.Errorf("capability %q declares no resource patterns", capType)
	} else if len(operations) == 0 {
		return nil, fmt.Errorf("capability %q declares no operations", capType)
	}
	// Check every pattern is well formed.
	for _, r := range resources {
		if err := CheckPattern(r); err != nil {
			return nil, fmt.Errorf("capability %q: %w", capType, err)
		}
	}
	//
	ops := make(map[string]bool, len(operations))
	for _, op := range operations {
		ops[op] = true
	}
	//
	token := &Token{
		ID:          uuid.New(),
		Type:        capType,
		Resources:   resources,
		Operations:  ops,
		Constraints: constraints,
	}
	token.Checksum = token.computeChecksum()
	//
	return token, nil
}

// CheckPattern determines whether a given resource glob is well formed.
func CheckPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty resource pattern")
	}
	//
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("malformed resource pattern %q", pattern)
	}
	//
	return nil
}

// Canonical produces the canonical serialization over which the checksum is
// computed.  The emitted runtime helpers use the same field layout, but
// render an expiry with Python's isoformat ("+00:00" rather than "Z"), so the
// two serializations differ for tokens carrying an expiry.
func (t *Token) Canonical() string {
	ops := make([]string, 0, len(t.Operations))
	for op := range t.Operations {
		ops = append(ops, op)
	}

	sort.Strings(ops)
	//
	fields := []string{
		"cap:v1",
		t.ID.String(),
		t.Type,
		strings.Join(t.Resources, ","),
		strings.Join(ops, ","),
		canonicalExpiry(t.Constraints.Expiry),
		canonicalUint(t.Constraints.UsageCap),
		canonicalInt(t.Constraints.MaxFileSize),
		strings.Join(t.Constraints.NetworkHosts, ","),
	}
	//
	return strings.Join(fields, "|")
}

func (t *Token) computeChecksum() string {
	sum := sha256.Sum256([]byte(t.Canonical()))
	return hex.EncodeToString(sum[:])
}

// Validate checks the token's integrity and constraints: the checksum must
// match a recomputation over the canonical serialization, the token must
// not have expired, and the usage cap must not be exhausted.
func (t *Token) Validate(now time.Time) error {
	if t.Checksum != t.computeChecksum() {
		return fmt.Errorf("capability %q: checksum mismatch (token tampered)", t.Type)
	}
	//
	if t.Expired(now) {
		return fmt.Errorf("capability %q: token expired", t.Type)
	}
	//
	if cap := t.Constraints.UsageCap; cap != nil && t.uses >= *cap {
		return fmt.Errorf("capability %q: usage cap exceeded", t.Type)
	}
	//
	return nil
}

// Expired checks whether the token's expiry constraint has passed.
func (t *Token) Expired(now time.Time) bool {
	return t.Constraints.Expiry != nil && now.After(*t.Constraints.Expiry)
}

// Allows determines whether this token authorizes a given operation on a
// given resource.
func (t *Token) Allows(resource string, operation string) bool {
	if !t.Operations[operation] {
		return false
	}
	//
	for _, pattern := range t.Resources {
		if ok, err := path.Match(pattern, resource); err == nil && ok {
			return true
		}
	}
	//
	return false
}

// Uses returns the number of recorded accesses.
func (t *Token) Uses() uint64 {
	return t.uses
}

func canonicalExpiry(expiry *time.Time) string {
	if expiry == nil {
		return ""
	}
	//
	return expiry.UTC().Format(time.RFC3339Nano)
}

func canonicalUint(v *uint64) string {
	if v == nil {
		return ""
	}
	//
	return strconv.FormatUint(*v, 10)
}

func canonicalInt(v *int64) string {
	if v == nil {
		return ""
	}
	//
	return strconv.FormatInt(*v, 10)
}
