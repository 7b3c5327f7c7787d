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
package capability

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context holds a set of live tokens, with an optional parent link forming
// a tree for hierarchical delegation.  A child inherits its parent's
// visible tokens by reference; removing a token from a child does not
// affect the parent.  All operations are safe for concurrent use, and
// expired tokens are pruned on read.
type Context struct {
	mu     sync.Mutex
	parent *Context
	tokens map[uuid.UUID]*Token
	// masked records tokens hidden from this context despite being
	// visible in the parent.
	masked map[uuid.UUID]bool
}

// NewContext constructs a context, optionally linked to a parent.
func NewContext(parent *Context) *Context {
	return &Context{
		parent: parent,
		tokens: make(map[uuid.UUID]*Token),
		masked: make(map[uuid.UUID]bool),
	}
}

// Add places a token into this context.
func (c *Context) Add(token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	//
	c.tokens[token.ID] = token
	delete(c.masked, token.ID)
}

// Remove drops a token from this context's view.  If the token is inherited
// from the parent, it is masked locally; the parent keeps it.
func (c *Context) Remove(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	//
	delete(c.tokens, id)
	c.masked[id] = true
}

// Tokens returns the tokens visible in this context: its own plus those
// inherited from ancestors, minus masked and expired ones.
func (c *Context) Tokens() []*Token {
	return c.visible(time.Now())
}

func (c *Context) visible(now time.Time) []*Token {
	var (
		result []*Token
		seen   = make(map[uuid.UUID]bool)
	)
	//
	for ctx := c; ctx != nil; ctx = ctx.parent {
		ctx.mu.Lock()
		// Self-prune expired tokens on read.
		for id, t := range ctx.tokens {
			if t.Expired(now) {
				delete(ctx.tokens, id)
			}
		}
		//
		for id, t := range ctx.tokens {
			if !seen[id] && !c.isMasked(ctx, id) {
				seen[id] = true

				result = append(result, t)
			}
		}
		ctx.mu.Unlock()
	}
	//
	return result
}

// isMasked checks whether a token of an ancestor context (holder) is hidden
// anywhere on the path from this context up to (but excluding) the holder.
func (c *Context) isMasked(holder *Context, id uuid.UUID) bool {
	for ctx := c; ctx != nil && ctx != holder; ctx = ctx.parent {
		if ctx.masked[id] {
			return true
		}
	}
	//
	return false
}

// Has checks whether a live token of the given capability type is visible.
func (c *Context) Has(capType string) bool {
	_, ok := c.Find(capType)
	return ok
}

// Find returns the first live token of a given capability type.  Validation
// happens under the context lock, since it reads the usage counter.
func (c *Context) Find(capType string) (*Token, bool) {
	now := time.Now()
	//
	for _, t := range c.visible(now) {
		if t.Type != capType {
			continue
		}
		//
		c.mu.Lock()
		err := t.Validate(now)
		c.mu.Unlock()
		//
		if err == nil {
			return t, true
		}
	}
	//
	return nil, false
}

// Use locates a live token of the given type which allows the operation on
// the resource, validates it, and records one unit of usage.
func (c *Context) Use(capType string, resource string, operation string) error {
	now := time.Now()
	//
	for _, t := range c.visible(now) {
		if t.Type != capType || !t.Allows(resource, operation) {
			continue
		}
		//
		c.mu.Lock()
		err := t.Validate(now)
		//
		if err == nil {
			t.uses++
		}
		c.mu.Unlock()
		//
		return err
	}
	//
	return fmt.Errorf("missing capability %q for %s on %q", capType, operation, resource)
}

// Stack is the per-thread stack of capability contexts.  Entry and exit are
// scoped: With guarantees exit on all paths, including panics.
type Stack struct {
	mu     sync.Mutex
	frames []*Context
}

// NewStack constructs an empty context stack.
func NewStack() *Stack {
	return &Stack{}
}

// Current returns the innermost context, or nil if none has been entered.
func (s *Stack) Current() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	//
	if n := len(s.frames); n > 0 {
		return s.frames[n-1]
	}
	//
	return nil
}

// Enter pushes a child of the current context holding the given tokens.
// Nesting is permitted.
func (s *Stack) Enter(tokens ...*Token) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	//
	var parent *Context
	if n := len(s.frames); n > 0 {
		parent = s.frames[n-1]
	}
	//
	ctx := NewContext(parent)
	for _, t := range tokens {
		ctx.Add(t)
	}
	//
	s.frames = append(s.frames, ctx)
	//
	return ctx
}

// Exit pops the innermost context.
func (s *Stack) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	//
	if n := len(s.frames); n > 0 {
		s.frames = s.frames[:n-1]
	}
}

// With runs a function inside a context holding the given tokens,
// guaranteeing exit on all paths.
func (s *Stack) With(tokens []*Token, fn func(*Context) error) error {
	ctx := s.Enter(tokens...)
	defer s.Exit()
	//
	return fn(ctx)
}
