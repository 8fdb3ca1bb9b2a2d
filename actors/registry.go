// MIT License
//
// Copyright (c) 2023-2026 Convoy Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package actors

import (
	"fmt"
	"sync"

	"github.com/convoy-run/convoy/errors"
)

// Factory constructs a fresh actor instance.
type Factory func() Actor

// Registry maps implementation identifiers to actor factories. New actor
// types are added by registering a factory at composition time; the runtime
// core never needs changes and uses no reflection.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register binds an implementation identifier to a factory. A later
// registration under the same identifier replaces the earlier one.
func (r *Registry) Register(kind string, factory Factory) {
	r.mu.Lock()
	r.factories[kind] = factory
	r.mu.Unlock()
}

// Deregister removes an implementation identifier.
func (r *Registry) Deregister(kind string) {
	r.mu.Lock()
	delete(r.factories, kind)
	r.mu.Unlock()
}

// Exists reports whether an identifier has a registered factory.
func (r *Registry) Exists(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[kind]
	return ok
}

// Create instantiates an actor by implementation identifier.
func (r *Registry) Create(kind string) (Actor, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrTypeNotRegistered, kind)
	}
	instance := factory()
	if instance == nil {
		return nil, fmt.Errorf("%w: factory for %q returned nil", errors.ErrInstantiation, kind)
	}
	return instance, nil
}
