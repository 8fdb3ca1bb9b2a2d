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
	"time"

	"github.com/convoy-run/convoy/errors"
)

// Default per-actor lifecycle timeouts, used when a Spec carries no override.
const (
	DefaultCreateTimeout    = 10 * time.Second
	DefaultInitTimeout      = 10 * time.Second
	DefaultStartTimeout     = 5 * time.Second
	DefaultTerminateTimeout = 5 * time.Second
)

// Config is the free-form configuration blob of one actor. It is resolved
// externally (configuration loading is not part of this runtime) and handed
// to the actor's Init hook untouched.
type Config map[string]any

// GetString returns the string under key, or def when absent or of another type.
func (c Config) GetString(key, def string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return def
}

// GetInt returns the integer under key, or def when absent or of another type.
func (c Config) GetInt(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// GetFloat returns the float under key, or def when absent or of another type.
func (c Config) GetFloat(key string, def float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// GetBool returns the boolean under key, or def when absent or of another type.
func (c Config) GetBool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// GetDuration returns the duration under key, accepting either a
// time.Duration value or a parseable duration string, or def otherwise.
func (c Config) GetDuration(key string, def time.Duration) time.Duration {
	switch v := c[key].(type) {
	case time.Duration:
		return v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Timeouts carries the optional per-actor lifecycle timeout overrides of a
// Spec. Zero values fall back to the package defaults.
type Timeouts struct {
	Create    time.Duration
	Init      time.Duration
	Start     time.Duration
	Terminate time.Duration
}

func (t Timeouts) create() time.Duration {
	if t.Create > 0 {
		return t.Create
	}
	return DefaultCreateTimeout
}

func (t Timeouts) init() time.Duration {
	if t.Init > 0 {
		return t.Init
	}
	return DefaultInitTimeout
}

func (t Timeouts) start() time.Duration {
	if t.Start > 0 {
		return t.Start
	}
	return DefaultStartTimeout
}

func (t Timeouts) terminate() time.Duration {
	if t.Terminate > 0 {
		return t.Terminate
	}
	return DefaultTerminateTimeout
}

// Spec is the immutable description of one actor, produced at load time from
// the resolved specification. It is never mutated once orchestration begins.
type Spec struct {
	// Name is unique within the owning orchestrator.
	Name string
	// Kind is the implementation identifier resolved through the Registry.
	// A remote Spec may leave it empty, which makes the actor lookup-only.
	Kind string
	// Config is the actor's free-form configuration blob.
	Config Config
	// Optional marks an actor whose absence or resolution failure during the
	// Create phase is non-fatal.
	Optional bool
	// Remote, when non-empty, is the location URI of the remote orchestrator
	// that owns or hosts the actor (tcp://host:port/system).
	Remote string
	// Timeouts are the per-actor lifecycle timeout overrides.
	Timeouts Timeouts
}

// Validate checks the spec for structural problems.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: actor spec without a name", errors.ErrInstantiation)
	}
	if s.Remote == "" && s.Kind == "" {
		return fmt.Errorf("%w: local actor %q has no implementation identifier", errors.ErrInstantiation, s.Name)
	}
	return nil
}

// IsRemote reports whether the spec declares a remote endpoint.
func (s *Spec) IsRemote() bool {
	return s.Remote != ""
}
