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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoy-run/convoy/errors"
)

func TestSpecValidate(t *testing.T) {
	t.Run("With a valid local spec", func(t *testing.T) {
		spec := &Spec{Name: "importer", Kind: "tracking.importer"}
		require.NoError(t, spec.Validate())
		assert.False(t, spec.IsRemote())
	})
	t.Run("With a lookup-only remote spec", func(t *testing.T) {
		spec := &Spec{Name: "importer", Remote: "tcp://10.0.0.7:9800/tracking"}
		require.NoError(t, spec.Validate())
		assert.True(t, spec.IsRemote())
	})
	t.Run("With a missing name", func(t *testing.T) {
		spec := &Spec{Kind: "tracking.importer"}
		require.ErrorIs(t, spec.Validate(), errors.ErrInstantiation)
	})
	t.Run("With a local spec without implementation", func(t *testing.T) {
		spec := &Spec{Name: "importer"}
		require.ErrorIs(t, spec.Validate(), errors.ErrInstantiation)
	})
}

func TestConfig(t *testing.T) {
	config := Config{
		"path":     "/data/tracks",
		"workers":  4,
		"ratio":    0.5,
		"verbose":  true,
		"interval": "250ms",
	}
	t.Run("With present keys", func(t *testing.T) {
		assert.Equal(t, "/data/tracks", config.GetString("path", "fallback"))
		assert.Equal(t, 4, config.GetInt("workers", 1))
		assert.Equal(t, 0.5, config.GetFloat("ratio", 1.0))
		assert.True(t, config.GetBool("verbose", false))
		assert.Equal(t, 250*time.Millisecond, config.GetDuration("interval", time.Second))
	})
	t.Run("With absent or mistyped keys", func(t *testing.T) {
		assert.Equal(t, "fallback", config.GetString("missing", "fallback"))
		assert.Equal(t, 1, config.GetInt("path", 1))
		assert.Equal(t, 1.0, config.GetFloat("missing", 1.0))
		assert.False(t, config.GetBool("missing", false))
		assert.Equal(t, time.Second, config.GetDuration("path", time.Second))
	})
	t.Run("With numeric widening", func(t *testing.T) {
		config := Config{"workers": int64(8), "ratio": 2}
		assert.Equal(t, 8, config.GetInt("workers", 1))
		assert.Equal(t, 2.0, config.GetFloat("ratio", 1.0))
	})
}

func TestTimeouts(t *testing.T) {
	t.Run("With no overrides", func(t *testing.T) {
		var timeouts Timeouts
		assert.Equal(t, DefaultCreateTimeout, timeouts.create())
		assert.Equal(t, DefaultInitTimeout, timeouts.init())
		assert.Equal(t, DefaultStartTimeout, timeouts.start())
		assert.Equal(t, DefaultTerminateTimeout, timeouts.terminate())
	})
	t.Run("With overrides", func(t *testing.T) {
		timeouts := Timeouts{
			Create:    time.Second,
			Init:      2 * time.Second,
			Start:     3 * time.Second,
			Terminate: 4 * time.Second,
		}
		assert.Equal(t, time.Second, timeouts.create())
		assert.Equal(t, 2*time.Second, timeouts.init())
		assert.Equal(t, 3*time.Second, timeouts.start())
		assert.Equal(t, 4*time.Second, timeouts.terminate())
	})
}

func TestRegistry(t *testing.T) {
	t.Run("With a registered kind", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("tracking.importer", func() Actor { return NewFuncActor(nil) })
		require.True(t, registry.Exists("tracking.importer"))

		instance, err := registry.Create("tracking.importer")
		require.NoError(t, err)
		assert.NotNil(t, instance)
	})
	t.Run("With an unknown kind", func(t *testing.T) {
		registry := NewRegistry()
		_, err := registry.Create("tracking.importer")
		require.ErrorIs(t, err, errors.ErrTypeNotRegistered)
	})
	t.Run("With a factory returning nil", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("broken", func() Actor { return nil })
		_, err := registry.Create("broken")
		require.ErrorIs(t, err, errors.ErrInstantiation)
	})
	t.Run("With a deregistered kind", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("tracking.importer", func() Actor { return NewFuncActor(nil) })
		registry.Deregister("tracking.importer")
		assert.False(t, registry.Exists("tracking.importer"))
	})
}
