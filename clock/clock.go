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

// Package clock implements the shared logical clock of a convoy process.
//
// The clock maps wall time to simulated time through a scale factor. Every
// component reading "now" goes through the single Clock instance owned by the
// orchestrator, which guarantees a consistent view across the process and,
// via clock propagation, across a whole federation.
package clock

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Clock is a pausable, rescalable simulation clock.
//
// Now is always derived from the wall-clock delta since the last reset or
// resume boundary multiplied by the scale factor. It is never incremented, so
// it cannot drift. The zero value is not usable; construct with New.
type Clock struct {
	mu sync.RWMutex
	// simulated time at the last reset/resume boundary
	base time.Time
	// wall time at the last reset/resume boundary
	wall time.Time
	// ratio of simulated time to wall time
	scale   float64
	stopped *atomic.Bool
}

// New creates a running Clock with simulated time equal to wall time and a
// scale factor of 1.
func New() *Clock {
	now := time.Now()
	return &Clock{
		base:    now,
		wall:    now,
		scale:   1.0,
		stopped: atomic.NewBool(false),
	}
}

// Reset sets the simulated time and scale factor authoritatively. It is used
// when a process is told what time it is, typically by the orchestrator that
// owns the clock of record. Reset does not change the running/stopped state.
func (c *Clock) Reset(simTime time.Time, scale float64) {
	if scale <= 0 {
		scale = 1.0
	}
	c.mu.Lock()
	c.base = simTime
	c.wall = time.Now()
	c.scale = scale
	c.mu.Unlock()
}

// Now returns the current simulated time. While stopped the returned value is
// constant.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped.Load() {
		return c.base
	}
	elapsed := time.Since(c.wall)
	return c.base.Add(time.Duration(float64(elapsed) * c.scale))
}

// Stop freezes elapsed-time advancement. Now keeps returning the simulated
// time at which the clock was stopped until Resume is called.
func (c *Clock) Stop() {
	c.mu.Lock()
	if !c.stopped.Load() {
		elapsed := time.Since(c.wall)
		c.base = c.base.Add(time.Duration(float64(elapsed) * c.scale))
		c.wall = time.Now()
		c.stopped.Store(true)
	}
	c.mu.Unlock()
}

// Resume un-pauses elapsed-time advancement without changing the scale.
// Resuming a running clock is a no-op.
func (c *Clock) Resume() {
	c.mu.Lock()
	if c.stopped.Load() {
		c.wall = time.Now()
		c.stopped.Store(false)
	}
	c.mu.Unlock()
}

// Scale returns the current scale factor.
func (c *Clock) Scale() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scale
}

// IsStopped reports whether elapsed-time advancement is frozen.
func (c *Clock) IsStopped() bool {
	return c.stopped.Load()
}

// Snapshot returns the current simulated time and scale factor in one
// consistent read. It is the value pair propagated to satellites.
func (c *Clock) Snapshot() (time.Time, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.stopped.Load() {
		return c.base, c.scale
	}
	elapsed := time.Since(c.wall)
	return c.base.Add(time.Duration(float64(elapsed) * c.scale)), c.scale
}
