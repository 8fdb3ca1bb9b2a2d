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
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// RollCall collects answers from a dynamic set of recipients: Send unicasts
// the roll call to every recipient and arms a timeout; each recipient calls
// Answer. Once the answered set equals the asked set the originator receives
// exactly one RollCallComplete; if the timeout fires first it receives a
// RollCallTimeout with the subset that answered. Never both.
//
// A RollCall is a short-lived value, created per invocation and discarded
// once completion or timeout has been signaled. Answering twice, for example
// on a duplicate delivery, counts once.
type RollCall struct {
	id         string
	originator *PID
	parent     *RollCall

	mu       sync.Mutex
	asked    mapset.Set[string]
	answered mapset.Set[string]
	timer    *time.Timer
	done     bool
}

// NewRollCall creates a roll call reporting to the given originator.
func NewRollCall(originator *PID) *RollCall {
	return &RollCall{
		id:         uuid.NewString(),
		originator: originator,
		asked:      mapset.NewSet[string](),
		answered:   mapset.NewSet[string](),
	}
}

// NewSubRollCall creates a nested roll call: a recipient of a roll call may
// fan out its own collection before answering the parent.
func NewSubRollCall(originator *PID, parent *RollCall) *RollCall {
	rc := NewRollCall(originator)
	rc.parent = parent
	return rc
}

// ID returns the unique identifier of this roll call instance.
func (r *RollCall) ID() string {
	return r.id
}

// Parent returns the enclosing roll call, or nil.
func (r *RollCall) Parent() *RollCall {
	return r.parent
}

// Send records the requested recipient set, clears prior answers, unicasts
// the roll call to every recipient and arms the timeout. An empty recipient
// set completes immediately.
func (r *RollCall) Send(recipients []*PID, timeout time.Duration) {
	r.mu.Lock()
	r.asked.Clear()
	r.answered.Clear()
	r.done = false
	for _, recipient := range recipients {
		r.asked.Add(recipient.Name())
	}
	empty := r.asked.Cardinality() == 0
	if empty {
		r.done = true
	} else if timeout > 0 {
		r.timer = time.AfterFunc(timeout, r.onTimeout)
	}
	r.mu.Unlock()

	if empty {
		r.originator.Tell(&RollCallComplete{ID: r.id})
		return
	}
	for _, recipient := range recipients {
		recipient.Tell(&RollCallRequest{RollCall: r})
	}
}

// Answer records one recipient's answer. The call is idempotent per
// recipient; answers from handles that were never asked are ignored. When the
// final answer arrives the originator is notified exactly once.
func (r *RollCall) Answer(responder *PID) {
	r.AnswerName(responder.Name())
}

// AnswerName records an answer by recipient name.
func (r *RollCall) AnswerName(name string) {
	r.mu.Lock()
	if r.done || !r.asked.Contains(name) {
		r.mu.Unlock()
		return
	}
	r.answered.Add(name)
	complete := r.answered.Cardinality() == r.asked.Cardinality()
	if complete {
		r.done = true
		if r.timer != nil {
			r.timer.Stop()
		}
	}
	answered := r.answered.ToSlice()
	r.mu.Unlock()

	if complete {
		r.originator.Tell(&RollCallComplete{ID: r.id, Answered: answered})
	}
}

// Answered returns the names that have answered so far.
func (r *RollCall) Answered() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answered.ToSlice()
}

// onTimeout signals the originator with the partial answer set.
func (r *RollCall) onTimeout() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	answered := r.answered.ToSlice()
	missing := r.asked.Difference(r.answered).ToSlice()
	r.mu.Unlock()

	r.originator.Tell(&RollCallTimeout{ID: r.id, Answered: answered, Missing: missing})
}
