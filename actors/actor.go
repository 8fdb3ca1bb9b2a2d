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

// Package actors implements the convoy actor system: a minimal message-only
// substrate (mailboxes, handles, deathwatch, ask-with-timeout) and the Master
// orchestrator that creates, initializes, starts and terminates the full set
// of actors of a process in a deterministic order, federating with remote
// orchestrators where the specification demands it.
package actors

import (
	stderrors "errors"

	"github.com/convoy-run/convoy/errors"
)

// Actor is the contract every pluggable unit implements, local or remote.
//
// The orchestrator drives the lifecycle hooks in order: Init is called once
// with the actor's resolved configuration and messaging context, Start once
// after the whole system is initialized and the logical clock is running, and
// Terminate when the system shuts down. Between Start and Terminate the actor
// receives application messages, including values published on bus channels
// it subscribed to, through Receive.
//
// Implementations own no goroutines of their own unless they manage them
// explicitly; all hooks and Receive run on the actor's single message loop,
// one message at a time.
type Actor interface {
	// Init prepares the actor for operation: acquire resources, subscribe to
	// bus channels, validate configuration. Returning an error is fatal for
	// the whole system.
	Init(ctx *Context) error

	// Start begins active operation. A returned error is reported as a
	// warning by the orchestrator; the system keeps running.
	Start(ctx *Context) error

	// Receive handles one application message.
	Receive(ctx *ReceiveContext)

	// Terminate shuts the actor down. Returning nil confirms termination and
	// removes the actor from the orchestrator's table. Returning
	// errors.ErrTerminateIgnored declines termination so the actor outlives
	// the current run. Any other error keeps the actor in the table for a
	// later termination retry.
	Terminate(ctx *Context) error
}

// FuncActor adapts a receive function to the Actor contract with no-op
// lifecycle hooks. It is handy for small system-internal actors and tests.
type FuncActor struct {
	receive func(ctx *ReceiveContext)
}

var _ Actor = (*FuncActor)(nil)

// NewFuncActor creates a FuncActor from the given receive function.
func NewFuncActor(receive func(ctx *ReceiveContext)) *FuncActor {
	return &FuncActor{receive: receive}
}

// Init implements Actor.
func (f *FuncActor) Init(*Context) error { return nil }

// Start implements Actor.
func (f *FuncActor) Start(*Context) error { return nil }

// Receive implements Actor.
func (f *FuncActor) Receive(ctx *ReceiveContext) {
	if f.receive != nil {
		f.receive(ctx)
	}
}

// Terminate implements Actor.
func (f *FuncActor) Terminate(*Context) error { return nil }

// terminateOutcomeOf maps a Terminate hook result to its outcome.
func terminateOutcomeOf(err error) TerminateOutcome {
	switch {
	case err == nil:
		return TerminateCompleted
	case stderrors.Is(err, errors.ErrTerminateIgnored):
		return TerminateIgnored
	default:
		return TerminateFailed
	}
}
