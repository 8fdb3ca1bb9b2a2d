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

// Package errors defines the error values shared by the convoy runtime.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrDead indicates that the actor is no longer alive or has been terminated.
	ErrDead = errors.New("actor is not alive")

	// ErrActorNotFound indicates that the specified actor could not be found in the system.
	ErrActorNotFound = errors.New("actor not found")

	// ErrDuplicateName is returned when an actor name is already taken within its system.
	ErrDuplicateName = errors.New("actor name already in use")

	// ErrAskTimeout indicates that an Ask did not receive a response in time.
	ErrAskTimeout = errors.New("ask timed out")

	// ErrTypeNotRegistered is returned when an implementation identifier has no
	// registered factory.
	ErrTypeNotRegistered = errors.New("actor type is not registered")

	// ErrInstantiation is returned when an actor implementation cannot be constructed.
	ErrInstantiation = errors.New("failed to instantiate actor")

	// ErrTerminateIgnored is the sentinel an actor returns from Terminate to
	// decline termination and outlive the current run.
	ErrTerminateIgnored = errors.New("terminate ignored")

	// ErrInvalidEndpoint is returned when a location URI cannot be parsed.
	ErrInvalidEndpoint = errors.New("invalid endpoint URI")

	// ErrResolutionTimeout indicates that a remote endpoint did not respond to
	// resolution within the allotted time.
	ErrResolutionTimeout = errors.New("remote resolution timed out")

	// ErrRemoteMasterNotFound indicates that the remote process answered but no
	// orchestrator with the requested name exists there.
	ErrRemoteMasterNotFound = errors.New("remote master not found")

	// ErrRemoteActorNotFound indicates that the remote orchestrator answered but
	// the named actor does not exist there.
	ErrRemoteActorNotFound = errors.New("remote actor not found")

	// ErrConflictingHost is returned when a new satellite endpoint resolves to a
	// host already targeted by an existing satellite.
	ErrConflictingHost = errors.New("endpoint conflicts with an existing satellite host")

	// ErrUntrustedInitiator is returned when a lifecycle control message does not
	// originate from the process-internal trusted initiator.
	ErrUntrustedInitiator = errors.New("lifecycle control from untrusted initiator")

	// ErrRemotingDisabled is returned when a remote operation is attempted on a
	// system that has no remote node attached.
	ErrRemotingDisabled = errors.New("remoting is not enabled")

	// ErrNodeClosed is returned when a wire operation is attempted on a closed
	// remote node or connection.
	ErrNodeClosed = errors.New("remote node is closed")

	// ErrSchedulerNotStarted is returned when attempting to use the scheduler
	// before it has started.
	ErrSchedulerNotStarted = errors.New("scheduler has not started")

	// ErrSystemNotRunning indicates that the actor system has not been started
	// before use.
	ErrSystemNotRunning = errors.New("actor system is not running")
)

// Phase identifies one step of the orchestration lifecycle.
type Phase string

const (
	// PhaseCreate is the actor creation/resolution phase.
	PhaseCreate Phase = "create"
	// PhaseInitialize is the actor initialization phase.
	PhaseInitialize Phase = "initialize"
	// PhaseStart is the actor start phase.
	PhaseStart Phase = "start"
	// PhaseTerminate is the actor termination phase.
	PhaseTerminate Phase = "terminate"
)

// PhaseError reports a lifecycle failure together with the name of the actor
// that caused it. Create and Initialize failures surface to the caller wrapped
// in a PhaseError so that diagnostics always name the offending actor.
type PhaseError struct {
	// Phase is the lifecycle phase that failed.
	Phase Phase
	// Actor is the name of the offending actor.
	Actor string
	// Err is the originating reason.
	Err error
}

// NewPhaseError creates a PhaseError for the given phase and actor.
func NewPhaseError(phase Phase, actor string, err error) *PhaseError {
	return &PhaseError{Phase: phase, Actor: actor, Err: err}
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s failed for actor %q: %v", e.Phase, e.Actor, e.Err)
}

// Unwrap returns the originating reason.
func (e *PhaseError) Unwrap() error {
	return e.Err
}
