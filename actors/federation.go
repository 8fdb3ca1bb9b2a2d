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
	"context"
	"time"

	"github.com/convoy-run/convoy/address"
)

// RemoteRef is the location-transparent handle to an actor hosted by a
// remote orchestrator. The Master drives the same lifecycle handshakes
// through it that it drives on local PIDs.
type RemoteRef interface {
	// Name returns the actor's name within its owning system.
	Name() string
	// Location returns the actor's resolved location.
	Location() *address.Location
	// Init performs the remote initialize handshake.
	Init(ctx context.Context, config Config, timeout time.Duration) error
	// Start performs the remote start handshake.
	Start(ctx context.Context, timeout time.Duration) error
	// Terminate performs the remote terminate handshake and reports the
	// actor's answer.
	Terminate(ctx context.Context, timeout time.Duration) (TerminateOutcome, error)
}

// SatelliteRef is the handle to a discovered remote orchestrator together
// with the endpoint URI it was resolved from. The Master proxies clock,
// start and terminate control through it, and resolves remote actors under
// it.
type SatelliteRef interface {
	// Location returns the satellite's master location.
	Location() *address.Location
	// LookupActor resolves a named actor at the satellite. It returns
	// errors.ErrRemoteActorNotFound when the remote answered negatively and
	// errors.ErrResolutionTimeout when it did not answer.
	LookupActor(ctx context.Context, name string, timeout time.Duration) (RemoteRef, error)
	// SpawnActor instantiates a named actor remotely from a registered
	// implementation identifier.
	SpawnActor(ctx context.Context, name, kind string, config Config, timeout time.Duration) (RemoteRef, error)
	// Watch deathwatches a remote actor: when the satellite connection is
	// lost or the actor stops, watcher receives a Terminated message.
	Watch(name string, watcher *PID)
	// StartClock resets the satellite's clock and resumes it.
	StartClock(ctx context.Context, simTime time.Time, scale float64, timeout time.Duration) error
	// SyncClock resets the satellite's clock without resuming it.
	SyncClock(ctx context.Context, simTime time.Time, scale float64, timeout time.Duration) error
	// StopClock freezes the satellite's clock.
	StopClock(ctx context.Context, timeout time.Duration) error
	// ResumeClock un-pauses the satellite's clock.
	ResumeClock(ctx context.Context, timeout time.Duration) error
	// Start asks the satellite orchestrator to run its own start phase.
	Start(ctx context.Context, timeout time.Duration) error
	// Terminate asks the satellite orchestrator to run its own termination.
	Terminate(ctx context.Context, timeout time.Duration) error
	// Close releases the satellite connection.
	Close() error
}

// MasterResolver discovers remote orchestrators by endpoint location. It is
// implemented by the remote transport layer and attached to a System at
// composition time.
type MasterResolver interface {
	// LookupMaster resolves the orchestrator at the given location with a
	// distinguishable outcome: a SatelliteRef on success,
	// errors.ErrRemoteMasterNotFound when the process answered but hosts no
	// such orchestrator, and errors.ErrResolutionTimeout when the endpoint
	// did not answer in time.
	LookupMaster(ctx context.Context, location *address.Location, timeout time.Duration) (SatelliteRef, error)
}

// RemoteSubscriptions lets local actors subscribe to bus channels fed by
// remote endpoints. Implemented by the remote transport layer.
type RemoteSubscriptions interface {
	// SubscribeRemote asks the remote endpoint to forward the channel here.
	SubscribeRemote(ctx context.Context, location *address.Location, channel string) error
	// UnsubscribeRemote reverses SubscribeRemote.
	UnsubscribeRemote(ctx context.Context, location *address.Location, channel string) error
}
