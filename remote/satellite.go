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

package remote

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/convoy-run/convoy/actors"
	"github.com/convoy-run/convoy/address"
	"github.com/convoy-run/convoy/errors"
)

// Satellite is the live handle to a federated remote orchestrator. It
// implements actors.SatelliteRef on top of the node's shared peer
// connection.
type Satellite struct {
	node     *Node
	peer     *peer
	location *address.Location
}

var _ actors.SatelliteRef = (*Satellite)(nil)

// Location returns the satellite's master location.
func (s *Satellite) Location() *address.Location {
	return s.location
}

// LookupActor resolves a named actor at the satellite.
func (s *Satellite) LookupActor(ctx context.Context, name string, timeout time.Duration) (actors.RemoteRef, error) {
	resp, err := s.peer.call(ctx, &frame{Kind: kindLookup, Actor: name}, timeout)
	if err != nil {
		if stderrors.Is(err, errors.ErrAskTimeout) {
			return nil, errors.ErrResolutionTimeout
		}
		return nil, err
	}
	if err := ackError(resp); err != nil {
		return nil, err
	}
	return s.actorRef(name), nil
}

// SpawnActor instantiates a named actor remotely from a registered
// implementation identifier.
func (s *Satellite) SpawnActor(ctx context.Context, name, kind string, config actors.Config, timeout time.Duration) (actors.RemoteRef, error) {
	resp, err := s.peer.call(ctx, &frame{
		Kind:      kindSpawn,
		Actor:     name,
		ActorKind: kind,
		Config:    config,
	}, timeout)
	if err != nil {
		return nil, err
	}
	if err := ackError(resp); err != nil {
		return nil, err
	}
	return s.actorRef(name), nil
}

// Watch deathwatches a remote actor. The watcher receives a Terminated
// message when the actor stops or the satellite connection is lost.
func (s *Satellite) Watch(name string, watcher *actors.PID) {
	s.peer.watch(name, watcher)
	if err := s.peer.send(&frame{Kind: kindWatch, Actor: name}); err != nil {
		s.node.logger.Warnf("deathwatch of %s at %s: %v", name, s.location, err)
	}
}

// StartClock resets the satellite's clock to the given simulated time and
// scale and resumes it.
func (s *Satellite) StartClock(ctx context.Context, simTime time.Time, scale float64, timeout time.Duration) error {
	return s.clockOp(ctx, clockStart, simTime, scale, timeout)
}

// SyncClock resets the satellite's clock without changing its run state.
func (s *Satellite) SyncClock(ctx context.Context, simTime time.Time, scale float64, timeout time.Duration) error {
	return s.clockOp(ctx, clockSync, simTime, scale, timeout)
}

// StopClock freezes the satellite's clock.
func (s *Satellite) StopClock(ctx context.Context, timeout time.Duration) error {
	return s.clockOp(ctx, clockStop, time.Time{}, 0, timeout)
}

// ResumeClock un-pauses the satellite's clock.
func (s *Satellite) ResumeClock(ctx context.Context, timeout time.Duration) error {
	return s.clockOp(ctx, clockResume, time.Time{}, 0, timeout)
}

// Start asks the satellite orchestrator to run its own start phase.
func (s *Satellite) Start(ctx context.Context, timeout time.Duration) error {
	resp, err := s.peer.call(ctx, &frame{Kind: kindControl, Phase: phaseStart}, timeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

// Terminate asks the satellite orchestrator to run its own termination
// round.
func (s *Satellite) Terminate(ctx context.Context, timeout time.Duration) error {
	resp, err := s.peer.call(ctx, &frame{Kind: kindControl, Phase: phaseTerminate}, timeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

// Close releases the satellite handle. The underlying connection is shared
// with bus forwarding and stays owned by the node.
func (s *Satellite) Close() error {
	return nil
}

func (s *Satellite) clockOp(ctx context.Context, op string, simTime time.Time, scale float64, timeout time.Duration) error {
	resp, err := s.peer.call(ctx, &frame{
		Kind:    kindClock,
		Op:      op,
		SimTime: simTime,
		Scale:   scale,
	}, timeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

func (s *Satellite) actorRef(name string) *remoteActorRef {
	return &remoteActorRef{
		peer:     s.peer,
		name:     name,
		location: s.location.WithActor(name),
	}
}

// remoteActorRef drives lifecycle handshakes of one remote actor. It
// implements actors.RemoteRef.
type remoteActorRef struct {
	peer     *peer
	name     string
	location *address.Location
}

var _ actors.RemoteRef = (*remoteActorRef)(nil)

func (r *remoteActorRef) Name() string {
	return r.name
}

func (r *remoteActorRef) Location() *address.Location {
	return r.location
}

func (r *remoteActorRef) Init(ctx context.Context, config actors.Config, timeout time.Duration) error {
	resp, err := r.peer.call(ctx, &frame{
		Kind:   kindControl,
		Actor:  r.name,
		Phase:  phaseInit,
		Config: config,
	}, timeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

func (r *remoteActorRef) Start(ctx context.Context, timeout time.Duration) error {
	resp, err := r.peer.call(ctx, &frame{Kind: kindControl, Actor: r.name, Phase: phaseStart}, timeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

func (r *remoteActorRef) Terminate(ctx context.Context, timeout time.Duration) (actors.TerminateOutcome, error) {
	resp, err := r.peer.call(ctx, &frame{Kind: kindControl, Actor: r.name, Phase: phaseTerminate}, timeout)
	if err != nil {
		return actors.TerminateFailed, err
	}
	if err := ackError(resp); err != nil {
		return actors.TerminateFailed, err
	}
	return actors.TerminateOutcome(resp.Outcome), nil
}
