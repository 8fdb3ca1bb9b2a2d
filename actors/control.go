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

	"github.com/google/uuid"

	"github.com/convoy-run/convoy/errors"
)

// Lifecycle handshakes on behalf of a federating orchestrator. These helpers
// are the only path by which code outside this package can drive lifecycle
// transitions of a local actor: the underlying control messages stay
// unexported, so application actors cannot forge them. The federation layer
// must authenticate a connection before calling in here.

// InitLocalActor runs the initialize handshake against the named local actor.
func (s *System) InitLocalActor(ctx context.Context, name string, config Config, timeout time.Duration) error {
	pid, ok := s.LocalActor(name)
	if !ok {
		return errors.ErrActorNotFound
	}
	_, err := pid.Ask(ctx, &initRequest{config: config}, timeout)
	return err
}

// StartLocalActor runs the start handshake against the named local actor.
func (s *System) StartLocalActor(ctx context.Context, name string, timeout time.Duration) error {
	pid, ok := s.LocalActor(name)
	if !ok {
		return errors.ErrActorNotFound
	}
	_, err := pid.Ask(ctx, &startRequest{}, timeout)
	return err
}

// TerminateLocalActor runs the terminate handshake against the named local
// actor and stops it when it confirms.
func (s *System) TerminateLocalActor(ctx context.Context, name string, timeout time.Duration) (TerminateOutcome, error) {
	pid, ok := s.LocalActor(name)
	if !ok {
		return TerminateFailed, errors.ErrActorNotFound
	}
	value, err := pid.Ask(ctx, &terminateRequest{}, timeout)
	if err != nil {
		return TerminateFailed, err
	}
	outcome, ok := value.(TerminateOutcome)
	if !ok {
		return TerminateFailed, nil
	}
	if outcome == TerminateCompleted {
		_ = pid.Shutdown(ctx)
	}
	return outcome, nil
}

// WatchLocalActor invokes notify once when the named local actor stops. The
// notification is delivered through an ephemeral watcher that dismantles
// itself afterwards. The returned cancel func releases the watcher without
// notifying; callers whose interest can outlive the watched actor, such as a
// federation connection, must invoke it on teardown. Cancel is idempotent and
// safe after the notification fired.
func (s *System) WatchLocalActor(name string, notify func(*Terminated)) (func(), error) {
	pid, ok := s.LocalActor(name)
	if !ok {
		return nil, errors.ErrActorNotFound
	}
	var watcher *PID
	watcher = newPID("watcher-"+uuid.NewString(), NewFuncActor(func(rctx *ReceiveContext) {
		if terminated, ok := rctx.Message().(*Terminated); ok {
			notify(terminated)
			go func() { _ = watcher.Shutdown(context.Background()) }()
		}
	}), s, nil)
	pid.Watch(watcher)
	cancel := func() {
		pid.UnWatch(watcher)
		_ = watcher.Shutdown(context.Background())
	}
	return cancel, nil
}
