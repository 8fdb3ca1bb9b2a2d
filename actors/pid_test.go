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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

func newTestSystem(t *testing.T) *System {
	t.Helper()
	sys, err := NewSystem("testsys", nil, WithLogger(log.DiscardLogger))
	require.NoError(t, err)
	return sys
}

func awaitMessage(t *testing.T, ch <-chan any) any {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return nil
	}
}

func TestTell(t *testing.T) {
	t.Run("With a running actor", func(t *testing.T) {
		sys := newTestSystem(t)
		received := make(chan any, 1)
		pid := newPID("echo", NewFuncActor(func(rctx *ReceiveContext) {
			received <- rctx.Message()
		}), sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		pid.Tell("position-update")
		assert.Equal(t, "position-update", awaitMessage(t, received))
		assert.True(t, pid.IsRunning())
	})
	t.Run("With a stopped actor", func(t *testing.T) {
		sys := newTestSystem(t)
		received := make(chan any, 1)
		pid := newPID("echo", NewFuncActor(func(rctx *ReceiveContext) {
			received <- rctx.Message()
		}), sys, nil)
		require.NoError(t, pid.Shutdown(context.Background()))

		pid.Tell("position-update")
		select {
		case <-received:
			t.Fatal("a stopped actor must not receive messages")
		case <-time.After(50 * time.Millisecond):
		}
	})
	t.Run("With a bus delivery", func(t *testing.T) {
		sys := newTestSystem(t)
		received := make(chan any, 1)
		pid := newPID("echo", NewFuncActor(func(rctx *ReceiveContext) {
			received <- rctx.Message()
		}), sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		pid.Deliver("tracks", "position-update")
		msg, ok := awaitMessage(t, received).(*ChannelMessage)
		require.True(t, ok)
		assert.Equal(t, "tracks", msg.Channel)
		assert.Equal(t, "position-update", msg.Payload)
	})
}

func TestAsk(t *testing.T) {
	t.Run("With a responding actor", func(t *testing.T) {
		sys := newTestSystem(t)
		pid := newPID("doubler", NewFuncActor(func(rctx *ReceiveContext) {
			rctx.Respond(rctx.Message().(int) * 2)
		}), sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		value, err := pid.Ask(context.Background(), 21, time.Second)
		require.NoError(t, err)
		assert.Equal(t, 42, value)
	})
	t.Run("With a silent actor", func(t *testing.T) {
		sys := newTestSystem(t)
		pid := newPID("mute", NewFuncActor(nil), sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		_, err := pid.Ask(context.Background(), "anyone there", 50*time.Millisecond)
		require.ErrorIs(t, err, errors.ErrAskTimeout)
	})
	t.Run("With a failing actor", func(t *testing.T) {
		sys := newTestSystem(t)
		pid := newPID("grumpy", NewFuncActor(func(rctx *ReceiveContext) {
			rctx.Err(errors.ErrInstantiation)
		}), sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		_, err := pid.Ask(context.Background(), "do it", time.Second)
		require.ErrorIs(t, err, errors.ErrInstantiation)
	})
	t.Run("With a panicking actor", func(t *testing.T) {
		sys := newTestSystem(t)
		pid := newPID("volatile", NewFuncActor(func(*ReceiveContext) {
			panic("boom")
		}), sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		_, err := pid.Ask(context.Background(), "do it", time.Second)
		require.Error(t, err)
		// the loop survives the panic
		assert.True(t, pid.IsRunning())
	})
	t.Run("With a dead actor", func(t *testing.T) {
		sys := newTestSystem(t)
		pid := newPID("gone", NewFuncActor(nil), sys, nil)
		require.NoError(t, pid.Shutdown(context.Background()))

		_, err := pid.Ask(context.Background(), "anyone there", time.Second)
		require.ErrorIs(t, err, errors.ErrDead)
	})
}

func TestDeathwatch(t *testing.T) {
	t.Run("With a watched actor shutting down", func(t *testing.T) {
		sys := newTestSystem(t)
		notifications := make(chan any, 1)
		watcher := newPID("watcher", NewFuncActor(func(rctx *ReceiveContext) {
			notifications <- rctx.Message()
		}), sys, nil)
		defer watcher.Shutdown(context.Background()) //nolint:errcheck
		target := newPID("target", NewFuncActor(nil), sys, nil)

		target.Watch(watcher)
		require.NoError(t, target.Shutdown(context.Background()))

		terminated, ok := awaitMessage(t, notifications).(*Terminated)
		require.True(t, ok)
		assert.Equal(t, "target", terminated.Name)
	})
	t.Run("With an unwatched actor", func(t *testing.T) {
		sys := newTestSystem(t)
		notifications := make(chan any, 1)
		watcher := newPID("watcher", NewFuncActor(func(rctx *ReceiveContext) {
			notifications <- rctx.Message()
		}), sys, nil)
		defer watcher.Shutdown(context.Background()) //nolint:errcheck
		target := newPID("target", NewFuncActor(nil), sys, nil)

		target.Watch(watcher)
		target.UnWatch(watcher)
		require.NoError(t, target.Shutdown(context.Background()))

		select {
		case <-notifications:
			t.Fatal("unwatched actors must not be notified")
		case <-time.After(50 * time.Millisecond):
		}
	})
}

func TestWatchLocalActor(t *testing.T) {
	newWatchedSystem := func(t *testing.T) (*System, *PID) {
		t.Helper()
		sys := newTestSystem(t)
		sys.Registry().Register("probe", func() Actor { return NewFuncActor(nil) })
		pid, err := sys.SpawnFromRemote("beacon", "probe", nil)
		require.NoError(t, err)
		return sys, pid
	}

	t.Run("With a stopping actor", func(t *testing.T) {
		sys, pid := newWatchedSystem(t)
		notifications := make(chan *Terminated, 1)
		cancel, err := sys.WatchLocalActor("beacon", func(terminated *Terminated) {
			notifications <- terminated
		})
		require.NoError(t, err)
		defer cancel()

		require.NoError(t, pid.Shutdown(context.Background()))
		select {
		case terminated := <-notifications:
			assert.Equal(t, "beacon", terminated.Name)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for the deathwatch notification")
		}
	})
	t.Run("With a canceled watch", func(t *testing.T) {
		sys, pid := newWatchedSystem(t)
		notifications := make(chan *Terminated, 1)
		cancel, err := sys.WatchLocalActor("beacon", func(terminated *Terminated) {
			notifications <- terminated
		})
		require.NoError(t, err)
		cancel()
		cancel()

		require.NoError(t, pid.Shutdown(context.Background()))
		select {
		case <-notifications:
			t.Fatal("a canceled watch must not be notified")
		case <-time.After(50 * time.Millisecond):
		}
	})
	t.Run("With an unknown actor", func(t *testing.T) {
		sys := newTestSystem(t)
		_, err := sys.WatchLocalActor("phantom", func(*Terminated) {})
		require.ErrorIs(t, err, errors.ErrActorNotFound)
	})
}

// lifecycleProbe is an Actor whose hooks report into a channel and whose
// Terminate answer is scripted.
type lifecycleProbe struct {
	events       chan string
	terminateErr error
}

func (p *lifecycleProbe) Init(ctx *Context) error {
	p.events <- "init:" + ctx.Config().GetString("source", "")
	return nil
}

func (p *lifecycleProbe) Start(*Context) error {
	p.events <- "start"
	return nil
}

func (p *lifecycleProbe) Receive(*ReceiveContext) {}

func (p *lifecycleProbe) Terminate(*Context) error {
	p.events <- "terminate"
	return p.terminateErr
}

func TestLifecycleHandshakes(t *testing.T) {
	t.Run("With the initialize handshake", func(t *testing.T) {
		sys := newTestSystem(t)
		probe := &lifecycleProbe{events: make(chan string, 4)}
		pid := newPID("probe", probe, sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		_, err := pid.Ask(context.Background(), &initRequest{config: Config{"source": "sbs"}}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, "init:sbs", <-probe.events)
	})
	t.Run("With a confirmed termination", func(t *testing.T) {
		sys := newTestSystem(t)
		probe := &lifecycleProbe{events: make(chan string, 4)}
		pid := newPID("probe", probe, sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		value, err := pid.Ask(context.Background(), &terminateRequest{}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, TerminateCompleted, value)
	})
	t.Run("With a declined termination", func(t *testing.T) {
		sys := newTestSystem(t)
		probe := &lifecycleProbe{events: make(chan string, 4), terminateErr: errors.ErrTerminateIgnored}
		pid := newPID("probe", probe, sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		value, err := pid.Ask(context.Background(), &terminateRequest{}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, TerminateIgnored, value)
	})
	t.Run("With a failed termination", func(t *testing.T) {
		sys := newTestSystem(t)
		probe := &lifecycleProbe{events: make(chan string, 4), terminateErr: errors.ErrInstantiation}
		pid := newPID("probe", probe, sys, nil)
		defer pid.Shutdown(context.Background()) //nolint:errcheck

		_, err := pid.Ask(context.Background(), &terminateRequest{}, time.Second)
		require.ErrorIs(t, err, errors.ErrInstantiation)
	})
}
