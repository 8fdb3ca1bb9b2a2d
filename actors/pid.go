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
	stderrors "errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

// PID is the handle to one running local actor. It owns the actor's mailbox
// and its single consumer goroutine; all messages, including lifecycle
// requests, are processed one at a time on that goroutine.
//
// PIDs are created exclusively by the owning System during the Create phase.
// Other components receive handles, they never construct their own.
type PID struct {
	name    string
	actor   Actor
	system  *System
	logger  log.Logger
	config  Config
	mailbox *mailbox

	// signal wakes the consumer loop after an enqueue
	signal    chan struct{}
	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   *atomic.Bool

	watchersMu sync.Mutex
	watchers   map[string]*PID
}

// newPID creates the handle and starts its message loop.
func newPID(name string, actor Actor, system *System, config Config) *PID {
	p := &PID{
		name:      name,
		actor:     actor,
		system:    system,
		logger:    system.Logger(),
		config:    config,
		mailbox:   newMailbox(),
		signal:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
		running:   atomic.NewBool(true),
		watchers:  make(map[string]*PID),
	}
	go p.receiveLoop()
	return p
}

// Name returns the actor's unique name within its system.
func (p *PID) Name() string {
	return p.name
}

// ID implements bus.Subscriber.
func (p *PID) ID() string {
	return p.name
}

// Deliver implements bus.Subscriber: published values arrive in the actor's
// mailbox as ChannelMessage.
func (p *PID) Deliver(channel string, value any) {
	p.Tell(&ChannelMessage{Channel: channel, Payload: value})
}

// IsRunning reports whether the actor still processes messages.
func (p *PID) IsRunning() bool {
	return p.running.Load()
}

// Tell sends a message to the actor, fire-and-forget. Messages to a stopped
// actor are dropped.
func (p *PID) Tell(message any) {
	p.TellFrom(nil, message)
}

// TellFrom sends a message carrying the sender's handle.
func (p *PID) TellFrom(sender *PID, message any) {
	if !p.running.Load() {
		p.logger.Debugf("dropping message %T to stopped actor %s", message, p.name)
		return
	}
	p.enqueue(&ReceiveContext{
		ctx:     context.Background(),
		message: message,
		sender:  sender,
		self:    p,
		system:  p.system,
	})
}

// Ask sends a message and blocks the calling goroutine until the actor
// responds, the timeout elapses, or ctx is canceled. Only the asking party is
// suspended; the actor substrate keeps running.
func (p *PID) Ask(ctx context.Context, message any, timeout time.Duration) (any, error) {
	if !p.running.Load() {
		return nil, fmt.Errorf("%w: %s", errors.ErrDead, p.name)
	}

	f := newFuture()
	p.enqueue(&ReceiveContext{
		ctx:      ctx,
		message:  message,
		self:     p,
		system:   p.system,
		response: f,
	})

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	value, err := f.Await(ctx)
	if err != nil && stderrors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s did not answer within %v", errors.ErrAskTimeout, p.name, timeout)
	}
	return value, err
}

// Watch registers a deathwatch: when this actor stops, watcher receives a
// Terminated message.
func (p *PID) Watch(watcher *PID) {
	p.watchersMu.Lock()
	p.watchers[watcher.Name()] = watcher
	p.watchersMu.Unlock()
}

// UnWatch removes a deathwatch registration.
func (p *PID) UnWatch(watcher *PID) {
	p.watchersMu.Lock()
	delete(p.watchers, watcher.Name())
	p.watchersMu.Unlock()
}

// Shutdown stops the message loop and waits for it to finish. Pending asks
// fail with ErrDead. Shutdown of an already-stopped actor is a no-op.
func (p *PID) Shutdown(ctx context.Context) error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	close(p.stopCh)
	select {
	case <-p.stoppedCh:
	case <-ctx.Done():
		return ctx.Err()
	}
	p.system.unregister(p)
	p.notifyWatchers()
	return nil
}

// enqueue appends the message and wakes the consumer.
func (p *PID) enqueue(rctx *ReceiveContext) {
	p.mailbox.Enqueue(rctx)
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// receiveLoop is the actor's single consumer goroutine.
func (p *PID) receiveLoop() {
	defer close(p.stoppedCh)
	for {
		select {
		case <-p.stopCh:
			p.drain()
			return
		case <-p.signal:
			for {
				rctx := p.mailbox.Dequeue()
				if rctx == nil {
					break
				}
				p.handle(rctx)
			}
		}
	}
}

// drain fails any pending asks left in the mailbox at shutdown.
func (p *PID) drain() {
	for {
		rctx := p.mailbox.Dequeue()
		if rctx == nil {
			return
		}
		if rctx.response != nil {
			rctx.response.complete(nil, fmt.Errorf("%w: %s", errors.ErrDead, p.name))
		}
	}
}

// handle dispatches one message. Lifecycle requests invoke the corresponding
// actor hooks; everything else goes to Receive. Panics are contained to the
// message being processed.
func (p *PID) handle(rctx *ReceiveContext) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("actor %s panicked: %v", p.name, r)
			p.logger.Errorf("%v\n%s", err, debug.Stack())
			if rctx.response != nil {
				rctx.response.complete(nil, err)
			}
		}
	}()

	switch msg := rctx.message.(type) {
	case *initRequest:
		if err := p.actor.Init(p.lifecycleContext(rctx.ctx, msg.config)); err != nil {
			rctx.Err(err)
			return
		}
		rctx.Respond(ack{})
	case *startRequest:
		if err := p.actor.Start(p.lifecycleContext(rctx.ctx, p.config)); err != nil {
			rctx.Err(err)
			return
		}
		rctx.Respond(ack{})
	case *terminateRequest:
		err := p.actor.Terminate(p.lifecycleContext(rctx.ctx, p.config))
		outcome := terminateOutcomeOf(err)
		if outcome == TerminateFailed {
			rctx.Err(err)
			return
		}
		rctx.Respond(outcome)
	default:
		p.actor.Receive(rctx)
	}
}

// lifecycleContext builds the Context handed to lifecycle hooks.
func (p *PID) lifecycleContext(ctx context.Context, config Config) *Context {
	return &Context{
		ctx:    ctx,
		self:   p,
		system: p.system,
		config: config,
	}
}

// notifyWatchers delivers the deathwatch notifications.
func (p *PID) notifyWatchers() {
	p.watchersMu.Lock()
	watchers := make([]*PID, 0, len(p.watchers))
	for _, watcher := range p.watchers {
		watchers = append(watchers, watcher)
	}
	p.watchers = make(map[string]*PID)
	p.watchersMu.Unlock()

	for _, watcher := range watchers {
		watcher.Tell(&Terminated{Name: p.name})
	}
}
