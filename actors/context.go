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
	"github.com/convoy-run/convoy/clock"
	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

// Context is the messaging context handed to an actor's lifecycle hooks. It
// carries the actor's resolved configuration and its handles into the system:
// the bus, the logical clock and the scheduler.
type Context struct {
	ctx    context.Context
	self   *PID
	system *System
	config Config
}

// Context returns the underlying context.Context.
func (c *Context) Context() context.Context {
	return c.ctx
}

// Self returns the actor's own handle.
func (c *Context) Self() *PID {
	return c.self
}

// ActorSystem returns the owning system.
func (c *Context) ActorSystem() *System {
	return c.system
}

// Config returns the actor's configuration blob.
func (c *Context) Config() Config {
	return c.config
}

// Logger returns the system logger.
func (c *Context) Logger() log.Logger {
	return c.system.Logger()
}

// Clock returns the shared logical clock. Any actor reading "now" must go
// through this instance.
func (c *Context) Clock() *clock.Clock {
	return c.system.Clock()
}

// Subscribe adds the actor as a local subscriber of the given bus channel.
func (c *Context) Subscribe(channel string) {
	c.system.Bus().Subscribe(channel, c.self)
}

// Unsubscribe removes the actor from the given bus channel.
func (c *Context) Unsubscribe(channel string) {
	c.system.Bus().Unsubscribe(channel, c.self)
}

// Publish publishes a value on a bus channel, fire-and-forget.
func (c *Context) Publish(channel string, value any) {
	c.system.Bus().Publish(channel, value)
}

// SubscribeRemote subscribes the actor to a channel fed by the given remote
// endpoint: the remote bus gains a connector that republishes its values
// here, and the actor is locally subscribed to receive them.
func (c *Context) SubscribeRemote(location *address.Location, channel string) error {
	subs := c.system.remoteSubscriptions()
	if subs == nil {
		return errors.ErrRemotingDisabled
	}
	if err := subs.SubscribeRemote(c.ctx, location, channel); err != nil {
		return err
	}
	c.Subscribe(channel)
	return nil
}

// UnsubscribeRemote reverses SubscribeRemote.
func (c *Context) UnsubscribeRemote(location *address.Location, channel string) error {
	subs := c.system.remoteSubscriptions()
	if subs == nil {
		return errors.ErrRemotingDisabled
	}
	c.Unsubscribe(channel)
	return subs.UnsubscribeRemote(c.ctx, location, channel)
}

// ScheduleOnce delivers message to the actor itself after the given delay.
func (c *Context) ScheduleOnce(message any, delay time.Duration) error {
	return c.system.scheduler.ScheduleOnce(message, c.self, delay)
}

// Schedule delivers message to the actor itself at the given interval.
func (c *Context) Schedule(message any, interval time.Duration) error {
	return c.system.scheduler.Schedule(message, c.self, interval)
}

// ReceiveContext wraps one application message during its handling.
type ReceiveContext struct {
	ctx      context.Context
	message  any
	sender   *PID
	self     *PID
	system   *System
	response *future
}

// Context returns the underlying context.Context.
func (rc *ReceiveContext) Context() context.Context {
	return rc.ctx
}

// Message returns the received message.
func (rc *ReceiveContext) Message() any {
	return rc.message
}

// Sender returns the sending actor's handle, or nil when the message did not
// originate from an actor.
func (rc *ReceiveContext) Sender() *PID {
	return rc.sender
}

// Self returns the receiving actor's handle.
func (rc *ReceiveContext) Self() *PID {
	return rc.self
}

// ActorSystem returns the owning system.
func (rc *ReceiveContext) ActorSystem() *System {
	return rc.system
}

// Logger returns the system logger.
func (rc *ReceiveContext) Logger() log.Logger {
	return rc.system.Logger()
}

// Publish publishes a value on a bus channel, fire-and-forget.
func (rc *ReceiveContext) Publish(channel string, value any) {
	rc.system.Bus().Publish(channel, value)
}

// Respond answers the message when it was asked. For plain tells the response
// is dropped.
func (rc *ReceiveContext) Respond(value any) {
	if rc.response != nil {
		rc.response.complete(value, nil)
	}
}

// Err fails the ask that carried this message. For plain tells the error is
// logged and dropped.
func (rc *ReceiveContext) Err(err error) {
	if rc.response != nil {
		rc.response.complete(nil, err)
		return
	}
	rc.Logger().Warnf("actor %s dropped error response: %v", rc.self.Name(), err)
}
