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

// Package bus implements the publish/subscribe channel router that unifies
// local and remote message delivery.
//
// Publishing is fire-and-forget: a channel with zero subscribers silently
// drops published values, and a publisher is never slowed down by slow or
// absent consumers. The bus models live event distribution, not a durable
// queue. Ordering between two publishes from the same publisher on the same
// channel is preserved for every individual subscriber; ordering across
// different publishers is not.
package bus

import (
	"sync"

	"github.com/convoy-run/convoy/log"
)

// Subscriber receives values published on channels it subscribed to.
// Delivery must not block the publisher; implementations enqueue and return.
type Subscriber interface {
	// ID returns the unique identifier of the subscriber within the bus.
	ID() string
	// Deliver hands a published value to the subscriber.
	Deliver(channel string, value any)
}

// Connector forwards locally published values to one remote endpoint, where
// they are republished under the same channel name. A connector is created
// lazily by the ConnectorFactory when a channel gains its first remote
// subscriber for the endpoint, and closed once the last remote subscription
// on that endpoint is removed.
type Connector interface {
	Subscriber
	// Endpoint returns the host:port of the remote endpoint.
	Endpoint() string
	// Close releases the connector's resources.
	Close() error
}

// ConnectorFactory creates the connector for a remote endpoint given as
// host:port. It is supplied by the remote transport layer.
type ConnectorFactory func(endpoint string) (Connector, error)

// Bus routes published values from channel names to subscriber sets.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topic
	// connectors are shared across channels, reference-counted per remote
	// subscription
	connectors map[string]*connectorEntry
	factory    ConnectorFactory
	logger     log.Logger
}

// topic holds the subscriber sets of one channel, keyed by subscriber ID for
// locals and by endpoint for remotes.
type topic struct {
	locals  map[string]Subscriber
	remotes map[string]Connector
}

type connectorEntry struct {
	connector Connector
	refs      int
}

// Option configures the Bus.
type Option func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(logger log.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// WithConnectorFactory enables remote subscriptions by supplying the factory
// used to create per-endpoint connectors.
func WithConnectorFactory(factory ConnectorFactory) Option {
	return func(b *Bus) {
		b.factory = factory
	}
}

// SetConnectorFactory installs the connector factory after construction. It
// is used when the remote transport layer is attached to an already-built
// system.
func (b *Bus) SetConnectorFactory(factory ConnectorFactory) {
	b.mu.Lock()
	b.factory = factory
	b.mu.Unlock()
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		topics:     make(map[string]*topic),
		connectors: make(map[string]*connectorEntry),
		logger:     log.DiscardLogger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe adds a local subscriber to a channel. Subscribing twice to the
// same channel is a no-op.
func (b *Bus) Subscribe(channel string, sub Subscriber) {
	b.mu.Lock()
	t, ok := b.topics[channel]
	if !ok {
		t = newTopic()
		b.topics[channel] = t
	}
	t.locals[sub.ID()] = sub
	b.mu.Unlock()
}

// Unsubscribe removes a local subscriber from a channel.
func (b *Bus) Unsubscribe(channel string, sub Subscriber) {
	b.mu.Lock()
	if t, ok := b.topics[channel]; ok {
		delete(t.locals, sub.ID())
		b.dropTopicIfEmpty(channel, t)
	}
	b.mu.Unlock()
}

// SubscribeRemote registers a remote endpoint (host:port) as a subscriber of
// a channel. The endpoint's connector is created lazily on the first remote
// subscription and shared across channels.
func (b *Bus) SubscribeRemote(channel, endpoint string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[channel]
	if !ok {
		t = newTopic()
		b.topics[channel] = t
	}

	if _, bound := t.remotes[endpoint]; bound {
		return nil
	}

	entry, ok := b.connectors[endpoint]
	if !ok {
		if b.factory == nil {
			return errNoFactory
		}
		connector, err := b.factory(endpoint)
		if err != nil {
			return err
		}
		entry = &connectorEntry{connector: connector}
		b.connectors[endpoint] = entry
	}

	entry.refs++
	t.remotes[endpoint] = entry.connector
	return nil
}

// UnsubscribeRemote removes a remote endpoint from a channel. The endpoint's
// connector is closed once its last subscription is gone.
func (b *Bus) UnsubscribeRemote(channel, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[channel]
	if !ok {
		return
	}
	if _, bound := t.remotes[endpoint]; !bound {
		return
	}
	delete(t.remotes, endpoint)
	b.dropTopicIfEmpty(channel, t)

	entry, ok := b.connectors[endpoint]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(b.connectors, endpoint)
		if err := entry.connector.Close(); err != nil {
			b.logger.Warnf("closing connector to %s: %v", endpoint, err)
		}
	}
}

// Publish delivers value to every local subscriber of channel and forwards it
// once to each distinct remote endpoint subscribed to the channel. It never
// blocks the publisher and never errors; a channel without subscribers drops
// the value.
func (b *Bus) Publish(channel string, value any) {
	locals, remotes := b.snapshot(channel)
	for _, sub := range locals {
		sub.Deliver(channel, value)
	}
	for _, connector := range remotes {
		connector.Deliver(channel, value)
	}
}

// PublishLocal delivers value to local subscribers only. It is used by the
// remote transport to republish inbound values without echoing them back
// across the wire.
func (b *Bus) PublishLocal(channel string, value any) {
	locals, _ := b.snapshot(channel)
	for _, sub := range locals {
		sub.Deliver(channel, value)
	}
}

// SubscribersCount returns the number of local subscribers of a channel.
func (b *Bus) SubscribersCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.topics[channel]; ok {
		return len(t.locals)
	}
	return 0
}

// RemoteEndpointsCount returns the number of distinct remote endpoints
// subscribed to a channel.
func (b *Bus) RemoteEndpointsCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.topics[channel]; ok {
		return len(t.remotes)
	}
	return 0
}

// Close drops all subscriptions and closes every connector.
func (b *Bus) Close() {
	b.mu.Lock()
	connectors := b.connectors
	b.topics = make(map[string]*topic)
	b.connectors = make(map[string]*connectorEntry)
	b.mu.Unlock()

	for endpoint, entry := range connectors {
		if err := entry.connector.Close(); err != nil {
			b.logger.Warnf("closing connector to %s: %v", endpoint, err)
		}
	}
}

// snapshot copies the subscriber sets of a channel so that delivery happens
// outside the lock.
func (b *Bus) snapshot(channel string) ([]Subscriber, []Connector) {
	b.mu.RLock()
	t, ok := b.topics[channel]
	if !ok || (len(t.locals) == 0 && len(t.remotes) == 0) {
		b.mu.RUnlock()
		return nil, nil
	}
	locals := make([]Subscriber, 0, len(t.locals))
	for _, sub := range t.locals {
		locals = append(locals, sub)
	}
	remotes := make([]Connector, 0, len(t.remotes))
	for _, connector := range t.remotes {
		remotes = append(remotes, connector)
	}
	b.mu.RUnlock()
	return locals, remotes
}

// dropTopicIfEmpty removes the channel entry when no subscriber is left.
// Callers must hold the write lock.
func (b *Bus) dropTopicIfEmpty(channel string, t *topic) {
	if len(t.locals) == 0 && len(t.remotes) == 0 {
		delete(b.topics, channel)
	}
}

func newTopic() *topic {
	return &topic{
		locals:  make(map[string]Subscriber),
		remotes: make(map[string]Connector),
	}
}
