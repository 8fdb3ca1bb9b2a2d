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

package bus

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingSubscriber struct {
	id string

	mu       sync.Mutex
	channels []string
	values   []any
}

func newRecordingSubscriber(id string) *recordingSubscriber {
	return &recordingSubscriber{id: id}
}

func (r *recordingSubscriber) ID() string {
	return r.id
}

func (r *recordingSubscriber) Deliver(channel string, value any) {
	r.mu.Lock()
	r.channels = append(r.channels, channel)
	r.values = append(r.values, value)
	r.mu.Unlock()
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

func (r *recordingSubscriber) last() (string, any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return "", nil
	}
	return r.channels[len(r.channels)-1], r.values[len(r.values)-1]
}

type recordingConnector struct {
	*recordingSubscriber
	endpoint string

	mu     sync.Mutex
	closed int
}

func newRecordingConnector(endpoint string) *recordingConnector {
	return &recordingConnector{
		recordingSubscriber: newRecordingSubscriber("connector:" + endpoint),
		endpoint:            endpoint,
	}
}

func (r *recordingConnector) Endpoint() string {
	return r.endpoint
}

func (r *recordingConnector) Close() error {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	return nil
}

func (r *recordingConnector) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func TestLocalPubSub(t *testing.T) {
	t.Run("With subscribed actors", func(t *testing.T) {
		b := New()
		one := newRecordingSubscriber("one")
		two := newRecordingSubscriber("two")
		b.Subscribe("tracks", one)
		b.Subscribe("tracks", two)
		require.Equal(t, 2, b.SubscribersCount("tracks"))

		b.Publish("tracks", "position-update")
		assert.Equal(t, 1, one.count())
		assert.Equal(t, 1, two.count())
		channel, value := one.last()
		assert.Equal(t, "tracks", channel)
		assert.Equal(t, "position-update", value)
	})
	t.Run("With a publication on a channel without subscribers", func(t *testing.T) {
		b := New()
		b.Publish("empty", 42)
		assert.Zero(t, b.SubscribersCount("empty"))
	})
	t.Run("With an unsubscribed actor", func(t *testing.T) {
		b := New()
		sub := newRecordingSubscriber("one")
		b.Subscribe("tracks", sub)
		b.Unsubscribe("tracks", sub)
		b.Publish("tracks", "position-update")
		assert.Zero(t, sub.count())
		assert.Zero(t, b.SubscribersCount("tracks"))
	})
	t.Run("With a duplicate subscription", func(t *testing.T) {
		b := New()
		sub := newRecordingSubscriber("one")
		b.Subscribe("tracks", sub)
		b.Subscribe("tracks", sub)
		require.Equal(t, 1, b.SubscribersCount("tracks"))
		b.Publish("tracks", "position-update")
		assert.Equal(t, 1, sub.count())
	})
}

func TestRemoteForwarding(t *testing.T) {
	t.Run("Without a connector factory", func(t *testing.T) {
		b := New()
		require.Error(t, b.SubscribeRemote("tracks", "10.0.0.7:9800"))
	})
	t.Run("With a shared connector across channels", func(t *testing.T) {
		var created []*recordingConnector
		b := New(WithConnectorFactory(func(endpoint string) (Connector, error) {
			c := newRecordingConnector(endpoint)
			created = append(created, c)
			return c, nil
		}))

		require.NoError(t, b.SubscribeRemote("tracks", "10.0.0.7:9800"))
		require.NoError(t, b.SubscribeRemote("alerts", "10.0.0.7:9800"))
		// one connection per endpoint, however many channels it carries
		require.Len(t, created, 1)
		assert.Equal(t, 1, b.RemoteEndpointsCount("tracks"))
		assert.Equal(t, 1, b.RemoteEndpointsCount("alerts"))

		b.Publish("tracks", "position-update")
		assert.Equal(t, 1, created[0].count())

		b.UnsubscribeRemote("tracks", "10.0.0.7:9800")
		assert.Zero(t, created[0].closeCount())
		b.UnsubscribeRemote("alerts", "10.0.0.7:9800")
		assert.Equal(t, 1, created[0].closeCount())
	})
	t.Run("With an inbound republication", func(t *testing.T) {
		connector := newRecordingConnector("10.0.0.7:9800")
		b := New(WithConnectorFactory(func(endpoint string) (Connector, error) {
			return connector, nil
		}))
		local := newRecordingSubscriber("local")
		b.Subscribe("tracks", local)
		require.NoError(t, b.SubscribeRemote("tracks", "10.0.0.7:9800"))

		// a value arriving from a remote peer reaches local subscribers but
		// is never echoed back out
		b.PublishLocal("tracks", "position-update")
		assert.Equal(t, 1, local.count())
		assert.Zero(t, connector.count())
	})
	t.Run("With a close of the whole bus", func(t *testing.T) {
		connector := newRecordingConnector("10.0.0.7:9800")
		b := New(WithConnectorFactory(func(endpoint string) (Connector, error) {
			return connector, nil
		}))
		require.NoError(t, b.SubscribeRemote("tracks", "10.0.0.7:9800"))
		b.Close()
		assert.Equal(t, 1, connector.closeCount())
	})
}
