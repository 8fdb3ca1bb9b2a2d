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
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travisjeffery/go-dynaport"

	"github.com/convoy-run/convoy/actors"
	"github.com/convoy-run/convoy/address"
	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

// wireProbe is an actor whose lifecycle hooks and received messages report
// into a channel.
type wireProbe struct {
	events chan string
}

func (p *wireProbe) Init(ctx *actors.Context) error {
	p.events <- "init:" + ctx.Config().GetString("source", "")
	return nil
}

func (p *wireProbe) Start(*actors.Context) error {
	p.events <- "start"
	return nil
}

func (p *wireProbe) Receive(rctx *actors.ReceiveContext) {
	if msg, ok := rctx.Message().(*actors.Terminated); ok {
		p.events <- "terminated:" + msg.Name
	}
}

func (p *wireProbe) Terminate(*actors.Context) error {
	p.events <- "terminate"
	return nil
}

func awaitEvent(t *testing.T, events <-chan string) string {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
		return ""
	}
}

// inbox is a bus subscriber collecting deliveries.
type inbox struct {
	id string

	mu     sync.Mutex
	values []any
	notify chan struct{}
}

func newInbox(id string) *inbox {
	return &inbox{id: id, notify: make(chan struct{}, 8)}
}

func (i *inbox) ID() string { return i.id }

func (i *inbox) Deliver(_ string, value any) {
	i.mu.Lock()
	i.values = append(i.values, value)
	i.mu.Unlock()
	select {
	case i.notify <- struct{}{}:
	default:
	}
}

func (i *inbox) size() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.values)
}

func (i *inbox) snapshot() []any {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]any(nil), i.values...)
}

func (i *inbox) await(t *testing.T) any {
	t.Helper()
	select {
	case <-i.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a bus delivery")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.values[len(i.values)-1]
}

// satelliteFixture runs a passive system with a registered probe kind.
type satelliteFixture struct {
	system *actors.System
	node   *Node
	probe  *wireProbe
	uri    string
}

func newSatelliteFixture(t *testing.T, specs []*actors.Spec) *satelliteFixture {
	t.Helper()
	probe := &wireProbe{events: make(chan string, 16)}
	registry := actors.NewRegistry()
	registry.Register("edge.probe", func() actors.Actor { return probe })

	system, err := actors.NewSystem("edge", specs,
		actors.WithLogger(log.DiscardLogger),
		actors.WithRegistry(registry))
	require.NoError(t, err)

	port := dynaport.Get(1)[0]
	node, err := NewNode(system, "127.0.0.1", port)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })

	require.NoError(t, system.StartPassive(context.Background()))
	return &satelliteFixture{
		system: system,
		node:   node,
		probe:  probe,
		uri:    fmt.Sprintf("tcp://127.0.0.1:%d/edge", port),
	}
}

func newMasterNode(t *testing.T, system *actors.System) *Node {
	t.Helper()
	port := dynaport.Get(1)[0]
	node, err := NewNode(system, "127.0.0.1", port)
	require.NoError(t, err)
	t.Cleanup(func() { _ = node.Close() })
	return node
}

func TestLookupMaster(t *testing.T) {
	ctx := context.Background()

	t.Run("With a reachable satellite", func(t *testing.T) {
		sat := newSatelliteFixture(t, nil)
		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)
		ref, err := masterNode.LookupMaster(ctx, location, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, ref.Location().Equal(location))
	})
	t.Run("With a mismatched system name", func(t *testing.T) {
		sat := newSatelliteFixture(t, nil)
		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)
		wrong := address.New(location.Host(), location.Port(), "imposter", "")
		_, err = masterNode.LookupMaster(ctx, wrong, 5*time.Second)
		require.ErrorIs(t, err, errors.ErrConflictingHost)
	})
	t.Run("With an unreachable endpoint", func(t *testing.T) {
		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		port := dynaport.Get(1)[0]
		location := address.New("127.0.0.1", port, "nowhere", "")
		_, err = masterNode.LookupMaster(ctx, location, 10*time.Second)
		require.ErrorIs(t, err, errors.ErrRemoteMasterNotFound)
	})
}

func TestRemoteLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("With a remotely instantiated actor", func(t *testing.T) {
		sat := newSatelliteFixture(t, nil)

		masterSys, err := actors.NewSystem("ops", []*actors.Spec{{
			Name:   "feeder",
			Kind:   "edge.probe",
			Remote: sat.uri,
			Config: actors.Config{"source": "sbs"},
		}}, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		newMasterNode(t, masterSys)

		require.NoError(t, masterSys.Start(ctx))
		assert.Equal(t, "init:sbs", awaitEvent(t, sat.probe.events))
		assert.Equal(t, "start", awaitEvent(t, sat.probe.events))

		// the actor lives in the satellite process
		_, hostedRemotely := sat.system.LocalActor("feeder")
		assert.True(t, hostedRemotely)
		_, hostedLocally := masterSys.LocalActor("feeder")
		assert.False(t, hostedLocally)

		require.NoError(t, masterSys.Terminate(ctx))
		assert.Equal(t, "terminate", awaitEvent(t, sat.probe.events))
		assert.Zero(t, masterSys.Master().Size())
		assert.Zero(t, masterSys.Master().SatellitesCount())

		// the satellite ran its own termination round
		sat.system.Await()
		masterSys.Await()
	})

	t.Run("With a looked-up satellite actor", func(t *testing.T) {
		sat := newSatelliteFixture(t, []*actors.Spec{{Name: "beacon", Kind: "edge.probe"}})
		// passive start created and initialized the local actor
		assert.Equal(t, "init:", awaitEvent(t, sat.probe.events))

		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)
		ref, err := masterNode.LookupMaster(ctx, location, 5*time.Second)
		require.NoError(t, err)

		actorRef, err := ref.LookupActor(ctx, "beacon", 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "beacon", actorRef.Name())

		_, err = ref.LookupActor(ctx, "phantom", 5*time.Second)
		require.ErrorIs(t, err, errors.ErrRemoteActorNotFound)
	})

	t.Run("With a clock propagation", func(t *testing.T) {
		sat := newSatelliteFixture(t, nil)
		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)
		ref, err := masterNode.LookupMaster(ctx, location, 5*time.Second)
		require.NoError(t, err)

		base := time.Date(2017, time.September, 8, 12, 0, 0, 0, time.UTC)
		require.NoError(t, ref.StartClock(ctx, base, 2.0, 5*time.Second))
		assert.False(t, sat.system.Clock().IsStopped())
		assert.Equal(t, 2.0, sat.system.Clock().Scale())
		assert.True(t, sat.system.Clock().Now().After(base.Add(-time.Second)))

		require.NoError(t, ref.StopClock(ctx, 5*time.Second))
		assert.True(t, sat.system.Clock().IsStopped())
		require.NoError(t, ref.ResumeClock(ctx, 5*time.Second))
		assert.False(t, sat.system.Clock().IsStopped())
	})
}

func TestRemoteDeathwatch(t *testing.T) {
	ctx := context.Background()

	t.Run("With a watched actor stopping", func(t *testing.T) {
		sat := newSatelliteFixture(t, []*actors.Spec{{Name: "beacon", Kind: "edge.probe"}})

		watchProbe := &wireProbe{events: make(chan string, 16)}
		registry := actors.NewRegistry()
		registry.Register("ops.watcher", func() actors.Actor { return watchProbe })
		masterSys, err := actors.NewSystem("ops",
			[]*actors.Spec{{Name: "sentinel", Kind: "ops.watcher"}},
			actors.WithLogger(log.DiscardLogger),
			actors.WithRegistry(registry))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)
		require.NoError(t, masterSys.Start(ctx))

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)
		ref, err := masterNode.LookupMaster(ctx, location, 5*time.Second)
		require.NoError(t, err)

		sentinel, ok := masterSys.LocalActor("sentinel")
		require.True(t, ok)
		ref.Watch("beacon", sentinel)

		// stop the actor satellite-side; the watcher hears about it
		beacon, ok := sat.system.LocalActor("beacon")
		require.True(t, ok)
		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = beacon.Shutdown(context.Background())
		}()

		for {
			event := awaitEvent(t, watchProbe.events)
			if event == "terminated:beacon" {
				break
			}
		}
	})

	t.Run("With a lost connection", func(t *testing.T) {
		sat := newSatelliteFixture(t, []*actors.Spec{{Name: "beacon", Kind: "edge.probe"}})

		watchProbe := &wireProbe{events: make(chan string, 16)}
		registry := actors.NewRegistry()
		registry.Register("ops.watcher", func() actors.Actor { return watchProbe })
		masterSys, err := actors.NewSystem("ops",
			[]*actors.Spec{{Name: "sentinel", Kind: "ops.watcher"}},
			actors.WithLogger(log.DiscardLogger),
			actors.WithRegistry(registry))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)
		require.NoError(t, masterSys.Start(ctx))

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)
		ref, err := masterNode.LookupMaster(ctx, location, 5*time.Second)
		require.NoError(t, err)

		sentinel, ok := masterSys.LocalActor("sentinel")
		require.True(t, ok)
		ref.Watch("beacon", sentinel)

		require.NoError(t, sat.node.Close())
		for {
			event := awaitEvent(t, watchProbe.events)
			if event == "terminated:beacon" {
				break
			}
		}
	})
}

func TestBusForwarding(t *testing.T) {
	ctx := context.Background()

	t.Run("With a cross-process subscription", func(t *testing.T) {
		sat := newSatelliteFixture(t, nil)
		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)

		collector := newInbox("collector")
		masterSys.Bus().Subscribe("tracks", collector)
		require.NoError(t, masterNode.SubscribeRemote(ctx, location, "tracks"))

		sat.system.Bus().Publish("tracks", map[string]any{"callsign": "UAL123"})
		value, ok := collector.await(t).(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "UAL123", value["callsign"])

		// after unsubscribing nothing arrives anymore
		require.NoError(t, masterNode.UnsubscribeRemote(ctx, location, "tracks"))
		sat.system.Bus().Publish("tracks", map[string]any{"callsign": "DAL42"})
		select {
		case <-collector.notify:
			t.Fatal("unexpected delivery after unsubscribe")
		case <-time.After(200 * time.Millisecond):
		}
	})

	t.Run("With publications delivered in send order", func(t *testing.T) {
		sat := newSatelliteFixture(t, nil)
		masterSys, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		masterNode := newMasterNode(t, masterSys)

		location, err := address.Parse(sat.uri)
		require.NoError(t, err)

		collector := newInbox("collector")
		masterSys.Bus().Subscribe("tracks", collector)
		require.NoError(t, masterNode.SubscribeRemote(ctx, location, "tracks"))

		const count = 500
		for i := 0; i < count; i++ {
			sat.system.Bus().Publish("tracks", uint64(i))
		}

		require.Eventually(t, func() bool { return collector.size() >= count },
			5*time.Second, 10*time.Millisecond)
		values := collector.snapshot()
		require.Len(t, values, count)
		for i, value := range values {
			require.Equal(t, uint64(i), value, "publication %d arrived out of order", i)
		}
	})
}

func TestNodeClose(t *testing.T) {
	t.Run("With an unidentified inbound connection", func(t *testing.T) {
		system, err := actors.NewSystem("ops", nil, actors.WithLogger(log.DiscardLogger))
		require.NoError(t, err)
		port := dynaport.Get(1)[0]
		node, err := NewNode(system, "127.0.0.1", port)
		require.NoError(t, err)

		// a client that connects but never identifies itself
		conn, err := net.Dial("tcp", node.Location().HostPort())
		require.NoError(t, err)
		defer conn.Close()

		done := make(chan error, 1)
		go func() { done <- node.Close() }()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("close must return while an unidentified connection is open")
		}
	})
}
