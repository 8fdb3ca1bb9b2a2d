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

// Package remote federates actor systems over point-to-point TCP. A Node
// owns one listening endpoint per process and multiplexes every concern of
// federation over a single connection per peer: master resolution, remote
// actor lifecycle control, clock propagation, deathwatch and bus channel
// forwarding.
package remote

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/flowchartsman/retry"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/convoy-run/convoy/actors"
	"github.com/convoy-run/convoy/address"
	"github.com/convoy-run/convoy/bus"
	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultCallTimeout = 5 * time.Second
	// bound on the local handshake a control frame triggers; the caller's
	// own timeout already bounds the round trip
	serverHandshakeTimeout = 30 * time.Second
)

// Node is the federation endpoint of one actor system. It implements
// actors.MasterResolver and actors.RemoteSubscriptions and installs itself
// as the system's bus connector factory, so attaching a Node is all the
// composition a federated process needs.
type Node struct {
	system   *actors.System
	logger   log.Logger
	location *address.Location

	listener net.Listener
	closed   *atomic.Bool
	wg       sync.WaitGroup

	// peers indexes identified connections by endpoint; conns tracks every
	// live connection, identified or not, so Close can reach all of them
	mu    sync.Mutex
	peers map[string]*peer
	conns map[*peer]struct{}
}

// Option configures a Node.
type Option func(*Node)

// WithLogger sets the node logger, defaulting to the system's.
func WithLogger(logger log.Logger) Option {
	return func(n *Node) {
		n.logger = logger
	}
}

// NewNode binds the system to a TCP endpoint and starts serving federation
// traffic. A port of zero picks a free port; the resolved endpoint is
// available through Location.
func NewNode(system *actors.System, host string, port int, opts ...Option) (*Node, error) {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	if port == 0 {
		port = listener.Addr().(*net.TCPAddr).Port
	}

	n := &Node{
		system:   system,
		logger:   system.Logger(),
		location: address.New(host, port, system.Name(), ""),
		listener: listener,
		closed:   atomic.NewBool(false),
		peers:    make(map[string]*peer),
		conns:    make(map[*peer]struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}

	system.UseResolver(n)
	system.UseRemoteSubscriptions(n)
	system.Bus().SetConnectorFactory(n.newConnector)

	n.wg.Add(1)
	go n.serve()
	n.logger.Infof("federation endpoint listening on %s", n.location)
	return n, nil
}

// Location returns the endpoint this node advertises to its peers.
func (n *Node) Location() *address.Location {
	return n.location
}

// Close stops the listener and tears down every peer connection.
func (n *Node) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := n.listener.Close()
	n.mu.Lock()
	conns := make([]*peer, 0, len(n.conns))
	for p := range n.conns {
		conns = append(conns, p)
	}
	n.peers = make(map[string]*peer)
	n.conns = make(map[*peer]struct{})
	n.mu.Unlock()
	for _, p := range conns {
		p.close()
	}
	n.wg.Wait()
	return err
}

// LookupMaster implements actors.MasterResolver. It dials the endpoint with
// retries, performs the identify handshake and verifies that the process
// actually hosts the requested system.
func (n *Node) LookupMaster(ctx context.Context, location *address.Location, timeout time.Duration) (actors.SatelliteRef, error) {
	if n.closed.Load() {
		return nil, errors.ErrNodeClosed
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var sat *Satellite
	retrier := retry.NewRetrier(5, 100*time.Millisecond, time.Second)
	err := retrier.RunContext(ctx, func(ctx context.Context) error {
		p, err := n.peerFor(ctx, location.HostPort())
		if err != nil {
			return err
		}
		if p.systemName() != location.System() {
			return retry.Stop(errors.ErrConflictingHost)
		}
		sat = &Satellite{node: n, peer: p, location: location.Master()}
		return nil
	})
	switch {
	case err == nil:
		return sat, nil
	case stderrors.Is(err, errors.ErrConflictingHost):
		return nil, fmt.Errorf("%w: %s hosts another system", errors.ErrConflictingHost, location.HostPort())
	case ctx.Err() != nil:
		return nil, errors.ErrResolutionTimeout
	default:
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrRemoteMasterNotFound, location, err)
	}
}

// SubscribeRemote implements actors.RemoteSubscriptions: it asks the remote
// endpoint to forward the channel to this node.
func (n *Node) SubscribeRemote(ctx context.Context, location *address.Location, channel string) error {
	p, err := n.peerFor(ctx, location.HostPort())
	if err != nil {
		return err
	}
	resp, err := p.call(ctx, &frame{Kind: kindSubscribe, Channel: channel}, defaultCallTimeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

// UnsubscribeRemote reverses SubscribeRemote.
func (n *Node) UnsubscribeRemote(ctx context.Context, location *address.Location, channel string) error {
	p, err := n.peerFor(ctx, location.HostPort())
	if err != nil {
		return err
	}
	resp, err := p.call(ctx, &frame{Kind: kindUnsubscribe, Channel: channel}, defaultCallTimeout)
	if err != nil {
		return err
	}
	return ackError(resp)
}

// newConnector is the bus.ConnectorFactory: it binds a channel forwarder to
// the shared peer connection of the endpoint.
func (n *Node) newConnector(endpoint string) (bus.Connector, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()
	p, err := n.peerFor(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &busConnector{node: n, peer: p, endpoint: endpoint}, nil
}

// peerFor returns the connection to the given host:port, dialing and
// identifying when none exists yet.
func (n *Node) peerFor(ctx context.Context, endpoint string) (*peer, error) {
	if n.closed.Load() {
		return nil, errors.ErrNodeClosed
	}
	n.mu.Lock()
	if p, ok := n.peers[endpoint]; ok {
		n.mu.Unlock()
		return p, nil
	}
	n.mu.Unlock()

	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, err
	}
	p := n.startPeer(conn, endpoint)

	resp, err := p.call(ctx, &frame{
		Kind:     kindIdentify,
		System:   n.system.Name(),
		Endpoint: n.location.HostPort(),
	}, defaultCallTimeout)
	if err != nil {
		p.close()
		return nil, err
	}
	p.setIdentity(resp.System, endpoint)

	n.mu.Lock()
	if existing, ok := n.peers[endpoint]; ok {
		// simultaneous dial from both sides, keep the first one
		n.mu.Unlock()
		p.close()
		return existing, nil
	}
	n.peers[endpoint] = p
	n.mu.Unlock()
	return p, nil
}

func (n *Node) serve() {
	defer n.wg.Done()
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			if !n.closed.Load() {
				n.logger.Errorf("accept on %s: %v", n.location, err)
			}
			return
		}
		n.startPeer(conn, "")
	}
}

// startPeer wraps a connection and starts its read loop. Accepted peers get
// indexed once they identify themselves.
func (n *Node) startPeer(conn net.Conn, endpoint string) *peer {
	p := &peer{
		node:     n,
		conn:     conn,
		endpoint: endpoint,
		done:     make(chan struct{}),
		pending:  make(map[string]chan *frame),
		watches:  make(map[string][]*actors.PID),
	}
	n.mu.Lock()
	n.conns[p] = struct{}{}
	n.mu.Unlock()
	n.wg.Add(1)
	go p.readLoop()
	// the connection may have been accepted while Close was collecting the
	// live set; tear it down instead of leaking it
	if n.closed.Load() {
		p.close()
	}
	return p
}

// dropPeer removes a dead connection from the indexes.
func (n *Node) dropPeer(p *peer) {
	n.mu.Lock()
	if endpoint := p.remoteEndpoint(); endpoint != "" && n.peers[endpoint] == p {
		delete(n.peers, endpoint)
	}
	delete(n.conns, p)
	n.mu.Unlock()
}

// handle dispatches one inbound request frame. Control handshakes run on
// their own goroutine so they never stall the peer's read loop; publish and
// deathwatch relays are handled inline on the read loop, preserving the order
// in which the remote publisher sent them.
func (n *Node) handle(p *peer, f *frame) {
	ctx, cancel := context.WithTimeout(context.Background(), serverHandshakeTimeout)
	defer cancel()

	switch f.Kind {
	case kindIdentify:
		p.setIdentity(f.System, f.Endpoint)
		n.mu.Lock()
		if f.Endpoint != "" {
			if _, ok := n.peers[f.Endpoint]; !ok {
				n.peers[f.Endpoint] = p
			}
		}
		n.mu.Unlock()
		p.reply(f, &frame{
			Kind:     kindIdentifyAck,
			System:   n.system.Name(),
			Endpoint: n.location.HostPort(),
		})

	case kindLookup:
		code := codeOK
		if _, ok := n.system.LocalActor(f.Actor); !ok {
			code = codeActorNotFound
		}
		p.reply(f, &frame{Kind: kindActorAck, Code: code})

	case kindSpawn:
		_, err := n.system.SpawnFromRemote(f.Actor, f.ActorKind, actors.Config(f.Config))
		code, text := ackStatus(err)
		p.reply(f, &frame{Kind: kindActorAck, Code: code, Error: text})

	case kindControl:
		n.handleControl(ctx, p, f)

	case kindClock:
		clk := n.system.Clock()
		switch f.Op {
		case clockStart:
			clk.Reset(f.SimTime, f.Scale)
			clk.Resume()
		case clockSync:
			clk.Reset(f.SimTime, f.Scale)
		case clockStop:
			clk.Stop()
		case clockResume:
			clk.Resume()
		}
		p.reply(f, &frame{Kind: kindAck})

	case kindSubscribe:
		err := errors.ErrInvalidEndpoint
		if endpoint := p.remoteEndpoint(); endpoint != "" {
			err = n.system.Bus().SubscribeRemote(f.Channel, endpoint)
		}
		code, text := ackStatus(err)
		p.reply(f, &frame{Kind: kindAck, Code: code, Error: text})

	case kindUnsubscribe:
		if endpoint := p.remoteEndpoint(); endpoint != "" {
			n.system.Bus().UnsubscribeRemote(f.Channel, endpoint)
		}
		p.reply(f, &frame{Kind: kindAck})

	case kindPublish:
		value, err := decodePayload(f.Payload)
		if err != nil {
			n.logger.Warnf("dropping publication on channel %s: %v", f.Channel, err)
			return
		}
		n.system.Bus().PublishLocal(f.Channel, value)

	case kindWatch:
		name := f.Actor
		cancel, err := n.system.WatchLocalActor(name, func(t *actors.Terminated) {
			p.send(&frame{
				Kind:     kindTerminated,
				Actor:    t.Name,
				Endpoint: n.location.String(),
			})
		})
		if err != nil {
			n.logger.Warnf("deathwatch of %s for %s: %v", name, p.remoteEndpoint(), err)
			return
		}
		// the watcher serves this connection only; release it with the peer
		p.onTeardown(cancel)

	case kindTerminated:
		p.notifyWatchers(f.Actor, f.Endpoint)

	default:
		n.logger.Warnf("dropping frame of unknown kind %d from %s", f.Kind, p.conn.RemoteAddr())
	}
}

// handleControl runs one inbound lifecycle handshake. An empty actor targets
// the local orchestrator; both paths answer with the outcome or failure.
func (n *Node) handleControl(ctx context.Context, p *peer, f *frame) {
	if f.Actor == "" {
		var err error
		switch f.Phase {
		case phaseStart:
			err = n.system.Master().RunStart(ctx)
		case phaseTerminate:
			err = n.system.Terminate(ctx)
		}
		code, text := ackStatus(err)
		p.reply(f, &frame{Kind: kindControlAck, Code: code, Error: text})
		return
	}

	var (
		outcome actors.TerminateOutcome
		err     error
	)
	switch f.Phase {
	case phaseInit:
		err = n.system.InitLocalActor(ctx, f.Actor, actors.Config(f.Config), serverHandshakeTimeout)
	case phaseStart:
		err = n.system.StartLocalActor(ctx, f.Actor, serverHandshakeTimeout)
	case phaseTerminate:
		outcome, err = n.system.TerminateLocalActor(ctx, f.Actor, serverHandshakeTimeout)
	}
	code, text := ackStatus(err)
	p.reply(f, &frame{Kind: kindControlAck, Code: code, Error: text, Outcome: uint8(outcome)})
}

// peer is one live connection, shared by every federation concern that
// targets its endpoint.
type peer struct {
	node *Node
	conn net.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	endpoint string
	system   string
	pending  map[string]chan *frame
	watches  map[string][]*actors.PID
	// teardowns release resources held on behalf of this connection, such
	// as deathwatch registrations serving the remote side
	teardowns []func()

	closeOnce sync.Once
	done      chan struct{}
}

func (p *peer) setIdentity(system, endpoint string) {
	p.mu.Lock()
	p.system = system
	if endpoint != "" {
		p.endpoint = endpoint
	}
	p.mu.Unlock()
}

func (p *peer) systemName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.system
}

func (p *peer) remoteEndpoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoint
}

func (p *peer) send(f *frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return writeFrame(p.conn, f)
}

func (p *peer) reply(req, resp *frame) {
	resp.ID = req.ID
	if err := p.send(resp); err != nil {
		p.node.logger.Warnf("answering %s: %v", p.conn.RemoteAddr(), err)
	}
}

// call sends a request frame and waits for its ack.
func (p *peer) call(ctx context.Context, f *frame, timeout time.Duration) (*frame, error) {
	f.ID = uuid.NewString()
	ch := make(chan *frame, 1)
	p.mu.Lock()
	p.pending[f.ID] = ch
	p.mu.Unlock()

	if err := p.send(f); err != nil {
		p.forget(f.ID)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		p.forget(f.ID)
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.ErrAskTimeout
		}
		return nil, ctx.Err()
	case <-p.done:
		return nil, errors.ErrNodeClosed
	}
}

func (p *peer) forget(id string) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// onTeardown registers a release callback run once when the connection dies.
func (p *peer) onTeardown(fn func()) {
	p.mu.Lock()
	p.teardowns = append(p.teardowns, fn)
	p.mu.Unlock()
}

func (p *peer) runTeardowns() {
	p.mu.Lock()
	teardowns := p.teardowns
	p.teardowns = nil
	p.mu.Unlock()
	for _, fn := range teardowns {
		fn()
	}
}

// watch registers a deathwatch callback target for a remote actor name.
func (p *peer) watch(name string, watcher *actors.PID) {
	p.mu.Lock()
	p.watches[name] = append(p.watches[name], watcher)
	p.mu.Unlock()
}

// notifyWatchers fires the deathwatch for one remote actor. Each watcher is
// notified at most once.
func (p *peer) notifyWatchers(name, endpoint string) {
	p.mu.Lock()
	watchers := p.watches[name]
	delete(p.watches, name)
	p.mu.Unlock()
	for _, watcher := range watchers {
		watcher.Tell(&actors.Terminated{Name: name, Endpoint: endpoint})
	}
}

func (p *peer) readLoop() {
	defer p.node.wg.Done()
	for {
		f, err := readFrame(p.conn)
		if err != nil {
			p.fail(err)
			return
		}
		if isAck(f.Kind) {
			p.mu.Lock()
			ch := p.pending[f.ID]
			delete(p.pending, f.ID)
			p.mu.Unlock()
			if ch != nil {
				ch <- f
			}
			continue
		}
		switch f.Kind {
		case kindPublish, kindTerminated:
			// relay frames only enqueue into mailboxes; handling them here
			// keeps same-channel publications in send order
			p.node.handle(p, f)
		default:
			go p.node.handle(p, f)
		}
	}
}

// fail tears the connection down: pending calls error out, every deathwatch
// fires, and the peer leaves the node index.
func (p *peer) fail(err error) {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
	p.node.dropPeer(p)
	if !p.node.closed.Load() {
		p.node.logger.Warnf("connection to %s lost: %v", p.conn.RemoteAddr(), err)
	}

	endpoint := p.remoteEndpoint()
	p.mu.Lock()
	watches := p.watches
	p.watches = make(map[string][]*actors.PID)
	p.mu.Unlock()
	for name, watchers := range watches {
		for _, watcher := range watchers {
			watcher.Tell(&actors.Terminated{Name: name, Endpoint: endpoint})
		}
	}
	p.runTeardowns()
}

func (p *peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
	p.node.dropPeer(p)
	p.runTeardowns()
}

// busConnector forwards published values of one endpoint over the shared
// peer connection. It implements bus.Connector.
type busConnector struct {
	node     *Node
	peer     *peer
	endpoint string
}

func (c *busConnector) ID() string {
	return "connector:" + c.endpoint
}

func (c *busConnector) Endpoint() string {
	return c.endpoint
}

func (c *busConnector) Deliver(channel string, value any) {
	payload, err := encodePayload(value)
	if err != nil {
		c.node.logger.Warnf("dropping publication on channel %s for %s: %v", channel, c.endpoint, err)
		return
	}
	if err := c.peer.send(&frame{Kind: kindPublish, Channel: channel, Payload: payload}); err != nil {
		c.node.logger.Warnf("forwarding channel %s to %s: %v", channel, c.endpoint, err)
	}
}

// Close is a no-op: the peer connection is shared and owned by the node.
func (c *busConnector) Close() error {
	return nil
}
