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
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/convoy-run/convoy/bus"
	"github.com/convoy-run/convoy/clock"
	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

// defaultSchedulerStopTimeout bounds scheduler draining at shutdown.
const defaultSchedulerStopTimeout = 3 * time.Second

// System owns everything one convoy process runs: the ordered actor
// specification, the Master orchestrator, the bus, the logical clock, the
// registry and the scheduler. A process typically hosts exactly one System.
type System struct {
	name      string
	logger    log.Logger
	clk       *clock.Clock
	registry  *Registry
	eventsBus *bus.Bus
	scheduler *scheduler
	master    *Master

	resolver          MasterResolver
	remoteSubs        RemoteSubscriptions
	clockSyncInterval time.Duration

	mu         sync.RWMutex
	actorIndex map[string]*PID

	started    *atomic.Bool
	shutdown   sync.Once
	terminated chan struct{}
}

// Option configures a System.
type Option func(*System)

// WithLogger sets the system logger.
func WithLogger(logger log.Logger) Option {
	return func(s *System) {
		s.logger = logger
	}
}

// WithRegistry sets the actor factory registry.
func WithRegistry(registry *Registry) Option {
	return func(s *System) {
		s.registry = registry
	}
}

// WithClockSyncInterval enables the periodic clock re-sync push to all
// satellites. Zero disables it.
func WithClockSyncInterval(interval time.Duration) Option {
	return func(s *System) {
		s.clockSyncInterval = interval
	}
}

// NewSystem creates a System for the given actor specification. The
// specification order is preserved: it defines the Create/Initialize/Start
// order and its reverse defines the Terminate order.
func NewSystem(name string, specs []*Spec, opts ...Option) (*System, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: system name is required", errors.ErrInstantiation)
	}
	seen := make(map[string]struct{}, len(specs))
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, fmt.Errorf("%w: %q", errors.ErrDuplicateName, spec.Name)
		}
		seen[spec.Name] = struct{}{}
	}

	s := &System{
		name:       name,
		logger:     log.DefaultLogger,
		clk:        clock.New(),
		registry:   NewRegistry(),
		actorIndex: make(map[string]*PID),
		started:    atomic.NewBool(false),
		terminated: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.eventsBus = bus.New(bus.WithLogger(s.logger))
	scheduler, err := newScheduler(s.logger, defaultSchedulerStopTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInstantiation, err)
	}
	s.scheduler = scheduler
	s.master = newMaster(s, specs)
	return s, nil
}

// Name returns the system name.
func (s *System) Name() string {
	return s.name
}

// Logger returns the system logger.
func (s *System) Logger() log.Logger {
	return s.logger
}

// Clock returns the shared logical clock.
func (s *System) Clock() *clock.Clock {
	return s.clk
}

// Bus returns the channel router.
func (s *System) Bus() *bus.Bus {
	return s.eventsBus
}

// Registry returns the actor factory registry.
func (s *System) Registry() *Registry {
	return s.registry
}

// Master returns the orchestrator.
func (s *System) Master() *Master {
	return s.master
}

// UseResolver attaches the remote master resolver. It must be called before
// Start when the specification references remote actors.
func (s *System) UseResolver(resolver MasterResolver) {
	s.resolver = resolver
}

// UseRemoteSubscriptions attaches the remote bus subscription facility.
func (s *System) UseRemoteSubscriptions(subs RemoteSubscriptions) {
	s.remoteSubs = subs
}

// Start drives the full orchestration sequence: Create, Initialize, Start.
// Any fatal phase error aborts the sequence and is returned to the caller; no
// partial system is left running.
func (s *System) Start(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	if err := s.master.RunStart(ctx); err != nil {
		s.abort(ctx)
		return err
	}
	if s.clockSyncInterval > 0 {
		if err := s.master.enableClockSync(s.clockSyncInterval); err != nil {
			s.logger.Warnf("periodic clock sync disabled: %v", err)
		}
	}
	return nil
}

// StartPassive drives Create and Initialize but leaves the start phase to a
// federating master: a satellite process launches passively and waits for
// the orchestrator of record to propagate the clock and issue Start.
func (s *System) StartPassive(ctx context.Context) error {
	return s.begin(ctx)
}

// begin runs the scheduler plus the Create and Initialize phases.
func (s *System) begin(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	s.scheduler.Start(ctx)
	if err := s.master.RunCreate(ctx); err != nil {
		s.abort(ctx)
		return err
	}
	if err := s.master.RunInitialize(ctx); err != nil {
		s.abort(ctx)
		return err
	}
	return nil
}

// Terminate runs the termination phase. It always completes from the
// caller's point of view; actors that did not shut down cleanly stay in the
// orchestrator's table so a repeated Terminate retries exactly those.
func (s *System) Terminate(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	if err := s.master.RunTermination(ctx); err != nil {
		return err
	}
	if s.master.Size() == 0 && s.master.SatellitesCount() == 0 {
		s.finish(ctx)
	}
	return nil
}

// Await blocks until termination has fully completed.
func (s *System) Await() {
	<-s.terminated
}

// LocalActor returns the handle of a locally running actor by name. It backs
// the identify protocol of the remote layer.
func (s *System) LocalActor(name string) (*PID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pid, ok := s.actorIndex[name]
	return pid, ok
}

// SpawnFromRemote instantiates an actor on behalf of a federating master and
// adds it to the local orchestrator's table so that this process supervises
// and terminates it like its own.
func (s *System) SpawnFromRemote(name, kind string, config Config) (*PID, error) {
	spec := &Spec{Name: name, Kind: kind, Config: config}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	pid, err := s.spawn(spec)
	if err != nil {
		return nil, err
	}
	s.master.appendEntry(spec, pid)
	return pid, nil
}

// spawn instantiates a local actor from its spec and registers its handle.
func (s *System) spawn(spec *Spec) (*PID, error) {
	instance, err := s.registry.Create(spec.Kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.actorIndex[spec.Name]; dup {
		return nil, fmt.Errorf("%w: %q", errors.ErrDuplicateName, spec.Name)
	}
	pid := newPID(spec.Name, instance, s, spec.Config)
	s.actorIndex[spec.Name] = pid
	return pid, nil
}

// unregister drops a stopped actor from the name index.
func (s *System) unregister(p *PID) {
	s.mu.Lock()
	delete(s.actorIndex, p.Name())
	s.mu.Unlock()
}

// remoteSubscriptions returns the attached remote subscription facility.
func (s *System) remoteSubscriptions() RemoteSubscriptions {
	return s.remoteSubs
}

// abort tears down after a fatal Create/Initialize/Start failure.
func (s *System) abort(ctx context.Context) {
	s.master.stopAll(ctx)
	s.finish(ctx)
}

// finish releases process-wide resources exactly once.
func (s *System) finish(ctx context.Context) {
	s.shutdown.Do(func() {
		s.scheduler.Stop(ctx)
		s.eventsBus.Close()
		s.started.Store(false)
		close(s.terminated)
	})
}
