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
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/convoy-run/convoy/address"
	"github.com/convoy-run/convoy/clock"
	"github.com/convoy-run/convoy/errors"
	"github.com/convoy-run/convoy/log"
)

// Phase states of the orchestrator. Failed absorbs any fatal Create or
// Initialize error.
const (
	masterIdle int32 = iota
	masterCreated
	masterInitialized
	masterRunning
	masterTerminated
	masterFailed
)

// monitorName is reserved; the monitor never appears in the actor index.
const monitorName = "convoy.monitor"

// tableEntry binds one spec to its resolved handle: a local PID or a remote
// reference, never both.
type tableEntry struct {
	spec   *Spec
	pid    *PID
	remote RemoteRef
}

func (e *tableEntry) name() string {
	return e.spec.Name
}

type satelliteEntry struct {
	location *address.Location
	ref      SatelliteRef
}

// Master drives the four-phase lifecycle over the full locally and remotely
// resolved actor set. Phases iterate the actor table in specification order
// (reverse order for termination) and perform one synchronous handshake per
// actor with a bounded timeout: determinism of startup side effects and
// predictable shutdown order are part of the contract, startup latency is
// not.
//
// Phase transitions can only be driven through this type's methods. The
// underlying control messages are unexported, so no application actor can
// forge a phase transition; phase control reaching this process over the
// wire is authenticated by the federation layer before it lands here.
//
// The actor table, the satellite table and the logical clock are mutated
// exclusively by the phase driver; concurrent readers go through the
// read-locked accessors.
type Master struct {
	system *System
	logger log.Logger
	clk    *clock.Clock

	state *atomic.Int32

	// entries and satellites preserve insertion order; mutation happens only
	// in the phase driver, the lock protects concurrent inspection
	mu         sync.RWMutex
	entries    []*tableEntry
	satellites []*satelliteEntry

	// monitor receives deathwatch notifications and clock re-sync ticks
	monitor *PID
}

// newMaster creates the orchestrator for the given specification.
func newMaster(system *System, specs []*Spec) *Master {
	m := &Master{
		system: system,
		logger: system.Logger(),
		clk:    system.Clock(),
		state:  atomic.NewInt32(masterIdle),
	}
	for _, spec := range specs {
		m.entries = append(m.entries, &tableEntry{spec: spec})
	}
	m.monitor = newPID(monitorName, NewFuncActor(m.monitorReceive), system, nil)
	return m
}

// RunCreate instantiates local actors and resolves remote ones, in
// specification order. A non-optional failure aborts the phase; optional
// actors that cannot be resolved are skipped with a warning.
func (m *Master) RunCreate(ctx context.Context) error {
	if !m.state.CompareAndSwap(masterIdle, masterCreated) {
		return fmt.Errorf("create phase not allowed in state %d", m.state.Load())
	}

	resolved := make([]*tableEntry, 0, len(m.entries))
	for _, entry := range m.entries {
		spec := entry.spec
		if !spec.IsRemote() {
			pid, err := m.system.spawn(spec)
			if err != nil {
				return m.fatal(errors.PhaseCreate, spec.Name, err)
			}
			entry.pid = pid
			resolved = append(resolved, entry)
			m.logger.Debugf("created actor %s", spec.Name)
			continue
		}

		keep, err := m.resolveRemote(ctx, entry)
		if err != nil {
			return m.fatal(errors.PhaseCreate, spec.Name, err)
		}
		if keep {
			resolved = append(resolved, entry)
		}
	}

	m.mu.Lock()
	m.entries = resolved
	m.mu.Unlock()
	return nil
}

// resolveRemote resolves one remote spec: ensure the owning satellite,
// detect host conflicts, then look up or instantiate the named actor. It
// reports whether the entry stays in the table; an error is always fatal for
// the phase (the optional-skip cases return false, nil).
func (m *Master) resolveRemote(ctx context.Context, entry *tableEntry) (bool, error) {
	spec := entry.spec
	location, err := address.Parse(spec.Remote)
	if err != nil {
		return false, err
	}
	location = location.Master()

	sat, conflict := m.findSatellite(location)
	if conflict {
		if spec.Optional {
			m.logger.Warnf("skipping optional actor %s: endpoint %s conflicts with an existing satellite host", spec.Name, location)
			return false, nil
		}
		return false, fmt.Errorf("%w: %s", errors.ErrConflictingHost, location)
	}

	if sat == nil {
		resolver := m.system.resolver
		if resolver == nil {
			return false, errors.ErrRemotingDisabled
		}
		ref, err := resolver.LookupMaster(ctx, location, spec.Timeouts.create())
		if err != nil {
			if spec.Optional && (isResolutionFailure(err) || stderrors.Is(err, errors.ErrConflictingHost)) {
				m.logger.Warnf("skipping optional actor %s: %v", spec.Name, err)
				return false, nil
			}
			return false, err
		}
		sat = &satelliteEntry{location: location, ref: ref}
		m.mu.Lock()
		m.satellites = append(m.satellites, sat)
		m.mu.Unlock()
		m.logger.Infof("federated with satellite %s", location)
	}

	ref, err := sat.ref.LookupActor(ctx, spec.Name, spec.Timeouts.create())
	switch {
	case err == nil:
		// found but not created by this orchestrator: observe its death
		sat.ref.Watch(spec.Name, m.monitor)
		entry.remote = ref
		m.logger.Debugf("resolved remote actor %s at %s", spec.Name, location)
		return true, nil
	case stderrors.Is(err, errors.ErrRemoteActorNotFound) && spec.Kind != "":
		ref, err = sat.ref.SpawnActor(ctx, spec.Name, spec.Kind, spec.Config, spec.Timeouts.create())
		if err != nil {
			if spec.Optional {
				m.logger.Warnf("skipping optional actor %s: %v", spec.Name, err)
				return false, nil
			}
			return false, err
		}
		entry.remote = ref
		m.logger.Debugf("instantiated remote actor %s at %s", spec.Name, location)
		return true, nil
	case spec.Optional:
		m.logger.Warnf("skipping optional actor %s: %v", spec.Name, err)
		return false, nil
	default:
		return false, err
	}
}

// RunInitialize sends the initialize handshake to every table entry in
// specification order. Any failure, including a timeout on an optional
// actor, is fatal: by this point resources may already be half-acquired and
// the correctness model favors early, obvious failure over silently running
// with missing components.
func (m *Master) RunInitialize(ctx context.Context) error {
	if !m.state.CompareAndSwap(masterCreated, masterInitialized) {
		return fmt.Errorf("initialize phase not allowed in state %d", m.state.Load())
	}

	for _, entry := range m.entries {
		spec := entry.spec
		var err error
		if entry.pid != nil {
			_, err = entry.pid.Ask(ctx, &initRequest{config: spec.Config}, spec.Timeouts.init())
		} else {
			err = entry.remote.Init(ctx, spec.Config, spec.Timeouts.init())
		}
		if err != nil {
			return m.fatal(errors.PhaseInitialize, spec.Name, err)
		}
		m.logger.Debugf("initialized actor %s", spec.Name)
	}
	return nil
}

// RunStart resumes the logical clock, starts all satellites first (clock
// propagation, then start, both with bounded timeouts and fatal on failure),
// then dispatches asynchronous start requests to every locally supervised
// actor. Per-actor start failures and timeouts are warnings: the system may
// run degraded. RunStart on an already running orchestrator is a no-op.
func (m *Master) RunStart(ctx context.Context) error {
	if m.state.Load() == masterRunning {
		return nil
	}
	if !m.state.CompareAndSwap(masterInitialized, masterRunning) {
		return fmt.Errorf("start phase not allowed in state %d", m.state.Load())
	}

	m.clk.Resume()

	for _, sat := range m.satellites {
		simTime, scale := m.clk.Snapshot()
		if err := sat.ref.StartClock(ctx, simTime, scale, DefaultStartTimeout); err != nil {
			return m.fatal(errors.PhaseStart, sat.location.String(), err)
		}
		if err := sat.ref.Start(ctx, DefaultStartTimeout); err != nil {
			return m.fatal(errors.PhaseStart, sat.location.String(), err)
		}
		m.logger.Infof("started satellite %s", sat.location)
	}

	// clock and satellites are up; local starts need not be serialized
	g := new(errgroup.Group)
	for _, entry := range m.entries {
		if entry.pid == nil {
			// remote lookups not owned by this orchestrator are not re-started
			continue
		}
		entry := entry
		g.Go(func() error {
			if _, err := entry.pid.Ask(ctx, &startRequest{}, entry.spec.Timeouts.start()); err != nil {
				m.logger.Warnf("start of actor %s: %v", entry.name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return nil
}

// RunTermination iterates the actor table in reverse specification order and
// sends each actor a terminate handshake. Actors that confirm are stopped
// and removed; actors that decline stay in the table by design; actors that
// fail, time out or answer something unrecognized are retained so that a
// repeated call retries exactly them. After the local pass every satellite
// receives its own terminate request; a satellite timeout is a warning. The
// round always completes from the caller's point of view.
func (m *Master) RunTermination(ctx context.Context) error {
	m.state.Store(masterTerminated)

	var warnings error
	retained := make([]*tableEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]
		outcome, err := m.terminateEntry(ctx, entry)
		switch {
		case err != nil:
			m.logger.Warnf("termination of actor %s failed, retained for retry: %v", entry.name(), err)
			warnings = multierr.Append(warnings, err)
			retained = append(retained, entry)
		case outcome == TerminateCompleted:
			if entry.pid != nil {
				_ = entry.pid.Shutdown(ctx)
			}
			m.logger.Debugf("terminated actor %s", entry.name())
		case outcome == TerminateIgnored:
			m.logger.Infof("actor %s ignored termination", entry.name())
			retained = append(retained, entry)
		default:
			m.logger.Warnf("actor %s answered termination with %s, retained for retry", entry.name(), outcome)
			retained = append(retained, entry)
		}
	}

	// restore specification order for the next round
	for i, j := 0, len(retained)-1; i < j; i, j = i+1, j-1 {
		retained[i], retained[j] = retained[j], retained[i]
	}
	m.mu.Lock()
	m.entries = retained
	m.mu.Unlock()

	kept := make([]*satelliteEntry, 0, len(m.satellites))
	for _, sat := range m.satellites {
		if err := sat.ref.Terminate(ctx, DefaultTerminateTimeout); err != nil {
			m.logger.Warnf("termination of satellite %s: %v", sat.location, err)
			warnings = multierr.Append(warnings, err)
			kept = append(kept, sat)
			continue
		}
		if err := sat.ref.Close(); err != nil {
			m.logger.Warnf("closing satellite %s: %v", sat.location, err)
		}
		m.logger.Infof("terminated satellite %s", sat.location)
	}
	m.mu.Lock()
	m.satellites = kept
	m.mu.Unlock()

	if warnings != nil {
		m.logger.Warnf("termination round finished with leftovers: %v", warnings)
	}
	if len(m.entries) == 0 && len(m.satellites) == 0 {
		m.clk.Stop()
		_ = m.monitor.Shutdown(ctx)
	}
	return nil
}

// terminateEntry performs one terminate handshake.
func (m *Master) terminateEntry(ctx context.Context, entry *tableEntry) (TerminateOutcome, error) {
	timeout := entry.spec.Timeouts.terminate()
	if entry.pid != nil {
		value, err := entry.pid.Ask(ctx, &terminateRequest{}, timeout)
		if err != nil {
			if stderrors.Is(err, errors.ErrDead) {
				// already gone, nothing to retry
				return TerminateCompleted, nil
			}
			return TerminateFailed, err
		}
		outcome, ok := value.(TerminateOutcome)
		if !ok {
			return TerminateFailed, nil
		}
		return outcome, nil
	}
	return entry.remote.Terminate(ctx, timeout)
}

// PauseClock freezes the simulation clock locally and on every satellite.
func (m *Master) PauseClock(ctx context.Context) {
	m.clk.Stop()
	for _, sat := range m.satellites {
		if err := sat.ref.StopClock(ctx, DefaultStartTimeout); err != nil {
			m.logger.Warnf("stopping clock on satellite %s: %v", sat.location, err)
		}
	}
}

// ResumeClock un-pauses the simulation clock locally and on every satellite.
func (m *Master) ResumeClock(ctx context.Context) {
	m.clk.Resume()
	for _, sat := range m.satellites {
		if err := sat.ref.ResumeClock(ctx, DefaultStartTimeout); err != nil {
			m.logger.Warnf("resuming clock on satellite %s: %v", sat.location, err)
		}
	}
}

// Size returns the number of entries currently in the actor table.
func (m *Master) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SatellitesCount returns the number of federated satellites.
func (m *Master) SatellitesCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.satellites)
}

// ActorNames returns the table content in specification order.
func (m *Master) ActorNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		names = append(names, entry.name())
	}
	return names
}

// Satellites returns the locations of all federated satellites.
func (m *Master) Satellites() []*address.Location {
	m.mu.RLock()
	defer m.mu.RUnlock()
	locations := make([]*address.Location, 0, len(m.satellites))
	for _, sat := range m.satellites {
		locations = append(locations, sat.location)
	}
	return locations
}

// appendEntry adds a locally spawned actor to the table on behalf of a
// federating master.
func (m *Master) appendEntry(spec *Spec, pid *PID) {
	m.mu.Lock()
	m.entries = append(m.entries, &tableEntry{spec: spec, pid: pid})
	m.mu.Unlock()
}

// findSatellite looks the location up in the satellite table. It returns the
// owning satellite when the registration is identical to an existing one, or
// reports a conflict when a different registration already targets the same
// host and port. Host comparison ignores credentials, so two URIs differing
// only in user-info land on the same host and conflict rather than merge.
func (m *Master) findSatellite(location *address.Location) (*satelliteEntry, bool) {
	for _, sat := range m.satellites {
		if !sat.location.SameHost(location) {
			continue
		}
		if sat.location.System() == location.System() &&
			sat.location.UserInfo() == location.UserInfo() {
			return sat, false
		}
		return nil, true
	}
	return nil, false
}

// enableClockSync schedules the recurring satellite clock re-sync.
func (m *Master) enableClockSync(interval time.Duration) error {
	return m.system.scheduler.Schedule(&clockSyncTick{}, m.monitor, interval)
}

// syncSatelliteClocks pushes the current simulated time and scale to every
// satellite without resuming stopped clocks.
func (m *Master) syncSatelliteClocks(ctx context.Context) {
	for _, sat := range m.satellites {
		simTime, scale := m.clk.Snapshot()
		if err := sat.ref.SyncClock(ctx, simTime, scale, DefaultStartTimeout); err != nil {
			m.logger.Warnf("clock sync to satellite %s: %v", sat.location, err)
		}
	}
}

// monitorReceive handles deathwatch notifications and clock sync ticks on
// the monitor actor.
func (m *Master) monitorReceive(rctx *ReceiveContext) {
	switch msg := rctx.Message().(type) {
	case *Terminated:
		m.logger.Warnf("watched actor %s terminated (endpoint %s)", msg.Name, msg.Endpoint)
	case *clockSyncTick:
		m.syncSatelliteClocks(rctx.Context())
	}
}

// stopAll force-stops every local actor after a fatal phase error.
func (m *Master) stopAll(ctx context.Context) {
	m.state.Store(masterFailed)
	m.mu.Lock()
	entries := m.entries
	satellites := m.satellites
	m.entries = nil
	m.satellites = nil
	m.mu.Unlock()
	for i := len(entries) - 1; i >= 0; i-- {
		if pid := entries[i].pid; pid != nil {
			_ = pid.Shutdown(ctx)
		}
	}
	for _, sat := range satellites {
		_ = sat.ref.Close()
	}
	_ = m.monitor.Shutdown(ctx)
}

// fatal records the failed state and returns the diagnostic, always naming
// the offending actor and the originating reason.
func (m *Master) fatal(phase errors.Phase, actor string, err error) error {
	m.state.Store(masterFailed)
	return errors.NewPhaseError(phase, actor, err)
}

// isResolutionFailure reports whether the error is a distinguishable
// not-found or timeout outcome of remote resolution.
func isResolutionFailure(err error) bool {
	return stderrors.Is(err, errors.ErrResolutionTimeout) ||
		stderrors.Is(err, errors.ErrRemoteMasterNotFound) ||
		stderrors.Is(err, errors.ErrRemoteActorNotFound) ||
		stderrors.Is(err, errors.ErrAskTimeout)
}
