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

// Package address provides the canonical representation of actor locations in
// a convoy federation.
//
// A location identifies a named actor inside a named actor system inside a
// remote process. Its canonical textual representation is:
//
//	tcp://<host>:<port>/<system>/<actor>
//
// The actor segment may be omitted, in which case the location designates the
// system's orchestrator (master) itself. User-info in the authority part is
// tolerated on parsing; it never appears in the canonical text and
// host-conflict detection between two locations never considers it, but Parse
// retains it so that registrations differing only in credentials remain
// distinguishable.
package address

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/convoy-run/convoy/errors"
)

// Scheme is the convoy location scheme.
const Scheme = "tcp"

// Location is the resolved form of a location URI. Location values are
// immutable after creation.
type Location struct {
	host   string
	port   int
	system string
	actor  string

	// user carries the credentials of the parsed URI verbatim. It never
	// appears in the canonical text and never participates in host
	// comparison, but registration identity distinguishes URIs that differ
	// only here.
	user string
}

// New creates a Location from its parts. The actor part may be empty to
// designate the system's master.
func New(host string, port int, system, actor string) *Location {
	return &Location{
		host:   host,
		port:   port,
		system: system,
		actor:  actor,
	}
}

// Parse parses a location URI of the form tcp://host:port/system[/actor].
// Credentials in the authority part are accepted and dropped.
func Parse(uri string) (*Location, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errors.ErrInvalidEndpoint, uri, err)
	}

	if parsed.Scheme != Scheme {
		return nil, fmt.Errorf("%w: %q: unsupported scheme %q", errors.ErrInvalidEndpoint, uri, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: %q: missing host", errors.ErrInvalidEndpoint, uri)
	}

	port, err := strconv.Atoi(parsed.Port())
	if err != nil || port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: %q: missing or invalid port", errors.ErrInvalidEndpoint, uri)
	}

	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, fmt.Errorf("%w: %q: missing system name", errors.ErrInvalidEndpoint, uri)
	}

	location := &Location{
		host:   host,
		port:   port,
		system: segments[0],
		user:   parsed.User.String(),
	}

	switch {
	case len(segments) == 2:
		location.actor = segments[1]
	case len(segments) > 2:
		return nil, fmt.Errorf("%w: %q: too many path segments", errors.ErrInvalidEndpoint, uri)
	}

	return location, nil
}

// Host returns the host part.
func (l *Location) Host() string {
	return l.host
}

// Port returns the port part.
func (l *Location) Port() int {
	return l.port
}

// System returns the actor system name.
func (l *Location) System() string {
	return l.system
}

// Actor returns the actor name. It is empty when the location designates the
// system's master.
func (l *Location) Actor() string {
	return l.actor
}

// UserInfo returns the credentials the original URI carried, empty when it
// had none.
func (l *Location) UserInfo() string {
	return l.user
}

// HostPort returns the canonical host:port of the endpoint.
func (l *Location) HostPort() string {
	return net.JoinHostPort(l.host, strconv.Itoa(l.port))
}

// WithActor returns a copy of the location pointing at the given actor on the
// same endpoint and system.
func (l *Location) WithActor(actor string) *Location {
	return &Location{host: l.host, port: l.port, system: l.system, actor: actor, user: l.user}
}

// Master returns a copy of the location designating the owning master.
func (l *Location) Master() *Location {
	return &Location{host: l.host, port: l.port, system: l.system, user: l.user}
}

// SameHost reports whether the other location resolves to the same endpoint,
// comparing only host and port. Credentials and path play no role here; this
// is the comparison used for conflicting-host detection between satellites.
func (l *Location) SameHost(other *Location) bool {
	if other == nil {
		return false
	}
	return strings.EqualFold(l.host, other.host) && l.port == other.port
}

// Equal reports whether both locations designate the same actor.
func (l *Location) Equal(other *Location) bool {
	if other == nil {
		return false
	}
	return l.SameHost(other) && l.system == other.system && l.actor == other.actor
}

// String returns the canonical textual representation.
func (l *Location) String() string {
	var sb strings.Builder
	sb.WriteString(Scheme)
	sb.WriteString("://")
	sb.WriteString(l.HostPort())
	sb.WriteString("/")
	sb.WriteString(l.system)
	if l.actor != "" {
		sb.WriteString("/")
		sb.WriteString(l.actor)
	}
	return sb.String()
}

// Validate checks the location parts.
func (l *Location) Validate() error {
	if l.host == "" {
		return fmt.Errorf("%w: missing host", errors.ErrInvalidEndpoint)
	}
	if l.port <= 0 || l.port > 65535 {
		return fmt.Errorf("%w: invalid port %d", errors.ErrInvalidEndpoint, l.port)
	}
	if l.system == "" {
		return fmt.Errorf("%w: missing system name", errors.ErrInvalidEndpoint)
	}
	return nil
}
