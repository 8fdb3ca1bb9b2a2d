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

// Terminated notifies a watcher that a watched actor stopped. For actors on a
// remote endpoint the Endpoint field carries the host:port of the peer whose
// connection loss triggered the notification.
type Terminated struct {
	Name     string
	Endpoint string
}

// ChannelMessage wraps a value published on a bus channel when it is
// delivered to a subscribed actor.
type ChannelMessage struct {
	Channel string
	Payload any
}

// RollCallRequest asks a recipient to answer the carried roll call. The
// recipient answers by calling RollCall.Answer with its own handle.
type RollCallRequest struct {
	RollCall *RollCall
}

// RollCallComplete notifies the originator that every asked recipient has
// answered. It is delivered exactly once per roll call.
type RollCallComplete struct {
	ID       string
	Answered []string
}

// RollCallTimeout notifies the originator that the roll call timed out with
// only a subset of answers. It is never delivered after a RollCallComplete
// for the same roll call.
type RollCallTimeout struct {
	ID       string
	Answered []string
	Missing  []string
}

// TerminateOutcome is an actor's answer to a termination request.
type TerminateOutcome int

const (
	// TerminateCompleted confirms termination; the actor is stopped and
	// removed from the orchestrator's table.
	TerminateCompleted TerminateOutcome = iota
	// TerminateIgnored declines termination; the actor stays in the table
	// and outlives the current run.
	TerminateIgnored
	// TerminateFailed reports a failed termination; the actor is retained
	// for a later retry.
	TerminateFailed
)

// String returns the textual form of the outcome.
func (o TerminateOutcome) String() string {
	switch o {
	case TerminateCompleted:
		return "terminated"
	case TerminateIgnored:
		return "ignored"
	case TerminateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle control messages are unexported on purpose: only this package can
// construct them, so only the process-internal orchestrator (or the federation
// layer acting on its behalf) can drive phase transitions. An application
// actor has no way to forge one.

type initRequest struct {
	config Config
}

type startRequest struct{}

type terminateRequest struct{}

// ack is the generic positive reply to a lifecycle request.
type ack struct{}

// clockSyncTick triggers a periodic clock re-sync push to all satellites.
type clockSyncTick struct{}
