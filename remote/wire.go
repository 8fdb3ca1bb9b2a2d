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
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/convoy-run/convoy/errors"
)

// Frames are CBOR maps with integer keys, preceded by a 4-byte big-endian
// length. One frame is one message; requests carry a correlation ID that the
// matching ack echoes back.

const maxFrameSize = 16 << 20

// Frame kinds. Request kinds and their ack kinds are distinct so the read
// loop can route acks to the pending call without inspecting payloads.
const (
	kindIdentify uint8 = iota + 1
	kindIdentifyAck
	kindLookup
	kindSpawn
	kindActorAck
	kindControl
	kindControlAck
	kindClock
	kindAck
	kindSubscribe
	kindUnsubscribe
	kindPublish
	kindWatch
	kindTerminated
)

// Ack status codes. Only distinguishable outcomes get their own code; every
// other failure travels as codeFailed plus the error text.
const (
	codeOK uint8 = iota
	codeActorNotFound
	codeTypeNotRegistered
	codeDuplicateName
	codeFailed
)

// Control phases carried by kindControl frames. An empty Actor targets the
// orchestrator itself instead of a single actor.
const (
	phaseInit      = "init"
	phaseStart     = "start"
	phaseTerminate = "terminate"
)

// Clock operations carried by kindClock frames.
const (
	clockStart  = "start"
	clockSync   = "sync"
	clockStop   = "stop"
	clockResume = "resume"
)

type frame struct {
	Kind      uint8           `cbor:"1,keyasint"`
	ID        string          `cbor:"2,keyasint,omitempty"`
	System    string          `cbor:"3,keyasint,omitempty"`
	Endpoint  string          `cbor:"4,keyasint,omitempty"`
	Actor     string          `cbor:"5,keyasint,omitempty"`
	ActorKind string          `cbor:"6,keyasint,omitempty"`
	Phase     string          `cbor:"7,keyasint,omitempty"`
	Op        string          `cbor:"8,keyasint,omitempty"`
	Channel   string          `cbor:"9,keyasint,omitempty"`
	Config    map[string]any  `cbor:"10,keyasint,omitempty"`
	Payload   cbor.RawMessage `cbor:"11,keyasint,omitempty"`
	SimTime   time.Time       `cbor:"12,keyasint"`
	Scale     float64         `cbor:"13,keyasint,omitempty"`
	Outcome   uint8           `cbor:"14,keyasint,omitempty"`
	Code      uint8           `cbor:"15,keyasint,omitempty"`
	Error     string          `cbor:"16,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeUnixMicro}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

func writeFrame(w io.Writer, f *frame) error {
	data, err := encMode.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func readFrame(r io.Reader) (*frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds the %d byte limit", size, maxFrameSize)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	f := new(frame)
	if err := decMode.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return f, nil
}

// isAck reports whether the frame answers a pending call.
func isAck(kind uint8) bool {
	switch kind {
	case kindIdentifyAck, kindActorAck, kindControlAck, kindAck:
		return true
	}
	return false
}

func encodePayload(value any) (cbor.RawMessage, error) {
	data, err := encMode.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return data, nil
}

func decodePayload(raw cbor.RawMessage) (any, error) {
	var value any
	if err := decMode.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return value, nil
}

// ackError maps the status code of an ack back to the caller-facing error.
func ackError(f *frame) error {
	switch f.Code {
	case codeOK:
		return nil
	case codeActorNotFound:
		return errors.ErrRemoteActorNotFound
	case codeTypeNotRegistered:
		return errors.ErrTypeNotRegistered
	case codeDuplicateName:
		return errors.ErrDuplicateName
	default:
		if f.Error != "" {
			return stderrors.New(f.Error)
		}
		return stderrors.New("remote operation failed")
	}
}

// ackStatus maps a handler error to the status code and text put on the ack.
func ackStatus(err error) (uint8, string) {
	switch {
	case err == nil:
		return codeOK, ""
	case stderrors.Is(err, errors.ErrActorNotFound), stderrors.Is(err, errors.ErrRemoteActorNotFound):
		return codeActorNotFound, ""
	case stderrors.Is(err, errors.ErrTypeNotRegistered):
		return codeTypeNotRegistered, ""
	case stderrors.Is(err, errors.ErrDuplicateName):
		return codeDuplicateName, ""
	default:
		return codeFailed, err.Error()
	}
}
