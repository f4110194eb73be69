// Package protocol defines the relay's event-tagged JSON envelope.
//
// Every WebSocket text frame carries exactly one Envelope:
//
//	{"event":"signal","data":{"to":"<id>","signal":{...}}}
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
)

type Event string

const (
	// EventConnect is sent once by the relay right after accept.
	EventConnect      Event = "connect"
	EventSignal       Event = "signal"
	EventInitiateCall Event = "initiateCall"
	EventPing         Event = "ping"
	EventPong         Event = "pong"
)

var ErrMissingEvent = errors.New("envelope without event")

type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Welcome is the data of EventConnect.
type Welcome struct {
	ID domain.ConnID `json:"id"`
}

// SignalRequest is what a client sends on EventSignal.
type SignalRequest struct {
	To     domain.ConnID   `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// SignalDelivery is what the relay emits on EventSignal.
type SignalDelivery struct {
	From   domain.ConnID   `json:"from"`
	Signal json.RawMessage `json:"signal"`
}

// Encode marshals data and wraps it in an envelope for ev. A nil data
// produces an envelope without a data field.
func Encode(ev Event, data any) ([]byte, error) {
	env := Envelope{Event: ev}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ev, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func Decode(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrMissingEvent
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: empty data", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	return nil
}
