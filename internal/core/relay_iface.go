package core

import (
	"encoding/json"

	"github.com/dkeye/Meet/internal/domain"
)

// RelayConn is the client's handle on its relay connection. It is passed
// down explicitly so tests can substitute a fake relay.
type RelayConn interface {
	// Ready is closed once the relay has assigned an identifier.
	Ready() <-chan struct{}
	// ID returns the assigned identifier, or "" before Ready.
	ID() domain.ConnID

	SendSignal(to domain.ConnID, payload json.RawMessage) error
	InitiateCall(to domain.ConnID) error

	OnSignal(func(from domain.ConnID, payload json.RawMessage))
	OnInitiateCall(func(from domain.ConnID))

	// Done is closed when the connection is gone for good.
	Done() <-chan struct{}
	Close() error
}
