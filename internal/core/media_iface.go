package core

import (
	"context"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

// Negotiator is the peer-to-peer session service: it owns the local
// identity and creates or receives MediaCalls.
type Negotiator interface {
	// Open establishes identity with the negotiation service.
	Open(ctx context.Context) (domain.ConnID, error)
	// Call offers stream to remote and returns the pending call.
	Call(ctx context.Context, remote domain.ConnID, stream *media.Stream) (MediaCall, error)
	// OnCall registers the handler for incoming calls.
	OnCall(func(MediaCall))
	// Disconnect tears down every call owned by this negotiator.
	Disconnect()
}

// MediaCall is one peer session, outgoing or incoming.
type MediaCall interface {
	ID() domain.CallID
	Peer() domain.ConnID
	// Answer accepts an incoming call with the local stream.
	Answer(stream *media.Stream) error
	// OnStream fires once with the remote stream.
	OnStream(func(*media.Stream))
	// OnClose fires once when the call ends for any reason.
	OnClose(func())
	Close() error
}

// Alerter surfaces blocking, user-visible messages.
type Alerter interface {
	Alert(msg string)
}
