package app

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// Relay forwards opaque payloads between live connections by identifier.
// It keeps no state of its own beyond the registry.
type Relay struct {
	Registry *Registry
	Policy   Policy
}

func NewRelay(reg *Registry, policy Policy) *Relay {
	if policy == nil {
		policy = DropPolicy{}
	}
	return &Relay{Registry: reg, Policy: policy}
}

// Forward delivers {from, signal} to target on the signal event. An
// unknown target drops the message; the sender is not told. It reports
// whether the message was queued.
func (r *Relay) Forward(from, to domain.ConnID, payload json.RawMessage) bool {
	return r.deliver(from, to, protocol.EventSignal, protocol.SignalDelivery{From: from, Signal: payload})
}

// NotifyInitiate tells target that from wants to call it.
func (r *Relay) NotifyInitiate(from, to domain.ConnID) bool {
	return r.deliver(from, to, protocol.EventInitiateCall, from)
}

func (r *Relay) deliver(from, to domain.ConnID, ev protocol.Event, data any) bool {
	logger := log.With().
		Str("module", "app.relay").
		Str("event", string(ev)).
		Str("from", string(from)).
		Str("to", string(to)).
		Logger()

	conn, ok := r.Registry.Lookup(to)
	if !ok {
		logger.Debug().Msg("target not connected, dropping")
		return false
	}

	frame, err := protocol.Encode(ev, data)
	if err != nil {
		logger.Error().Err(err).Msg("encode")
		return false
	}

	if err := conn.TrySend(core.Frame(frame)); err != nil {
		if errors.Is(err, core.ErrBackpressure) && r.Policy.OnBackPressure(to) == Disconnect {
			logger.Warn().Msg("target too slow, disconnecting")
			r.Registry.Cancel(to)
			return false
		}
		logger.Debug().Err(err).Msg("send failed, dropping")
		return false
	}
	logger.Debug().Msg("forwarded")
	return true
}
