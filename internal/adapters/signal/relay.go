package signal

import (
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/rs/zerolog/log"
)

// handleSignal forwards {to, signal} as {from, signal}. Nothing is sent
// back to the sender, whether or not the target exists.
func (ctl *SignalWSController) handleSignal(from domain.ConnID, env protocol.Envelope) {
	var req protocol.SignalRequest
	if err := env.DecodeData(&req); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn_id", string(from)).Msg("bad signal payload")
		return
	}
	ctl.Relay.Forward(from, req.To, req.Signal)
}

func (ctl *SignalWSController) handleInitiateCall(from domain.ConnID, env protocol.Envelope) {
	var to domain.ConnID
	if err := env.DecodeData(&to); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn_id", string(from)).Msg("bad initiateCall payload")
		return
	}
	ctl.Relay.NotifyInitiate(from, to)
}
