package rtc

import (
	"encoding/json"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/pion/webrtc/v4"
)

type msgType string

const (
	msgOffer     msgType = "offer"
	msgAnswer    msgType = "answer"
	msgCandidate msgType = "candidate"
	msgBye       msgType = "bye"
)

// negotiation is the payload carried inside the relay's opaque signal field.
type negotiation struct {
	Type      msgType                  `json:"type"`
	CallID    domain.CallID            `json:"callId"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
}

func (n negotiation) encode() (json.RawMessage, error) {
	return json.Marshal(n)
}
