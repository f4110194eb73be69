// Package rtc is the negotiation service: pion peer connections whose
// offer/answer/candidate exchange rides the relay's signal event.
package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotOpen  = errors.New("negotiation service has no identity yet")
	ErrSelfCall = errors.New("cannot call own identifier")
)

type Options struct {
	ICEServers []string
	// IncludeLoopback gathers 127.0.0.1 candidates, for same-host calls.
	IncludeLoopback bool
}

func DefaultWebRTCConfig(iceServers []string) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return cfg
}

// Peer implements core.Negotiator on top of a relay connection.
// Its identity is the relay connection identifier.
type Peer struct {
	relay core.RelayConn
	api   *webrtc.API
	cfg   webrtc.Configuration

	mu     sync.Mutex
	calls  map[domain.CallID]*Call
	onCall func(core.MediaCall)
	onData func(from domain.ConnID, label string, data []byte)
}

func NewPeer(relay core.RelayConn, opts Options) (*Peer, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	se := webrtc.SettingEngine{}
	se.SetIncludeLoopbackCandidate(opts.IncludeLoopback)

	p := &Peer{
		relay: relay,
		api:   webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithSettingEngine(se)),
		cfg:   DefaultWebRTCConfig(opts.ICEServers),
		calls: make(map[domain.CallID]*Call),
	}
	relay.OnSignal(p.handleSignal)
	relay.OnInitiateCall(func(from domain.ConnID) {
		log.Info().Str("module", "rtc").Str("from", string(from)).Msg("incoming call intent")
	})
	return p, nil
}

// Open waits for the relay to assign this peer's identifier.
func (p *Peer) Open(ctx context.Context) (domain.ConnID, error) {
	select {
	case <-p.relay.Ready():
		id := p.relay.ID()
		log.Info().Str("module", "rtc").Str("peer_id", string(id)).Msg("open")
		return id, nil
	case <-p.relay.Done():
		return "", ErrNotOpen
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *Peer) OnCall(fn func(core.MediaCall)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCall = fn
}

// OnData registers a handler for messages on data channels the remote side
// opens. Messages are logged either way.
func (p *Peer) OnData(fn func(from domain.ConnID, label string, data []byte)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onData = fn
}

func (p *Peer) dataHandler() func(domain.ConnID, string, []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.onData
}

// Call announces the call to remote and sends it an offer carrying stream.
func (p *Peer) Call(ctx context.Context, remote domain.ConnID, stream *media.Stream) (core.MediaCall, error) {
	self := p.relay.ID()
	if self == "" {
		return nil, ErrNotOpen
	}
	if remote == self {
		return nil, ErrSelfCall
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	call, err := newCall(p, domain.NewCallID(), remote, false)
	if err != nil {
		return nil, err
	}
	p.track(call)

	if err := p.relay.InitiateCall(remote); err != nil {
		call.shutdown()
		return nil, fmt.Errorf("initiate call: %w", err)
	}
	if err := call.offerTo(stream); err != nil {
		call.shutdown()
		return nil, err
	}
	call.logger.Info().Msg("offer sent")
	return call, nil
}

// Disconnect hangs up every call.
func (p *Peer) Disconnect() {
	p.mu.Lock()
	calls := make([]*Call, 0, len(p.calls))
	for _, c := range p.calls {
		calls = append(calls, c)
	}
	p.mu.Unlock()

	for _, c := range calls {
		_ = c.Close()
	}
}

func (p *Peer) send(to domain.ConnID, n negotiation) error {
	raw, err := n.encode()
	if err != nil {
		return err
	}
	return p.relay.SendSignal(to, raw)
}

func (p *Peer) track(c *Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[c.id] = c
}

// trackNew registers c unless its call id is already live.
func (p *Peer) trackNew(c *Call) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.calls[c.id]; ok {
		return false
	}
	p.calls[c.id] = c
	return true
}

func (p *Peer) forget(id domain.CallID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.calls, id)
}

func (p *Peer) lookup(from domain.ConnID, id domain.CallID) (*Call, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[id]
	if !ok || c.peer != from {
		return nil, false
	}
	return c, true
}

func (p *Peer) handleSignal(from domain.ConnID, payload json.RawMessage) {
	var n negotiation
	if err := json.Unmarshal(payload, &n); err != nil {
		log.Warn().Err(err).Str("module", "rtc").Str("from", string(from)).Msg("bad negotiation payload")
		return
	}
	if n.CallID == "" {
		log.Warn().Str("module", "rtc").Str("from", string(from)).Msg("negotiation without call id")
		return
	}

	if n.Type == msgOffer {
		p.handleOffer(from, n)
		return
	}

	call, ok := p.lookup(from, n.CallID)
	if !ok {
		log.Debug().Str("module", "rtc").Str("from", string(from)).Str("call_id", string(n.CallID)).Str("type", string(n.Type)).Msg("no such call")
		return
	}

	switch n.Type {
	case msgAnswer:
		if err := call.applyRemote(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: n.SDP}); err != nil {
			call.logger.Error().Err(err).Msg("apply answer")
			call.shutdown()
		}
	case msgCandidate:
		if n.Candidate != nil {
			call.addCandidate(*n.Candidate)
		}
	case msgBye:
		call.logger.Info().Msg("remote hung up")
		call.shutdown()
	default:
		call.logger.Warn().Str("type", string(n.Type)).Msg("unknown negotiation message")
	}
}

func (p *Peer) handleOffer(from domain.ConnID, n negotiation) {
	p.mu.Lock()
	fn := p.onCall
	_, dup := p.calls[n.CallID]
	p.mu.Unlock()
	if dup {
		log.Warn().Str("module", "rtc").Str("from", string(from)).Str("call_id", string(n.CallID)).Msg("offer for a live call id, ignored")
		return
	}

	call, err := newCall(p, n.CallID, from, true)
	if err != nil {
		log.Error().Err(err).Str("module", "rtc").Str("from", string(from)).Msg("incoming call")
		return
	}
	call.offer = &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: n.SDP}
	if !p.trackNew(call) {
		_ = call.pc.Close()
		return
	}
	call.logger.Info().Msg("incoming offer")

	if fn == nil {
		call.logger.Warn().Msg("no call handler, rejecting")
		_ = call.Close()
		return
	}
	fn(call)
}
