package rtc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotIncoming = errors.New("call is not an unanswered incoming call")
	ErrCallClosed  = errors.New("call closed")
)

// Call is one peer connection to a remote identifier. It implements
// core.MediaCall.
type Call struct {
	id       domain.CallID
	peer     domain.ConnID
	incoming bool
	owner    *Peer
	pc       *webrtc.PeerConnection
	logger   zerolog.Logger

	mu        sync.Mutex
	offer     *webrtc.SessionDescription
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	remote    *media.Stream
	onStream  func(*media.Stream)
	onClose   func()
	closed    bool

	// local candidates wait until our description has been sent
	descSent bool
	outgoing []webrtc.ICECandidateInit
}

func newCall(owner *Peer, id domain.CallID, peer domain.ConnID, incoming bool) (*Call, error) {
	pc, err := owner.api.NewPeerConnection(owner.cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	c := &Call{
		id:       id,
		peer:     peer,
		incoming: incoming,
		owner:    owner,
		pc:       pc,
		logger: log.With().
			Str("module", "rtc").
			Str("call_id", string(id)).
			Str("peer", string(peer)).
			Logger(),
	}
	c.bind()
	return c, nil
}

func (c *Call) bind() {
	c.pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed {
			c.shutdown()
		}
	})

	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		init := cand.ToJSON()
		c.mu.Lock()
		if !c.descSent {
			c.outgoing = append(c.outgoing, init)
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
		c.sendCandidate(init)
	})

	c.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		label := dc.Label()
		c.logger.Info().Str("label", label).Msg("data channel opened by peer")
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			c.logger.Info().Str("label", label).Int("bytes", len(msg.Data)).Msg("Received data")
			if fn := c.owner.dataHandler(); fn != nil {
				fn(c.peer, label, msg.Data)
			}
		})
	})

	c.pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.addRemoteTrack(track)
		go drainRTP(track)
	})
}

func (c *Call) ID() domain.CallID   { return c.id }
func (c *Call) Peer() domain.ConnID { return c.peer }

// OnStream fires once with the remote stream; immediately if it already arrived.
func (c *Call) OnStream(fn func(*media.Stream)) {
	c.mu.Lock()
	c.onStream = fn
	s := c.remote
	c.mu.Unlock()
	if s != nil && fn != nil {
		fn(s)
	}
}

// OnClose fires once when the call ends; immediately if it already has.
func (c *Call) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	closed := c.closed
	c.mu.Unlock()
	if closed && fn != nil {
		fn()
	}
}

func (c *Call) addLocalStream(stream *media.Stream) error {
	if stream == nil {
		return nil
	}
	for _, t := range stream.Tracks() {
		if t.Local() == nil {
			continue
		}
		sender, err := c.pc.AddTrack(t.Local())
		if err != nil {
			return fmt.Errorf("add %s track: %w", t.Kind(), err)
		}
		go drainRTCP(sender)
	}
	return nil
}

func (c *Call) addRemoteTrack(track *webrtc.TrackRemote) {
	c.mu.Lock()
	first := c.remote == nil
	if first {
		c.remote = media.NewStream(track.StreamID())
	}
	c.remote.AddTrack(media.NewRemoteTrack(track))
	s, fn := c.remote, c.onStream
	c.mu.Unlock()

	if first && fn != nil {
		fn(s)
	}
}

// offerTo creates the local offer for an outgoing call.
func (c *Call) offerTo(stream *media.Stream) error {
	if err := c.addLocalStream(stream); err != nil {
		return err
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	return c.sendDescription(negotiation{Type: msgOffer, CallID: c.id, SDP: offer.SDP})
}

// Answer accepts an incoming call with the local stream.
func (c *Call) Answer(stream *media.Stream) error {
	c.mu.Lock()
	offer := c.offer
	c.offer = nil
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrCallClosed
	}
	if !c.incoming || offer == nil {
		return ErrNotIncoming
	}

	if err := c.addLocalStream(stream); err != nil {
		return err
	}
	if err := c.applyRemote(*offer); err != nil {
		return err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	c.logger.Info().Msg("answering")
	return c.sendDescription(negotiation{Type: msgAnswer, CallID: c.id, SDP: answer.SDP})
}

func (c *Call) sendDescription(n negotiation) error {
	if err := c.owner.send(c.peer, n); err != nil {
		return fmt.Errorf("send %s: %w", n.Type, err)
	}
	c.mu.Lock()
	c.descSent = true
	queued := c.outgoing
	c.outgoing = nil
	c.mu.Unlock()

	for _, cand := range queued {
		c.sendCandidate(cand)
	}
	return nil
}

func (c *Call) sendCandidate(cand webrtc.ICECandidateInit) {
	if err := c.owner.send(c.peer, negotiation{Type: msgCandidate, CallID: c.id, Candidate: &cand}); err != nil {
		c.logger.Warn().Err(err).Msg("send candidate")
	}
}

// applyRemote sets the remote description and flushes queued candidates.
func (c *Call) applyRemote(desc webrtc.SessionDescription) error {
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	c.mu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, cand := range pending {
		if err := c.pc.AddICECandidate(cand); err != nil {
			c.logger.Warn().Err(err).Msg("add queued ICE candidate")
		}
	}
	return nil
}

func (c *Call) addCandidate(cand webrtc.ICECandidateInit) {
	c.mu.Lock()
	if !c.remoteSet {
		c.pending = append(c.pending, cand)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	if err := c.pc.AddICECandidate(cand); err != nil {
		c.logger.Warn().Err(err).Msg("add ICE candidate")
	}
}

// Close hangs up: the remote side is told with a bye.
func (c *Call) Close() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil
	}
	if err := c.owner.send(c.peer, negotiation{Type: msgBye, CallID: c.id}); err != nil {
		c.logger.Debug().Err(err).Msg("send bye")
	}
	c.shutdown()
	return nil
}

// shutdown releases the peer connection without notifying the remote side.
func (c *Call) shutdown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	fn := c.onClose
	c.mu.Unlock()

	c.owner.forget(c.id)
	if err := c.pc.Close(); err != nil {
		c.logger.Error().Err(err).Msg("close error")
	} else {
		c.logger.Info().Msg("closed")
	}
	if fn != nil {
		fn()
	}
}

func drainRTP(track *webrtc.TrackRemote) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}

func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
