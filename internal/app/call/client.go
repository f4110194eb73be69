// Package call orchestrates one user's side of a video call: local media,
// identity, at most one active peer session, and the UI toggles.
package call

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoRecipient = errors.New("no recipient id")
	ErrNotReady    = errors.New("local media or identity not ready")
)

const (
	AlertNoRecipient = "Please input the recipient id"
	AlertNotReady    = "Camera and connection are not ready yet"
	AlertMediaPrefix = "Error accessing media devices: "
	AlertCallPrefix  = "Call failed: "
)

type Deps struct {
	Negotiator core.Negotiator
	Devices    media.Devices
	Alerter    core.Alerter
	Local      *media.Preview
	Remote     *media.Preview
}

type Client struct {
	negotiator core.Negotiator
	devices    media.Devices
	alerter    core.Alerter
	local      *media.Preview
	remote     *media.Preview

	mu           sync.Mutex
	stream       *media.Stream
	myID         domain.ConnID
	recipientID  string
	cameraStatus bool
	micStatus    bool
	active       core.MediaCall
}

func New(d Deps) *Client {
	if d.Local == nil {
		d.Local = media.NewPreview("local")
	}
	if d.Remote == nil {
		d.Remote = media.NewPreview("remote")
	}
	return &Client{
		negotiator: d.Negotiator,
		devices:    d.Devices,
		alerter:    d.Alerter,
		local:      d.Local,
		remote:     d.Remote,
	}
}

// Initialize acquires camera and microphone, shows them in the local
// preview and establishes identity. A media failure is alerted and
// leaves the client unable to call.
func (c *Client) Initialize(ctx context.Context) error {
	stream, err := c.devices.GetUserMedia(ctx, media.Constraints{Video: true, Audio: true})
	if err != nil {
		log.Error().Err(err).Str("module", "call").Msg("media access")
		c.alerter.Alert(AlertMediaPrefix + err.Error())
		return fmt.Errorf("access media devices: %w", err)
	}

	c.mu.Lock()
	c.stream = stream
	c.mu.Unlock()
	c.local.Bind(stream)

	c.negotiator.OnCall(func(mc core.MediaCall) {
		if err := c.AnswerIncomingCall(mc); err != nil {
			log.Error().Err(err).Str("module", "call").Str("from", string(mc.Peer())).Msg("answer")
		}
	})

	id, err := c.negotiator.Open(ctx)
	if err != nil {
		return fmt.Errorf("open negotiation service: %w", err)
	}
	c.mu.Lock()
	c.myID = id
	c.mu.Unlock()
	log.Info().Str("module", "call").Str("peer_id", string(id)).Msg("ready")
	return nil
}

// StartCall calls recipientID with the local stream. It fails fast,
// without any relay traffic, when the recipient is empty or the client
// is not initialized.
func (c *Client) StartCall(ctx context.Context, recipientID string) error {
	if recipientID == "" {
		c.alerter.Alert(AlertNoRecipient)
		return ErrNoRecipient
	}

	c.mu.Lock()
	stream, myID := c.stream, c.myID
	c.mu.Unlock()
	if stream == nil || myID == "" {
		c.alerter.Alert(AlertNotReady)
		return ErrNotReady
	}

	log.Info().Str("module", "call").Str("to", recipientID).Msg("start call")
	mc, err := c.negotiator.Call(ctx, domain.ConnID(recipientID), stream)
	if err != nil {
		c.alerter.Alert(AlertCallPrefix + err.Error())
		return fmt.Errorf("call %s: %w", recipientID, err)
	}

	c.mu.Lock()
	c.recipientID = recipientID
	c.mu.Unlock()
	c.attach(mc)
	return nil
}

// AnswerIncomingCall accepts mc with the local stream. An incoming call
// while another is active is rejected.
func (c *Client) AnswerIncomingCall(mc core.MediaCall) error {
	c.mu.Lock()
	busy := c.active != nil
	stream := c.stream
	c.mu.Unlock()

	if busy {
		log.Info().Str("module", "call").Str("from", string(mc.Peer())).Msg("busy, rejecting incoming call")
		return mc.Close()
	}

	c.attach(mc)
	if err := mc.Answer(stream); err != nil {
		c.detach(mc)
		_ = mc.Close()
		return fmt.Errorf("answer %s: %w", mc.Peer(), err)
	}
	log.Info().Str("module", "call").Str("from", string(mc.Peer())).Msg("answered")
	return nil
}

// LeaveCall hangs up and clears the remote preview. Calling it without
// an active call is a no-op.
func (c *Client) LeaveCall() {
	c.mu.Lock()
	mc := c.active
	c.active = nil
	c.recipientID = ""
	c.mu.Unlock()

	if mc != nil {
		if err := mc.Close(); err != nil {
			log.Warn().Err(err).Str("module", "call").Msg("close call")
		}
		log.Info().Str("module", "call").Str("peer", string(mc.Peer())).Msg("left call")
	}
	c.remote.Clear()
}

// ToggleCamera flips the camera flag and sets every local video track's
// enabled state to the flag's previous value.
func (c *Client) ToggleCamera() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.cameraStatus
	c.cameraStatus = !prev
	if c.stream != nil {
		for _, t := range c.stream.VideoTracks() {
			t.SetEnabled(prev)
		}
	}
	return c.cameraStatus
}

// ToggleMic is ToggleCamera for audio tracks; the local preview is muted
// while the flag is set.
func (c *Client) ToggleMic() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.micStatus
	c.micStatus = !prev
	if c.stream != nil {
		for _, t := range c.stream.AudioTracks() {
			t.SetEnabled(prev)
		}
	}
	c.local.SetMuted(c.micStatus)
	return c.micStatus
}

// Close leaves any call and releases the negotiation service.
func (c *Client) Close() {
	c.LeaveCall()
	c.negotiator.Disconnect()
}

func (c *Client) attach(mc core.MediaCall) {
	c.mu.Lock()
	prev := c.active
	c.active = mc
	c.mu.Unlock()
	if prev != nil && prev != mc {
		_ = prev.Close()
	}

	mc.OnStream(func(s *media.Stream) {
		c.mu.Lock()
		current := c.active == mc
		c.mu.Unlock()
		if !current {
			return
		}
		log.Info().Str("module", "call").Str("peer", string(mc.Peer())).Str("stream_id", s.ID()).Msg("remote stream")
		c.remote.Bind(s)
	})
	mc.OnClose(func() { c.detach(mc) })
}

// detach forgets mc if it is still the active call and clears the remote preview.
func (c *Client) detach(mc core.MediaCall) {
	c.mu.Lock()
	if c.active != mc {
		c.mu.Unlock()
		return
	}
	c.active = nil
	c.mu.Unlock()
	c.remote.Clear()
	log.Info().Str("module", "call").Str("peer", string(mc.Peer())).Msg("call ended")
}
