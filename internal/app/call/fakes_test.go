package call

import (
	"context"
	"sync"

	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

type fakeAlerter struct {
	mu   sync.Mutex
	msgs []string
}

func (a *fakeAlerter) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.msgs = append(a.msgs, msg)
}

func (a *fakeAlerter) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.msgs...)
}

type fakeDevices struct {
	err    error
	stream *media.Stream
}

func (d *fakeDevices) GetUserMedia(context.Context, media.Constraints) (*media.Stream, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.stream == nil {
		d.stream = media.NewStream("local",
			media.NewTrack("v", media.KindVideo, nil),
			media.NewTrack("a", media.KindAudio, nil),
		)
	}
	return d.stream, nil
}

type fakeCall struct {
	id   domain.CallID
	peer domain.ConnID

	mu       sync.Mutex
	answered *media.Stream
	onStream func(*media.Stream)
	onClose  func()
	closed   int
}

func (c *fakeCall) ID() domain.CallID   { return c.id }
func (c *fakeCall) Peer() domain.ConnID { return c.peer }

func (c *fakeCall) Answer(s *media.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = s
	return nil
}

func (c *fakeCall) OnStream(fn func(*media.Stream)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStream = fn
}

func (c *fakeCall) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = fn
}

func (c *fakeCall) Close() error {
	c.mu.Lock()
	c.closed++
	first := c.closed == 1
	fn := c.onClose
	c.mu.Unlock()
	if first && fn != nil {
		fn()
	}
	return nil
}

// deliver simulates the remote stream arriving.
func (c *fakeCall) deliver(s *media.Stream) {
	c.mu.Lock()
	fn := c.onStream
	c.mu.Unlock()
	fn(s)
}

func (c *fakeCall) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeNegotiator struct {
	id      domain.ConnID
	openErr error

	mu           sync.Mutex
	onCall       func(core.MediaCall)
	calls        []*fakeCall
	disconnected bool
}

func (n *fakeNegotiator) Open(context.Context) (domain.ConnID, error) {
	if n.openErr != nil {
		return "", n.openErr
	}
	return n.id, nil
}

func (n *fakeNegotiator) Call(_ context.Context, remote domain.ConnID, _ *media.Stream) (core.MediaCall, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := &fakeCall{id: domain.NewCallID(), peer: remote}
	n.calls = append(n.calls, c)
	return c, nil
}

func (n *fakeNegotiator) OnCall(fn func(core.MediaCall)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onCall = fn
}

func (n *fakeNegotiator) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnected = true
}

// ring simulates an incoming call from remote.
func (n *fakeNegotiator) ring(remote domain.ConnID) *fakeCall {
	c := &fakeCall{id: domain.NewCallID(), peer: remote}
	n.mu.Lock()
	fn := n.onCall
	n.mu.Unlock()
	fn(c)
	return c
}

func (n *fakeNegotiator) callCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
