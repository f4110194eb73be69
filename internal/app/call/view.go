package call

import (
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/media"
)

// View is what the UI renders.
type View struct {
	MyPeerID    domain.ConnID
	RecipientID string
	// CameraStatus and MicStatus are true while the UI offers "turn on".
	CameraStatus bool
	MicStatus    bool
	LocalMuted   bool
	// ShowCallForm hides the recipient input once a remote stream is shown.
	ShowCallForm bool
	ShowLeave    bool
}

func (c *Client) View() View {
	c.mu.Lock()
	v := View{
		MyPeerID:     c.myID,
		RecipientID:  c.recipientID,
		CameraStatus: c.cameraStatus,
		MicStatus:    c.micStatus,
	}
	c.mu.Unlock()

	bound := c.remote.Bound()
	v.LocalMuted = c.local.Muted()
	v.ShowCallForm = !bound
	v.ShowLeave = bound
	return v
}

func (c *Client) LocalPreview() *media.Preview  { return c.local }
func (c *Client) RemotePreview() *media.Preview { return c.remote }
