// Package tui is the terminal front end of the call client: pterm output,
// line commands on stdin.
package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dkeye/Meet/internal/app/call"
	"github.com/dkeye/Meet/internal/media"
	"github.com/pterm/pterm"
)

// Controller is the subset of call.Client the command loop drives.
type Controller interface {
	StartCall(ctx context.Context, recipientID string) error
	LeaveCall()
	ToggleCamera() bool
	ToggleMic() bool
	View() call.View
}

const help = `commands:
  call <id>   call a peer
  leave       hang up
  camera      toggle camera
  mic         toggle microphone
  status      show identity and call state
  quit        exit`

// Alerter prints blocking user messages as pterm warnings.
type Alerter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewAlerter(w io.Writer) *Alerter {
	return &Alerter{w: w}
}

func (a *Alerter) Alert(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprint(a.w, pterm.Warning.Sprintln(msg))
}

// WatchPreview reports every stream bound to or cleared from p.
func WatchPreview(w io.Writer, p *media.Preview) {
	p.OnChange(func(s *media.Stream) {
		if s == nil {
			fmt.Fprint(w, pterm.Info.Sprintfln("%s video: cleared", p.Name()))
			return
		}
		line := fmt.Sprintf("%s video: stream %s (%d video, %d audio)",
			p.Name(), s.ID(), len(s.VideoTracks()), len(s.AudioTracks()))
		if cs := remoteCodecs(s); len(cs) > 0 {
			line += " " + strings.Join(cs, ", ")
		}
		fmt.Fprint(w, pterm.Info.Sprintln(line))
	})
}

// remoteCodecs lists the negotiated codec of every received track.
func remoteCodecs(s *media.Stream) []string {
	var out []string
	for _, t := range s.Tracks() {
		if r := t.Remote(); r != nil {
			out = append(out, r.Codec().MimeType)
		}
	}
	return out
}

// RenderStatus draws the view as a two-column table.
func RenderStatus(v call.View) (string, error) {
	recipient := v.RecipientID
	if recipient == "" {
		recipient = "-"
	}
	camera, mic := "on", "on"
	if v.CameraStatus {
		camera = "off"
	}
	if v.MicStatus {
		mic = "off"
	}
	action := "call <id>"
	if v.ShowLeave {
		action = "leave"
	}
	return pterm.DefaultTable.WithData(pterm.TableData{
		{"my id", string(v.MyPeerID)},
		{"recipient", recipient},
		{"camera", camera},
		{"mic", mic},
		{"next", action},
	}).Srender()
}

// Run reads commands from in until quit, EOF or ctx is done.
func Run(ctx context.Context, in io.Reader, out io.Writer, ctl Controller) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	fmt.Fprintln(out, help)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			if quit := dispatch(ctx, out, ctl, line); quit {
				return nil
			}
		}
	}
}

func dispatch(ctx context.Context, out io.Writer, ctl Controller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "call":
		if !ctl.View().ShowCallForm {
			fmt.Fprint(out, pterm.Warning.Sprintln("already in a call, leave first"))
			return false
		}
		var id string
		if len(fields) > 1 {
			id = fields[1]
		}
		// failures are alerted by the client
		if err := ctl.StartCall(ctx, id); err == nil {
			fmt.Fprint(out, pterm.Info.Sprintfln("calling %s", id))
		}
	case "leave":
		ctl.LeaveCall()
		fmt.Fprint(out, pterm.Info.Sprintln("left the call"))
	case "camera":
		if ctl.ToggleCamera() {
			fmt.Fprint(out, pterm.Info.Sprintln("camera off"))
		} else {
			fmt.Fprint(out, pterm.Info.Sprintln("camera on"))
		}
	case "mic":
		if ctl.ToggleMic() {
			fmt.Fprint(out, pterm.Info.Sprintln("mic off"))
		} else {
			fmt.Fprint(out, pterm.Info.Sprintln("mic on"))
		}
	case "status":
		s, err := RenderStatus(ctl.View())
		if err != nil {
			fmt.Fprint(out, pterm.Error.Sprintln(err))
			return false
		}
		fmt.Fprintln(out, s)
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(out, help)
	default:
		fmt.Fprint(out, pterm.Warning.Sprintfln("unknown command %q", fields[0]))
	}
	return false
}
