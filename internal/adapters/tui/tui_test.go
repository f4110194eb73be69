package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app/call"
	"github.com/dkeye/Meet/internal/media"
	"github.com/pterm/pterm"
)

func init() {
	pterm.DisableStyling()
}

type fakeController struct {
	calls   []string
	leaves  int
	camera  bool
	mic     bool
	view    call.View
	callErr error
}

func (f *fakeController) StartCall(_ context.Context, id string) error {
	f.calls = append(f.calls, id)
	return f.callErr
}

func (f *fakeController) LeaveCall() { f.leaves++ }

func (f *fakeController) ToggleCamera() bool {
	f.camera = !f.camera
	return f.camera
}

func (f *fakeController) ToggleMic() bool {
	f.mic = !f.mic
	return f.mic
}

func (f *fakeController) View() call.View { return f.view }

func run(t *testing.T, ctl Controller, input string) string {
	t.Helper()
	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := Run(ctx, strings.NewReader(input), &out, ctl); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.String()
}

func TestRunCommands(t *testing.T) {
	ctl := &fakeController{view: call.View{ShowCallForm: true}}
	out := run(t, ctl, "call B1\ncamera\nmic\nleave\nbogus\nquit\ncall C1\n")

	if len(ctl.calls) != 1 || ctl.calls[0] != "B1" {
		t.Fatalf("calls=%v, want [B1]", ctl.calls)
	}
	if ctl.leaves != 1 {
		t.Fatalf("leaves=%d, want 1", ctl.leaves)
	}
	for _, want := range []string{"calling B1", "camera off", "mic off", "left the call", `unknown command "bogus"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCallWithoutID(t *testing.T) {
	ctl := &fakeController{callErr: call.ErrNoRecipient, view: call.View{ShowCallForm: true}}
	out := run(t, ctl, "call\n")

	if len(ctl.calls) != 1 || ctl.calls[0] != "" {
		t.Fatalf("calls=%q, want one empty id", ctl.calls)
	}
	if strings.Contains(out, "calling") {
		t.Fatalf("reported calling on failure:\n%s", out)
	}
}

func TestRunRefusesCallWhileInCall(t *testing.T) {
	ctl := &fakeController{view: call.View{ShowCallForm: false, ShowLeave: true}}
	out := run(t, ctl, "call C1\n")

	if len(ctl.calls) != 0 {
		t.Fatalf("calls=%v, want none while a call is shown", ctl.calls)
	}
	if !strings.Contains(out, "already in a call") {
		t.Fatalf("no refusal in output:\n%s", out)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, r, io.Discard, &fakeController{}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRenderStatus(t *testing.T) {
	s, err := RenderStatus(call.View{MyPeerID: "A1", RecipientID: "B1", CameraStatus: true, ShowLeave: true})
	if err != nil {
		t.Fatalf("RenderStatus: %v", err)
	}
	for _, want := range []string{"A1", "B1", "off", "leave"} {
		if !strings.Contains(s, want) {
			t.Errorf("status missing %q:\n%s", want, s)
		}
	}
}

func TestAlerter(t *testing.T) {
	var buf bytes.Buffer
	NewAlerter(&buf).Alert(call.AlertNoRecipient)
	if !strings.Contains(buf.String(), call.AlertNoRecipient) {
		t.Fatalf("alert output %q", buf.String())
	}
}

func TestWatchPreview(t *testing.T) {
	var buf bytes.Buffer
	p := media.NewPreview("remote")
	WatchPreview(&buf, p)

	p.Bind(media.NewStream("s1", media.NewTrack("v", media.KindVideo, nil)))
	p.Clear()

	out := buf.String()
	if !strings.Contains(out, "remote video: stream s1 (1 video, 0 audio)") {
		t.Fatalf("bind not reported:\n%s", out)
	}
	if !strings.Contains(out, "remote video: cleared") {
		t.Fatalf("clear not reported:\n%s", out)
	}
}
