package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Meet/internal/app"
	"github.com/dkeye/Meet/internal/config"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Mode:       "test",
		Port:       5000,
		CORSOrigin: "http://localhost:5173",
		ReadLimit:  65536,
		PingPeriod: time.Minute,
		SendBuffer: 8,
		DropPolicy: config.DropPolicyDrop,
	}
}

func startRelay(t *testing.T) (*httptest.Server, *app.Relay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	relay := app.NewRelay(app.NewRegistry(), app.DropPolicy{})
	srv := httptest.NewServer(SetupRouter(ctx, testConfig(), relay))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, relay
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   domain.ConnID
}

func dial(t *testing.T, srv *httptest.Server) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn}
	env := c.next()
	if env.Event != protocol.EventConnect {
		t.Fatalf("first event=%q, want connect", env.Event)
	}
	var w protocol.Welcome
	if err := env.DecodeData(&w); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if w.ID == "" {
		t.Fatal("empty identifier")
	}
	c.id = w.ID
	return c
}

func (c *wsClient) emit(ev protocol.Event, data any) {
	c.t.Helper()
	b, err := protocol.Encode(ev, data)
	if err != nil {
		c.t.Fatalf("encode: %v", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *wsClient) next() protocol.Envelope {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("read: %v", err)
	}
	env, err := protocol.Decode(data)
	if err != nil {
		c.t.Fatalf("decode: %v", err)
	}
	return env
}

func TestHealthCheck(t *testing.T) {
	relay := app.NewRelay(app.NewRegistry(), nil)
	r := SetupRouter(context.Background(), testConfig(), relay)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != HealthMessage {
		t.Fatalf("body=%q, want %q", rr.Body.String(), HealthMessage)
	}
}

func TestHealthCheckAllowsAnyOrigin(t *testing.T) {
	relay := app.NewRelay(app.NewRegistry(), nil)
	r := SetupRouter(context.Background(), testConfig(), relay)

	for _, origin := range []string{"http://localhost:5173", "http://evil.test"} {
		t.Run(origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Origin", origin)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			if rr.Code != http.StatusOK {
				t.Fatalf("status=%d, want %d", rr.Code, http.StatusOK)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
				t.Fatalf("Access-Control-Allow-Origin=%q, want *", got)
			}
		})
	}
}

func TestWebSocketAcceptsConfiguredOrigin(t *testing.T) {
	srv, _ := startRelay(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	h := http.Header{}
	h.Set("Origin", "http://localhost:5173")

	conn, _, err := websocket.DefaultDialer.Dial(url, h)
	if err != nil {
		t.Fatalf("dial with configured origin: %v", err)
	}
	_ = conn.Close()
}

func TestIdentifiersAreDistinct(t *testing.T) {
	srv, relay := startRelay(t)
	a := dial(t, srv)
	b := dial(t, srv)
	if a.id == b.id {
		t.Fatalf("both connections got %q", a.id)
	}
	if relay.Registry.Count() != 2 {
		t.Fatalf("live=%d, want 2", relay.Registry.Count())
	}
}

func TestSignalForwarding(t *testing.T) {
	srv, _ := startRelay(t)
	a := dial(t, srv)
	b := dial(t, srv)

	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	a.emit(protocol.EventSignal, protocol.SignalRequest{To: b.id, Signal: payload})

	env := b.next()
	if env.Event != protocol.EventSignal {
		t.Fatalf("event=%q, want signal", env.Event)
	}
	var d protocol.SignalDelivery
	if err := env.DecodeData(&d); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if d.From != a.id {
		t.Fatalf("from=%q, want %q", d.From, a.id)
	}
	if string(d.Signal) != string(payload) {
		t.Fatalf("signal=%s, want %s", d.Signal, payload)
	}
}

func TestSignalToUnknownTargetIsDropped(t *testing.T) {
	srv, _ := startRelay(t)
	a := dial(t, srv)
	b := dial(t, srv)

	a.emit(protocol.EventSignal, protocol.SignalRequest{To: "nobody", Signal: json.RawMessage(`{"n":1}`)})
	a.emit(protocol.EventSignal, protocol.SignalRequest{To: b.id, Signal: json.RawMessage(`{"n":2}`)})

	// b sees only the second message.
	var d protocol.SignalDelivery
	if err := b.next().DecodeData(&d); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if string(d.Signal) != `{"n":2}` {
		t.Fatalf("signal=%s, want the message addressed to b", d.Signal)
	}

	// a got no error back: the next thing it reads is the pong.
	a.emit(protocol.EventPing, nil)
	if env := a.next(); env.Event != protocol.EventPong {
		t.Fatalf("event=%q, want pong", env.Event)
	}
}

func TestInitiateCall(t *testing.T) {
	srv, _ := startRelay(t)
	a := dial(t, srv)
	b := dial(t, srv)

	a.emit(protocol.EventInitiateCall, b.id)

	env := b.next()
	if env.Event != protocol.EventInitiateCall {
		t.Fatalf("event=%q, want initiateCall", env.Event)
	}
	var from domain.ConnID
	if err := env.DecodeData(&from); err != nil {
		t.Fatalf("DecodeData: %v", err)
	}
	if from != a.id {
		t.Fatalf("from=%q, want %q", from, a.id)
	}
}

func TestDisconnectUnbinds(t *testing.T) {
	srv, relay := startRelay(t)
	a := dial(t, srv)
	b := dial(t, srv)

	_ = b.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = b.conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for relay.Registry.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("live=%d after disconnect, want 1", relay.Registry.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if relay.Forward(a.id, b.id, json.RawMessage(`{}`)) {
		t.Fatal("Forward to disconnected id reported delivered")
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	srv, _ := startRelay(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	h := http.Header{}
	h.Set("Origin", "http://evil.test")

	_, resp, err := websocket.DefaultDialer.Dial(url, h)
	if err == nil {
		t.Fatal("dial with foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("resp=%v, want 403", resp)
	}
}
