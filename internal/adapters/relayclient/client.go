// Package relayclient is the call client's connection to the signaling relay.
package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var ErrClosed = errors.New("relay connection closed")

// Conn implements core.RelayConn over a gorilla WebSocket.
type Conn struct {
	ws  *websocket.Conn
	wmu sync.Mutex

	mu         sync.RWMutex
	id         domain.ConnID
	onSignal   func(from domain.ConnID, payload json.RawMessage)
	onInitiate func(from domain.ConnID)

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// WSURL turns the configured relay address into its WebSocket endpoint:
// http(s)://host → ws(s)://host/ws. ws(s) URLs with a path are kept as is.
func WSURL(server string) (string, error) {
	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("parse relay address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("relay address %q has no host", server)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	return u.String(), nil
}

// Dial connects to the relay and starts reading. The identifier becomes
// available once Ready is closed.
func Dial(ctx context.Context, server string) (*Conn, error) {
	wsURL, err := WSURL(server)
	if err != nil {
		return nil, err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to relay: %w", err)
	}
	c := &Conn{
		ws:    ws,
		ready: make(chan struct{}),
		done:  make(chan struct{}),
	}
	log.Info().Str("module", "relayclient").Str("url", wsURL).Msg("connected to relay")
	go c.readLoop()
	return c, nil
}

func (c *Conn) Ready() <-chan struct{} { return c.ready }
func (c *Conn) Done() <-chan struct{}  { return c.done }

func (c *Conn) ID() domain.ConnID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// WaitReady blocks until the relay assigned an identifier.
func (c *Conn) WaitReady(ctx context.Context) (domain.ConnID, error) {
	select {
	case <-c.ready:
		return c.ID(), nil
	case <-c.done:
		return "", ErrClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Conn) OnSignal(fn func(from domain.ConnID, payload json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSignal = fn
}

func (c *Conn) OnInitiateCall(fn func(from domain.ConnID)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onInitiate = fn
}

func (c *Conn) SendSignal(to domain.ConnID, payload json.RawMessage) error {
	return c.emit(protocol.EventSignal, protocol.SignalRequest{To: to, Signal: payload})
}

func (c *Conn) InitiateCall(to domain.ConnID) error {
	return c.emit(protocol.EventInitiateCall, to)
}

func (c *Conn) Ping() error {
	return c.emit(protocol.EventPing, nil)
}

func (c *Conn) emit(ev protocol.Event, data any) error {
	b, err := protocol.Encode(ev, data)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("emit %s: %w", ev, err)
	}
	return nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.wmu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.wmu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) readLoop() {
	defer func() {
		close(c.done)
		_ = c.ws.Close()
	}()
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Str("module", "relayclient").Msg("relay closed")
			} else {
				log.Warn().Err(err).Str("module", "relayclient").Msg("read error")
			}
			return
		}
		c.dispatch(data)
	}
}

func (c *Conn) dispatch(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "relayclient").Msg("bad frame")
		return
	}

	switch env.Event {
	case protocol.EventConnect:
		var w protocol.Welcome
		if err := env.DecodeData(&w); err != nil {
			log.Warn().Err(err).Str("module", "relayclient").Msg("bad connect payload")
			return
		}
		c.readyOnce.Do(func() {
			c.mu.Lock()
			c.id = w.ID
			c.mu.Unlock()
			close(c.ready)
		})
		log.Info().Str("module", "relayclient").Str("conn_id", string(w.ID)).Msg("identity assigned")

	case protocol.EventSignal:
		var d protocol.SignalDelivery
		if err := env.DecodeData(&d); err != nil {
			log.Warn().Err(err).Str("module", "relayclient").Msg("bad signal payload")
			return
		}
		c.mu.RLock()
		fn := c.onSignal
		c.mu.RUnlock()
		if fn != nil {
			fn(d.From, d.Signal)
		}

	case protocol.EventInitiateCall:
		var from domain.ConnID
		if err := env.DecodeData(&from); err != nil {
			log.Warn().Err(err).Str("module", "relayclient").Msg("bad initiateCall payload")
			return
		}
		c.mu.RLock()
		fn := c.onInitiate
		c.mu.RUnlock()
		if fn != nil {
			fn(from)
		}

	case protocol.EventPong:
		log.Debug().Str("module", "relayclient").Msg("pong")

	default:
		log.Debug().Str("module", "relayclient").Str("event", string(env.Event)).Msg("ignored event")
	}
}
