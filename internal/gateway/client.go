package gateway

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/volumeee/zenclaw-sub000/internal/logging"
)

// ErrClientClosed is returned by sends on a connection that has gone away.
var ErrClientClosed = errors.New("gateway: client closed")

const writeTimeout = 10 * time.Second

// Client is one authenticated websocket connection. Writes are serialized;
// reads happen only on the connection's own read loop.
type Client struct {
	ConnID      string
	Info        ClientInfo
	AuthMethod  string
	ConnectedAt time.Time

	ws     *websocket.Conn
	wmu    sync.Mutex
	closed bool
	frames atomic.Int64
}

// NewClient wraps conn after a successful connect handshake.
func NewClient(conn *websocket.Conn, info ClientInfo, auth AuthResult) *Client {
	return &Client{
		ConnID:      uuid.NewString(),
		Info:        info,
		AuthMethod:  auth.Method,
		ConnectedAt: time.Now(),
		ws:          conn,
	}
}

// Send writes f to the socket.
func (c *Client) Send(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed || c.ws == nil {
		return ErrClientClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	c.frames.Add(1)
	return nil
}

// FramesSent counts frames successfully written to this client.
func (c *Client) FramesSent() int64 { return c.frames.Load() }

func (c *Client) SendEvent(event string, payload any, seq int64) error {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) Respond(reqID string, payload any) error {
	f, err := NewResponse(reqID, payload)
	if err != nil {
		return err
	}
	return c.Send(f)
}

func (c *Client) RespondError(reqID string, e ErrorShape) error {
	return c.Send(NewErrorResponse(reqID, e))
}

// ReadFrame blocks for the next frame from the client.
func (c *Client) ReadFrame() (Frame, error) {
	var f Frame
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return f, err
	}
	err = json.Unmarshal(msg, &f)
	return f, err
}

// Close closes the socket once; later calls are no-ops.
func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ws == nil {
		return nil
	}
	return c.ws.Close()
}

// ClientRegistry tracks live connections by connection id.
type ClientRegistry struct {
	clients *haxmap.Map[string, *Client]
	log     *logging.Logger
}

func NewClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: haxmap.New[string, *Client](), log: log}
}

func (r *ClientRegistry) Add(c *Client) {
	r.clients.Set(c.ConnID, c)
	r.log.Info().Str("connId", c.ConnID).Str("client", c.Info.ID).Str("auth", c.AuthMethod).Msg("client connected")
}

func (r *ClientRegistry) Remove(connID string) {
	c, ok := r.clients.Get(connID)
	if !ok {
		return
	}
	r.clients.Del(connID)
	r.log.Info().
		Str("connId", connID).
		Int64("frames", c.FramesSent()).
		Dur("connected", time.Since(c.ConnectedAt)).
		Msg("client disconnected")
}

func (r *ClientRegistry) Get(connID string) (*Client, bool) {
	return r.clients.Get(connID)
}

func (r *ClientRegistry) Count() int {
	return int(r.clients.Len())
}

// Broadcast sends one event to every client and returns how many accepted
// it. Sends are sequential, so a slow client delays the ones after it.
func (r *ClientRegistry) Broadcast(event string, payload any, seq int64) int {
	f, err := NewEvent(event, payload, seq)
	if err != nil {
		r.log.Warn().Err(err).Str("event", event).Msg("encoding broadcast failed")
		return 0
	}

	sent := 0
	r.clients.ForEach(func(id string, c *Client) bool {
		if err := c.Send(f); err != nil {
			r.log.Debug().Err(err).Str("connId", id).Msg("broadcast send failed")
		} else {
			sent++
		}
		return true
	})
	return sent
}

// CloseAll closes and forgets every client.
func (r *ClientRegistry) CloseAll() {
	var ids []string
	r.clients.ForEach(func(id string, c *Client) bool {
		c.Close()
		ids = append(ids, id)
		return true
	})
	r.clients.Del(ids...)
}
