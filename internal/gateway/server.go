// Package gateway exposes the event bus to remote observers over WebSocket
// and serves health and metrics over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/gorilla/websocket"

	"github.com/volumeee/zenclaw-sub000/internal/bus"
	"github.com/volumeee/zenclaw-sub000/internal/config"
	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/logging"
	"github.com/volumeee/zenclaw-sub000/internal/metrics"
)

// Channel is the inbound channel name for messages sent through the gateway.
const Channel = "gateway"

// Bus is the part of the event bus the gateway uses.
type Bus interface {
	PublishInbound(ctx context.Context, msg domain.InboundMessage) error
	SubscribeSystem() *bus.Subscription[domain.SystemEvent]
	SubscribeOutbound() *bus.Subscription[domain.OutboundMessage]
}

// MetricsSource supplies the counters served by /metrics.
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// Server is the gateway HTTP + WebSocket server.
type Server struct {
	cfg      config.GatewayConfig
	auth     ResolvedAuth
	bus      Bus
	metrics  MetricsSource
	log      *logging.Logger
	clients  *ClientRegistry
	handlers map[string]RequestHandler
	eventSeq atomic.Int64

	// chats maps a gateway chat ID to the connection that owns it, so
	// replies reach the client that asked.
	chats *haxmap.Map[string, string]

	startedAt   time.Time
	addr        atomic.Value
	upgrader    websocket.Upgrader
	authLimiter *authRateLimiter
}

// ServerOption configures the gateway server.
type ServerOption func(*Server)

// WithMetrics enables the metrics endpoint and RPC method.
func WithMetrics(m MetricsSource) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// New creates a gateway server over b.
func New(cfg config.GatewayConfig, b Bus, log *logging.Logger, opts ...ServerOption) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        ResolveAuth(cfg.Auth),
		bus:         b,
		log:         log.Sub("gateway"),
		clients:     NewClientRegistry(log.Sub("gateway.clients")),
		handlers:    make(map[string]RequestHandler),
		chats:       haxmap.New[string, string](),
		startedAt:   time.Now(),
		authLimiter: newAuthRateLimiter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkWebSocketOrigin(cfg.AllowedOrigins),
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRPCHandlers()
	return s
}

// Handle registers an RPC method handler.
func (s *Server) Handle(method string, handler RequestHandler) {
	s.handlers[method] = handler
}

// Methods returns the registered RPC method names, sorted.
func (s *Server) Methods() []string {
	methods := make([]string, 0, len(s.handlers))
	for m := range s.handlers {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	return methods
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int { return s.clients.Count() }

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.GatewayConfig) string {
	switch cfg.Bind {
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Handler returns the HTTP handler with routes and middleware installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerHTTPRoutes(mux)
	return withMiddleware(mux, s.log, s.cfg.AllowedOrigins)
}

// Start listens for HTTP and WebSocket connections and forwards bus traffic
// to connected clients. It blocks until ctx is cancelled or serving fails.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr.Store(ln.Addr().String())

	if s.cfg.Bind != "loopback" {
		s.log.Warn().Msg("gateway is reachable off-host without TLS; put it behind a TLS proxy")
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	events, replies := s.subscribe()
	go s.forward(ctx, events, replies)

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down gateway server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.clients.CloseAll()
		httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("auth", s.auth.Mode).
		Strs("methods", s.Methods()).
		Msg("gateway server ready")

	if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

func (s *Server) subscribe() (*bus.Subscription[domain.SystemEvent], *bus.Subscription[domain.OutboundMessage]) {
	return s.bus.SubscribeSystem(), s.bus.SubscribeOutbound()
}

// forward relays bus traffic to clients until ctx ends or both
// subscriptions close.
func (s *Server) forward(ctx context.Context, events *bus.Subscription[domain.SystemEvent], replies *bus.Subscription[domain.OutboundMessage]) {
	defer events.Unsubscribe()
	defer replies.Unsubscribe()

	evC, outC := events.C(), replies.C()
	for evC != nil || outC != nil {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-evC:
			if !ok {
				evC = nil
				continue
			}
			s.clients.Broadcast(EventSystem, ev, s.eventSeq.Add(1))
		case msg, ok := <-outC:
			if !ok {
				outC = nil
				continue
			}
			s.deliver(msg)
		}
	}
}

// deliver sends a gateway reply to the client that owns the chat and
// broadcasts every other outbound message.
func (s *Server) deliver(msg domain.OutboundMessage) {
	seq := s.eventSeq.Add(1)
	if msg.Channel == Channel {
		if connID, ok := s.chats.Get(msg.ChatID); ok {
			if c, ok := s.clients.Get(connID); ok {
				if err := c.SendEvent(EventChatReply, msg, seq); err != nil {
					s.log.Debug().Err(err).Str("connId", connID).Msg("reply delivery failed")
				}
				return
			}
		}
	}
	s.clients.Broadcast(EventOutbound, msg, seq)
}

// forgetChats drops chat ownership for a disconnected client.
func (s *Server) forgetChats(connID string) {
	var stale []string
	s.chats.ForEach(func(chatID, owner string) bool {
		if owner == connID {
			stale = append(stale, chatID)
		}
		return true
	})
	s.chats.Del(stale...)
}

// handleWebSocket upgrades HTTP to WebSocket and runs the connection loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authLimiter.allow(r.RemoteAddr) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("rate limited after repeated auth failures")
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxPayload)

	client, err := s.handshake(conn)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("handshake failed")
		var rej *rejection
		if errors.As(err, &rej) && rej.Code == CodeUnauthorized {
			s.authLimiter.recordFailure(r.RemoteAddr)
		}
		conn.Close()
		return
	}

	s.clients.Add(client)
	defer func() {
		s.clients.Remove(client.ConnID)
		s.forgetChats(client.ConnID)
		client.Close()
	}()

	s.readLoop(r.Context(), client)
}

// readLoop processes incoming frames from an authenticated client.
func (s *Server) readLoop(ctx context.Context, client *Client) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Str("connId", client.ConnID).Msg("client closed connection")
			} else {
				s.log.Debug().Err(err).Str("connId", client.ConnID).Msg("read ended")
			}
			return
		}

		if frame.Type != FrameTypeRequest {
			s.log.Debug().Str("type", frame.Type).Msg("ignoring non-request frame")
			continue
		}

		s.dispatch(ctx, client, frame)
	}
}

// dispatch routes a request frame to the appropriate handler.
func (s *Server) dispatch(ctx context.Context, client *Client, frame Frame) {
	handler, ok := s.handlers[frame.Method]
	if !ok {
		client.RespondError(frame.ID, ErrorShape{
			Code:    CodeMethodNotFound,
			Message: "unknown method: " + frame.Method,
		})
		return
	}

	handler(&RequestContext{
		Context: ctx,
		Client:  client,
		Frame:   frame,
		Server:  s,
	})
}
