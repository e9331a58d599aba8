package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/volumeee/zenclaw-sub000/internal/domain"
	"github.com/volumeee/zenclaw-sub000/internal/version"
)

// enqueueTimeout bounds how long chat.send waits on a full inbound queue.
const enqueueTimeout = 5 * time.Second

// HealthResponse is returned by health endpoints. The public HTTP endpoint
// only populates Status; the authenticated forms populate all fields.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version,omitempty"`
	Clients       int     `json:"clients,omitempty"`
	UptimeSeconds float64 `json:"uptimeSeconds,omitempty"`
}

// RequestHandler processes an incoming RPC request frame from a client.
type RequestHandler func(rc *RequestContext)

// RequestContext carries everything a handler needs.
type RequestContext struct {
	Context context.Context
	Client  *Client
	Frame   Frame
	Server  *Server
}

// Respond sends a success response.
func (rc *RequestContext) Respond(payload any) {
	if err := rc.Client.Respond(rc.Frame.ID, payload); err != nil {
		rc.Server.log.Warn().Err(err).Str("method", rc.Frame.Method).Msg("failed to send response")
	}
}

// RespondError sends an error response.
func (rc *RequestContext) RespondError(code, message string) {
	rc.Client.RespondError(rc.Frame.ID, ErrorShape{
		Code:    code,
		Message: message,
	})
}

// Params unmarshals the request params into the given target.
func (rc *RequestContext) Params(target any) error {
	return rc.Frame.DecodeParams(target)
}

// registerHTTPRoutes sets up all HTTP routes on the server mux.
func (s *Server) registerHTTPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("/", handleNotFound)
}

// registerRPCHandlers sets up all WebSocket RPC method handlers.
func (s *Server) registerRPCHandlers() {
	s.Handle("health", s.rpcHealth)
	s.Handle("chat.send", s.rpcChatSend)
	if s.metrics != nil {
		s.Handle("metrics", s.rpcMetrics)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) health() HealthResponse {
	return HealthResponse{
		Status:        "ok",
		Version:       version.Current().Version,
		Clients:       s.clients.Count(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	}
}

// handleHealth reports liveness. Details are only shown to authorized callers.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if AuthorizeRequest(s.auth, r).OK {
		writeJSON(w, http.StatusOK, s.health())
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleMetrics serves the counter snapshot to authorized callers.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "metrics disabled"})
		return
	}
	if res := AuthorizeRequest(s.auth, r); !res.OK {
		s.authLimiter.recordFailure(r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": res.Reason})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// handleNotFound returns a 404 for unknown routes.
func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}

func (s *Server) rpcHealth(rc *RequestContext) {
	rc.Respond(s.health())
}

func (s *Server) rpcMetrics(rc *RequestContext) {
	rc.Respond(s.metrics.Snapshot())
}

type chatSendParams struct {
	Message string   `json:"message"`
	ChatID  string   `json:"chatId,omitempty"`
	Media   []string `json:"media,omitempty"`
}

// ChatSendResult acknowledges a queued chat message. The reply arrives later
// as a chat.reply event.
type ChatSendResult struct {
	Queued     bool   `json:"queued"`
	SessionKey string `json:"sessionKey"`
	MessageID  string `json:"messageId"`
}

func (s *Server) rpcChatSend(rc *RequestContext) {
	var p chatSendParams
	if err := rc.Params(&p); err != nil {
		rc.RespondError(CodeInvalidParams, err.Error())
		return
	}
	if strings.TrimSpace(p.Message) == "" {
		rc.RespondError(CodeInvalidParams, "message is required")
		return
	}

	chatID := p.ChatID
	if chatID == "" {
		chatID = rc.Client.ConnID
	}
	if owner, ok := s.chats.Get(chatID); ok && owner != rc.Client.ConnID {
		rc.RespondError(CodeForbidden, "chat belongs to another connection")
		return
	}

	msg := domain.InboundMessage{
		Channel:   Channel,
		SenderID:  rc.Client.ConnID,
		ChatID:    chatID,
		Content:   p.Message,
		Media:     p.Media,
		Metadata:  map[string]string{"messageId": rc.Frame.ID},
		Timestamp: time.Now(),
	}

	ctx := rc.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	s.chats.Set(chatID, rc.Client.ConnID)
	if err := s.bus.PublishInbound(ctx, msg); err != nil {
		rc.Server.log.Warn().Err(err).Str("chatId", chatID).Msg("enqueue failed")
		rc.Client.RespondError(rc.Frame.ID, ErrorShape{
			Code:       CodeUnavailable,
			Message:    err.Error(),
			Retryable:  true,
			RetryAfter: 1000,
		})
		return
	}

	rc.Respond(ChatSendResult{
		Queued:     true,
		SessionKey: msg.SessionKey(),
		MessageID:  rc.Frame.ID,
	})
}
