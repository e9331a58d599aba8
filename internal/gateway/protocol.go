package gateway

import (
	"fmt"

	"github.com/goccy/go-json"
)

// ProtocolVersion is the only wire revision the gateway speaks.
const ProtocolVersion = 1

// maxPayload caps a single inbound websocket message.
const maxPayload = 1 << 20

// tickIntervalMs is advertised to clients as the expected keepalive cadence.
const tickIntervalMs = 30000

// Frame kinds.
const (
	FrameTypeRequest  = "req"
	FrameTypeResponse = "res"
	FrameTypeEvent    = "event"
)

// Events pushed from the bus to connected clients.
const (
	EventChallenge = "connect.challenge"
	EventSystem    = "system.event"
	EventOutbound  = "outbound.message"
	EventChatReply = "chat.reply"
)

// pushedEvents is what a client can expect to receive after connecting.
var pushedEvents = []string{EventChallenge, EventSystem, EventOutbound, EventChatReply}

// Error codes carried in ErrorShape.Code.
const (
	CodeProtocol       = "protocol_error"
	CodeInvalidParams  = "invalid_params"
	CodeUnauthorized   = "unauthorized"
	CodeUnavailable    = "unavailable"
	CodeMethodNotFound = "method_not_found"
	CodeForbidden      = "forbidden"
)

// Frame is one websocket message. Type selects which of the remaining
// fields are meaningful: requests use ID, Method and Params; responses use
// ID, OK and either Payload or Error; events use Event, Payload and Seq.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// DecodeParams unmarshals a request's params into v. Missing params leave v
// untouched.
func (f Frame) DecodeParams(v any) error {
	if len(f.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(f.Params, v); err != nil {
		return fmt.Errorf("%s params: %w", f.Method, err)
	}
	return nil
}

// ErrorShape is the error body of a failed response.
type ErrorShape struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	RetryAfter int    `json:"retryAfterMs,omitempty"`
}

func (e ErrorShape) Error() string {
	return e.Code + ": " + e.Message
}

// ConnectParams opens a session. MaxProtocol 0 means "whatever the server
// speaks".
type ConnectParams struct {
	MinProtocol int          `json:"minProtocol"`
	MaxProtocol int          `json:"maxProtocol"`
	Client      ClientInfo   `json:"client"`
	Auth        *ConnectAuth `json:"auth,omitempty"`
}

// ClientInfo is how a client describes itself; it is only logged.
type ClientInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

// ConnectAuth holds whichever credential the gateway's auth mode expects.
type ConnectAuth struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK answers a successful connect.
type HelloOK struct {
	Protocol int          `json:"protocol"`
	Server   ServerInfo   `json:"server"`
	Features Features     `json:"features"`
	Policy   ServerPolicy `json:"policy"`
}

type ServerInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

type Features struct {
	Methods []string `json:"methods"`
	Events  []string `json:"events"`
}

type ServerPolicy struct {
	MaxPayload     int `json:"maxPayload"`
	TickIntervalMs int `json:"tickIntervalMs"`
}

func encode(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding frame body: %w", err)
	}
	return raw, nil
}

func okFlag(v bool) *bool { return &v }

// NewRequest builds a request frame; the gateway only sends these in tests
// and clients.
func NewRequest(id, method string, params any) (Frame, error) {
	raw, err := encode(params)
	return Frame{Type: FrameTypeRequest, ID: id, Method: method, Params: raw}, err
}

// NewResponse builds a successful response to request id.
func NewResponse(id string, payload any) (Frame, error) {
	raw, err := encode(payload)
	return Frame{Type: FrameTypeResponse, ID: id, OK: okFlag(true), Payload: raw}, err
}

// NewErrorResponse builds a failed response to request id.
func NewErrorResponse(id string, e ErrorShape) Frame {
	return Frame{Type: FrameTypeResponse, ID: id, OK: okFlag(false), Error: &e}
}

// NewEvent builds a pushed event. seq 0 is reserved for frames sent before
// a client is registered and is omitted on the wire.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := encode(payload)
	return Frame{Type: FrameTypeEvent, Event: event, Payload: raw, Seq: seq}, err
}
