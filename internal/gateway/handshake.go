package gateway

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/volumeee/zenclaw-sub000/internal/version"
)

const handshakeTimeout = 10 * time.Second

// rejection is a handshake failure the client is told about before the
// socket closes.
type rejection struct {
	ErrorShape
	reqID string
}

func reject(reqID, code, format string, args ...any) *rejection {
	return &rejection{ErrorShape: ErrorShape{Code: code, Message: fmt.Sprintf(format, args...)}, reqID: reqID}
}

// handshake runs challenge, connect and hello on a fresh socket:
//
//	server -> connect.challenge {nonce, ts}
//	client -> req connect {minProtocol, maxProtocol, client, auth}
//	server -> res hello {protocol, server, features, policy}
//
// Every step shares one deadline. A rejection is sent to the client along
// with a close frame.
func (s *Server) handshake(conn *websocket.Conn) (*Client, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))

	req, params, err := s.readConnect(conn)
	var rej *rejection
	if errors.As(err, &rej) {
		refuse(conn, rej)
	}
	if err != nil {
		return nil, err
	}

	result := Authorize(s.auth, params.Auth)
	if !result.OK {
		rej = reject(req.ID, CodeUnauthorized, "%s", result.Reason)
		refuse(conn, rej)
		return nil, rej
	}
	_ = conn.SetReadDeadline(time.Time{})

	client := NewClient(conn, params.Client, result)
	if err := client.Respond(req.ID, s.hello(client.ConnID)); err != nil {
		return nil, fmt.Errorf("sending hello: %w", err)
	}

	s.log.Info().
		Str("connId", client.ConnID).
		Str("clientId", params.Client.ID).
		Str("clientVersion", params.Client.Version).
		Str("platform", params.Client.Platform).
		Str("authMethod", result.Method).
		Msg("client authenticated")
	return client, nil
}

func (s *Server) readConnect(conn *websocket.Conn) (Frame, ConnectParams, error) {
	var (
		req    Frame
		params ConnectParams
	)

	challenge, err := NewEvent(EventChallenge, map[string]any{
		"nonce": uuid.NewString(),
		"ts":    time.Now().UnixMilli(),
	}, 0)
	if err == nil {
		err = writeFrame(conn, challenge)
	}
	if err != nil {
		return req, params, fmt.Errorf("sending challenge: %w", err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return req, params, fmt.Errorf("reading connect: %w", err)
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, params, reject("", CodeProtocol, "malformed frame")
	}

	switch {
	case req.Type != FrameTypeRequest || req.Method != "connect":
		return req, params, reject(req.ID, CodeProtocol, "expected connect request, got %s %s", req.Type, req.Method)
	case req.DecodeParams(&params) != nil:
		return req, params, reject(req.ID, CodeInvalidParams, "invalid connect params")
	case params.MinProtocol > ProtocolVersion, params.MaxProtocol != 0 && params.MaxProtocol < ProtocolVersion:
		return req, params, reject(req.ID, CodeProtocol, "protocol %d-%d unsupported, server speaks %d",
			params.MinProtocol, params.MaxProtocol, ProtocolVersion)
	}
	return req, params, nil
}

func (s *Server) hello(connID string) HelloOK {
	build := version.Current()
	return HelloOK{
		Protocol: ProtocolVersion,
		Server:   ServerInfo{Version: build.Version, Commit: build.Commit, ConnID: connID},
		Features: Features{Methods: s.Methods(), Events: pushedEvents},
		Policy:   ServerPolicy{MaxPayload: maxPayload, TickIntervalMs: tickIntervalMs},
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// refuse reports rej to the client and starts a normal close.
func refuse(conn *websocket.Conn, rej *rejection) {
	_ = writeFrame(conn, NewErrorResponse(rej.reqID, rej.ErrorShape))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, rej.Code))
}
