// Package ws serves the admin protocol over a websocket endpoint.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"enchantedblocks.dev/internal/protocol"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	outBuffer    = 16
)

// Control is implemented by the server process and exposes the two
// admin operations.
type Control interface {
	// Reload re-reads the tuning file and swaps it in. The returned
	// message describes the outcome in human terms.
	Reload() (string, error)
	// Status reports the current configuration digests and load state.
	Status() protocol.StatusBody
	// ServerName identifies the process in the WELCOME message.
	ServerName() string
}

// AdminServer upgrades HTTP requests to admin protocol sessions.
type AdminServer struct {
	ctrl     Control
	upgrader websocket.Upgrader
	logf     func(format string, args ...any)
}

func NewAdminServer(ctrl Control, logf func(format string, args ...any)) *AdminServer {
	if logf == nil {
		logf = log.Printf
	}
	return &AdminServer{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logf: logf,
	}
}

// Handler returns the HTTP handler for the admin endpoint.
func (s *AdminServer) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logf("ws: upgrade failed: %v", err)
			return
		}
		go s.serve(conn)
	}
}

func (s *AdminServer) serve(conn *websocket.Conn) {
	defer conn.Close()

	if err := s.handshake(conn); err != nil {
		s.logf("ws: handshake failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan any, outBuffer)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-out:
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteJSON(msg); err != nil {
					s.logf("ws: write failed: %v", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logf("ws: read failed: %v", err)
			}
			return
		}
		s.dispatch(data, out)
	}
}

func (s *AdminServer) handshake(conn *websocket.Conn) error {
	conn.SetReadDeadline(time.Now().Add(writeTimeout))
	var hello protocol.HelloMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if hello.Type != protocol.TypeHello || hello.ProtocolVersion != protocol.Version {
		conn.WriteJSON(protocol.ResultMessage{
			Type:    protocol.TypeResult,
			OK:      false,
			Code:    protocol.ErrProtoVersionMismatch,
			Message: "expected HELLO with protocol_version " + protocol.Version,
		})
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "handshake rejected"),
			time.Now().Add(writeTimeout))
		return errHandshake
	}
	return conn.WriteJSON(protocol.WelcomeMessage{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Server:          s.ctrl.ServerName(),
		Digests:         s.ctrl.Status().Digests,
	})
}

var errHandshake = errors.New("handshake rejected")

func (s *AdminServer) dispatch(data []byte, out chan<- any) {
	base, err := protocol.DecodeBase(data)
	if err != nil {
		out <- protocol.ResultMessage{
			Type: protocol.TypeResult, OK: false,
			Code: protocol.ErrBadRequest, Message: err.Error(),
		}
		return
	}
	switch base.Type {
	case protocol.TypeReload:
		var req protocol.ReloadMessage
		if err := json.Unmarshal(data, &req); err != nil {
			out <- badRequest("", err)
			return
		}
		msg, err := s.ctrl.Reload()
		if err != nil {
			out <- protocol.ResultMessage{
				Type: protocol.TypeResult, RequestID: req.RequestID,
				OK: false, Code: protocol.ErrInternal, Message: err.Error(),
			}
			return
		}
		out <- protocol.ResultMessage{
			Type: protocol.TypeResult, RequestID: req.RequestID,
			OK: true, Message: msg,
		}
	case protocol.TypeStatus:
		var req protocol.StatusMessage
		if err := json.Unmarshal(data, &req); err != nil {
			out <- badRequest("", err)
			return
		}
		body := s.ctrl.Status()
		out <- protocol.ResultMessage{
			Type: protocol.TypeResult, RequestID: req.RequestID,
			OK: true, Status: &body,
		}
	default:
		out <- protocol.ResultMessage{
			Type: protocol.TypeResult, OK: false,
			Code: protocol.ErrUnknownType, Message: "unsupported message type " + base.Type,
		}
	}
}

func badRequest(requestID string, err error) protocol.ResultMessage {
	return protocol.ResultMessage{
		Type: protocol.TypeResult, RequestID: requestID,
		OK: false, Code: protocol.ErrBadRequest, Message: err.Error(),
	}
}
