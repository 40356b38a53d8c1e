package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"

	"github.com/scrivener-app/scrivener/internal/jsonrpc"
	"github.com/scrivener-app/scrivener/sessions"
)

// wsTransport adapts a WebSocket connection to the sessions.Transport
// interface. coder/websocket serializes concurrent writers internally.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) SendNotification(ctx context.Context, method string, params any) error {
	n, err := jsonrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return t.conn.Write(ctx, websocket.MessageText, data)
}

// handleWebSocket upgrades the connection and runs the read loop until the
// peer goes away. Each connection owns exactly one session for its lifetime.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Authentication happens before the upgrade so a bad token gets a plain
	// 401 instead of a doomed WebSocket handshake.
	var identity *sessions.Identity
	if token := bearerToken(r); token != "" {
		if s.deps.Verifier == nil {
			http.Error(w, "authentication is not configured", http.StatusInternalServerError)
			return
		}
		id, err := s.deps.Verifier.Verify(r.Context(), token)
		if err != nil {
			s.log.Info("websocket auth rejected",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		identity = id
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Info("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	transport := &wsTransport{conn: conn}
	sess := s.deps.Sessions.Create(transport)
	if identity != nil {
		sess.SetIdentity(identity)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer func() {
		s.deps.Sessions.Destroy(sess.ID())
		conn.CloseNow()
	}()

	go s.heartbeat(ctx, conn, sess.ID())

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				s.log.Debug("websocket closed", slog.String("session_id", sess.ID()))
			} else if ctx.Err() == nil {
				s.log.Info("websocket read failed",
					slog.String("session_id", sess.ID()),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		if resp := s.handleFrame(ctx, transport, r.RemoteAddr, data); resp != nil {
			if err := writeResponse(ctx, conn, resp); err != nil {
				s.log.Info("websocket write failed",
					slog.String("session_id", sess.ID()),
					slog.String("error", err.Error()),
				)
				return
			}
		}
	}
}

// handleFrame parses one inbound frame and dispatches it. The session is
// re-fetched through the store on every frame so a destroyed session fails
// fast instead of operating on stale state.
func (s *Server) handleFrame(ctx context.Context, transport *wsTransport, remoteAddr string, data []byte) *jsonrpc.Response {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error: "+err.Error(), nil)
	}

	req := msg.AsRequest()
	if req == nil {
		// Client-originated responses have no server-side handler.
		return nil
	}

	sess, ok := s.deps.Sessions.GetByTransport(transport)
	if !ok {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidRequest, errSessionGone.Error(), nil)
	}

	ctx = s.requestContext(ctx, "websocket", remoteAddr, sess, req)
	return s.handle(ctx, sess, req)
}

// heartbeat pings the peer on a fixed cadence. A failed ping tears the
// connection down, which unblocks the read loop.
func (s *Server) heartbeat(ctx context.Context, conn *websocket.Conn, sessionID string) {
	ticker := time.NewTicker(s.deps.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				s.log.Info("heartbeat failed, closing connection",
					slog.String("session_id", sessionID),
				)
				conn.CloseNow()
				return
			}
		}
	}
}

func writeResponse(ctx context.Context, conn *websocket.Conn, resp *jsonrpc.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// bearerToken extracts a bearer token from the Authorization header or, for
// WebSocket clients that cannot set headers, the authorization query
// parameter.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		header = r.URL.Query().Get("authorization")
	}
	if header == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return header
}
