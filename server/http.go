package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elnormous/contenttype"

	"github.com/scrivener-app/scrivener/internal/jsonrpc"
	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/sessions"
)

const sessionIDHeader = "Mcp-Session-Id"

var acceptableMediaTypes = []contenttype.MediaType{
	contenttype.NewMediaType("application/json"),
}

// Handler returns the HTTP surface: the WebSocket endpoint, the stateless
// JSON-RPC endpoint, and the health probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("POST /mcp", s.handleHTTP)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

// handleHTTP serves the stateless JSON-RPC endpoint. Single requests get a
// single response object; batches get an array. Bodies containing only
// notifications are acknowledged with 202 and no body.
func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	if _, _, err := contenttype.GetAcceptableMediaType(r, acceptableMediaTypes); err != nil {
		http.Error(w, "client must accept application/json", http.StatusNotAcceptable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	sess, ephemeral, ok := s.httpSession(w, r)
	if !ok {
		return
	}
	if ephemeral {
		defer func() {
			// Sessions created by initialize survive for header-based reuse.
			if !sess.Initialized() {
				s.deps.Sessions.Destroy(sess.ID())
			}
		}()
	}

	batch, frames, parseErr := splitFrames(body)
	if parseErr != nil {
		writeJSON(w, http.StatusOK, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError,
			"parse error: "+parseErr.Error(), nil))
		return
	}
	if len(frames) == 0 {
		writeJSON(w, http.StatusOK, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeInvalidRequest,
			"empty batch", nil))
		return
	}

	var responses []*jsonrpc.Response
	initialized := false
	for _, frame := range frames {
		resp, wasInit := s.handleHTTPFrame(r, sess, frame)
		initialized = initialized || wasInit
		if resp != nil {
			responses = append(responses, resp)
		}
	}

	if initialized {
		w.Header().Set(sessionIDHeader, sess.ID())
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	if batch {
		writeJSON(w, http.StatusOK, responses)
		return
	}
	writeJSON(w, http.StatusOK, responses[0])
}

// handleHTTPFrame dispatches one frame from an HTTP body and reports whether
// it was an initialize call.
func (s *Server) handleHTTPFrame(r *http.Request, sess *sessions.Session, frame json.RawMessage) (*jsonrpc.Response, bool) {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error: "+err.Error(), nil), false
	}

	req := msg.AsRequest()
	if req == nil {
		return nil, false
	}

	ctx := s.requestContext(r.Context(), "http", r.RemoteAddr, sess, req)
	resp := s.handle(ctx, sess, req)
	return resp, mcp.Method(req.Method) == mcp.InitializeMethod
}

// httpSession resolves the session for an HTTP request: an existing one when
// the client presents a session header, otherwise a fresh connectionless
// session. A bearer token, when present, must verify.
func (s *Server) httpSession(w http.ResponseWriter, r *http.Request) (*sessions.Session, bool, bool) {
	var sess *sessions.Session
	ephemeral := false

	if id := r.Header.Get(sessionIDHeader); id != "" {
		existing, ok := s.deps.Sessions.Get(id)
		if !ok {
			http.Error(w, "unknown session", http.StatusNotFound)
			return nil, false, false
		}
		sess = existing
	} else {
		sess = s.deps.Sessions.Create(nil)
		ephemeral = true
	}

	if token := bearerToken(r); token != "" {
		if s.deps.Verifier == nil {
			http.Error(w, "authentication is not configured", http.StatusInternalServerError)
			return nil, false, false
		}
		identity, err := s.deps.Verifier.Verify(r.Context(), token)
		if err != nil {
			s.log.Info("http auth rejected",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
			if ephemeral {
				s.deps.Sessions.Destroy(sess.ID())
			}
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return nil, false, false
		}
		sess.SetIdentity(identity)
	}

	return sess, ephemeral, true
}

// splitFrames separates a body into individual JSON-RPC frames, reporting
// whether the body was a batch array.
func splitFrames(body []byte) (bool, []json.RawMessage, error) {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var frames []json.RawMessage
		if err := json.Unmarshal(body, &frames); err != nil {
			return true, nil, err
		}
		return true, frames, nil
	}

	if !json.Valid(body) {
		return false, nil, errInvalidJSON
	}
	return false, []json.RawMessage{json.RawMessage(body)}, nil
}

var errInvalidJSON = jsonError("request body is not valid JSON")

type jsonError string

func (e jsonError) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
