// Package server carries the protocol surface: a WebSocket endpoint for
// long-lived sessions and a stateless HTTP endpoint speaking the same
// JSON-RPC dialect. Both funnel into a single dispatch pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/scrivener-app/scrivener/auth"
	"github.com/scrivener-app/scrivener/executor"
	"github.com/scrivener-app/scrivener/internal/jsonrpc"
	"github.com/scrivener-app/scrivener/internal/logctx"
	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/registry"
	reslib "github.com/scrivener-app/scrivener/resources"
	"github.com/scrivener-app/scrivener/sessions"
)

// Deps collects the collaborators the server dispatches into. Library and
// OnShutdown are optional.
type Deps struct {
	Sessions  *sessions.Store
	Tools     *registry.Tools
	Prompts   *registry.Prompts
	Resources *registry.Resources
	Library   *reslib.Library
	Executor  *executor.Executor
	Verifier  auth.TokenVerifier

	ServerInfo        mcp.ImplementationInfo
	PageSize          int
	HeartbeatInterval time.Duration

	// OnShutdown runs after a shutdown request has been answered.
	OnShutdown func()

	Log *slog.Logger
}

// Server is the protocol front door.
type Server struct {
	deps Deps
	log  *slog.Logger
}

// New constructs a server over the given collaborators.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	if deps.HeartbeatInterval <= 0 {
		deps.HeartbeatInterval = 30 * time.Second
	}
	return &Server{
		deps: deps,
		log:  log.With(slog.String("component", "server")),
	}
}

// Broadcast implements registry.Broadcaster: it fans a notification out to
// every connected session. Delivery failures are logged and swallowed; a
// dead peer must never poison a registry mutation.
func (s *Server) Broadcast(method string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.deps.Sessions.Range(func(sess *sessions.Session) bool {
		t := sess.Transport()
		if t == nil {
			return true
		}
		if err := t.SendNotification(ctx, method, nil); err != nil {
			s.log.Warn("notification delivery failed",
				slog.String("method", method),
				slog.String("session_id", sess.ID()),
				slog.String("error", err.Error()),
			)
		}
		return true
	})
}

// preInitMethods may run before the initialize handshake completes.
var preInitMethods = map[mcp.Method]bool{
	mcp.InitializeMethod: true,
	mcp.PingMethod:       true,
}

// handle runs one request through the dispatch pipeline and returns the
// response, or nil for notifications.
func (s *Server) handle(ctx context.Context, sess *sessions.Session, req *jsonrpc.Request) *jsonrpc.Response {
	sess.Touch()

	if req.IsNotification() {
		// Client notifications (such as notifications/initialized) carry no
		// response. Unknown ones are ignored rather than failed.
		return nil
	}

	method := mcp.Method(req.Method)
	if !sess.Initialized() && !preInitMethods[method] {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeServerNotInitialized,
			"session not initialized: call initialize first", nil)
	}

	result, rpcErr := s.dispatch(ctx, sess, method, req.Params)
	if rpcErr != nil {
		s.log.InfoContext(ctx, "request failed",
			slog.String("method", req.Method),
			slog.Int("code", int(rpcErr.Code)),
			slog.String("error", rpcErr.Message),
		)
		return jsonrpc.NewErrorResponse(req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
	}

	resp, err := jsonrpc.NewResultResponse(req.ID, result)
	if err != nil {
		s.log.ErrorContext(ctx, "result marshalling failed", slog.String("error", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error", nil)
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, sess *sessions.Session, method mcp.Method, params json.RawMessage) (any, *jsonrpc.Error) {
	switch method {
	case mcp.InitializeMethod:
		return s.handleInitialize(ctx, sess, params)
	case mcp.AuthenticateMethod:
		return s.handleAuthenticate(ctx, sess, params)
	case mcp.PingMethod:
		return mcp.PingResult{Timestamp: time.Now().UnixMilli()}, nil
	case mcp.ShutdownMethod:
		return s.handleShutdown(ctx, sess)
	case mcp.ToolsListMethod:
		return s.handleToolsList(params)
	case mcp.ToolsCallMethod:
		return s.handleToolsCall(ctx, sess, params)
	case mcp.ToolsRegisterMethod:
		return s.handleToolsRegister(ctx, sess, params)
	case mcp.ToolsRemoveMethod:
		return s.handleToolsRemove(ctx, sess, params)
	case mcp.ResourcesListMethod:
		return s.handleResourcesList(params)
	case mcp.ResourcesReadMethod:
		return s.handleResourcesRead(params)
	case mcp.PromptsListMethod:
		return s.handlePromptsList(params)
	case mcp.PromptsGetMethod:
		return s.handlePromptsGet(params)
	default:
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeMethodNotFound, "method not found: %s", method)
	}
}

func (s *Server) handleInitialize(ctx context.Context, sess *sessions.Session, params json.RawMessage) (any, *jsonrpc.Error) {
	var req mcp.InitializeRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid initialize params: %v", err)
		}
	}

	sess.MarkInitialized(req.ClientInfo, req.Capabilities)
	s.log.InfoContext(ctx, "session initialized",
		slog.String("session_id", sess.ID()),
		slog.String("client", req.ClientInfo.Name),
		slog.String("client_version", req.ClientInfo.Version),
	)

	return mcp.InitializeResult{
		ProtocolVersion: mcp.LatestProtocolVersion,
		Capabilities:    mcp.DefaultServerCapabilities(),
		ServerInfo:      s.deps.ServerInfo,
	}, nil
}

func (s *Server) handleAuthenticate(ctx context.Context, sess *sessions.Session, params json.RawMessage) (any, *jsonrpc.Error) {
	var req mcp.AuthenticateRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid authenticate params: %v", err)
	}
	if req.Token == "" {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "token is required")
	}
	if s.deps.Verifier == nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "authentication is not configured")
	}

	identity, err := s.deps.Verifier.Verify(ctx, req.Token)
	if err != nil {
		s.log.InfoContext(ctx, "authentication rejected", slog.String("error", err.Error()))
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidRequest, "authentication failed")
	}

	sess.SetIdentity(identity)
	s.log.InfoContext(ctx, "session authenticated",
		slog.String("session_id", sess.ID()),
		slog.String("user_id", identity.ID),
	)

	return mcp.AuthenticateResult{
		Status: "authenticated",
		User: mcp.AuthenticatedUser{
			ID:       identity.ID,
			Username: identity.Username,
			Role:     identity.Role,
		},
	}, nil
}

func (s *Server) handleShutdown(ctx context.Context, sess *sessions.Session) (any, *jsonrpc.Error) {
	if rpcErr := s.requireAdmin(sess); rpcErr != nil {
		return nil, rpcErr
	}
	s.log.WarnContext(ctx, "shutdown requested", slog.String("session_id", sess.ID()))
	if fn := s.deps.OnShutdown; fn != nil {
		// Let the response reach the wire before teardown begins.
		go func() {
			time.Sleep(100 * time.Millisecond)
			fn()
		}()
	}
	return map[string]any{"status": "shutting_down"}, nil
}

func (s *Server) handleToolsList(params json.RawMessage) (any, *jsonrpc.Error) {
	cur, rpcErr := parseCursor(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	page := s.deps.Tools.List(cur, s.deps.PageSize)
	tools := make([]mcp.Tool, len(page.Items))
	for i, def := range page.Items {
		tools[i] = def.Tool
	}
	return mcp.ListToolsResult{
		Tools:           tools,
		PaginatedResult: mcp.PaginatedResult{NextCursor: page.NextCursor},
	}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, sess *sessions.Session, params json.RawMessage) (any, *jsonrpc.Error) {
	var req mcp.CallToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid tools/call params: %v", err)
	}
	result, rpcErr := s.deps.Executor.Call(ctx, sess, req)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func (s *Server) handleToolsRegister(ctx context.Context, sess *sessions.Session, params json.RawMessage) (any, *jsonrpc.Error) {
	if rpcErr := s.requireAdmin(sess); rpcErr != nil {
		return nil, rpcErr
	}

	var req mcp.RegisterToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid tools/register params: %v", err)
	}
	if req.Name == "" {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "tool name is required")
	}

	def, err := registry.ParseDefinition(req.Definition)
	if err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "%v", err)
	}

	stored := s.deps.Tools.Register(req.Name, def)
	s.log.InfoContext(ctx, "tool registered",
		slog.String("tool", req.Name),
		slog.String("kind", stored.Execution.Kind.String()),
		slog.String("user_id", sess.UserID()),
	)
	return mcp.RegisterToolResult{Tool: stored.Tool}, nil
}

func (s *Server) handleToolsRemove(ctx context.Context, sess *sessions.Session, params json.RawMessage) (any, *jsonrpc.Error) {
	if rpcErr := s.requireAdmin(sess); rpcErr != nil {
		return nil, rpcErr
	}

	var req mcp.RemoveToolRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid tools/remove params: %v", err)
	}
	if req.Name == "" {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "tool name is required")
	}

	removed := s.deps.Tools.Remove(req.Name)
	if removed {
		s.log.InfoContext(ctx, "tool removed",
			slog.String("tool", req.Name),
			slog.String("user_id", sess.UserID()),
		)
	}
	return mcp.RemoveToolResult{Success: removed}, nil
}

func (s *Server) handleResourcesList(params json.RawMessage) (any, *jsonrpc.Error) {
	cur, rpcErr := parseCursor(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	page := s.deps.Resources.List(cur, s.deps.PageSize)
	return mcp.ListResourcesResult{
		Resources:       page.Items,
		PaginatedResult: mcp.PaginatedResult{NextCursor: page.NextCursor},
	}, nil
}

func (s *Server) handleResourcesRead(params json.RawMessage) (any, *jsonrpc.Error) {
	var req mcp.ReadResourceRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid resources/read params: %v", err)
	}
	if req.URI == "" {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "uri is required")
	}
	if s.deps.Library == nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeNotFound, "resource not found: %s", req.URI)
	}

	contents, err := s.deps.Library.Read(req.URI)
	if err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeNotFound, "resource not found: %s", req.URI)
	}
	return mcp.ReadResourceResult{Contents: []mcp.ResourceContents{contents}}, nil
}

func (s *Server) handlePromptsList(params json.RawMessage) (any, *jsonrpc.Error) {
	cur, rpcErr := parseCursor(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	page := s.deps.Prompts.List(cur, s.deps.PageSize)
	return mcp.ListPromptsResult{
		Prompts:         page.Items,
		PaginatedResult: mcp.PaginatedResult{NextCursor: page.NextCursor},
	}, nil
}

func (s *Server) handlePromptsGet(params json.RawMessage) (any, *jsonrpc.Error) {
	var req mcp.GetPromptRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid prompts/get params: %v", err)
	}
	if req.Name == "" {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "prompt name is required")
	}

	prompt, ok := s.deps.Prompts.GetByName(req.Name)
	if !ok {
		return nil, jsonrpc.Errorf(jsonrpc.ErrorCodeNotFound, "prompt not found: %s", req.Name)
	}
	return mcp.GetPromptResult{
		Description: prompt.Description,
		Messages:    prompt.Messages,
	}, nil
}

func (s *Server) requireAdmin(sess *sessions.Session) *jsonrpc.Error {
	if !sess.Identity().IsAdmin() {
		return jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidRequest, "admin privileges required")
	}
	return nil
}

func parseCursor(params json.RawMessage) (string, *jsonrpc.Error) {
	if len(params) == 0 {
		return "", nil
	}
	var req mcp.PaginatedRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return "", jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "invalid list params: %v", err)
	}
	return req.Cursor, nil
}

// requestContext attaches request and session attributes for log enrichment.
func (s *Server) requestContext(ctx context.Context, transport, remoteAddr string, sess *sessions.Session, req *jsonrpc.Request) context.Context {
	id := ""
	if req.ID != nil {
		id = req.ID.String()
	}
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{
		RequestID:  id,
		Method:     req.Method,
		Transport:  transport,
		RemoteAddr: remoteAddr,
	})
	return logctx.WithSessionData(ctx, &logctx.SessionData{
		SessionID: sess.ID(),
		UserID:    sess.UserID(),
	})
}

var errSessionGone = errors.New("session no longer exists")
