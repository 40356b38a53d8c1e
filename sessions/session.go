package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/scrivener-app/scrivener/mcp"
)

// RoleAdmin is the role required for registry mutation methods.
const RoleAdmin = "admin"

// Transport is the writable handle bound to a live connection. WebSocket
// connections implement it; stateless HTTP callers have none.
type Transport interface {
	// SendNotification writes a server-initiated JSON-RPC notification to the
	// peer. Implementations must be safe for concurrent use.
	SendNotification(ctx context.Context, method string, params any) error
}

// Identity is the authenticated principal bound to a session.
type Identity struct {
	ID       string
	Username string
	Role     string
}

// IsAdmin reports whether the identity carries the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == RoleAdmin
}

// Session is the server-side state for one client connection. It is owned by
// the Store; handlers receive a shared reference and must re-fetch it through
// the store when operating across suspension points.
type Session struct {
	id        string
	transport Transport

	mu           sync.Mutex
	initialized  bool
	identity     *Identity
	clientInfo   mcp.ImplementationInfo
	capabilities mcp.ClientCapabilities
	lastActivity time.Time
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Transport returns the connection handle the session was created with, or
// nil for connectionless (HTTP) sessions.
func (s *Session) Transport() Transport { return s.transport }

// Initialized reports whether the initialize handshake has completed.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// MarkInitialized records a successful initialize call along with the
// client's self-description.
func (s *Session) MarkInitialized(info mcp.ImplementationInfo, caps mcp.ClientCapabilities) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.clientInfo = info
	s.capabilities = caps
}

// ClientInfo returns the client implementation info captured at initialize.
func (s *Session) ClientInfo() mcp.ImplementationInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientInfo
}

// Identity returns the authenticated identity, or nil while anonymous.
func (s *Session) Identity() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentity binds an authenticated identity to the session. Sessions can be
// re-authenticated mid-life; the latest identity wins.
func (s *Session) SetIdentity(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

// UserID returns the identity's id, or "anonymous" when unauthenticated.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil || s.identity.ID == "" {
		return "anonymous"
	}
	return s.identity.ID
}

// Touch refreshes the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// LastActivity returns the time of the most recent inbound message.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
