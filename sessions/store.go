package sessions

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns every live session in the process. All access from connection
// handler goroutines goes through its lock; sessions are process-local.
type Store struct {
	mu   sync.RWMutex
	byID map[string]*Session
	log  *slog.Logger
}

// NewStore constructs an empty session store. A nil logger falls back to
// slog.Default.
func NewStore(log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		byID: make(map[string]*Session),
		log:  log.With(slog.String("component", "sessions")),
	}
}

// Create allocates a session bound to the given transport handle and inserts
// it into the store. The transport may be nil for HTTP-originated sessions.
func (st *Store) Create(t Transport) *Session {
	s := &Session{
		id:           uuid.NewString(),
		transport:    t,
		lastActivity: time.Now(),
	}

	st.mu.Lock()
	st.byID[s.id] = s
	st.mu.Unlock()

	st.log.Info("session created", slog.String("session_id", s.id))
	return s
}

// Get returns the session with the given id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.byID[id]
	return s, ok
}

// GetByTransport resolves the live session for a connection handle. The
// dispatch pipeline uses this on every call instead of trusting a session
// reference captured at connection-open time.
func (st *Store) GetByTransport(t Transport) (*Session, bool) {
	if t == nil {
		return nil, false
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	for _, s := range st.byID {
		if s.transport == t {
			return s, true
		}
	}
	return nil, false
}

// Destroy removes the session with the given id. Destroying an unknown id is
// a no-op.
func (st *Store) Destroy(id string) {
	st.mu.Lock()
	_, existed := st.byID[id]
	delete(st.byID, id)
	st.mu.Unlock()

	if existed {
		st.log.Info("session destroyed", slog.String("session_id", id))
	}
}

// Range calls fn for each live session until fn returns false. The iteration
// works on a snapshot so fn may call back into the store.
func (st *Store) Range(fn func(*Session) bool) {
	st.mu.RLock()
	snapshot := make([]*Session, 0, len(st.byID))
	for _, s := range st.byID {
		snapshot = append(snapshot, s)
	}
	st.mu.RUnlock()

	for _, s := range snapshot {
		if !fn(s) {
			return
		}
	}
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.byID)
}
