package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivener-app/scrivener/mcp"
)

type fakeTransport struct{ sent []string }

func (f *fakeTransport) SendNotification(ctx context.Context, method string, params any) error {
	f.sent = append(f.sent, method)
	return nil
}

func TestCreateAndGet(t *testing.T) {
	st := NewStore(nil)
	tr := &fakeTransport{}
	sess := st.Create(tr)

	require.NotEmpty(t, sess.ID())
	got, ok := st.Get(sess.ID())
	require.True(t, ok)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, st.Len())
}

func TestGetByTransport(t *testing.T) {
	st := NewStore(nil)
	tr1 := &fakeTransport{}
	tr2 := &fakeTransport{}
	s1 := st.Create(tr1)
	st.Create(tr2)

	got, ok := st.GetByTransport(tr1)
	require.True(t, ok)
	assert.Same(t, s1, got)

	_, ok = st.GetByTransport(&fakeTransport{})
	assert.False(t, ok)

	_, ok = st.GetByTransport(nil)
	assert.False(t, ok)
}

func TestDestroyIsIdempotent(t *testing.T) {
	st := NewStore(nil)
	sess := st.Create(nil)

	st.Destroy(sess.ID())
	_, ok := st.Get(sess.ID())
	assert.False(t, ok)

	st.Destroy(sess.ID())
	st.Destroy("never-existed")
	assert.Equal(t, 0, st.Len())
}

func TestSessionInitializeLifecycle(t *testing.T) {
	st := NewStore(nil)
	sess := st.Create(nil)

	assert.False(t, sess.Initialized())
	sess.MarkInitialized(mcp.ImplementationInfo{Name: "journal-client", Version: "2.1"}, mcp.ClientCapabilities{})
	assert.True(t, sess.Initialized())
	assert.Equal(t, "journal-client", sess.ClientInfo().Name)
}

func TestUserIDFallsBackToAnonymous(t *testing.T) {
	st := NewStore(nil)
	sess := st.Create(nil)

	assert.Equal(t, "anonymous", sess.UserID())
	assert.False(t, sess.Identity().IsAdmin())

	sess.SetIdentity(&Identity{ID: "u-1", Username: "pat", Role: RoleAdmin})
	assert.Equal(t, "u-1", sess.UserID())
	assert.True(t, sess.Identity().IsAdmin())
}

func TestRangeSeesAllSessions(t *testing.T) {
	st := NewStore(nil)
	for range 3 {
		st.Create(nil)
	}

	seen := 0
	st.Range(func(s *Session) bool {
		seen++
		return true
	})
	assert.Equal(t, 3, seen)
}
