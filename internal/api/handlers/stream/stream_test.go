package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Commons/internal/api/handlers"
	"Commons/internal/core/posts"
	"Commons/internal/core/threads"
	"Commons/internal/core/users"
	"Commons/internal/db/memory"
)

// mockObserver lets a test emit auth events by hand
type mockObserver struct {
	fns map[int]func(users.AuthEvent)
	mu  sync.Mutex
	n   int
}

func (m *mockObserver) OnAuthStateChanged(fn func(users.AuthEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fns == nil {
		m.fns = make(map[int]func(users.AuthEvent))
	}
	id := m.n
	m.n++
	m.fns[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.fns, id)
		m.mu.Unlock()
	}
}

func (m *mockObserver) emit(ev users.AuthEvent) {
	m.mu.Lock()
	fns := make([]func(users.AuthEvent), 0, len(m.fns))
	for _, fn := range m.fns {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (m *mockObserver) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

// withSession injects a fixed session, standing in for OptionalAuth
func withSession(session *users.Session, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if session != nil {
			r = r.WithContext(users.WithSession(r.Context(), session))
		}
		next.ServeHTTP(w, r)
	})
}

func newStreamServer(t *testing.T, session *users.Session) (*httptest.Server, *memory.Store, *mockObserver) {
	t.Helper()
	store := memory.NewStore()
	observer := &mockObserver{}
	h := NewHandler(posts.NewListProjection(store, nil), threads.NewDetailProjection(store, nil, nil), observer, nil)

	r := chi.NewRouter()
	r.Get("/api/live/posts", h.HandlePosts)
	r.Get("/api/live/posts/{postID}", h.HandlePost)

	srv := httptest.NewServer(withSession(session, r))
	t.Cleanup(func() {
		srv.Close()
		_ = store.Close()
	})
	return srv, store, observer
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readList(t *testing.T, conn *websocket.Conn) handlers.ListView {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var view handlers.ListView
	require.NoError(t, conn.ReadJSON(&view))
	return view
}

func TestHandlePosts_StreamsSnapshots(t *testing.T) {
	srv, store, _ := newStreamServer(t, nil)
	conn := dial(t, srv, "/api/live/posts")

	first := readList(t, conn)
	assert.Equal(t, "posts", first.Type)
	assert.Empty(t, first.Items)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := posts.Post{Title: "live", Content: "c", AuthorEmail: "a@example.com", PostType: posts.DefaultPostType, CreatedAt: created, UpdatedAt: created}
	require.NoError(t, store.Put(context.Background(), posts.Collection, "p1", p.Fields()))

	next := readList(t, conn)
	require.Len(t, next.Items, 1)
	assert.Equal(t, "p1", next.Items[0].ID)
}

func TestHandlePost_MissingPostStreamsNotFound(t *testing.T) {
	srv, _, _ := newStreamServer(t, nil)
	conn := dial(t, srv, "/api/live/posts/ghost")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var view handlers.DetailView
	require.NoError(t, conn.ReadJSON(&view))
	assert.Equal(t, "post", view.Type)
	assert.False(t, view.Found)
	assert.Nil(t, view.Post)
}

func TestHandlePosts_SignOutClosesStream(t *testing.T) {
	session := &users.Session{UserID: "uid-1", Email: "a@example.com", Token: "tok-1"}
	srv, store, observer := newStreamServer(t, session)
	conn := dial(t, srv, "/api/live/posts")
	readList(t, conn)

	// Another session signing out leaves the stream alone
	observer.emit(users.AuthEvent{Session: users.Session{Token: "someone-else"}, SignedIn: false})
	observer.emit(users.AuthEvent{Session: *session, SignedIn: true})

	observer.emit(users.AuthEvent{Session: *session, SignedIn: false})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)

	assert.Eventually(t, func() bool { return store.Watchers() == 0 && observer.count() == 0 },
		2*time.Second, 10*time.Millisecond, "stream resources are released")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example/api/live/posts", nil)
	assert.True(t, check(req), "no origin header")

	req.Header.Set("Origin", "https://app.example")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://api.example")
	assert.True(t, check(req), "same origin")

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, originChecker([]string{"*"})(req))
}
