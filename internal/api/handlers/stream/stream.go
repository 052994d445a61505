// Package stream streams projection snapshots over websockets
package stream

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"Commons/internal/api/handlers"
	"Commons/internal/core/errs"
	"Commons/internal/core/live"
	"Commons/internal/core/posts"
	"Commons/internal/core/threads"
	"Commons/internal/core/users"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// AuthObserver reports sign-ins and sign-outs
type AuthObserver interface {
	OnAuthStateChanged(fn func(users.AuthEvent)) (cancel func())
}

// errorFrame is sent when a snapshot carries an error; the stream stays open
type errorFrame struct {
	Type    string `json:"type"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Handler upgrades requests to websocket streams of live snapshots
type Handler struct {
	list     *posts.ListProjection
	detail   *threads.DetailProjection
	observer AuthObserver
	upgrader websocket.Upgrader
}

// NewHandler creates a new live handler.
// observer may be nil; streams then ignore sign-outs.
func NewHandler(list *posts.ListProjection, detail *threads.DetailProjection, observer AuthObserver, allowedOrigins []string) *Handler {
	return &Handler{
		list:     list,
		detail:   detail,
		observer: observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// HandlePosts handles GET /api/live/posts
func (h *Handler) HandlePosts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.streamContext(r)
	defer cancel()

	feed, err := h.list.Subscribe(ctx)
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}
	defer func() { _ = feed.Close() }()

	serve(h, w, r, feed, func(snap posts.ListSnapshot) (interface{}, error) {
		if snap.Err != nil {
			return nil, snap.Err
		}
		return handlers.NewListView(snap), nil
	})
}

// HandlePost handles GET /api/live/posts/{postID}.
// A missing post is streamed as found=false, not as an error.
func (h *Handler) HandlePost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postID")

	ctx, cancel := h.streamContext(r)
	defer cancel()

	feed, err := h.detail.Subscribe(ctx, postID)
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}
	defer func() { _ = feed.Close() }()

	serve(h, w, r, feed, func(snap threads.DetailSnapshot) (interface{}, error) {
		if snap.Err != nil {
			return nil, snap.Err
		}
		return handlers.NewDetailView(snap), nil
	})
}

// streamContext is cancelled when the request ends or its session signs out
func (h *Handler) streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())

	session := users.SessionFromContext(r.Context())
	if session == nil || h.observer == nil {
		return ctx, cancel
	}

	stop := h.observer.OnAuthStateChanged(func(ev users.AuthEvent) {
		if !ev.SignedIn && ev.Session.Token == session.Token {
			log.Printf("[LIVE] Closing stream of %s after sign-out", session.Email)
			cancel()
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// serve pumps feed to the websocket until either side closes
func serve[T any](h *Handler, w http.ResponseWriter, r *http.Request, feed *live.Feed[T], render func(T) (interface{}, error)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		log.Printf("[LIVE] Upgrade failed: %v", err)
		return
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("[LIVE] Failed to close websocket: %v", closeErr)
		}
	}()

	// Reader: handles pongs and notices the client going away
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(512)
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-feed.Updates():
			if !ok {
				writeClose(conn, "feed closed")
				return
			}
			frame, err := render(snap)
			if err != nil {
				frame = toErrorFrame(err)
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("[LIVE] Write failed: %v", err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}

		case <-gone:
			return
		}
	}
}

func toErrorFrame(err error) errorFrame {
	if errs.IsUnavailable(err) {
		return errorFrame{
			Type:    "error",
			Error:   "ServiceUnavailable",
			Message: "The service is temporarily unavailable. Please try again.",
		}
	}
	log.Printf("[LIVE] Snapshot error: %v", err)
	return errorFrame{Type: "error", Error: "InternalServerError", Message: "An internal error occurred"}
}

func writeClose(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

// originChecker allows same-origin requests, requests without an Origin
// header, and the configured origins ("*" allows any)
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
