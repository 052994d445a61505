package users

import (
	"context"
	"time"

	"Commons/internal/core/errs"
)

// Collection holds one profile document per user, keyed by user id
const Collection = "users"

// Persisted field names of a user profile document
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldCreatedAt    = "createdAt"
	FieldLastSignInAt = "lastSignInAt"
)

// User is a profile document
type User struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
}

// Session is the signed-in identity of one client.
// Sessions are owned by the identity provider; the application only reads them.
type Session struct {
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
}

// AuthEvent is emitted by an identity provider whenever a session starts or ends
type AuthEvent struct {
	Session  Session
	SignedIn bool
}

type contextKey string

const sessionKey contextKey = "session"

// WithSession returns a context carrying session
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// SessionFromContext returns the session injected by the auth middleware, or nil
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey).(*Session)
	return session
}

// RequireSession returns the context's session or an AuthError
func RequireSession(ctx context.Context) (*Session, error) {
	session := SessionFromContext(ctx)
	if session == nil || session.Email == "" {
		return nil, errs.NewAuthError(errs.ReasonSessionRequired)
	}
	return session, nil
}
