package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"Commons/internal/core/errs"
	"Commons/internal/core/users"
)

const (
	// SessionName is the cookie that carries the session token for browsers
	SessionName = "commons_session"
	// sessionTokenKey is the cookie session value holding the token
	sessionTokenKey = "token"
)

// AuthMiddleware is implemented by SessionAuth; routes depend on this
type AuthMiddleware interface {
	RequireAuth(next http.Handler) http.Handler
	OptionalAuth(next http.Handler) http.Handler
}

// TokenVerifier resolves a session token to its session
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*users.Session, error)
}

// SessionAuth authenticates requests by Bearer token or session cookie.
// A verified session is injected with users.WithSession.
type SessionAuth struct {
	verifier TokenVerifier
	cookies  sessions.Store
}

// NewSessionAuth creates the session middleware
func NewSessionAuth(verifier TokenVerifier, cookies sessions.Store) *SessionAuth {
	return &SessionAuth{
		verifier: verifier,
		cookies:  cookies,
	}
}

// RequireAuth rejects requests without a valid session with 401
func (m *SessionAuth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.token(r)
		if token == "" {
			writeAuthError(w, errs.ReasonSessionRequired, "Please sign in to continue")
			return
		}

		session, err := m.verifier.Verify(r.Context(), token)
		if errs.IsUnavailable(err) {
			log.Printf("[AUTH_FAILURE] type=backend_unavailable path=%s error=%v", r.URL.Path, err)
			writeJSONError(w, http.StatusServiceUnavailable, "ServiceUnavailable", "Service temporarily unavailable")
			return
		}
		if err != nil {
			log.Printf("[AUTH_FAILURE] type=verification_failed ip=%s method=%s path=%s error=%v",
				getClientIP(r), r.Method, r.URL.Path, err)
			reason := errs.AuthReason(err)
			if reason == "" {
				reason = errs.ReasonInvalidCredential
			}
			writeAuthError(w, reason, "Invalid or expired session")
			return
		}

		next.ServeHTTP(w, r.WithContext(users.WithSession(r.Context(), session)))
	})
}

// OptionalAuth loads the session if one is present, but doesn't require it.
// An invalid token is treated as anonymous.
func (m *SessionAuth) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.token(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		session, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			log.Printf("[AUTH_FAILURE] type=optional_verification_failed ip=%s path=%s error=%v",
				getClientIP(r), r.URL.Path, err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(users.WithSession(r.Context(), session)))
	})
}

// SaveToken stores token in the session cookie
func (m *SessionAuth) SaveToken(w http.ResponseWriter, r *http.Request, token string) error {
	sess, err := m.cookies.Get(r, SessionName)
	if err != nil && sess == nil {
		return err
	}
	sess.Values[sessionTokenKey] = token
	return sess.Save(r, w)
}

// ClearToken expires the session cookie
func (m *SessionAuth) ClearToken(w http.ResponseWriter, r *http.Request) error {
	sess, err := m.cookies.Get(r, SessionName)
	if err != nil && sess == nil {
		return err
	}
	delete(sess.Values, sessionTokenKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// token returns the Bearer token, falling back to the cookie session
func (m *SessionAuth) token(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if m.cookies == nil {
		return ""
	}
	sess, err := m.cookies.Get(r, SessionName)
	if err != nil || sess == nil {
		return ""
	}
	token, _ := sess.Values[sessionTokenKey].(string)
	return token
}

// GetSession returns the authenticated session, or nil
func GetSession(r *http.Request) *users.Session {
	return users.SessionFromContext(r.Context())
}

// writeAuthError writes a JSON error response for authentication failures
func writeAuthError(w http.ResponseWriter, reason, message string) {
	writeJSONError(w, http.StatusUnauthorized, "AuthFailed:"+reason, message)
}

func writeJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := `{"error":"` + errorType + `","message":"` + message + `"}`
	if _, err := w.Write([]byte(response)); err != nil {
		log.Printf("Failed to write auth error response: %v", err)
	}
}
