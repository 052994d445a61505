package auth

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"Commons/internal/api/handlers"
	"Commons/internal/core/users"
)

// TokenCookies persists the session token for browser clients
type TokenCookies interface {
	SaveToken(w http.ResponseWriter, r *http.Request, token string) error
	ClearToken(w http.ResponseWriter, r *http.Request) error
}

// Handler serves sign-up, sign-in, sign-out and the current session
type Handler struct {
	service users.Service
	cookies TokenCookies
}

// NewHandler creates a new auth handler
func NewHandler(service users.Service, cookies TokenCookies) *Handler {
	return &Handler{
		service: service,
		cookies: cookies,
	}
}

// LoginInput is the sign-in request body
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionOutput is returned for a started or current session
type SessionOutput struct {
	ExpiresAt time.Time `json:"expiresAt"`
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	Token     string    `json:"token,omitempty"`
	Name      string    `json:"name,omitempty"`
}

// HandleSignUp handles POST /api/auth/signup
func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	// 1. Limit request body size
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)

	// 2. Parse request body
	var req users.SignUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	// 3. Create the account and its profile; the new account is signed in
	session, err := h.service.SignUp(r.Context(), req)
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	h.saveCookie(w, r, session.Token)
	log.Printf("[AUTH] Signed up %s", session.Email)

	out := toOutput(session)
	out.Name = req.Name
	handlers.WriteJSON(w, http.StatusCreated, out)
}

// HandleLogin handles POST /api/auth/login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16*1024)

	var input LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}

	session, err := h.service.SignIn(r.Context(), input.Email, input.Password)
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	h.saveCookie(w, r, session.Token)
	handlers.WriteJSON(w, http.StatusOK, toOutput(session))
}

// HandleLogout handles POST /api/auth/logout (requires auth)
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.SignOut(r.Context()); err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	if h.cookies != nil {
		if err := h.cookies.ClearToken(w, r); err != nil {
			log.Printf("[AUTH] Failed to clear session cookie: %v", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /api/auth/me (requires auth)
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.CurrentSession(r.Context())
	if err != nil {
		handlers.HandleServiceError(w, err)
		return
	}

	out := toOutput(session)
	out.Token = ""

	// The profile is decoration; a missing one still answers with the session
	if profile, err := h.service.GetProfile(r.Context(), session.UserID); err == nil {
		out.Name = profile.Name
	} else {
		log.Printf("[AUTH] Profile lookup for %s failed: %v", session.UserID, err)
	}

	handlers.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) saveCookie(w http.ResponseWriter, r *http.Request, token string) {
	if h.cookies == nil {
		return
	}
	if err := h.cookies.SaveToken(w, r, token); err != nil {
		log.Printf("[AUTH] Failed to save session cookie: %v", err)
	}
}

func toOutput(session *users.Session) SessionOutput {
	return SessionOutput{
		ExpiresAt: session.ExpiresAt,
		UserID:    session.UserID,
		Email:     session.Email,
		Token:     session.Token,
	}
}
