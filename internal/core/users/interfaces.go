package users

import "context"

// IdentityProvider is the external authentication service
type IdentityProvider interface {
	// SignUp registers email/password and returns the new user id
	SignUp(ctx context.Context, email, password string) (string, error)

	// SignIn verifies credentials and starts a session
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// DeleteAccount removes the identity of userID; a missing identity is not an error
	DeleteAccount(ctx context.Context, userID string) error

	// SignOut ends the session identified by token
	SignOut(ctx context.Context, token string) error

	// Verify resolves a session token to its session
	Verify(ctx context.Context, token string) (*Session, error)

	// OnAuthStateChanged registers fn for every sign-in and sign-out.
	// The returned function unregisters it.
	OnAuthStateChanged(fn func(AuthEvent)) (cancel func())
}

// Service defines the account operations exposed to clients
type Service interface {
	// SignUp validates input, creates the identity and its profile document,
	// and returns a signed-in session
	SignUp(ctx context.Context, req SignUpRequest) (*Session, error)

	// SignIn starts a session for existing credentials
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// SignOut ends the session carried by ctx
	SignOut(ctx context.Context) error

	// CurrentSession returns the session carried by ctx
	CurrentSession(ctx context.Context) (*Session, error)

	// GetProfile reads a user's profile document
	GetProfile(ctx context.Context, userID string) (*User, error)
}

// SignUpRequest represents input for creating an account
type SignUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
