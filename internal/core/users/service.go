package users

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
)

// MinPasswordLength is the shortest password accepted at sign-up
const MinPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,6}$`)

type userService struct {
	provider IdentityProvider
	store    docstore.Store
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(provider IdentityProvider, store docstore.Store) Service {
	return &userService{
		provider: provider,
		store:    store,
		now:      time.Now,
	}
}

// SignUp creates an account
// Flow: validate -> create identity -> write users/{id} -> sign in
// A failed profile write deletes the identity again.
func (s *userService) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := ValidateEmail(req.Email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	userID, err := s.provider.SignUp(ctx, req.Email, req.Password)
	if err != nil {
		return nil, errs.Unavailable("sign up", err)
	}

	profile := docstore.Fields{
		FieldName:      req.Name,
		FieldEmail:     req.Email,
		FieldCreatedAt: s.now().UTC(),
	}
	if err := s.store.Put(ctx, Collection, userID, profile); err != nil {
		// Undo the identity so the address can sign up again
		if delErr := s.provider.DeleteAccount(ctx, userID); delErr != nil {
			log.Printf("[SIGNUP] Failed to roll back account %s (%s) after profile write error: %v", userID, req.Email, delErr)
		}
		return nil, errs.Unavailable("write user profile", err)
	}

	session, err := s.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, errs.Unavailable("sign in", err)
	}

	log.Printf("[SIGNUP] Created account %s (%s)", userID, req.Email)
	return session, nil
}

// SignIn starts a session
func (s *userService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, errs.NewValidationError("email", "email is required")
	}
	if password == "" {
		return nil, errs.NewValidationError("password", "password is required")
	}

	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, errs.Unavailable("sign in", err)
	}

	// Bookkeeping only; a failed write must not fail the sign-in
	err = s.store.Update(ctx, Collection, session.UserID, docstore.Fields{
		FieldLastSignInAt: s.now().UTC(),
	})
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		log.Printf("[SIGNIN] Warning: failed to record sign-in for %s: %v", session.UserID, err)
	}

	return session, nil
}

// SignOut ends the context's session
func (s *userService) SignOut(ctx context.Context) error {
	session, err := RequireSession(ctx)
	if err != nil {
		return err
	}
	if err := s.provider.SignOut(ctx, session.Token); err != nil {
		return errs.Unavailable("sign out", err)
	}
	return nil
}

// CurrentSession returns the context's session
func (s *userService) CurrentSession(ctx context.Context) (*Session, error) {
	return RequireSession(ctx)
}

// GetProfile reads users/{userID}
func (s *userService) GetProfile(ctx context.Context, userID string) (*User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.NewValidationError("userId", "user id is required")
	}

	doc, err := s.store.Get(ctx, Collection, userID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, errs.NewNotFoundError("user", userID)
	}
	if err != nil {
		return nil, errs.Unavailable("get user profile", err)
	}

	createdAt, _ := doc.Fields.Time(FieldCreatedAt)
	return &User{
		ID:        doc.ID,
		Name:      doc.Fields.String(FieldName),
		Email:     doc.Fields.String(FieldEmail),
		CreatedAt: createdAt,
	}, nil
}

// ValidateEmail checks the address format accepted at sign-up
func ValidateEmail(email string) error {
	if email == "" {
		return errs.NewValidationError("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return errs.NewValidationError("email", "invalid email format")
	}
	return nil
}

// ValidatePassword checks the password rules accepted at sign-up
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return errs.NewValidationError("password", "password must be at least 8 characters")
	}
	return nil
}
