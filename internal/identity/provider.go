// Package identity is a self-hosted stand-in for the hosted identity provider.
// Accounts live in the document store with bcrypt password hashes; sessions are
// HS256 JWTs.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"golang.org/x/crypto/bcrypt"

	"Commons/internal/core/docstore"
	"Commons/internal/core/errs"
	"Commons/internal/core/users"
)

// AccountCollection holds credentials, keyed by user id
const AccountCollection = "accounts"

// RevokedCollection holds signed-out token ids, keyed by jti.
// A document outlives the cache and restarts, so a revoked token never verifies again.
const RevokedCollection = "revokedTokens"

// Persisted field names of an account document
const (
	FieldEmail        = "email"
	FieldPasswordHash = "passwordHash"
	FieldCreatedAt    = "createdAt"
	FieldExpiresAt    = "expiresAt"
)

// MinSecretLength is the shortest accepted token signing secret
const MinSecretLength = 32

const (
	tokenIssuer            = "commons"
	emailClaim             = "email"
	defaultRevokedCapacity = 10000
)

// Config configures a Provider
type Config struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
	// RevokedCacheSize bounds the in-process cache of revoked token ids.
	// Evicted ids are still found in RevokedCollection.
	RevokedCacheSize int
}

// Provider implements users.IdentityProvider
type Provider struct {
	store     docstore.Store
	revoked   *lru.Cache[string, time.Time]
	observers map[int]func(users.AuthEvent)
	now       func() time.Time
	secret    []byte
	ttl       time.Duration
	cost      int
	nextID    int
	mu        sync.Mutex
}

// NewProvider creates a provider storing accounts in store
func NewProvider(store docstore.Store, cfg Config) (*Provider, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	if cfg.RevokedCacheSize <= 0 {
		cfg.RevokedCacheSize = defaultRevokedCapacity
	}

	revoked, err := lru.New[string, time.Time](cfg.RevokedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create revocation cache: %w", err)
	}

	return &Provider{
		store:     store,
		revoked:   revoked,
		observers: make(map[int]func(users.AuthEvent)),
		now:       time.Now,
		secret:    cfg.Secret,
		ttl:       cfg.TokenTTL,
		cost:      cfg.BcryptCost,
	}, nil
}

// SignUp creates an account for email
func (p *Provider) SignUp(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", errs.NewAuthError(errs.ReasonInvalidCredential)
	}

	// Uniqueness is checked, not enforced: two concurrent sign-ups of one
	// address can both pass.
	existing, err := p.findAccount(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return "", errs.NewAuthError(errs.ReasonEmailInUse)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	userID := uuid.NewString()
	err = p.store.Put(ctx, AccountCollection, userID, docstore.Fields{
		FieldEmail:        email,
		FieldPasswordHash: string(hash),
		FieldCreatedAt:    p.now().UTC(),
	})
	if err != nil {
		return "", errs.Unavailable("create account", err)
	}
	return userID, nil
}

// SignIn checks credentials and issues a session token
func (p *Provider) SignIn(ctx context.Context, email, password string) (*users.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, errs.NewAuthError(errs.ReasonInvalidCredential)
	}

	account, err := p.findAccount(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, errs.NewAuthError(errs.ReasonUserNotFound)
	}

	hash := account.Fields.String(FieldPasswordHash)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, errs.NewAuthError(errs.ReasonWrongPassword)
		}
		return nil, errs.NewAuthError(errs.ReasonInvalidCredential)
	}

	session, err := p.issue(account.ID, account.Fields.String(FieldEmail))
	if err != nil {
		return nil, err
	}

	p.emit(users.AuthEvent{Session: *session, SignedIn: true})
	return session, nil
}

// SignOut revokes token until it expires
func (p *Provider) SignOut(ctx context.Context, token string) error {
	session, tok, err := p.parse(ctx, token)
	if err != nil {
		return err
	}

	// Persist first: the token must stay revoked if the process restarts
	err = p.store.Put(ctx, RevokedCollection, tok.JwtID(), docstore.Fields{
		FieldExpiresAt: tok.Expiration().UTC(),
	})
	if err != nil {
		return errs.Unavailable("revoke session", err)
	}
	p.revoked.Add(tok.JwtID(), tok.Expiration())

	p.emit(users.AuthEvent{Session: *session, SignedIn: false})
	return nil
}

// Verify resolves token to its session
func (p *Provider) Verify(ctx context.Context, token string) (*users.Session, error) {
	session, _, err := p.parse(ctx, token)
	return session, err
}

// DeleteAccount removes the credentials of userID; a missing account is not an error
func (p *Provider) DeleteAccount(ctx context.Context, userID string) error {
	if err := p.store.Delete(ctx, AccountCollection, userID); err != nil {
		return errs.Unavailable("delete account", err)
	}
	return nil
}

// OnAuthStateChanged registers fn for sign-in and sign-out events.
// fn is called synchronously and must not block.
func (p *Provider) OnAuthStateChanged(fn func(users.AuthEvent)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) emit(ev users.AuthEvent) {
	p.mu.Lock()
	fns := make([]func(users.AuthEvent), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *Provider) findAccount(ctx context.Context, email string) (*docstore.Doc, error) {
	docs, err := p.store.Query(ctx, docstore.Query{
		Collection: AccountCollection,
		Where:      &docstore.Filter{Field: FieldEmail, Equals: email},
	})
	if err != nil {
		return nil, errs.Unavailable("find account", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	if len(docs) > 1 {
		log.Printf("[IDENTITY] Warning: %d accounts share email %s, using the first", len(docs), email)
	}
	return &docs[0], nil
}

func (p *Provider) issue(userID, email string) (*users.Session, error) {
	now := p.now()
	expires := now.Add(p.ttl)

	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(userID).
		JwtID(uuid.NewString()).
		IssuedAt(now).
		Expiration(expires).
		Claim(emailClaim, email).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build session token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, p.secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &users.Session{
		UserID:    userID,
		Email:     email,
		Token:     string(signed),
		ExpiresAt: expires.UTC().Truncate(time.Second),
	}, nil
}

func (p *Provider) parse(ctx context.Context, token string) (*users.Session, jwt.Token, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, errs.NewAuthError(errs.ReasonSessionRequired)
	}

	tok, err := jwt.Parse([]byte(token),
		jwt.WithKey(jwa.HS256, p.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(p.now)),
	)
	if err != nil {
		return nil, nil, errs.NewAuthError(errs.ReasonSessionExpired)
	}
	if tok.JwtID() == "" {
		return nil, nil, errs.NewAuthError(errs.ReasonInvalidCredential)
	}
	revoked, err := p.isRevoked(ctx, tok.JwtID())
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, errs.NewAuthError(errs.ReasonSessionExpired)
	}

	email, _ := tok.Get(emailClaim)
	emailStr, _ := email.(string)
	if tok.Subject() == "" || emailStr == "" {
		return nil, nil, errs.NewAuthError(errs.ReasonInvalidCredential)
	}

	return &users.Session{
		UserID:    tok.Subject(),
		Email:     emailStr,
		Token:     token,
		ExpiresAt: tok.Expiration().UTC(),
	}, tok, nil
}

// isRevoked checks the cache, then the store. Only positive results are
// cached, so a sign-out by another process is seen on its next lookup.
func (p *Provider) isRevoked(ctx context.Context, jti string) (bool, error) {
	if _, ok := p.revoked.Get(jti); ok {
		return true, nil
	}

	doc, err := p.store.Get(ctx, RevokedCollection, jti)
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.Unavailable("check revocation", err)
	}

	expires, _ := doc.Fields.Time(FieldExpiresAt)
	p.revoked.Add(jti, expires)
	return true, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
