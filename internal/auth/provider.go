package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/vault-be/internal/models"
	"github.com/hongminglow/vault-be/internal/storage"
)

var (
	// ErrInvalidCredentials is returned when the email or password does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrRevoked is returned for a token that was signed out.
	ErrRevoked = errors.New("session signed out")
)

// ValidationError describes sign-up input that was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ChangeKind names an identity transition.
type ChangeKind string

const (
	SignedUp  ChangeKind = "signed_up"
	SignedIn  ChangeKind = "signed_in"
	SignedOut ChangeKind = "signed_out"
)

// Change is broadcast to OnChange listeners. TokenID is set for SignedOut and
// names the revoked session.
type Change struct {
	Kind    ChangeKind
	UserID  string
	TokenID string
}

// Session is the result of a successful sign-up or sign-in.
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID    string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// Provider is the process-wide identity provider. It owns sign-up, sign-in and
// sign-out and notifies listeners of identity changes.
type Provider struct {
	store      storage.UserStore
	tokens     *TokenManager
	strategies []string
	revoked    *ristretto.Cache

	mu        sync.Mutex
	listeners map[int]func(Change)
	nextID    int
}

// NewProvider builds a provider. New users get a zero balance in each strategy.
func NewProvider(store storage.UserStore, tokens *TokenManager, strategies []string) (*Provider, error) {
	revoked, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create revocation cache: %w", err)
	}
	return &Provider{
		store:      store,
		tokens:     tokens,
		strategies: strategies,
		revoked:    revoked,
		listeners:  make(map[int]func(Change)),
	}, nil
}

// Close releases the revocation cache.
func (p *Provider) Close() {
	p.revoked.Close()
}

// OnChange registers fn for identity changes and returns its unregister func.
func (p *Provider) OnChange(fn func(Change)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	p.listeners[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) emit(c Change) {
	p.mu.Lock()
	fns := make([]func(Change), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// SignUp registers the user with a default profile and empty portfolio and
// opens a session.
func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	email = strings.TrimSpace(email)
	if err := validateSignUp(email, password); err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	if strings.TrimSpace(displayName) == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	user, err := p.store.CreateUser(ctx, models.User{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		Preferences:  models.Preferences{Notifications: true},
		PasswordHash: string(hash),
	}, p.strategies)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return Session{}, ErrEmailTaken
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}

	session, err := p.open(user)
	if err != nil {
		return Session{}, err
	}
	slog.Info("user signed up", "user", user.ID)
	p.emit(Change{Kind: SignedUp, UserID: user.ID})
	return session, nil
}

// SignIn checks the password and opens a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := p.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}

	session, err := p.open(user)
	if err != nil {
		return Session{}, err
	}
	p.emit(Change{Kind: SignedIn, UserID: user.ID})
	return session, nil
}

// SignOut revokes the token until it would have expired anyway.
func (p *Provider) SignOut(_ context.Context, token string) error {
	id, err := p.Authenticate(token)
	if err != nil {
		return err
	}
	ttl := time.Until(id.ExpiresAt)
	if ttl > 0 && !p.revoked.SetWithTTL(id.TokenID, struct{}{}, 1, ttl) {
		slog.Warn("revocation cache rejected token", "user", id.UserID)
	}
	p.revoked.Wait()
	slog.Info("user signed out", "user", id.UserID)
	p.emit(Change{Kind: SignedOut, UserID: id.UserID, TokenID: id.TokenID})
	return nil
}

// Authenticate validates a token and returns the caller's identity.
func (p *Provider) Authenticate(token string) (Identity, error) {
	claims, err := p.tokens.Parse(strings.TrimSpace(token))
	if err != nil {
		return Identity{}, err
	}
	if _, found := p.revoked.Get(claims.ID); found {
		return Identity{}, ErrRevoked
	}
	return Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (p *Provider) open(user models.User) (Session, error) {
	token, claims, err := p.tokens.Generate(user)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: user}, nil
}

func validateSignUp(email, password string) error {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return &ValidationError{Reason: "a valid email is required"}
	}
	if len(strings.TrimSpace(password)) < 8 || !utf8.ValidString(password) {
		return &ValidationError{Reason: "password must be at least 8 characters"}
	}
	return nil
}
