package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/mntdherm/no-schema-update-sub001/internal/pkg/id"
	pkgtoken "github.com/mntdherm/no-schema-update-sub001/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// credentialStore is the slice of the credentials repo the provider needs.
type credentialStore interface {
	Put(ctx context.Context, c *domain.Credential) error
	Get(ctx context.Context, userID string) (*domain.Credential, error)
	GetByEmail(ctx context.Context, email string) (*domain.Credential, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Delete(ctx context.Context, userID string) error
}

// sessionStore is the slice of the sessions repo the provider needs.
type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	Update(ctx context.Context, sessionID string, updates map[string]interface{}) error
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	SoftDeleteByUser(ctx context.Context, userID string) error
}

// SignInResult bundles everything a successful sign-in produces.
type SignInResult struct {
	Session      *domain.Session
	Bearer       string
	RefreshToken string
}

// Provider implements the credential store: it owns account records,
// password hashes, sessions and provider-native action codes. Everything
// else in the system treats it as an opaque identity backend.
type Provider struct {
	creds      credentialStore
	sessions   sessionStore
	signer     *Signer
	codes      *ActionCodes
	refreshDur time.Duration
}

func NewProvider(creds credentialStore, sessions sessionStore, signer *Signer, codes *ActionCodes, refreshDur time.Duration) *Provider {
	return &Provider{
		creds:      creds,
		sessions:   sessions,
		signer:     signer,
		codes:      codes,
		refreshDur: refreshDur,
	}
}

// CreateAccount registers a new account and returns its user ID.
// Returns ErrConflict when the email is already registered.
func (p *Provider) CreateAccount(ctx context.Context, email, password, role string) (string, error) {
	if _, err := p.creds.GetByEmail(ctx, email); err == nil {
		return "", fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	c := &domain.Credential{
		UserID:        id.New(),
		Email:         email,
		PasswordHash:  string(hash),
		Role:          role,
		EmailVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := p.creds.Put(ctx, c); err != nil {
		return "", err
	}
	return c.UserID, nil
}

// DeleteAccount removes the account record. Used to unwind a half-finished
// signup; also disables any sessions that may have been created.
func (p *Provider) DeleteAccount(ctx context.Context, userID string) error {
	if err := p.sessions.SoftDeleteByUser(ctx, userID); err != nil {
		slog.Warn("failed to disable sessions during account delete", "user_id", userID, "err", err)
	}
	return p.creds.Delete(ctx, userID)
}

// GetAccount returns the credential record for a user.
func (p *Provider) GetAccount(ctx context.Context, userID string) (*domain.Credential, error) {
	return p.creds.Get(ctx, userID)
}

// GetAccountByEmail returns the credential record for an email address.
func (p *Provider) GetAccountByEmail(ctx context.Context, email string) (*domain.Credential, error) {
	return p.creds.GetByEmail(ctx, email)
}

// SignIn checks the password and opens a new session.
// Bad email and bad password both map to ErrUnauthorized.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	c, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	return p.openSession(ctx, c)
}

// SignInAs opens a session for an already-authenticated account. Used by
// signup, where the password was just set.
func (p *Provider) SignInAs(ctx context.Context, userID string) (*SignInResult, error) {
	c, err := p.creds.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return p.openSession(ctx, c)
}

func (p *Provider) openSession(ctx context.Context, c *domain.Credential) (*SignInResult, error) {
	refreshToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           c.UserID,
		Enable:           true,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(p.refreshDur).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := p.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}
	bearer, err := p.signer.Sign(c.UserID, c.Email, c.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: sess, Bearer: bearer, RefreshToken: refreshToken}, nil
}

// SignOut disables the session. Idempotent.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	err := p.sessions.Update(ctx, sessionID, map[string]interface{}{"enable": false})
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}

// Refresh rotates the refresh token and issues a new bearer.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*SignInResult, error) {
	sess, err := p.sessions.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if sess.RefreshExpiresAt < time.Now().Unix() {
		return nil, fmt.Errorf("refresh token expired: %w", domain.ErrUnauthorized)
	}
	c, err := p.creds.Get(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	newExpiry := time.Now().Add(p.refreshDur).Unix()
	if err := p.sessions.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return nil, err
	}
	sess.RefreshToken = newToken
	sess.RefreshExpiresAt = newExpiry
	bearer, err := p.signer.Sign(c.UserID, c.Email, c.Role, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &SignInResult{Session: sess, Bearer: bearer, RefreshToken: newToken}, nil
}

// Reauthenticate re-checks the account's current password.
// Returns ErrUnauthorized on mismatch.
func (p *Provider) Reauthenticate(ctx context.Context, userID, password string) error {
	c, err := p.creds.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return fmt.Errorf("current password mismatch: %w", domain.ErrUnauthorized)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (p *Provider) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return p.creds.Update(ctx, userID, map[string]interface{}{"password_hash": string(hash)})
}

// MarkEmailVerified flips the provider-side verified flag.
func (p *Provider) MarkEmailVerified(ctx context.Context, userID string) error {
	return p.creds.Update(ctx, userID, map[string]interface{}{"email_verified": true})
}
