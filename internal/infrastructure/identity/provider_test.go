package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"testing"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fakeCredStore struct {
	byID map[string]*domain.Credential
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{byID: make(map[string]*domain.Credential)}
}

func (f *fakeCredStore) Put(_ context.Context, c *domain.Credential) error {
	cp := *c
	f.byID[c.UserID] = &cp
	return nil
}

func (f *fakeCredStore) Get(_ context.Context, userID string) (*domain.Credential, error) {
	c, ok := f.byID[userID]
	if !ok {
		return nil, fmt.Errorf("credential not found: %w", domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCredStore) GetByEmail(_ context.Context, email string) (*domain.Credential, error) {
	for _, c := range f.byID {
		if c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("credential not found: %w", domain.ErrNotFound)
}

func (f *fakeCredStore) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	c, ok := f.byID[userID]
	if !ok {
		return fmt.Errorf("credential not found: %w", domain.ErrNotFound)
	}
	if v, ok := updates["password_hash"].(string); ok {
		c.PasswordHash = v
	}
	if v, ok := updates["email_verified"].(bool); ok {
		c.EmailVerified = v
	}
	return nil
}

func (f *fakeCredStore) Delete(_ context.Context, userID string) error {
	delete(f.byID, userID)
	return nil
}

type fakeSessionStore struct {
	byID map[string]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{byID: make(map[string]*domain.Session)}
}

func (f *fakeSessionStore) Put(_ context.Context, s *domain.Session) error {
	cp := *s
	f.byID[s.SessionID] = &cp
	return nil
}

func (f *fakeSessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s, ok := f.byID[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) GetByRefreshToken(_ context.Context, token string) (*domain.Session, error) {
	for _, s := range f.byID {
		if s.RefreshToken == token {
			if !s.Enable {
				return nil, fmt.Errorf("session disabled: %w", domain.ErrUnauthorized)
			}
			cp := *s
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("session not found: %w", domain.ErrNotFound)
}

func (f *fakeSessionStore) Update(_ context.Context, sessionID string, updates map[string]interface{}) error {
	s, ok := f.byID[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	if v, ok := updates["enable"].(bool); ok {
		s.Enable = v
	}
	return nil
}

func (f *fakeSessionStore) RotateRefreshToken(_ context.Context, sessionID, newToken string, newExpiry int64) error {
	s, ok := f.byID[sessionID]
	if !ok {
		return fmt.Errorf("session not found: %w", domain.ErrNotFound)
	}
	s.RefreshToken = newToken
	s.RefreshExpiresAt = newExpiry
	return nil
}

func (f *fakeSessionStore) SoftDeleteByUser(_ context.Context, userID string) error {
	for _, s := range f.byID {
		if s.UserID == userID {
			s.Enable = false
		}
	}
	return nil
}

func newTestProvider(t *testing.T, codeTTL time.Duration) (*Provider, *fakeCredStore, *fakeSessionStore) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signer := NewSignerFromKeys(key, &key.PublicKey, time.Hour)
	codes := NewActionCodes("test-secret", codeTTL)
	creds := newFakeCredStore()
	sessions := newFakeSessionStore()
	return NewProvider(creds, sessions, signer, codes, 24*time.Hour), creds, sessions
}

func TestCreateAccountDuplicateEmail(t *testing.T) {
	p, _, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, "a@example.com", "otherpassword", domain.RoleCustomer)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSignInWrongPassword(t *testing.T) {
	p, _, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)

	_, err = p.SignIn(ctx, "a@example.com", "wrongpassword")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = p.SignIn(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSignInOpensSession(t *testing.T) {
	p, _, sessions := newTestProvider(t, time.Hour)
	ctx := context.Background()

	uid, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleVendor)
	require.NoError(t, err)

	res, err := p.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Bearer)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, uid, res.Session.UserID)

	claims, err := p.signer.Verify(res.Bearer)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, domain.RoleVendor, claims.Role)
	assert.Equal(t, res.Session.SessionID, claims.SessionID)

	stored, err := sessions.Get(ctx, res.Session.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.Enable)
}

func TestRefreshRotatesToken(t *testing.T) {
	p, _, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)
	res, err := p.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	refreshed, err := p.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, refreshed.RefreshToken)

	// old token no longer resolves
	_, err = p.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSignOutDisablesSession(t *testing.T) {
	p, _, sessions := newTestProvider(t, time.Hour)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)
	res, err := p.SignIn(ctx, "a@example.com", "password123")
	require.NoError(t, err)

	require.NoError(t, p.SignOut(ctx, res.Session.SessionID))
	stored, err := sessions.Get(ctx, res.Session.SessionID)
	require.NoError(t, err)
	assert.False(t, stored.Enable)

	// idempotent, even for unknown sessions
	assert.NoError(t, p.SignOut(ctx, "no-such-session"))
}

func TestReauthenticate(t *testing.T) {
	p, _, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	uid, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)

	assert.NoError(t, p.Reauthenticate(ctx, uid, "password123"))
	assert.ErrorIs(t, p.Reauthenticate(ctx, uid, "nope"), domain.ErrUnauthorized)
}

func TestActionCodeVerifyEmailRoundTrip(t *testing.T) {
	p, creds, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	uid, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)

	code, err := p.NewActionCode(ctx, "a@example.com", PurposeVerifyEmail)
	require.NoError(t, err)

	c, err := p.ApplyActionCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, uid, c.UserID)
	assert.True(t, c.EmailVerified)

	stored, err := creds.Get(ctx, uid)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
}

func TestActionCodePurposeMismatch(t *testing.T) {
	p, _, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)

	// a reset code must not apply as a verification code
	code, err := p.NewActionCode(ctx, "a@example.com", PurposeResetPassword)
	require.NoError(t, err)

	_, err = p.ApplyActionCode(ctx, code)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestActionCodeExpired(t *testing.T) {
	p, _, _ := newTestProvider(t, -time.Minute)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, "a@example.com", "password123", domain.RoleCustomer)
	require.NoError(t, err)

	code, err := p.NewActionCode(ctx, "a@example.com", PurposeVerifyEmail)
	require.NoError(t, err)

	_, err = p.ApplyActionCode(ctx, code)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestConfirmPasswordReset(t *testing.T) {
	p, creds, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	uid, err := p.CreateAccount(ctx, "a@example.com", "oldpassword1", domain.RoleCustomer)
	require.NoError(t, err)

	code, err := p.NewActionCode(ctx, "a@example.com", PurposeResetPassword)
	require.NoError(t, err)

	email, err := p.VerifyPasswordResetCode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", email)

	require.NoError(t, p.ConfirmPasswordReset(ctx, code, "newpassword1"))

	stored, err := creds.Get(ctx, uid)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpassword1")))
}

func TestActionCodeGarbageRejected(t *testing.T) {
	p, _, _ := newTestProvider(t, time.Hour)
	ctx := context.Background()

	_, err := p.ApplyActionCode(ctx, "not-a-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = p.VerifyPasswordResetCode(ctx, "not-a-code")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
