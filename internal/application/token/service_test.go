package token

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTokenStore is an in-memory stand-in for the DynamoDB repo. Claim
// mirrors the conditional-update semantics: exactly one claimant wins.
type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.AuthToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*domain.AuthToken)}
}

func (f *fakeTokenStore) Put(_ context.Context, t *domain.AuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.tokens[t.Token] = &cp
	return nil
}

func (f *fakeTokenStore) GetByToken(_ context.Context, token string) (*domain.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTokenStore) ListUnused(_ context.Context, userID string, typ domain.TokenType) ([]domain.AuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuthToken
	for _, t := range f.tokens {
		if t.UserID == userID && t.Type == typ && !t.Used {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTokenStore) Claim(_ context.Context, token string, usedAt time.Time, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[token]
	if !ok {
		return fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	if t.Used {
		return fmt.Errorf("token already consumed: %w", domain.ErrConflict)
	}
	t.Used = true
	t.UsedAt = &usedAt
	if reason != "" {
		t.InvalidatedReason = reason
	}
	return nil
}

func newTestService(store *fakeTokenStore) Service {
	return NewService(ServiceDeps{
		TokenRepo: store,
		VerifyTTL: 24 * time.Hour,
		ResetTTL:  time.Hour,
	})
}

func TestIssueAndValidate(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{UserAgent: "ua"})
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	res, err := svc.Validate(ctx, tok, domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "u1", res.UserID)
	assert.Equal(t, "u1@example.com", res.Email)
	assert.Empty(t, res.Error)
}

func TestValidateUnknownToken(t *testing.T) {
	svc := newTestService(newFakeTokenStore())

	res, err := svc.Validate(context.Background(), "nope", domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Token not found", res.Error)
}

func TestValidateTypeMismatchReadsAsNotFound(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, tok, domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Token not found", res.Error)
}

func TestValidateUsedToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, tok))

	res, err := svc.Validate(ctx, tok, domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Token already used", res.Error)
}

func TestValidateExpiredToken(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypePasswordReset, domain.DeviceInfo{})
	require.NoError(t, err)

	// one second past expiry fails
	store.mu.Lock()
	store.tokens[tok].ExpiresAt = time.Now().Add(-time.Second).Unix()
	store.mu.Unlock()

	res, err := svc.Validate(ctx, tok, domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "Token expired", res.Error)

	// one second before expiry still passes
	fresh, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypePasswordReset, domain.DeviceInfo{})
	require.NoError(t, err)
	store.mu.Lock()
	store.tokens[fresh].ExpiresAt = time.Now().Add(time.Second).Unix()
	store.mu.Unlock()

	res, err = svc.Validate(ctx, fresh, domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestUsedWinsOverExpired(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypePasswordReset, domain.DeviceInfo{})
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, tok))

	store.mu.Lock()
	store.tokens[tok].ExpiresAt = time.Now().Add(-time.Minute).Unix()
	store.mu.Unlock()

	res, err := svc.Validate(ctx, tok, domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "Token already used", res.Error)
}

func TestResultNotFoundOnlyForMissingTokens(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	res, err := svc.Validate(ctx, "nope", domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.True(t, res.NotFound())

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)
	require.NoError(t, svc.MarkUsed(ctx, tok))

	// a consumed token is a different outcome, not "not found"
	res, err = svc.Validate(ctx, tok, domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.False(t, res.NotFound())
	assert.False(t, res.Valid)
}

func TestMarkUsedIsExactlyOnce(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)

	require.NoError(t, svc.MarkUsed(ctx, tok))
	err = svc.MarkUsed(ctx, tok)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestInvalidateSupersedesOnlyMatchingType(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	v1, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)
	v2, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)
	r1, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypePasswordReset, domain.DeviceInfo{})
	require.NoError(t, err)
	other, err := svc.Issue(ctx, "u2", "u2@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)

	n, err := svc.Invalidate(ctx, "u1", domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, tok := range []string{v1, v2} {
		res, err := svc.Validate(ctx, tok, domain.TokenTypeVerifyEmail)
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, "Token already used", res.Error)
		stored, err := store.GetByToken(ctx, tok)
		require.NoError(t, err)
		assert.Equal(t, ReasonReplaced, stored.InvalidatedReason)
	}

	// reset token and the other user's token are untouched
	res, err := svc.Validate(ctx, r1, domain.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	res, err = svc.Validate(ctx, other, domain.TokenTypeVerifyEmail)
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestInvalidateNothingToDo(t *testing.T) {
	svc := newTestService(newFakeTokenStore())
	ctx := context.Background()

	// back-to-back sweeps with nothing to invalidate both report zero
	for i := 0; i < 2; i++ {
		n, err := svc.Invalidate(ctx, "u1", domain.TokenTypePasswordReset)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	}
}

func TestIssueTTLPerType(t *testing.T) {
	store := newFakeTokenStore()
	svc := newTestService(store)
	ctx := context.Background()

	v, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypeVerifyEmail, domain.DeviceInfo{})
	require.NoError(t, err)
	r, err := svc.Issue(ctx, "u1", "u1@example.com", domain.TokenTypePasswordReset, domain.DeviceInfo{})
	require.NoError(t, err)

	vt, err := store.GetByToken(ctx, v)
	require.NoError(t, err)
	rt, err := store.GetByToken(ctx, r)
	require.NoError(t, err)

	now := time.Now()
	assert.InDelta(t, now.Add(24*time.Hour).Unix(), vt.ExpiresAt, 5)
	assert.InDelta(t, now.Add(time.Hour).Unix(), rt.ExpiresAt, 5)
}
