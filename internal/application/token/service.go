package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	pkgtoken "github.com/mntdherm/no-schema-update-sub001/internal/pkg/token"
)

// ReasonReplaced marks tokens superseded by a newer one of the same type.
const ReasonReplaced = "replaced_with_new_token"

// Validation outcome messages, stable for clients.
const (
	msgNotFound    = "Token not found"
	msgAlreadyUsed = "Token already used"
	msgExpired     = "Token expired"
)

// Result is the outcome of validating an action token.
type Result struct {
	Valid  bool   `json:"valid"`
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NotFound reports whether validation failed because no token of the
// requested type exists under that value. Used and expired tokens are
// not "not found"; callers branch on the difference.
func (r *Result) NotFound() bool {
	return !r.Valid && r.Error == msgNotFound
}

type Service interface {
	// Issue creates and stores a fresh single-use token of the given type.
	Issue(ctx context.Context, userID, email string, typ domain.TokenType, device domain.DeviceInfo) (string, error)
	// Invalidate marks every unconsumed token of (user, type) as superseded.
	// Returns how many tokens were invalidated; zero is a normal outcome.
	Invalidate(ctx context.Context, userID string, typ domain.TokenType) (int, error)
	// Validate checks a token without consuming it.
	Validate(ctx context.Context, tokenStr string, typ domain.TokenType) (*Result, error)
	// MarkUsed consumes a token. Exactly one concurrent caller wins;
	// the rest get ErrConflict.
	MarkUsed(ctx context.Context, tokenStr string) error
}

type tokenStore interface {
	Put(ctx context.Context, t *domain.AuthToken) error
	GetByToken(ctx context.Context, token string) (*domain.AuthToken, error)
	ListUnused(ctx context.Context, userID string, typ domain.TokenType) ([]domain.AuthToken, error)
	Claim(ctx context.Context, token string, usedAt time.Time, reason string) error
}

type service struct {
	repo      tokenStore
	verifyTTL time.Duration
	resetTTL  time.Duration
}

type ServiceDeps struct {
	TokenRepo tokenStore
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.TokenRepo,
		verifyTTL: deps.VerifyTTL,
		resetTTL:  deps.ResetTTL,
	}
}

func (s *service) ttlFor(typ domain.TokenType) time.Duration {
	if typ == domain.TokenTypePasswordReset {
		return s.resetTTL
	}
	return s.verifyTTL
}

func (s *service) Issue(ctx context.Context, userID, email string, typ domain.TokenType, device domain.DeviceInfo) (string, error) {
	tokenStr, err := pkgtoken.NewActionToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	t := &domain.AuthToken{
		Token:      tokenStr,
		UserID:     userID,
		Email:      email,
		Type:       typ,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.ttlFor(typ)).Unix(),
		Used:       false,
		DeviceInfo: device,
	}
	if err := s.repo.Put(ctx, t); err != nil {
		return "", err
	}
	return tokenStr, nil
}

func (s *service) Invalidate(ctx context.Context, userID string, typ domain.TokenType) (int, error) {
	tokens, err := s.repo.ListUnused(ctx, userID, typ)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	count := 0
	for i := range tokens {
		err := s.repo.Claim(ctx, tokens[i].Token, now, ReasonReplaced)
		if err != nil {
			// A concurrent consumer beat us to this one. Fine either way:
			// the token is no longer redeemable.
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *service) Validate(ctx context.Context, tokenStr string, typ domain.TokenType) (*Result, error) {
	t, err := s.repo.GetByToken(ctx, tokenStr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &Result{Valid: false, Error: msgNotFound}, nil
		}
		return nil, err
	}
	// A token of the wrong type is indistinguishable from a missing one.
	if t.Type != typ {
		slog.Warn("token type mismatch", "expected", typ, "got", t.Type)
		return &Result{Valid: false, Error: msgNotFound}, nil
	}
	if t.Used {
		return &Result{Valid: false, Error: msgAlreadyUsed}, nil
	}
	if t.IsExpired(time.Now()) {
		return &Result{Valid: false, Error: msgExpired}, nil
	}
	return &Result{Valid: true, UserID: t.UserID, Email: t.Email}, nil
}

func (s *service) MarkUsed(ctx context.Context, tokenStr string) error {
	err := s.repo.Claim(ctx, tokenStr, time.Now().UTC(), "")
	if err != nil {
		return fmt.Errorf("mark token used: %w", err)
	}
	return nil
}
