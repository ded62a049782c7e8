package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apptoken "github.com/mntdherm/no-schema-update-sub001/internal/application/token"
	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
)

// PathKind tags which redemption path an action code resolved through.
type PathKind string

const (
	PathCustom  PathKind = "custom"  // our own stored single-use token
	PathNative  PathKind = "native"  // provider-minted self-contained code
	PathInvalid PathKind = "invalid" // neither path accepted the code
)

// Resolution is the outcome of resolving an emailed action link.
type Resolution struct {
	Path   PathKind `json:"path"`
	Mode   string   `json:"mode"`
	UserID string   `json:"user_id,omitempty"`
	Email  string   `json:"email,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

func (r *Resolution) invalid(reason string) *Resolution {
	r.Path = PathInvalid
	r.UserID = ""
	r.Email = ""
	r.Reason = reason
	return r
}

type Service interface {
	// Resolve dispatches an action link by mode. Verification links are
	// applied immediately; reset links are only checked, the new password
	// arrives later through CompletePasswordReset.
	Resolve(ctx context.Context, mode, oobCode string) (*Resolution, error)
	// CompletePasswordReset re-validates the code and sets the new password.
	CompletePasswordReset(ctx context.Context, oobCode, newPassword string) error
}

type tokenValidator interface {
	Validate(ctx context.Context, tokenStr string, typ domain.TokenType) (*apptoken.Result, error)
	MarkUsed(ctx context.Context, tokenStr string) error
}

type identityProvider interface {
	MarkEmailVerified(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, newPassword string) error
	ApplyActionCode(ctx context.Context, code string) (*domain.Credential, error)
	VerifyPasswordResetCode(ctx context.Context, code string) (string, error)
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type auditRecorder interface {
	Record(ctx context.Context, userID, userEmail, action, entity, entityID string, details map[string]interface{}) bool
}

type service struct {
	tokens   tokenValidator
	provider identityProvider
	userRepo userStore
	audits   auditRecorder
}

type ServiceDeps struct {
	Tokens   tokenValidator
	Provider identityProvider
	UserRepo userStore
	Audits   auditRecorder
}

func NewService(deps ServiceDeps) Service {
	return &service{
		tokens:   deps.Tokens,
		provider: deps.Provider,
		userRepo: deps.UserRepo,
		audits:   deps.Audits,
	}
}

func (s *service) Resolve(ctx context.Context, mode, oobCode string) (*Resolution, error) {
	switch mode {
	case domain.ActionModeVerifyEmail:
		return s.verifyEmail(ctx, oobCode)
	case domain.ActionModeResetPassword:
		return s.startPasswordReset(ctx, oobCode)
	case domain.ActionModeRecoverEmail:
		return s.recoverEmail(ctx, oobCode)
	default:
		return (&Resolution{Mode: mode}).invalid("unknown action mode"), nil
	}
}

// verifyEmail redeems a verification link. The custom token is claimed
// before the profile write so a double click cannot apply twice; the
// loser of the race sees "already used".
func (s *service) verifyEmail(ctx context.Context, oobCode string) (*Resolution, error) {
	res := &Resolution{Mode: domain.ActionModeVerifyEmail}

	tok, err := s.tokens.Validate(ctx, oobCode, domain.TokenTypeVerifyEmail)
	if err != nil {
		return nil, err
	}
	if tok.Valid {
		if err := s.tokens.MarkUsed(ctx, oobCode); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return res.invalid("Token already used"), nil
			}
			return nil, err
		}
		if err := s.applyEmailVerified(ctx, tok.UserID, tok.Email); err != nil {
			return nil, err
		}
		res.Path = PathCustom
		res.UserID = tok.UserID
		res.Email = tok.Email
		return res, nil
	}
	if !tok.NotFound() {
		// It was one of ours, just no longer redeemable.
		return res.invalid(tok.Error), nil
	}

	// Fall back to a provider-native code.
	cred, err := s.provider.ApplyActionCode(ctx, oobCode)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return res.invalid("Token not found"), nil
		}
		return nil, err
	}
	if err := s.mirrorEmailVerified(ctx, cred.UserID, cred.Email); err != nil {
		slog.Warn("failed to mirror email_verified to profile", "user_id", cred.UserID, "err", err)
	}
	res.Path = PathNative
	res.UserID = cred.UserID
	res.Email = cred.Email
	return res, nil
}

// applyEmailVerified flips the flag in the credential store and the
// profile, then audits. Custom path only; the native path already flipped
// the credential side.
func (s *service) applyEmailVerified(ctx context.Context, userID, email string) error {
	if err := s.provider.MarkEmailVerified(ctx, userID); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return s.mirrorEmailVerified(ctx, userID, email)
}

func (s *service) mirrorEmailVerified(ctx context.Context, userID, email string) error {
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{domain.FieldEmailVerified: true}); err != nil {
		return err
	}
	s.audits.Record(ctx, userID, email, domain.AuditActionEmailVerified, "user", userID, nil)
	return nil
}

// startPasswordReset checks a reset code without consuming it, so the
// reset page can show the form before asking for the new password.
func (s *service) startPasswordReset(ctx context.Context, oobCode string) (*Resolution, error) {
	res := &Resolution{Mode: domain.ActionModeResetPassword}

	tok, err := s.tokens.Validate(ctx, oobCode, domain.TokenTypePasswordReset)
	if err != nil {
		return nil, err
	}
	if tok.Valid {
		res.Path = PathCustom
		res.UserID = tok.UserID
		res.Email = tok.Email
		return res, nil
	}
	if !tok.NotFound() {
		return res.invalid(tok.Error), nil
	}

	email, err := s.provider.VerifyPasswordResetCode(ctx, oobCode)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return res.invalid("Token not found"), nil
		}
		return nil, err
	}
	res.Path = PathNative
	res.Email = email
	return res, nil
}

// CompletePasswordReset re-validates the code, writes the new password,
// then consumes the token. A concurrent duplicate submit loses the claim
// and is treated as done: the password it wanted is already in place.
func (s *service) CompletePasswordReset(ctx context.Context, oobCode, newPassword string) error {
	tok, err := s.tokens.Validate(ctx, oobCode, domain.TokenTypePasswordReset)
	if err != nil {
		return err
	}
	if tok.Valid {
		if err := s.provider.UpdatePassword(ctx, tok.UserID, newPassword); err != nil {
			return err
		}
		if err := s.tokens.MarkUsed(ctx, oobCode); err != nil {
			if !errors.Is(err, domain.ErrConflict) {
				return err
			}
			slog.Warn("reset token claimed concurrently", "user_id", tok.UserID)
		}
		s.afterPasswordReset(ctx, tok.UserID, tok.Email)
		return nil
	}
	if !tok.NotFound() {
		return fmt.Errorf("%s: %w", tok.Error, domain.ErrUnauthorized)
	}

	email, err := s.provider.VerifyPasswordResetCode(ctx, oobCode)
	if err != nil {
		return err
	}
	if err := s.provider.ConfirmPasswordReset(ctx, oobCode, newPassword); err != nil {
		return err
	}
	userID := ""
	if u, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		userID = u.UserID
	}
	s.afterPasswordReset(ctx, userID, email)
	return nil
}

func (s *service) afterPasswordReset(ctx context.Context, userID, email string) {
	if userID != "" {
		now := time.Now().UTC()
		if err := s.userRepo.Update(ctx, userID, map[string]interface{}{domain.FieldPasswordLastChanged: now}); err != nil {
			slog.Warn("failed to stamp password_last_changed", "user_id", userID, "err", err)
		}
	}
	s.audits.Record(ctx, userID, email, domain.AuditActionPasswordChange, "user", userID,
		map[string]interface{}{"via": "password_reset"})
}

// recoverEmail only exists on the native path; no custom token carries it.
func (s *service) recoverEmail(ctx context.Context, oobCode string) (*Resolution, error) {
	res := &Resolution{Mode: domain.ActionModeRecoverEmail}

	cred, err := s.provider.ApplyActionCode(ctx, oobCode)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return res.invalid("Token not found"), nil
		}
		return nil, err
	}
	res.Path = PathNative
	res.UserID = cred.UserID
	res.Email = cred.Email
	return res, nil
}
