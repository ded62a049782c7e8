package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/identity"
	"github.com/mntdherm/no-schema-update-sub001/internal/infrastructure/mailer"
)

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest, device domain.DeviceInfo) (*identity.SignInResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*identity.SignInResult, error)
	Logout(ctx context.Context, userID, email, sessionID string) error
	Refresh(ctx context.Context, refreshToken string) (*identity.SignInResult, error)
	ResendVerification(ctx context.Context, userID string, device domain.DeviceInfo) error
	RequestPasswordReset(ctx context.Context, email string, device domain.DeviceInfo) error
	ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error
}

// identityProvider is the slice of the credential store the service needs.
type identityProvider interface {
	CreateAccount(ctx context.Context, email, password, role string) (string, error)
	DeleteAccount(ctx context.Context, userID string) error
	SignIn(ctx context.Context, email, password string) (*identity.SignInResult, error)
	SignInAs(ctx context.Context, userID string) (*identity.SignInResult, error)
	SignOut(ctx context.Context, sessionID string) error
	Refresh(ctx context.Context, refreshToken string) (*identity.SignInResult, error)
	Reauthenticate(ctx context.Context, userID, password string) error
	UpdatePassword(ctx context.Context, userID, newPassword string) error
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type tokenIssuer interface {
	Issue(ctx context.Context, userID, email string, typ domain.TokenType, device domain.DeviceInfo) (string, error)
	Invalidate(ctx context.Context, userID string, typ domain.TokenType) (int, error)
}

type auditRecorder interface {
	Record(ctx context.Context, userID, userEmail, action, entity, entityID string, details map[string]interface{}) bool
}

type mailSender interface {
	Send(ctx context.Context, to, subject, html string) bool
}

type service struct {
	provider      identityProvider
	userRepo      userStore
	tokens        tokenIssuer
	audits        auditRecorder
	mail          mailSender
	actionBaseURL string
}

type ServiceDeps struct {
	Provider      identityProvider
	UserRepo      userStore
	Tokens        tokenIssuer
	Audits        auditRecorder
	Mail          mailSender
	ActionBaseURL string
}

func NewService(deps ServiceDeps) Service {
	return &service{
		provider:      deps.Provider,
		userRepo:      deps.UserRepo,
		tokens:        deps.Tokens,
		audits:        deps.Audits,
		mail:          deps.Mail,
		actionBaseURL: deps.ActionBaseURL,
	}
}

// Signup registers the account, mirrors the profile document, issues a
// verification token and opens a session. If the profile write fails the
// account is deleted again so a retry starts clean.
func (s *service) Signup(ctx context.Context, req domain.SignupRequest, device domain.DeviceInfo) (*identity.SignInResult, error) {
	role := domain.RoleCustomer
	if req.IsVendor {
		role = domain.RoleVendor
	}

	userID, err := s.provider.CreateAccount(ctx, req.Email, req.Password, role)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		UserID:        userID,
		Email:         req.Email,
		Role:          role,
		EmailVerified: false,
		Enable:        1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		if delErr := s.provider.DeleteAccount(ctx, userID); delErr != nil {
			slog.Error("signup rollback failed, account orphaned",
				"user_id", userID, "put_err", err, "delete_err", delErr)
		}
		return nil, fmt.Errorf("create user profile: %w", err)
	}

	s.audits.Record(ctx, userID, req.Email, domain.AuditActionSignup, "user", userID,
		map[string]interface{}{"role": role})

	// The account is already usable and resend can recover a lost token,
	// so a failed issue does not unwind the signup.
	if err := s.sendVerification(ctx, userID, req.Email, device); err != nil {
		slog.Warn("verification token not issued at signup", "user_id", userID, "err", err)
	}

	res, err := s.provider.SignInAs(ctx, userID)
	if err != nil {
		return nil, err
	}
	res.Session.User = u
	return res, nil
}

func (s *service) Login(ctx context.Context, req domain.LoginRequest) (*identity.SignInResult, error) {
	res, err := s.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	if u, err := s.userRepo.Get(ctx, res.Session.UserID); err == nil {
		res.Session.User = u
	}
	s.audits.Record(ctx, res.Session.UserID, req.Email, domain.AuditActionLogin, "session", res.Session.SessionID, nil)
	return res, nil
}

// Logout records the audit entry first so a session-store failure cannot
// leave the sign-out untraced.
func (s *service) Logout(ctx context.Context, userID, email, sessionID string) error {
	s.audits.Record(ctx, userID, email, domain.AuditActionLogout, "session", sessionID, nil)
	return s.provider.SignOut(ctx, sessionID)
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*identity.SignInResult, error) {
	return s.provider.Refresh(ctx, refreshToken)
}

// ResendVerification replaces any outstanding verification tokens with a
// fresh one and re-sends the email.
func (s *service) ResendVerification(ctx context.Context, userID string, device domain.DeviceInfo) error {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if u.EmailVerified {
		return fmt.Errorf("email already verified: %w", domain.ErrBadRequest)
	}

	if _, err := s.tokens.Invalidate(ctx, userID, domain.TokenTypeVerifyEmail); err != nil {
		return fmt.Errorf("invalidate old verification tokens: %w", err)
	}

	// The old tokens are already burned here, so a failed issue must
	// surface instead of reporting a resend that never happened.
	if err := s.sendVerification(ctx, userID, u.Email, device); err != nil {
		return err
	}

	s.audits.Record(ctx, userID, u.Email, domain.AuditActionVerificationResend, "user", userID, nil)
	return nil
}

// RequestPasswordReset issues a reset token and emails the link. An unknown
// email returns success without doing anything, so the endpoint cannot be
// used to probe which addresses are registered.
func (s *service) RequestPasswordReset(ctx context.Context, email string, device domain.DeviceInfo) error {
	u, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Info("password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("look up account for reset: %w", err)
	}

	if _, err := s.tokens.Invalidate(ctx, u.UserID, domain.TokenTypePasswordReset); err != nil {
		return fmt.Errorf("invalidate old reset tokens: %w", err)
	}
	tok, err := s.tokens.Issue(ctx, u.UserID, u.Email, domain.TokenTypePasswordReset, device)
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	s.audits.Record(ctx, u.UserID, u.Email, domain.AuditActionResetRequest, "user", u.UserID, nil)

	link := mailer.ActionLink(s.actionBaseURL, domain.ActionModeResetPassword, tok)
	subject, html := mailer.PasswordResetEmail(link)
	if !s.mail.Send(ctx, u.Email, subject, html) {
		slog.Warn("failed to send password reset email", "user_id", u.UserID)
	}
	return nil
}

// ChangePassword re-checks the current password, sets the new one and
// closes out any outstanding reset tokens so an old reset link cannot
// undo the change.
func (s *service) ChangePassword(ctx context.Context, userID string, req domain.ChangePasswordRequest) error {
	if err := s.provider.Reauthenticate(ctx, userID, req.CurrentPassword); err != nil {
		return err
	}
	if err := s.provider.UpdatePassword(ctx, userID, req.NewPassword); err != nil {
		return err
	}

	if _, err := s.tokens.Invalidate(ctx, userID, domain.TokenTypePasswordReset); err != nil {
		slog.Warn("failed to invalidate reset tokens after password change", "user_id", userID, "err", err)
	}

	now := time.Now().UTC()
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{domain.FieldPasswordLastChanged: now}); err != nil {
		slog.Warn("failed to stamp password_last_changed", "user_id", userID, "err", err)
	}

	email := ""
	if u, err := s.userRepo.Get(ctx, userID); err == nil {
		email = u.Email
	}
	s.audits.Record(ctx, userID, email, domain.AuditActionPasswordChange, "user", userID, nil)

	if email != "" {
		subject, html := mailer.PasswordChangedEmail()
		if !s.mail.Send(ctx, email, subject, html) {
			slog.Warn("failed to send password changed notice", "user_id", userID)
		}
	}
	return nil
}

// sendVerification issues a verification token and emails the action link.
// A failed issue is a store-write fault and propagates; a failed send is
// only logged, delivery stays best effort.
func (s *service) sendVerification(ctx context.Context, userID, email string, device domain.DeviceInfo) error {
	tok, err := s.tokens.Issue(ctx, userID, email, domain.TokenTypeVerifyEmail, device)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}
	link := mailer.ActionLink(s.actionBaseURL, domain.ActionModeVerifyEmail, tok)
	subject, html := mailer.VerificationEmail(link)
	if !s.mail.Send(ctx, email, subject, html) {
		slog.Warn("failed to send verification email", "user_id", userID)
	}
	return nil
}
