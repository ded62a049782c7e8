package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
)

// Action code purposes. These ride inside the code itself so a code minted
// for one purpose can never be redeemed for another.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
	PurposeRecoverEmail  = "recover_email"
)

// actionCodeClaims is the payload of a provider-native action code.
type actionCodeClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// ActionCodes mints and verifies the provider's native out-of-band codes.
// HS256 over a shared secret; the code is self-contained, so verification
// needs no storage round trip.
type ActionCodes struct {
	secret []byte
	ttl    time.Duration
}

func NewActionCodes(secret string, ttl time.Duration) *ActionCodes {
	return &ActionCodes{secret: []byte(secret), ttl: ttl}
}

func (a *ActionCodes) Mint(userID, email, purpose string) (string, error) {
	now := time.Now()
	claims := actionCodeClaims{
		Email:   email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// verify parses the code and checks its purpose. Expired, malformed and
// wrong-purpose codes all map to ErrUnauthorized.
func (a *ActionCodes) verify(code, purpose string) (*actionCodeClaims, error) {
	token, err := jwt.ParseWithClaims(code, &actionCodeClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid action code: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*actionCodeClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid action code: %w", domain.ErrUnauthorized)
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("action code purpose mismatch: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

// NewActionCode mints a native out-of-band code for the account behind email.
func (p *Provider) NewActionCode(ctx context.Context, email, purpose string) (string, error) {
	c, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return p.codes.Mint(c.UserID, c.Email, purpose)
}

// ApplyActionCode redeems a verify-email or recover-email code and applies
// its effect to the account. Returns the affected account.
func (p *Provider) ApplyActionCode(ctx context.Context, code string) (*domain.Credential, error) {
	claims, err := p.codes.verify(code, PurposeVerifyEmail)
	if err != nil {
		// Could still be a recover-email code; those apply the same way.
		claims, err = p.codes.verify(code, PurposeRecoverEmail)
		if err != nil {
			return nil, err
		}
	}
	c, err := p.creds.Get(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if claims.Purpose == PurposeVerifyEmail {
		if err := p.MarkEmailVerified(ctx, c.UserID); err != nil {
			return nil, err
		}
		c.EmailVerified = true
	}
	return c, nil
}

// VerifyPasswordResetCode checks a native reset code without consuming it
// and returns the email it was minted for.
func (p *Provider) VerifyPasswordResetCode(ctx context.Context, code string) (string, error) {
	claims, err := p.codes.verify(code, PurposeResetPassword)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// ConfirmPasswordReset redeems a native reset code and sets the new password.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, code, newPassword string) error {
	claims, err := p.codes.verify(code, PurposeResetPassword)
	if err != nil {
		return err
	}
	return p.UpdatePassword(ctx, claims.Subject, newPassword)
}
