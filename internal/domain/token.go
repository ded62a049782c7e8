package domain

import "time"

// TokenType discriminates what action a token authorizes.
type TokenType string

const (
	TokenTypeVerifyEmail   TokenType = "verify_email"
	TokenTypePasswordReset TokenType = "reset_password"
)

// Action link modes as they appear in emailed URLs.
const (
	ActionModeVerifyEmail   = "verifyEmail"
	ActionModeResetPassword = "resetPassword"
	ActionModeRecoverEmail  = "recoverEmail"
)

// DeviceInfo is a snapshot of the client that requested the token.
// Diagnostic only; never part of validation.
type DeviceInfo struct {
	UserAgent string `json:"user_agent" dynamodbav:"user_agent"`
	Screen    string `json:"screen" dynamodbav:"screen"`
	Language  string `json:"language" dynamodbav:"language"`
	Referrer  string `json:"referrer" dynamodbav:"referrer"`
}

// AuthToken is a single-use, typed, expiring capability string.
// PK: token. GSI: user_id-index (for invalidation sweeps).
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type AuthToken struct {
	Token             string     `json:"token" dynamodbav:"token"`
	UserID            string     `json:"user_id" dynamodbav:"user_id"`
	Email             string     `json:"email" dynamodbav:"email"`
	Type              TokenType  `json:"type" dynamodbav:"type"`
	CreatedAt         time.Time  `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt         int64      `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	Used              bool       `json:"used" dynamodbav:"used"`
	UsedAt            *time.Time `json:"used_at,omitempty" dynamodbav:"used_at"`
	InvalidatedReason string     `json:"invalidated_reason,omitempty" dynamodbav:"invalidated_reason"`
	DeviceInfo        DeviceInfo `json:"device_info" dynamodbav:"device_info"`
}

// IsExpired reports whether the token's fixed expiry has passed.
func (t *AuthToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt < now.Unix()
}
