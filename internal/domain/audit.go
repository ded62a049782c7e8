package domain

import "time"

// Audit actions recorded by the auth flows.
const (
	AuditActionSignup             = "signup"
	AuditActionLogin              = "login"
	AuditActionLogout             = "logout"
	AuditActionPasswordChange     = "password_change"
	AuditActionEmailVerified      = "email_verified"
	AuditActionVerificationResend = "verification_resend"
	AuditActionResetRequest       = "password_reset_request"
)

// AuditLogEntry is an append-only record of a sensitive auth event.
// Never mutated or deleted.
type AuditLogEntry struct {
	LogID     string                 `json:"id" dynamodbav:"log_id"`
	UserID    string                 `json:"user_id" dynamodbav:"user_id"`
	UserEmail string                 `json:"user_email" dynamodbav:"user_email"`
	Action    string                 `json:"action" dynamodbav:"action"`
	Entity    string                 `json:"entity" dynamodbav:"entity"`
	EntityID  string                 `json:"entity_id" dynamodbav:"entity_id"`
	Details   map[string]interface{} `json:"details,omitempty" dynamodbav:"details"`
	CreatedAt time.Time              `json:"created" dynamodbav:"created_at"`
}
