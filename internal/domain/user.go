package domain

import "time"

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Profile attribute names shared by partial update maps.
const (
	FieldEmailVerified       = "email_verified"
	FieldPasswordLastChanged = "password_last_changed"
)

// User is the profile document mirrored alongside the credential account.
// EmailVerified is copied from the credential store for query convenience;
// the credential store remains the source of truth.
type User struct {
	UserID              string     `json:"id" dynamodbav:"user_id"`
	Email               string     `json:"email" dynamodbav:"email"`
	Role                string     `json:"role" dynamodbav:"role"`
	EmailVerified       bool       `json:"email_verified" dynamodbav:"email_verified"`
	PasswordLastChanged *time.Time `json:"password_last_changed,omitempty" dynamodbav:"password_last_changed"`
	Enable              int        `json:"enable" dynamodbav:"enable"`
	CreatedAt           time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt           time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	IsVendor bool   `json:"is_vendor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
