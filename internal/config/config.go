package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration
	RefreshTokenDur   time.Duration

	// ActionCodeSecret signs the provider-native action codes (HS256).
	ActionCodeSecret string
	ActionCodeTTL    time.Duration

	// Custom action-token TTLs, per type.
	VerifyTokenTTL time.Duration
	ResetTokenTTL  time.Duration

	// Transactional email HTTP API.
	MailAPIURL  string
	MailAPIKey  string
	MailFrom    string

	// Base origin for action links embedded in emails.
	ActionBaseURL string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users       string
	Credentials string
	Sessions    string
	AuthTokens  string
	AuditLogs   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:       getEnv("DYNAMO_TABLE_USERS", "users"),
			Credentials: getEnv("DYNAMO_TABLE_CREDENTIALS", "credentials"),
			Sessions:    getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			AuthTokens:  getEnv("DYNAMO_TABLE_AUTH_TOKENS", "auth_tokens"),
			AuditLogs:   getEnv("DYNAMO_TABLE_AUDIT_LOGS", "audit_logs"),
		},

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		RefreshTokenDur:   time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30)) * 24 * time.Hour,

		ActionCodeSecret: getEnv("ACTION_CODE_SECRET", ""),
		ActionCodeTTL:    time.Duration(getEnvInt("ACTION_CODE_TTL_MINUTES", 60)) * time.Minute,

		VerifyTokenTTL: time.Duration(getEnvInt("VERIFY_TOKEN_TTL_HOURS", 24)) * time.Hour,
		ResetTokenTTL:  time.Duration(getEnvInt("RESET_TOKEN_TTL_HOURS", 1)) * time.Hour,

		MailAPIURL: getEnv("MAIL_API_URL", ""),
		MailAPIKey: getEnv("MAIL_API_KEY", ""),
		MailFrom:   getEnv("MAIL_FROM", "noreply@example.com"),

		ActionBaseURL: getEnv("ACTION_BASE_URL", "http://localhost:3000"),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
