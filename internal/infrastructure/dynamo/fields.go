package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable            = "enable"
	fieldUsed              = "used"
	fieldUsedAt            = "used_at"
	fieldInvalidatedReason = "invalidated_reason"
	fieldRefreshToken      = "refresh_token"
	fieldRefreshExpiresAt  = "refresh_expires_at"
)
