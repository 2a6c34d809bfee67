package model

import "time"

// AuthToken models an entry in the `auth_tokens` table. Only the
// SHA-256 hex digest of the token handed to the client is stored.
//
// Fields:
//
//	TokenHash – SHA-256 hex digest of the token value (primary key).
//	UserID    – technician the token belongs to.
//	ExpiresAt – lookups at or after this instant fail.
//	CreatedAt – timestamp of creation.
type AuthToken struct {
	TokenHash string    // auth_tokens.token
	UserID    uint64    // auth_tokens.user_id
	ExpiresAt time.Time // auth_tokens.expires_at
	CreatedAt time.Time // auth_tokens.created_at
}
