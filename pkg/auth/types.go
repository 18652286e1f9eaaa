package auth

import "time"

// Principal is an authenticated caller. The ID matches the identifiers
// stored in wedding membership lists (Firebase UIDs for browser clients,
// opaque IDs for service accounts).
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"` // "token" or "oidc"
}

// APIToken represents a long-lived API token issued to a principal.
// The raw token is shown once at creation and only its hash is stored.
type APIToken struct {
	ID          int64      `json:"id"`
	PrincipalID string     `json:"principal_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}
