package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// TokenPrefix identifies veil API tokens
	TokenPrefix = "veil_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// ErrTokenNotFound is returned when a token hash has no active record.
var ErrTokenNotFound = errors.New("token not found or revoked")

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: veil_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	// SHA256 hash for storage; the raw token is never persisted
	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// First 8 chars after "veil_" identify the token in listings
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenManager manages API token lifecycle backed by the api_tokens table.
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
	}
}

// CreateToken creates a new API token for a principal. The raw token is
// returned exactly once; only the hash is stored.
func (tm *TokenManager) CreateToken(ctx context.Context, principalID, name string, ttl time.Duration) (*APIToken, string, error) {
	if principalID == "" {
		return nil, "", fmt.Errorf("principal ID is required")
	}

	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		PrincipalID: principalID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		CreatedAt:   time.Now().UTC(),
	}
	if ttl > 0 {
		expires := apiToken.CreatedAt.Add(ttl)
		apiToken.ExpiresAt = &expires
	}

	err = tm.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (principal_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		apiToken.PrincipalID, apiToken.TokenHash, apiToken.TokenPrefix,
		apiToken.Name, apiToken.ExpiresAt, apiToken.CreatedAt,
	).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken validates a raw token and returns the owning principal.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*Principal, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, fmt.Errorf("invalid token format: %w", err)
	}

	tokenHash := tm.generator.HashToken(token)

	var (
		id          int64
		principalID string
		expiresAt   sql.NullTime
	)
	err := tm.db.QueryRowContext(ctx, `
		SELECT id, principal_id, expires_at
		FROM api_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL`,
		tokenHash,
	).Scan(&id, &principalID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if expiresAt.Valid && expiresAt.Time.Before(time.Now()) {
		return nil, ErrTokenNotFound
	}

	// Best effort; validation does not fail if the timestamp update does
	_, _ = tm.db.ExecContext(ctx,
		`UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)

	return &Principal{ID: principalID, Provider: "token"}, nil
}

// RevokeToken revokes a token owned by the given principal.
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID int64, principalID string) error {
	res, err := tm.db.ExecContext(ctx, `
		UPDATE api_tokens SET revoked_at = $1
		WHERE id = $2 AND principal_id = $3 AND revoked_at IS NULL`,
		time.Now().UTC(), tokenID, principalID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTokenNotFound
	}
	return nil
}

// ListTokens lists all tokens for a principal, newest first.
func (tm *TokenManager) ListTokens(ctx context.Context, principalID string) ([]*APIToken, error) {
	rows, err := tm.db.QueryContext(ctx, `
		SELECT id, principal_id, token_prefix, name, expires_at, last_used_at, created_at, revoked_at
		FROM api_tokens
		WHERE principal_id = $1
		ORDER BY created_at DESC`,
		principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		var (
			t          APIToken
			expiresAt  sql.NullTime
			lastUsedAt sql.NullTime
			revokedAt  sql.NullTime
		)
		if err := rows.Scan(&t.ID, &t.PrincipalID, &t.TokenPrefix, &t.Name,
			&expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		if expiresAt.Valid {
			t.ExpiresAt = &expiresAt.Time
		}
		if lastUsedAt.Valid {
			t.LastUsedAt = &lastUsedAt.Time
		}
		if revokedAt.Valid {
			t.RevokedAt = &revokedAt.Time
		}
		tokens = append(tokens, &t)
	}
	return tokens, rows.Err()
}

// CleanupExpiredTokens revokes tokens whose expiry has passed. Returns the
// number of tokens cleaned up.
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	res, err := tm.db.ExecContext(ctx, `
		UPDATE api_tokens SET revoked_at = $1
		WHERE expires_at IS NOT NULL AND expires_at < $1 AND revoked_at IS NULL`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup tokens: %w", err)
	}
	return res.RowsAffected()
}
