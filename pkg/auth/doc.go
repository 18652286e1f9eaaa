// Package auth provides API token management and OIDC identity verification.
//
// # Overview
//
// Two credential types resolve to a Principal:
//
//   - veil_ API tokens: random 256-bit tokens stored as SHA256 hashes in
//     the api_tokens table. Intended for service accounts and CLI use.
//   - OIDC ID tokens: verified against a configured issuer (Firebase
//     projects use https://securetoken.google.com/<project-id>). The
//     token subject becomes the principal ID, matching the user IDs kept
//     in wedding membership lists.
//
// # Token Format
//
//	veil_<base64url(32 random bytes)>
//
// The raw token is returned once at creation and never stored.
//
// # Usage
//
//	tm := auth.NewTokenManager(db)
//	record, raw, err := tm.CreateToken(ctx, "user-123", "ci token", 0)
//
//	authn := auth.NewAuthenticator(tm, verifier)
//	principal, err := authn.Authenticate(ctx, bearerToken)
//
// # Related Packages
//
//   - pkg/middleware: Extracts bearer credentials from requests
//   - pkg/authz: Maps principal IDs to roles and capabilities
package auth
