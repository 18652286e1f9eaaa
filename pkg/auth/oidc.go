package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// IDTokenVerifier verifies OIDC ID tokens (Firebase ID tokens when the
// issuer is https://securetoken.google.com/<project-id>). The token's
// subject claim becomes the principal ID.
type IDTokenVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewIDTokenVerifier discovers the issuer's signing keys and returns a
// verifier bound to the given audience.
func NewIDTokenVerifier(ctx context.Context, issuer, audience string) (*IDTokenVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &IDTokenVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

// Verify checks the token signature, issuer, audience, and expiry, and
// maps the claims to a Principal.
func (v *IDTokenVerifier) Verify(ctx context.Context, rawToken string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("ID token has no subject")
	}

	return &Principal{
		ID:       idToken.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: "oidc",
	}, nil
}

// OIDCFlow implements the authorization code flow for browser logins.
// After the exchange the caller is issued a veil API token.
type OIDCFlow struct {
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// OIDCFlowConfig configures the browser login flow.
type OIDCFlowConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// NewOIDCFlow creates a new authorization code flow against the issuer.
func NewOIDCFlow(ctx context.Context, cfg OIDCFlowConfig) (*OIDCFlow, error) {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email"}
	}

	return &OIDCFlow{
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
	}, nil
}

// AuthCodeURL returns the authorization endpoint URL for a login redirect.
func (f *OIDCFlow) AuthCodeURL(state string) string {
	return f.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for a verified Principal.
func (f *OIDCFlow) Exchange(ctx context.Context, code string) (*Principal, error) {
	oauth2Token, err := f.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := f.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &Principal{
		ID:       idToken.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		Provider: "oidc",
	}, nil
}
