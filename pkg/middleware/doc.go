// Package middleware provides the HTTP middleware chain for veild:
// bearer-token authentication, wedding resolution from the route, capability
// gating through the authorization engine, and Redis-backed rate limiting.
//
// The usual ordering on a wedding-scoped route is auth, rate limit, wedding
// context, then the capability check. Authentication runs in optional mode
// on the diagnostic routes so unauthenticated reads still reach the handler.
package middleware
