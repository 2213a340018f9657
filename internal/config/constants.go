package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// StateTokenTTL bounds how long a signed OAuth state parameter stays valid
// after issuance. States older (or newer, clock skew) than this are rejected
// regardless of signature validity.
const StateTokenTTL = 10 * time.Minute

// TenantReadTimeout bounds the user/dealership context reads during callback
// resolution. A timeout fails the callback closed instead of resolving to a
// guessed tenant.
const TenantReadTimeout = 5 * time.Second

// Timeout for one scheduled integrity scan run
const IntegrityScanTimeout = 5 * time.Minute

// Default rate limiting for OAuth initiation, per user per minute
const OAuthInitRateLimitPerMin = 10
