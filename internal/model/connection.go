package model

import (
	"time"
)

type Provider string

const (
	ProviderAnalytics     Provider = "analytics"
	ProviderSearchConsole Provider = "search_console"
)

func (p Provider) Valid() bool {
	return p == ProviderAnalytics || p == ProviderSearchConsole
}

// Connection is a stored OAuth credential pair for one provider, tied to a
// user and optionally a dealership. A nil DealershipID denotes a user-level
// connection used as a fallback (super admin only).
//
// AccessToken and RefreshToken are encrypted at rest (AES-256-GCM) and are
// never serialized.
type Connection struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"userId"`
	DealershipID *string    `db:"dealership_id" json:"dealershipId,omitempty"`
	AccessToken  string     `db:"access_token" json:"-"`
	RefreshToken *string    `db:"refresh_token" json:"-"`
	// ResourceID is the GA4 property id or the Search Console site URL.
	ResourceID string     `db:"resource_id" json:"resourceId"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expiresAt,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

type UpsertConnectionParams struct {
	UserID       string
	DealershipID *string
	AccessToken  string
	RefreshToken *string
	ResourceID   string
	ExpiresAt    *time.Time
}

// ConnectionGroup is a set of connections sharing a (userID, dealershipID)
// pair, used for duplicate detection.
type ConnectionGroup struct {
	UserID       string
	DealershipID *string
	Connections  []Connection
}
