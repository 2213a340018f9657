package model

import (
	"time"
)

type Role string

const (
	RoleSuperAdmin      Role = "SUPER_ADMIN"
	RoleAgencyAdmin     Role = "AGENCY_ADMIN"
	RoleAgencyUser      Role = "AGENCY_USER"
	RoleDealershipAdmin Role = "DEALERSHIP_ADMIN"
	RoleUser            Role = "USER"
)

// UserContext is a read-only snapshot of a user's role and tenant bindings.
// It is fetched fresh per operation and never cached across calls: role and
// tenant can change between OAuth initiation and callback.
type UserContext struct {
	UserID              string  `db:"id" json:"userId"`
	Role                Role    `db:"role" json:"role"`
	PrimaryDealershipID *string `db:"primary_dealership_id" json:"primaryDealershipId,omitempty"`
	CurrentDealershipID *string `db:"current_dealership_id" json:"currentDealershipId,omitempty"`
	AgencyID            *string `db:"agency_id" json:"agencyId,omitempty"`
}

func (c *UserContext) IsAgencyRole() bool {
	return c.Role == RoleAgencyAdmin || c.Role == RoleAgencyUser
}

type UserSession struct {
	ID        string    `db:"id" json:"id"`
	TokenHash string    `db:"token_hash" json:"-"`
	UserID    string    `db:"user_id" json:"userId"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
