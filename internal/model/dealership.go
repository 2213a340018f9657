package model

import (
	"time"
)

type Dealership struct {
	ID        string    `db:"id" json:"id"`
	AgencyID  *string   `db:"agency_id" json:"agencyId,omitempty"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
