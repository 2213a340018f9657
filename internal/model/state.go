package model

// StateToken is the decoded OAuth state parameter: the tenant context bound to
// an authorization flow across the provider redirect. It is a wire format, not
// persisted.
type StateToken struct {
	UserID         string  `json:"userId"`
	DealershipID   *string `json:"dealershipId,omitempty"`
	IssuedAtMillis int64   `json:"issuedAtMillis,omitempty"`
}

// Legacy reports whether the token came from the deprecated bare-userId state
// format, which carries no tenant context and no expiry.
func (t *StateToken) Legacy() bool {
	return t.IssuedAtMillis == 0
}
