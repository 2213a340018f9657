package model

// DealershipResolution is the outcome of deciding which dealership a
// completed OAuth callback binds to. Callers must not persist a connection
// when IsValid is false.
type DealershipResolution struct {
	DealershipID *string `json:"dealershipId"`
	IsValid      bool    `json:"isValid"`
	// IsFallback marks a dealership picked by the agency fallback tier rather
	// than a user-chosen binding.
	IsFallback bool   `json:"isFallback,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
