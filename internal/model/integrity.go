package model

type IssueKind string

const (
	IssueOrphaned      IssueKind = "ORPHANED"
	IssueAccessRevoked IssueKind = "ACCESS_REVOKED"
	IssueIncomplete    IssueKind = "INCOMPLETE"
	IssueDuplicate     IssueKind = "DUPLICATE"
)

// IntegrityIssue is one problem found for one stored connection. Issues are
// transient scan output; resolved issues are recorded in the audit log only.
type IntegrityIssue struct {
	Kind         IssueKind `json:"kind"`
	Provider     Provider  `json:"provider"`
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId"`
	DealershipID *string   `json:"dealershipId,omitempty"`
	Reason       string    `json:"reason"`
	Resolved     bool      `json:"resolved"`
}

type IntegrityReport struct {
	TotalConnections     int              `json:"totalConnections"`
	ValidConnections     int              `json:"validConnections"`
	InvalidConnections   int              `json:"invalidConnections"`
	CleanedUpConnections int              `json:"cleanedUpConnections"`
	UnclassifiedCount    int              `json:"unclassifiedCount"`
	Issues               []IntegrityIssue `json:"issues"`
}

// Merge folds another provider's report into this one field-wise.
func (r *IntegrityReport) Merge(other *IntegrityReport) {
	if other == nil {
		return
	}
	r.TotalConnections += other.TotalConnections
	r.ValidConnections += other.ValidConnections
	r.InvalidConnections += other.InvalidConnections
	r.CleanedUpConnections += other.CleanedUpConnections
	r.UnclassifiedCount += other.UnclassifiedCount
	r.Issues = append(r.Issues, other.Issues...)
}
