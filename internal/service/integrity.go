package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/audit"
	"github.com/dealersight/credential-server-go/internal/database"
	apperrors "github.com/dealersight/credential-server-go/internal/errors"
	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
)

// txRunner is the slice of database.DB the auditor needs; narrowed so tests
// can run repairs without a live database.
type txRunner interface {
	WithTx(ctx context.Context, fn database.TxFunc) error
}

// IntegrityAuditor sweeps stored connections for rows that should no longer
// exist and optionally deletes them. Repair policy is delete, never reassign:
// a connection whose tenant binding can no longer be verified is removed
// rather than guessed onto another dealership.
type IntegrityAuditor struct {
	db       txRunner
	connRepo repository.ConnectionRepository
	userRepo repository.UserRepository
	access   *AccessChecker
}

func NewIntegrityAuditor(
	db txRunner,
	connRepo repository.ConnectionRepository,
	userRepo repository.UserRepository,
	access *AccessChecker,
) *IntegrityAuditor {
	return &IntegrityAuditor{
		db:       db,
		connRepo: connRepo,
		userRepo: userRepo,
		access:   access,
	}
}

// ScanAll scans both providers, checking for cancellation between them so a
// shutting-down server never starts the second provider's sweep.
func (a *IntegrityAuditor) ScanAll(ctx context.Context, autoFix bool) (*model.IntegrityReport, error) {
	report := &model.IntegrityReport{Issues: []model.IntegrityIssue{}}
	for _, provider := range []model.Provider{model.ProviderAnalytics, model.ProviderSearchConsole} {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		providerReport, err := a.Scan(ctx, provider, autoFix)
		if err != nil {
			return report, err
		}
		report.Merge(providerReport)
	}
	return report, nil
}

// Scan audits every connection for one provider.
func (a *IntegrityAuditor) Scan(ctx context.Context, provider model.Provider, autoFix bool) (*model.IntegrityReport, error) {
	conns, err := a.connRepo.ListAll(ctx, provider)
	if err != nil {
		return nil, apperrors.Repository(err)
	}
	return a.scanConnections(ctx, provider, conns, autoFix)
}

// ScanUser audits one user's connections across both providers. Duplicate
// detection runs within that user's rows only.
func (a *IntegrityAuditor) ScanUser(ctx context.Context, userID string, autoFix bool) (*model.IntegrityReport, error) {
	report := &model.IntegrityReport{Issues: []model.IntegrityIssue{}}
	for _, provider := range []model.Provider{model.ProviderAnalytics, model.ProviderSearchConsole} {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		conns, err := a.connRepo.ListByUser(ctx, provider, userID)
		if err != nil {
			return report, apperrors.Repository(err)
		}
		providerReport, err := a.scanConnections(ctx, provider, conns, autoFix)
		if err != nil {
			return report, err
		}
		report.Merge(providerReport)
	}
	return report, nil
}

func (a *IntegrityAuditor) scanConnections(ctx context.Context, provider model.Provider, conns []model.Connection, autoFix bool) (*model.IntegrityReport, error) {
	report := &model.IntegrityReport{
		TotalConnections: len(conns),
		Issues:           []model.IntegrityIssue{},
	}

	// One context read per user for the whole sweep. The fresh-per-operation
	// rule applies to credential operations; a scan is a single operation.
	userCache := make(map[string]*model.UserContext)

	invalid := make(map[string]bool)
	for _, conn := range conns {
		issue, err := a.classify(ctx, provider, conn, userCache)
		if err != nil {
			log.Error().Err(err).
				Str("provider", string(provider)).
				Str("connectionId", conn.ID).
				Msg("could not classify connection, leaving untouched")
			report.UnclassifiedCount++
			continue
		}
		if issue != nil {
			report.Issues = append(report.Issues, *issue)
			invalid[conn.ID] = true
		}
	}

	for _, issue := range a.findDuplicates(provider, conns, invalid) {
		report.Issues = append(report.Issues, issue)
		invalid[issue.ConnectionID] = true
	}

	report.InvalidConnections = len(invalid)
	report.ValidConnections = report.TotalConnections - report.InvalidConnections - report.UnclassifiedCount

	if autoFix && len(invalid) > 0 {
		deleted, err := a.repair(ctx, provider, report)
		if err != nil {
			return report, err
		}
		report.CleanedUpConnections = int(deleted)
	}

	return report, nil
}

// classify returns the first issue found for conn, or nil when the row is
// healthy. Duplicates are detected separately because they are a property of
// a group, not a row.
func (a *IntegrityAuditor) classify(ctx context.Context, provider model.Provider, conn model.Connection, userCache map[string]*model.UserContext) (*model.IntegrityIssue, error) {
	userCtx, cached := userCache[conn.UserID]
	if !cached {
		var err error
		userCtx, err = a.userRepo.FindContext(ctx, conn.UserID)
		if err != nil {
			return nil, err
		}
		userCache[conn.UserID] = userCtx
	}

	if userCtx == nil {
		return a.issue(provider, conn, model.IssueOrphaned, "owning user no longer exists"), nil
	}

	if conn.AccessToken == "" || conn.ResourceID == "" {
		return a.issue(provider, conn, model.IssueIncomplete, "missing token or resource binding"), nil
	}

	if conn.DealershipID != nil {
		ok, err := a.access.HasAccess(ctx, userCtx, *conn.DealershipID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return a.issue(provider, conn, model.IssueAccessRevoked, "user lost access to dealership"), nil
		}
	}

	return nil, nil
}

// findDuplicates flags all but the most recently updated connection in each
// (user, dealership) group. Rows already marked invalid do not shield a
// duplicate from being kept.
func (a *IntegrityAuditor) findDuplicates(provider model.Provider, conns []model.Connection, invalid map[string]bool) []model.IntegrityIssue {
	var issues []model.IntegrityIssue
	for _, group := range repository.GroupConnections(conns) {
		var candidates []model.Connection
		for _, conn := range group.Connections {
			if !invalid[conn.ID] {
				candidates = append(candidates, conn)
			}
		}
		if len(candidates) < 2 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].UpdatedAt.Equal(candidates[j].UpdatedAt) {
				return candidates[i].ID > candidates[j].ID
			}
			return candidates[i].UpdatedAt.After(candidates[j].UpdatedAt)
		})
		for _, conn := range candidates[1:] {
			issues = append(issues, *a.issue(provider, conn, model.IssueDuplicate,
				fmt.Sprintf("superseded by connection %s", candidates[0].ID)))
		}
	}
	return issues
}

// repair deletes every flagged connection in a single transaction. The id
// set was snapshotted during classification, so a connection created
// mid-scan is never deleted.
func (a *IntegrityAuditor) repair(ctx context.Context, provider model.Provider, report *model.IntegrityReport) (int64, error) {
	ids := make([]string, 0, len(report.Issues))
	for i := range report.Issues {
		ids = append(ids, report.Issues[i].ConnectionID)
	}

	var deleted int64
	err := a.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		var txErr error
		deleted, txErr = a.connRepo.WithTx(tx).DeleteByIDs(ctx, provider, ids)
		return txErr
	})
	if err != nil {
		return 0, apperrors.Repository(err)
	}

	for i := range report.Issues {
		report.Issues[i].Resolved = true
		dealershipID := ""
		if report.Issues[i].DealershipID != nil {
			dealershipID = *report.Issues[i].DealershipID
		}
		audit.Log(ctx, audit.Event{
			Type:         audit.EventIntegrityRepair,
			UserID:       report.Issues[i].UserID,
			DealershipID: dealershipID,
			Provider:     string(provider),
			Details: map[string]interface{}{
				"connection_id": report.Issues[i].ConnectionID,
				"kind":          string(report.Issues[i].Kind),
				"reason":        report.Issues[i].Reason,
			},
		})
	}

	log.Info().
		Str("provider", string(provider)).
		Int64("deleted", deleted).
		Msg("integrity repair removed invalid connections")

	return deleted, nil
}

func (a *IntegrityAuditor) issue(provider model.Provider, conn model.Connection, kind model.IssueKind, reason string) *model.IntegrityIssue {
	return &model.IntegrityIssue{
		Kind:         kind,
		Provider:     provider,
		ConnectionID: conn.ID,
		UserID:       conn.UserID,
		DealershipID: conn.DealershipID,
		Reason:       reason,
	}
}
