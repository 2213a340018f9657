package service

import (
	"context"

	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
)

// AccessChecker answers whether a user may act on a dealership. Every check
// re-reads the dealership row so a just-revoked grant or a moved dealership
// is seen immediately; nothing is trusted from the caller's snapshot except
// the user's own role and agency.
type AccessChecker struct {
	dealershipRepo repository.DealershipRepository
}

func NewAccessChecker(dealershipRepo repository.DealershipRepository) *AccessChecker {
	return &AccessChecker{dealershipRepo: dealershipRepo}
}

// HasAccess reports whether userCtx may manage credentials for dealershipID.
// A dealership that does not exist is never accessible, regardless of role.
func (a *AccessChecker) HasAccess(ctx context.Context, userCtx *model.UserContext, dealershipID string) (bool, error) {
	if userCtx == nil || dealershipID == "" {
		return false, nil
	}

	if userCtx.Role == model.RoleSuperAdmin {
		dealership, err := a.dealershipRepo.FindByID(ctx, dealershipID)
		if err != nil {
			return false, err
		}
		return dealership != nil, nil
	}

	if userCtx.IsAgencyRole() {
		if userCtx.AgencyID == nil {
			return false, nil
		}
		dealership, err := a.dealershipRepo.FindByID(ctx, dealershipID)
		if err != nil {
			return false, err
		}
		if dealership == nil || dealership.AgencyID == nil {
			return false, nil
		}
		return *dealership.AgencyID == *userCtx.AgencyID, nil
	}

	return a.dealershipRepo.HasGrant(ctx, userCtx.UserID, dealershipID)
}
