package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dealersight/credential-server-go/internal/config"
	apperrors "github.com/dealersight/credential-server-go/internal/errors"
	"github.com/dealersight/credential-server-go/internal/model"
	"github.com/dealersight/credential-server-go/internal/repository"
)

// DealershipResolver decides which dealership a credential operation binds
// to. Candidates are tried in a fixed order, each gated by a fresh access
// check:
//
//  1. the dealership requested in the state token
//  2. the user's current dealership
//  3. the user's primary dealership
//  4. for agency admins, the agency's earliest dealership
//  5. for super admins, a user-level (nil dealership) binding
//
// A candidate the user lost access to is skipped with a warning, never an
// error; the error surfaces only when every tier is exhausted.
type DealershipResolver struct {
	userRepo       repository.UserRepository
	dealershipRepo repository.DealershipRepository
	access         *AccessChecker
}

func NewDealershipResolver(
	userRepo repository.UserRepository,
	dealershipRepo repository.DealershipRepository,
	access *AccessChecker,
) *DealershipResolver {
	return &DealershipResolver{
		userRepo:       userRepo,
		dealershipRepo: dealershipRepo,
		access:         access,
	}
}

// Resolve picks the dealership binding for userID, honoring requestedID when
// the user can still access it. Reads are bounded by TenantReadTimeout and
// fail closed: a slow or unreachable database denies the operation.
func (r *DealershipResolver) Resolve(ctx context.Context, userID string, requestedID *string) (*model.DealershipResolution, error) {
	ctx, cancel := context.WithTimeout(ctx, config.TenantReadTimeout)
	defer cancel()

	userCtx, err := r.userRepo.FindContext(ctx, userID)
	if err != nil {
		return nil, apperrors.Repository(err)
	}
	if userCtx == nil {
		return nil, apperrors.NoAccessibleDealership()
	}

	candidates := []struct {
		id       *string
		fallback bool
		reason   string
	}{
		{requestedID, false, "requested"},
		{userCtx.CurrentDealershipID, true, "current dealership"},
		{userCtx.PrimaryDealershipID, true, "primary dealership"},
	}

	for _, c := range candidates {
		if c.id == nil {
			continue
		}
		ok, err := r.access.HasAccess(ctx, userCtx, *c.id)
		if err != nil {
			return nil, apperrors.Repository(err)
		}
		if ok {
			return &model.DealershipResolution{
				DealershipID: c.id,
				IsValid:      true,
				IsFallback:   c.fallback,
				Reason:       c.reason,
			}, nil
		}
		log.Warn().
			Str("userId", userID).
			Str("dealershipId", *c.id).
			Str("candidate", c.reason).
			Msg("skipping inaccessible dealership candidate")
	}

	if (userCtx.Role == model.RoleAgencyAdmin || userCtx.Role == model.RoleSuperAdmin) && userCtx.AgencyID != nil {
		earliest, err := r.dealershipRepo.FindEarliestByAgency(ctx, *userCtx.AgencyID)
		if err != nil {
			return nil, apperrors.Repository(err)
		}
		if earliest != nil {
			log.Warn().
				Str("userId", userID).
				Str("agencyId", *userCtx.AgencyID).
				Str("dealershipId", earliest.ID).
				Msg("resolved to agency's earliest dealership")
			return &model.DealershipResolution{
				DealershipID: &earliest.ID,
				IsValid:      true,
				IsFallback:   true,
				Reason:       "agency earliest",
			}, nil
		}
	}

	if userCtx.Role == model.RoleSuperAdmin {
		return &model.DealershipResolution{
			DealershipID: nil,
			IsValid:      true,
			IsFallback:   true,
			Reason:       "super admin user-level",
		}, nil
	}

	return nil, apperrors.NoAccessibleDealership()
}
