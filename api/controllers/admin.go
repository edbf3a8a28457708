package controllers

import (
	"context"
	"net/http"

	"github.com/clearledger/subpay/api/middleware"
	"github.com/clearledger/subpay/api/responses"
	"github.com/clearledger/subpay/api/validators"
	"github.com/clearledger/subpay/internal/statestore"
	"github.com/clearledger/subpay/internal/upgrade"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/logger"
	"github.com/clearledger/subpay/pkg/types"
)

// PlanAdmin is the owner-gated catalog surface.
type PlanAdmin interface {
	Create(ctx context.Context, caller types.Address, pricePerPeriod uint64) (statestore.PlanRecord, error)
	SetStatus(ctx context.Context, caller types.Address, planID uint64, active bool) (statestore.PlanRecord, error)
	SetTreasury(ctx context.Context, caller, treasury types.Address) error
}

// UpgradeAdmin is the owner-gated versioning surface.
type UpgradeAdmin interface {
	CurrentVersion(ctx context.Context) (uint64, error)
	Upgrade(ctx context.Context, caller types.Address, target uint64, args upgrade.InitArgs) error
}

type planCreateRequest struct {
	PricePerPeriod uint64 `json:"price_per_period" validate:"required,gt=0"`
}

type planStatusRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type treasuryUpdateRequest struct {
	Treasury string `json:"treasury" validate:"required"`
}

type upgradeRequest struct {
	TargetVersion uint64 `json:"target_version" validate:"required,gt=0"`
	PriceOracle   string `json:"price_oracle,omitempty"`
}

type upgradeResponse struct {
	Version uint64 `json:"version"`
}

func AdminPlanCreate(svc PlanAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var payload planCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		plan, err := svc.Create(r.Context(), caller, payload.PricePerPeriod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newPlanResponse(plan))
	}
}

func AdminPlanSetStatus(svc PlanAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		planID, err := parsePlanID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload planStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		plan, err := svc.SetStatus(r.Context(), caller, planID, *payload.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPlanResponse(plan))
	}
}

func AdminTreasuryUpdate(svc PlanAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "plan service unavailable"))
			return
		}

		var payload treasuryUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		treasury, err := types.ParseAddress(payload.Treasury)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid treasury address"))
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		if err := svc.SetTreasury(r.Context(), caller, treasury); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func AdminUpgrade(svc UpgradeAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upgrade service unavailable"))
			return
		}

		var payload upgradeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var args upgrade.InitArgs
		if payload.PriceOracle != "" {
			oracle, err := types.ParseAddress(payload.PriceOracle)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid oracle address"))
				return
			}
			args.PriceOracle = oracle
		}

		caller := middleware.CallerFromContext(r.Context())
		if err := svc.Upgrade(r.Context(), caller, payload.TargetVersion, args); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, upgradeResponse{Version: payload.TargetVersion})
	}
}

func AdminVersion(svc UpgradeAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upgrade service unavailable"))
			return
		}

		version, err := svc.CurrentVersion(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, upgradeResponse{Version: version})
	}
}
