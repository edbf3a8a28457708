package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/subpay/api/responses"
	"github.com/clearledger/subpay/internal/statestore"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/logger"
)

// PlanReader is the catalog surface the public plan endpoints need.
type PlanReader interface {
	Get(ctx context.Context, planID uint64) (statestore.PlanRecord, error)
}

type planResponse struct {
	ID             uint64 `json:"id"`
	PricePerPeriod uint64 `json:"price_per_period"`
	Active         bool   `json:"active"`
}

func newPlanResponse(plan statestore.PlanRecord) planResponse {
	return planResponse{
		ID:             plan.ID,
		PricePerPeriod: plan.PricePerPeriod,
		Active:         plan.Active,
	}
}

func PlanDetail(svc PlanReader, logg *logger.Logger) http.HandlerFunc {
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

		plan, err := svc.Get(r.Context(), planID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPlanResponse(plan))
	}
}

func parsePlanID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "planID")
	planID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "plan id must be a positive integer").
			WithDetails(map[string]any{"plan_id": raw})
	}
	return planID, nil
}
