package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/clearledger/subpay/api/middleware"
	"github.com/clearledger/subpay/api/responses"
	"github.com/clearledger/subpay/api/validators"
	"github.com/clearledger/subpay/internal/payments"
	"github.com/clearledger/subpay/internal/subscriptions"
	"github.com/clearledger/subpay/pkg/enums"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/logger"
	"github.com/clearledger/subpay/pkg/metrics"
	"github.com/clearledger/subpay/pkg/types"
)

// SubscriptionService is the lifecycle surface the subscription endpoints need.
type SubscriptionService interface {
	Subscribe(ctx context.Context, caller types.Address, planID uint64, method enums.PaymentMethod, tendered decimal.Decimal) (subscriptions.Status, payments.Receipt, error)
	Renew(ctx context.Context, caller types.Address, method enums.PaymentMethod, tendered decimal.Decimal) (subscriptions.Status, payments.Receipt, error)
	Cancel(ctx context.Context, caller types.Address) error
	IsDue(ctx context.Context, user types.Address) (bool, error)
	Get(ctx context.Context, user types.Address) (subscriptions.Status, error)
}

type subscribeRequest struct {
	PlanID uint64 `json:"plan_id" validate:"required,gt=0"`
}

type subscribeNativeRequest struct {
	PlanID   uint64 `json:"plan_id" validate:"required,gt=0"`
	Tendered string `json:"tendered" validate:"required"`
}

type renewNativeRequest struct {
	Tendered string `json:"tendered" validate:"required"`
}

type subscriptionResponse struct {
	PlanID         uint64 `json:"plan_id"`
	NextPaymentDue int64  `json:"next_payment_due"`
	Active         bool   `json:"active"`
	PaidWithNative bool   `json:"paid_with_native"`
}

type receiptResponse struct {
	Method   string `json:"method"`
	Amount   string `json:"amount"`
	Refunded string `json:"refunded,omitempty"`
}

type chargedSubscriptionResponse struct {
	Subscription subscriptionResponse `json:"subscription"`
	Receipt      receiptResponse      `json:"receipt"`
}

func newSubscriptionResponse(status subscriptions.Status) subscriptionResponse {
	return subscriptionResponse{
		PlanID:         status.Record.PlanID,
		NextPaymentDue: status.Record.NextPaymentDue,
		Active:         status.Record.Active,
		PaidWithNative: status.PaidWithNative,
	}
}

func newChargedResponse(status subscriptions.Status, receipt payments.Receipt) chargedSubscriptionResponse {
	resp := chargedSubscriptionResponse{
		Subscription: newSubscriptionResponse(status),
		Receipt: receiptResponse{
			Method: receipt.Method.String(),
			Amount: receipt.Amount.String(),
		},
	}
	if receipt.Refunded.Sign() > 0 {
		resp.Receipt.Refunded = receipt.Refunded.String()
	}
	return resp
}

func SubscriptionCreate(svc SubscriptionService, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload subscribeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		status, receipt, err := svc.Subscribe(r.Context(), caller, payload.PlanID, enums.PaymentMethodStableToken, decimal.Zero)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncPayment(receipt.Method.String())
		responses.WriteSuccessStatus(w, http.StatusCreated, newChargedResponse(status, receipt))
	}
}

func SubscriptionCreateNative(svc SubscriptionService, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload subscribeNativeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tendered, err := parseTendered(payload.Tendered)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		status, receipt, err := svc.Subscribe(r.Context(), caller, payload.PlanID, enums.PaymentMethodNativeAsset, tendered)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncPayment(receipt.Method.String())
		responses.WriteSuccessStatus(w, http.StatusCreated, newChargedResponse(status, receipt))
	}
}

func SubscriptionRenew(svc SubscriptionService, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		status, receipt, err := svc.Renew(r.Context(), caller, enums.PaymentMethodStableToken, decimal.Zero)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncPayment(receipt.Method.String())
		responses.WriteSuccess(w, newChargedResponse(status, receipt))
	}
}

func SubscriptionRenewNative(svc SubscriptionService, m *metrics.BillingMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		var payload renewNativeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tendered, err := parseTendered(payload.Tendered)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		status, receipt, err := svc.Renew(r.Context(), caller, enums.PaymentMethodNativeAsset, tendered)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		m.IncPayment(receipt.Method.String())
		responses.WriteSuccess(w, newChargedResponse(status, receipt))
	}
}

func SubscriptionCancel(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		caller := middleware.CallerFromContext(r.Context())
		if err := svc.Cancel(r.Context(), caller); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}

func SubscriptionDetail(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		user, err := parseUserAddress(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Get(r.Context(), user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newSubscriptionResponse(status))
	}
}

func SubscriptionDue(svc SubscriptionService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		user, err := parseUserAddress(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		due, err := svc.IsDue(r.Context(), user)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]bool{"due": due})
	}
}

func parseUserAddress(r *http.Request) (types.Address, error) {
	raw := chi.URLParam(r, "address")
	address, err := types.ParseAddress(raw)
	if err != nil {
		return types.ZeroAddress, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid account address").
			WithDetails(map[string]any{"address": raw})
	}
	return address, nil
}

func parseTendered(raw string) (decimal.Decimal, error) {
	tendered, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "tendered amount must be a decimal string").
			WithDetails(map[string]any{"tendered": raw})
	}
	if tendered.Sign() < 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "tendered amount cannot be negative").
			WithDetails(map[string]any{"tendered": raw})
	}
	return tendered, nil
}
