package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/subpay/internal/statestore"
	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

type stubPlanReader struct {
	plan statestore.PlanRecord
	err  error
}

func (s *stubPlanReader) Get(_ context.Context, planID uint64) (statestore.PlanRecord, error) {
	if s.err != nil {
		return statestore.PlanRecord{}, s.err
	}
	if planID != s.plan.ID {
		return statestore.PlanRecord{}, pkgerrors.New(pkgerrors.CodeNotFound, "plan does not exist")
	}
	return s.plan, nil
}

func newPlanRouter(svc PlanReader) http.Handler {
	r := chi.NewRouter()
	r.Get("/plans/{planID}", PlanDetail(svc, nil))
	return r
}

func TestPlanDetail(t *testing.T) {
	svc := &stubPlanReader{plan: statestore.PlanRecord{ID: 7, PricePerPeriod: 50, Active: true}}
	router := newPlanRouter(svc)

	t.Run("returns plan", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans/7", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var envelope struct {
			Data planResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		assert.Equal(t, uint64(7), envelope.Data.ID)
		assert.Equal(t, uint64(50), envelope.Data.PricePerPeriod)
		assert.True(t, envelope.Data.Active)
	})

	t.Run("unknown plan is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("non-numeric id is rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans/abc", nil))
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var envelope types.ErrorEnvelope
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
		assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
	})

	t.Run("nil service is internal", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newPlanRouter(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plans/7", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
