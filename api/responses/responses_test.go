package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/clearledger/subpay/pkg/errors"
	"github.com/clearledger/subpay/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope
}

func TestWriteSuccessWrapsDataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope types.SuccessEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	data, ok := envelope.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "world", data["hello"])
}

func TestWriteSuccessStatusOverridesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestWriteErrorMapsTypedCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "validation keeps caller message",
			err:        pkgerrors.New(pkgerrors.CodeValidation, "plan id must be a positive integer"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
			wantMsg:    "plan id must be a positive integer",
		},
		{
			name:       "unauthorized hides internal message",
			err:        pkgerrors.New(pkgerrors.CodeUnauthorized, "caller 0xdead is not the owner"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
			wantMsg:    "caller lacks required privilege",
		},
		{
			name:       "not yet due",
			err:        pkgerrors.New(pkgerrors.CodeNotYetDue, "renewal attempted before the due timestamp"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "NOT_YET_DUE",
			wantMsg:    "renewal attempted before the due timestamp",
		},
		{
			name:       "insufficient funds",
			err:        pkgerrors.New(pkgerrors.CodeInsufficientFunds, "tendered 1 below required 2"),
			wantStatus: http.StatusPaymentRequired,
			wantCode:   "INSUFFICIENT_FUNDS",
			wantMsg:    "tendered 1 below required 2",
		},
		{
			name:       "untyped error becomes internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			envelope := decodeError(t, rec)
			assert.Equal(t, tc.wantCode, envelope.Error.Code)
			assert.Equal(t, tc.wantMsg, envelope.Error.Message)
		})
	}
}

func TestWriteErrorDetailsGatedByCode(t *testing.T) {
	withDetails := func(code pkgerrors.Code) error {
		return pkgerrors.New(code, "failed").WithDetails(map[string]any{"field": "value"})
	}

	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, withDetails(pkgerrors.CodeValidation))
	envelope := decodeError(t, rec)
	require.NotNil(t, envelope.Error.Details)

	// Internal errors never leak details regardless of what was attached.
	rec = httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, withDetails(pkgerrors.CodeInternal))
	envelope = decodeError(t, rec)
	assert.Nil(t, envelope.Error.Details)
}

func TestWriteErrorNilErrorStillResponds(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
