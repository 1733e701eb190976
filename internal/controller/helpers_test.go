package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"payment not found", domainErrors.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
		{"payment exists", domainErrors.ErrPaymentExists, http.StatusConflict, "payment_exists"},
		{"invalid transition", domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
		{"dispute closed", domainErrors.ErrDisputeClosed, http.StatusConflict, "dispute_closed"},
		{"identity mismatch", domainErrors.ErrIdentityMismatch, http.StatusForbidden, "identity_mismatch"},
		{"identity unverified", domainErrors.ErrIdentityUnverified, http.StatusBadGateway, "identity_unverified"},
		{"insufficient stock", domainErrors.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
		{"outside delivery zone", domainErrors.ErrOutsideDeliveryZone, http.StatusUnprocessableEntity, "outside_delivery_zone"},
		{"provider rejected", domainErrors.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
		{"provider unavailable", domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
		{"invalid signature", domainErrors.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
		{"unauthorized", domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"unknown error", errors.New("database exploded"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestWriteErrorWrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fmt.Errorf("claim payout attempt: %w", domainErrors.ErrPayoutInProgress))

	// Unmapped sentinels fall through to the generic 500.
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	writeError(rec, fmt.Errorf("load store: %w", domainErrors.ErrOrderNotFound))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteErrorValidation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domainErrors.NewValidationError("amount", "must be greater than 0"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "validation_error", resp.Code)
}

func TestWriteErrorDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domainErrors.NewDomainError("custom_code", "custom message", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "custom_code", resp.Code)
}

func TestWriteErrorInternalHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused at 10.0.0.5"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Error)
	assert.NotContains(t, resp.Error, "10.0.0.5")
}
