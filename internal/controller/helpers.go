package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/settlement/internal/domain/errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domainErrors.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrPayoutNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrOrderNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrDisputeNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrPaymentExists, http.StatusConflict, "payment_exists"},
	{domainErrors.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domainErrors.ErrDisputeClosed, http.StatusConflict, "dispute_closed"},
	{domainErrors.ErrIdentityMismatch, http.StatusForbidden, "identity_mismatch"},
	{domainErrors.ErrIdentityUnverified, http.StatusBadGateway, "identity_unverified"},
	{domainErrors.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
	{domainErrors.ErrOutsideDeliveryZone, http.StatusUnprocessableEntity, "outside_delivery_zone"},
	{domainErrors.ErrProviderRejected, http.StatusBadGateway, "provider_rejected"},
	{domainErrors.ErrProviderUnavailable, http.StatusServiceUnavailable, "provider_unavailable"},
	{domainErrors.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"},
	{domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// classifyError maps a settlement error to an HTTP status and a stable code.
func classifyError(err error) (int, string) {
	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, "validation_error"
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		return http.StatusUnprocessableEntity, domainErr.Code
	}

	return http.StatusInternalServerError, "internal_error"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("unhandled error in handler")
		resp.Error = "internal server error"
	}
	writeJSON(w, status, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
