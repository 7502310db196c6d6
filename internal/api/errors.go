package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"acdm-platform/internal/domain"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps an error to its HTTP status by kind.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthorization), errors.Is(err, domain.ErrOwnership):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrState), errors.Is(err, domain.ErrRegistration):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSupply), errors.Is(err, domain.ErrPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	kind := domain.KindName(err)
	if errors.Is(err, domain.ErrInvalidAddress) {
		kind = "invalid_argument"
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind})
}

// badRequest wraps a decoding failure as an invalid argument.
func badRequest(format string, args ...any) error {
	return domain.NewError(domain.ErrInvalidArgument, fmt.Sprintf(format, args...))
}
