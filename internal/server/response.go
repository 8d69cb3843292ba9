package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sheikh-saqib/prisoner-money-ledger/internal/ledger"
	"github.com/sheikh-saqib/prisoner-money-ledger/internal/models"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Amount renders minor units alongside the major-unit decimal string.
type Amount struct {
	Minor int64  `json:"amount"`
	Major string `json:"amount_major"`
}

func newAmount(minor int64) Amount {
	return Amount{Minor: minor, Major: models.MajorUnits(minor).StringFixed(2)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{Error: code, ErrorDescription: description})
}

// writeLedgerError maps ledger error kinds onto HTTP statuses. Internal
// errors are reported without detail.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, ledger.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrDuplicateReference):
		writeJSONError(w, http.StatusConflict, "duplicate_reference", err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
