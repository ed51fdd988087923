package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// Envelope is the uniform response body: every endpoint, success or
// failure, answers with status, message and the HTTP code as a string.
// Message is either a plain string or a serialized object (an account,
// an account list, or a violation list).
type Envelope struct {
	Status  string `json:"status"`
	Message any    `json:"message"`
	Code    string `json:"code"`
}

func writeEnvelope(w http.ResponseWriter, status int, envelopeStatus string, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		Status:  envelopeStatus,
		Message: message,
		Code:    strconv.Itoa(status),
	})
}

func writeSuccess(w http.ResponseWriter, status int, message any) {
	writeEnvelope(w, status, statusSuccess, message)
}

func writeFailure(w http.ResponseWriter, status int, message any) {
	writeEnvelope(w, status, statusFailure, message)
}

func parseAccountID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "accountID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errInvalidAccountID
	}
	return id, nil
}
