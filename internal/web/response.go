/*

This file is the shared JSON response envelope every handler writes:
{success, payload} on success, {success: false, error} on failure.

*/

package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/liquidminer/incentived/internal/apierr"
)

type envelope struct {
	Success bool   `json:"success"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeSuccess(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Payload: payload})
}

func writeAPIError(w http.ResponseWriter, err *apierr.Error) {
	writeJSON(w, apierr.HTTPStatus(err.Kind), envelope{Success: false, Error: err.Message})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response.")
	}
}
