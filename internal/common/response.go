package common

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// RespondWithDomainError maps err to a status. Internal failures are logged and hidden from the client.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	code := HTTPStatusFromError(err)
	if code >= http.StatusInternalServerError {
		log.Error().Err(err).Int("status", code).Msg("request failed")
		RespondWithError(w, code, http.StatusText(code))
		return
	}
	RespondWithError(w, code, err.Error())
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
