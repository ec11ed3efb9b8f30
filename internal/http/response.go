package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"finboard/internal/plaid"
)

type errorBody struct {
	Error   string `json:"error"`
	Status  int    `json:"status,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends {error, details?}. A nil err omits details.
func writeError(w http.ResponseWriter, status int, msg string, err error) {
	body := errorBody{Error: msg}
	if err != nil {
		body.Details = errorDetails(err)
	}
	writeJSON(w, status, body)
}

// errorDetails prefers the aggregator's response body over the Go error
// text. A JSON body is passed through as an object.
func errorDetails(err error) any {
	var apiErr *plaid.APIError
	if errors.As(err, &apiErr) && apiErr.Body != "" {
		if json.Valid([]byte(apiErr.Body)) {
			return json.RawMessage(apiErr.Body)
		}
		return apiErr.Body
	}
	return err.Error()
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}
