package transport

import (
	"encoding/json"
	"net/http"

	"github.com/kirogate/kirogate/pkg/api"
)

// WriteErrorResponse writes the Anthropic error envelope with an
// explicit HTTP status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.NewErrorResponse(apiErr))
}

// WriteAPIError writes the envelope with the status the error type
// implies.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, apiErr.HTTPStatus())
}
