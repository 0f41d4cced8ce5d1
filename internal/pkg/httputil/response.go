package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/ignite/gift-exchange/internal/pkg/logger"
)

// ErrorResponse is the standard error envelope for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("encoding response failed", "error", err.Error())
	}
}

// Error writes the standard error envelope.
func Error(w http.ResponseWriter, status int, message, code string) {
	JSON(w, status, ErrorResponse{Error: message, Code: code})
}

// Decode reads JSON from the request body into dst.
func Decode(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
