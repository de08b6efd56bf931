// Package response renders JSON bodies of the migration API
package response

import (
	"encoding/json"
	"net/http"

	"github.com/conduit-lang/modelmig/internal/migerr"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// MigrationErrorResponse reports every document of a failed batch
type MigrationErrorResponse struct {
	Error    string           `json:"error"`
	Message  string           `json:"message"`
	Code     string           `json:"code"`
	Failures []migerr.Failure `json:"failures"`
}

// RenderJSON writes v as a JSON body
func RenderJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// RenderError renders a standard error response
func RenderError(w http.ResponseWriter, statusCode int, message string) {
	RenderJSON(w, statusCode, &ErrorResponse{
		Error:   errorCodeFromStatus(statusCode),
		Message: message,
	})
}

// RenderBadRequest renders a 400 Bad Request error
func RenderBadRequest(w http.ResponseWriter, message string) {
	RenderError(w, http.StatusBadRequest, message)
}

// RenderUnauthorized renders a 401 Unauthorized error
func RenderUnauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Authentication required"
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="modelmig"`)
	RenderError(w, http.StatusUnauthorized, message)
}

// RenderInternalError renders a 500 Internal Server Error. Internal details are
// logged, never sent.
func RenderInternalError(w http.ResponseWriter) {
	RenderError(w, http.StatusInternalServerError, "Internal server error")
}

// RenderMigrationError renders a failed batch as 422 Unprocessable Entity
func RenderMigrationError(w http.ResponseWriter, err *migerr.BatchMigrationError) {
	RenderJSON(w, http.StatusUnprocessableEntity, &MigrationErrorResponse{
		Error:    "migration_failed",
		Message:  err.Error(),
		Code:     err.Code(),
		Failures: err.Failures(),
	})
}

// errorCodeFromStatus maps HTTP status codes to error codes
func errorCodeFromStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnprocessableEntity:
		return "unprocessable_entity"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return "error"
	}
}
