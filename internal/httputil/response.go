// Package httputil provides the JSON response helpers shared by the pipeline
// and the host.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/R3E-Network/mvc_layer/internal/errors"
	"github.com/R3E-Network/mvc_layer/internal/logging"
)

// ErrorResponse is the JSON envelope for error responses.
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// WriteJSON writes data as JSON with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteErrorResponse writes the error envelope. The trace ID is taken from the
// request context when present.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	resp := ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}
	if r != nil {
		resp.TraceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, status, resp)
}

// NewErrorResponse builds the client-facing envelope for a ServiceError.
// Server errors never expose details.
func NewErrorResponse(se *errors.ServiceError, traceID string) ErrorResponse {
	resp := ErrorResponse{
		Code:    string(se.Code),
		Message: se.Message,
		TraceID: traceID,
	}
	if se.IsClientError() {
		resp.Details = se.Details
	}
	return resp
}

// WriteServiceError writes err using its HTTP mapping. Errors that are not
// ServiceErrors are rendered as an opaque internal error.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.GetServiceError(err)
	if se == nil || !se.IsClientError() {
		InternalError(w, r)
		return
	}
	traceID := ""
	if r != nil {
		traceID = logging.GetTraceID(r.Context())
	}
	WriteJSON(w, se.HTTPStatus, NewErrorResponse(se, traceID))
}

// InternalError writes an opaque 500 response.
func InternalError(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, http.StatusInternalServerError, string(errors.CodeInternal), "Internal server error", nil)
}
