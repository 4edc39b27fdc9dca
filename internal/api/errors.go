package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pizza-nz/staff-ordering/internal/apperr"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// StatusClientClosedRequest is the non-standard status logged when the
// client goes away before the response is written.
const StatusClientClosedRequest = 499

var kindStatus = map[apperr.Kind]int{
	apperr.KindInvalidRequest:    http.StatusBadRequest,
	apperr.KindInvalidTransition: http.StatusBadRequest,
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindForbidden:         http.StatusForbidden,
	apperr.KindUnauthorized:      http.StatusUnauthorized,
	apperr.KindInsufficientStock: http.StatusConflict,
	apperr.KindConflict:          http.StatusConflict,
	apperr.KindUnavailable:       http.StatusServiceUnavailable,
	apperr.KindCanceled:          StatusClientClosedRequest,
	apperr.KindUnexpected:        http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind apperr.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes err as an ErrorResponse. Only the caller-safe message of a
// classified error reaches the client.
func Error(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		kind = apperr.KindUnexpected
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	JSON(w, status, ErrorResponse{
		StatusCode: status,
		Error:      kind.String(),
		Message:    apperr.MessageOf(err),
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	Error(w, apperr.InvalidRequest("%s", message))
}
