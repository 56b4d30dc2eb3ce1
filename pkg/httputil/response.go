package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/winestore/pkg/errors"
	"github.com/utafrali/winestore/pkg/logger"
	"github.com/utafrali/winestore/pkg/validator"
)

// Response is the JSON envelope returned by every storefront endpoint.
// Notifications carries transient, dismissible messages for the UI toast
// surface; it is set by handlers that collect them.
type Response struct {
	Data          any            `json:"data,omitempty"`
	Error         *ErrorResponse `json:"error,omitempty"`
	Notifications any            `json:"notifications,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody converts err into the envelope error and its HTTP status. 5xx
// errors other than upstream failures get a generic message.
func ErrorBody(err error) (int, *ErrorResponse) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return http.StatusBadRequest, &ErrorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "request validation failed",
			Fields:  valErr.Fields(),
		}
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, &ErrorResponse{Code: appErr.Code, Message: appErr.Message}
	}

	status := apperrors.HTTPStatus(err)
	switch status {
	case http.StatusNotFound:
		return status, &ErrorResponse{Code: "NOT_FOUND", Message: "resource not found"}
	case http.StatusBadRequest:
		return status, &ErrorResponse{Code: "INVALID_INPUT", Message: err.Error()}
	case http.StatusConflict:
		return status, &ErrorResponse{Code: "CONFLICT", Message: err.Error()}
	case http.StatusServiceUnavailable:
		return status, &ErrorResponse{Code: "SERVICE_UNAVAILABLE", Message: "upstream service unavailable, please retry"}
	case http.StatusBadGateway:
		return status, &ErrorResponse{Code: "BAD_GATEWAY", Message: "upstream service returned an invalid response"}
	default:
		return http.StatusInternalServerError, &ErrorResponse{Code: "INTERNAL_ERROR", Message: "an internal error occurred"}
	}
}

// WriteError writes the error envelope for err. It prefers the request-scoped
// logger from context over fallback when logging server errors.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	WriteErrorWith(w, r, err, nil, fallback)
}

// WriteErrorWith is WriteError with notifications attached to the envelope.
func WriteErrorWith(w http.ResponseWriter, r *http.Request, err error, notifications any, fallback *slog.Logger) {
	l := logger.FromContext(r.Context())
	if l == slog.Default() && fallback != nil {
		l = fallback
	}

	status, body := ErrorBody(err)
	body.RequestID = logger.CorrelationIDFromContext(r.Context())

	if status >= http.StatusInternalServerError {
		l.ErrorContext(r.Context(), "request failed",
			slog.String("error", err.Error()),
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	}

	WriteJSON(w, status, Response{Error: body, Notifications: notifications})
}

// ParseID parses a positive integer path parameter. On failure it writes a
// 400 INVALID_PARAMETER response and returns false.
func ParseID(w http.ResponseWriter, param string) (int64, bool) {
	id, err := strconv.ParseInt(param, 10, 64)
	if err != nil || id <= 0 {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: "invalid id: " + param,
			},
		})
		return 0, false
	}
	return id, true
}
