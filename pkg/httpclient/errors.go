package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/winestore/pkg/errors"
)

// upstreamError covers the error body shapes the Product and Order APIs
// answer with: {"error":{"code","message"}}, {"error":"..."} and
// {"message":"..."}.
type upstreamError struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

type upstreamErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads a non-2xx response and translates it into an
// AppError. The body is consumed and closed.
func ParseResponseError(resp *http.Response, upstream string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", upstream, resp.StatusCode, err)
	}

	code, message := extractError(body)
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapUpstreamError(resp.StatusCode, code, message, upstream)
}

func extractError(body []byte) (code, message string) {
	var env upstreamError
	if json.Unmarshal(body, &env) != nil {
		return "", ""
	}

	if len(env.Error) > 0 {
		var obj upstreamErrorObject
		if json.Unmarshal(env.Error, &obj) == nil && obj.Message != "" {
			return obj.Code, obj.Message
		}
		var s string
		if json.Unmarshal(env.Error, &s) == nil && s != "" {
			return "", s
		}
	}

	return "", env.Message
}

func mapUpstreamError(status int, code, message, upstream string) error {
	qualified := fmt.Sprintf("%s: %s", upstream, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{
			Code:    "NOT_FOUND",
			Message: qualified,
			Status:  http.StatusNotFound,
			Err:     apperrors.ErrNotFound,
		}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusServiceUnavailable, status == http.StatusTooManyRequests:
		return apperrors.ServiceUnavailable(qualified)
	case status >= 500:
		return apperrors.BadGateway(fmt.Sprintf("%s (status %d)", qualified, status))
	default:
		if code == "" {
			code = "UPSTREAM_ERROR"
		}
		return &apperrors.AppError{
			Code:    code,
			Message: qualified,
			Status:  http.StatusBadGateway,
			Err:     apperrors.ErrBadGateway,
		}
	}
}
