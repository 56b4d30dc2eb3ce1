package http

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/winestore/internal/notify"
	"github.com/utafrali/winestore/pkg/httputil"
	"github.com/utafrali/winestore/pkg/logger"
)

// notifications drains the request collector. A nil slice is omitted from
// the envelope.
func notifications(r *http.Request) any {
	if n := notify.Drain(r.Context()); len(n) > 0 {
		return n
	}
	return nil
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	httputil.WriteJSON(w, status, httputil.Response{Data: data, Notifications: notifications(r)})
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	httputil.WriteErrorWith(w, r, err, notifications(r), fallback)
}

func writeBadBody(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
		Error: &httputil.ErrorResponse{
			Code:      "INVALID_INPUT",
			Message:   "invalid request body: " + err.Error(),
			RequestID: logger.CorrelationIDFromContext(r.Context()),
		},
	})
}

func sessionID(r *http.Request) string {
	return logger.SessionIDFromContext(r.Context())
}
