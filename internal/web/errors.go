package web

// errors.go turns service errors into JSON responses. The technical error is
// logged with the request ID; the client gets the mapped user message.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/pharmadist/internal/core"
	"github.com/JonMunkholm/pharmadist/internal/logging"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
	errBadBody     = errors.New("invalid request body")
	errBadID       = errors.New("invalid number: id must be a positive integer")
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

// respondError logs err and writes its user-facing form. A zero status is
// derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	userMsg := core.MapError(err)
	requestID := middleware.GetReqID(r.Context())

	log := logging.FromContext(r.Context())
	logFn := log.Warn
	if status >= http.StatusInternalServerError {
		logFn = log.Error
	}
	logFn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:     userMsg.Message,
		Message:   userMsg.Message,
		Action:    userMsg.Action,
		Code:      userMsg.Code,
		RequestID: requestID,
	})
}

// respondErrorJSON writes msg without logging; for middleware rejections.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an error by its code family.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrUnknownTable):
		return http.StatusNotFound
	}

	code := core.MapError(err).Code
	switch {
	case code == "STORE002":
		return http.StatusConflict
	case code == "STORE005", code == "TBL001":
		return http.StatusBadRequest
	case strings.HasPrefix(code, "VAL"), strings.HasPrefix(code, "FILE"), strings.HasPrefix(code, "INV"):
		return http.StatusBadRequest
	case code == "IMP001":
		return http.StatusServiceUnavailable
	case strings.HasPrefix(code, "IMP"):
		return http.StatusRequestTimeout
	case code == "RATE001":
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}
