package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/dukaverse-accounts-go/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Code: "bad_body"})
		return false
	}
	return true
}

func as[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// errorRules is checked in order; the first match decides the response.
// An empty message means err.Error() is returned to the client.
var errorRules = []struct {
	match   func(error) bool
	status  int
	code    string
	level   zapcore.Level
	message string
}{
	{as[*domain.ErrValidation], http.StatusBadRequest, "validation", zapcore.DebugLevel, ""},
	{as[*domain.ErrUnauthorized], http.StatusUnauthorized, "unauthorized", zapcore.WarnLevel, ""},
	{as[*domain.ErrForbidden], http.StatusForbidden, "forbidden", zapcore.WarnLevel, ""},
	{as[*domain.ErrNoSession], http.StatusForbidden, "no_session", zapcore.DebugLevel, ""},
	{as[*domain.ErrNoCandidates], http.StatusNotFound, "no_candidates", zapcore.DebugLevel, ""},
	{as[*domain.ErrUnsupported], http.StatusNotImplemented, "unsupported", zapcore.DebugLevel, ""},
	{as[*domain.ErrCircuitOpen], http.StatusServiceUnavailable, "circuit_open", zapcore.ErrorLevel, ""},
	{as[*domain.ErrSessionCreate], http.StatusServiceUnavailable, "session_create", zapcore.ErrorLevel, "could not bind account, try again"},
	{as[*domain.ErrNotFound], http.StatusNotFound, "not_found", zapcore.DebugLevel, ""},
	{as[*domain.ErrExternalService], http.StatusBadGateway, "upstream", zapcore.ErrorLevel, "upstream service error"},
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	for _, rule := range errorRules {
		if !rule.match(err) {
			continue
		}
		logger.Log(rule.level, "request failed", zap.String("code", rule.code), zap.Error(err))
		msg := rule.message
		if msg == "" {
			msg = err.Error()
		}
		writeJSON(w, rule.status, errorResponse{Error: msg, Code: rule.code})
		return
	}
	logger.Error("unhandled error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal server error")
}
