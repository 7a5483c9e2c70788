package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"docflow/auth"
	"docflow/contract"
	"docflow/document"
	"docflow/httpx"
)

// writeServiceError maps domain sentinels to HTTP statuses. Anything
// unrecognised is logged and surfaced as an opaque 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrNotFound), errors.Is(err, contract.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		httpx.WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, document.ErrForbidden), errors.Is(err, contract.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		httpx.WriteError(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, document.ErrInvalidAction):
		httpx.WriteError(w, http.StatusBadRequest, "INVALID_ACTION", err.Error(), nil)
	case errors.Is(err, document.ErrValidation), errors.Is(err, contract.ErrValidation),
		errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrInvalidRole):
		httpx.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, document.ErrInvalidTransition):
		httpx.WriteError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, document.ErrConflict), errors.Is(err, contract.ErrDuplicateNumber), errors.Is(err, auth.ErrDuplicateEmail):
		httpx.WriteError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error(), nil)
	default:
		s.logger.Error("request failed",
			zap.String("request_id", w.Header().Get(httpx.RequestIDHeader)),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		httpx.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	httpx.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", message, nil)
}
