package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/assessment"
	"github.com/terra-clan/humanarch/internal/checkout"
	"github.com/terra-clan/humanarch/internal/community"
	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/storage"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondDomainError maps the domain sentinel errors to HTTP statuses.
// Anything unrecognized is logged and reported as "failed to <op>".
func respondDomainError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, storage.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", "session not found")
	case errors.Is(err, content.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, content.ErrPostNotFound), errors.Is(err, community.ErrPostNotFound):
		respondError(w, http.StatusNotFound, "post_not_found", err.Error())
	case errors.Is(err, community.ErrMemberNotFound):
		respondError(w, http.StatusNotFound, "member_not_found", err.Error())
	case errors.Is(err, app.ErrNoCheckout):
		respondError(w, http.StatusNotFound, "checkout_not_found", err.Error())

	case errors.Is(err, assessment.ErrInvalidValue),
		errors.Is(err, assessment.ErrUnknownQuestion),
		errors.Is(err, app.ErrUnsupportedLanguage),
		errors.Is(err, app.ErrUnsupportedTheme),
		errors.Is(err, app.ErrCartIndex),
		errors.Is(err, community.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())

	case errors.Is(err, assessment.ErrInvalidTransition), errors.Is(err, assessment.ErrNotReady):
		respondError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrPurchasePending):
		respondError(w, http.StatusConflict, "purchase_pending", err.Error())
	case errors.Is(err, checkout.ErrAlreadyComplete):
		respondError(w, http.StatusConflict, "purchase_complete", err.Error())
	case errors.Is(err, community.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, app.ErrClosed):
		respondError(w, http.StatusGone, "session_closed", err.Error())

	case errors.Is(err, community.ErrNotRegistered):
		respondError(w, http.StatusForbidden, "not_registered", err.Error())

	default:
		slog.Error("request failed", "op", op, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+op)
	}
}

// decodeJSON reads an optional JSON body into v. An empty body is not an error.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		slog.Warn("storage not ready", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"sessions": s.registry.Len(),
	})
}
