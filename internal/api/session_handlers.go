package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/models"
)

// --- Session lifecycle ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shell, err := s.registry.Create(r.Context(), req, r.Header.Get("Accept-Language"))
	if err != nil {
		respondDomainError(w, err, "create session")
		return
	}

	respondJSON(w, http.StatusCreated, shell.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	shell := ShellFromContext(r.Context())
	respondJSON(w, http.StatusOK, shell.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Delete(r.Context(), id); err != nil {
		respondDomainError(w, err, "delete session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "session deleted",
	})
}

// --- Navigation and preferences ---

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shell := ShellFromContext(r.Context())
	res := shell.Route(req.Fragment)

	respondJSON(w, http.StatusOK, models.RouteResponse{
		View:               res.View,
		Fragment:           shell.Fragment(),
		Redirected:         res.Redirected,
		ScrollToAssessment: res.Signals.ScrollToAssessment,
		ProductID:          res.Signals.ProductID,
	})
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req models.PreferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shell := ShellFromContext(r.Context())
	if req.Language != "" {
		if err := shell.SetLanguage(models.Language(req.Language)); err != nil {
			respondDomainError(w, err, "update language")
			return
		}
	}
	if req.Theme != "" {
		if err := shell.SetTheme(models.Theme(req.Theme)); err != nil {
			respondDomainError(w, err, "update theme")
			return
		}
	}

	respondJSON(w, http.StatusOK, models.PreferencesRequest{
		Language: string(shell.Language()),
		Theme:    string(shell.Theme()),
	})
}

// --- Assessment ---

func (s *Server) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ShellFromContext(r.Context()).Assessment())
}

func (s *Server) handleStartAssessment(w http.ResponseWriter, r *http.Request) {
	shell := ShellFromContext(r.Context())
	if err := shell.StartAssessment(); err != nil {
		respondDomainError(w, err, "start assessment")
		return
	}
	respondJSON(w, http.StatusOK, shell.Assessment())
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req models.AnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shell := ShellFromContext(r.Context())
	if err := shell.Answer(req.QuestionID, req.Value); err != nil {
		respondDomainError(w, err, "record answer")
		return
	}
	respondJSON(w, http.StatusOK, shell.Assessment())
}

func (s *Server) handleRevisit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step int `json:"step"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shell := ShellFromContext(r.Context())
	if err := shell.RevisitQuestion(req.Step); err != nil {
		respondDomainError(w, err, "revisit question")
		return
	}
	respondJSON(w, http.StatusOK, shell.Assessment())
}

func (s *Server) handleResetAssessment(w http.ResponseWriter, r *http.Request) {
	shell := ShellFromContext(r.Context())
	if err := shell.ResetAssessment(); err != nil {
		respondDomainError(w, err, "reset assessment")
		return
	}
	respondJSON(w, http.StatusOK, shell.Assessment())
}

// --- Cart ---

func cartResponse(shell *app.Shell) models.CartResponse {
	return models.CartResponse{
		Items: shell.Cart(),
		Total: shell.CartTotal(),
	}
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartResponse(ShellFromContext(r.Context())))
}

func (s *Server) handleAddToCart(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}

	shell := ShellFromContext(r.Context())
	if _, err := shell.AddToCart(req.ProductID); err != nil {
		respondDomainError(w, err, "add to cart")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(shell))
}

func (s *Server) handleRemoveFromCart(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "validation_error", "index must be an integer")
		return
	}

	shell := ShellFromContext(r.Context())
	if err := shell.RemoveFromCart(index); err != nil {
		respondDomainError(w, err, "remove from cart")
		return
	}
	respondJSON(w, http.StatusOK, cartResponse(shell))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	shell := ShellFromContext(r.Context())
	shell.ClearCart()
	respondJSON(w, http.StatusOK, cartResponse(shell))
}

// --- Checkout ---

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	view := models.DefaultView
	if req.CompleteView != "" {
		v, ok := models.ParseView(req.CompleteView)
		if !ok {
			respondError(w, http.StatusBadRequest, "validation_error", "unknown complete_view: "+req.CompleteView)
			return
		}
		view = v
	}

	shell := ShellFromContext(r.Context())
	receipt, err := shell.BeginCheckout(view)
	if err != nil {
		respondDomainError(w, err, "start checkout")
		return
	}

	slog.Info("checkout started", "session_id", shell.ID(), "reference", receipt.Reference)
	respondJSON(w, http.StatusAccepted, receipt)
}

func (s *Server) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	receipt, err := ShellFromContext(r.Context()).Checkout()
	if err != nil {
		respondDomainError(w, err, "get checkout")
		return
	}
	respondJSON(w, http.StatusOK, receipt)
}
