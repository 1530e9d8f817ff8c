package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// loadSession resolves the {id} URL parameter to a live session and puts it
// in the request context. After a mutating request the session snapshot is
// written back to storage.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondError(w, http.StatusBadRequest, "validation_error", "session id is required")
			return
		}

		shell, err := s.registry.Get(r.Context(), id)
		if err != nil {
			respondDomainError(w, err, "load session")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithShell(r.Context(), shell)))

		if r.Method == http.MethodGet || !shell.Dirty() {
			return
		}
		if err := s.registry.Save(r.Context(), shell); err != nil {
			// the cleanup worker retries dirty sessions
			slog.Error("failed to save session", "session_id", id, "error", err)
		}
	})
}
