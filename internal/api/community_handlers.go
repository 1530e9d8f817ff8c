package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/humanarch/internal/models"
)

// Guild handlers

func (s *Server) handleRegisterMember(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterMemberRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	member, err := s.guild.Register(req)
	if err != nil {
		respondDomainError(w, err, "register member")
		return
	}

	// registration completes asynchronously
	respondJSON(w, http.StatusAccepted, member)
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	member, err := s.guild.Member(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err, "get member")
		return
	}
	respondJSON(w, http.StatusOK, member)
}

func (s *Server) handleListCommunityPosts(w http.ResponseWriter, r *http.Request) {
	limit := s.feedLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < limit {
			limit = l
		}
	}

	posts := s.guild.Feed(limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"posts": posts,
		"total": len(posts),
	})
}

func (s *Server) handleCreateCommunityPost(w http.ResponseWriter, r *http.Request) {
	var req models.CreatePostRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	post, err := s.guild.Post(req)
	if err != nil {
		respondDomainError(w, err, "create post")
		return
	}
	respondJSON(w, http.StatusCreated, post)
}

func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	post, err := s.guild.Like(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err, "like post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}
