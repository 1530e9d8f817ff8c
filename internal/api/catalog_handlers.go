package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/models"
)

// Content handlers serve the static tables the client renders from

// requestLanguage picks ?lang= when supported, else negotiates Accept-Language
func requestLanguage(r *http.Request) models.Language {
	if lang, ok := models.ParseLanguage(r.URL.Query().Get("lang")); ok {
		return lang
	}
	return content.NegotiateLanguage(r.Header.Get("Accept-Language"))
}

func (s *Server) handleTranslations(w http.ResponseWriter, r *http.Request) {
	lang := requestLanguage(r)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"language":     lang,
		"translations": s.content.Translations(lang),
	})
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	var products []models.Product
	if category := r.URL.Query().Get("category"); category != "" {
		products = s.content.ProductsByCategory(category)
	} else {
		products = s.content.Products()
	}
	if products == nil {
		products = []models.Product{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": products,
		"total":    len(products),
	})
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.content.Product(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err, "get product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	questions := s.content.Questions()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"questions": questions,
		"total":     len(questions),
	})
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts := s.content.Posts()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"posts": posts,
		"total": len(posts),
	})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.content.Post(chi.URLParam(r, "slug"))
	if err != nil {
		respondDomainError(w, err, "get post")
		return
	}
	respondJSON(w, http.StatusOK, post)
}
