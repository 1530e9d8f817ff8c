package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/terra-clan/humanarch/internal/models"
)

var validate = validator.New()

// ErrInvalidContent is returned when a content table fails validation
var ErrInvalidContent = errors.New("invalid content")

type tables struct {
	translations  map[string]models.LocalizedText
	products      []models.Product
	questions     []models.Question
	prescriptions []models.Prescription
	posts         []models.Post
	seedPosts     []models.CommunityPost
}

func (t *tables) validate() error {
	if len(t.translations) == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrInvalidContent, TranslationsFile)
	}
	for key, text := range t.translations {
		if err := validate.Struct(text); err != nil {
			return invalid(TranslationsFile, "translation "+key, err)
		}
	}

	if len(t.products) == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrInvalidContent, ProductsFile)
	}
	seenProducts := make(map[string]bool, len(t.products))
	for _, p := range t.products {
		if err := validate.Struct(p); err != nil {
			return invalid(ProductsFile, "product "+p.ID, err)
		}
		if seenProducts[p.ID] {
			return fmt.Errorf("%w: %s: duplicate product id %q", ErrInvalidContent, ProductsFile, p.ID)
		}
		seenProducts[p.ID] = true
	}

	if len(t.questions) == 0 {
		return fmt.Errorf("%w: %s has no entries", ErrInvalidContent, QuestionsFile)
	}
	seenQuestions := make(map[int]bool, len(t.questions))
	asked := make(map[models.Category]bool)
	for _, q := range t.questions {
		if err := validate.Struct(q); err != nil {
			return invalid(QuestionsFile, fmt.Sprintf("question %d", q.ID), err)
		}
		if seenQuestions[q.ID] {
			return fmt.Errorf("%w: %s: duplicate question id %d", ErrInvalidContent, QuestionsFile, q.ID)
		}
		seenQuestions[q.ID] = true
		asked[q.Category] = true
	}

	diagnosed := make(map[models.Category]bool, len(t.prescriptions))
	for _, p := range t.prescriptions {
		if err := validate.Struct(p); err != nil {
			return invalid(DiagnosisFile, "prescription "+string(p.Category), err)
		}
		if diagnosed[p.Category] {
			return fmt.Errorf("%w: %s: duplicate prescription for %s", ErrInvalidContent, DiagnosisFile, p.Category)
		}
		diagnosed[p.Category] = true
	}
	for _, cat := range models.Categories {
		if asked[cat] && !diagnosed[cat] {
			return fmt.Errorf("%w: %s: no prescription for %s", ErrInvalidContent, DiagnosisFile, cat)
		}
	}

	seenPosts := make(map[string]bool, len(t.posts))
	for _, p := range t.posts {
		if err := validate.Struct(p); err != nil {
			return invalid(PostsFile, "post "+p.Slug, err)
		}
		if seenPosts[p.Slug] {
			return fmt.Errorf("%w: %s: duplicate post slug %q", ErrInvalidContent, PostsFile, p.Slug)
		}
		seenPosts[p.Slug] = true
	}

	for _, p := range t.seedPosts {
		if strings.TrimSpace(p.Author) == "" || strings.TrimSpace(p.Body) == "" {
			return fmt.Errorf("%w: %s: %s needs author and body", ErrInvalidContent, CommunityFile, p.ID)
		}
	}
	return nil
}

// invalid flattens validator errors into one message naming the offending fields
func invalid(file, what string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %s: %s: %v", ErrInvalidContent, file, what, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s: %s: %s", ErrInvalidContent, file, what, strings.Join(fields, ", "))
}
