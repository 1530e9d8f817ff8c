package models

import (
	"time"
)

// AssessmentPhase is the coarse state of the self-assessment
type AssessmentPhase string

const (
	PhaseIntro      AssessmentPhase = "intro"
	PhaseQuestion   AssessmentPhase = "question"
	PhaseProcessing AssessmentPhase = "processing"
	PhaseResult     AssessmentPhase = "result"
)

// AssessmentSnapshot is the storable form of an assessment in progress.
// Step is the 1-based question position while Phase is PhaseQuestion, 0 otherwise.
type AssessmentSnapshot struct {
	Phase   AssessmentPhase `json:"phase"`
	Step    int             `json:"step"`
	Answers map[int]int     `json:"answers,omitempty"`
}

// PurchaseStatus is the state of the mocked checkout
type PurchaseStatus string

const (
	PurchaseIdle       PurchaseStatus = "idle"
	PurchaseProcessing PurchaseStatus = "processing"
	PurchaseSuccess    PurchaseStatus = "success"
	PurchaseComplete   PurchaseStatus = "complete"
)

// IsPending returns true while a purchase timer is outstanding
func (s PurchaseStatus) IsPending() bool {
	return s == PurchaseProcessing || s == PurchaseSuccess
}

// Receipt describes one (simulated) purchase
type Receipt struct {
	Reference    string         `json:"reference"`
	Items        []Product      `json:"items"`
	Total        float64        `json:"total"`
	Status       PurchaseStatus `json:"status"`
	CompleteView View           `json:"complete_view"`
	CreatedAt    time.Time      `json:"created_at"`
	SucceededAt  *time.Time     `json:"succeeded_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Session is the storable state of one visitor's application shell
type Session struct {
	ID         string             `json:"id"`
	Language   Language           `json:"language"`
	Theme      Theme              `json:"theme"`
	View       View               `json:"view"`
	Fragment   string             `json:"fragment"`
	Cart       []Product          `json:"cart"`
	Assessment AssessmentSnapshot `json:"assessment"`
	Checkout   *Receipt           `json:"checkout,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// IsExpired checks if the session TTL has elapsed at now
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// TimeRemaining returns the duration until expiry (0 if expired)
func (s *Session) TimeRemaining(now time.Time) time.Duration {
	remaining := s.ExpiresAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreateSessionRequest represents a request to open a session
type CreateSessionRequest struct {
	Language string `json:"language,omitempty"`
	Theme    string `json:"theme,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

// RouteRequest carries a raw location fragment to resolve
type RouteRequest struct {
	Fragment string `json:"fragment"`
}

// RouteResponse is the outcome of resolving a fragment
type RouteResponse struct {
	View               View   `json:"view"`
	Fragment           string `json:"fragment"`
	Redirected         bool   `json:"redirected"`
	ScrollToAssessment bool   `json:"scroll_to_assessment,omitempty"`
	ProductID          string `json:"product_id,omitempty"`
}

// PreferencesRequest updates language and/or theme
type PreferencesRequest struct {
	Language string `json:"language,omitempty"`
	Theme    string `json:"theme,omitempty"`
}

// AnswerRequest records one assessment answer
type AnswerRequest struct {
	QuestionID int `json:"question_id"`
	Value      int `json:"value"`
}

// AddToCartRequest appends a catalog product to the cart
type AddToCartRequest struct {
	ProductID string `json:"product_id"`
}

// CheckoutRequest starts the mocked purchase
type CheckoutRequest struct {
	CompleteView string `json:"complete_view,omitempty"`
}

// CartResponse lists the cart with its total
type CartResponse struct {
	Items []Product `json:"items"`
	Total float64   `json:"total"`
}

// RegisterMemberRequest joins the guild
type RegisterMemberRequest struct {
	Name  string `json:"name" validate:"required,max=80"`
	Email string `json:"email" validate:"required,email"`
}

// CreatePostRequest posts to the guild board
type CreatePostRequest struct {
	MemberID string `json:"member_id" validate:"required"`
	Body     string `json:"body" validate:"required,max=2000"`
}
