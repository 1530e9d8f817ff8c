package models

import "time"

// Product is a catalog entry of the library/store
type Product struct {
	ID       string        `json:"id" yaml:"id" validate:"required"`
	Category string        `json:"category" yaml:"category" validate:"required"`
	Price    float64       `json:"price" yaml:"price" validate:"gt=0"`
	Name     LocalizedText `json:"name" yaml:"name"`
	Image    string        `json:"image" yaml:"image" validate:"required"`
}

// Question is one self-assessment prompt. Answers are scored 1..5,
// where 5 means the problem is fully present.
type Question struct {
	ID       int           `json:"id" yaml:"id" validate:"gt=0"`
	Category Category      `json:"category" yaml:"category" validate:"required,oneof=Foundation Structure Interior Exterior"`
	Text     LocalizedText `json:"text" yaml:"text"`
}

// Prescription is the diagnosis triple shown for a critical category
type Prescription struct {
	Category     Category      `json:"category" yaml:"category" validate:"required,oneof=Foundation Structure Interior Exterior"`
	Prescription LocalizedText `json:"prescription" yaml:"prescription"`
	Action       LocalizedText `json:"action" yaml:"action"`
	Reference    string        `json:"reference" yaml:"reference" validate:"required"`
}

// Post is a journal entry. Body is markdown.
type Post struct {
	Slug    string        `json:"slug" yaml:"slug" validate:"required"`
	Title   LocalizedText `json:"title" yaml:"title"`
	Date    string        `json:"date" yaml:"date" validate:"required,datetime=2006-01-02"`
	Excerpt LocalizedText `json:"excerpt" yaml:"excerpt"`
	Body    string        `json:"body" yaml:"body" validate:"required"`
	Tags    []string      `json:"tags,omitempty" yaml:"tags"`
}

// CommunityPost is a message on the guild board
type CommunityPost struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id,omitempty"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Likes     int       `json:"likes"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberStatus is the registration state of a guild member
type MemberStatus string

const (
	MemberPending    MemberStatus = "pending"
	MemberRegistered MemberStatus = "registered"
)

// Member is a (simulated) guild registration
type Member struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	Status       MemberStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	RegisteredAt *time.Time   `json:"registered_at,omitempty"`
}

// IsRegistered reports whether the member may post
func (m *Member) IsRegistered() bool {
	return m != nil && m.Status == MemberRegistered
}
