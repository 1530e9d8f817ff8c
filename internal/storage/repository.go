package storage

import (
	"context"
	"errors"
	"time"

	"github.com/terra-clan/humanarch/internal/models"
)

// Common errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidTTL      = errors.New("session ttl must be positive")
)

// Repository defines the interface for ephemeral session snapshots.
// Every saved session carries a TTL; nothing outlives it.
type Repository interface {
	// Sessions
	SaveSession(ctx context.Context, s *models.Session, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error
	GetExpiredSessions(ctx context.Context, now time.Time) ([]*models.Session, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
