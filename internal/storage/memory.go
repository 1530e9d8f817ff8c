package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/terra-clan/humanarch/internal/models"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryRepository implements Repository in process memory. Entries are
// stored serialized so callers never share state with the store.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	clock   clockwork.Clock
}

// MemoryOption configures a MemoryRepository
type MemoryOption func(*MemoryRepository)

// WithClock sets the clock TTLs are measured against
func WithClock(clock clockwork.Clock) MemoryOption {
	return func(r *MemoryRepository) {
		r.clock = clock
	}
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		entries: make(map[string]memoryEntry),
		clock:   clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveSession stores a snapshot until ttl elapses
func (r *MemoryRepository) SaveSession(ctx context.Context, s *models.Session, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID] = memoryEntry{data: data, expiresAt: r.clock.Now().Add(ttl)}
	return nil
}

// GetSession returns a snapshot, or ErrSessionNotFound once its TTL passed
func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok || !r.clock.Now().Before(entry.expiresAt) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	var s models.Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// DeleteSession removes a snapshot
func (r *MemoryRepository) DeleteSession(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(r.entries, id)
	return nil
}

// GetExpiredSessions returns snapshots whose TTL has passed at now
func (r *MemoryRepository) GetExpiredSessions(ctx context.Context, now time.Time) ([]*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []*models.Session
	for id, entry := range r.entries {
		if now.Before(entry.expiresAt) {
			continue
		}
		var s models.Session
		if err := json.Unmarshal(entry.data, &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session %s: %w", id, err)
		}
		expired = append(expired, &s)
	}
	return expired, nil
}

// Len returns the number of stored entries, expired or not
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Ping always succeeds
func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close drops all entries
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]memoryEntry)
	return nil
}
