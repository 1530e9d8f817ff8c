// Package community simulates the guild: members register (after a fixed
// delay standing in for a confirmation step) and registered members post
// to a shared board. Nothing is persisted.
package community

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/terra-clan/humanarch/internal/events"
	"github.com/terra-clan/humanarch/internal/models"
)

// DefaultRegistrationDelay is how long a registration stays pending
const DefaultRegistrationDelay = 1500 * time.Millisecond

// DefaultFeedLimit caps Feed when no limit is given
const DefaultFeedLimit = 50

// Common errors
var (
	ErrMemberNotFound = errors.New("member not found")
	ErrNotRegistered  = errors.New("member is not registered yet")
	ErrPostNotFound   = errors.New("post not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrEmailTaken     = errors.New("email already registered")
)

// Guild defines the community operations
type Guild interface {
	Register(req models.RegisterMemberRequest) (*models.Member, error)
	Member(id string) (*models.Member, error)
	Post(req models.CreatePostRequest) (*models.CommunityPost, error)
	Like(postID string) (*models.CommunityPost, error)
	Feed(limit int) []models.CommunityPost
	Close()
}

// Option configures a MemoryGuild
type Option func(*MemoryGuild)

// WithClock injects the clock used for the registration delay
func WithClock(clock clockwork.Clock) Option {
	return func(g *MemoryGuild) {
		g.clock = clock
	}
}

// WithRegistrationDelay overrides the registration delay
func WithRegistrationDelay(d time.Duration) Option {
	return func(g *MemoryGuild) {
		g.delay = d
	}
}

// WithBus publishes guild events on bus
func WithBus(bus *events.Bus) Option {
	return func(g *MemoryGuild) {
		g.bus = bus
	}
}

// MemoryGuild implements Guild in memory
type MemoryGuild struct {
	mu       sync.RWMutex
	clock    clockwork.Clock
	delay    time.Duration
	bus      *events.Bus
	validate *validator.Validate

	members map[string]*models.Member
	emails  map[string]string
	posts   []*models.CommunityPost // newest first
	timers  map[string]clockwork.Timer
	closed  bool
}

var _ Guild = (*MemoryGuild)(nil)

// NewMemoryGuild creates a guild whose board starts with seed
func NewMemoryGuild(seed []models.CommunityPost, opts ...Option) *MemoryGuild {
	g := &MemoryGuild{
		clock:    clockwork.NewRealClock(),
		delay:    DefaultRegistrationDelay,
		validate: validator.New(),
		members:  make(map[string]*models.Member),
		emails:   make(map[string]string),
		timers:   make(map[string]clockwork.Timer),
	}
	for _, opt := range opts {
		opt(g)
	}

	for i := range seed {
		p := seed[i]
		g.posts = append(g.posts, &p)
	}
	sort.SliceStable(g.posts, func(i, j int) bool {
		return g.posts[i].CreatedAt.After(g.posts[j].CreatedAt)
	})
	return g
}

// Register creates a pending member. The member becomes registered once the
// registration delay has passed.
func (g *MemoryGuild) Register(req models.RegisterMemberRequest) (*models.Member, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := g.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.emails[req.Email]; taken {
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, req.Email)
	}

	m := &models.Member{
		ID:        uuid.New().String(),
		Name:      req.Name,
		Email:     req.Email,
		Status:    models.MemberPending,
		CreatedAt: g.clock.Now().UTC(),
	}
	g.members[m.ID] = m
	g.emails[m.Email] = m.ID

	id := m.ID
	g.timers[id] = g.clock.AfterFunc(g.delay, func() { g.confirm(id) })

	slog.Info("guild registration pending", "member_id", id)
	out := *m
	return &out, nil
}

func (g *MemoryGuild) confirm(id string) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	delete(g.timers, id)
	m, ok := g.members[id]
	if !ok || m.Status == models.MemberRegistered {
		g.mu.Unlock()
		return
	}
	now := g.clock.Now().UTC()
	m.Status = models.MemberRegistered
	m.RegisteredAt = &now
	out := *m
	g.mu.Unlock()

	slog.Info("guild member registered", "member_id", id)
	g.publish(events.TypeGuildRegistered, out)
}

// Member returns a member by id
func (g *MemoryGuild) Member(id string) (*models.Member, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	m, ok := g.members[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	out := *m
	return &out, nil
}

// Post adds a message from a registered member to the top of the board
func (g *MemoryGuild) Post(req models.CreatePostRequest) (*models.CommunityPost, error) {
	req.Body = strings.TrimSpace(req.Body)
	if err := g.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	g.mu.Lock()
	m, ok := g.members[req.MemberID]
	if !ok {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrMemberNotFound, req.MemberID)
	}
	if !m.IsRegistered() {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, req.MemberID)
	}

	p := &models.CommunityPost{
		ID:        uuid.New().String(),
		AuthorID:  m.ID,
		Author:    m.Name,
		Body:      req.Body,
		CreatedAt: g.clock.Now().UTC(),
	}
	g.posts = append([]*models.CommunityPost{p}, g.posts...)
	out := *p
	g.mu.Unlock()

	g.publish(events.TypeCommunityPost, out)
	return &out, nil
}

// Like increments the like counter of a post
func (g *MemoryGuild) Like(postID string) (*models.CommunityPost, error) {
	g.mu.Lock()
	var found *models.CommunityPost
	for _, p := range g.posts {
		if p.ID == postID {
			found = p
			break
		}
	}
	if found == nil {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPostNotFound, postID)
	}
	found.Likes++
	out := *found
	g.mu.Unlock()

	g.publish(events.TypeCommunityPostLiked, out)
	return &out, nil
}

// Feed returns up to limit posts, newest first
func (g *MemoryGuild) Feed(limit int) []models.CommunityPost {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if limit > len(g.posts) {
		limit = len(g.posts)
	}
	out := make([]models.CommunityPost, 0, limit)
	for _, p := range g.posts[:limit] {
		out = append(out, *p)
	}
	return out
}

// Close stops pending registrations
func (g *MemoryGuild) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	for id, t := range g.timers {
		t.Stop()
		delete(g.timers, id)
	}
}

func (g *MemoryGuild) publish(typ string, data interface{}) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(events.CommunityTopic, typ, data)
}
