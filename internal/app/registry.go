package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/models"
	"github.com/terra-clan/humanarch/internal/storage"
)

// Registry keeps the live shells of this process and mirrors their
// snapshots to a storage.Repository. A shell missing from memory (after a
// restart, or on another replica) is restored from the repository.
type Registry struct {
	mu      sync.RWMutex
	shells  map[string]*Shell
	content Content
	repo    storage.Repository
	cfg     Config
}

// NewRegistry creates an empty registry
func NewRegistry(cnt Content, repo storage.Repository, cfg Config) *Registry {
	return &Registry{
		shells:  make(map[string]*Shell),
		content: cnt,
		repo:    repo,
		cfg:     cfg.withDefaults(),
	}
}

// Create opens a new session. Missing preferences fall back to the
// negotiated Accept-Language and the default theme.
func (r *Registry) Create(ctx context.Context, req models.CreateSessionRequest, acceptLanguage string) (*Shell, error) {
	lang := content.NegotiateLanguage(acceptLanguage)
	if req.Language != "" {
		l, ok := models.ParseLanguage(req.Language)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language)
		}
		lang = l
	}
	theme := models.DefaultTheme
	if req.Theme != "" {
		t, ok := models.ParseTheme(req.Theme)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedTheme, req.Theme)
		}
		theme = t
	}

	s, err := NewShell(uuid.New().String(), r.content, r.cfg)
	if err != nil {
		return nil, err
	}
	s.lang = lang
	s.theme = theme
	if req.Fragment != "" {
		s.Route(req.Fragment)
	}

	if err := r.save(ctx, s); err != nil {
		s.Close()
		return nil, err
	}

	r.mu.Lock()
	r.shells[s.ID()] = s
	r.mu.Unlock()

	slog.Info("session created",
		"session_id", s.ID(),
		"language", lang,
		"theme", theme,
		"view", s.View(),
	)
	return s, nil
}

// Get returns a live session and extends its expiry. Sessions not in
// memory are restored from the repository.
func (r *Registry) Get(ctx context.Context, id string) (*Shell, error) {
	now := r.cfg.Clock.Now()

	r.mu.RLock()
	s, ok := r.shells[id]
	r.mu.RUnlock()

	if ok {
		if s.IsExpired(now) {
			r.evict(ctx, s)
			return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, id)
		}
		r.touch(ctx, s)
		return s, nil
	}

	sess, err := r.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.IsExpired(now) {
		return nil, fmt.Errorf("%w: %s", storage.ErrSessionNotFound, id)
	}

	restored, err := RestoreShell(sess, r.content, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", id, err)
	}
	r.mu.Lock()
	if existing, ok := r.shells[id]; ok {
		// lost a race with a concurrent restore
		r.mu.Unlock()
		restored.Close()
		return existing, nil
	}
	r.shells[id] = restored
	r.mu.Unlock()

	r.touch(ctx, restored)
	slog.Info("session restored", "session_id", id, "view", restored.View())
	return restored, nil
}

// touch slides the expiry and writes it through so the stored copy lapses
// no earlier than the live one.
func (r *Registry) touch(ctx context.Context, s *Shell) {
	s.Touch()
	if err := r.save(ctx, s); err != nil {
		slog.Warn("failed to persist session expiry", "session_id", s.ID(), "error", err)
	}
}

// Save writes the session snapshot to the repository
func (r *Registry) Save(ctx context.Context, s *Shell) error {
	return r.save(ctx, s)
}

func (r *Registry) save(ctx context.Context, s *Shell) error {
	s.MarkClean()
	if err := r.repo.SaveSession(ctx, s.Snapshot(), r.cfg.TTL); err != nil {
		s.dirty.Store(true)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete closes a session and removes it from the repository
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.shells[id]
	delete(r.shells, id)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
	err := r.repo.DeleteSession(ctx, id)
	if err != nil && !(ok && errors.Is(err, storage.ErrSessionNotFound)) {
		return err
	}
	return nil
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shells)
}

// EvictExpired closes expired live sessions and purges expired snapshots.
// It returns how many sessions were evicted.
func (r *Registry) EvictExpired(ctx context.Context) (int, error) {
	now := r.cfg.Clock.Now()

	r.mu.RLock()
	var expired []*Shell
	for _, s := range r.shells {
		if s.IsExpired(now) {
			expired = append(expired, s)
		}
	}
	r.mu.RUnlock()

	for _, s := range expired {
		r.evict(ctx, s)
	}

	stored, err := r.repo.GetExpiredSessions(ctx, now)
	if err != nil {
		return len(expired), fmt.Errorf("failed to list expired sessions: %w", err)
	}
	purged := 0
	for _, sess := range stored {
		r.mu.RLock()
		live, ok := r.shells[sess.ID]
		r.mu.RUnlock()
		if ok {
			// stale copy of a session still in use
			if err := r.save(ctx, live); err != nil {
				slog.Error("failed to refresh session", "session_id", sess.ID, "error", err)
			}
			continue
		}
		if err := r.repo.DeleteSession(ctx, sess.ID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			slog.Error("failed to purge session", "session_id", sess.ID, "error", err)
			continue
		}
		purged++
	}

	return len(expired) + purged, nil
}

// FlushDirty saves every live session changed since its last save, which
// covers transitions driven by timers rather than requests.
func (r *Registry) FlushDirty(ctx context.Context) (int, error) {
	r.mu.RLock()
	var dirty []*Shell
	for _, s := range r.shells {
		if s.Dirty() {
			dirty = append(dirty, s)
		}
	}
	r.mu.RUnlock()

	var errs []error
	saved := 0
	for _, s := range dirty {
		if err := r.save(ctx, s); err != nil {
			errs = append(errs, err)
			continue
		}
		saved++
	}
	return saved, errors.Join(errs...)
}

// Close saves and closes every live session
func (r *Registry) Close(ctx context.Context) error {
	if _, err := r.FlushDirty(ctx); err != nil {
		slog.Warn("failed to flush sessions on close", "error", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.shells {
		s.Close()
		delete(r.shells, id)
	}
	return nil
}

func (r *Registry) evict(ctx context.Context, s *Shell) {
	r.mu.Lock()
	if r.shells[s.ID()] == s {
		delete(r.shells, s.ID())
	}
	r.mu.Unlock()

	s.Close()
	if err := r.repo.DeleteSession(ctx, s.ID()); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
		slog.Warn("failed to delete expired session", "session_id", s.ID(), "error", err)
	}
	slog.Info("session expired", "session_id", s.ID())
}
