// Package app holds the per-session application shell: the state the
// site keeps for one visitor (current view, language, theme, assessment
// progress and cart) behind a single lock, with narrow mutation interfaces
// for each concern.
package app

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/terra-clan/humanarch/internal/assessment"
	"github.com/terra-clan/humanarch/internal/checkout"
	"github.com/terra-clan/humanarch/internal/events"
	"github.com/terra-clan/humanarch/internal/models"
	"github.com/terra-clan/humanarch/internal/router"
)

// Common errors
var (
	ErrCartIndex           = errors.New("cart index out of range")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrUnsupportedTheme    = errors.New("unsupported theme")
	ErrNoCheckout          = errors.New("no checkout started")
	ErrClosed              = errors.New("session closed")
)

// Content is the subset of the content tables a shell reads
type Content interface {
	Questions() []models.Question
	Product(id string) (models.Product, error)
	Prescription(cat models.Category) (models.Prescription, bool)
}

// Navigator changes the current view
type Navigator interface {
	Route(fragment string) router.Result
	Navigate(view models.View) router.Result
	View() models.View
}

// Preferences holds the visitor's language and theme
type Preferences interface {
	Language() models.Language
	Theme() models.Theme
	SetLanguage(lang models.Language) error
	SetTheme(theme models.Theme) error
}

// CartEditor edits the ordered product selection
type CartEditor interface {
	AddToCart(productID string) (models.Product, error)
	RemoveFromCart(index int) error
	ClearCart()
	Cart() []models.Product
}

// Timing holds the simulated delays
type Timing struct {
	Assessment time.Duration
	Purchase   time.Duration
	Completion time.Duration
}

// DefaultTiming returns the delays of the reference site
func DefaultTiming() Timing {
	return Timing{
		Assessment: assessment.DefaultProcessingDelay,
		Purchase:   checkout.DefaultProcessingDelay,
		Completion: checkout.DefaultCompletionDelay,
	}
}

// Config carries the shared dependencies of every shell
type Config struct {
	Clock  clockwork.Clock
	Bus    *events.Bus
	Timing Timing
	TTL    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Timing == (Timing{}) {
		c.Timing = DefaultTiming()
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	return c
}

// DefaultTTL is how long an idle session is kept
const DefaultTTL = 30 * time.Minute

// AssessmentView is the read model of the assessment for one session
type AssessmentView struct {
	Phase     models.AssessmentPhase `json:"phase"`
	Step      int                    `json:"step"`
	Total     int                    `json:"total"`
	Question  *models.Question       `json:"question,omitempty"`
	Answers   map[int]int            `json:"answers,omitempty"`
	Report    *assessment.Report     `json:"report,omitempty"`
	Diagnosis []models.Prescription  `json:"diagnosis,omitempty"`
}

// Shell is the application state of one session. All methods are safe for
// concurrent use; transitions are applied one at a time.
type Shell struct {
	mu      sync.Mutex
	id      string
	content Content
	cfg     Config

	loc      *router.MemoryLocation
	router   *router.Router
	machine  *assessment.Machine
	checkout *checkout.Checkout

	lang      models.Language
	theme     models.Theme
	cart      []models.Product
	createdAt time.Time
	expiresAt time.Time
	closed    bool

	dirty atomic.Bool
}

var (
	_ Navigator   = (*Shell)(nil)
	_ Preferences = (*Shell)(nil)
	_ CartEditor  = (*Shell)(nil)
)

// NewShell creates a session at the default view with default preferences
func NewShell(id string, cnt Content, cfg Config) (*Shell, error) {
	s, err := newShell(id, cnt, cfg.withDefaults())
	if err != nil {
		return nil, err
	}
	s.router.Evaluate()
	s.wire()
	return s, nil
}

// RestoreShell rebuilds a shell from a stored session. Pending timers
// restart with their full delay.
func RestoreShell(sess *models.Session, cnt Content, cfg Config) (*Shell, error) {
	s, err := newShell(sess.ID, cnt, cfg.withDefaults())
	if err != nil {
		return nil, err
	}

	if lang, ok := models.ParseLanguage(string(sess.Language)); ok {
		s.lang = lang
	}
	if theme, ok := models.ParseTheme(string(sess.Theme)); ok {
		s.theme = theme
	}
	s.cart = append([]models.Product(nil), sess.Cart...)
	s.createdAt = sess.CreatedAt
	s.expiresAt = sess.ExpiresAt
	s.router.Visit(sess.Fragment)

	if err := s.machine.Restore(sess.Assessment); err != nil {
		s.machine.Close()
		return nil, fmt.Errorf("failed to restore assessment: %w", err)
	}
	if sess.Checkout != nil {
		s.checkout = s.newCheckout(sess.Checkout.Items, sess.Checkout.CompleteView)
		s.checkout.Resume(*sess.Checkout)
	}

	s.wire()
	return s, nil
}

func newShell(id string, cnt Content, cfg Config) (*Shell, error) {
	s := &Shell{
		id:      id,
		content: cnt,
		cfg:     cfg,
		loc:     router.NewMemoryLocation(""),
		lang:    models.DefaultLanguage,
		theme:   models.DefaultTheme,
	}
	s.router = router.New(s.loc)

	m, err := assessment.NewMachine(cnt.Questions(),
		assessment.WithClock(cfg.Clock),
		assessment.WithProcessingDelay(cfg.Timing.Assessment),
		assessment.WithOnChange(s.assessmentChanged),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}
	s.machine = m

	now := cfg.Clock.Now()
	s.createdAt = now
	s.expiresAt = now.Add(cfg.TTL)
	return s, nil
}

// wire starts publishing view changes; restore happens before this
func (s *Shell) wire() {
	s.router.OnViewChange(func(v models.View, sig router.Signals) {
		s.dirty.Store(true)
		s.publish(events.TypeViewChanged, models.RouteResponse{
			View:               v,
			Fragment:           s.loc.Fragment(),
			ScrollToAssessment: sig.ScrollToAssessment,
			ProductID:          sig.ProductID,
		})
	})
}

// ID returns the session id
func (s *Shell) ID() string {
	return s.id
}

// --- Navigator ---

// Route resolves a raw location fragment
func (s *Shell) Route(fragment string) router.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Visit(fragment)
}

// Navigate moves to view
func (s *Shell) Navigate(view models.View) router.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Navigate(view)
}

// View returns the current view
func (s *Shell) View() models.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Current()
}

// Fragment returns the current location fragment
func (s *Shell) Fragment() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loc.Fragment()
}

// --- Preferences ---

// Language returns the UI language
func (s *Shell) Language() models.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Theme returns the color scheme
func (s *Shell) Theme() models.Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetLanguage switches the UI language
func (s *Shell) SetLanguage(lang models.Language) error {
	if _, ok := models.ParseLanguage(string(lang)); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, lang)
	}
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	s.changed()
	return nil
}

// SetTheme switches the color scheme
func (s *Shell) SetTheme(theme models.Theme) error {
	if _, ok := models.ParseTheme(string(theme)); !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedTheme, theme)
	}
	s.mu.Lock()
	s.theme = theme
	s.mu.Unlock()
	s.changed()
	return nil
}

// ToggleTheme flips between dark and light and returns the new theme
func (s *Shell) ToggleTheme() models.Theme {
	s.mu.Lock()
	if s.theme == models.ThemeDark {
		s.theme = models.ThemeLight
	} else {
		s.theme = models.ThemeDark
	}
	theme := s.theme
	s.mu.Unlock()
	s.changed()
	return theme
}

// --- CartEditor ---

// AddToCart appends a catalog product. Repeated products are kept as
// separate lines.
func (s *Shell) AddToCart(productID string) (models.Product, error) {
	p, err := s.content.Product(productID)
	if err != nil {
		return models.Product{}, err
	}
	s.mu.Lock()
	s.cart = append(s.cart, p)
	s.mu.Unlock()
	s.changed()
	return p, nil
}

// RemoveFromCart drops the line at index
func (s *Shell) RemoveFromCart(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.cart) {
		n := len(s.cart)
		s.mu.Unlock()
		return fmt.Errorf("%w: %d of %d", ErrCartIndex, index, n)
	}
	s.cart = append(s.cart[:index:index], s.cart[index+1:]...)
	s.mu.Unlock()
	s.changed()
	return nil
}

// ClearCart empties the selection
func (s *Shell) ClearCart() {
	s.mu.Lock()
	s.cart = nil
	s.mu.Unlock()
	s.changed()
}

// Cart returns the selection in order
func (s *Shell) Cart() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Product{}, s.cart...)
}

// CartTotal returns the summed price of the selection
func (s *Shell) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return checkout.Total(s.cart)
}

// --- Assessment ---

// StartAssessment leaves the intro screen
func (s *Shell) StartAssessment() error {
	return s.machine.Start()
}

// Answer records an answer for the current (or an earlier) question
func (s *Shell) Answer(questionID, value int) error {
	return s.machine.Answer(questionID, value)
}

// RevisitQuestion moves back to an already answered question
func (s *Shell) RevisitQuestion(step int) error {
	return s.machine.Revisit(step)
}

// ResetAssessment is the re-audit action
func (s *Shell) ResetAssessment() error {
	return s.machine.Reset()
}

// Assessment returns the read model of the assessment
func (s *Shell) Assessment() AssessmentView {
	st := s.machine.State()
	v := AssessmentView{
		Phase:   st.Phase,
		Step:    st.Step,
		Total:   s.machine.Len(),
		Answers: s.machine.Answers(),
	}
	if q, ok := s.machine.CurrentQuestion(); ok {
		v.Question = &q
	}
	if report, err := s.machine.Report(); err == nil {
		v.Report = report
		v.Diagnosis = assessment.Diagnose(report, s.content)
	}
	return v
}

func (s *Shell) assessmentChanged(st assessment.State) {
	s.dirty.Store(true)
	if st.Phase != models.PhaseResult {
		s.publish(events.TypeStateChanged, st)
		return
	}
	report, err := s.machine.Report()
	if err != nil {
		// reset raced the result
		return
	}
	s.publish(events.TypeAssessmentResult, report)
}

// --- Checkout ---

// BeginCheckout threads the current cart into a new purchase. When it
// completes, the session navigates to completeView (home if invalid) and
// the cart is cleared.
func (s *Shell) BeginCheckout(completeView models.View) (models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return models.Receipt{}, ErrClosed
	}
	if s.checkout != nil && s.checkout.Status().IsPending() {
		return models.Receipt{}, checkout.ErrPurchasePending
	}
	if len(s.cart) == 0 {
		return models.Receipt{}, checkout.ErrEmptyCart
	}

	co := s.newCheckout(s.cart, completeView)
	if err := co.Purchase(); err != nil {
		co.Close()
		return models.Receipt{}, err
	}
	if s.checkout != nil {
		s.checkout.Close()
	}
	s.checkout = co
	s.dirty.Store(true)
	return co.Receipt(), nil
}

// Checkout returns the receipt of the latest purchase
func (s *Shell) Checkout() (models.Receipt, error) {
	s.mu.Lock()
	co := s.checkout
	s.mu.Unlock()
	if co == nil {
		return models.Receipt{}, ErrNoCheckout
	}
	return co.Receipt(), nil
}

func (s *Shell) newCheckout(items []models.Product, completeView models.View) *checkout.Checkout {
	return checkout.New(items, completeView, s.completeCheckout,
		checkout.WithClock(s.cfg.Clock),
		checkout.WithDelays(s.cfg.Timing.Purchase, s.cfg.Timing.Completion),
		checkout.WithOnChange(s.receiptChanged),
	)
}

func (s *Shell) receiptChanged(r models.Receipt) {
	s.dirty.Store(true)
	switch r.Status {
	case models.PurchaseSuccess:
		s.publish(events.TypePurchaseSucceeded, r)
	case models.PurchaseComplete:
		s.publish(events.TypeCheckoutComplete, r)
	default:
		s.publish(events.TypeStateChanged, r)
	}
}

// completeCheckout runs on the checkout timer, never under s.mu
func (s *Shell) completeCheckout(view models.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.cart = nil
	s.router.Navigate(view)
	s.dirty.Store(true)
	slog.Info("checkout handed off", "session_id", s.id, "view", view)
}

// --- Lifecycle ---

// Touch extends the session expiry to now + ttl
func (s *Shell) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = s.cfg.Clock.Now().Add(s.cfg.TTL)
}

// ExpiresAt returns when the session lapses without further access
func (s *Shell) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// IsExpired reports whether the session TTL elapsed at now
func (s *Shell) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt())
}

// Dirty reports whether state changed since the last MarkClean
func (s *Shell) Dirty() bool {
	return s.dirty.Load()
}

// MarkClean clears the dirty flag after a save
func (s *Shell) MarkClean() {
	s.dirty.Store(false)
}

// Snapshot returns the storable form of the session
func (s *Shell) Snapshot() *models.Session {
	s.mu.Lock()
	sess := &models.Session{
		ID:        s.id,
		Language:  s.lang,
		Theme:     s.theme,
		View:      s.router.Current(),
		Fragment:  s.loc.Fragment(),
		Cart:      append([]models.Product{}, s.cart...),
		CreatedAt: s.createdAt,
		ExpiresAt: s.expiresAt,
	}
	co := s.checkout
	s.mu.Unlock()

	sess.Assessment = s.machine.Snapshot()
	if co != nil {
		r := co.Receipt()
		sess.Checkout = &r
	}
	return sess
}

// Close stops all timers. Callbacks that were already due are dropped.
func (s *Shell) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.machine.Close()
	if s.checkout != nil {
		s.checkout.Close()
	}
}

func (s *Shell) changed() {
	s.dirty.Store(true)
	s.publish(events.TypeStateChanged, nil)
}

func (s *Shell) publish(typ string, data interface{}) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(s.id, typ, data)
}
