// Package assessment drives the self-assessment quiz:
//
//	Intro -> Question(1..N) -> Processing -> Result -> (re-audit) -> Intro
//
// Processing is a fixed pacing delay; the only way out of it is the timer
// scheduled on the injected clock.
package assessment

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/terra-clan/humanarch/internal/models"
)

// Answer values range over a five point scale
const (
	MinValue = 1
	MaxValue = 5
)

// DefaultProcessingDelay is how long the "processing" screen is shown
const DefaultProcessingDelay = 2000 * time.Millisecond

// Common errors
var (
	ErrNoQuestions       = errors.New("assessment has no questions")
	ErrDuplicateQuestion = errors.New("duplicate question id")
	ErrInvalidTransition = errors.New("invalid assessment transition")
	ErrInvalidValue      = errors.New("answer value out of range")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrNotReady          = errors.New("assessment result not ready")
)

// State is the position of the machine. Step is the 1-based question
// position while Phase is PhaseQuestion and 0 otherwise.
type State struct {
	Phase models.AssessmentPhase `json:"phase"`
	Step  int                    `json:"step"`
}

func (s State) String() string {
	if s.Phase == models.PhaseQuestion {
		return fmt.Sprintf("question(%d)", s.Step)
	}
	return string(s.Phase)
}

// Option configures a Machine
type Option func(*Machine)

// WithClock injects the clock used for the processing delay
func WithClock(clock clockwork.Clock) Option {
	return func(m *Machine) {
		m.clock = clock
	}
}

// WithProcessingDelay overrides DefaultProcessingDelay
func WithProcessingDelay(d time.Duration) Option {
	return func(m *Machine) {
		if d >= 0 {
			m.delay = d
		}
	}
}

// WithOnChange registers fn to run after every transition. It is called
// without the machine lock held, possibly from the clock's goroutine.
func WithOnChange(fn func(State)) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// Machine is the assessment state machine for one visitor
type Machine struct {
	mu        sync.Mutex
	questions []models.Question
	index     map[int]int // question id -> position (0-based)
	clock     clockwork.Clock
	delay     time.Duration
	onChange  func(State)

	phase   models.AssessmentPhase
	step    int
	answers map[int]int
	timer   clockwork.Timer
	gen     uint64
}

// NewMachine creates a machine in the Intro state over questions, in order
func NewMachine(questions []models.Question, opts ...Option) (*Machine, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	index := make(map[int]int, len(questions))
	for i, q := range questions {
		if _, dup := index[q.ID]; dup {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateQuestion, q.ID)
		}
		index[q.ID] = i
	}

	m := &Machine{
		questions: append([]models.Question(nil), questions...),
		index:     index,
		clock:     clockwork.NewRealClock(),
		delay:     DefaultProcessingDelay,
		phase:     models.PhaseIntro,
		answers:   make(map[int]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state()
}

func (m *Machine) state() State {
	return State{Phase: m.phase, Step: m.step}
}

// Len returns the number of questions (N)
func (m *Machine) Len() int {
	return len(m.questions)
}

// Questions returns the questions in order
func (m *Machine) Questions() []models.Question {
	return append([]models.Question(nil), m.questions...)
}

// CurrentQuestion returns the question being asked, if any
func (m *Machine) CurrentQuestion() (models.Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != models.PhaseQuestion {
		return models.Question{}, false
	}
	return m.questions[m.step-1], true
}

// Answers returns a copy of the recorded answers keyed by question id
func (m *Machine) Answers() map[int]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]int, len(m.answers))
	for k, v := range m.answers {
		out[k] = v
	}
	return out
}

// Start moves from Intro to the first question
func (m *Machine) Start() error {
	m.mu.Lock()
	if m.phase != models.PhaseIntro {
		st := m.state()
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, st)
	}
	m.phase = models.PhaseQuestion
	m.step = 1
	st := m.state()
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// Answer records value for questionID, overwriting any earlier answer.
// Answering the current question advances to the next one; answering the
// last question enters Processing and schedules the move to Result.
// Earlier questions may be re-answered without moving.
func (m *Machine) Answer(questionID, value int) error {
	if value < MinValue || value > MaxValue {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrInvalidValue, value, MinValue, MaxValue)
	}

	m.mu.Lock()
	if m.phase != models.PhaseQuestion {
		st := m.state()
		m.mu.Unlock()
		return fmt.Errorf("%w: answer in %s", ErrInvalidTransition, st)
	}

	pos, ok := m.index[questionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	if pos+1 > m.step {
		st := m.state()
		m.mu.Unlock()
		return fmt.Errorf("%w: question %d not reached in %s", ErrInvalidTransition, questionID, st)
	}

	m.answers[questionID] = value

	if pos+1 == m.step {
		if m.step < len(m.questions) {
			m.step++
		} else {
			m.enterProcessing()
		}
	}
	st := m.state()
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// Revisit moves back to an already reached question so it can be re-answered
func (m *Machine) Revisit(step int) error {
	m.mu.Lock()
	if m.phase != models.PhaseQuestion || step < 1 || step > m.step {
		st := m.state()
		m.mu.Unlock()
		return fmt.Errorf("%w: revisit %d in %s", ErrInvalidTransition, step, st)
	}
	m.step = step
	st := m.state()
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// Reset is the re-audit action: it discards every answer and returns to Intro
func (m *Machine) Reset() error {
	m.mu.Lock()
	if m.phase != models.PhaseResult {
		st := m.state()
		m.mu.Unlock()
		return fmt.Errorf("%w: reset from %s", ErrInvalidTransition, st)
	}
	m.phase = models.PhaseIntro
	m.step = 0
	m.answers = make(map[int]int)
	st := m.state()
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// Report scores the recorded answers. It is only available in Result.
func (m *Machine) Report() (*Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != models.PhaseResult {
		return nil, fmt.Errorf("%w: in %s", ErrNotReady, m.state())
	}
	report := Score(m.questions, m.answers)
	return &report, nil
}

// Snapshot returns the storable form of the machine
func (m *Machine) Snapshot() models.AssessmentSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	answers := make(map[int]int, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	return models.AssessmentSnapshot{Phase: m.phase, Step: m.step, Answers: answers}
}

// Restore replaces the machine state with snap. A snapshot taken during
// Processing restarts the full processing delay.
func (m *Machine) Restore(snap models.AssessmentSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch snap.Phase {
	case models.PhaseIntro, models.PhaseProcessing, models.PhaseResult:
		snap.Step = 0
	case models.PhaseQuestion:
		if snap.Step < 1 || snap.Step > len(m.questions) {
			return fmt.Errorf("%w: restore step %d", ErrInvalidTransition, snap.Step)
		}
	case "":
		snap.Phase = models.PhaseIntro
		snap.Step = 0
	default:
		return fmt.Errorf("%w: restore phase %q", ErrInvalidTransition, snap.Phase)
	}

	answers := make(map[int]int, len(snap.Answers))
	for id, v := range snap.Answers {
		if _, ok := m.index[id]; !ok {
			return fmt.Errorf("%w: %d", ErrUnknownQuestion, id)
		}
		if v < MinValue || v > MaxValue {
			return fmt.Errorf("%w: %d", ErrInvalidValue, v)
		}
		answers[id] = v
	}

	m.stopTimer()
	m.phase = snap.Phase
	m.step = snap.Step
	m.answers = answers
	if m.phase == models.PhaseProcessing {
		m.enterProcessing()
	}
	return nil
}

// Close stops a pending processing timer
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimer()
}

// enterProcessing must be called with the lock held
func (m *Machine) enterProcessing() {
	m.phase = models.PhaseProcessing
	m.step = 0
	m.gen++
	gen := m.gen
	m.timer = m.clock.AfterFunc(m.delay, func() { m.finishProcessing(gen) })
}

func (m *Machine) finishProcessing(gen uint64) {
	m.mu.Lock()
	if m.phase != models.PhaseProcessing || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.phase = models.PhaseResult
	m.timer = nil
	st := m.state()
	answered := len(m.answers)
	m.mu.Unlock()

	slog.Debug("assessment processing finished", "answers", answered)
	m.notify(st)
}

func (m *Machine) stopTimer() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) notify(st State) {
	if m.onChange != nil {
		m.onChange(st)
	}
}
