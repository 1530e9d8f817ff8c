package assessment

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/terra-clan/humanarch/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sixQuestions() []models.Question {
	cats := []models.Category{
		models.CategoryFoundation,
		models.CategoryStructure,
		models.CategoryInterior,
		models.CategoryExterior,
		models.CategoryFoundation,
		models.CategoryStructure,
	}
	qs := make([]models.Question, len(cats))
	for i, c := range cats {
		qs[i] = models.Question{
			ID:       i + 1,
			Category: c,
			Text:     models.LocalizedText{EN: "q", RU: "в"},
		}
	}
	return qs
}

func newTestMachine(t *testing.T, qs []models.Question) (*Machine, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m, err := NewMachine(qs, WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, clock
}

func waitForPhase(t *testing.T, m *Machine, phase models.AssessmentPhase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State().Phase == phase
	}, time.Second, time.Millisecond, "expected phase %s, got %s", phase, m.State())
}

func TestNewMachineRejectsBadQuestionSets(t *testing.T) {
	_, err := NewMachine(nil)
	assert.ErrorIs(t, err, ErrNoQuestions)

	qs := sixQuestions()
	qs[3].ID = 1
	_, err = NewMachine(qs)
	assert.ErrorIs(t, err, ErrDuplicateQuestion)
}

func TestAnswerMonotonicity(t *testing.T) {
	qs := sixQuestions()
	m, clock := newTestMachine(t, qs)

	assert.Equal(t, State{Phase: models.PhaseIntro}, m.State())
	require.NoError(t, m.Start())
	assert.Equal(t, State{Phase: models.PhaseQuestion, Step: 1}, m.State())

	for k := 1; k < len(qs); k++ {
		require.NoError(t, m.Answer(qs[k-1].ID, 3))
		assert.Equal(t, State{Phase: models.PhaseQuestion, Step: k + 1}, m.State())
	}

	require.NoError(t, m.Answer(qs[len(qs)-1].ID, 3))
	assert.Equal(t, models.PhaseProcessing, m.State().Phase)

	clock.Advance(DefaultProcessingDelay - time.Millisecond)
	assert.Equal(t, models.PhaseProcessing, m.State().Phase, "must not leave processing early")

	clock.Advance(time.Millisecond)
	waitForPhase(t, m, models.PhaseResult)
}

func TestProcessingRejectsInput(t *testing.T) {
	qs := sixQuestions()
	m, clock := newTestMachine(t, qs)
	require.NoError(t, m.Start())
	for _, q := range qs {
		require.NoError(t, m.Answer(q.ID, 2))
	}

	assert.ErrorIs(t, m.Answer(qs[0].ID, 5), ErrInvalidTransition)
	assert.ErrorIs(t, m.Start(), ErrInvalidTransition)
	assert.ErrorIs(t, m.Reset(), ErrInvalidTransition)
	_, err := m.Report()
	assert.ErrorIs(t, err, ErrNotReady)

	clock.Advance(DefaultProcessingDelay)
	waitForPhase(t, m, models.PhaseResult)
	assert.Equal(t, 2, m.Answers()[qs[0].ID], "answer during processing must be ignored")
}

func TestAnswerValidation(t *testing.T) {
	qs := sixQuestions()
	m, _ := newTestMachine(t, qs)

	assert.ErrorIs(t, m.Answer(1, 3), ErrInvalidTransition, "cannot answer from intro")
	require.NoError(t, m.Start())

	assert.ErrorIs(t, m.Answer(1, 0), ErrInvalidValue)
	assert.ErrorIs(t, m.Answer(1, 6), ErrInvalidValue)
	assert.ErrorIs(t, m.Answer(99, 3), ErrUnknownQuestion)
	assert.ErrorIs(t, m.Answer(3, 3), ErrInvalidTransition, "cannot skip ahead")
	assert.Equal(t, State{Phase: models.PhaseQuestion, Step: 1}, m.State())
	assert.Empty(t, m.Answers())
}

func TestReanswerOverwrites(t *testing.T) {
	qs := sixQuestions()
	m, _ := newTestMachine(t, qs)
	require.NoError(t, m.Start())

	require.NoError(t, m.Answer(1, 5))
	require.NoError(t, m.Answer(2, 4))

	// earlier question re-answered in place
	require.NoError(t, m.Answer(1, 2))
	assert.Equal(t, State{Phase: models.PhaseQuestion, Step: 3}, m.State())

	require.NoError(t, m.Revisit(2))
	require.NoError(t, m.Answer(2, 1))
	assert.Equal(t, State{Phase: models.PhaseQuestion, Step: 3}, m.State())

	answers := m.Answers()
	assert.Len(t, answers, 2)
	assert.Equal(t, map[int]int{1: 2, 2: 1}, answers)

	assert.ErrorIs(t, m.Revisit(4), ErrInvalidTransition)
	assert.ErrorIs(t, m.Revisit(0), ErrInvalidTransition)
}

func TestResetStartsFreshRun(t *testing.T) {
	qs := sixQuestions()
	m, clock := newTestMachine(t, qs)

	require.NoError(t, m.Start())
	for _, q := range qs {
		require.NoError(t, m.Answer(q.ID, 5))
	}
	clock.Advance(DefaultProcessingDelay)
	waitForPhase(t, m, models.PhaseResult)

	first, err := m.Report()
	require.NoError(t, err)
	assert.Equal(t, 0, first.Integrity)

	require.NoError(t, m.Reset())
	assert.Equal(t, State{Phase: models.PhaseIntro}, m.State())
	assert.Empty(t, m.Answers())

	require.NoError(t, m.Start())
	for _, q := range qs {
		require.NoError(t, m.Answer(q.ID, 1))
	}
	clock.Advance(DefaultProcessingDelay)
	waitForPhase(t, m, models.PhaseResult)

	second, err := m.Report()
	require.NoError(t, err)
	assert.Equal(t, 80, second.Integrity)
	assert.Empty(t, second.Critical)
}

func TestOnChangeSeesEveryTransition(t *testing.T) {
	qs := sixQuestions()[:2]
	clock := clockwork.NewFakeClock()

	seen := make(chan State, 8)
	m, err := NewMachine(qs,
		WithClock(clock),
		WithProcessingDelay(500*time.Millisecond),
		WithOnChange(func(s State) { seen <- s }),
	)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Start())
	require.NoError(t, m.Answer(1, 1))
	require.NoError(t, m.Answer(2, 1))
	clock.Advance(500 * time.Millisecond)
	waitForPhase(t, m, models.PhaseResult)

	want := []State{
		{Phase: models.PhaseQuestion, Step: 1},
		{Phase: models.PhaseQuestion, Step: 2},
		{Phase: models.PhaseProcessing},
		{Phase: models.PhaseResult},
	}
	for _, w := range want {
		select {
		case got := <-seen:
			assert.Equal(t, w, got)
		case <-time.After(time.Second):
			t.Fatalf("missing transition %s", w)
		}
	}
}

func TestSnapshotRestore(t *testing.T) {
	qs := sixQuestions()
	m, clock := newTestMachine(t, qs)
	require.NoError(t, m.Start())
	require.NoError(t, m.Answer(1, 4))
	require.NoError(t, m.Answer(2, 3))

	snap := m.Snapshot()
	assert.Equal(t, models.AssessmentSnapshot{
		Phase:   models.PhaseQuestion,
		Step:    3,
		Answers: map[int]int{1: 4, 2: 3},
	}, snap)

	restored, _ := newTestMachine(t, qs)
	require.NoError(t, restored.Restore(snap))
	assert.Equal(t, m.State(), restored.State())
	assert.Equal(t, m.Answers(), restored.Answers())

	// a processing snapshot resumes the delay
	processing := models.AssessmentSnapshot{Phase: models.PhaseProcessing, Answers: map[int]int{1: 1}}
	require.NoError(t, m.Restore(processing))
	assert.Equal(t, models.PhaseProcessing, m.State().Phase)
	clock.Advance(DefaultProcessingDelay)
	waitForPhase(t, m, models.PhaseResult)

	assert.ErrorIs(t, m.Restore(models.AssessmentSnapshot{Phase: models.PhaseQuestion, Step: 7}), ErrInvalidTransition)
	assert.ErrorIs(t, m.Restore(models.AssessmentSnapshot{Phase: models.PhaseIntro, Answers: map[int]int{42: 1}}), ErrUnknownQuestion)
	assert.ErrorIs(t, m.Restore(models.AssessmentSnapshot{Phase: models.PhaseIntro, Answers: map[int]int{1: 9}}), ErrInvalidValue)
	assert.ErrorIs(t, m.Restore(models.AssessmentSnapshot{Phase: "limbo"}), ErrInvalidTransition)

	require.NoError(t, m.Restore(models.AssessmentSnapshot{}))
	assert.Equal(t, State{Phase: models.PhaseIntro}, m.State())
}

func TestResetDuringStaleTimerIsSafe(t *testing.T) {
	qs := sixQuestions()[:1]
	m, clock := newTestMachine(t, qs)
	require.NoError(t, m.Start())
	require.NoError(t, m.Answer(1, 3))

	// restoring to intro cancels the pending processing timer
	require.NoError(t, m.Restore(models.AssessmentSnapshot{Phase: models.PhaseIntro}))
	clock.Advance(DefaultProcessingDelay * 2)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, State{Phase: models.PhaseIntro}, m.State())
}
