package assessment

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/humanarch/internal/models"
)

func TestScoreTwoCategoryExample(t *testing.T) {
	qs := []models.Question{
		{ID: 1, Category: models.CategoryFoundation},
		{ID: 2, Category: models.CategoryFoundation},
		{ID: 3, Category: models.CategoryStructure},
		{ID: 4, Category: models.CategoryStructure},
	}
	answers := map[int]int{1: 5, 2: 5, 3: 1, 4: 1}

	r := Score(qs, answers)

	a, ok := r.ScoreFor(models.CategoryFoundation)
	require.True(t, ok)
	b, ok := r.ScoreFor(models.CategoryStructure)
	require.True(t, ok)

	assert.Equal(t, 10, a.MaxPossible)
	assert.InDelta(t, 0, a.HealthPct, 1e-9)
	assert.InDelta(t, 100, a.ProblemPct, 1e-9)
	assert.True(t, a.Critical)

	assert.Equal(t, 2, b.Raw)
	assert.InDelta(t, 80, b.HealthPct, 1e-9)
	assert.False(t, b.Critical)

	assert.Equal(t, 40, r.Integrity)
	assert.Equal(t, []models.Category{models.CategoryFoundation}, r.Critical)
}

func TestScoreZeroQuestionCategoryIsHealthy(t *testing.T) {
	qs := []models.Question{{ID: 1, Category: models.CategoryInterior}}

	r := Score(qs, map[int]int{1: 4})

	ext, ok := r.ScoreFor(models.CategoryExterior)
	require.True(t, ok)
	assert.Equal(t, CategoryScore{Category: models.CategoryExterior, HealthPct: 100}, ext)

	in, _ := r.ScoreFor(models.CategoryInterior)
	assert.InDelta(t, 20, in.HealthPct, 1e-9)
	assert.Equal(t, 20, r.Integrity)
	assert.Equal(t, []models.Category{models.CategoryInterior}, r.Critical)
}

func TestScoreHealthAndProblemSumTo100(t *testing.T) {
	qs := sixQuestions()
	for v := MinValue; v <= MaxValue; v++ {
		answers := map[int]int{}
		for _, q := range qs {
			answers[q.ID] = v
		}
		r := Score(qs, answers)
		for _, cs := range r.Scores {
			assert.InDelta(t, 100, cs.HealthPct+cs.ProblemPct, 1e-9, "category %s value %d", cs.Category, v)
		}
	}
}

func TestScoreFourPillars(t *testing.T) {
	qs := sixQuestions()
	// Foundation: 1,5 -> 4+4 of 10 -> 20% health; Structure: 2,6 -> 1+2 of 10 -> 70%
	// Interior: 3 -> 3 of 5 -> 40%; Exterior: 4 -> 1 of 5 -> 80%
	answers := map[int]int{1: 4, 2: 1, 3: 3, 4: 1, 5: 4, 6: 2}

	r := Score(qs, answers)

	got := map[models.Category]float64{}
	for _, cs := range r.Scores {
		got[cs.Category] = cs.HealthPct
	}
	want := map[models.Category]float64{
		models.CategoryFoundation: 20,
		models.CategoryStructure:  70,
		models.CategoryInterior:   40,
		models.CategoryExterior:   80,
	}
	approx := cmp.Comparer(func(x, y float64) bool { return x-y < 1e-9 && y-x < 1e-9 })
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 53, r.Integrity) // (20+70+40+80)/4 = 52.5
	assert.Equal(t, []models.Category{models.CategoryFoundation, models.CategoryInterior}, r.Critical)
}

type prescriptionMap map[models.Category]models.Prescription

func (p prescriptionMap) Prescription(cat models.Category) (models.Prescription, bool) {
	v, ok := p[cat]
	return v, ok
}

func TestDiagnose(t *testing.T) {
	src := prescriptionMap{
		models.CategoryFoundation: {Category: models.CategoryFoundation, Reference: "Vol. I"},
		models.CategoryStructure:  {Category: models.CategoryStructure, Reference: "Vol. II"},
	}
	r := &Report{Critical: []models.Category{models.CategoryFoundation, models.CategoryExterior}}

	got := Diagnose(r, src)

	require.Len(t, got, 1)
	assert.Equal(t, "Vol. I", got[0].Reference)
	assert.Empty(t, Diagnose(&Report{}, src))
}
