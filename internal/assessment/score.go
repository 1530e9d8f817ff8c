package assessment

import (
	"math"

	"github.com/terra-clan/humanarch/internal/models"
)

// CriticalThreshold is the health percentage below which a category is critical
const CriticalThreshold = 60.0

// CategoryScore is the derived score of one pillar
type CategoryScore struct {
	Category    models.Category `json:"category"`
	Questions   int             `json:"questions"`
	Raw         int             `json:"raw"`
	MaxPossible int             `json:"max_possible"`
	ProblemPct  float64         `json:"problem_pct"`
	HealthPct   float64         `json:"health_pct"`
	Critical    bool            `json:"critical"`
}

// Report is the scored outcome of an assessment
type Report struct {
	Scores    []CategoryScore   `json:"scores"`
	Integrity int               `json:"integrity"`
	Critical  []models.Category `json:"critical"`
}

// Score aggregates answers per category.
//
// A category with no questions has no meaningful ratio; it reports 100%
// health, is never critical and is left out of the integrity mean.
// Unanswered questions count as 0.
func Score(questions []models.Question, answers map[int]int) Report {
	raw := make(map[models.Category]int, len(models.Categories))
	count := make(map[models.Category]int, len(models.Categories))
	for _, q := range questions {
		count[q.Category]++
		raw[q.Category] += answers[q.ID]
	}

	report := Report{
		Scores:   make([]CategoryScore, 0, len(models.Categories)),
		Critical: []models.Category{},
	}

	var healthSum float64
	var scored int
	for _, cat := range models.Categories {
		cs := CategoryScore{
			Category:    cat,
			Questions:   count[cat],
			Raw:         raw[cat],
			MaxPossible: MaxValue * count[cat],
		}

		if cs.MaxPossible == 0 {
			cs.HealthPct = 100
		} else {
			cs.ProblemPct = float64(cs.Raw) / float64(cs.MaxPossible) * 100
			cs.HealthPct = 100 - cs.ProblemPct
			cs.Critical = cs.HealthPct < CriticalThreshold
			healthSum += cs.HealthPct
			scored++
		}

		if cs.Critical {
			report.Critical = append(report.Critical, cat)
		}
		report.Scores = append(report.Scores, cs)
	}

	if scored > 0 {
		report.Integrity = int(math.Round(healthSum / float64(scored)))
	} else {
		report.Integrity = 100
	}

	return report
}

// ScoreFor returns the score of cat, if present
func (r *Report) ScoreFor(cat models.Category) (CategoryScore, bool) {
	for _, cs := range r.Scores {
		if cs.Category == cat {
			return cs, true
		}
	}
	return CategoryScore{}, false
}

// PrescriptionSource looks up the diagnosis triple of a category
type PrescriptionSource interface {
	Prescription(cat models.Category) (models.Prescription, bool)
}

// Diagnose returns the prescriptions of the critical categories, in
// category order. Categories without a prescription are skipped.
func Diagnose(r *Report, src PrescriptionSource) []models.Prescription {
	out := make([]models.Prescription, 0, len(r.Critical))
	for _, cat := range r.Critical {
		if p, ok := src.Prescription(cat); ok {
			out = append(out, p)
		}
	}
	return out
}
