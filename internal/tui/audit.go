package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/assessment"
	"github.com/terra-clan/humanarch/internal/models"
)

// DefaultPollInterval is how often the model checks a processing assessment
const DefaultPollInterval = 100 * time.Millisecond

// Assessor drives one assessment. *app.Shell satisfies it.
type Assessor interface {
	StartAssessment() error
	Answer(questionID, value int) error
	RevisitQuestion(step int) error
	ResetAssessment() error
	Assessment() app.AssessmentView
}

// Translator resolves UI strings
type Translator interface {
	T(key string, lang models.Language) string
}

type pollMsg struct{}

// AuditModel is the bubbletea model of the audit screen
type AuditModel struct {
	assessor Assessor
	text     Translator
	lang     models.Language
	styles   Styles
	progress progress.Model
	view     app.AssessmentView
	err      error
	width    int
	poll     time.Duration
	quitting bool
}

// NewAuditModel creates the audit screen over assessor
func NewAuditModel(assessor Assessor, text Translator, lang models.Language, theme models.Theme) AuditModel {
	p := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	p.Width = 40

	return AuditModel{
		assessor: assessor,
		text:     text,
		lang:     lang,
		styles:   NewStyles(theme),
		progress: p,
		view:     assessor.Assessment(),
		width:    80,
		poll:     DefaultPollInterval,
	}
}

// WithPollInterval overrides how often a processing assessment is checked
func (m AuditModel) WithPollInterval(d time.Duration) AuditModel {
	if d > 0 {
		m.poll = d
	}
	return m
}

// Phase returns the phase last observed
func (m AuditModel) Phase() models.AssessmentPhase {
	return m.view.Phase
}

// Err returns the last rejected action, if any
func (m AuditModel) Err() error {
	return m.err
}

// Init implements tea.Model
func (m AuditModel) Init() tea.Cmd {
	if m.view.Phase == models.PhaseProcessing {
		return m.pollCmd()
	}
	return nil
}

// Update implements tea.Model
func (m AuditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(msg.Width-24, 60)
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}
		return m, nil

	case pollMsg:
		m.view = m.assessor.Assessment()
		if m.view.Phase == models.PhaseProcessing {
			return m, m.pollCmd()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m AuditModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" || key == "esc" {
		m.quitting = true
		return m, tea.Quit
	}

	m.err = nil
	switch m.view.Phase {
	case models.PhaseIntro:
		if key == "enter" || key == " " {
			m.err = m.assessor.StartAssessment()
		}

	case models.PhaseQuestion:
		switch key {
		case "1", "2", "3", "4", "5":
			value, _ := strconv.Atoi(key)
			if m.view.Question != nil {
				m.err = m.assessor.Answer(m.view.Question.ID, value)
			}
		case "left", "backspace", "b":
			if m.view.Step > 1 {
				m.err = m.assessor.RevisitQuestion(m.view.Step - 1)
			}
		}

	case models.PhaseResult:
		if key == "r" || key == "enter" {
			m.err = m.assessor.ResetAssessment()
		}
	}

	m.view = m.assessor.Assessment()
	if m.view.Phase == models.PhaseProcessing {
		return m, m.pollCmd()
	}
	return m, nil
}

func (m AuditModel) pollCmd() tea.Cmd {
	return tea.Tick(m.poll, func(time.Time) tea.Msg { return pollMsg{} })
}

// View implements tea.Model
func (m AuditModel) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch m.view.Phase {
	case models.PhaseIntro:
		body = m.viewIntro()
	case models.PhaseQuestion:
		body = m.viewQuestion()
	case models.PhaseProcessing:
		body = m.styles.Accent.Render(m.t("audit.processing"))
	case models.PhaseResult:
		body = m.viewResult()
	}

	if m.err != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, "", m.styles.Error.Render(m.err.Error()))
	}

	footer := m.styles.Muted.Render("q: quit")
	return m.styles.Frame.Render(lipgloss.JoinVertical(lipgloss.Left, body, "", footer))
}

func (m AuditModel) viewIntro() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Title.Render(m.t("audit.start")),
		m.styles.Body.Render(m.t("audit.intro")),
		"",
		m.styles.Muted.Render("enter: "+m.t("audit.start")),
	)
}

func (m AuditModel) viewQuestion() string {
	if m.view.Question == nil {
		return ""
	}
	q := m.view.Question

	counter := m.styles.Muted.Render(fmt.Sprintf("%d / %d  %s", m.view.Step, m.view.Total, q.Category))
	bar := m.progress.ViewAs(float64(m.view.Step-1) / float64(m.view.Total))

	var scale strings.Builder
	for v := assessment.MinValue; v <= assessment.MaxValue; v++ {
		label := strconv.Itoa(v)
		if prev, ok := m.view.Answers[q.ID]; ok && prev == v {
			label = m.styles.Accent.Render("[" + label + "]")
		} else {
			label = " " + label + " "
		}
		scale.WriteString(label + " ")
	}

	hint := fmt.Sprintf("1 = %s   5 = %s", m.t("audit.scale.1"), m.t("audit.scale.5"))

	return lipgloss.JoinVertical(lipgloss.Left,
		counter,
		bar,
		"",
		m.styles.Body.Render(q.Text.Get(m.lang)),
		"",
		scale.String(),
		m.styles.Muted.Render(hint),
	)
}

func (m AuditModel) viewResult() string {
	report := m.view.Report
	if report == nil {
		return ""
	}

	lines := []string{
		m.styles.Title.Render(fmt.Sprintf("%s: %d%%", m.t("audit.integrity"), report.Integrity)),
	}

	for _, cs := range report.Scores {
		status := m.styles.Stable.Render(m.t("audit.stable"))
		if cs.Critical {
			status = m.styles.Critical.Render(m.t("audit.critical"))
		}
		lines = append(lines, fmt.Sprintf("%-11s %s %3.0f%%  %s",
			cs.Category, m.progress.ViewAs(cs.HealthPct/100), cs.HealthPct, status))
	}

	for _, p := range m.view.Diagnosis {
		lines = append(lines, "",
			m.styles.Critical.Render(string(p.Category)),
			m.styles.Body.Render(p.Prescription.Get(m.lang)),
			m.styles.Accent.Render(p.Action.Get(m.lang)),
			m.styles.Muted.Render(p.Reference),
		)
	}

	lines = append(lines, "", m.styles.Muted.Render("r: "+m.t("audit.reaudit")))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m AuditModel) t(key string) string {
	if m.text == nil {
		return key
	}
	return m.text.T(key, m.lang)
}
