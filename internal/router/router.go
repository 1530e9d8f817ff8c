// Package router maps the location fragment to one of the fixed site views.
//
// Unknown and empty fragments are never errors: they are redirected to the
// default view by rewriting the fragment. The fragment is only written when
// it differs from the desired value, so evaluation converges after at most
// one redirect.
package router

import (
	"net/url"
	"strings"

	"github.com/terra-clan/humanarch/internal/models"
)

// Signals are the recognized hints carried in the fragment's query part
type Signals struct {
	ScrollToAssessment bool
	ProductID          string
}

// Result describes one evaluation of the location
type Result struct {
	View       models.View
	Signals    Signals
	Redirected bool
}

// Router tracks the current view of one location
type Router struct {
	loc        Location
	current    models.View
	signals    Signals
	notified   bool
	redirected bool
	fragment   string
	onChange   func(models.View, Signals)
}

// New creates a router over loc. If loc implements Notifier, the router
// subscribes to fragment changes and re-evaluates on each one.
func New(loc Location) *Router {
	r := &Router{loc: loc}
	if n, ok := loc.(Notifier); ok {
		n.OnChange(r.handleChange)
		r.notified = true
	}
	return r
}

// OnViewChange registers fn to run after each evaluation that changes the
// view, its signals or the fragment
func (r *Router) OnViewChange(fn func(models.View, Signals)) {
	r.onChange = fn
}

// Current returns the current view (empty before the first evaluation)
func (r *Router) Current() models.View {
	return r.current
}

// Signals returns the query signals of the last evaluation
func (r *Router) Signals() Signals {
	return r.signals
}

// Evaluate reads the location fragment and updates the current view,
// redirecting to the default view when the fragment names no valid view.
func (r *Router) Evaluate() Result {
	r.redirected = false
	r.evaluate()
	return Result{View: r.current, Signals: r.signals, Redirected: r.redirected}
}

// Navigate points the location at view and evaluates it
func (r *Router) Navigate(view models.View) Result {
	return r.Visit(view.Fragment())
}

// Visit writes a raw fragment to the location, as a user following a link
// would, and returns the resulting evaluation.
func (r *Router) Visit(fragment string) Result {
	r.redirected = false
	if r.loc.Fragment() != fragment {
		r.loc.SetFragment(fragment)
		if r.notified {
			return Result{View: r.current, Signals: r.signals, Redirected: r.redirected}
		}
	}
	r.evaluate()
	return Result{View: r.current, Signals: r.signals, Redirected: r.redirected}
}

func (r *Router) handleChange() {
	r.evaluate()
}

func (r *Router) evaluate() {
	name, query := Split(r.loc.Fragment())

	view, ok := models.ParseView(name)
	if !ok {
		r.redirected = true
		target := models.DefaultView.Fragment()
		if r.loc.Fragment() != target {
			r.loc.SetFragment(target)
			if r.notified {
				// the change notification already evaluated the default view
				return
			}
		}
		view = models.DefaultView
		query = ""
	}

	signals := ParseSignals(query)
	fragment := r.loc.Fragment()
	changed := view != r.current || signals != r.signals || fragment != r.fragment

	r.current = view
	r.signals = signals
	r.fragment = fragment
	r.loc.ScrollToTop()

	if changed && r.onChange != nil {
		r.onChange(r.current, r.signals)
	}
}

// Split separates a raw fragment into the view name and the query part.
// A leading '#' is ignored.
func Split(fragment string) (name, query string) {
	fragment = strings.TrimPrefix(fragment, "#")
	name, query, _ = strings.Cut(fragment, "?")
	return name, query
}

// ParseSignals loosely parses the fragment query. Malformed input yields
// whatever could be parsed; unknown keys are ignored.
func ParseSignals(query string) Signals {
	var s Signals
	if query == "" {
		return s
	}

	values, _ := url.ParseQuery(query)
	if values == nil {
		return s
	}

	if section := values.Get("section"); section == "assessment" || section == "audit" {
		s.ScrollToAssessment = true
	}
	if values.Has("assessment") || values.Has("audit") {
		s.ScrollToAssessment = true
	}
	s.ProductID = values.Get("product")

	return s
}
