package router

// Location is the navigable location state the router reads and writes:
// the URL fragment and the scroll position.
type Location interface {
	Fragment() string
	SetFragment(fragment string)
	ScrollToTop()
}

// Notifier is implemented by locations that announce fragment changes,
// the way a browser fires hashchange.
type Notifier interface {
	OnChange(fn func())
}

// MemoryLocation is an in-process Location. It is not safe for concurrent
// use; callers serialize access (the app shell holds its own lock).
type MemoryLocation struct {
	fragment  string
	scrollY   int
	writes    int
	scrolls   int
	listeners []func()
}

// NewMemoryLocation creates a location positioned at fragment
func NewMemoryLocation(fragment string) *MemoryLocation {
	return &MemoryLocation{fragment: fragment}
}

// Fragment returns the current fragment including the leading '#'
func (l *MemoryLocation) Fragment() string {
	return l.fragment
}

// SetFragment writes the fragment and notifies listeners if it changed
func (l *MemoryLocation) SetFragment(fragment string) {
	l.writes++
	if fragment == l.fragment {
		return
	}
	l.fragment = fragment
	for _, fn := range l.listeners {
		fn()
	}
}

// ScrollToTop resets the scroll position
func (l *MemoryLocation) ScrollToTop() {
	l.scrolls++
	l.scrollY = 0
}

// ScrollTo moves the scroll position, as user scrolling would
func (l *MemoryLocation) ScrollTo(y int) {
	l.scrollY = y
}

// ScrollY returns the current scroll position
func (l *MemoryLocation) ScrollY() int {
	return l.scrollY
}

// Writes returns how many times the fragment has been written
func (l *MemoryLocation) Writes() int {
	return l.writes
}

// Scrolls returns how many times the scroll position was reset
func (l *MemoryLocation) Scrolls() int {
	return l.scrolls
}

// OnChange registers fn to run after every fragment change
func (l *MemoryLocation) OnChange(fn func()) {
	l.listeners = append(l.listeners, fn)
}
