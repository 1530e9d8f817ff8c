package models

// View is one named full-page mode of the site, selected via the location fragment
type View string

const (
	ViewHome       View = "home"
	ViewPhilosophy View = "philosophy"
	ViewJournal    View = "journal"
	ViewLibrary    View = "library"
	ViewContact    View = "contact"
	ViewCommunity  View = "community"
	ViewLanding    View = "landing"
	ViewCheckout   View = "checkout"
)

// DefaultView is where empty and unknown fragments are redirected
const DefaultView = ViewHome

// Views lists every valid view in navigation order
var Views = []View{
	ViewHome,
	ViewPhilosophy,
	ViewJournal,
	ViewLibrary,
	ViewContact,
	ViewCommunity,
	ViewLanding,
	ViewCheckout,
}

// ParseView returns the view named by s and whether it is a valid view
func ParseView(s string) (View, bool) {
	for _, v := range Views {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// IsValid reports whether v belongs to the fixed set of views
func (v View) IsValid() bool {
	_, ok := ParseView(string(v))
	return ok
}

// Fragment returns the location fragment that selects this view ("#home")
func (v View) Fragment() string {
	return "#" + string(v)
}
