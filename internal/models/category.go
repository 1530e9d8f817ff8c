package models

// Category is one of the four pillars a question is tagged with
type Category string

const (
	CategoryFoundation Category = "Foundation" // body
	CategoryStructure  Category = "Structure"  // mind
	CategoryInterior   Category = "Interior"   // spirit
	CategoryExterior   Category = "Exterior"   // social
)

// Categories lists the pillars in display order
var Categories = []Category{
	CategoryFoundation,
	CategoryStructure,
	CategoryInterior,
	CategoryExterior,
}

// CategoryDomains maps each pillar to the life-domain it measures
var CategoryDomains = map[Category]string{
	CategoryFoundation: "body",
	CategoryStructure:  "mind",
	CategoryInterior:   "spirit",
	CategoryExterior:   "social",
}

// ParseCategory returns the category named by s and whether it exists
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}
