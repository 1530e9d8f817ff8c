package models

// Language is a supported UI language code
type Language string

const (
	LangEN Language = "en"
	LangRU Language = "ru"
)

// DefaultLanguage is used when nothing else was negotiated
const DefaultLanguage = LangEN

// Languages lists every supported language, default first
var Languages = []Language{LangEN, LangRU}

// ParseLanguage returns the language for code and whether it is supported
func ParseLanguage(code string) (Language, bool) {
	for _, l := range Languages {
		if string(l) == code {
			return l, true
		}
	}
	return "", false
}

// Theme is the site color scheme
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// DefaultTheme matches the landing page's original look
const DefaultTheme = ThemeDark

// ParseTheme returns the theme named by s and whether it is supported
func ParseTheme(s string) (Theme, bool) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), true
	}
	return "", false
}

// LocalizedText carries one mandatory string per supported language
type LocalizedText struct {
	EN string `json:"en" yaml:"en" validate:"required"`
	RU string `json:"ru" yaml:"ru" validate:"required"`
}

// Get returns the text for lang, falling back to English
func (t LocalizedText) Get(lang Language) string {
	if lang == LangRU {
		return t.RU
	}
	return t.EN
}
