package content

import (
	"golang.org/x/text/language"

	"github.com/terra-clan/humanarch/internal/models"
)

var matcher = language.NewMatcher([]language.Tag{
	language.English, // first entry is the fallback
	language.Russian,
})

// NegotiateLanguage picks the best supported language for an
// Accept-Language header value. Malformed headers yield the default.
func NegotiateLanguage(acceptLanguage string) models.Language {
	if acceptLanguage == "" {
		return models.DefaultLanguage
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return models.DefaultLanguage
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return models.DefaultLanguage
	}
	return models.Languages[idx]
}

// T returns the translation of key in lang, or the key itself when missing
func (l *Loader) T(key string, lang models.Language) string {
	l.mu.RLock()
	text, ok := l.translations[key]
	l.mu.RUnlock()
	if !ok {
		return key
	}
	return text.Get(lang)
}

// Translations returns every key rendered in lang
func (l *Loader) Translations(lang models.Language) map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]string, len(l.translations))
	for k, v := range l.translations {
		out[k] = v.Get(lang)
	}
	return out
}
