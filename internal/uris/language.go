package uris

import "fmt"

// Language is the closed enum of document/notation languages flams knows
// about. The zero value is not a valid Language; use LanguageEnglish as the
// default per spec §3 "Identifiers".
type Language uint8

const (
	_ Language = iota
	LanguageEnglish
	LanguageGerman
	LanguageFrench
	LanguageRomanian
	LanguageArabic
	LanguageBulgarian
	LanguageRussian
	LanguageFinnish
	LanguageTurkish
	LanguageSlovenian
	LanguageChinese
)

// DefaultLanguage is used whenever a URI's language component is omitted.
const DefaultLanguage = LanguageEnglish

var languageNames = map[Language]string{
	LanguageEnglish:   "en",
	LanguageGerman:    "de",
	LanguageFrench:    "fr",
	LanguageRomanian:  "ro",
	LanguageArabic:    "ar",
	LanguageBulgarian: "bg",
	LanguageRussian:   "ru",
	LanguageFinnish:   "fi",
	LanguageTurkish:   "tr",
	LanguageSlovenian: "sl",
	LanguageChinese:   "zh",
}

var languagesByName = func() map[string]Language {
	m := make(map[string]Language, len(languageNames))
	for l, s := range languageNames {
		m[s] = l
	}
	return m
}()

// String returns the two-letter code for l.
func (l Language) String() string {
	if s, ok := languageNames[l]; ok {
		return s
	}
	return "en"
}

// ParseLanguage parses a two-letter language code. Unknown codes are an
// error rather than silently defaulting, so callers at a trust boundary
// can reject bad input per the error-handling taxonomy (§7 InvalidArgument).
func ParseLanguage(s string) (Language, error) {
	if s == "" {
		return DefaultLanguage, nil
	}
	if l, ok := languagesByName[s]; ok {
		return l, nil
	}
	return 0, fmt.Errorf("uris: unknown language %q", s)
}
