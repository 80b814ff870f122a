package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Grammar ids of the natural-language approximations in the CoLAG domain.
const (
	English  = 611
	French   = 584
	German   = 2253
	Japanese = 3856
)

var languageNames = map[string]int{
	"english":  English,
	"french":   French,
	"german":   German,
	"japanese": Japanese,
}

// DefaultLanguages returns the grammars swept when none are configured.
func DefaultLanguages() []int {
	return []int{English, French, German, Japanese}
}

// ParseLanguage resolves a language name (case-insensitive) or a numeric
// grammar id.
func ParseLanguage(s string) (int, error) {
	s = strings.TrimSpace(s)
	if id, ok := languageNames[strings.ToLower(s)]; ok {
		return id, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("unknown language %q (valid: %s, or a grammar id)", s, strings.Join(LanguageNames(), ", "))
	}
	return id, nil
}

// ParseLanguages resolves every entry of names.
func ParseLanguages(names []string) ([]int, error) {
	ids := make([]int, 0, len(names))
	for _, n := range names {
		id, err := ParseLanguage(n)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LanguageName returns the name of a known grammar id, or the id itself.
func LanguageName(id int) string {
	for name, v := range languageNames {
		if v == id {
			return strings.ToUpper(name[:1]) + name[1:]
		}
	}
	return strconv.Itoa(id)
}

// LanguageNames returns the known language names, sorted.
func LanguageNames() []string {
	names := make([]string, 0, len(languageNames))
	for n := range languageNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
