package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Fold lowercases s and strips diacritics, so "Vinho Rosé" and "vinho rose"
// compare equal. Used for accent-insensitive search.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// Generate creates a URL-friendly slug from name.
//
//	"Vinhos Tintos"      → "vinhos-tintos"
//	"Espumante Brut Rosé" → "espumante-brut-rose"
func Generate(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(Fold(name), "-"), "-")
}

// Contains reports whether needle occurs in haystack ignoring case and
// accents. An empty needle always matches.
func Contains(haystack, needle string) bool {
	return strings.Contains(Fold(haystack), Fold(needle))
}
