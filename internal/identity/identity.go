// Package identity derives stable identifiers for vocabulary items.
//
// The identifier of an item is a pure function of its normalized text
// and normalized source URL, so collecting the same word twice from the
// same page collapses to the same record regardless of case or
// incidental formatting.
package identity

import (
	"net/url"
	"strings"
	"unicode"
)

// Separator joins the normalized text and URL parts of an identifier.
const Separator = "::"

// Normalize lower-cases text, trims it, collapses internal whitespace
// and strips characters outside word characters, whitespace and hyphen.
// It is total and idempotent.
func Normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeURL reduces a URL to host + path + query, dropping the
// scheme and a trailing slash on the path. When the input does not
// parse as an absolute URL the trimmed original is returned unchanged;
// the fallback keeps DeriveID total and idempotent.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	normalized := u.Host + strings.TrimSuffix(u.Path, "/")
	if u.RawQuery != "" {
		normalized += "?" + u.RawQuery
	}
	return normalized
}

// DeriveID computes the stable identifier for a (text, source URL)
// pair. Applying it to already-normalized inputs yields the same id.
func DeriveID(text, sourceURL string) string {
	return Normalize(text) + Separator + NormalizeURL(sourceURL)
}
