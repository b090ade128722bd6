// Package identity canonicalizes property keys and fingerprints distress
// events. Every county and APN entering a Property or DistressEvent key
// must pass through this package so that all sources collapse to the same
// golden identity.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

// NormalizeCounty strips a trailing "county" suffix, trims, and
// title-cases each token, so "Spokane County", "spokane county", and
// "SPOKANE" collapse to "Spokane". Returns fallback on empty input.
func NormalizeCounty(raw, fallback string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return fallback
	}
	lower := strings.ToLower(s)
	if strings.HasSuffix(lower, "county") {
		s = strings.TrimSpace(s[:len(s)-len("county")])
	}
	if s == "" {
		return fallback
	}
	tokens := strings.Fields(s)
	for i, t := range tokens {
		tokens[i] = titleCaser.String(strings.ToLower(t))
	}
	return strings.Join(tokens, " ")
}

// NormalizeAPN strips non-alphanumeric separators and uppercases. Sources
// format parcel numbers inconsistently ("12345-67-890", "12345.67.890",
// "12345 67 890"); all collapse to the same key component.
func NormalizeAPN(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		}
	}
	return b.String()
}

// Fingerprint returns the content-addressed hash for a distress event:
// sha256 over the normalized (apn, county, eventType, source) tuple.
// Identical logical events from the same source always hash identically.
func Fingerprint(apn, county, eventType, source string) string {
	joined := strings.Join([]string{
		NormalizeAPN(apn),
		NormalizeCounty(county, ""),
		strings.ToLower(strings.TrimSpace(eventType)),
		strings.ToLower(strings.TrimSpace(source)),
	}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
