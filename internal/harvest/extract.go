package harvest

import (
	"regexp"
	"strings"
	"time"
)

// streetAddressRe matches a street number followed by a name and an
// optional suffix. County pages abbreviate inconsistently, so the suffix
// list is deliberately broad.
var streetAddressRe = regexp.MustCompile(
	`(?i)\b(\d{1,6})\s+([A-Z][A-Za-z0-9'.]*(?:\s+[A-Z][A-Za-z0-9'.]*){0,4})\s+` +
		`(St|Street|Ave|Avenue|Blvd|Boulevard|Dr|Drive|Rd|Road|Ln|Lane|Ct|Court|Pl|Place|Way|Cir|Circle|Ter|Terrace|Pkwy|Parkway|Hwy|Highway)\b\.?`)

// docketRe matches case/docket numbers like "2024-PR-00123" or "24CV1234".
var docketRe = regexp.MustCompile(`(?i)\b(\d{2,4}[-\s]?(?:PR|CV|ES|TX|FC)[-\s]?\d{3,6})\b`)

// apnRe matches parcel numbers: dot-joined digit groups or a long bare
// digit run. Dash-joined groups are excluded; they collide with ISO dates
// and docket numbers.
var apnRe = regexp.MustCompile(`\b(\d{2,5}\.\d{2,5}(?:\.\d{1,5}){0,2}|\d{8,14})\b`)

// estateOfRe pulls the decedent name from probate docket captions.
var estateOfRe = regexp.MustCompile(`(?i)(?:in re:?\s+)?(?:the\s+)?estate of:?\s+([A-Z][A-Za-z'.-]+(?:\s+[A-Z][A-Za-z'.-]+){0,3})`)

// ExtractAddress returns the first street address found in text, or "".
func ExtractAddress(text string) string {
	m := streetAddressRe.FindString(text)
	return strings.TrimSpace(m)
}

// ExtractDocket returns the first case/docket number found in text, or "".
func ExtractDocket(text string) string {
	m := docketRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(m[1]))
}

// ExtractAPN returns the first parcel-number-shaped token found, or "".
func ExtractAPN(text string) string {
	return apnRe.FindString(text)
}

// ExtractPartyName pulls a person name from a probate caption. Falls back
// to "" when no caption shape matches.
func ExtractPartyName(text string) string {
	m := estateOfRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// dateLayouts are tried in order; county feeds are not consistent.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"02-Jan-2006",
}

// ParseDate parses raw against the known layouts; unparseable or empty
// input falls back to now so a record is never dropped over a date.
func ParseDate(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return now
}
