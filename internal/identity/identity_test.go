package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCounty(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback string
		expected string
	}{
		{"suffix stripped", "Spokane County", "", "Spokane"},
		{"lowercase suffix", "spokane county", "", "Spokane"},
		{"all caps no suffix", "SPOKANE", "", "Spokane"},
		{"two-word county", "king william county", "", "King William"},
		{"extra whitespace", "  Pierce   County  ", "", "Pierce"},
		{"empty uses fallback", "", "Unknown", "Unknown"},
		{"suffix only uses fallback", "County", "Unknown", "Unknown"},
		{"whitespace uses fallback", "   ", "Default", "Default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCounty(tt.raw, tt.fallback))
		})
	}
}

func TestNormalizeCounty_Collapses(t *testing.T) {
	variants := []string{"Spokane County", "spokane county", "SPOKANE", "spokane"}
	for _, v := range variants {
		assert.Equal(t, "Spokane", NormalizeCounty(v, ""), "variant %q", v)
	}
}

func TestNormalizeAPN(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"12345-67-890", "1234567890"},
		{"12345.67.890", "1234567890"},
		{"12345 67 890", "1234567890"},
		{"ab-123/c", "AB123C"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, NormalizeAPN(tt.raw), "raw %q", tt.raw)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("12345", "Spokane County", "pre_foreclosure", "notices")
	b := Fingerprint("12-345", "spokane", "pre_foreclosure", "notices")
	assert.Equal(t, a, b, "normalized variants of the same event must collide")
	assert.Len(t, a, 64)
}

func TestFingerprint_DistinguishesTuple(t *testing.T) {
	base := Fingerprint("12345", "Spokane", "pre_foreclosure", "notices")
	assert.NotEqual(t, base, Fingerprint("12346", "Spokane", "pre_foreclosure", "notices"))
	assert.NotEqual(t, base, Fingerprint("12345", "Pierce", "pre_foreclosure", "notices"))
	assert.NotEqual(t, base, Fingerprint("12345", "Spokane", "tax_lien", "notices"))
	assert.NotEqual(t, base, Fingerprint("12345", "Spokane", "pre_foreclosure", "taxroll"))
}
