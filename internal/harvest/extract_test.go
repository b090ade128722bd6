package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExtractAddress(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"simple", "sale of 4188 E Pinecrest Rd at auction", "4188 E Pinecrest Rd"},
		{"avenue", "commonly known as 912 W Augusta Ave, Spokane", "912 W Augusta Ave"},
		{"boulevard", "situs 12 N Altamont Blvd", "12 N Altamont Blvd"},
		{"no address", "legal description only, lot 7 block 2", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAddress(tt.text))
		})
	}
}

func TestExtractDocket(t *testing.T) {
	assert.Equal(t, "2025-PR-00341", ExtractDocket("In Re: Estate, case 2025-PR-00341 filed"))
	assert.Equal(t, "2025-FC-00481", ExtractDocket("Case 2025-FC-00481. Trustee sale."))
	assert.Equal(t, "", ExtractDocket("no case number here"))
}

func TestExtractAPN(t *testing.T) {
	assert.Equal(t, "35242.1207", ExtractAPN("Parcel 35242.1207 situs Spokane"))
	assert.Equal(t, "123456789", ExtractAPN("APN 123456789"))
	// ISO dates must not be mistaken for parcels.
	assert.Equal(t, "", ExtractAPN("filed 2025-08-12"))
}

func TestExtractPartyName(t *testing.T) {
	assert.Equal(t, "MARGARET L WHITFIELD", ExtractPartyName("In Re: Estate of MARGARET L WHITFIELD"))
	assert.Equal(t, "ROBERT DEAN OKAFOR", ExtractPartyName("Estate of ROBERT DEAN OKAFOR, Deceased"))
	assert.Equal(t, "", ExtractPartyName("Guardianship matter, sealed"))
}

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2025-08-12", time.Date(2025, 8, 12, 0, 0, 0, 0, time.UTC)},
		{"08/14/2025", time.Date(2025, 8, 14, 0, 0, 0, 0, time.UTC)},
		{"January 2, 2025", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"", now},
		{"not a date", now},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseDate(tt.raw, now), tt.raw)
	}
}
