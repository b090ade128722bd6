package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func fixtureServer(t *testing.T, path, contentType string) *httptest.Server {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNoticesSource_Crawl(t *testing.T) {
	srv := fixtureServer(t, "testdata/notices.html", "text/html")
	src := NewNoticesSource(NoticesConfig{URL: srv.URL, County: "Spokane", State: "WA"})

	records, err := src.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, model.EventPreForeclosure, first.Type)
	assert.Equal(t, "county_notices", first.Source)
	assert.Equal(t, "JOHN A MERRIWEATHER", first.OwnerName)
	assert.Equal(t, "35242.1207", first.APN)
	assert.Equal(t, "4188 E Pinecrest Rd", first.Street)
	assert.Equal(t, "Spokane", first.County)
	assert.Equal(t, time.Date(2025, 8, 12, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "/notices/2025-FC-00481", first.SourceLink)
	assert.Equal(t, 9.0, first.Severity)

	// Second notice has no structured cells; extraction falls back to text.
	second := records[1]
	assert.Equal(t, "26354.0018", second.APN)
	assert.Equal(t, "912 W Augusta Ave", second.Street)

	// Third notice has no situs address but is still emitted.
	third := records[2]
	assert.Equal(t, "45091.0233", third.APN)
	assert.Empty(t, third.Street)
}

func TestTaxRollSource_Crawl(t *testing.T) {
	srv := fixtureServer(t, "testdata/taxroll.json", "application/json")
	src := NewTaxRollSource(TaxRollConfig{URL: srv.URL, County: "Spokane", State: "WA"})

	records, err := src.Crawl(context.Background())
	require.NoError(t, err)
	// The entry with no parcel number is dropped.
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, model.EventTaxLien, first.Type)
	assert.Equal(t, "county_taxroll", first.Source)
	assert.Equal(t, "35242.1207", first.APN)
	assert.Equal(t, 7.0, first.Severity) // 4 + 3 years
	assert.Equal(t, 8214.55, first.Raw["amount_due"])

	// Severity caps at 8 regardless of years delinquent.
	last := records[2]
	assert.Equal(t, 8.0, last.Severity)
}

func TestTaxRollSource_MinDelinquentFilter(t *testing.T) {
	srv := fixtureServer(t, "testdata/taxroll.json", "application/json")
	src := NewTaxRollSource(TaxRollConfig{URL: srv.URL, County: "Spokane", MinDelinquent: 1000})

	records, err := src.Crawl(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.GreaterOrEqual(t, rec.Raw["amount_due"].(float64), 1000.0)
	}
}

func TestProbateSource_Crawl(t *testing.T) {
	srv := fixtureServer(t, "testdata/probate.html", "text/html")
	src := NewProbateSource(ProbateConfig{URL: srv.URL, County: "Spokane", State: "WA"})

	records, err := src.Crawl(context.Background())
	require.NoError(t, err)
	// Three rows carry docket numbers; the ADMIN row does not.
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, model.EventProbate, first.Type)
	assert.Equal(t, "probate_docket", first.Source)
	assert.Equal(t, "MARGARET L WHITFIELD", first.OwnerName)
	assert.Equal(t, "714 S Cannon St", first.Street)
	assert.Equal(t, "2025-PR-00341", first.Raw["docket"])

	second := records[1]
	assert.Equal(t, "ROBERT DEAN OKAFOR", second.OwnerName)
	assert.Equal(t, "33021.2215", second.APN)

	// Sealed guardianship row: docket only, still emitted.
	third := records[2]
	assert.Empty(t, third.OwnerName)
	assert.Empty(t, third.APN)
}

func TestAdapters_HTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	_, err := NewNoticesSource(NoticesConfig{URL: srv.URL}).Crawl(context.Background())
	assert.Error(t, err)
	_, err = NewTaxRollSource(TaxRollConfig{URL: srv.URL}).Crawl(context.Background())
	assert.Error(t, err)
	_, err = NewProbateSource(ProbateConfig{URL: srv.URL}).Crawl(context.Background())
	assert.Error(t, err)
}
