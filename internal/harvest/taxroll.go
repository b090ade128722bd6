package harvest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/model"
)

// TaxRollConfig configures a county delinquent-tax feed adapter.
type TaxRollConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	County  string        `yaml:"county" mapstructure:"county"`
	State   string        `yaml:"state" mapstructure:"state"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// MinDelinquent filters out trivial balances. Zero keeps everything.
	MinDelinquent float64 `yaml:"min_delinquent" mapstructure:"min_delinquent"`
}

// taxRollEntry is the vendor wire shape, normalized at this boundary.
type taxRollEntry struct {
	ParcelNumber  string  `json:"parcel_number"`
	OwnerName     string  `json:"owner_name"`
	SitusAddress  string  `json:"situs_address"`
	SitusCity     string  `json:"situs_city"`
	AmountDue     float64 `json:"amount_due"`
	YearsDelinq   int     `json:"years_delinquent"`
	CertifiedDate string  `json:"certified_date"`
}

// TaxRollSource crawls a county's delinquent-tax JSON feed for tax liens.
type TaxRollSource struct {
	cfg    TaxRollConfig
	client *http.Client
}

// NewTaxRollSource creates the adapter.
func NewTaxRollSource(cfg TaxRollConfig) *TaxRollSource {
	return &TaxRollSource{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (s *TaxRollSource) ID() string   { return "county_taxroll" }
func (s *TaxRollSource) Name() string { return "County Delinquent Tax Roll" }

func (s *TaxRollSource) Crawl(ctx context.Context) ([]model.CrawledRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "taxroll: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "taxroll: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("taxroll: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, eris.Wrap(err, "taxroll: read body")
	}

	var entries []taxRollEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, eris.Wrap(err, "taxroll: decode feed")
	}
	return s.normalize(entries, time.Now().UTC()), nil
}

func (s *TaxRollSource) normalize(entries []taxRollEntry, now time.Time) []model.CrawledRecord {
	var records []model.CrawledRecord
	for _, e := range entries {
		if e.ParcelNumber == "" {
			continue
		}
		if s.cfg.MinDelinquent > 0 && e.AmountDue < s.cfg.MinDelinquent {
			continue
		}

		// Severity scales with how long the taxes have gone unpaid.
		severity := 4.0 + float64(e.YearsDelinq)
		if severity > 8 {
			severity = 8
		}

		records = append(records, model.CrawledRecord{
			OwnerName:  e.OwnerName,
			APN:        e.ParcelNumber,
			Street:     e.SitusAddress,
			City:       e.SitusCity,
			County:     s.cfg.County,
			State:      s.cfg.State,
			Date:       ParseDate(e.CertifiedDate, now),
			Type:       model.EventTaxLien,
			Source:     s.ID(),
			Severity:   severity,
			Confidence: 0.95,
			Raw: map[string]any{
				"amount_due":       e.AmountDue,
				"years_delinquent": e.YearsDelinq,
			},
		})
	}
	return records
}
