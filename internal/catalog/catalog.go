// Package catalog pulls property records from a paid external property
// catalog. Vendor payloads are normalized at this boundary; nothing
// vendor-shaped leaks to callers.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadpipe/internal/identity"
	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/resilience"
)

const maxBodyBytes = 16 << 20

// Config configures the catalog client.
type Config struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// PageSize is the records-per-page the vendor returns; MaxPages caps
	// delta pulls per region to bound spend.
	PageSize    int     `yaml:"page_size" mapstructure:"page_size"`
	MaxPages    int     `yaml:"max_pages" mapstructure:"max_pages"`
	CostPerPage float64 `yaml:"cost_per_page" mapstructure:"cost_per_page"`

	// RetryMaxAttempts and RetryBackoffMs tune the per-request retry
	// loop; zero values take the package defaults.
	RetryMaxAttempts int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`

	// BreakerThreshold consecutive failed calls open the circuit for
	// BreakerResetSecs before a probe is let through.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// DefaultConfig returns the catalog defaults.
func DefaultConfig() Config {
	return Config{
		RPS:         2,
		TimeoutSecs: 12,
		PageSize:    100,
		MaxPages:    5,
		CostPerPage: 0.10,
	}
}

// Record is a normalized catalog property row.
type Record struct {
	APN            string
	County         string
	State          string
	Street         string
	City           string
	ZipCode        string
	OwnerName      string
	EstimatedValue *float64
	EquityPercent  *float64
	LoanBalance    *float64
	Bedrooms       *int
	Bathrooms      *float64
	SquareFt       *int
	YearBuilt      *int
	VendorID       string
	Distressed     bool
	DistressType   model.EventType
}

// DeltaResult summarizes one BulkDelta pull.
type DeltaResult struct {
	Region        string
	PagesFetched  int
	Records       []Record
	EstimatedCost float64
}

// Client talks to the property catalog API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// NewClient creates a catalog client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, eris.New("catalog: base URL required")
	}
	d := DefaultConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = d.RPS
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = d.TimeoutSecs
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = d.PageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = d.MaxPages
	}
	if cfg.CostPerPage <= 0 {
		cfg.CostPerPage = d.CostPerPage
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		retry:      resilience.RetryFromConfig(cfg.RetryMaxAttempts, cfg.RetryBackoffMs),
		breaker:    resilience.NewCircuitBreaker(breakerConfig(cfg)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("catalog")
	}
	return c, nil
}

func breakerConfig(cfg Config) resilience.CircuitBreakerConfig {
	bc := resilience.BreakerFromConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs)
	bc.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("catalog circuit state changed",
			zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return bc
}

// SearchAddress looks up a single property by address. Returns nil when the
// vendor has no match.
func (c *Client) SearchAddress(ctx context.Context, street, city, state string) (*Record, error) {
	params := url.Values{
		"street": {street},
		"city":   {city},
		"state":  {state},
	}

	body, err := c.get(ctx, "/v2/properties/search", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Properties []vendorProperty `json:"properties"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "catalog: parse search response")
	}
	if len(resp.Properties) == 0 {
		return nil, nil
	}

	rec := normalizeVendor(resp.Properties[0])
	if rec.APN == "" {
		return nil, nil
	}
	return &rec, nil
}

// BulkDelta pulls recently changed properties for a region, page by page.
// maxPages <= 0 uses the configured cap. The pull stops at the cap even if
// the vendor reports more pages; partial results are returned alongside any
// page-level error.
func (c *Client) BulkDelta(ctx context.Context, region string, maxPages int) (*DeltaResult, error) {
	if region == "" {
		return nil, model.NewValidationError("region", "is required")
	}
	if maxPages <= 0 || maxPages > c.cfg.MaxPages {
		maxPages = c.cfg.MaxPages
	}

	res := &DeltaResult{Region: region}
	for page := 1; page <= maxPages; page++ {
		params := url.Values{
			"region":    {region},
			"page":      {fmt.Sprintf("%d", page)},
			"page_size": {fmt.Sprintf("%d", c.cfg.PageSize)},
			"changed":   {"true"},
		}

		body, err := c.get(ctx, "/v2/properties/delta", params)
		if err != nil {
			res.EstimatedCost = float64(res.PagesFetched) * c.cfg.CostPerPage
			return res, eris.Wrapf(err, "catalog: delta page %d for %s", page, region)
		}

		var resp struct {
			Properties []vendorProperty `json:"properties"`
			HasMore    bool             `json:"has_more"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			res.EstimatedCost = float64(res.PagesFetched) * c.cfg.CostPerPage
			return res, eris.Wrap(err, "catalog: parse delta response")
		}

		res.PagesFetched++
		for _, vp := range resp.Properties {
			rec := normalizeVendor(vp)
			if rec.APN == "" || rec.County == "" {
				continue
			}
			res.Records = append(res.Records, rec)
		}

		if !resp.HasMore {
			break
		}
	}

	res.EstimatedCost = float64(res.PagesFetched) * c.cfg.CostPerPage
	return res, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "catalog: rate limit")
	}

	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "catalog: build request")
			}
			if c.cfg.APIKey != "" {
				req.Header.Set("X-Api-Key", c.cfg.APIKey)
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, resilience.NewTransientError(err, 0)
			}
			defer resp.Body.Close() //nolint:errcheck

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return nil, eris.Wrap(err, "catalog: read body")
			}
			if resp.StatusCode != http.StatusOK {
				err := eris.Errorf("catalog: status %d", resp.StatusCode)
				if resilience.IsTransientHTTPStatus(resp.StatusCode) {
					return nil, resilience.NewTransientError(err, resp.StatusCode)
				}
				return nil, err
			}
			return body, nil
		})
	})
}

// vendorProperty is the catalog wire shape. It never leaves this package.
type vendorProperty struct {
	ID           string   `json:"id"`
	ParcelNumber string   `json:"parcel_number"`
	CountyName   string   `json:"county_name"`
	StateCode    string   `json:"state_code"`
	SitusStreet  string   `json:"situs_street"`
	SitusCity    string   `json:"situs_city"`
	SitusZip     string   `json:"situs_zip"`
	OwnerName    string   `json:"owner_name"`
	AVM          *float64 `json:"avm"`
	EquityPct    *float64 `json:"equity_pct"`
	OpenLoans    *float64 `json:"open_loan_balance"`
	Beds         *int     `json:"beds"`
	Baths        *float64 `json:"baths"`
	BuildingSqft *int     `json:"building_sqft"`
	YearBuilt    *int     `json:"year_built"`
	DistressCode string   `json:"distress_code"`
}

// distressCodes maps vendor distress codes to event types.
var distressCodes = map[string]model.EventType{
	"PREFCL": model.EventPreForeclosure,
	"TAXDLQ": model.EventTaxLien,
	"PROBAT": model.EventProbate,
	"VACANT": model.EventVacant,
	"BKRPT":  model.EventBankruptcy,
}

func normalizeVendor(vp vendorProperty) Record {
	rec := Record{
		APN:            identity.NormalizeAPN(vp.ParcelNumber),
		County:         identity.NormalizeCounty(vp.CountyName, ""),
		State:          strings.ToUpper(strings.TrimSpace(vp.StateCode)),
		Street:         strings.TrimSpace(vp.SitusStreet),
		City:           strings.TrimSpace(vp.SitusCity),
		ZipCode:        strings.TrimSpace(vp.SitusZip),
		OwnerName:      strings.TrimSpace(vp.OwnerName),
		EstimatedValue: vp.AVM,
		EquityPercent:  vp.EquityPct,
		LoanBalance:    vp.OpenLoans,
		Bedrooms:       vp.Beds,
		Bathrooms:      vp.Baths,
		SquareFt:       vp.BuildingSqft,
		YearBuilt:      vp.YearBuilt,
		VendorID:       vp.ID,
	}
	if et, ok := distressCodes[strings.ToUpper(vp.DistressCode)]; ok {
		rec.Distressed = true
		rec.DistressType = et
	}
	return rec
}
