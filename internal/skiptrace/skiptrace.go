// Package skiptrace looks up owner contact information through an external
// skip-trace vendor and writes the results back onto the property row.
package skiptrace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/resilience"
)

const maxBodyBytes = 4 << 20

// Config configures the skip-trace client.
type Config struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	RPS         float64 `yaml:"rps" mapstructure:"rps"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`

	// RetryMaxAttempts and RetryBackoffMs tune the per-request retry
	// loop; zero values take the package defaults.
	RetryMaxAttempts int `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`

	// BreakerThreshold consecutive failed calls open the circuit for
	// BreakerResetSecs before a probe is let through.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// DefaultConfig returns the skip-trace defaults.
func DefaultConfig() Config {
	return Config{RPS: 1, TimeoutSecs: 12}
}

// Contact is a normalized skip-trace result.
type Contact struct {
	Phones       []string
	Emails       []string
	AgeEstimate  *int
	MailingState string
	Deceased     bool
}

// PropertyStore is the slice of the store the enricher writes through.
type PropertyStore interface {
	GetProperty(ctx context.Context, id string) (*model.Property, error)
	UpdatePropertyFields(ctx context.Context, id string, fields map[string]any) error
}

// Client talks to the skip-trace API.
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

// NewClient creates a skip-trace client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, eris.New("skiptrace: base URL required")
	}
	d := DefaultConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = d.RPS
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = d.TimeoutSecs
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
		c.retry.OnRetry = resilience.RetryLogger("skiptrace")
	}
	return c, nil
}

func breakerConfig(cfg Config) resilience.CircuitBreakerConfig {
	bc := resilience.BreakerFromConfig(cfg.BreakerThreshold, cfg.BreakerResetSecs)
	bc.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("skiptrace circuit state changed",
			zap.Stringer("from", from), zap.Stringer("to", to))
	}
	return bc
}

// Lookup traces an owner by name and situs address. Returns nil when the
// vendor has no match.
func (c *Client) Lookup(ctx context.Context, ownerName, street, city, state string) (*Contact, error) {
	if strings.TrimSpace(ownerName) == "" {
		return nil, model.NewValidationError("owner_name", "is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "skiptrace: rate limit")
	}

	params := url.Values{
		"name":   {ownerName},
		"street": {street},
		"city":   {city},
		"state":  {state},
	}
	reqURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/person?" + params.Encode()

	body, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "skiptrace: build request")
			}
			if c.cfg.APIKey != "" {
				req.Header.Set("X-Api-Key", c.cfg.APIKey)
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, resilience.NewTransientError(err, 0)
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode == http.StatusNotFound {
				return nil, nil
			}
			b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
			if err != nil {
				return nil, eris.Wrap(err, "skiptrace: read body")
			}
			if resp.StatusCode != http.StatusOK {
				err := eris.Errorf("skiptrace: status %d", resp.StatusCode)
				if resilience.IsTransientHTTPStatus(resp.StatusCode) {
					return nil, resilience.NewTransientError(err, resp.StatusCode)
				}
				return nil, err
			}
			return b, nil
		})
	})
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var vp vendorPerson
	if err := json.Unmarshal(body, &vp); err != nil {
		return nil, eris.Wrap(err, "skiptrace: parse response")
	}
	if !vp.Matched {
		return nil, nil
	}
	return normalizePerson(vp), nil
}

// Enrich traces a property's owner and writes the best phone and email back
// onto the property. No-match is not an error; the property is left as is.
func (c *Client) Enrich(ctx context.Context, store PropertyStore, propertyID string) (*Contact, error) {
	prop, err := store.GetProperty(ctx, propertyID)
	if err != nil {
		return nil, eris.Wrap(err, "skiptrace: load property")
	}
	if prop.OwnerName == "" {
		return nil, nil
	}

	contact, err := c.Lookup(ctx, prop.OwnerName, prop.Street, prop.City, prop.State)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		zap.L().Debug("skiptrace no match",
			zap.String("property_id", propertyID),
			zap.String("owner", prop.OwnerName))
		return nil, nil
	}

	fields := map[string]any{}
	if prop.OwnerPhone == "" && len(contact.Phones) > 0 {
		fields["owner_phone"] = contact.Phones[0]
	}
	if prop.OwnerEmail == "" && len(contact.Emails) > 0 {
		fields["owner_email"] = contact.Emails[0]
	}
	if len(fields) > 0 {
		if err := store.UpdatePropertyFields(ctx, propertyID, fields); err != nil {
			return nil, eris.Wrap(err, "skiptrace: write contact fields")
		}
	}
	return contact, nil
}

// vendorPerson is the skip-trace wire shape.
type vendorPerson struct {
	Matched bool `json:"matched"`
	Person  struct {
		Age      *int   `json:"age"`
		Deceased bool   `json:"deceased"`
		Mailing  struct {
			State string `json:"state"`
		} `json:"mailing_address"`
		Phones []struct {
			Number string `json:"number"`
			Type   string `json:"type"`
		} `json:"phones"`
		Emails []string `json:"emails"`
	} `json:"person"`
}

func normalizePerson(vp vendorPerson) *Contact {
	c := &Contact{
		AgeEstimate:  vp.Person.Age,
		Deceased:     vp.Person.Deceased,
		MailingState: strings.ToUpper(strings.TrimSpace(vp.Person.Mailing.State)),
	}
	// Mobile numbers sort first; the enricher takes Phones[0].
	for _, p := range vp.Person.Phones {
		n := strings.TrimSpace(p.Number)
		if n == "" {
			continue
		}
		if strings.EqualFold(p.Type, "mobile") {
			c.Phones = append([]string{n}, c.Phones...)
		} else {
			c.Phones = append(c.Phones, n)
		}
	}
	for _, e := range vp.Person.Emails {
		if e = strings.TrimSpace(e); e != "" {
			c.Emails = append(c.Emails, strings.ToLower(e))
		}
	}
	return c
}
