package harvest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/model"
)

// NoticesConfig configures a county legal-notice adapter.
type NoticesConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	County  string        `yaml:"county" mapstructure:"county"`
	State   string        `yaml:"state" mapstructure:"state"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// NoticesSource crawls a county's published legal notices for
// pre-foreclosure filings. The pages are server-rendered HTML tables or
// notice lists; extraction tolerates missing cells.
type NoticesSource struct {
	cfg    NoticesConfig
	client *http.Client
}

// NewNoticesSource creates the adapter.
func NewNoticesSource(cfg NoticesConfig) *NoticesSource {
	return &NoticesSource{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (s *NoticesSource) ID() string   { return "county_notices" }
func (s *NoticesSource) Name() string { return "County Legal Notices" }

func (s *NoticesSource) Crawl(ctx context.Context) ([]model.CrawledRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "notices: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadPipeBot/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "notices: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("notices: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "notices: parse html")
	}
	return s.parse(doc, time.Now().UTC()), nil
}

// parse walks .notice blocks. A record with no address is still emitted;
// downstream enrichment may resolve it from the APN.
func (s *NoticesSource) parse(doc *goquery.Document, now time.Time) []model.CrawledRecord {
	var records []model.CrawledRecord
	doc.Find(".notice, tr.notice-row").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return
		}

		rec := model.CrawledRecord{
			Type:       model.EventPreForeclosure,
			Source:     s.ID(),
			County:     s.cfg.County,
			State:      s.cfg.State,
			Severity:   9,
			Confidence: 0.9,
		}

		if owner := sel.Find(".owner, .defendant").First().Text(); owner != "" {
			rec.OwnerName = strings.TrimSpace(owner)
		}
		if apn := sel.Find(".apn, .parcel").First().Text(); apn != "" {
			rec.APN = strings.TrimSpace(apn)
		} else {
			rec.APN = ExtractAPN(text)
		}
		if addr := sel.Find(".address").First().Text(); addr != "" {
			rec.Street = strings.TrimSpace(addr)
		} else {
			rec.Street = ExtractAddress(text)
		}
		rec.Date = ParseDate(sel.Find(".date, .filed").First().Text(), now)
		if link, ok := sel.Find("a").First().Attr("href"); ok {
			rec.SourceLink = link
		}
		if docket := ExtractDocket(text); docket != "" {
			rec.Raw = map[string]any{"docket": docket}
		}

		records = append(records, rec)
	})
	return records
}
