package harvest

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadpipe/internal/model"
)

// ProbateConfig configures a probate docket adapter.
type ProbateConfig struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	County  string        `yaml:"county" mapstructure:"county"`
	State   string        `yaml:"state" mapstructure:"state"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ProbateSource crawls a probate court docket page. These pages are old
// table dumps with no usable CSS hooks, so extraction is line-oriented
// regex over the stripped text.
type ProbateSource struct {
	cfg    ProbateConfig
	client *http.Client
}

// NewProbateSource creates the adapter.
func NewProbateSource(cfg ProbateConfig) *ProbateSource {
	return &ProbateSource{cfg: cfg, client: newHTTPClient(cfg.Timeout)}
}

func (s *ProbateSource) ID() string   { return "probate_docket" }
func (s *ProbateSource) Name() string { return "Probate Court Docket" }

func (s *ProbateSource) Crawl(ctx context.Context) ([]model.CrawledRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "probate: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadPipeBot/1.0)")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "probate: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("probate: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, eris.Wrap(err, "probate: read body")
	}
	return s.parse(string(body), time.Now().UTC()), nil
}

var (
	tagRe      = regexp.MustCompile(`<[^>]+>`)
	rowSplitRe = regexp.MustCompile(`(?i)</tr>|<br\s*/?>|\n`)
)

// parse splits the page into rows, strips markup, and scans each row for
// a docket number. A row counts as an entry when it carries one;
// everything else on the row is best-effort.
func (s *ProbateSource) parse(html string, now time.Time) []model.CrawledRecord {
	var records []model.CrawledRecord

	for _, chunk := range rowSplitRe.Split(html, -1) {
		line := strings.Join(strings.Fields(tagRe.ReplaceAllString(chunk, " ")), " ")
		if line == "" {
			continue
		}
		docket := ExtractDocket(line)
		if docket == "" {
			continue
		}

		rec := model.CrawledRecord{
			OwnerName:  ExtractPartyName(line),
			APN:        ExtractAPN(line),
			Street:     ExtractAddress(line),
			County:     s.cfg.County,
			State:      s.cfg.State,
			Date:       now,
			Type:       model.EventProbate,
			Source:     s.ID(),
			Severity:   7,
			Confidence: 0.8,
			Raw:        map[string]any{"docket": docket},
		}
		records = append(records, rec)
	}
	return records
}
