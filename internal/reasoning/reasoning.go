// Package reasoning asks a completion model which acquisition phases are
// worth running this cycle. The directive is advisory: when the model is
// unreachable or returns garbage, every phase runs.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/pkg/anthropic"
)

const systemPrompt = `You plan acquisition cycles for a property distress-signal pipeline.
Given the stats of the previous cycle, decide which phases to run next and
which harvest sources to skip. Skip a source only when its recent yield is
zero or its error rate is high. Bulk catalog pulls cost money; skip them
when the previous pull yielded nothing new.

Respond with a single JSON object and nothing else:
{"run_targeted": bool, "run_harvest": bool, "run_bulk": bool, "skip_sources": ["source_id"]}`

// Directive tells the agent cycle which phases to run.
type Directive struct {
	RunTargeted bool     `json:"run_targeted"`
	RunHarvest  bool     `json:"run_harvest"`
	RunBulk     bool     `json:"run_bulk"`
	SkipSources []string `json:"skip_sources,omitempty"`
}

// DefaultDirective runs everything.
func DefaultDirective() Directive {
	return Directive{RunTargeted: true, RunHarvest: true, RunBulk: true}
}

// Skips reports whether the directive skips the named source.
func (d Directive) Skips(sourceID string) bool {
	for _, s := range d.SkipSources {
		if s == sourceID {
			return true
		}
	}
	return false
}

// SourceStat summarizes one harvest source's previous run.
type SourceStat struct {
	SourceID string `json:"source_id"`
	Crawled  int    `json:"crawled"`
	Promoted int    `json:"promoted"`
	Errors   int    `json:"errors"`
}

// CycleStats summarizes the previous agent cycle for the planner.
type CycleStats struct {
	RanAt       time.Time    `json:"ran_at"`
	Sources     []SourceStat `json:"sources,omitempty"`
	BulkRecords int          `json:"bulk_records"`
	CostUSD     float64      `json:"cost_usd"`
	ElapsedSecs float64      `json:"elapsed_secs"`
}

// Config configures the reasoning engine.
type Config struct {
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DefaultConfig returns the reasoning defaults.
func DefaultConfig() Config {
	return Config{Model: "claude-haiku-4-5-20251001", MaxTokens: 1024}
}

// Engine produces phase directives from cycle stats.
type Engine struct {
	client anthropic.Client
	cfg    Config
}

// NewEngine creates a reasoning engine.
func NewEngine(client anthropic.Client, cfg Config) *Engine {
	d := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = d.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	return &Engine{client: client, cfg: cfg}
}

// Decide returns the directive for the next cycle. Any failure, from the
// transport up to unparseable output, degrades to DefaultDirective so a
// broken planner never stalls acquisition.
func (e *Engine) Decide(ctx context.Context, stats CycleStats) Directive {
	if e == nil || e.client == nil {
		return DefaultDirective()
	}

	statsJSON, err := json.Marshal(stats)
	if err != nil {
		zap.L().Warn("reasoning: marshal stats", zap.Error(err))
		return DefaultDirective()
	}

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Previous cycle stats:\n%s", statsJSON)},
		},
	})
	if err != nil {
		zap.L().Warn("reasoning: completion failed, running everything", zap.Error(err))
		return DefaultDirective()
	}
	resp.Usage.LogCost(e.cfg.Model, "reasoning")

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	directive, err := parseDirective(text.String())
	if err != nil {
		zap.L().Warn("reasoning: unparseable directive, running everything",
			zap.String("completion", text.String()), zap.Error(err))
		return DefaultDirective()
	}

	zap.L().Info("reasoning directive",
		zap.Bool("run_targeted", directive.RunTargeted),
		zap.Bool("run_harvest", directive.RunHarvest),
		zap.Bool("run_bulk", directive.RunBulk),
		zap.Strings("skip_sources", directive.SkipSources))
	return directive
}

// parseDirective extracts the first JSON object from completion text. Models
// sometimes wrap JSON in prose or code fences.
func parseDirective(text string) (Directive, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Directive{}, fmt.Errorf("no JSON object in completion")
	}

	var d Directive
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return Directive{}, err
	}
	return d, nil
}
