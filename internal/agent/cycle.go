// Package agent drives one acquisition cycle: a reasoning directive, the
// high-value targeted sources, the general harvesting framework, and a
// budget-capped bulk catalog delta. Phases fail in isolation; committed
// work is never rolled back.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/audit"
	"github.com/sells-group/leadpipe/internal/catalog"
	"github.com/sells-group/leadpipe/internal/db"
	"github.com/sells-group/leadpipe/internal/harvest"
	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/reasoning"
	"github.com/sells-group/leadpipe/internal/resilience"
)

const bulkSource = "catalog_delta"

// Planner decides which phases run. The reasoning engine satisfies this.
type Planner interface {
	Decide(ctx context.Context, stats reasoning.CycleStats) reasoning.Directive
}

// CatalogClient is the slice of the catalog the bulk phase uses.
type CatalogClient interface {
	BulkDelta(ctx context.Context, region string, maxPages int) (*catalog.DeltaResult, error)
}

// Config tunes a cycle.
type Config struct {
	// WallBudgetSecs caps the whole cycle; unstarted phases are skipped
	// once it runs out. Zero means 120.
	WallBudgetSecs int `yaml:"wall_budget_secs" mapstructure:"wall_budget_secs"`

	// TargetedSources are the high-value source IDs run ahead of the rest
	// of the framework.
	TargetedSources []string `yaml:"targeted_sources" mapstructure:"targeted_sources"`

	BulkRegions  []string `yaml:"bulk_regions" mapstructure:"bulk_regions"`
	BulkMaxPages int      `yaml:"bulk_max_pages" mapstructure:"bulk_max_pages"`
	Concurrency  int      `yaml:"concurrency" mapstructure:"concurrency"`
}

// DefaultConfig returns the cycle defaults.
func DefaultConfig() Config {
	return Config{WallBudgetSecs: 120, Concurrency: 4}
}

// PhaseOutcome records one phase's result.
type PhaseOutcome struct {
	Phase       string   `json:"phase"`
	Skipped     bool     `json:"skipped"`
	SkipReason  string   `json:"skip_reason,omitempty"`
	Crawled     int      `json:"crawled"`
	Promoted    int      `json:"promoted"`
	CostUSD     float64  `json:"cost_usd"`
	ElapsedSecs float64  `json:"elapsed_secs"`
	Errors      []string `json:"errors,omitempty"`
}

// Outcome summarizes a full cycle.
type Outcome struct {
	CycleID     string         `json:"cycle_id"`
	Phases      []PhaseOutcome `json:"phases"`
	Promoted    int            `json:"promoted"`
	CostUSD     float64        `json:"cost_usd"`
	ElapsedSecs float64        `json:"elapsed_secs"`
}

// Cycle wires the phases together. Planner and catalog are optional; a nil
// planner runs everything and a nil catalog skips the bulk phase.
type Cycle struct {
	cfg      Config
	planner  Planner
	registry *harvest.Registry
	ingestor harvest.Ingestor
	catalog  CatalogClient
	pool     db.Pool
	audit    *audit.Logger
	dlq      *resilience.DLQ

	mu        sync.Mutex
	lastStats reasoning.CycleStats
}

// NewCycle builds a cycle driver.
func NewCycle(cfg Config, planner Planner, reg *harvest.Registry, ing harvest.Ingestor, cat CatalogClient, pool db.Pool, auditLog *audit.Logger) *Cycle {
	d := DefaultConfig()
	if cfg.WallBudgetSecs <= 0 {
		cfg.WallBudgetSecs = d.WallBudgetSecs
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = d.Concurrency
	}
	return &Cycle{
		cfg:      cfg,
		planner:  planner,
		registry: reg,
		ingestor: ing,
		catalog:  cat,
		pool:     pool,
		audit:    auditLog,
		dlq:      resilience.NewDLQ(0, 0),
	}
}

// Run executes one cycle and returns its outcome. Run never returns an
// error: phase failures are collected, logged, and audited.
func (c *Cycle) Run(ctx context.Context) *Outcome {
	start := time.Now()
	cycleID := uuid.NewString()
	log := zap.L().With(zap.String("cycle_id", cycleID))

	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.WallBudgetSecs)*time.Second)
	defer cancel()

	out := &Outcome{CycleID: cycleID}

	var sourceStats []reasoning.SourceStat
	var directive reasoning.Directive
	out.add(c.runPhase(ctx, cycleID, "reasoning", func(ctx context.Context) PhaseOutcome {
		directive = c.decide(ctx)
		return PhaseOutcome{}
	}))

	targeted := c.targetedSources(directive)
	out.add(c.runPhase(ctx, cycleID, "targeted", func(ctx context.Context) PhaseOutcome {
		if !directive.RunTargeted {
			return PhaseOutcome{Skipped: true, SkipReason: "directive"}
		}
		return c.harvestPhase(ctx, targeted, &sourceStats)
	}))

	out.add(c.runPhase(ctx, cycleID, "harvest", func(ctx context.Context) PhaseOutcome {
		if !directive.RunHarvest {
			return PhaseOutcome{Skipped: true, SkipReason: "directive"}
		}
		c.redrive(ctx, log)
		skip := append([]string{}, directive.SkipSources...)
		for _, src := range targeted {
			skip = append(skip, src.ID())
		}
		return c.harvestPhase(ctx, c.registry.Except(skip), &sourceStats)
	}))

	out.add(c.runPhase(ctx, cycleID, "bulk", func(ctx context.Context) PhaseOutcome {
		if !directive.RunBulk {
			return PhaseOutcome{Skipped: true, SkipReason: "directive"}
		}
		if c.catalog == nil || len(c.cfg.BulkRegions) == 0 {
			return PhaseOutcome{Skipped: true, SkipReason: "no catalog configured"}
		}
		return c.bulkPhase(ctx)
	}))

	out.ElapsedSecs = time.Since(start).Seconds()
	c.recordStats(out, sourceStats)

	log.Info("cycle complete",
		zap.Int("promoted", out.Promoted),
		zap.Float64("cost_usd", out.CostUSD),
		zap.Float64("elapsed_secs", out.ElapsedSecs),
		zap.Int("dlq_depth", c.dlq.Len()))
	return out
}

func (o *Outcome) add(p PhaseOutcome) {
	o.Phases = append(o.Phases, p)
	o.Promoted += p.Promoted
	o.CostUSD += p.CostUSD
}

// runPhase wraps a phase with budget check, panic recovery, and an audit
// entry. A phase that blows up is recorded and the cycle moves on.
func (c *Cycle) runPhase(ctx context.Context, cycleID, name string, fn func(context.Context) PhaseOutcome) PhaseOutcome {
	start := time.Now()
	var out PhaseOutcome

	if err := ctx.Err(); err != nil {
		out = PhaseOutcome{Skipped: true, SkipReason: "budget exhausted"}
	} else {
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("phase panicked",
						zap.String("cycle_id", cycleID),
						zap.String("phase", name),
						zap.Any("panic", r))
					out.Errors = append(out.Errors, "panic in phase")
				}
			}()
			out = fn(ctx)
		}()
	}

	out.Phase = name
	out.ElapsedSecs = time.Since(start).Seconds()

	if c.audit != nil {
		details := map[string]any{
			"skipped":      out.Skipped,
			"crawled":      out.Crawled,
			"promoted":     out.Promoted,
			"cost_usd":     out.CostUSD,
			"elapsed_secs": out.ElapsedSecs,
			"errors":       out.Errors,
		}
		if out.SkipReason != "" {
			details["skip_reason"] = out.SkipReason
		}
		// context.Background: the audit entry must land even when the
		// cycle budget is spent.
		if err := c.audit.Record(context.Background(), "agent", "cycle."+name, "cycle", cycleID, details); err != nil {
			zap.L().Warn("phase audit failed", zap.String("phase", name), zap.Error(err))
		}
	}
	return out
}

func (c *Cycle) decide(ctx context.Context) reasoning.Directive {
	if c.planner == nil {
		return reasoning.DefaultDirective()
	}
	c.mu.Lock()
	stats := c.lastStats
	c.mu.Unlock()
	return c.planner.Decide(ctx, stats)
}

func (c *Cycle) targetedSources(d reasoning.Directive) []harvest.Source {
	var out []harvest.Source
	for _, id := range c.cfg.TargetedSources {
		if d.Skips(id) {
			continue
		}
		if src := c.registry.Get(id); src != nil {
			out = append(out, src)
		}
	}
	return out
}

// DLQ exposes the queue of records that failed ingestion.
func (c *Cycle) DLQ() *resilience.DLQ {
	return c.dlq
}

// redrive replays parked records before the fresh crawl so a source
// outage in one cycle is retried in the next.
func (c *Cycle) redrive(ctx context.Context, log *zap.Logger) {
	replayed, recovered := c.dlq.Redrive(ctx, func(ctx context.Context, rec model.CrawledRecord) error {
		_, err := c.ingestor.IngestRecord(ctx, rec)
		return err
	})
	if replayed > 0 {
		log.Info("dlq redrive",
			zap.Int("replayed", replayed),
			zap.Int("recovered", recovered),
			zap.Int("remaining", c.dlq.Len()))
	}
}

func (c *Cycle) harvestPhase(ctx context.Context, sources []harvest.Source, stats *[]reasoning.SourceStat) PhaseOutcome {
	var out PhaseOutcome
	if len(sources) == 0 {
		out.Skipped = true
		out.SkipReason = "no sources"
		return out
	}

	results, err := harvest.RunAll(ctx, sources, c.ingestor, harvest.Options{Concurrency: c.cfg.Concurrency, DLQ: c.dlq})
	if err != nil {
		out.Errors = append(out.Errors, err.Error())
	}
	for _, r := range results {
		out.Crawled += r.Crawled
		out.Promoted += r.Promoted
		out.Errors = append(out.Errors, r.Errors...)
		*stats = append(*stats, reasoning.SourceStat{
			SourceID: r.SourceID,
			Crawled:  r.Crawled,
			Promoted: r.Promoted,
			Errors:   len(r.Errors),
		})
	}
	return out
}

// bulkSeverity maps catalog distress codes onto the severity scale the
// harvest adapters use.
var bulkSeverity = map[model.EventType]float64{
	model.EventPreForeclosure: 9,
	model.EventProbate:        7,
	model.EventTaxLien:        6,
	model.EventBankruptcy:     6,
	model.EventVacant:         5,
}

func (c *Cycle) bulkPhase(ctx context.Context) PhaseOutcome {
	var out PhaseOutcome
	now := time.Now().UTC()

	for _, region := range c.cfg.BulkRegions {
		if ctx.Err() != nil {
			out.Errors = append(out.Errors, ctx.Err().Error())
			return out
		}

		delta, err := c.catalog.BulkDelta(ctx, region, c.cfg.BulkMaxPages)
		if delta != nil {
			out.CostUSD += delta.EstimatedCost
		}
		if err != nil {
			out.Errors = append(out.Errors, err.Error())
			if delta == nil {
				continue
			}
		}

		out.Crawled += len(delta.Records)

		if c.pool != nil {
			if _, err := catalog.UpsertRecords(ctx, c.pool, delta.Records); err != nil {
				out.Errors = append(out.Errors, err.Error())
			}
		}

		for _, rec := range delta.Records {
			if !rec.Distressed {
				continue
			}
			crawled := model.CrawledRecord{
				OwnerName:  rec.OwnerName,
				APN:        rec.APN,
				Street:     rec.Street,
				City:       rec.City,
				State:      rec.State,
				County:     rec.County,
				Date:       now,
				Type:       rec.DistressType,
				Source:     bulkSource,
				Severity:   bulkSeverity[rec.DistressType],
				Confidence: 0.9,
				Raw:        map[string]any{"vendor_id": rec.VendorID, "region": region},
			}
			promoted, err := c.ingestor.IngestRecord(ctx, crawled)
			if err != nil {
				out.Errors = append(out.Errors, err.Error())
				c.dlq.Park(crawled, "bulk", err)
				continue
			}
			if promoted {
				out.Promoted++
			}
		}
	}
	return out
}

// recordStats folds the finished cycle into the stats handed to the
// planner next time.
func (c *Cycle) recordStats(out *Outcome, sources []reasoning.SourceStat) {
	stats := reasoning.CycleStats{
		RanAt:       time.Now().UTC(),
		Sources:     sources,
		CostUSD:     out.CostUSD,
		ElapsedSecs: out.ElapsedSecs,
	}
	for _, p := range out.Phases {
		if p.Phase == "bulk" {
			stats.BulkRecords = p.Crawled
		}
	}

	c.mu.Lock()
	c.lastStats = stats
	c.mu.Unlock()
}
