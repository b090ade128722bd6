package harvest

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/resilience"
)

// Ingestor folds one crawled record into the pipeline. The ingest service
// satisfies this.
type Ingestor interface {
	IngestRecord(ctx context.Context, rec model.CrawledRecord) (promoted bool, err error)
}

// Result summarizes one source's run.
type Result struct {
	SourceID string   `json:"source_id"`
	Crawled  int      `json:"crawled"`
	Promoted int      `json:"promoted"`
	Errors   []string `json:"errors,omitempty"`
}

// Options tunes a harvest run.
type Options struct {
	// Concurrency bounds how many sources crawl at once. Zero means 4.
	Concurrency int

	// DLQ, when set, receives records whose ingestion failed.
	DLQ *resilience.DLQ
}

// RunAll crawls every source and feeds the records through the ingestor.
// A panicking or failing source is recorded in its own Result and never
// blocks siblings; RunAll only returns an error when the context dies.
func RunAll(ctx context.Context, sources []Source, ing Ingestor, opts Options) ([]Result, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	results := make([]Result, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, src := range sources {
		g.Go(func() error {
			res := runSource(gctx, src, ing, opts.DLQ)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, eris.Wrap(err, "harvest: run all")
	}
	if err := ctx.Err(); err != nil {
		return results, eris.Wrap(err, "harvest: run all")
	}
	return results, nil
}

func runSource(ctx context.Context, src Source, ing Ingestor, dlq *resilience.DLQ) (res Result) {
	log := zap.L().With(zap.String("source", src.ID()))
	res.SourceID = src.ID()

	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", zap.Any("panic", r))
			res.Errors = append(res.Errors, eris.Errorf("harvest: source %s panicked: %v", src.ID(), r).Error())
		}
	}()

	records, err := src.Crawl(ctx)
	if err != nil {
		log.Warn("crawl failed", zap.Error(err))
		res.Errors = append(res.Errors, err.Error())
		return res
	}
	res.Crawled = len(records)

	for _, rec := range records {
		if ctx.Err() != nil {
			res.Errors = append(res.Errors, ctx.Err().Error())
			return res
		}
		promoted, err := ing.IngestRecord(ctx, rec)
		if err != nil {
			log.Warn("ingest failed", zap.String("apn", rec.APN), zap.Error(err))
			res.Errors = append(res.Errors, err.Error())
			if dlq != nil {
				dlq.Park(rec, "ingest", err)
			}
			continue
		}
		if promoted {
			res.Promoted++
		}
	}

	log.Info("source complete",
		zap.Int("crawled", res.Crawled),
		zap.Int("promoted", res.Promoted),
		zap.Int("errors", len(res.Errors)))
	return res
}
