package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadpipe/internal/model"
)

// DLQEntry represents a crawled record that failed ingestion and can be
// retried later.
type DLQEntry struct {
	ID           string              `json:"id"`
	Record       model.CrawledRecord `json:"record"`
	Error        string              `json:"error"`
	ErrorType    string              `json:"error_type"` // "transient" or "permanent"
	FailedPhase  string              `json:"failed_phase,omitempty"`
	RetryCount   int                 `json:"retry_count"`
	MaxRetries   int                 `json:"max_retries"`
	NextRetryAt  time.Time           `json:"next_retry_at"`
	CreatedAt    time.Time           `json:"created_at"`
	LastFailedAt time.Time           `json:"last_failed_at"`
}

// DLQFilter specifies criteria for querying the dead letter queue.
type DLQFilter struct {
	ErrorType string `json:"error_type,omitempty"` // "transient", "permanent", or "" for all
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry returns true if this entry hasn't exceeded its max retry count.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError categorizes an error as "transient" or "permanent".
func ClassifyError(err error) string {
	if IsTransient(err) {
		return "transient"
	}
	return "permanent"
}

// DLQ parks failed records in memory for later redrive. Safe for
// concurrent use; entries live for the life of the process.
type DLQ struct {
	mu         sync.Mutex
	entries    []*DLQEntry
	maxRetries int
	backoff    time.Duration

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewDLQ creates a queue. maxRetries <= 0 means 3; backoff <= 0 means 5m.
func NewDLQ(maxRetries int, backoff time.Duration) *DLQ {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 5 * time.Minute
	}
	return &DLQ{maxRetries: maxRetries, backoff: backoff, nowFunc: time.Now}
}

// Park adds a record that failed during phase to the queue.
func (q *DLQ) Park(rec model.CrawledRecord, phase string, err error) *DLQEntry {
	now := q.nowFunc().UTC()
	e := &DLQEntry{
		ID:           uuid.NewString(),
		Record:       rec,
		Error:        err.Error(),
		ErrorType:    ClassifyError(err),
		FailedPhase:  phase,
		MaxRetries:   q.maxRetries,
		NextRetryAt:  now.Add(q.backoff),
		CreatedAt:    now,
		LastFailedAt: now,
	}
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	return e
}

// List returns entries matching the filter, oldest first.
func (q *DLQ) List(f DLQFilter) []*DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*DLQEntry
	for _, e := range q.entries {
		if f.ErrorType != "" && e.ErrorType != f.ErrorType {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out
}

// Len reports how many entries are parked.
func (q *DLQ) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Redrive replays due transient entries through fn. Entries that succeed
// leave the queue. Entries that fail again wait out another backoff, and
// an entry out of retries is reclassified as permanent.
func (q *DLQ) Redrive(ctx context.Context, fn func(ctx context.Context, rec model.CrawledRecord) error) (replayed, recovered int) {
	now := q.nowFunc().UTC()

	q.mu.Lock()
	var due []*DLQEntry
	for _, e := range q.entries {
		if e.ErrorType == "transient" && e.CanRetry() && !now.Before(e.NextRetryAt) {
			due = append(due, e)
		}
	}
	q.mu.Unlock()

	done := make(map[string]bool, len(due))
	for _, e := range due {
		if ctx.Err() != nil {
			break
		}
		replayed++
		if err := fn(ctx, e.Record); err != nil {
			q.mu.Lock()
			e.RetryCount++
			e.Error = err.Error()
			e.LastFailedAt = q.nowFunc().UTC()
			e.NextRetryAt = e.LastFailedAt.Add(q.backoff)
			if !e.CanRetry() {
				e.ErrorType = "permanent"
			}
			q.mu.Unlock()
			continue
		}
		recovered++
		done[e.ID] = true
	}

	if len(done) > 0 {
		q.mu.Lock()
		kept := q.entries[:0]
		for _, e := range q.entries {
			if !done[e.ID] {
				kept = append(kept, e)
			}
		}
		q.entries = kept
		q.mu.Unlock()
	}
	return replayed, recovered
}
