package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe/internal/model"
)

func TestDLQEntry_CanRetry(t *testing.T) {
	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		want       bool
	}{
		{"below max", 0, 3, true},
		{"at max", 3, 3, false},
		{"above max", 5, 3, false},
		{"one below max", 2, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := DLQEntry{RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
			assert.Equal(t, tt.want, e.CanRetry())
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient error", NewTransientError(errors.New("503"), 503), "transient"},
		{"permanent error", errors.New("invalid input"), "permanent"},
		{"connection reset", errors.New("connection reset by peer"), "transient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestDLQ_ParkAndList(t *testing.T) {
	q := NewDLQ(3, time.Minute)
	q.Park(model.CrawledRecord{APN: "1"}, "ingest", NewTransientError(errors.New("503"), 503))
	q.Park(model.CrawledRecord{APN: "2"}, "bulk", errors.New("invalid input"))

	require.Equal(t, 2, q.Len())

	transient := q.List(DLQFilter{ErrorType: "transient"})
	require.Len(t, transient, 1)
	assert.Equal(t, "1", transient[0].Record.APN)
	assert.NotEmpty(t, transient[0].ID)
	assert.Equal(t, "ingest", transient[0].FailedPhase)
	assert.True(t, transient[0].NextRetryAt.After(transient[0].CreatedAt))

	assert.Len(t, q.List(DLQFilter{Limit: 1}), 1)
}

func TestDLQ_RedriveRecoversTransient(t *testing.T) {
	q := NewDLQ(3, time.Minute)
	now := time.Now().UTC()
	q.nowFunc = func() time.Time { return now }

	q.Park(model.CrawledRecord{APN: "1"}, "ingest", NewTransientError(errors.New("503"), 503))
	q.Park(model.CrawledRecord{APN: "2"}, "ingest", errors.New("invalid input"))

	// Not due yet.
	replayed, recovered := q.Redrive(context.Background(), func(context.Context, model.CrawledRecord) error {
		return nil
	})
	assert.Zero(t, replayed)
	assert.Zero(t, recovered)

	now = now.Add(2 * time.Minute)
	var got []string
	replayed, recovered = q.Redrive(context.Background(), func(_ context.Context, rec model.CrawledRecord) error {
		got = append(got, rec.APN)
		return nil
	})
	assert.Equal(t, 1, replayed)
	assert.Equal(t, 1, recovered)
	assert.Equal(t, []string{"1"}, got)

	// The permanent entry stays parked.
	assert.Equal(t, 1, q.Len())
}

func TestDLQ_RedriveExhaustsToPermanent(t *testing.T) {
	q := NewDLQ(1, time.Minute)
	now := time.Now().UTC()
	q.nowFunc = func() time.Time { return now }

	q.Park(model.CrawledRecord{APN: "1"}, "ingest", NewTransientError(errors.New("503"), 503))

	now = now.Add(2 * time.Minute)
	fail := func(context.Context, model.CrawledRecord) error { return errors.New("still down") }
	replayed, recovered := q.Redrive(context.Background(), fail)
	assert.Equal(t, 1, replayed)
	assert.Zero(t, recovered)

	perm := q.List(DLQFilter{ErrorType: "permanent"})
	require.Len(t, perm, 1)
	assert.Equal(t, 1, perm[0].RetryCount)

	now = now.Add(2 * time.Minute)
	replayed, _ = q.Redrive(context.Background(), fail)
	assert.Zero(t, replayed, "exhausted entry must not replay")
}
