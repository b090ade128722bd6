package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/resilience"
)

type stubSource struct {
	id      string
	records []model.CrawledRecord
	err     error
	panics  bool
}

func (s *stubSource) ID() string   { return s.id }
func (s *stubSource) Name() string { return s.id }
func (s *stubSource) Crawl(_ context.Context) ([]model.CrawledRecord, error) {
	if s.panics {
		panic("adapter bug")
	}
	return s.records, s.err
}

type stubIngestor struct {
	promoteAll bool
	failAPNs   map[string]bool
	ingested   []model.CrawledRecord
}

func (i *stubIngestor) IngestRecord(_ context.Context, rec model.CrawledRecord) (bool, error) {
	if i.failAPNs[rec.APN] {
		return false, errors.New("ingest: boom")
	}
	i.ingested = append(i.ingested, rec)
	return i.promoteAll, nil
}

func recs(apns ...string) []model.CrawledRecord {
	out := make([]model.CrawledRecord, len(apns))
	for i, apn := range apns {
		out[i] = model.CrawledRecord{APN: apn, Type: model.EventTaxLien}
	}
	return out
}

func TestRunAll_AllSourcesSucceed(t *testing.T) {
	sources := []Source{
		&stubSource{id: "a", records: recs("1", "2")},
		&stubSource{id: "b", records: recs("3")},
	}
	ing := &stubIngestor{promoteAll: true}

	results, err := RunAll(context.Background(), sources, ing, Options{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "a", results[0].SourceID)
	assert.Equal(t, 2, results[0].Crawled)
	assert.Equal(t, 2, results[0].Promoted)
	assert.Empty(t, results[0].Errors)
	assert.Equal(t, 1, results[1].Crawled)
	assert.Len(t, ing.ingested, 3)
}

func TestRunAll_PanickingSourceDoesNotBlockSiblings(t *testing.T) {
	sources := []Source{
		&stubSource{id: "bad", panics: true},
		&stubSource{id: "good", records: recs("1")},
	}
	ing := &stubIngestor{promoteAll: true}

	results, err := RunAll(context.Background(), sources, ing, Options{Concurrency: 1})
	require.NoError(t, err)

	assert.Len(t, results[0].Errors, 1)
	assert.Contains(t, results[0].Errors[0], "panicked")
	assert.Equal(t, 1, results[1].Crawled)
	assert.Equal(t, 1, results[1].Promoted)
}

func TestRunAll_CrawlErrorRecorded(t *testing.T) {
	sources := []Source{
		&stubSource{id: "down", err: errors.New("fetch: status 503")},
		&stubSource{id: "up", records: recs("1")},
	}
	ing := &stubIngestor{}

	results, err := RunAll(context.Background(), sources, ing, Options{})
	require.NoError(t, err)
	assert.Len(t, results[0].Errors, 1)
	assert.Zero(t, results[0].Crawled)
	assert.Equal(t, 1, results[1].Crawled)
}

func TestRunAll_IngestFailureContinues(t *testing.T) {
	sources := []Source{
		&stubSource{id: "a", records: recs("1", "2", "3")},
	}
	ing := &stubIngestor{promoteAll: true, failAPNs: map[string]bool{"2": true}}

	results, err := RunAll(context.Background(), sources, ing, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, results[0].Crawled)
	assert.Equal(t, 2, results[0].Promoted)
	assert.Len(t, results[0].Errors, 1)
}

func TestRunAll_ParksFailedIngests(t *testing.T) {
	sources := []Source{
		&stubSource{id: "a", records: recs("1", "2", "3")},
	}
	ing := &stubIngestor{promoteAll: true, failAPNs: map[string]bool{"2": true}}
	dlq := resilience.NewDLQ(0, 0)

	_, err := RunAll(context.Background(), sources, ing, Options{DLQ: dlq})
	require.NoError(t, err)

	require.Equal(t, 1, dlq.Len())
	entry := dlq.List(resilience.DLQFilter{})[0]
	assert.Equal(t, "2", entry.Record.APN)
	assert.Equal(t, "ingest", entry.FailedPhase)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&stubSource{id: "a"}))
	require.NoError(t, reg.Register(&stubSource{id: "b"}))
	require.NoError(t, reg.Register(&stubSource{id: "c"}))

	assert.Error(t, reg.Register(&stubSource{id: "a"}))
	assert.NotNil(t, reg.Get("b"))
	assert.Nil(t, reg.Get("zz"))
	assert.Len(t, reg.All(), 3)

	rest := reg.Except([]string{"b"})
	require.Len(t, rest, 2)
	assert.Equal(t, "a", rest[0].ID())
	assert.Equal(t, "c", rest[1].ID())
}
