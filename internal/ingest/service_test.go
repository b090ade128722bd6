package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/leadpipe/internal/leads"
	"github.com/sells-group/leadpipe/internal/model"
	"github.com/sells-group/leadpipe/internal/predict"
	"github.com/sells-group/leadpipe/internal/scoring"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type testPipeline struct {
	svc     *Service
	store   *memStore
	leadsDB *memLeadStore
	audit   *memAuditor
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()
	st := newMemStore()
	leadsDB := newMemLeadStore()
	auditor := &memAuditor{}
	leadSvc := leads.NewService(leadsDB, allowCompliance{}, auditor, leads.DefaultConfig())

	svc, err := NewService(st, leadSvc, auditor, scoring.DefaultConfig(), predict.DefaultWeights(), Config{
		DefaultCounty:   "Spokane",
		ConversionRates: map[string]float64{"county_notices": 0.08},
	})
	require.NoError(t, err)
	return &testPipeline{svc: svc, store: st, leadsDB: leadsDB, audit: auditor}
}

func preForeclosureRecord() model.CrawledRecord {
	return model.CrawledRecord{
		OwnerName:  "JOHN A MERRIWEATHER",
		APN:        "12345",
		Street:     "4188 E Pinecrest Rd",
		City:       "Spokane",
		State:      "WA",
		County:     "Spokane",
		Date:       time.Now().UTC().Add(-24 * time.Hour),
		Type:       model.EventPreForeclosure,
		Source:     "county_notices",
		Severity:   9,
		Confidence: 0.9,
	}
}

func TestIngestRecord_CreatesLeadAtProspect(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	promoted, err := p.svc.IngestRecord(ctx, preForeclosureRecord())
	require.NoError(t, err)
	assert.True(t, promoted)

	prop, err := p.store.UpsertProperty(ctx, &model.Property{APN: "12345", County: "Spokane"})
	require.NoError(t, err)

	lead, err := p.leadsDB.FindActiveLeadByProperty(ctx, prop.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, model.StatusProspect, lead.Status)
	assert.Equal(t, "county_notices", lead.Source)
	assert.Contains(t, lead.Tags, "pre_foreclosure")

	// Priority mirrors the blended score, which must have cleared the
	// source threshold.
	assert.GreaterOrEqual(t, lead.Priority, 60.0)
	assert.LessOrEqual(t, lead.Priority, 100.0)

	// Both scoring snapshots were appended.
	assert.Len(t, p.store.scoring[prop.ID], 1)
	assert.Len(t, p.store.predictions[prop.ID], 1)

	// Lead priority equals the blend of the two snapshots.
	det := p.store.scoring[prop.ID][0].Composite
	pred := p.store.predictions[prop.ID][0].Score
	assert.InDelta(t, scoring.Blend(det, pred, scoring.DefaultConfig()), lead.Priority, 0.01)
}

func TestIngestRecord_ReingestDedupsAndRefreshes(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	rec := preForeclosureRecord()

	_, err := p.svc.IngestRecord(ctx, rec)
	require.NoError(t, err)

	promoted, err := p.svc.IngestRecord(ctx, rec)
	require.NoError(t, err)
	assert.True(t, promoted)

	// One event, one active lead, but two scoring snapshots.
	assert.Len(t, p.store.events, 1)
	prop, _ := p.store.UpsertProperty(ctx, &model.Property{APN: "12345", County: "Spokane"})
	assert.Equal(t, 1, p.leadsDB.activeCount(prop.ID))
	assert.Len(t, p.store.scoring[prop.ID], 2)

	// The second ingest audit entry reports the dedup.
	audits := p.audit.byAction("ingest.record")
	require.Len(t, audits, 2)
	assert.Equal(t, false, audits[0].Details["event_deduped"])
	assert.Equal(t, true, audits[1].Details["event_deduped"])
}

func TestIngestRecord_SameTypeDifferentSourceIsNewEvent(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.svc.IngestRecord(ctx, preForeclosureRecord())
	require.NoError(t, err)

	other := preForeclosureRecord()
	other.Source = "probate_docket"
	other.Type = model.EventProbate
	_, err = p.svc.IngestRecord(ctx, other)
	require.NoError(t, err)

	assert.Len(t, p.store.events, 2)
}

func TestIngestRecord_NoIdentitySkipped(t *testing.T) {
	p := newTestPipeline(t)

	rec := preForeclosureRecord()
	rec.APN = ""
	promoted, err := p.svc.IngestRecord(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, promoted)
	assert.Empty(t, p.store.events)
	assert.Empty(t, p.store.properties)
}

func TestIngestRecord_UnknownEventTypeRejected(t *testing.T) {
	p := newTestPipeline(t)

	rec := preForeclosureRecord()
	rec.Type = model.EventType("alien_invasion")
	_, err := p.svc.IngestRecord(context.Background(), rec)
	assert.True(t, model.IsValidation(err))
}

func TestIngestRecord_LowSeverityBelowThreshold(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	rec := preForeclosureRecord()
	rec.Type = model.EventCodeViolation
	rec.Severity = 2
	rec.Date = time.Now().UTC().Add(-180 * 24 * time.Hour)

	promoted, err := p.svc.IngestRecord(ctx, rec)
	require.NoError(t, err)
	assert.False(t, promoted)

	// Scored and recorded, just not promoted.
	prop, _ := p.store.UpsertProperty(ctx, &model.Property{APN: "12345", County: "Spokane"})
	assert.Len(t, p.store.scoring[prop.ID], 1)
	assert.Equal(t, 0, p.leadsDB.activeCount(prop.ID))
}

func TestNewService_RejectsBadWeights(t *testing.T) {
	bad := predict.DefaultWeights()
	bad.SignalVelocity -= 0.06 // sum 0.94

	_, err := NewService(newMemStore(), nil, &memAuditor{}, scoring.DefaultConfig(), bad, Config{})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestCorrect_AllowListEnforced(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	_, err := p.svc.IngestRecord(ctx, preForeclosureRecord())
	require.NoError(t, err)
	prop, _ := p.store.UpsertProperty(ctx, &model.Property{APN: "12345", County: "Spokane"})

	err = p.svc.Correct(ctx, Correction{
		PropertyID: prop.ID,
		ActorID:    "agent-1",
		Fields:     map[string]any{"owner_phone": "509-555-0144"},
	})
	require.NoError(t, err)

	got, err := p.store.GetProperty(ctx, prop.ID)
	require.NoError(t, err)
	assert.Equal(t, "509-555-0144", got.OwnerPhone)

	// Identity fields are never correctable.
	err = p.svc.Correct(ctx, Correction{
		PropertyID: prop.ID,
		Fields:     map[string]any{"apn": "99999"},
	})
	assert.True(t, model.IsValidation(err))

	audits := p.audit.byAction("property.corrected")
	require.Len(t, audits, 1)
	assert.Equal(t, "agent-1", audits[0].Actor)
}
