package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe/internal/model"
)

func TestRescore_AppendsSnapshotsAndRefreshes(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()

	promoted, err := p.svc.IngestRecord(ctx, preForeclosureRecord())
	require.NoError(t, err)
	require.True(t, promoted)

	prop, err := p.store.UpsertProperty(ctx, &model.Property{APN: "12345", County: "Spokane"})
	require.NoError(t, err)

	res, err := p.svc.Rescore(ctx, prop.ID)
	require.NoError(t, err)

	assert.Equal(t, prop.ID, res.PropertyID)
	assert.NotEmpty(t, res.LeadID)
	assert.True(t, res.Refreshed)
	assert.False(t, res.Created)
	assert.Greater(t, res.Blended, 0.0)

	// A rescore appends new snapshots, it never rewrites history.
	assert.Len(t, p.store.scoring[prop.ID], 2)
	assert.Len(t, p.store.predictions[prop.ID], 2)

	// No new event was recorded.
	events, err := p.store.ListEventsByProperty(ctx, prop.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRescore_ValidatesPropertyID(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.svc.Rescore(context.Background(), "")
	assert.True(t, model.IsValidation(err))
}

func TestRescore_UnknownProperty(t *testing.T) {
	p := newTestPipeline(t)

	_, err := p.svc.Rescore(context.Background(), "missing")
	assert.Error(t, err)
}
