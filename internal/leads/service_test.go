package leads

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe/internal/model"
)

func newTestService(store *mockStore) (*Service, *mockAuditor) {
	audit := &mockAuditor{}
	svc := NewService(store, &mockCompliance{}, audit, DefaultConfig())
	return svc, audit
}

func TestPromote_CreatesAtProspect(t *testing.T) {
	store := newMockStore()
	svc, audit := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 72.5, "notices", []string{"pre_foreclosure"})
	require.NoError(t, err)
	require.True(t, out.Created)
	assert.Equal(t, model.StatusProspect, out.Lead.Status)
	assert.Equal(t, 72.5, out.Lead.Priority)
	assert.Equal(t, "notices", out.Lead.Source)
	assert.Equal(t, 1, audit.count())
}

func TestPromote_BelowThresholdNoLead(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 50, "notices", nil)
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Nil(t, out.Lead)
	assert.Empty(t, store.leads)
}

func TestPromote_PerSourceThreshold(t *testing.T) {
	cfg := DefaultConfig()
	// push promotes at 60, catalog at 75.
	store := newMockStore()
	svc := NewService(store, nil, nil, cfg)

	out, err := svc.Promote(context.Background(), "prop-push", 62, "push", nil)
	require.NoError(t, err)
	assert.True(t, out.Created, "62 clears the push threshold of 60")

	out, err = svc.Promote(context.Background(), "prop-cat", 62, "catalog_delta", nil)
	require.NoError(t, err)
	assert.False(t, out.Created, "62 misses the catalog threshold of 75")
}

func TestPromote_RefreshesExistingActiveLead(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	first, err := svc.Promote(context.Background(), "prop-1", 70, "notices", []string{"probate"})
	require.NoError(t, err)
	require.True(t, first.Created)

	second, err := svc.Promote(context.Background(), "prop-1", 81, "taxroll", []string{"tax_lien"})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.True(t, second.Refreshed)
	assert.Equal(t, first.Lead.ID, second.Lead.ID, "no duplicate lead row")
	assert.Equal(t, 81.0, second.Lead.Priority)
	assert.ElementsMatch(t, []string{"probate", "tax_lien"}, second.Lead.Tags)
	assert.Len(t, store.leads, 1)
}

func TestPromote_RefreshEvenBelowThreshold(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	first, err := svc.Promote(context.Background(), "prop-1", 90, "notices", nil)
	require.NoError(t, err)
	require.True(t, first.Created)

	// An existing active lead is refreshed regardless of the new score.
	out, err := svc.Promote(context.Background(), "prop-1", 30, "notices", nil)
	require.NoError(t, err)
	assert.True(t, out.Refreshed)
	assert.Equal(t, 30.0, out.Lead.Priority)
}

func TestTransition_Valid(t *testing.T) {
	store := newMockStore()
	svc, audit := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)

	lead, err := svc.Transition(context.Background(), out.Lead.ID, model.StatusLead, "agent-7", "", nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusLead, lead.Status)
	assert.Equal(t, int64(1), lead.LockVersion, "version increments on write")
	assert.GreaterOrEqual(t, audit.count(), 2)
}

func TestTransition_AppendsNote(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)

	lead, err := svc.Transition(context.Background(), out.Lead.ID, model.StatusLead, "agent-7", "spoke to owner, call back Tuesday", nil)
	require.NoError(t, err)
	assert.Contains(t, lead.Notes, "agent-7: spoke to owner, call back Tuesday")

	lead, err = svc.Transition(context.Background(), lead.ID, model.StatusNegotiation, "agent-7", "offer presented", nil)
	require.NoError(t, err)
	assert.Contains(t, lead.Notes, "call back Tuesday")
	assert.Contains(t, lead.Notes, "offer presented")
	assert.Len(t, strings.Split(lead.Notes, "\n"), 2)
}

func TestTransition_Illegal(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), out.Lead.ID, model.StatusClosed, "agent-7", "", nil)
	require.Error(t, err)
	assert.True(t, IsIllegalTransition(err))
}

func TestTransition_VersionConflict(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)

	stale := int64(out.Lead.LockVersion)
	// A concurrent writer bumps the version first.
	_, err = svc.Transition(context.Background(), out.Lead.ID, model.StatusLead, "agent-a", "", &stale)
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), out.Lead.ID, model.StatusNegotiation, "agent-b", "", &stale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrVersionConflict))
}

func TestTransition_ConcurrentClaimSingleWinner(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)
	leadID := out.Lead.ID
	observed := store.version(leadID)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := observed
			_, results[i] = svc.Transition(context.Background(), leadID, model.StatusLead, "racer", "", &v)
		}(i)
	}
	wg.Wait()

	var successes, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, model.ErrVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes, "exactly one claim wins")
	assert.Equal(t, 1, conflicts, "the loser sees a conflict")
	assert.Equal(t, observed+1, store.version(leadID), "version increments exactly once")
}

func TestTransition_ComplianceBlocked(t *testing.T) {
	store := newMockStore()
	audit := &mockAuditor{}

	out, err := NewService(store, nil, audit, DefaultConfig()).
		Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)

	compliance := &mockCompliance{blocked: map[string][]string{
		out.Lead.ID: {"owner on federal do-not-contact scrub"},
	}}
	svc := NewService(store, compliance, audit, DefaultConfig())

	// Moving into lead increases exposure and must be blocked.
	_, err = svc.Transition(context.Background(), out.Lead.ID, model.StatusLead, "agent-7", "", nil)
	require.Error(t, err)
	assert.True(t, IsComplianceBlocked(err))

	// Moving to dead does not increase exposure; the block does not apply.
	_, err = svc.Transition(context.Background(), out.Lead.ID, model.StatusDead, "agent-7", "", nil)
	assert.NoError(t, err)
}

func TestAssign_ComplianceGated(t *testing.T) {
	store := newMockStore()
	svc, _ := newTestService(store)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)

	lead, err := svc.Assign(context.Background(), out.Lead.ID, "agent-9", "manager-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "agent-9", lead.AssignedTo)

	blocked := NewService(store, &mockCompliance{blocked: map[string][]string{
		out.Lead.ID: {"litigation hold"},
	}}, nil, DefaultConfig())
	_, err = blocked.Assign(context.Background(), out.Lead.ID, "agent-9", "manager-1", nil)
	assert.True(t, IsComplianceBlocked(err))
}

func TestGhostMode_SuppressesLoggingNotCompliance(t *testing.T) {
	store := newMockStore()
	audit := &mockAuditor{}
	cfg := DefaultConfig()
	cfg.GhostMode = true

	compliance := &mockCompliance{blocked: map[string][]string{}}
	svc := NewService(store, compliance, audit, cfg)

	out, err := svc.Promote(context.Background(), "prop-1", 70, "notices", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, audit.count(), "ghost mode suppresses activity logging")

	// Compliance still runs in ghost mode.
	compliance.blocked[out.Lead.ID] = []string{"scrub hit"}
	_, err = svc.Transition(context.Background(), out.Lead.ID, model.StatusLead, "agent-7", "", nil)
	assert.True(t, IsComplianceBlocked(err))
}
