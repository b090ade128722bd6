package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/leadpipe/internal/model"
)

// memStore is an in-memory ingest.Store with the same dedup and upsert
// semantics as the real backends.
type memStore struct {
	mu          sync.Mutex
	properties  map[string]*model.Property // keyed on apn|county
	events      map[string]*model.DistressEvent
	scoring     map[string][]model.ScoringRecord
	predictions map[string][]model.PredictionRecord
}

func newMemStore() *memStore {
	return &memStore{
		properties:  map[string]*model.Property{},
		events:      map[string]*model.DistressEvent{},
		scoring:     map[string][]model.ScoringRecord{},
		predictions: map[string][]model.PredictionRecord{},
	}
}

func (m *memStore) UpsertProperty(_ context.Context, p *model.Property) (*model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := p.APN + "|" + p.County
	existing, ok := m.properties[key]
	if !ok {
		cp := *p
		cp.ID = uuid.New().String()
		cp.CreatedAt = time.Now().UTC()
		cp.UpdatedAt = cp.CreatedAt
		m.properties[key] = &cp
		out := cp
		return &out, nil
	}
	if p.Street != "" {
		existing.Street = p.Street
	}
	if p.OwnerName != "" {
		existing.OwnerName = p.OwnerName
	}
	if p.EquityPercent != nil {
		existing.EquityPercent = p.EquityPercent
	}
	if existing.Flags == nil {
		existing.Flags = map[string]any{}
	}
	for k, v := range p.Flags {
		existing.Flags[k] = v
	}
	existing.UpdatedAt = time.Now().UTC()
	out := *existing
	return &out, nil
}

func (m *memStore) GetProperty(_ context.Context, id string) (*model.Property, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.properties {
		if p.ID == id {
			out := *p
			return &out, nil
		}
	}
	return nil, model.ErrNotFound
}

func (m *memStore) UpdatePropertyFields(_ context.Context, id string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.properties {
		if p.ID != id {
			continue
		}
		if v, ok := fields["owner_name"].(string); ok {
			p.OwnerName = v
		}
		if v, ok := fields["owner_phone"].(string); ok {
			p.OwnerPhone = v
		}
		return nil
	}
	return model.ErrNotFound
}

func (m *memStore) InsertEvent(_ context.Context, e *model.DistressEvent) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[e.Fingerprint]; exists {
		return true, nil
	}
	cp := *e
	cp.ID = uuid.New().String()
	m.events[e.Fingerprint] = &cp
	return false, nil
}

func (m *memStore) ListEventsByProperty(_ context.Context, propertyID string) ([]model.DistressEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DistressEvent
	for _, e := range m.events {
		if e.PropertyID == propertyID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) AppendScoringRecord(_ context.Context, r *model.ScoringRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scoring[r.PropertyID] = append(m.scoring[r.PropertyID], *r)
	return nil
}

func (m *memStore) AppendPredictionRecord(_ context.Context, r *model.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[r.PropertyID] = append(m.predictions[r.PropertyID], *r)
	return nil
}

func (m *memStore) ScoreHistory(_ context.Context, propertyID string, limit int) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	records := m.scoring[propertyID]
	start := 0
	if limit > 0 && len(records) > limit {
		start = len(records) - limit
	}
	var out []float64
	for _, r := range records[start:] {
		out = append(out, r.Composite)
	}
	return out, nil
}

// memLeadStore is an in-memory leads.Store with CAS semantics.
type memLeadStore struct {
	mu    sync.Mutex
	leads map[string]*model.Lead
}

func newMemLeadStore() *memLeadStore {
	return &memLeadStore{leads: map[string]*model.Lead{}}
}

func (m *memLeadStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	out := *l
	return &out, nil
}

func (m *memLeadStore) FindActiveLeadByProperty(_ context.Context, propertyID string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.PropertyID == propertyID && l.Status.IsActive() {
			out := *l
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memLeadStore) CreateLead(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	for _, l := range m.leads {
		if l.PropertyID == lead.PropertyID && l.Status.IsActive() && lead.Status.IsActive() {
			return fmt.Errorf("UNIQUE constraint failed: leads.property_id")
		}
	}
	cp := *lead
	m.leads[lead.ID] = &cp
	return nil
}

func (m *memLeadStore) UpdateLeadCAS(_ context.Context, lead *model.Lead, observedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.leads[lead.ID]
	if !ok {
		return model.ErrNotFound
	}
	if current.LockVersion != observedVersion {
		return model.ErrVersionConflict
	}
	cp := *lead
	cp.LockVersion = observedVersion + 1
	m.leads[lead.ID] = &cp
	lead.LockVersion = cp.LockVersion
	return nil
}

func (m *memLeadStore) activeCount(propertyID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.leads {
		if l.PropertyID == propertyID && l.Status.IsActive() {
			n++
		}
	}
	return n
}

// allowCompliance passes every check.
type allowCompliance struct{}

func (allowCompliance) Check(_ context.Context, _ *model.Lead, _ string) ([]string, error) {
	return nil, nil
}

// memAuditor collects audit entries.
type memAuditor struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memAuditor) Append(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memAuditor) byAction(action string) []model.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AuditEntry
	for _, e := range m.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}
