package leads

import (
	"context"
	"sync"

	"github.com/sells-group/leadpipe/internal/model"
)

// mockStore is an in-memory Store with CAS semantics matching the
// relational backends.
type mockStore struct {
	mu    sync.Mutex
	leads map[string]*model.Lead

	createErr error
	getErr    error
}

func newMockStore() *mockStore {
	return &mockStore{leads: map[string]*model.Lead{}}
}

func (m *mockStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	l, ok := m.leads[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *mockStore) FindActiveLeadByProperty(ctx context.Context, propertyID string) (*model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.PropertyID == propertyID && l.Status.IsActive() {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *lead
	m.leads[lead.ID] = &cp
	return nil
}

func (m *mockStore) UpdateLeadCAS(ctx context.Context, lead *model.Lead, observedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.leads[lead.ID]
	if !ok {
		return model.ErrNotFound
	}
	if stored.LockVersion != observedVersion {
		return model.ErrVersionConflict
	}
	cp := *lead
	cp.LockVersion = observedVersion + 1
	m.leads[lead.ID] = &cp
	lead.LockVersion = cp.LockVersion
	return nil
}

func (m *mockStore) version(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leads[id].LockVersion
}

// mockCompliance blocks the lead IDs listed in blocked.
type mockCompliance struct {
	blocked map[string][]string
	err     error
}

func (m *mockCompliance) Check(ctx context.Context, lead *model.Lead, actorID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.blocked[lead.ID], nil
}

// mockAuditor records appended entries.
type mockAuditor struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *mockAuditor) Append(ctx context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditor) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
