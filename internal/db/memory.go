package db

import (
	"context"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/patrickwarner/floodwatch/internal/models"
)

// MemoryReports is an in-process report repository with the same semantics
// as ReportRepository.
type MemoryReports struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	reports map[string]models.Report
	users   map[string]models.User

	// CreateErr and UpdateErr, when set, fail the next writes.
	CreateErr error
	UpdateErr error
}

// NewMemoryReports returns an empty repository. A nil clock uses wall time.
func NewMemoryReports(clock clockwork.Clock) *MemoryReports {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryReports{
		clock:   clock,
		reports: make(map[string]models.Report),
		users:   make(map[string]models.User),
	}
}

// AddUser registers a user so that listings can attribute reports to it.
func (m *MemoryReports) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = m.clock.Now().UTC()
	}
	m.users[u.ID] = u
}

func (m *MemoryReports) Create(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	prepareNew(report, m.clock)
	stored := *report
	stored.Owner = nil
	m.reports[stored.ID] = stored
	return nil
}

func (m *MemoryReports) FindByID(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &r, nil
}

func (m *MemoryReports) Update(ctx context.Context, id string, changes models.ReportChanges) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	r, ok := m.reports[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	changes.Apply(&r)
	m.reports[id] = r
	return &r, nil
}

func (m *MemoryReports) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *MemoryReports) ListAll(ctx context.Context) ([]models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Report, 0, len(m.reports))
	for _, r := range m.reports {
		if u, ok := m.users[r.UserID]; ok {
			r.Owner = &models.Owner{ID: u.ID, Name: u.Name, Email: u.Email}
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryReports) CountUsers(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// Len returns the number of stored reports.
func (m *MemoryReports) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reports)
}
