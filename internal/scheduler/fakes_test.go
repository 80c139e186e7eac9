package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/repository"
)

// fakeQueryStore is an in-memory QueryStore. Mutations append a snapshot
// count so tests can assert the audit log grew.
type fakeQueryStore struct {
	mu        sync.Mutex
	queries   map[string]*domain.Query
	snapshots map[string]int
	failErr   map[string]error
}

func newFakeQueryStore() *fakeQueryStore {
	return &fakeQueryStore{
		queries:   map[string]*domain.Query{},
		snapshots: map[string]int{},
		failErr:   map[string]error{},
	}
}

func (f *fakeQueryStore) add(q domain.Query) {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := q
	f.queries[q.ID] = &clone
}

func (f *fakeQueryStore) get(id string) domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.queries[id]
}

func (f *fakeQueryStore) ListEscalatable(ctx context.Context, idleBefore time.Time) ([]domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Query
	for _, q := range f.queries {
		if q.Completed() || q.UpdatedAt.After(idleBefore) {
			continue
		}
		if q.LastEscalatedAt != nil && q.LastEscalatedAt.After(idleBefore) {
			continue
		}
		result = append(result, *q)
	}
	return result, nil
}

func (f *fakeQueryStore) ListStale(ctx context.Context, updatedBefore time.Time) ([]domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Query
	for _, q := range f.queries {
		if q.Completed() || q.UpdatedAt.After(updatedBefore) {
			continue
		}
		result = append(result, *q)
	}
	return result, nil
}

func (f *fakeQueryStore) Escalate(ctx context.Context, id, parentInstituteID, parentRoleID string) (*domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failErr[id]; ok {
		return nil, err
	}
	q, ok := f.queries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if q.Completed() {
		return nil, repository.ErrQueryCompleted
	}
	f.snapshots[id]++
	q.RespondingInstituteID = &parentInstituteID
	q.RespondingRoleID = &parentRoleID
	now := time.Now()
	q.LastEscalatedAt = &now
	q.UpdatedAt = now
	clone := *q
	return &clone, nil
}

func (f *fakeQueryStore) ForceClose(ctx context.Context, id string) (*domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failErr[id]; ok {
		return nil, err
	}
	q, ok := f.queries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if q.Completed() {
		return nil, repository.ErrQueryCompleted
	}
	f.snapshots[id]++
	q.Status = domain.QueryStatusCompleted
	q.UpdatedAt = time.Now()
	clone := *q
	return &clone, nil
}

// fakeInstituteStore resolves parents from a flat map.
type fakeInstituteStore struct {
	parents map[string]*domain.Institute
}

func (f *fakeInstituteStore) GetParent(ctx context.Context, instituteID string) (*domain.Institute, error) {
	parent, ok := f.parents[instituteID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *parent
	return &clone, nil
}

// captureDispatcher records published events.
type captureDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *captureDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(eventType events.EventType, handler events.EventHandler) {}

func (d *captureDispatcher) byType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var result []events.Event
	for _, e := range d.events {
		if e.Type == eventType {
			result = append(result, e)
		}
	}
	return result
}

func openQuery(id, instituteID string, updatedAt time.Time) domain.Query {
	inst := instituteID
	role := "role-" + instituteID
	return domain.Query{
		ID:                    id,
		DisplayID:             "QC-LEAF-001",
		Status:                domain.QueryStatusOpen,
		RespondingInstituteID: &inst,
		RespondingRoleID:      &role,
		CreatedAt:             updatedAt,
		UpdatedAt:             updatedAt,
	}
}
