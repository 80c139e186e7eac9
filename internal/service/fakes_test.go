package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/repository"
)

// fakeStore is an in-memory stand-in for the query and history repositories,
// mirroring the transactional semantics of the real implementation: every
// mutation appends the pre-mutation snapshot before applying the change.
type fakeStore struct {
	mu      sync.Mutex
	queries map[string]*domain.Query
	history map[string][]domain.QuerySnapshot
	seqs    map[string]int64
	nextID  int
	failOn  map[string]error
	clock   time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		queries: map[string]*domain.Query{},
		history: map[string][]domain.QuerySnapshot{},
		seqs:    map[string]int64{},
		failOn:  map[string]error{},
		clock:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) Create(ctx context.Context, query *domain.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	query.ID = fmt.Sprintf("q-%03d", f.nextID)
	now := f.tick()
	query.CreatedAt = now
	query.UpdatedAt = now
	clone := *query
	f.queries[query.ID] = &clone
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(id)
}

func (f *fakeStore) get(id string) (*domain.Query, error) {
	if err, ok := f.failOn[id]; ok {
		return nil, err
	}
	query, ok := f.queries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *query
	return &clone, nil
}

func (f *fakeStore) NextDisplaySeq(ctx context.Context, namespace string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seqs[namespace]++
	return f.seqs[namespace], nil
}

func (f *fakeStore) mutate(id string, apply func(q *domain.Query) error) (*domain.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[id]; ok {
		return nil, err
	}
	query, ok := f.queries[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if query.Completed() {
		return nil, repository.ErrQueryCompleted
	}
	snap := domain.SnapshotOf(query)
	snap.ID = fmt.Sprintf("h-%s-%d", id, len(f.history[id])+1)
	snap.CreatedAt = f.tick()
	f.history[id] = append(f.history[id], *snap)
	if err := apply(query); err != nil {
		return nil, err
	}
	query.UpdatedAt = f.tick()
	clone := *query
	return &clone, nil
}

func (f *fakeStore) Respond(ctx context.Context, id, responderID, responseText string) (*domain.Query, error) {
	return f.mutate(id, func(q *domain.Query) error {
		q.RespondedByUserID = &responderID
		q.ResponseText = &responseText
		q.Status = domain.QueryStatusCompleted
		return nil
	})
}

func (f *fakeStore) Reassign(ctx context.Context, id string, target repository.ReassignTarget) (*domain.Query, error) {
	return f.mutate(id, func(q *domain.Query) error {
		inst := target.InstituteID
		role := target.RoleID
		actor := target.ActorID
		q.RespondingInstituteID = &inst
		q.RespondingRoleID = &role
		if target.ActorKind == domain.ActorKindAdmin {
			q.TransferredByAdminID = &actor
			q.TransferredByUserID = nil
		} else {
			q.TransferredByUserID = &actor
			q.TransferredByAdminID = nil
		}
		q.Status = domain.QueryStatusTransferred
		return nil
	})
}

func (f *fakeStore) Escalate(ctx context.Context, id, parentInstituteID, parentRoleID string) (*domain.Query, error) {
	return f.mutate(id, func(q *domain.Query) error {
		q.RespondingInstituteID = &parentInstituteID
		q.RespondingRoleID = &parentRoleID
		now := f.clock
		q.LastEscalatedAt = &now
		return nil
	})
}

func (f *fakeStore) ForceClose(ctx context.Context, id string) (*domain.Query, error) {
	return f.mutate(id, func(q *domain.Query) error {
		q.Status = domain.QueryStatusCompleted
		return nil
	})
}

func (f *fakeStore) ListRaisedBy(ctx context.Context, instituteID string, completed bool) ([]domain.Query, error) {
	return f.filter(func(q *domain.Query) bool {
		return q.RaisingInstituteID == instituteID && q.Completed() == completed
	}), nil
}

func (f *fakeStore) ListAssignedTo(ctx context.Context, instituteID string, completed bool) ([]domain.Query, error) {
	return f.filter(func(q *domain.Query) bool {
		return q.RespondingInstituteID != nil && *q.RespondingInstituteID == instituteID && q.Completed() == completed
	}), nil
}

func (f *fakeStore) ListTransferredFor(ctx context.Context, instituteID string) ([]domain.Query, error) {
	return f.filter(func(q *domain.Query) bool {
		return f.transferredFor(q, instituteID)
	}), nil
}

func (f *fakeStore) transferredFor(q *domain.Query, instituteID string) bool {
	moved := q.Status == domain.QueryStatusTransferred
	for _, snap := range f.history[q.ID] {
		if snap.Status == domain.QueryStatusTransferred {
			moved = true
		}
	}
	if !moved {
		return false
	}
	if q.RespondingInstituteID != nil && *q.RespondingInstituteID == instituteID {
		return true
	}
	for _, snap := range f.history[q.ID] {
		if snap.RespondingInstituteID != nil && *snap.RespondingInstituteID == instituteID {
			return true
		}
	}
	return false
}

func (f *fakeStore) CountRaisedBy(ctx context.Context, instituteID string, completed bool) (int64, error) {
	list, _ := f.ListRaisedBy(ctx, instituteID, completed)
	return int64(len(list)), nil
}

func (f *fakeStore) CountAssignedTo(ctx context.Context, instituteID string, completed bool) (int64, error) {
	list, _ := f.ListAssignedTo(ctx, instituteID, completed)
	return int64(len(list)), nil
}

func (f *fakeStore) CountTransferredFor(ctx context.Context, instituteID string) (int64, error) {
	list, _ := f.ListTransferredFor(ctx, instituteID)
	return int64(len(list)), nil
}

func (f *fakeStore) ListEscalatable(ctx context.Context, idleBefore time.Time) ([]domain.Query, error) {
	return f.filter(func(q *domain.Query) bool {
		if q.Completed() || q.UpdatedAt.After(idleBefore) {
			return false
		}
		return q.LastEscalatedAt == nil || !q.LastEscalatedAt.After(idleBefore)
	}), nil
}

func (f *fakeStore) ListStale(ctx context.Context, updatedBefore time.Time) ([]domain.Query, error) {
	return f.filter(func(q *domain.Query) bool {
		return !q.Completed() && !q.UpdatedAt.After(updatedBefore)
	}), nil
}

func (f *fakeStore) filter(keep func(q *domain.Query) bool) []domain.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []domain.Query
	for i := 1; i <= f.nextID; i++ {
		id := fmt.Sprintf("q-%03d", i)
		if q, ok := f.queries[id]; ok && keep(q) {
			result = append(result, *q)
		}
	}
	return result
}

// QueryHistoryRepository side of the fake.

func (f *fakeStore) ListByQuery(ctx context.Context, queryID string) ([]domain.QuerySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.QuerySnapshot{}, f.history[queryID]...), nil
}

func (f *fakeStore) FirstByQuery(ctx context.Context, queryID string) (*domain.QuerySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.history[queryID]
	if len(entries) == 0 {
		return nil, pgx.ErrNoRows
	}
	clone := entries[0]
	return &clone, nil
}

func (f *fakeStore) CountByQuery(ctx context.Context, queryID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.history[queryID])), nil
}

// fakeDirectory is an in-memory institute and role directory.
type fakeDirectory struct {
	institutes map[string]*domain.Institute
	roles      map[string]*domain.Role
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		institutes: map[string]*domain.Institute{},
		roles:      map[string]*domain.Role{},
	}
}

func (d *fakeDirectory) addRole(id string, name domain.RoleName) {
	d.roles[id] = &domain.Role{ID: id, Name: name}
}

func (d *fakeDirectory) addInstitute(id, title, roleID string, parentID *string) {
	d.institutes[id] = &domain.Institute{ID: id, Title: title, RoleID: roleID, ParentID: parentID}
}

func (d *fakeDirectory) GetByID(ctx context.Context, id string) (*domain.Institute, error) {
	inst, ok := d.institutes[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *inst
	return &clone, nil
}

func (d *fakeDirectory) GetParent(ctx context.Context, instituteID string) (*domain.Institute, error) {
	inst, ok := d.institutes[instituteID]
	if !ok || inst.ParentID == nil {
		return nil, pgx.ErrNoRows
	}
	return d.GetByID(ctx, *inst.ParentID)
}

func (d *fakeDirectory) TitlesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	for _, id := range ids {
		if inst, ok := d.institutes[id]; ok {
			titles[id] = inst.Title
		}
	}
	return titles, nil
}

func (d *fakeDirectory) RoleByID(ctx context.Context, id string) (*domain.Role, error) {
	role, ok := d.roles[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *role
	return &clone, nil
}

// fakeRoleRepo adapts fakeDirectory to the RoleRepository interface.
type fakeRoleRepo struct {
	dir *fakeDirectory
}

func (r *fakeRoleRepo) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.dir.RoleByID(ctx, id)
}

func (r *fakeRoleRepo) GetByName(ctx context.Context, name domain.RoleName) (*domain.Role, error) {
	for _, role := range r.dir.roles {
		if role.Name == name {
			clone := *role
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeRoleRepo) List(ctx context.Context) ([]domain.Role, error) {
	var result []domain.Role
	for _, role := range r.dir.roles {
		result = append(result, *role)
	}
	return result, nil
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
