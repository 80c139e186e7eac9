package service

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/repository"
	apperrors "github.com/spec-kit/query-routing-service/pkg/util"
)

const titleLookupConcurrency = 4

// ViewService computes the per-institute work queues. The hierarchy has three
// tiers, so the computation is a tagged variant over {leaf, regional, apex},
// selected once per call from the institute's role.
type ViewService struct {
	queries    repository.QueryRepository
	history    repository.QueryHistoryRepository
	institutes repository.InstituteRepository
	roles      repository.RoleRepository
}

// ViewDependencies bundles repositories for the view service.
type ViewDependencies struct {
	QueryRepo     repository.QueryRepository
	HistoryRepo   repository.QueryHistoryRepository
	InstituteRepo repository.InstituteRepository
	RoleRepo      repository.RoleRepository
}

// Queues carries the independent raised-side and assigned-side lists. Leaf
// institutes only have a raised side; apex institutes only an assigned side;
// regional institutes both.
type Queues struct {
	Raised   []domain.Query
	Assigned []domain.Query
}

// TransferredItem annotates a transferred query with the title of the
// institute it first moved to, for display.
type TransferredItem struct {
	Query   domain.Query
	MovedTo string
}

// Counts is the per-institute report.
type Counts struct {
	Total        int64
	Open         int64
	Closed       int64
	Transferred  int64
	RaisedOpen   int64
	RaisedClosed int64
}

// NewViewService constructs the service.
func NewViewService(deps ViewDependencies) *ViewService {
	return &ViewService{
		queries:    deps.QueryRepo,
		history:    deps.HistoryRepo,
		institutes: deps.InstituteRepo,
		roles:      deps.RoleRepo,
	}
}

// ListOpen returns the queries the institute still needs to act on.
func (s *ViewService) ListOpen(ctx context.Context, instituteID string) (*Queues, error) {
	return s.queues(ctx, instituteID, false)
}

// ListClosed returns the completed queries for the institute. Force-closed
// queries appear here too; callers tell them apart by the nil response text.
func (s *ViewService) ListClosed(ctx context.Context, instituteID string) (*Queues, error) {
	return s.queues(ctx, instituteID, true)
}

func (s *ViewService) queues(ctx context.Context, instituteID string, completed bool) (*Queues, error) {
	role, err := s.instituteRole(ctx, instituteID)
	if err != nil {
		return nil, err
	}

	switch role {
	case domain.RoleLeaf:
		return s.leafQueues(ctx, instituteID, completed)
	case domain.RoleRegional:
		return s.regionalQueues(ctx, instituteID, completed)
	case domain.RoleApex:
		return s.apexQueues(ctx, instituteID, completed)
	default:
		return nil, apperrors.NewValidationError("institute role has no queues", map[string]any{"role": string(role)})
	}
}

func (s *ViewService) leafQueues(ctx context.Context, instituteID string, completed bool) (*Queues, error) {
	raised, err := s.queries.ListRaisedBy(ctx, instituteID, completed)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Queues{Raised: raised}, nil
}

func (s *ViewService) regionalQueues(ctx context.Context, instituteID string, completed bool) (*Queues, error) {
	g, gctx := errgroup.WithContext(ctx)
	var raised, assigned []domain.Query
	g.Go(func() error {
		var err error
		raised, err = s.queries.ListRaisedBy(gctx, instituteID, completed)
		return err
	})
	g.Go(func() error {
		var err error
		assigned, err = s.queries.ListAssignedTo(gctx, instituteID, completed)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Queues{Raised: raised, Assigned: assigned}, nil
}

func (s *ViewService) apexQueues(ctx context.Context, instituteID string, completed bool) (*Queues, error) {
	assigned, err := s.queries.ListAssignedTo(ctx, instituteID, completed)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Queues{Assigned: assigned}, nil
}

// ListTransferred returns queries that moved sideways through the institute,
// each annotated with the title of the institute recorded in the first audit
// entry. Missing lookups degrade to empty titles rather than failing the list.
func (s *ViewService) ListTransferred(ctx context.Context, instituteID string) ([]TransferredItem, error) {
	role, err := s.instituteRole(ctx, instituteID)
	if err != nil {
		return nil, err
	}
	if role == domain.RoleLeaf {
		return []TransferredItem{}, nil
	}

	transferred, err := s.queries.ListTransferredFor(ctx, instituteID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(transferred) == 0 {
		return []TransferredItem{}, nil
	}

	// Per-query first-snapshot lookups are independent; run them bounded.
	targets := make([]string, len(transferred))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(titleLookupConcurrency)
	for i := range transferred {
		g.Go(func() error {
			first, err := s.history.FirstByQuery(gctx, transferred[i].ID)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil
				}
				return err
			}
			if first.RespondingInstituteID != nil {
				mu.Lock()
				targets[i] = *first.RespondingInstituteID
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}

	ids := make([]string, 0, len(targets))
	for _, id := range targets {
		if id != "" {
			ids = append(ids, id)
		}
	}
	titles, err := s.institutes.TitlesByIDs(ctx, ids)
	if err != nil {
		titles = map[string]string{}
	}

	items := make([]TransferredItem, 0, len(transferred))
	for i := range transferred {
		items = append(items, TransferredItem{
			Query:   transferred[i],
			MovedTo: titles[targets[i]],
		})
	}
	return items, nil
}

// ReportCounts aggregates per-institute totals for the reporting surface.
func (s *ViewService) ReportCounts(ctx context.Context, instituteID string) (*Counts, error) {
	role, err := s.instituteRole(ctx, instituteID)
	if err != nil {
		return nil, err
	}

	counts := &Counts{}
	g, gctx := errgroup.WithContext(ctx)

	if role == domain.RoleLeaf || role == domain.RoleRegional {
		g.Go(func() error {
			n, err := s.queries.CountRaisedBy(gctx, instituteID, false)
			counts.RaisedOpen = n
			return err
		})
		g.Go(func() error {
			n, err := s.queries.CountRaisedBy(gctx, instituteID, true)
			counts.RaisedClosed = n
			return err
		})
	}
	if role == domain.RoleRegional || role == domain.RoleApex {
		g.Go(func() error {
			n, err := s.queries.CountAssignedTo(gctx, instituteID, false)
			counts.Open = n
			return err
		})
		g.Go(func() error {
			n, err := s.queries.CountAssignedTo(gctx, instituteID, true)
			counts.Closed = n
			return err
		})
		g.Go(func() error {
			n, err := s.queries.CountTransferredFor(gctx, instituteID)
			counts.Transferred = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.MapError(err)
	}

	counts.Total = counts.Open + counts.Closed + counts.RaisedOpen + counts.RaisedClosed
	return counts, nil
}

func (s *ViewService) instituteRole(ctx context.Context, instituteID string) (domain.RoleName, error) {
	inst, err := s.institutes.GetByID(ctx, instituteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("institute", map[string]any{"institute_id": instituteID})
		}
		return "", apperrors.MapError(err)
	}
	role, err := s.roles.GetByID(ctx, inst.RoleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewNotFound("role", map[string]any{"role_id": inst.RoleID})
		}
		return "", apperrors.MapError(err)
	}
	return role.Name, nil
}
