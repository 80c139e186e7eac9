package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/query-routing-service/internal/domain"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/repository"
	apperrors "github.com/spec-kit/query-routing-service/pkg/util"
)

// RoutingService is the core engine: it computes initial routing on creation,
// records responses, and reassigns responsibility between institutes.
type RoutingService struct {
	queries    repository.QueryRepository
	institutes repository.InstituteRepository
	roles      repository.RoleRepository
	dispatcher events.Dispatcher
}

// RoutingDependencies bundles repositories for the routing service.
type RoutingDependencies struct {
	QueryRepo     repository.QueryRepository
	InstituteRepo repository.InstituteRepository
	RoleRepo      repository.RoleRepository
	Dispatcher    events.Dispatcher
}

// RaiseQueryInput describes query creation payload.
type RaiseQueryInput struct {
	RaisedByUserID     string
	RaisedByRoleID     string
	RaisingInstituteID string

	PatientAge     *int
	Diagnosis      string
	ChiefComplaint string
	IllnessSummary string
	QuestionText   string
}

// NewRoutingService constructs the service.
func NewRoutingService(deps RoutingDependencies) *RoutingService {
	return &RoutingService{
		queries:    deps.QueryRepo,
		institutes: deps.InstituteRepo,
		roles:      deps.RoleRepo,
		dispatcher: deps.Dispatcher,
	}
}

// RaiseQuery creates a query and routes it to the raising institute's parent.
func (s *RoutingService) RaiseQuery(ctx context.Context, input RaiseQueryInput) (*domain.Query, error) {
	role, err := s.roles.GetByID(ctx, input.RaisedByRoleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewValidationError("invalid raising role", map[string]any{"role_id": input.RaisedByRoleID})
		}
		return nil, apperrors.MapError(err)
	}
	if !role.Name.RaisesQueries() {
		return nil, apperrors.NewValidationError("role cannot raise queries", map[string]any{"role": string(role.Name)})
	}

	raising, err := s.institutes.GetByID(ctx, input.RaisingInstituteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("institute", map[string]any{"institute_id": input.RaisingInstituteID})
		}
		return nil, apperrors.MapError(err)
	}
	if raising.IsApex() {
		return nil, apperrors.NewValidationError("apex institute has no parent to route to", map[string]any{"institute_id": raising.ID})
	}
	parent, err := s.institutes.GetByID(ctx, *raising.ParentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("parent institute", map[string]any{"institute_id": *raising.ParentID})
		}
		return nil, apperrors.MapError(err)
	}

	displayID, err := s.nextDisplayID(ctx, role.Name)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	parentRoleID := parent.RoleID
	parentID := parent.ID
	query := &domain.Query{
		DisplayID:             displayID,
		PatientAge:            input.PatientAge,
		Diagnosis:             strings.TrimSpace(input.Diagnosis),
		ChiefComplaint:        strings.TrimSpace(input.ChiefComplaint),
		IllnessSummary:        strings.TrimSpace(input.IllnessSummary),
		QuestionText:          strings.TrimSpace(input.QuestionText),
		RaisedByUserID:        input.RaisedByUserID,
		RaisedByRoleID:        role.ID,
		RaisingInstituteID:    raising.ID,
		RespondingRoleID:      &parentRoleID,
		RespondingInstituteID: &parentID,
		Status:                domain.QueryStatusOpen,
	}

	if err := s.queries.Create(ctx, query); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventQueryRaised,
		QueryID: query.ID,
		Actor:   userActor(input.RaisedByUserID),
		Payload: events.QueryRaisedPayload{
			DisplayID:             query.DisplayID,
			RaisingInstituteID:    query.RaisingInstituteID,
			RespondingInstituteID: parentID,
		},
	})
	return query, nil
}

// RespondToQuery records the answer and completes the query.
func (s *RoutingService) RespondToQuery(ctx context.Context, id, responderID, responseText string) (*domain.Query, error) {
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, apperrors.NewValidationError("response text required", nil)
	}

	query, err := s.queries.Respond(ctx, id, responderID, responseText)
	if err != nil {
		return nil, mapMutationError(err, id)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventQueryResponded,
		QueryID: query.ID,
		Actor:   userActor(responderID),
		Payload: events.QueryRespondedPayload{ResponderID: responderID},
	})
	return query, nil
}

// TransferQueries reassigns responsibility for each query to the target
// institute. A missing query fails the batch loudly, naming the id.
func (s *RoutingService) TransferQueries(ctx context.Context, ids []string, targetInstituteID, actorID string, actorKind domain.ActorKind) error {
	if len(ids) == 0 {
		return apperrors.NewValidationError("no query ids supplied", nil)
	}
	target, err := s.institutes.GetByID(ctx, targetInstituteID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("target institute", map[string]any{"institute_id": targetInstituteID})
		}
		return apperrors.MapError(err)
	}

	for _, id := range ids {
		prev, err := s.queries.GetByID(ctx, id)
		if err != nil {
			return mapMutationError(err, id)
		}
		from := prev.RespondingInstituteID

		query, err := s.queries.Reassign(ctx, id, repository.ReassignTarget{
			InstituteID: target.ID,
			RoleID:      target.RoleID,
			ActorID:     actorID,
			ActorKind:   actorKind,
		})
		if err != nil {
			return mapMutationError(err, id)
		}

		s.publishEvent(ctx, events.Event{
			Type:    events.EventQueryTransferred,
			QueryID: query.ID,
			Actor:   kindActor(actorKind, actorID),
			Payload: events.QueryTransferredPayload{
				FromInstituteID: from,
				ToInstituteID:   target.ID,
			},
		})
	}
	return nil
}

// GetQuery fetches a single query.
func (s *RoutingService) GetQuery(ctx context.Context, id string) (*domain.Query, error) {
	query, err := s.queries.GetByID(ctx, id)
	if err != nil {
		return nil, mapMutationError(err, id)
	}
	return query, nil
}

func (s *RoutingService) nextDisplayID(ctx context.Context, role domain.RoleName) (string, error) {
	seq, err := s.queries.NextDisplaySeq(ctx, string(role))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("QC-%s-%03d", role, seq), nil
}

func (s *RoutingService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func mapMutationError(err error, queryID string) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.NewNotFound("query", map[string]any{"query_id": queryID})
	case errors.Is(err, repository.ErrQueryCompleted):
		return apperrors.NewConflict("query already completed", map[string]any{"query_id": queryID})
	default:
		return apperrors.MapError(err)
	}
}

func userActor(userID string) events.Actor {
	return events.Actor{Kind: domain.ActorKindUser, UserID: &userID}
}

func kindActor(kind domain.ActorKind, id string) events.Actor {
	return events.Actor{Kind: kind, UserID: &id}
}
