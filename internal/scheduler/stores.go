package scheduler

import (
	"context"
	"time"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// QueryStore is the slice of the query repository the schedulers consume.
type QueryStore interface {
	ListEscalatable(ctx context.Context, idleBefore time.Time) ([]domain.Query, error)
	ListStale(ctx context.Context, updatedBefore time.Time) ([]domain.Query, error)
	Escalate(ctx context.Context, id, parentInstituteID, parentRoleID string) (*domain.Query, error)
	ForceClose(ctx context.Context, id string) (*domain.Query, error)
}

// InstituteStore resolves hierarchy parents.
type InstituteStore interface {
	GetParent(ctx context.Context, instituteID string) (*domain.Institute, error)
}
