package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// SubscriberRepository resolves accounts watching an institute.
type SubscriberRepository interface {
	ListByInstitute(ctx context.Context, instituteID string) ([]domain.Subscriber, error)
}

type subscriberRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriberRepository builds the repository.
func NewSubscriberRepository(pool *pgxpool.Pool) SubscriberRepository {
	return &subscriberRepository{pool: pool}
}

func (r *subscriberRepository) ListByInstitute(ctx context.Context, instituteID string) ([]domain.Subscriber, error) {
	const query = `
        SELECT id, user_id, institute_id, device_tokens, created_at, updated_at
        FROM subscribers WHERE institute_id=$1`
	rows, err := r.pool.Query(ctx, query, instituteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.InstituteID,
			&sub.DeviceTokens,
			&sub.CreatedAt,
			&sub.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}
