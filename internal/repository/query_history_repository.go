package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// QueryHistoryRepository reads the append-only audit log. Snapshot writes
// happen inside QueryRepository transactions; this repository only serves
// audit and view lookups.
type QueryHistoryRepository interface {
	ListByQuery(ctx context.Context, queryID string) ([]domain.QuerySnapshot, error)
	FirstByQuery(ctx context.Context, queryID string) (*domain.QuerySnapshot, error)
	CountByQuery(ctx context.Context, queryID string) (int64, error)
}

type queryHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewQueryHistoryRepository builds the repository.
func NewQueryHistoryRepository(pool *pgxpool.Pool) QueryHistoryRepository {
	return &queryHistoryRepository{pool: pool}
}

const snapshotColumns = `id, query_id, status, responded_by_user_id, responding_role_id,
        responding_institute_id, transferred_by_user_id, transferred_by_admin_id, response_text, created_at`

func (r *queryHistoryRepository) ListByQuery(ctx context.Context, queryID string) ([]domain.QuerySnapshot, error) {
	sql := `SELECT ` + snapshotColumns + ` FROM query_history WHERE query_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, sql, queryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.QuerySnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *snap)
	}
	return result, rows.Err()
}

func (r *queryHistoryRepository) FirstByQuery(ctx context.Context, queryID string) (*domain.QuerySnapshot, error) {
	sql := `SELECT ` + snapshotColumns + ` FROM query_history WHERE query_id=$1 ORDER BY created_at ASC LIMIT 1`
	return scanSnapshot(r.pool.QueryRow(ctx, sql, queryID))
}

func (r *queryHistoryRepository) CountByQuery(ctx context.Context, queryID string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM query_history WHERE query_id=$1`, queryID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func scanSnapshot(row pgx.Row) (*domain.QuerySnapshot, error) {
	var snap domain.QuerySnapshot
	if err := row.Scan(
		&snap.ID,
		&snap.QueryID,
		&snap.Status,
		&snap.RespondedByUserID,
		&snap.RespondingRoleID,
		&snap.RespondingInstituteID,
		&snap.TransferredByUserID,
		&snap.TransferredByAdminID,
		&snap.ResponseText,
		&snap.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &snap, nil
}
