package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// InstituteRepository reads the institute directory. The routing engine never
// writes institutes; they are maintained by the administration module.
type InstituteRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Institute, error)
	GetParent(ctx context.Context, instituteID string) (*domain.Institute, error)
	TitlesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

type instituteRepository struct {
	pool *pgxpool.Pool
}

// NewInstituteRepository builds the repository.
func NewInstituteRepository(pool *pgxpool.Pool) InstituteRepository {
	return &instituteRepository{pool: pool}
}

func (r *instituteRepository) GetByID(ctx context.Context, id string) (*domain.Institute, error) {
	const query = `
        SELECT id, title, role_id, parent_id, created_at, updated_at
        FROM institutes WHERE id=$1`
	var inst domain.Institute
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&inst.ID,
		&inst.Title,
		&inst.RoleID,
		&inst.ParentID,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *instituteRepository) GetParent(ctx context.Context, instituteID string) (*domain.Institute, error) {
	const query = `
        SELECT p.id, p.title, p.role_id, p.parent_id, p.created_at, p.updated_at
        FROM institutes c
        JOIN institutes p ON p.id = c.parent_id
        WHERE c.id=$1`
	var inst domain.Institute
	if err := r.pool.QueryRow(ctx, query, instituteID).Scan(
		&inst.ID,
		&inst.Title,
		&inst.RoleID,
		&inst.ParentID,
		&inst.CreatedAt,
		&inst.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *instituteRepository) TitlesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	titles := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return titles, nil
	}
	const query = `SELECT id, title FROM institutes WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}
