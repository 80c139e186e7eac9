package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/query-routing-service/internal/domain"
)

// ErrQueryCompleted is returned when a mutation targets a query that already
// reached its terminal state.
var ErrQueryCompleted = errors.New("query already completed")

// ReassignTarget describes where a transfer moves a query and who moved it.
type ReassignTarget struct {
	InstituteID string
	RoleID      string
	ActorID     string
	ActorKind   domain.ActorKind
}

// QueryRepository encapsulates query persistence. Every mutating method runs
// as a single transaction that locks the row, appends the pre-mutation
// snapshot to the audit log, and applies the update, so concurrent
// transfer/escalate/close races cannot produce lost updates or unordered
// history.
type QueryRepository interface {
	Create(ctx context.Context, query *domain.Query) error
	GetByID(ctx context.Context, id string) (*domain.Query, error)
	NextDisplaySeq(ctx context.Context, namespace string) (int64, error)

	Respond(ctx context.Context, id, responderID, responseText string) (*domain.Query, error)
	Reassign(ctx context.Context, id string, target ReassignTarget) (*domain.Query, error)
	Escalate(ctx context.Context, id, parentInstituteID, parentRoleID string) (*domain.Query, error)
	ForceClose(ctx context.Context, id string) (*domain.Query, error)

	ListRaisedBy(ctx context.Context, instituteID string, completed bool) ([]domain.Query, error)
	ListAssignedTo(ctx context.Context, instituteID string, completed bool) ([]domain.Query, error)
	ListTransferredFor(ctx context.Context, instituteID string) ([]domain.Query, error)
	CountRaisedBy(ctx context.Context, instituteID string, completed bool) (int64, error)
	CountAssignedTo(ctx context.Context, instituteID string, completed bool) (int64, error)
	CountTransferredFor(ctx context.Context, instituteID string) (int64, error)

	ListEscalatable(ctx context.Context, idleBefore time.Time) ([]domain.Query, error)
	ListStale(ctx context.Context, updatedBefore time.Time) ([]domain.Query, error)
}

type queryRepository struct {
	pool *pgxpool.Pool
}

// NewQueryRepository instantiates the repository.
func NewQueryRepository(pool *pgxpool.Pool) QueryRepository {
	return &queryRepository{pool: pool}
}

const queryColumns = `id, display_id, patient_age, diagnosis, chief_complaint, illness_summary,
        question_text, raised_by_user_id, raised_by_role_id, raising_institute_id,
        responded_by_user_id, responding_role_id, responding_institute_id,
        transferred_by_user_id, transferred_by_admin_id, response_text, status,
        last_escalated_at, created_at, updated_at`

func (r *queryRepository) Create(ctx context.Context, query *domain.Query) error {
	const sql = `
        INSERT INTO queries (display_id, patient_age, diagnosis, chief_complaint, illness_summary,
            question_text, raised_by_user_id, raised_by_role_id, raising_institute_id,
            responding_role_id, responding_institute_id, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, sql,
		query.DisplayID,
		query.PatientAge,
		query.Diagnosis,
		query.ChiefComplaint,
		query.IllnessSummary,
		query.QuestionText,
		query.RaisedByUserID,
		query.RaisedByRoleID,
		query.RaisingInstituteID,
		query.RespondingRoleID,
		query.RespondingInstituteID,
		query.Status,
	).Scan(&query.ID, &query.CreatedAt, &query.UpdatedAt)
}

func (r *queryRepository) GetByID(ctx context.Context, id string) (*domain.Query, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id=$1`, id)
	return scanQueryRow(row)
}

// NextDisplaySeq atomically advances the per-namespace display counter.
func (r *queryRepository) NextDisplaySeq(ctx context.Context, namespace string) (int64, error) {
	const sql = `
        INSERT INTO display_sequences (namespace, value)
        VALUES ($1, 1)
        ON CONFLICT (namespace) DO UPDATE SET value = display_sequences.value + 1
        RETURNING value`
	var value int64
	if err := r.pool.QueryRow(ctx, sql, namespace).Scan(&value); err != nil {
		return 0, err
	}
	return value, nil
}

func (r *queryRepository) Respond(ctx context.Context, id, responderID, responseText string) (*domain.Query, error) {
	return r.mutate(ctx, id, func(q *domain.Query) (string, []any, error) {
		if q.Completed() {
			return "", nil, ErrQueryCompleted
		}
		const sql = `
            UPDATE queries SET responded_by_user_id=$2, response_text=$3,
                status='COMPLETED', updated_at=NOW()
            WHERE id=$1`
		return sql, []any{id, responderID, responseText}, nil
	})
}

func (r *queryRepository) Reassign(ctx context.Context, id string, target ReassignTarget) (*domain.Query, error) {
	return r.mutate(ctx, id, func(q *domain.Query) (string, []any, error) {
		if q.Completed() {
			return "", nil, ErrQueryCompleted
		}
		var byUser, byAdmin *string
		if target.ActorKind == domain.ActorKindAdmin {
			byAdmin = &target.ActorID
		} else {
			byUser = &target.ActorID
		}
		const sql = `
            UPDATE queries SET responding_institute_id=$2, responding_role_id=$3,
                transferred_by_user_id=$4, transferred_by_admin_id=$5,
                status='TRANSFERRED', updated_at=NOW()
            WHERE id=$1`
		return sql, []any{id, target.InstituteID, target.RoleID, byUser, byAdmin}, nil
	})
}

func (r *queryRepository) Escalate(ctx context.Context, id, parentInstituteID, parentRoleID string) (*domain.Query, error) {
	return r.mutate(ctx, id, func(q *domain.Query) (string, []any, error) {
		if q.Completed() {
			return "", nil, ErrQueryCompleted
		}
		const sql = `
            UPDATE queries SET responding_institute_id=$2, responding_role_id=$3,
                last_escalated_at=NOW(), updated_at=NOW()
            WHERE id=$1`
		return sql, []any{id, parentInstituteID, parentRoleID}, nil
	})
}

func (r *queryRepository) ForceClose(ctx context.Context, id string) (*domain.Query, error) {
	return r.mutate(ctx, id, func(q *domain.Query) (string, []any, error) {
		if q.Completed() {
			return "", nil, ErrQueryCompleted
		}
		const sql = `
            UPDATE queries SET status='COMPLETED', updated_at=NOW()
            WHERE id=$1`
		return sql, []any{id}, nil
	})
}

// mutate locks the query row, appends the pre-mutation snapshot, and applies
// the statement produced by build. build may veto the mutation with an error.
func (r *queryRepository) mutate(ctx context.Context, id string, build func(q *domain.Query) (string, []any, error)) (*domain.Query, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	row := tx.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id=$1 FOR UPDATE`, id)
	current, err := scanQueryRow(row)
	if err != nil {
		return nil, err
	}

	sql, args, err := build(current)
	if err != nil {
		return nil, err
	}

	snapshot := domain.SnapshotOf(current)
	const historySQL = `
        INSERT INTO query_history (query_id, status, responded_by_user_id, responding_role_id,
            responding_institute_id, transferred_by_user_id, transferred_by_admin_id, response_text)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	if _, err := tx.Exec(ctx, historySQL,
		snapshot.QueryID,
		snapshot.Status,
		snapshot.RespondedByUserID,
		snapshot.RespondingRoleID,
		snapshot.RespondingInstituteID,
		snapshot.TransferredByUserID,
		snapshot.TransferredByAdminID,
		snapshot.ResponseText,
	); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return nil, err
	}

	row = tx.QueryRow(ctx, `SELECT `+queryColumns+` FROM queries WHERE id=$1`, id)
	updated, err := scanQueryRow(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *queryRepository) ListRaisedBy(ctx context.Context, instituteID string, completed bool) ([]domain.Query, error) {
	sql := `SELECT ` + queryColumns + ` FROM queries
        WHERE raising_institute_id=$1 AND status ` + statusOp(completed) + ` 'COMPLETED'
        ORDER BY updated_at DESC`
	return r.list(ctx, sql, instituteID)
}

func (r *queryRepository) ListAssignedTo(ctx context.Context, instituteID string, completed bool) ([]domain.Query, error) {
	sql := `SELECT ` + queryColumns + ` FROM queries
        WHERE responding_institute_id=$1 AND status ` + statusOp(completed) + ` 'COMPLETED'
        ORDER BY updated_at DESC`
	return r.list(ctx, sql, instituteID)
}

// ListTransferredFor returns queries that ever moved sideways and are relevant
// to the institute: either currently assigned to it, or routed through it at
// some point of their history.
func (r *queryRepository) ListTransferredFor(ctx context.Context, instituteID string) ([]domain.Query, error) {
	sql := `SELECT ` + queryColumns + ` FROM queries q
        WHERE ` + transferredClause + `
        ORDER BY updated_at DESC`
	return r.list(ctx, sql, instituteID)
}

const transferredClause = `(q.status = 'TRANSFERRED'
            OR EXISTS (SELECT 1 FROM query_history h WHERE h.query_id = q.id AND h.status = 'TRANSFERRED'))
        AND (q.responding_institute_id = $1
            OR EXISTS (SELECT 1 FROM query_history h WHERE h.query_id = q.id AND h.responding_institute_id = $1))`

func (r *queryRepository) CountRaisedBy(ctx context.Context, instituteID string, completed bool) (int64, error) {
	sql := `SELECT COUNT(*) FROM queries WHERE raising_institute_id=$1 AND status ` + statusOp(completed) + ` 'COMPLETED'`
	return r.count(ctx, sql, instituteID)
}

func (r *queryRepository) CountAssignedTo(ctx context.Context, instituteID string, completed bool) (int64, error) {
	sql := `SELECT COUNT(*) FROM queries WHERE responding_institute_id=$1 AND status ` + statusOp(completed) + ` 'COMPLETED'`
	return r.count(ctx, sql, instituteID)
}

func (r *queryRepository) CountTransferredFor(ctx context.Context, instituteID string) (int64, error) {
	sql := `SELECT COUNT(*) FROM queries q WHERE ` + transferredClause
	return r.count(ctx, sql, instituteID)
}

// ListEscalatable selects non-completed queries idle past the threshold that
// have not been escalated since crossing it.
func (r *queryRepository) ListEscalatable(ctx context.Context, idleBefore time.Time) ([]domain.Query, error) {
	sql := `SELECT ` + queryColumns + ` FROM queries
        WHERE status <> 'COMPLETED' AND updated_at <= $1
          AND (last_escalated_at IS NULL OR last_escalated_at <= $1)
        ORDER BY updated_at ASC`
	return r.list(ctx, sql, idleBefore)
}

func (r *queryRepository) ListStale(ctx context.Context, updatedBefore time.Time) ([]domain.Query, error) {
	sql := `SELECT ` + queryColumns + ` FROM queries
        WHERE status <> 'COMPLETED' AND updated_at <= $1
        ORDER BY updated_at ASC`
	return r.list(ctx, sql, updatedBefore)
}

func (r *queryRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Query, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanQueries(rows)
}

func (r *queryRepository) count(ctx context.Context, sql string, args ...any) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func statusOp(completed bool) string {
	if completed {
		return "="
	}
	return "<>"
}

func scanQueryRow(row pgx.Row) (*domain.Query, error) {
	var q domain.Query
	if err := row.Scan(
		&q.ID,
		&q.DisplayID,
		&q.PatientAge,
		&q.Diagnosis,
		&q.ChiefComplaint,
		&q.IllnessSummary,
		&q.QuestionText,
		&q.RaisedByUserID,
		&q.RaisedByRoleID,
		&q.RaisingInstituteID,
		&q.RespondedByUserID,
		&q.RespondingRoleID,
		&q.RespondingInstituteID,
		&q.TransferredByUserID,
		&q.TransferredByAdminID,
		&q.ResponseText,
		&q.Status,
		&q.LastEscalatedAt,
		&q.CreatedAt,
		&q.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &q, nil
}

func scanQueries(rows pgx.Rows) ([]domain.Query, error) {
	var result []domain.Query
	for rows.Next() {
		q, err := scanQueryRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *q)
	}
	return result, rows.Err()
}
