package reports

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// Requests собирает строки отчёта по заявкам за период.
// Фильтр по статусу добавляется только если он задан.
func (r *Repo) Requests(ctx context.Context, f Filter) ([]Row, error) {
	qb := sq.Select(
		"r.number", "r.title", "r.status",
		"o.name",
		"COALESCE(s.full_name, '')",
		"COALESCE(m.full_name, '')",
		"r.created_at", "r.due_at",
		"r.planned_budget", "r.actual_budget", "r.planned_hours", "r.actual_hours",
	).
		From("requests r").
		Join("objects o ON o.id = r.object_id").
		LeftJoin("users s ON s.id = r.specialist_id").
		LeftJoin("users m ON m.id = r.master_id").
		Where(sq.GtOrEq{"r.created_at": f.From}).
		Where(sq.Lt{"r.created_at": f.To}).
		OrderBy("r.created_at").
		PlaceholderFormat(sq.Dollar)

	if f.Status != "" {
		qb = qb.Where(sq.Eq{"r.status": f.Status})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(
			&row.Number, &row.Title, &row.Status,
			&row.ObjectName, &row.Specialist, &row.Master,
			&row.CreatedAt, &row.DueAt,
			&row.PlannedBudget, &row.ActualBudget, &row.PlannedHours, &row.ActualHours,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
