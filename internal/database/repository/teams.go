package repository

import (
	"context"

	"github.com/jask/taskcards/internal/workitem"
)

// TeamRepo handles teams.
type TeamRepo struct {
	db DBTX
}

func NewTeamRepo(db DBTX) *TeamRepo { return &TeamRepo{db: db} }

func (r *TeamRepo) Upsert(ctx context.Context, t workitem.Team) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO teams(name, current_iteration) VALUES (?, ?)
	ON CONFLICT(name) DO UPDATE SET current_iteration=excluded.current_iteration;
	`, t.Name, t.CurrentIteration)
	return err
}

func (r *TeamRepo) List(ctx context.Context) ([]workitem.Team, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, current_iteration FROM teams ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []workitem.Team
	for rows.Next() {
		var t workitem.Team
		if err := rows.Scan(&t.Name, &t.CurrentIteration); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// IterationRepo handles iterations.
type IterationRepo struct {
	db DBTX
}

func NewIterationRepo(db DBTX) *IterationRepo { return &IterationRepo{db: db} }

func (r *IterationRepo) Upsert(ctx context.Context, it Iteration) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO iterations(path, start_date, finish_date) VALUES (?, ?, ?)
	ON CONFLICT(path) DO UPDATE SET start_date=excluded.start_date, finish_date=excluded.finish_date;
	`, it.Path, it.StartDate, it.FinishDate)
	return err
}

// Paths lists every known iteration path, including those only referenced by
// work items, sorted.
func (r *IterationRepo) Paths(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT path FROM iterations
	UNION
	SELECT DISTINCT iteration_path FROM work_items WHERE iteration_path != ''
	ORDER BY 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
