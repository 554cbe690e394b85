package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// WorkItemRepo handles work items.
type WorkItemRepo struct {
	db DBTX
}

func NewWorkItemRepo(db DBTX) *WorkItemRepo { return &WorkItemRepo{db: db} }

func (r *WorkItemRepo) Upsert(ctx context.Context, w WorkItem) error {
	fields, err := json.Marshal(w.Fields)
	if err != nil {
		return fmt.Errorf("encode fields of %d: %w", w.ID, err)
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO work_items(id, type, state, title, iteration_path, fields, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
	 type=excluded.type,
	 state=excluded.state,
	 title=excluded.title,
	 iteration_path=excluded.iteration_path,
	 fields=excluded.fields,
	 updated_at=CURRENT_TIMESTAMP;
	`, w.ID, w.Type, w.State, w.Title, w.IterationPath, string(fields))
	return err
}

// Get returns sql.ErrNoRows when id does not exist.
func (r *WorkItemRepo) Get(ctx context.Context, id int) (WorkItem, error) {
	row := r.db.QueryRowContext(ctx, workItemSelect+` WHERE id = ?`, id)
	return scanWorkItem(row)
}

// List returns the rows matching every filter, ordered by id.
func (r *WorkItemRepo) List(ctx context.Context, filters []Filter) ([]WorkItem, error) {
	where, args, err := whereClause("", filters)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, workItemSelect+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WorkItemRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM work_items`).Scan(&n)
	return n, err
}

const workItemSelect = `SELECT id, type, state, title, iteration_path, fields, created_at, updated_at FROM work_items`

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkItem(s scanner) (WorkItem, error) {
	var w WorkItem
	var fields string
	if err := s.Scan(&w.ID, &w.Type, &w.State, &w.Title, &w.IterationPath, &fields, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return WorkItem{}, err
	}
	if fields != "" {
		if err := json.Unmarshal([]byte(fields), &w.Fields); err != nil {
			return WorkItem{}, fmt.Errorf("decode fields of %d: %w", w.ID, err)
		}
	}
	return w, nil
}

var filterColumns = map[string]bool{
	ColID:            true,
	ColType:          true,
	ColState:         true,
	ColTitle:         true,
	ColIterationPath: true,
}

func whereClause(alias string, filters []Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(filters))
	args := make([]any, 0, len(filters))
	for _, f := range filters {
		if !filterColumns[f.Column] {
			return "", nil, fmt.Errorf("unknown filter column %q", f.Column)
		}
		parts = append(parts, alias+f.Column+" = ?")
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
