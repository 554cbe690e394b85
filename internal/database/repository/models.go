package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jask/taskcards/internal/workitem"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Filterable work item columns.
const (
	ColID            = "id"
	ColType          = "type"
	ColState         = "state"
	ColTitle         = "title"
	ColIterationPath = "iteration_path"
)

// Filter is one column = value test. Column must be one of the Col constants.
type Filter struct {
	Column string
	Value  any
}

// WorkItem represents a work_items row.
type WorkItem struct {
	ID            int
	Type          string
	State         string
	Title         string
	IterationPath string
	Fields        map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ToWorkItem converts the row into the read model. Column values are mirrored
// into Fields under their reference names.
func (w WorkItem) ToWorkItem() workitem.WorkItem {
	fields := make(map[string]any, len(w.Fields)+5)
	for k, v := range w.Fields {
		fields[k] = v
	}
	fields[workitem.FieldID] = w.ID
	fields[workitem.FieldType] = w.Type
	fields[workitem.FieldState] = w.State
	fields[workitem.FieldTitle] = w.Title
	fields[workitem.FieldIterationPath] = w.IterationPath
	return workitem.WorkItem{ID: w.ID, State: w.State, Type: w.Type, Fields: fields}
}

// FromWorkItem builds a row from the read model.
func FromWorkItem(wi workitem.WorkItem) WorkItem {
	fields := make(map[string]any, len(wi.Fields))
	for k, v := range wi.Fields {
		switch k {
		case workitem.FieldID, workitem.FieldType, workitem.FieldState, workitem.FieldTitle, workitem.FieldIterationPath:
			continue
		}
		fields[k] = v
	}
	return WorkItem{
		ID:            wi.ID,
		Type:          wi.Type,
		State:         wi.State,
		Title:         wi.Title(),
		IterationPath: wi.IterationPath(),
		Fields:        fields,
	}
}

// Iteration represents an iterations row.
type Iteration struct {
	Path       string
	StartDate  *string
	FinishDate *string
}
