package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jask/taskcards/internal/database/repository"
	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

// Store serves work items from the local sqlite database.
type Store struct {
	items      *repository.WorkItemRepo
	links      *repository.LinkRepo
	teams      *repository.TeamRepo
	iterations *repository.IterationRepo
}

var _ store.Backend = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{
		items:      repository.NewWorkItemRepo(db),
		links:      repository.NewLinkRepo(db),
		teams:      repository.NewTeamRepo(db),
		iterations: repository.NewIterationRepo(db),
	}
}

var fieldColumns = map[string]string{
	workitem.FieldID:            repository.ColID,
	workitem.FieldType:          repository.ColType,
	workitem.FieldState:         repository.ColState,
	workitem.FieldTitle:         repository.ColTitle,
	workitem.FieldIterationPath: repository.ColIterationPath,
}

// Compile parses text and maps its conditions onto work item columns.
func (s *Store) Compile(_ context.Context, text string) (store.Query, error) {
	q, err := wiql.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidQuery, err)
	}
	cq := &query{s: s, link: q.IsLink()}
	if !cq.link {
		if cq.source, err = toFilters(q.Conditions("")); err != nil {
			return nil, err
		}
		return cq, nil
	}
	if cq.source, err = toFilters(q.Conditions(wiql.PrefixSource)); err != nil {
		return nil, err
	}
	if cq.target, err = toFilters(q.Conditions(wiql.PrefixTarget)); err != nil {
		return nil, err
	}
	return cq, nil
}

func toFilters(conds []wiql.Condition) ([]repository.Filter, error) {
	out := make([]repository.Filter, 0, len(conds))
	for _, c := range conds {
		col, ok := fieldColumns[c.Field]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported field [%s]", store.ErrInvalidQuery, c.Field)
		}
		var v any = c.Value
		if col == repository.ColID {
			n, err := strconv.Atoi(c.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: [%s] needs a number, got %q", store.ErrInvalidQuery, c.Field, c.Value)
			}
			v = n
		}
		out = append(out, repository.Filter{Column: col, Value: v})
	}
	return out, nil
}

// WorkItem resolves one work item by id.
func (s *Store) WorkItem(ctx context.Context, id int) (workitem.WorkItem, error) {
	row, err := s.items.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return workitem.WorkItem{}, fmt.Errorf("%w: %d", store.ErrNotFound, id)
	}
	if err != nil {
		return workitem.WorkItem{}, unavailable(err)
	}
	return row.ToWorkItem(), nil
}

func (s *Store) Teams(ctx context.Context) ([]workitem.Team, error) {
	teams, err := s.teams.List(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return teams, nil
}

func (s *Store) Iterations(ctx context.Context) ([]string, error) {
	paths, err := s.iterations.Paths(ctx)
	if err != nil {
		return nil, unavailable(err)
	}
	return paths, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

type query struct {
	s      *Store
	link   bool
	source []repository.Filter
	target []repository.Filter
}

func (q *query) IsLinkQuery() bool { return q.link }

func (q *query) Run(ctx context.Context) ([]workitem.WorkItem, error) {
	if q.link {
		return nil, fmt.Errorf("%w: link query run as direct query", store.ErrInvalidQuery)
	}
	rows, err := q.s.items.List(ctx, q.source)
	if err != nil {
		return nil, unavailable(err)
	}
	out := make([]workitem.WorkItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToWorkItem())
	}
	return out, nil
}

// RunLinks returns a root row for every matching source item, each followed
// by its outgoing links.
func (q *query) RunLinks(ctx context.Context) ([]workitem.Link, error) {
	if !q.link {
		return nil, fmt.Errorf("%w: direct query run as link query", store.ErrInvalidQuery)
	}
	roots, err := q.s.items.List(ctx, q.source)
	if err != nil {
		return nil, unavailable(err)
	}
	var out []workitem.Link
	for _, r := range roots {
		out = append(out, workitem.Link{TargetID: r.ID})
		links, err := q.s.links.Outgoing(ctx, r.ID, q.target)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, links...)
	}
	return out, nil
}
