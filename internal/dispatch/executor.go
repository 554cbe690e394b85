package dispatch

import (
	"context"
	"time"

	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

// ResultSet is the ordered output of one fetch.
type ResultSet []workitem.WorkItem

// Executor runs one fetch for a selection key. It is called off the
// coordinating context.
type Executor interface {
	Execute(ctx context.Context, key string) (ResultSet, error)
}

// QueryExecutor fetches all work items of an iteration path from a Store.
type QueryExecutor struct {
	store   store.Store
	filter  func(key string) string
	timeout time.Duration
}

// ExecutorOption configures a QueryExecutor.
type ExecutorOption func(*QueryExecutor)

// WithTimeout bounds each Execute call. Zero disables the bound.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *QueryExecutor) { e.timeout = d }
}

// WithFilter replaces the filter builder, e.g. with wiql.IterationLinkFilter.
func WithFilter(f func(key string) string) ExecutorOption {
	return func(e *QueryExecutor) { e.filter = f }
}

// NewExecutor returns an executor over s using wiql.IterationFilter.
func NewExecutor(s store.Store, opts ...ExecutorOption) *QueryExecutor {
	e := &QueryExecutor{store: s, filter: wiql.IterationFilter}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute returns the work items whose iteration path equals key, in store
// order. An empty key yields an empty result without touching the store. All
// failures are returned as *FetchError.
func (e *QueryExecutor) Execute(ctx context.Context, key string) (ResultSet, error) {
	if key == "" {
		return ResultSet{}, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	q, err := e.store.Compile(ctx, e.filter(key))
	if err != nil {
		return nil, compileOrRunError(key, err)
	}

	if !q.IsLinkQuery() {
		items, err := q.Run(ctx)
		if err != nil {
			return nil, compileOrRunError(key, err)
		}
		return ResultSet(items), nil
	}

	links, err := q.RunLinks(ctx)
	if err != nil {
		return nil, compileOrRunError(key, err)
	}
	out := make(ResultSet, 0, len(links))
	for _, l := range links {
		wi, err := e.store.WorkItem(ctx, l.TargetID)
		if err != nil {
			return nil, resolveError(key, l.TargetID, err)
		}
		out = append(out, wi)
	}
	return out, nil
}
