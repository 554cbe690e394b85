// Package store defines the contract between the dispatcher and the backends
// that hold work items.
package store

import (
	"context"
	"errors"

	"github.com/jask/taskcards/internal/workitem"
)

var (
	// ErrInvalidQuery is returned when a filter does not compile.
	ErrInvalidQuery = errors.New("store: invalid query")
	// ErrUnavailable wraps transport and driver failures.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrNotFound is returned when a work item does not exist.
	ErrNotFound = errors.New("store: work item not found")
)

// Query is a compiled filter. Its shape is fixed at compile time.
type Query interface {
	// IsLinkQuery reports whether the query yields link rows that must be
	// resolved to their targets.
	IsLinkQuery() bool
	// Run executes a direct query.
	Run(ctx context.Context) ([]workitem.WorkItem, error)
	// RunLinks executes a link query.
	RunLinks(ctx context.Context) ([]workitem.Link, error)
}

// Store compiles filters and resolves individual work items.
type Store interface {
	Compile(ctx context.Context, text string) (Query, error)
	WorkItem(ctx context.Context, id int) (workitem.WorkItem, error)
}

// Catalog lists what can be selected.
type Catalog interface {
	Teams(ctx context.Context) ([]workitem.Team, error)
	Iterations(ctx context.Context) ([]string, error)
}

// Backend is a store that also serves the catalog.
type Backend interface {
	Store
	Catalog
}
