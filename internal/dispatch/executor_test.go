package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

// fakeStore compiles with the real parser and serves canned rows.
type fakeStore struct {
	compiled []string
	items    []workitem.WorkItem
	links    []workitem.Link
	byID     map[int]workitem.WorkItem
	runErr   error
	getErr   map[int]error
	block    bool
}

type fakeQuery struct {
	s    *fakeStore
	link bool
}

func (s *fakeStore) Compile(_ context.Context, text string) (store.Query, error) {
	s.compiled = append(s.compiled, text)
	q, err := wiql.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidQuery, err)
	}
	return &fakeQuery{s: s, link: q.IsLink()}, nil
}

func (s *fakeStore) WorkItem(_ context.Context, id int) (workitem.WorkItem, error) {
	if err := s.getErr[id]; err != nil {
		return workitem.WorkItem{}, err
	}
	wi, ok := s.byID[id]
	if !ok {
		return workitem.WorkItem{}, store.ErrNotFound
	}
	return wi, nil
}

func (q *fakeQuery) IsLinkQuery() bool { return q.link }

func (q *fakeQuery) Run(ctx context.Context) ([]workitem.WorkItem, error) {
	if q.s.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", store.ErrUnavailable, ctx.Err())
	}
	if q.s.runErr != nil {
		return nil, q.s.runErr
	}
	return q.s.items, nil
}

func (q *fakeQuery) RunLinks(context.Context) ([]workitem.Link, error) {
	if q.s.runErr != nil {
		return nil, q.s.runErr
	}
	return q.s.links, nil
}

func item(id int, state string) workitem.WorkItem {
	return workitem.WorkItem{ID: id, State: state, Type: "Task"}
}

func TestExecuteEmptyKeySkipsStore(t *testing.T) {
	t.Parallel()

	s := &fakeStore{}
	res, err := NewExecutor(s).Execute(context.Background(), "")
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Empty(t, res)
	require.Empty(t, s.compiled)
}

func TestExecuteDirectQuery(t *testing.T) {
	t.Parallel()

	s := &fakeStore{items: []workitem.WorkItem{item(3, "Active"), item(1, "Removed"), item(2, "New")}}
	res, err := NewExecutor(s).Execute(context.Background(), `Fabrikam\Sprint 1`)
	require.NoError(t, err)
	require.Equal(t, []string{`SELECT * FROM WorkItems WHERE [System.IterationPath] = 'Fabrikam\Sprint 1'`}, s.compiled)
	require.Equal(t, ResultSet(s.items), res)
}

func TestExecuteLinkQueryResolvesTargets(t *testing.T) {
	t.Parallel()

	s := &fakeStore{
		links: []workitem.Link{{TargetID: 10}, {SourceID: 10, TargetID: 12, Type: "Child"}, {SourceID: 10, TargetID: 11, Type: "Child"}},
		byID:  map[int]workitem.WorkItem{10: item(10, "Active"), 11: item(11, "Active"), 12: item(12, "Closed")},
	}
	res, err := NewExecutor(s, WithFilter(wiql.IterationLinkFilter)).Execute(context.Background(), "P\\S1")
	require.NoError(t, err)
	require.Equal(t, ResultSet{item(10, "Active"), item(12, "Closed"), item(11, "Active")}, res)
}

func TestExecuteErrorKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		store  *fakeStore
		key    string
		filter func(string) string
		kind   ErrorKind
		cause  error
	}{
		{
			name:  "malformed key",
			store: &fakeStore{},
			key:   "It's",
			kind:  InvalidSelection,
			cause: store.ErrInvalidQuery,
		},
		{
			name:  "store down",
			store: &fakeStore{runErr: fmt.Errorf("%w: connection refused", store.ErrUnavailable)},
			key:   "S1",
			kind:  StoreUnavailable,
			cause: store.ErrUnavailable,
		},
		{
			name:   "missing link target",
			store:  &fakeStore{links: []workitem.Link{{TargetID: 7}}},
			key:    "S1",
			filter: wiql.IterationLinkFilter,
			kind:   ResolutionFailure,
			cause:  store.ErrNotFound,
		},
		{
			name: "transport failure while resolving",
			store: &fakeStore{
				links:  []workitem.Link{{TargetID: 7}},
				getErr: map[int]error{7: fmt.Errorf("%w: reset by peer", store.ErrUnavailable)},
			},
			key:    "S1",
			filter: wiql.IterationLinkFilter,
			kind:   StoreUnavailable,
			cause:  store.ErrUnavailable,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []ExecutorOption
			if tc.filter != nil {
				opts = append(opts, WithFilter(tc.filter))
			}
			res, err := NewExecutor(tc.store, opts...).Execute(context.Background(), tc.key)
			require.Nil(t, res)
			var fe *FetchError
			require.ErrorAs(t, err, &fe)
			require.Equal(t, tc.kind, fe.Kind)
			require.Equal(t, tc.key, fe.Key)
			require.True(t, errors.Is(err, tc.cause), "cause lost: %v", err)
		})
	}
}

func TestExecuteTimeout(t *testing.T) {
	t.Parallel()

	s := &fakeStore{block: true}
	_, err := NewExecutor(s, WithTimeout(20*time.Millisecond)).Execute(context.Background(), "S1")
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, StoreUnavailable, fe.Kind)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
