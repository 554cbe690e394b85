package ado

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jask/taskcards/internal/dispatch"
	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

const testToken = "s3cret"

type fakeADO struct {
	t          *testing.T
	items      map[int]map[string]any
	wiql       func(query string) (int, any)
	batchCalls atomic.Int32
	wiqlCalls  atomic.Int32
}

func newFakeADO(t *testing.T) *fakeADO {
	return &fakeADO{t: t, items: map[int]map[string]any{}}
}

func (f *fakeADO) add(id int, typ, state, title string) {
	f.items[id] = map[string]any{
		workitem.FieldID:    id,
		workitem.FieldType:  typ,
		workitem.FieldState: state,
		workitem.FieldTitle: title,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeADO) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /Fabrikam/_apis/wit/wiql", func(w http.ResponseWriter, r *http.Request) {
		f.wiqlCalls.Add(1)
		var body struct {
			Query string `json:"query"`
		}
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		code, v := f.wiql(body.Query)
		writeJSON(w, code, v)
	})
	mux.HandleFunc("GET /Fabrikam/_apis/wit/workitems", func(w http.ResponseWriter, r *http.Request) {
		f.batchCalls.Add(1)
		var out []any
		for _, s := range strings.Split(r.URL.Query().Get("ids"), ",") {
			id, _ := strconv.Atoi(s)
			if fields, ok := f.items[id]; ok {
				out = append(out, map[string]any{"id": id, "fields": fields})
			} else {
				out = append(out, nil)
			}
		}
		// The service does not promise ordering.
		slices.Reverse(out)
		writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "value": out})
	})
	mux.HandleFunc("GET /Fabrikam/_apis/wit/workitems/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.PathValue("id"))
		fields, ok := f.items[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "TF401232: Work item does not exist"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "fields": fields})
	})
	mux.HandleFunc("GET /_apis/projects/Fabrikam/teams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"value": []any{
			map[string]any{"name": "Phoenix Team"},
			map[string]any{"name": "Orca"},
		}})
	})
	mux.HandleFunc("GET /Fabrikam/{team}/_apis/work/teamsettings/iterations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "current", r.URL.Query().Get("$timeframe"))
		if r.PathValue("team") == "Orca" {
			writeJSON(w, http.StatusOK, map[string]any{"value": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": []any{map[string]any{"path": `Fabrikam\Sprint 2`}}})
	})
	mux.HandleFunc("GET /Fabrikam/_apis/wit/classificationnodes/Iterations", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name": "Fabrikam",
			"children": []any{
				map[string]any{"name": "Release 1", "children": []any{
					map[string]any{"name": "Sprint 1"},
					map[string]any{"name": "Sprint 2"},
				}},
				map[string]any{"name": "Backlog"},
			},
		})
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "" || pass != testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "bad token"})
			return
		}
		assert.Equal(f.t, apiVersion, r.URL.Query().Get("api-version"))
		mux.ServeHTTP(w, r)
	}))
	f.t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server, token string) *Client {
	t.Helper()
	c, err := New(Config{OrganizationURL: srv.URL + "/", Project: "Fabrikam", Token: token, RetryMax: 1},
		WithRetryWait(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	return c
}

func TestDirectQuery(t *testing.T) {
	t.Parallel()
	f := newFakeADO(t)
	f.add(1, "Task", "Active", "one")
	f.add(2, "Bug", "New", "two")
	f.add(3, "Task", "Removed", "three")
	f.items[1][workitem.FieldAssignedTo] = map[string]any{"displayName": "Mei Tan", "uniqueName": "mei@fabrikam.com"}
	f.wiql = func(q string) (int, any) {
		assert.Equal(t, wiql.IterationFilter(`Fabrikam\Sprint 1`), q)
		return http.StatusOK, map[string]any{"queryType": "flat", "workItems": []any{
			map[string]any{"id": 3}, map[string]any{"id": 1}, map[string]any{"id": 2},
		}}
	}
	c := newTestClient(t, f.server(), testToken)
	ctx := context.Background()

	q, err := c.Compile(ctx, wiql.IterationFilter(`Fabrikam\Sprint 1`))
	require.NoError(t, err)
	require.False(t, q.IsLinkQuery())
	require.Zero(t, f.wiqlCalls.Load(), "compile is local")

	items, err := q.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, []int{3, 1, 2}, ids(items))
	require.Equal(t, "Mei Tan", items[1].AssignedTo())
	require.Equal(t, "Task", items[1].Type)
	require.True(t, items[0].Removed())

	_, err = q.RunLinks(ctx)
	require.ErrorIs(t, err, store.ErrInvalidQuery)
}

func TestLinkQuery(t *testing.T) {
	t.Parallel()
	f := newFakeADO(t)
	f.wiql = func(string) (int, any) {
		return http.StatusOK, map[string]any{"queryType": "oneHop", "workItemRelations": []any{
			map[string]any{"rel": nil, "source": nil, "target": map[string]any{"id": 1}},
			map[string]any{"rel": "System.LinkTypes.Hierarchy-Forward", "source": map[string]any{"id": 1}, "target": map[string]any{"id": 3}},
		}}
	}
	c := newTestClient(t, f.server(), testToken)
	ctx := context.Background()

	q, err := c.Compile(ctx, wiql.IterationLinkFilter(`Fabrikam\Sprint 1`))
	require.NoError(t, err)
	require.True(t, q.IsLinkQuery())
	links, err := q.RunLinks(ctx)
	require.NoError(t, err)
	require.Equal(t, []workitem.Link{
		{TargetID: 1},
		{SourceID: 1, TargetID: 3, Type: "System.LinkTypes.Hierarchy-Forward"},
	}, links)

	_, err = q.Run(ctx)
	require.ErrorIs(t, err, store.ErrInvalidQuery)
}

func TestWorkItemsBatchesAndKeepsOrder(t *testing.T) {
	t.Parallel()
	f := newFakeADO(t)
	var want []int
	for id := 450; id >= 1; id-- {
		want = append(want, id)
		if id != 77 {
			f.add(id, "Task", "Active", "t"+strconv.Itoa(id))
		}
	}
	c := newTestClient(t, f.server(), testToken)

	items, err := c.WorkItems(context.Background(), want)
	require.NoError(t, err)
	require.EqualValues(t, 3, f.batchCalls.Load())
	require.Len(t, items, 449)
	got := ids(items)
	require.Equal(t, slices.DeleteFunc(slices.Clone(want), func(id int) bool { return id == 77 }), got)

	items, err = c.WorkItems(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestErrorClassification(t *testing.T) {
	t.Parallel()
	f := newFakeADO(t)
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	f.wiql = func(string) (int, any) {
		return int(status.Load()), map[string]any{"message": "TF51005: The query references a field that does not exist."}
	}
	srv := f.server()
	c := newTestClient(t, srv, testToken)
	ctx := context.Background()

	q, err := c.Compile(ctx, wiql.IterationFilter("x"))
	require.NoError(t, err)
	_, err = q.Run(ctx)
	require.ErrorIs(t, err, store.ErrInvalidQuery)
	require.ErrorContains(t, err, "TF51005")

	status.Store(http.StatusInternalServerError)
	before := f.wiqlCalls.Load()
	_, err = q.Run(ctx)
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.EqualValues(t, 2, f.wiqlCalls.Load()-before, "one retry")

	_, err = c.WorkItem(ctx, 404)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = newTestClient(t, srv, "wrong").WorkItem(ctx, 1)
	require.ErrorIs(t, err, store.ErrUnavailable)
	require.NotErrorIs(t, err, store.ErrNotFound)

	_, err = c.Compile(ctx, "SELECT nonsense")
	require.ErrorIs(t, err, store.ErrInvalidQuery)
}

func TestUnreachableServer(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := New(Config{OrganizationURL: srv.URL, Project: "Fabrikam"}, WithRetryWait(time.Millisecond, time.Millisecond))
	require.NoError(t, err)
	_, err = c.WorkItem(context.Background(), 1)
	require.ErrorIs(t, err, store.ErrUnavailable)
}

func TestCatalog(t *testing.T) {
	t.Parallel()
	f := newFakeADO(t)
	c := newTestClient(t, f.server(), testToken)
	ctx := context.Background()

	teams, err := c.Teams(ctx)
	require.NoError(t, err)
	require.Equal(t, []workitem.Team{
		{Name: "Phoenix Team", CurrentIteration: `Fabrikam\Sprint 2`},
		{Name: "Orca"},
	}, teams)

	paths, err := c.Iterations(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{
		`Fabrikam\Release 1`,
		`Fabrikam\Release 1\Sprint 1`,
		`Fabrikam\Release 1\Sprint 2`,
		`Fabrikam\Backlog`,
	}, paths)
}

func TestExecutorOverADO(t *testing.T) {
	t.Parallel()
	relations := func(string) (int, any) {
		return http.StatusOK, map[string]any{"workItemRelations": []any{
			map[string]any{"target": map[string]any{"id": 1}},
			map[string]any{"rel": "System.LinkTypes.Hierarchy-Forward", "source": map[string]any{"id": 1}, "target": map[string]any{"id": 3}},
			map[string]any{"rel": "System.LinkTypes.Related", "source": map[string]any{"id": 1}, "target": map[string]any{"id": 9}},
		}}
	}
	ctx := context.Background()

	f := newFakeADO(t)
	f.add(1, "User Story", "Active", "story")
	f.add(3, "Task", "Active", "task")
	f.wiql = relations
	exec := dispatch.NewExecutor(newTestClient(t, f.server(), testToken), dispatch.WithFilter(wiql.IterationLinkFilter))
	_, err := exec.Execute(ctx, `Fabrikam\Sprint 1`)
	var fe *dispatch.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, dispatch.ResolutionFailure, fe.Kind, "target 9 does not exist")

	f = newFakeADO(t)
	f.add(1, "User Story", "Active", "story")
	f.add(3, "Task", "Active", "task")
	f.add(9, "Bug", "New", "bug")
	f.wiql = relations
	exec = dispatch.NewExecutor(newTestClient(t, f.server(), testToken), dispatch.WithFilter(wiql.IterationLinkFilter))
	res, err := exec.Execute(ctx, `Fabrikam\Sprint 1`)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3, 9}, ids(res))
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{OrganizationURL: "not a url", Project: "P"})
	require.Error(t, err)
	_, err = New(Config{OrganizationURL: "https://dev.azure.com/fabrikam"})
	require.Error(t, err)
}

func ids(items []workitem.WorkItem) []int {
	out := make([]int, len(items))
	for i, w := range items {
		out[i] = w.ID
	}
	return out
}
