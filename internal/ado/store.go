package ado

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

// batchSize is the most ids the workitems endpoint accepts per call.
const batchSize = 200

var _ store.Backend = (*Client)(nil)

type ref struct {
	ID int `json:"id"`
}

type wiqlResponse struct {
	QueryType string `json:"queryType"`
	WorkItems []ref  `json:"workItems"`
	Relations []struct {
		Rel    string `json:"rel"`
		Source *ref   `json:"source"`
		Target *ref   `json:"target"`
	} `json:"workItemRelations"`
}

type wireItem struct {
	ID     int            `json:"id"`
	Fields map[string]any `json:"fields"`
}

type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// Compile validates text locally; nothing is sent until the query runs.
func (c *Client) Compile(_ context.Context, text string) (store.Query, error) {
	q, err := wiql.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidQuery, err)
	}
	return &query{c: c, text: text, link: q.IsLink()}, nil
}

type query struct {
	c    *Client
	text string
	link bool
}

func (q *query) IsLinkQuery() bool { return q.link }

func (q *query) Run(ctx context.Context) ([]workitem.WorkItem, error) {
	if q.link {
		return nil, fmt.Errorf("%w: link query run as direct query", store.ErrInvalidQuery)
	}
	res, err := q.c.runWIQL(ctx, q.text)
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(res.WorkItems))
	for _, r := range res.WorkItems {
		ids = append(ids, r.ID)
	}
	return q.c.WorkItems(ctx, ids)
}

func (q *query) RunLinks(ctx context.Context) ([]workitem.Link, error) {
	if !q.link {
		return nil, fmt.Errorf("%w: direct query run as link query", store.ErrInvalidQuery)
	}
	res, err := q.c.runWIQL(ctx, q.text)
	if err != nil {
		return nil, err
	}
	links := make([]workitem.Link, 0, len(res.Relations))
	for _, r := range res.Relations {
		if r.Target == nil {
			continue
		}
		l := workitem.Link{TargetID: r.Target.ID, Type: r.Rel}
		if r.Source != nil {
			l.SourceID = r.Source.ID
		}
		links = append(links, l)
	}
	return links, nil
}

func (c *Client) runWIQL(ctx context.Context, text string) (wiqlResponse, error) {
	var res wiqlResponse
	err := c.do(ctx, http.MethodPost, c.projectURL("wit/wiql", nil), map[string]string{"query": text}, &res)
	if err != nil {
		return wiqlResponse{}, classify(err, false)
	}
	return res, nil
}

// WorkItems fetches ids in batches of 200, concurrently, and returns them in
// the order of ids. Ids the server omits are skipped.
func (c *Client) WorkItems(ctx context.Context, ids []int) ([]workitem.WorkItem, error) {
	if len(ids) == 0 {
		return []workitem.WorkItem{}, nil
	}
	var chunks [][]int
	for start := 0; start < len(ids); start += batchSize {
		chunks = append(chunks, ids[start:min(start+batchSize, len(ids))])
	}

	fetched := make([][]wireItem, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, chunk := range chunks {
		g.Go(func() error {
			parts := make([]string, len(chunk))
			for j, id := range chunk {
				parts[j] = strconv.Itoa(id)
			}
			q := url.Values{}
			q.Set("ids", strings.Join(parts, ","))
			q.Set("errorPolicy", "Omit")
			var res listResponse[*wireItem]
			if err := c.do(gctx, http.MethodGet, c.projectURL("wit/workitems", q), nil, &res); err != nil {
				return classify(err, false)
			}
			for _, w := range res.Value {
				if w != nil {
					fetched[i] = append(fetched[i], *w)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[int]wireItem, len(ids))
	for _, chunk := range fetched {
		for _, w := range chunk {
			byID[w.ID] = w
		}
	}
	out := make([]workitem.WorkItem, 0, len(ids))
	for _, id := range ids {
		if w, ok := byID[id]; ok {
			out = append(out, toWorkItem(w))
		}
	}
	return out, nil
}

// WorkItem fetches a single item.
func (c *Client) WorkItem(ctx context.Context, id int) (workitem.WorkItem, error) {
	var w wireItem
	if err := c.do(ctx, http.MethodGet, c.projectURL("wit/workitems/"+strconv.Itoa(id), nil), nil, &w); err != nil {
		return workitem.WorkItem{}, classify(err, true)
	}
	return toWorkItem(w), nil
}

func toWorkItem(w wireItem) workitem.WorkItem {
	fields := make(map[string]any, len(w.Fields))
	for k, v := range w.Fields {
		fields[k] = v
	}
	// Identity fields arrive as objects; keep the display name.
	if v, ok := fields[workitem.FieldAssignedTo].(map[string]any); ok {
		if name, ok := v["displayName"].(string); ok {
			fields[workitem.FieldAssignedTo] = name
		}
	}
	item := workitem.WorkItem{ID: w.ID, Fields: fields}
	item.State, _ = fields[workitem.FieldState].(string)
	item.Type, _ = fields[workitem.FieldType].(string)
	return item
}

// Teams lists the project's teams with their current iteration. A team with
// no current iteration gets an empty path.
func (c *Client) Teams(ctx context.Context) ([]workitem.Team, error) {
	var res listResponse[struct {
		Name string `json:"name"`
	}]
	teamsURL := c.urlFor("_apis/projects/"+url.PathEscape(c.project)+"/teams", nil)
	if err := c.do(ctx, http.MethodGet, teamsURL, nil, &res); err != nil {
		return nil, classify(err, false)
	}

	teams := make([]workitem.Team, len(res.Value))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, t := range res.Value {
		teams[i].Name = t.Name
		g.Go(func() error {
			path, err := c.currentIteration(gctx, t.Name)
			if err != nil {
				return err
			}
			teams[i].CurrentIteration = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return teams, nil
}

func (c *Client) currentIteration(ctx context.Context, team string) (string, error) {
	q := url.Values{}
	q.Set("$timeframe", "current")
	u := c.urlFor(url.PathEscape(c.project)+"/"+url.PathEscape(team)+"/_apis/work/teamsettings/iterations", q)
	var res listResponse[struct {
		Path string `json:"path"`
	}]
	if err := c.do(ctx, http.MethodGet, u, nil, &res); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return "", nil
		}
		return "", classify(err, false)
	}
	if len(res.Value) == 0 {
		return "", nil
	}
	return res.Value[0].Path, nil
}

type classificationNode struct {
	Name     string               `json:"name"`
	Children []classificationNode `json:"children"`
}

// Iterations flattens the project's iteration tree into paths, depth first.
// The project root itself is omitted.
func (c *Client) Iterations(ctx context.Context) ([]string, error) {
	q := url.Values{}
	q.Set("$depth", "10")
	var root classificationNode
	if err := c.do(ctx, http.MethodGet, c.projectURL("wit/classificationnodes/Iterations", q), nil, &root); err != nil {
		return nil, classify(err, false)
	}
	var paths []string
	var walk func(prefix string, nodes []classificationNode)
	walk = func(prefix string, nodes []classificationNode) {
		for _, n := range nodes {
			p := prefix + `\` + n.Name
			paths = append(paths, p)
			walk(p, n.Children)
		}
	}
	walk(c.project, root.Children)
	return paths, nil
}
