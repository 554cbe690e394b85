package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jask/taskcards/internal/database"
	"github.com/jask/taskcards/internal/database/repository"
	"github.com/jask/taskcards/internal/workitem"
)

// IngestService loads work item fixtures into the local store.
type IngestService struct {
	DB *sql.DB
}

type IngestResult struct {
	Teams      int
	Iterations int
	WorkItems  int
	Links      int
	Errors     []error
}

// Fixture is the TOML layout accepted by ImportFixture.
//
//	[[team]]
//	name = "Phoenix"
//	current_iteration = 'Fabrikam\Sprint 1'
//
//	[[work_item]]
//	id = 1
//	type = "Task"
//	state = "Active"
//	title = "Write the thing"
//	iteration_path = 'Fabrikam\Sprint 1'
//	[work_item.fields]
//	"Microsoft.VSTS.Scheduling.OriginalEstimate" = 8
//
//	[[link]]
//	source = 1
//	target = 2
//	type = "System.LinkTypes.Hierarchy-Forward"
type Fixture struct {
	Teams      []FixtureTeam      `toml:"team"`
	Iterations []FixtureIteration `toml:"iteration"`
	WorkItems  []FixtureWorkItem  `toml:"work_item"`
	Links      []FixtureLink      `toml:"link"`
}

type FixtureTeam struct {
	Name             string `toml:"name"`
	CurrentIteration string `toml:"current_iteration"`
}

type FixtureIteration struct {
	Path   string `toml:"path"`
	Start  string `toml:"start"`
	Finish string `toml:"finish"`
}

type FixtureWorkItem struct {
	ID            int            `toml:"id"`
	Type          string         `toml:"type"`
	State         string         `toml:"state"`
	Title         string         `toml:"title"`
	IterationPath string         `toml:"iteration_path"`
	AssignedTo    string         `toml:"assigned_to"`
	Fields        map[string]any `toml:"fields"`
}

type FixtureLink struct {
	Source int    `toml:"source"`
	Target int    `toml:"target"`
	Type   string `toml:"type"`
}

// ImportFixture decodes a TOML fixture and upserts it in one transaction.
// Invalid entries are skipped and reported in IngestResult.Errors.
func (s *IngestService) ImportFixture(ctx context.Context, r io.Reader) (IngestResult, error) {
	var fx Fixture
	if _, err := toml.NewDecoder(r).Decode(&fx); err != nil {
		return IngestResult{}, fmt.Errorf("decode fixture: %w", err)
	}
	return s.Import(ctx, fx)
}

// Import upserts fx in one transaction.
func (s *IngestService) Import(ctx context.Context, fx Fixture) (IngestResult, error) {
	if s.DB == nil {
		return IngestResult{}, fmt.Errorf("ingest: db not configured")
	}
	res := IngestResult{}
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		teams := repository.NewTeamRepo(tx)
		iterations := repository.NewIterationRepo(tx)
		items := repository.NewWorkItemRepo(tx)
		links := repository.NewLinkRepo(tx)

		for i, t := range fx.Teams {
			if strings.TrimSpace(t.Name) == "" {
				res.Errors = append(res.Errors, fmt.Errorf("team %d: name required", i+1))
				continue
			}
			if err := teams.Upsert(ctx, workitem.Team{Name: t.Name, CurrentIteration: t.CurrentIteration}); err != nil {
				return fmt.Errorf("team %q: %w", t.Name, err)
			}
			res.Teams++
		}
		for i, it := range fx.Iterations {
			if strings.TrimSpace(it.Path) == "" {
				res.Errors = append(res.Errors, fmt.Errorf("iteration %d: path required", i+1))
				continue
			}
			if err := iterations.Upsert(ctx, repository.Iteration{Path: it.Path, StartDate: optional(it.Start), FinishDate: optional(it.Finish)}); err != nil {
				return fmt.Errorf("iteration %q: %w", it.Path, err)
			}
			res.Iterations++
		}
		for i, w := range fx.WorkItems {
			if w.ID <= 0 {
				res.Errors = append(res.Errors, fmt.Errorf("work item %d: id must be positive", i+1))
				continue
			}
			if strings.TrimSpace(w.Type) == "" {
				res.Errors = append(res.Errors, fmt.Errorf("work item %d: type required", w.ID))
				continue
			}
			fields := map[string]any{}
			for k, v := range w.Fields {
				fields[k] = v
			}
			if w.AssignedTo != "" {
				fields[workitem.FieldAssignedTo] = w.AssignedTo
			}
			row := repository.WorkItem{
				ID:            w.ID,
				Type:          w.Type,
				State:         w.State,
				Title:         w.Title,
				IterationPath: w.IterationPath,
				Fields:        fields,
			}
			if err := items.Upsert(ctx, row); err != nil {
				return fmt.Errorf("work item %d: %w", w.ID, err)
			}
			res.WorkItems++
		}
		for i, l := range fx.Links {
			if l.Source <= 0 || l.Target <= 0 {
				res.Errors = append(res.Errors, fmt.Errorf("link %d: source and target required", i+1))
				continue
			}
			if err := links.Upsert(ctx, workitem.Link{SourceID: l.Source, TargetID: l.Target, Type: l.Type}); err != nil {
				return fmt.Errorf("link %d->%d: %w", l.Source, l.Target, err)
			}
			res.Links++
		}
		return nil
	})
	if err != nil {
		return IngestResult{}, err
	}
	return res, nil
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
