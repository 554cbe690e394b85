package testdata

import (
	"fmt"
	"math/rand"

	"github.com/jask/taskcards/internal/service"
	"github.com/jask/taskcards/internal/workitem"
)

// Project is the project name used in generated iteration paths.
const Project = "Fabrikam"

var (
	teamNames = []string{"Phoenix", "Orca", "Lynx"}
	titles    = []string{
		"Wire up login form", "Fix flaky checkout test", "Migrate billing cron",
		"Add audit trail export", "Tune search ranking", "Document API limits",
		"Harden upload retries", "Split settings page", "Cache team avatars",
	}
	people = []string{"Ana Ruiz", "Kofi Mensah", "Mei Tan", "Sam Novak"}
	states = []string{"New", "Active", "Active", "Resolved", "Closed", workitem.StateRemoved}
)

// IterationPath returns the path of sprint n.
func IterationPath(n int) string {
	return fmt.Sprintf(`%s\Sprint %d`, Project, n)
}

// Demo builds a deterministic fixture: three teams, sprints iterations, and
// for every sprint a few user stories with child tasks and bugs. Some items
// are Removed.
func Demo(seed int64, sprints int) service.Fixture {
	rng := rand.New(rand.NewSource(seed))
	var fx service.Fixture

	for n := 1; n <= sprints; n++ {
		fx.Iterations = append(fx.Iterations, service.FixtureIteration{Path: IterationPath(n)})
	}
	for i, name := range teamNames {
		current := IterationPath(1 + i%max(sprints, 1))
		fx.Teams = append(fx.Teams, service.FixtureTeam{Name: name, CurrentIteration: current})
	}

	id := 100
	for n := 1; n <= sprints; n++ {
		stories := 2 + rng.Intn(2)
		for s := 0; s < stories; s++ {
			id++
			story := id
			fx.WorkItems = append(fx.WorkItems, service.FixtureWorkItem{
				ID:            story,
				Type:          "User Story",
				State:         "Active",
				Title:         titles[rng.Intn(len(titles))],
				IterationPath: IterationPath(n),
				AssignedTo:    people[rng.Intn(len(people))],
			})
			children := 1 + rng.Intn(3)
			for c := 0; c < children; c++ {
				id++
				kind := "Task"
				if rng.Intn(4) == 0 {
					kind = "Bug"
				}
				fx.WorkItems = append(fx.WorkItems, service.FixtureWorkItem{
					ID:            id,
					Type:          kind,
					State:         states[rng.Intn(len(states))],
					Title:         titles[rng.Intn(len(titles))],
					IterationPath: IterationPath(n),
					AssignedTo:    people[rng.Intn(len(people))],
					Fields: map[string]any{
						workitem.FieldOriginalEstimate: float64(2 * (1 + rng.Intn(8))),
					},
				})
				fx.Links = append(fx.Links, service.FixtureLink{
					Source: story,
					Target: id,
					Type:   "System.LinkTypes.Hierarchy-Forward",
				})
			}
		}
	}
	return fx
}
