package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/taskcards/internal/workitem"
)

type stubReport struct {
	name      string
	templates []string
}

func (s stubReport) Name() string                      { return s.name }
func (s stubReport) Description() string               { return "" }
func (s stubReport) Templates() []string               { return s.templates }
func (s stubReport) Render([]workitem.WorkItem) string { return s.name }

func sample() []workitem.WorkItem {
	return []workitem.WorkItem{
		{ID: 1, Type: "Task", State: "Active", Fields: map[string]any{
			workitem.FieldTitle:            "Wire login",
			workitem.FieldAssignedTo:       "Mei Tan",
			workitem.FieldOriginalEstimate: 12.0,
		}},
		{ID: 2, Type: "Bug", State: "New", Fields: map[string]any{
			workitem.FieldTitle:            "Fix crash",
			workitem.FieldOriginalEstimate: 4.0,
		}},
		{ID: 3, Type: "Task", State: "Active", Fields: map[string]any{workitem.FieldTitle: "Docs"}},
	}
}

func TestRegistrySupportedVersusAll(t *testing.T) {
	reg := Builtin()
	require.Len(t, reg.All(), 2)

	supported := reg.Supported("CMMI")
	require.Len(t, supported, 1)
	require.Equal(t, "Sprint summary", supported[0].Name())

	require.Len(t, reg.Supported("agile"), 2)

	r, ok := reg.Lookup("TASK CARDS")
	require.True(t, ok)
	require.Equal(t, "Task cards", r.Name())
	_, ok = reg.Lookup("nope")
	require.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(stubReport{name: "A"}, stubReport{name: "a"})
	require.Error(t, err)
}

func TestPickerShowAllResetsSelection(t *testing.T) {
	reg, err := NewRegistry(
		stubReport{name: "Scrum only", templates: []string{"Scrum"}},
		stubReport{name: "Any"},
		stubReport{name: "CMMI only", templates: []string{"CMMI"}},
	)
	require.NoError(t, err)

	p := NewPicker(reg, "CMMI", false)
	require.Len(t, p.Reports(), 2)
	require.Equal(t, "Any", p.Selected().Name())
	require.Equal(t, "CMMI only", p.Next().Name())

	p.SetShowAll(true)
	require.True(t, p.ShowAll())
	require.Len(t, p.Reports(), 3)
	require.Equal(t, "Scrum only", p.Selected().Name())

	p.Next()
	p.SetShowAll(false)
	require.Equal(t, "Any", p.Selected().Name())

	require.True(t, p.Select("cmmi only"))
	require.False(t, p.Select("Scrum only"))
	require.Equal(t, "CMMI only", p.Selected().Name())
}

func TestPickerEmpty(t *testing.T) {
	reg, err := NewRegistry(stubReport{name: "Scrum only", templates: []string{"Scrum"}})
	require.NoError(t, err)
	p := NewPicker(reg, "CMMI", false)
	require.Nil(t, p.Selected())
	require.Nil(t, p.Next())
}

func TestTaskCardsRender(t *testing.T) {
	out := TaskCards{}.Render(sample())
	for _, want := range []string{"Task 1", "Bug 2", "Task 3", "Wire login", "Mei Tan", "unassigned", "1.5", "0.5"} {
		require.Contains(t, out, want)
	}
	require.Equal(t, "No work items selected.", TaskCards{}.Render(nil))
}

func TestSprintSummaryRender(t *testing.T) {
	out := SprintSummary{}.Render(sample())
	require.Contains(t, out, "2 days")
	require.Contains(t, out, "(1 unestimated)")
	lines := strings.Split(out, "\n")
	require.Equal(t, "Sprint summary", strings.TrimSpace(lines[0]))
	require.True(t, strings.HasPrefix(lines[1], "Active"))
	require.True(t, strings.HasSuffix(lines[1], "2"))
	require.True(t, strings.HasPrefix(lines[2], "New"))
}
