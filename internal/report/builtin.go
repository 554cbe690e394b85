package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jask/taskcards/internal/cards"
	"github.com/jask/taskcards/internal/workitem"
)

const cardWidth = 36

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#b4befe")).
			Padding(0, 1).
			Width(cardWidth)
	cardHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f5c2e7"))
	cardMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8"))
	summaryKeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a6adc8")).Width(14)
)

// TaskCards renders one bordered card per item, two to a row.
type TaskCards struct{}

func (TaskCards) Name() string        { return "Task cards" }
func (TaskCards) Description() string { return "One card per work item with title, owner and estimate" }
func (TaskCards) Templates() []string { return []string{"Agile", "Scrum", "Basic"} }

func (TaskCards) Render(items []workitem.WorkItem) string {
	if len(items) == 0 {
		return "No work items selected."
	}
	var rows []string
	for i := 0; i < len(items); i += 2 {
		left := card(items[i])
		if i+1 < len(items) {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, left, " ", card(items[i+1])))
			continue
		}
		rows = append(rows, left)
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func card(w workitem.WorkItem) string {
	owner := w.AssignedTo()
	if owner == "" {
		owner = "unassigned"
	}
	body := strings.Join([]string{
		cardHeaderStyle.Render(cards.Header(w)),
		w.Title(),
		"",
		cardMetaStyle.Render(fmt.Sprintf("%s · %s", w.State, owner)),
		cardMetaStyle.Render("Estimate (days): " + cards.Estimate(w)),
	}, "\n")
	return cardStyle.Render(body)
}

// SprintSummary counts items by state and totals their estimates.
type SprintSummary struct{}

func (SprintSummary) Name() string        { return "Sprint summary" }
func (SprintSummary) Description() string { return "Item counts by state and total estimate" }
func (SprintSummary) Templates() []string { return nil }

func (SprintSummary) Render(items []workitem.WorkItem) string {
	counts := map[string]int{}
	var total float64
	unestimated := 0
	for _, w := range items {
		state := w.State
		if state == "" {
			state = "-"
		}
		counts[state]++
		if d, ok := cards.EstimateDays(w); ok {
			total += d
		} else {
			unestimated++
		}
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, s)
	}
	sort.Strings(states)

	var b strings.Builder
	b.WriteString(cardHeaderStyle.Render("Sprint summary"))
	b.WriteString("\n")
	for _, s := range states {
		b.WriteString(summaryKeyStyle.Render(s))
		b.WriteString(strconv.Itoa(counts[s]))
		b.WriteString("\n")
	}
	b.WriteString(summaryKeyStyle.Render("Items"))
	b.WriteString(strconv.Itoa(len(items)))
	b.WriteString("\n")
	b.WriteString(summaryKeyStyle.Render("Estimate"))
	b.WriteString(strconv.FormatFloat(total, 'f', -1, 64) + " days")
	if unestimated > 0 {
		fmt.Fprintf(&b, " (%d unestimated)", unestimated)
	}
	return b.String()
}
