package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/jask/taskcards/internal/cards"
)

// Catppuccin Mocha, trimmed to what the views use.
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorPeach    lipgloss.Color = "#fab387"
	colorLavender lipgloss.Color = "#b4befe"
	colorText     lipgloss.Color = "#cdd6f4"
	colorSubtext0 lipgloss.Color = "#a6adc8"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

var (
	titleStyle    = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	statusStyle   = lipgloss.NewStyle().Foreground(colorSubtext0)
	errorStyle    = lipgloss.NewStyle().Foreground(colorRed)
	spinnerStyle  = lipgloss.NewStyle().Foreground(colorPeach)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorPink).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(colorOverlay1)
	helpKeyStyle  = lipgloss.NewStyle().Foreground(colorLavender)
	helpDescStyle = lipgloss.NewStyle().Foreground(colorSubtext0)
	paneStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface1).
			Padding(0, 1)
	focusPaneStyle = paneStyle.BorderForeground(colorLavender)
	modalStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPink).
			Padding(1, 2)
)

const sidebarWidth = 34

func newItemTable() table.Model {
	t := table.New(
		table.WithColumns(itemColumns(80)),
		table.WithHeight(12),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.Foreground(colorLavender).Bold(true)
	s.Selected = s.Selected.Foreground(colorText).Background(colorSurface1).Bold(false)
	t.SetStyles(s)
	return t
}

func itemColumns(width int) []table.Column {
	title := max(width-3-8-10-10-16-7-14, 12)
	return []table.Column{
		{Title: " ", Width: 3},
		{Title: "ID", Width: 8},
		{Title: "Type", Width: 10},
		{Title: "Title", Width: title},
		{Title: "State", Width: 10},
		{Title: "Assigned to", Width: 16},
		{Title: "Days", Width: 7},
	}
}

// refreshRows rebuilds the table from the display and the selection.
func (a *App) refreshRows() {
	rows := make([]table.Row, 0, len(a.items))
	for _, it := range a.items {
		mark := "[ ]"
		if a.selected[it.ID] {
			mark = "[x]"
		}
		rows = append(rows, table.Row{
			mark,
			strconv.Itoa(it.ID),
			it.Type,
			it.Title(),
			it.State,
			it.AssignedTo(),
			cards.Estimate(it),
		})
	}
	cursor := a.table.Cursor()
	a.table.SetRows(rows)
	if cursor >= len(rows) {
		cursor = max(len(rows)-1, 0)
	}
	a.table.SetCursor(cursor)
}

func (a *App) layoutTable() {
	w := max(a.width-sidebarWidth-6, 40)
	a.table.SetColumns(itemColumns(w))
	a.table.SetWidth(w)
	a.table.SetHeight(max(a.height-8, 3))
}

func (a *App) View() string {
	header := titleStyle.Render("taskcards") + "  " + a.reportLine()
	body := lipgloss.JoinHorizontal(lipgloss.Top, a.renderSidebar(), " ", a.renderItems())
	view := lipgloss.JoinVertical(lipgloss.Left, header, body, a.renderStatus(), a.renderHelp())
	if a.showPreview {
		box := modalStyle.Render(a.preview + "\n\n" + mutedStyle.Render("w write · esc close"))
		if a.width > 0 && a.height > 0 {
			return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box)
		}
		return box
	}
	return view
}

func (a *App) reportLine() string {
	rep := a.picker.Selected()
	name := "no report"
	if rep != nil {
		name = rep.Name()
	}
	return statusStyle.Render(fmt.Sprintf("report: %s (%s)", name, a.reportListLabel()))
}

func (a *App) renderSidebar() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Teams"))
	b.WriteString("\n")
	if len(a.teams) == 0 {
		b.WriteString(mutedStyle.Render("  none"))
		b.WriteString("\n")
	}
	for i, t := range a.teams {
		b.WriteString(listLine(t.Name, i == a.teamCursor, a.focus == paneTeams))
	}
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Iterations"))
	b.WriteString("\n")
	if a.filtering || a.filter.Value() != "" {
		b.WriteString(a.filter.View())
		b.WriteString("\n")
	}
	if len(a.paths) == 0 {
		b.WriteString(mutedStyle.Render("  no match"))
		b.WriteString("\n")
	}
	for i, p := range a.paths {
		b.WriteString(listLine(p, i == a.pathCursor, a.focus == paneIterations))
	}
	style := paneStyle
	if a.focus != paneItems {
		style = focusPaneStyle
	}
	return style.Width(sidebarWidth).Render(strings.TrimRight(b.String(), "\n"))
}

func listLine(label string, atCursor, focused bool) string {
	if !atCursor {
		return "  " + label + "\n"
	}
	if focused {
		return cursorStyle.Render("> "+label) + "\n"
	}
	return "> " + label + "\n"
}

func (a *App) renderItems() string {
	style := paneStyle
	if a.focus == paneItems {
		style = focusPaneStyle
	}
	key := a.co.Display().Key()
	head := titleStyle.Render("Work items")
	if key != "" {
		head += statusStyle.Render(fmt.Sprintf("  %s · %d shown · %d selected", key, len(a.items), len(a.selectedItems())))
	}
	return style.Render(head + "\n" + a.table.View())
}

func (a *App) renderStatus() string {
	switch {
	case a.busy:
		return a.spinner.View() + " " + statusStyle.Render("loading "+a.loading)
	case a.lastErr != nil:
		return errorStyle.Render(fmt.Sprintf("%s: %v", a.lastErr.Kind, a.lastErr.Err))
	case a.status != "":
		return statusStyle.Render(a.status)
	}
	return ""
}

func (a *App) renderHelp() string {
	pairs := [][2]string{
		{"tab", "pane"}, {"/", "filter"}, {"space", "toggle"}, {"a", "all"},
		{"r", "report"}, {"A", "show all"}, {"p", "preview"}, {"w", "write"}, {"q", "quit"},
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = helpKeyStyle.Render(p[0]) + " " + helpDescStyle.Render(p[1])
	}
	return strings.Join(parts, "  ")
}
