package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jask/taskcards/internal/config"
	"github.com/jask/taskcards/internal/dispatch"
	"github.com/jask/taskcards/internal/prefs"
	"github.com/jask/taskcards/internal/report"
	"github.com/jask/taskcards/internal/store"
	"github.com/jask/taskcards/internal/wiql"
	"github.com/jask/taskcards/internal/workitem"
)

// Deps are the collaborators the App drives.
type Deps struct {
	Catalog   store.Catalog
	Coalescer *dispatch.Coalescer
	Reports   *report.Registry
	UI        config.UIConfig
	Log       zerolog.Logger
	// Restore is the selection to reopen at start.
	Restore prefs.Selection
	// SaveSelection persists the selection; nil disables persistence.
	SaveSelection func(prefs.Selection) error
	// OutDir is where `w` writes rendered reports.
	OutDir string
}

// App is the Bubble Tea model. Its Update loop is the coordinating context
// of the coalescer: observers registered in New mutate the App directly.
type App struct {
	ctx  context.Context
	deps Deps
	log  zerolog.Logger
	co   *dispatch.Coalescer

	width  int
	height int
	focus  pane

	teams      []workitem.Team
	teamCursor int
	allPaths   []string
	paths      []string // allPaths after the filter
	pathCursor int
	filtering  bool
	filter     textinput.Model

	table    table.Model
	items    []workitem.WorkItem
	selected map[int]bool
	spinner  spinner.Model
	spinning bool
	busy     bool
	loading  string
	lastErr  *dispatch.FetchError

	picker      *report.Picker
	preview     string
	showPreview bool
	status      string
	restored    bool

	saving     bool
	saveQueued bool
	nextSave   prefs.Selection
}

type pane int

const (
	paneTeams pane = iota
	paneIterations
	paneItems
)

type catalogMsg struct {
	teams []workitem.Team
	paths []string
}

type errMsg struct{ error }

type statusMsg string

type selectionSavedMsg struct{ err error }

func New(ctx context.Context, deps Deps) *App {
	if deps.Reports == nil {
		deps.Reports = report.Builtin()
	}
	in := textinput.New()
	in.Placeholder = "filter iterations"
	in.Prompt = "/ "
	in.CharLimit = 64
	in.Cursor.SetMode(cursor.CursorStatic)

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = spinnerStyle

	a := &App{
		ctx:      ctx,
		deps:     deps,
		log:      deps.Log,
		co:       deps.Coalescer,
		focus:    paneIterations,
		filter:   in,
		table:    newItemTable(),
		selected: map[int]bool{},
		spinner:  sp,
		picker:   report.NewPicker(deps.Reports, deps.UI.ProcessTemplate, deps.UI.ShowAllReports),
	}
	a.co.Observe(dispatch.Observer{
		FetchStarted: func(f dispatch.Fetch) {
			a.busy = true
			a.loading = f.Key
		},
		DisplayUpdated: func(d *dispatch.Display) {
			a.items = d.Items()
			a.lastErr = nil
			a.refreshRows()
		},
		SelectAll: a.selectAll,
		FetchFailed: func(err *dispatch.FetchError) {
			a.lastErr = err
		},
		Idle: func() {
			a.busy = false
			a.loading = ""
		},
	})
	return a
}

func (a *App) Init() tea.Cmd {
	return a.loadCatalog()
}

func (a *App) loadCatalog() tea.Cmd {
	cat := a.deps.Catalog
	ctx := a.ctx
	return func() tea.Msg {
		teams, err := cat.Teams(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load teams: %w", err)}
		}
		paths, err := cat.Iterations(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("load iterations: %w", err)}
		}
		return catalogMsg{teams: teams, paths: paths}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = m.Width, m.Height
		a.layoutTable()
	case tea.KeyMsg:
		return a.handleKey(m)
	case catalogMsg:
		a.teams = m.teams
		a.allPaths = m.paths
		a.applyFilter()
		if !a.restored {
			a.restored = true
			return a, a.restore()
		}
	case dispatch.FetchDoneMsg:
		return a, a.withSpinner(a.co.Complete(m))
	case spinner.TickMsg:
		if !a.busy {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(m)
		return a, cmd
	case reportWrittenMsg:
		a.status = fmt.Sprintf("wrote %s", m.path)
	case statusMsg:
		a.status = string(m)
	case selectionSavedMsg:
		a.saving = false
		if m.err != nil {
			a.status = "error: save selection: " + m.err.Error()
			a.log.Error().Err(m.err).Msg("save selection")
		}
		if a.saveQueued {
			return a, a.startSave()
		}
	case errMsg:
		a.status = "error: " + m.Error()
		a.log.Error().Err(m.error).Msg("tui command failed")
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.filtering {
		return a.handleFilterKey(m)
	}
	if a.showPreview {
		switch m.String() {
		case "esc", "p", "q":
			a.showPreview = false
		case "w":
			return a, a.writeReport()
		}
		return a, nil
	}

	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "tab":
		a.focus = (a.focus + 1) % 3
		a.syncTableFocus()
		return a, nil
	case "shift+tab":
		a.focus = (a.focus + 2) % 3
		a.syncTableFocus()
		return a, nil
	case "/":
		a.focus = paneIterations
		a.syncTableFocus()
		a.filtering = true
		return a, a.filter.Focus()
	case "r":
		if rep := a.picker.Next(); rep != nil {
			a.status = "report: " + rep.Name()
		}
		return a, nil
	case "A":
		a.picker.SetShowAll(!a.picker.ShowAll())
		a.status = "reports: " + a.reportListLabel()
		return a, nil
	case "a":
		a.selectAll()
		return a, nil
	case "p":
		a.renderPreview()
		return a, nil
	case "w":
		return a, a.writeReport()
	case "ctrl+r":
		return a, a.resubmit()
	}

	switch a.focus {
	case paneTeams:
		return a.handleTeamsKey(m)
	case paneIterations:
		return a.handleIterationsKey(m)
	default:
		return a.handleItemsKey(m)
	}
}

func (a *App) handleTeamsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "up", "k":
		if a.teamCursor > 0 {
			a.teamCursor--
		}
	case "down", "j":
		if a.teamCursor < len(a.teams)-1 {
			a.teamCursor++
		}
	case "enter", " ", "space":
		if len(a.teams) == 0 {
			return a, nil
		}
		team := a.teams[a.teamCursor]
		if team.CurrentIteration == "" {
			a.status = team.Name + " has no current iteration"
			return a, nil
		}
		a.focus = paneIterations
		a.syncTableFocus()
		return a, a.choosePath(team.CurrentIteration)
	}
	return a, nil
}

func (a *App) handleIterationsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "up", "k":
		if a.pathCursor > 0 {
			a.pathCursor--
			return a, a.submitCursor()
		}
	case "down", "j":
		if a.pathCursor < len(a.paths)-1 {
			a.pathCursor++
			return a, a.submitCursor()
		}
	case "home", "g":
		if a.pathCursor != 0 && len(a.paths) > 0 {
			a.pathCursor = 0
			return a, a.submitCursor()
		}
	case "end", "G":
		if last := len(a.paths) - 1; last >= 0 && a.pathCursor != last {
			a.pathCursor = last
			return a, a.submitCursor()
		}
	case "enter":
		a.focus = paneItems
		a.syncTableFocus()
	}
	return a, nil
}

func (a *App) handleItemsKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case " ", "space", "x":
		if row := a.table.Cursor(); row >= 0 && row < len(a.items) {
			id := a.items[row].ID
			if a.selected[id] {
				delete(a.selected, id)
			} else {
				a.selected[id] = true
			}
			a.refreshRows()
		}
		return a, nil
	case "n":
		clear(a.selected)
		a.refreshRows()
		return a, nil
	}
	var cmd tea.Cmd
	a.table, cmd = a.table.Update(m)
	return a, cmd
}

func (a *App) handleFilterKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "esc":
		a.filtering = false
		a.filter.Blur()
		a.filter.SetValue("")
		current := a.cursorPath()
		a.applyFilter()
		a.moveCursorTo(current)
		return a, nil
	case "enter":
		a.filtering = false
		a.filter.Blur()
		if len(a.paths) == 0 {
			return a, nil
		}
		return a, a.submitCursor()
	case "ctrl+c":
		return a, tea.Quit
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(m)
	a.applyFilter()
	a.pathCursor = 0
	return a, cmd
}

// applyFilter recomputes the visible iteration list.
func (a *App) applyFilter() {
	a.paths = rankIterations(a.allPaths, a.filter.Value())
	if a.pathCursor >= len(a.paths) {
		a.pathCursor = max(len(a.paths)-1, 0)
	}
}

func (a *App) cursorPath() string {
	if a.pathCursor < len(a.paths) {
		return a.paths[a.pathCursor]
	}
	return ""
}

func (a *App) moveCursorTo(path string) bool {
	if i := slices.Index(a.paths, path); i >= 0 {
		a.pathCursor = i
		return true
	}
	return false
}

// restore reopens the saved selection, falling back to the configured team's
// current iteration.
func (a *App) restore() tea.Cmd {
	team := a.deps.Restore.Team
	if team == "" {
		team = a.deps.UI.Team
	}
	for i, t := range a.teams {
		if strings.EqualFold(t.Name, team) {
			a.teamCursor = i
		}
	}
	path := a.deps.Restore.Iteration
	if path == "" && a.teamCursor < len(a.teams) && team != "" {
		path = a.teams[a.teamCursor].CurrentIteration
	}
	if path == "" {
		return nil
	}
	return a.choosePath(path)
}

// choosePath points the iteration cursor at path and submits it.
func (a *App) choosePath(path string) tea.Cmd {
	if !a.moveCursorTo(path) && a.filter.Value() != "" {
		a.filter.SetValue("")
		a.applyFilter()
		a.moveCursorTo(path)
	}
	return a.submit(path)
}

func (a *App) submitCursor() tea.Cmd {
	return a.submit(a.cursorPath())
}

func (a *App) resubmit() tea.Cmd {
	if key := a.co.Display().Key(); key != "" {
		return a.submit(key)
	}
	return a.submitCursor()
}

// submit starts a fetch for path. Paths that cannot be embedded in a query
// literal are reported on the status line instead.
func (a *App) submit(path string) tea.Cmd {
	if err := wiql.ValidatePath(path); err != nil {
		a.status = err.Error()
		return nil
	}
	cmd := a.co.Submit(path)
	return tea.Batch(a.withSpinner(cmd), a.saveSelection(path))
}

// withSpinner starts the spinner alongside a fetch command.
func (a *App) withSpinner(cmd tea.Cmd) tea.Cmd {
	if cmd == nil || a.spinning {
		return cmd
	}
	a.spinning = true
	return tea.Batch(cmd, a.spinner.Tick)
}

// saveSelection records path as the selection to persist. Saves run one at a
// time; a save requested while one is running is folded into a single
// follow-up carrying the latest selection.
func (a *App) saveSelection(path string) tea.Cmd {
	if a.deps.SaveSelection == nil {
		return nil
	}
	a.nextSave = prefs.Selection{Iteration: path}
	if a.teamCursor < len(a.teams) {
		a.nextSave.Team = a.teams[a.teamCursor].Name
	}
	if a.saving {
		a.saveQueued = true
		return nil
	}
	return a.startSave()
}

func (a *App) startSave() tea.Cmd {
	a.saving, a.saveQueued = true, false
	save, sel := a.deps.SaveSelection, a.nextSave
	return func() tea.Msg {
		return selectionSavedMsg{err: save(sel)}
	}
}

func (a *App) selectAll() {
	clear(a.selected)
	for _, it := range a.items {
		a.selected[it.ID] = true
	}
	a.refreshRows()
}

// selectedItems returns the selected rows in display order.
func (a *App) selectedItems() []workitem.WorkItem {
	var out []workitem.WorkItem
	for _, it := range a.items {
		if a.selected[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

func (a *App) syncTableFocus() {
	if a.focus == paneItems {
		a.table.Focus()
	} else {
		a.table.Blur()
	}
}

func (a *App) reportListLabel() string {
	if a.picker.ShowAll() {
		return "all"
	}
	return "supported by " + a.deps.UI.ProcessTemplate
}
