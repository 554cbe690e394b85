package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type reportWrittenMsg struct{ path string }

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// renderPreview renders the selected rows through the current report.
func (a *App) renderPreview() {
	rep := a.picker.Selected()
	if rep == nil {
		a.status = "no report available for " + a.deps.UI.ProcessTemplate + " (A shows all)"
		return
	}
	a.preview = titleStyle.Render(rep.Name()) + "\n\n" + rep.Render(a.selectedItems())
	a.showPreview = true
}

// writeReport renders the selection and writes it under OutDir.
func (a *App) writeReport() tea.Cmd {
	rep := a.picker.Selected()
	if rep == nil {
		a.status = "no report selected"
		return nil
	}
	items := a.selectedItems()
	if len(items) == 0 {
		a.status = "nothing selected"
		return nil
	}
	out := rep.Render(items)
	name := reportFileName(a.co.Display().Key(), rep.Name(), time.Now())
	path := filepath.Join(a.deps.OutDir, name)
	return func() tea.Msg {
		if err := os.WriteFile(path, []byte(out+"\n"), 0o644); err != nil {
			return errMsg{fmt.Errorf("write report: %w", err)}
		}
		return reportWrittenMsg{path: path}
	}
}

func reportFileName(key, report string, now time.Time) string {
	slug := func(s string) string {
		return strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(s), "-"), "-")
	}
	base := slug(leaf(key))
	if base == "" {
		base = "selection"
	}
	return fmt.Sprintf("%s-%s-%s.txt", base, slug(report), now.Format("20060102-150405"))
}
