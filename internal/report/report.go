// Package report defines the printable outputs an operator can render from a
// selection of work items.
package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jask/taskcards/internal/workitem"
)

// Report renders a selection of work items.
type Report interface {
	Name() string
	Description() string
	// Templates lists the process templates the report was designed for.
	// An empty list means the report works with any template.
	Templates() []string
	Render(items []workitem.WorkItem) string
}

// Supports reports whether r was designed for the given process template.
func Supports(r Report, template string) bool {
	ts := r.Templates()
	if len(ts) == 0 {
		return true
	}
	return slices.ContainsFunc(ts, func(t string) bool { return strings.EqualFold(t, template) })
}

// Registry holds the known reports in display order.
type Registry struct {
	reports []Report
}

// NewRegistry returns a registry of the given reports. Duplicate names are
// rejected.
func NewRegistry(reports ...Report) (*Registry, error) {
	seen := map[string]bool{}
	for _, r := range reports {
		key := strings.ToLower(r.Name())
		if seen[key] {
			return nil, fmt.Errorf("duplicate report %q", r.Name())
		}
		seen[key] = true
	}
	return &Registry{reports: slices.Clone(reports)}, nil
}

// Builtin returns the registry of reports shipped with taskcards.
func Builtin() *Registry {
	return &Registry{reports: []Report{TaskCards{}, SprintSummary{}}}
}

// All returns every registered report.
func (r *Registry) All() []Report {
	return slices.Clone(r.reports)
}

// Supported returns the reports designed for template.
func (r *Registry) Supported(template string) []Report {
	var out []Report
	for _, rep := range r.reports {
		if Supports(rep, template) {
			out = append(out, rep)
		}
	}
	return out
}

// Lookup finds a report by case-insensitive name.
func (r *Registry) Lookup(name string) (Report, bool) {
	for _, rep := range r.reports {
		if strings.EqualFold(rep.Name(), name) {
			return rep, true
		}
	}
	return nil, false
}

// Picker tracks which report list is visible and which entry is selected.
// Toggling show-all swaps the list and selects its first entry.
type Picker struct {
	registry *Registry
	template string
	showAll  bool
	reports  []Report
	index    int
}

func NewPicker(reg *Registry, template string, showAll bool) *Picker {
	p := &Picker{registry: reg, template: template}
	p.SetShowAll(showAll)
	return p
}

// Reports returns the visible list.
func (p *Picker) Reports() []Report { return slices.Clone(p.reports) }

// ShowAll reports whether the full list is visible.
func (p *Picker) ShowAll() bool { return p.showAll }

// SetShowAll switches between the supported and full lists and resets the
// selection to the first entry.
func (p *Picker) SetShowAll(on bool) {
	p.showAll = on
	if on {
		p.reports = p.registry.All()
	} else {
		p.reports = p.registry.Supported(p.template)
	}
	p.index = 0
}

// Selected returns the current report, or nil when the list is empty.
func (p *Picker) Selected() Report {
	if len(p.reports) == 0 {
		return nil
	}
	return p.reports[p.index]
}

// Next advances the selection, wrapping around.
func (p *Picker) Next() Report {
	if len(p.reports) == 0 {
		return nil
	}
	p.index = (p.index + 1) % len(p.reports)
	return p.reports[p.index]
}

// Select picks the named report from the visible list.
func (p *Picker) Select(name string) bool {
	for i, r := range p.reports {
		if strings.EqualFold(r.Name(), name) {
			p.index = i
			return true
		}
	}
	return false
}
