package dispatch

import "github.com/jask/taskcards/internal/workitem"

// Display is the ordered collection the UI renders. It is only mutated by a
// Projector running on the coordinating context.
type Display struct {
	key   string
	items []workitem.WorkItem
}

// Key is the selection key of the fetch that last filled the display.
func (d *Display) Key() string { return d.key }

// Len returns the number of displayed items.
func (d *Display) Len() int { return len(d.items) }

// Items returns a copy of the displayed items.
func (d *Display) Items() []workitem.WorkItem {
	out := make([]workitem.WorkItem, len(d.items))
	copy(out, d.items)
	return out
}

// Projector turns a result set into display contents.
type Projector struct {
	// Updated runs after the display has been repopulated.
	Updated func(d *Display)
	// SelectAll runs immediately after Updated.
	SelectAll func()
}

// Apply clears target and appends every item of results that is not Removed,
// keeping their relative order, then fires Updated and SelectAll.
func (p *Projector) Apply(key string, results ResultSet, target *Display) {
	target.key = key
	target.items = target.items[:0]
	for _, item := range results {
		if item.Removed() {
			continue
		}
		target.items = append(target.items, item)
	}
	if p.Updated != nil {
		p.Updated(target)
	}
	if p.SelectAll != nil {
		p.SelectAll()
	}
}
