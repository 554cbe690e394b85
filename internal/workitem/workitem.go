// Package workitem holds the read model shared by the stores, the dispatcher
// and the presentation layers.
package workitem

import "fmt"

// StateRemoved is the lifecycle state of items that are never displayed.
const StateRemoved = "Removed"

// Field reference names understood by the stores.
const (
	FieldID               = "System.Id"
	FieldState            = "System.State"
	FieldType             = "System.WorkItemType"
	FieldTitle            = "System.Title"
	FieldIterationPath    = "System.IterationPath"
	FieldAssignedTo       = "System.AssignedTo"
	FieldOriginalEstimate = "Microsoft.VSTS.Scheduling.OriginalEstimate"
)

// WorkItem is one fetched record.
type WorkItem struct {
	ID     int
	State  string
	Type   string
	Fields map[string]any
}

// Field returns the raw value stored under name.
func (w WorkItem) Field(name string) (any, bool) {
	if w.Fields == nil {
		return nil, false
	}
	v, ok := w.Fields[name]
	return v, ok
}

// Title returns the System.Title field, or "" when absent.
func (w WorkItem) Title() string {
	return w.stringField(FieldTitle)
}

// IterationPath returns the System.IterationPath field, or "" when absent.
func (w WorkItem) IterationPath() string {
	return w.stringField(FieldIterationPath)
}

// AssignedTo returns the System.AssignedTo field, or "" when absent.
func (w WorkItem) AssignedTo() string {
	return w.stringField(FieldAssignedTo)
}

// Removed reports whether the item is in the Removed state.
func (w WorkItem) Removed() bool {
	return w.State == StateRemoved
}

func (w WorkItem) stringField(name string) string {
	v, ok := w.Field(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Link is one row of a link query. SourceID is 0 for top-level rows.
type Link struct {
	SourceID int
	TargetID int
	Type     string
}

// Team is a team and the iteration it currently works in.
type Team struct {
	Name             string
	CurrentIteration string
}
