// Package task defines field tasks and the draft a user fills in before one
// or more tasks are created.
package task

import (
	"fmt"
	"strings"
	"time"

	"tableflip.dev/wbc/pkg/scope"
)

// Priority of a task.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// AllPriorities returns priorities from lowest to highest.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

// ParsePriority converts a string to a Priority. Empty input is MEDIUM.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(raw)))
	if p == "" {
		return PriorityMedium, nil
	}
	for _, candidate := range AllPriorities() {
		if candidate == p {
			return candidate, nil
		}
	}
	return PriorityMedium, fmt.Errorf("task: unknown priority %q", raw)
}

// Type is a kind of field task, e.g. "Disconnection" or "Meter reading".
type Type struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Assignee is a staff member who can receive tasks.
type Assignee struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Draft is the in-progress task a wizard edits. It is created empty,
// mutated stage by stage and either submitted or discarded.
type Draft struct {
	Title       string
	Description string
	TypeID      string
	Priority    Priority
	DueDate     *time.Time
	AssigneeID  string
	Scope       scope.Selection
}

// NewDraft returns an empty draft with the default priority.
func NewDraft() Draft {
	return Draft{Priority: PriorityMedium}
}

// WithScope returns a copy of d targeting sel.
func (d Draft) WithScope(sel scope.Selection) Draft {
	d.Scope = sel
	return d
}

// Missing lists the required detail fields that are blank.
func (d Draft) Missing() []string {
	var missing []string
	if strings.TrimSpace(d.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(d.TypeID) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(d.AssigneeID) == "" {
		missing = append(missing, "assignee")
	}
	return missing
}

// CreateRequest is the body of a task-creation call. Exactly one target
// field is set, or none.
type CreateRequest struct {
	TypeID      string     `json:"typeId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	AssigneeID  string     `json:"assigneeId"`
	scope.Fields
}

// Request converts the draft into a creation request.
func (d Draft) Request() CreateRequest {
	p := d.Priority
	if p == "" {
		p = PriorityMedium
	}
	return CreateRequest{
		TypeID:      strings.TrimSpace(d.TypeID),
		Title:       strings.TrimSpace(d.Title),
		Description: strings.TrimSpace(d.Description),
		Priority:    p,
		DueDate:     d.DueDate,
		AssigneeID:  strings.TrimSpace(d.AssigneeID),
		Fields:      d.Scope.Fields(),
	}
}

// AssignRequest is the body of an assignment call on an existing task.
type AssignRequest struct {
	AssigneeID string `json:"assigneeId"`
	Note       string `json:"note,omitempty"`
}

// Task is a created task as returned by the service.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	TypeID      string     `json:"typeId" yaml:"typeId"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Priority    Priority   `json:"priority" yaml:"priority"`
	Status      string     `json:"status,omitempty" yaml:"status,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty" yaml:"assigneeId,omitempty"`
	scope.Fields `yaml:",inline"`
}

// Scope returns the target of t.
func (t Task) Scope() scope.Selection {
	sel, err := scope.FromFields(t.Fields)
	if err != nil {
		return scope.Selection{}
	}
	return sel
}
