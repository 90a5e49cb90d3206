package options

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tableflip.dev/wbc/pkg/task"
)

const layoutISO = "2006-01-02"

// TaskOptions
type TaskOptions struct {
	Title       string
	Description string
	Type        string
	Priority    string
	Due         string
	Assignee    string
}

func AddTaskArgs(cmd *cobra.Command, o *TaskOptions) {
	cmd.Flags().StringVar(&o.Title, "title", "", "Task title.")
	cmd.Flags().StringVar(&o.Description, "description", "", "Task description.")
	cmd.Flags().StringVar(&o.Type, "type", "", "Task type id.")
	cmd.Flags().StringVar(&o.Priority, "priority", string(task.PriorityMedium),
		"Priority: LOW, MEDIUM, HIGH or CRITICAL.")
	cmd.Flags().StringVar(&o.Due, "due", "",
		`Due date, example: --due="2026-02-28".`)
	cmd.Flags().StringVar(&o.Assignee, "assignee", "", "Assignee user id.")
}

// Incomplete reports whether a required field is missing.
func (o *TaskOptions) Incomplete() bool {
	return strings.TrimSpace(o.Title) == "" || strings.TrimSpace(o.Type) == "" || strings.TrimSpace(o.Assignee) == ""
}

// Draft builds the task draft from the flags.
func (o *TaskOptions) Draft() (task.Draft, error) {
	d := task.NewDraft()
	p, err := task.ParsePriority(o.Priority)
	if err != nil {
		return d, err
	}
	d.Title = o.Title
	d.Description = o.Description
	d.TypeID = o.Type
	d.AssigneeID = o.Assignee
	d.Priority = p
	if o.Due != "" {
		t, err := time.Parse(layoutISO, o.Due)
		if err != nil {
			return d, fmt.Errorf("invalid --due %q: %w", o.Due, err)
		}
		d.DueDate = &t
	}
	return d, nil
}
