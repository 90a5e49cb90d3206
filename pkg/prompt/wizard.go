package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/task"
	"tableflip.dev/wbc/pkg/wizard"
)

const dateLayout = "2006-01-02"

// Driver walks a wizard stage by stage with an Asker.
type Driver struct {
	Asker     Asker
	Types     []task.Type
	Assignees []task.Assignee
	// Out receives notices; nil discards them.
	Out io.Writer
}

func (d *Driver) notice(format string, args ...any) {
	if d.Out == nil {
		return
	}
	_, _ = color.New(color.FgYellow).Fprintf(d.Out, format+"\n", args...)
}

// Create runs a create-mode wizard until it is submitted or aborted. An
// aborted prompt cancels the wizard.
func (d *Driver) Create(ctx context.Context, w *wizard.Wizard) (task.Task, error) {
	for {
		var err error
		switch w.Stage() {
		case wizard.StageDetails:
			err = d.details(w)
		case wizard.StageScope:
			err = d.scope(ctx, w)
		case wizard.StageConnection:
			err = d.connection(ctx, w)
		case wizard.StageSubmitted:
			t, _ := w.Result()
			return t, nil
		default:
			return task.Task{}, ErrAborted
		}
		if err != nil {
			if errors.Is(err, ErrAborted) {
				w.Cancel()
			}
			return task.Task{}, err
		}
	}
}

// Assign asks for the new assignee and a note, then submits.
func (d *Driver) Assign(ctx context.Context, w *wizard.Wizard) (task.Task, error) {
	for w.Stage() == wizard.StageAssign {
		who, err := d.chooseAssignee(w.Draft().AssigneeID)
		if err != nil {
			return d.abort(w, err)
		}
		note, err := d.Asker.Ask(Question{Label: "Note (optional)", Default: w.Note()})
		if err != nil {
			return d.abort(w, err)
		}
		if err := w.SetAssignee(who); err != nil {
			return task.Task{}, err
		}
		if err := w.SetNote(note); err != nil {
			return task.Task{}, err
		}
		t, err := w.Submit(ctx)
		if err == nil {
			return t, nil
		}
		if !d.again(err) {
			return task.Task{}, err
		}
	}
	return task.Task{}, ErrAborted
}

func (d *Driver) abort(w *wizard.Wizard, err error) (task.Task, error) {
	if errors.Is(err, ErrAborted) {
		w.Cancel()
	}
	return task.Task{}, err
}

// again reports whether the user may retry after err. Validation and
// dispatch failures are shown and retried; anything else ends the dialog.
func (d *Driver) again(err error) bool {
	switch fault.KindOf(err) {
	case fault.KindValidation, fault.KindDispatch:
		if fault.IsAuthorization(err) {
			return false
		}
		d.notice("%v", err)
		return true
	}
	return false
}

func required(name string) func(string) error {
	return func(in string) error {
		if strings.TrimSpace(in) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func optionalDate(in string) error {
	if strings.TrimSpace(in) == "" {
		return nil
	}
	_, err := time.Parse(dateLayout, strings.TrimSpace(in))
	return err
}

func (d *Driver) details(w *wizard.Wizard) error {
	draft := w.Draft()

	title, err := d.Asker.Ask(Question{Label: "Title", Default: draft.Title, Validate: required("title")})
	if err != nil {
		return err
	}
	desc, err := d.Asker.Ask(Question{Label: "Description", Default: draft.Description})
	if err != nil {
		return err
	}

	typeChoices := make([]Choice, len(d.Types))
	cursor := 0
	for i, t := range d.Types {
		typeChoices[i] = Choice{Label: t.Name, Detail: t.ID}
		if t.ID == draft.TypeID {
			cursor = i
		}
	}
	if len(typeChoices) == 0 {
		return fault.Resolution("prompt", errors.New("no task types available"))
	}
	ti, err := d.Asker.Choose("Task type", typeChoices, cursor)
	if err != nil {
		return err
	}

	priorities := task.AllPriorities()
	prioChoices := make([]Choice, len(priorities))
	cursor = 0
	for i, p := range priorities {
		prioChoices[i] = Choice{Label: string(p)}
		if p == draft.Priority {
			cursor = i
		}
	}
	pi, err := d.Asker.Choose("Priority", prioChoices, cursor)
	if err != nil {
		return err
	}

	who, err := d.chooseAssignee(draft.AssigneeID)
	if err != nil {
		return err
	}

	dueDefault := ""
	if draft.DueDate != nil {
		dueDefault = draft.DueDate.Format(dateLayout)
	}
	dueRaw, err := d.Asker.Ask(Question{Label: "Due date (YYYY-MM-DD, optional)", Default: dueDefault, Validate: optionalDate})
	if err != nil {
		return err
	}
	var due *time.Time
	if dueRaw != "" {
		t, err := time.Parse(dateLayout, dueRaw)
		if err != nil {
			return fault.Validation("prompt", err)
		}
		due = &t
	}

	if err := w.Edit(func(dr *task.Draft) {
		dr.Title = title
		dr.Description = desc
		dr.TypeID = d.Types[ti].ID
		dr.Priority = priorities[pi]
		dr.AssigneeID = who
		dr.DueDate = due
	}); err != nil {
		return err
	}
	if _, err := w.Next(); err != nil && !d.again(err) {
		return err
	}
	return nil
}

func (d *Driver) chooseAssignee(current string) (string, error) {
	if len(d.Assignees) == 0 {
		return "", fault.Resolution("prompt", errors.New("no assignees available"))
	}
	choices := make([]Choice, len(d.Assignees))
	cursor := 0
	for i, a := range d.Assignees {
		choices[i] = Choice{Label: a.Name, Detail: a.ID}
		if a.ID == current {
			cursor = i
		}
	}
	i, err := d.Asker.Choose("Assignee", choices, cursor)
	if err != nil {
		return "", err
	}
	return d.Assignees[i].ID, nil
}

const labelBack = "« Back"

// scope walks scheme, zone and route. Each level may be skipped, which keeps
// the wider selection.
func (d *Driver) scope(ctx context.Context, w *wizard.Wizard) error {
	if err := w.Wait(ctx); err != nil {
		return err
	}
	if _, err := w.Hierarchy(); err != nil {
		i, err := d.Asker.Choose(fmt.Sprintf("Locations unavailable (%v)", err), []Choice{
			{Label: "Retry"},
			{Label: "Continue without a location"},
			{Label: labelBack},
		}, 0)
		if err != nil {
			return err
		}
		switch i {
		case 0:
			w.ReloadHierarchy()
			return nil
		case 2:
			w.Back()
			return nil
		}
		_, err = w.Next()
		return err
	}

	schemes := w.Schemes()
	choices := []Choice{{Label: "No location", Detail: "task without a target"}}
	for _, s := range schemes {
		choices = append(choices, Choice{Label: s.Name, Detail: s.ID})
	}
	choices = append(choices, Choice{Label: labelBack})
	i, err := d.Asker.Choose("Scheme", choices, 0)
	if err != nil {
		return err
	}
	switch {
	case i == 0:
		if err := w.ClearScope(); err != nil {
			return err
		}
		_, err = w.Next()
		return err
	case i == len(choices)-1:
		w.Back()
		return nil
	}
	if err := w.SelectScheme(schemes[i-1].ID); err != nil {
		return err
	}

	zones := w.Zones()
	if len(zones) > 0 {
		choices = []Choice{{Label: "Whole scheme", Detail: schemes[i-1].Name}}
		for _, z := range zones {
			choices = append(choices, Choice{Label: z.Name, Detail: z.ID})
		}
		zi, err := d.Asker.Choose("Zone", choices, 0)
		if err != nil {
			return err
		}
		if zi > 0 {
			if err := w.SelectZone(zones[zi-1].ID); err != nil {
				return err
			}
			routes := w.Routes()
			if len(routes) > 0 {
				choices = []Choice{{Label: "Whole zone", Detail: zones[zi-1].Name}}
				for _, r := range routes {
					choices = append(choices, Choice{Label: r.Name, Detail: r.ID})
				}
				ri, err := d.Asker.Choose("Route", choices, 0)
				if err != nil {
					return err
				}
				if ri > 0 {
					if err := w.SelectRoute(routes[ri-1].ID); err != nil {
						return err
					}
				}
			}
		}
	}
	_, err = w.Next()
	return err
}

// connection offers a single connection within the chosen location, a search
// over it, or submitting with the location as the target.
func (d *Driver) connection(ctx context.Context, w *wizard.Wizard) error {
	for w.Stage() == wizard.StageConnection {
		if err := w.Wait(ctx); err != nil {
			return err
		}
		conns, err := w.Connections()
		if err != nil {
			d.notice("%v", err)
		}

		choices := []Choice{
			{Label: "Submit", Detail: "target " + w.Selection().String()},
			{Label: "Search connections", Detail: w.Search()},
		}
		for _, c := range conns {
			choices = append(choices, Choice{Label: c.Label(), Detail: connectionDetail(c, w)})
		}
		choices = append(choices, Choice{Label: labelBack})

		i, err := d.Asker.Choose("Connection", choices, 0)
		if err != nil {
			return err
		}
		switch {
		case i == 0:
			if _, err := w.Submit(ctx); err != nil && !d.again(err) {
				return err
			}
		case i == 1:
			text, err := d.Asker.Ask(Question{Label: "Search", Default: w.Search()})
			if err != nil {
				return err
			}
			w.SetSearch(text)
		case i == len(choices)-1:
			w.Back()
		default:
			if err := w.SelectConnection(conns[i-2].ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func connectionDetail(c connection.Connection, w *wizard.Wizard) string {
	detail := string(c.Status)
	if w.Selection().ID() == c.ID {
		detail += ", selected"
	}
	return detail
}
