package tasks

import (
	"context"
	"errors"
	"io"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/printers"
	"tableflip.dev/wbc/pkg/prompt"
	"tableflip.dev/wbc/pkg/task"
	"tableflip.dev/wbc/pkg/wizard"
)

// Assign hands an existing task to someone else.
type Assign struct {
	Service     *app.Service
	TaskID      string
	Assignee    string
	Note        string
	Interactive bool
	Asker       prompt.Asker
	Format      printers.Format
	Out         io.Writer
}

func (a *Assign) Do(ctx context.Context) error {
	if a.Service == nil {
		return errors.New("can not assign task, no service")
	}

	var (
		updated task.Task
		err     error
	)
	if a.Interactive {
		var d *prompt.Driver
		if d, err = driver(ctx, a.Service, a.Asker, a.Out); err != nil {
			return err
		}
		w := wizard.NewAssign(ctx, a.Service.WizardConfig(), a.TaskID, a.Assignee)
		defer w.Close()
		if a.Note != "" {
			if err := w.SetNote(a.Note); err != nil {
				return err
			}
		}
		updated, err = d.Assign(ctx, w)
	} else {
		updated, err = a.Service.AssignTask(ctx, a.TaskID, a.Assignee, a.Note)
	}
	if err != nil {
		return err
	}
	return printers.Print(a.Out, a.Format, updated, func(pp *printers.PrettyPrint) {
		pp.Task(updated)
	})
}
