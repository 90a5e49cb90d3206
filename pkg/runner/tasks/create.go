package tasks

import (
	"context"
	"errors"
	"io"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/printers"
	"tableflip.dev/wbc/pkg/prompt"
	"tableflip.dev/wbc/pkg/task"
)

// Create creates one task, from flags or by walking the wizard.
type Create struct {
	Service     *app.Service
	Draft       task.Draft
	Interactive bool
	// Asker defaults to a terminal.
	Asker  prompt.Asker
	Format printers.Format
	Out    io.Writer
}

func (c *Create) Do(ctx context.Context) error {
	if c.Service == nil {
		return errors.New("can not create task, no service")
	}

	var (
		created task.Task
		err     error
	)
	if c.Interactive {
		created, err = c.prompt(ctx)
	} else {
		created, err = c.Service.CreateTask(ctx, c.Draft)
	}
	if err != nil {
		return err
	}
	return printers.Print(c.Out, c.Format, created, func(pp *printers.PrettyPrint) {
		pp.Task(created)
	})
}

func (c *Create) prompt(ctx context.Context) (task.Task, error) {
	d, err := driver(ctx, c.Service, c.Asker, c.Out)
	if err != nil {
		return task.Task{}, err
	}
	w := c.Service.NewCreateWizard(ctx)
	defer w.Close()

	// Flags prefill the answers.
	if err := w.Edit(func(dr *task.Draft) { *dr = c.Draft }); err != nil {
		return task.Task{}, err
	}
	return d.Create(ctx, w)
}

func driver(ctx context.Context, svc *app.Service, asker prompt.Asker, out io.Writer) (*prompt.Driver, error) {
	types, err := svc.TaskTypes(ctx)
	if err != nil {
		return nil, err
	}
	people, err := svc.Assignees(ctx)
	if err != nil {
		return nil, err
	}
	if asker == nil {
		asker = prompt.Terminal{}
	}
	return &prompt.Driver{Asker: asker, Types: types, Assignees: people, Out: out}, nil
}
