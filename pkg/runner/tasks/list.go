package tasks

import (
	"context"
	"errors"
	"io"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/printers"
)

// Types lists the task types.
type Types struct {
	Service *app.Service
	Format  printers.Format
	Out     io.Writer
}

func (t *Types) Do(ctx context.Context) error {
	if t.Service == nil {
		return errors.New("can not list task types, no service")
	}
	types, err := t.Service.TaskTypes(ctx)
	if err != nil {
		return err
	}
	return printers.Print(t.Out, t.Format, types, func(pp *printers.PrettyPrint) {
		pp.TaskTypes(types)
	})
}

// Assignees lists field staff.
type Assignees struct {
	Service *app.Service
	Format  printers.Format
	Out     io.Writer
}

func (a *Assignees) Do(ctx context.Context) error {
	if a.Service == nil {
		return errors.New("can not list assignees, no service")
	}
	people, err := a.Service.Assignees(ctx)
	if err != nil {
		return err
	}
	return printers.Print(a.Out, a.Format, people, func(pp *printers.PrettyPrint) {
		pp.Assignees(people)
	})
}
