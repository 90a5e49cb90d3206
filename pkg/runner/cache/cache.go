package cache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"tableflip.dev/wbc/pkg/app"
)

// Clear drops cached location snapshots for every session.
type Clear struct {
	Service *app.Service
	Out     io.Writer
}

func (c *Clear) Do(_ context.Context) error {
	if c.Service == nil {
		return errors.New("can not clear cache, no service")
	}
	n := 0
	if c.Service.Snapshots != nil {
		n = len(c.Service.Snapshots.Keys())
	}
	if err := c.Service.ClearCache(); err != nil {
		return err
	}
	out := c.Out
	if out == nil {
		out = color.Output
	}
	_, _ = fmt.Fprintf(out, "cleared %d cached location snapshot(s)\n", n)
	return nil
}
