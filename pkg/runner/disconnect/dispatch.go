package disconnect

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/printers"
	"tableflip.dev/wbc/pkg/prompt"
)

// Dispatch creates one disconnection task per selected candidate.
type Dispatch struct {
	Service *app.Service
	Request app.DisconnectRequest
	// RetryFailed re-sends failed items once, with their original keys.
	RetryFailed bool
	Interactive bool
	Asker       prompt.Asker
	Format      printers.Format
	Out         io.Writer
}

func (d *Dispatch) out() io.Writer {
	if d.Out == nil {
		return color.Output
	}
	return d.Out
}

func (d *Dispatch) Do(ctx context.Context) error {
	if d.Service == nil {
		return errors.New("can not dispatch, no service")
	}
	req := d.Request
	if d.Interactive {
		ok, err := d.choose(ctx, &req)
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(d.out(), "nothing dispatched")
			return nil
		}
	}

	rep, err := d.Service.DispatchDisconnections(ctx, req)
	if err != nil {
		return err
	}
	if d.RetryFailed && rep.Summary.Failed > 0 {
		d.Service.Logger.Info("retrying failed items", zap.Int("failed", rep.Summary.Failed))
		if rep, err = d.Service.RetryFailed(ctx, req.Draft, rep); err != nil {
			return err
		}
	}
	return printers.Print(d.Out, d.Format, rep, func(pp *printers.PrettyPrint) {
		pp.Report(rep)
	})
}

// choose previews the query and lets the user pick candidates, starting
// from whatever the flags selected.
func (d *Dispatch) choose(ctx context.Context, req *app.DisconnectRequest) (bool, error) {
	set, err := d.Service.Preview(ctx, req.Query)
	if err != nil {
		return false, err
	}
	if set.IsEmpty() {
		return false, nil
	}
	set.ClearSelection()
	if req.All {
		set.SelectAll()
	} else if err := set.Select(req.Select...); err != nil {
		return false, err
	}

	asker := d.Asker
	if asker == nil {
		asker = prompt.Terminal{}
	}
	drv := &prompt.Driver{Asker: asker, Out: d.out()}
	ok, err := drv.Candidates(set)
	if err != nil || !ok {
		return false, err
	}
	req.All = false
	req.Select = set.SelectedIDs()
	return true, nil
}
