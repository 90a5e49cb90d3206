package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/guard"
	"tableflip.dev/wbc/pkg/printers"
)

// Action names a guarded connection action.
type Action string

const (
	AssignMeter Action = "assign meter"
	Disconnect  Action = "disconnect"
	Reconnect   Action = "reconnect"
	CancelBill  Action = "cancel bill"
)

var connectionGuards = map[Action]func(connection.Connection) guard.Result{
	AssignMeter: guard.AssignMeter,
	Disconnect:  guard.Disconnect,
	Reconnect:   guard.Reconnect,
}

// Answer is the machine form of a guard check.
type Answer struct {
	Action     string `json:"action" yaml:"action"`
	Connection string `json:"connection,omitempty" yaml:"connection,omitempty"`
	guard.Result `yaml:",inline"`
}

// Connection evaluates an action against a connection fetched from the
// service.
type Connection struct {
	Service      *app.Service
	ConnectionID string
	Action       Action
	Format       printers.Format
	Out          io.Writer
}

func (c *Connection) Do(ctx context.Context) error {
	if c.Service == nil {
		return errors.New("can not check, no service")
	}
	check, ok := connectionGuards[c.Action]
	if !ok {
		return fmt.Errorf("no guard for %q", c.Action)
	}
	conn, err := c.Service.Connection(ctx, c.ConnectionID)
	if err != nil {
		return err
	}
	ans := Answer{Action: string(c.Action), Connection: conn.ID, Result: check(conn)}
	return printers.Print(c.Out, c.Format, ans, func(pp *printers.PrettyPrint) {
		pp.Guard(fmt.Sprintf("%s %s", c.Action, conn.Label()), ans.Result)
	})
}

// Bill evaluates cancelling a bill described on the command line. It needs
// no service.
type Bill struct {
	Bill connection.Bill
	// Now defaults to the wall clock.
	Now    func() time.Time
	Format printers.Format
	Out    io.Writer
}

func (b *Bill) Do(_ context.Context) error {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	ans := Answer{Action: string(CancelBill), Result: guard.CancelBillAt(b.Bill, now())}
	return printers.Print(b.Out, b.Format, ans, func(pp *printers.PrettyPrint) {
		pp.Guard(string(CancelBill), ans.Result)
	})
}
