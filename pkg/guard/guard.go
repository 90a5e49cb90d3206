// Package guard derives the booleans screens use to enable or block actions
// on connections and bills. Guards are pure: same input, same answer, no
// network access and no retained state.
package guard

import (
	"fmt"
	"time"

	"tableflip.dev/wbc/pkg/connection"
)

// Result is the outcome of a guard evaluation.
type Result struct {
	Allowed bool   `json:"allowed" yaml:"allowed"`
	Reason  string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Error converts a blocked result to an error.
func (r Result) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func allow() Result { return Result{Allowed: true} }

func deny(format string, args ...any) Result {
	return Result{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// CanAssignMeter is true iff the connection has no meter.
func CanAssignMeter(c connection.Connection) bool {
	return AssignMeter(c).Allowed
}

// AssignMeter evaluates meter assignment with a reason.
func AssignMeter(c connection.Connection) Result {
	if c.HasMeter() {
		return deny("connection %s already has meter %s", c.Label(), *c.MeterID)
	}
	return allow()
}

// CanCancelBill evaluates bill cancellation against the wall clock at call
// time. Do not cache the answer; the current month moves.
func CanCancelBill(b connection.Bill) bool {
	return CancelBillAt(b, time.Now()).Allowed
}

// CancelBill is CanCancelBill with a reason.
func CancelBill(b connection.Bill) Result {
	return CancelBillAt(b, time.Now())
}

// CancelBillAt allows cancelling an unpaid, untouched bill for the calendar
// month containing now.
func CancelBillAt(b connection.Bill, now time.Time) Result {
	if b.Status != connection.BillUnpaid {
		return deny("bill is %s, only UNPAID bills can be cancelled", b.Status)
	}
	if b.AmountPaid.IsPositive() {
		return deny("bill already has %s paid", b.AmountPaid.String())
	}
	if b.Period != connection.PeriodOf(now) {
		return deny("bill period %s is not the current month", b.Period)
	}
	return allow()
}

// CanDisconnect is true for connections that are currently supplied.
func CanDisconnect(c connection.Connection) bool {
	return Disconnect(c).Allowed
}

// Disconnect evaluates disconnection with a reason.
func Disconnect(c connection.Connection) Result {
	switch c.Status {
	case connection.StatusActive, connection.StatusDormant, connection.StatusPendingPayment:
		return allow()
	}
	return deny("connection %s is %s", c.Label(), c.Status)
}

// CanReconnect is true only for disconnected connections.
func CanReconnect(c connection.Connection) bool {
	return Reconnect(c).Allowed
}

// Reconnect evaluates reconnection with a reason.
func Reconnect(c connection.Connection) Result {
	if c.Status != connection.StatusDisconnected {
		return deny("connection %s is %s, not DISCONNECTED", c.Label(), c.Status)
	}
	return allow()
}
