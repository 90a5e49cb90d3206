package guard

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"tableflip.dev/wbc/pkg/connection"
)

func TestCanAssignMeter(t *testing.T) {
	m1 := "m1"
	assert.False(t, CanAssignMeter(connection.Connection{MeterID: &m1}))
	assert.True(t, CanAssignMeter(connection.Connection{MeterID: nil}))

	r := AssignMeter(connection.Connection{Number: "WN-7", MeterID: &m1})
	assert.False(t, r.Allowed)
	assert.Contains(t, r.Reason, "m1")
	assert.EqualError(t, r.Error(), r.Reason)
}

func TestCanCancelBill(t *testing.T) {
	now := time.Date(2026, time.October, 19, 10, 0, 0, 0, time.UTC)
	thisMonth := connection.PeriodOf(now)
	bill := connection.Bill{
		Status:     connection.BillUnpaid,
		AmountPaid: decimal.Zero,
		Period:     thisMonth,
	}

	assert.True(t, CancelBillAt(bill, now).Allowed)

	paid := bill
	paid.AmountPaid = decimal.NewFromInt(500)
	assert.False(t, CancelBillAt(paid, now).Allowed)

	lastMonth := bill
	lastMonth.Period = thisMonth.AddMonths(-1)
	assert.False(t, CancelBillAt(lastMonth, now).Allowed)

	settled := bill
	settled.Status = connection.BillPaid
	assert.False(t, CancelBillAt(settled, now).Allowed)

	// Same bill, evaluated a month later.
	assert.False(t, CancelBillAt(bill, now.AddDate(0, 1, 0)).Allowed)
}

func TestCanCancelBillUsesWallClock(t *testing.T) {
	bill := connection.Bill{Status: connection.BillUnpaid, Period: connection.PeriodOf(time.Now())}
	// Retry once if the month rolled over between building the bill and
	// evaluating it.
	if !CanCancelBill(bill) {
		bill.Period = connection.PeriodOf(time.Now())
		assert.True(t, CanCancelBill(bill))
	}
	bill.Period = bill.Period.AddMonths(-1)
	assert.False(t, CanCancelBill(bill))
}

func TestGuardsAreDeterministic(t *testing.T) {
	m := "m9"
	c := connection.Connection{ID: "c1", MeterID: &m, Status: connection.StatusActive}
	first := AssignMeter(c)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, AssignMeter(c))
	}
}

func TestDisconnectAndReconnect(t *testing.T) {
	for _, s := range connection.AllStatuses() {
		c := connection.Connection{ID: "c1", Status: s}
		switch s {
		case connection.StatusActive, connection.StatusDormant, connection.StatusPendingPayment:
			assert.True(t, CanDisconnect(c), s)
		default:
			assert.False(t, CanDisconnect(c), s)
		}
		assert.Equal(t, s == connection.StatusDisconnected, CanReconnect(c), s)
	}
}
