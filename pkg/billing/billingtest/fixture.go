package billingtest

import (
	"github.com/shopspring/decimal"

	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/task"
)

// Sample returns a small network: schemes S1 and S2, zone Z1 with routes R1
// and R2 under S1, zone Z2 with route R3 under S2, and five connections.
func Sample() Fixture {
	meter := "M-100"
	conn := func(id, number, route, zone, scheme string, status connection.Status, balance string, months int) connection.Connection {
		return connection.Connection{
			ID:           id,
			Number:       number,
			Status:       status,
			CustomerID:   "cust-" + id,
			CustomerName: "Customer " + id,
			SchemeID:     scheme,
			ZoneID:       zone,
			RouteID:      route,
			Balance:      decimal.RequireFromString(balance),
			UnpaidMonths: months,
			UnpaidBills:  months,
			UnpaidAmount: decimal.RequireFromString(balance),
		}
	}
	withMeter := conn("C3", "WB-0003", "R2", "Z1", "S1", connection.StatusActive, "0", 0)
	withMeter.MeterID = &meter

	return Fixture{
		Schemes: []location.Scheme{
			{ID: "S1", Name: "Northern Scheme", Zones: []location.Zone{
				{ID: "Z1", Name: "Hillside", SchemeID: "S1", Routes: []location.Route{
					{ID: "R1", Name: "Route 1", ZoneID: "Z1"},
					{ID: "R2", Name: "Route 2", ZoneID: "Z1"},
				}},
			}},
			{ID: "S2", Name: "Southern Scheme", Zones: []location.Zone{
				{ID: "Z2", Name: "Riverside", SchemeID: "S2", Routes: []location.Route{
					{ID: "R3", Name: "Route 3", ZoneID: "Z2"},
				}},
			}},
		},
		Connections: []connection.Connection{
			conn("C1", "WB-0001", "R1", "Z1", "S1", connection.StatusActive, "1500", 3),
			conn("C2", "WB-0002", "R1", "Z1", "S1", connection.StatusPendingPayment, "1000", 2),
			withMeter,
			conn("C4", "WB-0004", "R3", "Z2", "S2", connection.StatusPendingMeter, "200", 1),
			conn("C5", "WB-0005", "R2", "Z1", "S1", connection.StatusDisconnected, "4000", 9),
		},
		TaskTypes: []task.Type{
			{ID: "t-disc", Name: "Disconnection"},
			{ID: "t-read", Name: "Meter reading"},
		},
		Assignees: []task.Assignee{
			{ID: "u1", Name: "Amina", Role: "field"},
			{ID: "u2", Name: "Brian", Role: "field"},
		},
	}
}
