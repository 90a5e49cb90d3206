// Package connection defines the water connections and bills the console
// reasons about. The remote billing service owns their persistence.
package connection

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status of a connection.
type Status string

const (
	StatusActive            Status = "ACTIVE"
	StatusPendingMeter      Status = "PENDING_METER"
	StatusDisconnected      Status = "DISCONNECTED"
	StatusInactive          Status = "INACTIVE"
	StatusDormant           Status = "DORMANT"
	StatusPendingPayment    Status = "PENDING_PAYMENT"
	StatusPendingConnection Status = "PENDING_CONNECTION"
)

// AllStatuses returns every known connection status.
func AllStatuses() []Status {
	return []Status{
		StatusActive,
		StatusPendingMeter,
		StatusDisconnected,
		StatusInactive,
		StatusDormant,
		StatusPendingPayment,
		StatusPendingConnection,
	}
}

// ParseStatus converts a string to a Status, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, candidate := range AllStatuses() {
		if candidate == s {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("connection: unknown status %q", raw)
}

// Connection is a customer's service point. SchemeID, ZoneID and RouteID are
// denormalized copies of its place in the location hierarchy.
type Connection struct {
	ID           string          `json:"id" yaml:"id"`
	Number       string          `json:"connectionNumber" yaml:"connectionNumber"`
	Status       Status          `json:"status" yaml:"status"`
	MeterID      *string         `json:"meterId" yaml:"meterId"`
	CustomerID   string          `json:"customerId" yaml:"customerId"`
	CustomerName string          `json:"customerName,omitempty" yaml:"customerName,omitempty"`
	SchemeID     string          `json:"schemeId,omitempty" yaml:"schemeId,omitempty"`
	ZoneID       string          `json:"zoneId,omitempty" yaml:"zoneId,omitempty"`
	RouteID      string          `json:"routeId,omitempty" yaml:"routeId,omitempty"`
	Balance      decimal.Decimal `json:"balance" yaml:"balance"`
	UnpaidBills  int             `json:"unpaidBills" yaml:"unpaidBills"`
	UnpaidMonths int             `json:"unpaidMonths" yaml:"unpaidMonths"`
	UnpaidAmount decimal.Decimal `json:"unpaidAmount" yaml:"unpaidAmount"`
}

// HasMeter reports whether a meter is assigned.
func (c Connection) HasMeter() bool {
	return c.MeterID != nil && strings.TrimSpace(*c.MeterID) != ""
}

// Label is the short human form used in lists.
func (c Connection) Label() string {
	switch {
	case c.Number != "" && c.CustomerName != "":
		return fmt.Sprintf("%s (%s)", c.Number, c.CustomerName)
	case c.Number != "":
		return c.Number
	default:
		return c.ID
	}
}
