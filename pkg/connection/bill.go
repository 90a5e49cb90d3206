package connection

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus of an invoice.
type BillStatus string

const (
	BillUnpaid        BillStatus = "UNPAID"
	BillPartiallyPaid BillStatus = "PARTIALLY_PAID"
	BillPaid          BillStatus = "PAID"
	BillCancelled     BillStatus = "CANCELLED"
)

// ParseBillStatus converts a string to a BillStatus, case-insensitively.
func ParseBillStatus(raw string) (BillStatus, error) {
	s := BillStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case BillUnpaid, BillPartiallyPaid, BillPaid, BillCancelled:
		return s, nil
	}
	return "", fmt.Errorf("connection: unknown bill status %q", raw)
}

// Bill is one billing period's invoice for a connection.
type Bill struct {
	ID           string          `json:"id" yaml:"id"`
	ConnectionID string          `json:"connectionId" yaml:"connectionId"`
	Status       BillStatus      `json:"status" yaml:"status"`
	Amount       decimal.Decimal `json:"amount" yaml:"amount"`
	AmountPaid   decimal.Decimal `json:"amountPaid" yaml:"amountPaid"`
	Period       Period          `json:"billPeriod" yaml:"billPeriod"`
}

// Period is a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

const periodLayout = "2006-01"

// PeriodOf returns the month containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod accepts "2006-01", "2006-01-02" or RFC 3339.
func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{periodLayout, "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return PeriodOf(t), nil
		}
	}
	return Period{}, fmt.Errorf("connection: invalid bill period %q", raw)
}

// IsZero reports whether p is unset.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// AddMonths shifts p by n months.
func (p Period) AddMonths(n int) Period {
	t := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return PeriodOf(t)
}

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalJSON encodes p as "YYYY-MM".
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts any form ParsePeriod understands.
func (p *Period) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*p = Period{}
		return nil
	}
	parsed, err := ParsePeriod(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// MarshalYAML encodes p as "YYYY-MM".
func (p Period) MarshalYAML() (any, error) {
	return p.String(), nil
}
