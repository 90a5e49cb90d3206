package connection

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"tableflip.dev/wbc/pkg/scope"
)

// Query filters a connection listing. Thresholds are optional and are sent
// to the billing service exactly as given; eligibility is computed there.
type Query struct {
	Scope           scope.Selection
	Search          string
	MinBalance      *Threshold
	MinUnpaidMonths *int
}

// Threshold is a money amount that keeps the text it was given in, so the
// billing service receives exactly what the user typed.
type Threshold struct {
	raw   string
	value decimal.Decimal
}

// ParseThreshold parses raw as a decimal amount. An empty raw means no
// threshold and returns nil.
func ParseThreshold(raw string) (*Threshold, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("connection: invalid amount %q", raw)
	}
	return &Threshold{raw: raw, value: d}, nil
}

// String returns the amount as it was written.
func (t *Threshold) String() string {
	if t == nil {
		return ""
	}
	return t.raw
}

// Decimal returns the parsed amount.
func (t *Threshold) Decimal() decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	return t.value
}

// Equal reports whether q and other describe the same request.
func (q Query) Equal(other Query) bool {
	if q.Scope != other.Scope || strings.TrimSpace(q.Search) != strings.TrimSpace(other.Search) {
		return false
	}
	switch {
	case q.MinBalance == nil && other.MinBalance != nil,
		q.MinBalance != nil && other.MinBalance == nil:
		return false
	case q.MinBalance != nil && q.MinBalance.raw != other.MinBalance.raw:
		return false
	}
	switch {
	case q.MinUnpaidMonths == nil && other.MinUnpaidMonths != nil,
		q.MinUnpaidMonths != nil && other.MinUnpaidMonths == nil:
		return false
	case q.MinUnpaidMonths != nil && *q.MinUnpaidMonths != *other.MinUnpaidMonths:
		return false
	}
	return true
}

// Values encodes q as query parameters. Unset fields are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if p := q.Scope.QueryParam(); p != "" {
		v.Set(p, q.Scope.ID())
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("search", s)
	}
	if q.MinBalance != nil {
		v.Set("min_balance", q.MinBalance.String())
	}
	if q.MinUnpaidMonths != nil {
		v.Set("min_unpaid_months", strconv.Itoa(*q.MinUnpaidMonths))
	}
	return v
}

// Balance returns a threshold for d written in its shortest form.
func Balance(d decimal.Decimal) *Threshold { return &Threshold{raw: d.String(), value: d} }

// Months returns a pointer to n, for building queries.
func Months(n int) *int { return &n }
