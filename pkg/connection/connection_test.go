package connection

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("pending_meter")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingMeter, s)

	_, err = ParseStatus("retired")
	assert.Error(t, err)
}

func TestHasMeter(t *testing.T) {
	blank := "  "
	m1 := "m1"
	assert.False(t, Connection{}.HasMeter())
	assert.False(t, Connection{MeterID: &blank}.HasMeter())
	assert.True(t, Connection{MeterID: &m1}.HasMeter())
}

func TestConnectionDecodesNullMeterAndDecimalBalance(t *testing.T) {
	var c Connection
	err := json.Unmarshal([]byte(`{"id":"c1","connectionNumber":"WN-001","status":"ACTIVE","meterId":null,"balance":"1250.50","unpaidMonths":3}`), &c)
	require.NoError(t, err)
	assert.Nil(t, c.MeterID)
	assert.Equal(t, "1250.5", c.Balance.String())
	assert.Equal(t, 3, c.UnpaidMonths)
	assert.Equal(t, "WN-001", c.Label())
}

func TestPeriodParsingAndShift(t *testing.T) {
	for _, raw := range []string{"2026-10", "2026-10-19", "2026-10-19T08:00:00Z"} {
		p, err := ParsePeriod(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, Period{Year: 2026, Month: time.October}, p)
	}
	_, err := ParsePeriod("October")
	assert.Error(t, err)

	p := Period{Year: 2026, Month: time.January}
	assert.Equal(t, "2025-12", p.AddMonths(-1).String())

	var b Bill
	require.NoError(t, json.Unmarshal([]byte(`{"status":"UNPAID","amountPaid":0,"billPeriod":"2026-10"}`), &b))
	assert.Equal(t, BillUnpaid, b.Status)
	assert.Equal(t, "2026-10", b.Period.String())
	assert.True(t, b.AmountPaid.IsZero())
}

func TestThresholdKeepsWrittenText(t *testing.T) {
	th, err := ParseThreshold(" 1000.00 ")
	require.NoError(t, err)
	assert.Equal(t, "1000.00", th.String())
	assert.True(t, th.Decimal().Equal(Balance(th.Decimal()).Decimal()))
	assert.Equal(t, "1000", Balance(th.Decimal()).String())

	q := Query{MinBalance: th}
	assert.Equal(t, "1000.00", q.Values().Get("min_balance"))
	assert.False(t, q.Equal(Query{MinBalance: Balance(th.Decimal())}))

	none, err := ParseThreshold("  ")
	require.NoError(t, err)
	assert.Nil(t, none)
	assert.Empty(t, Query{MinBalance: none}.Values().Get("min_balance"))

	_, err = ParseThreshold("lots")
	assert.Error(t, err)
}
