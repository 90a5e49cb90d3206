package printers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tableflip.dev/wbc/pkg/app"
	"tableflip.dev/wbc/pkg/connection"
	"tableflip.dev/wbc/pkg/dispatch"
	"tableflip.dev/wbc/pkg/eligibility"
	"tableflip.dev/wbc/pkg/fault"
	"tableflip.dev/wbc/pkg/guard"
	"tableflip.dev/wbc/pkg/location"
	"tableflip.dev/wbc/pkg/scope"
)

func init() {
	color.NoColor = true
}

type candidates []connection.Connection

func (c candidates) DisconnectionCandidates(context.Context, connection.Query) ([]connection.Connection, error) {
	return c, nil
}

func previewSet(t *testing.T) *eligibility.CandidateSet {
	t.Helper()
	r := eligibility.NewResolver(candidates{
		{ID: "C1", Number: "WB-0001", CustomerName: "Customer C1", Status: connection.StatusActive, Balance: decimal.RequireFromString("1500"), UnpaidMonths: 3},
		{ID: "C2", Number: "WB-0002", CustomerName: "Customer C2", Status: connection.StatusPendingPayment, Balance: decimal.RequireFromString("1000"), UnpaidMonths: 2},
	}, nil)
	set, err := r.Resolve(context.Background(), scope.OfZone("Z1"), connection.Balance(decimal.RequireFromString("1000")), nil)
	require.NoError(t, err)
	require.NoError(t, set.Select("C2"))
	return set
}

func TestParseFormat(t *testing.T) {
	for raw, want := range map[string]Format{"": Pretty, "pretty": Pretty, "JSON": JSON, " yaml ": YAML} {
		got, err := ParseFormat(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestEncodeErrorDoc(t *testing.T) {
	var buf bytes.Buffer
	err := fault.Authorization("list schemes", errors.New("HTTP 403"))
	require.NoError(t, Encode(&buf, JSON, NewErrorDoc(err)))
	assert.JSONEq(t, `{"error":"list schemes: HTTP 403","kind":"authorization"}`, buf.String())

	assert.Error(t, Encode(&buf, Pretty, nil))
}

func TestCandidateDocJSONKeepsThresholdVerbatim(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, JSON, NewCandidateDoc(previewSet(t))))

	var got struct {
		Scope      scope.Selection `json:"scope"`
		MinBalance string          `json:"minBalance"`
		Count      int             `json:"count"`
		Candidates []struct {
			ID       string `json:"id"`
			Number   string `json:"connectionNumber"`
			Selected bool   `json:"selected"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, scope.OfZone("Z1"), got.Scope)
	assert.Equal(t, "1000", got.MinBalance)
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Candidates, 2)
	assert.Equal(t, "WB-0001", got.Candidates[0].Number)
	assert.False(t, got.Candidates[0].Selected)
	assert.True(t, got.Candidates[1].Selected)
}

func TestCandidateDocYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, YAML, NewCandidateDoc(previewSet(t))))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, map[string]any{"kind": "zone", "id": "Z1"}, got["scope"])
	assert.Equal(t, 2, got["count"])
	assert.Contains(t, buf.String(), "connectionNumber: WB-0002")
}

func TestPrettyHierarchy(t *testing.T) {
	var buf bytes.Buffer
	pp := PrettyPrint{Out: &buf}
	pp.Hierarchy(location.NewHierarchy([]location.Scheme{{
		ID: "S1", Name: "Northern Scheme",
		Zones: []location.Zone{{ID: "Z1", Name: "Hillside", Routes: []location.Route{{ID: "R1", Name: "Ridge Road"}}}},
	}}))

	out := buf.String()
	assert.Contains(t, out, "Schemes - 1 scheme\n")
	assert.Contains(t, out, "Northern Scheme")
	assert.Contains(t, out, "    Ridge Road")
	assert.Less(t, strings.Index(out, "Hillside"), strings.Index(out, "Ridge Road"))

	buf.Reset()
	pp.Hierarchy(nil)
	assert.Contains(t, buf.String(), "Schemes - 0 schemes")
	assert.Contains(t, buf.String(), "none")
}

func TestPrettyCandidatesMarksSelection(t *testing.T) {
	var buf bytes.Buffer
	pp := PrettyPrint{Out: &buf}
	pp.Candidates(previewSet(t))

	lines := strings.Split(buf.String(), "\n")
	var c1, c2 string
	for _, l := range lines {
		switch {
		case strings.Contains(l, "WB-0001"):
			c1 = l
		case strings.Contains(l, "WB-0002"):
			c2 = l
		}
	}
	assert.True(t, strings.HasPrefix(strings.TrimSpace(c2), "*"), c2)
	assert.False(t, strings.HasPrefix(strings.TrimSpace(c1), "*"), c1)
	assert.Contains(t, c1, "1500.00")
}

func TestPrettyReport(t *testing.T) {
	var buf bytes.Buffer
	pp := PrettyPrint{Out: &buf}
	pp.Report(app.DispatchReport{
		Scope: scope.OfZone("Z1"),
		Items: []app.DispatchItem{
			{ConnectionID: "C1", Success: true, TaskID: "T1", Attempts: 1},
			{ConnectionID: "C2", Error: "create task: HTTP 409: conflict", Attempts: 1},
		},
		Summary: dispatch.Summary{Total: 2, Succeeded: 1, Failed: 1, Outcome: dispatch.OutcomePartial},
	})
	out := buf.String()
	assert.Contains(t, out, "HTTP 409: conflict")
	assert.Contains(t, out, "created 1 of 2; 1 failed")
}

func TestPrettyGuard(t *testing.T) {
	var buf bytes.Buffer
	pp := PrettyPrint{Out: &buf}
	pp.Guard("assign meter", guard.Result{Allowed: true})
	pp.Guard("cancel bill", guard.Result{Reason: "bill is PAID"})
	assert.Equal(t, "assign meter: allowed\ncancel bill: blocked (bill is PAID)\n", buf.String())
}
