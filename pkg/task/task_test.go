package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflip.dev/wbc/pkg/scope"
)

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, p)

	p, err = ParsePriority("critical")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestDraftMissing(t *testing.T) {
	d := NewDraft()
	assert.Equal(t, []string{"title", "type", "assignee"}, d.Missing())

	d.Title = "Disconnect"
	d.TypeID = "t-disc"
	d.AssigneeID = "  "
	assert.Equal(t, []string{"assignee"}, d.Missing())

	d.AssigneeID = "u1"
	assert.Empty(t, d.Missing())
}

func TestDraftRequestCarriesExactlyOneTarget(t *testing.T) {
	due := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	d := Draft{
		Title:      " Disconnect ",
		TypeID:     "t-disc",
		AssigneeID: "u1",
		DueDate:    &due,
		Scope:      scope.OfZone("Z1"),
	}
	req := d.WithScope(scope.OfConnection("C7")).Request()
	assert.Equal(t, "Disconnect", req.Title)
	assert.Equal(t, PriorityMedium, req.Priority)

	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"typeId":"t-disc","title":"Disconnect","priority":"MEDIUM",
		"dueDate":"2026-11-01T00:00:00Z","assigneeId":"u1","connectionId":"C7"
	}`, string(b))

	// The original draft keeps its aggregate scope.
	assert.Equal(t, scope.OfZone("Z1"), d.Scope)
}

func TestTaskScope(t *testing.T) {
	var tk Task
	require.NoError(t, json.Unmarshal([]byte(`{"id":"T1","routeId":"R1"}`), &tk))
	assert.Equal(t, scope.OfRoute("R1"), tk.Scope())
}
