package events_test

import (
	"encoding/json"
	"testing"

	"github.com/dukex/ticketflow/pkg/events"
	"github.com/dukex/ticketflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		event interface{ GetType() events.EventType }
		want  events.EventType
	}{
		{name: "ticket transitioned", event: events.TicketTransitioned{}, want: "ticket.transitioned"},
		{name: "ticket opened", event: events.TicketOpened{}, want: "ticket.opened"},
		{name: "workflow saved", event: events.WorkflowSaved{}, want: "workflow.saved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.event.GetType())
		})
	}
}

func TestTicketTransitioned_JSON(t *testing.T) {
	t.Parallel()

	event := events.TicketTransitioned{
		BaseEvent:    events.NewBaseEvent("evt-1", events.TicketTransitionedEvent),
		TicketID:     "T-1",
		FromStepCode: 1,
		ToStepCode:   2,
		FromStepName: "Open",
		ToStepName:   "InProgress",
		WorkgroupID:  testutil.Ptr("wg-support"),
		Actor:        "alice",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "ticket.transitioned", decoded["type"])
	assert.Equal(t, "T-1", decoded["ticket_id"])
	assert.Equal(t, "wg-support", decoded["workgroup_id"])
	assert.NotContains(t, decoded, "responsible_employee_id")
	assert.False(t, event.Timestamp.IsZero())
}
