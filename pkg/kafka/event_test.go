package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]any{"draft_id": "d-1", "total_amount": 41000}

	event, err := NewEvent("checkout.completed", "d-1", "checkout_draft", "checkout-engine", payload)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "checkout.completed", event.EventType)
	assert.Equal(t, "d-1", event.AggregateID)
	assert.Equal(t, "checkout_draft", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.False(t, event.Timestamp.IsZero())

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(event.Data, &decoded))
	assert.Equal(t, "d-1", decoded["draft_id"])
}

func TestEvent_RoundTrip(t *testing.T) {
	event, err := NewEvent("checkout.failed", "d-2", "checkout_draft", "checkout-engine", map[string]string{"reason": "stock"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-7").WithMetadata("settlement_ref", "pi_9")

	data, err := event.Marshal()
	require.NoError(t, err)

	decoded, err := UnmarshalEvent(data)
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, "corr-7", decoded.CorrelationID)
	assert.Equal(t, "pi_9", decoded.Metadata["settlement_ref"])
}
