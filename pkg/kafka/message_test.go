package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomingMessage_ParseExtraction(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		msg := &IncomingMessage{
			Value: []byte(`{
				"tenant_id": "t1",
				"ticker": "ACME",
				"timestamp": "2026-08-01T12:00:00Z",
				"entities": [{"name": "HoldCo", "kind": "holdco", "is_root": true}]
			}`),
		}

		require.NoError(t, msg.ParseExtraction())
		require.NotNil(t, msg.Extraction)
		assert.Equal(t, "ACME", msg.Extraction.Ticker)
		assert.Equal(t, "t1", msg.Extraction.GetTenantID())
		assert.Len(t, msg.Extraction.Entities, 1)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{broken`)}
		assert.Error(t, msg.ParseExtraction())
		assert.Nil(t, msg.Extraction)
	})

	t.Run("missing ticker is unroutable", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"tenant_id": "t1"}`)}
		assert.Error(t, msg.ParseExtraction())
	})

	t.Run("missing tenant is unroutable", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{"ticker": "ACME"}`)}
		assert.Error(t, msg.ParseExtraction())
	})

	t.Run("tenant from the source block is enough", func(t *testing.T) {
		msg := &IncomingMessage{Value: []byte(`{
			"ticker": "ACME",
			"source": {"tenant_id": "t2", "filing_type": "10-K"}
		}`)}

		require.NoError(t, msg.ParseExtraction())
		assert.Equal(t, "t2", msg.Extraction.GetTenantID())
	})

	t.Run("zero timestamp falls back to the message timestamp", func(t *testing.T) {
		at := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
		msg := &IncomingMessage{
			Value:     []byte(`{"tenant_id": "t1", "ticker": "ACME"}`),
			Timestamp: at,
		}

		require.NoError(t, msg.ParseExtraction())
		assert.Equal(t, at, msg.Extraction.Timestamp)
	})
}

func TestIncomingMessage_TenantID(t *testing.T) {
	t.Run("payload wins over header", func(t *testing.T) {
		msg := &IncomingMessage{
			Value:   []byte(`{"tenant_id": "t-payload", "ticker": "ACME"}`),
			Headers: map[string]string{"tenant_id": "t-header"},
		}
		require.NoError(t, msg.ParseExtraction())
		assert.Equal(t, "t-payload", msg.TenantID())
	})

	t.Run("header fallback before parsing", func(t *testing.T) {
		msg := &IncomingMessage{Headers: map[string]string{"tenant_id": "t-header"}}
		assert.Equal(t, "t-header", msg.TenantID())
	})

	t.Run("empty when nothing is set", func(t *testing.T) {
		msg := &IncomingMessage{}
		assert.Empty(t, msg.TenantID())
	})
}
