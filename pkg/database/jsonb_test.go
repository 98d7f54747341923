package database

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jsonbFixture struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

func TestJSONB_ScanAndValue(t *testing.T) {
	t.Run("scan from a jsonb column", func(t *testing.T) {
		var col JSONB[jsonbFixture]
		require.NoError(t, col.Scan([]byte(`{"name":"Term Loan","amount":300000}`)))
		assert.Equal(t, jsonbFixture{Name: "Term Loan", Amount: 300000}, col.GetValue())
	})

	t.Run("scan rejects non-byte sources", func(t *testing.T) {
		var col JSONB[jsonbFixture]
		assert.Error(t, col.Scan(42))
	})

	t.Run("value round-trips through scan", func(t *testing.T) {
		col := JSONB[jsonbFixture]{Data: jsonbFixture{Name: "Notes", Amount: 100000}}
		v, err := col.Value()
		require.NoError(t, err)

		var back JSONB[jsonbFixture]
		require.NoError(t, back.Scan(v.([]byte)))
		assert.Equal(t, col.Data, back.Data)
	})
}

func TestJSONB_MarshalsTransparently(t *testing.T) {
	wrapped := struct {
		Payload JSONB[jsonbFixture] `json:"payload"`
	}{Payload: JSONB[jsonbFixture]{Data: jsonbFixture{Name: "Notes", Amount: 100000}}}

	raw, err := json.Marshal(wrapped)
	require.NoError(t, err)
	assert.JSONEq(t, `{"payload":{"name":"Notes","amount":100000}}`, string(raw))

	var back struct {
		Payload JSONB[jsonbFixture] `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, wrapped.Payload.Data, back.Payload.Data)
}
