package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		d, err := ParseDate("2026-03-31")
		require.NoError(t, err)
		assert.Equal(t, "2026-03-31", d.String())
	})

	t.Run("rejects other layouts", func(t *testing.T) {
		for _, s := range []string{"03/31/2026", "2026-3-31", "2026-03-31T00:00:00Z", "not a date", ""} {
			_, err := ParseDate(s)
			assert.Error(t, err, "input %q", s)
		}
	})
}

func TestDateOf_TruncatesToUTCDay(t *testing.T) {
	loc := time.FixedZone("EDT", -4*3600)

	// 23:30 eastern is already the next day in UTC.
	d := DateOf(time.Date(2026, time.March, 31, 23, 30, 0, 0, loc))
	assert.Equal(t, "2026-04-01", d.String())
}

func TestDate_Comparisons(t *testing.T) {
	a := NewDate(2026, time.March, 31)
	b := NewDate(2026, time.June, 30)

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(NewDate(2026, time.March, 31)))
	assert.False(t, a.Equal(b))
}

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2026, time.December, 31)

	assert.Equal(t, "2027-01-01", d.AddDays(1).String())
	assert.Equal(t, "2029-12-31", d.AddYears(3).String())
}

func TestDate_JSON(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		d := NewDate(2026, time.March, 31)
		b, err := json.Marshal(d)
		require.NoError(t, err)
		assert.Equal(t, `"2026-03-31"`, string(b))

		var parsed Date
		require.NoError(t, json.Unmarshal(b, &parsed))
		assert.True(t, d.Equal(parsed))
	})

	t.Run("zero marshals as null", func(t *testing.T) {
		b, err := json.Marshal(Date{})
		require.NoError(t, err)
		assert.Equal(t, "null", string(b))
	})

	t.Run("null and empty unmarshal to zero", func(t *testing.T) {
		for _, raw := range []string{`null`, `""`} {
			var d Date
			require.NoError(t, json.Unmarshal([]byte(raw), &d))
			assert.True(t, d.IsZero(), "input %s", raw)
		}
	})

	t.Run("invalid string errors", func(t *testing.T) {
		var d Date
		assert.Error(t, json.Unmarshal([]byte(`"31/03/2026"`), &d))
	})
}

func TestDate_SQL(t *testing.T) {
	t.Run("scan from time.Time", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2026-03-31", d.String())
	})

	t.Run("scan from string and bytes", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan("2026-03-31"))
		assert.Equal(t, "2026-03-31", d.String())

		require.NoError(t, d.Scan([]byte("2026-06-30")))
		assert.Equal(t, "2026-06-30", d.String())
	})

	t.Run("scan nil yields zero", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan(nil))
		assert.True(t, d.IsZero())
	})

	t.Run("scan unsupported type errors", func(t *testing.T) {
		var d Date
		assert.Error(t, d.Scan(42))
	})

	t.Run("zero values as NULL", func(t *testing.T) {
		v, err := Date{}.Value()
		require.NoError(t, err)
		assert.Nil(t, v)

		v, err = NewDate(2026, time.March, 31).Value()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC), v)
	})
}
