package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/models"
)

func i64ptr(v int64) *int64     { return &v }
func f64ptr(v float64) *float64 { return &v }

func dateptr(d models.Date) *models.Date { return &d }

func baselineFixture() (*models.Snapshot, *models.SnapshotPayload) {
	snap := &models.Snapshot{
		ID:        "snap-1",
		TenantID:  "t1",
		CompanyID: "co-1",
		AsOf:      models.NewDate(2026, time.March, 31),
	}
	payload := &models.SnapshotPayload{
		Entities: []models.Entity{
			{ID: "e-hold", Name: "HoldCo", NaturalKey: "HoldCo|"},
			{ID: "e-op", Name: "OpCo", NaturalKey: "OpCo|HoldCo"},
		},
		Instruments: []models.DebtInstrument{
			{ID: "d-1", Name: "Notes 2027", NaturalKey: "HoldCo|500|2027-01-15",
				Seniority: models.SenioritySeniorUnsecured, OutstandingMinor: i64ptr(100_000),
				MaturityDate: dateptr(models.NewDate(2027, time.January, 15)), IsActive: true},
			{ID: "d-2", Name: "Old Loan", NaturalKey: "OpCo|300|2026-06-30",
				Seniority: models.SenioritySeniorSecured, OutstandingMinor: i64ptr(50_000),
				MaturityDate: dateptr(models.NewDate(2026, time.June, 30)), IsActive: true},
		},
		Metrics: &models.CreditMetrics{
			CompanyID: "co-1", TotalDebtMinor: 150_000, SecuredDebtMinor: 50_000,
			ActiveInstruments: 2, SecuredPct: 1.0 / 3.0, SubordinationScore: 40,
		},
	}
	return snap, payload
}

func liveFromPayload(payload *models.SnapshotPayload) *models.CompanyCapture {
	capture := &models.CompanyCapture{
		Company:  models.Company{ID: "co-1", TenantID: "t1", Ticker: "ACME"},
		Entities: append([]models.Entity{}, payload.Entities...),
	}
	capture.Instruments = append([]models.DebtInstrument{}, payload.Instruments...)
	if payload.Metrics != nil {
		m := *payload.Metrics
		capture.Metrics = &m
	}
	return capture
}

func TestDiff_NoChanges(t *testing.T) {
	snap, payload := baselineFixture()
	live := liveFromPayload(payload)
	today := models.NewDate(2026, time.April, 30)

	cs := Diff(snap, payload, live, today)

	assert.True(t, cs.Empty())
	assert.Equal(t, snap.AsOf, cs.BaselineDate)
	assert.Equal(t, "co-1", cs.CompanyID)
}

func TestDiff_NewDebt(t *testing.T) {
	snap, payload := baselineFixture()
	live := liveFromPayload(payload)
	live.Instruments = append(live.Instruments, models.DebtInstrument{
		ID: "d-3", Name: "Incremental TLB", NaturalKey: "OpCo|475|2030-09-01",
		Seniority: models.SenioritySeniorSecured, OutstandingMinor: i64ptr(75_000), IsActive: true,
	})

	cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

	require.Len(t, cs.NewDebt, 1)
	assert.Equal(t, "Incremental TLB", cs.NewDebt[0].Name)
	assert.Equal(t, int64(75_000), cs.NewDebt[0].OutstandingMinor)
	assert.Empty(t, cs.MaturedOrRemovedDebt)
}

func TestDiff_MaturedVersusRemoved(t *testing.T) {
	snap, payload := baselineFixture()

	t.Run("past maturity is tagged matured", func(t *testing.T) {
		live := liveFromPayload(payload)
		// The 2026-06-30 loan fell out of the live set and today is past its
		// maturity date.
		live.Instruments = live.Instruments[:1]

		cs := Diff(snap, payload, live, models.NewDate(2026, time.July, 1))

		require.Len(t, cs.MaturedOrRemovedDebt, 1)
		assert.Equal(t, models.DebtChangeMatured, cs.MaturedOrRemovedDebt[0].Reason)
	})

	t.Run("maturity on today still counts as matured", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Instruments = live.Instruments[:1]

		cs := Diff(snap, payload, live, models.NewDate(2026, time.June, 30))

		require.Len(t, cs.MaturedOrRemovedDebt, 1)
		assert.Equal(t, models.DebtChangeMatured, cs.MaturedOrRemovedDebt[0].Reason)
	})

	t.Run("disappearance before maturity is tagged removed", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Instruments = live.Instruments[:1]

		cs := Diff(snap, payload, live, models.NewDate(2026, time.May, 1))

		require.Len(t, cs.MaturedOrRemovedDebt, 1)
		assert.Equal(t, models.DebtChangeRemoved, cs.MaturedOrRemovedDebt[0].Reason)
	})

	t.Run("deactivated instrument counts as gone", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Instruments[1].IsActive = false

		cs := Diff(snap, payload, live, models.NewDate(2026, time.May, 1))

		require.Len(t, cs.MaturedOrRemovedDebt, 1)
	})
}

func TestDiff_MatchesByNaturalKeyNotRowID(t *testing.T) {
	snap, payload := baselineFixture()
	live := liveFromPayload(payload)
	// Re-ingestion assigned fresh row ids but the natural keys are unchanged.
	live.Instruments[0].ID = "d-99"
	live.Instruments[1].ID = "d-98"
	live.Entities[0].ID = "e-99"

	cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

	assert.True(t, cs.Empty())
}

func TestDiff_EntityChanges(t *testing.T) {
	snap, payload := baselineFixture()
	live := liveFromPayload(payload)
	live.Entities = append(live.Entities[:1], models.Entity{
		ID: "e-new", Name: "NewCo", NaturalKey: "NewCo|HoldCo",
	})

	cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

	assert.Equal(t, []string{"NewCo"}, cs.EntityChanges.Added)
	assert.Equal(t, []string{"OpCo"}, cs.EntityChanges.Removed)
	assert.Equal(t, 1, cs.EntityChanges.AddedCount)
	assert.Equal(t, 1, cs.EntityChanges.RemovedCount)
}

func TestDiff_MetricChanges(t *testing.T) {
	snap, payload := baselineFixture()

	t.Run("moved metrics are reported with deltas", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Metrics.TotalDebtMinor = 175_000
		live.Metrics.SubordinationScore = 55

		cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

		require.Contains(t, cs.MetricChanges, "total_debt_minor")
		assert.InDelta(t, 150_000, cs.MetricChanges["total_debt_minor"].Previous, 1e-9)
		assert.InDelta(t, 175_000, cs.MetricChanges["total_debt_minor"].Current, 1e-9)
		assert.InDelta(t, 25_000, cs.MetricChanges["total_debt_minor"].Delta, 1e-9)

		require.Contains(t, cs.MetricChanges, "subordination_score")
		assert.InDelta(t, 15, cs.MetricChanges["subordination_score"].Delta, 1e-9)

		assert.NotContains(t, cs.MetricChanges, "secured_debt_minor")
	})

	t.Run("floating point jitter is not a change", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Metrics.SecuredPct = payload.Metrics.SecuredPct + 1e-12

		cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

		assert.NotContains(t, cs.MetricChanges, "secured_pct")
	})

	t.Run("missing metrics on either side diff as empty", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Metrics = nil

		cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

		assert.Empty(t, cs.MetricChanges)
	})

	t.Run("nil leverage diffs against zero", func(t *testing.T) {
		live := liveFromPayload(payload)
		live.Metrics.LeverageX = f64ptr(4.2)

		cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

		require.Contains(t, cs.MetricChanges, "leverage_x")
		assert.InDelta(t, 4.2, cs.MetricChanges["leverage_x"].Delta, 1e-9)
	})
}

func TestDiff_ChangesAreSorted(t *testing.T) {
	snap, payload := baselineFixture()
	live := liveFromPayload(payload)
	live.Instruments = append(live.Instruments,
		models.DebtInstrument{ID: "d-b", Name: "B Notes", NaturalKey: "ZCo|100|2030-01-01", IsActive: true},
		models.DebtInstrument{ID: "d-a", Name: "A Notes", NaturalKey: "ACo|100|2030-01-01", IsActive: true},
	)

	cs := Diff(snap, payload, live, models.NewDate(2026, time.April, 30))

	require.Len(t, cs.NewDebt, 2)
	assert.Equal(t, "A Notes", cs.NewDebt[0].Name)
	assert.Equal(t, "B Notes", cs.NewDebt[1].Name)
}
