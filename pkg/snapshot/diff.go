package snapshot

import (
	"math"
	"sort"

	"github.com/Ramsey-B/briar/pkg/models"
)

// floatTolerance absorbs recomputation noise in derived ratios so a diff
// never reports a metric change that is pure floating point jitter.
const floatTolerance = 1e-9

// Diff compares a snapshot baseline against the live state of the same
// company. It is read-only and pure: instruments and entities are matched by
// natural key, never by row id, so re-ingested rows do not show up as churn.
func Diff(baseline *models.Snapshot, payload *models.SnapshotPayload, live *models.CompanyCapture, today models.Date) *models.ChangeSet {
	cs := &models.ChangeSet{
		CompanyID:     live.Company.ID,
		BaselineDate:  baseline.AsOf,
		MetricChanges: map[string]models.MetricDelta{},
	}

	baseActive := make(map[string]*models.DebtInstrument)
	for i := range payload.Instruments {
		d := &payload.Instruments[i]
		if d.IsActive {
			baseActive[d.NaturalKey] = d
		}
	}
	liveActive := make(map[string]*models.DebtInstrument)
	for _, d := range live.ActiveInstruments() {
		liveActive[d.NaturalKey] = d
	}

	for key, d := range liveActive {
		if _, ok := baseActive[key]; !ok {
			cs.NewDebt = append(cs.NewDebt, debtChange(d, ""))
		}
	}
	for key, d := range baseActive {
		if _, ok := liveActive[key]; !ok {
			reason := models.DebtChangeRemoved
			if d.MaturityDate != nil && !d.MaturityDate.After(today) {
				reason = models.DebtChangeMatured
			}
			cs.MaturedOrRemovedDebt = append(cs.MaturedOrRemovedDebt, debtChange(d, reason))
		}
	}
	sortChanges(cs.NewDebt)
	sortChanges(cs.MaturedOrRemovedDebt)

	cs.EntityChanges = diffEntities(payload.Entities, live.Entities)
	cs.MetricChanges = diffMetrics(payload.Metrics, live.Metrics)
	return cs
}

func debtChange(d *models.DebtInstrument, reason models.DebtChangeReason) models.DebtChange {
	return models.DebtChange{
		NaturalKey:       d.NaturalKey,
		Name:             d.Name,
		Seniority:        d.Seniority,
		OutstandingMinor: d.Outstanding(),
		MaturityDate:     d.MaturityDate,
		Reason:           reason,
	}
}

func sortChanges(changes []models.DebtChange) {
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].NaturalKey < changes[j].NaturalKey
	})
}

func diffEntities(baseline, live []models.Entity) models.EntityChangeSummary {
	var s models.EntityChangeSummary

	baseKeys := make(map[string]string, len(baseline))
	for i := range baseline {
		baseKeys[baseline[i].NaturalKey] = baseline[i].Name
	}
	liveKeys := make(map[string]string, len(live))
	for i := range live {
		liveKeys[live[i].NaturalKey] = live[i].Name
	}

	for key, name := range liveKeys {
		if _, ok := baseKeys[key]; !ok {
			s.Added = append(s.Added, name)
		}
	}
	for key, name := range baseKeys {
		if _, ok := liveKeys[key]; !ok {
			s.Removed = append(s.Removed, name)
		}
	}
	sort.Strings(s.Added)
	sort.Strings(s.Removed)
	s.AddedCount = len(s.Added)
	s.RemovedCount = len(s.Removed)
	return s
}

// diffMetrics reports only metrics that actually moved.
func diffMetrics(baseline, live *models.CreditMetrics) map[string]models.MetricDelta {
	out := map[string]models.MetricDelta{}
	if baseline == nil || live == nil {
		return out
	}

	add := func(name string, prev, cur float64) {
		if math.Abs(cur-prev) <= floatTolerance {
			return
		}
		out[name] = models.MetricDelta{Previous: prev, Current: cur, Delta: cur - prev}
	}

	add("total_debt_minor", float64(baseline.TotalDebtMinor), float64(live.TotalDebtMinor))
	add("secured_debt_minor", float64(baseline.SecuredDebtMinor), float64(live.SecuredDebtMinor))
	add("active_instruments", float64(baseline.ActiveInstruments), float64(live.ActiveInstruments))
	add("guarantor_count", float64(baseline.GuarantorCount), float64(live.GuarantorCount))
	add("secured_pct", baseline.SecuredPct, live.SecuredPct)
	add("guaranteed_coverage_pct", baseline.GuaranteedCoveragePct, live.GuaranteedCoveragePct)
	add("subordination_score", baseline.SubordinationScore, live.SubordinationScore)
	add("leverage_x", floatOrZero(baseline.LeverageX), floatOrZero(live.LeverageX))
	return out
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
