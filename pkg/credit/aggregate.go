// Package credit computes derived credit-risk views over a company capture:
// per-entity debt aggregation, the structural subordination score, the claims
// waterfall, and the aggregate metrics row. Every function here is pure, so
// results are reproducible and the write path can recompute them inside the
// write transaction.
package credit

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/models"
)

// EntityDebt is the per-entity aggregation. Issued debt and guarantee
// exposure are reported separately and never conflated: an entity with zero
// issued debt that fully guarantees a sibling's bond is exposed even though
// it issued nothing.
type EntityDebt struct {
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`

	// IssuedOutstandingMinor sums outstanding of active instruments issued
	// at this entity.
	IssuedOutstandingMinor int64 `json:"issued_outstanding_minor"`

	// GuaranteedExposureMinor sums coverage-weighted outstanding of active
	// instruments this entity guarantees.
	GuaranteedExposureMinor int64 `json:"guaranteed_exposure_minor"`

	ActiveInstruments int `json:"active_instruments"`
	GuaranteesGiven   int `json:"guarantees_given"`
}

// DebtAtEntity aggregates issued debt and guarantee exposure per entity.
func DebtAtEntity(capture *models.CompanyCapture) []EntityDebt {
	byID := make(map[string]*EntityDebt, len(capture.Entities))
	order := make([]string, 0, len(capture.Entities))
	for i := range capture.Entities {
		e := &capture.Entities[i]
		byID[e.ID] = &EntityDebt{EntityID: e.ID, EntityName: e.Name}
		order = append(order, e.ID)
	}

	instruments := capture.InstrumentByID()
	for _, d := range capture.ActiveInstruments() {
		if agg, ok := byID[d.IssuerEntityID]; ok {
			agg.IssuedOutstandingMinor += d.Outstanding()
			agg.ActiveInstruments++
		}
	}

	for i := range capture.Guarantees {
		g := &capture.Guarantees[i]
		agg, ok := byID[g.GuarantorEntityID]
		if !ok {
			continue
		}
		d, ok := instruments[g.DebtInstrumentID]
		if !ok || !d.IsActive {
			continue
		}
		agg.GuaranteedExposureMinor += int64(float64(d.Outstanding()) * g.EffectiveCoverage())
		agg.GuaranteesGiven++
	}

	out := make([]EntityDebt, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// ComputeMetrics derives the full metrics row for a company as of now.
func ComputeMetrics(capture *models.CompanyCapture, now time.Time) models.CreditMetrics {
	m := models.CreditMetrics{
		CompanyID:  capture.Company.ID,
		TenantID:   capture.Company.TenantID,
		ComputedAt: now,
	}

	guarantors := make(map[string]bool)
	instruments := capture.InstrumentByID()
	for i := range capture.Guarantees {
		g := &capture.Guarantees[i]
		if d, ok := instruments[g.DebtInstrumentID]; ok && d.IsActive {
			guarantors[g.GuarantorEntityID] = true
		}
	}
	m.GuarantorCount = len(guarantors)

	today := models.DateOf(now)
	for _, d := range capture.ActiveInstruments() {
		out := d.Outstanding()
		m.TotalDebtMinor += out
		m.ActiveInstruments++
		if d.IsSecured() {
			m.SecuredDebtMinor += out
		}
		bucketMaturity(&m.Maturities, d.MaturityDate, today, out)
	}

	if m.TotalDebtMinor > 0 {
		m.SecuredPct = float64(m.SecuredDebtMinor) / float64(m.TotalDebtMinor) * 100
	}

	if capture.Company.EBITDAMinor != nil && *capture.Company.EBITDAMinor > 0 {
		lev := float64(m.TotalDebtMinor) / float64(*capture.Company.EBITDAMinor)
		m.LeverageX = &lev
	}

	score := Score(capture)
	m.SubordinationScore = score.Score
	m.GuaranteedCoveragePct = score.GuaranteedCoveragePct

	return m
}

func bucketMaturity(b *models.MaturityBuckets, maturity *models.Date, today models.Date, amount int64) {
	if maturity == nil || maturity.IsZero() {
		b.UnscheduledMinor += amount
		return
	}
	switch {
	case !maturity.After(today.AddYears(1)):
		b.Within1YMinor += amount
	case !maturity.After(today.AddYears(3)):
		b.From1To3YMinor += amount
	case !maturity.After(today.AddYears(5)):
		b.From3To5YMinor += amount
	default:
		b.Beyond5YMinor += amount
	}
}
