package credit

import (
	"github.com/Ramsey-B/briar/pkg/models"
)

// ScoreBreakdown is the structural subordination score with its components.
// The score is a screening heuristic, not a legal determination of claim
// priority.
type ScoreBreakdown struct {
	// Score is the 0-100 composite.
	Score float64 `json:"score"`

	// UnguaranteedBelowRootFraction is the share of total active outstanding
	// issued below a confirmed root with no guarantee from the root.
	UnguaranteedBelowRootFraction float64 `json:"unguaranteed_below_root_fraction"`

	// LayeredIssuance is true when debt sits at both the root and below it
	// simultaneously.
	LayeredIssuance bool `json:"layered_issuance"`

	// OutsidePerimeter is true when an unrestricted subsidiary or VIE sits
	// outside the guarantor perimeter.
	OutsidePerimeter bool `json:"outside_perimeter"`

	// UpstreamGuaranteedFraction is the debt-value-weighted share of
	// root-issued outstanding guaranteed by below-root entities. It offsets
	// the base components: full upstream coverage means holdco creditors
	// reach opco assets after all.
	UpstreamGuaranteedFraction float64 `json:"upstream_guaranteed_fraction"`

	// GuaranteedCoveragePct is the debt-value-weighted guaranteed share of
	// all active outstanding, in percent. Reported alongside the score;
	// guarantor head-count is deliberately a separate metric.
	GuaranteedCoveragePct float64 `json:"guaranteed_coverage_pct"`
}

// Score weights, tuned so the three drivers keep fixed proportions:
// unguaranteed below-root debt dominates, layered issuance is second,
// perimeter leakage third.
const (
	weightUnguaranteed = 60.0
	weightLayered      = 25.0
	weightPerimeter    = 15.0
)

// Score computes the structural subordination heuristic.
//
// Formula:
//
//	base      = 60 * unguaranteedBelowRoot / totalOutstanding
//	layered   = 25 when root-level and below-root debt coexist
//	perimeter = 15 when an unrestricted sub or VIE sits outside the
//	            guarantor perimeter
//	score     = (base + layered) * (1 - upstreamGuaranteedFraction) + perimeter
//
// Guarantee coverage is weighted by outstanding debt value throughout, never
// by entity head-count. Adding an unguaranteed below-root instrument can only
// raise the score; guaranteeing root debt from every opco drives it toward
// zero.
func Score(capture *models.CompanyCapture) ScoreBreakdown {
	var bd ScoreBreakdown

	entities := capture.EntityByID()
	guaranteesByInstrument := capture.GuaranteesByInstrument()

	// Guarantor perimeter: flagged guarantors plus anyone actually
	// guaranteeing an active instrument.
	instruments := capture.InstrumentByID()
	perimeter := make(map[string]bool)
	for i := range capture.Entities {
		if capture.Entities[i].IsGuarantor {
			perimeter[capture.Entities[i].ID] = true
		}
	}
	for i := range capture.Guarantees {
		g := &capture.Guarantees[i]
		if d, ok := instruments[g.DebtInstrumentID]; ok && d.IsActive {
			perimeter[g.GuarantorEntityID] = true
		}
	}

	var (
		total              int64
		rootIssued         int64
		belowRootIssued    int64
		unguaranteedBelow  float64
		rootCoveredUp      float64 // root-issued outstanding covered by below-root guarantors
		coveredAny         float64 // any-guarantor coverage, for GuaranteedCoveragePct
	)

	for _, d := range capture.ActiveInstruments() {
		out := d.Outstanding()
		total += out

		issuer, known := entities[d.IssuerEntityID]

		// Best coverage per guarantor class for this instrument.
		var fromRoot, fromBelow, fromAny float64
		for _, g := range guaranteesByInstrument[d.ID] {
			guarantor, ok := entities[g.GuarantorEntityID]
			if !ok {
				continue
			}
			cov := g.EffectiveCoverage()
			if cov > fromAny {
				fromAny = cov
			}
			if guarantor.IsRoot {
				if cov > fromRoot {
					fromRoot = cov
				}
			} else {
				if cov > fromBelow {
					fromBelow = cov
				}
			}
		}
		coveredAny += float64(out) * fromAny

		if known && issuer.IsRoot {
			rootIssued += out
			rootCoveredUp += float64(out) * fromBelow
			continue
		}

		// Orphans (nil parent, not root) are excluded from the below-root
		// component: we cannot place them in the structure, so we do not
		// charge them to it.
		if known && issuer.ParentID != nil {
			belowRootIssued += out
			unguaranteedBelow += float64(out) * (1 - fromRoot)
		}
	}

	if total == 0 {
		return bd
	}

	bd.UnguaranteedBelowRootFraction = unguaranteedBelow / float64(total)
	bd.LayeredIssuance = rootIssued > 0 && belowRootIssued > 0
	bd.GuaranteedCoveragePct = coveredAny / float64(total) * 100
	if rootIssued > 0 {
		bd.UpstreamGuaranteedFraction = rootCoveredUp / float64(rootIssued)
	}

	for i := range capture.Entities {
		e := &capture.Entities[i]
		if perimeter[e.ID] {
			continue
		}
		if e.IsVIE || (!e.IsRestricted && e.Kind != models.EntityKindHoldco) {
			bd.OutsidePerimeter = true
			break
		}
	}

	score := weightUnguaranteed * bd.UnguaranteedBelowRootFraction
	if bd.LayeredIssuance {
		score += weightLayered
	}
	score *= 1 - bd.UpstreamGuaranteedFraction
	if bd.OutsidePerimeter {
		score += weightPerimeter
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	bd.Score = score
	return bd
}
