package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/models"
)

func i64ptr(v int64) *int64     { return &v }
func f64ptr(v float64) *float64 { return &v }
func strptr(s string) *string   { return &s }

// holdcoOpcoCapture builds the canonical two-level structure: a root holdco
// with unsecured notes and an opco below it with secured debt.
func holdcoOpcoCapture() *models.CompanyCapture {
	return &models.CompanyCapture{
		Company: models.Company{ID: "co-1", TenantID: "t1", Ticker: "ACME", LegalName: "Acme Corp"},
		Entities: []models.Entity{
			{ID: "e-hold", CompanyID: "co-1", Name: "Acme Holdings", Kind: models.EntityKindHoldco, IsRoot: true, IsRestricted: true, NaturalKey: "Acme Holdings|"},
			{ID: "e-op", CompanyID: "co-1", Name: "Acme Operating", Kind: models.EntityKindOpco, ParentID: strptr("e-hold"), IsRestricted: true, NaturalKey: "Acme Operating|Acme Holdings"},
		},
		Instruments: []models.DebtInstrument{
			{
				ID: "d-notes", CompanyID: "co-1", IssuerEntityID: "e-hold",
				Name: "Senior Notes 2030", Kind: "notes",
				Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured,
				OutstandingMinor: i64ptr(100_000), IsActive: true, NaturalKey: "Acme Holdings|525|2030-06-15",
			},
			{
				ID: "d-loan", CompanyID: "co-1", IssuerEntityID: "e-op",
				Name: "Term Loan B", Kind: "term_loan",
				Seniority: models.SenioritySeniorSecured, SecurityType: models.SecurityFirstLien,
				OutstandingMinor: i64ptr(300_000), IsActive: true, NaturalKey: "Acme Operating|450|2028-03-01",
			},
		},
	}
}

func TestScore_StructuralSubordination(t *testing.T) {
	t.Run("unguaranteed opco debt below a levered holdco", func(t *testing.T) {
		capture := holdcoOpcoCapture()

		bd := Score(capture)

		// 300k of 400k sits below the root with no root guarantee.
		assert.InDelta(t, 0.75, bd.UnguaranteedBelowRootFraction, 1e-9)
		assert.True(t, bd.LayeredIssuance)
		assert.False(t, bd.OutsidePerimeter)
		assert.Zero(t, bd.UpstreamGuaranteedFraction)
		assert.InDelta(t, 60*0.75+25, bd.Score, 1e-9)
	})

	t.Run("upstream guarantee from the opco collapses the score", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		capture.Guarantees = []models.Guarantee{
			{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes", GuarantorEntityID: "e-op", Type: models.GuaranteeFullAndUnconditional},
		}

		bd := Score(capture)

		assert.InDelta(t, 1.0, bd.UpstreamGuaranteedFraction, 1e-9)
		assert.InDelta(t, 0, bd.Score, 1e-9)
		// Only the 100k of notes carries a guarantee.
		assert.InDelta(t, 25.0, bd.GuaranteedCoveragePct, 1e-9)
	})

	t.Run("downstream guarantee from the root removes the base component", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		capture.Guarantees = []models.Guarantee{
			{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-loan", GuarantorEntityID: "e-hold", Type: models.GuaranteeFullAndUnconditional},
		}

		bd := Score(capture)

		assert.Zero(t, bd.UnguaranteedBelowRootFraction)
		assert.True(t, bd.LayeredIssuance)
		assert.InDelta(t, 25.0, bd.Score, 1e-9)
	})

	t.Run("partial coverage scales by debt value, not head count", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		capture.Guarantees = []models.Guarantee{
			{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-loan", GuarantorEntityID: "e-hold", Type: models.GuaranteePartial, CoveragePct: f64ptr(50)},
		}

		bd := Score(capture)

		// Half of the 300k below-root loan is uncovered: 150k of 400k.
		assert.InDelta(t, 0.375, bd.UnguaranteedBelowRootFraction, 1e-9)
		assert.InDelta(t, 300.0/400.0*0.5*100, bd.GuaranteedCoveragePct, 1e-9)
	})

	t.Run("adding unguaranteed below-root debt never lowers the score", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		before := Score(capture).Score

		capture.Instruments = append(capture.Instruments, models.DebtInstrument{
			ID: "d-extra", CompanyID: "co-1", IssuerEntityID: "e-op",
			Name: "Incremental Notes", Kind: "notes",
			Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured,
			OutstandingMinor: i64ptr(100_000), IsActive: true, NaturalKey: "Acme Operating|600|2031-01-01",
		})
		after := Score(capture).Score

		assert.GreaterOrEqual(t, after, before)
	})

	t.Run("unrestricted subsidiary outside the perimeter adds the leakage component", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		capture.Entities = append(capture.Entities, models.Entity{
			ID: "e-unres", CompanyID: "co-1", Name: "Acme Ventures",
			Kind: models.EntityKindSubsidiary, ParentID: strptr("e-hold"),
			IsRestricted: false, NaturalKey: "Acme Ventures|Acme Holdings",
		})

		bd := Score(capture)

		assert.True(t, bd.OutsidePerimeter)
		assert.InDelta(t, 60*0.75+25+15, bd.Score, 1e-9)
	})

	t.Run("inactive instruments are ignored", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		capture.Instruments[1].IsActive = false

		bd := Score(capture)

		assert.Zero(t, bd.UnguaranteedBelowRootFraction)
		assert.False(t, bd.LayeredIssuance)
	})

	t.Run("no active debt yields a zero breakdown", func(t *testing.T) {
		capture := holdcoOpcoCapture()
		capture.Instruments = nil

		bd := Score(capture)

		assert.Zero(t, bd.Score)
		assert.Zero(t, bd.GuaranteedCoveragePct)
	})
}

func TestWaterfall_TierOrdering(t *testing.T) {
	capture := holdcoOpcoCapture()
	capture.Guarantees = []models.Guarantee{
		{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes", GuarantorEntityID: "e-op", Type: models.GuaranteeFullAndUnconditional},
	}

	res := Waterfall(capture)

	require.Len(t, res.Tiers, 2)
	assert.Equal(t, int64(400_000), res.TotalOutstandingMinor)

	// Secured first lien pays first.
	first := res.Tiers[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, models.SenioritySeniorSecured, first.Seniority)
	assert.Equal(t, models.SecurityFirstLien, first.SecurityType)
	assert.Equal(t, int64(300_000), first.OutstandingMinor)
	assert.Equal(t, int64(300_000), first.CumulativeMinor)

	second := res.Tiers[1]
	assert.Equal(t, 2, second.Rank)
	assert.Equal(t, models.SenioritySeniorUnsecured, second.Seniority)
	assert.Equal(t, []string{"e-op"}, second.GuarantorIDs)
	assert.Equal(t, []string{"Acme Operating"}, second.GuarantorNames)
	assert.Equal(t, int64(400_000), second.CumulativeMinor)
}

func TestWaterfall_GuarantorSetSplitsEqualRank(t *testing.T) {
	capture := holdcoOpcoCapture()
	capture.Instruments = append(capture.Instruments, models.DebtInstrument{
		ID: "d-unsec2", CompanyID: "co-1", IssuerEntityID: "e-hold",
		Name: "Exchange Notes 2031", Kind: "notes",
		Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured,
		OutstandingMinor: i64ptr(50_000), IsActive: true, NaturalKey: "Acme Holdings|575|2031-09-30",
	})
	capture.Guarantees = []models.Guarantee{
		{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes", GuarantorEntityID: "e-op", Type: models.GuaranteeFullAndUnconditional},
	}

	res := Waterfall(capture)

	// Equal contractual rank, different guarantor backing: three tiers, with
	// the guaranteed unsecured notes ahead of the unguaranteed ones.
	require.Len(t, res.Tiers, 3)
	assert.Equal(t, "Senior Notes 2030", res.Tiers[1].Instruments[0].Name)
	assert.Equal(t, []string{"e-op"}, res.Tiers[1].GuarantorIDs)
	assert.Equal(t, "Exchange Notes 2031", res.Tiers[2].Instruments[0].Name)
	assert.Empty(t, res.Tiers[2].GuarantorIDs)

	// Cumulative totals are monotone across tiers.
	var prev int64
	for _, tier := range res.Tiers {
		assert.Greater(t, tier.CumulativeMinor, prev)
		prev = tier.CumulativeMinor
	}
	assert.Equal(t, res.TotalOutstandingMinor, prev)
}

func TestDebtAtEntity_SeparatesIssuanceFromExposure(t *testing.T) {
	capture := holdcoOpcoCapture()
	capture.Guarantees = []models.Guarantee{
		{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes", GuarantorEntityID: "e-op", Type: models.GuaranteePartial, CoveragePct: f64ptr(50)},
	}

	agg := DebtAtEntity(capture)
	require.Len(t, agg, 2)

	byID := map[string]EntityDebt{}
	for _, a := range agg {
		byID[a.EntityID] = a
	}

	hold := byID["e-hold"]
	assert.Equal(t, int64(100_000), hold.IssuedOutstandingMinor)
	assert.Zero(t, hold.GuaranteedExposureMinor)
	assert.Equal(t, 1, hold.ActiveInstruments)

	op := byID["e-op"]
	assert.Equal(t, int64(300_000), op.IssuedOutstandingMinor)
	// Half-coverage guarantee on the 100k notes.
	assert.Equal(t, int64(50_000), op.GuaranteedExposureMinor)
	assert.Equal(t, 1, op.GuaranteesGiven)
}

func TestComputeMetrics(t *testing.T) {
	capture := holdcoOpcoCapture()
	capture.Company.EBITDAMinor = i64ptr(100_000)
	notesMaturity := models.NewDate(2030, time.June, 15)
	loanMaturity := models.NewDate(2028, time.March, 1)
	capture.Instruments[0].MaturityDate = &notesMaturity
	capture.Instruments[1].MaturityDate = &loanMaturity
	capture.Guarantees = []models.Guarantee{
		{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes", GuarantorEntityID: "e-op", Type: models.GuaranteeFullAndUnconditional},
	}

	now := time.Date(2026, time.August, 28, 10, 0, 0, 0, time.UTC)
	m := ComputeMetrics(capture, now)

	assert.Equal(t, int64(400_000), m.TotalDebtMinor)
	assert.Equal(t, int64(300_000), m.SecuredDebtMinor)
	assert.Equal(t, 2, m.ActiveInstruments)
	assert.Equal(t, 1, m.GuarantorCount)
	assert.InDelta(t, 75.0, m.SecuredPct, 1e-9)
	require.NotNil(t, m.LeverageX)
	assert.InDelta(t, 4.0, *m.LeverageX, 1e-9)

	// 2028-03-01 lands in 1-3y, 2030-06-15 in 3-5y.
	assert.Equal(t, int64(300_000), m.Maturities.From1To3YMinor)
	assert.Equal(t, int64(100_000), m.Maturities.From3To5YMinor)
	assert.Zero(t, m.Maturities.Within1YMinor)
	assert.Zero(t, m.Maturities.UnscheduledMinor)
}

func TestComputeMetrics_UnscheduledAndNoEBITDA(t *testing.T) {
	capture := holdcoOpcoCapture()

	m := ComputeMetrics(capture, time.Date(2026, time.August, 28, 0, 0, 0, 0, time.UTC))

	// Fixture instruments carry no maturity dates.
	assert.Equal(t, int64(400_000), m.Maturities.UnscheduledMinor)
	assert.Nil(t, m.LeverageX)
}

func TestWaterfall_ExcludesInactive(t *testing.T) {
	capture := holdcoOpcoCapture()
	capture.Instruments[0].IsActive = false

	res := Waterfall(capture)

	require.Len(t, res.Tiers, 1)
	assert.Equal(t, int64(300_000), res.TotalOutstandingMinor)
}
