package graphstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/models"
)

func strptr(s string) *string   { return &s }
func i64ptr(v int64) *int64     { return &v }
func f64ptr(v float64) *float64 { return &v }

func dateptr(d models.Date) *models.Date { return &d }

func treeCapture() *models.CompanyCapture {
	return &models.CompanyCapture{
		Company: models.Company{ID: "co-1", TenantID: "t1", Ticker: "ACME"},
		Entities: []models.Entity{
			{ID: "e-a", Name: "Alpha", Kind: models.EntityKindHoldco, IsRoot: true},
			{ID: "e-b", Name: "Beta", Kind: models.EntityKindOpco, ParentID: strptr("e-a")},
			{ID: "e-c", Name: "Gamma", Kind: models.EntityKindSubsidiary, ParentID: strptr("e-b")},
		},
		Instruments: []models.DebtInstrument{
			{ID: "d-1", Name: "Term Loan", IssuerEntityID: "e-b", IsActive: true},
		},
	}
}

func TestWouldCreateCycle(t *testing.T) {
	parentOf := map[string]*string{
		"e-a": nil,
		"e-b": strptr("e-a"),
		"e-c": strptr("e-b"),
	}

	t.Run("nil parent never cycles", func(t *testing.T) {
		assert.False(t, wouldCreateCycle(parentOf, "e-a", nil))
	})

	t.Run("deeper re-parent of a sibling is fine", func(t *testing.T) {
		assert.False(t, wouldCreateCycle(parentOf, "e-b", strptr("e-a")))
	})

	t.Run("re-parenting an ancestor under its descendant closes a loop", func(t *testing.T) {
		assert.True(t, wouldCreateCycle(parentOf, "e-a", strptr("e-c")))
		assert.True(t, wouldCreateCycle(parentOf, "e-b", strptr("e-c")))
	})

	t.Run("direct self parent", func(t *testing.T) {
		assert.True(t, wouldCreateCycle(parentOf, "e-b", strptr("e-b")))
	})

	t.Run("pre-existing loop in the chain is caught by the walk bound", func(t *testing.T) {
		looped := map[string]*string{
			"e-x": strptr("e-y"),
			"e-y": strptr("e-x"),
		}
		assert.True(t, wouldCreateCycle(looped, "e-z", strptr("e-x")))
	})
}

func TestValidateEntityBatch(t *testing.T) {
	t.Run("parents satisfied by earlier batch entries", func(t *testing.T) {
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Delta", Kind: models.EntityKindOpco, ParentName: strptr("Alpha")},
			{Name: "Epsilon", Kind: models.EntityKindSubsidiary, ParentName: strptr("Delta")},
		})
		assert.NoError(t, err)
	})

	t.Run("batch order matters for in-batch parents", func(t *testing.T) {
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Epsilon", Kind: models.EntityKindSubsidiary, ParentName: strptr("Delta")},
			{Name: "Delta", Kind: models.EntityKindOpco, ParentName: strptr("Alpha")},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))
	})

	t.Run("unknown parent", func(t *testing.T) {
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Delta", Kind: models.EntityKindOpco, ParentName: strptr("Nobody")},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Delta", Kind: "conglomerate"},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("own parent", func(t *testing.T) {
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Delta", Kind: models.EntityKindOpco, ParentName: strptr("Delta")},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("re-parent closing a cycle is rejected", func(t *testing.T) {
		// Alpha is Gamma's grandparent; moving Alpha under Gamma loops.
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Alpha", Kind: models.EntityKindHoldco, ParentName: strptr("Gamma")},
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("re-parent within the batch sees earlier moves", func(t *testing.T) {
		// First move Gamma directly under Alpha, then Beta under Gamma. The
		// second move is legal only because the first detached Gamma from Beta.
		err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
			{Name: "Gamma", Kind: models.EntityKindSubsidiary, ParentName: strptr("Alpha")},
			{Name: "Beta", Kind: models.EntityKindOpco, ParentName: strptr("Gamma")},
		})
		assert.NoError(t, err)
	})

	t.Run("ownership pct bounds", func(t *testing.T) {
		for _, pct := range []float64{-5, 0, 100.01} {
			err := validateEntityBatch(treeCapture(), []models.UpsertEntityRequest{
				{Name: "Delta", Kind: models.EntityKindJV, OwnershipPct: f64ptr(pct)},
			})
			assert.True(t, errors.Is(err, models.ErrInvalidParameter), "pct %v", pct)
		}
	})
}

func TestValidateInstrumentBatch(t *testing.T) {
	t.Run("issuer from the store", func(t *testing.T) {
		err := validateInstrumentBatch(treeCapture(), nil, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Beta", Name: "Notes", Kind: "notes",
				Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured},
		})
		assert.NoError(t, err)
	})

	t.Run("issuer from the entity batch in the same message", func(t *testing.T) {
		entityBatch := []models.UpsertEntityRequest{
			{Name: "NewIssuer", Kind: models.EntityKindFinco, ParentName: strptr("Alpha")},
		}
		err := validateInstrumentBatch(treeCapture(), entityBatch, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "NewIssuer", Name: "Notes", Kind: "notes",
				Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured},
		})
		assert.NoError(t, err)
	})

	t.Run("unknown issuer", func(t *testing.T) {
		err := validateInstrumentBatch(treeCapture(), nil, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Nobody", Name: "Notes", Kind: "notes"},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))
	})

	t.Run("negative amounts", func(t *testing.T) {
		err := validateInstrumentBatch(treeCapture(), nil, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Beta", Name: "Notes", Kind: "notes", OutstandingMinor: i64ptr(-1)},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("outstanding exceeds principal", func(t *testing.T) {
		err := validateInstrumentBatch(treeCapture(), nil, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Beta", Name: "Notes", Kind: "notes",
				PrincipalMinor: i64ptr(100), OutstandingMinor: i64ptr(500)},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("outstanding at principal is fine", func(t *testing.T) {
		err := validateInstrumentBatch(treeCapture(), nil, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Beta", Name: "Notes", Kind: "notes",
				Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured,
				PrincipalMinor: i64ptr(500), OutstandingMinor: i64ptr(500)},
		})
		assert.NoError(t, err)
	})

	t.Run("maturity before issue", func(t *testing.T) {
		issue := models.NewDate(2026, 6, 1)
		maturity := models.NewDate(2025, 6, 1)
		err := validateInstrumentBatch(treeCapture(), nil, []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Beta", Name: "Notes", Kind: "notes",
				IssueDate: dateptr(issue), MaturityDate: dateptr(maturity)},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})
}

func TestValidateGuaranteeBatch(t *testing.T) {
	t.Run("both ends in the store", func(t *testing.T) {
		err := validateGuaranteeBatch(treeCapture(), nil, nil, []models.UpsertGuaranteeRequest{
			{InstrumentName: "Term Loan", GuarantorEntityName: "Alpha", Type: models.GuaranteeFullAndUnconditional},
		})
		assert.NoError(t, err)
	})

	t.Run("instrument satisfied by the instrument batch", func(t *testing.T) {
		instrumentBatch := []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Beta", Name: "New Notes", Kind: "notes"},
		}
		err := validateGuaranteeBatch(treeCapture(), nil, instrumentBatch, []models.UpsertGuaranteeRequest{
			{InstrumentName: "New Notes", GuarantorEntityName: "Gamma", Type: models.GuaranteeLimited},
		})
		assert.NoError(t, err)
	})

	t.Run("unknown instrument", func(t *testing.T) {
		err := validateGuaranteeBatch(treeCapture(), nil, nil, []models.UpsertGuaranteeRequest{
			{InstrumentName: "Ghost Bond", GuarantorEntityName: "Alpha", Type: models.GuaranteeFullAndUnconditional},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))
	})

	t.Run("unknown guarantor", func(t *testing.T) {
		err := validateGuaranteeBatch(treeCapture(), nil, nil, []models.UpsertGuaranteeRequest{
			{InstrumentName: "Term Loan", GuarantorEntityName: "Nobody", Type: models.GuaranteeFullAndUnconditional},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))
	})

	t.Run("coverage bounds", func(t *testing.T) {
		err := validateGuaranteeBatch(treeCapture(), nil, nil, []models.UpsertGuaranteeRequest{
			{InstrumentName: "Term Loan", GuarantorEntityName: "Alpha", Type: models.GuaranteePartial, CoveragePct: f64ptr(120)},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})
}

func TestValidateOwnershipBatch(t *testing.T) {
	t.Run("valid edge", func(t *testing.T) {
		err := validateOwnershipBatch(treeCapture(), nil, []models.UpsertOwnershipLinkRequest{
			{OwnerEntityName: "Alpha", OwnedEntityName: "Gamma", Pct: 49},
		})
		assert.NoError(t, err)
	})

	t.Run("self ownership", func(t *testing.T) {
		err := validateOwnershipBatch(treeCapture(), nil, []models.UpsertOwnershipLinkRequest{
			{OwnerEntityName: "Alpha", OwnedEntityName: "Alpha", Pct: 10},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("unknown ends", func(t *testing.T) {
		err := validateOwnershipBatch(treeCapture(), nil, []models.UpsertOwnershipLinkRequest{
			{OwnerEntityName: "Nobody", OwnedEntityName: "Alpha", Pct: 10},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))

		err = validateOwnershipBatch(treeCapture(), nil, []models.UpsertOwnershipLinkRequest{
			{OwnerEntityName: "Alpha", OwnedEntityName: "Nobody", Pct: 10},
		})
		assert.True(t, errors.Is(err, models.ErrDanglingReference))
	})

	t.Run("pct bounds", func(t *testing.T) {
		for _, pct := range []float64{0, -1, 101} {
			err := validateOwnershipBatch(treeCapture(), nil, []models.UpsertOwnershipLinkRequest{
				{OwnerEntityName: "Alpha", OwnedEntityName: "Beta", Pct: pct},
			})
			assert.True(t, errors.Is(err, models.ErrInvalidParameter), "pct %v", pct)
		}
	})
}
