package traversal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/models"
)

func strptr(s string) *string { return &s }
func i64ptr(v int64) *int64   { return &v }
func boolptr(v bool) *bool    { return &v }

// testCapture builds a three-level tree with debt and guarantees:
//
//	HoldCo (root)
//	  +- OpCo (guarantor) -- issues Term Loan, guarantees Notes
//	  +- FinCo            -- issues Notes
//	       +- SPV (spv, Cayman)
func testCapture() *models.CompanyCapture {
	return &models.CompanyCapture{
		Company: models.Company{ID: "co-1", TenantID: "t1", Ticker: "ACME", LegalName: "Acme Corp"},
		Entities: []models.Entity{
			{ID: "e-hold", CompanyID: "co-1", Name: "HoldCo", Kind: models.EntityKindHoldco, IsRoot: true, Jurisdiction: "US"},
			{ID: "e-op", CompanyID: "co-1", Name: "OpCo", Kind: models.EntityKindOpco, ParentID: strptr("e-hold"), IsGuarantor: true, Jurisdiction: "US"},
			{ID: "e-fin", CompanyID: "co-1", Name: "FinCo", Kind: models.EntityKindFinco, ParentID: strptr("e-hold"), Jurisdiction: "NL"},
			{ID: "e-spv", CompanyID: "co-1", Name: "SPV", Kind: models.EntityKindSPV, ParentID: strptr("e-fin"), Jurisdiction: "KY"},
		},
		Instruments: []models.DebtInstrument{
			{ID: "d-loan", CompanyID: "co-1", IssuerEntityID: "e-op", Name: "Term Loan", Kind: "term_loan",
				Seniority: models.SenioritySeniorSecured, SecurityType: models.SecurityFirstLien,
				OutstandingMinor: i64ptr(200_000), IsActive: true},
			{ID: "d-notes", CompanyID: "co-1", IssuerEntityID: "e-fin", Name: "Notes", Kind: "notes",
				Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured,
				OutstandingMinor: i64ptr(100_000), IsActive: true},
		},
		Guarantees: []models.Guarantee{
			{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes", GuarantorEntityID: "e-op", Type: models.GuaranteeFullAndUnconditional},
		},
	}
}

func TestTraverse_SubsidiariesFromCompany(t *testing.T) {
	engine := NewEngine(1, 15)

	res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
		Start:         models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
		Relationships: []models.Relationship{models.RelSubsidiaries},
		Depth:         3,
	})
	require.NoError(t, err)

	// Roots at depth 1, their children at 2, SPV at 3.
	require.Len(t, res.Nodes, 4)
	assert.Equal(t, "HoldCo", res.Nodes[0].Name)
	assert.Equal(t, 1, res.Nodes[0].Depth)

	depths := map[string]int{}
	for _, n := range res.Nodes {
		depths[n.Name] = n.Depth
	}
	assert.Equal(t, 2, depths["OpCo"])
	assert.Equal(t, 2, depths["FinCo"])
	assert.Equal(t, 3, depths["SPV"])
	assert.Equal(t, 4, res.Summary.EntitiesVisited)
}

func TestTraverse_DeduplicatesAtShallowestDepth(t *testing.T) {
	engine := NewEngine(1, 15)
	capture := testCapture()
	// Second guarantee so two bonds both lead back to the same issuer.
	capture.Guarantees = append(capture.Guarantees, models.Guarantee{
		ID: "g-2", CompanyID: "co-1", DebtInstrumentID: "d-loan", GuarantorEntityID: "e-op", Type: models.GuaranteeLimited,
	})

	res, err := engine.Traverse(capture, &models.TraversalRequest{
		Start:         models.StartNode{Kind: models.NodeEntity, ID: "e-op"},
		Relationships: []models.Relationship{models.RelGuarantees, models.RelBorrowers},
		Depth:         4,
	})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, n := range res.Nodes {
		seen[n.ID]++
	}
	for id, count := range seen {
		assert.Equal(t, 1, count, "node %s visited more than once", id)
	}
	// The start node never re-appears in the result list.
	assert.NotContains(t, seen, "e-op")
	// Both bonds at depth 1; FinCo reached via Notes -> borrower at depth 2.
	assert.Equal(t, 1, seen["d-notes"])
	assert.Equal(t, 1, seen["d-loan"])
	assert.Equal(t, 1, seen["e-fin"])
}

func TestTraverse_DepthHandling(t *testing.T) {
	engine := NewEngine(2, 3)

	t.Run("requested depth above the cap is clamped", func(t *testing.T) {
		res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
			Depth:         50,
		})
		require.NoError(t, err)
		assert.True(t, res.Meta.DepthCapped)
		assert.Equal(t, 50, res.Meta.DepthRequested)
		assert.Equal(t, 3, res.Meta.DepthUsed)
	})

	t.Run("zero depth falls back to the default", func(t *testing.T) {
		res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
		})
		require.NoError(t, err)
		assert.False(t, res.Meta.DepthCapped)
		assert.Equal(t, 2, res.Meta.DepthUsed)
		// Depth 2 stops before the SPV.
		assert.Equal(t, 3, res.Meta.NodesVisited)
	})
}

func TestTraverse_FiltersPruneSubtrees(t *testing.T) {
	engine := NewEngine(1, 15)

	t.Run("kind filter removes the node and everything below it", func(t *testing.T) {
		res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeEntity, ID: "e-hold"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
			Depth:         5,
			Filters:       models.TraversalFilters{EntityKinds: []models.EntityKind{models.EntityKindOpco}},
		})
		require.NoError(t, err)

		// FinCo is filtered out, so the SPV under it is never reached even
		// though spv is not excluded by name.
		require.Len(t, res.Nodes, 1)
		assert.Equal(t, "OpCo", res.Nodes[0].Name)
	})

	t.Run("guarantor filter", func(t *testing.T) {
		res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeEntity, ID: "e-hold"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
			Depth:         5,
			Filters:       models.TraversalFilters{IsGuarantor: boolptr(true)},
		})
		require.NoError(t, err)
		require.Len(t, res.Nodes, 1)
		assert.Equal(t, "OpCo", res.Nodes[0].Name)
	})

	t.Run("jurisdiction filter", func(t *testing.T) {
		res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeEntity, ID: "e-hold"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
			Depth:         5,
			Filters:       models.TraversalFilters{Jurisdictions: []string{"NL", "KY"}},
		})
		require.NoError(t, err)
		names := []string{}
		for _, n := range res.Nodes {
			names = append(names, n.Name)
		}
		assert.ElementsMatch(t, []string{"FinCo", "SPV"}, names)
	})

	t.Run("filters never apply to bonds", func(t *testing.T) {
		res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeEntity, ID: "e-op"},
			Relationships: []models.Relationship{models.RelDebt},
			Depth:         1,
			Filters:       models.TraversalFilters{EntityKinds: []models.EntityKind{models.EntityKindHoldco}},
		})
		require.NoError(t, err)
		require.Len(t, res.Nodes, 1)
		assert.Equal(t, models.NodeBond, res.Nodes[0].Kind)
	})
}

func TestTraverse_GuaranteesInboundFromBond(t *testing.T) {
	engine := NewEngine(1, 15)

	res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
		Start:         models.StartNode{Kind: models.NodeBond, ID: "d-notes"},
		Relationships: []models.Relationship{models.RelGuarantees},
		Direction:     models.DirectionInbound,
		Depth:         1,
	})
	require.NoError(t, err)

	require.Len(t, res.Nodes, 1)
	assert.Equal(t, "e-op", res.Nodes[0].ID)
	assert.Equal(t, models.RelGuarantees, res.Nodes[0].Relationship)
}

func TestTraverse_FieldProjection(t *testing.T) {
	engine := NewEngine(1, 15)

	res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
		Start:         models.StartNode{Kind: models.NodeEntity, ID: "e-op"},
		Relationships: []models.Relationship{models.RelDebt},
		Depth:         1,
		Fields:        []string{"seniority", "outstanding_minor", "jurisdiction"},
	})
	require.NoError(t, err)

	require.Len(t, res.Nodes, 1)
	fields := res.Nodes[0].Fields
	assert.Equal(t, models.SenioritySeniorSecured, fields["seniority"])
	assert.Equal(t, int64(200_000), fields["outstanding_minor"])
	// Entity-only field names are skipped on bonds, not errors.
	assert.NotContains(t, fields, "jurisdiction")
}

func TestTraverse_Summary(t *testing.T) {
	engine := NewEngine(1, 15)

	res, err := engine.Traverse(testCapture(), &models.TraversalRequest{
		Start:         models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
		Relationships: []models.Relationship{models.RelSubsidiaries, models.RelDebt},
		Depth:         5,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Summary.EntitiesVisited)
	assert.Equal(t, 2, res.Summary.BondsVisited)
	assert.Equal(t, int64(300_000), res.Summary.TotalOutstandingMinor)
	assert.Equal(t, 1, res.Summary.DistinctGuarantors)
	assert.Equal(t, 1, res.Summary.FullGuarantees)
	assert.Equal(t, 0, res.Summary.PartialGuarantees)
}

func TestTraverse_Errors(t *testing.T) {
	engine := NewEngine(1, 15)

	t.Run("no relationships", func(t *testing.T) {
		_, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start: models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("unknown relationship", func(t *testing.T) {
		_, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
			Relationships: []models.Relationship{"owns"},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})

	t.Run("unknown start node", func(t *testing.T) {
		_, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeEntity, ID: "missing"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
		})
		assert.True(t, errors.Is(err, models.ErrNotFound))
	})

	t.Run("negative depth", func(t *testing.T) {
		_, err := engine.Traverse(testCapture(), &models.TraversalRequest{
			Start:         models.StartNode{Kind: models.NodeCompany, ID: "co-1"},
			Relationships: []models.Relationship{models.RelSubsidiaries},
			Depth:         -3,
		})
		assert.True(t, errors.Is(err, models.ErrInvalidParameter))
	})
}
