package integration

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/credit"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/snapshot"
	"github.com/Ramsey-B/briar/pkg/traversal"
)

func strptr(s string) *string { return &s }
func i64ptr(v int64) *int64   { return &v }

func dateptr(d models.Date) *models.Date { return &d }

// q1Capture models a levered issuer at the end of Q1: a holdco with unsecured
// notes, an opco with a secured term loan maturing inside the quarter, and an
// upstream guarantee on the notes.
func q1Capture() *models.CompanyCapture {
	return &models.CompanyCapture{
		Company: models.Company{ID: "co-1", TenantID: "t1", Ticker: "ACME", LegalName: "Acme Corp"},
		Entities: []models.Entity{
			{ID: "e-hold", CompanyID: "co-1", Name: "Acme Holdings", Kind: models.EntityKindHoldco,
				IsRoot: true, IsRestricted: true, NaturalKey: "Acme Holdings|"},
			{ID: "e-op", CompanyID: "co-1", Name: "Acme Operating", Kind: models.EntityKindOpco,
				ParentID: strptr("e-hold"), IsGuarantor: true, IsRestricted: true,
				NaturalKey: "Acme Operating|Acme Holdings"},
		},
		Instruments: []models.DebtInstrument{
			{ID: "d-notes", CompanyID: "co-1", IssuerEntityID: "e-hold",
				Name: "Senior Notes 2030", Kind: "notes",
				Seniority: models.SenioritySeniorUnsecured, SecurityType: models.SecurityUnsecured,
				OutstandingMinor: i64ptr(100_000), IsActive: true,
				MaturityDate: dateptr(models.NewDate(2030, time.June, 15)),
				NaturalKey:   "Acme Holdings|525|2030-06-15"},
			{ID: "d-loan", CompanyID: "co-1", IssuerEntityID: "e-op",
				Name: "Term Loan B", Kind: "term_loan",
				Seniority: models.SenioritySeniorSecured, SecurityType: models.SecurityFirstLien,
				OutstandingMinor: i64ptr(300_000), IsActive: true,
				MaturityDate: dateptr(models.NewDate(2026, time.May, 15)),
				NaturalKey:   "Acme Operating|450|2026-05-15"},
		},
		Guarantees: []models.Guarantee{
			{ID: "g-1", CompanyID: "co-1", DebtInstrumentID: "d-notes",
				GuarantorEntityID: "e-op", Type: models.GuaranteeFullAndUnconditional},
		},
	}
}

func TestQuarterlyCycle(t *testing.T) {
	q1 := q1Capture()

	// Q1 credit view: the opco guarantee on the holdco notes keeps the score
	// down despite most of the debt sitting below the root.
	q1Score := credit.Score(q1)
	assert.InDelta(t, 1.0, q1Score.UpstreamGuaranteedFraction, 1e-9)
	assert.True(t, q1Score.LayeredIssuance)

	q1Waterfall := credit.Waterfall(q1)
	require.Len(t, q1Waterfall.Tiers, 2)
	assert.Equal(t, models.SenioritySeniorSecured, q1Waterfall.Tiers[0].Seniority)
	assert.Equal(t, int64(400_000), q1Waterfall.Tiers[len(q1Waterfall.Tiers)-1].CumulativeMinor)

	// Snapshot at quarter end.
	baselineDate := models.NewDate(2026, time.March, 31)
	payload := &models.SnapshotPayload{
		Entities:    q1.Entities,
		Instruments: q1.Instruments,
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	fp, err := fingerprint.GenerateFromJSON(raw)
	require.NoError(t, err)
	baseline := &models.Snapshot{
		ID: "snap-q1", TenantID: "t1", CompanyID: "co-1",
		AsOf: baselineDate, Fingerprint: fp,
		Payload: database.JSONB[models.SnapshotPayload]{Data: *payload},
	}

	// Over Q2 the term loan matures and a refinancing bond appears.
	q2 := q1Capture()
	q2.Instruments[1].IsActive = false
	q2.Instruments = append(q2.Instruments, models.DebtInstrument{
		ID: "d-refi", CompanyID: "co-1", IssuerEntityID: "e-op",
		Name: "Refi Notes 2031", Kind: "notes",
		Seniority: models.SenioritySeniorSecured, SecurityType: models.SecurityFirstLien,
		OutstandingMinor: i64ptr(280_000), IsActive: true,
		MaturityDate: dateptr(models.NewDate(2031, time.May, 15)),
		NaturalKey:   "Acme Operating|700|2031-05-15",
	})

	stored := baseline.Payload.GetValue()

	cs := snapshot.Diff(baseline, &stored, q2, models.NewDate(2026, time.June, 30))
	require.Len(t, cs.NewDebt, 1)
	assert.Equal(t, "Refi Notes 2031", cs.NewDebt[0].Name)
	require.Len(t, cs.MaturedOrRemovedDebt, 1)
	assert.Equal(t, models.DebtChangeMatured, cs.MaturedOrRemovedDebt[0].Reason)
	assert.Zero(t, cs.EntityChanges.AddedCount)

	// Re-capturing identical Q1 content fingerprints identically, so the
	// engine treats it as an idempotent no-op rather than a conflict.
	raw2, err := json.Marshal(payload)
	require.NoError(t, err)
	fp2, err := fingerprint.GenerateFromJSON(raw2)
	require.NoError(t, err)
	assert.Equal(t, baseline.Fingerprint, fp2)

	// Traversal over the Q2 view still reaches the guarantor from the notes.
	engine := traversal.NewEngine(1, 15)
	res, err := engine.Traverse(q2, &models.TraversalRequest{
		Start:         models.StartNode{Kind: models.NodeBond, ID: "d-notes"},
		Relationships: []models.Relationship{models.RelGuarantees},
		Direction:     models.DirectionInbound,
		Depth:         1,
	})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 1)
	assert.Equal(t, "e-op", res.Nodes[0].ID)
}
