package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	companyrepo "github.com/Ramsey-B/briar/internal/repositories/company"
	"github.com/Ramsey-B/briar/internal/repositories/debtinstrument"
	entityrepo "github.com/Ramsey-B/briar/internal/repositories/entity"
	guaranteerepo "github.com/Ramsey-B/briar/internal/repositories/guarantee"
	metricsrepo "github.com/Ramsey-B/briar/internal/repositories/metrics"
	"github.com/Ramsey-B/briar/internal/repositories/ownershiplink"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/models"
)

// newTestStore connects to the database named by BRIAR_TEST_DATABASE_URL,
// applies migrations, and builds a store over it. Tests needing a real
// database skip when the variable is unset.
func newTestStore(t *testing.T) *graphstore.Store {
	t.Helper()

	dsn := os.Getenv("BRIAR_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BRIAR_TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	require.NoError(t, err)
	migrations := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: "../../db/pg"})
	require.NoError(t, migrations.Migrate("briar_test", driver))

	dbi := database.NewDatabaseInstance(db, logger)
	return graphstore.NewStore(
		dbi,
		companyrepo.NewRepository(dbi, logger),
		entityrepo.NewRepository(dbi, logger),
		debtinstrument.NewRepository(dbi, logger),
		guaranteerepo.NewRepository(dbi, logger),
		ownershiplink.NewRepository(dbi, logger),
		metricsrepo.NewRepository(dbi, logger),
		nil, nil, logger,
	)
}

func entityIDs(entities []models.Entity) []string {
	ids := make([]string, 0, len(entities))
	for i := range entities {
		ids = append(ids, entities[i].ID)
	}
	return ids
}

func instrumentIDs(instruments []models.DebtInstrument) []string {
	ids := make([]string, 0, len(instruments))
	for i := range instruments {
		ids = append(ids, instruments[i].ID)
	}
	return ids
}

func TestApplyExtraction_ReplayIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tenant := uuid.New().String()

	maturity := models.NewDate(2031, time.March, 15)
	msg := &models.ExtractionMessage{
		TenantID: tenant,
		Ticker:   "RPLY",
		Company: &models.UpsertCompanyRequest{
			Ticker: "RPLY", LegalName: "Replay Industries", EBITDAMinor: i64ptr(100_000),
		},
		Entities: []models.UpsertEntityRequest{
			{Name: "Replay Holdings", Kind: models.EntityKindHoldco, IsRoot: true, IsRestricted: true},
			{Name: "Replay Operating", Kind: models.EntityKindOpco,
				ParentName: strptr("Replay Holdings"), IsGuarantor: true, IsRestricted: true},
		},
		Instruments: []models.UpsertDebtInstrumentRequest{
			{IssuerEntityName: "Replay Operating", Name: "Term Loan B", Kind: "term_loan",
				Seniority: models.SenioritySeniorSecured, SecurityType: models.SecurityFirstLien,
				CouponBps: i64ptr(450), PrincipalMinor: i64ptr(400_000), OutstandingMinor: i64ptr(400_000),
				MaturityDate: dateptr(maturity)},
		},
		Guarantees: []models.UpsertGuaranteeRequest{
			{InstrumentName: "Term Loan B", GuarantorEntityName: "Replay Holdings",
				Type: models.GuaranteeFullAndUnconditional},
		},
	}

	first, err := store.ApplyExtraction(ctx, msg)
	require.NoError(t, err)
	require.NotNil(t, first.Metrics)

	before, err := store.LoadCapture(ctx, tenant, first.Company.ID)
	require.NoError(t, err)

	second, err := store.ApplyExtraction(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, first.Company.ID, second.Company.ID)

	after, err := store.LoadCapture(ctx, tenant, second.Company.ID)
	require.NoError(t, err)

	// The replay matched every natural key instead of inserting fresh rows.
	require.Len(t, after.Entities, len(before.Entities))
	require.Len(t, after.Instruments, len(before.Instruments))
	require.Len(t, after.Guarantees, len(before.Guarantees))
	assert.ElementsMatch(t, entityIDs(before.Entities), entityIDs(after.Entities))
	assert.ElementsMatch(t, instrumentIDs(before.Instruments), instrumentIDs(after.Instruments))

	require.NotNil(t, after.Metrics)
	beforeMetrics := *before.Metrics
	afterMetrics := *after.Metrics
	beforeMetrics.ComputedAt = time.Time{}
	afterMetrics.ComputedAt = time.Time{}
	assert.Equal(t, beforeMetrics, afterMetrics)

	assert.Equal(t, int64(400_000), after.Metrics.TotalDebtMinor)
	assert.Equal(t, 1, after.Metrics.GuarantorCount)
}
