package metrics

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var columns = []string{
	"company_id", "tenant_id", "total_debt_minor", "secured_debt_minor",
	"active_instruments", "guarantor_count", "secured_pct",
	"guaranteed_coverage_pct", "subordination_score", "leverage_x",
	"mat_within_1y_minor", "mat_1_to_3y_minor", "mat_3_to_5y_minor",
	"mat_beyond_5y_minor", "mat_unscheduled_minor", "computed_at",
}

// row flattens the nested maturity buckets for sqlx scanning.
type row struct {
	CompanyID             string    `db:"company_id"`
	TenantID              string    `db:"tenant_id"`
	TotalDebtMinor        int64     `db:"total_debt_minor"`
	SecuredDebtMinor      int64     `db:"secured_debt_minor"`
	ActiveInstruments     int       `db:"active_instruments"`
	GuarantorCount        int       `db:"guarantor_count"`
	SecuredPct            float64   `db:"secured_pct"`
	GuaranteedCoveragePct float64   `db:"guaranteed_coverage_pct"`
	SubordinationScore    float64   `db:"subordination_score"`
	LeverageX             *float64  `db:"leverage_x"`
	MatWithin1YMinor      int64     `db:"mat_within_1y_minor"`
	Mat1To3YMinor         int64     `db:"mat_1_to_3y_minor"`
	Mat3To5YMinor         int64     `db:"mat_3_to_5y_minor"`
	MatBeyond5YMinor      int64     `db:"mat_beyond_5y_minor"`
	MatUnscheduledMinor   int64     `db:"mat_unscheduled_minor"`
	ComputedAt            time.Time `db:"computed_at"`
}

func (r *row) toModel() *models.CreditMetrics {
	return &models.CreditMetrics{
		CompanyID:             r.CompanyID,
		TenantID:              r.TenantID,
		TotalDebtMinor:        r.TotalDebtMinor,
		SecuredDebtMinor:      r.SecuredDebtMinor,
		ActiveInstruments:     r.ActiveInstruments,
		GuarantorCount:        r.GuarantorCount,
		SecuredPct:            r.SecuredPct,
		GuaranteedCoveragePct: r.GuaranteedCoveragePct,
		SubordinationScore:    r.SubordinationScore,
		LeverageX:             r.LeverageX,
		Maturities: models.MaturityBuckets{
			Within1YMinor:    r.MatWithin1YMinor,
			From1To3YMinor:   r.Mat1To3YMinor,
			From3To5YMinor:   r.Mat3To5YMinor,
			Beyond5YMinor:    r.MatBeyond5YMinor,
			UnscheduledMinor: r.MatUnscheduledMinor,
		},
		ComputedAt: r.ComputedAt,
	}
}

// Repository persists the derived metrics row, one per company, replaced in
// place on every recompute.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new metrics repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// Replace writes the metrics row for a company, inserting or overwriting.
func (r *Repository) Replace(ctx context.Context, m *models.CreditMetrics) error {
	ctx, span := tracing.StartSpan(ctx, "metrics.Repository.Replace")
	defer span.End()

	query := `
		INSERT INTO company_metrics (
			company_id, tenant_id, total_debt_minor, secured_debt_minor,
			active_instruments, guarantor_count, secured_pct,
			guaranteed_coverage_pct, subordination_score, leverage_x,
			mat_within_1y_minor, mat_1_to_3y_minor, mat_3_to_5y_minor,
			mat_beyond_5y_minor, mat_unscheduled_minor, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (company_id)
		DO UPDATE SET
			total_debt_minor = EXCLUDED.total_debt_minor,
			secured_debt_minor = EXCLUDED.secured_debt_minor,
			active_instruments = EXCLUDED.active_instruments,
			guarantor_count = EXCLUDED.guarantor_count,
			secured_pct = EXCLUDED.secured_pct,
			guaranteed_coverage_pct = EXCLUDED.guaranteed_coverage_pct,
			subordination_score = EXCLUDED.subordination_score,
			leverage_x = EXCLUDED.leverage_x,
			mat_within_1y_minor = EXCLUDED.mat_within_1y_minor,
			mat_1_to_3y_minor = EXCLUDED.mat_1_to_3y_minor,
			mat_3_to_5y_minor = EXCLUDED.mat_3_to_5y_minor,
			mat_beyond_5y_minor = EXCLUDED.mat_beyond_5y_minor,
			mat_unscheduled_minor = EXCLUDED.mat_unscheduled_minor,
			computed_at = EXCLUDED.computed_at
	`

	_, err := r.exec(ctx).ExecContext(ctx, query,
		m.CompanyID, m.TenantID, m.TotalDebtMinor, m.SecuredDebtMinor,
		m.ActiveInstruments, m.GuarantorCount, m.SecuredPct,
		m.GuaranteedCoveragePct, m.SubordinationScore, m.LeverageX,
		m.Maturities.Within1YMinor, m.Maturities.From1To3YMinor,
		m.Maturities.From3To5YMinor, m.Maturities.Beyond5YMinor,
		m.Maturities.UnscheduledMinor, m.ComputedAt,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": m.CompanyID, "tenant_id": m.TenantID}).Error("Failed to replace metrics")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to store metrics")
	}
	return nil
}

// Get retrieves the metrics row for a company.
func (r *Repository) Get(ctx context.Context, tenantID, companyID string) (*models.CreditMetrics, error) {
	ctx, span := tracing.StartSpan(ctx, "metrics.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("company_metrics")
	sb.Where(sb.Equal("company_id", companyID), sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var rec row
	if err := r.exec(ctx).GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "metrics for company %s", companyID)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID, "tenant_id": tenantID}).Error("Failed to get metrics")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get metrics")
	}
	return rec.toModel(), nil
}
