package guarantee

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var columns = []string{
	"id", "tenant_id", "company_id", "debt_instrument_id",
	"guarantor_entity_id", "guarantee_type", "coverage_pct",
	"created_at", "updated_at",
}

// Repository handles guarantee edge persistence.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new guarantee repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// Upsert creates or updates a guarantee keyed by (tenant_id,
// debt_instrument_id, guarantor_entity_id). Re-stating the same guarantee
// updates type and coverage in place.
func (r *Repository) Upsert(ctx context.Context, tenantID, companyID, instrumentID, guarantorID string, guaranteeType models.GuaranteeType, coveragePct *float64) (*models.Guarantee, error) {
	ctx, span := tracing.StartSpan(ctx, "guarantee.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO guarantees (
			id, tenant_id, company_id, debt_instrument_id,
			guarantor_entity_id, guarantee_type, coverage_pct,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, debt_instrument_id, guarantor_entity_id)
		DO UPDATE SET
			guarantee_type = EXCLUDED.guarantee_type,
			coverage_pct = EXCLUDED.coverage_pct,
			updated_at = EXCLUDED.updated_at
		RETURNING id, tenant_id, company_id, debt_instrument_id,
			guarantor_entity_id, guarantee_type, coverage_pct,
			created_at, updated_at
	`

	var guarantee models.Guarantee
	err := r.exec(ctx).GetContext(ctx, &guarantee, query,
		uuid.New().String(), tenantID, companyID, instrumentID, guarantorID,
		guaranteeType, coveragePct, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "debt_instrument_id": instrumentID, "guarantor_entity_id": guarantorID}).Error("Failed to upsert guarantee")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert guarantee")
	}
	return &guarantee, nil
}

// ListByCompany retrieves every guarantee edge for a company.
func (r *Repository) ListByCompany(ctx context.Context, tenantID, companyID string) ([]models.Guarantee, error) {
	ctx, span := tracing.StartSpan(ctx, "guarantee.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("guarantees")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("company_id", companyID))
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var guarantees []models.Guarantee
	if err := r.exec(ctx).SelectContext(ctx, &guarantees, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID}).Error("Failed to list guarantees")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list guarantees")
	}
	return guarantees, nil
}

// ListByInstrument retrieves the guarantees backing one instrument.
func (r *Repository) ListByInstrument(ctx context.Context, tenantID, instrumentID string) ([]models.Guarantee, error) {
	ctx, span := tracing.StartSpan(ctx, "guarantee.Repository.ListByInstrument")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("guarantees")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("debt_instrument_id", instrumentID))
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var guarantees []models.Guarantee
	if err := r.exec(ctx).SelectContext(ctx, &guarantees, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "debt_instrument_id": instrumentID}).Error("Failed to list guarantees for instrument")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list guarantees")
	}
	return guarantees, nil
}

// Delete removes a guarantee edge. Guarantees are plain edges with no
// history of their own, so this is a hard delete.
func (r *Repository) Delete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "guarantee.Repository.Delete")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("guarantees")
	sb.Where(sb.Equal("id", id), sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	result, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to delete guarantee")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete guarantee")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return models.ErrNotFound
	}
	return nil
}
