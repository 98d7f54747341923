package debtinstrument

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

var columns = []string{
	"id", "tenant_id", "company_id", "issuer_entity_id", "name", "kind",
	"seniority", "security_type", "rate_type", "coupon_bps", "spread_bps",
	"principal_minor", "commitment_minor", "outstanding_minor", "currency",
	"issue_date", "maturity_date", "is_active", "natural_key",
	"created_at", "updated_at",
}

// Repository handles debt instrument persistence. Instruments are never
// hard-deleted: retirement and maturity flip is_active so historical diffs
// can still see the row.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new debt instrument repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// UpsertParams carries the resolved fields for an instrument upsert.
type UpsertParams struct {
	IssuerEntityID   string
	Name             string
	Kind             string
	Seniority        models.Seniority
	SecurityType     models.SecurityType
	RateType         models.RateType
	CouponBps        *int64
	SpreadBps        *int64
	PrincipalMinor   *int64
	CommitmentMinor  *int64
	OutstandingMinor *int64
	Currency         string
	IssueDate        *models.Date
	MaturityDate     *models.Date
	IsActive         bool
	NaturalKey       string
}

// Upsert creates or updates an instrument keyed by (tenant_id, company_id,
// natural_key). Nil amounts keep the stored values, so partial re-extractions
// do not wipe fields they did not see.
func (r *Repository) Upsert(ctx context.Context, tenantID, companyID string, params UpsertParams) (*models.DebtInstrument, error) {
	ctx, span := tracing.StartSpan(ctx, "debtinstrument.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO debt_instruments (
			id, tenant_id, company_id, issuer_entity_id, name, kind,
			seniority, security_type, rate_type, coupon_bps, spread_bps,
			principal_minor, commitment_minor, outstanding_minor, currency,
			issue_date, maturity_date, is_active, natural_key, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (tenant_id, company_id, natural_key)
		DO UPDATE SET
			issuer_entity_id = EXCLUDED.issuer_entity_id,
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			seniority = EXCLUDED.seniority,
			security_type = EXCLUDED.security_type,
			rate_type = COALESCE(NULLIF(EXCLUDED.rate_type, ''), debt_instruments.rate_type),
			coupon_bps = COALESCE(EXCLUDED.coupon_bps, debt_instruments.coupon_bps),
			spread_bps = COALESCE(EXCLUDED.spread_bps, debt_instruments.spread_bps),
			principal_minor = COALESCE(EXCLUDED.principal_minor, debt_instruments.principal_minor),
			commitment_minor = COALESCE(EXCLUDED.commitment_minor, debt_instruments.commitment_minor),
			outstanding_minor = COALESCE(EXCLUDED.outstanding_minor, debt_instruments.outstanding_minor),
			currency = COALESCE(NULLIF(EXCLUDED.currency, ''), debt_instruments.currency),
			issue_date = COALESCE(EXCLUDED.issue_date, debt_instruments.issue_date),
			maturity_date = COALESCE(EXCLUDED.maturity_date, debt_instruments.maturity_date),
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at
		RETURNING id, tenant_id, company_id, issuer_entity_id, name, kind,
			seniority, security_type, rate_type, coupon_bps, spread_bps,
			principal_minor, commitment_minor, outstanding_minor, currency,
			issue_date, maturity_date, is_active, natural_key, created_at, updated_at
	`

	var instrument models.DebtInstrument
	err := r.exec(ctx).GetContext(ctx, &instrument, query,
		uuid.New().String(), tenantID, companyID, params.IssuerEntityID,
		params.Name, params.Kind, params.Seniority, params.SecurityType,
		params.RateType, params.CouponBps, params.SpreadBps,
		params.PrincipalMinor, params.CommitmentMinor, params.OutstandingMinor,
		params.Currency, params.IssueDate, params.MaturityDate,
		params.IsActive, params.NaturalKey, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "natural_key": params.NaturalKey}).Error("Failed to upsert debt instrument")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert debt instrument")
	}
	return &instrument, nil
}

// Get retrieves an instrument by id, active or not.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.DebtInstrument, error) {
	ctx, span := tracing.StartSpan(ctx, "debtinstrument.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("debt_instruments")
	sb.Where(sb.Equal("id", id), sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var instrument models.DebtInstrument
	if err := r.exec(ctx).GetContext(ctx, &instrument, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "debt instrument %s", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to get debt instrument")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get debt instrument")
	}
	return &instrument, nil
}

// GetByName retrieves an instrument by display name within a company. Used to
// resolve guarantee references from extraction batches.
func (r *Repository) GetByName(ctx context.Context, tenantID, companyID, name string) (*models.DebtInstrument, error) {
	ctx, span := tracing.StartSpan(ctx, "debtinstrument.Repository.GetByName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("debt_instruments")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
		sb.Equal("name", name),
	)
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var instrument models.DebtInstrument
	if err := r.exec(ctx).GetContext(ctx, &instrument, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "debt instrument named %q", name)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "name": name}).Error("Failed to get debt instrument by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get debt instrument")
	}
	return &instrument, nil
}

// ListByCompany retrieves a company's instruments. Inactive rows are included
// when includeInactive is set; diffs need them, credit math does not.
func (r *Repository) ListByCompany(ctx context.Context, tenantID, companyID string, includeInactive bool) ([]models.DebtInstrument, error) {
	ctx, span := tracing.StartSpan(ctx, "debtinstrument.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("debt_instruments")
	where := []string{
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
	}
	if !includeInactive {
		where = append(where, sb.Equal("is_active", true))
	}
	sb.Where(where...)
	sb.OrderBy("name")

	query, args := sb.Build()
	var instruments []models.DebtInstrument
	if err := r.exec(ctx).SelectContext(ctx, &instruments, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "include_inactive": includeInactive}).Error("Failed to list debt instruments")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list debt instruments")
	}
	return instruments, nil
}

// SetActive flips the active flag on one instrument.
func (r *Repository) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	ctx, span := tracing.StartSpan(ctx, "debtinstrument.Repository.SetActive")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("debt_instruments")
	sb.Set(sb.Assign("is_active", active), sb.Assign("updated_at", now))
	sb.Where(sb.Equal("id", id), sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	result, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID, "active": active}).Error("Failed to set instrument active flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update debt instrument")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Wrapf(models.ErrNotFound, "debt instrument %s", id)
	}
	return nil
}

// DeactivateMatured flips instruments whose maturity date has passed.
// Returns how many rows changed.
func (r *Repository) DeactivateMatured(ctx context.Context, tenantID, companyID string, asOf models.Date) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "debtinstrument.Repository.DeactivateMatured")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("debt_instruments")
	sb.Set(sb.Assign("is_active", false), sb.Assign("updated_at", now))
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
		sb.Equal("is_active", true),
		sb.IsNotNull("maturity_date"),
		sb.LessEqualThan("maturity_date", asOf),
	)

	query, args := sb.Build()
	result, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "as_of": asOf.String()}).Error("Failed to deactivate matured instruments")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate matured instruments")
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		r.logger.WithContext(ctx).WithFields(map[string]any{"company_id": companyID, "count": rows}).Info("Deactivated matured instruments")
	}
	return rows, nil
}
