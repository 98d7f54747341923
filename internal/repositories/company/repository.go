package company

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
	"id", "tenant_id", "ticker", "legal_name", "sector", "industry",
	"registry_id", "ebitda_minor", "created_at", "updated_at",
}

// Repository handles company persistence.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new company repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// Upsert creates or updates a company keyed by (tenant_id, ticker). A nil
// EBITDA in the request keeps the stored value instead of clearing it.
func (r *Repository) Upsert(ctx context.Context, tenantID string, req models.UpsertCompanyRequest) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	query := `
		INSERT INTO companies (
			id, tenant_id, ticker, legal_name, sector, industry,
			registry_id, ebitda_minor, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id, ticker)
		DO UPDATE SET
			legal_name = EXCLUDED.legal_name,
			sector = COALESCE(NULLIF(EXCLUDED.sector, ''), companies.sector),
			industry = COALESCE(NULLIF(EXCLUDED.industry, ''), companies.industry),
			registry_id = COALESCE(NULLIF(EXCLUDED.registry_id, ''), companies.registry_id),
			ebitda_minor = COALESCE(EXCLUDED.ebitda_minor, companies.ebitda_minor),
			updated_at = EXCLUDED.updated_at
		RETURNING id, tenant_id, ticker, legal_name, sector, industry,
			registry_id, ebitda_minor, created_at, updated_at
	`

	var company models.Company
	err := r.exec(ctx).GetContext(ctx, &company, query,
		uuid.New().String(), tenantID, req.Ticker, req.LegalName,
		req.Sector, req.Industry, req.RegistryID, req.EBITDAMinor, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "ticker": req.Ticker}).Error("Failed to upsert company")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert company")
	}
	return &company, nil
}

// Get retrieves a company by id.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(sb.Equal("id", id), sb.Equal("tenant_id", tenantID))

	query, args := sb.Build()
	var company models.Company
	if err := r.exec(ctx).GetContext(ctx, &company, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "company %s", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to get company")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get company")
	}
	return &company, nil
}

// GetByTicker retrieves a company by its ticker natural key.
func (r *Repository) GetByTicker(ctx context.Context, tenantID, ticker string) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.GetByTicker")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("ticker", ticker))

	query, args := sb.Build()
	var company models.Company
	if err := r.exec(ctx).GetContext(ctx, &company, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "company with ticker %s", ticker)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "ticker": ticker}).Error("Failed to get company by ticker")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get company")
	}
	return &company, nil
}

// List retrieves companies with pagination, ordered by ticker.
func (r *Repository) List(ctx context.Context, tenantID string, page, pageSize int) (*models.CompanyListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("companies")
	countSb.Where(countSb.Equal("tenant_id", tenantID))

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.exec(ctx).GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID}).Error("Failed to count companies")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count companies")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("ticker")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var companies []models.Company
	if err := r.exec(ctx).SelectContext(ctx, &companies, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "page": page, "page_size": pageSize}).Error("Failed to list companies")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list companies")
	}

	return &models.CompanyListResponse{
		Items:      companies,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
