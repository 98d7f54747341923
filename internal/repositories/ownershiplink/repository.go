package ownershiplink

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
	"id", "tenant_id", "company_id", "owner_entity_id", "owned_entity_id",
	"pct", "confidence", "created_at", "updated_at",
}

// Repository handles ownership edge persistence. These are the JV and
// cross-ownership edges outside the primary parent tree.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new ownership link repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// Upsert creates or updates an ownership edge keyed by (tenant_id,
// owner_entity_id, owned_entity_id).
func (r *Repository) Upsert(ctx context.Context, tenantID, companyID, ownerID, ownedID string, pct float64, confidence models.OwnershipConfidence) (*models.OwnershipLink, error) {
	ctx, span := tracing.StartSpan(ctx, "ownershiplink.Repository.Upsert")
	defer span.End()

	if confidence == "" {
		confidence = models.ConfidenceUnknown
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO ownership_links (
			id, tenant_id, company_id, owner_entity_id, owned_entity_id,
			pct, confidence, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tenant_id, owner_entity_id, owned_entity_id)
		DO UPDATE SET
			pct = EXCLUDED.pct,
			confidence = EXCLUDED.confidence,
			updated_at = EXCLUDED.updated_at
		RETURNING id, tenant_id, company_id, owner_entity_id, owned_entity_id,
			pct, confidence, created_at, updated_at
	`

	var link models.OwnershipLink
	err := r.exec(ctx).GetContext(ctx, &link, query,
		uuid.New().String(), tenantID, companyID, ownerID, ownedID,
		pct, confidence, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "owner_entity_id": ownerID, "owned_entity_id": ownedID}).Error("Failed to upsert ownership link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert ownership link")
	}
	return &link, nil
}

// ListByCompany retrieves every ownership edge for a company.
func (r *Repository) ListByCompany(ctx context.Context, tenantID, companyID string) ([]models.OwnershipLink, error) {
	ctx, span := tracing.StartSpan(ctx, "ownershiplink.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("ownership_links")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("company_id", companyID))
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var links []models.OwnershipLink
	if err := r.exec(ctx).SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID}).Error("Failed to list ownership links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ownership links")
	}
	return links, nil
}
