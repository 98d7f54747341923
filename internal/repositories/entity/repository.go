package entity

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
	"id", "tenant_id", "company_id", "name", "kind", "jurisdiction",
	"parent_id", "is_root", "is_guarantor", "is_restricted", "is_vie",
	"ownership_pct", "jv_partner", "ownership_confidence", "natural_key",
	"created_at", "updated_at",
}

// Repository handles entity persistence. Entities are soft-deleted; every
// read here filters deleted rows, and an upsert on a deleted natural key
// restores the row.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// UpsertParams carries the resolved fields for an entity upsert. The parent
// reference arrives by name over the wire; the caller resolves it to an id
// before it gets here.
type UpsertParams struct {
	Name         string
	Kind         models.EntityKind
	Jurisdiction string
	ParentID     *string
	IsRoot       bool
	IsGuarantor  bool
	IsRestricted bool
	IsVIE        bool
	OwnershipPct *float64
	JVPartner    *string
	Confidence   models.OwnershipConfidence
	NaturalKey   string
}

// Upsert creates or updates an entity keyed by (tenant_id, company_id,
// natural_key).
func (r *Repository) Upsert(ctx context.Context, tenantID, companyID string, params UpsertParams) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Upsert")
	defer span.End()

	if params.Confidence == "" {
		params.Confidence = models.ConfidenceUnknown
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO entities (
			id, tenant_id, company_id, name, kind, jurisdiction,
			parent_id, is_root, is_guarantor, is_restricted, is_vie,
			ownership_pct, jv_partner, ownership_confidence, natural_key,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (tenant_id, company_id, natural_key)
		DO UPDATE SET
			kind = EXCLUDED.kind,
			jurisdiction = COALESCE(NULLIF(EXCLUDED.jurisdiction, ''), entities.jurisdiction),
			parent_id = EXCLUDED.parent_id,
			is_root = EXCLUDED.is_root,
			is_guarantor = EXCLUDED.is_guarantor,
			is_restricted = EXCLUDED.is_restricted,
			is_vie = EXCLUDED.is_vie,
			ownership_pct = COALESCE(EXCLUDED.ownership_pct, entities.ownership_pct),
			jv_partner = COALESCE(EXCLUDED.jv_partner, entities.jv_partner),
			ownership_confidence = EXCLUDED.ownership_confidence,
			updated_at = EXCLUDED.updated_at,
			deleted_at = NULL
		RETURNING id, tenant_id, company_id, name, kind, jurisdiction,
			parent_id, is_root, is_guarantor, is_restricted, is_vie,
			ownership_pct, jv_partner, ownership_confidence, natural_key,
			created_at, updated_at
	`

	var entity models.Entity
	err := r.exec(ctx).GetContext(ctx, &entity, query,
		uuid.New().String(), tenantID, companyID, params.Name, params.Kind,
		params.Jurisdiction, params.ParentID, params.IsRoot, params.IsGuarantor,
		params.IsRestricted, params.IsVIE, params.OwnershipPct, params.JVPartner,
		params.Confidence, params.NaturalKey, now, now,
	)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "natural_key": params.NaturalKey}).Error("Failed to upsert entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert entity")
	}
	return &entity, nil
}

// Get retrieves an entity by id.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("entities")
	sb.Where(sb.Equal("id", id), sb.Equal("tenant_id", tenantID), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	var entity models.Entity
	if err := r.exec(ctx).GetContext(ctx, &entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "entity %s", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to get entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}
	return &entity, nil
}

// GetByName retrieves an entity by name within a company. Names can repeat
// under different parents; the most recently updated match wins, which is how
// issuer and guarantor references resolve.
func (r *Repository) GetByName(ctx context.Context, tenantID, companyID, name string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetByName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("entities")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
		sb.Equal("name", name),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("updated_at DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var entity models.Entity
	if err := r.exec(ctx).GetContext(ctx, &entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "entity named %q", name)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "name": name}).Error("Failed to get entity by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}
	return &entity, nil
}

// ListByCompany retrieves the full live entity forest for a company, parents
// before children where possible (roots first, then by name).
func (r *Repository) ListByCompany(ctx context.Context, tenantID, companyID string) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("entities")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
		sb.IsNull("deleted_at"),
	)
	sb.OrderBy("is_root DESC", "name")

	query, args := sb.Build()
	var entities []models.Entity
	if err := r.exec(ctx).SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID}).Error("Failed to list entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}
	return entities, nil
}

// SoftDelete marks an entity as deleted. Children and instruments are the
// caller's problem; the store rejects deletes that would orphan them.
func (r *Repository) SoftDelete(ctx context.Context, tenantID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SoftDelete")
	defer span.End()

	now := time.Now().UTC()
	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("entities")
	sb.Set(sb.Assign("deleted_at", now), sb.Assign("updated_at", now))
	sb.Where(sb.Equal("id", id), sb.Equal("tenant_id", tenantID), sb.IsNull("deleted_at"))

	query, args := sb.Build()
	result, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "tenant_id": tenantID}).Error("Failed to soft delete entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.Wrapf(models.ErrNotFound, "entity %s", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": id}).Info("Soft deleted entity")
	return nil
}

// CountChildren reports how many live entities point at the given parent.
func (r *Repository) CountChildren(ctx context.Context, tenantID, parentID string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.CountChildren")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("entities")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("parent_id", parentID),
		sb.IsNull("deleted_at"),
	)

	query, args := sb.Build()
	var count int
	if err := r.exec(ctx).GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "parent_id": parentID}).Error("Failed to count children")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count children")
	}
	return count, nil
}
