package snapshot

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
	"id", "tenant_id", "company_id", "as_of", "fingerprint", "payload", "created_at",
}

// Repository persists snapshots. The table is append-only: there is no update
// and no delete, and (tenant_id, company_id, as_of) is unique.
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new snapshot repository.
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFrom(ctx, r.db)
}

// Insert appends a snapshot. The engine checks for an existing as-of row
// first; a unique violation here still surfaces as an error rather than an
// overwrite.
func (r *Repository) Insert(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.Insert")
	defer span.End()

	if snap.ID == "" {
		snap.ID = uuid.New().String()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("snapshots")
	sb.Cols(columns...)
	sb.Values(snap.ID, snap.TenantID, snap.CompanyID, snap.AsOf, snap.Fingerprint, snap.Payload, snap.CreatedAt)

	query, args := sb.Build()
	if _, err := r.exec(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": snap.TenantID, "company_id": snap.CompanyID, "as_of": snap.AsOf.String()}).Error("Failed to insert snapshot")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert snapshot")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"company_id": snap.CompanyID, "as_of": snap.AsOf.String()}).Info("Captured snapshot")
	return snap, nil
}

// GetByDate retrieves the snapshot at exactly as_of.
func (r *Repository) GetByDate(ctx context.Context, tenantID, companyID string, asOf models.Date) (*models.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.GetByDate")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("snapshots")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
		sb.Equal("as_of", asOf),
	)

	query, args := sb.Build()
	var snap models.Snapshot
	if err := r.exec(ctx).GetContext(ctx, &snap, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "snapshot at %s", asOf.String())
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "as_of": asOf.String()}).Error("Failed to get snapshot")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get snapshot")
	}
	return &snap, nil
}

// LatestAtOrBefore retrieves the most recent snapshot dated at or before
// asOf. This is the baseline lookup for diffs.
func (r *Repository) LatestAtOrBefore(ctx context.Context, tenantID, companyID string, asOf models.Date) (*models.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.LatestAtOrBefore")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("snapshots")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("company_id", companyID),
		sb.LessEqualThan("as_of", asOf),
	)
	sb.OrderBy("as_of DESC")
	sb.Limit(1)

	query, args := sb.Build()
	var snap models.Snapshot
	if err := r.exec(ctx).GetContext(ctx, &snap, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(models.ErrNotFound, "no snapshot at or before %s", asOf.String())
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID, "as_of": asOf.String()}).Error("Failed to get baseline snapshot")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get baseline snapshot")
	}
	return &snap, nil
}

// ListByCompany retrieves a company's snapshot index, newest first, without
// payloads.
func (r *Repository) ListByCompany(ctx context.Context, tenantID, companyID string) ([]models.Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "tenant_id", "company_id", "as_of", "fingerprint", "created_at")
	sb.From("snapshots")
	sb.Where(sb.Equal("tenant_id", tenantID), sb.Equal("company_id", companyID))
	sb.OrderBy("as_of DESC")

	query, args := sb.Build()
	var snaps []models.Snapshot
	if err := r.exec(ctx).SelectContext(ctx, &snaps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"tenant_id": tenantID, "company_id": companyID}).Error("Failed to list snapshots")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list snapshots")
	}
	return snaps, nil
}
