// Package snapshot captures dated, immutable views of a company's graph and
// diffs them against live state. Snapshots are append-only history: a
// re-capture at an existing date either matches the stored content and
// no-ops, or is rejected as a conflict.
package snapshot

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	snapshotrepo "github.com/Ramsey-B/briar/internal/repositories/snapshot"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/fingerprint"
	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// fingerprintExclusions drops write timestamps from content hashing. Two
// captures of identical graph content must fingerprint equal even when rows
// were touched in between.
var fingerprintExclusions = map[string]bool{
	"entities.created_at":    true,
	"entities.updated_at":    true,
	"instruments.created_at": true,
	"instruments.updated_at": true,
	"metrics.computed_at":    true,
}

// Emitter publishes snapshot events. Best-effort, like the store's.
type Emitter interface {
	SnapshotCaptured(ctx context.Context, companyID string, snap *models.Snapshot)
}

// Engine captures and diffs snapshots.
type Engine struct {
	store     *graphstore.Store
	snapshots *snapshotrepo.Repository
	emitter   Emitter
	logger    ectologger.Logger
}

// NewEngine creates a snapshot engine. emitter may be nil.
func NewEngine(store *graphstore.Store, snapshots *snapshotrepo.Repository, emitter Emitter, logger ectologger.Logger) *Engine {
	return &Engine{store: store, snapshots: snapshots, emitter: emitter, logger: logger}
}

// Capture freezes the company's live graph as of the given date. The second
// return reports whether a new snapshot row was created; false means an
// identical snapshot already existed at that date.
func (e *Engine) Capture(ctx context.Context, tenantID, companyID string, asOf models.Date) (*models.Snapshot, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Engine.Capture")
	defer span.End()

	if asOf.IsZero() {
		return nil, false, errors.Wrap(models.ErrInvalidParameter, "as_of date is required")
	}

	capture, err := e.store.LoadCapture(ctx, tenantID, companyID)
	if err != nil {
		return nil, false, err
	}

	payload := models.SnapshotPayload{
		Entities:    capture.Entities,
		Instruments: capture.Instruments,
		Metrics:     capture.Metrics,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to marshal snapshot payload")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to build snapshot payload")
	}

	fp, err := fingerprint.GenerateFromJSONWithExclusions(raw, fingerprintExclusions)
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to fingerprint snapshot payload")
		return nil, false, httperror.NewHTTPError(http.StatusInternalServerError, "failed to fingerprint snapshot")
	}

	existing, err := e.snapshots.GetByDate(ctx, tenantID, companyID, asOf)
	if err == nil {
		if existing.Fingerprint == fp {
			return existing, false, nil
		}
		return nil, false, errors.Wrapf(models.ErrSnapshotConflict, "snapshot at %s already exists with different content", asOf.String())
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, false, err
	}

	snap, err := e.snapshots.Insert(ctx, &models.Snapshot{
		TenantID:    tenantID,
		CompanyID:   companyID,
		AsOf:        asOf,
		Fingerprint: fp,
		Payload:     database.JSONB[models.SnapshotPayload]{Data: payload},
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return nil, false, err
	}

	if e.emitter != nil {
		e.emitter.SnapshotCaptured(ctx, companyID, snap)
	}
	return snap, true, nil
}

// Diff compares the most recent snapshot at or before the given date against
// live state. Purely a read; nothing is written.
func (e *Engine) Diff(ctx context.Context, tenantID, companyID string, since models.Date) (*models.ChangeSet, error) {
	ctx, span := tracing.StartSpan(ctx, "snapshot.Engine.Diff")
	defer span.End()

	if since.IsZero() {
		return nil, errors.Wrap(models.ErrInvalidParameter, "since date is required")
	}

	baseline, err := e.snapshots.LatestAtOrBefore(ctx, tenantID, companyID, since)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, errors.Wrapf(models.ErrNoBaseline, "no snapshot at or before %s", since.String())
		}
		return nil, err
	}

	payload := baseline.Payload.GetValue()

	live, err := e.store.LoadCapture(ctx, tenantID, companyID)
	if err != nil {
		return nil, err
	}

	return Diff(baseline, &payload, live, models.DateOf(time.Now().UTC())), nil
}

// List returns the snapshot index for a company, newest first.
func (e *Engine) List(ctx context.Context, tenantID, companyID string) ([]models.Snapshot, error) {
	return e.snapshots.ListByCompany(ctx, tenantID, companyID)
}

// Get returns one snapshot with its payload.
func (e *Engine) Get(ctx context.Context, tenantID, companyID string, asOf models.Date) (*models.Snapshot, error) {
	return e.snapshots.GetByDate(ctx, tenantID, companyID, asOf)
}
