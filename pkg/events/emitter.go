// Package events publishes credit lifecycle events. Emission is best-effort:
// the store and snapshot engine never fail a write because Kafka is down.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Emitter publishes credit events for briar. Satisfies the emitter
// interfaces of the graph store and the snapshot engine.
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// MetricsUpdated emits a metrics.updated event after a write recomputes a
// company's credit metrics.
func (e *Emitter) MetricsUpdated(ctx context.Context, companyID, ticker string, m *models.CreditMetrics) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.MetricsUpdated")
	defer span.End()

	data, err := json.Marshal(MetricsUpdatedData{
		SchemaVersion: SchemaVersion,
		Ticker:        ticker,
		Metrics:       m,
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to marshal metrics.updated payload")
		return
	}

	event := &kafka.CreditEvent{
		EventType: kafka.EventMetricsUpdated,
		TenantID:  m.TenantID,
		CompanyID: companyID,
		Ticker:    ticker,
		Data:      data,
	}

	if err := e.producer.PublishCreditEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"company_id": companyID,
		}).Error("Failed to emit metrics.updated event")
	}
}

// SnapshotCaptured emits a snapshot.captured event for a newly stored
// snapshot.
func (e *Emitter) SnapshotCaptured(ctx context.Context, companyID string, snap *models.Snapshot) {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.SnapshotCaptured")
	defer span.End()

	data, err := json.Marshal(SnapshotCapturedData{
		SchemaVersion: SchemaVersion,
		SnapshotID:    snap.ID,
		AsOf:          snap.AsOf,
		Fingerprint:   snap.Fingerprint,
		CreatedAt:     snap.CreatedAt,
	})
	if err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to marshal snapshot.captured payload")
		return
	}

	event := &kafka.CreditEvent{
		EventType: kafka.EventSnapshotCaptured,
		TenantID:  snap.TenantID,
		CompanyID: companyID,
		Data:      data,
	}

	if err := e.producer.PublishCreditEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"company_id":  companyID,
			"snapshot_id": snap.ID,
		}).Error("Failed to emit snapshot.captured event")
	}
}
