// Package processor routes extraction messages from Kafka into the graph
// store. Each message carries one company's batch of entities, instruments,
// guarantees, and ownership links from a single filing.
package processor

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Processor applies extraction batches to the store.
type Processor struct {
	logger ectologger.Logger
	store  *graphstore.Store
}

// NewProcessor creates a new message processor.
func NewProcessor(logger ectologger.Logger, store *graphstore.Store) *Processor {
	return &Processor{
		logger: logger,
		store:  store,
	}
}

// ProcessMessage handles an incoming Kafka message. Returning an error keeps
// the offset uncommitted so the message is retried; validation failures are
// permanent, so those are logged and swallowed instead.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.ProcessMessage")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"key":    msg.Key,
		"topic":  msg.Topic,
		"offset": msg.Offset,
	})

	if msg.Extraction == nil {
		if err := msg.ParseExtraction(); err != nil {
			log.WithError(err).Error("Failed to parse extraction message")
			return nil // Skip message, don't retry
		}
	}

	extraction := msg.Extraction
	log = log.WithFields(map[string]any{
		"tenant_id": extraction.GetTenantID(),
		"ticker":    extraction.Ticker,
	})

	result, err := p.store.ApplyExtraction(ctx, extraction)
	if err != nil {
		if errors.Is(err, models.ErrInvalidParameter) || errors.Is(err, models.ErrDanglingReference) {
			// The batch itself is bad. Retrying replays the same payload, so
			// drop it and let the extractor re-emit a corrected one.
			log.WithError(err).Warn("Rejected extraction batch")
			return nil
		}
		log.WithError(err).Error("Failed to apply extraction batch")
		return err
	}

	log.WithFields(map[string]any{
		"entities":    result.EntitiesUpserted,
		"instruments": result.InstrumentsUpserted,
		"guarantees":  result.GuaranteesUpserted,
		"ownership":   result.OwnershipLinksUpserted,
		"matured":     result.InstrumentsMatured,
	}).Info("Processed extraction message")

	return nil
}
