package graphstore

import (
	"context"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// ApplyExtraction ingests one extraction batch. The company block upserts
// first so a new ticker can arrive with its graph in a single message; the
// remaining batches validate and apply as one unit. Replaying the same
// message leaves the store unchanged.
func (s *Store) ApplyExtraction(ctx context.Context, msg *models.ExtractionMessage) (*ApplyResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.ApplyExtraction")
	defer span.End()

	if !msg.IsValid() {
		return nil, errors.Wrap(models.ErrInvalidParameter, "extraction message missing ticker or tenant")
	}
	tenantID := msg.GetTenantID()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"ticker":    msg.Ticker,
		"filing":    msg.Source.AccessionNo,
	})

	comp, err := s.companies.GetByTicker(ctx, tenantID, msg.Ticker)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		if msg.Company == nil {
			return nil, errors.Wrapf(models.ErrDanglingReference, "unknown ticker %q and no company block", msg.Ticker)
		}
		comp = nil
	}

	if msg.Company != nil {
		if msg.Company.Ticker == "" {
			msg.Company.Ticker = msg.Ticker
		}
		if msg.Company.Ticker != msg.Ticker {
			return nil, errors.Wrapf(models.ErrInvalidParameter, "company block ticker %q does not match envelope %q", msg.Company.Ticker, msg.Ticker)
		}
		comp, err = s.companies.Upsert(ctx, tenantID, *msg.Company)
		if err != nil {
			return nil, err
		}
	}

	result, err := s.apply(ctx, tenantID, comp.ID, batches{
		Entities:    msg.Entities,
		Instruments: msg.Instruments,
		Guarantees:  msg.Guarantees,
		Ownership:   msg.OwnershipLinks,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(map[string]any{
		"entities":    result.EntitiesUpserted,
		"instruments": result.InstrumentsUpserted,
		"guarantees":  result.GuaranteesUpserted,
	}).Info("Applied extraction batch")

	return result.ApplyResult, nil
}
