package graphstore

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/internal/repositories/debtinstrument"
	"github.com/Ramsey-B/briar/internal/repositories/entity"
	"github.com/Ramsey-B/briar/pkg/credit"
	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// batches is one validated unit of graph mutation. Every write path, single
// upsert or full extraction message, reduces to one of these.
type batches struct {
	Entities    []models.UpsertEntityRequest
	Instruments []models.UpsertDebtInstrumentRequest
	Guarantees  []models.UpsertGuaranteeRequest
	Ownership   []models.UpsertOwnershipLinkRequest
}

// ApplyResult summarizes one applied write.
type ApplyResult struct {
	Company                *models.Company       `json:"company"`
	EntitiesUpserted       int                   `json:"entities_upserted"`
	InstrumentsUpserted    int                   `json:"instruments_upserted"`
	GuaranteesUpserted     int                   `json:"guarantees_upserted"`
	OwnershipLinksUpserted int                   `json:"ownership_links_upserted"`
	InstrumentsMatured     int64                 `json:"instruments_matured"`
	Metrics                *models.CreditMetrics `json:"metrics"`
}

// UpsertCompany creates or updates a company row. When the company already
// has a graph, metrics are recomputed because EBITDA feeds leverage.
func (s *Store) UpsertCompany(ctx context.Context, tenantID string, req models.UpsertCompanyRequest) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.UpsertCompany")
	defer span.End()

	comp, err := s.companies.Upsert(ctx, tenantID, req)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(comp.ID)
	lock.Lock()
	defer lock.Unlock()

	capture, err := s.loadCaptureLocked(ctx, comp)
	if err != nil {
		return nil, err
	}
	if len(capture.Entities) > 0 || len(capture.Instruments) > 0 {
		if err := s.recomputeMetrics(ctx, capture); err != nil {
			return nil, err
		}
		s.fanOutMetrics(ctx, capture)
	}
	return comp, nil
}

// UpsertEntity applies one entity upsert.
func (s *Store) UpsertEntity(ctx context.Context, tenantID, companyID string, req models.UpsertEntityRequest) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.UpsertEntity")
	defer span.End()

	result, err := s.apply(ctx, tenantID, companyID, batches{Entities: []models.UpsertEntityRequest{req}})
	if err != nil {
		return nil, err
	}
	for i := range result.capture.Entities {
		e := &result.capture.Entities[i]
		if e.NaturalKey == models.EntityNaturalKey(req.Name, req.ParentName) {
			return e, nil
		}
	}
	return nil, errors.Wrapf(models.ErrNotFound, "entity %q after upsert", req.Name)
}

// UpsertDebtInstrument applies one instrument upsert.
func (s *Store) UpsertDebtInstrument(ctx context.Context, tenantID, companyID string, req models.UpsertDebtInstrumentRequest) (*models.DebtInstrument, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.UpsertDebtInstrument")
	defer span.End()

	result, err := s.apply(ctx, tenantID, companyID, batches{Instruments: []models.UpsertDebtInstrumentRequest{req}})
	if err != nil {
		return nil, err
	}
	key := models.DebtNaturalKey(req.IssuerEntityName, req.CouponBps, req.MaturityDate)
	for i := range result.capture.Instruments {
		d := &result.capture.Instruments[i]
		if d.NaturalKey == key {
			return d, nil
		}
	}
	return nil, errors.Wrapf(models.ErrNotFound, "instrument %q after upsert", req.Name)
}

// UpsertGuarantee applies one guarantee upsert.
func (s *Store) UpsertGuarantee(ctx context.Context, tenantID, companyID string, req models.UpsertGuaranteeRequest) (*ApplyResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.UpsertGuarantee")
	defer span.End()

	result, err := s.apply(ctx, tenantID, companyID, batches{Guarantees: []models.UpsertGuaranteeRequest{req}})
	if err != nil {
		return nil, err
	}
	return result.ApplyResult, nil
}

// UpsertOwnershipLink applies one ownership edge upsert.
func (s *Store) UpsertOwnershipLink(ctx context.Context, tenantID, companyID string, req models.UpsertOwnershipLinkRequest) (*ApplyResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.UpsertOwnershipLink")
	defer span.End()

	result, err := s.apply(ctx, tenantID, companyID, batches{Ownership: []models.UpsertOwnershipLinkRequest{req}})
	if err != nil {
		return nil, err
	}
	return result.ApplyResult, nil
}

// DeleteEntity soft-deletes an entity. Entities with live children or active
// instruments cannot be removed; the graph never holds dangling references.
func (s *Store) DeleteEntity(ctx context.Context, tenantID, companyID, entityID string) error {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.DeleteEntity")
	defer span.End()

	comp, err := s.companies.Get(ctx, tenantID, companyID)
	if err != nil {
		return err
	}

	lock := s.locks.get(companyID)
	lock.Lock()
	defer lock.Unlock()

	capture, err := s.loadCaptureLocked(ctx, comp)
	if err != nil {
		return err
	}

	ent := capture.EntityByID()[entityID]
	if ent == nil {
		return errors.Wrapf(models.ErrNotFound, "entity %s", entityID)
	}
	for i := range capture.Entities {
		e := &capture.Entities[i]
		if e.ParentID != nil && *e.ParentID == entityID {
			return errors.Wrapf(models.ErrInvalidParameter, "entity %q still has children", ent.Name)
		}
	}
	for _, d := range capture.ActiveInstruments() {
		if d.IssuerEntityID == entityID {
			return errors.Wrapf(models.ErrInvalidParameter, "entity %q still issues active debt", ent.Name)
		}
	}

	err = database.WithTransaction(ctx, s.logger, s.db, func(ctx context.Context) error {
		if err := s.entities.SoftDelete(ctx, tenantID, entityID); err != nil {
			return err
		}

		kept := capture.Entities[:0]
		for i := range capture.Entities {
			if capture.Entities[i].ID != entityID {
				kept = append(kept, capture.Entities[i])
			}
		}
		capture.Entities = kept

		return s.recomputeMetrics(ctx, capture)
	})
	if err != nil {
		return err
	}

	s.fanOutMetrics(ctx, capture)
	return nil
}

type applyOutcome struct {
	*ApplyResult
	capture *models.CompanyCapture
}

// apply is the single write path. It locks the company, loads the current
// capture, validates the whole batch against it, writes through the
// repositories while updating the capture from returned rows, retires
// matured debt, and recomputes metrics. Validation failures reject the whole
// batch before the first write.
func (s *Store) apply(ctx context.Context, tenantID, companyID string, b batches) (*applyOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, "graphstore.Store.apply")
	defer span.End()

	comp, err := s.companies.Get(ctx, tenantID, companyID)
	if err != nil {
		return nil, err
	}

	lock := s.locks.get(companyID)
	lock.Lock()
	defer lock.Unlock()

	capture, err := s.loadCaptureLocked(ctx, comp)
	if err != nil {
		return nil, err
	}

	if err := validateEntityBatch(capture, b.Entities); err != nil {
		return nil, err
	}
	if err := validateInstrumentBatch(capture, b.Entities, b.Instruments); err != nil {
		return nil, err
	}
	if err := validateGuaranteeBatch(capture, b.Entities, b.Instruments, b.Guarantees); err != nil {
		return nil, err
	}
	if err := validateOwnershipBatch(capture, b.Entities, b.Ownership); err != nil {
		return nil, err
	}

	result := &ApplyResult{Company: comp}

	err = database.WithTransaction(ctx, s.logger, s.db, func(ctx context.Context) error {
		for i := range b.Entities {
			req := &b.Entities[i]
			var parentID *string
			if req.ParentName != nil {
				parent := capture.EntityByName()[*req.ParentName]
				if parent == nil {
					return errors.Wrapf(models.ErrDanglingReference, "entity %q: parent %q", req.Name, *req.ParentName)
				}
				parentID = &parent.ID
			}
			ent, err := s.entities.Upsert(ctx, tenantID, companyID, entity.UpsertParams{
				Name:         req.Name,
				Kind:         req.Kind,
				Jurisdiction: req.Jurisdiction,
				ParentID:     parentID,
				IsRoot:       req.IsRoot,
				IsGuarantor:  req.IsGuarantor,
				IsRestricted: req.IsRestricted,
				IsVIE:        req.IsVIE,
				OwnershipPct: req.OwnershipPct,
				JVPartner:    req.JVPartner,
				Confidence:   req.Confidence,
				NaturalKey:   models.EntityNaturalKey(req.Name, req.ParentName),
			})
			if err != nil {
				return err
			}
			replaceEntity(capture, ent)
			result.EntitiesUpserted++
		}

		for i := range b.Instruments {
			req := &b.Instruments[i]
			issuer := capture.EntityByName()[req.IssuerEntityName]
			if issuer == nil {
				return errors.Wrapf(models.ErrDanglingReference, "instrument %q: issuer %q", req.Name, req.IssuerEntityName)
			}
			isActive := true
			if req.IsActive != nil {
				isActive = *req.IsActive
			}
			currency := req.Currency
			if currency == "" {
				currency = "USD"
			}
			instr, err := s.instruments.Upsert(ctx, tenantID, companyID, debtinstrument.UpsertParams{
				IssuerEntityID:   issuer.ID,
				Name:             req.Name,
				Kind:             req.Kind,
				Seniority:        req.Seniority,
				SecurityType:     req.SecurityType,
				RateType:         req.RateType,
				CouponBps:        req.CouponBps,
				SpreadBps:        req.SpreadBps,
				PrincipalMinor:   req.PrincipalMinor,
				CommitmentMinor:  req.CommitmentMinor,
				OutstandingMinor: req.OutstandingMinor,
				Currency:         currency,
				IssueDate:        req.IssueDate,
				MaturityDate:     req.MaturityDate,
				IsActive:         isActive,
				NaturalKey:       models.DebtNaturalKey(req.IssuerEntityName, req.CouponBps, req.MaturityDate),
			})
			if err != nil {
				return err
			}
			replaceInstrument(capture, instr)
			result.InstrumentsUpserted++
		}

		for i := range b.Guarantees {
			req := &b.Guarantees[i]
			instr := instrumentByName(capture, req.InstrumentName)
			if instr == nil {
				return errors.Wrapf(models.ErrDanglingReference, "guarantee: instrument %q", req.InstrumentName)
			}
			guarantor := capture.EntityByName()[req.GuarantorEntityName]
			if guarantor == nil {
				return errors.Wrapf(models.ErrDanglingReference, "guarantee: guarantor %q", req.GuarantorEntityName)
			}
			g, err := s.guarantees.Upsert(ctx, tenantID, companyID, instr.ID, guarantor.ID, req.Type, req.CoveragePct)
			if err != nil {
				return err
			}
			replaceGuarantee(capture, g)
			result.GuaranteesUpserted++
		}

		for i := range b.Ownership {
			req := &b.Ownership[i]
			owner := capture.EntityByName()[req.OwnerEntityName]
			owned := capture.EntityByName()[req.OwnedEntityName]
			if owner == nil || owned == nil {
				return errors.Wrapf(models.ErrDanglingReference, "ownership link %q -> %q", req.OwnerEntityName, req.OwnedEntityName)
			}
			link, err := s.ownership.Upsert(ctx, tenantID, companyID, owner.ID, owned.ID, req.Pct, req.Confidence)
			if err != nil {
				return err
			}
			replaceOwnershipLink(capture, link)
			result.OwnershipLinksUpserted++
		}

		today := models.DateOf(time.Now().UTC())
		matured, err := s.instruments.DeactivateMatured(ctx, tenantID, companyID, today)
		if err != nil {
			return err
		}
		result.InstrumentsMatured = matured
		if matured > 0 {
			for i := range capture.Instruments {
				d := &capture.Instruments[i]
				if d.IsActive && d.MaturityDate != nil && !d.MaturityDate.After(today) {
					d.IsActive = false
				}
			}
		}

		return s.recomputeMetrics(ctx, capture)
	})
	if err != nil {
		return nil, err
	}
	result.Metrics = capture.Metrics

	s.fanOutMetrics(ctx, capture)

	return &applyOutcome{ApplyResult: result, capture: capture}, nil
}

// recomputeMetrics derives and stores the metrics row for the capture. The
// caller holds the company write lock; when it runs inside a transaction the
// metrics row commits or rolls back with the batch that changed it.
func (s *Store) recomputeMetrics(ctx context.Context, capture *models.CompanyCapture) error {
	m := credit.ComputeMetrics(capture, time.Now().UTC())
	if err := s.metrics.Replace(ctx, &m); err != nil {
		return err
	}
	capture.Metrics = &m
	return nil
}

// fanOutMetrics pushes committed metrics to the event stream and the graph
// mirror. It runs after commit so subscribers never see a rolled-back state.
func (s *Store) fanOutMetrics(ctx context.Context, capture *models.CompanyCapture) {
	if capture.Metrics == nil {
		return
	}
	if s.emitter != nil {
		s.emitter.MetricsUpdated(ctx, capture.Company.ID, capture.Company.Ticker, capture.Metrics)
	}
	if s.mirror != nil {
		if err := s.mirror.SyncCompany(ctx, capture); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": capture.Company.ID}).Warn("Failed to sync company to graph mirror")
		}
	}
}

func replaceEntity(capture *models.CompanyCapture, ent *models.Entity) {
	for i := range capture.Entities {
		if capture.Entities[i].ID == ent.ID {
			capture.Entities[i] = *ent
			return
		}
	}
	capture.Entities = append(capture.Entities, *ent)
}

func replaceInstrument(capture *models.CompanyCapture, instr *models.DebtInstrument) {
	for i := range capture.Instruments {
		if capture.Instruments[i].ID == instr.ID {
			capture.Instruments[i] = *instr
			return
		}
	}
	capture.Instruments = append(capture.Instruments, *instr)
}

func replaceGuarantee(capture *models.CompanyCapture, g *models.Guarantee) {
	for i := range capture.Guarantees {
		if capture.Guarantees[i].ID == g.ID {
			capture.Guarantees[i] = *g
			return
		}
	}
	capture.Guarantees = append(capture.Guarantees, *g)
}

func replaceOwnershipLink(capture *models.CompanyCapture, link *models.OwnershipLink) {
	for i := range capture.OwnershipLinks {
		if capture.OwnershipLinks[i].ID == link.ID {
			capture.OwnershipLinks[i] = *link
			return
		}
	}
	capture.OwnershipLinks = append(capture.OwnershipLinks, *link)
}

func instrumentByName(capture *models.CompanyCapture, name string) *models.DebtInstrument {
	for i := range capture.Instruments {
		if capture.Instruments[i].Name == name {
			return &capture.Instruments[i]
		}
	}
	return nil
}
