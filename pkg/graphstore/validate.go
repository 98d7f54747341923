package graphstore

import (
	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/models"
)

// maxAncestorWalk bounds parent-chain walks so a corrupted tree can never
// spin the validator.
const maxAncestorWalk = 1000

// wouldCreateCycle reports whether re-parenting childID under newParentID
// would close a loop in the primary tree. parentOf maps entity id to its
// current parent id, with the candidate change not yet applied.
func wouldCreateCycle(parentOf map[string]*string, childID string, newParentID *string) bool {
	if newParentID == nil {
		return false
	}
	cursor := *newParentID
	for steps := 0; steps < maxAncestorWalk; steps++ {
		if cursor == childID {
			return true
		}
		next, ok := parentOf[cursor]
		if !ok || next == nil {
			return false
		}
		cursor = *next
	}
	// Walk did not terminate, so the existing chain is already looped.
	return true
}

// validateEntityBatch checks a batch of entity upserts against the current
// capture before anything is written. Parents may be satisfied by earlier
// entries in the same batch, so batch order matters and extraction emits
// parents first.
func validateEntityBatch(capture *models.CompanyCapture, batch []models.UpsertEntityRequest) error {
	known := make(map[string]bool, len(capture.Entities))
	idByName := make(map[string]string, len(capture.Entities))
	parentOf := make(map[string]*string, len(capture.Entities))
	for i := range capture.Entities {
		e := &capture.Entities[i]
		known[e.Name] = true
		idByName[e.Name] = e.ID
		parentOf[e.ID] = e.ParentID
	}

	for i := range batch {
		req := &batch[i]
		if !models.ValidEntityKind(req.Kind) {
			return errors.Wrapf(models.ErrInvalidParameter, "entity %q: unknown kind %q", req.Name, req.Kind)
		}
		if req.OwnershipPct != nil && (*req.OwnershipPct <= 0 || *req.OwnershipPct > 100) {
			return errors.Wrapf(models.ErrInvalidParameter, "entity %q: ownership_pct out of range", req.Name)
		}
		if req.ParentName != nil {
			if *req.ParentName == req.Name {
				return errors.Wrapf(models.ErrInvalidParameter, "entity %q: cannot be its own parent", req.Name)
			}
			if !known[*req.ParentName] {
				return errors.Wrapf(models.ErrDanglingReference, "entity %q: parent %q does not exist", req.Name, *req.ParentName)
			}
			// Cycle check only applies when both ends already exist in the
			// tree; a brand-new entity cannot close a loop.
			childID, childExists := idByName[req.Name]
			parentID, parentExists := idByName[*req.ParentName]
			if childExists && parentExists && wouldCreateCycle(parentOf, childID, &parentID) {
				return errors.Wrapf(models.ErrInvalidParameter, "entity %q: parent %q would create a cycle", req.Name, *req.ParentName)
			}
			if childExists {
				parentOf[childID] = &parentID
			}
		}
		known[req.Name] = true
	}
	return nil
}

// validateInstrumentBatch checks instrument upserts. Issuers may be satisfied
// by the entity batch in the same message.
func validateInstrumentBatch(capture *models.CompanyCapture, entityBatch []models.UpsertEntityRequest, batch []models.UpsertDebtInstrumentRequest) error {
	known := knownEntityNames(capture, entityBatch)
	for i := range batch {
		req := &batch[i]
		if !known[req.IssuerEntityName] {
			return errors.Wrapf(models.ErrDanglingReference, "instrument %q: issuer %q does not exist", req.Name, req.IssuerEntityName)
		}
		if err := validateAmounts(req); err != nil {
			return err
		}
		if req.IssueDate != nil && req.MaturityDate != nil &&
			!req.IssueDate.IsZero() && !req.MaturityDate.IsZero() &&
			req.MaturityDate.Before(*req.IssueDate) {
			return errors.Wrapf(models.ErrInvalidParameter, "instrument %q: maturity before issue date", req.Name)
		}
	}
	return nil
}

func validateAmounts(req *models.UpsertDebtInstrumentRequest) error {
	for name, v := range map[string]*int64{
		"principal_minor":   req.PrincipalMinor,
		"commitment_minor":  req.CommitmentMinor,
		"outstanding_minor": req.OutstandingMinor,
		"coupon_bps":        req.CouponBps,
		"spread_bps":        req.SpreadBps,
	} {
		if v != nil && *v < 0 {
			return errors.Wrapf(models.ErrInvalidParameter, "instrument %q: negative %s", req.Name, name)
		}
	}
	if req.PrincipalMinor != nil && req.OutstandingMinor != nil && *req.OutstandingMinor > *req.PrincipalMinor {
		return errors.Wrapf(models.ErrInvalidParameter, "instrument %q: outstanding %d exceeds principal %d", req.Name, *req.OutstandingMinor, *req.PrincipalMinor)
	}
	return nil
}

// validateGuaranteeBatch checks guarantee upserts. Both ends may be satisfied
// by earlier batches in the same message.
func validateGuaranteeBatch(capture *models.CompanyCapture, entityBatch []models.UpsertEntityRequest, instrumentBatch []models.UpsertDebtInstrumentRequest, batch []models.UpsertGuaranteeRequest) error {
	entities := knownEntityNames(capture, entityBatch)

	instruments := make(map[string]bool, len(capture.Instruments))
	for i := range capture.Instruments {
		instruments[capture.Instruments[i].Name] = true
	}
	for i := range instrumentBatch {
		instruments[instrumentBatch[i].Name] = true
	}

	for i := range batch {
		req := &batch[i]
		if !instruments[req.InstrumentName] {
			return errors.Wrapf(models.ErrDanglingReference, "guarantee: instrument %q does not exist", req.InstrumentName)
		}
		if !entities[req.GuarantorEntityName] {
			return errors.Wrapf(models.ErrDanglingReference, "guarantee: guarantor %q does not exist", req.GuarantorEntityName)
		}
		if req.CoveragePct != nil && (*req.CoveragePct <= 0 || *req.CoveragePct > 100) {
			return errors.Wrapf(models.ErrInvalidParameter, "guarantee on %q: coverage_pct out of range", req.InstrumentName)
		}
	}
	return nil
}

// validateOwnershipBatch checks ownership edge upserts.
func validateOwnershipBatch(capture *models.CompanyCapture, entityBatch []models.UpsertEntityRequest, batch []models.UpsertOwnershipLinkRequest) error {
	entities := knownEntityNames(capture, entityBatch)
	for i := range batch {
		req := &batch[i]
		if req.OwnerEntityName == req.OwnedEntityName {
			return errors.Wrapf(models.ErrInvalidParameter, "ownership link: %q cannot own itself", req.OwnerEntityName)
		}
		if !entities[req.OwnerEntityName] {
			return errors.Wrapf(models.ErrDanglingReference, "ownership link: owner %q does not exist", req.OwnerEntityName)
		}
		if !entities[req.OwnedEntityName] {
			return errors.Wrapf(models.ErrDanglingReference, "ownership link: owned entity %q does not exist", req.OwnedEntityName)
		}
		if req.Pct <= 0 || req.Pct > 100 {
			return errors.Wrapf(models.ErrInvalidParameter, "ownership link %q -> %q: pct out of range", req.OwnerEntityName, req.OwnedEntityName)
		}
	}
	return nil
}

func knownEntityNames(capture *models.CompanyCapture, entityBatch []models.UpsertEntityRequest) map[string]bool {
	known := make(map[string]bool, len(capture.Entities)+len(entityBatch))
	for i := range capture.Entities {
		known[capture.Entities[i].Name] = true
	}
	for i := range entityBatch {
		known[entityBatch[i].Name] = true
	}
	return known
}
