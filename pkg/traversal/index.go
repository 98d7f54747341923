package traversal

import (
	"github.com/Ramsey-B/briar/pkg/models"
)

// captureIndex holds the adjacency maps for one walk. Building it is O(n) in
// the capture size and keeps every expansion O(degree).
type captureIndex struct {
	capture *models.CompanyCapture

	entities    map[string]*models.Entity
	instruments map[string]*models.DebtInstrument

	children     map[string][]string // parent entity -> child entities
	issuedBy     map[string][]string // entity -> instruments issued
	guaranteedBy map[string][]string // entity -> instruments guaranteed
	guarantorsOf map[string][]string // instrument -> guarantor entities
	roots        []string
}

func newCaptureIndex(c *models.CompanyCapture) *captureIndex {
	idx := &captureIndex{
		capture:      c,
		entities:     c.EntityByID(),
		instruments:  c.InstrumentByID(),
		children:     make(map[string][]string),
		issuedBy:     make(map[string][]string),
		guaranteedBy: make(map[string][]string),
		guarantorsOf: make(map[string][]string),
	}
	for i := range c.Entities {
		e := &c.Entities[i]
		if e.ParentID != nil {
			idx.children[*e.ParentID] = append(idx.children[*e.ParentID], e.ID)
		}
		if e.IsRoot {
			idx.roots = append(idx.roots, e.ID)
		}
	}
	for i := range c.Instruments {
		d := &c.Instruments[i]
		idx.issuedBy[d.IssuerEntityID] = append(idx.issuedBy[d.IssuerEntityID], d.ID)
	}
	for i := range c.Guarantees {
		g := &c.Guarantees[i]
		idx.guaranteedBy[g.GuarantorEntityID] = append(idx.guaranteedBy[g.GuarantorEntityID], g.DebtInstrumentID)
		idx.guarantorsOf[g.DebtInstrumentID] = append(idx.guarantorsOf[g.DebtInstrumentID], g.GuarantorEntityID)
	}
	return idx
}

func (idx *captureIndex) exists(ref nodeRef) bool {
	switch ref.kind {
	case models.NodeCompany:
		return ref.id == idx.capture.Company.ID
	case models.NodeEntity:
		return idx.entities[ref.id] != nil
	case models.NodeBond:
		return idx.instruments[ref.id] != nil
	}
	return false
}

// neighbors expands one node along one relationship. Each relationship has a
// natural edge direction; the request direction walks with it, against it, or
// both.
func (idx *captureIndex) neighbors(from nodeRef, rel models.Relationship, dir models.Direction) []nodeRef {
	var out []nodeRef
	if dir == models.DirectionOutbound || dir == models.DirectionBoth {
		out = append(out, idx.forward(from, rel)...)
	}
	if dir == models.DirectionInbound || dir == models.DirectionBoth {
		out = append(out, idx.reverse(from, rel)...)
	}
	return out
}

func (idx *captureIndex) forward(from nodeRef, rel models.Relationship) []nodeRef {
	switch rel {
	case models.RelSubsidiaries:
		switch from.kind {
		case models.NodeCompany:
			// The company node fans out to its confirmed roots.
			return entityRefs(idx.roots)
		case models.NodeEntity:
			return entityRefs(idx.children[from.id])
		}
	case models.RelParents:
		if from.kind == models.NodeEntity {
			if e := idx.entities[from.id]; e != nil && e.ParentID != nil {
				return []nodeRef{{kind: models.NodeEntity, id: *e.ParentID}}
			}
		}
	case models.RelDebt:
		if from.kind == models.NodeEntity {
			return bondRefs(idx.issuedBy[from.id])
		}
	case models.RelGuarantees:
		if from.kind == models.NodeEntity {
			return bondRefs(idx.guaranteedBy[from.id])
		}
	case models.RelBorrowers:
		if from.kind == models.NodeBond {
			if d := idx.instruments[from.id]; d != nil {
				return []nodeRef{{kind: models.NodeEntity, id: d.IssuerEntityID}}
			}
		}
	}
	return nil
}

func (idx *captureIndex) reverse(from nodeRef, rel models.Relationship) []nodeRef {
	switch rel {
	case models.RelSubsidiaries:
		if from.kind == models.NodeEntity {
			if e := idx.entities[from.id]; e != nil && e.ParentID != nil {
				return []nodeRef{{kind: models.NodeEntity, id: *e.ParentID}}
			}
		}
	case models.RelParents:
		if from.kind == models.NodeEntity {
			return entityRefs(idx.children[from.id])
		}
	case models.RelDebt:
		if from.kind == models.NodeBond {
			if d := idx.instruments[from.id]; d != nil {
				return []nodeRef{{kind: models.NodeEntity, id: d.IssuerEntityID}}
			}
		}
	case models.RelGuarantees:
		if from.kind == models.NodeBond {
			return entityRefs(idx.guarantorsOf[from.id])
		}
	case models.RelBorrowers:
		if from.kind == models.NodeEntity {
			return bondRefs(idx.issuedBy[from.id])
		}
	}
	return nil
}

// project builds the result node, copying only the requested fields. Field
// names that do not apply to the node's kind are skipped, not errors, so one
// field list can serve a mixed walk.
func (idx *captureIndex) project(ref nodeRef, rel models.Relationship, depth int, fields []string) models.TraversalNode {
	node := models.TraversalNode{
		Kind:         ref.kind,
		ID:           ref.id,
		Relationship: rel,
		Depth:        depth,
	}

	switch ref.kind {
	case models.NodeCompany:
		node.Name = idx.capture.Company.LegalName
	case models.NodeEntity:
		if e := idx.entities[ref.id]; e != nil {
			node.Name = e.Name
			node.Fields = projectEntity(e, fields)
		}
	case models.NodeBond:
		if d := idx.instruments[ref.id]; d != nil {
			node.Name = d.Name
			node.Fields = projectInstrument(d, fields)
		}
	}
	return node
}

func projectEntity(e *models.Entity, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any)
	for _, f := range fields {
		switch f {
		case "kind":
			out[f] = e.Kind
		case "jurisdiction":
			out[f] = e.Jurisdiction
		case "is_root":
			out[f] = e.IsRoot
		case "is_guarantor":
			out[f] = e.IsGuarantor
		case "is_restricted":
			out[f] = e.IsRestricted
		case "is_vie":
			out[f] = e.IsVIE
		case "ownership_pct":
			if e.OwnershipPct != nil {
				out[f] = *e.OwnershipPct
			}
		case "ownership_confidence":
			out[f] = e.Confidence
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func projectInstrument(d *models.DebtInstrument, fields []string) map[string]any {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]any)
	for _, f := range fields {
		switch f {
		case "kind":
			out[f] = d.Kind
		case "seniority":
			out[f] = d.Seniority
		case "security_type":
			out[f] = d.SecurityType
		case "outstanding_minor":
			out[f] = d.Outstanding()
		case "coupon_bps":
			if d.CouponBps != nil {
				out[f] = *d.CouponBps
			}
		case "maturity_date":
			if d.MaturityDate != nil {
				out[f] = d.MaturityDate.String()
			}
		case "is_active":
			out[f] = d.IsActive
		case "currency":
			out[f] = d.Currency
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func entityRefs(ids []string) []nodeRef {
	out := make([]nodeRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, nodeRef{kind: models.NodeEntity, id: id})
	}
	return out
}

func bondRefs(ids []string) []nodeRef {
	out := make([]nodeRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, nodeRef{kind: models.NodeBond, id: id})
	}
	return out
}
