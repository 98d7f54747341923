package models

// CompanyCapture is one consistent in-memory view of a company's graph:
// the whole entity forest, debt set, guarantee and ownership edges, plus the
// derived metrics if they have been computed. The traversal engine, the
// credit scorer, and the snapshot differ all operate on captures so they stay
// pure and reproducible.
type CompanyCapture struct {
	Company        Company          `json:"company"`
	Entities       []Entity         `json:"entities"`
	Instruments    []DebtInstrument `json:"instruments"`
	Guarantees     []Guarantee      `json:"guarantees"`
	OwnershipLinks []OwnershipLink  `json:"ownership_links"`
	Metrics        *CreditMetrics   `json:"metrics,omitempty"`
}

// EntityByID returns an id -> entity index.
func (c *CompanyCapture) EntityByID() map[string]*Entity {
	out := make(map[string]*Entity, len(c.Entities))
	for i := range c.Entities {
		out[c.Entities[i].ID] = &c.Entities[i]
	}
	return out
}

// EntityByName returns a name -> entity index.
func (c *CompanyCapture) EntityByName() map[string]*Entity {
	out := make(map[string]*Entity, len(c.Entities))
	for i := range c.Entities {
		out[c.Entities[i].Name] = &c.Entities[i]
	}
	return out
}

// Children returns parent id -> child entities adjacency for the primary tree.
func (c *CompanyCapture) Children() map[string][]*Entity {
	out := make(map[string][]*Entity)
	for i := range c.Entities {
		e := &c.Entities[i]
		if e.ParentID != nil {
			out[*e.ParentID] = append(out[*e.ParentID], e)
		}
	}
	return out
}

// Roots returns the confirmed roots of the forest.
func (c *CompanyCapture) Roots() []*Entity {
	var out []*Entity
	for i := range c.Entities {
		if c.Entities[i].IsRoot {
			out = append(out, &c.Entities[i])
		}
	}
	return out
}

// InstrumentByID returns an id -> instrument index.
func (c *CompanyCapture) InstrumentByID() map[string]*DebtInstrument {
	out := make(map[string]*DebtInstrument, len(c.Instruments))
	for i := range c.Instruments {
		out[c.Instruments[i].ID] = &c.Instruments[i]
	}
	return out
}

// ActiveInstruments returns only instruments still outstanding.
func (c *CompanyCapture) ActiveInstruments() []*DebtInstrument {
	var out []*DebtInstrument
	for i := range c.Instruments {
		if c.Instruments[i].IsActive {
			out = append(out, &c.Instruments[i])
		}
	}
	return out
}

// InstrumentsByIssuer groups active instruments by issuing entity id.
func (c *CompanyCapture) InstrumentsByIssuer() map[string][]*DebtInstrument {
	out := make(map[string][]*DebtInstrument)
	for i := range c.Instruments {
		d := &c.Instruments[i]
		if d.IsActive {
			out[d.IssuerEntityID] = append(out[d.IssuerEntityID], d)
		}
	}
	return out
}

// GuaranteesByInstrument groups guarantees by instrument id.
func (c *CompanyCapture) GuaranteesByInstrument() map[string][]*Guarantee {
	out := make(map[string][]*Guarantee)
	for i := range c.Guarantees {
		g := &c.Guarantees[i]
		out[g.DebtInstrumentID] = append(out[g.DebtInstrumentID], g)
	}
	return out
}

// GuaranteesByGuarantor groups guarantees by guarantor entity id.
func (c *CompanyCapture) GuaranteesByGuarantor() map[string][]*Guarantee {
	out := make(map[string][]*Guarantee)
	for i := range c.Guarantees {
		g := &c.Guarantees[i]
		out[g.GuarantorEntityID] = append(out[g.GuarantorEntityID], g)
	}
	return out
}
