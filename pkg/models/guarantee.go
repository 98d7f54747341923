package models

import "time"

// GuaranteeType is the contractual strength of a guarantee.
type GuaranteeType string

const (
	GuaranteeFullAndUnconditional GuaranteeType = "full_and_unconditional"
	GuaranteeLimited              GuaranteeType = "limited"
	GuaranteePartial              GuaranteeType = "partial"
)

// Guarantee is a directed edge from a guarantor entity to a debt instrument.
// Multiple guarantors per instrument are allowed. The guarantor must exist in
// the same company's tree at write time.
// Natural key: (tenant_id, debt_instrument_id, guarantor_entity_id).
type Guarantee struct {
	ID                string        `json:"id" db:"id"`
	TenantID          string        `json:"tenant_id" db:"tenant_id"`
	CompanyID         string        `json:"company_id" db:"company_id"`
	DebtInstrumentID  string        `json:"debt_instrument_id" db:"debt_instrument_id"`
	GuarantorEntityID string        `json:"guarantor_entity_id" db:"guarantor_entity_id"`
	Type              GuaranteeType `json:"type" db:"guarantee_type"`

	// CoveragePct scales limited/partial guarantees; nil means 100.
	CoveragePct *float64 `json:"coverage_pct,omitempty" db:"coverage_pct"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EffectiveCoverage returns the coverage fraction in [0, 1].
func (g *Guarantee) EffectiveCoverage() float64 {
	if g.CoveragePct == nil {
		return 1.0
	}
	pct := *g.CoveragePct
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 1.0
	}
	return pct / 100
}

// IsFull reports whether the guarantee is full and unconditional.
func (g *Guarantee) IsFull() bool {
	return g.Type == GuaranteeFullAndUnconditional
}

// UpsertGuaranteeRequest creates or updates a guarantee. Both the instrument
// and the guarantor are referenced by natural identifiers within the company.
type UpsertGuaranteeRequest struct {
	InstrumentName      string        `json:"instrument_name" validate:"required"`
	GuarantorEntityName string        `json:"guarantor_entity_name" validate:"required"`
	Type                GuaranteeType `json:"type" validate:"required,oneof=full_and_unconditional limited partial"`
	CoveragePct         *float64      `json:"coverage_pct,omitempty" validate:"omitempty,gt=0,lte=100"`
}
