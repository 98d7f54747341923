package models

import "time"

// ExtractionSource identifies the filing an extraction batch came from.
type ExtractionSource struct {
	TenantID    string `json:"tenant_id"`
	Filer       string `json:"filer,omitempty"`
	FilingType  string `json:"filing_type,omitempty"` // 10-K, 10-Q, 8-K
	AccessionNo string `json:"accession_no,omitempty"`
	ExtractorID string `json:"extractor_id,omitempty"`
}

// ExtractionMessage is one batch of structured debt facts produced by the
// upstream extraction service for a single company. The core validates only
// the structural shape and invariants of these records, never the filing text
// they came from. Applying the same message twice leaves the store unchanged.
type ExtractionMessage struct {
	Source    ExtractionSource `json:"source"`
	TenantID  string           `json:"tenant_id"`
	Ticker    string           `json:"ticker"`
	Timestamp time.Time        `json:"timestamp"`

	Company        *UpsertCompanyRequest          `json:"company,omitempty"`
	Entities       []UpsertEntityRequest          `json:"entities,omitempty"`
	Instruments    []UpsertDebtInstrumentRequest  `json:"instruments,omitempty"`
	Guarantees     []UpsertGuaranteeRequest       `json:"guarantees,omitempty"`
	OwnershipLinks []UpsertOwnershipLinkRequest   `json:"ownership_links,omitempty"`
}

// GetTenantID prefers the envelope tenant, falling back to the source block.
func (m *ExtractionMessage) GetTenantID() string {
	if m.TenantID != "" {
		return m.TenantID
	}
	return m.Source.TenantID
}

// IsValid reports whether the message can be routed at all.
func (m *ExtractionMessage) IsValid() bool {
	return m.Ticker != "" && m.GetTenantID() != ""
}
