package models

import "time"

// Company is a public issuer and the root of one entity tree.
// Natural key: (tenant_id, ticker).
type Company struct {
	ID         string `json:"id" db:"id"`
	TenantID   string `json:"tenant_id" db:"tenant_id"`
	Ticker     string `json:"ticker" db:"ticker"`
	LegalName  string `json:"legal_name" db:"legal_name"`
	Sector     string `json:"sector,omitempty" db:"sector"`
	Industry   string `json:"industry,omitempty" db:"industry"`
	RegistryID string `json:"registry_id,omitempty" db:"registry_id"` // e.g. SEC CIK

	// EBITDAMinor is the latest reported EBITDA in minor currency units,
	// supplied by the extraction pipeline. Used only for the leverage metric.
	EBITDAMinor *int64 `json:"ebitda_minor,omitempty" db:"ebitda_minor"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertCompanyRequest creates or updates a company, keyed by ticker.
type UpsertCompanyRequest struct {
	Ticker      string `json:"ticker" validate:"required"`
	LegalName   string `json:"legal_name" validate:"required"`
	Sector      string `json:"sector,omitempty"`
	Industry    string `json:"industry,omitempty"`
	RegistryID  string `json:"registry_id,omitempty"`
	EBITDAMinor *int64 `json:"ebitda_minor,omitempty"`
}

// CompanyListResponse is the response for listing companies.
type CompanyListResponse struct {
	Items      []Company `json:"items"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
}
