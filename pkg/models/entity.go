package models

import "time"

// EntityKind classifies a legal person within a corporate family.
type EntityKind string

const (
	EntityKindHoldco     EntityKind = "holdco"
	EntityKindOpco       EntityKind = "opco"
	EntityKindFinco      EntityKind = "finco"
	EntityKindSubsidiary EntityKind = "subsidiary"
	EntityKindSPV        EntityKind = "spv"
	EntityKindJV         EntityKind = "jv"
	EntityKindVIE        EntityKind = "vie"
)

// ValidEntityKind reports whether k is one of the known kinds.
func ValidEntityKind(k EntityKind) bool {
	switch k {
	case EntityKindHoldco, EntityKindOpco, EntityKindFinco, EntityKindSubsidiary,
		EntityKindSPV, EntityKindJV, EntityKindVIE:
		return true
	}
	return false
}

// OwnershipConfidence tags how the parent link was established from source
// documents. "root" and "key_entity" come from the filing structure itself,
// "verified" from exhibit 21 style listings, "unknown" marks orphans.
type OwnershipConfidence string

const (
	ConfidenceRoot      OwnershipConfidence = "root"
	ConfidenceKeyEntity OwnershipConfidence = "key_entity"
	ConfidenceVerified  OwnershipConfidence = "verified"
	ConfidenceUnknown   OwnershipConfidence = "unknown"
)

// Entity is one legal person in a company's tree. The primary hierarchy is
// parent-id pointers validated acyclic at write time; JV and cross-ownership
// edges live in OwnershipLink instead.
//
// IsRoot means "confirmed top of tree". ParentID == nil without IsRoot is an
// orphan whose parent could not be confirmed from the filings.
// Natural key: (tenant_id, company_id, name, parent).
type Entity struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	CompanyID    string     `json:"company_id" db:"company_id"`
	Name         string     `json:"name" db:"name"`
	Kind         EntityKind `json:"kind" db:"kind"`
	Jurisdiction string     `json:"jurisdiction,omitempty" db:"jurisdiction"`
	ParentID     *string    `json:"parent_id,omitempty" db:"parent_id"`
	IsRoot       bool       `json:"is_root" db:"is_root"`
	IsGuarantor  bool       `json:"is_guarantor" db:"is_guarantor"`
	IsRestricted bool       `json:"is_restricted" db:"is_restricted"`
	IsVIE        bool       `json:"is_vie" db:"is_vie"`

	// OwnershipPct is the parent's stake, in (0, 100]. Nil when unknown.
	OwnershipPct *float64 `json:"ownership_pct,omitempty" db:"ownership_pct"`
	JVPartner    *string  `json:"jv_partner,omitempty" db:"jv_partner"`

	Confidence OwnershipConfidence `json:"ownership_confidence" db:"ownership_confidence"`

	// NaturalKey is name + parent name, used for idempotent upserts.
	NaturalKey string `json:"-" db:"natural_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertEntityRequest creates or updates an entity, keyed by (name, parent).
// ParentName references the parent entity by name within the same company;
// it must already exist when set.
type UpsertEntityRequest struct {
	Name         string     `json:"name" validate:"required"`
	Kind         EntityKind `json:"kind" validate:"required,oneof=holdco opco finco subsidiary spv jv vie"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	ParentName   *string    `json:"parent_name,omitempty"`
	IsRoot       bool       `json:"is_root"`
	IsGuarantor  bool       `json:"is_guarantor"`
	IsRestricted bool       `json:"is_restricted"`
	IsVIE        bool       `json:"is_vie"`
	OwnershipPct *float64   `json:"ownership_pct,omitempty" validate:"omitempty,gt=0,lte=100"`
	JVPartner    *string    `json:"jv_partner,omitempty"`
	Confidence   OwnershipConfidence `json:"ownership_confidence,omitempty" validate:"omitempty,oneof=root key_entity verified unknown"`
}

// EntityNaturalKey builds the upsert key for an entity.
func EntityNaturalKey(name string, parentName *string) string {
	if parentName == nil {
		return name + "|"
	}
	return name + "|" + *parentName
}

// EntityTreeResponse is the response for the full-forest read.
type EntityTreeResponse struct {
	CompanyID string   `json:"company_id"`
	Ticker    string   `json:"ticker"`
	Entities  []Entity `json:"entities"`
}
