package models

import "time"

// OwnershipLink records a non-trivial ownership relationship outside the
// primary parent tree (JVs, partial stakes). Unlike parent_id edges this edge
// list is allowed to be non-tree-shaped, so traversal treats it with general
// graph cycle safety rather than forest guarantees.
// Natural key: (tenant_id, owner_entity_id, owned_entity_id).
type OwnershipLink struct {
	ID            string              `json:"id" db:"id"`
	TenantID      string              `json:"tenant_id" db:"tenant_id"`
	CompanyID     string              `json:"company_id" db:"company_id"`
	OwnerEntityID string              `json:"owner_entity_id" db:"owner_entity_id"`
	OwnedEntityID string              `json:"owned_entity_id" db:"owned_entity_id"`
	Pct           float64             `json:"pct" db:"pct"`
	Confidence    OwnershipConfidence `json:"confidence" db:"confidence"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertOwnershipLinkRequest creates or updates an ownership edge, with both
// entities referenced by name within the company.
type UpsertOwnershipLinkRequest struct {
	OwnerEntityName string              `json:"owner_entity_name" validate:"required"`
	OwnedEntityName string              `json:"owned_entity_name" validate:"required"`
	Pct             float64             `json:"pct" validate:"required,gt=0,lte=100"`
	Confidence      OwnershipConfidence `json:"confidence,omitempty" validate:"omitempty,oneof=root key_entity verified unknown"`
}
