package models

import (
	"fmt"
	"time"
)

// Seniority ranks a claim in a hypothetical liquidation.
type Seniority string

const (
	SenioritySeniorSecured   Seniority = "senior_secured"
	SenioritySeniorUnsecured Seniority = "senior_unsecured"
	SenioritySubordinated    Seniority = "subordinated"
)

// seniorityRank orders tiers for the waterfall; lower pays first.
func (s Seniority) Rank() int {
	switch s {
	case SenioritySeniorSecured:
		return 0
	case SenioritySeniorUnsecured:
		return 1
	case SenioritySubordinated:
		return 2
	}
	return 3
}

// SecurityType orders claims within the secured tiers.
type SecurityType string

const (
	SecurityFirstLien  SecurityType = "first_lien"
	SecuritySecondLien SecurityType = "second_lien"
	SecurityUnsecured  SecurityType = "unsecured"
)

func (s SecurityType) Rank() int {
	switch s {
	case SecurityFirstLien:
		return 0
	case SecuritySecondLien:
		return 1
	case SecurityUnsecured:
		return 2
	}
	return 3
}

// RateType is the coupon structure of an instrument.
type RateType string

const (
	RateFixed    RateType = "fixed"
	RateFloating RateType = "floating"
)

// DebtInstrument is a bond, loan, or facility issued by one entity.
// All amounts are integer minor currency units; never floating point.
// Natural key: (tenant_id, company_id, issuer, coupon, maturity).
type DebtInstrument struct {
	ID             string       `json:"id" db:"id"`
	TenantID       string       `json:"tenant_id" db:"tenant_id"`
	CompanyID      string       `json:"company_id" db:"company_id"`
	IssuerEntityID string       `json:"issuer_entity_id" db:"issuer_entity_id"`
	Name           string       `json:"name" db:"name"`
	Kind           string       `json:"kind" db:"kind"` // bond, notes, term_loan, revolver, facility
	Seniority      Seniority    `json:"seniority" db:"seniority"`
	SecurityType   SecurityType `json:"security_type" db:"security_type"`
	RateType       RateType     `json:"rate_type,omitempty" db:"rate_type"`

	// CouponBps / SpreadBps are basis points (e.g. 5.25% == 525).
	CouponBps *int64 `json:"coupon_bps,omitempty" db:"coupon_bps"`
	SpreadBps *int64 `json:"spread_bps,omitempty" db:"spread_bps"`

	PrincipalMinor   *int64 `json:"principal_minor,omitempty" db:"principal_minor"`
	CommitmentMinor  *int64 `json:"commitment_minor,omitempty" db:"commitment_minor"`
	OutstandingMinor *int64 `json:"outstanding_minor,omitempty" db:"outstanding_minor"`
	Currency         string `json:"currency" db:"currency"`

	IssueDate    *Date `json:"issue_date,omitempty" db:"issue_date"`
	MaturityDate *Date `json:"maturity_date,omitempty" db:"maturity_date"`

	// Instruments are never hard-deleted; matured or retired debt flips to
	// inactive so diffs can see it.
	IsActive bool `json:"is_active" db:"is_active"`

	NaturalKey string `json:"-" db:"natural_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Outstanding returns the outstanding amount, zero when unknown.
func (d *DebtInstrument) Outstanding() int64 {
	if d.OutstandingMinor == nil {
		return 0
	}
	return *d.OutstandingMinor
}

// IsSecured reports whether the instrument sits in a secured tier.
func (d *DebtInstrument) IsSecured() bool {
	return d.Seniority == SenioritySeniorSecured
}

// UpsertDebtInstrumentRequest creates or updates an instrument. The issuer is
// referenced by entity name within the company and must exist.
type UpsertDebtInstrumentRequest struct {
	IssuerEntityName string       `json:"issuer_entity_name" validate:"required"`
	Name             string       `json:"name" validate:"required"`
	Kind             string       `json:"kind" validate:"required,oneof=bond notes term_loan revolver facility"`
	Seniority        Seniority    `json:"seniority" validate:"required,oneof=senior_secured senior_unsecured subordinated"`
	SecurityType     SecurityType `json:"security_type" validate:"required,oneof=first_lien second_lien unsecured"`
	RateType         RateType     `json:"rate_type,omitempty" validate:"omitempty,oneof=fixed floating"`
	CouponBps        *int64       `json:"coupon_bps,omitempty" validate:"omitempty,gte=0"`
	SpreadBps        *int64       `json:"spread_bps,omitempty" validate:"omitempty,gte=0"`
	PrincipalMinor   *int64       `json:"principal_minor,omitempty" validate:"omitempty,gte=0"`
	CommitmentMinor  *int64       `json:"commitment_minor,omitempty" validate:"omitempty,gte=0"`
	OutstandingMinor *int64       `json:"outstanding_minor,omitempty" validate:"omitempty,gte=0"`
	Currency         string       `json:"currency,omitempty"`
	IssueDate        *Date        `json:"issue_date,omitempty"`
	MaturityDate     *Date        `json:"maturity_date,omitempty"`
	IsActive         *bool        `json:"is_active,omitempty"`
}

// DebtNaturalKey builds the idempotent upsert key: issuer + coupon + maturity.
func DebtNaturalKey(issuerName string, couponBps *int64, maturity *Date) string {
	coupon := "na"
	if couponBps != nil {
		coupon = fmt.Sprintf("%d", *couponBps)
	}
	mat := "na"
	if maturity != nil && !maturity.IsZero() {
		mat = maturity.String()
	}
	return issuerName + "|" + coupon + "|" + mat
}
