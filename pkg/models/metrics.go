package models

import "time"

// MaturityBuckets splits active outstanding debt by time-to-maturity measured
// from the computation date. Instruments with no maturity date fall into
// Unscheduled.
type MaturityBuckets struct {
	Within1YMinor    int64 `json:"within_1y_minor" db:"mat_within_1y_minor"`
	From1To3YMinor   int64 `json:"from_1_to_3y_minor" db:"mat_1_to_3y_minor"`
	From3To5YMinor   int64 `json:"from_3_to_5y_minor" db:"mat_3_to_5y_minor"`
	Beyond5YMinor    int64 `json:"beyond_5y_minor" db:"mat_beyond_5y_minor"`
	UnscheduledMinor int64 `json:"unscheduled_minor" db:"mat_unscheduled_minor"`
}

// CreditMetrics are the derived aggregates for one company, recomputed
// write-through whenever debt amounts, seniority, guarantees, or tree shape
// change. One row per company, replaced in place.
type CreditMetrics struct {
	CompanyID string `json:"company_id" db:"company_id"`
	TenantID  string `json:"tenant_id" db:"tenant_id"`

	TotalDebtMinor    int64 `json:"total_debt_minor" db:"total_debt_minor"`
	SecuredDebtMinor  int64 `json:"secured_debt_minor" db:"secured_debt_minor"`
	ActiveInstruments int   `json:"active_instruments" db:"active_instruments"`
	GuarantorCount    int   `json:"guarantor_count" db:"guarantor_count"`

	// SecuredPct is secured / total outstanding, 0 when there is no debt.
	SecuredPct float64 `json:"secured_pct" db:"secured_pct"`

	// GuaranteedCoveragePct is the debt-value-weighted share of active
	// outstanding covered by at least one guarantee. See pkg/credit.
	GuaranteedCoveragePct float64 `json:"guaranteed_coverage_pct" db:"guaranteed_coverage_pct"`

	// SubordinationScore is the 0-100 structural subordination heuristic.
	SubordinationScore float64 `json:"subordination_score" db:"subordination_score"`

	// LeverageX is total debt / EBITDA; nil when EBITDA is unknown or zero.
	LeverageX *float64 `json:"leverage_x,omitempty" db:"leverage_x"`

	Maturities MaturityBuckets `json:"maturities"`

	ComputedAt time.Time `json:"computed_at" db:"computed_at"`
}

// MetricDelta is one metric movement inside a ChangeSet.
type MetricDelta struct {
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
	Delta    float64 `json:"delta"`
}
