package models

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
)

// Snapshot is an immutable, dated capture of a company's entity set, debt
// set, and derived metrics. Snapshots are append-only: re-capturing the same
// as-of date is a no-op when the content fingerprint matches and a conflict
// otherwise.
type Snapshot struct {
	ID          string                          `json:"id" db:"id"`
	TenantID    string                          `json:"tenant_id" db:"tenant_id"`
	CompanyID   string                          `json:"company_id" db:"company_id"`
	AsOf        Date                            `json:"as_of" db:"as_of"`
	Fingerprint string                          `json:"fingerprint" db:"fingerprint"`
	Payload     database.JSONB[SnapshotPayload] `json:"payload" db:"payload"`
	CreatedAt   time.Time                       `json:"created_at" db:"created_at"`
}

// SnapshotPayload is the serialized body of a snapshot.
type SnapshotPayload struct {
	Entities    []Entity         `json:"entities"`
	Instruments []DebtInstrument `json:"instruments"`
	Metrics     *CreditMetrics   `json:"metrics,omitempty"`
}

// CaptureSnapshotRequest triggers a capture (normally called by the quarterly
// scheduler, not end users).
type CaptureSnapshotRequest struct {
	AsOf Date `json:"as_of" validate:"required"`
}

// DebtChangeReason tags why an instrument left the live set.
type DebtChangeReason string

const (
	DebtChangeMatured DebtChangeReason = "matured"
	DebtChangeRemoved DebtChangeReason = "removed"
)

// DebtChange is one instrument appearing or disappearing between a snapshot
// and live state, identified by natural key.
type DebtChange struct {
	NaturalKey       string           `json:"natural_key"`
	Name             string           `json:"name"`
	Seniority        Seniority        `json:"seniority"`
	OutstandingMinor int64            `json:"outstanding_minor"`
	MaturityDate     *Date            `json:"maturity_date,omitempty"`
	Reason           DebtChangeReason `json:"reason,omitempty"`
}

// EntityChangeSummary lists entities appearing or disappearing.
type EntityChangeSummary struct {
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	AddedCount   int      `json:"added_count"`
	RemovedCount int      `json:"removed_count"`
}

// ChangeSet is the output of a diff between a snapshot baseline and current
// live state. Computing it has no side effects.
type ChangeSet struct {
	CompanyID            string                 `json:"company_id"`
	BaselineDate         Date                   `json:"baseline_date"`
	NewDebt              []DebtChange           `json:"new_debt"`
	MaturedOrRemovedDebt []DebtChange           `json:"matured_or_removed_debt"`
	EntityChanges        EntityChangeSummary    `json:"entity_changes"`
	MetricChanges        map[string]MetricDelta `json:"metric_changes"`
}

// Empty reports whether the change set records no movement at all.
func (c *ChangeSet) Empty() bool {
	return len(c.NewDebt) == 0 &&
		len(c.MaturedOrRemovedDebt) == 0 &&
		c.EntityChanges.AddedCount == 0 &&
		c.EntityChanges.RemovedCount == 0 &&
		len(c.MetricChanges) == 0
}
