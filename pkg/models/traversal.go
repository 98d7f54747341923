package models

// NodeKind identifies the type of a traversal node.
type NodeKind string

const (
	NodeCompany NodeKind = "company"
	NodeEntity  NodeKind = "entity"
	NodeBond    NodeKind = "bond"
)

// Relationship names the typed edges a traversal can follow. Each maps to a
// fixed edge direction in the store; the request Direction composes with it.
type Relationship string

const (
	// RelGuarantees: entity -> bond edges ("guarantees").
	RelGuarantees Relationship = "guarantees"
	// RelSubsidiaries: parent -> child entity edges.
	RelSubsidiaries Relationship = "subsidiaries"
	// RelParents: child -> parent entity edges.
	RelParents Relationship = "parents"
	// RelDebt: entity -> bond issuance edges.
	RelDebt Relationship = "debt"
	// RelBorrowers: bond -> issuing entity edges.
	RelBorrowers Relationship = "borrowers"
)

// ValidRelationship reports whether r is a known relationship name.
func ValidRelationship(r Relationship) bool {
	switch r {
	case RelGuarantees, RelSubsidiaries, RelParents, RelDebt, RelBorrowers:
		return true
	}
	return false
}

// Direction composes with a relationship's natural direction.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
	DirectionBoth     Direction = "both"
)

// StartNode identifies where a traversal begins.
type StartNode struct {
	Kind NodeKind `json:"kind" validate:"required,oneof=company entity bond"`
	ID   string   `json:"id" validate:"required"`
}

// TraversalFilters restrict the frontier at each step. Filtered-out nodes are
// pruned: they neither appear in results nor expand further.
type TraversalFilters struct {
	EntityKinds   []EntityKind `json:"entity_kinds,omitempty"`
	IsGuarantor   *bool        `json:"is_guarantor,omitempty"`
	Jurisdictions []string     `json:"jurisdictions,omitempty"`
}

// TraversalRequest is the full traversal contract.
type TraversalRequest struct {
	Start         StartNode        `json:"start" validate:"required"`
	Relationships []Relationship   `json:"relationships" validate:"required,min=1"`
	Direction     Direction        `json:"direction,omitempty" validate:"omitempty,oneof=outbound inbound both"`
	Depth         int              `json:"depth,omitempty" validate:"omitempty,gte=0"`
	Filters       TraversalFilters `json:"filters,omitempty"`
	Fields        []string         `json:"fields,omitempty"`
}

// TraversalNode is one visited node in discovery order, annotated with the
// relationship that reached it and the projected fields.
type TraversalNode struct {
	Kind         NodeKind       `json:"kind"`
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Relationship Relationship   `json:"relationship"`
	Depth        int            `json:"depth"`
	Fields       map[string]any `json:"fields,omitempty"`
}

// TraversalSummary aggregates over the visited set.
type TraversalSummary struct {
	DistinctGuarantors    int   `json:"distinct_guarantors"`
	FullGuarantees        int   `json:"full_guarantees"`
	PartialGuarantees     int   `json:"partial_guarantees"`
	EntitiesVisited       int   `json:"entities_visited"`
	BondsVisited          int   `json:"bonds_visited"`
	TotalOutstandingMinor int64 `json:"total_outstanding_minor"`
}

// TraversalMeta reports how the walk terminated. DepthCapped is set when the
// requested depth was clamped to the engine cap; it is informational, never an
// error.
type TraversalMeta struct {
	DepthRequested int  `json:"depth_requested"`
	DepthUsed      int  `json:"depth_used"`
	DepthCapped    bool `json:"depth_capped"`
	NodesVisited   int  `json:"nodes_visited"`
}

// TraversalResult is the full traversal output.
type TraversalResult struct {
	Start   StartNode        `json:"start"`
	Nodes   []TraversalNode  `json:"nodes"`
	Summary TraversalSummary `json:"summary"`
	Meta    TraversalMeta    `json:"meta"`
}
