package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/tracing"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// QueryService handles graph queries (OpenCypher)
type QueryService struct {
	client *Client
	logger ectologger.Logger
}

// NewQueryService creates a new query service
func NewQueryService(client *Client, logger ectologger.Logger) *QueryService {
	return &QueryService{
		client: client,
		logger: logger,
	}
}

// QueryResult represents the result of a graph query
type QueryResult struct {
	Nodes         []NodeResult `json:"nodes,omitempty"`
	Relationships []RelResult  `json:"relationships,omitempty"`
	Rows          []any        `json:"rows,omitempty"`
}

// NodeResult represents a node from query results
type NodeResult struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// RelResult represents a relationship from query results
type RelResult struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	StartNode  string         `json:"start_node"`
	EndNode    string         `json:"end_node"`
	Properties map[string]any `json:"properties"`
}

// ExecuteQuery runs a read-only Cypher query with tenant isolation
func (s *QueryService) ExecuteQuery(ctx context.Context, tenantID string, cypher string, params map[string]any) (*QueryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.QueryService.ExecuteQuery")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id": tenantID,
		"query_len": len(cypher),
	})

	// Add tenant_id to params for use in query
	if params == nil {
		params = make(map[string]any)
	}
	params["_tenant_id"] = tenantID

	result, err := s.client.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}

		qr := &QueryResult{
			Nodes:         make([]NodeResult, 0),
			Relationships: make([]RelResult, 0),
			Rows:          make([]any, 0),
		}

		seenNodes := make(map[string]bool)
		seenRels := make(map[string]bool)

		for result.Next(ctx) {
			record := result.Record()
			row := make(map[string]any)

			for _, key := range record.Keys {
				val, _ := record.Get(key)
				row[key] = extractValue(val, qr, seenNodes, seenRels)
			}

			qr.Rows = append(qr.Rows, row)
		}

		return qr, nil
	})

	if err != nil {
		log.WithError(err).Error("Failed to execute graph query")
		return nil, fmt.Errorf("failed to execute graph query: %w", err)
	}

	return result.(*QueryResult), nil
}

// FindStructuralPath finds the shortest ownership path between two entities,
// following parent and JV edges in either direction.
func (s *QueryService) FindStructuralPath(ctx context.Context, tenantID string, fromID, toID string, maxHops int) (*QueryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.QueryService.FindStructuralPath")
	defer span.End()

	if maxHops <= 0 {
		maxHops = 10
	}

	cypher := fmt.Sprintf(`
		MATCH (start:Entity {id: $from_id, tenant_id: $tenant_id})
		MATCH (end:Entity {id: $to_id, tenant_id: $tenant_id})
		MATCH p = shortestPath((start)-[:PARENT_OF|OWNS*..%d]-(end))
		RETURN p
	`, maxHops)

	return s.ExecuteQuery(ctx, tenantID, cypher, map[string]any{
		"from_id": fromID,
		"to_id":   toID,
	})
}

// FindGuarantorsOf returns the entities guaranteeing a bond, with the edge
// properties carrying type and coverage.
func (s *QueryService) FindGuarantorsOf(ctx context.Context, tenantID string, bondID string) (*QueryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.QueryService.FindGuarantorsOf")
	defer span.End()

	cypher := `
		MATCH (g:Entity)-[r:GUARANTEES]->(b:Bond {id: $bond_id, tenant_id: $tenant_id})
		RETURN g, r, b
	`

	return s.ExecuteQuery(ctx, tenantID, cypher, map[string]any{
		"bond_id": bondID,
	})
}

// FindSubtree returns every entity below the given one in the primary tree.
func (s *QueryService) FindSubtree(ctx context.Context, tenantID string, entityID string, maxDepth int) (*QueryResult, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.QueryService.FindSubtree")
	defer span.End()

	if maxDepth <= 0 {
		maxDepth = 15
	}

	cypher := fmt.Sprintf(`
		MATCH (root:Entity {id: $id, tenant_id: $tenant_id})
		MATCH (root)-[:PARENT_OF*1..%d]->(descendant)
		RETURN DISTINCT descendant
	`, maxDepth)

	return s.ExecuteQuery(ctx, tenantID, cypher, map[string]any{
		"id": entityID,
	})
}

// extractValue converts neo4j types to standard Go types
func extractValue(val any, qr *QueryResult, seenNodes, seenRels map[string]bool) any {
	if val == nil {
		return nil
	}

	switch v := val.(type) {
	case neo4j.Node:
		id := fmt.Sprintf("%v", v.Props["id"])
		if !seenNodes[id] {
			seenNodes[id] = true
			qr.Nodes = append(qr.Nodes, NodeResult{
				ID:         id,
				Labels:     v.Labels,
				Properties: v.Props,
			})
		}
		return id

	case neo4j.Relationship:
		id := fmt.Sprintf("%v", v.Props["id"])
		if !seenRels[id] {
			seenRels[id] = true
			qr.Relationships = append(qr.Relationships, RelResult{
				ID:         id,
				Type:       v.Type,
				Properties: v.Props,
			})
		}
		return id

	case neo4j.Path:
		// Extract nodes and relationships from path
		for _, node := range v.Nodes {
			extractValue(node, qr, seenNodes, seenRels)
		}
		for _, rel := range v.Relationships {
			extractValue(rel, qr, seenNodes, seenRels)
		}
		return map[string]any{
			"node_count": len(v.Nodes),
			"rel_count":  len(v.Relationships),
		}

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = extractValue(item, qr, seenNodes, seenRels)
		}
		return result

	default:
		return v
	}
}

