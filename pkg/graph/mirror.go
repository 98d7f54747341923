package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// MirrorService projects company graphs into Memgraph after each write.
// Postgres remains the source of truth; the mirror exists for ad-hoc Cypher
// exploration and can be rebuilt from relational state at any time.
type MirrorService struct {
	client *Client
	logger ectologger.Logger
}

// NewMirrorService creates a new mirror service.
func NewMirrorService(client *Client, logger ectologger.Logger) *MirrorService {
	return &MirrorService{client: client, logger: logger}
}

// SyncCompany replaces the mirrored subgraph for one company in a single
// write transaction: nodes and edges are MERGEd from the capture, then
// anything mirrored earlier but absent from the capture is detached.
func (s *MirrorService) SyncCompany(ctx context.Context, capture *models.CompanyCapture) error {
	ctx, span := tracing.StartSpan(ctx, "graph.MirrorService.SyncCompany")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"company_id": capture.Company.ID,
		"tenant_id":  capture.Company.TenantID,
	})

	entityBatch := make([]map[string]any, 0, len(capture.Entities))
	entityIDs := make([]string, 0, len(capture.Entities))
	parentEdges := make([]map[string]any, 0, len(capture.Entities))
	for i := range capture.Entities {
		e := &capture.Entities[i]
		entityBatch = append(entityBatch, map[string]any{
			"id":            e.ID,
			"tenant_id":     e.TenantID,
			"company_id":    e.CompanyID,
			"name":          e.Name,
			"kind":          string(e.Kind),
			"jurisdiction":  e.Jurisdiction,
			"is_root":       e.IsRoot,
			"is_guarantor":  e.IsGuarantor,
			"is_restricted": e.IsRestricted,
			"is_vie":        e.IsVIE,
		})
		entityIDs = append(entityIDs, e.ID)
		if e.ParentID != nil {
			parentEdges = append(parentEdges, map[string]any{
				"parent_id": *e.ParentID,
				"child_id":  e.ID,
			})
		}
	}

	bondBatch := make([]map[string]any, 0, len(capture.Instruments))
	bondIDs := make([]string, 0, len(capture.Instruments))
	for i := range capture.Instruments {
		d := &capture.Instruments[i]
		bondBatch = append(bondBatch, map[string]any{
			"id":                d.ID,
			"tenant_id":         d.TenantID,
			"company_id":        d.CompanyID,
			"issuer_entity_id":  d.IssuerEntityID,
			"name":              d.Name,
			"kind":              d.Kind,
			"seniority":         string(d.Seniority),
			"security_type":     string(d.SecurityType),
			"outstanding_minor": d.Outstanding(),
			"is_active":         d.IsActive,
		})
		bondIDs = append(bondIDs, d.ID)
	}

	guaranteeEdges := make([]map[string]any, 0, len(capture.Guarantees))
	for i := range capture.Guarantees {
		g := &capture.Guarantees[i]
		guaranteeEdges = append(guaranteeEdges, map[string]any{
			"guarantor_id":  g.GuarantorEntityID,
			"instrument_id": g.DebtInstrumentID,
			"type":          string(g.Type),
			"coverage":      g.EffectiveCoverage(),
		})
	}

	ownershipEdges := make([]map[string]any, 0, len(capture.OwnershipLinks))
	for i := range capture.OwnershipLinks {
		l := &capture.OwnershipLinks[i]
		ownershipEdges = append(ownershipEdges, map[string]any{
			"owner_id": l.OwnerEntityID,
			"owned_id": l.OwnedEntityID,
			"pct":      l.Pct,
		})
	}

	tenantID := capture.Company.TenantID
	companyID := capture.Company.ID

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		run := func(cypher string, params map[string]any) error {
			_, err := tx.Run(ctx, cypher, params)
			return err
		}

		if err := run(`
			MERGE (c:Company {id: $id, tenant_id: $tenant_id})
			SET c.ticker = $ticker, c.legal_name = $legal_name, c.sector = $sector
		`, map[string]any{
			"id":         companyID,
			"tenant_id":  tenantID,
			"ticker":     capture.Company.Ticker,
			"legal_name": capture.Company.LegalName,
			"sector":     capture.Company.Sector,
		}); err != nil {
			return nil, err
		}

		if len(entityBatch) > 0 {
			if err := run(`
				UNWIND $batch AS props
				MERGE (e:Entity {id: props.id, tenant_id: props.tenant_id})
				SET e = props
				WITH e, props
				MATCH (c:Company {id: props.company_id, tenant_id: props.tenant_id})
				MERGE (c)-[:HAS_ENTITY]->(e)
			`, map[string]any{"batch": entityBatch}); err != nil {
				return nil, err
			}
		}

		// Parent edges are rebuilt from scratch: re-parenting must not leave
		// the old edge behind.
		if err := run(`
			MATCH (:Entity {company_id: $company_id, tenant_id: $tenant_id})-[r:PARENT_OF]->()
			DELETE r
		`, map[string]any{"company_id": companyID, "tenant_id": tenantID}); err != nil {
			return nil, err
		}
		if len(parentEdges) > 0 {
			if err := run(`
				UNWIND $batch AS edge
				MATCH (p:Entity {id: edge.parent_id, tenant_id: $tenant_id})
				MATCH (e:Entity {id: edge.child_id, tenant_id: $tenant_id})
				MERGE (p)-[:PARENT_OF]->(e)
			`, map[string]any{"batch": parentEdges, "tenant_id": tenantID}); err != nil {
				return nil, err
			}
		}

		if len(bondBatch) > 0 {
			if err := run(`
				UNWIND $batch AS props
				MERGE (b:Bond {id: props.id, tenant_id: props.tenant_id})
				SET b = props
				WITH b, props
				MATCH (e:Entity {id: props.issuer_entity_id, tenant_id: props.tenant_id})
				MERGE (e)-[:ISSUED]->(b)
			`, map[string]any{"batch": bondBatch}); err != nil {
				return nil, err
			}
		}

		if err := run(`
			MATCH (:Entity {company_id: $company_id, tenant_id: $tenant_id})-[r:GUARANTEES]->()
			DELETE r
		`, map[string]any{"company_id": companyID, "tenant_id": tenantID}); err != nil {
			return nil, err
		}
		if len(guaranteeEdges) > 0 {
			if err := run(`
				UNWIND $batch AS edge
				MATCH (g:Entity {id: edge.guarantor_id, tenant_id: $tenant_id})
				MATCH (b:Bond {id: edge.instrument_id, tenant_id: $tenant_id})
				MERGE (g)-[r:GUARANTEES]->(b)
				SET r.type = edge.type, r.coverage = edge.coverage
			`, map[string]any{"batch": guaranteeEdges, "tenant_id": tenantID}); err != nil {
				return nil, err
			}
		}

		if err := run(`
			MATCH (:Entity {company_id: $company_id, tenant_id: $tenant_id})-[r:OWNS]->()
			DELETE r
		`, map[string]any{"company_id": companyID, "tenant_id": tenantID}); err != nil {
			return nil, err
		}
		if len(ownershipEdges) > 0 {
			if err := run(`
				UNWIND $batch AS edge
				MATCH (o:Entity {id: edge.owner_id, tenant_id: $tenant_id})
				MATCH (e:Entity {id: edge.owned_id, tenant_id: $tenant_id})
				MERGE (o)-[r:OWNS]->(e)
				SET r.pct = edge.pct
			`, map[string]any{"batch": ownershipEdges, "tenant_id": tenantID}); err != nil {
				return nil, err
			}
		}

		// Drop mirrored nodes the capture no longer contains.
		if err := run(`
			MATCH (e:Entity {company_id: $company_id, tenant_id: $tenant_id})
			WHERE NOT e.id IN $ids
			DETACH DELETE e
		`, map[string]any{"company_id": companyID, "tenant_id": tenantID, "ids": entityIDs}); err != nil {
			return nil, err
		}
		if err := run(`
			MATCH (b:Bond {company_id: $company_id, tenant_id: $tenant_id})
			WHERE NOT b.id IN $ids
			DETACH DELETE b
		`, map[string]any{"company_id": companyID, "tenant_id": tenantID, "ids": bondIDs}); err != nil {
			return nil, err
		}

		return nil, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to mirror company to graph")
		return fmt.Errorf("failed to mirror company: %w", err)
	}

	log.Debug("Mirrored company to graph")
	return nil
}
