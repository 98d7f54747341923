// Package traversal walks typed relationships over a company capture.
// The engine is a pure breadth-first walk: it never touches the store, so the
// HTTP handler loads one consistent capture and traversal results are
// reproducible for that view.
package traversal

import (
	"github.com/pkg/errors"

	"github.com/Ramsey-B/briar/pkg/models"
)

// Engine clamps depth and expands relationship edges.
type Engine struct {
	defaultDepth int
	depthCap     int
}

// NewEngine builds an engine with the configured depth defaults.
func NewEngine(defaultDepth, depthCap int) *Engine {
	if defaultDepth <= 0 {
		defaultDepth = 1
	}
	if depthCap < defaultDepth {
		depthCap = defaultDepth
	}
	return &Engine{defaultDepth: defaultDepth, depthCap: depthCap}
}

type nodeRef struct {
	kind models.NodeKind
	id   string
}

// Traverse runs a breadth-first walk from the start node, following the union
// of the requested relationships at every step. Nodes are visited at most
// once, at their first (shallowest) discovery. The start node itself is not
// repeated in the result list.
func (e *Engine) Traverse(capture *models.CompanyCapture, req *models.TraversalRequest) (*models.TraversalResult, error) {
	if len(req.Relationships) == 0 {
		return nil, errors.Wrap(models.ErrInvalidParameter, "at least one relationship is required")
	}
	for _, rel := range req.Relationships {
		if !models.ValidRelationship(rel) {
			return nil, errors.Wrapf(models.ErrInvalidParameter, "unknown relationship %q", rel)
		}
	}
	if req.Depth < 0 {
		return nil, errors.Wrapf(models.ErrInvalidParameter, "depth must not be negative, got %d", req.Depth)
	}

	direction := req.Direction
	if direction == "" {
		direction = models.DirectionOutbound
	}

	idx := newCaptureIndex(capture)
	start := nodeRef{kind: req.Start.Kind, id: req.Start.ID}
	if !idx.exists(start) {
		return nil, errors.Wrapf(models.ErrNotFound, "start node %s/%s", req.Start.Kind, req.Start.ID)
	}

	result := &models.TraversalResult{
		Start: req.Start,
		Meta:  models.TraversalMeta{DepthRequested: req.Depth},
	}

	depth := req.Depth
	if depth <= 0 {
		depth = e.defaultDepth
	}
	if depth > e.depthCap {
		depth = e.depthCap
		result.Meta.DepthCapped = true
	}
	result.Meta.DepthUsed = depth

	visited := map[nodeRef]bool{start: true}
	frontier := []nodeRef{start}

	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []nodeRef
		for _, from := range frontier {
			for _, rel := range req.Relationships {
				for _, to := range idx.neighbors(from, rel, direction) {
					if visited[to] {
						continue
					}
					if !e.admit(idx, to, &req.Filters) {
						continue
					}
					visited[to] = true
					next = append(next, to)
					result.Nodes = append(result.Nodes, idx.project(to, rel, d, req.Fields))
				}
			}
		}
		frontier = next
	}

	result.Meta.NodesVisited = len(result.Nodes)
	result.Summary = e.summarize(idx, result.Nodes)
	return result, nil
}

// admit applies frontier filters. Filtered nodes are pruned, not just hidden:
// the walk does not expand through them. Filters only constrain entities.
func (e *Engine) admit(idx *captureIndex, ref nodeRef, f *models.TraversalFilters) bool {
	if ref.kind != models.NodeEntity {
		return true
	}
	ent := idx.entities[ref.id]
	if ent == nil {
		return false
	}
	if len(f.EntityKinds) > 0 && !containsKind(f.EntityKinds, ent.Kind) {
		return false
	}
	if f.IsGuarantor != nil && ent.IsGuarantor != *f.IsGuarantor {
		return false
	}
	if len(f.Jurisdictions) > 0 && !containsString(f.Jurisdictions, ent.Jurisdiction) {
		return false
	}
	return true
}

func (e *Engine) summarize(idx *captureIndex, nodes []models.TraversalNode) models.TraversalSummary {
	var s models.TraversalSummary

	visitedEntities := make(map[string]bool)
	for _, n := range nodes {
		switch n.Kind {
		case models.NodeEntity:
			s.EntitiesVisited++
			visitedEntities[n.ID] = true
		case models.NodeBond:
			s.BondsVisited++
			if d := idx.instruments[n.ID]; d != nil && d.IsActive {
				s.TotalOutstandingMinor += d.Outstanding()
			}
		}
	}

	guarantors := make(map[string]bool)
	for _, g := range idx.capture.Guarantees {
		if !visitedEntities[g.GuarantorEntityID] {
			continue
		}
		d := idx.instruments[g.DebtInstrumentID]
		if d == nil || !d.IsActive {
			continue
		}
		guarantors[g.GuarantorEntityID] = true
		if g.IsFull() {
			s.FullGuarantees++
		} else {
			s.PartialGuarantees++
		}
	}
	s.DistinctGuarantors = len(guarantors)
	return s
}

func containsKind(kinds []models.EntityKind, k models.EntityKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}

func containsString(vals []string, v string) bool {
	for _, c := range vals {
		if c == v {
			return true
		}
	}
	return false
}
