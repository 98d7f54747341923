package graph

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	graphpkg "github.com/Ramsey-B/briar/pkg/graph"
	"github.com/Ramsey-B/briar/pkg/reqcontext"
)

// Handler handles graph query API endpoints
type Handler struct {
	queryService *graphpkg.QueryService
	logger       ectologger.Logger
}

// NewHandler creates a new graph handler
func NewHandler(queryService *graphpkg.QueryService, logger ectologger.Logger) *Handler {
	return &Handler{
		queryService: queryService,
		logger:       logger,
	}
}

// Register registers the graph routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/query", h.ExecuteQuery)
	g.GET("/path", h.FindStructuralPath)
	g.GET("/guarantors/:bondId", h.FindGuarantorsOf)
	g.GET("/subtree/:entityId", h.FindSubtree)
}

func (h *Handler) requireQueryService(c echo.Context) (*graphpkg.QueryService, error) {
	// Prefer explicitly provided service (useful for tests), but fall back to
	// DI-from-context, which is the standard pattern elsewhere.
	if h != nil && h.queryService != nil {
		return h.queryService, nil
	}

	ctx := c.Request().Context()
	_, svc, err := ectoinject.GetContext[*graphpkg.QueryService](ctx)
	if err != nil || svc == nil {
		// 503 because this is an optional dependency (graph DB can be disabled).
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "graph query service unavailable")
	}
	return svc, nil
}

// QueryRequest is the request body for executing a Cypher query
type QueryRequest struct {
	Query  string         `json:"query" validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// ExecuteQuery executes a read-only Cypher query
// @Summary Execute a Cypher query
// @Description Run a read-only OpenCypher query against the graph mirror
// @Tags Graph
// @Accept json
// @Produce json
// @Param body body QueryRequest true "Query request"
// @Success 200 {object} graphpkg.QueryResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/graph/query [post]
func (h *Handler) ExecuteQuery(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Query == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	result, err := qs.ExecuteQuery(ctx, tenantID, req.Query, req.Params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// FindStructuralPath finds the shortest ownership path between two entities
// @Summary Find structural path
// @Description Find the shortest parent/ownership path between two entities
// @Tags Graph
// @Produce json
// @Param from query string true "From entity ID"
// @Param to query string true "To entity ID"
// @Param max_hops query int false "Maximum hops (default 10)"
// @Success 200 {object} graphpkg.QueryResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/graph/path [get]
func (h *Handler) FindStructuralPath(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	fromID := c.QueryParam("from")
	toID := c.QueryParam("to")

	if fromID == "" || toID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "from and to parameters are required")
	}

	maxHops := 10
	if hopsStr := c.QueryParam("max_hops"); hopsStr != "" {
		var parsed int
		if err := echo.QueryParamsBinder(c).Int("max_hops", &parsed).BindError(); err == nil && parsed > 0 {
			maxHops = parsed
		}
	}

	result, err := qs.FindStructuralPath(ctx, tenantID, fromID, toID, maxHops)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// FindGuarantorsOf returns the entities guaranteeing a bond
// @Summary Find guarantors of a bond
// @Description Return the entities guaranteeing a bond with edge properties
// @Tags Graph
// @Produce json
// @Param bondId path string true "Bond ID"
// @Success 200 {object} graphpkg.QueryResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/graph/guarantors/{bondId} [get]
func (h *Handler) FindGuarantorsOf(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	bondID := c.Param("bondId")
	if bondID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "bond ID is required")
	}

	result, err := qs.FindGuarantorsOf(ctx, tenantID, bondID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// FindSubtree returns every entity below the given one in the primary tree
// @Summary Find entity subtree
// @Description Return all descendants of an entity through parent edges
// @Tags Graph
// @Produce json
// @Param entityId path string true "Entity ID"
// @Param max_depth query int false "Maximum depth (default 15)"
// @Success 200 {object} graphpkg.QueryResult
// @Failure 400 {object} httperror.HTTPError
// @Failure 500 {object} httperror.HTTPError
// @Router /api/v1/graph/subtree/{entityId} [get]
func (h *Handler) FindSubtree(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	qs, err := h.requireQueryService(c)
	if err != nil {
		return err
	}

	entityID := c.Param("entityId")
	if entityID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "entity ID is required")
	}

	maxDepth := 15
	if depthStr := c.QueryParam("max_depth"); depthStr != "" {
		var parsed int
		if err := echo.QueryParamsBinder(c).Int("max_depth", &parsed).BindError(); err == nil && parsed > 0 {
			maxDepth = parsed
		}
	}

	result, err := qs.FindSubtree(ctx, tenantID, entityID, maxDepth)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
