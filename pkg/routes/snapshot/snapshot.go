package snapshot

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/reqcontext"
	snapshotpkg "github.com/Ramsey-B/briar/pkg/snapshot"
)

// Register registers snapshot routes on the companies group
func Register(g *echo.Group) {
	g.POST("/:ticker/snapshots", CaptureSnapshot)
	g.GET("/:ticker/snapshots", ListSnapshots)
	g.GET("/:ticker/snapshots/:asOf", GetSnapshot)
	g.GET("/:ticker/diff", DiffSnapshot)
}

func resolve(c echo.Context) (*snapshotpkg.Engine, *models.Company, string, error) {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	_, engine, err := ectoinject.GetContext[*snapshotpkg.Engine](ctx)
	if err != nil || engine == nil {
		return nil, nil, "", httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	_, store, err := ectoinject.GetContext[*graphstore.Store](ctx)
	if err != nil || store == nil {
		return nil, nil, "", httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return nil, nil, "", err
	}
	return engine, comp, tenantID, nil
}

// CaptureSnapshot freezes the company's live graph at a date. Returns 200
// when an identical snapshot already exists at that date, 201 when created.
func CaptureSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CaptureSnapshotRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.AsOf.IsZero() {
		return httperror.NewHTTPError(http.StatusBadRequest, "as_of is required")
	}

	engine, comp, tenantID, err := resolve(c)
	if err != nil {
		return err
	}

	snap, created, err := engine.Capture(ctx, tenantID, comp.ID, req.AsOf)
	if err != nil {
		return err
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, snap)
}

// ListSnapshots returns the snapshot index for a company, newest first
func ListSnapshots(c echo.Context) error {
	ctx := c.Request().Context()

	engine, comp, tenantID, err := resolve(c)
	if err != nil {
		return err
	}

	snaps, err := engine.List(ctx, tenantID, comp.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, snaps)
}

// GetSnapshot returns one snapshot with its payload
func GetSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	asOf, err := models.ParseDate(c.Param("asOf"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid as_of date, expected YYYY-MM-DD")
	}

	engine, comp, tenantID, err := resolve(c)
	if err != nil {
		return err
	}

	snap, err := engine.Get(ctx, tenantID, comp.ID, asOf)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, snap)
}

// DiffSnapshot compares the most recent snapshot at or before ?since= against
// live state
func DiffSnapshot(c echo.Context) error {
	ctx := c.Request().Context()

	raw := c.QueryParam("since")
	if raw == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "since query parameter is required")
	}
	since, err := models.ParseDate(raw)
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid since date, expected YYYY-MM-DD")
	}

	engine, comp, tenantID, err := resolve(c)
	if err != nil {
		return err
	}

	changes, err := engine.Diff(ctx, tenantID, comp.ID, since)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, changes)
}
