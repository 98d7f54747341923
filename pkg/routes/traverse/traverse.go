package traverse

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/reqcontext"
	"github.com/Ramsey-B/briar/pkg/traversal"
)

var validate = validator.New()

// Register registers the traversal route
func Register(g *echo.Group) {
	g.POST("/traverse", Traverse)
}

// Traverse walks typed relationships from a start node over one company's
// graph and returns the visited nodes with summary rollups.
func Traverse(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	var req models.TraversalRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	_, store, err := ectoinject.GetContext[*graphstore.Store](ctx)
	if err != nil || store == nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	_, engine, err := ectoinject.GetContext[*traversal.Engine](ctx)
	if err != nil || engine == nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	companyID, err := store.ResolveStartCompany(ctx, tenantID, req.Start)
	if err != nil {
		return err
	}

	capture, err := store.LoadCapture(ctx, tenantID, companyID)
	if err != nil {
		return err
	}

	result, err := engine.Traverse(capture, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
