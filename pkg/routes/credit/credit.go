package credit

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	creditpkg "github.com/Ramsey-B/briar/pkg/credit"
	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/reqcontext"
)

// Register registers credit analytics routes on the companies group
func Register(g *echo.Group) {
	g.GET("/:ticker/waterfall", GetWaterfall)
	g.GET("/:ticker/score", GetScore)
	g.GET("/:ticker/metrics", GetMetrics)
}

func loadCapture(c echo.Context) (*models.CompanyCapture, error) {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	_, store, err := ectoinject.GetContext[*graphstore.Store](ctx)
	if err != nil || store == nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return nil, err
	}
	return store.LoadCapture(ctx, tenantID, comp.ID)
}

// GetWaterfall returns the claims waterfall for a company's active debt
func GetWaterfall(c echo.Context) error {
	capture, err := loadCapture(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, creditpkg.Waterfall(capture))
}

// GetScore returns the structural subordination score with its components
func GetScore(c echo.Context) error {
	capture, err := loadCapture(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, creditpkg.Score(capture))
}

// GetMetrics returns the stored credit metrics row for a company
func GetMetrics(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	_, store, err := ectoinject.GetContext[*graphstore.Store](ctx)
	if err != nil || store == nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	m, err := store.GetMetrics(ctx, tenantID, comp.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, m)
}
