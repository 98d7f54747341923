package company

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/briar/pkg/graphstore"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/reqcontext"
)

var validate = validator.New()

// Register registers company graph routes
func Register(g *echo.Group) {
	g.PUT("", UpsertCompany)
	g.GET("", ListCompanies)
	g.GET("/:ticker", GetCompany)
	g.GET("/:ticker/entities", GetEntityTree)
	g.PUT("/:ticker/entities", UpsertEntity)
	g.DELETE("/:ticker/entities/:id", DeleteEntity)
	g.PUT("/:ticker/debt", UpsertDebtInstrument)
	g.PUT("/:ticker/guarantees", UpsertGuarantee)
	g.PUT("/:ticker/ownership", UpsertOwnershipLink)
}

func getStore(c echo.Context) (*graphstore.Store, error) {
	ctx := c.Request().Context()
	_, store, err := ectoinject.GetContext[*graphstore.Store](ctx)
	if err != nil || store == nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	return store, nil
}

// UpsertCompany creates or updates a company by ticker
func UpsertCompany(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	var req models.UpsertCompanyRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.UpsertCompany(ctx, tenantID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, comp)
}

// ListCompanies pages through companies
func ListCompanies(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	page := intQueryParam(c, "page", 1)
	pageSize := intQueryParam(c, "page_size", 20)

	store, err := getStore(c)
	if err != nil {
		return err
	}

	resp, err := store.ListCompanies(ctx, tenantID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, resp)
}

// GetCompany gets a company by ticker
func GetCompany(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, comp)
}

// GetEntityTree returns the live entity forest for a company
func GetEntityTree(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	tree, err := store.GetEntityTree(ctx, tenantID, comp.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, tree)
}

// UpsertEntity creates or updates one entity in a company's graph
func UpsertEntity(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	var req models.UpsertEntityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	ent, err := store.UpsertEntity(ctx, tenantID, comp.ID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ent)
}

// DeleteEntity soft-deletes an entity with no children or active debt
func DeleteEntity(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	if err := store.DeleteEntity(ctx, tenantID, comp.ID, c.Param("id")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// UpsertDebtInstrument creates or updates one debt instrument
func UpsertDebtInstrument(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	var req models.UpsertDebtInstrumentRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	instr, err := store.UpsertDebtInstrument(ctx, tenantID, comp.ID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, instr)
}

// UpsertGuarantee creates or updates one guarantee edge
func UpsertGuarantee(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	var req models.UpsertGuaranteeRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	result, err := store.UpsertGuarantee(ctx, tenantID, comp.ID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// UpsertOwnershipLink creates or updates one ownership edge
func UpsertOwnershipLink(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := reqcontext.GetTenantID(ctx)

	var req models.UpsertOwnershipLinkRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	store, err := getStore(c)
	if err != nil {
		return err
	}

	comp, err := store.GetCompanyByTicker(ctx, tenantID, c.Param("ticker"))
	if err != nil {
		return err
	}

	result, err := store.UpsertOwnershipLink(ctx, tenantID, comp.ID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

func intQueryParam(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	var v int
	if err := echo.QueryParamsBinder(c).Int(name, &v).BindError(); err != nil {
		return fallback
	}
	return v
}
