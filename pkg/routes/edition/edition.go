// Package edition exposes a work's computed edition clusters.
package edition

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	editionrepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/edition"
)

// Register registers edition routes
func Register(g *echo.Group) {
	g.GET("", ListEditions)
}

// ListEditions lists the current edition clusters of a work.
func ListEditions(c echo.Context) error {
	ctx := c.Request().Context()

	workID := c.QueryParam("work_id")
	if workID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "work_id query parameter is required")
	}

	ctx, repo, err := ectoinject.GetContext[*editionrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	editions, err := repo.ListByWork(ctx, workID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, editions)
}
