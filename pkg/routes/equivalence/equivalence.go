// Package equivalence exposes ambiguous-match evidence for manual review.
// Evidence rows never trigger automatic merging; this surface is how a
// cataloger inspects them.
package equivalence

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	equivalencerepo "github.com/NYPL/sfr-ingest-pipeline-sub000/internal/repositories/equivalence"
)

// Register registers equivalence review routes
func Register(g *echo.Group) {
	g.GET("", ListEquivalences)
}

// ListEquivalences lists evidence rows where the given entity won an
// ambiguous match.
func ListEquivalences(c echo.Context) error {
	ctx := c.Request().Context()

	sourceID := c.QueryParam("source_id")
	if sourceID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "source_id query parameter is required")
	}

	ctx, repo, err := ectoinject.GetContext[*equivalencerepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	equivalences, err := repo.ListBySource(ctx, sourceID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, equivalences)
}
