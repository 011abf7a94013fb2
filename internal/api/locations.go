package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fieldlog/internal/model"
)

// ListLocations returns the caller's saved locations.
func (c *Controller) ListLocations(ctx echo.Context) error {
	locs, err := c.stores.Locations.FetchLocations(ctx.Request().Context(), ownerFrom(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list locations")
	}
	return ctx.JSON(http.StatusOK, locs)
}

// CreateLocation saves a named point for the caller.
func (c *Controller) CreateLocation(ctx echo.Context) error {
	var in model.LocationInput
	if err := ctx.Bind(&in); err != nil {
		return c.HandleError(ctx, badRequest("invalid location body"), "Invalid request body")
	}
	loc, err := c.stores.Locations.CreateLocation(ctx.Request().Context(), in, ownerFrom(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create location")
	}
	return ctx.JSON(http.StatusCreated, loc)
}

// UpdateLocation applies a patch to the caller's location in the path.
func (c *Controller) UpdateLocation(ctx echo.Context) error {
	var patch model.LocationPatch
	if err := ctx.Bind(&patch); err != nil {
		return c.HandleError(ctx, badRequest("invalid location patch"), "Invalid request body")
	}
	patch.ID = ctx.Param("id")
	loc, err := c.stores.Locations.UpdateLocation(ctx.Request().Context(), patch, ownerFrom(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update location")
	}
	return ctx.JSON(http.StatusOK, loc)
}

// DeleteLocation removes the location in the path.
func (c *Controller) DeleteLocation(ctx echo.Context) error {
	if err := c.stores.Locations.DeleteLocation(ctx.Request().Context(), ctx.Param("id"), ownerFrom(ctx)); err != nil {
		return c.HandleError(ctx, err, "Failed to delete location")
	}
	return ctx.NoContent(http.StatusNoContent)
}
