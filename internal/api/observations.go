package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fieldlog/internal/events"
	"github.com/tphakala/fieldlog/internal/model"
)

// ListObservations returns the caller's observations.
func (c *Controller) ListObservations(ctx echo.Context) error {
	obs, err := c.stores.Observations.FetchObservations(ctx.Request().Context(), ownerFrom(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list observations")
	}
	return ctx.JSON(http.StatusOK, obs)
}

// CreateObservation stores a new observation for the caller.
func (c *Controller) CreateObservation(ctx echo.Context) error {
	var in model.ObservationInput
	if err := ctx.Bind(&in); err != nil {
		return c.HandleError(ctx, badRequest("invalid observation body"), "Invalid request body")
	}
	owner := ownerFrom(ctx)
	obs, err := c.stores.Observations.CreateObservation(ctx.Request().Context(), in, owner)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to create observation")
	}
	events.PublishOrLog(ctx.Request().Context(), c.events, events.New(events.ObservationCreated, owner, obs))
	return ctx.JSON(http.StatusCreated, obs)
}

// UpdateObservation applies a patch to the caller's observation in the path.
// Records of other owners are not found.
func (c *Controller) UpdateObservation(ctx echo.Context) error {
	var patch model.ObservationPatch
	if err := ctx.Bind(&patch); err != nil {
		return c.HandleError(ctx, badRequest("invalid observation patch"), "Invalid request body")
	}
	patch.ID = ctx.Param("id")
	owner := ownerFrom(ctx)
	obs, err := c.stores.Observations.UpdateObservation(ctx.Request().Context(), patch, owner)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to update observation")
	}
	events.PublishOrLog(ctx.Request().Context(), c.events, events.New(events.ObservationUpdated, owner, obs))
	return ctx.JSON(http.StatusOK, obs)
}

// DeleteObservation removes the observation in the path.
func (c *Controller) DeleteObservation(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := c.stores.Observations.DeleteObservation(ctx.Request().Context(), id, ownerFrom(ctx)); err != nil {
		return c.HandleError(ctx, err, "Failed to delete observation")
	}
	events.PublishOrLog(ctx.Request().Context(), c.events,
		events.New(events.ObservationDeleted, ownerFrom(ctx), events.DeletedData{ID: id}))
	return ctx.NoContent(http.StatusNoContent)
}
