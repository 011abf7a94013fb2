package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fieldlog/internal/preferences"
)

// PreferencesResponse carries the preferences and the tile template of the
// selected layer.
type PreferencesResponse struct {
	preferences.Preferences
	TileURL string `json:"tileUrl"`
}

func (c *Controller) preferencesResponse(ctx echo.Context, p preferences.Preferences) error {
	tile, err := c.preferences.TileURL(p.MapLayer)
	if err != nil {
		return c.HandleError(ctx, err, "Unknown map layer")
	}
	return ctx.JSON(http.StatusOK, PreferencesResponse{Preferences: p, TileURL: tile})
}

// GetPreferences returns the device preferences.
func (c *Controller) GetPreferences(ctx echo.Context) error {
	p, err := c.preferences.Get()
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read preferences")
	}
	return c.preferencesResponse(ctx, p)
}

// UpdatePreferences changes the given fields.
func (c *Controller) UpdatePreferences(ctx echo.Context) error {
	var patch preferences.Patch
	if err := ctx.Bind(&patch); err != nil {
		return c.HandleError(ctx, badRequest("invalid preferences body"), "Invalid request body")
	}
	p, err := c.preferences.Update(patch)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to save preferences")
	}
	return c.preferencesResponse(ctx, p)
}
