package api

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/geocode"
	"github.com/tphakala/fieldlog/internal/model"
)

// SpeciesResponse is the body of a species search.
type SpeciesResponse struct {
	Term string        `json:"term"`
	Taxa []model.Taxon `json:"taxa"`
}

// SearchSpecies searches the taxonomy registry. Terms shorter than the
// configured minimum return no taxa without an upstream request.
func (c *Controller) SearchSpecies(ctx echo.Context) error {
	term := strings.TrimSpace(ctx.QueryParam("term"))
	resp := SpeciesResponse{Term: term, Taxa: []model.Taxon{}}

	minLen := conf.DefaultMinQueryLength
	if c.settings != nil && c.settings.Taxonomy.MinQueryLength > 0 {
		minLen = c.settings.Taxonomy.MinQueryLength
	}
	if utf8.RuneCountInString(term) < minLen || c.taxonomy == nil {
		return ctx.JSON(http.StatusOK, resp)
	}

	taxa, err := c.taxonomy.Search(ctx.Request().Context(), term)
	if err != nil {
		return c.HandleError(ctx, err, "Species search failed")
	}
	resp.Taxa = taxa
	return ctx.JSON(http.StatusOK, resp)
}

// ReverseGeocode suggests a place name for a point.
func (c *Controller) ReverseGeocode(ctx echo.Context) error {
	lat, errLat := strconv.ParseFloat(ctx.QueryParam("lat"), 64)
	lng, errLng := strconv.ParseFloat(ctx.QueryParam("lng"), 64)
	if errLat != nil || errLng != nil {
		return c.HandleError(ctx, badRequest("lat and lng must be numbers"), "Invalid coordinates")
	}
	p := model.Point{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return c.HandleError(ctx, err, "Invalid coordinates")
	}
	if c.geocoder == nil {
		return ctx.JSON(http.StatusOK, geocode.Place{})
	}
	place, err := c.geocoder.Reverse(ctx.Request().Context(), p)
	if err != nil {
		return c.HandleError(ctx, err, "Reverse geocoding failed")
	}
	return ctx.JSON(http.StatusOK, place)
}
