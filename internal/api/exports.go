package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/export"
	"github.com/tphakala/fieldlog/internal/model"
)

// HeaderRemoteStatus reports the outcome of the remote export steps.
const HeaderRemoteStatus = "X-Export-Remote-Status"

// ExportRequest selects observations to export. No ids means all of the
// caller's observations.
type ExportRequest struct {
	ObservationIDs []string `json:"observationIds"`
}

// CreateExport builds a spreadsheet and returns it as a download.
func (c *Controller) CreateExport(ctx echo.Context) error {
	var req ExportRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, badRequest("invalid export body"), "Invalid request body")
	}

	reqCtx := ctx.Request().Context()
	owner := ownerFrom(ctx)
	all, err := c.stores.Observations.FetchObservations(reqCtx, owner)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load observations")
	}
	selected, err := selectObservations(all, req.ObservationIDs)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to select observations")
	}

	sink := &export.BufferSink{}
	res, err := c.exporter.Export(reqCtx, owner, selected, sink)
	if err != nil {
		return c.HandleError(ctx, err, "Export failed")
	}

	h := ctx.Response().Header()
	h.Set(HeaderRemoteStatus, string(res.RemoteStatus()))
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", res.FileName))
	return ctx.Blob(http.StatusOK, export.ContentType, sink.Bytes())
}

// selectObservations keeps the requested ids in request order. An id the
// caller does not own is not found.
func selectObservations(all []model.Observation, ids []string) ([]model.Observation, error) {
	if len(ids) == 0 {
		return all, nil
	}
	byID := make(map[string]model.Observation, len(all))
	for i := range all {
		byID[all[i].ID] = all[i]
	}
	out := make([]model.Observation, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		o, ok := byID[id]
		if !ok {
			return nil, errors.Newf("observation %s not found", id).
				Component("api").
				Category(errors.CategoryNotFound).
				Context("id", id).
				Build()
		}
		out = append(out, o)
	}
	return out, nil
}

// ListExportLogs returns the caller's export history, newest first.
func (c *Controller) ListExportLogs(ctx echo.Context) error {
	logs, err := c.stores.ExportLogs.FetchExportLogs(ctx.Request().Context(), ownerFrom(ctx))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list export logs")
	}
	return ctx.JSON(http.StatusOK, logs)
}
