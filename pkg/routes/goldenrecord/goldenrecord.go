// Package goldenrecord exposes golden record retrieval, lineage and steward
// field pinning.
package goldenrecord

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/banksia/internal/repositories/goldenrecord"
	"github.com/Ramsey-B/banksia/internal/repositories/override"
	"github.com/Ramsey-B/banksia/pkg/models"
)

// LineageSource resolves cluster lineage from the graph projection.
type LineageSource interface {
	ClusterLineage(ctx context.Context, clusterID string) ([]string, error)
}

// Handler handles golden record routes
type Handler struct {
	goldens   *goldenrecord.Repository
	overrides *override.Repository
	lineage   LineageSource
}

// NewHandler creates a new golden record handler. lineage may be nil when
// the graph database is not configured.
func NewHandler(goldens *goldenrecord.Repository, overrides *override.Repository, lineage LineageSource) *Handler {
	return &Handler{
		goldens:   goldens,
		overrides: overrides,
		lineage:   lineage,
	}
}

// RegisterRoutes registers golden record routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/:cluster_id", h.Get)
	g.GET("/:cluster_id/lineage", h.Lineage)
	g.GET("/:cluster_id/pins", h.ListPins)
	g.PUT("/:cluster_id/fields/:field/pin", h.PinField)
	g.DELETE("/:cluster_id/fields/:field/pin", h.ClearPin)
}

// ListResponse is the paged golden record listing
type ListResponse struct {
	Items      []models.GoldenRecord `json:"items"`
	TotalCount int                   `json:"total_count"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
}

// List returns a page of golden records
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	records, total, err := h.goldens.List(ctx, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ListResponse{
		Items:      records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

// Get returns the golden record for one cluster
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	golden, err := h.goldens.GetByCluster(ctx, c.Param("cluster_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, golden)
}

// Lineage returns the source record ids behind one golden record
func (h *Handler) Lineage(c echo.Context) error {
	ctx := c.Request().Context()

	if h.lineage == nil {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "lineage graph is not configured")
	}

	ids, err := h.lineage.ClusterLineage(ctx, c.Param("cluster_id"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to query lineage")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"cluster_id":        c.Param("cluster_id"),
		"source_record_ids": ids,
	})
}

// ListPins returns the steward pins for one cluster
func (h *Handler) ListPins(c echo.Context) error {
	ctx := c.Request().Context()

	pins, err := h.overrides.ListByCluster(ctx, c.Param("cluster_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pins)
}

// PinField pins a golden record field to a steward-supplied value. The pin
// takes effect on the next resolution run and survives recomputation until
// cleared.
func (h *Handler) PinField(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.PinFieldRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pin := models.StewardOverride{
		ClusterID: c.Param("cluster_id"),
		Field:     c.Param("field"),
		Value:     req.Value,
		PinnedBy:  req.PinnedBy,
	}
	if err := h.overrides.Pin(ctx, pin); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pin)
}

// ClearPin removes a steward pin
func (h *Handler) ClearPin(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.overrides.Clear(ctx, c.Param("cluster_id"), c.Param("field")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
