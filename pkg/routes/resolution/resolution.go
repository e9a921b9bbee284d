// Package resolution exposes run triggering and run report retrieval.
package resolution

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/banksia/pkg/models"
	"github.com/Ramsey-B/banksia/pkg/resolution"
)

// EdgeStore retrieves and reviews persisted match edges.
type EdgeStore interface {
	ListByRun(ctx context.Context, runID string) ([]models.MatchEdge, error)
	UpdateReviewStatus(ctx context.Context, edgeID string, status models.ReviewStatus) error
}

// Handler handles resolution routes
type Handler struct {
	service *resolution.Service
	edges   EdgeStore
}

// NewHandler creates a new resolution handler
func NewHandler(service *resolution.Service, edges EdgeStore) *Handler {
	return &Handler{service: service, edges: edges}
}

// RegisterRoutes registers resolution routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/runs", h.Run)
	g.GET("/runs/:runId/edges", h.Edges)
	g.PUT("/edges/:edgeId/review", h.Review)
	g.GET("/report", h.Report)
}

// Run triggers a full resolution run and returns its report
func (h *Handler) Run(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.RunRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	report, err := h.service.Run(ctx, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

// Edges returns every match edge stored for a run, highest similarity first
func (h *Handler) Edges(c echo.Context) error {
	ctx := c.Request().Context()

	edges, err := h.edges.ListByRun(ctx, c.Param("runId"))
	if err != nil {
		return err
	}
	if edges == nil {
		edges = []models.MatchEdge{}
	}
	return c.JSON(http.StatusOK, edges)
}

// Review records a steward decision on one edge
func (h *Handler) Review(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.edges.UpdateReviewStatus(ctx, c.Param("edgeId"), req.Status); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Report returns the most recent run report
func (h *Handler) Report(c echo.Context) error {
	report := h.service.LastReport()
	if report == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no resolution run has completed yet")
	}
	return c.JSON(http.StatusOK, report)
}
