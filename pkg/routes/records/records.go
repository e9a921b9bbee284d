// Package records exposes patient record ingestion and retrieval.
package records

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/banksia/internal/repositories/patientrecord"
	"github.com/Ramsey-B/banksia/pkg/models"
)

// Handler handles patient record routes
type Handler struct {
	repo *patientrecord.Repository
}

// NewHandler creates a new record handler
func NewHandler(repo *patientrecord.Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes registers record routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Ingest)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

// Ingest stores a new patient record
func (h *Handler) Ingest(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.IngestRecordRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ingestedAt := time.Now().UTC()
	if req.IngestedAt != nil {
		ingestedAt = req.IngestedAt.UTC()
	}

	rec := &models.Record{
		RecordID:     req.RecordID,
		SourceSystem: req.SourceSystem,
		IngestedAt:   ingestedAt,
		Fields:       req.Fields,
	}
	if err := h.repo.Create(ctx, rec); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, rec)
}

// List returns a page of records
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	resp, err := h.repo.List(ctx, page, pageSize)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// Get returns one record by id
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id := c.Param("id")
	if id == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "record id is required")
	}

	rec, err := h.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}
