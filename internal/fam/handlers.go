package fam

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/tagreview/pkg/models"
)

type projectGetter interface {
	GetProject(ctx context.Context, id int64) (*models.Project, error)
}

// Handlers exposes sheet upload and import run endpoints.
type Handlers struct {
	ingestor *Ingestor
	store    *Store
	projects projectGetter
}

// NewHandlers creates a new FAM handlers instance
func NewHandlers(ingestor *Ingestor, store *Store, projects projectGetter) *Handlers {
	return &Handlers{ingestor: ingestor, store: store, projects: projects}
}

// Register mounts the import routes on the given group.
func (h *Handlers) Register(g *echo.Group) {
	g.POST("/projects/:id/imports", h.Upload)
	g.GET("/projects/:id/imports", h.ListImportRuns)
	g.GET("/imports/:id", h.GetImportRun)
}

// Upload handles POST /projects/:id/imports
func (h *Handlers) Upload(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid project ID")
	}

	project, err := h.projects.GetProject(c.Request().Context(), projectID)
	if err != nil {
		log.Error().Err(err).Int64("project_id", projectID).Msg("failed to check project")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to check project")
	}
	if project == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Project not found")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}

	run, err := h.ingestor.IngestSheet(c.Request().Context(), project.ID, fileHeader.Filename, payload)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrMalformedSheet) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Int64("project_id", projectID).Str("file", fileHeader.Filename).Msg("sheet ingestion failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to ingest sheet")
	}

	return c.JSON(http.StatusCreated, run)
}

// ListImportRuns handles GET /projects/:id/imports
func (h *Handlers) ListImportRuns(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid project ID")
	}

	runs, err := h.store.ListImportRuns(c.Request().Context(), projectID)
	if err != nil {
		log.Error().Err(err).Int64("project_id", projectID).Msg("failed to list import runs")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list import runs")
	}

	return c.JSON(http.StatusOK, runs)
}

// GetImportRun handles GET /imports/:id
func (h *Handlers) GetImportRun(c echo.Context) error {
	run, err := h.store.GetImportRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Error().Err(err).Str("import_run", c.Param("id")).Msg("failed to get import run")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get import run")
	}
	if run == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Import run not found")
	}

	return c.JSON(http.StatusOK, run)
}
