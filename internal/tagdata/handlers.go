package tagdata

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// Handlers exposes tag data and revision container endpoints.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new tag data handlers instance
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// Register mounts the tag data routes on the given group.
func (h *Handlers) Register(g *echo.Group) {
	g.GET("/tagdata/:id", h.GetTag)
	g.GET("/projects/:id/tagdata", h.ListTagsForProject)
	g.GET("/revisioncontainers", h.ListContainers)
	g.POST("/revisioncontainers", h.CreateContainer)
	g.GET("/revisioncontainers/:id", h.GetContainer)
	g.GET("/revisioncontainers/:id/tags", h.ListContainerTags)
	g.GET("/revisioncontainers/:id/export", h.ExportContainer)
}

// GetTag handles GET /tagdata/:id
func (h *Handlers) GetTag(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid tag ID")
	}

	tag, err := h.service.GetTag(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("tag_id", id).Msg("failed to get tag")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get tag")
	}
	if tag == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Tag not found")
	}

	return c.JSON(http.StatusOK, tag)
}

// ListTagsForProject handles GET /projects/:id/tagdata
func (h *Handlers) ListTagsForProject(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid project ID")
	}

	tags, err := h.service.ListTagsForProject(c.Request().Context(), projectID)
	if err != nil {
		log.Error().Err(err).Int64("project_id", projectID).Msg("failed to list tags")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list tags")
	}

	return c.JSON(http.StatusOK, tags)
}

// ListContainers handles GET /revisioncontainers
func (h *Handlers) ListContainers(c echo.Context) error {
	containers, err := h.service.ListContainers(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list containers")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list containers")
	}

	return c.JSON(http.StatusOK, containers)
}

// CreateContainer handles POST /revisioncontainers
func (h *Handlers) CreateContainer(c echo.Context) error {
	var dto CreateContainerDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if dto.ProjectID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "projectId is required")
	}
	if dto.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if dto.RevisionCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "revisionCode is required")
	}

	container, err := h.service.CreateContainer(c.Request().Context(), dto)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) || errors.Is(err, ErrTagNotInProject) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Int64("project_id", dto.ProjectID).Msg("failed to create container")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create container")
	}

	return c.JSON(http.StatusCreated, container)
}

// GetContainer handles GET /revisioncontainers/:id
func (h *Handlers) GetContainer(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid container ID")
	}

	container, err := h.service.GetContainer(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("container_id", id).Msg("failed to get container")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get container")
	}
	if container == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Container not found")
	}

	return c.JSON(http.StatusOK, container)
}

// ListContainerTags handles GET /revisioncontainers/:id/tags
func (h *Handlers) ListContainerTags(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid container ID")
	}

	tags, err := h.service.ListTagsForContainer(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("container_id", id).Msg("failed to list container tags")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list tags")
	}
	if tags == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Container not found")
	}

	return c.JSON(http.StatusOK, tags)
}

// ExportContainer handles GET /revisioncontainers/:id/export
func (h *Handlers) ExportContainer(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid container ID")
	}

	container, err := h.service.GetContainer(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("container_id", id).Msg("failed to get container for export")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to export container")
	}
	if container == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Container not found")
	}

	filename := fmt.Sprintf("%s-rev-%s.xlsx", container.Name, container.RevisionCode)
	c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	c.Response().WriteHeader(http.StatusOK)

	if err := WriteContainerWorkbook(c.Response(), container); err != nil {
		// Headers are already out; all we can do is log the failure.
		log.Error().Err(err).Int64("container_id", id).Msg("failed to stream workbook")
		return err
	}
	return nil
}
