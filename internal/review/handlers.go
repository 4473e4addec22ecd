package review

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/tagreview/internal/api/auth"
)

// Handlers exposes the review HTTP surface.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new review handlers instance
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// Register attaches the review routes to the given group. The group is
// expected to carry authentication middleware already.
func (h *Handlers) Register(g *echo.Group) {
	g.GET("/revisionreviews", h.list)
	g.POST("/revisionreviews", h.create)
	g.GET("/revisionreviews/:id", h.get)
	g.GET("/revisionreviews/tag/:id", h.listForTag)
	g.GET("/revisionreviews/project/:id", h.listForProject)
}

func (h *Handlers) get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	dto, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("review_id", id).Msg("failed to get review")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get review")
	}
	if dto == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Review not found")
	}

	return c.JSON(http.StatusOK, dto)
}

func (h *Handlers) list(c echo.Context) error {
	dtos, err := h.service.List(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to list reviews")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list reviews")
	}

	return c.JSON(http.StatusOK, dtos)
}

func (h *Handlers) listForTag(c echo.Context) error {
	tagID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid tag ID")
	}

	dtos, err := h.service.ListForTag(c.Request().Context(), tagID)
	if err != nil {
		log.Error().Err(err).Int64("tag_id", tagID).Msg("failed to list reviews for tag")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list reviews")
	}

	return c.JSON(http.StatusOK, dtos)
}

func (h *Handlers) listForProject(c echo.Context) error {
	projectID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid project ID")
	}

	dtos, err := h.service.ListForProject(c.Request().Context(), projectID)
	if err != nil {
		log.Error().Err(err).Int64("project_id", projectID).Msg("failed to list reviews for project")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list reviews")
	}

	return c.JSON(http.StatusOK, dtos)
}

func (h *Handlers) create(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not found in context")
	}

	var dto CreateDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if dto.ContainerID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "containerId is required")
	}

	created, err := h.service.Create(c.Request().Context(), dto, user.ID)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Error().Err(err).Int64("container_id", dto.ContainerID).Msg("failed to create review")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create review")
	}

	return c.JSON(http.StatusCreated, created)
}
