package conversation

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/tagreview/internal/api/auth"
)

// Handlers exposes conversation and message endpoints.
type Handlers struct {
	service *Service
}

// NewHandlers creates a new conversation handlers instance
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// Register mounts the conversation routes on the given group.
func (h *Handlers) Register(g *echo.Group) {
	g.GET("/tag/reviews/:reviewId/conversations", h.List)
	g.POST("/tag/reviews/:reviewId/conversations", h.Create)
	g.GET("/tag/conversations/:conversationId", h.Get)
	g.GET("/tag/conversations/:conversationId/messages", h.ListMessages)
	g.POST("/tag/conversations/:conversationId/messages", h.AddMessage)
	g.GET("/tag/conversations/messages/:messageId", h.GetMessage)
	g.PUT("/tag/conversations/messages/:messageId", h.UpdateMessage)
	g.DELETE("/tag/conversations/messages/:messageId", h.DeleteMessage)
}

// List handles GET /tag/reviews/:reviewId/conversations
func (h *Handlers) List(c echo.Context) error {
	reviewID, err := strconv.ParseInt(c.Param("reviewId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}
	includeLatest, _ := strconv.ParseBool(c.QueryParam("includeLatestMessage"))

	conversations, err := h.service.List(c.Request().Context(), reviewID, includeLatest)
	if err != nil {
		log.Error().Err(err).Int64("review_id", reviewID).Msg("failed to list conversations")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list conversations")
	}

	return c.JSON(http.StatusOK, conversations)
}

// Create handles POST /tag/reviews/:reviewId/conversations
func (h *Handlers) Create(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	reviewID, err := strconv.ParseInt(c.Param("reviewId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid review ID")
	}

	var dto CreateDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	created, err := h.service.Create(c.Request().Context(), reviewID, dto, user.ID)
	if err != nil {
		if errors.Is(err, ErrUnknownProperty) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if errors.Is(err, ErrReviewNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Review not found")
		}
		log.Error().Err(err).Int64("review_id", reviewID).Msg("failed to create conversation")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create conversation")
	}

	return c.JSON(http.StatusCreated, created)
}

// Get handles GET /tag/conversations/:conversationId
func (h *Handlers) Get(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid conversation ID")
	}

	conv, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("conversation_id", id).Msg("failed to get conversation")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get conversation")
	}
	if conv == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
	}

	return c.JSON(http.StatusOK, conv)
}

// ListMessages handles GET /tag/conversations/:conversationId/messages
func (h *Handlers) ListMessages(c echo.Context) error {
	conversationID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid conversation ID")
	}

	messages, err := h.service.ListMessages(c.Request().Context(), conversationID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
		}
		log.Error().Err(err).Int64("conversation_id", conversationID).Msg("failed to list messages")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list messages")
	}

	return c.JSON(http.StatusOK, messages)
}

// AddMessage handles POST /tag/conversations/:conversationId/messages
func (h *Handlers) AddMessage(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	conversationID, err := strconv.ParseInt(c.Param("conversationId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid conversation ID")
	}

	var dto AddMessageDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if dto.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	msg, err := h.service.AddMessage(c.Request().Context(), conversationID, dto, user.ID)
	if err != nil {
		if errors.Is(err, ErrConversationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Conversation not found")
		}
		log.Error().Err(err).Int64("conversation_id", conversationID).Msg("failed to add message")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to add message")
	}

	return c.JSON(http.StatusCreated, msg)
}

// GetMessage handles GET /tag/conversations/messages/:messageId
func (h *Handlers) GetMessage(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message ID")
	}

	msg, err := h.service.GetMessage(c.Request().Context(), id)
	if err != nil {
		log.Error().Err(err).Int64("message_id", id).Msg("failed to get message")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to get message")
	}
	if msg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	}

	return c.JSON(http.StatusOK, msg)
}

// UpdateMessage handles PUT /tag/conversations/messages/:messageId
func (h *Handlers) UpdateMessage(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message ID")
	}

	var dto UpdateMessageDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if dto.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content is required")
	}

	msg, err := h.service.UpdateMessage(c.Request().Context(), id, dto)
	if err != nil {
		log.Error().Err(err).Int64("message_id", id).Msg("failed to update message")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update message")
	}
	if msg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	}

	return c.JSON(http.StatusOK, msg)
}

// DeleteMessage handles DELETE /tag/conversations/messages/:messageId
func (h *Handlers) DeleteMessage(c echo.Context) error {
	user := auth.GetUser(c)
	if user == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	id, err := strconv.ParseInt(c.Param("messageId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid message ID")
	}

	msg, err := h.service.DeleteMessage(c.Request().Context(), id, user.ID)
	if err != nil {
		if errors.Is(err, ErrNotAuthor) {
			return echo.NewHTTPError(http.StatusForbidden, err.Error())
		}
		log.Error().Err(err).Int64("message_id", id).Msg("failed to delete message")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to delete message")
	}
	if msg == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	}

	return c.JSON(http.StatusOK, msg)
}
