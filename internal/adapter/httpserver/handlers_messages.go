package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/reigncloud/reigncloud/internal/domain"
	apperrors "github.com/reigncloud/reigncloud/internal/platform/errors"
)

func (s *Server) registerMessageRoutes() {
	g := s.echo.Group("/api/messages", s.requireAuth())
	g.POST("", s.handleCreateMessage)
	g.GET("", s.handleListMessages)
	g.PUT("/:id", s.handleUpdateMessage)
	g.DELETE("/:id", s.handleDeleteMessage)
}

type createMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

type messageResponse struct {
	ID          uuid.UUID `json:"id"`
	SenderID    uuid.UUID `json:"sender_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newMessageResponse(m *domain.Message) messageResponse {
	return messageResponse{
		ID:          m.ID,
		SenderID:    m.SenderID,
		RecipientID: m.RecipientID,
		Content:     m.Content,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

func callerID(c echo.Context) (uuid.UUID, error) {
	id, ok := c.Get("userID").(uuid.UUID)
	if !ok {
		return uuid.Nil, apperrors.InternalError("invalid user ID in context", nil)
	}
	return id, nil
}

func parseUUIDParam(value, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid UUID format").WithField(field, value)
	}
	return id, nil
}

func (s *Server) handleCreateMessage(c echo.Context) error {
	senderID, err := callerID(c)
	if err != nil {
		return err
	}

	var req createMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	recipientID, err := parseUUIDParam(req.RecipientID, "recipient_id")
	if err != nil {
		return err
	}

	msg, err := s.app.CreateMessage(c.Request().Context(), senderID, recipientID, req.Content)
	if err != nil {
		return domainError(err)
	}

	if err := c.JSON(http.StatusCreated, newMessageResponse(msg)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleListMessages(c echo.Context) error {
	userID, err := callerID(c)
	if err != nil {
		return err
	}

	otherID, err := parseUUIDParam(c.QueryParam("with"), "with")
	if err != nil {
		return err
	}

	msgs, err := s.app.ListConversation(c.Request().Context(), userID, otherID)
	if err != nil {
		return domainError(err)
	}

	resp := make([]messageResponse, 0, len(msgs))
	for i := range msgs {
		resp = append(resp, newMessageResponse(&msgs[i]))
	}
	if err := c.JSON(http.StatusOK, resp); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleUpdateMessage(c echo.Context) error {
	senderID, err := callerID(c)
	if err != nil {
		return err
	}

	messageID, err := parseUUIDParam(c.Param("id"), "id")
	if err != nil {
		return err
	}

	var req updateMessageRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	msg, err := s.app.UpdateMessage(c.Request().Context(), messageID, senderID, req.Content)
	if err != nil {
		return domainError(err)
	}

	if err := c.JSON(http.StatusOK, newMessageResponse(msg)); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleDeleteMessage(c echo.Context) error {
	senderID, err := callerID(c)
	if err != nil {
		return err
	}

	messageID, err := parseUUIDParam(c.Param("id"), "id")
	if err != nil {
		return err
	}

	if err := s.app.DeleteMessage(c.Request().Context(), messageID, senderID); err != nil {
		return domainError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
