package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reigncloud/reigncloud/internal/domain"
)

// MessageFrame is the JSON body of a push frame. It carries the same fields as a message returned by
// the messages API, with timestamps in RFC 3339 UTC.
type MessageFrame struct {
	ID          string `json:"id"`
	SenderID    string `json:"sender_id"`
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func NewMessageFrame(msg *domain.Message) MessageFrame {
	return MessageFrame{
		ID:          msg.ID.String(),
		SenderID:    msg.SenderID.String(),
		RecipientID: msg.RecipientID.String(),
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   msg.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Gateway is the entry point the message service uses to push to a user.
type Gateway struct {
	registry *Registry
}

func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

// Deliver pushes msg to every live connection of userID. It never blocks on a connection and never
// fails the caller: encoding problems are logged and the push is skipped.
func (g *Gateway) Deliver(ctx context.Context, userID uuid.UUID, msg *domain.Message) {
	payload, err := json.Marshal(NewMessageFrame(msg))
	if err != nil {
		slog.ErrorContext(ctx, "Failed to encode push frame", "message_id", msg.ID, "error", err)
		return
	}

	delivered := g.registry.Broadcast(userID, payload)
	slog.DebugContext(ctx, "Pushed message", "message_id", msg.ID, "user_id", userID, "connections", delivered)
}
