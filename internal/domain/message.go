package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID          uuid.UUID
	SenderID    uuid.UUID
	RecipientID uuid.UUID
	Content     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MessageRepository persists direct messages. UpdateContent and Delete only touch rows whose sender
// matches senderID and return ErrMessageNotFound when no row was affected.
type MessageRepository interface {
	Create(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*Message, error)
	ListConversation(ctx context.Context, userID, otherID uuid.UUID) ([]Message, error)
	UpdateContent(ctx context.Context, messageID, senderID uuid.UUID, content string) (*Message, error)
	Delete(ctx context.Context, messageID, senderID uuid.UUID) error
}
