package domain

import (
	"context"

	"github.com/google/uuid"
)

// MessagePusher delivers a persisted message to the live connections of one user. Delivery is best
// effort: implementations never return an error and never block on a connection.
type MessagePusher interface {
	Deliver(ctx context.Context, userID uuid.UUID, msg *Message)
}
