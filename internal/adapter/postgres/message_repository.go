package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/reigncloud/reigncloud/internal/domain"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

const messageColumns = `id, sender_id, recipient_id, content, created_at, updated_at`

func scanMessage(row pgx.Row) (domain.Message, error) {
	var m domain.Message
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Content, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (r *MessageRepo) Create(ctx context.Context, senderID, recipientID uuid.UUID, content string) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO messages (sender_id, recipient_id, content) VALUES ($1, $2, $3) RETURNING `+messageColumns,
		senderID, recipientID, content)

	msg, err := scanMessage(row)
	if isPgError(err, pgForeignKeyViolation) {
		return nil, domain.ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &msg, nil
}

// ListConversation returns the messages exchanged between userID and otherID in both directions,
// oldest first.
func (r *MessageRepo) ListConversation(ctx context.Context, userID, otherID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE (sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1)
		 ORDER BY created_at ASC, id ASC`,
		userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}

	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		return scanMessage(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}
	return messages, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, messageID, senderID uuid.UUID, content string) (*domain.Message, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE messages SET content = $3, updated_at = now()
		 WHERE id = $1 AND sender_id = $2
		 RETURNING `+messageColumns,
		messageID, senderID, content)

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	return &msg, nil
}

func (r *MessageRepo) Delete(ctx context.Context, messageID, senderID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1 AND sender_id = $2`, messageID, senderID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}
