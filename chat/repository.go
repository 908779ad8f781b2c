package chat

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides access to chat messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const messageColumns = `id, sender_id, receiver_id, message, type, sent_at`

// Create inserts a new message.
func (r *Repository) Create(ctx context.Context, params CreateParams) (Message, error) {
	query := fmt.Sprintf(`
		INSERT INTO chat_messages (sender_id, receiver_id, message, type)
		VALUES ($1, $2, $3, $4)
		RETURNING %s
	`, messageColumns)

	msg, err := scanMessage(r.pool.QueryRow(ctx, query, params.SenderID, params.ReceiverID, params.Body, params.Type))
	if err != nil {
		return Message{}, fmt.Errorf("chat: insert message: %w", err)
	}
	return msg, nil
}

// List fetches messages oldest first, optionally restricted to a participant.
func (r *Repository) List(ctx context.Context, filters Filters) ([]Message, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_messages`, messageColumns)
	args := []any{}
	if filters.ParticipantID != "" {
		query += ` WHERE sender_id = $1 OR receiver_id = $1`
		args = append(args, filters.ParticipantID)
	}
	query += ` ORDER BY sent_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("chat: list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}

	return messages, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Body,
		&msg.Type,
		&msg.SentAt,
	)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}
