package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/segyhp/booking-settlement/internal/queue"
)

type outboxRow struct {
	ID            uuid.UUID `db:"id"`
	EventType     string    `db:"event_type"`
	BookingID     uuid.UUID `db:"booking_id"`
	Payload       []byte    `db:"payload"`
	Attempts      int       `db:"attempts"`
	NextAttemptAt time.Time `db:"next_attempt_at"`
	CreatedAt     time.Time `db:"created_at"`
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*OutboxMessage, error) {
	query := `
		SELECT id, event_type, booking_id, payload, attempts, next_attempt_at, created_at
		FROM outbox
		WHERE published_at IS NULL AND next_attempt_at <= $1
		ORDER BY next_attempt_at, created_at
		LIMIT $2
	`

	var rows []outboxRow
	if err := r.db.SelectContext(ctx, &rows, query, asOf, limit); err != nil {
		return nil, err
	}

	messages := make([]*OutboxMessage, 0, len(rows))
	for _, row := range rows {
		var event queue.Event
		if err := json.Unmarshal(row.Payload, &event); err != nil {
			return nil, fmt.Errorf("decode outbox message %s: %w", row.ID, err)
		}
		messages = append(messages, &OutboxMessage{
			Event:         event,
			Attempts:      row.Attempts,
			NextAttemptAt: row.NextAttemptAt,
		})
	}

	return messages, nil
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE outbox SET published_at = $2, last_error = NULL WHERE id = $1 AND published_at IS NULL`

	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error {
	query := `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = $2, next_attempt_at = $3
		WHERE id = $1 AND published_at IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, id, reason, nextAttemptAt)
	return err
}

func insertOutbox(ctx context.Context, tx *sqlx.Tx, msg *OutboxMessage) error {
	payload, err := json.Marshal(msg.Event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event.Type, err)
	}

	row := outboxRow{
		ID:            msg.Event.ID,
		EventType:     msg.Event.Type,
		BookingID:     msg.Event.BookingID,
		Payload:       payload,
		Attempts:      msg.Attempts,
		NextAttemptAt: msg.NextAttemptAt,
		CreatedAt:     msg.Event.OccurredAt,
	}

	query := `
		INSERT INTO outbox (id, event_type, booking_id, payload, attempts, next_attempt_at, created_at)
		VALUES (:id, :event_type, :booking_id, :payload, :attempts, :next_attempt_at, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("insert outbox %s: %w", msg.Event.Type, err)
	}
	return nil
}
