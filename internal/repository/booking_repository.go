package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

const bookingColumns = `
	id, listing_id, client_id, total_amount, commission_percentage, transaction_fee_percentage,
	commission_amount, transaction_fee, seller_amount, amount_paid, refund_amount,
	status, payment_status, payout_status, event_date, booked_at, refund_deadline,
	payment_structure, cancellation_policy, late_payment_policy,
	confirmed_at, cancelled_at, payout_processed_at, completed_at, created_at, updated_at`

const stageColumns = `
	id, booking_id, sequence, stage_name, percentage, due_rule, due_days, due_date,
	amount_due, late_fee, status, paid_at, created_at`

type bookingRepository struct {
	db *sqlx.DB
}

func NewBookingRepository(db *sqlx.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *domain.Booking, stages []*domain.PaymentStage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES (
			:id, :listing_id, :client_id, :total_amount, :commission_percentage, :transaction_fee_percentage,
			:commission_amount, :transaction_fee, :seller_amount, :amount_paid, :refund_amount,
			:status, :payment_status, :payout_status, :event_date, :booked_at, :refund_deadline,
			:payment_structure, :cancellation_policy, :late_payment_policy,
			:confirmed_at, :cancelled_at, :payout_processed_at, :completed_at, :created_at, :updated_at
		)
	`
	if _, err = tx.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	stageQuery := `
		INSERT INTO payment_stages (` + stageColumns + `)
		VALUES (
			:id, :booking_id, :sequence, :stage_name, :percentage, :due_rule, :due_days, :due_date,
			:amount_due, :late_fee, :status, :paid_at, :created_at
		)
	`
	for _, stage := range stages {
		if _, err = tx.NamedExecContext(ctx, stageQuery, stage); err != nil {
			return fmt.Errorf("insert stage %d: %w", stage.Sequence, err)
		}
	}

	return tx.Commit()
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var booking domain.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *bookingRepository) GetStages(ctx context.Context, bookingID uuid.UUID) ([]*domain.PaymentStage, error) {
	return selectStages(ctx, r.db, bookingID)
}

func (r *bookingRepository) Transition(ctx context.Context, id uuid.UUID, fn TransitionFunc) (*domain.Booking, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var booking domain.Booking
	lockQuery := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &booking, lockQuery, id); err != nil {
		return nil, err
	}

	stages, err := selectStages(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	mutation, err := fn(&booking, stages)
	if err != nil {
		return &booking, err
	}

	updateQuery := `
		UPDATE bookings
		SET amount_paid = :amount_paid, refund_amount = :refund_amount,
			status = :status, payment_status = :payment_status, payout_status = :payout_status,
			confirmed_at = :confirmed_at, cancelled_at = :cancelled_at,
			payout_processed_at = :payout_processed_at, completed_at = :completed_at,
			updated_at = :updated_at
		WHERE id = :id
	`
	if _, err = tx.NamedExecContext(ctx, updateQuery, &booking); err != nil {
		return nil, fmt.Errorf("update booking: %w", err)
	}

	if mutation != nil {
		if mutation.Payment != nil {
			if err = insertPayment(ctx, tx, mutation.Payment); err != nil {
				return nil, err
			}
		}
		if mutation.PaidStage != nil {
			stageQuery := `
				UPDATE payment_stages
				SET status = :status, paid_at = :paid_at, late_fee = :late_fee
				WHERE id = :id
			`
			if _, err = tx.NamedExecContext(ctx, stageQuery, mutation.PaidStage); err != nil {
				return nil, fmt.Errorf("update stage %d: %w", mutation.PaidStage.Sequence, err)
			}
		}
		for _, msg := range mutation.Outbox {
			if err = insertOutbox(ctx, tx, msg); err != nil {
				return nil, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &booking, nil
}

func (r *bookingRepository) ListOverdueStages(ctx context.Context, asOf time.Time, after uuid.UUID, limit int) ([]*OverdueStage, error) {
	query := `
		SELECT s.id, s.booking_id, s.sequence, s.stage_name, s.percentage, s.due_rule, s.due_days,
			s.due_date, s.amount_due, s.late_fee, s.status, s.paid_at, s.created_at,
			b.late_payment_policy
		FROM payment_stages s
		JOIN bookings b ON b.id = s.booking_id
		WHERE s.status <> 'paid' AND s.due_date < $1
			AND b.status NOT IN ('cancelled', 'completed')
			AND s.id > $2
		ORDER BY s.id
		LIMIT $3
	`

	var stages []*OverdueStage
	if err := r.db.SelectContext(ctx, &stages, query, asOf, after, limit); err != nil {
		return nil, err
	}

	return stages, nil
}

func (r *bookingRepository) UpdateStageLateFee(ctx context.Context, stageID uuid.UUID, lateFee decimal.Decimal) error {
	query := `
		UPDATE payment_stages
		SET late_fee = $2, status = 'overdue'
		WHERE id = $1 AND status <> 'paid'
	`

	_, err := r.db.ExecContext(ctx, query, stageID, lateFee)
	return err
}

func (r *bookingRepository) ListPayoutCandidates(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT b.id
		FROM bookings b
		WHERE b.payment_status = 'paid' AND b.payout_status = 'pending'
			AND b.status <> 'cancelled' AND b.refund_deadline <= $1
			AND NOT EXISTS (
				SELECT 1 FROM payment_stages s WHERE s.booking_id = b.id AND s.status <> 'paid'
			)
		ORDER BY b.refund_deadline
		LIMIT $2
	`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, asOf, limit); err != nil {
		return nil, err
	}

	return ids, nil
}

func selectStages(ctx context.Context, q sqlx.QueryerContext, bookingID uuid.UUID) ([]*domain.PaymentStage, error) {
	query := `SELECT ` + stageColumns + ` FROM payment_stages WHERE booking_id = $1 ORDER BY sequence`

	var stages []*domain.PaymentStage
	if err := sqlx.SelectContext(ctx, q, &stages, query, bookingID); err != nil {
		return nil, err
	}

	return stages, nil
}

func insertPayment(ctx context.Context, tx *sqlx.Tx, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, booking_id, stage_sequence, amount, commission_amount,
			transaction_fee, seller_amount, reference, created_at)
		VALUES (:id, :booking_id, :stage_sequence, :amount, :commission_amount,
			:transaction_fee, :seller_amount, :reference, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, query, payment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsTransient reports whether err is a storage failure worth retrying:
// serialization failures, deadlocks and dropped connections.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return true
		}
		return pqErr.Code.Class() == "08"
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn)
}
