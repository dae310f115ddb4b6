package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/shopspring/decimal"
)

const paymentColumns = `
	id, booking_id, stage_sequence, amount, commission_amount, transaction_fee,
	seller_amount, reference, created_at`

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, reference); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1 ORDER BY stage_sequence, created_at`

	var payments []*domain.Payment
	if err := r.db.SelectContext(ctx, &payments, query, bookingID); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *paymentRepository) GetTotalPaid(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE booking_id = $1`

	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, bookingID); err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
