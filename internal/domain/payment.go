package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one posted payment against a schedule stage, with the split of
// that amount recorded at posting time.
type Payment struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	BookingID        uuid.UUID       `json:"booking_id" db:"booking_id"`
	StageSequence    int             `json:"stage_sequence" db:"stage_sequence"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount" db:"commission_amount"`
	TransactionFee   decimal.Decimal `json:"transaction_fee" db:"transaction_fee"`
	SellerAmount     decimal.Decimal `json:"seller_amount" db:"seller_amount"`
	Reference        string          `json:"reference" db:"reference"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"decimal_gt=0,decimal_places=2"`
	Reference string          `json:"reference" validate:"required,max=128"`
}

// RecordPaymentResponse is returned for both new and repeated gateway
// callbacks. Replayed is true when the reference had already been recorded.
type RecordPaymentResponse struct {
	Booking  *Booking      `json:"booking"`
	Payment  *Payment      `json:"payment"`
	Stage    *PaymentStage `json:"stage"`
	Replayed bool          `json:"replayed"`
}

type PaymentsResponse struct {
	BookingID uuid.UUID       `json:"booking_id"`
	Payments  []*Payment      `json:"payments"`
	TotalPaid decimal.Decimal `json:"total_paid"`
}
