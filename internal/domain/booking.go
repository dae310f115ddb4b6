package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusProcessed PayoutStatus = "processed"
	PayoutStatusCancelled PayoutStatus = "cancelled"
)

// Booking represents one reservation of a venue or service together with the
// financial terms copied from its listing at creation time.
type Booking struct {
	ID                       uuid.UUID          `json:"id" db:"id"`
	ListingID                string             `json:"listing_id" db:"listing_id"`
	ClientID                 string             `json:"client_id" db:"client_id"`
	TotalAmount              decimal.Decimal    `json:"total_amount" db:"total_amount"`
	CommissionPercentage     decimal.Decimal    `json:"commission_percentage" db:"commission_percentage"`
	TransactionFeePercentage decimal.Decimal    `json:"transaction_fee_percentage" db:"transaction_fee_percentage"`
	CommissionAmount         decimal.Decimal    `json:"commission_amount" db:"commission_amount"`
	TransactionFee           decimal.Decimal    `json:"transaction_fee" db:"transaction_fee"`
	SellerAmount             decimal.Decimal    `json:"seller_amount" db:"seller_amount"`
	AmountPaid               decimal.Decimal    `json:"amount_paid" db:"amount_paid"`
	RefundAmount             decimal.Decimal    `json:"refund_amount" db:"refund_amount"`
	Status                   BookingStatus      `json:"status" db:"status"`
	PaymentStatus            PaymentStatus      `json:"payment_status" db:"payment_status"`
	PayoutStatus             PayoutStatus       `json:"payout_status" db:"payout_status"`
	EventDate                time.Time          `json:"event_date" db:"event_date"`
	BookedAt                 time.Time          `json:"booked_at" db:"booked_at"`
	RefundDeadline           time.Time          `json:"refund_deadline" db:"refund_deadline"`
	PaymentStructure         PaymentPlan        `json:"payment_structure" db:"payment_structure"`
	CancellationPolicy       CancellationPolicy `json:"cancellation_policy" db:"cancellation_policy"`
	LatePaymentPolicy        LatePaymentPolicy  `json:"late_payment_policy" db:"late_payment_policy"`
	ConfirmedAt              *time.Time         `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CancelledAt              *time.Time         `json:"cancelled_at,omitempty" db:"cancelled_at"`
	PayoutProcessedAt        *time.Time         `json:"payout_processed_at,omitempty" db:"payout_processed_at"`
	CompletedAt              *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt                time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at" db:"updated_at"`
}

// IsRetired reports whether the booking reached a terminal state on every axis.
func (b *Booking) IsRetired() bool {
	terminalStatus := b.Status == BookingStatusCompleted || b.Status == BookingStatusCancelled
	terminalPayout := b.PayoutStatus == PayoutStatusProcessed || b.PayoutStatus == PayoutStatusCancelled
	return terminalStatus && terminalPayout
}

// SplitConsistent reports whether the recorded split accounts for the total.
func (b *Booking) SplitConsistent() bool {
	return b.CommissionAmount.Add(b.TransactionFee).Add(b.SellerAmount).Equal(b.TotalAmount)
}

// DTOs for requests and responses

type CreateBookingRequest struct {
	ListingID                string              `json:"listing_id" validate:"required"`
	ClientID                 string              `json:"client_id" validate:"required"`
	TotalAmount              decimal.Decimal     `json:"total_amount" validate:"decimal_gt=0,decimal_places=2"`
	CommissionPercentage     *decimal.Decimal    `json:"commission_percentage,omitempty" validate:"omitempty,decimal_gte=0,decimal_lte=100,decimal_places=2"`
	TransactionFeePercentage *decimal.Decimal    `json:"transaction_fee_percentage,omitempty" validate:"omitempty,decimal_gte=0,decimal_lte=100,decimal_places=2"`
	EventDate                time.Time           `json:"event_date" validate:"required"`
	PaymentStructure         PaymentPlan         `json:"payment_structure"`
	CancellationPolicy       *CancellationPolicy `json:"cancellation_policy,omitempty"`
	LatePaymentPolicy        *LatePaymentPolicy  `json:"late_payment_policy,omitempty"`
}

type CreateBookingResponse struct {
	Booking  *Booking        `json:"booking"`
	Schedule []*PaymentStage `json:"schedule"`
}

// ListingTermsRequest is what a listing form submits for validation before
// the listing is saved.
type ListingTermsRequest struct {
	PaymentStructure   PaymentPlan         `json:"payment_structure"`
	CancellationPolicy *CancellationPolicy `json:"cancellation_policy,omitempty"`
	LatePaymentPolicy  *LatePaymentPolicy  `json:"late_payment_policy,omitempty"`
}

type ListingTermsResponse struct {
	PaymentStructure   PaymentPlan        `json:"payment_structure"`
	CancellationPolicy CancellationPolicy `json:"cancellation_policy"`
	LatePaymentPolicy  LatePaymentPolicy  `json:"late_payment_policy"`
	Schedule           []Stage            `json:"schedule"`
}

type SplitQuoteRequest struct {
	TotalAmount              decimal.Decimal  `json:"total_amount" validate:"decimal_gt=0,decimal_places=2"`
	CommissionPercentage     *decimal.Decimal `json:"commission_percentage,omitempty" validate:"omitempty,decimal_gte=0,decimal_lte=100,decimal_places=2"`
	TransactionFeePercentage *decimal.Decimal `json:"transaction_fee_percentage,omitempty" validate:"omitempty,decimal_gte=0,decimal_lte=100,decimal_places=2"`
}

type SplitResponse struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	TransactionFee   decimal.Decimal `json:"transaction_fee"`
	SellerAmount     decimal.Decimal `json:"seller_amount"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

type RefundQuoteResponse struct {
	BookingID               uuid.UUID       `json:"booking_id"`
	AmountPaid              decimal.Decimal `json:"amount_paid"`
	RefundableAmount        decimal.Decimal `json:"refundable_amount"`
	TransactionFeeDeduction decimal.Decimal `json:"transaction_fee_deduction"`
	ProcessingFee           decimal.Decimal `json:"processing_fee"`
	RefundAmount            decimal.Decimal `json:"refund_amount"`
	WithinNoticePeriod      bool            `json:"within_notice_period"`
}

// TransitionResponse is returned by every lifecycle endpoint. Replayed is true
// when the request repeated a transition that had already been applied.
type TransitionResponse struct {
	Booking  *Booking `json:"booking"`
	Replayed bool     `json:"replayed"`
}
