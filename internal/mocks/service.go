package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockSettlementService struct {
	mock.Mock
}

func (m *MockSettlementService) ValidateListingTerms(ctx context.Context, request *domain.ListingTermsRequest) (*domain.ListingTermsResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ListingTermsResponse), args.Error(1)
}

func (m *MockSettlementService) QuoteSplit(ctx context.Context, request *domain.SplitQuoteRequest) (*domain.SplitResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SplitResponse), args.Error(1)
}

func (m *MockSettlementService) CreateBooking(ctx context.Context, request *domain.CreateBookingRequest) (*domain.CreateBookingResponse, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreateBookingResponse), args.Error(1)
}

func (m *MockSettlementService) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockSettlementService) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ScheduleResponse), args.Error(1)
}

func (m *MockSettlementService) ListPayments(ctx context.Context, id uuid.UUID) (*domain.PaymentsResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentsResponse), args.Error(1)
}

func (m *MockSettlementService) ConfirmBooking(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error) {
	return m.transition(m.Called(ctx, id))
}

func (m *MockSettlementService) RecordPayment(ctx context.Context, id uuid.UUID, request *domain.RecordPaymentRequest) (*domain.RecordPaymentResponse, error) {
	args := m.Called(ctx, id, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RecordPaymentResponse), args.Error(1)
}

func (m *MockSettlementService) QuoteRefund(ctx context.Context, id uuid.UUID) (*domain.RefundQuoteResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundQuoteResponse), args.Error(1)
}

func (m *MockSettlementService) CancelBooking(ctx context.Context, id uuid.UUID, request *domain.CancelBookingRequest) (*domain.TransitionResponse, error) {
	return m.transition(m.Called(ctx, id, request))
}

func (m *MockSettlementService) ProcessPayout(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error) {
	return m.transition(m.Called(ctx, id))
}

func (m *MockSettlementService) CompleteBooking(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error) {
	return m.transition(m.Called(ctx, id))
}

func (m *MockSettlementService) transition(args mock.Arguments) (*domain.TransitionResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransitionResponse), args.Error(1)
}

// NewMockSettlementService creates a new mock settlement service instance
func NewMockSettlementService() *MockSettlementService {
	return &MockSettlementService{}
}
