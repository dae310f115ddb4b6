package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/segyhp/booking-settlement/internal/queue"
	"github.com/segyhp/booking-settlement/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock

	mu        sync.Mutex
	committed []*repository.Mutation
}

// Committed returns the mutations of the transitions that succeeded.
func (m *MockBookingRepository) Committed() []*repository.Mutation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*repository.Mutation(nil), m.committed...)
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking, stages []*domain.PaymentStage) error {
	args := m.Called(ctx, booking, stages)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetStages(ctx context.Context, bookingID uuid.UUID) ([]*domain.PaymentStage, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PaymentStage), args.Error(1)
}

// Transition hands fn the booking and stages registered with the expectation:
//
//	repo.On("Transition", mock.Anything, id, mock.Anything).Return(booking, stages, nil)
//
// A non-nil error in the third slot is returned without calling fn.
func (m *MockBookingRepository) Transition(ctx context.Context, id uuid.UUID, fn repository.TransitionFunc) (*domain.Booking, error) {
	args := m.Called(ctx, id, fn)
	if err := args.Error(2); err != nil {
		return nil, err
	}

	booking := *args.Get(0).(*domain.Booking)
	var stages []*domain.PaymentStage
	for _, s := range args.Get(1).([]*domain.PaymentStage) {
		cp := *s
		stages = append(stages, &cp)
	}

	mutation, err := fn(&booking, stages)
	if err != nil {
		return &booking, err
	}
	if mutation != nil {
		m.mu.Lock()
		m.committed = append(m.committed, mutation)
		m.mu.Unlock()
	}
	return &booking, nil
}

func (m *MockBookingRepository) ListOverdueStages(ctx context.Context, asOf time.Time, after uuid.UUID, limit int) ([]*repository.OverdueStage, error) {
	args := m.Called(ctx, asOf, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.OverdueStage), args.Error(1)
}

func (m *MockBookingRepository) UpdateStageLateFee(ctx context.Context, stageID uuid.UUID, lateFee decimal.Decimal) error {
	args := m.Called(ctx, stageID, lateFee)
	return args.Error(0)
}

func (m *MockBookingRepository) ListPayoutCandidates(ctx context.Context, asOf time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*repository.OutboxMessage, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.OutboxMessage), args.Error(1)
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, nextAttemptAt time.Time) error {
	args := m.Called(ctx, id, reason, nextAttemptAt)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*domain.Payment, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepository) GetTotalPaid(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, bookingID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockBookingCache struct {
	mock.Mock
}

func (m *MockBookingCache) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingCache) Set(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event queue.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
