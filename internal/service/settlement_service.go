package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/segyhp/booking-settlement/internal/config"
	"github.com/segyhp/booking-settlement/internal/domain"
	"github.com/segyhp/booking-settlement/internal/lifecycle"
	"github.com/segyhp/booking-settlement/internal/logger"
	"github.com/segyhp/booking-settlement/internal/queue"
	"github.com/segyhp/booking-settlement/internal/repository"
	"github.com/segyhp/booking-settlement/internal/settlement"
	customError "github.com/segyhp/booking-settlement/pkg/errors"
	"github.com/segyhp/booking-settlement/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BookingCache is the read-through cache in front of the booking store.
type BookingCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	Set(ctx context.Context, booking *domain.Booking) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

type SettlementService struct {
	BookingRepo repository.BookingRepository
	PaymentRepo repository.PaymentRepository
	OutboxRepo  repository.OutboxRepository
	cache       BookingCache
	publisher   queue.Publisher
	config      *config.Config
	now         func() time.Time
}

func NewSettlementService(
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	outboxRepo repository.OutboxRepository,
	cache BookingCache,
	publisher queue.Publisher,
	config *config.Config,
) *SettlementService {
	return &SettlementService{
		BookingRepo: bookingRepo,
		PaymentRepo: paymentRepo,
		OutboxRepo:  outboxRepo,
		cache:       cache,
		publisher:   publisher,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ValidateListingTerms checks the terms a listing form is about to save and
// returns them with defaults filled in, plus the schedule they resolve to.
func (s *SettlementService) ValidateListingTerms(ctx context.Context, request *domain.ListingTermsRequest) (*domain.ListingTermsResponse, error) {
	cancellation, late, err := resolveTerms(request.PaymentStructure, request.CancellationPolicy, request.LatePaymentPolicy)
	if err != nil {
		return nil, err
	}

	stages, err := settlement.ResolveSchedule(request.PaymentStructure.PaymentStructure)
	if err != nil {
		return nil, err
	}

	return &domain.ListingTermsResponse{
		PaymentStructure:   request.PaymentStructure,
		CancellationPolicy: cancellation,
		LatePaymentPolicy:  late,
		Schedule:           stages,
	}, nil
}

// QuoteSplit previews the commission/fee split of a total.
func (s *SettlementService) QuoteSplit(ctx context.Context, request *domain.SplitQuoteRequest) (*domain.SplitResponse, error) {
	commission, fee := s.rates(request.CommissionPercentage, request.TransactionFeePercentage)

	split, err := settlement.SplitPayment(request.TotalAmount, commission, fee)
	if err != nil {
		return nil, err
	}

	return &domain.SplitResponse{
		TotalAmount:      request.TotalAmount,
		CommissionAmount: split.CommissionAmount,
		TransactionFee:   split.TransactionFee,
		SellerAmount:     split.SellerAmount,
	}, nil
}

// CreateBooking copies the listing terms onto a new booking, records its split
// and materializes the payment schedule.
func (s *SettlementService) CreateBooking(ctx context.Context, request *domain.CreateBookingRequest) (*domain.CreateBookingResponse, error) {
	cancellation, late, err := resolveTerms(request.PaymentStructure, request.CancellationPolicy, request.LatePaymentPolicy)
	if err != nil {
		return nil, err
	}

	commission, fee := s.rates(request.CommissionPercentage, request.TransactionFeePercentage)
	split, err := settlement.SplitPayment(request.TotalAmount, commission, fee)
	if err != nil {
		return nil, err
	}

	now := s.now()
	eventDate := request.EventDate.UTC()

	dated, err := settlement.MaterializeSchedule(request.PaymentStructure.PaymentStructure, now, eventDate)
	if err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		ID:                       uuid.New(),
		ListingID:                request.ListingID,
		ClientID:                 request.ClientID,
		TotalAmount:              request.TotalAmount,
		CommissionPercentage:     commission,
		TransactionFeePercentage: fee,
		CommissionAmount:         split.CommissionAmount,
		TransactionFee:           split.TransactionFee,
		SellerAmount:             split.SellerAmount,
		AmountPaid:               decimal.Zero,
		RefundAmount:             decimal.Zero,
		Status:                   domain.BookingStatusPending,
		PaymentStatus:            domain.PaymentStatusPending,
		PayoutStatus:             domain.PayoutStatusPending,
		EventDate:                eventDate,
		BookedAt:                 now,
		RefundDeadline:           settlement.RefundDeadline(eventDate, cancellation),
		PaymentStructure:         request.PaymentStructure,
		CancellationPolicy:       cancellation,
		LatePaymentPolicy:        late,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	plain := make([]domain.Stage, len(dated))
	for i, d := range dated {
		plain[i] = d.Stage
	}
	amounts := settlement.StageAmounts(booking.TotalAmount, plain)

	stages := make([]*domain.PaymentStage, 0, len(dated))
	for i, d := range dated {
		stages = append(stages, &domain.PaymentStage{
			ID:         uuid.New(),
			BookingID:  booking.ID,
			Sequence:   i + 1,
			Name:       d.Name,
			Percentage: d.Percentage,
			DueRule:    d.Due.Kind,
			DueDays:    d.Due.Days,
			DueDate:    d.DueDate,
			AmountDue:  amounts[i],
			LateFee:    decimal.Zero,
			Status:     domain.StageStatusPending,
			CreatedAt:  now,
		})
	}

	if err := s.BookingRepo.Create(ctx, booking, stages); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	s.cacheBooking(ctx, booking)

	logger.WithBooking(booking.ID.String()).WithFields(logrus.Fields{
		"payment_type":  booking.PaymentStructure.Kind(),
		"total_amount":  booking.TotalAmount.StringFixed(2),
		"seller_amount": booking.SellerAmount.StringFixed(2),
	}).Info("booking created")

	return &domain.CreateBookingResponse{Booking: booking, Schedule: stages}, nil
}

// GetBooking returns a booking, from cache when possible.
func (s *SettlementService) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	if cached, err := s.cache.Get(ctx, id); err != nil {
		logger.WithBooking(id.String()).WithError(err).Warn("booking cache read failed")
	} else if cached != nil {
		return cached, nil
	}

	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheBooking(ctx, booking)
	return booking, nil
}

// loadBooking reads a booking from storage, bypassing the cache.
func (s *SettlementService) loadBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	booking, err := s.BookingRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, customError.WrapBookingNotFound(id.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return booking, nil
}

// GetSchedule returns the materialized payment stages of a booking.
func (s *SettlementService) GetSchedule(ctx context.Context, id uuid.UUID) (*domain.ScheduleResponse, error) {
	if _, err := s.GetBooking(ctx, id); err != nil {
		return nil, err
	}

	stages, err := s.BookingRepo.GetStages(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.ScheduleResponse{BookingID: id, Schedule: stages}, nil
}

// ListPayments returns the payment ledger of a booking.
func (s *SettlementService) ListPayments(ctx context.Context, id uuid.UUID) (*domain.PaymentsResponse, error) {
	if _, err := s.GetBooking(ctx, id); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.GetByBookingID(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	total, err := s.PaymentRepo.GetTotalPaid(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.PaymentsResponse{BookingID: id, Payments: payments, TotalPaid: total}, nil
}

func (s *SettlementService) ConfirmBooking(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error) {
	booking, replayed, err := s.transition(ctx, id, func(b *domain.Booking, stages []*domain.PaymentStage) (*repository.Mutation, error) {
		return nil, lifecycle.Fire(b, lifecycle.EventConfirm, lifecycle.FactsOf(b, stages, s.now()))
	})
	if err != nil {
		return nil, err
	}
	return &domain.TransitionResponse{Booking: booking, Replayed: replayed}, nil
}

// RecordPayment posts a gateway payment against the earliest unpaid stage. The
// amount must match that stage's amount due plus any accrued late fee. The
// stage's share of the booking split is recorded with the payment and the
// late fee goes to the seller in full. A reference that was already recorded
// returns the original payment.
func (s *SettlementService) RecordPayment(ctx context.Context, id uuid.UUID, request *domain.RecordPaymentRequest) (*domain.RecordPaymentResponse, error) {
	existing, err := s.PaymentRepo.GetByReference(ctx, request.Reference)
	if err == nil {
		return s.replayedPayment(ctx, id, existing)
	}
	if !repository.IsNotFound(err) {
		return nil, customError.WrapDatabaseError(err)
	}

	var (
		payment *domain.Payment
		paid    *domain.PaymentStage
		msg     *repository.OutboxMessage
	)
	booking, _, err := s.transition(ctx, id, func(b *domain.Booking, stages []*domain.PaymentStage) (*repository.Mutation, error) {
		stage := nextUnpaid(stages)
		if stage == nil {
			return nil, customError.WrapNoOutstandingBalance(b.ID.String())
		}

		due := stage.Outstanding()
		if !request.Amount.Equal(due) {
			return nil, customError.WrapPaymentAmountMismatch(due.StringFixed(2), request.Amount.StringFixed(2))
		}

		split, err := stageSplit(b, stages, stage)
		if err != nil {
			return nil, err
		}

		now := s.now()
		facts := lifecycle.FactsOf(b, stages, now)
		facts.SplitConsistent = facts.SplitConsistent && split.Total().Equal(request.Amount)
		if err := lifecycle.Fire(b, lifecycle.EventRecordPayment, facts); err != nil {
			return nil, err
		}

		b.AmountPaid = b.AmountPaid.Add(request.Amount)
		stage.Status = domain.StageStatusPaid
		stage.PaidAt = &now

		payment = &domain.Payment{
			ID:               uuid.New(),
			BookingID:        b.ID,
			StageSequence:    stage.Sequence,
			Amount:           request.Amount,
			CommissionAmount: split.CommissionAmount,
			TransactionFee:   split.TransactionFee,
			SellerAmount:     split.SellerAmount,
			Reference:        request.Reference,
			CreatedAt:        now,
		}
		paid = stage

		event := queue.NewEvent(queue.EventBookingPaymentRecorded, b.ID, payment.Amount, now)
		event.Reference = payment.Reference
		msg = s.outboxMessage(event)
		return &repository.Mutation{Payment: payment, PaidStage: stage, Outbox: []*repository.OutboxMessage{msg}}, nil
	})
	if errors.Is(err, repository.ErrDuplicatePayment) {
		// Lost a race with the same callback delivered twice.
		existing, getErr := s.PaymentRepo.GetByReference(ctx, request.Reference)
		if getErr != nil {
			return nil, customError.WrapDatabaseError(getErr)
		}
		return s.replayedPayment(ctx, id, existing)
	}
	if err != nil {
		return nil, err
	}

	s.deliver(ctx, msg)

	return &domain.RecordPaymentResponse{Booking: booking, Payment: payment, Stage: paid}, nil
}

// QuoteRefund previews what cancelling the booking now would refund. It reads
// storage directly; a cached copy may predate a cancellation.
func (s *SettlementService) QuoteRefund(ctx context.Context, id uuid.UUID) (*domain.RefundQuoteResponse, error) {
	booking, err := s.loadBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if _, err := lifecycle.Apply(lifecycle.StateOf(booking), lifecycle.EventRefund, lifecycle.Facts{Now: now}); err != nil {
		if customError.IsReplay(err) {
			return &domain.RefundQuoteResponse{
				BookingID:    booking.ID,
				AmountPaid:   booking.AmountPaid,
				RefundAmount: booking.RefundAmount,
			}, nil
		}
		return nil, err
	}

	quote, err := settlement.ComputeRefund(booking.AmountPaid, booking.CancellationPolicy, booking.EventDate.Sub(now))
	if err != nil {
		return nil, err
	}

	return refundQuoteResponse(booking.ID, quote), nil
}

// CancelBooking refunds a paid booking. The refund, the cancellation and the
// payout cancellation are stored together. Repeating the request returns the
// booking with the refund computed the first time.
func (s *SettlementService) CancelBooking(ctx context.Context, id uuid.UUID, request *domain.CancelBookingRequest) (*domain.TransitionResponse, error) {
	var msg *repository.OutboxMessage
	booking, replayed, err := s.transition(ctx, id, func(b *domain.Booking, stages []*domain.PaymentStage) (*repository.Mutation, error) {
		now := s.now()
		facts := lifecycle.FactsOf(b, stages, now)
		if _, err := lifecycle.Apply(lifecycle.StateOf(b), lifecycle.EventRefund, facts); err != nil {
			return nil, err
		}

		quote, err := settlement.ComputeRefund(b.AmountPaid, b.CancellationPolicy, b.EventDate.Sub(now))
		if err != nil {
			return nil, err
		}
		if err := lifecycle.Fire(b, lifecycle.EventRefund, facts); err != nil {
			return nil, err
		}
		b.RefundAmount = quote.RefundAmount

		msg = s.outboxMessage(queue.NewEvent(queue.EventBookingRefunded, b.ID, b.RefundAmount, now))
		return &repository.Mutation{Outbox: []*repository.OutboxMessage{msg}}, nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		logger.WithBooking(booking.ID.String()).WithFields(logrus.Fields{
			"refund_amount": booking.RefundAmount.StringFixed(2),
			"reason":        request.Reason,
		}).Info("booking cancelled and refunded")
		s.deliver(ctx, msg)
	}

	return &domain.TransitionResponse{Booking: booking, Replayed: replayed}, nil
}

// ProcessPayout releases the seller amount once the refund window closed,
// together with the late fees collected on the booking's stages.
func (s *SettlementService) ProcessPayout(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error) {
	var msg *repository.OutboxMessage
	booking, replayed, err := s.transition(ctx, id, func(b *domain.Booking, stages []*domain.PaymentStage) (*repository.Mutation, error) {
		now := s.now()
		if err := lifecycle.Fire(b, lifecycle.EventProcessPayout, lifecycle.FactsOf(b, stages, now)); err != nil {
			return nil, err
		}

		lateFees := collectedLateFees(stages)
		event := queue.NewEvent(queue.EventBookingPayoutProcessed, b.ID, b.SellerAmount.Add(lateFees), now)
		event.LateFees = &lateFees
		msg = s.outboxMessage(event)
		return &repository.Mutation{Outbox: []*repository.OutboxMessage{msg}}, nil
	})
	if err != nil {
		return nil, err
	}

	if !replayed {
		logger.WithBooking(booking.ID.String()).WithFields(logrus.Fields{
			"seller_amount": booking.SellerAmount.StringFixed(2),
			"payout_amount": msg.Event.Amount.StringFixed(2),
		}).Info("payout processed")
		s.deliver(ctx, msg)
	}

	return &domain.TransitionResponse{Booking: booking, Replayed: replayed}, nil
}

func (s *SettlementService) CompleteBooking(ctx context.Context, id uuid.UUID) (*domain.TransitionResponse, error) {
	booking, replayed, err := s.transition(ctx, id, func(b *domain.Booking, stages []*domain.PaymentStage) (*repository.Mutation, error) {
		return nil, lifecycle.Fire(b, lifecycle.EventComplete, lifecycle.FactsOf(b, stages, s.now()))
	})
	if err != nil {
		return nil, err
	}
	return &domain.TransitionResponse{Booking: booking, Replayed: replayed}, nil
}

// AccrueLateFees recomputes the late fee of every unpaid stage past due at
// asOf. Fees are derived from scratch on each run, so repeated runs converge on
// the same value. It returns the number of stages updated.
func (s *SettlementService) AccrueLateFees(ctx context.Context, asOf time.Time) (int, error) {
	limit := s.batchSize()
	after := uuid.Nil
	updated := 0

	for {
		stages, err := s.BookingRepo.ListOverdueStages(ctx, asOf, after, limit)
		if err != nil {
			return updated, customError.WrapDatabaseError(err)
		}

		for _, stage := range stages {
			after = stage.ID
			entry := logger.WithBooking(stage.BookingID.String()).WithField("stage", stage.Sequence)

			daysLate := utils.DaysBetween(stage.DueDate, asOf)
			fee, err := settlement.AccrueLateFee(stage.AmountDue, daysLate, stage.LatePaymentPolicy)
			if err != nil {
				if errors.Is(err, customError.ErrInvalidOverdueAmount) || errors.Is(err, customError.ErrInvalidPolicyParameters) {
					entry.WithError(err).Warn("skipping late fee accrual")
					continue
				}
				return updated, err
			}

			if stage.Status == domain.StageStatusOverdue && fee.Equal(stage.LateFee) {
				continue
			}
			if err := s.BookingRepo.UpdateStageLateFee(ctx, stage.ID, fee); err != nil {
				return updated, customError.WrapDatabaseError(err)
			}
			updated++

			entry.WithFields(logrus.Fields{
				"days_late": daysLate,
				"late_fee":  fee.StringFixed(2),
			}).Debug("late fee accrued")
		}

		if len(stages) < limit {
			return updated, nil
		}
	}
}

// ProcessDuePayouts drives the payout edge for every settled booking whose
// refund window closed by asOf. A booking that fails is logged and left for
// the next run. It returns the number of payouts released.
func (s *SettlementService) ProcessDuePayouts(ctx context.Context, asOf time.Time) (int, error) {
	limit := s.batchSize()
	processed := 0

	for {
		ids, err := s.BookingRepo.ListPayoutCandidates(ctx, asOf, limit)
		if err != nil {
			return processed, customError.WrapDatabaseError(err)
		}

		released := 0
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return processed, err
			}
			resp, err := s.ProcessPayout(ctx, id)
			if err != nil {
				logger.WithBooking(id.String()).WithError(err).Warn("payout not processed")
				continue
			}
			if !resp.Replayed {
				released++
			}
		}
		processed += released

		// Failed candidates are returned again, so stop once a page makes no progress.
		if len(ids) < limit || released == 0 {
			return processed, nil
		}
	}
}

// RelayOutbox publishes stored settlement events whose next attempt is due
// at asOf. A failed message is rescheduled with a doubling delay. It returns
// the number of events the broker accepted.
func (s *SettlementService) RelayOutbox(ctx context.Context, asOf time.Time) (int, error) {
	limit := s.batchSize()
	delivered := 0

	for {
		messages, err := s.OutboxRepo.ListDue(ctx, asOf, limit)
		if err != nil {
			return delivered, customError.WrapDatabaseError(err)
		}

		sent := 0
		for _, msg := range messages {
			if err := ctx.Err(); err != nil {
				return delivered, err
			}
			if s.relay(ctx, msg, asOf) {
				sent++
			}
		}
		delivered += sent

		// Failed messages are rescheduled past asOf; a page with no delivery
		// means the broker is down and the rest can wait for the next run.
		if len(messages) < limit || sent == 0 {
			return delivered, nil
		}
	}
}

func (s *SettlementService) batchSize() int {
	if s.config.Scheduler.BatchSize > 0 {
		return s.config.Scheduler.BatchSize
	}
	return 100
}

// transition runs fn against the locked booking, retrying transient storage
// failures with exponential backoff. A replayed event is reported through the
// bool with the stored booking and no error.
func (s *SettlementService) transition(ctx context.Context, id uuid.UUID, fn repository.TransitionFunc) (*domain.Booking, bool, error) {
	attempts := s.config.Business.TransitionMaxRetries + 1
	backoff := s.config.GetTransitionRetryBackoff()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		booking, err := s.BookingRepo.Transition(ctx, id, fn)
		switch {
		case err == nil:
			s.refreshCache(ctx, booking)
			return booking, false, nil
		case customError.IsReplay(err):
			return booking, true, nil
		case repository.IsNotFound(err):
			return nil, false, customError.WrapBookingNotFound(id.String())
		case errors.Is(err, repository.ErrDuplicatePayment):
			return nil, false, err
		case customError.Code(err) != "":
			return nil, false, err
		case !repository.IsTransient(err):
			return nil, false, customError.WrapDatabaseError(err)
		}

		lastErr = err
		logger.WithBooking(id.String()).WithError(err).WithField("attempt", attempt).Warn("transient failure applying transition")
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false, customError.WrapDatabaseError(ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}

	return nil, false, customError.WrapDatabaseError(lastErr)
}

func (s *SettlementService) replayedPayment(ctx context.Context, id uuid.UUID, payment *domain.Payment) (*domain.RecordPaymentResponse, error) {
	if payment.BookingID != id {
		return nil, customError.WrapDuplicateReference(payment.Reference)
	}

	booking, err := s.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	stages, err := s.BookingRepo.GetStages(ctx, id)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	var stage *domain.PaymentStage
	for _, st := range stages {
		if st.Sequence == payment.StageSequence {
			stage = st
			break
		}
	}

	return &domain.RecordPaymentResponse{Booking: booking, Payment: payment, Stage: stage, Replayed: true}, nil
}

func (s *SettlementService) rates(commission, fee *decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	c := s.config.GetDefaultCommissionPercentage()
	if commission != nil {
		c = *commission
	}
	f := s.config.GetDefaultTransactionFeePercentage()
	if fee != nil {
		f = *fee
	}
	return c, f
}

func (s *SettlementService) outboxMessage(event queue.Event) *repository.OutboxMessage {
	return &repository.OutboxMessage{
		Event:         event,
		NextAttemptAt: event.OccurredAt.Add(s.outboxBackoff(1)),
	}
}

// deliver publishes an event right after the transition that stored it
// committed. On failure the message stays in the outbox for RelayOutbox.
func (s *SettlementService) deliver(ctx context.Context, msg *repository.OutboxMessage) {
	if msg == nil {
		return
	}
	s.relay(ctx, msg, s.now())
}

// relay publishes one outbox message and records the outcome. It reports
// whether the message is settled.
func (s *SettlementService) relay(ctx context.Context, msg *repository.OutboxMessage, now time.Time) bool {
	entry := logger.WithBooking(msg.Event.BookingID.String()).WithFields(logrus.Fields{
		"event_id":   msg.Event.ID.String(),
		"event_type": msg.Event.Type,
	})

	if err := s.publisher.Publish(ctx, msg.Event); err != nil {
		next := now.Add(s.outboxBackoff(msg.Attempts + 1))
		entry.WithError(err).WithField("next_attempt_at", next).Warn("settlement event not delivered, will retry")
		if markErr := s.OutboxRepo.MarkFailed(ctx, msg.Event.ID, err.Error(), next); markErr != nil {
			entry.WithError(markErr).Error("failed to record outbox attempt")
		}
		return false
	}

	// Unmarked messages are published again; consumers deduplicate on the event id.
	if err := s.OutboxRepo.MarkPublished(ctx, msg.Event.ID, now); err != nil {
		entry.WithError(err).Error("failed to mark outbox message published")
		return false
	}
	return true
}

// outboxBackoff is the delay before the given delivery attempt.
func (s *SettlementService) outboxBackoff(attempt int) time.Duration {
	delay := s.config.GetOutboxRetryBackoff()
	if delay <= 0 {
		delay = 30 * time.Second
	}
	limit := s.config.GetOutboxMaxBackoff()
	if limit <= 0 {
		limit = time.Hour
	}

	for i := 1; i < attempt && delay < limit; i++ {
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

func (s *SettlementService) cacheBooking(ctx context.Context, booking *domain.Booking) {
	if err := s.cache.Set(ctx, booking); err != nil {
		logger.WithBooking(booking.ID.String()).WithError(err).Warn("booking cache write failed")
	}
}

// refreshCache stores the booking a transition committed. The cache drops the
// write if a newer version is already there; when the write fails the entry
// is invalidated instead.
func (s *SettlementService) refreshCache(ctx context.Context, booking *domain.Booking) {
	err := s.cache.Set(ctx, booking)
	if err == nil {
		return
	}

	entry := logger.WithBooking(booking.ID.String())
	entry.WithError(err).Warn("booking cache refresh failed")
	if err := s.cache.Invalidate(ctx, booking.ID); err != nil {
		entry.WithError(err).Warn("booking cache invalidation failed")
	}
}

// resolveTerms validates the payment structure and fills in the policy
// defaults for its type.
func resolveTerms(plan domain.PaymentPlan, cancellation *domain.CancellationPolicy, late *domain.LatePaymentPolicy) (domain.CancellationPolicy, domain.LatePaymentPolicy, error) {
	if err := plan.Validate(); err != nil {
		return domain.CancellationPolicy{}, domain.LatePaymentPolicy{}, err
	}

	c := domain.DefaultCancellationPolicy(plan.Kind())
	if cancellation != nil {
		c = *cancellation
	}
	if err := c.Validate(); err != nil {
		return domain.CancellationPolicy{}, domain.LatePaymentPolicy{}, err
	}

	l := domain.DefaultLatePaymentPolicy()
	if late != nil {
		l = *late
	}
	if err := l.Validate(); err != nil {
		return domain.CancellationPolicy{}, domain.LatePaymentPolicy{}, err
	}

	return c, l, nil
}

func bySequence(stages []*domain.PaymentStage) []*domain.PaymentStage {
	sorted := make([]*domain.PaymentStage, len(stages))
	copy(sorted, stages)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })
	return sorted
}

func nextUnpaid(stages []*domain.PaymentStage) *domain.PaymentStage {
	for _, stage := range bySequence(stages) {
		if stage.Status != domain.StageStatusPaid {
			return stage
		}
	}
	return nil
}

// stageSplit is the share of the booking split carried by one stage plus its
// late fee, which is owed to the seller.
func stageSplit(b *domain.Booking, stages []*domain.PaymentStage, stage *domain.PaymentStage) (settlement.Split, error) {
	sorted := bySequence(stages)
	amounts := make([]decimal.Decimal, len(sorted))
	index := 0
	for i, st := range sorted {
		amounts[i] = st.AmountDue
		if st.ID == stage.ID {
			index = i
		}
	}

	total := settlement.Split{
		CommissionAmount: b.CommissionAmount,
		TransactionFee:   b.TransactionFee,
		SellerAmount:     b.SellerAmount,
	}
	splits, err := settlement.StageSplits(total, amounts, b.CommissionPercentage, b.TransactionFeePercentage)
	if err != nil {
		return settlement.Split{}, err
	}

	split := splits[index]
	split.SellerAmount = split.SellerAmount.Add(stage.LateFee)
	return split, nil
}

func collectedLateFees(stages []*domain.PaymentStage) decimal.Decimal {
	total := decimal.Zero
	for _, stage := range stages {
		if stage.Status == domain.StageStatusPaid {
			total = total.Add(stage.LateFee)
		}
	}
	return total
}

func refundQuoteResponse(bookingID uuid.UUID, quote settlement.RefundQuote) *domain.RefundQuoteResponse {
	return &domain.RefundQuoteResponse{
		BookingID:               bookingID,
		AmountPaid:              quote.AmountPaid,
		RefundableAmount:        quote.RefundableAmount,
		TransactionFeeDeduction: quote.TransactionFeeDeduction,
		ProcessingFee:           quote.ProcessingFee,
		RefundAmount:            quote.RefundAmount,
		WithinNoticePeriod:      quote.WithinNoticePeriod,
	}
}
