package booking

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/mzhav/roomreserve/internal/domain"
	"github.com/mzhav/roomreserve/internal/kafka"
	"github.com/mzhav/roomreserve/internal/repository"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	Pay(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID, requesterID string) (*domain.Cancellation, error)
	ListBookings(ctx context.Context, requesterID string, filter domain.BookingFilter) ([]domain.Booking, error)
	ExpireOverdueBookings(ctx context.Context) ([]domain.Booking, error)
}

type Cache interface {
	AcquireClaimLock(ctx context.Context, roomID int64, ttl time.Duration) (bool, error)
	ReleaseClaimLock(ctx context.Context, roomID int64) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	rooms              repository.RoomRepository
	cache              Cache
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	paymentWindow      time.Duration
	claimLockTTL       time.Duration
	now                func() time.Time
}

type CreateBookingInput struct {
	RoomID      int64     `json:"room_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	RequesterID string    `json:"requester_id"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithClock overrides the time source, used by tests to pin deadlines.
func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	rooms repository.RoomRepository,
	cache Cache,
	producer Producer,
	bookingTopic string,
	paymentWindow, claimLockTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:      bookings,
		rooms:         rooms,
		cache:         cache,
		producer:      producer,
		bookingTopic:  bookingTopic,
		paymentWindow: paymentWindow,
		claimLockTTL:  claimLockTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.RequesterID == "" {
		return nil, domain.ValidationError("requester id is required")
	}
	now := s.now()
	if err := domain.ValidateInterval(now, input.StartTime, input.EndTime); err != nil {
		return nil, err
	}

	room, err := s.rooms.GetByID(ctx, input.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status != domain.RoomStatusFree {
		return nil, domain.ErrRoomNotFree
	}

	if s.cache != nil {
		ok, err := s.cache.AcquireClaimLock(ctx, input.RoomID, s.claimLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.ConflictError("room is being claimed by another request")
		}
		defer func() {
			_ = s.cache.ReleaseClaimLock(ctx, input.RoomID)
		}()
	}

	booking := &domain.Booking{
		ID:               uuid.NewString(),
		RoomID:           input.RoomID,
		RequesterID:      input.RequesterID,
		StartTime:        input.StartTime,
		EndTime:          input.EndTime,
		TotalAmountCents: TotalAmountCents(room.PricePerHourCents, input.StartTime, input.EndTime),
		PaymentDeadline:  now.Add(s.paymentWindow),
	}

	if err := s.bookings.Claim(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.publish(ctx, "booking_created", booking); err != nil {
		log.Printf("publish booking_created for booking %s: %v", booking.ID, err)
	}
	return booking, nil
}

func (s *BookingService) Pay(ctx context.Context, bookingID, requesterID string) (*domain.Booking, error) {
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.RequesterID != requesterID {
		return nil, domain.PolicyViolationError("booking belongs to another requester")
	}
	if current.Status == domain.BookingStatusExpired {
		return nil, domain.DeadlineExceededError("payment deadline exceeded, booking expired")
	}
	if current.Status != domain.BookingStatusUnpaid {
		return nil, domain.PolicyViolationError("booking is not awaiting payment")
	}

	updated, err := s.bookings.MarkPaid(ctx, bookingID, s.now())
	if err != nil {
		if domain.CodeOf(err) == domain.CodeDeadlineExceeded {
			current.Status = domain.BookingStatusExpired
			if pubErr := s.publish(ctx, "booking_expired", current); pubErr != nil {
				log.Printf("publish booking_expired for booking %s: %v", current.ID, pubErr)
			}
		}
		return nil, err
	}

	if err := s.publish(ctx, "booking_paid", updated); err != nil {
		log.Printf("publish booking_paid for booking %s: %v", updated.ID, err)
	}
	return updated, nil
}

func (s *BookingService) Cancel(ctx context.Context, bookingID, requesterID string) (*domain.Cancellation, error) {
	current, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if current.RequesterID != requesterID {
		return nil, domain.PolicyViolationError("booking belongs to another requester")
	}
	if current.Status != domain.BookingStatusPaid {
		return nil, domain.PolicyViolationError("only paid bookings can be cancelled")
	}

	lead := current.StartTime.Sub(s.now())
	refund, ok := RefundAmountCents(current.TotalAmountCents, lead)
	if !ok {
		return nil, domain.PolicyViolationError("cancellation requires at least 24 hours of lead time")
	}

	cancellation := &domain.Cancellation{
		ID:                uuid.NewString(),
		BookingID:         current.ID,
		RefundAmountCents: refund,
	}
	updated, err := s.bookings.CancelWithRefund(ctx, bookingID, cancellation)
	if err != nil {
		return nil, err
	}

	if err := s.publish(ctx, "booking_cancelled", updated); err != nil {
		log.Printf("publish booking_cancelled for booking %s: %v", updated.ID, err)
	}
	return cancellation, nil
}

func (s *BookingService) ListBookings(ctx context.Context, requesterID string, filter domain.BookingFilter) ([]domain.Booking, error) {
	if requesterID == "" {
		return nil, domain.ValidationError("requester id is required")
	}
	return s.bookings.ListByRequester(ctx, requesterID, filter)
}

// ExpireOverdueBookings is the sweeper pass: every UNPAID booking past its
// payment deadline is expired atomically, one transaction per booking, so a
// racing Pay sees a committed terminal state.
func (s *BookingService) ExpireOverdueBookings(ctx context.Context) ([]domain.Booking, error) {
	now := s.now()
	ids, err := s.bookings.ListOverdueUnpaid(ctx, now)
	if err != nil {
		return nil, err
	}

	var expired []domain.Booking
	for _, id := range ids {
		b, err := s.bookings.Expire(ctx, id, now)
		if err != nil {
			log.Printf("expire booking %s: %v", id, err)
			continue
		}
		if b == nil {
			// Lost the race to a concurrent Pay or an earlier sweep.
			continue
		}
		expired = append(expired, *b)
		if err := s.publish(ctx, "booking_expired", b); err != nil {
			log.Printf("publish booking_expired for booking %s: %v", b.ID, err)
		}
	}
	return expired, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.BookingEvent{
		Type:             eventType,
		BookingID:        booking.ID,
		RoomID:           booking.RoomID,
		RequesterID:      booking.RequesterID,
		Status:           string(booking.Status),
		StartTime:        booking.StartTime,
		EndTime:          booking.EndTime,
		TotalAmountCents: booking.TotalAmountCents,
		PaymentDeadline:  booking.PaymentDeadline,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.ID, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, booking.ID, event)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
