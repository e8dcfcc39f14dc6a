package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mzhav/roomreserve/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) Claim(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) MarkPaid(ctx context.Context, id string, now time.Time) (*domain.Booking, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) CancelWithRefund(ctx context.Context, bookingID string, cancellation *domain.Cancellation) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID, cancellation)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListByRequester(ctx context.Context, requesterID string, filter domain.BookingFilter) ([]domain.Booking, error) {
	args := m.Called(ctx, requesterID, filter)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ListOverdueUnpaid(ctx context.Context, deadline time.Time) ([]string, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockBookingRepository) Expire(ctx context.Context, id string, now time.Time) (*domain.Booking, error) {
	args := m.Called(ctx, id, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Room), args.Error(1)
}

func (m *MockRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Room), args.Error(1)
}

func (m *MockRoomRepository) ListEquipmentOf(ctx context.Context, roomID int64) ([]domain.Equipment, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).([]domain.Equipment), args.Error(1)
}

func (m *MockRoomRepository) FindAvailable(ctx context.Context, start, end time.Time, minCapacity int, equipmentIDs []int64) ([]domain.Room, error) {
	args := m.Called(ctx, start, end, minCapacity, equipmentIDs)
	return args.Get(0).([]domain.Room), args.Error(1)
}

func (m *MockRoomRepository) UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	args := m.Called(ctx, roomID, status)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) AcquireClaimLock(ctx context.Context, roomID int64, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, roomID, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCache) ReleaseClaimLock(ctx context.Context, roomID int64) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(bookings *MockBookingRepository, rooms *MockRoomRepository, cache Cache, producer Producer, now time.Time) *BookingService {
	return NewBookingService(
		bookings,
		rooms,
		cache,
		producer,
		"booking_events",
		30*time.Minute,
		5*time.Second,
		WithClock(fixedClock(now)),
	)
}

func TestBookingService_CreateBooking_Success(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockCache := &MockCache{}
	mockProducer := &MockProducer{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, mockCache, mockProducer, now)

	ctx := context.Background()
	input := CreateBookingInput{
		RoomID:      7,
		StartTime:   now.Add(30 * time.Hour),
		EndTime:     now.Add(32 * time.Hour),
		RequesterID: "user-1",
	}

	room := &domain.Room{ID: 7, Capacity: 10, PricePerHourCents: 10000, Status: domain.RoomStatusFree}
	mockRoomRepo.On("GetByID", ctx, int64(7)).Return(room, nil).Once()
	mockCache.On("AcquireClaimLock", ctx, int64(7), 5*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseClaimLock", ctx, int64(7)).Return(nil).Once()
	mockBookingRepo.On("Claim", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking_events", mock.Anything, mock.Anything).Return(nil).Once()

	booking, err := service.CreateBooking(ctx, input)

	assert.NoError(t, err)
	assert.NotNil(t, booking)
	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, domain.BookingStatusUnpaid, booking.Status)
	assert.Equal(t, int64(20000), booking.TotalAmountCents)
	assert.Equal(t, now.Add(30*time.Minute), booking.PaymentDeadline)

	mockRoomRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
	mockBookingRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_CreateBooking_LeadTimeWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name    string
		start   time.Time
		wantErr bool
	}{
		{name: "23 hours ahead rejected", start: now.Add(23 * time.Hour), wantErr: true},
		{name: "24 hours 1 second ahead accepted", start: now.Add(24*time.Hour + time.Second), wantErr: false},
		{name: "exactly 24 hours ahead accepted", start: now.Add(24 * time.Hour), wantErr: false},
		{name: "61 days ahead rejected", start: now.Add(61 * 24 * time.Hour), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mockBookingRepo := &MockBookingRepository{}
			mockRoomRepo := &MockRoomRepository{}
			service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

			ctx := context.Background()
			input := CreateBookingInput{
				RoomID:      7,
				StartTime:   tc.start,
				EndTime:     tc.start.Add(2 * time.Hour),
				RequesterID: "user-1",
			}

			if !tc.wantErr {
				room := &domain.Room{ID: 7, Capacity: 10, PricePerHourCents: 10000, Status: domain.RoomStatusFree}
				mockRoomRepo.On("GetByID", ctx, int64(7)).Return(room, nil).Once()
				mockBookingRepo.On("Claim", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
			}

			booking, err := service.CreateBooking(ctx, input)

			if tc.wantErr {
				assert.Error(t, err)
				assert.Nil(t, booking)
				assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
				mockBookingRepo.AssertNotCalled(t, "Claim")
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, booking)
			}
		})
	}
}

func TestBookingService_CreateBooking_RoomNotFree(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

	ctx := context.Background()
	room := &domain.Room{ID: 7, Capacity: 10, PricePerHourCents: 10000, Status: domain.RoomStatusMaintenance}
	mockRoomRepo.On("GetByID", ctx, int64(7)).Return(room, nil).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		RoomID:      7,
		StartTime:   now.Add(30 * time.Hour),
		EndTime:     now.Add(32 * time.Hour),
		RequesterID: "user-1",
	})

	assert.Error(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
	mockBookingRepo.AssertNotCalled(t, "Claim")
}

func TestBookingService_CreateBooking_ClaimLockBusy(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockCache := &MockCache{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, mockCache, nil, now)

	ctx := context.Background()
	room := &domain.Room{ID: 7, Capacity: 10, PricePerHourCents: 10000, Status: domain.RoomStatusFree}
	mockRoomRepo.On("GetByID", ctx, int64(7)).Return(room, nil).Once()
	mockCache.On("AcquireClaimLock", ctx, int64(7), 5*time.Second).Return(false, nil).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		RoomID:      7,
		StartTime:   now.Add(30 * time.Hour),
		EndTime:     now.Add(32 * time.Hour),
		RequesterID: "user-1",
	})

	assert.Error(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
	mockCache.AssertExpectations(t)
	mockBookingRepo.AssertNotCalled(t, "Claim")
}

func TestBookingService_CreateBooking_IntervalTaken(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockCache := &MockCache{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, mockCache, nil, now)

	ctx := context.Background()
	room := &domain.Room{ID: 7, Capacity: 10, PricePerHourCents: 10000, Status: domain.RoomStatusFree}
	mockRoomRepo.On("GetByID", ctx, int64(7)).Return(room, nil).Once()
	mockCache.On("AcquireClaimLock", ctx, int64(7), 5*time.Second).Return(true, nil).Once()
	mockCache.On("ReleaseClaimLock", ctx, int64(7)).Return(nil).Once()
	mockBookingRepo.On("Claim", ctx, mock.AnythingOfType("*domain.Booking")).Return(domain.ErrIntervalTaken).Once()

	booking, err := service.CreateBooking(ctx, CreateBookingInput{
		RoomID:      7,
		StartTime:   now.Add(30 * time.Hour),
		EndTime:     now.Add(32 * time.Hour),
		RequesterID: "user-1",
	})

	assert.Error(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
	mockCache.AssertExpectations(t)
}

// fakeClaimRepo backs the concurrency test: an in-memory claim that enforces
// the non-overlap invariant under a mutex, the way the database transaction
// does with row locks.
func occupies(status domain.BookingStatus) bool {
	for _, s := range domain.OccupyingStatuses() {
		if string(status) == s {
			return true
		}
	}
	return false
}

type fakeClaimRepo struct {
	MockBookingRepository
	mu       sync.Mutex
	bookings []domain.Booking
}

func (f *fakeClaimRepo) Claim(ctx context.Context, booking *domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.bookings {
		if existing.RoomID == booking.RoomID && occupies(existing.Status) &&
			domain.Overlaps(existing.StartTime, existing.EndTime, booking.StartTime, booking.EndTime) {
			return domain.ErrIntervalTaken
		}
	}
	booking.Status = domain.BookingStatusUnpaid
	f.bookings = append(f.bookings, *booking)
	return nil
}

func TestBookingService_CreateBooking_ConcurrentClaimsExactlyOneWins(t *testing.T) {
	mockRoomRepo := &MockRoomRepository{}
	repo := &fakeClaimRepo{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := NewBookingService(
		repo,
		mockRoomRepo,
		nil,
		nil,
		"",
		30*time.Minute,
		5*time.Second,
		WithClock(fixedClock(now)),
	)

	ctx := context.Background()
	room := &domain.Room{ID: 7, Capacity: 10, PricePerHourCents: 10000, Status: domain.RoomStatusFree}
	mockRoomRepo.On("GetByID", ctx, int64(7)).Return(room, nil)

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.CreateBooking(ctx, CreateBookingInput{
				RoomID:      7,
				StartTime:   now.Add(30 * time.Hour),
				EndTime:     now.Add(32 * time.Hour),
				RequesterID: "user-1",
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, conflicts int
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
			conflicts++
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, conflicts)
	assert.Len(t, repo.bookings, 1)
}

func TestBookingService_Pay_Success(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockProducer := &MockProducer{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, mockProducer, now)

	ctx := context.Background()
	current := &domain.Booking{
		ID:              "b-1",
		RoomID:          7,
		RequesterID:     "user-1",
		Status:          domain.BookingStatusUnpaid,
		PaymentDeadline: now.Add(10 * time.Minute),
	}
	paid := &domain.Booking{ID: "b-1", RoomID: 7, RequesterID: "user-1", Status: domain.BookingStatusPaid}

	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()
	mockBookingRepo.On("MarkPaid", ctx, "b-1", now).Return(paid, nil).Once()
	mockProducer.On("Publish", ctx, "booking_events", "b-1", mock.Anything).Return(nil).Once()

	booking, err := service.Pay(ctx, "b-1", "user-1")

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusPaid, booking.Status)
	mockBookingRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Pay_WrongOwner(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

	ctx := context.Background()
	current := &domain.Booking{ID: "b-1", RequesterID: "user-1", Status: domain.BookingStatusUnpaid}
	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()

	booking, err := service.Pay(ctx, "b-1", "user-2")

	assert.Error(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, domain.CodePolicyViolation, domain.CodeOf(err))
	mockBookingRepo.AssertNotCalled(t, "MarkPaid")
}

func TestBookingService_Pay_AlreadyExpired(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

	ctx := context.Background()
	current := &domain.Booking{ID: "b-1", RequesterID: "user-1", Status: domain.BookingStatusExpired}
	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()

	booking, err := service.Pay(ctx, "b-1", "user-1")

	assert.Error(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, domain.CodeDeadlineExceeded, domain.CodeOf(err))
	mockBookingRepo.AssertNotCalled(t, "MarkPaid")
}

func TestBookingService_Pay_DeadlineExceeded(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockProducer := &MockProducer{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, mockProducer, now)

	ctx := context.Background()
	current := &domain.Booking{
		ID:              "b-1",
		RoomID:          7,
		RequesterID:     "user-1",
		Status:          domain.BookingStatusUnpaid,
		PaymentDeadline: now.Add(-time.Minute),
	}

	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()
	mockBookingRepo.On("MarkPaid", ctx, "b-1", now).
		Return(nil, domain.DeadlineExceededError("payment deadline exceeded, booking expired")).Once()
	// The lazy expiry performed by the late pay attempt is announced too.
	mockProducer.On("Publish", ctx, "booking_events", "b-1", mock.Anything).Return(nil).Once()

	booking, err := service.Pay(ctx, "b-1", "user-1")

	assert.Error(t, err)
	assert.Nil(t, booking)
	assert.Equal(t, domain.CodeDeadlineExceeded, domain.CodeOf(err))
	mockBookingRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Cancel_RefundTier(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockProducer := &MockProducer{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, mockProducer, now)

	ctx := context.Background()
	current := &domain.Booking{
		ID:               "b-1",
		RoomID:           7,
		RequesterID:      "user-1",
		StartTime:        now.Add(50 * time.Hour),
		EndTime:          now.Add(52 * time.Hour),
		TotalAmountCents: 20000,
		Status:           domain.BookingStatusPaid,
	}
	cancelled := &domain.Booking{ID: "b-1", RoomID: 7, RequesterID: "user-1", Status: domain.BookingStatusCancelled}

	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()
	mockBookingRepo.On("CancelWithRefund", ctx, "b-1", mock.AnythingOfType("*domain.Cancellation")).Return(cancelled, nil).Once()
	mockProducer.On("Publish", ctx, "booking_events", "b-1", mock.Anything).Return(nil).Once()

	cancellation, err := service.Cancel(ctx, "b-1", "user-1")

	assert.NoError(t, err)
	assert.NotNil(t, cancellation)
	// 50 hours of lead time falls in the 75% tier.
	assert.Equal(t, int64(15000), cancellation.RefundAmountCents)
	assert.Equal(t, "b-1", cancellation.BookingID)
	mockBookingRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Cancel_TooLate(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

	ctx := context.Background()
	current := &domain.Booking{
		ID:               "b-1",
		RequesterID:      "user-1",
		StartTime:        now.Add(10 * time.Hour),
		TotalAmountCents: 20000,
		Status:           domain.BookingStatusPaid,
	}
	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()

	cancellation, err := service.Cancel(ctx, "b-1", "user-1")

	assert.Error(t, err)
	assert.Nil(t, cancellation)
	assert.Equal(t, domain.CodePolicyViolation, domain.CodeOf(err))
	mockBookingRepo.AssertNotCalled(t, "CancelWithRefund")
}

func TestBookingService_Cancel_NotPaid(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

	ctx := context.Background()
	current := &domain.Booking{
		ID:          "b-1",
		RequesterID: "user-1",
		StartTime:   now.Add(100 * time.Hour),
		Status:      domain.BookingStatusUnpaid,
	}
	mockBookingRepo.On("GetByID", ctx, "b-1").Return(current, nil).Once()

	cancellation, err := service.Cancel(ctx, "b-1", "user-1")

	assert.Error(t, err)
	assert.Nil(t, cancellation)
	assert.Equal(t, domain.CodePolicyViolation, domain.CodeOf(err))
	mockBookingRepo.AssertNotCalled(t, "CancelWithRefund")
}

func TestBookingService_ExpireOverdueBookings(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}
	mockProducer := &MockProducer{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, mockProducer, now)

	ctx := context.Background()
	expired := &domain.Booking{ID: "b-1", RoomID: 7, Status: domain.BookingStatusExpired}

	mockBookingRepo.On("ListOverdueUnpaid", ctx, now).Return([]string{"b-1", "b-2"}, nil).Once()
	mockBookingRepo.On("Expire", ctx, "b-1", now).Return(expired, nil).Once()
	// b-2 was paid in the meantime; the sweeper loses that race cleanly.
	mockBookingRepo.On("Expire", ctx, "b-2", now).Return(nil, nil).Once()
	mockProducer.On("Publish", ctx, "booking_events", "b-1", mock.Anything).Return(nil).Once()

	result, err := service.ExpireOverdueBookings(ctx)

	assert.NoError(t, err)
	assert.Len(t, result, 1)
	assert.Equal(t, "b-1", result[0].ID)
	mockBookingRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_ListBookings_RequiresRequester(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockRoomRepo := &MockRoomRepository{}

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := newTestService(mockBookingRepo, mockRoomRepo, nil, nil, now)

	bookings, err := service.ListBookings(context.Background(), "", domain.BookingFilter{})

	assert.Error(t, err)
	assert.Nil(t, bookings)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}
