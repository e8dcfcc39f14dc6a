package rooms

import (
	"context"
	"time"

	"github.com/mzhav/roomreserve/internal/domain"
	"github.com/mzhav/roomreserve/internal/repository"
)

type RoomUseCase interface {
	List(ctx context.Context) ([]domain.Room, error)
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
	ListEquipmentOf(ctx context.Context, roomID int64) ([]domain.Equipment, error)
	SearchAvailable(ctx context.Context, input SearchInput) ([]domain.Room, error)
	UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error
}

type Cache interface {
	GetRooms(ctx context.Context) ([]domain.Room, error)
	SetRooms(ctx context.Context, rooms []domain.Room) error
}

type SearchInput struct {
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	MinCapacity  int       `json:"capacity"`
	EquipmentIDs []int64   `json:"equipment_ids"`
}

type RoomService struct {
	repo  repository.RoomRepository
	cache Cache
	now   func() time.Time
}

type RoomServiceOption func(*RoomService)

func WithClock(now func() time.Time) RoomServiceOption {
	return func(s *RoomService) {
		s.now = now
	}
}

func NewRoomService(repo repository.RoomRepository, cache Cache, opts ...RoomServiceOption) *RoomService {
	service := &RoomService{repo: repo, cache: cache, now: time.Now}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *RoomService) List(ctx context.Context) ([]domain.Room, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetRooms(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	rooms, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetRooms(ctx, rooms)
	}
	return rooms, nil
}

func (s *RoomService) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoomService) ListEquipmentOf(ctx context.Context, roomID int64) ([]domain.Equipment, error) {
	return s.repo.ListEquipmentOf(ctx, roomID)
}

// SearchAvailable resolves the rooms free for the requested interval. The
// read is not transactional; a stale result can only turn into a conflict on
// the subsequent claim, never a double booking.
func (s *RoomService) SearchAvailable(ctx context.Context, input SearchInput) ([]domain.Room, error) {
	if input.MinCapacity <= 0 {
		return nil, domain.ValidationError("capacity must be positive")
	}
	if err := domain.ValidateInterval(s.now(), input.StartTime, input.EndTime); err != nil {
		return nil, err
	}
	return s.repo.FindAvailable(ctx, input.StartTime, input.EndTime, input.MinCapacity, input.EquipmentIDs)
}

// UpdateStatus moves a room into one of the staff-managed states. LOCKED and
// RESERVED are owned by the booking lifecycle and cannot be set directly.
func (s *RoomService) UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	switch status {
	case domain.RoomStatusFree, domain.RoomStatusInUse, domain.RoomStatusMaintenance:
	default:
		return domain.ValidationError("status must be one of FREE, IN_USE, MAINTENANCE")
	}
	return s.repo.UpdateStatus(ctx, roomID, status)
}

var _ RoomUseCase = (*RoomService)(nil)
