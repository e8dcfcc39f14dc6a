package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mzhav/roomreserve/internal/domain"
)

type RoomRepository interface {
	List(ctx context.Context) ([]domain.Room, error)
	GetByID(ctx context.Context, id int64) (*domain.Room, error)
	ListEquipmentOf(ctx context.Context, roomID int64) ([]domain.Equipment, error)
	FindAvailable(ctx context.Context, start, end time.Time, minCapacity int, equipmentIDs []int64) ([]domain.Room, error)
	UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error
}

type PGRoomRepository struct {
	db *pgxpool.Pool
}

func NewRoomRepository(db *pgxpool.Pool) RoomRepository {
	return &PGRoomRepository{db: db}
}

const roomColumns = `id, name, type, capacity, price_per_hour_cents, status, created_at, updated_at`

func (r *PGRoomRepository) List(ctx context.Context) ([]domain.Room, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRooms(rows)
}

func (r *PGRoomRepository) GetByID(ctx context.Context, id int64) (*domain.Room, error) {
	row := r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id=$1`, id)
	var rm domain.Room
	if err := row.Scan(&rm.ID, &rm.Name, &rm.Type, &rm.Capacity, &rm.PricePerHourCents, &rm.Status, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, err
	}

	ids, err := r.equipmentIDs(ctx, rm.ID)
	if err != nil {
		return nil, err
	}
	rm.EquipmentIDs = ids
	return &rm, nil
}

func (r *PGRoomRepository) ListEquipmentOf(ctx context.Context, roomID int64) ([]domain.Equipment, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.name FROM equipments e
		JOIN room_equipments re ON e.id = re.equipment_id
		WHERE re.room_id = $1 ORDER BY e.id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	equipments := make([]domain.Equipment, 0)
	for rows.Next() {
		var e domain.Equipment
		if err := rows.Scan(&e.ID, &e.Name); err != nil {
			return nil, err
		}
		equipments = append(equipments, e)
	}
	return equipments, rows.Err()
}

// FindAvailable returns rooms that are operationally free, large enough,
// carry every requested equipment item, and have no UNPAID/PAID booking
// overlapping [start, end).
func (r *PGRoomRepository) FindAvailable(ctx context.Context, start, end time.Time, minCapacity int, equipmentIDs []int64) ([]domain.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms r
		WHERE r.status = $1
		AND r.capacity >= $2
		AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.room_id = r.id
			AND b.status = ANY($3)
			AND b.start_time < $4 AND b.end_time > $5
		)`
	args := []any{domain.RoomStatusFree, minCapacity, domain.OccupyingStatuses(), end, start}

	if len(equipmentIDs) > 0 {
		query += `
		AND r.id IN (
			SELECT re.room_id FROM room_equipments re
			WHERE re.equipment_id = ANY($6)
			GROUP BY re.room_id
			HAVING COUNT(DISTINCT re.equipment_id) = $7
		)`
		args = append(args, equipmentIDs, len(equipmentIDs))
	}
	query += ` ORDER BY r.capacity, r.id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms, err := scanRooms(rows)
	if err != nil {
		return nil, err
	}
	for i := range rooms {
		ids, err := r.equipmentIDs(ctx, rooms[i].ID)
		if err != nil {
			return nil, err
		}
		rooms[i].EquipmentIDs = ids
	}
	return rooms, nil
}

func (r *PGRoomRepository) UpdateStatus(ctx context.Context, roomID int64, status domain.RoomStatus) error {
	cmd, err := r.db.Exec(ctx, `UPDATE rooms SET status=$1, updated_at=now() WHERE id=$2`, status, roomID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

func (r *PGRoomRepository) equipmentIDs(ctx context.Context, roomID int64) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT equipment_id FROM room_equipments WHERE room_id = $1 ORDER BY equipment_id`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRooms(rows pgx.Rows) ([]domain.Room, error) {
	rooms := make([]domain.Room, 0)
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(&rm.ID, &rm.Name, &rm.Type, &rm.Capacity, &rm.PricePerHourCents, &rm.Status, &rm.CreatedAt, &rm.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, rows.Err()
}

var _ RoomRepository = (*PGRoomRepository)(nil)
