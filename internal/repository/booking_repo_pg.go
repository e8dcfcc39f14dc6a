package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mzhav/roomreserve/internal/domain"
)

type BookingRepository interface {
	// Claim atomically re-validates room availability for the booking's
	// interval and inserts it as UNPAID, locking the room.
	Claim(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// MarkPaid transitions UNPAID -> PAID if the payment deadline has not
	// passed at `now`; a late call expires the booking instead and reports
	// domain.CodeDeadlineExceeded.
	MarkPaid(ctx context.Context, id string, now time.Time) (*domain.Booking, error)
	// CancelWithRefund transitions PAID -> CANCELLED and records the
	// cancellation in the same transaction.
	CancelWithRefund(ctx context.Context, bookingID string, cancellation *domain.Cancellation) (*domain.Booking, error)
	ListByRequester(ctx context.Context, requesterID string, filter domain.BookingFilter) ([]domain.Booking, error)
	// ListOverdueUnpaid returns ids of UNPAID bookings whose payment
	// deadline passed strictly before `deadline`.
	ListOverdueUnpaid(ctx context.Context, deadline time.Time) ([]string, error)
	// Expire transitions a single overdue UNPAID booking to EXPIRED and
	// frees its room. Returns nil if another transaction already moved the
	// booking out of UNPAID or the deadline has not passed.
	Expire(ctx context.Context, id string, now time.Time) (*domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, room_id, requester_id, start_time, end_time, total_amount_cents, status, payment_deadline, created_at, updated_at`

func (r *PGBookingRepository) Claim(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the room row so concurrent claims serialize on it.
	var status domain.RoomStatus
	err = tx.QueryRow(ctx, `SELECT status FROM rooms WHERE id=$1 FOR UPDATE`, booking.RoomID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRoomNotFound
		}
		return err
	}
	if status != domain.RoomStatusFree {
		return domain.ErrRoomNotFree
	}

	var taken bool
	err = tx.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE room_id = $1
			AND status = ANY($2)
			AND start_time < $3 AND end_time > $4
		)`, booking.RoomID, domain.OccupyingStatuses(),
		booking.EndTime, booking.StartTime).Scan(&taken)
	if err != nil {
		return err
	}
	if taken {
		return domain.ErrIntervalTaken
	}

	booking.Status = domain.BookingStatusUnpaid
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (id, room_id, requester_id, start_time, end_time, total_amount_cents, status, payment_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		booking.ID, booking.RoomID, booking.RequesterID, booking.StartTime, booking.EndTime,
		booking.TotalAmountCents, booking.Status, booking.PaymentDeadline).
		Scan(&booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE rooms SET status=$1, updated_at=now() WHERE id=$2`,
		domain.RoomStatusLocked, booking.RoomID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) MarkPaid(ctx context.Context, id string, now time.Time) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	if b.Status == domain.BookingStatusExpired {
		return nil, domain.DeadlineExceededError("payment deadline exceeded, booking expired")
	}
	if b.Status != domain.BookingStatusUnpaid {
		return nil, domain.PolicyViolationError("booking is not awaiting payment")
	}

	if now.After(b.PaymentDeadline) {
		// Lazy expiry: the late payment attempt applies the same transition
		// the sweeper would.
		if err := expireInTx(ctx, tx, b); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, domain.DeadlineExceededError("payment deadline exceeded, booking expired")
	}

	row = tx.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+bookingColumns,
		domain.BookingStatusPaid, id)
	b, err = scanBooking(row)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE rooms SET status=$1, updated_at=now() WHERE id=$2`,
		domain.RoomStatusReserved, b.RoomID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) CancelWithRefund(ctx context.Context, bookingID string, cancellation *domain.Cancellation) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, bookingID)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	if b.Status != domain.BookingStatusPaid {
		return nil, domain.PolicyViolationError("only paid bookings can be cancelled")
	}

	row = tx.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2 RETURNING `+bookingColumns,
		domain.BookingStatusCancelled, bookingID)
	b, err = scanBooking(row)
	if err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx, `INSERT INTO cancellations (id, booking_id, refund_amount_cents, refund_approved)
		VALUES ($1, $2, $3, false)
		RETURNING created_at`,
		cancellation.ID, cancellation.BookingID, cancellation.RefundAmountCents).
		Scan(&cancellation.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// listBookingsQuery narrows by status and by the booking's start time. The
// date range selects when the room is occupied, not when the booking row was
// created.
func listBookingsQuery(requesterID string, filter domain.BookingFilter) (string, []any) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE requester_id = $1`
	args := []any{requesterID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if !filter.DateFrom.IsZero() {
		args = append(args, filter.DateFrom)
		query += ` AND start_time >= $` + strconv.Itoa(len(args))
	}
	if !filter.DateTo.IsZero() {
		args = append(args, filter.DateTo)
		query += ` AND start_time <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	return query, args
}

func (r *PGBookingRepository) ListByRequester(ctx context.Context, requesterID string, filter domain.BookingFilter) ([]domain.Booking, error) {
	query, args := listBookingsQuery(requesterID, filter)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) ListOverdueUnpaid(ctx context.Context, deadline time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM bookings WHERE status=$1 AND payment_deadline < $2`,
		domain.BookingStatusUnpaid, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGBookingRepository) Expire(ctx context.Context, id string, now time.Time) (*domain.Booking, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookingNotFound
		}
		return nil, err
	}
	// A concurrent Pay or a previous sweep may have won the race.
	if b.Status != domain.BookingStatusUnpaid || !now.After(b.PaymentDeadline) {
		return nil, nil
	}

	if err := expireInTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	b.Status = domain.BookingStatusExpired
	return b, nil
}

// expireInTx marks the booking EXPIRED and frees its room if the engine
// still holds the LOCKED state it set on claim.
func expireInTx(ctx context.Context, tx pgx.Tx, b *domain.Booking) error {
	if _, err := tx.Exec(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2`,
		domain.BookingStatusExpired, b.ID); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `UPDATE rooms SET status=$1, updated_at=now() WHERE id=$2 AND status=$3`,
		domain.RoomStatusFree, b.RoomID, domain.RoomStatusLocked)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.RoomID, &b.RequesterID, &b.StartTime, &b.EndTime,
		&b.TotalAmountCents, &b.Status, &b.PaymentDeadline, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
