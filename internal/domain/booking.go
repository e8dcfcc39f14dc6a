package domain

import "time"

type BookingStatus string

const (
	BookingStatusUnpaid    BookingStatus = "UNPAID"
	BookingStatusPaid      BookingStatus = "PAID"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusExpired   BookingStatus = "EXPIRED"
)

type Booking struct {
	ID               string
	RoomID           int64
	RequesterID      string
	StartTime        time.Time
	EndTime          time.Time
	TotalAmountCents int64
	Status           BookingStatus
	PaymentDeadline  time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OccupyingStatuses are the booking states that count against a room's
// availability in overlap checks.
func OccupyingStatuses() []string {
	return []string{string(BookingStatusUnpaid), string(BookingStatusPaid)}
}

type Cancellation struct {
	ID                string
	BookingID         string
	RefundAmountCents int64
	RefundApproved    bool
	CreatedAt         time.Time
}

// BookingFilter narrows listing queries. Zero values mean "no filter".
type BookingFilter struct {
	Status   BookingStatus
	DateFrom time.Time
	DateTo   time.Time
}
