package domain

import "time"

type RoomStatus string

const (
	RoomStatusFree        RoomStatus = "FREE"
	RoomStatusLocked      RoomStatus = "LOCKED"
	RoomStatusReserved    RoomStatus = "RESERVED"
	RoomStatusInUse       RoomStatus = "IN_USE"
	RoomStatusMaintenance RoomStatus = "MAINTENANCE"
)

type Room struct {
	ID                int64
	Name              string
	Type              string
	Capacity          int
	PricePerHourCents int64
	Status            RoomStatus
	EquipmentIDs      []int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Equipment struct {
	ID   int64
	Name string
}
