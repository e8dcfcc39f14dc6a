package email

import (
	"context"
	"fmt"

	"github.com/mzhav/roomreserve/internal/kafka"
)

type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	fmt.Printf("notify user %s: booking %s for room %d is now %s (%s)\n",
		event.RequesterID, event.BookingID, event.RoomID, event.Status, event.Type)
	return nil
}
