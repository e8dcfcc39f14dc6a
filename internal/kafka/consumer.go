package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// Consumer reads booking lifecycle events from a topic and hands each decoded
// event to a handler.
type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// Consume blocks until the context is canceled or the handler fails.
// Malformed payloads are logged and skipped so one bad message cannot wedge
// the stream.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, BookingEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		if err := handleMessage(ctx, msg, handler); err != nil {
			return err
		}
	}
}

func handleMessage(ctx context.Context, msg kafka.Message, handler func(context.Context, BookingEvent) error) error {
	var event BookingEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		log.Printf("skip malformed booking event at offset %d: %v", msg.Offset, err)
		return nil
	}
	return handler(ctx, event)
}
