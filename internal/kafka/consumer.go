package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// TicketEventHandler processes one decoded ticket event.
type TicketEventHandler func(ctx context.Context, event TicketEvent) error

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

// Consume reads ticket events until ctx is canceled or the reader fails.
// Malformed payloads and handler failures are logged and skipped; one bad
// record must not stall the notification stream.
func (c *Consumer) Consume(ctx context.Context, handler TicketEventHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}
		dispatch(ctx, msg.Value, handler)
	}
}

func dispatch(ctx context.Context, payload []byte, handler TicketEventHandler) {
	var event TicketEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("skipping malformed ticket event: %v", err)
		return
	}
	if err := handler(ctx, event); err != nil {
		log.Printf("ticket event %s handler error: %v", event.ReservationID, err)
	}
}
