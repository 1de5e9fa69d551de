package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"gungnir/internal/common"
)

// OrderPublisher publishes order snapshots keyed by order id, tagging each
// message with its terminal status.
type OrderPublisher struct {
	writer *Writer
}

func NewOrderPublisher(writer *Writer) *OrderPublisher {
	return &OrderPublisher{writer: writer}
}

func (p *OrderPublisher) PublishOrder(ctx context.Context, order common.Order, status string) error {
	value, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("unable to encode order %s: %w", order.ID, err)
	}
	return p.writer.Publish(ctx, []byte(order.ID), value,
		kafka.Header{Key: "Status", Value: []byte(status)})
}
