package bus

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	tomb "gopkg.in/tomb.v2"
)

// Writer publishes keyed messages to a single topic.
type Writer struct {
	writer *kafka.Writer
}

func NewWriter(brokers []string, topic string) *Writer {
	return &Writer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish sends one message. Headers carry message-level tags such as the
// terminal status of an order snapshot.
func (w *Writer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	return w.writer.WriteMessages(ctx, kafka.Message{
		Key:     key,
		Value:   value,
		Headers: headers,
	})
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// Handler consumes one message body. A non-nil error is logged and the
// message is skipped; consumption continues.
type Handler func(key, value []byte) error

// Reader wraps a consumer-group reader around a handler loop.
type Reader struct {
	reader *kafka.Reader
}

func NewReader(brokers []string, topic, groupID string) *Reader {
	return &Reader{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
	}
}

// Run fetches messages until the tomb dies. Malformed or failing messages are
// skipped rather than crashing the loop; availability wins over strictness.
func (r *Reader) Run(t *tomb.Tomb, handle Handler) error {
	ctx := t.Context(nil)
	defer func() {
		if err := r.reader.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close reader")
		}
	}()

	for {
		msg, err := r.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error().Err(err).Str("topic", r.reader.Config().Topic).Msg("error reading message")
			select {
			case <-t.Dying():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if err := handle(msg.Key, msg.Value); err != nil {
			log.Error().
				Err(err).
				Str("topic", r.reader.Config().Topic).
				Int64("offset", msg.Offset).
				Msg("dropping message")
		}
	}
}
