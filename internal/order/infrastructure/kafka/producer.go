package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Writer wraps the segmentio writer so the relay dispatcher depends on a
// closeable producer rather than the concrete client.
type Writer struct {
	*kafka.Writer
}

func NewWriter(brokers []string) *Writer {
	return &Writer{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return w.Writer.WriteMessages(ctx, msgs...)
}

func (w *Writer) Close() error {
	return w.Writer.Close()
}
