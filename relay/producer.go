package relay

import (
	"context"
	"fmt"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/segmentio/kafka-go"

	"github.com/goliatone/go-cart-recovery/core"
)

// messageWriter is the slice of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes cart events keyed by cart id.
type Producer struct {
	writer messageWriter
	logger core.Logger
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("relay: at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("relay: topic is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return &Producer{
		writer: writer,
		logger: glog.Nop(),
	}, nil
}

func (p *Producer) WithLogger(logger core.Logger) *Producer {
	if p != nil && logger != nil {
		p.logger = logger
	}
	return p
}

func (p *Producer) Publish(ctx context.Context, event core.CartEvent) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("relay: producer is not configured")
	}
	key, value, err := EncodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value}); err != nil {
		return fmt.Errorf("relay: publish cart event: %w", err)
	}
	p.logger.Debug("cart event published",
		"shop", event.Shop,
		"cart_id", event.ID,
	)
	return nil
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

var _ core.CartEventPublisher = (*Producer)(nil)
