package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/segmentio/kafka-go"

	"github.com/goliatone/go-cart-recovery/core"
)

// messageFetcher is the slice of kafka.Reader the consumer uses.
type messageFetcher interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer replays relayed cart events into the cart store. Commits happen
// after the upsert, so a crash between the two redelivers rather than
// drops; the idempotent upsert absorbs the duplicate.
type Consumer struct {
	reader messageFetcher
	carts  core.CartStore
	logger core.Logger
	now    func() time.Time
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewConsumer(cfg ConsumerConfig, carts core.CartStore) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("relay: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("relay: topic is required")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("relay: consumer group id is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("relay: cart store is required")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	return &Consumer{
		reader: reader,
		carts:  carts,
		logger: glog.Nop(),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (c *Consumer) WithLogger(logger core.Logger) *Consumer {
	if c != nil && logger != nil {
		c.logger = logger
	}
	return c
}

// Run consumes until the context is canceled or the store becomes
// unavailable. Undecodable messages and events that fail validation are
// logged and committed; skipping poison beats wedging the partition.
// Only a store failure stops the loop without committing.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil || c.reader == nil || c.carts == nil {
		return fmt.Errorf("relay: consumer is not configured")
	}
	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("relay: fetch message: %w", err)
		}

		event, err := DecodeEvent(message.Value)
		if err != nil {
			c.logger.Warn("skipping undecodable cart event",
				"topic", message.Topic,
				"offset", message.Offset,
				"error", err.Error(),
			)
			if err := c.reader.CommitMessages(ctx, message); err != nil {
				return fmt.Errorf("relay: commit poison message: %w", err)
			}
			continue
		}

		if err := c.apply(ctx, event); err != nil {
			if core.IsBadInput(err) {
				// Same treatment as undecodable payloads: redelivering an
				// invalid event can never succeed, so commit past it.
				c.logger.Warn("skipping invalid cart event",
					"shop", event.Shop,
					"cart_id", event.ID,
					"error", err.Error(),
				)
				if err := c.reader.CommitMessages(ctx, message); err != nil {
					return fmt.Errorf("relay: commit rejected message: %w", err)
				}
				continue
			}
			// Leave the message uncommitted; redelivery retries it once
			// the store recovers.
			return err
		}
		if err := c.reader.CommitMessages(ctx, message); err != nil {
			return fmt.Errorf("relay: commit message: %w", err)
		}
	}
}

func (c *Consumer) apply(ctx context.Context, event core.CartEvent) error {
	email := ""
	if event.CustomerEmail != nil {
		email = *event.CustomerEmail
	}
	observedAt := event.CreatedAt
	if observedAt.IsZero() {
		observedAt = c.now()
	}
	_, err := c.carts.Upsert(ctx, core.UpsertCartInput{
		ID:            event.ID,
		Shop:          event.Shop,
		CustomerEmail: email,
		IsGuest:       event.IsGuest,
		ObservedAt:    observedAt,
	})
	if err != nil {
		return core.MapError(err)
	}
	c.logger.Debug("cart event applied",
		"shop", event.Shop,
		"cart_id", event.ID,
	)
	return nil
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}
