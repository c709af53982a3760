package core

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultAbandonmentWindow = 4 * time.Hour
	defaultRecheckBatchSize  = 100
)

// PassStats summarizes one recheck pass over the pending backlog.
type PassStats struct {
	Scanned      int
	Converted    int
	Notified     int
	Inconclusive int
	Skipped      int
	Failed       int
}

// RecheckService scans pending carts past the abandonment window, asks the
// conversion checker, and dispatches at most one notification per cart.
//
// Concurrent passes are safe: the dispatch claim admits exactly one sender
// per cart and MarkNotified is conditional on email_sent_at still being
// null, so overlapping ticks and multi-process deployments cannot
// double-send. The store is consulted before and after each external call,
// never held across one.
type RecheckService struct {
	Carts     CartStore
	Claims    DispatchClaims
	Checker   ConversionChecker
	Sender    NotificationSender
	Logger    Logger
	Window    time.Duration
	BatchSize int
	Now       func() time.Time
}

func NewRecheckService(
	carts CartStore,
	claims DispatchClaims,
	checker ConversionChecker,
	sender NotificationSender,
) (*RecheckService, error) {
	if carts == nil {
		return nil, fmt.Errorf("core: cart store is required")
	}
	if claims == nil {
		return nil, fmt.Errorf("core: dispatch claims are required")
	}
	if checker == nil {
		return nil, fmt.Errorf("core: conversion checker is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("core: notification sender is required")
	}
	return &RecheckService{
		Carts:     carts,
		Claims:    claims,
		Checker:   checker,
		Sender:    sender,
		Logger:    glog.Nop(),
		Window:    defaultAbandonmentWindow,
		BatchSize: defaultRecheckBatchSize,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// RunPass executes one scan. A store failure listing the backlog aborts the
// pass; every per-cart failure only skips that cart until the next tick.
func (s *RecheckService) RunPass(ctx context.Context) (PassStats, error) {
	if s == nil || s.Carts == nil {
		return PassStats{}, fmt.Errorf("core: recheck service is not configured")
	}
	now := s.now()
	cutoff := now.Add(-s.window())

	carts, err := s.Carts.ListNotifiable(ctx, cutoff, s.batchSize())
	if err != nil {
		return PassStats{}, PersistenceFailure(err, "core: list notifiable carts")
	}

	stats := PassStats{Scanned: len(carts)}
	for _, cart := range carts {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		s.recheckOne(ctx, cart, &stats)
	}

	s.logger().Info("recheck pass finished",
		"scanned", stats.Scanned,
		"converted", stats.Converted,
		"notified", stats.Notified,
		"inconclusive", stats.Inconclusive,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, nil
}

func (s *RecheckService) recheckOne(ctx context.Context, cart Cart, stats *PassStats) {
	converted, err := s.Checker.Converted(ctx, cart.Shop, cart.RecoveryToken)
	if err != nil {
		// Inconclusive: the cart stays pending and eligible for the next
		// tick. Never mark a cart abandoned on an upstream failure.
		stats.Inconclusive++
		s.logger().Warn("conversion check inconclusive",
			"shop", cart.Shop,
			"cart_id", cart.ID,
			"error", err.Error(),
		)
		return
	}

	if converted {
		settled, err := s.Carts.MarkConverted(ctx, cart.Shop, cart.ID)
		if err != nil {
			stats.Failed++
			s.logger().Error("mark converted failed",
				"shop", cart.Shop,
				"cart_id", cart.ID,
				"error", err.Error(),
			)
			return
		}
		if !settled {
			stats.Skipped++
			return
		}
		stats.Converted++
		s.logger().Info("cart converted, no notification",
			"shop", cart.Shop,
			"cart_id", cart.ID,
		)
		return
	}

	s.notify(ctx, cart, stats)
}

func (s *RecheckService) notify(ctx context.Context, cart Cart, stats *PassStats) {
	claimed, err := s.Claims.Claim(ctx, cart.Shop, cart.ID)
	if err != nil {
		stats.Failed++
		s.logger().Error("dispatch claim failed",
			"shop", cart.Shop,
			"cart_id", cart.ID,
			"error", err.Error(),
		)
		return
	}
	if !claimed {
		// Another pass holds the claim or already sent; nothing to do.
		stats.Skipped++
		return
	}

	msg := Notification{
		CartID:         cart.ID,
		Shop:           cart.Shop,
		Recipient:      cart.CustomerEmail,
		RecoveryToken:  cart.RecoveryToken,
		FirstItemTitle: cart.FirstItemTitle,
	}
	if err := s.Sender.Send(ctx, msg); err != nil {
		// Release the claim so the next tick retries; email_sent_at stays
		// null and no status advances on a failed dispatch.
		if releaseErr := s.Claims.Release(ctx, cart.Shop, cart.ID, err); releaseErr != nil {
			s.logger().Error("dispatch claim release failed",
				"shop", cart.Shop,
				"cart_id", cart.ID,
				"error", releaseErr.Error(),
			)
		}
		stats.Failed++
		s.logger().Warn("notification send failed",
			"shop", cart.Shop,
			"cart_id", cart.ID,
			"error", err.Error(),
		)
		return
	}

	if err := s.Claims.MarkSent(ctx, cart.Shop, cart.ID); err != nil {
		s.logger().Error("dispatch claim settle failed",
			"shop", cart.Shop,
			"cart_id", cart.ID,
			"error", err.Error(),
		)
	}
	marked, err := s.Carts.MarkNotified(ctx, cart.Shop, cart.ID, s.now())
	if err != nil {
		stats.Failed++
		s.logger().Error("mark notified failed",
			"shop", cart.Shop,
			"cart_id", cart.ID,
			"error", err.Error(),
		)
		return
	}
	if !marked {
		stats.Skipped++
		return
	}
	stats.Notified++
	s.logger().Info("abandonment notification sent",
		"shop", cart.Shop,
		"cart_id", cart.ID,
	)
}

func (s *RecheckService) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return defaultAbandonmentWindow
}

func (s *RecheckService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultRecheckBatchSize
}

func (s *RecheckService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *RecheckService) logger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return glog.Nop()
}
