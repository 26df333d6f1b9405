// Package poller empties carts once their checkout completes.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const retryDelay = time.Second

// CheckoutCompleted is the event published when a checkout finishes.
type CheckoutCompleted struct {
	CheckoutID  string    `json:"checkout_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// CartClearer empties a user's cart and its cached copy.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

type Poller struct {
	carts      CartClearer
	reader     messageReader
	logger     *slog.Logger
	retryDelay time.Duration
}

func NewPoller(carts CartClearer, cfg Config, logger *slog.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(carts, reader, logger.With("component", "poller", "topic", cfg.Topic))
}

func newPoller(carts CartClearer, reader messageReader, logger *slog.Logger) *Poller {
	return &Poller{carts: carts, reader: reader, logger: logger, retryDelay: retryDelay}
}

// Run consumes events until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.ErrorContext(ctx, "error reading message", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Error("error closing reader", "error", err)
	}
}

// poll handles one message. Malformed events are logged and committed so they
// are not read again. A failed clear is retried until it succeeds or ctx ends;
// the message is committed only after the cart is cleared.
func (p *Poller) poll(ctx context.Context) error {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		return err
	}

	for {
		err := p.handle(ctx, m)
		if err == nil {
			break
		}
		p.logger.ErrorContext(ctx, "failed to clear cart, retrying", "offset", m.Offset, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.retryDelay):
		}
	}

	if err := p.reader.CommitMessages(ctx, m); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.WarnContext(ctx, "failed to commit message", "offset", m.Offset, "error", err)
	}
	return nil
}

// handle returns an error only when the cart could not be cleared.
func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	var event CheckoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.logger.WarnContext(ctx, "error parsing message", "offset", m.Offset, "error", err)
		return nil
	}
	if event.UserID == "" {
		p.logger.WarnContext(ctx, "missing user_id in checkout event", "offset", m.Offset, "checkout_id", event.CheckoutID)
		return nil
	}

	if err := p.carts.ClearCart(ctx, event.UserID); err != nil {
		return fmt.Errorf("clear cart of %s after checkout %s: %w", event.UserID, event.CheckoutID, err)
	}
	p.logger.InfoContext(ctx, "cart cleared after checkout", "user_id", event.UserID, "checkout_id", event.CheckoutID)
	return nil
}
