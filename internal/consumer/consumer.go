package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"storefront-service/internal/entity"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

type StockKeeper interface {
	ReserveStock(ctx context.Context, itemID int64, quantity int) error
	ReleaseStock(ctx context.Context, itemID int64, quantity int) error
}

// MessageReader is satisfied by *kafka.Reader.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Consumer keeps item stock in line with order events.
type Consumer struct {
	reader MessageReader
	stock  StockKeeper
	// pause after a failed read
	backoff time.Duration
}

func NewConsumer(reader MessageReader, stock StockKeeper) *Consumer {
	return &Consumer{reader: reader, stock: stock, backoff: time.Second}
}

// Run reads order events until ctx is cancelled. Events for orders placed by
// this service are skipped; their stock moved when the order was saved.
func (c *Consumer) Run(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.Info().Msg("Stock consumer stopped")
				return
			}
			logger.Error().Err(err).Msg("Error reading message")
			select {
			case <-ctx.Done():
				logger.Info().Msg("Stock consumer stopped")
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		c.processMessage(ctx, msg)
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) {
	var event entity.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Error().Err(err).Msgf("Error unmarshalling message %s", string(msg.Key))
		return
	}

	if event.Origin == entity.OriginStorefront {
		return
	}

	switch event.Type {
	case entity.EventOrderCreated:
		c.apply(ctx, event.Lines, c.stock.ReserveStock)
	case entity.EventOrderCancelled:
		c.apply(ctx, event.Lines, c.stock.ReleaseStock)
	case entity.EventOrderUpdated:
		c.apply(ctx, event.PreviousLines, c.stock.ReleaseStock)
		c.apply(ctx, event.Lines, c.stock.ReserveStock)
	default:
		logger.Error().Msgf("Unknown order event type: %s", event.Type)
	}
}

func (c *Consumer) apply(ctx context.Context, lines []entity.LineItem, fn func(context.Context, int64, int) error) {
	for _, line := range lines {
		if err := fn(ctx, line.ItemID, line.Quantity); err != nil {
			logger.Error().Err(err).Msgf("Error updating stock for item %d", line.ItemID)
		}
	}
}
