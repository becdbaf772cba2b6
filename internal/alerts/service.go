// Package alerts watches order placements and raises low-stock events so
// purchasing can restock before a product runs dry.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "warehouse-service/internal/kafka"
	"warehouse-service/internal/orders"
	"warehouse-service/internal/redisx"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type StockReader interface {
	GetProduct(ctx context.Context, id int64) (*orders.Product, error)
}

type Service struct {
	Stock       StockReader
	Redis       *redis.Client // optional, event dedup
	Producer    Publisher     // optional
	ServiceName string
	Threshold   int
	Log         zerolog.Logger
}

// HandleOrderPlaced is the consumer handler: after a placement it re-reads
// the stock of every involved product and publishes a LowStock event for
// each one at or below the threshold.
func (s *Service) HandleOrderPlaced(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventOrderPlaced {
		return nil
	}

	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "alerts", env.EventID)
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	placed, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, it := range placed.Items {
		p, err := s.Stock.GetProduct(ctx, it.ProductID)
		if err != nil {
			var nfe *orders.NotFoundError
			if errors.As(err, &nfe) {
				// product deleted since the order was placed
				continue
			}
			return err
		}
		if p.QuantityInStock > s.Threshold {
			continue
		}
		s.Log.Warn().
			Int64("product_id", p.ID).
			Str("sku", p.SKU).
			Int("stock", p.QuantityInStock).
			Int("threshold", s.Threshold).
			Msg("low stock")
		s.publishLowStock(p, env.TraceID)
	}
	return nil
}

func (s *Service) publishLowStock(p *orders.Product, trace string) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventLowStock,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: string(orders.PartitionKey(p.ID)),
		Payload: kafkax.MustMarshal(orders.LowStockPayload{
			ProductID: p.ID, SKU: p.SKU, Stock: p.QuantityInStock, Threshold: s.Threshold,
		}),
	}
	s.Producer.Publish(orders.TopicLowStock, orders.PartitionKey(p.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventLowStock)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
