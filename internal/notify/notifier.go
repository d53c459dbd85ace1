package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-table-orders.git/internal/kafka"
	"github.com/ariefcatur/go-table-orders.git/internal/orders"
	"github.com/ariefcatur/go-table-orders.git/internal/redisx"
)

// Notifier mendengarkan event lifecycle order: refresh cache status di redis
// dan tulis notifikasi untuk staff (log terstruktur sederhana, bukan kitchen
// display).
type Notifier struct {
	Redis       *redis.Client
	ServiceName string
}

// Handle dipasang sebagai handler consumer untuk semua topic order.*.
func (n *Notifier) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	// dedup via redis (pakai event_id); at-least-once delivery dari kafka
	if n.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, "notify", env.EventID)
		if exists, _ := redisx.Exists(ctx, n.Redis, dkey); exists {
			return nil
		}
		_ = n.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	switch env.EventType {
	case orders.EventOrderCreated:
		p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
		if err != nil {
			return err
		}
		n.cacheStatus(ctx, p.OrderID, orders.StatusPending, env.OccurredAt)
		log.Printf("meja %d: order %s masuk, %d item, total %d", p.TableNumber, p.OrderCode, len(p.Items), p.Total)
	case orders.EventOrderPaid:
		p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
		if err != nil {
			return err
		}
		n.cacheStatus(ctx, p.OrderID, orders.StatusPaid, env.OccurredAt)
		log.Printf("meja %d: order %s LUNAS, total %d", p.TableNumber, p.OrderCode, p.Total)
	case orders.EventOrderExpired:
		p, err := kafkax.UnwrapPayload[orders.OrderExpiredPayload](env.Payload)
		if err != nil {
			return err
		}
		n.cacheStatus(ctx, p.OrderID, orders.StatusExpired, env.OccurredAt)
		log.Printf("meja %d: order %s kadaluarsa", p.TableNumber, p.OrderCode)
	case orders.EventOrderCancelled:
		p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
		if err != nil {
			return err
		}
		n.cacheStatus(ctx, p.OrderID, orders.StatusCancelled, env.OccurredAt)
		log.Printf("meja %d: order %s dibatalkan", p.TableNumber, p.OrderCode)
	default:
		// event type lain: abaikan, tetap commit offset
	}
	return nil
}

func (n *Notifier) cacheStatus(ctx context.Context, id int64, status orders.Status, at time.Time) {
	if n.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, id)
	val := fmt.Sprintf(`{"status":%q,"updated_at":%q}`, status, at.Format(time.RFC3339))
	_ = n.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}
