package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-table-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-table-orders.git/internal/kafka"
	"github.com/ariefcatur/go-table-orders.git/internal/orders"
	"github.com/ariefcatur/go-table-orders.git/internal/postgres"
)

// Sweeper: batch auto-expire periodik. Lazy expire di read-path sudah
// menjaga kebenaran; ini supaya order basi tidak menunggu dibaca dulu.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 256)
	prod.Start(ctx)

	repo := &orders.Repo{DB: db}
	producerName := cfg.ServiceName + "-sweeper"

	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		log.Printf("sweeper started: interval=%s", cfg.SweepInterval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, repo, prod, producerName)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down sweeper...")
	cancel()
	prod.Close()
	prod.WaitClosed()
}

func sweep(ctx context.Context, repo *orders.Repo, prod *kafkax.Producer, producer string) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	swept, err := repo.SweepExpired(cctx, time.Now().UTC())
	if err != nil {
		log.Printf("sweep: %v", err)
		return
	}
	if len(swept) == 0 {
		return
	}
	log.Printf("sweep: %d order expired", len(swept))

	for _, ref := range swept {
		ev := orders.Envelope{
			EventID:       uuid.NewString(),
			EventType:     orders.EventOrderExpired,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      producer,
			CorrelationID: ref.Code,
			Payload: kafkax.MustMarshal(orders.OrderExpiredPayload{
				OrderID: ref.ID, OrderCode: ref.Code, TableNumber: ref.TableNumber,
			}),
		}
		prod.Publish(orders.TopicOrderExpired, orders.PartitionKey(ref.Code), kafkax.MustMarshal(ev),
			kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderExpired)},
			kafkago.Header{Key: "x-event-version", Value: []byte("1")},
		)
	}
}
