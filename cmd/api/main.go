package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-table-orders.git/internal/config"
	"github.com/ariefcatur/go-table-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-table-orders.git/internal/kafka"
	"github.com/ariefcatur/go-table-orders.git/internal/menu"
	"github.com/ariefcatur/go-table-orders.git/internal/orders"
	"github.com/ariefcatur/go-table-orders.git/internal/postgres"
	"github.com/ariefcatur/go-table-orders.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (satu untuk semua topic order.*)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(ctx)

	// Service & handlers
	svc := &orders.Service{
		Store:       &orders.Repo{DB: db},
		Redis:       rdb,
		Producer:    prod,
		ServiceName: cfg.ServiceName,
		FeeRatePct:  cfg.FeeRatePct,
		OrderTTL:    cfg.OrderTTL,
		TableCount:  cfg.TableCount,
	}

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: svc}).Register(router)
	(&httpx.PaymentsHandler{Svc: svc}).Register(router)
	(&httpx.MenusHandler{Repo: &menu.Repo{DB: db}, Redis: rdb}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
