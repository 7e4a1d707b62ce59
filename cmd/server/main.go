package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rechargehub/internal/config"
	"rechargehub/internal/handler"
	"rechargehub/internal/infrastructure/cache"
	"rechargehub/internal/infrastructure/database"
	"rechargehub/internal/infrastructure/mq"
	"rechargehub/internal/job"
	"rechargehub/internal/repository"
	"rechargehub/internal/service"
)

func main() {
	cfg := config.LoadConfig("config/config.yaml")

	db := database.InitMySQL(&cfg.MySQL)

	redisClient := cache.InitRedis(&cfg.Redis)

	mq.InitKafka(&cfg.Kafka)
	defer mq.CloseKafka()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background tasks: event publisher, refund replay, stale order sweep.
	outboxSender := job.NewOutboxSender(db, cfg)
	go outboxSender.Start(ctx)

	ledger := service.NewWalletLedger(db)
	refunder := service.NewRefundManager(
		ledger,
		repository.NewReportRepository(db),
		repository.NewOutboxRepository(db),
		db,
	)
	refundRetry := job.NewRefundRetryJob(db, refunder, cfg)
	go refundRetry.Start(ctx)

	pendingSweep := job.NewPendingSweepJob(db, cfg)
	go pendingSweep.Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}
