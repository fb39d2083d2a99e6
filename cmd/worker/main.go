package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"cvbuilder/internal/config"
	"cvbuilder/internal/database"
	"cvbuilder/internal/mail"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/tasks"
	"cvbuilder/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	log.Println("database connection ready for worker")

	mailSender := mail.NewSMTPSender(cfg.SMTP)

	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.Redis.Addr()},
		asynq.Config{Concurrency: 10},
	)

	broadcastHandler := worker.NewBroadcastHandler(db, mailSender, logger)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeEmailBroadcast, broadcastHandler)

	logger.Info("worker service started", slog.String("redis_addr", cfg.Redis.Addr()))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
