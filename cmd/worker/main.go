package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/nirmalarya/autograph-sub003/config"
	"github.com/nirmalarya/autograph-sub003/internal/storage/postgres"
	"github.com/nirmalarya/autograph-sub003/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	retention := worker.NewRetention(db, cfg.Retention.Window)

	c := cron.New(cron.WithSeconds())
	_, err = c.AddFunc(cfg.Retention.Schedule, func() {
		purged, err := retention.Sweep(context.Background())
		if err != nil {
			log.Printf("[error] operation=retention_sweep error=%v", err)
			return
		}
		log.Printf("[info] operation=retention_sweep purged=%d", purged)
	})
	if err != nil {
		log.Fatalf("cron: %v", err)
	}

	log.Printf("[info] operation=worker_start schedule=%q window=%s", cfg.Retention.Schedule, cfg.Retention.Window)
	c.Start()

	<-ctx.Done()
	log.Println("[info] operation=worker_stop waiting for running jobs")
	<-c.Stop().Done()
}
