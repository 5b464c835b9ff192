package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nirmalarya/autograph-sub003/config"
	"github.com/nirmalarya/autograph-sub003/internal/bootstrap"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/repository"
	"github.com/nirmalarya/autograph-sub003/internal/diagrams/service"
	"github.com/nirmalarya/autograph-sub003/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	if err := postgres.ApplySchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis.URL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	diagramRepo := repository.NewDiagramRepo(db)
	shareRepo := repository.NewShareRepo(rdb, cfg.Share.TTL)
	svc := service.New(diagramRepo, shareRepo, cfg.Share.BaseURL)

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "diagram-versioning",
		Version:     cfg.App.Version,
		DB:          db,
		Redis:       rdb,
		Diagrams:    svc,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Printf("[info] operation=serve addr=%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[info] operation=shutdown draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[warn] operation=shutdown error=%v", err)
	}
}
