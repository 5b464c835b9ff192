// syncd is the client-side sync daemon: it owns the offline store and
// replays queued edits against the server whenever connectivity allows.
// A pass runs at startup, on every tick of the reconnect probe, and on
// SIGHUP. The daemon is decoupled from any UI surface; navigating away
// never cancels a pass.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nirmalarya/autograph-sub003/config"
	"github.com/nirmalarya/autograph-sub003/internal/offline"
	"github.com/nirmalarya/autograph-sub003/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Client.ActorID == "" {
		log.Fatal("SYNC_ACTOR_ID is required")
	}

	store, err := offline.Open(cfg.Client.StorePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer store.Close()

	client := syncer.NewClient(cfg.Client.ServerURL, cfg.Client.ActorID)
	coordinator := syncer.NewCoordinator(store, client, syncer.Config{
		BackoffInitial: cfg.Sync.BackoffInitial,
		BackoffMax:     cfg.Sync.BackoffMax,
		RatePerSec:     cfg.Sync.RatePerSec,
	})
	defer coordinator.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trigger := make(chan os.Signal, 1)
	signal.Notify(trigger, syscall.SIGHUP)

	log.Printf("[info] operation=syncd_start server=%s store=%s interval=%s",
		cfg.Client.ServerURL, cfg.Client.StorePath, cfg.Sync.Interval)

	runPass(ctx, coordinator)

	ticker := time.NewTicker(cfg.Sync.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runPass(ctx, coordinator)
		case <-trigger:
			log.Println("[info] operation=syncd_trigger source=sighup")
			runPass(ctx, coordinator)
		case <-ctx.Done():
			log.Println("[info] operation=syncd_stop")
			return
		}
	}
}

func runPass(ctx context.Context, c *syncer.Coordinator) {
	if err := c.TriggerSync(ctx); err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			return
		}
		log.Printf("[warn] operation=sync_pass error=%v", err)
	}
	log.Printf("[info] operation=sync_pass state=%s", c.State())
}
