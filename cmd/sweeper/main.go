package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"tutorhub/internal/config"
	"tutorhub/internal/notify"
	"tutorhub/internal/profile"
	"tutorhub/internal/scheduling"
	"tutorhub/internal/store"
)

// Sweeper advances expired sessions (auto-completion and no-show detection)
// on a fixed schedule, independent of the API process.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL, store.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
	})
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr, cfg.RedisTimeout)

	clock, err := scheduling.NewClock(cfg.CanonicalTZ)
	if err != nil {
		log.Fatalf("invalid canonical timezone %q: %v", cfg.CanonicalTZ, err)
	}

	var notifier notify.Notifier
	switch {
	case cfg.NotifyWebhook != "":
		notifier = notify.NewWebhook(cfg.NotifyWebhook)
	case cfg.NotifyBackend == "memory":
		notifier = notify.NewMemory()
	default:
		notifier = notify.NewRedis(redisClient.Client, "tutorhub:notifications")
	}

	sessions := scheduling.NewPostgresRepository(db.Client)
	profiles := profile.NewPostgresStore(db.Client)
	machine := scheduling.NewMachine(sessions, profiles, notifier, clock, cfg.TrainingPoints)
	sweeper := scheduling.NewSweeper(sessions, machine, clock, cfg.NoShowGrace)

	// SkipIfStillRunning keeps sweeps single-flight even if an iteration
	// outlasts the interval; the sweeper's own guard covers manual
	// triggers arriving through the API.
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	spec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := c.AddFunc(spec, func() {
		stats := sweeper.RunSweepOnce(ctx)
		if stats.Completed > 0 || stats.NoShows > 0 || stats.Errors > 0 {
			log.Printf("sweep finished: %d completed, %d no-shows, %d errors",
				stats.Completed, stats.NoShows, stats.Errors)
		}
	}); err != nil {
		log.Fatalf("scheduling sweep failed: %v", err)
	}

	log.Printf("sweeper started, interval %s, grace %s", cfg.SweepInterval, cfg.NoShowGrace)
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	log.Println("sweeper stopped")
}
