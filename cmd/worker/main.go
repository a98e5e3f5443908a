package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/drewmudry/captioncast/exports"
	"github.com/drewmudry/captioncast/internal/config"
	"github.com/drewmudry/captioncast/internal/platform"
	"github.com/drewmudry/captioncast/transcode"
	"github.com/drewmudry/captioncast/worker"
	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := platform.NewDBConnection(cfg)
	if err != nil {
		log.Fatalf("Database: %v", err)
	}
	rdb := platform.NewRedisClient(cfg)
	svc, err := platform.NewServices(ctx, cfg)
	if err != nil {
		log.Fatalf("Storage: %v", err)
	}

	adapter := transcode.NewAdapter(transcode.FFmpeg{Path: cfg.FFmpegPath})
	// A failed load is retried on the next job.
	if _, err := adapter.Load(ctx); err != nil {
		log.Printf("Transcode engine not ready: %v", err)
	}

	queue := exports.NewQueue(exports.NewGormStore(db), worker.NewProcessor(svc.Blobs, adapter))
	publisher, closeEvents := platform.NewPublisher(cfg, rdb)
	defer closeEvents()
	queue.Events = publisher

	sched, release, err := newScheduler(cfg, rdb)
	if err != nil {
		log.Fatalf("Scheduler: %v", err)
	}
	defer release()

	log.Printf("Worker started with %s scheduler, waiting for exports...", cfg.Scheduler)
	if err := queue.Run(ctx, sched); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Worker stopped: %v", err)
	}
}

func newScheduler(cfg *config.Config, rdb *redis.Client) (exports.Scheduler, func(), error) {
	switch cfg.Scheduler {
	case config.SchedulerCron:
		s, err := exports.NewCronScheduler(cfg.CronSpec)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Stop, nil
	case config.SchedulerRedis:
		return exports.NewRedisScheduler(rdb, cfg.PollDelay), func() {}, nil
	default:
		return exports.DelayScheduler{Delay: cfg.PollDelay}, func() {}, nil
	}
}
