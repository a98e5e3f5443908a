package exports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/drewmudry/captioncast/tasks"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
)

// DefaultPollDelay is the pause between consumer ticks.
const DefaultPollDelay = 2 * time.Second

// Scheduler decides when the consumer ticks next.
type Scheduler interface {
	// Wait blocks until the next tick is due. It returns ctx.Err() once ctx
	// is done.
	Wait(ctx context.Context) error
}

// DelayScheduler ticks a fixed delay after the previous tick finished.
type DelayScheduler struct {
	Delay time.Duration
}

func (s DelayScheduler) Wait(ctx context.Context) error {
	d := s.Delay
	if d <= 0 {
		d = DefaultPollDelay
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// CronScheduler ticks on a cron schedule. Firings that happen while a tick
// is running collapse into one pending tick.
type CronScheduler struct {
	cron  *cron.Cron
	fired chan struct{}
}

// NewCronScheduler parses schedule ("@every 5s", "*/1 * * * *") and starts the
// schedule.
func NewCronScheduler(schedule string) (*CronScheduler, error) {
	s := &CronScheduler{
		cron:  cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default())))),
		fired: make(chan struct{}, 1),
	}
	if _, err := s.cron.AddFunc(schedule, s.fire); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	return s, nil
}

func (s *CronScheduler) fire() {
	select {
	case s.fired <- struct{}{}:
	default:
	}
}

func (s *CronScheduler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.fired:
		return nil
	}
}

// Stop ends the schedule.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RedisScheduler wakes the consumer when a producer pushes to a Redis list,
// and otherwise after Fallback. It is also the producer side's Waker.
type RedisScheduler struct {
	RDB      *redis.Client
	Key      string
	Fallback time.Duration
}

func NewRedisScheduler(rdb *redis.Client, fallback time.Duration) *RedisScheduler {
	return &RedisScheduler{RDB: rdb, Key: tasks.QueueExportWakeup, Fallback: fallback}
}

// Wake pushes a wake-up token.
func (s *RedisScheduler) Wake(ctx context.Context, jobID uint) error {
	payload, err := tasks.Marshal(tasks.WakeupPayload{JobID: jobID})
	if err != nil {
		return err
	}
	return s.RDB.LPush(ctx, s.Key, payload).Err()
}

func (s *RedisScheduler) Wait(ctx context.Context) error {
	fallback := s.Fallback
	if fallback < time.Second {
		// BRPOP timeouts have one second resolution.
		fallback = time.Second
	}
	_, err := s.RDB.BRPop(ctx, fallback, s.Key).Result()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	switch {
	case err == nil:
		// Tokens pushed while we were busy all refer to work the next tick
		// will see anyway.
		if err := s.RDB.Del(ctx, s.Key).Err(); err != nil {
			log.Printf("[exports] clear wake-ups: %v", err)
		}
	case errors.Is(err, redis.Nil):
	default:
		log.Printf("[exports] waiting for wake-up: %v", err)
		return DelayScheduler{Delay: fallback}.Wait(ctx)
	}
	return nil
}
