package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/drewmudry/captioncast/tasks"
	"github.com/go-redis/redis/v8"
)

// Redis publishes events on a pub/sub channel.
type Redis struct {
	RDB     *redis.Client
	Channel string
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{RDB: rdb, Channel: tasks.ChannelExportEvents}
}

func (r *Redis) Publish(ctx context.Context, ev tasks.ExportEvent) error {
	payload, err := tasks.Marshal(ev)
	if err != nil {
		return err
	}
	if err := r.RDB.Publish(ctx, r.Channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.Channel, err)
	}
	return nil
}

// Subscribe delivers events from the channel until ctx is done. Messages
// that do not decode are skipped.
func (r *Redis) Subscribe(ctx context.Context) <-chan tasks.ExportEvent {
	out := make(chan tasks.ExportEvent)
	pubsub := r.RDB.Subscribe(ctx, r.Channel)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev tasks.ExportEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
