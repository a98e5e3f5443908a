package platform

import (
	"log"

	"github.com/drewmudry/captioncast/events"
	"github.com/drewmudry/captioncast/internal/config"
	"github.com/go-redis/redis/v8"
)

// NewPublisher fans export events out to the log, Redis pub/sub and, when
// AMQP_URL is set, RabbitMQ. The returned func releases the broker
// connection.
func NewPublisher(cfg *config.Config, rdb *redis.Client) (events.Multi, func()) {
	pubs := events.Multi{events.Logger{}, events.NewRedis(rdb)}
	if cfg.AMQPURL == "" {
		return pubs, func() {}
	}
	mq, err := events.NewRabbitMQ(cfg.AMQPURL)
	if err != nil {
		log.Printf("RabbitMQ unavailable, continuing without it: %v", err)
		return pubs, func() {}
	}
	log.Println("Publishing export events to RabbitMQ")
	return append(pubs, mq), mq.Close
}
