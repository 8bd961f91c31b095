package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"assetmanager/internal/logger"
)

const redisPublishTimeout = 2 * time.Second

// RedisPublisher publishes queued notifications as JSON on a Redis channel so
// approval workers outside this process can react to them.
type RedisPublisher struct {
	Client  *redis.Client
	Channel string
}

// NewRedisPublisher creates a RedisPublisher for the given server and channel.
func NewRedisPublisher(opt *redis.Options, channel string) *RedisPublisher {
	return &RedisPublisher{Client: redis.NewClient(opt), Channel: channel}
}

// Encode renders the wire payload for an event.
func Encode(event DataPointQueued) ([]byte, error) {
	return json.Marshal(event)
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(event DataPointQueued) {
	payload, err := Encode(event)
	if err != nil {
		logger.Get().Errorw("failed to encode queued notification", "error", err, "sequence", event.Sequence)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()

	if err := p.Client.Publish(ctx, p.Channel, payload).Err(); err != nil {
		logger.Get().Errorw("failed to publish queued notification",
			"error", err,
			"channel", p.Channel,
			"asset_id", event.AssetID,
			"sequence", event.Sequence,
		)
	}
}

// Close releases the Redis connection pool.
func (p *RedisPublisher) Close() error {
	return p.Client.Close()
}
