package publisher

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ender/domain"
)

// Redis publishes notification payloads on the Redis channel named after the
// topic. Pub/sub has no message key, so Key only drives consolidation.
type Redis struct {
	client        *redis.Client
	channelPrefix string
}

func NewRedis(client *redis.Client, channelPrefix string) *Redis {
	return &Redis{client: client, channelPrefix: channelPrefix}
}

func (r *Redis) Channel(topic string) string {
	return r.channelPrefix + topic
}

func (r *Redis) Publish(ctx context.Context, n domain.Notification) error {
	return r.client.Publish(ctx, r.Channel(n.Topic), n.Payload).Err()
}

// Close leaves the client open; it is shared with the cache mirror.
func (r *Redis) Close(context.Context) error {
	return nil
}
