package api

import (
	"context"
	"encoding/json"
	"os"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so corridor
// events reach subscribers on every API instance.
type RedisBroker struct {
	rdb *redis.Client
}

func NewRedisBroker() (*RedisBroker, error) {
	opt, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		return nil, err
	}
	return &RedisBroker{rdb: redis.NewClient(opt)}, nil
}

func (b *RedisBroker) Subscribe(corridorID string) chan SSEEvent {
	ch := make(chan SSEEvent, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(corridorID))
	// initial consume to ensure subscription
	_, _ = ps.Receive(ctx)
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt SSEEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(corridorID string, ch chan SSEEvent) {
	// The goroutine exits when the pubsub channel closes on connection
	// loss; closing here releases the local subscriber.
	close(ch)
}

func (b *RedisBroker) Publish(corridorID string, evt SSEEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(corridorID), data).Err()
}

func (b *RedisBroker) chanName(corridorID string) string { return "corridor:" + corridorID }
