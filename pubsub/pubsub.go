package pubsub

import (
	"context"
	"encoding/json"

	"shop-api/cache"
	"shop-api/logger"
)

const channel = "events"

type HandlerFunc func(data map[string]interface{})

type PubSub struct {
	redisStore *cache.RedisStore
}

func NewPubSub(redisStore *cache.RedisStore) *PubSub {
	return &PubSub{redisStore: redisStore}
}

// Subscribe runs handler for every message of the given event until ctx is
// cancelled.
func (ps *PubSub) Subscribe(ctx context.Context, event string, handler HandlerFunc) {
	sub := ps.redisStore.Client.Subscribe(ctx, channel)
	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				data, ok := decodeEvent([]byte(msg.Payload), event)
				if ok {
					handler(data)
				}
			}
		}
	}()
}

// Publish an event
func (ps *PubSub) Publish(event string, data map[string]interface{}) error {
	payload := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	bytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return ps.redisStore.Client.Publish(ps.redisStore.Ctx, channel, bytes).Err()
}

// decodeEvent returns the data of payload when it carries the wanted event.
func decodeEvent(payload []byte, event string) (map[string]interface{}, bool) {
	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		logger.Warn.Printf("pubsub: decode error: %v", err)
		return nil, false
	}
	if evt, ok := msg["event"].(string); !ok || evt != event {
		return nil, false
	}
	data, ok := msg["data"].(map[string]interface{})
	return data, ok
}
