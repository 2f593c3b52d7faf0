package pubsub

import (
	"context"

	"shop-api/cache"
	"shop-api/logger"
)

// ProductChanged is published whenever a product is updated or deleted.
const ProductChanged = "product_changed"

// PublishProductChanged announces that the cached detail of a product is
// stale.
func (ps *PubSub) PublishProductChanged(id uint) error {
	return ps.Publish(ProductChanged, map[string]interface{}{"id": id})
}

// EvictOnProductChanged keeps a local product cache in step with changes
// made on other instances.
func EvictOnProductChanged(ctx context.Context, ps *PubSub, local cache.ProductCache) {
	ps.Subscribe(ctx, ProductChanged, evictHandler(local))
}

func evictHandler(local cache.ProductCache) HandlerFunc {
	return func(data map[string]interface{}) {
		// JSON numbers decode as float64
		id, ok := data["id"].(float64)
		if !ok || id <= 0 {
			return
		}
		if err := local.Delete(cache.ProductKey(uint(id))); err != nil {
			logger.Warn.Printf("pubsub: evict product %v: %v", id, err)
		}
	}
}
