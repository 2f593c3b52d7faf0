package cache

import (
	"encoding/json"
	"strconv"
	"time"

	"shop-api/models"

	"github.com/allegro/bigcache"
)

// ProductCache caches product detail responses keyed by ProductKey.
type ProductCache interface {
	Set(key string, value models.ProductDetail) error
	Get(key string) (models.ProductDetail, error)
	Delete(key string) error
	Close() error
}

// ProductKey is the cache key for a product id.
func ProductKey(id uint) string {
	return "product:" + strconv.FormatUint(uint64(id), 10)
}

// BigCacheStore is an implementation of ProductCache using BigCache.
type BigCacheStore struct {
	cache *bigcache.BigCache
}

// NewBigCacheStore initializes a new BigCacheStore.
func NewBigCacheStore() (*BigCacheStore, error) {
	config := bigcache.Config{
		Shards:           1024,
		LifeWindow:       10 * time.Minute,
		CleanWindow:      5 * time.Minute,
		MaxEntrySize:     2048,
		HardMaxCacheSize: 8192,
		Verbose:          false,
	}
	bc, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, err
	}
	return &BigCacheStore{
		cache: bc,
	}, nil
}

// Set stores a value in the cache.
func (b *BigCacheStore) Set(key string, value models.ProductDetail) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.cache.Set(key, data)
}

// Get retrieves a value from the cache.
func (b *BigCacheStore) Get(key string) (models.ProductDetail, error) {
	data, err := b.cache.Get(key)
	if err != nil {
		return models.ProductDetail{}, err
	}
	var value models.ProductDetail
	err = json.Unmarshal(data, &value)
	if err != nil {
		return models.ProductDetail{}, err
	}
	return value, nil
}

// Delete removes a value from the cache. Deleting a missing key is not an
// error.
func (b *BigCacheStore) Delete(key string) error {
	err := b.cache.Delete(key)
	if err == bigcache.ErrEntryNotFound {
		return nil
	}
	return err
}

// Close releases the shards.
func (b *BigCacheStore) Close() error {
	return b.cache.Close()
}
