package strategies

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-storage-cache/cache"
	"github.com/goliatone/go-storage-cache/storage"
)

// entityCache is the per-entity view over the cache service shared by the
// read/write strategies. Entities live under their encoded key.
type entityCache struct {
	cache *cache.Service
	log   logrus.FieldLogger
}

// getAll resolves keys from the cache. Keys without a usable cached entity
// are simply absent from the result.
func (c entityCache) getAll(ctx context.Context, keys []storage.Key) map[storage.Key]storage.Entity {
	encoded := make([]string, len(keys))
	for i, key := range keys {
		encoded[i] = key.Encode()
	}
	found := c.cache.GetAll(ctx, encoded)

	result := make(map[storage.Key]storage.Entity, len(found))
	for i, key := range keys {
		data, ok := found[encoded[i]]
		if !ok {
			continue
		}
		entity, err := storage.UnmarshalEntity(data)
		if err != nil {
			c.log.WithError(err).WithField("key", encoded[i]).Warn("cached entity is corrupt, dropping it")
			c.cache.Remove(ctx, encoded[i])
			continue
		}
		result[key] = entity
	}
	return result
}

// putAll stores entities under their encoded keys. Entities that fail to
// serialize are skipped.
func (c entityCache) putAll(ctx context.Context, entities map[storage.Key]storage.Entity) {
	if len(entities) == 0 {
		return
	}
	values := make(map[string][]byte, len(entities))
	for key, entity := range entities {
		data, err := storage.MarshalEntity(entity)
		if err != nil {
			c.log.WithError(err).WithField("key", key.Encode()).Warn("entity encode failed, not cached")
			continue
		}
		values[key.Encode()] = data
	}
	c.cache.PutAll(ctx, values)
}

// remove drops the keys from the cache.
func (c entityCache) remove(ctx context.Context, keys []storage.Key) {
	if len(keys) == 0 {
		return
	}
	encoded := make([]string, len(keys))
	for i, key := range keys {
		encoded[i] = key.Encode()
	}
	c.cache.Remove(ctx, encoded...)
}

// collectResponse pairs each non-nil response slot with its key.
func collectResponse(keys []storage.Key, res *storage.GetResponse) map[storage.Key]storage.Entity {
	found := make(map[storage.Key]storage.Entity, len(res.Entities))
	for i, entity := range res.Entities {
		if entity == nil || i >= len(keys) {
			continue
		}
		found[keys[i]] = *entity
	}
	return found
}

// collectPut pairs each written entity with its assigned key.
func collectPut(req *storage.PutRequest, res *storage.PutResponse) map[storage.Key]storage.Entity {
	out := make(map[storage.Key]storage.Entity, len(req.Entities))
	for i, entity := range req.Entities {
		if i >= len(res.Keys) {
			break
		}
		entity.Key = res.Keys[i]
		out[entity.Key] = entity
	}
	return out
}
