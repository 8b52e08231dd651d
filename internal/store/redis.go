package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dropDatabas3/clustertier/internal/chain"
	"github.com/redis/go-redis/v9"
)

// redisBackend guarda cada chain como una LIST y el índice de keys de cada
// cache en un SET.
type redisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedis crea un backend Redis y verifica la conexión.
func NewRedis(ctx context.Context, cfg BackendConfig) (ChainBackend, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("store: redis ping failed: %w", err)
	}
	return &redisBackend{client: rdb, prefix: cfg.Prefix}, nil
}

func (r *redisBackend) base(cacheID string) string {
	if r.prefix == "" {
		return "chain:" + cacheID
	}
	return r.prefix + ":chain:" + cacheID
}

func (r *redisBackend) listKey(cacheID string, key int64) string {
	return r.base(cacheID) + ":" + strconv.FormatInt(key, 10)
}

func (r *redisBackend) indexKey(cacheID string) string {
	return r.base(cacheID) + ":keys"
}

func (r *redisBackend) Load(ctx context.Context, cacheID string, key int64) (chain.Chain, error) {
	vals, err := r.client.LRange(ctx, r.listKey(cacheID, key), 0, -1).Result()
	if err != nil {
		return chain.Chain{}, fmt.Errorf("store: lrange %s/%d: %w", cacheID, key, err)
	}
	elems := make([]chain.Element, len(vals))
	for i, v := range vals {
		elems[i] = chain.Element(v)
	}
	return chain.FromElements(elems...), nil
}

func (r *redisBackend) Append(ctx context.Context, cacheID string, key int64, e chain.Element) error {
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, r.listKey(cacheID, key), []byte(e))
		p.SAdd(ctx, r.indexKey(cacheID), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: append %s/%d: %w", cacheID, key, err)
	}
	return nil
}

func (r *redisBackend) Put(ctx context.Context, cacheID string, key int64, c chain.Chain) error {
	lk := r.listKey(cacheID, key)
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, lk)
		if c.IsEmpty() {
			p.SRem(ctx, r.indexKey(cacheID), key)
			return nil
		}
		vals := make([]any, 0, c.Len())
		for e := range c.Elements() {
			vals = append(vals, []byte(e))
		}
		p.RPush(ctx, lk, vals...)
		p.SAdd(ctx, r.indexKey(cacheID), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: put %s/%d: %w", cacheID, key, err)
	}
	return nil
}

func (r *redisBackend) Keys(ctx context.Context, cacheID string) ([]int64, error) {
	members, err := r.client.SMembers(ctx, r.indexKey(cacheID)).Result()
	if err != nil {
		return nil, fmt.Errorf("store: keys %s: %w", cacheID, err)
	}
	keys := make([]int64, 0, len(members))
	for _, m := range members {
		k, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("store: corrupt key index %s: %q", cacheID, m)
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

func (r *redisBackend) Drop(ctx context.Context, cacheID string) error {
	keys, err := r.Keys(ctx, cacheID)
	if err != nil {
		return err
	}
	del := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		del = append(del, r.listKey(cacheID, k))
	}
	del = append(del, r.indexKey(cacheID))
	if err := r.client.Del(ctx, del...).Err(); err != nil {
		return fmt.Errorf("store: drop %s: %w", cacheID, err)
	}
	return nil
}

func (r *redisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}
