package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "order:"
	redisScanCount = 100
)

// RedisAccess is the subset of the redis client used by the store.
type RedisAccess interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	redis.Scripter
}

// touchScript sets last_checked_at on the stored value in a single server
// side step, so a Put landing between read and write is never reverted.
var touchScript = redis.NewScript(`
local value = redis.call('GET', KEYS[1])
if not value then
	return 0
end
local order = cjson.decode(value)
order['last_checked_at'] = ARGV[1]
redis.call('SET', KEYS[1], cjson.encode(order), 'KEEPTTL')
return 1
`)

// RedisStore keeps each order as a JSON value under order:<id>, expiring
// with the registration.
type RedisStore struct {
	client RedisAccess
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client RedisAccess) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// NewRedisStoreFromConfig connects using REDIS_ADDR, REDIS_PASSWORD and REDIS_DB.
func NewRedisStoreFromConfig(config *configuration.AppConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	return NewRedisStore(rdb)
}

func redisKey(orderID string) string { return redisKeyPrefix + orderID }

func (r *RedisStore) ttl(order orders.TrackedOrder) time.Duration {
	if order.ExpiresAt == 0 {
		return 0
	}

	ttl := time.Unix(order.ExpiresAt, 0).Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *RedisStore) Get(ctx context.Context, orderID string) (*orders.TrackedOrder, error) {
	b, err := r.client.Get(ctx, redisKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	var o orders.TrackedOrder
	if err := json.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", orderID, err)
	}
	return &o, nil
}

func (r *RedisStore) Create(ctx context.Context, order orders.TrackedOrder) error {
	b, err := json.Marshal(order)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, redisKey(order.OrderID), b, r.ttl(order)).Result()
	if err != nil {
		return fmt.Errorf("create order %s: %w", order.OrderID, err)
	}
	if !created {
		return ErrAlreadyExists
	}
	return nil
}

// Put overwrites the value. The expiry is always derived from ExpiresAt so a
// key recreated after a concurrent Delete still expires with the registration.
func (r *RedisStore) Put(ctx context.Context, order orders.TrackedOrder) error {
	b, err := json.Marshal(order)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, redisKey(order.OrderID), b, r.ttl(order)).Err(); err != nil {
		return fmt.Errorf("put order %s: %w", order.OrderID, err)
	}
	return nil
}

func (r *RedisStore) Touch(ctx context.Context, orderID string, at time.Time) error {
	checkedAt := at.UTC().Format(time.RFC3339Nano)

	touched, err := touchScript.Run(ctx, r.client, []string{redisKey(orderID)}, checkedAt).Int()
	if err != nil {
		return fmt.Errorf("touch order %s: %w", orderID, err)
	}
	if touched == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, orderID string) error {
	if err := r.client.Del(ctx, redisKey(orderID)).Err(); err != nil {
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}
	return nil
}

func (r *RedisStore) ScanActive(ctx context.Context) ([]orders.TrackedOrder, error) {
	var (
		cursor uint64
		keys   []string
	)

	for {
		page, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", redisScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		keys = append(keys, page...)

		if next == 0 {
			break
		}
		cursor = next
	}

	now := r.now().Unix()
	active := make([]orders.TrackedOrder, 0, len(keys))
	for _, key := range keys {
		o, err := r.Get(ctx, key[len(redisKeyPrefix):])
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if o.ExpiresAt == 0 || o.ExpiresAt > now {
			active = append(active, *o)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].RegisteredAt.Before(active[j].RegisteredAt)
	})
	return active, nil
}
