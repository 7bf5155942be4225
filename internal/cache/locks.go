package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"route-recon/internal/models"
)

const lockKeyPrefix = "lock:"

// acquireScript grants the lock when it is free or already held by the
// caller (refreshing the TTL). Otherwise it returns the current holder.
var acquireScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
	local holder = cjson.decode(cur)
	if holder.userId ~= ARGV[1] then
		return {0, cur}
	end
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return {1, ARGV[2]}
`)

// releaseScript deletes the lock only when the caller holds it.
var releaseScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if not cur then
	return 0
end
local holder = cjson.decode(cur)
if holder.userId ~= ARGV[1] then
	return 0
end
redis.call('DEL', KEYS[1])
return 1
`)

type LockRegistry struct {
	rdb *redis.Client
}

func NewLockRegistry(rdb *redis.Client) *LockRegistry {
	return &LockRegistry{rdb: rdb}
}

func (l *LockRegistry) Acquire(ctx context.Context, lock models.ItemLock, ttl time.Duration) (models.ItemLock, bool, error) {
	data, err := json.Marshal(lock)
	if err != nil {
		return models.ItemLock{}, false, err
	}

	res, err := acquireScript.Run(ctx, l.rdb,
		[]string{lockKeyPrefix + lock.ItemKey},
		lock.UserID, string(data), ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return models.ItemLock{}, false, fmt.Errorf("acquire %s: %w", lock.ItemKey, err)
	}
	if len(res) != 2 {
		return models.ItemLock{}, false, fmt.Errorf("acquire %s: unexpected reply %v", lock.ItemKey, res)
	}

	granted, _ := res[0].(int64)
	raw, _ := res[1].(string)
	var holder models.ItemLock
	if err := json.Unmarshal([]byte(raw), &holder); err != nil {
		return models.ItemLock{}, false, fmt.Errorf("acquire %s: %w", lock.ItemKey, err)
	}
	return holder, granted == 1, nil
}

func (l *LockRegistry) Release(ctx context.Context, itemKey, userID string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.rdb, []string{lockKeyPrefix + itemKey}, userID).Int()
	if err != nil {
		return false, fmt.Errorf("release %s: %w", itemKey, err)
	}
	return n == 1, nil
}

// List returns live locks, filtered by route unless route is empty.
func (l *LockRegistry) List(ctx context.Context, route string) ([]models.ItemLock, error) {
	locks, err := scanJSON[models.ItemLock](ctx, l.rdb, lockKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	if route == "" {
		return locks, nil
	}
	out := locks[:0]
	for _, lk := range locks {
		if lk.Route == route {
			out = append(out, lk)
		}
	}
	return out, nil
}
