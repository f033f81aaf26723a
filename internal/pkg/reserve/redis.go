package reserve

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisReserver keeps reservations as plain string keys, one per account,
// whose value is the holder id. Keys carry no expiry; the sweeper releases
// abandoned holders through the session machine.
type RedisReserver struct {
	client *redis.Client
	prefix string
}

// NewRedisReserver creates a RedisReserver. Keys are named "<prefix>:active:<account id>".
func NewRedisReserver(client *redis.Client, prefix string) *RedisReserver {
	return &RedisReserver{client: client, prefix: prefix}
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (r *RedisReserver) key(accountID int64) string {
	return fmt.Sprintf("%s:active:%d", r.prefix, accountID)
}

// Returns 1 when KEYS[1] held ARGV[1] and now holds ARGV[2].
var rebindScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		redis.call("SET", KEYS[1], ARGV[2])
		return 1
	end
	return 0
`)

// Returns 1 when KEYS[1] held ARGV[1] and was deleted.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

func (r *RedisReserver) Reserve(ctx context.Context, accountID int64, holder string) error {
	key := r.key(accountID)
	ok, err := r.client.SetNX(ctx, key, holder, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to reserve account: %w", err)
	}
	if ok {
		return nil
	}

	cur, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Released between SETNX and GET. Report the conflict rather than retry.
			return ErrReserved
		}
		return fmt.Errorf("failed to read reservation: %w", err)
	}
	if cur != holder {
		return ErrReserved
	}
	return nil
}

func (r *RedisReserver) Rebind(ctx context.Context, accountID int64, from, to string) error {
	n, err := rebindScript.Run(ctx, r.client, []string{r.key(accountID)}, from, to).Int()
	if err != nil {
		return fmt.Errorf("failed to rebind reservation: %w", err)
	}
	if n == 0 {
		return ErrNotHolder
	}
	return nil
}

func (r *RedisReserver) Release(ctx context.Context, accountID int64, holder string) error {
	n, err := releaseScript.Run(ctx, r.client, []string{r.key(accountID)}, holder).Int()
	if err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	if n == 0 {
		return ErrNotHolder
	}
	return nil
}

func (r *RedisReserver) Holder(ctx context.Context, accountID int64) (string, bool, error) {
	h, err := r.client.Get(ctx, r.key(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read reservation: %w", err)
	}
	return h, true, nil
}

func (r *RedisReserver) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+":active:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan reservations: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear reservations: %w", err)
	}
	return nil
}
